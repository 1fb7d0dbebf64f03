package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/georgemunganga/shopledger/internal/platform/apperr"
	"github.com/georgemunganga/shopledger/internal/platform/pairlock"
)

// MemoryRepository keeps both ledgers in process with an incrementally
// maintained balance per pair.
//
// Pair locks serialize the read-check-append sequence of writers on the same
// pair. mu only guards the slices and maps for the few instructions needed to
// publish a record, and every record is published under one hold of mu so a
// reader never sees part of a ticket.
type MemoryRepository struct {
	locks *pairlock.Locker

	mu         sync.RWMutex
	receipts   []*Receipt
	receiptIdx map[uuid.UUID]*Receipt
	reversedBy map[uuid.UUID]uuid.UUID
	tickets    []*Ticket
	ticketIdx  map[string]*Ticket
	balances   map[Pair]*Balance
	receiptSeq int64
	ticketSeq  int64

	// beforeApply runs once per ticket line while the ticket is staged. Tests
	// use it to fail a commit part way through.
	beforeApply func(line int) error
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		locks:      pairlock.New(),
		receiptIdx: make(map[uuid.UUID]*Receipt),
		reversedBy: make(map[uuid.UUID]uuid.UUID),
		ticketIdx:  make(map[string]*Ticket),
		balances:   make(map[Pair]*Balance),
	}
}

func (m *MemoryRepository) onHandLocked(pairs []Pair) map[Pair]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[Pair]int64, len(pairs))
	for _, p := range pairs {
		if b, ok := m.balances[p]; ok {
			out[p] = b.OnHand()
		} else {
			out[p] = 0
		}
	}
	return out
}

func (m *MemoryRepository) balanceFor(p Pair) *Balance {
	b, ok := m.balances[p]
	if !ok {
		b = &Balance{ShopID: p.ShopID, ProductID: p.ProductID}
		m.balances[p] = b
	}
	return b
}

// ── Receipts ─────────────────────────────────────────────────────────────────

func (m *MemoryRepository) AppendReceipt(ctx context.Context, r *Receipt, guard Guard) error {
	pair := r.Pair()
	unlock := m.locks.Lock(pair)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if guard != nil {
		if err := guard(m.onHandLocked([]Pair{pair})); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ReversesID != nil {
		if _, ok := m.receiptIdx[*r.ReversesID]; !ok {
			return apperr.NotFound("receipt", r.ReversesID.String())
		}
		if _, done := m.reversedBy[*r.ReversesID]; done {
			return apperr.Conflict("reverses_id", "receipt %s is already reversed", *r.ReversesID)
		}
		m.reversedBy[*r.ReversesID] = r.ID
	}
	m.receiptSeq++
	r.Seq = m.receiptSeq
	r.CreatedAt = time.Now().UTC()

	stored := copyReceipt(r)
	m.receipts = append(m.receipts, stored)
	m.receiptIdx[r.ID] = stored
	m.balanceFor(pair).Received += int64(r.Quantity)
	return nil
}

func (m *MemoryRepository) GetReceipt(_ context.Context, id uuid.UUID) (*Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.receiptIdx[id]
	if !ok {
		return nil, apperr.NotFound("receipt", id.String())
	}
	return copyReceipt(r), nil
}

func (m *MemoryRepository) ListReceipts(_ context.Context, f ReceiptFilter) ([]*Receipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Receipt
	for i := len(m.receipts) - 1; i >= 0; i-- {
		r := m.receipts[i]
		if f.ShopID != nil && r.ShopID != *f.ShopID {
			continue
		}
		if f.ProductID != nil && r.ProductID != *f.ProductID {
			continue
		}
		if !inDateRange(r.ReceivedOn, f.From, f.To) {
			continue
		}
		out = append(out, copyReceipt(r))
	}
	return out, nil
}

// ── Tickets ──────────────────────────────────────────────────────────────────

func (m *MemoryRepository) AppendTicket(ctx context.Context, t *Ticket, guard Guard) error {
	pairs := t.Pairs()
	unlock := m.locks.Lock(pairs...)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if guard != nil {
		if err := guard(m.onHandLocked(pairs)); err != nil {
			return err
		}
	}

	// Stage every line before publishing anything.
	staged := make(map[Pair]int64, len(pairs))
	for i, l := range t.Lines {
		if m.beforeApply != nil {
			if err := m.beforeApply(i); err != nil {
				return err
			}
		}
		staged[Pair{ShopID: t.ShopID, ProductID: l.ProductID}] += int64(l.Quantity)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticketSeq++
	t.Seq = m.ticketSeq
	t.Code = FormatTicketCode(t.Seq, t.SoldAt)
	t.CreatedAt = time.Now().UTC()

	stored := copyTicket(t)
	m.tickets = append(m.tickets, stored)
	m.ticketIdx[t.Code] = stored
	for p, qty := range staged {
		m.balanceFor(p).Sold += qty
	}
	return nil
}

func (m *MemoryRepository) GetTicketByCode(_ context.Context, code string) (*Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.ticketIdx[code]
	if !ok {
		return nil, apperr.NotFound("ticket", code)
	}
	return copyTicket(t), nil
}

func (m *MemoryRepository) ListTickets(_ context.Context, f TicketFilter) ([]*Ticket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Ticket
	for i := len(m.tickets) - 1; i >= 0; i-- {
		t := m.tickets[i]
		if f.ShopID != nil && t.ShopID != *f.ShopID {
			continue
		}
		if f.EmployeeID != nil && t.EmployeeID != *f.EmployeeID {
			continue
		}
		if !inDateRange(t.SoldAt, f.From, f.To) {
			continue
		}
		if f.ProductIDs != nil && !ticketHasProduct(t, f.ProductIDs) {
			continue
		}
		out = append(out, copyTicket(t))
	}
	return out, nil
}

func ticketHasProduct(t *Ticket, ids []uuid.UUID) bool {
	for _, l := range t.Lines {
		if containsID(ids, l.ProductID) {
			return true
		}
	}
	return false
}

// ── Balances ─────────────────────────────────────────────────────────────────

func (m *MemoryRepository) OnHand(_ context.Context, pair Pair) (Balance, error) {
	unlock := m.locks.RLock(pair)
	defer unlock()
	m.mu.RLock()
	defer m.mu.RUnlock()
	if b, ok := m.balances[pair]; ok {
		return *b, nil
	}
	return Balance{ShopID: pair.ShopID, ProductID: pair.ProductID}, nil
}

func (m *MemoryRepository) Balances(_ context.Context, f BalanceFilter) ([]Balance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Balance, 0, len(m.balances))
	for p, b := range m.balances {
		if f.ShopID != nil && p.ShopID != *f.ShopID {
			continue
		}
		if f.ProductIDs != nil && !containsID(f.ProductIDs, p.ProductID) {
			continue
		}
		out = append(out, *b)
	}
	sortBalances(out)
	return out, nil
}

func sortBalances(bs []Balance) {
	keys := make([]Pair, len(bs))
	for i, b := range bs {
		keys[i] = b.Pair()
	}
	order := pairlock.Sorted(keys)
	rank := make(map[Pair]int, len(order))
	for i, k := range order {
		rank[k] = i
	}
	sort.Slice(bs, func(i, j int) bool { return rank[bs[i].Pair()] < rank[bs[j].Pair()] })
}

// ── References ───────────────────────────────────────────────────────────────

func (m *MemoryRepository) ProductReferenced(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for p := range m.balances {
		if p.ProductID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryRepository) ShopReferenced(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for p := range m.balances {
		if p.ShopID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryRepository) EmployeeReferenced(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, r := range m.receipts {
		if r.RecordedBy == id {
			return true, nil
		}
	}
	for _, t := range m.tickets {
		if t.EmployeeID == id {
			return true, nil
		}
	}
	return false, nil
}

func copyReceipt(r *Receipt) *Receipt {
	out := *r
	if r.ReversesID != nil {
		id := *r.ReversesID
		out.ReversesID = &id
	}
	return &out
}

func copyTicket(t *Ticket) *Ticket {
	out := *t
	out.Lines = append([]LineItem(nil), t.Lines...)
	return &out
}
