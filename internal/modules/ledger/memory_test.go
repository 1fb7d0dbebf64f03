package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/georgemunganga/shopledger/internal/platform/apperr"
)

var day = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func receipt(shop, product uuid.UUID, qty int) *Receipt {
	return &Receipt{
		ID: uuid.New(), ShopID: shop, ProductID: product, Quantity: qty,
		ReceivedOn: dayStart(day), Supplier: "Oud House", RecordedBy: uuid.New(),
	}
}

func ticket(shop uuid.UUID, lines ...LineItem) *Ticket {
	t := &Ticket{ID: uuid.New(), ShopID: shop, EmployeeID: uuid.New(), SoldAt: day, Total: decimal.Zero}
	for i, l := range lines {
		l.ID = uuid.New()
		l.Position = i + 1
		l.UnitPrice = decimal.NewFromInt(10)
		l.LineTotal = l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
		t.Total = t.Total.Add(l.LineTotal)
		t.Lines = append(t.Lines, l)
	}
	return t
}

func line(product uuid.UUID, qty int) LineItem { return LineItem{ProductID: product, Quantity: qty} }

func TestAppendReceipt_FoldsIntoBalance(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	shop, product := uuid.New(), uuid.New()

	r := receipt(shop, product, 20)
	require.NoError(t, repo.AppendReceipt(ctx, r, nil))
	assert.Equal(t, int64(1), r.Seq)
	assert.False(t, r.CreatedAt.IsZero())

	b, err := repo.OnHand(ctx, Pair{ShopID: shop, ProductID: product})
	require.NoError(t, err)
	assert.Equal(t, int64(20), b.OnHand())

	got, err := repo.GetReceipt(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.Quantity, got.Quantity)

	_, err = repo.GetReceipt(ctx, uuid.New())
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestAppendReceipt_ReversalOnlyOnce(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	shop, product := uuid.New(), uuid.New()

	orig := receipt(shop, product, 12)
	require.NoError(t, repo.AppendReceipt(ctx, orig, nil))

	rev := receipt(shop, product, -12)
	rev.ReversesID = &orig.ID
	require.NoError(t, repo.AppendReceipt(ctx, rev, nil))

	again := receipt(shop, product, -12)
	again.ReversesID = &orig.ID
	err := repo.AppendReceipt(ctx, again, nil)
	assert.ErrorIs(t, err, &apperr.Error{Kind: apperr.KindConflict, Field: "reverses_id"})

	b, err := repo.OnHand(ctx, orig.Pair())
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.OnHand())
}

func TestAppendTicket_AssignsMonotonicCodes(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	shop, product := uuid.New(), uuid.New()

	first := ticket(shop, line(product, 1))
	second := ticket(shop, line(product, 2))
	require.NoError(t, repo.AppendTicket(ctx, first, nil))
	require.NoError(t, repo.AppendTicket(ctx, second, nil))

	assert.Equal(t, "T-20261018-000001", first.Code)
	assert.Equal(t, "T-20261018-000002", second.Code)
	assert.Less(t, first.Seq, second.Seq)

	got, err := repo.GetTicketByCode(ctx, second.Code)
	require.NoError(t, err)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, 2, got.Lines[0].Quantity)
}

func TestAppendTicket_InjectedFailureLeavesNoTrace(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	shop := uuid.New()
	p1, p2, p3 := uuid.New(), uuid.New(), uuid.New()
	require.NoError(t, repo.AppendReceipt(ctx, receipt(shop, p1, 10), nil))

	boom := errors.New("disk on fire")
	repo.beforeApply = func(i int) error {
		if i == 2 {
			return boom
		}
		return nil
	}
	err := repo.AppendTicket(ctx, ticket(shop, line(p1, 1), line(p2, 2), line(p3, 3)), nil)
	assert.ErrorIs(t, err, boom)

	tickets, err := repo.ListTickets(ctx, TicketFilter{})
	require.NoError(t, err)
	assert.Empty(t, tickets)
	balances, err := repo.Balances(ctx, BalanceFilter{})
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, int64(10), balances[0].OnHand())

	// The next ticket still commits with all of its lines.
	repo.beforeApply = nil
	ok := ticket(shop, line(p1, 1), line(p2, 2), line(p3, 3))
	require.NoError(t, repo.AppendTicket(ctx, ok, nil))
	assert.Equal(t, "T-20261018-000001", ok.Code, "failed commits consume no ticket number")
	balances, err = repo.Balances(ctx, BalanceFilter{})
	require.NoError(t, err)
	assert.Len(t, balances, 3)
}

func TestAppendTicket_GuardSeesCurrentStock(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	shop, product := uuid.New(), uuid.New()
	require.NoError(t, repo.AppendReceipt(ctx, receipt(shop, product, 4), nil))

	var seen map[Pair]int64
	reject := errors.New("no")
	err := repo.AppendTicket(ctx, ticket(shop, line(product, 3), line(product, 3)), func(onHand map[Pair]int64) error {
		seen = onHand
		return reject
	})
	assert.ErrorIs(t, err, reject)
	assert.Equal(t, map[Pair]int64{{ShopID: shop, ProductID: product}: 4}, seen)

	b, err := repo.OnHand(ctx, Pair{ShopID: shop, ProductID: product})
	require.NoError(t, err)
	assert.Equal(t, int64(4), b.OnHand())
}

func TestConcurrentWrites_NoLostUpdates(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	shopA, shopB := uuid.New(), uuid.New()
	p1, p2 := uuid.New(), uuid.New()

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.AppendReceipt(ctx, receipt(shopA, p1, 3), nil))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.AppendTicket(ctx, ticket(shopA, line(p1, 1), line(p2, 2)), nil))
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.AppendTicket(ctx, ticket(shopB, line(p2, 1), line(p1, 1)), nil))
		}()
	}
	wg.Wait()

	want := map[Pair]int64{
		{ShopID: shopA, ProductID: p1}: 3*n - n,
		{ShopID: shopA, ProductID: p2}: -2 * n,
		{ShopID: shopB, ProductID: p1}: -n,
		{ShopID: shopB, ProductID: p2}: -n,
	}
	balances, err := repo.Balances(ctx, BalanceFilter{})
	require.NoError(t, err)
	got := map[Pair]int64{}
	for _, b := range balances {
		got[b.Pair()] = b.OnHand()
	}
	assert.Equal(t, want, got)
	assert.Equal(t, 0, repo.locks.Len(), "pair locks are released")

	tickets, err := repo.ListTickets(ctx, TicketFilter{})
	require.NoError(t, err)
	codes := map[string]bool{}
	for _, tk := range tickets {
		codes[tk.Code] = true
	}
	assert.Len(t, codes, 2*n, "ticket codes are unique")
}

func TestConcurrentGuardedTickets_SerializePerPair(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	shop, product := uuid.New(), uuid.New()
	require.NoError(t, repo.AppendReceipt(ctx, receipt(shop, product, 1), nil))

	guard := func(onHand map[Pair]int64) error {
		for _, qty := range onHand {
			if qty < 1 {
				return apperr.InsufficientStock("sold out")
			}
		}
		return nil
	}

	var ok, rejected int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := repo.AppendTicket(ctx, ticket(shop, line(product, 1)), guard)
			if err == nil {
				atomic.AddInt32(&ok, 1)
			} else if apperr.IsKind(err, apperr.KindInsufficientStock) {
				atomic.AddInt32(&rejected, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), ok)
	assert.Equal(t, int32(19), rejected)
	b, err := repo.OnHand(ctx, Pair{ShopID: shop, ProductID: product})
	require.NoError(t, err)
	assert.Equal(t, int64(0), b.OnHand())
}

func TestAppendTicket_CancelledContext(t *testing.T) {
	repo := NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.AppendTicket(ctx, ticket(uuid.New(), line(uuid.New(), 1)), nil)
	assert.ErrorIs(t, err, context.Canceled)
	tickets, err := repo.ListTickets(context.Background(), TicketFilter{})
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func TestListFilters(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	shopA, shopB := uuid.New(), uuid.New()
	p1, p2 := uuid.New(), uuid.New()

	early := receipt(shopA, p1, 5)
	early.ReceivedOn = dayStart(day).AddDate(0, 0, -3)
	require.NoError(t, repo.AppendReceipt(ctx, early, nil))
	require.NoError(t, repo.AppendReceipt(ctx, receipt(shopA, p2, 5), nil))
	require.NoError(t, repo.AppendReceipt(ctx, receipt(shopB, p1, 5), nil))

	from := dayStart(day)
	receipts, err := repo.ListReceipts(ctx, ReceiptFilter{ShopID: &shopA, From: &from})
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, p2, receipts[0].ProductID)

	receipts, err = repo.ListReceipts(ctx, ReceiptFilter{ProductID: &p1})
	require.NoError(t, err)
	assert.Len(t, receipts, 2)

	require.NoError(t, repo.AppendTicket(ctx, ticket(shopA, line(p1, 1)), nil))
	require.NoError(t, repo.AppendTicket(ctx, ticket(shopA, line(p2, 1)), nil))

	tickets, err := repo.ListTickets(ctx, TicketFilter{ProductIDs: []uuid.UUID{p2}})
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	tickets, err = repo.ListTickets(ctx, TicketFilter{ProductIDs: []uuid.UUID{}})
	require.NoError(t, err)
	assert.Empty(t, tickets)

	to := dayStart(day).AddDate(0, 0, -1)
	tickets, err = repo.ListTickets(ctx, TicketFilter{To: &to})
	require.NoError(t, err)
	assert.Empty(t, tickets)

	balances, err := repo.Balances(ctx, BalanceFilter{ShopID: &shopB})
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, int64(5), balances[0].OnHand())
}

func TestReferences(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	shop, product := uuid.New(), uuid.New()

	tk := ticket(shop, line(product, 1))
	require.NoError(t, repo.AppendTicket(ctx, tk, nil))

	used, err := repo.ProductReferenced(ctx, product)
	require.NoError(t, err)
	assert.True(t, used)
	used, err = repo.ShopReferenced(ctx, shop)
	require.NoError(t, err)
	assert.True(t, used)
	used, err = repo.EmployeeReferenced(ctx, tk.EmployeeID)
	require.NoError(t, err)
	assert.True(t, used)

	used, err = repo.ProductReferenced(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, used)
}

func TestFormatTicketCode(t *testing.T) {
	assert.Equal(t, "T-20261018-000042", FormatTicketCode(42, day))
	assert.Equal(t, "T-20261018-1234567", FormatTicketCode(1234567, day))
}

func TestAdvisoryKeyStable(t *testing.T) {
	p := Pair{ShopID: uuid.New(), ProductID: uuid.New()}
	assert.Equal(t, advisoryKey(p), advisoryKey(p))
	assert.NotEqual(t, advisoryKey(p), advisoryKey(Pair{ShopID: p.ProductID, ProductID: p.ShopID}))
}
