// Package ledger stores the two append-only streams: stock receipts and sales
// tickets with their line items. Nothing here updates or deletes a committed
// record. Stock balances are folded from both streams on read.
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/georgemunganga/shopledger/internal/platform/pairlock"
)

// Pair identifies the (shop, product) pair a movement applies to.
type Pair = pairlock.Key

// Receipt is one stock delivery, or the compensating entry of a reversal when
// ReversesID is set. Quantity is negative only for reversals.
type Receipt struct {
	ID         uuid.UUID  `json:"id"`
	Seq        int64      `json:"seq"`
	ShopID     uuid.UUID  `json:"shop_id"`
	ProductID  uuid.UUID  `json:"product_id"`
	Quantity   int        `json:"quantity"`
	ReceivedOn time.Time  `json:"received_on"`
	Supplier   string     `json:"supplier,omitempty"`
	Notes      string     `json:"notes,omitempty"`
	ReversesID *uuid.UUID `json:"reverses_id,omitempty"`
	RecordedBy uuid.UUID  `json:"recorded_by"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (r *Receipt) Pair() Pair { return Pair{ShopID: r.ShopID, ProductID: r.ProductID} }

// Ticket is a committed sale. Seq and Code are assigned by the repository at
// commit time.
type Ticket struct {
	ID         uuid.UUID       `json:"id"`
	Seq        int64           `json:"seq"`
	Code       string          `json:"code"`
	ShopID     uuid.UUID       `json:"shop_id"`
	EmployeeID uuid.UUID       `json:"employee_id"`
	SoldAt     time.Time       `json:"sold_at"`
	Notes      string          `json:"notes,omitempty"`
	Total      decimal.Decimal `json:"total"`
	Lines      []LineItem      `json:"lines"`
	CreatedAt  time.Time       `json:"created_at"`
}

// LineItem is one product line of a ticket. Position is 1-based.
type LineItem struct {
	ID        uuid.UUID       `json:"id"`
	Position  int             `json:"position"`
	ProductID uuid.UUID       `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
	Notes     string          `json:"notes,omitempty"`
}

// Pairs returns the distinct pairs the ticket touches.
func (t *Ticket) Pairs() []Pair {
	keys := make([]Pair, 0, len(t.Lines))
	for _, l := range t.Lines {
		keys = append(keys, Pair{ShopID: t.ShopID, ProductID: l.ProductID})
	}
	return pairlock.Sorted(keys)
}

// Demand sums line quantities per product.
func (t *Ticket) Demand() map[Pair]int64 {
	out := make(map[Pair]int64, len(t.Lines))
	for _, l := range t.Lines {
		out[Pair{ShopID: t.ShopID, ProductID: l.ProductID}] += int64(l.Quantity)
	}
	return out
}

// Balance is the folded position of one pair.
type Balance struct {
	ShopID    uuid.UUID `json:"shop_id"`
	ProductID uuid.UUID `json:"product_id"`
	Received  int64     `json:"received"`
	Sold      int64     `json:"sold"`
}

func (b Balance) Pair() Pair { return Pair{ShopID: b.ShopID, ProductID: b.ProductID} }

// OnHand is received minus sold. It may be negative.
func (b Balance) OnHand() int64 { return b.Received - b.Sold }

// Guard inspects the on-hand quantity of every pair a write touches, taken
// under the pair locks immediately before the write. A non-nil error aborts
// the write.
type Guard func(onHand map[Pair]int64) error

// ReceiptFilter narrows receipt listings. Dates are inclusive calendar days.
type ReceiptFilter struct {
	ShopID    *uuid.UUID
	ProductID *uuid.UUID
	From      *time.Time
	To        *time.Time
}

// TicketFilter narrows ticket listings. A non-nil ProductIDs keeps only
// tickets with a line for one of the products; an empty non-nil slice matches
// nothing.
type TicketFilter struct {
	ShopID     *uuid.UUID
	EmployeeID *uuid.UUID
	From       *time.Time
	To         *time.Time
	ProductIDs []uuid.UUID
}

// BalanceFilter narrows balance reads. ProductIDs follows TicketFilter.
type BalanceFilter struct {
	ShopID     *uuid.UUID
	ProductIDs []uuid.UUID
}

// FormatTicketCode renders the human-readable code for sequence number seq.
func FormatTicketCode(seq int64, soldAt time.Time) string {
	return fmt.Sprintf("T-%s-%06d", soldAt.UTC().Format("20060102"), seq)
}

func dayStart(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func inDateRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(dayStart(*from)) {
		return false
	}
	if to != nil && !t.Before(dayStart(*to).AddDate(0, 0, 1)) {
		return false
	}
	return true
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
