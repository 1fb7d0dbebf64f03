package ledger

import (
	"context"

	"github.com/google/uuid"
)

// Repository appends to and reads from both ledgers.
//
// Writes touching the same pair are serialized; writes on disjoint pairs do
// not contend. A ticket becomes visible with all of its lines or not at all.
// Repository also satisfies catalog.ReferenceChecker.
type Repository interface {
	// AppendReceipt assigns Seq and CreatedAt. A second reversal of the same
	// receipt fails with Conflict.
	AppendReceipt(ctx context.Context, r *Receipt, guard Guard) error
	GetReceipt(ctx context.Context, id uuid.UUID) (*Receipt, error)
	ListReceipts(ctx context.Context, filter ReceiptFilter) ([]*Receipt, error)

	// AppendTicket assigns Seq, Code and CreatedAt and commits every line atomically.
	AppendTicket(ctx context.Context, t *Ticket, guard Guard) error
	GetTicketByCode(ctx context.Context, code string) (*Ticket, error)
	ListTickets(ctx context.Context, filter TicketFilter) ([]*Ticket, error)

	// OnHand returns the balance of one pair, linearized with writes to it.
	OnHand(ctx context.Context, pair Pair) (Balance, error)
	// Balances returns one row per pair that has ever moved, as of a single instant.
	Balances(ctx context.Context, filter BalanceFilter) ([]Balance, error)

	ProductReferenced(ctx context.Context, id uuid.UUID) (bool, error)
	ShopReferenced(ctx context.Context, id uuid.UUID) (bool, error)
	EmployeeReferenced(ctx context.Context, id uuid.UUID) (bool, error)
}
