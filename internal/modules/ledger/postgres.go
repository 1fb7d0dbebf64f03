package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/georgemunganga/shopledger/internal/platform/apperr"
	"github.com/georgemunganga/shopledger/internal/platform/database"
)

type postgresRepo struct{ db *sql.DB }

// NewPostgresRepository creates a PostgreSQL ledger repository. Writers on
// the same pair serialize on transaction-scoped advisory locks.
func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

// advisoryKey folds a pair into the 64-bit key space of pg_advisory_xact_lock.
func advisoryKey(p Pair) int64 {
	h := fnv.New64a()
	h.Write(p.ShopID[:])
	h.Write(p.ProductID[:])
	return int64(h.Sum64())
}

// lockPairs takes the advisory lock of every pair in the order given. Callers
// pass pairs sorted by pairlock.Sorted.
func lockPairs(ctx context.Context, tx *sql.Tx, pairs []Pair) error {
	for _, p := range pairs {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, advisoryKey(p)); err != nil {
			return fmt.Errorf("lock pair: %w", err)
		}
	}
	return nil
}

func onHandTx(ctx context.Context, q database.Queryer, pairs []Pair) (map[Pair]int64, error) {
	out := make(map[Pair]int64, len(pairs))
	for _, p := range pairs {
		b, err := balanceOf(ctx, q, p)
		if err != nil {
			return nil, err
		}
		out[p] = b.OnHand()
	}
	return out, nil
}

func balanceOf(ctx context.Context, q database.Queryer, p Pair) (Balance, error) {
	b := Balance{ShopID: p.ShopID, ProductID: p.ProductID}
	err := q.QueryRowContext(ctx, `
		SELECT
		  COALESCE((SELECT SUM(quantity) FROM stock_receipts WHERE shop_id=$1 AND product_id=$2), 0),
		  COALESCE((SELECT SUM(l.quantity) FROM sales_line_items l
		            JOIN sales_tickets t ON t.id = l.ticket_id
		            WHERE t.shop_id=$1 AND l.product_id=$2), 0)`,
		p.ShopID, p.ProductID).Scan(&b.Received, &b.Sold)
	if err != nil {
		return b, fmt.Errorf("read balance: %w", err)
	}
	return b, nil
}

// ── Receipts ─────────────────────────────────────────────────────────────────

const receiptColumns = `id,seq,shop_id,product_id,quantity,received_on,supplier,notes,reverses_id,recorded_by,created_at`

func scanReceipt(scan func(...interface{}) error) (*Receipt, error) {
	r := &Receipt{}
	var reverses uuid.NullUUID
	err := scan(&r.ID, &r.Seq, &r.ShopID, &r.ProductID, &r.Quantity, &r.ReceivedOn,
		&r.Supplier, &r.Notes, &reverses, &r.RecordedBy, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	if reverses.Valid {
		id := reverses.UUID
		r.ReversesID = &id
	}
	return r, nil
}

func (r *postgresRepo) AppendReceipt(ctx context.Context, rc *Receipt, guard Guard) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return database.TranslateError(err, "begin receipt")
	}
	defer tx.Rollback()

	pair := rc.Pair()
	if err := lockPairs(ctx, tx, []Pair{pair}); err != nil {
		return database.TranslateError(err, "append receipt")
	}
	if guard != nil {
		onHand, err := onHandTx(ctx, tx, []Pair{pair})
		if err != nil {
			return database.TranslateError(err, "append receipt")
		}
		if err := guard(onHand); err != nil {
			return err
		}
	}

	var reverses interface{}
	if rc.ReversesID != nil {
		reverses = *rc.ReversesID
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO stock_receipts
		  (id, shop_id, product_id, quantity, received_on, supplier, notes, reverses_id, recorded_by)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING seq, created_at`,
		rc.ID, rc.ShopID, rc.ProductID, rc.Quantity, rc.ReceivedOn, rc.Supplier, rc.Notes,
		reverses, rc.RecordedBy).Scan(&rc.Seq, &rc.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if rc.ReversesID != nil && errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return apperr.Conflict("reverses_id", "receipt %s is already reversed", *rc.ReversesID)
		}
		return database.TranslateError(err, "insert receipt")
	}
	return database.TranslateError(tx.Commit(), "commit receipt")
}

func (r *postgresRepo) GetReceipt(ctx context.Context, id uuid.UUID) (*Receipt, error) {
	rc, err := scanReceipt(r.db.QueryRowContext(ctx,
		`SELECT `+receiptColumns+` FROM stock_receipts WHERE id=$1`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("receipt", id.String())
	}
	return rc, database.TranslateError(err, "get receipt")
}

func (r *postgresRepo) ListReceipts(ctx context.Context, f ReceiptFilter) ([]*Receipt, error) {
	w := &where{}
	if f.ShopID != nil {
		w.add("shop_id = $%d", *f.ShopID)
	}
	if f.ProductID != nil {
		w.add("product_id = $%d", *f.ProductID)
	}
	if f.From != nil {
		w.add("received_on >= $%d", dayStart(*f.From))
	}
	if f.To != nil {
		w.add("received_on <= $%d", dayStart(*f.To))
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+receiptColumns+` FROM stock_receipts`+w.sql()+` ORDER BY seq DESC`, w.args...)
	if err != nil {
		return nil, database.TranslateError(err, "list receipts")
	}
	defer rows.Close()

	var receipts []*Receipt
	for rows.Next() {
		rc, err := scanReceipt(rows.Scan)
		if err != nil {
			return nil, database.TranslateError(err, "scan receipt")
		}
		receipts = append(receipts, rc)
	}
	return receipts, database.TranslateError(rows.Err(), "list receipts")
}

// ── Tickets ──────────────────────────────────────────────────────────────────

// AppendTicket inserts the ticket and all its lines inside a single transaction.
func (r *postgresRepo) AppendTicket(ctx context.Context, t *Ticket, guard Guard) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return database.TranslateError(err, "begin ticket")
	}
	defer tx.Rollback()

	pairs := t.Pairs()
	if err := lockPairs(ctx, tx, pairs); err != nil {
		return database.TranslateError(err, "append ticket")
	}
	if guard != nil {
		onHand, err := onHandTx(ctx, tx, pairs)
		if err != nil {
			return database.TranslateError(err, "append ticket")
		}
		if err := guard(onHand); err != nil {
			return err
		}
	}

	if err := tx.QueryRowContext(ctx, `SELECT nextval('sales_ticket_seq')`).Scan(&t.Seq); err != nil {
		return database.TranslateError(err, "next ticket number")
	}
	t.Code = FormatTicketCode(t.Seq, t.SoldAt)

	err = tx.QueryRowContext(ctx, `
		INSERT INTO sales_tickets (id, seq, code, shop_id, employee_id, sold_at, notes, total)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at`,
		t.ID, t.Seq, t.Code, t.ShopID, t.EmployeeID, t.SoldAt, t.Notes, t.Total).Scan(&t.CreatedAt)
	if err != nil {
		return database.TranslateError(err, "insert ticket")
	}

	for _, item := range t.Lines {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sales_line_items
			  (id, ticket_id, position, product_id, quantity, unit_price, line_total, notes)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			item.ID, t.ID, item.Position, item.ProductID, item.Quantity,
			item.UnitPrice, item.LineTotal, item.Notes)
		if err != nil {
			return database.TranslateError(err, "insert line item")
		}
	}

	return database.TranslateError(tx.Commit(), "commit ticket")
}

const ticketColumns = `t.id,t.seq,t.code,t.shop_id,t.employee_id,t.sold_at,t.notes,t.total,t.created_at`

func scanTicket(scan func(...interface{}) error) (*Ticket, error) {
	t := &Ticket{}
	err := scan(&t.ID, &t.Seq, &t.Code, &t.ShopID, &t.EmployeeID, &t.SoldAt, &t.Notes, &t.Total, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *postgresRepo) GetTicketByCode(ctx context.Context, code string) (*Ticket, error) {
	t, err := scanTicket(r.db.QueryRowContext(ctx,
		`SELECT `+ticketColumns+` FROM sales_tickets t WHERE t.code=$1`, code).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("ticket", code)
	}
	if err != nil {
		return nil, database.TranslateError(err, "get ticket")
	}
	if err := r.loadLines(ctx, []*Ticket{t}); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *postgresRepo) ListTickets(ctx context.Context, f TicketFilter) ([]*Ticket, error) {
	if f.ProductIDs != nil && len(f.ProductIDs) == 0 {
		return nil, nil
	}
	w := &where{}
	if f.ShopID != nil {
		w.add("t.shop_id = $%d", *f.ShopID)
	}
	if f.EmployeeID != nil {
		w.add("t.employee_id = $%d", *f.EmployeeID)
	}
	if f.From != nil {
		w.add("t.sold_at >= $%d", dayStart(*f.From))
	}
	if f.To != nil {
		w.add("t.sold_at < $%d", dayStart(*f.To).AddDate(0, 0, 1))
	}
	if f.ProductIDs != nil {
		w.add(`EXISTS (SELECT 1 FROM sales_line_items l
		        WHERE l.ticket_id = t.id AND l.product_id = ANY($%d::uuid[]))`, uuidArray(f.ProductIDs))
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ticketColumns+` FROM sales_tickets t`+w.sql()+` ORDER BY t.seq DESC`, w.args...)
	if err != nil {
		return nil, database.TranslateError(err, "list tickets")
	}
	defer rows.Close()

	var tickets []*Ticket
	for rows.Next() {
		t, err := scanTicket(rows.Scan)
		if err != nil {
			return nil, database.TranslateError(err, "scan ticket")
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, database.TranslateError(err, "list tickets")
	}
	if err := r.loadLines(ctx, tickets); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (r *postgresRepo) loadLines(ctx context.Context, tickets []*Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*Ticket, len(tickets))
	ids := make([]uuid.UUID, 0, len(tickets))
	for _, t := range tickets {
		byID[t.ID] = t
		ids = append(ids, t.ID)
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT ticket_id, id, position, product_id, quantity, unit_price, line_total, notes
		FROM sales_line_items
		WHERE ticket_id = ANY($1::uuid[])
		ORDER BY ticket_id, position`, uuidArray(ids))
	if err != nil {
		return database.TranslateError(err, "list line items")
	}
	defer rows.Close()

	for rows.Next() {
		var ticketID uuid.UUID
		var l LineItem
		err := rows.Scan(&ticketID, &l.ID, &l.Position, &l.ProductID, &l.Quantity,
			&l.UnitPrice, &l.LineTotal, &l.Notes)
		if err != nil {
			return database.TranslateError(err, "scan line item")
		}
		if t, ok := byID[ticketID]; ok {
			t.Lines = append(t.Lines, l)
		}
	}
	return database.TranslateError(rows.Err(), "list line items")
}

// ── Balances ─────────────────────────────────────────────────────────────────

func (r *postgresRepo) OnHand(ctx context.Context, pair Pair) (Balance, error) {
	b, err := balanceOf(ctx, r.db, pair)
	return b, database.TranslateError(err, "on hand")
}

// Balances folds both ledgers in one statement, so the result reflects a
// single snapshot.
func (r *postgresRepo) Balances(ctx context.Context, f BalanceFilter) ([]Balance, error) {
	if f.ProductIDs != nil && len(f.ProductIDs) == 0 {
		return nil, nil
	}
	w := &where{}
	if f.ShopID != nil {
		w.add("shop_id = $%d", *f.ShopID)
	}
	if f.ProductIDs != nil {
		w.add("product_id = ANY($%d::uuid[])", uuidArray(f.ProductIDs))
	}
	rows, err := r.db.QueryContext(ctx, `
		WITH movements AS (
		  SELECT shop_id, product_id, quantity::bigint AS received, 0::bigint AS sold
		  FROM stock_receipts
		  UNION ALL
		  SELECT t.shop_id, l.product_id, 0::bigint, l.quantity::bigint
		  FROM sales_line_items l JOIN sales_tickets t ON t.id = l.ticket_id
		)
		SELECT shop_id, product_id, SUM(received), SUM(sold)
		FROM movements`+w.sql()+`
		GROUP BY shop_id, product_id
		ORDER BY shop_id, product_id`, w.args...)
	if err != nil {
		return nil, database.TranslateError(err, "read balances")
	}
	defer rows.Close()

	var out []Balance
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.ShopID, &b.ProductID, &b.Received, &b.Sold); err != nil {
			return nil, database.TranslateError(err, "scan balance")
		}
		out = append(out, b)
	}
	return out, database.TranslateError(rows.Err(), "read balances")
}

// ── References ───────────────────────────────────────────────────────────────

func (r *postgresRepo) exists(ctx context.Context, op, query string, id uuid.UUID) (bool, error) {
	var found bool
	err := r.db.QueryRowContext(ctx, query, id).Scan(&found)
	return found, database.TranslateError(err, op)
}

func (r *postgresRepo) ProductReferenced(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx, "product references", `
		SELECT EXISTS(SELECT 1 FROM stock_receipts WHERE product_id=$1)
		    OR EXISTS(SELECT 1 FROM sales_line_items WHERE product_id=$1)`, id)
}

func (r *postgresRepo) ShopReferenced(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx, "shop references", `
		SELECT EXISTS(SELECT 1 FROM stock_receipts WHERE shop_id=$1)
		    OR EXISTS(SELECT 1 FROM sales_tickets WHERE shop_id=$1)`, id)
}

func (r *postgresRepo) EmployeeReferenced(ctx context.Context, id uuid.UUID) (bool, error) {
	return r.exists(ctx, "employee references", `
		SELECT EXISTS(SELECT 1 FROM stock_receipts WHERE recorded_by=$1)
		    OR EXISTS(SELECT 1 FROM sales_tickets WHERE employee_id=$1)`, id)
}

// ── helpers ──────────────────────────────────────────────────────────────────

// where accumulates AND-ed conditions with positional arguments. Each
// condition carries exactly one %d placeholder for its argument number.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, arg interface{}) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

func uuidArray(ids []uuid.UUID) interface{} {
	out := make(pq.StringArray, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
