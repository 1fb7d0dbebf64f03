package sales

import (
	"time"

	"github.com/google/uuid"

	"github.com/georgemunganga/shopledger/internal/modules/ledger"
)

// LineRequest is one requested ticket line. Prices are never accepted from
// the caller.
type LineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Notes     string `json:"notes,omitempty"`
}

// ComposeRequest holds the accepted fields for a new ticket. ShopID is
// required for owners and ignored or rejected for employees, depending on the
// foreign shop policy. EmployeeID defaults to the caller.
type ComposeRequest struct {
	ShopID     string        `json:"shop_id,omitempty"`
	EmployeeID string        `json:"employee_id,omitempty"`
	Lines      []LineRequest `json:"lines"`
	Notes      string        `json:"notes,omitempty"`
}

// Filter narrows a ticket listing. ProductName matches any line's product
// name as a case-insensitive substring.
type Filter struct {
	ShopID      *uuid.UUID
	EmployeeID  *uuid.UUID
	From        *time.Time
	To          *time.Time
	ProductName string
}

// View is a ticket with shop, employee and product names resolved.
type View struct {
	*ledger.Ticket
	ShopCode     string     `json:"shop_code"`
	ShopName     string     `json:"shop_name"`
	EmployeeName string     `json:"employee_name"`
	Lines        []LineView `json:"lines"`
}

// LineView is a ticket line with its product resolved.
type LineView struct {
	ledger.LineItem
	ProductCode string `json:"product_code"`
	ProductName string `json:"product_name"`
}
