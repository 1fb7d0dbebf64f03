package receipt

import (
	"time"

	"github.com/google/uuid"

	"github.com/georgemunganga/shopledger/internal/modules/ledger"
)

// RecordRequest holds the accepted fields for a stock delivery. ShopID may be
// omitted by employees, who always record against their own shop. ReceivedOn
// is YYYY-MM-DD and defaults to today.
type RecordRequest struct {
	ShopID     string `json:"shop_id,omitempty"`
	ProductID  string `json:"product_id"`
	Quantity   int    `json:"quantity"`
	ReceivedOn string `json:"received_on,omitempty"`
	Supplier   string `json:"supplier"`
	Notes      string `json:"notes,omitempty"`
}

// ReverseRequest explains why a receipt is being reversed.
type ReverseRequest struct {
	Reason string `json:"reason"`
}

// Filter narrows a receipt listing. Dates are inclusive.
type Filter struct {
	ShopID    *uuid.UUID
	ProductID *uuid.UUID
	From      *time.Time
	To        *time.Time
}

// View is a receipt with its shop and product resolved for display.
type View struct {
	*ledger.Receipt
	ShopCode    string `json:"shop_code"`
	ShopName    string `json:"shop_name"`
	ProductCode string `json:"product_code"`
	ProductName string `json:"product_name"`
}
