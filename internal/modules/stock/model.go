// Package stock derives on-hand quantities and reorder status from the
// receipt and ticket ledgers.
package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the reorder classification of a pair.
type Status string

const (
	StatusLow     Status = "low"
	StatusWarning Status = "warning"
	StatusOK      Status = "ok"
)

// warningBand is how far above the reorder level a pair still counts as warning.
const warningBand = 2

// StatusFor classifies current against the product's reorder level:
// low at or below it, warning up to warningBand above it, ok beyond.
func StatusFor(current int64, reorderLevel int) Status {
	level := int64(reorderLevel)
	switch {
	case current <= level:
		return StatusLow
	case current <= level+warningBand:
		return StatusWarning
	default:
		return StatusOK
	}
}

// Level is the projected stock of one (shop, product) pair.
type Level struct {
	ShopID       uuid.UUID `json:"shop_id"`
	ShopCode     string    `json:"shop_code"`
	ShopName     string    `json:"shop_name"`
	ProductID    uuid.UUID `json:"product_id"`
	ProductCode  string    `json:"product_code"`
	ProductName  string    `json:"product_name"`
	Category     string    `json:"category,omitempty"`
	ReorderLevel int       `json:"reorder_level"`
	Received     int64     `json:"received"`
	Sold         int64     `json:"sold"`
	CurrentStock int64     `json:"current_stock"`
	Status       Status    `json:"status"`
}

// Filter narrows a stock listing. ProductName matches case-insensitively as a
// substring; LowOnly keeps pairs whose status is low.
type Filter struct {
	ShopID      *uuid.UUID
	ProductName string
	LowOnly     bool
}

// SummaryFilter narrows the dashboard. The date range applies to sales only;
// stock counts are always current.
type SummaryFilter struct {
	ShopID *uuid.UUID
	From   *time.Time
	To     *time.Time
}

// Summary is the dashboard headline.
type Summary struct {
	ShopID       *uuid.UUID      `json:"shop_id,omitempty"`
	TotalSales   decimal.Decimal `json:"total_sales"`
	TicketCount  int             `json:"ticket_count"`
	UnitsSold    int64           `json:"units_sold"`
	PairCount    int             `json:"pair_count"`
	LowCount     int             `json:"low_stock_count"`
	WarningCount int             `json:"warning_stock_count"`
}
