package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/georgemunganga/shopledger/internal/modules/scope"
)

// Product is a sellable item in the master catalog.
type Product struct {
	ID           uuid.UUID       `json:"id"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Category     string          `json:"category,omitempty"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	ReorderLevel int             `json:"reorder_level"`
	Version      int             `json:"version"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ProductForSale is the view of a product offered to the sale form: no cost price.
type ProductForSale struct {
	ID           uuid.UUID       `json:"id"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Category     string          `json:"category,omitempty"`
	SellingPrice decimal.Decimal `json:"selling_price"`
}

// Shop is a physical point of sale.
type Shop struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Manager   string    `json:"manager,omitempty"`
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Employee is a login-capable staff record. Owners have no shop; employees
// are bound to exactly one.
type Employee struct {
	ID           uuid.UUID  `json:"id"`
	Code         string     `json:"code"`
	Name         string     `json:"name"`
	Role         scope.Role `json:"role"`
	ShopID       *uuid.UUID `json:"shop_id,omitempty"`
	Contact      string     `json:"contact,omitempty"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Version      int        `json:"version"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// ProductFilter narrows product listings. Name matches case-insensitively as a substring.
type ProductFilter struct {
	Category string
	Name     string
}

// CreateProductRequest holds the accepted fields for a new product.
type CreateProductRequest struct {
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	ReorderLevel int             `json:"reorder_level"`
}

// UpdateProductRequest changes only the non-nil fields. Version must match the stored record.
type UpdateProductRequest struct {
	Version      int              `json:"version"`
	Code         *string          `json:"code,omitempty"`
	Name         *string          `json:"name,omitempty"`
	Category     *string          `json:"category,omitempty"`
	CostPrice    *decimal.Decimal `json:"cost_price,omitempty"`
	SellingPrice *decimal.Decimal `json:"selling_price,omitempty"`
	ReorderLevel *int             `json:"reorder_level,omitempty"`
}

// CreateShopRequest holds the accepted fields for a new shop.
type CreateShopRequest struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Manager string `json:"manager"`
}

// UpdateShopRequest changes only the non-nil fields.
type UpdateShopRequest struct {
	Version int     `json:"version"`
	Code    *string `json:"code,omitempty"`
	Name    *string `json:"name,omitempty"`
	Manager *string `json:"manager,omitempty"`
}

// CreateEmployeeRequest holds the accepted fields for a new employee. Password is write-only.
type CreateEmployeeRequest struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	ShopID   string `json:"shop_id,omitempty"`
	Contact  string `json:"contact"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// UpdateEmployeeRequest changes only the non-nil fields.
type UpdateEmployeeRequest struct {
	Version  int     `json:"version"`
	Code     *string `json:"code,omitempty"`
	Name     *string `json:"name,omitempty"`
	Role     *string `json:"role,omitempty"`
	ShopID   *string `json:"shop_id,omitempty"`
	Contact  *string `json:"contact,omitempty"`
	Username *string `json:"username,omitempty"`
	Password *string `json:"password,omitempty"`
}
