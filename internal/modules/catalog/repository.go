package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines master-data storage. Getters return apperr NotFound for
// unknown ids; updates return ConcurrencyConflict when expectedVersion is stale
// and bump Version on success.
type Repository interface {
	CreateProduct(ctx context.Context, p *Product) error
	GetProduct(ctx context.Context, id uuid.UUID) (*Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]*Product, error)
	UpdateProduct(ctx context.Context, p *Product, expectedVersion int) error
	DeleteProduct(ctx context.Context, id uuid.UUID) error

	CreateShop(ctx context.Context, s *Shop) error
	GetShop(ctx context.Context, id uuid.UUID) (*Shop, error)
	ListShops(ctx context.Context) ([]*Shop, error)
	UpdateShop(ctx context.Context, s *Shop, expectedVersion int) error
	DeleteShop(ctx context.Context, id uuid.UUID) error

	CreateEmployee(ctx context.Context, e *Employee) error
	GetEmployee(ctx context.Context, id uuid.UUID) (*Employee, error)
	GetEmployeeByUsername(ctx context.Context, username string) (*Employee, error)
	ListEmployees(ctx context.Context) ([]*Employee, error)
	UpdateEmployee(ctx context.Context, e *Employee, expectedVersion int) error
	DeleteEmployee(ctx context.Context, id uuid.UUID) error
	CountEmployeesInShop(ctx context.Context, shopID uuid.UUID) (int, error)
}

// ReferenceChecker reports whether ledger history references a master record.
// Ledger history is immutable, so referenced records cannot be deleted.
type ReferenceChecker interface {
	ProductReferenced(ctx context.Context, id uuid.UUID) (bool, error)
	ShopReferenced(ctx context.Context, id uuid.UUID) (bool, error)
	EmployeeReferenced(ctx context.Context, id uuid.UUID) (bool, error)
}
