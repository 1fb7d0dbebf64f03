package catalog

import (
	"context"

	"github.com/google/uuid"
)

// Names resolves master records for display while building a response. It
// memoizes lookups and is meant to live for a single request.
type Names struct {
	repo      Repository
	products  map[uuid.UUID]*Product
	shops     map[uuid.UUID]*Shop
	employees map[uuid.UUID]*Employee
}

func NewNames(repo Repository) *Names {
	return &Names{
		repo:      repo,
		products:  make(map[uuid.UUID]*Product),
		shops:     make(map[uuid.UUID]*Shop),
		employees: make(map[uuid.UUID]*Employee),
	}
}

func (n *Names) Product(ctx context.Context, id uuid.UUID) (*Product, error) {
	if p, ok := n.products[id]; ok {
		return p, nil
	}
	p, err := n.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	n.products[id] = p
	return p, nil
}

func (n *Names) Shop(ctx context.Context, id uuid.UUID) (*Shop, error) {
	if s, ok := n.shops[id]; ok {
		return s, nil
	}
	s, err := n.repo.GetShop(ctx, id)
	if err != nil {
		return nil, err
	}
	n.shops[id] = s
	return s, nil
}

func (n *Names) Employee(ctx context.Context, id uuid.UUID) (*Employee, error) {
	if e, ok := n.employees[id]; ok {
		return e, nil
	}
	e, err := n.repo.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	n.employees[id] = e
	return e, nil
}

// ProductIDsByName returns the ids of products whose name contains name,
// case-insensitively. The result is never nil.
func ProductIDsByName(ctx context.Context, repo Repository, name string) ([]uuid.UUID, error) {
	products, err := repo.ListProducts(ctx, ProductFilter{Name: name})
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids, nil
}
