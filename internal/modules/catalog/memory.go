package catalog

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/georgemunganga/shopledger/internal/platform/apperr"
)

// MemoryRepository keeps master data in process. Used when no DATABASE_URL is
// configured and by tests. Every read returns a copy.
type MemoryRepository struct {
	mu        sync.RWMutex
	products  map[uuid.UUID]Product
	shops     map[uuid.UUID]Shop
	employees map[uuid.UUID]Employee
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		products:  make(map[uuid.UUID]Product),
		shops:     make(map[uuid.UUID]Shop),
		employees: make(map[uuid.UUID]Employee),
	}
}

// ── Product ──────────────────────────────────────────────────────────────────

func (m *MemoryRepository) CreateProduct(_ context.Context, p *Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.products {
		if strings.EqualFold(existing.Code, p.Code) {
			return apperr.Conflict("code", "product code %q already exists", p.Code)
		}
	}
	now := time.Now().UTC()
	p.Version, p.CreatedAt, p.UpdatedAt = 1, now, now
	m.products[p.ID] = *p
	return nil
}

func (m *MemoryRepository) GetProduct(_ context.Context, id uuid.UUID) (*Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.products[id]
	if !ok {
		return nil, apperr.NotFound("product", id.String())
	}
	return &p, nil
}

func (m *MemoryRepository) ListProducts(_ context.Context, filter ProductFilter) ([]*Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	name := strings.ToLower(filter.Name)
	var out []*Product
	for _, p := range m.products {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if name != "" && !strings.Contains(strings.ToLower(p.Name), name) {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *MemoryRepository) UpdateProduct(_ context.Context, p *Product, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.products[p.ID]
	if !ok {
		return apperr.NotFound("product", p.ID.String())
	}
	if current.Version != expectedVersion {
		return apperr.ConcurrencyConflict("product", p.ID.String())
	}
	for id, existing := range m.products {
		if id != p.ID && strings.EqualFold(existing.Code, p.Code) {
			return apperr.Conflict("code", "product code %q already exists", p.Code)
		}
	}
	p.Version = current.Version + 1
	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = time.Now().UTC()
	m.products[p.ID] = *p
	return nil
}

func (m *MemoryRepository) DeleteProduct(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return apperr.NotFound("product", id.String())
	}
	delete(m.products, id)
	return nil
}

// ── Shop ─────────────────────────────────────────────────────────────────────

func (m *MemoryRepository) CreateShop(_ context.Context, s *Shop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.shops {
		if strings.EqualFold(existing.Code, s.Code) {
			return apperr.Conflict("code", "shop code %q already exists", s.Code)
		}
	}
	now := time.Now().UTC()
	s.Version, s.CreatedAt, s.UpdatedAt = 1, now, now
	m.shops[s.ID] = *s
	return nil
}

func (m *MemoryRepository) GetShop(_ context.Context, id uuid.UUID) (*Shop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.shops[id]
	if !ok {
		return nil, apperr.NotFound("shop", id.String())
	}
	return &s, nil
}

func (m *MemoryRepository) ListShops(_ context.Context) ([]*Shop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Shop, 0, len(m.shops))
	for _, s := range m.shops {
		s := s
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *MemoryRepository) UpdateShop(_ context.Context, s *Shop, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.shops[s.ID]
	if !ok {
		return apperr.NotFound("shop", s.ID.String())
	}
	if current.Version != expectedVersion {
		return apperr.ConcurrencyConflict("shop", s.ID.String())
	}
	for id, existing := range m.shops {
		if id != s.ID && strings.EqualFold(existing.Code, s.Code) {
			return apperr.Conflict("code", "shop code %q already exists", s.Code)
		}
	}
	s.Version = current.Version + 1
	s.CreatedAt = current.CreatedAt
	s.UpdatedAt = time.Now().UTC()
	m.shops[s.ID] = *s
	return nil
}

func (m *MemoryRepository) DeleteShop(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.shops[id]; !ok {
		return apperr.NotFound("shop", id.String())
	}
	delete(m.shops, id)
	return nil
}

// ── Employee ─────────────────────────────────────────────────────────────────

func (m *MemoryRepository) checkEmployeeUnique(e *Employee) error {
	for id, existing := range m.employees {
		if id == e.ID {
			continue
		}
		if strings.EqualFold(existing.Code, e.Code) {
			return apperr.Conflict("code", "employee code %q already exists", e.Code)
		}
		if strings.EqualFold(existing.Username, e.Username) {
			return apperr.Conflict("username", "username %q already exists", e.Username)
		}
	}
	return nil
}

func (m *MemoryRepository) checkShopExists(shopID *uuid.UUID) error {
	if shopID == nil {
		return nil
	}
	if _, ok := m.shops[*shopID]; !ok {
		return apperr.NotFound("shop", shopID.String())
	}
	return nil
}

func (m *MemoryRepository) CreateEmployee(_ context.Context, e *Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkEmployeeUnique(e); err != nil {
		return err
	}
	if err := m.checkShopExists(e.ShopID); err != nil {
		return err
	}
	now := time.Now().UTC()
	e.Version, e.CreatedAt, e.UpdatedAt = 1, now, now
	m.employees[e.ID] = copyEmployee(*e)
	return nil
}

func (m *MemoryRepository) GetEmployee(_ context.Context, id uuid.UUID) (*Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return nil, apperr.NotFound("employee", id.String())
	}
	out := copyEmployee(e)
	return &out, nil
}

func (m *MemoryRepository) GetEmployeeByUsername(_ context.Context, username string) (*Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.employees {
		if strings.EqualFold(e.Username, username) {
			out := copyEmployee(e)
			return &out, nil
		}
	}
	return nil, apperr.NotFound("employee", username)
}

func (m *MemoryRepository) ListEmployees(_ context.Context) ([]*Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Employee, 0, len(m.employees))
	for _, e := range m.employees {
		e := copyEmployee(e)
		out = append(out, &e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *MemoryRepository) UpdateEmployee(_ context.Context, e *Employee, expectedVersion int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.employees[e.ID]
	if !ok {
		return apperr.NotFound("employee", e.ID.String())
	}
	if current.Version != expectedVersion {
		return apperr.ConcurrencyConflict("employee", e.ID.String())
	}
	if err := m.checkEmployeeUnique(e); err != nil {
		return err
	}
	if err := m.checkShopExists(e.ShopID); err != nil {
		return err
	}
	e.Version = current.Version + 1
	e.CreatedAt = current.CreatedAt
	e.UpdatedAt = time.Now().UTC()
	m.employees[e.ID] = copyEmployee(*e)
	return nil
}

func (m *MemoryRepository) DeleteEmployee(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.employees[id]; !ok {
		return apperr.NotFound("employee", id.String())
	}
	delete(m.employees, id)
	return nil
}

func (m *MemoryRepository) CountEmployeesInShop(_ context.Context, shopID uuid.UUID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, e := range m.employees {
		if e.ShopID != nil && *e.ShopID == shopID {
			n++
		}
	}
	return n, nil
}

func copyEmployee(e Employee) Employee {
	if e.ShopID != nil {
		id := *e.ShopID
		e.ShopID = &id
	}
	return e
}
