package catalog

import (
	"context"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/georgemunganga/shopledger/internal/modules/scope"
	"github.com/georgemunganga/shopledger/internal/platform/apperr"
)

const minPasswordLength = 8

// Service defines catalog business logic. Every mutation is owner-only; the
// product picker is open to any resolved scope.
type Service interface {
	CreateProduct(ctx context.Context, actor scope.Scope, req CreateProductRequest) (*Product, error)
	GetProduct(ctx context.Context, actor scope.Scope, id uuid.UUID) (*Product, error)
	ListProducts(ctx context.Context, actor scope.Scope, filter ProductFilter) ([]*Product, error)
	ListProductsForSale(ctx context.Context, actor scope.Scope, filter ProductFilter) ([]*ProductForSale, error)
	UpdateProduct(ctx context.Context, actor scope.Scope, id uuid.UUID, req UpdateProductRequest) (*Product, error)
	DeleteProduct(ctx context.Context, actor scope.Scope, id uuid.UUID) error

	CreateShop(ctx context.Context, actor scope.Scope, req CreateShopRequest) (*Shop, error)
	GetShop(ctx context.Context, actor scope.Scope, id uuid.UUID) (*Shop, error)
	ListShops(ctx context.Context, actor scope.Scope) ([]*Shop, error)
	UpdateShop(ctx context.Context, actor scope.Scope, id uuid.UUID, req UpdateShopRequest) (*Shop, error)
	DeleteShop(ctx context.Context, actor scope.Scope, id uuid.UUID) error

	CreateEmployee(ctx context.Context, actor scope.Scope, req CreateEmployeeRequest) (*Employee, error)
	GetEmployee(ctx context.Context, actor scope.Scope, id uuid.UUID) (*Employee, error)
	ListEmployees(ctx context.Context, actor scope.Scope) ([]*Employee, error)
	UpdateEmployee(ctx context.Context, actor scope.Scope, id uuid.UUID, req UpdateEmployeeRequest) (*Employee, error)
	DeleteEmployee(ctx context.Context, actor scope.Scope, id uuid.UUID) error

	// BootstrapOwner creates an owner account unless username is already taken.
	// It reports whether a record was created.
	BootstrapOwner(ctx context.Context, username, password string) (bool, error)
}

type service struct {
	repo Repository
	refs ReferenceChecker
	log  *zap.Logger
}

// NewService creates a catalog service. refs is consulted before any delete.
func NewService(repo Repository, refs ReferenceChecker, log *zap.Logger) Service {
	return &service{repo: repo, refs: refs, log: log.Named("catalog")}
}

func (s *service) requireOwner(actor scope.Scope, op string) error {
	return scope.Audit(s.log, actor, op, actor.RequireOwner(op))
}

// ── Product ──────────────────────────────────────────────────────────────────

func (s *service) CreateProduct(ctx context.Context, actor scope.Scope, req CreateProductRequest) (*Product, error) {
	if err := s.requireOwner(actor, "create product"); err != nil {
		return nil, err
	}
	p := &Product{
		ID:           uuid.New(),
		Code:         strings.TrimSpace(req.Code),
		Name:         strings.TrimSpace(req.Name),
		Category:     strings.TrimSpace(req.Category),
		CostPrice:    req.CostPrice,
		SellingPrice: req.SellingPrice,
		ReorderLevel: req.ReorderLevel,
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	if err := s.repo.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	s.log.Info("product created", zap.String("product_id", p.ID.String()), zap.String("code", p.Code))
	return p, nil
}

func (s *service) GetProduct(ctx context.Context, actor scope.Scope, id uuid.UUID) (*Product, error) {
	if err := s.requireOwner(actor, "get product"); err != nil {
		return nil, err
	}
	return s.repo.GetProduct(ctx, id)
}

func (s *service) ListProducts(ctx context.Context, actor scope.Scope, filter ProductFilter) ([]*Product, error) {
	if err := s.requireOwner(actor, "list products"); err != nil {
		return nil, err
	}
	return s.repo.ListProducts(ctx, filter)
}

func (s *service) ListProductsForSale(ctx context.Context, actor scope.Scope, filter ProductFilter) ([]*ProductForSale, error) {
	if !actor.Valid() {
		return nil, apperr.Authorization("caller has no usable scope")
	}
	products, err := s.repo.ListProducts(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]*ProductForSale, 0, len(products))
	for _, p := range products {
		out = append(out, &ProductForSale{
			ID:           p.ID,
			Code:         p.Code,
			Name:         p.Name,
			Category:     p.Category,
			SellingPrice: p.SellingPrice,
		})
	}
	return out, nil
}

func (s *service) UpdateProduct(ctx context.Context, actor scope.Scope, id uuid.UUID, req UpdateProductRequest) (*Product, error) {
	if err := s.requireOwner(actor, "update product"); err != nil {
		return nil, err
	}
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Code != nil {
		p.Code = strings.TrimSpace(*req.Code)
	}
	if req.Name != nil {
		p.Name = strings.TrimSpace(*req.Name)
	}
	if req.Category != nil {
		p.Category = strings.TrimSpace(*req.Category)
	}
	if req.CostPrice != nil {
		p.CostPrice = *req.CostPrice
	}
	if req.SellingPrice != nil {
		p.SellingPrice = *req.SellingPrice
	}
	if req.ReorderLevel != nil {
		p.ReorderLevel = *req.ReorderLevel
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateProduct(ctx, p, req.Version); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) DeleteProduct(ctx context.Context, actor scope.Scope, id uuid.UUID) error {
	if err := s.requireOwner(actor, "delete product"); err != nil {
		return err
	}
	if _, err := s.repo.GetProduct(ctx, id); err != nil {
		return err
	}
	referenced, err := s.refs.ProductReferenced(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return apperr.ReferentialConflict("product %s is referenced by receipts or tickets", id)
	}
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.log.Info("product deleted", zap.String("product_id", id.String()))
	return nil
}

func validateProduct(p *Product) error {
	switch {
	case p.Code == "":
		return apperr.Validation("code", "is required")
	case p.Name == "":
		return apperr.Validation("name", "is required")
	case p.CostPrice.IsNegative():
		return apperr.Validation("cost_price", "must not be negative")
	case p.SellingPrice.IsNegative():
		return apperr.Validation("selling_price", "must not be negative")
	case p.ReorderLevel < 0:
		return apperr.Validation("reorder_level", "must not be negative")
	}
	p.CostPrice = p.CostPrice.Round(2)
	p.SellingPrice = p.SellingPrice.Round(2)
	return nil
}

// ── Shop ─────────────────────────────────────────────────────────────────────

func (s *service) CreateShop(ctx context.Context, actor scope.Scope, req CreateShopRequest) (*Shop, error) {
	if err := s.requireOwner(actor, "create shop"); err != nil {
		return nil, err
	}
	shop := &Shop{
		ID:      uuid.New(),
		Code:    strings.TrimSpace(req.Code),
		Name:    strings.TrimSpace(req.Name),
		Manager: strings.TrimSpace(req.Manager),
	}
	if err := validateShop(shop); err != nil {
		return nil, err
	}
	if err := s.repo.CreateShop(ctx, shop); err != nil {
		return nil, err
	}
	s.log.Info("shop created", zap.String("shop_id", shop.ID.String()), zap.String("code", shop.Code))
	return shop, nil
}

func (s *service) GetShop(ctx context.Context, actor scope.Scope, id uuid.UUID) (*Shop, error) {
	if err := s.requireOwner(actor, "get shop"); err != nil {
		return nil, err
	}
	return s.repo.GetShop(ctx, id)
}

func (s *service) ListShops(ctx context.Context, actor scope.Scope) ([]*Shop, error) {
	if err := s.requireOwner(actor, "list shops"); err != nil {
		return nil, err
	}
	return s.repo.ListShops(ctx)
}

func (s *service) UpdateShop(ctx context.Context, actor scope.Scope, id uuid.UUID, req UpdateShopRequest) (*Shop, error) {
	if err := s.requireOwner(actor, "update shop"); err != nil {
		return nil, err
	}
	shop, err := s.repo.GetShop(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Code != nil {
		shop.Code = strings.TrimSpace(*req.Code)
	}
	if req.Name != nil {
		shop.Name = strings.TrimSpace(*req.Name)
	}
	if req.Manager != nil {
		shop.Manager = strings.TrimSpace(*req.Manager)
	}
	if err := validateShop(shop); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateShop(ctx, shop, req.Version); err != nil {
		return nil, err
	}
	return shop, nil
}

func (s *service) DeleteShop(ctx context.Context, actor scope.Scope, id uuid.UUID) error {
	if err := s.requireOwner(actor, "delete shop"); err != nil {
		return err
	}
	if _, err := s.repo.GetShop(ctx, id); err != nil {
		return err
	}
	referenced, err := s.refs.ShopReferenced(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return apperr.ReferentialConflict("shop %s is referenced by receipts or tickets", id)
	}
	staff, err := s.repo.CountEmployeesInShop(ctx, id)
	if err != nil {
		return err
	}
	if staff > 0 {
		return apperr.ReferentialConflict("shop %s still has %d bound employees", id, staff)
	}
	if err := s.repo.DeleteShop(ctx, id); err != nil {
		return err
	}
	s.log.Info("shop deleted", zap.String("shop_id", id.String()))
	return nil
}

func validateShop(shop *Shop) error {
	if shop.Code == "" {
		return apperr.Validation("code", "is required")
	}
	if shop.Name == "" {
		return apperr.Validation("name", "is required")
	}
	return nil
}

// ── Employee ─────────────────────────────────────────────────────────────────

func (s *service) CreateEmployee(ctx context.Context, actor scope.Scope, req CreateEmployeeRequest) (*Employee, error) {
	if err := s.requireOwner(actor, "create employee"); err != nil {
		return nil, err
	}
	e := &Employee{
		ID:       uuid.New(),
		Code:     strings.TrimSpace(req.Code),
		Name:     strings.TrimSpace(req.Name),
		Role:     scope.Role(strings.ToLower(strings.TrimSpace(req.Role))),
		Contact:  strings.TrimSpace(req.Contact),
		Username: strings.TrimSpace(req.Username),
	}
	shopID, err := parseShopID(req.ShopID)
	if err != nil {
		return nil, err
	}
	e.ShopID = shopID
	if err := s.validateEmployee(ctx, e); err != nil {
		return nil, err
	}
	if e.PasswordHash, err = hashPassword(req.Password); err != nil {
		return nil, err
	}
	if err := s.repo.CreateEmployee(ctx, e); err != nil {
		return nil, err
	}
	s.log.Info("employee created",
		zap.String("employee_id", e.ID.String()), zap.String("role", string(e.Role)))
	return e, nil
}

func (s *service) GetEmployee(ctx context.Context, actor scope.Scope, id uuid.UUID) (*Employee, error) {
	if err := s.requireOwner(actor, "get employee"); err != nil {
		return nil, err
	}
	return s.repo.GetEmployee(ctx, id)
}

func (s *service) ListEmployees(ctx context.Context, actor scope.Scope) ([]*Employee, error) {
	if err := s.requireOwner(actor, "list employees"); err != nil {
		return nil, err
	}
	return s.repo.ListEmployees(ctx)
}

func (s *service) UpdateEmployee(ctx context.Context, actor scope.Scope, id uuid.UUID, req UpdateEmployeeRequest) (*Employee, error) {
	if err := s.requireOwner(actor, "update employee"); err != nil {
		return nil, err
	}
	e, err := s.repo.GetEmployee(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Code != nil {
		e.Code = strings.TrimSpace(*req.Code)
	}
	if req.Name != nil {
		e.Name = strings.TrimSpace(*req.Name)
	}
	if req.Role != nil {
		e.Role = scope.Role(strings.ToLower(strings.TrimSpace(*req.Role)))
	}
	if req.ShopID != nil {
		if e.ShopID, err = parseShopID(*req.ShopID); err != nil {
			return nil, err
		}
	}
	if req.Contact != nil {
		e.Contact = strings.TrimSpace(*req.Contact)
	}
	if req.Username != nil {
		e.Username = strings.TrimSpace(*req.Username)
	}
	if err := s.validateEmployee(ctx, e); err != nil {
		return nil, err
	}
	if req.Password != nil {
		if e.PasswordHash, err = hashPassword(*req.Password); err != nil {
			return nil, err
		}
	}
	if err := s.repo.UpdateEmployee(ctx, e, req.Version); err != nil {
		return nil, err
	}
	s.log.Info("employee updated",
		zap.String("employee_id", e.ID.String()), zap.String("role", string(e.Role)))
	return e, nil
}

func (s *service) DeleteEmployee(ctx context.Context, actor scope.Scope, id uuid.UUID) error {
	if err := s.requireOwner(actor, "delete employee"); err != nil {
		return err
	}
	if id == actor.EmployeeID {
		return apperr.Validation("id", "an owner cannot delete their own account")
	}
	if _, err := s.repo.GetEmployee(ctx, id); err != nil {
		return err
	}
	referenced, err := s.refs.EmployeeReferenced(ctx, id)
	if err != nil {
		return err
	}
	if referenced {
		return apperr.ReferentialConflict("employee %s is referenced by receipts or tickets", id)
	}
	if err := s.repo.DeleteEmployee(ctx, id); err != nil {
		return err
	}
	s.log.Info("employee deleted", zap.String("employee_id", id.String()))
	return nil
}

func (s *service) BootstrapOwner(ctx context.Context, username, password string) (bool, error) {
	_, err := s.repo.GetEmployeeByUsername(ctx, username)
	if err == nil {
		return false, nil
	}
	if !apperr.IsKind(err, apperr.KindNotFound) {
		return false, err
	}
	e := &Employee{
		ID:       uuid.New(),
		Code:     "OWNER",
		Name:     "Owner",
		Role:     scope.RoleOwner,
		Username: strings.TrimSpace(username),
	}
	if err := s.validateEmployee(ctx, e); err != nil {
		return false, err
	}
	if e.PasswordHash, err = hashPassword(password); err != nil {
		return false, err
	}
	if err := s.repo.CreateEmployee(ctx, e); err != nil {
		return false, err
	}
	s.log.Info("bootstrap owner created", zap.String("username", e.Username))
	return true, nil
}

// validateEmployee checks the record as it will be stored. Owners are never
// bound to a shop, so any supplied shop is dropped.
func (s *service) validateEmployee(ctx context.Context, e *Employee) error {
	switch {
	case e.Code == "":
		return apperr.Validation("code", "is required")
	case e.Username == "":
		return apperr.Validation("username", "is required")
	case !e.Role.Valid():
		return apperr.Validation("role", "must be %q or %q", scope.RoleOwner, scope.RoleEmployee)
	}
	if addr, err := mail.ParseAddress(e.Username); err != nil || addr.Address != e.Username {
		return apperr.Validation("username", "must be a valid email address")
	}
	if e.Role == scope.RoleOwner {
		e.ShopID = nil
		return nil
	}
	if e.ShopID == nil {
		return apperr.Validation("shop_id", "is required for the employee role")
	}
	if _, err := s.repo.GetShop(ctx, *e.ShopID); err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return apperr.Validation("shop_id", "shop %s does not exist", *e.ShopID)
		}
		return err
	}
	return nil
}

func parseShopID(raw string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperr.Validation("shop_id", "must be a valid UUID")
	}
	return &id, nil
}

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", apperr.Validation("password", "must be at least %d characters", minPasswordLength)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", apperr.Internal(err, "hash password")
	}
	return string(hashed), nil
}
