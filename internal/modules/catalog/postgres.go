package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/georgemunganga/shopledger/internal/platform/apperr"
	"github.com/georgemunganga/shopledger/internal/platform/database"
)

type postgresRepo struct{ db *sql.DB }

// NewPostgresRepository creates a PostgreSQL catalog repository.
func NewPostgresRepository(db *sql.DB) Repository { return &postgresRepo{db: db} }

// ── Product ──────────────────────────────────────────────────────────────────

const productColumns = `id,code,name,category,cost_price,selling_price,reorder_level,version,created_at,updated_at`

func scanProduct(scan func(...interface{}) error) (*Product, error) {
	p := &Product{}
	err := scan(&p.ID, &p.Code, &p.Name, &p.Category, &p.CostPrice, &p.SellingPrice,
		&p.ReorderLevel, &p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *postgresRepo) CreateProduct(ctx context.Context, p *Product) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO products (id,code,name,category,cost_price,selling_price,reorder_level)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING version, created_at, updated_at`,
		p.ID, p.Code, p.Name, p.Category, p.CostPrice, p.SellingPrice, p.ReorderLevel).
		Scan(&p.Version, &p.CreatedAt, &p.UpdatedAt)
	return database.TranslateError(err, "create product")
}

func (r *postgresRepo) GetProduct(ctx context.Context, id uuid.UUID) (*Product, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, id)
	p, err := scanProduct(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("product", id.String())
	}
	return p, database.TranslateError(err, "get product")
}

func (r *postgresRepo) ListProducts(ctx context.Context, filter ProductFilter) ([]*Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	args := []interface{}{}
	n := 1
	if filter.Category != "" {
		query += fmt.Sprintf(` AND category=$%d`, n)
		args = append(args, filter.Category)
		n++
	}
	if filter.Name != "" {
		query += fmt.Sprintf(` AND name ILIKE $%d`, n)
		args = append(args, "%"+escapeLike(filter.Name)+"%")
		n++
	}
	query += ` ORDER BY code ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, database.TranslateError(err, "list products")
	}
	defer rows.Close()

	var products []*Product
	for rows.Next() {
		p, err := scanProduct(rows.Scan)
		if err != nil {
			return nil, database.TranslateError(err, "scan product")
		}
		products = append(products, p)
	}
	return products, database.TranslateError(rows.Err(), "list products")
}

func (r *postgresRepo) UpdateProduct(ctx context.Context, p *Product, expectedVersion int) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET code=$1, name=$2, category=$3, cost_price=$4, selling_price=$5,
		    reorder_level=$6, version=version+1, updated_at=NOW()
		WHERE id=$7 AND version=$8
		RETURNING version, updated_at`,
		p.Code, p.Name, p.Category, p.CostPrice, p.SellingPrice, p.ReorderLevel,
		p.ID, expectedVersion).Scan(&p.Version, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return r.missingOrStale(ctx, "products", "product", p.ID)
	}
	return database.TranslateError(err, "update product")
}

func (r *postgresRepo) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	return r.delete(ctx, "products", "product", id)
}

// ── Shop ─────────────────────────────────────────────────────────────────────

const shopColumns = `id,code,name,manager,version,created_at,updated_at`

func scanShop(scan func(...interface{}) error) (*Shop, error) {
	s := &Shop{}
	if err := scan(&s.ID, &s.Code, &s.Name, &s.Manager, &s.Version, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return s, nil
}

func (r *postgresRepo) CreateShop(ctx context.Context, s *Shop) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO shops (id,code,name,manager) VALUES ($1,$2,$3,$4)
		RETURNING version, created_at, updated_at`,
		s.ID, s.Code, s.Name, s.Manager).Scan(&s.Version, &s.CreatedAt, &s.UpdatedAt)
	return database.TranslateError(err, "create shop")
}

func (r *postgresRepo) GetShop(ctx context.Context, id uuid.UUID) (*Shop, error) {
	s, err := scanShop(r.db.QueryRowContext(ctx, `SELECT `+shopColumns+` FROM shops WHERE id=$1`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("shop", id.String())
	}
	return s, database.TranslateError(err, "get shop")
}

func (r *postgresRepo) ListShops(ctx context.Context) ([]*Shop, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+shopColumns+` FROM shops ORDER BY code ASC`)
	if err != nil {
		return nil, database.TranslateError(err, "list shops")
	}
	defer rows.Close()

	var shops []*Shop
	for rows.Next() {
		s, err := scanShop(rows.Scan)
		if err != nil {
			return nil, database.TranslateError(err, "scan shop")
		}
		shops = append(shops, s)
	}
	return shops, database.TranslateError(rows.Err(), "list shops")
}

func (r *postgresRepo) UpdateShop(ctx context.Context, s *Shop, expectedVersion int) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE shops SET code=$1, name=$2, manager=$3, version=version+1, updated_at=NOW()
		WHERE id=$4 AND version=$5
		RETURNING version, updated_at`,
		s.Code, s.Name, s.Manager, s.ID, expectedVersion).Scan(&s.Version, &s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return r.missingOrStale(ctx, "shops", "shop", s.ID)
	}
	return database.TranslateError(err, "update shop")
}

func (r *postgresRepo) DeleteShop(ctx context.Context, id uuid.UUID) error {
	return r.delete(ctx, "shops", "shop", id)
}

// ── Employee ─────────────────────────────────────────────────────────────────

const employeeColumns = `id,code,name,role,shop_id,contact,username,password_hash,version,created_at,updated_at`

func scanEmployee(scan func(...interface{}) error) (*Employee, error) {
	e := &Employee{}
	var shopID uuid.NullUUID
	err := scan(&e.ID, &e.Code, &e.Name, &e.Role, &shopID, &e.Contact, &e.Username,
		&e.PasswordHash, &e.Version, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if shopID.Valid {
		id := shopID.UUID
		e.ShopID = &id
	}
	return e, nil
}

func (r *postgresRepo) CreateEmployee(ctx context.Context, e *Employee) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO employees (id,code,name,role,shop_id,contact,username,password_hash)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING version, created_at, updated_at`,
		e.ID, e.Code, e.Name, e.Role, nullableUUID(e.ShopID), e.Contact, e.Username, e.PasswordHash).
		Scan(&e.Version, &e.CreatedAt, &e.UpdatedAt)
	return database.TranslateError(err, "create employee")
}

func (r *postgresRepo) GetEmployee(ctx context.Context, id uuid.UUID) (*Employee, error) {
	e, err := scanEmployee(r.db.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE id=$1`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("employee", id.String())
	}
	return e, database.TranslateError(err, "get employee")
}

func (r *postgresRepo) GetEmployeeByUsername(ctx context.Context, username string) (*Employee, error) {
	e, err := scanEmployee(r.db.QueryRowContext(ctx,
		`SELECT `+employeeColumns+` FROM employees WHERE lower(username)=lower($1)`, username).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("employee", username)
	}
	return e, database.TranslateError(err, "get employee by username")
}

func (r *postgresRepo) ListEmployees(ctx context.Context) ([]*Employee, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+employeeColumns+` FROM employees ORDER BY code ASC`)
	if err != nil {
		return nil, database.TranslateError(err, "list employees")
	}
	defer rows.Close()

	var employees []*Employee
	for rows.Next() {
		e, err := scanEmployee(rows.Scan)
		if err != nil {
			return nil, database.TranslateError(err, "scan employee")
		}
		employees = append(employees, e)
	}
	return employees, database.TranslateError(rows.Err(), "list employees")
}

func (r *postgresRepo) UpdateEmployee(ctx context.Context, e *Employee, expectedVersion int) error {
	err := r.db.QueryRowContext(ctx, `
		UPDATE employees
		SET code=$1, name=$2, role=$3, shop_id=$4, contact=$5, username=$6, password_hash=$7,
		    version=version+1, updated_at=NOW()
		WHERE id=$8 AND version=$9
		RETURNING version, updated_at`,
		e.Code, e.Name, e.Role, nullableUUID(e.ShopID), e.Contact, e.Username, e.PasswordHash,
		e.ID, expectedVersion).Scan(&e.Version, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return r.missingOrStale(ctx, "employees", "employee", e.ID)
	}
	return database.TranslateError(err, "update employee")
}

func (r *postgresRepo) DeleteEmployee(ctx context.Context, id uuid.UUID) error {
	return r.delete(ctx, "employees", "employee", id)
}

func (r *postgresRepo) CountEmployeesInShop(ctx context.Context, shopID uuid.UUID) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM employees WHERE shop_id=$1`, shopID).Scan(&n)
	return n, database.TranslateError(err, "count shop employees")
}

// ── helpers ──────────────────────────────────────────────────────────────────

// missingOrStale distinguishes a missing row from a version mismatch after an
// optimistic update matched nothing.
func (r *postgresRepo) missingOrStale(ctx context.Context, table, entity string, id uuid.UUID) error {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM `+table+` WHERE id=$1)`, id).Scan(&exists)
	if err != nil {
		return database.TranslateError(err, "check "+entity)
	}
	if !exists {
		return apperr.NotFound(entity, id.String())
	}
	return apperr.ConcurrencyConflict(entity, id.String())
}

func (r *postgresRepo) delete(ctx context.Context, table, entity string, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM `+table+` WHERE id=$1`, id)
	if err != nil {
		return database.TranslateError(err, "delete "+entity)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return apperr.NotFound(entity, id.String())
	}
	return nil
}

func nullableUUID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
