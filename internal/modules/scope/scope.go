// Package scope holds the actor scope threaded through every ledger operation.
//
// A Scope is produced once per request by the auth resolver and passed as an
// explicit parameter; no operation looks up the caller from ambient state.
package scope

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/georgemunganga/shopledger/internal/platform/apperr"
)

// Role is the authorization role of an employee record.
type Role string

const (
	RoleOwner    Role = "owner"
	RoleEmployee Role = "employee"
)

// Valid reports whether r is one of the recognized roles.
func (r Role) Valid() bool { return r == RoleOwner || r == RoleEmployee }

// Scope is the resolved identity of a caller. ShopID is uuid.Nil for owners,
// meaning every shop.
type Scope struct {
	EmployeeID uuid.UUID
	Username   string
	Role       Role
	ShopID     uuid.UUID
}

// Owner builds an unscoped owner actor.
func Owner(employeeID uuid.UUID, username string) Scope {
	return Scope{EmployeeID: employeeID, Username: username, Role: RoleOwner}
}

// Employee builds an actor bound to shopID.
func Employee(employeeID uuid.UUID, username string, shopID uuid.UUID) Scope {
	return Scope{EmployeeID: employeeID, Username: username, Role: RoleEmployee, ShopID: shopID}
}

func (s Scope) IsOwner() bool { return s.Role == RoleOwner }

// Valid reports whether the scope is usable: a known role, and a bound shop for employees.
func (s Scope) Valid() bool {
	switch s.Role {
	case RoleOwner:
		return s.EmployeeID != uuid.Nil
	case RoleEmployee:
		return s.EmployeeID != uuid.Nil && s.ShopID != uuid.Nil
	default:
		return false
	}
}

// Allows reports whether the actor may read or write shopID.
func (s Scope) Allows(shopID uuid.UUID) bool {
	if s.IsOwner() {
		return true
	}
	return s.ShopID != uuid.Nil && s.ShopID == shopID
}

// ShopFilter narrows a requested shop filter to what the actor may see.
// Owners keep their filter (nil = all shops); employees are always pinned to
// their own shop. An employee asking for a foreign shop gets a ScopeViolation.
func (s Scope) ShopFilter(requested *uuid.UUID) (*uuid.UUID, error) {
	if s.IsOwner() {
		return requested, nil
	}
	if requested != nil && *requested != s.ShopID {
		return nil, apperr.ScopeViolation("shop %s is outside the caller's scope", *requested)
	}
	shop := s.ShopID
	return &shop, nil
}

// RequireOwner fails with ScopeViolation for non-owner actors.
func (s Scope) RequireOwner(op string) error {
	if !s.IsOwner() {
		return apperr.ScopeViolation("%s is restricted to owners", op)
	}
	return nil
}

// Fields returns the zap fields describing the actor.
func (s Scope) Fields() []zap.Field {
	fields := []zap.Field{
		zap.String("actor_id", s.EmployeeID.String()),
		zap.String("actor_role", string(s.Role)),
	}
	if s.ShopID != uuid.Nil {
		fields = append(fields, zap.String("actor_shop_id", s.ShopID.String()))
	}
	return fields
}

// Audit logs err as a security event when it is a ScopeViolation and returns it unchanged.
func Audit(log *zap.Logger, s Scope, op string, err error, extra ...zap.Field) error {
	if apperr.IsKind(err, apperr.KindScopeViolation) {
		fields := append(s.Fields(), zap.String("operation", op), zap.Error(err))
		log.Warn("scope violation", append(fields, extra...)...)
	}
	return err
}

type ctxKey struct{}

// NewContext returns a copy of ctx carrying s. Only the auth middleware calls it.
func NewContext(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the scope resolved for the current request, or an
// Authorization error when the request was never authenticated.
func FromContext(ctx context.Context) (Scope, error) {
	s, ok := ctx.Value(ctxKey{}).(Scope)
	if !ok || !s.Valid() {
		return Scope{}, apperr.Authorization("request is not authenticated")
	}
	return s, nil
}
