// Package auth turns credentials into tokens and tokens into actor scopes.
package auth

import (
	"context"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"

	"github.com/georgemunganga/shopledger/internal/modules/scope"
)

// Service defines the interface for authentication-related business logic.
type Service interface {
	// Login checks the credentials and issues a signed token for the principal.
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	// ParseToken verifies a token and returns the employee id it names.
	ParseToken(token string) (uuid.UUID, error)
	// Resolve maps a principal to its current scope. Role and shop binding
	// come from the employee record, never from the token.
	Resolve(ctx context.Context, principal uuid.UUID) (scope.Scope, error)
}

// LoginRequest carries the credentials of a login attempt.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	Role      scope.Role `json:"role"`
	ShopID    *uuid.UUID `json:"shop_id,omitempty"`
}

// Claims are the JWT claims issued at login. Subject holds the employee id.
type Claims struct {
	Role string `json:"role"`
	jwt.StandardClaims
}
