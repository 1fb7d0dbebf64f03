package auth

import (
	"context"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/georgemunganga/shopledger/internal/modules/catalog"
	"github.com/georgemunganga/shopledger/internal/modules/scope"
	"github.com/georgemunganga/shopledger/internal/platform/apperr"
)

type service struct {
	employees catalog.Repository
	jwtKey    []byte
	ttl       time.Duration
	log       *zap.Logger
}

// NewService creates a new auth service signing tokens with secret.
func NewService(employees catalog.Repository, secret string, ttl time.Duration, log *zap.Logger) Service {
	return &service{employees: employees, jwtKey: []byte(secret), ttl: ttl, log: log.Named("auth")}
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, apperr.Validation("username", "is required")
	}
	if req.Password == "" {
		return nil, apperr.Validation("password", "is required")
	}

	e, err := s.employees.GetEmployeeByUsername(ctx, username)
	if apperr.IsKind(err, apperr.KindNotFound) {
		s.log.Info("login rejected", zap.String("username", username), zap.String("reason", "unknown user"))
		return nil, apperr.Authorization("invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(e.PasswordHash), []byte(req.Password)); err != nil {
		s.log.Info("login rejected", zap.String("username", username), zap.String("reason", "bad password"))
		return nil, apperr.Authorization("invalid credentials")
	}

	// Refuse tokens for accounts that could never resolve to a scope.
	actor, err := scopeFor(e)
	if err != nil {
		return nil, err
	}

	expirationTime := time.Now().Add(s.ttl)
	claims := &Claims{
		Role: string(e.Role),
		StandardClaims: jwt.StandardClaims{
			Subject:   e.ID.String(),
			IssuedAt:  time.Now().Unix(),
			ExpiresAt: expirationTime.Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.jwtKey)
	if err != nil {
		return nil, apperr.Internal(err, "sign token")
	}

	resp := &LoginResponse{Token: tokenString, ExpiresAt: expirationTime.UTC(), Role: actor.Role}
	if actor.ShopID != uuid.Nil {
		shopID := actor.ShopID
		resp.ShopID = &shopID
	}
	s.log.Info("login succeeded", actor.Fields()...)
	return resp, nil
}

func (s *service) ParseToken(tokenString string) (uuid.UUID, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, apperr.Authorization("unexpected signing method %v", t.Header["alg"])
		}
		return s.jwtKey, nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, apperr.Authorization("invalid or expired token")
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, apperr.Authorization("token subject is not an employee id")
	}
	return id, nil
}

// Resolve looks the principal up by its immutable id. Usernames can be
// renamed and reassigned, so they never identify a token holder.
func (s *service) Resolve(ctx context.Context, principal uuid.UUID) (scope.Scope, error) {
	e, err := s.employees.GetEmployee(ctx, principal)
	if apperr.IsKind(err, apperr.KindNotFound) {
		return scope.Scope{}, apperr.Authorization("principal %s is not a known employee", principal)
	}
	if err != nil {
		return scope.Scope{}, err
	}
	return scopeFor(e)
}

func scopeFor(e *catalog.Employee) (scope.Scope, error) {
	switch e.Role {
	case scope.RoleOwner:
		return scope.Owner(e.ID, e.Username), nil
	case scope.RoleEmployee:
		if e.ShopID == nil || *e.ShopID == uuid.Nil {
			return scope.Scope{}, apperr.Authorization("employee %q has no bound shop", e.Username)
		}
		return scope.Employee(e.ID, e.Username, *e.ShopID), nil
	default:
		return scope.Scope{}, apperr.Authorization("employee %q has unrecognized role %q", e.Username, e.Role)
	}
}
