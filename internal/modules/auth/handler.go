package auth

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/georgemunganga/shopledger/internal/modules/scope"
	"github.com/georgemunganga/shopledger/internal/platform/apperr"
	"github.com/georgemunganga/shopledger/internal/platform/httpx"
)

// Handler exposes the login endpoint.
type Handler struct {
	service Service
	log     *zap.Logger
}

func NewHandler(service Service, log *zap.Logger) *Handler {
	return &Handler{service: service, log: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/v1/auth/login", h.login)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	resp, err := h.service.Login(r.Context(), req)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Respond(w, http.StatusOK, resp)
}

// Middleware authenticates the bearer token, resolves the caller's scope and
// stores it in the request context. Requests that cannot be resolved stop here.
func Middleware(service Service, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				httpx.Error(w, log, apperr.Authorization("missing bearer token"))
				return
			}
			principal, err := service.ParseToken(strings.TrimSpace(token))
			if err != nil {
				httpx.Error(w, log, err)
				return
			}
			actor, err := service.Resolve(r.Context(), principal)
			if err != nil {
				log.Warn("principal could not be resolved", zap.String("principal", principal.String()), zap.Error(err))
				httpx.Error(w, log, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(scope.NewContext(r.Context(), actor)))
		})
	}
}
