package sales

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/georgemunganga/shopledger/internal/modules/scope"
	"github.com/georgemunganga/shopledger/internal/platform/httpx"
)

// Handler exposes ticket HTTP endpoints.
type Handler struct {
	service Service
	log     *zap.Logger
}

func NewHandler(service Service, log *zap.Logger) *Handler {
	return &Handler{service: service, log: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/tickets", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.compose)
		r.Get("/{code}", h.get)
	})
}

func (h *Handler) compose(w http.ResponseWriter, r *http.Request) {
	actor, err := scope.FromContext(r.Context())
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	var req ComposeRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	v, err := h.service.Compose(r.Context(), actor, req)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, v)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, err := scope.FromContext(r.Context())
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	f := Filter{ProductName: r.URL.Query().Get("product")}
	if f.ShopID, err = httpx.QueryUUID(r, "shop_id"); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	if f.EmployeeID, err = httpx.QueryUUID(r, "employee_id"); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	if f.From, err = httpx.QueryDate(r, "from"); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	if f.To, err = httpx.QueryDate(r, "to"); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	views, err := h.service.List(r.Context(), actor, f)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Respond(w, http.StatusOK, views)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	actor, err := scope.FromContext(r.Context())
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	v, err := h.service.Get(r.Context(), actor, chi.URLParam(r, "code"))
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Respond(w, http.StatusOK, v)
}
