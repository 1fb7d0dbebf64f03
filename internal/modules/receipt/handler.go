package receipt

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/georgemunganga/shopledger/internal/modules/scope"
	"github.com/georgemunganga/shopledger/internal/platform/httpx"
)

// Handler exposes receipt HTTP endpoints.
type Handler struct {
	service Service
	log     *zap.Logger
}

func NewHandler(service Service, log *zap.Logger) *Handler {
	return &Handler{service: service, log: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/receipts", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.record)
		r.Post("/{id}/reverse", h.reverse)
	})
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	actor, err := scope.FromContext(r.Context())
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	var req RecordRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	v, err := h.service.Record(r.Context(), actor, req)
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
	var f Filter
	if f.ShopID, err = httpx.QueryUUID(r, "shop_id"); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	if f.ProductID, err = httpx.QueryUUID(r, "product_id"); err != nil {
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

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	actor, err := scope.FromContext(r.Context())
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	id, err := httpx.UUIDParam(r, "id")
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	var req ReverseRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	v, err := h.service.Reverse(r.Context(), actor, id, req)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, v)
}
