package stock

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/georgemunganga/shopledger/internal/modules/scope"
	"github.com/georgemunganga/shopledger/internal/platform/apperr"
	"github.com/georgemunganga/shopledger/internal/platform/httpx"
)

// Handler exposes the projection over HTTP.
type Handler struct {
	service Service
	log     *zap.Logger
}

func NewHandler(service Service, log *zap.Logger) *Handler {
	return &Handler{service: service, log: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/stock", func(r chi.Router) {
		r.Get("/", h.list)
		r.Get("/summary", h.summary)
		r.Get("/{shop_id}/{product_id}", h.current)
	})
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	actor, err := scope.FromContext(r.Context())
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	shopID, err := httpx.UUIDParam(r, "shop_id")
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	productID, err := httpx.UUIDParam(r, "product_id")
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	level, err := h.service.CurrentStock(r.Context(), actor, shopID, productID)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Respond(w, http.StatusOK, level)
}

// list accepts view=low as well as low=true for the low stock view.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, err := scope.FromContext(r.Context())
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	q := r.URL.Query()
	f := Filter{ProductName: q.Get("product"), LowOnly: q.Get("view") == "low"}
	if f.ShopID, err = httpx.QueryUUID(r, "shop_id"); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	if raw := q.Get("low"); raw != "" {
		low, err := strconv.ParseBool(raw)
		if err != nil {
			httpx.Error(w, h.log, apperr.Validation("low", "must be a boolean"))
			return
		}
		f.LowOnly = f.LowOnly || low
	}
	levels, err := h.service.ListStock(r.Context(), actor, f)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Respond(w, http.StatusOK, levels)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	actor, err := scope.FromContext(r.Context())
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	var f SummaryFilter
	if f.ShopID, err = httpx.QueryUUID(r, "shop_id"); err != nil {
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
	sum, err := h.service.Summary(r.Context(), actor, f)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Respond(w, http.StatusOK, sum)
}
