package catalog

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/georgemunganga/shopledger/internal/modules/scope"
	"github.com/georgemunganga/shopledger/internal/platform/httpx"
)

// Handler exposes catalog HTTP endpoints. Routes expect the auth middleware
// to have placed a scope in the request context.
type Handler struct {
	service Service
	log     *zap.Logger
}

func NewHandler(service Service, log *zap.Logger) *Handler {
	return &Handler{service: service, log: log}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/catalog", func(r chi.Router) {
		r.Get("/products", h.listProducts)
		r.Post("/products", h.createProduct)
		r.Get("/products/for-sale", h.listProductsForSale)
		r.Get("/products/{id}", h.getProduct)
		r.Put("/products/{id}", h.updateProduct)
		r.Delete("/products/{id}", h.deleteProduct)

		r.Get("/shops", h.listShops)
		r.Post("/shops", h.createShop)
		r.Get("/shops/{id}", h.getShop)
		r.Put("/shops/{id}", h.updateShop)
		r.Delete("/shops/{id}", h.deleteShop)

		r.Get("/employees", h.listEmployees)
		r.Post("/employees", h.createEmployee)
		r.Get("/employees/{id}", h.getEmployee)
		r.Put("/employees/{id}", h.updateEmployee)
		r.Delete("/employees/{id}", h.deleteEmployee)
	})
}

func productFilter(r *http.Request) ProductFilter {
	q := r.URL.Query()
	return ProductFilter{Category: q.Get("category"), Name: q.Get("name")}
}

// ── Product ──────────────────────────────────────────────────────────────────

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	actor, err := scope.FromContext(r.Context())
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	products, err := h.service.ListProducts(r.Context(), actor, productFilter(r))
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Respond(w, http.StatusOK, products)
}

func (h *Handler) listProductsForSale(w http.ResponseWriter, r *http.Request) {
	actor, err := scope.FromContext(r.Context())
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	products, err := h.service.ListProductsForSale(r.Context(), actor, productFilter(r))
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Respond(w, http.StatusOK, products)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	actor, err := scope.FromContext(r.Context())
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	var req CreateProductRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	p, err := h.service.CreateProduct(r.Context(), actor, req)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, p)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
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
	p, err := h.service.GetProduct(r.Context(), actor, id)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Respond(w, http.StatusOK, p)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
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
	var req UpdateProductRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	p, err := h.service.UpdateProduct(r.Context(), actor, id, req)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Respond(w, http.StatusOK, p)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
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
	if err := h.service.DeleteProduct(r.Context(), actor, id); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Shop ─────────────────────────────────────────────────────────────────────

func (h *Handler) listShops(w http.ResponseWriter, r *http.Request) {
	actor, err := scope.FromContext(r.Context())
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	shops, err := h.service.ListShops(r.Context(), actor)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Respond(w, http.StatusOK, shops)
}

func (h *Handler) createShop(w http.ResponseWriter, r *http.Request) {
	actor, err := scope.FromContext(r.Context())
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	var req CreateShopRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	shop, err := h.service.CreateShop(r.Context(), actor, req)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, shop)
}

func (h *Handler) getShop(w http.ResponseWriter, r *http.Request) {
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
	shop, err := h.service.GetShop(r.Context(), actor, id)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Respond(w, http.StatusOK, shop)
}

func (h *Handler) updateShop(w http.ResponseWriter, r *http.Request) {
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
	var req UpdateShopRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	shop, err := h.service.UpdateShop(r.Context(), actor, id, req)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Respond(w, http.StatusOK, shop)
}

func (h *Handler) deleteShop(w http.ResponseWriter, r *http.Request) {
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
	if err := h.service.DeleteShop(r.Context(), actor, id); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ── Employee ─────────────────────────────────────────────────────────────────

func (h *Handler) listEmployees(w http.ResponseWriter, r *http.Request) {
	actor, err := scope.FromContext(r.Context())
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	employees, err := h.service.ListEmployees(r.Context(), actor)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Respond(w, http.StatusOK, employees)
}

func (h *Handler) createEmployee(w http.ResponseWriter, r *http.Request) {
	actor, err := scope.FromContext(r.Context())
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	var req CreateEmployeeRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	e, err := h.service.CreateEmployee(r.Context(), actor, req)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Respond(w, http.StatusCreated, e)
}

func (h *Handler) getEmployee(w http.ResponseWriter, r *http.Request) {
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
	e, err := h.service.GetEmployee(r.Context(), actor, id)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Respond(w, http.StatusOK, e)
}

func (h *Handler) updateEmployee(w http.ResponseWriter, r *http.Request) {
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
	var req UpdateEmployeeRequest
	if err := httpx.Decode(r, &req); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	e, err := h.service.UpdateEmployee(r.Context(), actor, id, req)
	if err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	httpx.Respond(w, http.StatusOK, e)
}

func (h *Handler) deleteEmployee(w http.ResponseWriter, r *http.Request) {
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
	if err := h.service.DeleteEmployee(r.Context(), actor, id); err != nil {
		httpx.Error(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
