package handlers

import (
	"net/http"

	"github.com/diewo77/medcrm/httpx"
	"github.com/diewo77/medcrm/internal/models"
	"github.com/diewo77/medcrm/internal/query"
	"github.com/diewo77/medcrm/internal/services"
)

type ProductHandler struct {
	svc *services.ProductService
}

func NewProductHandler(svc *services.ProductService) *ProductHandler {
	return &ProductHandler{svc: svc}
}

func (h *ProductHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products", h.List)
	mux.HandleFunc("POST /api/products", h.Create)
	mux.HandleFunc("GET /api/products/{id}", h.View)
	mux.HandleFunc("PUT /api/products/{id}", h.Update)
	mux.HandleFunc("DELETE /api/products/{id}", h.Delete)
	mux.HandleFunc("GET /api/products/{id}/quote", h.Quote)
}

// List filters with ?q=, ?category= and ?low_stock=, and sorts with
// ?sort=&order=.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	lowStock, err := boolParam(r, "low_stock")
	if err != nil {
		httpx.Error(w, err)
		return
	}
	field, order := sortParams(r)
	q := r.URL.Query()
	products, err := h.svc.Query(r.Context(), query.ProductQuery{
		SearchText: q.Get("q"),
		Category:   q.Get("category"),
		LowStock:   lowStock,
		SortField:  field,
		SortOrder:  order,
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *ProductHandler) View(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.Product
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, err)
		return
	}
	p, err := h.svc.Create(r.Context(), in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in models.Product
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, err)
		return
	}
	p, err := h.svc.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		httpx.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Quote prices ?quantity= units, defaulting to one.
func (h *ProductHandler) Quote(w http.ResponseWriter, r *http.Request) {
	qty, err := intParam(r, "quantity", 1)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	q, err := h.svc.Quote(r.Context(), r.PathValue("id"), qty)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, q)
}
