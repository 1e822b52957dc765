package handlers

import (
	"net/http"

	"github.com/diewo77/medcrm/httpx"
	"github.com/diewo77/medcrm/internal/models"
	"github.com/diewo77/medcrm/internal/query"
	"github.com/diewo77/medcrm/internal/services"
)

type CustomerHandler struct {
	svc *services.CustomerService
}

func NewCustomerHandler(svc *services.CustomerService) *CustomerHandler {
	return &CustomerHandler{svc: svc}
}

func (h *CustomerHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/customers", h.List)
	mux.HandleFunc("POST /api/customers", h.Create)
	mux.HandleFunc("GET /api/customers/{id}", h.Get)
	mux.HandleFunc("PUT /api/customers/{id}", h.Update)
	mux.HandleFunc("DELETE /api/customers/{id}", h.Delete)
}

// List filters with ?q=, ?type=, ?segment= and sorts with ?sort=&order=.
func (h *CustomerHandler) List(w http.ResponseWriter, r *http.Request) {
	field, order := sortParams(r)
	q := r.URL.Query()
	customers, err := h.svc.Query(r.Context(), query.CustomerQuery{
		SearchText: q.Get("q"),
		Type:       q.Get("type"),
		Segment:    q.Get("segment"),
		SortField:  field,
		SortOrder:  order,
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customers)
}

func (h *CustomerHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *CustomerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.Customer
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, err)
		return
	}
	c, err := h.svc.Create(r.Context(), in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *CustomerHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in models.Customer
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, err)
		return
	}
	c, err := h.svc.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *CustomerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		httpx.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
