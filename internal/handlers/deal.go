package handlers

import (
	"net/http"

	"github.com/diewo77/medcrm/httpx"
	"github.com/diewo77/medcrm/internal/models"
	"github.com/diewo77/medcrm/internal/query"
	"github.com/diewo77/medcrm/internal/services"
)

type DealHandler struct {
	svc *services.DealService
}

func NewDealHandler(svc *services.DealService) *DealHandler {
	return &DealHandler{svc: svc}
}

func (h *DealHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/deals", h.List)
	mux.HandleFunc("POST /api/deals", h.Create)
	mux.HandleFunc("GET /api/deals/{id}", h.Get)
	mux.HandleFunc("PUT /api/deals/{id}", h.Update)
	mux.HandleFunc("DELETE /api/deals/{id}", h.Delete)
	mux.HandleFunc("POST /api/deals/{id}/stage", h.MoveStage)
	mux.HandleFunc("GET /api/deals/{id}/history", h.History)
	mux.HandleFunc("GET /api/pipeline", h.Pipeline)
}

// List filters with ?q= and ?stage=, sorts with ?sort=&order= and handles
// deals of deleted customers per ?orphans=.
func (h *DealHandler) List(w http.ResponseWriter, r *http.Request) {
	field, order := sortParams(r)
	q := r.URL.Query()
	deals, err := h.svc.Query(r.Context(), query.DealQuery{
		SearchText: q.Get("q"),
		Stage:      q.Get("stage"),
		SortField:  field,
		SortOrder:  order,
		Orphans:    query.OrphanPolicy(q.Get("orphans")),
	})
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, deals)
}

func (h *DealHandler) Get(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *DealHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in models.Deal
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, err)
		return
	}
	d, err := h.svc.Create(r.Context(), in)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *DealHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in models.Deal
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, err)
		return
	}
	d, err := h.svc.Update(r.Context(), r.PathValue("id"), in, actor(r))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *DealHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		httpx.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type moveStageRequest struct {
	Stage models.Stage `json:"stage"`
}

func (h *DealHandler) MoveStage(w http.ResponseWriter, r *http.Request) {
	var in moveStageRequest
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, err)
		return
	}
	d, err := h.svc.MoveStage(r.Context(), r.PathValue("id"), in.Stage, actor(r))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *DealHandler) History(w http.ResponseWriter, r *http.Request) {
	changes, err := h.svc.StageHistory(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, changes)
}

func (h *DealHandler) Pipeline(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Pipeline(r.Context())
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}
