package handlers

import (
	"net/http"

	"github.com/diewo77/medcrm/httpx"
	"github.com/diewo77/medcrm/internal/services"
)

type DashboardHandler struct {
	svc *services.DashboardService
}

func NewDashboardHandler(svc *services.DashboardService) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

func (h *DashboardHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/dashboard", h.Show)
}

// Show returns the overview; ?limit= caps the activity feed.
func (h *DashboardHandler) Show(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", services.DefaultActivityLimit)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	d, err := h.svc.Build(r.Context(), limit)
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, d)
}
