package handlers

import (
	"net/http"

	"github.com/diewo77/medcrm/httpx"
	"github.com/diewo77/medcrm/internal/models"
	"github.com/diewo77/medcrm/internal/services"
)

// actions maps the verb in /actions/{action} to the recorded action.
var actions = map[string]string{
	"submit":    services.ActionSubmit,
	"send":      services.ActionSend,
	"negotiate": services.ActionNegotiate,
	"accept":    services.ActionAccept,
	"reject":    services.ActionReject,
	"expire":    services.ActionExpire,
}

type ProposalHandler struct {
	svc *services.ProposalService
}

func NewProposalHandler(svc *services.ProposalService) *ProposalHandler {
	return &ProposalHandler{svc: svc}
}

func (h *ProposalHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/proposals", h.List)
	mux.HandleFunc("POST /api/proposals", h.Create)
	mux.HandleFunc("POST /api/proposals/expire", h.ExpireOverdue)
	mux.HandleFunc("GET /api/proposals/{id}", h.Get)
	mux.HandleFunc("DELETE /api/proposals/{id}", h.Delete)
	mux.HandleFunc("POST /api/proposals/{id}/items", h.AddItem)
	mux.HandleFunc("DELETE /api/proposals/{id}/items/{item}", h.RemoveItem)
	mux.HandleFunc("PUT /api/proposals/{id}/discount", h.SetDiscount)
	mux.HandleFunc("POST /api/proposals/{id}/actions/{action}", h.Action)
}

// List returns every proposal, or those of ?deal_id=.
func (h *ProposalHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.svc.List(r.Context(), r.URL.Query().Get("deal_id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *ProposalHandler) Get(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *ProposalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in services.ProposalInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, err)
		return
	}
	v, err := h.svc.Create(r.Context(), in, actor(r))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, v)
}

func (h *ProposalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue("id")); err != nil {
		httpx.Error(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProposalHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var in services.ItemInput
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, err)
		return
	}
	v, err := h.svc.AddItem(r.Context(), r.PathValue("id"), in, actor(r))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *ProposalHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.RemoveItem(r.Context(), r.PathValue("id"), r.PathValue("item"), actor(r))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

type discountRequest struct {
	Amount models.Money `json:"amount"`
}

func (h *ProposalHandler) SetDiscount(w http.ResponseWriter, r *http.Request) {
	var in discountRequest
	if err := httpx.Decode(r, &in); err != nil {
		httpx.Error(w, err)
		return
	}
	v, err := h.svc.SetDiscount(r.Context(), r.PathValue("id"), in.Amount, actor(r))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

// Action applies submit, send, negotiate, accept, reject or expire.
func (h *ProposalHandler) Action(w http.ResponseWriter, r *http.Request) {
	action, ok := actions[r.PathValue("action")]
	if !ok {
		httpx.Error(w, httpx.BadRequest("unknown proposal action %q", r.PathValue("action")))
		return
	}
	v, err := h.svc.Apply(r.Context(), r.PathValue("id"), action, actor(r))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *ProposalHandler) ExpireOverdue(w http.ResponseWriter, r *http.Request) {
	ids, err := h.svc.ExpireOverdue(r.Context(), actor(r))
	if err != nil {
		httpx.Error(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	httpx.JSON(w, http.StatusOK, map[string][]string{"expired": ids})
}
