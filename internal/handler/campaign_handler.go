package handler

import (
	"net/http"

	"vcf-drop/internal/domain"
	"vcf-drop/internal/service"
	"vcf-drop/pkg/errors"
	"vcf-drop/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// CampaignHandler serves the public landing-page endpoints
type CampaignHandler struct {
	campaign service.CampaignService
	logger   *logger.Logger
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(campaign service.CampaignService, logger *logger.Logger) *CampaignHandler {
	return &CampaignHandler{campaign: campaign, logger: logger}
}

// SubmitRequest is the body of POST /api/campaign/submit
type SubmitRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// SubmitData is returned with an accepted submission
type SubmitData struct {
	Contact          domain.Contact    `json:"contact"`
	Group            *domain.GroupLink `json:"group,omitempty"`
	CountdownStarted bool              `json:"countdownStarted"`
}

// RegisterRoutes registers the public campaign routes. submitLimit wraps
// the submit route only.
func (h *CampaignHandler) RegisterRoutes(r chi.Router, submitLimit func(http.Handler) http.Handler) {
	r.Route("/campaign", func(r chi.Router) {
		r.Get("/status", h.Status)
		r.With(orPassthrough(submitLimit)).Post("/submit", h.Submit)
	})
	r.Get("/groups/active", h.ActiveGroup)
}

// Status handles GET /api/campaign/status
func (h *CampaignHandler) Status(w http.ResponseWriter, r *http.Request) {
	status, err := h.campaign.Status(r.Context())
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	respondData(w, http.StatusOK, status)
}

// Submit handles POST /api/campaign/submit
func (h *CampaignHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	decision, err := h.campaign.Submit(r.Context(), req.Name, req.Phone)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	switch decision.Reason {
	case domain.ReasonLocked:
		respondError(w, r, errors.NewRejectionError(decision.Reason.Message(), http.StatusForbidden), h.logger)
		return
	case domain.ReasonDuplicate:
		respondError(w, r, errors.NewRejectionError(decision.Reason.Message(), http.StatusConflict), h.logger)
		return
	}

	data := SubmitData{
		Contact:          *decision.Contact,
		CountdownStarted: decision.CountdownStarted,
	}
	// The contact is stored; a missing group only leaves the link out
	if group, err := h.campaign.ActiveGroup(r.Context()); err == nil {
		data.Group = group
	}

	respondJSON(w, http.StatusCreated, SuccessResponse{
		Success: true,
		Message: service.MessageJoined,
		Data:    data,
	})
}

// ActiveGroup handles GET /api/groups/active
func (h *CampaignHandler) ActiveGroup(w http.ResponseWriter, r *http.Request) {
	group, err := h.campaign.ActiveGroup(r.Context())
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondData(w, http.StatusOK, group)
}
