package handler

import (
	"net/http"
	"strconv"

	"vcf-drop/internal/domain"
	"vcf-drop/internal/export"
	"vcf-drop/internal/middleware"
	"vcf-drop/internal/service"
	"vcf-drop/pkg/errors"
	"vcf-drop/pkg/logger"

	"github.com/go-chi/chi/v5"
)

// AdminHandler serves the admin panel endpoints
type AdminHandler struct {
	campaign service.CampaignService
	auth     service.AdminAuthService
	logger   *logger.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(campaign service.CampaignService, auth service.AdminAuthService, logger *logger.Logger) *AdminHandler {
	return &AdminHandler{campaign: campaign, auth: auth, logger: logger}
}

// LoginRequest is the body of POST /api/admin/login
type LoginRequest struct {
	Credential string `json:"credential"`
}

// TargetRequest is the body of PUT /api/admin/settings/target
type TargetRequest struct {
	TargetCount int `json:"targetCount"`
}

// GroupsRequest is the body of PUT /api/admin/groups
type GroupsRequest struct {
	Groups []domain.GroupLink `json:"groups"`
}

// RegisterRoutes registers the admin routes. Everything except login sits
// behind the bearer token. loginLimit wraps the login route only.
func (h *AdminHandler) RegisterRoutes(r chi.Router, loginLimit func(http.Handler) http.Handler) {
	r.Route("/admin", func(r chi.Router) {
		r.With(orPassthrough(loginLimit)).Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.AdminAuth(h.auth, h.logger))

			r.Get("/dashboard", h.Dashboard)
			r.Get("/contacts", h.Contacts)
			r.Put("/settings/target", h.SetTarget)
			r.Post("/lock", h.Lock)
			r.Post("/unlock", h.Unlock)
			r.Post("/reset", h.Reset)

			r.Get("/groups", h.Groups)
			r.Put("/groups", h.PutGroups)
			r.Post("/groups/{id}/activate", h.ActivateGroup)

			r.Route("/export", func(r chi.Router) {
				r.Get("/", h.ExportManifest)
				r.Get("/all", h.ExportAll)
				r.Get("/batches/{n}", h.ExportBatch)
				r.Get("/overflow", h.ExportOverflow)
			})
		})
	})
}

// Login handles POST /api/admin/login
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	if req.Credential == "" {
		respondError(w, r, errors.NewValidationError("Credential is required", nil), h.logger)
		return
	}

	token, err := h.auth.Login(r.Context(), req.Credential)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondData(w, http.StatusOK, token)
}

// Dashboard handles GET /api/admin/dashboard
func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.campaign.Dashboard(r.Context())
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondData(w, http.StatusOK, dashboard)
}

// Contacts handles GET /api/admin/contacts
func (h *AdminHandler) Contacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.campaign.Contacts(r.Context())
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondData(w, http.StatusOK, contacts)
}

// SetTarget handles PUT /api/admin/settings/target
func (h *AdminHandler) SetTarget(w http.ResponseWriter, r *http.Request) {
	var req TargetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	h.audit(r, "set_target")
	h.respondStatus(w, r, func() (*domain.CampaignStatus, error) {
		return h.campaign.SetTarget(r.Context(), req.TargetCount)
	})
}

// Lock handles POST /api/admin/lock
func (h *AdminHandler) Lock(w http.ResponseWriter, r *http.Request) {
	h.audit(r, "lock")
	h.respondStatus(w, r, func() (*domain.CampaignStatus, error) {
		return h.campaign.Lock(r.Context())
	})
}

// Unlock handles POST /api/admin/unlock
func (h *AdminHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	h.audit(r, "unlock")
	h.respondStatus(w, r, func() (*domain.CampaignStatus, error) {
		return h.campaign.Unlock(r.Context())
	})
}

// Reset handles POST /api/admin/reset
func (h *AdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.audit(r, "reset")
	h.respondStatus(w, r, func() (*domain.CampaignStatus, error) {
		return h.campaign.Reset(r.Context())
	})
}

// Groups handles GET /api/admin/groups
func (h *AdminHandler) Groups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.campaign.Groups(r.Context())
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondData(w, http.StatusOK, groups)
}

// PutGroups handles PUT /api/admin/groups
func (h *AdminHandler) PutGroups(w http.ResponseWriter, r *http.Request) {
	var req GroupsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	if req.Groups == nil {
		respondError(w, r, errors.NewValidationError(service.MessageInvalidGroups, nil), h.logger)
		return
	}

	h.audit(r, "put_groups")
	groups, err := h.campaign.PutGroups(r.Context(), req.Groups)
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondData(w, http.StatusOK, groups)
}

// ActivateGroup handles POST /api/admin/groups/{id}/activate
func (h *AdminHandler) ActivateGroup(w http.ResponseWriter, r *http.Request) {
	h.audit(r, "activate_group")
	groups, err := h.campaign.ActivateGroup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondData(w, http.StatusOK, groups)
}

// ExportManifest handles GET /api/admin/export
func (h *AdminHandler) ExportManifest(w http.ResponseWriter, r *http.Request) {
	files, err := h.campaign.ExportManifest(r.Context())
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondData(w, http.StatusOK, files)
}

// ExportAll handles GET /api/admin/export/all
func (h *AdminHandler) ExportAll(w http.ResponseWriter, r *http.Request) {
	h.respondExport(w, r, func() (*service.Export, error) {
		return h.campaign.ExportAll(r.Context())
	})
}

// ExportBatch handles GET /api/admin/export/batches/{n}
func (h *AdminHandler) ExportBatch(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		respondError(w, r, errors.NewNotFoundError(service.MessageBatchNotFound), h.logger)
		return
	}
	h.respondExport(w, r, func() (*service.Export, error) {
		return h.campaign.ExportBatch(r.Context(), n)
	})
}

// ExportOverflow handles GET /api/admin/export/overflow
func (h *AdminHandler) ExportOverflow(w http.ResponseWriter, r *http.Request) {
	h.respondExport(w, r, func() (*service.Export, error) {
		return h.campaign.ExportOverflow(r.Context())
	})
}

// audit records which admin session asked for a state change
func (h *AdminHandler) audit(r *http.Request, action string) {
	fields := map[string]interface{}{
		"action":     action,
		"request_id": middleware.GetRequestID(r.Context()),
	}
	if claims, ok := middleware.AdminClaimsFrom(r.Context()); ok {
		fields["token_id"] = claims.ID
	}
	h.logger.WithFields(fields).Info("Admin action")
}

func (h *AdminHandler) respondStatus(w http.ResponseWriter, r *http.Request, op func() (*domain.CampaignStatus, error)) {
	status, err := op()
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}
	respondData(w, http.StatusOK, status)
}

func (h *AdminHandler) respondExport(w http.ResponseWriter, r *http.Request, op func() (*service.Export, error)) {
	file, err := op()
	if err != nil {
		respondError(w, r, err, h.logger)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", contentDisposition(file.Filename))
	w.Header().Set("X-Contact-Count", strconv.Itoa(file.Contacts))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(file.Content))

	h.logger.WithFields(map[string]interface{}{
		"file":     file.Filename,
		"contacts": file.Contacts,
	}).Info("Export downloaded")
}
