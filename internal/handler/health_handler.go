package handler

import (
	"context"
	"net/http"
	"time"

	"vcf-drop/pkg/logger"
)

// Store modes reported by the health check
const (
	StoreModeCloud = "cloud"
	StoreModeLocal = "local"
)

// Dependency states reported by the health check
const (
	depDisabled    = "disabled"
	depOK          = "ok"
	depUnavailable = "unavailable"
)

// Pinger is a dependency the health check can probe
type Pinger interface {
	Health(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	storeMode string
	redis     Pinger
	database  Pinger
	logger    *logger.Logger
}

// NewHealthHandler creates a new health handler. redis and database may be
// nil when they are not configured.
func NewHealthHandler(storeMode string, redis, database Pinger, logger *logger.Logger) *HealthHandler {
	return &HealthHandler{storeMode: storeMode, redis: redis, database: database, logger: logger}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Store     string    `json:"store"`
	Redis     string    `json:"redis"`
	Database  string    `json:"database"`
}

// Check handles GET /health. Any configured dependency that fails its probe
// turns the response into 503 degraded.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Service:   "vcf-drop",
		Store:     h.storeMode,
		Redis:     h.probe(ctx, "redis", h.redis),
		Database:  h.probe(ctx, "database", h.database),
	}

	status := http.StatusOK
	if response.Redis == depUnavailable || response.Database == depUnavailable {
		response.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	respondJSON(w, status, response)
}

func (h *HealthHandler) probe(ctx context.Context, name string, p Pinger) string {
	if p == nil {
		return depDisabled
	}
	if err := p.Health(ctx); err != nil {
		h.logger.WithField("dependency", name).WithError(err).Warn("Health check failed")
		return depUnavailable
	}
	return depOK
}
