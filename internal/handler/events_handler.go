package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"vcf-drop/internal/notify"
	"vcf-drop/pkg/errors"
	"vcf-drop/pkg/logger"
)

const defaultKeepAlive = 25 * time.Second

// EventsHandler streams change events to browsers as Server-Sent Events.
// Events only tell clients to re-fetch; they carry no state.
type EventsHandler struct {
	notifier  notify.Notifier
	logger    *logger.Logger
	keepAlive time.Duration
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(notifier notify.Notifier, logger *logger.Logger) *EventsHandler {
	return &EventsHandler{notifier: notifier, logger: logger, keepAlive: defaultKeepAlive}
}

// Stream handles GET /api/events
func (h *EventsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, errors.NewInternalError("Streaming unsupported", nil), h.logger)
		return
	}

	ctx := r.Context()
	events, cancel, err := h.notifier.Subscribe(ctx)
	if err != nil {
		respondError(w, r, errors.NewPersistenceError(err), h.logger)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, "retry: 3000\n: connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case event, ok := <-events:
			if !ok {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				h.logger.WithError(err).Warn("Failed to encode event")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
