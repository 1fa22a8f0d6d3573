package handler

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"vcf-drop/internal/middleware"
	"vcf-drop/pkg/errors"
	"vcf-drop/pkg/logger"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 64 << 10

// SuccessResponse is the envelope for successful JSON responses
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondData(w http.ResponseWriter, status int, data interface{}) {
	respondJSON(w, status, SuccessResponse{Success: true, Data: data})
}

// respondError writes err as the error envelope. Errors that are not
// AppErrors are reported as internal and their text is only logged.
func respondError(w http.ResponseWriter, r *http.Request, err error, log *logger.Logger) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.NewInternalError("Internal server error", err)
	}

	requestID := middleware.GetRequestID(r.Context())
	if appErr.StatusCode >= http.StatusInternalServerError {
		log.WithFields(map[string]interface{}{
			"request_id": requestID,
			"path":       r.URL.Path,
		}).WithError(err).Error("Request failed")
	}
	errors.Write(w, appErr, requestID)
}

// decodeJSON reads a size-limited JSON body into dst
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return errors.NewValidationError("Request body is required", nil)
		}
		return errors.NewValidationError("Invalid request body", map[string]interface{}{"reason": err.Error()})
	}
	return nil
}

func contentDisposition(filename string) string {
	return fmt.Sprintf("attachment; filename=%q", filename)
}

// passthrough stands in for an optional middleware
func orPassthrough(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	if mw != nil {
		return mw
	}
	return func(next http.Handler) http.Handler { return next }
}
