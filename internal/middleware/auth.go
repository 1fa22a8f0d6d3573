package middleware

import (
	"context"
	"net/http"
	"strings"

	"vcf-drop/internal/service"
	"vcf-drop/pkg/errors"
	"vcf-drop/pkg/logger"

	"github.com/google/uuid"
)

// ContextKey represents keys used in request context
type ContextKey string

const (
	// AdminContextKey holds the validated admin claims
	AdminContextKey ContextKey = "admin"
	// RequestIDContextKey is the key for request ID in context
	RequestIDContextKey ContextKey = "request_id"

	requestIDHeader = "X-Request-ID"
	maxRequestIDLen = 128
)

// AdminAuth requires a valid admin bearer token
func AdminAuth(auth service.AdminAuthService, logger *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeErrorResponse(w, r, errors.NewAuthenticationError("Authorization header is required"), logger)
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeErrorResponse(w, r, errors.NewAuthenticationError("Invalid authorization header format"), logger)
				return
			}

			token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
			if token == "" {
				writeErrorResponse(w, r, errors.NewAuthenticationError("Token is required"), logger)
				return
			}

			claims, err := auth.ValidateToken(token)
			if err != nil {
				appErr, ok := err.(*errors.AppError)
				if !ok {
					appErr = errors.NewAuthenticationError("Invalid or expired token")
				}
				writeErrorResponse(w, r, appErr, logger)
				return
			}

			ctx := context.WithValue(r.Context(), AdminContextKey, claims)
			logger.WithField("token_id", claims.ID).Debug("Admin authenticated")

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminClaimsFrom returns the admin claims set by AdminAuth
func AdminClaimsFrom(ctx context.Context) (*service.AdminClaims, bool) {
	claims, ok := ctx.Value(AdminContextKey).(*service.AdminClaims)
	return claims, ok
}

// RequestID reuses an incoming X-Request-ID or generates one, and echoes it
// on the response
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" || len(requestID) > maxRequestIDLen {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
		w.Header().Set(requestIDHeader, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID returns the request id, or "" outside RequestID
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}

// writeErrorResponse writes an error response to the client
func writeErrorResponse(w http.ResponseWriter, r *http.Request, appErr *errors.AppError, logger *logger.Logger) {
	logger.WithFields(map[string]interface{}{
		"path":       r.URL.Path,
		"request_id": GetRequestID(r.Context()),
	}).WithError(appErr).Warn("Request rejected")

	errors.Write(w, appErr, GetRequestID(r.Context()))
}
