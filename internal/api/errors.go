package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/citysdk/layercatalog/internal/catalog"
	"github.com/citysdk/layercatalog/internal/registry"
	"github.com/citysdk/layercatalog/internal/serialize"
	"github.com/citysdk/layercatalog/internal/web/middleware"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error  ErrorDetail `json:"error"`
	Status int         `json:"status"`
	Path   string      `json:"path,omitempty"`
}

// ErrorDetail contains detailed error information
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	CodeBadRequest       = "BAD_REQUEST"
	CodeInvalidWildcard  = "INVALID_WILDCARD"
	CodeNotFound         = "NOT_FOUND"
	CodeNotAcceptable    = "NOT_ACCEPTABLE"
	CodeCacheUnavailable = "CACHE_UNAVAILABLE"
	CodeInternal         = "INTERNAL_SERVER_ERROR"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeRateLimited      = "RATE_LIMITED"
)

// classify maps an error to its status, code and client message
func classify(err error) (int, string, string) {
	switch {
	case errors.Is(err, registry.ErrInvalidWildcard):
		return http.StatusUnprocessableEntity, CodeInvalidWildcard, registry.InvalidWildcardMessage
	case errors.Is(err, registry.ErrUnavailable):
		return http.StatusInternalServerError, CodeCacheUnavailable, registry.UnavailableMessage
	case errors.Is(err, catalog.ErrNoLayers), errors.Is(err, catalog.ErrLayerNotFound):
		return http.StatusNotFound, CodeNotFound, "No layers found"
	case errors.Is(err, serialize.ErrUnsupportedFormat):
		return http.StatusNotAcceptable, CodeNotAcceptable, "Supported formats are application/json and text/turtle"
	default:
		return http.StatusInternalServerError, CodeInternal, "An internal server error occurred"
	}
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classify(err)
	if status >= 500 {
		h.logger.Error("request failed",
			zap.String("request_id", middleware.GetRequestID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	WriteError(w, r, status, code, message)
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:  ErrorDetail{Code: code, Message: message},
		Status: status,
		Path:   r.URL.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) // Error is logged by the logging middleware's status
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusNotFound, CodeNotFound, "The requested resource was not found")
}

func methodNotAllowedHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusMethodNotAllowed, CodeMethodNotAllowed, "Method "+r.Method+" is not allowed for this resource")
}

func panicHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusInternalServerError, CodeInternal, "An unexpected error occurred")
}

func rateLimitedHandler(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, http.StatusTooManyRequests, CodeRateLimited, "Too many requests, retry later")
}
