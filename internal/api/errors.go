package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/trobanga/rastergate/internal/lib"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Message  string   `json:"message"`
	Category string   `json:"category,omitempty"`
	Reason   string   `json:"reason,omitempty"`
	Guidance []string `json:"guidance,omitempty"`
}

// StatusFor maps an error category to its HTTP status
func StatusFor(category lib.ErrorCategory) int {
	switch category {
	case lib.CategoryNotFound:
		return http.StatusNotFound
	case lib.CategoryConflict:
		return http.StatusConflict
	case lib.CategoryUnsupportedEntity:
		return http.StatusUnprocessableEntity
	case lib.CategoryInvalidState, lib.CategoryValidation:
		return http.StatusBadRequest
	case lib.CategoryService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := s.logger.With(
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", w.Header().Get(RequestIDHeader),
	)

	var gwErr *lib.GatewayError
	if !errors.As(err, &gwErr) {
		logger.Error("Unhandled error", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Message: "internal server error"})
		return
	}

	status := StatusFor(gwErr.Category)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "error", err, "status", status)
	} else {
		logger.Info("Request rejected", "category", gwErr.Category, "reason", gwErr.Reason, "message", gwErr.Message)
	}

	writeJSON(w, status, ErrorResponse{
		Message:  gwErr.Message,
		Category: string(gwErr.Category),
		Reason:   string(gwErr.Reason),
		Guidance: gwErr.Guidance,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
