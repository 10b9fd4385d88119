package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/NordCoder/Custodian/internal/domain"
)

type errorBody struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// statusOf maps a domain error to its HTTP status.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrExpired):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDependency):
		return http.StatusFailedDependency
	case errors.Is(err, domain.ErrUnprocessable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrAlreadyProcessed),
		errors.Is(err, domain.ErrProcessing):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusOf(err)
	reason := err.Error()
	if code == http.StatusInternalServerError {
		s.logFor(r).Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		reason = "internal server error"
	} else {
		s.logFor(r).Debug("request rejected", zap.String("path", r.URL.Path), zap.Int("status", code), zap.Error(err))
	}
	writeProblem(w, code, reason)
}

func writeProblem(w http.ResponseWriter, code int, reason string) {
	w.Header().Set("reason", reason)
	writeJSON(w, code, errorBody{Code: code, Reason: reason})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}
