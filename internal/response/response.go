// Package response provides shared JSON response helpers for HTTP handlers.
package response

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/uploadbroker/service/internal/apperr"
	"github.com/uploadbroker/service/internal/logger"
)

// MaxBodyBytes caps every JSON request body.
const MaxBodyBytes = 1 << 20

// ErrorBody is the envelope of every non-2xx response (and of 202 scan-pending).
type ErrorBody struct {
	Error   string `json:"error"   example:"bad_request"`
	Message string `json:"message" example:"key: is required"`
}

// JSON writes a JSON-encoded payload with the given HTTP status code.
func JSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// OK writes a 200 response with data.
func OK(w http.ResponseWriter, data interface{}) {
	JSON(w, http.StatusOK, data)
}

// Status maps an error kind to its HTTP status code.
func Status(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindInfected:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	case apperr.KindScanPending:
		return http.StatusAccepted
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable
	case apperr.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Error writes the envelope for err. Causes are logged, never returned.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var e *apperr.Error
	if !errors.As(err, &e) {
		e = &apperr.Error{Kind: apperr.KindOf(err), Code: "internal_error", Message: "internal server error", Err: err}
		if e.Kind == apperr.KindTimeout {
			e.Code, e.Message = "timeout", "request timed out"
		}
	}

	status := Status(e.Kind)
	if status >= http.StatusInternalServerError {
		logger.WithContext(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("kind", e.Kind.String()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}

	JSON(w, status, ErrorBody{Error: e.Code, Message: e.Message})
}

// BadRequest writes a 400 response.
func BadRequest(w http.ResponseWriter, code, message string) {
	JSON(w, http.StatusBadRequest, ErrorBody{Error: code, Message: message})
}

// Unauthorized writes a 401 response.
func Unauthorized(w http.ResponseWriter, message string) {
	JSON(w, http.StatusUnauthorized, ErrorBody{Error: "unauthorized", Message: message})
}

// NotFound writes a 404 response.
func NotFound(w http.ResponseWriter, message string) {
	JSON(w, http.StatusNotFound, ErrorBody{Error: "not_found", Message: message})
}

// MethodNotAllowed writes a 405 response.
func MethodNotAllowed(w http.ResponseWriter) {
	JSON(w, http.StatusMethodNotAllowed, ErrorBody{Error: "method_not_allowed", Message: "method not allowed"})
}

// InternalError writes a 500 response with a generic message.
func InternalError(w http.ResponseWriter) {
	JSON(w, http.StatusInternalServerError, ErrorBody{Error: "internal_error", Message: "internal server error"})
}

// Decode reads a JSON object from the request body into dst. Empty, oversized
// or malformed bodies produce an invalid_json validation error.
func Decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body := http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		return apperr.InvalidJSON(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return apperr.InvalidJSON(errors.New("unexpected data after JSON object"))
	}
	return nil
}
