// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

import (
	"errors"
	"net/http"

	"github.com/Sebas931/Local-sim-main/internal/domainerr"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Error de validacion", Fields: fields}
}

var statusByCode = map[domainerr.Code]int{
	domainerr.CodeValidation:   http.StatusBadRequest,
	domainerr.CodeConflict:     http.StatusConflict,
	domainerr.CodeNotFound:     http.StatusNotFound,
	domainerr.CodePrecondition: http.StatusPreconditionFailed,
	domainerr.CodeState:        http.StatusConflict,
	domainerr.CodeAmbiguous:    http.StatusConflict,
	domainerr.CodeCapacity:     http.StatusConflict,
	domainerr.CodeUnauthorized: http.StatusUnauthorized,
	domainerr.CodeExternal:     http.StatusBadGateway,
	domainerr.CodeInternal:     http.StatusInternalServerError,
}

// FromError maps a service error to an HTTP status and a safe envelope.
// Internal errors (and anything that is not a *domainerr.Error) get an opaque message.
func FromError(err error) (int, *APIError) {
	var de *domainerr.Error
	if !errors.As(err, &de) || de.Code == domainerr.CodeInternal {
		return http.StatusInternalServerError, &APIError{Detail: "Error interno del servidor", Code: string(domainerr.CodeInternal)}
	}
	status, ok := statusByCode[de.Code]
	if !ok {
		status = http.StatusBadRequest
	}
	return status, &APIError{Detail: de.Message, Code: string(de.Code)}
}
