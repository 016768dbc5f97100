// Package http provides the JSON API server and its handlers.
//
// This file implements a small builder for JSON responses so every handler
// writes status, headers and bodies the same way.

package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	wlog "wastewise/internal/log"
	"wastewise/internal/ports"
	"wastewise/internal/services"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	body       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Body sets the value encoded as the response body.
func (b *JSONResponseBuilder) Body(v any) *JSONResponseBuilder {
	b.body = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	payload, err := json.Marshal(b.body)
	if err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(payload)
	_, _ = w.Write([]byte("\n"))
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// ErrorResponse creates a standard {"error": message} response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// UnprocessableEntityError creates a 422 Unprocessable Entity error response
// naming the rejected field.
func UnprocessableEntityError(field, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(http.StatusUnprocessableEntity).
		Body(errorBody{Error: message, Field: field})
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// ConflictError creates a 409 Conflict error response.
func ConflictError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusConflict, message)
}

// MethodNotAllowedError creates a 405 Method Not Allowed error response.
func MethodNotAllowedError(allowedMethods string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusMethodNotAllowed, "method not allowed").
		Header("Allow", allowedMethods)
}

// ServiceError maps a service error onto a response. Client errors are
// logged at debug with their category; unexpected errors are logged and
// reported without detail.
func ServiceError(ctx context.Context, err error) *JSONResponseBuilder {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		logRejected(ctx, err, wlog.ErrorTypeValidation)
		return UnprocessableEntityError(verr.Field, verr.Err.Error())
	case errors.Is(err, ports.ErrChallengeNotFound), errors.Is(err, ports.ErrEntryNotFound):
		logRejected(ctx, err, wlog.ErrorTypeNotFound)
		return NotFoundError(err.Error())
	case errors.Is(err, ports.ErrAlreadyParticipating),
		errors.Is(err, ports.ErrNotParticipating),
		errors.Is(err, services.ErrChallengeNotActive):
		logRejected(ctx, err, wlog.ErrorTypeConflict)
		return ConflictError(err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		wlog.FromContext(ctx).WarnContext(ctx, "Request timed out",
			wlog.FieldError, err,
			wlog.FieldErrorType, wlog.ErrorTypeTimeout)
		return ErrorResponse(http.StatusGatewayTimeout, "request timed out")
	default:
		wlog.FromContext(ctx).ErrorContext(ctx, "Request failed",
			wlog.FieldError, err,
			wlog.FieldErrorType, wlog.ErrorTypeInternal)
		return InternalServerError("internal error")
	}
}

func logRejected(ctx context.Context, err error, errorType string) {
	wlog.FromContext(ctx).DebugContext(ctx, "Request rejected",
		wlog.FieldError, err,
		wlog.FieldErrorType, errorType)
}
