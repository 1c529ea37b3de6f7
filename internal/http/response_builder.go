// Package http exposes the ledger as a JSON API.
//
// This file implements a small builder for JSON responses so every handler
// writes status codes, headers and error bodies the same way.
package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"expensebook/internal/core"
	"expensebook/internal/ledger"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
	hasBody    bool
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets the value encoded as the response body.
func (b *JSONResponseBuilder) JSON(v any) *JSONResponseBuilder {
	b.body = v
	b.hasBody = true
	return b
}

// Write sends the built response. A 204 never carries a body.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if !b.hasBody || b.statusCode == http.StatusNoContent {
		w.WriteHeader(b.statusCode)
		return
	}

	data, err := json.Marshal(b.body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"encode response"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(data, '\n'))
}

type errorBody struct {
	Error   string `json:"error"`
	Warning any    `json:"warning,omitempty"`
}

// ErrorResponse creates a JSON error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(statusCode).
		JSON(errorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnprocessableEntityError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnprocessableEntity, message)
}

func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

func ConflictError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusConflict, message)
}

// BudgetConfirmationRequired reports an add that needs confirm=true.
func BudgetConfirmationRequired(w *ledger.BudgetWarning) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(http.StatusConflict).
		JSON(errorBody{Error: "budget limit would be reached; resubmit with confirm=true", Warning: w})
}

// LedgerError maps ledger and validation errors onto status codes.
func LedgerError(err error) *JSONResponseBuilder {
	switch {
	case errors.Is(err, ledger.ErrTransactionNotFound),
		errors.Is(err, ledger.ErrCategoryNotFound),
		errors.Is(err, ledger.ErrPaymentMethodNotFound):
		return NotFoundError(err.Error())
	case errors.Is(err, ledger.ErrTransactionInactive),
		errors.Is(err, ledger.ErrCategoryExists):
		return ConflictError(err.Error())
	case isValidationError(err):
		return UnprocessableEntityError(err.Error())
	default:
		return InternalServerError(err.Error())
	}
}

func isValidationError(err error) bool {
	for _, target := range []error{
		core.ErrInvalidAmount,
		core.ErrInvalidDate,
		core.ErrFutureDate,
		core.ErrEmptyDescription,
		core.ErrDescriptionTooLong,
		core.ErrEmptyCategory,
		core.ErrEmptyPaymentMethod,
		ledger.ErrInvalidBudgetLimit,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
