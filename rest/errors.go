package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/afex/hystrix-go/hystrix"

	"github.com/restgen/restgen/resource"
	"github.com/restgen/restgen/schema/query"
)

var (
	// ErrNotFound represents a 404 HTTP error.
	ErrNotFound = &Error{http.StatusNotFound, "NotFound", "Not Found", nil}
	// ErrUnauthorized represents a 401 HTTP error.
	ErrUnauthorized = &Error{http.StatusUnauthorized, "Unauthorized", "Unauthorized", nil}
	// ErrForbidden represents a 403 HTTP error.
	ErrForbidden = &Error{http.StatusForbidden, "Forbidden", "Forbidden", nil}
	// ErrConflict happens when the storage refuses a write because of a
	// duplicate id.
	ErrConflict = &Error{http.StatusConflict, "Conflict", "Conflict", nil}
	// ErrInvalidMethod happens when the used HTTP method is not supported for
	// this resource.
	ErrInvalidMethod = &Error{http.StatusMethodNotAllowed, "InvalidMethod", "Invalid Method", nil}
	// ErrClientClosedRequest is returned when the client closed the connection
	// before the server was able to finish processing the request.
	ErrClientClosedRequest = &Error{499, "ClientClosedRequest", "Client Closed Request", nil}
	// ErrNotImplemented happens when a requested feature is not implemented.
	ErrNotImplemented = &Error{http.StatusNotImplemented, "NotImplemented", "Not Implemented", nil}
	// ErrGatewayTimeout is returned when the specified timeout for the request
	// has been reached before the server was able to process it.
	ErrGatewayTimeout = &Error{http.StatusGatewayTimeout, "DeadlineExceeded", "Deadline Exceeded", nil}
	// ErrServiceUnavailable is returned when the circuit breaker of the
	// resource storage rejected the call.
	ErrServiceUnavailable = &Error{http.StatusServiceUnavailable, "ServiceUnavailable", "Service Unavailable", nil}
	// ErrUnknown is thrown when the origin of the error can't be identified.
	ErrUnknown = &Error{520, "Unknown", "Unknown Error", nil}
)

// Error defines a REST error with optional metadata.
type Error struct {
	// Code defines the error code to be used for the error and for the HTTP
	// status.
	Code int `json:"code"`
	// Type is a stable identifier of the kind of error.
	Type string `json:"type"`
	// Message is the error message.
	Message string `json:"message"`
	// Meta holds error details (offending parameter, projection path...) if
	// any.
	Meta map[string]interface{} `json:"meta,omitempty"`
}

// NewError returns a rest.Error from an standard error.
//
// If the the inputted error is recognized, the appropriate rest.Error is mapped.
func NewError(err error) *Error {
	if err == nil {
		return nil
	}
	var restErr *Error
	if errors.As(err, &restErr) {
		return restErr
	}
	var qErr *query.Error
	if errors.As(err, &qErr) {
		return &Error{qErr.Status, qErr.Code, qErr.Message, qErr.Meta}
	}
	var circuitErr hystrix.CircuitError
	if errors.As(err, &circuitErr) {
		return &Error{ErrServiceUnavailable.Code, ErrServiceUnavailable.Type, circuitErr.Error(), nil}
	}
	switch {
	case errors.Is(err, context.Canceled):
		return ErrClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return ErrGatewayTimeout
	case errors.Is(err, resource.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, resource.ErrUnauthorized):
		return ErrUnauthorized
	case errors.Is(err, resource.ErrForbidden):
		return ErrForbidden
	case errors.Is(err, resource.ErrConflict):
		return ErrConflict
	case errors.Is(err, resource.ErrNotImplemented):
		return &Error{ErrNotImplemented.Code, ErrNotImplemented.Type, err.Error(), nil}
	case errors.Is(err, resource.ErrNoStorage):
		return &Error{http.StatusNotImplemented, "NoStorage", err.Error(), nil}
	default:
		return &Error{ErrUnknown.Code, ErrUnknown.Type, err.Error(), nil}
	}
}

// Error returns the error as string
func (e *Error) Error() string {
	return e.Message
}
