package query

import "net/http"

// Error is a query compilation error. It carries the HTTP status the hosting
// framework should answer with, a stable error code and optional metadata.
type Error struct {
	// Status is the HTTP status code associated with the error.
	Status int
	// Code identifies the kind of error.
	Code string
	// Message is a human readable description of the error.
	Message string
	// Meta holds optional details (offending parameter, path, ...).
	Meta map[string]interface{}
}

var (
	// ErrMalformedFilterPayload is returned when the filters parameter is not
	// a valid JSON object.
	ErrMalformedFilterPayload = &Error{http.StatusBadRequest, "MalformedFilterPayload", "Malformed filters parameter", nil}
	// ErrSearchUnavailable is returned when a search is requested on a
	// compiler with no model bound.
	ErrSearchUnavailable = &Error{http.StatusInternalServerError, "SearchUnavailable", "Search is not available without a model", nil}
	// ErrUnknownModel is returned when the compiler model is not in the
	// catalog.
	ErrUnknownModel = &Error{http.StatusInternalServerError, "UnknownModel", "Unknown model", nil}
	// ErrExposureDetected is returned when a projection would disclose a
	// credential field.
	ErrExposureDetected = &Error{http.StatusForbidden, "ExposureDetected", "Projection exposes a protected field", nil}
	// ErrCannotDisableExposureProtection is returned when a projection tries
	// to remove the protection of a credential field.
	ErrCannotDisableExposureProtection = &Error{http.StatusForbidden, "CannotDisableExposureProtection", "Protection of a protected field cannot be disabled", nil}
	// ErrDeprecatedParameter is returned when the legacy addFields or
	// removeFields parameters are used.
	ErrDeprecatedParameter = &Error{http.StatusBadRequest, "DeprecatedParameterUsed", "Deprecated parameter", nil}
	// ErrInvalidParameter is returned when a query parameter has an invalid
	// shape or value.
	ErrInvalidParameter = &Error{http.StatusBadRequest, "InvalidParameter", "Invalid parameter", nil}
)

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Is reports whether target is an *Error with the same code, so
// errors.Is(err, ErrExposureDetected) works on derived errors.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// with returns a copy of e with the given message and metadata.
func (e *Error) with(msg string, meta map[string]interface{}) *Error {
	return &Error{
		Status:  e.Status,
		Code:    e.Code,
		Message: msg,
		Meta:    meta,
	}
}
