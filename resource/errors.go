package resource

import "errors"

var (
	// ErrNotFound is returned when the requested resource can't be found.
	ErrNotFound = errors.New("Not Found")
	// ErrUnauthorized is returned when the requested resource can't be accessed
	// by the requestor for security reasons.
	ErrUnauthorized = errors.New("Unauthorized")
	// ErrForbidden is returned by a storage handler refusing access to the
	// requested items.
	ErrForbidden = errors.New("Forbidden")
	// ErrConflict happens when an item with the same id is already stored.
	ErrConflict = errors.New("Conflict")
	// ErrNotImplemented happens when a used filter is not implemented by the
	// storage handler.
	ErrNotImplemented = errors.New("Not Implemented")
	// ErrNoStorage is returned when no storage handler has been set on the
	// resource.
	ErrNoStorage = errors.New("No Storage Defined")
)
