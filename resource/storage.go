package resource

import (
	"context"

	"github.com/restgen/restgen/schema/query"
)

// Storer defines the interface of a handler able to retrieve items from a
// data-access layer.
type Storer interface {
	// Find searches for items in the backend store matching the compiled
	// query. The query is passed verbatim: its where, select, include, omit,
	// orderBy, skip and take clauses use the data-access layer query
	// language and must all be honored. If a clause or operator is not
	// supported, a resource.ErrNotImplemented must be returned. If no items
	// are found, an empty list should be returned with no error.
	//
	// If the fetching of the data is not immediate, the method must listen
	// for cancellation on the passed ctx. If the operation is stopped due to
	// context cancellation, the function must return the result of the
	// ctx.Err() method.
	Find(ctx context.Context, q *query.Query) (*ItemList, error)
}

// storageHandler wraps a Storer so a nil storer or an already canceled
// context are handled before reaching the backend.
type storageHandler struct {
	Storer
}

func (s storageHandler) Find(ctx context.Context, q *query.Query) (*ItemList, error) {
	if s.Storer == nil {
		return nil, ErrNoStorage
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Storer.Find(ctx, q)
}
