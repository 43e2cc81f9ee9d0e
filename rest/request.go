package rest

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/restgen/restgen/schema/query"
)

type ctxKey int

const baseOptionsCtxKey ctxKey = iota

// WithBaseOptions stores the base scope applied to every query compiled for
// the request. Middlewares use it to restrict what a client can see (i.e.: its
// tenant) or to hide fields.
func WithBaseOptions(ctx context.Context, b query.BaseOptions) context.Context {
	return context.WithValue(ctx, baseOptionsCtxKey, b)
}

// BaseOptionsFromContext returns the base scope stored in ctx if any.
func BaseOptionsFromContext(ctx context.Context) (query.BaseOptions, bool) {
	b, ok := ctx.Value(baseOptionsCtxKey).(query.BaseOptions)
	return b, ok
}

// NewRequest builds a query.Request from an HTTP request: its raw query
// string, the chi route parameters and the base options of its context.
func NewRequest(r *http.Request) query.Request {
	req := query.Request{
		RawQuery: r.URL.RawQuery,
		Params:   map[string]string{},
	}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, k := range rctx.URLParams.Keys {
			if k == "*" || i >= len(rctx.URLParams.Values) {
				continue
			}
			req.Params[k] = rctx.URLParams.Values[i]
		}
	}
	req.Base, _ = BaseOptionsFromContext(r.Context())
	return req
}
