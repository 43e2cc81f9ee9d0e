package rest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/restgen/restgen/resource"
	"github.com/restgen/restgen/schema/query"
)

// Handler serves the list endpoints of a resource index.
type Handler struct {
	// ResponseFormatter can be changed to extend the DefaultResponseFormatter
	ResponseFormatter ResponseFormatter
	// ResponseSender can be changed to extend the DefaultResponseSender
	ResponseSender ResponseSender
	// RequestTimeout is the default timeout for requests after which the whole request
	// is abandonned. The default value is no timeout.
	RequestTimeout time.Duration
	// Metrics, if set, records request counts, durations and errors.
	Metrics *Metrics
	// index stores the resource graph
	index resource.Index
}

// NewHandler creates an new REST API HTTP handler with the specified resource
// index. The resource graph is checked against the index catalog.
func NewHandler(i resource.Index) (*Handler, error) {
	if c, ok := i.(resource.Compiler); ok {
		if err := c.Compile(); err != nil {
			return nil, err
		}
	}
	h := &Handler{
		ResponseFormatter: DefaultResponseFormatter{},
		ResponseSender:    DefaultResponseSender{},
		index:             i,
	}
	return h, nil
}

// getTimeout get request timeout info from request or server config
func (h *Handler) getTimeout(r *http.Request) (time.Duration, error) {
	// If timeout is passed as argument, use it's value over default timeout
	if t := r.URL.Query().Get("timeout"); t != "" {
		return time.ParseDuration(t)
	}
	// Fallback on default timeout
	return h.RequestTimeout, nil
}

// getContext creates a context with timeout if timeout is specified in the
// request or server configuration. The context derives from the request
// context so it is canceled as soon as the client connection is closed.
func (h *Handler) getContext(r *http.Request) (context.Context, context.CancelFunc, *Error) {
	timeout, err := h.getTimeout(r)
	if err != nil {
		return nil, nil, &Error{http.StatusBadRequest, "InvalidParameter", fmt.Sprintf("Cannot parse timeout parameter: %s", err), map[string]interface{}{"param": "timeout"}}
	}
	if timeout > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		return ctx, cancel, nil
	}
	ctx, cancel := context.WithCancel(r.Context())
	return ctx, cancel, nil
}

// listHandler returns the handler serving GET and HEAD requests on rsrc. The
// alias query, if any, scopes the query like a route parameter.
func (h *Handler) listHandler(rsrc *resource.Resource, alias url.Values) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		skipBody := r.Method == http.MethodHead
		ctx, cancel, e := h.getContext(r)
		if e != nil {
			h.send(r.Context(), w, rsrc, start, e, skipBody)
			return
		}
		defer cancel()
		h.send(ctx, w, rsrc, start, h.list(ctx, r, rsrc, alias), skipBody)
	}
}

// list compiles the request query and fetches the matching items. It returns
// either a *resource.ItemList or an error.
func (h *Handler) list(ctx context.Context, r *http.Request, rsrc *resource.Resource, alias url.Values) interface{} {
	log := zerolog.Ctx(ctx)
	req := NewRequest(r.WithContext(ctx))
	req.RawQuery = dropParam(req.RawQuery, "timeout")
	// The parent id and the alias query scope the query through the base
	// options so they apply whatever the filter mode.
	scope := map[string]interface{}{}
	for k := range alias {
		scope[k] = alias.Get(k)
	}
	if f := rsrc.ParentField(); f != "" {
		if v, found := req.Params[f]; found {
			scope[f] = v
		}
	}
	if len(scope) > 0 {
		req.Base.Where = query.Merge(query.ReplaceArrays, req.Base.Where, scope)
	}
	req.Params = nil

	c, err := rsrc.NewCompiler(req)
	if err != nil {
		e := NewError(err)
		h.Metrics.observeCompileError(rsrc.Path(), e)
		log.Warn().Str("type", e.Type).Str("model", rsrc.Model()).Msg(e.Message)
		return e
	}
	q, err := c.Compile()
	if err != nil {
		e := NewError(err)
		h.Metrics.observeCompileError(rsrc.Path(), e)
		ev := log.Warn().Str("type", e.Type).Str("model", rsrc.Model())
		if path, ok := e.Meta["path"].(string); ok {
			ev = ev.Str("path", path)
		}
		ev.Msg(e.Message)
		return e
	}
	list, err := rsrc.Find(ctx, q)
	if err != nil {
		e := NewError(err)
		h.Metrics.observeStorageError(rsrc.Path(), e)
		return e
	}
	return list
}

func (h *Handler) send(ctx context.Context, w http.ResponseWriter, rsrc *resource.Resource, start time.Time, res interface{}, skipBody bool) {
	headers := http.Header{}
	ctx, status, body := formatResponse(ctx, h.ResponseFormatter, 0, headers, res, skipBody)
	if status == 0 {
		status = http.StatusOK
	}
	h.Metrics.observeRequest(rsrc.Path(), status, start)
	h.ResponseSender.Send(ctx, w, status, headers, body)
}

// dropParam removes every occurrence of the name parameter from an encoded
// query string.
func dropParam(rawQuery, name string) string {
	parts := strings.Split(rawQuery, "&")
	kept := parts[:0]
	for _, p := range parts {
		k := p
		if i := strings.IndexByte(p, '='); i >= 0 {
			k = p[:i]
		}
		if k, err := url.QueryUnescape(k); err == nil && k == name {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "&")
}
