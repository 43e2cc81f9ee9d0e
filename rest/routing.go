package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/restgen/restgen/resource"
)

// Mount registers the list endpoints of every resource of the handler index
// on r:
//
//	GET /users
//	GET /users/{alias}
//	GET /users/{authorId}/posts
//
// A sub-resource route parameter is named after the field of the
// sub-resource model holding the parent id.
func Mount(r chi.Router, h *Handler) {
	for _, rsrc := range h.index.GetResources() {
		mountResource(r, h, "", rsrc)
	}
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		headers := http.Header{}
		ctx, body := h.ResponseFormatter.FormatError(r.Context(), headers, ErrInvalidMethod, r.Method == http.MethodHead)
		h.ResponseSender.Send(ctx, w, ErrInvalidMethod.Code, headers, body)
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		headers := http.Header{}
		ctx, body := h.ResponseFormatter.FormatError(r.Context(), headers, ErrNotFound, r.Method == http.MethodHead)
		h.ResponseSender.Send(ctx, w, ErrNotFound.Code, headers, body)
	})
}

func mountResource(r chi.Router, h *Handler, prefix string, rsrc *resource.Resource) {
	path := prefix + "/" + rsrc.Name()
	list := h.listHandler(rsrc, nil)
	r.Get(path, list)
	r.Head(path, list)
	for _, name := range rsrc.GetAliases() {
		alias, _ := rsrc.GetAlias(name)
		handler := h.listHandler(rsrc, alias)
		r.Get(path+"/"+name, handler)
		r.Head(path+"/"+name, handler)
	}
	for _, sub := range rsrc.GetResources() {
		mountResource(r, h, path+"/{"+sub.ParentField()+"}", sub)
	}
}
