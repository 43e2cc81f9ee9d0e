package resource

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/restgen/restgen/schema"
	"github.com/restgen/restgen/schema/query"
)

// Resource holds information about a class of items exposed on the API.
type Resource struct {
	parentField string
	name        string
	path        string
	model       string
	catalog     schema.Catalog
	storage     Storer
	conf        Conf
	resources   subResources
	aliases     map[string]url.Values
}

type subResources []*Resource

func (sr *subResources) add(r *Resource) {
	*sr = append(*sr, r)
}

func (sr subResources) get(name string) *Resource {
	for _, r := range sr {
		if r.name == name {
			return r
		}
	}
	return nil
}

// newResource creates a new resource with provided model, handler and config.
func newResource(name, path, model string, catalog schema.Catalog, h Storer, c Conf) *Resource {
	var s Storer = storageHandler{h}
	if c.CircuitBreaker != nil {
		s = newHystrixStorage(path, s, *c.CircuitBreaker)
	}
	return &Resource{
		name:      name,
		path:      path,
		model:     model,
		catalog:   catalog,
		storage:   s,
		conf:      c,
		resources: subResources{},
		aliases:   map[string]url.Values{},
	}
}

// Name returns the name of the resource.
func (r *Resource) Name() string {
	return r.name
}

// Path returns the full path of the resource composed of names of each
// intermediate resources separated by dots (i.e.: res1.res2.res3).
func (r *Resource) Path() string {
	return r.path
}

// Model returns the name of the catalog model served by the resource.
func (r *Resource) Model() string {
	return r.model
}

// ParentField returns the name of the field on which the resource is bound
// to its parent if any.
func (r *Resource) ParentField() string {
	return r.parentField
}

// Conf returns the resource's configuration.
func (r *Resource) Conf() Conf {
	return r.conf
}

// Compile checks the resource model and parent field against the catalog,
// then compiles the sub-resources.
func (r *Resource) Compile() error {
	if r.catalog != nil {
		m, found := r.catalog.Model(r.model)
		if !found {
			return fmt.Errorf(": unknown model `%s'", r.model)
		}
		if r.parentField != "" {
			if _, found := m.Field(r.parentField); !found {
				return fmt.Errorf(": parent field `%s' does not exist in model `%s'", r.parentField, r.model)
			}
		}
	}
	return compileResourceGraph(r.resources)
}

// Bind a sub-resource with the provided name. The field parameter defines the
// field of the sub-resource model holding the parent id.
//
//	users := index.Bind("users", "User", userHandler, resource.DefaultConf)
//	// Bind a sub resource on /users/{authorId}/posts and scope the posts on
//	// their authorId field.
//	posts := users.Bind("posts", "authorId", "Post", postHandler, resource.DefaultConf)
//
// This method will panic if an alias or a resource with the same name is
// already bound.
func (r *Resource) Bind(name, field, model string, h Storer, c Conf) *Resource {
	assertNotBound(name, r.resources, r.aliases)
	sr := newResource(name, r.path+"."+name, model, r.catalog, h, c)
	sr.parentField = field
	r.resources.add(sr)
	return sr
}

// GetResources returns first level resources.
func (r *Resource) GetResources() []*Resource {
	return r.resources
}

// Alias adds a pre-built resource query on /<resource>/<alias>.
//
//	// Add a friendly alias to published posts on /posts/published
//	// (equivalent to /posts?published=true)
//	posts.Alias("published", url.Values{"published": []string{"true"}})
//
// The alias query scopes the request through the base options: the client can
// refine it but can't override it. This method will panic if an alias or a
// resource with the same name is already bound.
func (r *Resource) Alias(name string, v url.Values) {
	assertNotBound(name, r.resources, r.aliases)
	r.aliases[name] = v
}

// GetAlias returns the alias set for the name if any.
func (r *Resource) GetAlias(name string) (url.Values, bool) {
	a, found := r.aliases[name]
	return a, found
}

// GetAliases returns all the alias names set on the resource.
func (r *Resource) GetAliases() []string {
	n := make([]string, 0, len(r.aliases))
	for a := range r.aliases {
		n = append(n, a)
	}
	sort.Strings(n)
	return n
}

// NewCompiler returns a query compiler bound to the resource model, catalog
// and configuration.
func (r *Resource) NewCompiler(req query.Request) (*query.Compiler, error) {
	return query.NewCompiler(req, r.model, r.catalog, r.conf.Query)
}

// Find implements Storer interface.
func (r *Resource) Find(ctx context.Context, q *query.Query) (list *ItemList, err error) {
	defer func(t time.Time) {
		found := -1
		if list != nil {
			found = len(list.Items)
		}
		fields := map[string]interface{}{
			"duration": time.Since(t),
			"found":    found,
		}
		if err != nil && err != context.Canceled {
			fields["error"] = err.Error()
			logErrorf(ctx, fields, "%s.Find(...) failed", r.path)
			return
		}
		logDebugf(ctx, fields, "%s.Find(...)", r.path)
	}(time.Now())
	return r.storage.Find(ctx, q)
}
