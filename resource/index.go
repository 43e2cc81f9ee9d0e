package resource

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/restgen/restgen/schema"
)

// Index is an interface defining a type able to bind and retrieve resources
// from a resource graph.
type Index interface {
	// Bind a new resource at the "name" endpoint serving items of the given
	// catalog model.
	Bind(name, model string, h Storer, c Conf) *Resource
	// GetResource retrieves a given resource by its path. For instance if a
	// resource users has a sub-resource posts, a users.posts path can be used
	// to retrieve the posts resource.
	//
	// If a parent is given and the path starts with a dot, the lookup is
	// started at the parent's location instead of root's.
	GetResource(path string, parent *Resource) (*Resource, bool)
	// GetResources returns first level resources.
	GetResources() []*Resource
	// Catalog returns the catalog describing the models of the resources.
	Catalog() schema.Catalog
}

// Compiler is an optional interface an Index can implement to check the
// resource graph against its catalog.
type Compiler interface {
	Compile() error
}

// index is the root of the resource graph.
type index struct {
	catalog   schema.Catalog
	resources subResources
}

// NewIndex creates a new resource index backed by catalog.
func NewIndex(catalog schema.Catalog) Index {
	return &index{
		catalog:   catalog,
		resources: subResources{},
	}
}

// Bind a resource at the specified endpoint name.
func (r *index) Bind(name, model string, h Storer, c Conf) *Resource {
	assertNotBound(name, r.resources, nil)
	sr := newResource(name, name, model, r.catalog, h, c)
	r.resources.add(sr)
	return sr
}

// Compile checks every resource of the graph is bound to a model known by the
// catalog and report any error.
func (r *index) Compile() error {
	return compileResourceGraph(r.resources)
}

// GetResource retrieves a given resource by its path.
func (r *index) GetResource(path string, parent *Resource) (*Resource, bool) {
	resources := r.resources
	if len(path) > 0 && path[0] == '.' {
		if parent == nil {
			// If field starts with a dot and no parent is given, fail the lookup.
			return nil, false
		}
		path = path[1:]
		resources = parent.resources
	}
	var sr *Resource
	for _, comp := range strings.Split(path, ".") {
		if sr = resources.get(comp); sr == nil {
			return nil, false
		}
		resources = sr.resources
	}
	return sr, true
}

// GetResources returns first level resources.
func (r *index) GetResources() []*Resource {
	return r.resources
}

// Catalog implements Index.
func (r *index) Catalog() schema.Catalog {
	return r.catalog
}

func compileResourceGraph(resources subResources) error {
	for _, r := range resources {
		if err := r.Compile(); err != nil {
			sep := "."
			if err.Error()[0] == ':' {
				sep = ""
			}
			return fmt.Errorf("%s%s%s", r.name, sep, err)
		}
	}
	return nil
}

// assertNotBound asserts a given resource name is not already bound.
func assertNotBound(name string, resources subResources, aliases map[string]url.Values) {
	for _, r := range resources {
		if r.name == name {
			logPanicf(context.Background(), "Cannot bind `%s': already bound as resource'", name)
		}
	}
	if _, found := aliases[name]; found {
		logPanicf(context.Background(), "Cannot bind `%s': already bound as alias'", name)
	}
}
