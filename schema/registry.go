package schema

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSearchCacheSize is the number of searchable field lists kept by a
// Registry.
const DefaultSearchCacheSize = 256

// Registry is an in-memory Catalog. It is built once and safe for concurrent
// use.
type Registry struct {
	models map[string]*Model
	// folded maps lower cased model names to their canonical name.
	folded map[string]string
	search *lru.Cache[string, []string]
}

// NewRegistry creates a registry holding the given models. It returns an
// error if two models share the same name or if a model has no name.
func NewRegistry(models ...*Model) (*Registry, error) {
	search, err := lru.New[string, []string](DefaultSearchCacheSize)
	if err != nil {
		return nil, err
	}
	r := &Registry{
		models: make(map[string]*Model, len(models)),
		folded: make(map[string]string, len(models)),
		search: search,
	}
	for _, m := range models {
		if m == nil || m.Name == "" {
			return nil, fmt.Errorf("model without a name")
		}
		if _, found := r.models[m.Name]; found {
			return nil, fmt.Errorf("duplicate model `%s'", m.Name)
		}
		r.models[m.Name] = m
		r.folded[strings.ToLower(m.Name)] = m.Name
	}
	return r, nil
}

// MustNewRegistry is like NewRegistry but panics on error.
func MustNewRegistry(models ...*Model) *Registry {
	r, err := NewRegistry(models...)
	if err != nil {
		panic(err)
	}
	return r
}

// Model implements Catalog. Names are matched exactly first, then case
// insensitively.
func (r *Registry) Model(name string) (*Model, bool) {
	if m, found := r.models[name]; found {
		return m, true
	}
	if canonical, found := r.folded[strings.ToLower(name)]; found {
		return r.models[canonical], true
	}
	return nil, false
}

// Models returns the names of all registered models.
func (r *Registry) Models() []string {
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	return names
}

// SearchableFields implements SearchIndexer.
func (r *Registry) SearchableFields(model, exclude string) ([]string, bool) {
	m, found := r.Model(model)
	if !found {
		return nil, false
	}
	key := m.Name + "\x00" + exclude
	if fields, found := r.search.Get(key); found {
		return fields, true
	}
	fields := m.SearchableFields(exclude)
	r.search.Add(key, fields)
	return fields, true
}
