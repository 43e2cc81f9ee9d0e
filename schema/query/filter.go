package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/restgen/restgen/schema"
)

// reserved lists the parameters handled by a dedicated step. They are never
// turned into field filters.
var reserved = map[string]bool{
	"page":         true,
	"limit":        true,
	"sort":         true,
	"fields":       true,
	"search":       true,
	"filterMode":   true,
	"filters":      true,
	"include":      true,
	"select":       true,
	"omit":         true,
	"where":        true,
	"OR":           true,
	"AND":          true,
	"addFields":    true,
	"removeFields": true,
}

// Filter compiles the where clause.
//
// Every non reserved parameter, every route path parameter and every entry of
// an explicit where object becomes an equality filter. Those filters are
// combined under the filterMode combinator (OR by default). Explicit AND and OR
// groups are added to the matching combinator, a search term adds an OR group
// of case insensitive contains filters on the searchable fields of the model,
// and the base scope, coerced like client values, is merged last: it wins over
// any client value of the same field while the client clauses still narrow the
// result.
func (c *Compiler) Filter() error {
	co := coercer{catalog: c.catalog}
	groups := map[string][]interface{}{}
	addGroup := func(op string, v interface{}) error {
		list, ok := objectList(v)
		if !ok {
			return ErrInvalidParameter.with(
				fmt.Sprintf("Invalid `%s' parameter: must be a list of objects", op),
				map[string]interface{}{"param": op})
		}
		for _, item := range list {
			groups[op] = append(groups[op], co.filter(c.model, item.(map[string]interface{})))
		}
		return nil
	}
	for _, op := range []string{"OR", "AND"} {
		if v, found := c.values.Get(op); found {
			if err := addGroup(op, v); err != nil {
				return err
			}
		}
	}

	fields := map[string]interface{}{}
	order := []string{}
	add := func(k string, v interface{}) {
		if _, found := fields[k]; !found {
			order = append(order, k)
		}
		fields[k] = v
	}
	// Path parameters scope the route and can't be overridden by the query.
	names := make([]string, 0, len(c.params))
	for name := range c.params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		add(name, c.params[name])
	}
	for _, k := range c.values.Keys() {
		if _, isParam := c.params[k]; reserved[k] || isParam {
			continue
		}
		v, _ := c.values.Get(k)
		add(k, copyValue(v))
	}
	if v, found := c.values.Get("where"); found {
		w, ok := v.(map[string]interface{})
		if !ok {
			return ErrInvalidParameter.with("Invalid `where' parameter: must be an object",
				map[string]interface{}{"param": "where"})
		}
		for _, k := range sortedKeys(w) {
			if _, isParam := c.params[k]; isParam {
				continue
			}
			switch k {
			case "AND", "OR":
				if err := addGroup(k, w[k]); err != nil {
					return err
				}
			default:
				add(k, copyValue(w[k]))
			}
		}
	}

	mode, err := c.filterMode()
	if err != nil {
		return err
	}
	where := map[string]interface{}{}
	if len(order) > 0 {
		leaves := make([]interface{}, 0, len(order))
		for _, k := range order {
			leaves = append(leaves, co.filter(c.model, map[string]interface{}{k: fields[k]}))
		}
		where[mode] = leaves
	}
	for _, op := range []string{"OR", "AND"} {
		if g := groups[op]; len(g) > 0 {
			where = Merge(ConcatArrays, where, map[string]interface{}{op: g})
		}
	}

	if v, found := c.values.Get("search"); found {
		term, _ := stringValue(v)
		if term = strings.TrimSpace(term); term != "" {
			group, err := c.search(term)
			if err != nil {
				return err
			}
			where = Merge(ConcatArrays, where, map[string]interface{}{"OR": group})
		}
	}

	if len(c.base.Where) > 0 {
		where = scope(where, co.filter(c.model, c.base.Where))
	}
	if len(where) == 0 {
		where = nil
	}
	c.query.Where = where
	return nil
}

// scope merges the trusted base where over the client where. Field keys of the
// base win. Base AND clauses are appended to the client ones, and when both
// sides carry an OR (or a NOT) combinator, both are kept as AND clauses so
// neither side can widen the other.
func scope(where, base map[string]interface{}) map[string]interface{} {
	out := Merge(ReplaceArrays, where)
	var and []interface{}
	if v, found := out["AND"]; found {
		and = clauseList(v)
	}
	for _, k := range sortedKeys(base) {
		v := copyValue(base[k])
		switch k {
		case "AND":
			and = append(and, clauseList(v)...)
		case "OR", "NOT":
			cur, found := out[k]
			if !found {
				out[k] = v
				continue
			}
			delete(out, k)
			and = append(and, map[string]interface{}{k: cur}, map[string]interface{}{k: v})
		default:
			out = Merge(ReplaceArrays, out, map[string]interface{}{k: v})
		}
	}
	if len(and) > 0 {
		out["AND"] = and
	}
	return out
}

// clauseList returns the clauses of a combinator value, which may be a single
// filter object or a list of them.
func clauseList(v interface{}) []interface{} {
	switch t := v.(type) {
	case []interface{}:
		return append([]interface{}{}, t...)
	case nil:
		return nil
	}
	return []interface{}{v}
}

func (c *Compiler) filterMode() (string, error) {
	mode := strings.ToUpper(c.conf.DefaultFilterMode)
	v, found := c.values.Get("filterMode")
	if !found {
		return mode, nil
	}
	s, _ := stringValue(v)
	switch m := strings.ToUpper(strings.TrimSpace(s)); m {
	case "AND", "OR":
		return m, nil
	case "":
		return mode, nil
	default:
		return "", ErrInvalidParameter.with(
			fmt.Sprintf("Invalid `filterMode' parameter: `%s' is not AND or OR", s),
			map[string]interface{}{"param": "filterMode"})
	}
}

// search returns the list of contains filters matching term on every
// searchable field of the model.
func (c *Compiler) search(term string) ([]interface{}, error) {
	if c.model == "" {
		return nil, ErrSearchUnavailable.with("Search is not available: no model bound to the query", nil)
	}
	var fields []string
	found := false
	if idx, ok := c.catalog.(schema.SearchIndexer); ok {
		fields, found = idx.SearchableFields(c.model, c.conf.CredentialField)
	} else if c.catalog != nil {
		var m *schema.Model
		if m, found = c.catalog.Model(c.model); found {
			fields = m.SearchableFields(c.conf.CredentialField)
		}
	}
	if !found {
		return nil, ErrUnknownModel.with(fmt.Sprintf("Unknown model `%s'", c.model),
			map[string]interface{}{"model": c.model})
	}
	group := make([]interface{}, 0, len(fields))
	for _, f := range fields {
		group = append(group, map[string]interface{}{
			f: map[string]interface{}{"contains": term, "mode": "insensitive"},
		})
	}
	return group, nil
}
