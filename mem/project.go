package mem

import (
	"fmt"
	"math"
	"strconv"

	"github.com/restgen/restgen/resource"
	"github.com/restgen/restgen/schema/query"
)

// project applies a select/include/omit projection to a payload. Without
// select, all the scalar fields are returned plus the included relations.
func project(payload map[string]interface{}, sel, inc, omit query.Selection) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if len(sel) > 0 {
		for name, n := range sel {
			if err := projectField(out, payload, name, n); err != nil {
				return nil, err
			}
		}
	} else {
		for name, v := range payload {
			if !isRelation(v) {
				out[name] = v
			}
		}
		for name, n := range inc {
			if err := projectField(out, payload, name, n); err != nil {
				return nil, err
			}
		}
	}
	for name, n := range omit {
		if n.Kind == query.LeafNode && n.Value {
			delete(out, name)
		}
	}
	return out, nil
}

func projectField(out, payload map[string]interface{}, name string, n query.Node) error {
	v, found := payload[name]
	if !found {
		return nil
	}
	switch n.Kind {
	case query.LeafNode:
		if !n.Value {
			return nil
		}
		if !isRelation(v) {
			out[name] = v
			return nil
		}
		rel, err := projectRelation(v, nil)
		if err != nil {
			return err
		}
		out[name] = rel
	default:
		// Only the first projection of a list node is applied.
		var p *query.Projection
		if len(n.Items) > 0 {
			p = n.Items[0]
		}
		rel, err := projectRelation(v, p)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		out[name] = rel
	}
	return nil
}

// projectRelation projects an embedded relation. The where, orderBy, skip
// and take arguments of p apply to to-many relations.
func projectRelation(v interface{}, p *query.Projection) (interface{}, error) {
	if p == nil {
		p = &query.Projection{}
	}
	if m, ok := v.(map[string]interface{}); ok {
		return project(m, p.Select, p.Include, p.Omit)
	}
	list, ok := toMaps(v)
	if !ok {
		return v, nil
	}
	if where, found := p.Extra["where"]; found {
		w, ok := where.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: invalid nested where %v", resource.ErrNotImplemented, where)
		}
		var err error
		if list, err = filter(list, w); err != nil {
			return nil, err
		}
	} else {
		list = append([]map[string]interface{}{}, list...)
	}
	if orderBy, found := p.Extra["orderBy"]; found {
		o, err := orderByList(orderBy)
		if err != nil {
			return nil, err
		}
		if err := sortPayloads(list, o); err != nil {
			return nil, err
		}
	}
	skip, err := intArg(p.Extra, "skip")
	if err != nil {
		return nil, err
	}
	take, err := intArg(p.Extra, "take")
	if err != nil {
		return nil, err
	}
	list = window(list, skip, take)
	items := make([]interface{}, 0, len(list))
	for _, item := range list {
		projected, err := project(item, p.Select, p.Include, p.Omit)
		if err != nil {
			return nil, err
		}
		items = append(items, projected)
	}
	return items, nil
}

// orderByList accepts a single orderBy object or a list of them.
func orderByList(v interface{}) ([]map[string]interface{}, error) {
	switch t := v.(type) {
	case map[string]interface{}:
		return []map[string]interface{}{t}, nil
	case []map[string]interface{}:
		return t, nil
	case []interface{}:
		if l, ok := toMaps(t); ok {
			return l, nil
		}
	}
	return nil, fmt.Errorf("%w: invalid nested orderBy %v", resource.ErrNotImplemented, v)
}

// intArg reads a non negative integer argument. Query string arguments
// arrive as strings, JSON ones as numbers.
func intArg(args map[string]interface{}, name string) (int, error) {
	v, found := args[name]
	if !found {
		return 0, nil
	}
	var i int
	switch t := v.(type) {
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, fmt.Errorf("%w: invalid nested %s %q", resource.ErrNotImplemented, name, t)
		}
		i = n
	default:
		n, ok := isNumber(v)
		if !ok || n != math.Trunc(n) {
			return 0, fmt.Errorf("%w: invalid nested %s %v", resource.ErrNotImplemented, name, v)
		}
		i = int(n)
	}
	if i < 0 {
		return 0, fmt.Errorf("%w: negative nested %s", resource.ErrNotImplemented, name)
	}
	return i, nil
}

// isRelation returns true if v is an embedded relation: a map or a non empty
// list of maps.
func isRelation(v interface{}) bool {
	switch t := v.(type) {
	case map[string]interface{}:
		return true
	case []map[string]interface{}:
		return true
	case []interface{}:
		if len(t) == 0 {
			return false
		}
		_, ok := toMaps(t)
		return ok
	}
	return false
}
