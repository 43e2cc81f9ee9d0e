package query

import (
	"strconv"
	"strings"
	"time"

	"github.com/restgen/restgen/schema"
)

// Filter operators understood by the data-access layer.
var operators = map[string]bool{
	"equals": true, "not": true,
	"in": true, "notIn": true,
	"lt": true, "lte": true, "gt": true, "gte": true,
	"contains": true, "startsWith": true, "endsWith": true, "mode": true,
	"has": true, "hasSome": true, "hasEvery": true, "isEmpty": true,
}

// listOperators take a list of values. A string value is split on comas.
var listOperators = map[string]bool{
	"in": true, "notIn": true, "hasSome": true, "hasEvery": true,
}

// relationFilters hold a nested filter on the related model.
var relationFilters = map[string]bool{
	"is": true, "isNot": true, "some": true, "every": true, "none": true,
}

// coercer converts query-string values to the type of the model fields they
// filter on. Values of unknown models or fields are left untouched.
type coercer struct {
	catalog schema.Catalog
}

// filter coerces every field of a filter object of the given model.
func (c coercer) filter(model string, f map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(f))
	for k, v := range f {
		switch k {
		case "AND", "OR", "NOT":
			out[k] = c.combinator(model, v)
		default:
			out[k] = c.field(model, k, v)
		}
	}
	return out
}

func (c coercer) combinator(model string, v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return c.filter(model, t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, item := range t {
			if m, ok := item.(map[string]interface{}); ok {
				out[i] = c.filter(model, m)
			} else {
				out[i] = item
			}
		}
		return out
	default:
		return v
	}
}

// field coerces the value filtering the given field.
func (c coercer) field(model, name string, v interface{}) interface{} {
	f, found := c.lookup(model, name)
	if !found {
		return v
	}
	if f.IsRelation() {
		m, ok := v.(map[string]interface{})
		if !ok {
			return v
		}
		out := make(map[string]interface{}, len(m))
		for k, item := range m {
			if nested, ok := item.(map[string]interface{}); ok && relationFilters[k] {
				out[k] = c.filter(f.Type, nested)
				continue
			}
			out[k] = c.field(f.Type, k, item)
		}
		return out
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return c.scalar(f, v)
	}
	out := make(map[string]interface{}, len(m))
	for op, item := range m {
		switch {
		case op == "mode":
			out[op] = item
		case op == "isEmpty":
			if b, ok := boolValue(item); ok {
				out[op] = b
			} else {
				out[op] = item
			}
		case listOperators[op]:
			out[op] = c.list(f, item)
		case op == "not":
			if nested, ok := item.(map[string]interface{}); ok {
				out[op] = c.field(model, name, nested)
			} else {
				out[op] = c.scalar(f, item)
			}
		case operators[op]:
			out[op] = c.scalar(f, item)
		default:
			out[op] = item
		}
	}
	return out
}

func (c coercer) list(f schema.Field, v interface{}) interface{} {
	var items []interface{}
	switch t := v.(type) {
	case string:
		for _, s := range strings.Split(t, ",") {
			items = append(items, s)
		}
	case []interface{}:
		items = t
	default:
		return v
	}
	out := make([]interface{}, len(items))
	for i, item := range items {
		out[i] = c.scalar(f, item)
	}
	return out
}

// scalar converts a string to the scalar type of the field. Values which
// can't be converted are returned unchanged and left to the data-access layer
// to reject.
func (c coercer) scalar(f schema.Field, v interface{}) interface{} {
	s, ok := v.(string)
	if !ok || !f.IsScalar() {
		return v
	}
	if s == "null" && f.Type != schema.String {
		return nil
	}
	switch f.Type {
	case schema.Int, schema.BigInt:
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
	case schema.Float, schema.Decimal:
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return n
		}
	case schema.Boolean:
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	case schema.DateTime:
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t
		}
	}
	return v
}

func (c coercer) lookup(model, name string) (schema.Field, bool) {
	if c.catalog == nil || model == "" {
		return schema.Field{}, false
	}
	m, found := c.catalog.Model(model)
	if !found {
		return schema.Field{}, false
	}
	return m.Field(name)
}
