package mem

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/restgen/restgen/resource"
)

// filter returns the payloads matching the where clause.
func filter(payloads []map[string]interface{}, where map[string]interface{}) ([]map[string]interface{}, error) {
	matched := make([]map[string]interface{}, 0, len(payloads))
	for _, p := range payloads {
		ok, err := match(where, p)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, p)
		}
	}
	return matched, nil
}

// match returns true if payload matches every entry of the where clause.
// Entries are evaluated in key order and all of them are evaluated so an
// unsupported operator is always reported.
func match(where map[string]interface{}, payload map[string]interface{}) (bool, error) {
	keys := make([]string, 0, len(where))
	for k := range where {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	result := true
	for _, k := range keys {
		ok, err := matchEntry(k, where[k], payload)
		if err != nil {
			return false, err
		}
		result = result && ok
	}
	return result, nil
}

func matchEntry(key string, cond interface{}, payload map[string]interface{}) (bool, error) {
	switch key {
	case "AND", "OR", "NOT":
		list, err := clauses(key, cond)
		if err != nil {
			return false, err
		}
		matches := 0
		for _, c := range list {
			ok, err := match(c, payload)
			if err != nil {
				return false, err
			}
			if ok {
				matches++
			}
		}
		switch key {
		case "AND":
			return matches == len(list), nil
		case "OR":
			return matches > 0, nil
		default:
			return matches == 0, nil
		}
	default:
		return matchField(payload[key], cond)
	}
}

// clauses returns the list of sub-clauses of a combinator. A single object is
// accepted as a one element list.
func clauses(key string, cond interface{}) ([]map[string]interface{}, error) {
	switch t := cond.(type) {
	case map[string]interface{}:
		return []map[string]interface{}{t}, nil
	case []interface{}:
		list := make([]map[string]interface{}, 0, len(t))
		for _, item := range t {
			m, ok := item.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("%w: %s: invalid clause %v", resource.ErrNotImplemented, key, item)
			}
			list = append(list, m)
		}
		return list, nil
	default:
		return nil, fmt.Errorf("%w: %s: invalid clause %v", resource.ErrNotImplemented, key, cond)
	}
}

// matchField matches a single payload value against a field condition.
func matchField(value, cond interface{}) (bool, error) {
	ops, ok := cond.(map[string]interface{})
	if !ok {
		return equal(value, cond, false), nil
	}
	if rel, ok := value.(map[string]interface{}); ok || value == nil && !isScalarCondition(ops) {
		return matchToOne(rel, ops)
	}
	if list, ok := toMaps(value); ok && isRelationCondition(ops) {
		return matchToMany(list, ops)
	}
	return matchOperators(value, ops)
}

var toOneFilters = map[string]bool{"is": true, "isNot": true}
var toManyFilters = map[string]bool{"some": true, "every": true, "none": true}

var scalarOperators = map[string]bool{
	"equals": true, "not": true, "in": true, "notIn": true,
	"lt": true, "lte": true, "gt": true, "gte": true,
	"contains": true, "startsWith": true, "endsWith": true, "mode": true,
	"has": true, "hasSome": true, "hasEvery": true, "isEmpty": true,
}

// isScalarCondition returns true if ops only holds scalar operators.
func isScalarCondition(ops map[string]interface{}) bool {
	for k := range ops {
		if !scalarOperators[k] {
			return false
		}
	}
	return true
}

func isRelationCondition(ops map[string]interface{}) bool {
	for k := range ops {
		if toOneFilters[k] || toManyFilters[k] {
			return true
		}
	}
	return false
}

// matchToOne matches an embedded related payload. A condition without is or
// isNot is a shorthand for is.
func matchToOne(rel map[string]interface{}, ops map[string]interface{}) (bool, error) {
	if !isRelationCondition(ops) {
		if rel == nil {
			return false, nil
		}
		return match(ops, rel)
	}
	result := true
	for _, k := range sortedKeys(ops) {
		if !toOneFilters[k] {
			return false, fmt.Errorf("%w: unsupported relation filter `%s'", resource.ErrNotImplemented, k)
		}
		var ok bool
		if ops[k] == nil {
			ok = rel == nil
		} else {
			where, isMap := ops[k].(map[string]interface{})
			if !isMap {
				return false, fmt.Errorf("%w: %s: invalid clause %v", resource.ErrNotImplemented, k, ops[k])
			}
			if rel != nil {
				var err error
				if ok, err = match(where, rel); err != nil {
					return false, err
				}
			}
		}
		if k == "isNot" {
			ok = !ok
		}
		result = result && ok
	}
	return result, nil
}

// matchToMany matches a list of embedded related payloads.
func matchToMany(list []map[string]interface{}, ops map[string]interface{}) (bool, error) {
	result := true
	for _, k := range sortedKeys(ops) {
		if !toManyFilters[k] {
			return false, fmt.Errorf("%w: unsupported relation filter `%s'", resource.ErrNotImplemented, k)
		}
		where, ok := ops[k].(map[string]interface{})
		if !ok {
			return false, fmt.Errorf("%w: %s: invalid clause %v", resource.ErrNotImplemented, k, ops[k])
		}
		matches := 0
		for _, rel := range list {
			ok, err := match(where, rel)
			if err != nil {
				return false, err
			}
			if ok {
				matches++
			}
		}
		switch k {
		case "some":
			ok = matches > 0
		case "every":
			ok = matches == len(list)
		default:
			ok = matches == 0
		}
		result = result && ok
	}
	return result, nil
}

// matchOperators matches a scalar (or scalar list) value against a set of
// operators.
func matchOperators(value interface{}, ops map[string]interface{}) (bool, error) {
	insensitive := false
	if mode, found := ops["mode"]; found {
		switch mode {
		case "insensitive":
			insensitive = true
		case "default":
		default:
			return false, fmt.Errorf("%w: unsupported mode `%v'", resource.ErrNotImplemented, mode)
		}
	}
	result := true
	for _, op := range sortedKeys(ops) {
		arg := ops[op]
		var ok bool
		switch op {
		case "mode":
			continue
		case "equals":
			ok = equal(value, arg, insensitive)
		case "not":
			if m, isMap := arg.(map[string]interface{}); isMap {
				nested, err := matchOperators(value, m)
				if err != nil {
					return false, err
				}
				ok = !nested
			} else {
				ok = !equal(value, arg, insensitive)
			}
		case "in", "notIn":
			ok = contains(toList(arg), value, insensitive)
			if op == "notIn" {
				ok = !ok
			}
		case "lt", "lte", "gt", "gte":
			c, comparable := compare(value, arg)
			if !comparable {
				ok = false
				break
			}
			switch op {
			case "lt":
				ok = c < 0
			case "lte":
				ok = c <= 0
			case "gt":
				ok = c > 0
			default:
				ok = c >= 0
			}
		case "contains", "startsWith", "endsWith":
			s, isString := value.(string)
			sub, argString := arg.(string)
			if !isString || !argString {
				ok = false
				break
			}
			if insensitive {
				s, sub = strings.ToLower(s), strings.ToLower(sub)
			}
			switch op {
			case "contains":
				ok = strings.Contains(s, sub)
			case "startsWith":
				ok = strings.HasPrefix(s, sub)
			default:
				ok = strings.HasSuffix(s, sub)
			}
		case "has":
			ok = contains(toList(value), arg, false)
		case "hasSome", "hasEvery":
			values := toList(value)
			matches := 0
			args := toList(arg)
			for _, a := range args {
				if contains(values, a, false) {
					matches++
				}
			}
			if op == "hasSome" {
				ok = matches > 0
			} else {
				ok = matches == len(args)
			}
		case "isEmpty":
			b, isBool := arg.(bool)
			if !isBool {
				return false, fmt.Errorf("%w: isEmpty: invalid value %v", resource.ErrNotImplemented, arg)
			}
			ok = (len(toList(value)) == 0) == b
		default:
			return false, fmt.Errorf("%w: unsupported operator `%s'", resource.ErrNotImplemented, op)
		}
		result = result && ok
	}
	return result, nil
}

// isNumber takes an interface as input, and returns a float64 if the type is
// compatible (int* or float*).
func isNumber(n interface{}) (float64, bool) {
	switch n := n.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// equal compares a payload value with a query value. Numbers of any type are
// compared by value.
func equal(value, arg interface{}, insensitive bool) bool {
	if value == nil || arg == nil {
		return value == nil && arg == nil
	}
	if c, ok := compare(value, arg); ok {
		if insensitive {
			s, ok := value.(string)
			if s2, ok2 := arg.(string); ok && ok2 {
				return strings.EqualFold(s, s2)
			}
		}
		return c == 0
	}
	return reflect.DeepEqual(value, arg)
}

// compare returns -1, 0 or 1 when a is lower, equal or greater than b. The
// second value is false if the values can't be compared.
func compare(a, b interface{}) (int, bool) {
	if n1, ok := isNumber(a); ok {
		n2, ok := isNumber(b)
		if !ok {
			return 0, false
		}
		switch {
		case n1 < n2:
			return -1, true
		case n1 > n2:
			return 1, true
		}
		return 0, true
	}
	if t, ok := b.(time.Time); ok {
		if _, ok := a.(time.Time); !ok {
			c, ok := compare(t, a)
			return -c, ok
		}
	}
	switch t := a.(type) {
	case string:
		if s, ok := b.(string); ok {
			return strings.Compare(t, s), true
		}
	case bool:
		if b2, ok := b.(bool); ok {
			switch {
			case t == b2:
				return 0, true
			case !t:
				return -1, true
			}
			return 1, true
		}
	case time.Time:
		var t2 time.Time
		switch v := b.(type) {
		case time.Time:
			t2 = v
		case string:
			var err error
			if t2, err = time.Parse(time.RFC3339, v); err != nil {
				return 0, false
			}
		default:
			return 0, false
		}
		switch {
		case t.Before(t2):
			return -1, true
		case t.After(t2):
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func contains(list []interface{}, value interface{}, insensitive bool) bool {
	for _, item := range list {
		if equal(item, value, insensitive) {
			return true
		}
	}
	return false
}

// toList converts any slice to a []interface{}. Other values give nil.
func toList(v interface{}) []interface{} {
	if l, ok := v.([]interface{}); ok {
		return l
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil
	}
	l := make([]interface{}, rv.Len())
	for i := range l {
		l[i] = rv.Index(i).Interface()
	}
	return l
}

// toMaps returns v as a list of payloads if v is a list of embedded
// relations.
func toMaps(v interface{}) ([]map[string]interface{}, bool) {
	switch t := v.(type) {
	case []map[string]interface{}:
		return t, true
	case []interface{}:
		list := make([]map[string]interface{}, 0, len(t))
		for _, item := range t {
			m, ok := item.(map[string]interface{})
			if !ok {
				return nil, false
			}
			list = append(list, m)
		}
		return list, true
	}
	return nil, false
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
