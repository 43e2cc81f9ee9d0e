package query

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

// maxKeyDepth is the maximum number of segments of a query-string key.
const maxKeyDepth = 32

// Values is a normalized query tree. Keys written with the bracket (a[b][c])
// or dotted (a.b.c) notation are expanded into nested maps, repeated keys and
// keys ending with [] into slices, and maps indexed by integers (a[0], a[1])
// into slices ordered by index.
//
// Values also remembers the order in which top-level keys first appeared so
// the compilation of a query is deterministic.
type Values struct {
	tree  map[string]interface{}
	order []string
}

// Get returns the value stored under the top-level key.
func (v Values) Get(key string) (interface{}, bool) {
	val, found := v.tree[key]
	return val, found
}

// Has returns true if the top-level key is present.
func (v Values) Has(key string) bool {
	_, found := v.tree[key]
	return found
}

// Keys returns the top-level keys in order of first appearance.
func (v Values) Keys() []string {
	keys := make([]string, 0, len(v.order))
	for _, k := range v.order {
		if _, found := v.tree[k]; found {
			keys = append(keys, k)
		}
	}
	return keys
}

// Map returns a deep copy of the tree.
func (v Values) Map() map[string]interface{} {
	return Merge(ReplaceArrays, v.tree)
}

type param struct {
	key   string
	value string
}

// Normalize parses a raw query string into a normalized tree.
//
// The filters parameter, when present, must hold a JSON object. It is parsed
// strictly (a single object, no trailing data) and deep merged onto the other
// parameters, its keys taking precedence. Integral JSON numbers are decoded as
// int64 and other numbers as float64.
func Normalize(rawQuery string) (Values, error) {
	params, err := parseRawQuery(rawQuery)
	if err != nil {
		return Values{}, err
	}
	v := Values{tree: map[string]interface{}{}}
	seen := map[string]bool{}
	filters := []string{}
	for _, p := range params {
		segs, err := splitKey(p.key)
		if err != nil {
			return Values{}, err
		}
		if len(segs) == 1 && segs[0] == "filters" {
			filters = append(filters, p.value)
			continue
		}
		set(v.tree, segs, p.value)
		if !seen[segs[0]] {
			seen[segs[0]] = true
			v.order = append(v.order, segs[0])
		}
	}
	for k, val := range v.tree {
		v.tree[k] = compact(val)
	}
	for _, f := range filters {
		obj, keys, err := decodeObject(f)
		if err != nil {
			return Values{}, ErrMalformedFilterPayload.with(
				fmt.Sprintf("Malformed `filters' parameter: %v", err),
				map[string]interface{}{"param": "filters"})
		}
		v.tree = Merge(ReplaceArrays, v.tree, obj)
		for _, k := range keys {
			if !seen[k] {
				seen[k] = true
				v.order = append(v.order, k)
			}
		}
	}
	return v, nil
}

// parseRawQuery splits a query string into its key/value pairs, keeping
// their order.
func parseRawQuery(raw string) ([]param, error) {
	params := []param{}
	for raw != "" {
		var part string
		part, raw, _ = strings.Cut(raw, "&")
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, ErrInvalidParameter.with(fmt.Sprintf("Malformed query string: %v", err), nil)
		}
		if key == "" {
			continue
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return nil, ErrInvalidParameter.with(fmt.Sprintf("Malformed query string: %v", err),
				map[string]interface{}{"param": key})
		}
		params = append(params, param{key, value})
	}
	return params, nil
}

// splitKey splits a query-string key into its path segments:
//
//	a        => [a]
//	a.b      => [a b]
//	a[b][c]  => [a b c]
//	a.b[c]   => [a b c]
//	a[]      => [a ""]
func splitKey(key string) ([]string, error) {
	head, rest := key, ""
	if i := strings.IndexByte(key, '['); i > 0 {
		head, rest = key[:i], key[i:]
	}
	segs := strings.Split(head, ".")
	for len(rest) > 0 {
		end := strings.IndexByte(rest, ']')
		if rest[0] != '[' || end < 0 {
			// Not a bracket group, keep the remaining chars as part of the key.
			segs[len(segs)-1] += rest
			break
		}
		segs = append(segs, rest[1:end])
		rest = rest[end+1:]
	}
	if len(segs) > maxKeyDepth {
		return nil, ErrInvalidParameter.with(fmt.Sprintf("Parameter `%s' is nested too deeply", segs[0]),
			map[string]interface{}{"param": segs[0]})
	}
	return segs, nil
}

func set(node map[string]interface{}, segs []string, value interface{}) {
	key := segs[0]
	switch {
	case len(segs) == 1:
		addValue(node, key, value, false)
	case len(segs) == 2 && segs[1] == "":
		addValue(node, key, value, true)
	default:
		child, ok := node[key].(map[string]interface{})
		if !ok {
			child = map[string]interface{}{}
			node[key] = child
		}
		set(child, segs[1:], value)
	}
}

func addValue(node map[string]interface{}, key string, value interface{}, list bool) {
	cur, found := node[key]
	if !found {
		if list {
			node[key] = []interface{}{value}
		} else {
			node[key] = value
		}
		return
	}
	switch cur := cur.(type) {
	case []interface{}:
		node[key] = append(cur, value)
	case map[string]interface{}:
		node[key] = value
	default:
		node[key] = []interface{}{cur, value}
	}
}

// compact turns maps whose keys are all integers into slices ordered by
// index.
func compact(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		for k, item := range t {
			t[k] = compact(item)
		}
		if len(t) == 0 {
			return t
		}
		idx := make([]int, 0, len(t))
		byIdx := make(map[int]interface{}, len(t))
		for k, item := range t {
			i, err := strconv.Atoi(k)
			if err != nil || i < 0 {
				return t
			}
			if _, dup := byIdx[i]; dup {
				// "01" and "1" collide, keep it a map.
				return t
			}
			idx = append(idx, i)
			byIdx[i] = item
		}
		sort.Ints(idx)
		s := make([]interface{}, len(idx))
		for j, i := range idx {
			s[j] = byIdx[i]
		}
		return s
	case []interface{}:
		for i, item := range t {
			t[i] = compact(item)
		}
		return t
	default:
		return v
	}
}

// decodeObject strictly decodes a JSON object, returning its keys in document
// order.
func decodeObject(s string) (map[string]interface{}, []string, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, fmt.Errorf("expected a JSON object")
	}
	obj := map[string]interface{}{}
	keys := []string{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected an object key")
		}
		var val interface{}
		if err := dec.Decode(&val); err != nil {
			return nil, nil, err
		}
		if _, dup := obj[key]; !dup {
			keys = append(keys, key)
		}
		obj[key] = normalizeNumbers(val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, nil, fmt.Errorf("unexpected data after the JSON object")
	}
	return obj, keys, nil
}

func normalizeNumbers(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]interface{}:
		for k, item := range t {
			t[k] = normalizeNumbers(item)
		}
		return t
	case []interface{}:
		for i, item := range t {
			t[i] = normalizeNumbers(item)
		}
		return t
	default:
		return v
	}
}
