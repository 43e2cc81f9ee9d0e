package mem

import (
	"fmt"
	"sort"

	"github.com/restgen/restgen/resource"
)

// sortKey is a single orderBy entry resolved to a field path.
type sortKey struct {
	path []string
	desc bool
	// nullsFirst tells where missing values go. By default they are greater
	// than any other value, like in PostgreSQL.
	nullsFirst bool
}

// sortableItems is a payload slice implementing sort.Interface
type sortableItems struct {
	keys  []sortKey
	items []map[string]interface{}
}

func (s sortableItems) Len() int {
	return len(s.items)
}

func (s sortableItems) Swap(i, j int) {
	s.items[i], s.items[j] = s.items[j], s.items[i]
}

func (s sortableItems) Less(i, j int) bool {
	for _, k := range s.keys {
		field1 := getPath(s.items[i], k.path)
		field2 := getPath(s.items[j], k.path)
		if field1 == nil || field2 == nil {
			if field1 == nil && field2 == nil {
				continue
			}
			return (field1 == nil) == k.nullsFirst
		}
		c, ok := compare(field1, field2)
		if !ok || c == 0 {
			continue
		}
		if k.desc {
			return c > 0
		}
		return c < 0
	}
	return false
}

// sortPayloads sorts payloads in place following the orderBy clause. Items
// with equal sort keys keep their insertion order.
func sortPayloads(payloads []map[string]interface{}, orderBy []map[string]interface{}) error {
	if len(orderBy) == 0 {
		return nil
	}
	keys := []sortKey{}
	for _, entry := range orderBy {
		for _, name := range sortedKeys(entry) {
			k, err := parseSortKey([]string{name}, entry[name])
			if err != nil {
				return err
			}
			keys = append(keys, k)
		}
	}
	sort.Stable(sortableItems{keys: keys, items: payloads})
	return nil
}

// parseSortKey resolves an orderBy value: a direction, a {sort, nulls}
// object or a nested orderBy on an embedded relation.
func parseSortKey(path []string, v interface{}) (sortKey, error) {
	switch t := v.(type) {
	case string:
		return newSortKey(path, t, nil)
	case map[string]interface{}:
		if dir, found := t["sort"]; found {
			s, _ := dir.(string)
			return newSortKey(path, s, t["nulls"])
		}
		if len(t) != 1 {
			return sortKey{}, fmt.Errorf("%w: orderBy on `%v' must have a single field", resource.ErrNotImplemented, path)
		}
		for name, nested := range t {
			return parseSortKey(append(path, name), nested)
		}
	}
	return sortKey{}, fmt.Errorf("%w: invalid orderBy on `%v'", resource.ErrNotImplemented, path)
}

func newSortKey(path []string, dir string, nulls interface{}) (sortKey, error) {
	k := sortKey{path: path}
	switch dir {
	case "asc":
	case "desc":
		k.desc = true
		k.nullsFirst = true
	default:
		return k, fmt.Errorf("%w: invalid sort direction `%s'", resource.ErrNotImplemented, dir)
	}
	switch nulls {
	case nil:
	case "first":
		k.nullsFirst = true
	case "last":
		k.nullsFirst = false
	default:
		return k, fmt.Errorf("%w: invalid nulls position `%v'", resource.ErrNotImplemented, nulls)
	}
	return k, nil
}

// getPath returns the value at path, walking through embedded to-one
// relations.
func getPath(payload map[string]interface{}, path []string) interface{} {
	var v interface{} = payload
	for _, name := range path {
		m, ok := v.(map[string]interface{})
		if !ok {
			return nil
		}
		v = m[name]
	}
	return v
}
