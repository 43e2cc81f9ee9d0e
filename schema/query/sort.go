package query

import (
	"strings"
)

// Sort compiles the orderBy clause from the sort parameter.
func (c *Compiler) Sort() {
	c.query.OrderBy = nil
	v, found := c.values.Get("sort")
	if !found {
		return
	}
	if s, ok := stringValue(v); ok {
		c.query.OrderBy = ParseSort(s)
	}
}

// ParseSort parses a sort expression. A sort expression is a list of fields
// separated by comas, the first field having the highest priority. A field
// sort is descending if preceded by a minus sign (-). A dotted field orders on
// a field of a relation:
//
//	ParseSort("name,-author.createdAt")
//	// [{name: asc}, {author: {createdAt: desc}}]
//
// Empty fields are skipped. Fields are not checked against the schema.
func ParseSort(sort string) []map[string]interface{} {
	var orderBy []map[string]interface{}
	for _, f := range strings.Split(sort, ",") {
		name := strings.TrimSpace(f)
		dir := "asc"
		// If the field start with - (to indicate descended sort), shift it.
		if strings.HasPrefix(name, "-") {
			name = strings.TrimSpace(name[1:])
			dir = "desc"
		}
		if name == "" {
			continue
		}
		orderBy = append(orderBy, orderByField(name, dir))
	}
	return orderBy
}

func orderByField(name, dir string) map[string]interface{} {
	parts := strings.Split(name, ".")
	var v interface{} = dir
	for i := len(parts) - 1; i > 0; i-- {
		v = map[string]interface{}{parts[i]: v}
	}
	return map[string]interface{}{parts[0]: v}
}
