package query

import (
	"fmt"
	"strconv"
	"strings"
)

// stringValue returns v as a string. Slices of scalars (repeated query-string
// parameters) are joined with comas.
func stringValue(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := stringValue(item)
			if !ok {
				return "", false
			}
			parts = append(parts, s)
		}
		return strings.Join(parts, ","), true
	case int64, float64, bool:
		return fmt.Sprint(t), true
	default:
		return "", false
	}
}

// intValue returns v as an int. Strings are parsed in base 10 and floats must
// be integral.
func intValue(v interface{}) (int, bool) {
	switch t := v.(type) {
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		return i, err == nil
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		if t != float64(int(t)) {
			return 0, false
		}
		return int(t), true
	default:
		return 0, false
	}
}

// boolValue returns v as a bool. The strings "true", "1", "false" and "0" are
// accepted.
func boolValue(v interface{}) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch t {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
	case int64:
		switch t {
		case 1:
			return true, true
		case 0:
			return false, true
		}
	}
	return false, false
}

// objectList returns v as a list of objects. A single object is accepted as a
// one element list.
func objectList(v interface{}) ([]interface{}, bool) {
	switch t := v.(type) {
	case map[string]interface{}:
		return []interface{}{t}, true
	case []interface{}:
		for _, item := range t {
			if _, ok := item.(map[string]interface{}); !ok {
				return nil, false
			}
		}
		return t, true
	default:
		return nil, false
	}
}
