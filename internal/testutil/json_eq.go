// Package testutil holds helpers shared by the package tests.
package testutil

import (
	"encoding/json"
	"reflect"
	"testing"
)

// JSONEq logs an error to t if expect and actual do not hold equivalent JSON
// structures. Actual may be raw JSON ([]byte, string or json.RawMessage) or
// any value, in which case it is marshaled first. Returns true if no error was
// logged.
func JSONEq(t testing.TB, expect string, actual interface{}) bool {
	t.Helper()
	var raw []byte
	switch a := actual.(type) {
	case []byte:
		raw = a
	case json.RawMessage:
		raw = a
	case string:
		raw = []byte(a)
	default:
		b, err := json.Marshal(actual)
		if err != nil {
			t.Errorf("failed to marshal actual:\ninput: %#v\nerror: %s", actual, err.Error())
			return false
		}
		raw = b
	}

	var ei, ai interface{}
	if err := json.Unmarshal([]byte(expect), &ei); err != nil {
		t.Errorf("failed to unmarshal JSON from expect:\ninput: %q\nerror: %s", expect, err.Error())
		return false
	}
	if err := json.Unmarshal(raw, &ai); err != nil {
		t.Errorf("failed to unmarshal JSON from actual:\ninput: %q\nerror: %s", raw, err.Error())
		return false
	}
	if !reflect.DeepEqual(ei, ai) {
		t.Errorf("JSON not equal\nexpect: `%s`\nactual: `%s`", expect, raw)
		return false
	}
	return true
}
