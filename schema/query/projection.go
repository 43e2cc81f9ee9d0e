package query

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// NodeKind defines the kind of a projection node.
type NodeKind int

const (
	// LeafNode is a boolean switch on a field or relation.
	LeafNode NodeKind = iota
	// ObjectNode holds the nested projection of a relation.
	ObjectNode
	// ListNode holds several nested projections of the same relation.
	ListNode
)

// Node is an entry of a Selection. A leaf node carries a boolean while
// object and list nodes carry nested projections.
type Node struct {
	Kind  NodeKind
	Value bool
	Items []*Projection
}

// Leaf returns a leaf node.
func Leaf(v bool) Node {
	return Node{Kind: LeafNode, Value: v}
}

// Object returns a node holding the nested projection p.
func Object(p *Projection) Node {
	return Node{Kind: ObjectNode, Items: []*Projection{p}}
}

// List returns a node holding a list of nested projections.
func List(items ...*Projection) Node {
	return Node{Kind: ListNode, Items: items}
}

// MarshalJSON implements json.Marshaler.
func (n Node) MarshalJSON() ([]byte, error) {
	switch n.Kind {
	case ObjectNode:
		if len(n.Items) == 0 {
			return []byte("{}"), nil
		}
		return json.Marshal(n.Items[0])
	case ListNode:
		if n.Items == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(n.Items)
	default:
		return json.Marshal(n.Value)
	}
}

// Selection maps field and relation names to projection nodes.
type Selection map[string]Node

// Projection describes which fields and relations a query returns. Select is
// an allow list, Omit a deny list and Include adds relations to the default
// fields. Nested projections may carry relation arguments (where, orderBy,
// take, ...) in Extra; those are passed through untouched.
type Projection struct {
	Select  Selection
	Include Selection
	Omit    Selection
	Extra   map[string]interface{}
}

// relationArgs are the keys of a nested projection passed to the data-access
// layer as is. Any other unknown key is a shorthand for a nested select entry.
var relationArgs = map[string]bool{
	"where":    true,
	"orderBy":  true,
	"take":     true,
	"skip":     true,
	"cursor":   true,
	"distinct": true,
}

// MarshalJSON implements json.Marshaler.
func (p *Projection) MarshalJSON() ([]byte, error) {
	m := make(map[string]interface{}, len(p.Extra)+3)
	for k, v := range p.Extra {
		m[k] = v
	}
	if len(p.Select) > 0 {
		m["select"] = p.Select
	}
	if len(p.Include) > 0 {
		m["include"] = p.Include
	}
	if len(p.Omit) > 0 {
		m["omit"] = p.Omit
	}
	return json.Marshal(m)
}

func (p *Projection) selection(part string) Selection {
	if p == nil {
		return nil
	}
	switch part {
	case "select":
		return p.Select
	case "include":
		return p.Include
	default:
		return p.Omit
	}
}

// parseProjection converts a raw projection tree, as produced by the
// normalizer, into a Projection. At the top level only the select, include
// and omit keys are accepted.
func parseProjection(raw map[string]interface{}, path string, nested bool) (*Projection, error) {
	p := &Projection{}
	shorthand := map[string]interface{}{}
	for _, k := range sortedKeys(raw) {
		v := raw[k]
		switch {
		case k == "select" || k == "include" || k == "omit":
			s, err := parseSelection(v, joinPath(path, k), k == "omit")
			if err != nil {
				return nil, err
			}
			switch k {
			case "select":
				p.Select = s
			case "include":
				p.Include = s
			default:
				p.Omit = s
			}
		case nested && relationArgs[k]:
			if p.Extra == nil {
				p.Extra = map[string]interface{}{}
			}
			p.Extra[k] = copyValue(v)
		case nested:
			shorthand[k] = v
		default:
			return nil, invalidProjection(joinPath(path, k), "unknown projection key")
		}
	}
	if len(shorthand) > 0 {
		s, err := parseSelection(shorthand, joinPath(path, "select"), false)
		if err != nil {
			return nil, err
		}
		if p.Select == nil {
			p.Select = Selection{}
		}
		for k, n := range s {
			if _, found := p.Select[k]; !found {
				p.Select[k] = n
			}
		}
	}
	return p, nil
}

// parseSelection converts a raw select, include or omit value. A coma
// separated string is accepted as a list of enabled fields.
func parseSelection(v interface{}, path string, omit bool) (Selection, error) {
	var raw map[string]interface{}
	switch t := v.(type) {
	case map[string]interface{}:
		raw = t
	case string:
		raw = map[string]interface{}{}
		for _, name := range strings.Split(t, ",") {
			if name = strings.TrimSpace(name); name != "" {
				raw[name] = true
			}
		}
	default:
		return nil, invalidProjection(path, "must be an object")
	}
	s := make(Selection, len(raw))
	for _, k := range sortedKeys(raw) {
		switch t := raw[k].(type) {
		case map[string]interface{}:
			if omit {
				return nil, invalidProjection(joinPath(path, k), "omit only accepts booleans")
			}
			p, err := parseProjection(t, joinPath(path, k), true)
			if err != nil {
				return nil, err
			}
			s[k] = Object(p)
		case []interface{}:
			if omit {
				return nil, invalidProjection(joinPath(path, k), "omit only accepts booleans")
			}
			items := make([]*Projection, 0, len(t))
			for i, item := range t {
				m, ok := item.(map[string]interface{})
				if !ok {
					return nil, invalidProjection(fmt.Sprintf("%s[%d]", joinPath(path, k), i), "must be an object")
				}
				p, err := parseProjection(m, fmt.Sprintf("%s[%d]", joinPath(path, k), i), true)
				if err != nil {
					return nil, err
				}
				items = append(items, p)
			}
			s[k] = List(items...)
		default:
			b, ok := boolValue(t)
			if !ok {
				return nil, invalidProjection(joinPath(path, k), "must be a boolean")
			}
			s[k] = Leaf(b)
		}
	}
	return s, nil
}

func invalidProjection(path, reason string) error {
	return ErrInvalidParameter.with(fmt.Sprintf("Invalid projection `%s': %s", path, reason),
		map[string]interface{}{"param": path})
}

// fold moves include entries into select at every level where both are used.
// A nested include projection replaces a plain select switch on the same
// relation.
func fold(p *Projection) {
	if p == nil {
		return
	}
	if len(p.Select) > 0 && len(p.Include) > 0 {
		for k, n := range p.Include {
			if cur, found := p.Select[k]; !found || cur.Kind == LeafNode {
				p.Select[k] = n
			}
		}
		p.Include = nil
	}
	for _, s := range []Selection{p.Select, p.Include} {
		for _, n := range s {
			for _, item := range n.Items {
				fold(item)
			}
		}
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
