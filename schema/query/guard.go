package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/restgen/restgen/schema"
)

// Guard prevents a projection from disclosing the credential field of the
// credential model, whether the model is queried directly or reached through
// any chain of relations.
//
// The model a nested projection applies to is resolved through the catalog.
// When it can't be resolved, the guard assumes it may be the credential model.
type Guard struct {
	Catalog schema.Catalog
	// Model is the name of the credential model.
	Model string
	// Field is the name of the credential field.
	Field string
}

// Check walks projection p applied to model and returns an error if p
// enables the credential field without denying it at the same level, or
// disables its denial. The trusted projection, usually the hosting module
// base projection, may deliberately re-enable the field: paths it re-enables
// are not reported. Check never modifies p.
func (g Guard) Check(model string, p, trusted *Projection) error {
	return g.walk(model, p, trusted, "")
}

func (g Guard) walk(model string, p, trusted *Projection, path string) error {
	if p == nil {
		return nil
	}
	if g.guarded(model) && !trusted.enables(g.Field) {
		omit, found := p.Omit[g.Field]
		if found && omit.Kind == LeafNode && !omit.Value {
			where := joinPath(joinPath(path, "omit"), g.Field)
			return ErrCannotDisableExposureProtection.with(
				fmt.Sprintf("Cannot disable the protection of `%s'", where),
				map[string]interface{}{"path": where})
		}
		omitted := found && omit.Kind == LeafNode && omit.Value
		for _, part := range []string{"select", "include"} {
			n, found := p.selection(part)[g.Field]
			if !found || omitted || (n.Kind == LeafNode && !n.Value) {
				continue
			}
			where := joinPath(joinPath(path, part), g.Field)
			return ErrExposureDetected.with(
				fmt.Sprintf("Projection `%s' exposes a protected field", where),
				map[string]interface{}{"path": where})
		}
	}
	for _, part := range []string{"select", "include"} {
		s := p.selection(part)
		for _, k := range selectionKeys(s) {
			n := s[k]
			if n.Kind == LeafNode {
				continue
			}
			target := schema.RelationTarget(g.Catalog, model, k)
			for i, item := range n.Items {
				sub := joinPath(joinPath(path, part), k)
				if n.Kind == ListNode {
					sub = fmt.Sprintf("%s[%d]", sub, i)
				}
				if err := g.walk(target, item, trusted.child(part, k, i), sub); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// Protect denies the credential field everywhere p reaches the credential
// model, unless the trusted projection re-enables it. Relation switches
// pointing to the credential model (author: true) are expanded into a nested
// projection denying the field. Protect must run after a successful Check.
func (g Guard) Protect(model string, p, trusted *Projection) {
	if p == nil {
		return
	}
	if g.credential(model) && !trusted.enables(g.Field) {
		if p.Omit == nil {
			p.Omit = Selection{}
		}
		p.Omit[g.Field] = Leaf(true)
	}
	for _, part := range []string{"select", "include"} {
		s := p.selection(part)
		for _, k := range selectionKeys(s) {
			n := s[k]
			target := schema.RelationTarget(g.Catalog, model, k)
			if target == "" {
				continue
			}
			if n.Kind == LeafNode {
				if n.Value && g.credential(target) && !trusted.child(part, k, 0).enables(g.Field) {
					s[k] = Object(&Projection{Omit: Selection{g.Field: Leaf(true)}})
				}
				continue
			}
			for i, item := range n.Items {
				g.Protect(target, item, trusted.child(part, k, i))
			}
		}
	}
}

// credential returns true if model is known to be the credential model.
func (g Guard) credential(model string) bool {
	return model != "" && strings.EqualFold(model, g.Model)
}

// guarded returns true if model is, or may be, the credential model.
func (g Guard) guarded(model string) bool {
	if model == "" || g.credential(model) || g.Catalog == nil {
		return true
	}
	_, found := g.Catalog.Model(model)
	return !found
}

// enables returns true if the projection explicitly enables field.
func (p *Projection) enables(field string) bool {
	if p == nil {
		return false
	}
	if n, found := p.Omit[field]; found && n.Kind == LeafNode && !n.Value {
		return true
	}
	for _, s := range []Selection{p.Select, p.Include} {
		if n, found := s[field]; found && n.Kind == LeafNode && n.Value {
			return true
		}
	}
	return false
}

// child returns the i-th nested projection of relation k found in part, or in
// the other of select and include as folding may have moved it.
func (p *Projection) child(part, k string, i int) *Projection {
	if p == nil {
		return nil
	}
	other := "include"
	if part == "include" {
		other = "select"
	}
	for _, s := range []Selection{p.selection(part), p.selection(other)} {
		n, found := s[k]
		if !found || len(n.Items) == 0 {
			continue
		}
		if i < len(n.Items) {
			return n.Items[i]
		}
		// Items past the trusted list only come from the client.
		return nil
	}
	return nil
}

func selectionKeys(s Selection) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
