package query

import (
	"fmt"
	"strings"
)

// LimitFields compiles the select, include and omit clauses.
//
// The legacy fields parameter is a coma separated list where a bare name
// selects a field, a name prefixed by + includes a relation and a name
// prefixed by - omits a field:
//
//	fields=name,+posts,-email
//
// The native select, include and omit objects are merged over it, and both
// are merged over the base projection of the hosting module. The result is
// checked by the Guard, then the credential field is denied wherever the
// credential model is reached. On error the query is left untouched.
func (c *Compiler) LimitFields() error {
	for _, k := range []string{"addFields", "removeFields"} {
		if c.values.Has(k) {
			return ErrDeprecatedParameter.with(
				fmt.Sprintf("The `%s' parameter is no longer supported, use `fields' with +/- prefixes", k),
				map[string]interface{}{"param": k})
		}
	}
	legacy := map[string]interface{}{}
	if v, found := c.values.Get("fields"); found {
		s, ok := stringValue(v)
		if !ok {
			return ErrInvalidParameter.with("Invalid `fields' parameter: must be a coma separated list",
				map[string]interface{}{"param": "fields"})
		}
		legacy = parseFields(s)
	}
	native := map[string]interface{}{}
	for _, k := range []string{"select", "include", "omit"} {
		if v, found := c.values.Get(k); found {
			native[k] = v
		}
	}
	base := c.base.projection()
	trusted, err := parseProjection(base, "", false)
	if err != nil {
		return err
	}
	p, err := parseProjection(Merge(ReplaceArrays, base, legacy, native), "", false)
	if err != nil {
		return err
	}
	if c.conf.FoldIncludeIntoSelect {
		fold(p)
	}
	g := c.guard()
	if err := g.Check(c.model, p, trusted); err != nil {
		return err
	}
	g.Protect(c.model, p, trusted)
	c.query.Select = nonEmpty(p.Select)
	c.query.Include = nonEmpty(p.Include)
	c.query.Omit = nonEmpty(p.Omit)
	return nil
}

// parseFields parses the legacy fields parameter into a raw projection.
func parseFields(fields string) map[string]interface{} {
	sel := map[string]interface{}{}
	inc := map[string]interface{}{}
	omit := map[string]interface{}{}
	for _, f := range strings.Split(fields, ",") {
		f = strings.TrimSpace(f)
		switch {
		case f == "", f == "+", f == "-":
		case f[0] == '+':
			inc[strings.TrimSpace(f[1:])] = true
		case f[0] == '-':
			omit[strings.TrimSpace(f[1:])] = true
		default:
			sel[f] = true
		}
	}
	raw := map[string]interface{}{}
	if len(sel) > 0 {
		raw["select"] = sel
	}
	if len(inc) > 0 {
		raw["include"] = inc
	}
	if len(omit) > 0 {
		raw["omit"] = omit
	}
	return raw
}

func nonEmpty(s Selection) Selection {
	if len(s) == 0 {
		return nil
	}
	return s
}
