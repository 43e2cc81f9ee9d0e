// Package schema provides the reflection catalog the query compiler consults
// to learn about the data models exposed by the API.
//
// A catalog maps a model name to the list of its fields. Each field carries
// its name, its kind (scalar, enum or relation), its type (the scalar type or
// the related model name) and whether it holds a list.
package schema

import "strings"

// Kind defines the kind of a model field.
type Kind string

const (
	// ScalarKind is a field holding a scalar value (string, number, ...).
	ScalarKind Kind = "scalar"
	// EnumKind is a field holding one of a set of predefined values.
	EnumKind Kind = "enum"
	// ObjectKind is a relation field pointing to another model.
	ObjectKind Kind = "object"
)

// Scalar types as reported by the data-access layer.
const (
	String   = "String"
	Int      = "Int"
	BigInt   = "BigInt"
	Float    = "Float"
	Decimal  = "Decimal"
	Boolean  = "Boolean"
	DateTime = "DateTime"
	JSON     = "Json"
	Bytes    = "Bytes"
)

// Field describes a single model field.
type Field struct {
	// Name is the field name as used in queries.
	Name string `yaml:"name" json:"name"`
	// Kind is the field kind. An empty kind is treated as ScalarKind.
	Kind Kind `yaml:"kind" json:"kind"`
	// Type is the scalar type for scalar fields, the enum name for enum fields
	// or the related model name for relation fields.
	Type string `yaml:"type" json:"type"`
	// IsList is true when the field holds a list of values or relations.
	IsList bool `yaml:"isList" json:"isList"`
}

// IsRelation returns true if the field points to another model.
func (f Field) IsRelation() bool {
	return f.Kind == ObjectKind
}

// Relation returns the name of the model the field points to, or an empty
// string if the field is not a relation.
func (f Field) Relation() string {
	if f.Kind != ObjectKind {
		return ""
	}
	return f.Type
}

// IsScalar returns true if the field is a scalar field.
func (f Field) IsScalar() bool {
	return f.Kind == ScalarKind || f.Kind == ""
}

// Model describes a data model and its fields.
type Model struct {
	Name   string  `yaml:"name" json:"name"`
	Fields []Field `yaml:"fields" json:"fields"`
}

// Field returns the field with the given name.
func (m *Model) Field(name string) (Field, bool) {
	if m == nil {
		return Field{}, false
	}
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// SearchableFields returns the names of the fields eligible for free text
// search: non list string scalars which are not identifiers and are not the
// excluded credential field. Fields whose name contains "Id" or "ID" are
// considered foreign keys and skipped.
func (m *Model) SearchableFields(exclude string) []string {
	if m == nil {
		return nil
	}
	names := []string{}
	for _, f := range m.Fields {
		if !f.IsScalar() || f.IsList || f.Type != String {
			continue
		}
		if f.Name == "id" || f.Name == "password" || f.Name == exclude {
			continue
		}
		if strings.Contains(f.Name, "Id") || strings.Contains(f.Name, "ID") {
			continue
		}
		names = append(names, f.Name)
	}
	return names
}

// Catalog gives access to the models known by the data-access layer.
type Catalog interface {
	// Model returns the model with the given name.
	Model(name string) (*Model, bool)
}

// SearchIndexer is an optional interface a Catalog can implement to serve
// precomputed searchable field lists (see Model.SearchableFields).
type SearchIndexer interface {
	SearchableFields(model, exclude string) ([]string, bool)
}

// RelationTarget returns the model the field of the given model points to.
// An empty string is returned if the model or the field is unknown, or if the
// field is not a relation.
func RelationTarget(c Catalog, model, field string) string {
	if c == nil || model == "" {
		return ""
	}
	m, found := c.Model(model)
	if !found {
		return ""
	}
	f, found := m.Field(field)
	if !found {
		return ""
	}
	return f.Relation()
}
