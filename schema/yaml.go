package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// catalogFile is the document layout read by LoadYAML:
//
//	models:
//	  - name: User
//	    fields:
//	      - {name: id, type: Int}
//	      - {name: email, type: String}
//	      - {name: posts, kind: object, type: Post, isList: true}
type catalogFile struct {
	Models []*Model `yaml:"models"`
}

// LoadYAML reads a catalog description from r and returns the corresponding
// registry.
func LoadYAML(r io.Reader) (*Registry, error) {
	var doc catalogFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("cannot decode catalog: %v", err)
	}
	for _, m := range doc.Models {
		if m == nil {
			continue
		}
		for i, f := range m.Fields {
			switch f.Kind {
			case "":
				m.Fields[i].Kind = ScalarKind
			case ScalarKind, EnumKind, ObjectKind:
			default:
				return nil, fmt.Errorf("%s.%s: invalid field kind `%s'", m.Name, f.Name, f.Kind)
			}
			if f.Name == "" {
				return nil, fmt.Errorf("%s: field without a name", m.Name)
			}
		}
	}
	return NewRegistry(doc.Models...)
}

// LoadYAMLFile reads a catalog description from the file at path.
func LoadYAMLFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadYAML(f)
}
