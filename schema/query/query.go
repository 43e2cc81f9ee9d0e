/*
Package query compiles untrusted HTTP query strings into query
specifications for a relational data-access layer.

A Compiler is created per request from the raw query string, the route path
parameters and a base scope supplied by the hosting module. Four steps
populate a Query:

  - Filter builds the where clause from plain equality parameters, explicit
    AND/OR groups, free text search and the base scope.
  - LimitFields builds select, include and omit from the legacy fields
    parameter and the native select/include/omit objects, and refuses any
    projection disclosing a credential field.
  - Sort builds orderBy from a coma separated list of fields.
  - Paginate builds skip and take from page and limit.

Steps can run in any order. Each step owns the Query keys it writes and
never reads the others.

A typical request looks like:

	/users?name=John&age[gte]=18&filterMode=AND&fields=name,-email&sort=-createdAt&page=2

or, with a JSON encoded filter:

	/users?filters={"OR":[{"name":"John"},{"name":"Jane"}]}&include[posts][select][title]=true
*/
package query

import (
	"github.com/restgen/restgen/schema"
)

// Query is the compiled query specification handed to the data-access layer.
// Field and operator names match the data-access layer query language.
type Query struct {
	// Where is written by Filter.
	Where map[string]interface{} `json:"where,omitempty"`
	// Select, Include and Omit are written by LimitFields.
	Select  Selection `json:"select,omitempty"`
	Include Selection `json:"include,omitempty"`
	Omit    Selection `json:"omit,omitempty"`
	// OrderBy is written by Sort.
	OrderBy []map[string]interface{} `json:"orderBy,omitempty"`
	// Skip and Take are written by Paginate. Both are nil when the whole
	// result set is requested.
	Skip *int `json:"skip,omitempty"`
	Take *int `json:"take,omitempty"`
}

// Conf defines the compiler configuration.
type Conf struct {
	// DefaultLimit is the page size used when no valid limit is given.
	DefaultLimit int
	// MaxLimit caps the page size. Zero means no cap.
	MaxLimit int
	// DefaultFilterMode is the combinator ("AND" or "OR") wrapping plain
	// equality filters when the filterMode parameter is absent.
	DefaultFilterMode string
	// CredentialModel is the name of the model holding credentials.
	CredentialModel string
	// CredentialField is the name of the protected field of CredentialModel.
	CredentialField string
	// FoldIncludeIntoSelect moves include entries into select whenever both
	// are used at the same level, as the data-access layer refuses them
	// together.
	FoldIncludeIntoSelect bool
}

// DefaultConf defines a configuration with sensible defaults.
var DefaultConf = Conf{
	DefaultLimit:          30,
	DefaultFilterMode:     "OR",
	CredentialModel:       "User",
	CredentialField:       "password",
	FoldIncludeIntoSelect: true,
}

func (c Conf) withDefaults() Conf {
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = DefaultConf.DefaultLimit
	}
	if c.DefaultFilterMode == "" {
		c.DefaultFilterMode = DefaultConf.DefaultFilterMode
	}
	if c.CredentialModel == "" {
		c.CredentialModel = DefaultConf.CredentialModel
	}
	if c.CredentialField == "" {
		c.CredentialField = DefaultConf.CredentialField
	}
	return c
}

// BaseOptions is the base scope supplied by the hosting module. It is trusted:
// its where clause always wins over client filters and its projection may
// deliberately expose a credential field.
type BaseOptions struct {
	Where   map[string]interface{}
	Select  map[string]interface{}
	Include map[string]interface{}
	Omit    map[string]interface{}
}

func (b BaseOptions) projection() map[string]interface{} {
	p := map[string]interface{}{}
	if len(b.Select) > 0 {
		p["select"] = b.Select
	}
	if len(b.Include) > 0 {
		p["include"] = b.Include
	}
	if len(b.Omit) > 0 {
		p["omit"] = b.Omit
	}
	return p
}

// Request holds the parts of an HTTP request the compiler reads.
type Request struct {
	// RawQuery is the encoded query string, without the leading '?'.
	RawQuery string
	// Params holds the route path parameters.
	Params map[string]string
	// Base is the base scope of the hosting module.
	Base BaseOptions
}

// Compiler compiles one request into a Query. A compiler is bound to a single
// request and must not be shared.
type Compiler struct {
	model   string
	catalog schema.Catalog
	conf    Conf
	values  Values
	params  map[string]string
	base    BaseOptions
	query   Query
}

// NewCompiler normalizes the request query string and returns a compiler
// targeting model. The model may be empty when the target is unknown, in which
// case search is unavailable and values are not coerced. A malformed filters
// parameter is reported here, before any step runs.
func NewCompiler(req Request, model string, catalog schema.Catalog, conf Conf) (*Compiler, error) {
	values, err := Normalize(req.RawQuery)
	if err != nil {
		return nil, err
	}
	return &Compiler{
		model:   model,
		catalog: catalog,
		conf:    conf.withDefaults(),
		values:  values,
		params:  req.Params,
		base:    req.Base,
	}, nil
}

// Values returns the normalized query tree.
func (c *Compiler) Values() Values {
	return c.values
}

// Query returns the query compiled so far.
func (c *Compiler) Query() Query {
	return c.query
}

// Compile runs all the compilation steps and returns the resulting query. On
// error, no query is returned.
func (c *Compiler) Compile() (*Query, error) {
	if err := c.Filter(); err != nil {
		return nil, err
	}
	if err := c.LimitFields(); err != nil {
		return nil, err
	}
	c.Sort()
	c.Paginate()
	q := c.query
	return &q, nil
}

func (c *Compiler) guard() Guard {
	return Guard{
		Catalog: c.catalog,
		Model:   c.conf.CredentialModel,
		Field:   c.conf.CredentialField,
	}
}
