package query

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restgen/restgen/internal/testutil"
	"github.com/restgen/restgen/schema"
)

var testCatalog = schema.MustNewRegistry(
	&schema.Model{
		Name: "User",
		Fields: []schema.Field{
			{Name: "id", Type: schema.Int},
			{Name: "email", Type: schema.String},
			{Name: "name", Type: schema.String},
			{Name: "password", Type: schema.String},
			{Name: "age", Type: schema.Int},
			{Name: "score", Type: schema.Float},
			{Name: "active", Type: schema.Boolean},
			{Name: "tags", Type: schema.String, IsList: true},
			{Name: "posts", Kind: schema.ObjectKind, Type: "Post", IsList: true},
			{Name: "profile", Kind: schema.ObjectKind, Type: "Profile"},
		},
	},
	&schema.Model{
		Name: "Post",
		Fields: []schema.Field{
			{Name: "id", Type: schema.Int},
			{Name: "title", Type: schema.String},
			{Name: "authorId", Type: schema.Int},
			{Name: "published", Type: schema.Boolean},
			{Name: "createdAt", Type: schema.DateTime},
			{Name: "author", Kind: schema.ObjectKind, Type: "User"},
			{Name: "comments", Kind: schema.ObjectKind, Type: "Comment", IsList: true},
		},
	},
	&schema.Model{
		Name: "Comment",
		Fields: []schema.Field{
			{Name: "id", Type: schema.Int},
			{Name: "text", Type: schema.String},
			{Name: "author", Kind: schema.ObjectKind, Type: "User"},
		},
	},
	&schema.Model{
		Name: "Profile",
		Fields: []schema.Field{
			{Name: "id", Type: schema.Int},
			{Name: "bio", Type: schema.String},
			{Name: "userId", Type: schema.Int},
		},
	},
)

func newTestCompiler(t *testing.T, rawQuery, model string) *Compiler {
	t.Helper()
	c, err := NewCompiler(Request{RawQuery: rawQuery}, model, testCatalog, DefaultConf)
	require.NoError(t, err)
	return c
}

func filtersParam(json string) string {
	return "filters=" + url.QueryEscape(json)
}

func TestCompile(t *testing.T) {
	raw := "name=John&age=18&filterMode=AND&fields=name,-email&sort=-createdAt&page=2&limit=10"
	c := newTestCompiler(t, raw, "User")
	q, err := c.Compile()
	require.NoError(t, err)
	testutil.JSONEq(t, `{
		"where": {"AND": [{"name": "John"}, {"age": 18}]},
		"select": {"name": true},
		"omit": {"email": true, "password": true},
		"orderBy": [{"createdAt": "desc"}],
		"skip": 10,
		"take": 10
	}`, q)
}

func TestCompileDeterministic(t *testing.T) {
	raw := "b=1&a=2&c=3&search=jo&" + filtersParam(`{"d":4,"OR":[{"e":5}]}`) +
		"&include[posts][select][title]=true&include[profile]=true&sort=a,-b"
	req := Request{RawQuery: raw, Params: map[string]string{"z": "1", "y": "2"}}
	var first *Query
	for i := 0; i < 20; i++ {
		c, err := NewCompiler(req, "User", testCatalog, DefaultConf)
		require.NoError(t, err)
		q, err := c.Compile()
		require.NoError(t, err)
		if first == nil {
			first = q
			continue
		}
		assert.Equal(t, first, q)
	}
	leaves := first.Where["OR"].([]interface{})
	require.True(t, len(leaves) >= 6)
	assert.Equal(t, []interface{}{
		map[string]interface{}{"y": "2"},
		map[string]interface{}{"z": "1"},
		map[string]interface{}{"b": "1"},
		map[string]interface{}{"a": "2"},
		map[string]interface{}{"c": "3"},
		map[string]interface{}{"d": int64(4)},
	}, leaves[:6])
}

func TestCompileError(t *testing.T) {
	c := newTestCompiler(t, "name=John&select[password]=true", "User")
	q, err := c.Compile()
	assert.Nil(t, q)
	assert.ErrorIs(t, err, ErrExposureDetected)
}

func TestNewCompilerMalformedFilters(t *testing.T) {
	_, err := NewCompiler(Request{RawQuery: filtersParam(`{"name":`)}, "User", testCatalog, DefaultConf)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedFilterPayload)
	qerr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, 400, qerr.Status)
	assert.Equal(t, "filters", qerr.Meta["param"])
}

func TestConfDefaults(t *testing.T) {
	c, err := NewCompiler(Request{}, "User", testCatalog, Conf{})
	require.NoError(t, err)
	assert.Equal(t, DefaultConf.DefaultLimit, c.conf.DefaultLimit)
	assert.Equal(t, "OR", c.conf.DefaultFilterMode)
	assert.Equal(t, "User", c.conf.CredentialModel)
	assert.Equal(t, "password", c.conf.CredentialField)
	// A zero Conf doesn't fold: the switch is explicit.
	assert.False(t, c.conf.FoldIncludeIntoSelect)
}

func TestErrorIs(t *testing.T) {
	err := ErrInvalidParameter.with("Invalid `page'", map[string]interface{}{"param": "page"})
	assert.ErrorIs(t, err, ErrInvalidParameter)
	assert.NotErrorIs(t, err, ErrExposureDetected)
	assert.Equal(t, "Invalid `page'", err.Error())
	assert.Equal(t, "Invalid parameter", ErrInvalidParameter.Error())
	assert.Nil(t, ErrInvalidParameter.Meta)
}
