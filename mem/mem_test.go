package mem

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restgen/restgen/internal/testutil"
	"github.com/restgen/restgen/resource"
	"github.com/restgen/restgen/schema/query"
)

func newTestHandler(t *testing.T) *MemoryHandler {
	t.Helper()
	h := NewHandler()
	err := h.Insert(context.Background(), []map[string]interface{}{
		{
			"id": 1, "name": "John", "email": "john@example.com", "password": "hash1", "age": 30,
			"tags":    []interface{}{"admin", "staff"},
			"profile": map[string]interface{}{"bio": "Gopher"},
			"posts": []interface{}{
				map[string]interface{}{"id": 10, "title": "Hello", "published": true},
				map[string]interface{}{"id": 11, "title": "Draft", "published": false},
				map[string]interface{}{"id": 12, "title": "Again", "published": true},
			},
		},
		{
			"id": 2, "name": "Jane", "email": "jane@example.com", "password": "hash2", "age": 25,
			"tags":  []interface{}{"staff"},
			"posts": []interface{}{},
		},
		{
			"id": 3, "name": "jack", "email": "jack@example.org", "password": "hash3",
			"tags": []interface{}{},
			"posts": []interface{}{
				map[string]interface{}{"id": 13, "title": "Jack's", "published": false},
			},
		},
	})
	require.NoError(t, err)
	return h
}

func ids(l *resource.ItemList) []interface{} {
	ids := []interface{}{}
	for _, i := range l.Items {
		ids = append(ids, i.ID)
	}
	return ids
}

func compile(t *testing.T, raw string) *query.Query {
	t.Helper()
	c, err := query.NewCompiler(query.Request{RawQuery: raw}, "", nil, query.DefaultConf)
	require.NoError(t, err)
	q, err := c.Compile()
	require.NoError(t, err)
	return q
}

func TestInsert(t *testing.T) {
	h := NewHandler()
	ctx := context.Background()
	require.NoError(t, h.Insert(ctx, []map[string]interface{}{{"name": "a"}, {"id": "b"}}))
	assert.Equal(t, 2, h.Len())

	l, err := h.Find(ctx, &query.Query{})
	require.NoError(t, err)
	require.Len(t, l.Items, 2)
	assert.IsType(t, "", l.Items[0].ID)
	assert.NotEmpty(t, l.Items[0].ID)
	assert.Equal(t, "b", l.Items[1].ID)

	err = h.Insert(ctx, []map[string]interface{}{{"id": "c"}, {"id": "b"}})
	assert.Equal(t, resource.ErrConflict, err)
	err = h.Insert(ctx, []map[string]interface{}{{"id": "d"}, {"id": "d"}})
	assert.Equal(t, resource.ErrConflict, err)
	assert.Equal(t, 2, h.Len(), "nothing inserted on conflict")
}

func TestInsertCopiesPayload(t *testing.T) {
	h := NewHandler()
	p := map[string]interface{}{"id": 1, "name": "a"}
	require.NoError(t, h.Insert(context.Background(), []map[string]interface{}{p}))
	p["name"] = "b"
	l, err := h.Find(context.Background(), &query.Query{})
	require.NoError(t, err)
	assert.Equal(t, "a", l.Items[0].Payload["name"])
}

func TestFind(t *testing.T) {
	cases := []struct {
		name  string
		query *query.Query
		ids   []interface{}
		total int
	}{
		{"all", &query.Query{}, []interface{}{1, 2, 3}, 3},
		{"equals", &query.Query{Where: map[string]interface{}{"name": "Jane"}}, []interface{}{2}, 1},
		{"OR", &query.Query{Where: map[string]interface{}{"OR": []interface{}{
			map[string]interface{}{"name": "Jane"},
			map[string]interface{}{"id": 3},
		}}}, []interface{}{2, 3}, 2},
		{"AND", &query.Query{Where: map[string]interface{}{"AND": []interface{}{
			map[string]interface{}{"age": map[string]interface{}{"gte": 25}},
			map[string]interface{}{"age": map[string]interface{}{"lt": 30}},
		}}}, []interface{}{2}, 1},
		{"empty OR", &query.Query{Where: map[string]interface{}{"OR": []interface{}{}}}, []interface{}{}, 0},
		{"NOT", &query.Query{Where: map[string]interface{}{"NOT": map[string]interface{}{"name": "John"}}}, []interface{}{2, 3}, 2},
		{"in", &query.Query{Where: map[string]interface{}{"id": map[string]interface{}{"in": []interface{}{1.0, 3.0}}}}, []interface{}{1, 3}, 2},
		{"notIn", &query.Query{Where: map[string]interface{}{"id": map[string]interface{}{"notIn": []interface{}{1}}}}, []interface{}{2, 3}, 2},
		{"not", &query.Query{Where: map[string]interface{}{"name": map[string]interface{}{"not": "John"}}}, []interface{}{2, 3}, 2},
		{"null", &query.Query{Where: map[string]interface{}{"age": nil}}, []interface{}{3}, 1},
		{"contains insensitive", &query.Query{Where: map[string]interface{}{
			"name": map[string]interface{}{"contains": "J", "mode": "insensitive"},
		}}, []interface{}{1, 2, 3}, 3},
		{"startsWith", &query.Query{Where: map[string]interface{}{"name": map[string]interface{}{"startsWith": "Ja"}}}, []interface{}{2}, 1},
		{"endsWith", &query.Query{Where: map[string]interface{}{"email": map[string]interface{}{"endsWith": ".org"}}}, []interface{}{3}, 1},
		{"has", &query.Query{Where: map[string]interface{}{"tags": map[string]interface{}{"has": "staff"}}}, []interface{}{1, 2}, 2},
		{"hasEvery", &query.Query{Where: map[string]interface{}{"tags": map[string]interface{}{"hasEvery": []interface{}{"staff", "admin"}}}}, []interface{}{1}, 1},
		{"isEmpty", &query.Query{Where: map[string]interface{}{"tags": map[string]interface{}{"isEmpty": true}}}, []interface{}{3}, 1},
		{"some", &query.Query{Where: map[string]interface{}{"posts": map[string]interface{}{
			"some": map[string]interface{}{"published": true},
		}}}, []interface{}{1}, 1},
		{"every", &query.Query{Where: map[string]interface{}{"posts": map[string]interface{}{
			"every": map[string]interface{}{"published": false},
		}}}, []interface{}{2, 3}, 2},
		{"none", &query.Query{Where: map[string]interface{}{"posts": map[string]interface{}{
			"none": map[string]interface{}{"published": true},
		}}}, []interface{}{2, 3}, 2},
		{"to-one shorthand", &query.Query{Where: map[string]interface{}{"profile": map[string]interface{}{"bio": "Gopher"}}}, []interface{}{1}, 1},
		{"is null", &query.Query{Where: map[string]interface{}{"profile": map[string]interface{}{"is": nil}}}, []interface{}{2, 3}, 2},
		{"isNot", &query.Query{Where: map[string]interface{}{"profile": map[string]interface{}{
			"isNot": map[string]interface{}{"bio": "Gopher"},
		}}}, []interface{}{2, 3}, 2},
		{"sort desc", &query.Query{OrderBy: []map[string]interface{}{{"name": "desc"}}}, []interface{}{3, 1, 2}, 3},
		{"sort nulls", &query.Query{OrderBy: []map[string]interface{}{{"age": "asc"}}}, []interface{}{2, 1, 3}, 3},
		{"sort nulls first", &query.Query{OrderBy: []map[string]interface{}{
			{"age": map[string]interface{}{"sort": "asc", "nulls": "first"}},
		}}, []interface{}{3, 2, 1}, 3},
		{"sort nested", &query.Query{OrderBy: []map[string]interface{}{{"profile": map[string]interface{}{"bio": "asc"}}}}, []interface{}{1, 2, 3}, 3},
		{"window", &query.Query{Skip: intPtr(1), Take: intPtr(1)}, []interface{}{2}, 3},
		{"skip past end", &query.Query{Skip: intPtr(10), Take: intPtr(1)}, []interface{}{}, 3},
	}
	h := newTestHandler(t)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, err := h.Find(context.Background(), tc.query)
			require.NoError(t, err)
			assert.Equal(t, tc.ids, ids(l))
			assert.Equal(t, tc.total, l.Total)
		})
	}
}

func TestFindCompiled(t *testing.T) {
	h := newTestHandler(t)
	q := compile(t, `OR[0][name]=John&OR[1][name]=Jane&sort=-name&limit=1&page=2`)
	l, err := h.Find(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{2}, ids(l))
	assert.Equal(t, 2, l.Total)
	assert.Equal(t, 1, l.Offset)
	assert.Equal(t, 1, l.Limit)
}

func TestFindCompiledNestedArgs(t *testing.T) {
	h := newTestHandler(t)
	q := compile(t, "filters="+url.QueryEscape(`{"where":{"id":1},"include":{"posts":{"skip":1,"take":1}}}`))
	l, err := h.Find(context.Background(), q)
	require.NoError(t, err)
	require.Len(t, l.Items, 1)
	posts, ok := l.Items[0].Payload["posts"].([]interface{})
	require.True(t, ok)
	require.Len(t, posts, 1)
	assert.Equal(t, 11, posts[0].(map[string]interface{})["id"])
}

func TestFindDateTime(t *testing.T) {
	h := NewHandler()
	ctx := context.Background()
	require.NoError(t, h.Insert(ctx, []map[string]interface{}{
		{"id": 1, "createdAt": "2024-01-01T00:00:00Z"},
		{"id": 2, "createdAt": "2024-03-01T00:00:00Z"},
		{"id": 3, "createdAt": time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
	}))
	feb := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name  string
		where map[string]interface{}
		ids   []interface{}
	}{
		{"equals", map[string]interface{}{"createdAt": time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}, []interface{}{1}},
		{"gte", map[string]interface{}{"createdAt": map[string]interface{}{"gte": feb}}, []interface{}{2, 3}},
		{"lt", map[string]interface{}{"createdAt": map[string]interface{}{"lt": feb}}, []interface{}{1}},
		{"insensitive", map[string]interface{}{"createdAt": map[string]interface{}{"equals": feb, "mode": "insensitive"}}, []interface{}{3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, err := h.Find(ctx, &query.Query{Where: tc.where})
			require.NoError(t, err)
			assert.Equal(t, tc.ids, ids(l))
		})
	}
}

func TestIntArg(t *testing.T) {
	cases := []struct {
		value interface{}
		want  int
		err   bool
	}{
		{1, 1, false},
		{int64(2), 2, false},
		{float64(3), 3, false},
		{"4", 4, false},
		{1.5, 0, true},
		{"x", 0, true},
		{int64(-1), 0, true},
		{true, 0, true},
	}
	for _, tc := range cases {
		i, err := intArg(map[string]interface{}{"take": tc.value}, "take")
		if tc.err {
			assert.True(t, errors.Is(err, resource.ErrNotImplemented), "%v", tc.value)
			continue
		}
		require.NoError(t, err, "%v", tc.value)
		assert.Equal(t, tc.want, i, "%v", tc.value)
	}
}

func TestFindProjection(t *testing.T) {
	h := newTestHandler(t)
	cases := []struct {
		name   string
		query  *query.Query
		expect string
	}{
		{
			"default",
			&query.Query{Omit: query.Selection{"password": query.Leaf(true), "tags": query.Leaf(true)}},
			`{"id":1,"name":"John","email":"john@example.com","age":30}`,
		},
		{
			"select",
			&query.Query{Select: query.Selection{"name": query.Leaf(true), "email": query.Leaf(false)}},
			`{"name":"John"}`,
		},
		{
			"include",
			&query.Query{
				Include: query.Selection{"profile": query.Leaf(true)},
				Omit:    query.Selection{"password": query.Leaf(true), "tags": query.Leaf(true), "email": query.Leaf(true)},
			},
			`{"id":1,"name":"John","age":30,"profile":{"bio":"Gopher"}}`,
		},
		{
			"nested args",
			&query.Query{Select: query.Selection{
				"name": query.Leaf(true),
				"posts": query.Object(&query.Projection{
					Select: query.Selection{"title": query.Leaf(true)},
					Extra: map[string]interface{}{
						"where":   map[string]interface{}{"published": true},
						"orderBy": map[string]interface{}{"title": "asc"},
						"take":    "1",
					},
				}),
			}},
			`{"name":"John","posts":[{"title":"Again"}]}`,
		},
		{
			"list node",
			&query.Query{Select: query.Selection{
				"posts": query.List(
					&query.Projection{Select: query.Selection{"id": query.Leaf(true)}, Extra: map[string]interface{}{"skip": 2}},
					&query.Projection{Select: query.Selection{"title": query.Leaf(true)}},
				),
			}},
			`{"posts":[{"id":12}]}`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tc.query.Where = map[string]interface{}{"id": 1}
			l, err := h.Find(context.Background(), tc.query)
			require.NoError(t, err)
			require.Len(t, l.Items, 1)
			testutil.JSONEq(t, tc.expect, l.Items[0].Payload)
		})
	}
}

func TestFindProtectedRelation(t *testing.T) {
	h := NewHandler()
	require.NoError(t, h.Insert(context.Background(), []map[string]interface{}{{
		"id": 10, "title": "Hello",
		"author": map[string]interface{}{"id": 1, "name": "John", "password": "hash"},
	}}))
	// The compiler expands the author relation into a nested omit of the
	// credential field.
	q := &query.Query{Select: query.Selection{
		"title":  query.Leaf(true),
		"author": query.Object(&query.Projection{Omit: query.Selection{"password": query.Leaf(true)}}),
	}}
	l, err := h.Find(context.Background(), q)
	require.NoError(t, err)
	testutil.JSONEq(t, `{"title":"Hello","author":{"id":1,"name":"John"}}`, l.Items[0].Payload)
}

func TestFindErrors(t *testing.T) {
	h := newTestHandler(t)
	cases := []struct {
		name  string
		query *query.Query
	}{
		{"operator", &query.Query{Where: map[string]interface{}{"name": map[string]interface{}{"search": "x"}}}},
		{"mode", &query.Query{Where: map[string]interface{}{"name": map[string]interface{}{"contains": "x", "mode": "fuzzy"}}}},
		{"clause", &query.Query{Where: map[string]interface{}{"OR": "x"}}},
		{"relation filter", &query.Query{Where: map[string]interface{}{"posts": map[string]interface{}{"some": map[string]interface{}{}, "any": map[string]interface{}{}}}}},
		{"sort direction", &query.Query{OrderBy: []map[string]interface{}{{"name": "up"}}}},
		{"nested take", &query.Query{Select: query.Selection{
			"posts": query.Object(&query.Projection{Extra: map[string]interface{}{"take": "x"}}),
		}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.Find(context.Background(), tc.query)
			assert.True(t, errors.Is(err, resource.ErrNotImplemented), "got %v", err)
		})
	}
}

func TestFindDoesNotModifyItems(t *testing.T) {
	h := newTestHandler(t)
	q := &query.Query{
		Where: map[string]interface{}{"id": 1},
		Select: query.Selection{"posts": query.Object(&query.Projection{
			Extra: map[string]interface{}{"orderBy": map[string]interface{}{"title": "asc"}},
		})},
	}
	_, err := h.Find(context.Background(), q)
	require.NoError(t, err)
	l, err := h.Find(context.Background(), &query.Query{
		Where:  map[string]interface{}{"id": 1},
		Select: query.Selection{"posts": query.Leaf(true)},
	})
	require.NoError(t, err)
	testutil.JSONEq(t, `{"posts":[
		{"id":10,"title":"Hello","published":true},
		{"id":11,"title":"Draft","published":false},
		{"id":12,"title":"Again","published":true}
	]}`, l.Items[0].Payload)
}

func TestFindLatency(t *testing.T) {
	h := NewSlowHandler(50 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err := h.Find(ctx, &query.Query{})
	assert.Equal(t, context.DeadlineExceeded, err)

	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	_, err = NewHandler().Find(ctx, &query.Query{})
	assert.Equal(t, context.Canceled, err)

	l, err := NewSlowHandler(time.Millisecond).Find(context.Background(), &query.Query{})
	require.NoError(t, err)
	assert.Empty(t, l.Items)
}

func intPtr(i int) *int {
	return &i
}
