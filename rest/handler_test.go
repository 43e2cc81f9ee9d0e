package rest

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restgen/restgen/internal/testutil"
	"github.com/restgen/restgen/mem"
	"github.com/restgen/restgen/resource"
	"github.com/restgen/restgen/schema"
	"github.com/restgen/restgen/schema/query"
)

var testCatalog = schema.MustNewRegistry(
	&schema.Model{
		Name: "User",
		Fields: []schema.Field{
			{Name: "id", Type: schema.Int},
			{Name: "name", Type: schema.String},
			{Name: "email", Type: schema.String},
			{Name: "password", Type: schema.String},
			{Name: "tenantId", Type: schema.String},
			{Name: "posts", Kind: schema.ObjectKind, Type: "Post", IsList: true},
		},
	},
	&schema.Model{
		Name: "Post",
		Fields: []schema.Field{
			{Name: "id", Type: schema.Int},
			{Name: "title", Type: schema.String},
			{Name: "authorId", Type: schema.Int},
			{Name: "author", Kind: schema.ObjectKind, Type: "User"},
		},
	},
)

type storerFunc func(ctx context.Context, q *query.Query) (*resource.ItemList, error)

func (f storerFunc) Find(ctx context.Context, q *query.Query) (*resource.ItemList, error) {
	return f(ctx, q)
}

func newTestIndex(t *testing.T) resource.Index {
	t.Helper()
	ctx := context.Background()
	users := mem.NewHandler()
	require.NoError(t, users.Insert(ctx, []map[string]interface{}{
		{"id": 1, "name": "John", "email": "john@example.com", "password": "hash1", "tenantId": "a"},
		{"id": 2, "name": "Jane", "email": "jane@example.com", "password": "hash2", "tenantId": "b"},
	}))
	posts := mem.NewHandler()
	require.NoError(t, posts.Insert(ctx, []map[string]interface{}{
		{"id": 10, "title": "Hello", "authorId": 1, "author": map[string]interface{}{"id": 1, "name": "John", "password": "hash1"}},
		{"id": 11, "title": "World", "authorId": 1, "author": map[string]interface{}{"id": 1, "name": "John", "password": "hash1"}},
		{"id": 12, "title": "Hello", "authorId": 2, "author": map[string]interface{}{"id": 2, "name": "Jane", "password": "hash2"}},
	}))
	index := resource.NewIndex(testCatalog)
	u := index.Bind("users", "User", users, resource.DefaultConf)
	p := u.Bind("posts", "authorId", "Post", posts, resource.DefaultConf)
	p.Alias("hello", url.Values{"title": []string{"Hello"}})
	index.Bind("broken", "User", storerFunc(func(ctx context.Context, q *query.Query) (*resource.ItemList, error) {
		return nil, errors.New("connection refused")
	}), resource.DefaultConf)
	return index
}

func newTestRouter(t *testing.T, h *Handler) chi.Router {
	t.Helper()
	r := chi.NewRouter()
	Mount(r, h)
	return r
}

func TestNewHandlerInvalidIndex(t *testing.T) {
	index := resource.NewIndex(testCatalog)
	index.Bind("ghosts", "Ghost", mem.NewHandler(), resource.DefaultConf)
	_, err := NewHandler(index)
	assert.EqualError(t, err, "ghosts: unknown model `Ghost'")
}

func TestHandlerList(t *testing.T) {
	cases := []struct {
		name    string
		method  string
		target  string
		status  int
		body    string
		headers map[string]string
	}{
		{
			name:   "filter",
			target: "/users?name=John",
			status: http.StatusOK,
			body:   `[{"id":1,"name":"John","email":"john@example.com","tenantId":"a"}]`,
			headers: map[string]string{
				"Content-Type": "application/json",
				"X-Total":      "1",
				"X-Limit":      "30",
			},
		},
		{
			name:   "fields",
			target: "/users?fields=name&sort=-name",
			status: http.StatusOK,
			body:   `[{"name":"John"},{"name":"Jane"}]`,
		},
		{
			name:    "pagination",
			target:  "/users?fields=name&limit=1&page=2",
			status:  http.StatusOK,
			body:    `[{"name":"Jane"}]`,
			headers: map[string]string{"X-Total": "2", "X-Offset": "1", "X-Limit": "1"},
		},
		{
			name:   "sub-resource",
			target: "/users/1/posts?sort=id",
			status: http.StatusOK,
			body:   `[{"id":10,"title":"Hello","authorId":1},{"id":11,"title":"World","authorId":1}]`,
		},
		{
			name:   "client filter within parent scope",
			target: "/users/1/posts?title=World",
			status: http.StatusOK,
			body:   `[{"id":11,"title":"World","authorId":1}]`,
		},
		{
			name:   "parent scope wins",
			target: "/users/2/posts?authorId=1",
			status: http.StatusOK,
			body:   `[]`,
		},
		{
			name:   "protected relation",
			target: "/users/1/posts?include%5Bauthor%5D=true&limit=1",
			status: http.StatusOK,
			body:   `[{"id":10,"title":"Hello","authorId":1,"author":{"id":1,"name":"John"}}]`,
		},
		{
			name:   "alias",
			target: "/users/2/posts/hello",
			status: http.StatusOK,
			body:   `[{"id":12,"title":"Hello","authorId":2}]`,
		},
		{
			name:   "alias scope wins",
			target: "/users/1/posts/hello?title=World",
			status: http.StatusOK,
			body:   `[]`,
		},
		{
			name:    "timeout",
			target:  "/users?timeout=1s&fields=name",
			status:  http.StatusOK,
			body:    `[{"name":"John"},{"name":"Jane"}]`,
			headers: map[string]string{"X-Total": "2"},
		},
		{
			name:   "exposure",
			target: "/users?select%5Bpassword%5D=true",
			status: http.StatusForbidden,
			body: `{"code":403,"type":"ExposureDetected",
				"message":"Projection ` + "`select.password'" + ` exposes a protected field",
				"meta":{"path":"select.password"}}`,
		},
		{
			name:   "disable protection",
			target: "/users?omit%5Bpassword%5D=false",
			status: http.StatusForbidden,
			body: `{"code":403,"type":"CannotDisableExposureProtection",
				"message":"Cannot disable the protection of ` + "`omit.password'" + `",
				"meta":{"path":"omit.password"}}`,
		},
		{
			name:   "deprecated",
			target: "/users?addFields=password",
			status: http.StatusBadRequest,
			body: `{"code":400,"type":"DeprecatedParameterUsed",
				"message":"The ` + "`addFields'" + ` parameter is no longer supported, use ` + "`fields'" + ` with +/- prefixes",
				"meta":{"param":"addFields"}}`,
		},
		{
			name:   "invalid timeout",
			target: "/users?timeout=soon",
			status: http.StatusBadRequest,
			body: `{"code":400,"type":"InvalidParameter",
				"message":"Cannot parse timeout parameter: time: invalid duration \"soon\"",
				"meta":{"param":"timeout"}}`,
		},
		{
			name:   "storage error",
			target: "/broken",
			status: 520,
			body:   `{"code":520,"type":"Unknown","message":"connection refused"}`,
		},
		{
			name:   "not found",
			target: "/ghosts",
			status: http.StatusNotFound,
			body:   `{"code":404,"type":"NotFound","message":"Not Found"}`,
		},
		{
			name:   "invalid method",
			method: http.MethodPost,
			target: "/users",
			status: http.StatusMethodNotAllowed,
			body:   `{"code":405,"type":"InvalidMethod","message":"Invalid Method"}`,
		},
		{
			name:    "head",
			method:  http.MethodHead,
			target:  "/users",
			status:  http.StatusOK,
			headers: map[string]string{"X-Total": "2"},
		},
	}
	h, err := NewHandler(newTestIndex(t))
	require.NoError(t, err)
	r := newTestRouter(t, h)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			method := tc.method
			if method == "" {
				method = http.MethodGet
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(method, tc.target, nil))
			assert.Equal(t, tc.status, w.Code)
			if tc.body == "" {
				assert.Empty(t, w.Body.String())
			} else {
				testutil.JSONEq(t, tc.body, w.Body.Bytes())
			}
			for k, v := range tc.headers {
				assert.Equal(t, v, w.Header().Get(k), k)
			}
		})
	}
}

func TestHandlerBaseOptions(t *testing.T) {
	h, err := NewHandler(newTestIndex(t))
	require.NoError(t, err)
	r := newTestRouter(t, h)
	req := httptest.NewRequest(http.MethodGet, "/users?fields=name", nil)
	req = req.WithContext(WithBaseOptions(req.Context(), query.BaseOptions{
		Where: map[string]interface{}{"tenantId": "b"},
	}))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	testutil.JSONEq(t, `[{"name":"Jane"}]`, w.Body.Bytes())
}

func TestHandlerRequestTimeout(t *testing.T) {
	index := resource.NewIndex(testCatalog)
	index.Bind("users", "User", mem.NewSlowHandler(time.Second), resource.DefaultConf)
	h, err := NewHandler(index)
	require.NoError(t, err)
	h.RequestTimeout = 10 * time.Millisecond
	w := httptest.NewRecorder()
	newTestRouter(t, h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/users", nil))
	assert.Equal(t, http.StatusGatewayTimeout, w.Code)
	testutil.JSONEq(t, `{"code":504,"type":"DeadlineExceeded","message":"Deadline Exceeded"}`, w.Body.Bytes())
}

func TestHandlerLogsRejections(t *testing.T) {
	h, err := NewHandler(newTestIndex(t))
	require.NoError(t, err)
	out := &bytes.Buffer{}
	logger := zerolog.New(out)
	req := httptest.NewRequest(http.MethodGet, "/users?select%5Bpassword%5D=true", nil)
	req = req.WithContext(logger.WithContext(req.Context()))
	w := httptest.NewRecorder()
	newTestRouter(t, h).ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, out.String(), `"level":"warn"`)
	assert.Contains(t, out.String(), `"type":"ExposureDetected"`)
	assert.Contains(t, out.String(), `"path":"select.password"`)
}

func TestHandlerMetrics(t *testing.T) {
	h, err := NewHandler(newTestIndex(t))
	require.NoError(t, err)
	registry := prometheus.NewRegistry()
	h.Metrics = NewMetrics(registry)
	r := newTestRouter(t, h)
	for _, target := range []string{"/users", "/users?name=Jane", "/users?select%5Bpassword%5D=true", "/users/1/posts", "/broken"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, target, nil))
	}
	assert.Equal(t, 2.0, promtest.ToFloat64(h.Metrics.RequestsTotal.WithLabelValues("users", "200")))
	assert.Equal(t, 1.0, promtest.ToFloat64(h.Metrics.RequestsTotal.WithLabelValues("users", "403")))
	assert.Equal(t, 1.0, promtest.ToFloat64(h.Metrics.RequestsTotal.WithLabelValues("users.posts", "200")))
	assert.Equal(t, 1.0, promtest.ToFloat64(h.Metrics.CompileErrorsTotal.WithLabelValues("users", "ExposureDetected")))
	assert.Equal(t, 1.0, promtest.ToFloat64(h.Metrics.StorageErrorsTotal.WithLabelValues("broken", "Unknown")))

	w := httptest.NewRecorder()
	MetricsHandler(registry).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, w.Body.String(), `restgen_requests_total{resource="users",status="200"} 2`)
}

func TestNewRequest(t *testing.T) {
	r := chi.NewRouter()
	var got query.Request
	r.Get("/users/{authorId}/posts", func(w http.ResponseWriter, r *http.Request) {
		got = NewRequest(r)
	})
	req := httptest.NewRequest(http.MethodGet, "/users/42/posts?name=John&sort=-id", nil)
	base := query.BaseOptions{Where: map[string]interface{}{"tenantId": "a"}}
	req = req.WithContext(WithBaseOptions(req.Context(), base))
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, query.Request{
		RawQuery: "name=John&sort=-id",
		Params:   map[string]string{"authorId": "42"},
		Base:     base,
	}, got)
}

func TestBaseOptionsFromContext(t *testing.T) {
	_, found := BaseOptionsFromContext(context.Background())
	assert.False(t, found)
	b := query.BaseOptions{Omit: map[string]interface{}{"email": true}}
	got, found := BaseOptionsFromContext(WithBaseOptions(context.Background(), b))
	assert.True(t, found)
	assert.Equal(t, b, got)
}
