package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"sort"
	"strings"

	// PostgreSQL driver used to reflect the catalog.
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/restgen/restgen/internal/config"
	"github.com/restgen/restgen/mem"
	"github.com/restgen/restgen/resource"
	"github.com/restgen/restgen/schema"
	"github.com/restgen/restgen/schema/sqlcatalog"
)

// demoCatalog describes the models served when no catalog is configured.
var demoCatalog = schema.MustNewRegistry(
	&schema.Model{
		Name: "User",
		Fields: []schema.Field{
			{Name: "id", Type: schema.Int},
			{Name: "name", Type: schema.String},
			{Name: "email", Type: schema.String},
			{Name: "password", Type: schema.String},
			{Name: "tenantId", Type: schema.String},
			{Name: "createdAt", Type: schema.DateTime},
			{Name: "posts", Kind: schema.ObjectKind, Type: "Post", IsList: true},
		},
	},
	&schema.Model{
		Name: "Post",
		Fields: []schema.Field{
			{Name: "id", Type: schema.Int},
			{Name: "title", Type: schema.String},
			{Name: "body", Type: schema.String},
			{Name: "published", Type: schema.Boolean},
			{Name: "tags", Type: schema.String, IsList: true},
			{Name: "tenantId", Type: schema.String},
			{Name: "authorId", Type: schema.Int},
			{Name: "author", Kind: schema.ObjectKind, Type: "User"},
		},
	},
)

// loadCatalog returns the catalog described by the configuration and a
// function releasing the resources it holds.
func loadCatalog(ctx context.Context, c config.CatalogConfig) (*schema.Registry, func(), error) {
	switch {
	case c.File != "":
		r, err := schema.LoadYAMLFile(c.File)
		if err != nil {
			return nil, nil, fmt.Errorf("catalog %s: %w", c.File, err)
		}
		return r, func() {}, nil
	case c.DatabaseURL != "":
		db, err := sql.Open("postgres", c.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("catalog database: %w", err)
		}
		r, err := sqlcatalog.Load(ctx, db, c.Schema)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("catalog database: %w", err)
		}
		return r, func() { db.Close() }, nil
	}
	return demoCatalog, func() {}, nil
}

// newIndex binds the resources serving catalog. The demo catalog gets seeded
// users and posts resources, any other catalog gets one empty in memory
// resource per model.
func newIndex(ctx context.Context, catalog *schema.Registry, conf resource.Conf) (resource.Index, error) {
	index := resource.NewIndex(catalog)
	if catalog != demoCatalog {
		models := catalog.Models()
		sort.Strings(models)
		for _, model := range models {
			index.Bind(strings.ToLower(model), model, mem.NewHandler(), conf)
		}
		return index, nil
	}

	users, posts, err := demoData()
	if err != nil {
		return nil, err
	}
	userStore := mem.NewHandler()
	if err := userStore.Insert(ctx, users); err != nil {
		return nil, err
	}
	postStore := mem.NewHandler()
	if err := postStore.Insert(ctx, posts); err != nil {
		return nil, err
	}
	u := index.Bind("users", "User", userStore, conf)
	p := u.Bind("posts", "authorId", "Post", postStore, conf)
	p.Alias("published", url.Values{"published": {"true"}})
	all := index.Bind("posts", "Post", postStore, conf)
	all.Alias("published", url.Values{"published": {"true"}})
	zerolog.Ctx(ctx).Debug().Int("users", userStore.Len()).Int("posts", postStore.Len()).Msg("Demo data loaded")
	return index, nil
}

// demoData returns the demo users, with hashed passwords, and their posts
// with the author embedded.
func demoData() (users, posts []map[string]interface{}, err error) {
	for i, u := range []struct{ name, email, tenant string }{
		{"John Doe", "john@example.com", "acme"},
		{"Jane Roe", "jane@example.com", "acme"},
		{"Max Mustermann", "max@example.org", "initech"},
	} {
		hash, err := schema.HashPassword(strings.ToLower(strings.Fields(u.name)[0]) + "-secret")
		if err != nil {
			return nil, nil, err
		}
		users = append(users, map[string]interface{}{
			"id":        i + 1,
			"name":      u.name,
			"email":     u.email,
			"password":  string(hash),
			"tenantId":  u.tenant,
			"createdAt": fmt.Sprintf("2024-0%d-01T00:00:00Z", i+1),
		})
	}
	for i, p := range []struct {
		title     string
		published bool
		author    int
		tags      []interface{}
	}{
		{"Hello World", true, 1, []interface{}{"intro"}},
		{"Draft", false, 1, []interface{}{}},
		{"Query strings", true, 2, []interface{}{"http", "api"}},
		{"Filtering", true, 3, []interface{}{"api"}},
	} {
		author := users[p.author-1]
		embedded := make(map[string]interface{}, len(author))
		for k, v := range author {
			embedded[k] = v
		}
		posts = append(posts, map[string]interface{}{
			"id":        i + 1,
			"title":     p.title,
			"body":      "Lorem ipsum",
			"published": p.published,
			"tags":      p.tags,
			"tenantId":  author["tenantId"],
			"authorId":  p.author,
			"author":    embedded,
		})
	}
	return users, posts, nil
}
