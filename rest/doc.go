/*
Package rest is a `net/http` handler serving the list endpoints of a
resource.Index.

Every resource is mounted on a chi router as /<name>. A sub-resource bound on
the field authorId is mounted as /<parent>/{authorId}/<name> and an alias as
/<name>/<alias>. A GET (or HEAD) request on those endpoints compiles the query
string into a query.Query, scoped by the route parameters and the base options
found in the request context, and hands it to the resource storage.

	index := resource.NewIndex(catalog)
	users := index.Bind("users", "User", mem.NewHandler(), resource.DefaultConf)
	users.Bind("posts", "authorId", "Post", mem.NewHandler(), resource.DefaultConf)

	api, err := rest.NewHandler(index)
	if err != nil {
		log.Fatal(err)
	}
	r := chi.NewRouter()
	rest.Mount(r, api)

Compilation errors are answered with the status attached to the error and a
JSON body:

	{"code": 403, "type": "ExposureDetected", "message": "...", "meta": {"path": "select.password"}}
*/
package rest
