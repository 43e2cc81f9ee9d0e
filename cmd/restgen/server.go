package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/justinas/alice"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/restgen/restgen/internal/config"
	"github.com/restgen/restgen/rest"
)

// newServer builds the HTTP handler serving the API under /api and, when
// enabled, the metrics. The returned function releases the catalog
// resources.
func newServer(ctx context.Context, cfg *config.Config) (http.Handler, func(), error) {
	catalog, cleanup, err := loadCatalog(ctx, cfg.Catalog)
	if err != nil {
		return nil, nil, err
	}
	index, err := newIndex(ctx, catalog, cfg.ResourceConf())
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	api, err := rest.NewHandler(index)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	api.RequestTimeout = cfg.Server.RequestTimeout.Duration

	r := chi.NewRouter()
	if cfg.Server.MetricsPath != "" {
		registry := prometheus.NewRegistry()
		api.Metrics = rest.NewMetrics(registry)
		r.Handle(cfg.Server.MetricsPath, rest.MetricsHandler(registry))
	}
	r.Route("/api", func(r chi.Router) {
		if cfg.Auth.Secret != "" {
			r.Use(rest.JWTScope(rest.ScopeConf{
				Key:      []byte(cfg.Auth.Secret),
				Claim:    cfg.Auth.Claim,
				Field:    cfg.Auth.Field,
				Required: cfg.Auth.Required,
			}))
		}
		rest.Mount(r, api)
	})

	// Install a logger and the request info handlers
	c := alice.New()
	c = c.Append(hlog.NewHandler(log.With().Logger()))
	c = c.Append(hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("url", r.URL.String()).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("")
	}))
	c = c.Append(hlog.RemoteAddrHandler("ip"))
	c = c.Append(hlog.UserAgentHandler("ua"))
	c = c.Append(hlog.RefererHandler("ref"))
	c = c.Append(hlog.RequestIDHandler("req_id", "Request-Id"))
	c = c.Append(cors.New(cors.Options{
		AllowedOrigins:     cfg.Server.CORSOrigins,
		AllowedHeaders:     []string{"Authorization", "Content-Type"},
		ExposedHeaders:     []string{"X-Total", "X-Offset", "X-Limit"},
		OptionsPassthrough: false,
	}).Handler)

	return c.Then(r), cleanup, nil
}
