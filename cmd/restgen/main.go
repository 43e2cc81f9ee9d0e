// Command restgen serves the list endpoints of a model catalog.
//
// Without configuration, it serves a demo catalog of users and posts held in
// memory:
//
//	restgen -config restgen.toml
//
//	http :8080/api/users fields==name,email
//	http :8080/api/users/1/posts include==author
//	http :8080/api/posts select==author{password}
//	# returns 403
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/restgen/restgen/internal/config"
	"github.com/restgen/restgen/resource"
)

func main() {
	path := flag.String("config", "", "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "restgen: %v\n", err)
		os.Exit(1)
	}
	if err := setupLogger(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "restgen: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	h, cleanup, err := newServer(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Server.Addr).Msg("Serving API")
		errc <- srv.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// setupLogger configures the global zerolog logger and plugs it into the
// resource package.
func setupLogger(c config.LogConfig) error {
	level, err := parseLevel(c.Level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)
	if c.Console {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	if level == zerolog.DebugLevel {
		resource.LoggerLevel = resource.LogLevelDebug
	}
	resource.Logger = func(ctx context.Context, level resource.LogLevel, msg string, fields map[string]interface{}) {
		zerolog.Ctx(ctx).WithLevel(zerolog.Level(level)).Fields(fields).Msg(msg)
	}
	return nil
}

func parseLevel(name string) (zerolog.Level, error) {
	switch name {
	case "debug":
		return zerolog.DebugLevel, nil
	case "info", "":
		return zerolog.InfoLevel, nil
	case "warn":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	}
	return zerolog.NoLevel, fmt.Errorf("invalid log level `%s'", name)
}
