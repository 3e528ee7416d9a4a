package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"bibliobridge/internal/catalog"
	"bibliobridge/internal/httpx"
	"bibliobridge/internal/importer"
	"bibliobridge/internal/platform/config"
	"bibliobridge/internal/platform/logging"
	"bibliobridge/internal/platform/metrics"
	"bibliobridge/internal/remotecache"
	"bibliobridge/internal/search"
	"bibliobridge/internal/z3950"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(".env", ".env.local")
	if err != nil {
		return err
	}
	log, err := logging.New("bibliobridge-api", cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbPool, err := openDB(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer dbPool.Close()
	log.Info().Str("dsn", redactDSN(cfg.DatabaseDSN)).Msg("database connection OK")

	redisStore, err := remotecache.Dial(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("cannot reach redis (%s): %w", redactDSN(cfg.RedisURL), err)
	}
	defer redisStore.Close()

	registry, err := newRegistry(cfg.Z3950, dbPool)
	if err != nil {
		return err
	}

	m := metrics.New()
	cache := remotecache.New(redisStore, cfg.Z3950.CacheTTL, log.With().Str("component", "remotecache").Logger())
	catalogRepo := catalog.NewPostgresRepo(dbPool)

	dialer := &z3950.YazDialer{
		Path:    cfg.Z3950.YazClient,
		WorkDir: cfg.Z3950.WorkDir,
		Logger:  log.With().Str("component", "z3950").Logger(),
	}
	searchSvc := search.NewService(registry, dialer, cache, search.Config{
		Concurrency:   cfg.Z3950.Concurrency,
		MaxResults:    cfg.Z3950.MaxResults,
		MaxResultsCap: cfg.Z3950.MaxResultsCap,
		ServerRPS:     cfg.Z3950.ServerRPS,
		ServerBurst:   cfg.Z3950.ServerBurst,
		Deadline:      cfg.Z3950.SearchDeadline,
		Session: z3950.Options{
			Timeout:    cfg.Z3950.Timeout,
			MaxPresent: cfg.Z3950.MaxPresent,
		},
	}, m, log.With().Str("component", "search").Logger())
	importSvc := importer.NewService(cache, catalogRepo, m, log.With().Str("component", "importer").Logger())

	router := newRouter(routes{
		catalog:  catalog.NewHTTPHandler(catalog.NewService(catalogRepo), log),
		search:   search.NewHTTPHandler(searchSvc, log),
		importer: importer.NewHTTPHandler(importSvc, log),
		metrics:  m,
		checks: map[string]pinger{
			"db":    dbPool,
			"redis": redisStore,
		},
	})

	limiter := httpx.NewRateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst)
	defer limiter.Stop()

	handler := httpx.Chain(router,
		httpx.RecoveryMiddleware(log),
		httpx.RequestIDMiddleware,
		httpx.AccessLogMiddleware(log),
		httpx.SecurityHeadersMiddleware(cfg.EnableHSTS),
		httpx.CORSMiddleware(cfg.CORSOrigins),
		limiter.Middleware,
		httpx.RequestSizeLimitMiddleware(cfg.MaxBodyBytes),
	)

	// Searches are cut at the search deadline; the margin covers encoding.
	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.Z3950.SearchDeadline + 10*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return serve(ctx, httpServer, log)
}

func serve(ctx context.Context, srv *http.Server, log zerolog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newRegistry(cfg config.Z3950, db *pgxpool.Pool) (search.Registry, error) {
	if cfg.ServersFile != "" {
		return search.LoadFileRegistry(cfg.ServersFile)
	}
	return search.NewPostgresRegistry(db), nil
}

func openDB(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot create db pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cannot ping database (%s): %w", redactDSN(dsn), err)
	}
	return pool, nil
}

func redactDSN(dsn string) string {
	const marker = "://"
	start := strings.Index(dsn, marker)
	if start < 0 {
		return dsn
	}
	start += len(marker)
	end := strings.Index(dsn[start:], "@")
	if end < 0 {
		return dsn
	}
	return dsn[:start] + "***" + dsn[start+end:]
}
