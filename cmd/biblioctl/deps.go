package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"bibliobridge/internal/platform/config"
	"bibliobridge/internal/platform/logging"
	"bibliobridge/internal/remotecache"
)

// env holds the connections a command opened; close releases them.
type env struct {
	cfg   *config.Config
	log   zerolog.Logger
	db    *pgxpool.Pool
	store *remotecache.RedisStore
}

func loadEnv() (*env, error) {
	cfg, err := config.Load(".env", ".env.local")
	if err != nil {
		return nil, err
	}
	log, err := logging.New("biblioctl", cfg.LogLevel, "console", os.Stderr)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log}, nil
}

func (e *env) openDB(ctx context.Context) (*pgxpool.Pool, error) {
	if e.db != nil {
		return e.db, nil
	}
	pool, err := pgxpool.New(ctx, e.cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	e.db = pool
	return pool, nil
}

func (e *env) cache(ctx context.Context) (*remotecache.Cache, error) {
	if e.store == nil {
		store, err := remotecache.Dial(ctx, e.cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		e.store = store
	}
	return remotecache.New(e.store, e.cfg.Z3950.CacheTTL, e.log), nil
}

func (e *env) close() {
	if e.db != nil {
		e.db.Close()
	}
	if e.store != nil {
		_ = e.store.Close()
	}
}
