package main

import (
	"context"
	"net/http"
	"time"

	"bibliobridge/internal/catalog"
	"bibliobridge/internal/importer"
	"bibliobridge/internal/platform/metrics"
	"bibliobridge/internal/search"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type routes struct {
	catalog  *catalog.HTTPHandler
	search   *search.HTTPHandler
	importer *importer.HTTPHandler
	metrics  *metrics.Metrics
	checks   map[string]pinger
}

func newRouter(rt routes) *http.ServeMux {
	router := http.NewServeMux()

	router.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		for name, c := range rt.checks {
			if err := c.Ping(ctx); err != nil {
				http.Error(w, name+" not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})
	router.Handle("GET /metrics", rt.metrics.Handler())

	router.HandleFunc("GET /v1/z3950/servers", rt.search.Servers)
	router.HandleFunc("GET /v1/z3950/search", rt.search.Search)
	router.HandleFunc("POST /v1/z3950/import", rt.importer.Import)
	router.HandleFunc("GET /v1/catalog/items/{isbn}", rt.catalog.GetByISBN)

	return router
}
