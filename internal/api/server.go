// Package api serves the persisted availability snapshot and area catalog
// over a small read-only HTTP API for the companion web page. Every request
// reads the JSON documents fresh, so a scan run finishing between requests
// is picked up immediately.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	corslib "github.com/rs/cors"

	"github.com/ethanrabb/campwatch/internal/config"
	"github.com/ethanrabb/campwatch/internal/store"
)

// NewRouter creates and configures the chi router with all middleware and
// routes.
func NewRouter(st *store.Store, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Compress(5)) // gzip

	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Content-Type", "Cache-Control"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	h := newHandler(st)

	r.Get("/", h.root)
	r.Get("/health", h.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/availability", h.availability)
		r.Get("/areas", h.areas)
	})

	return r
}
