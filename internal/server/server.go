// Package server provides the HTTP API for Mediscope.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/clinivis/mediscope/internal/config"
	"github.com/clinivis/mediscope/internal/indexer"
	"github.com/clinivis/mediscope/internal/keyword"
	"github.com/clinivis/mediscope/internal/search"
	"github.com/clinivis/mediscope/internal/store"
)

// Server is the HTTP server for the Mediscope API.
type Server struct {
	searcher *search.Searcher
	indexer  *indexer.Indexer
	store    store.Store
	keywords keyword.Index
	config   *config.Config
	logger   *zap.Logger
	server   *http.Server
}

// NewServer creates a server with the given dependencies. keywords may be
// nil, in which case the browse endpoint only lists by recency.
func NewServer(
	searcher *search.Searcher,
	idx *indexer.Indexer,
	st store.Store,
	keywords keyword.Index,
	cfg *config.Config,
	logger *zap.Logger,
) *Server {
	return &Server{
		searcher: searcher,
		indexer:  idx,
		store:    st,
		keywords: keywords,
		config:   cfg,
		logger:   logger,
	}
}

// Router builds the chi router with all API routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Post("/api/v1/search", s.handleSearch)
	r.Post("/api/v1/fetch", s.handleFetch)
	r.Get("/api/v1/status", s.handleStatus)
	r.Get("/api/v1/images", s.handleListImages)
	r.Get("/api/v1/images/{id}", s.handleGetImage)
	r.Delete("/api/v1/images/{id}", s.handleDeleteImage)
	r.Get("/health", s.handleHealth)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
