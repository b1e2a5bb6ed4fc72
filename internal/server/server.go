// Package server provides the HTTP API for the bookshelf service.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/bookshelf/internal/config"
	"github.com/hyperjump/bookshelf/internal/indexer"
	"github.com/hyperjump/bookshelf/internal/keyword"
	"github.com/hyperjump/bookshelf/internal/metrics"
	"github.com/hyperjump/bookshelf/internal/recommend"
	"github.com/hyperjump/bookshelf/internal/scoring"
	"github.com/hyperjump/bookshelf/internal/search"
	"github.com/hyperjump/bookshelf/internal/storage"
)

// WatchService manages the catalog directories watched for imports.
type WatchService interface {
	Directories() []string
	AddDirectory(path string, syncExisting bool) error
	RemoveDirectory(path string) error
}

// Server is the HTTP server for the bookshelf API.
type Server struct {
	engine       *search.Engine
	recommender  *recommend.Recommender
	indexer      *indexer.Indexer
	storage      storage.Storage
	keywordIndex keyword.Index
	scorer       scoring.Scorer
	config       *config.Config
	logger       *zap.Logger
	server       *http.Server

	watch      WatchService
	configPath string
	configMu   sync.Mutex
}

// Option configures optional server collaborators.
type Option func(*Server)

// WithWatch enables the catalog directory endpoints. When configPath is set,
// directory changes are persisted there.
func WithWatch(watch WatchService, configPath string) Option {
	return func(s *Server) {
		s.watch = watch
		s.configPath = configPath
	}
}

// WithKeywordIndex reports the keyword index size in status responses.
func WithKeywordIndex(idx keyword.Index) Option {
	return func(s *Server) { s.keywordIndex = idx }
}

// WithScorer reports scorer details in status responses.
func WithScorer(scorer scoring.Scorer) Option {
	return func(s *Server) { s.scorer = scorer }
}

// NewServer creates a server with the given dependencies.
func NewServer(
	engine *search.Engine,
	rec *recommend.Recommender,
	idx *indexer.Indexer,
	store storage.Storage,
	cfg *config.Config,
	logger *zap.Logger,
	opts ...Option,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		engine:      engine,
		recommender: rec,
		indexer:     idx,
		storage:     store,
		config:      cfg,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the router with all routes and middleware mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(metrics.Middleware())
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)

		r.Get("/books", s.handleSearchBooks)
		r.Post("/books", s.handleCreateBook)
		r.Get("/books/{id}", s.handleGetBook)
		r.Delete("/books/{id}", s.handleDeleteBook)

		r.Post("/users", s.handleCreateUser)
		r.Get("/users/{id}", s.handleGetUser)
		r.Get("/users/{id}/saved", s.handleListSaved)
		r.Put("/users/{id}/saved/{bookID}", s.handleSaveBook)
		r.Delete("/users/{id}/saved/{bookID}", s.handleUnsaveBook)
		r.Get("/users/{id}/recommendations", s.handleRecommendations)

		r.Post("/maintenance/dense-index", s.handleAssignDenseIndexes)

		r.Get("/catalog/directories", s.handleWatchDirectoriesList)
		r.Post("/catalog/directories", s.handleWatchDirectoriesAdd)
		r.Delete("/catalog/directories", s.handleWatchDirectoriesRemove)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
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
