// Package api is the HTTP surface for semharvest: synchronous
// extraction plus read access to stored results when a store is
// configured.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/c360studio/semharvest/config"
	"github.com/c360studio/semharvest/harvest"
	"github.com/c360studio/semharvest/metrics"
	"github.com/c360studio/semharvest/storage"
)

// ReportStore is the persistence the API reads and writes. *storage.Store
// satisfies it; handlers that need it are only mounted when one is set.
type ReportStore interface {
	SaveResult(ctx context.Context, res *harvest.Result) (*storage.Document, error)
	ListDocuments(ctx context.Context) ([]*storage.Document, error)
	GetDocument(ctx context.Context, id string) (*storage.Document, error)
	GetReport(ctx context.Context, docID string) (*storage.Report, error)
	DeleteDocument(ctx context.Context, id string) error
}

// Server is the HTTP API server for semharvest.
type Server struct {
	router  chi.Router
	opts    harvest.Options
	maxBody int64
	store   ReportStore
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewServer creates and configures the HTTP server. store may be nil;
// the document endpoints are then not mounted.
func NewServer(cfg *config.Config, store ReportStore, m *metrics.Metrics, log *slog.Logger) *Server {
	s := &Server{
		opts: harvest.Options{
			Limits:     cfg.Limits,
			Collectors: cfg.Collectors,
			Logger:     log,
		},
		maxBody: cfg.Server.MaxBodyBytes,
		store:   store,
		metrics: m,
		log:     log,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Post("/v1/extract", s.handleExtract)

	if s.store != nil {
		r.Get("/v1/documents", s.handleListDocuments)
		r.Get("/v1/documents/{docID}", s.handleGetDocument)
		r.Get("/v1/documents/{docID}/report", s.handleGetReport)
		r.Delete("/v1/documents/{docID}", s.handleDeleteDocument)
	}

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
