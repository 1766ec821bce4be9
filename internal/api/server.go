package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/tablegest/internal/config"
	"github.com/dgallion1/tablegest/internal/extractor"
	"github.com/dgallion1/tablegest/internal/pipeline"
	"github.com/dgallion1/tablegest/internal/stats"
	"github.com/dgallion1/tablegest/internal/store"
)

// Server is the HTTP API server for tablegest.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	extractor    *extractor.Extractor
	store        *store.Store
	stats        *stats.Extraction
	log          *slog.Logger
	cfg          config.Config
}

func NewServer(orch *pipeline.Orchestrator, ext *extractor.Extractor, st *store.Store, es *stats.Extraction, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		extractor:    ext,
		store:        st,
		stats:        es,
		log:          log,
		cfg:          cfg,
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

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/extract", s.handleExtract)

		r.Post("/api/ingest", s.handleIngest)
		r.Get("/api/ingest/{jobID}/status", s.handleIngestStatus)
		r.Post("/api/ingest/batch", s.handleBatchIngest)

		r.Get("/api/tables", s.handleGetTables)
		r.Delete("/api/tables", s.handleDeleteTables)

		r.Get("/api/stats/extract", s.handleExtractStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		jsonError(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
