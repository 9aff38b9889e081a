package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/dgallion1/docdots/internal/config"
	"github.com/dgallion1/docdots/internal/embed"
	"github.com/dgallion1/docdots/internal/pipeline"
	"github.com/dgallion1/docdots/internal/retrieval"
	"github.com/dgallion1/docdots/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// EmbeddingInfo reports on the embedding capability.
type EmbeddingInfo interface {
	Available() bool
	Provider() string
	Stats() embed.StatsSnapshot
}

// Server is the HTTP API server for docdots.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	store        store.Store
	engine       *retrieval.Engine
	embedding    EmbeddingInfo
	validate     *validator.Validate
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, st store.Store, engine *retrieval.Engine, embedding EmbeddingInfo, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		store:        st,
		engine:       engine,
		embedding:    embedding,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
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

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		if s.cfg.APIKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIKey, s.log))
		}

		r.Post("/api/documents", s.handleUpload)
		r.Post("/api/documents/batch", s.handleUpload)
		r.Get("/api/documents", s.handleListDocuments)
		r.Route("/api/documents/{docID}", func(r chi.Router) {
			r.Get("/", s.handleGetDocument)
			r.Get("/outline", s.handleGetOutline)
			r.Get("/file", s.handleGetFile)
			r.Post("/retry", s.handleRetry)
			r.Delete("/", s.handleDeleteDocument)
		})
		r.Get("/api/jobs/{jobID}", s.handleJobStatus)

		r.Post("/api/connect-dots", s.handleConnectDots)
		r.Get("/api/sections", s.handleSectionsByID)

		r.Get("/api/stats/embedding", s.handleEmbeddingStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	semantic, provider := false, embed.ProviderNone
	if s.embedding != nil {
		semantic, provider = s.embedding.Available(), s.embedding.Provider()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "docdots",
		"features": map[string]any{
			"semantic_search":    semantic,
			"embedding_provider": provider,
			"batch_upload":       true,
		},
		"queue_depth": s.orchestrator.QueueDepth(),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
