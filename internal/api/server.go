package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/docshift/internal/config"
	"github.com/dgallion1/docshift/internal/convert"
	"github.com/dgallion1/docshift/internal/jobs"
	"github.com/dgallion1/docshift/internal/transforms"
)

// Server is the HTTP API server for docshift.
type Server struct {
	router chi.Router
	conv   *convert.Converter
	queue  *jobs.Queue // nil disables the async job endpoints
	reg    *transforms.Registry
	log    *slog.Logger
	cfg    config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(conv *convert.Converter, queue *jobs.Queue, log *slog.Logger, cfg config.Config) *Server {
	reg := conv.Registry
	if reg == nil {
		reg = transforms.Default()
	}
	s := &Server{
		conv:  conv,
		queue: queue,
		reg:   reg,
		log:   log,
		cfg:   cfg,
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
	r.Handle("/metrics", s.conv.Metrics.Handler())

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/convert", s.handleConvert)
		r.Post("/api/sections", s.handleSections)

		r.Post("/api/jobs", s.handleSubmitJob)
		r.Get("/api/jobs/{jobID}", s.handleJobStatus)
		r.Get("/api/jobs/{jobID}/result", s.handleJobResult)

		r.Get("/api/transforms", s.handleListTransforms)
		r.Get("/api/formats", s.handleFormats)
		r.Get("/api/stats/convert", s.handleConvertStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
