// Package server exposes the document chat pipeline over HTTP: uploads,
// conversational queries, document management, and a health endpoint.
package server

import (
	"context"
	"log/slog"
	"net/http"
)

// maxUploadBytes bounds the multipart form held in memory per upload.
const maxUploadBytes = 10 << 20

// HealthChecker is the probe for the vector index dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server routes HTTP requests to the pipeline.
type Server struct {
	pipeline Pipeline
	health   HealthChecker
	logger   *slog.Logger
	mux      *http.ServeMux
}

// New creates a server and registers its routes.
func New(pipeline Pipeline, health HealthChecker, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		pipeline: pipeline,
		health:   health,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /ingest/upload", s.handleUpload)
	s.mux.HandleFunc("POST /chat/query", s.handleQuery)
	s.mux.HandleFunc("GET /chat/documents", s.handleListDocuments)
	s.mux.HandleFunc("DELETE /chat/documents/{id}", s.handleDeleteDocument)
	s.mux.HandleFunc("GET /health", s.handleHealth)
}

// Handler returns the routed handler, ready to serve.
func (s *Server) Handler() http.Handler {
	return s.mux
}
