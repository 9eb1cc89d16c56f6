package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"docchat/internal/chunker"
	"docchat/internal/docstore"
	"docchat/internal/extract"
	"docchat/internal/rag"
)

// Pipeline is the application surface the handlers talk to.
type Pipeline interface {
	Ingest(ctx context.Context, filename, contentType, text, strategy string) (*rag.IngestResult, error)
	Query(ctx context.Context, req rag.Request) (*rag.Response, error)
	ListDocuments() ([]rag.DocumentInfo, error)
	DeleteDocument(ctx context.Context, id string) error
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "unreadable upload")
		return
	}

	contentType := header.Header.Get("Content-Type")
	text, err := extract.FromUpload(header.Filename, contentType, data)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	strategy := r.FormValue("chunk_strategy")
	if strategy == "" {
		strategy = chunker.StrategySentence
	}

	result, err := s.pipeline.Ingest(r.Context(), header.Filename, contentType, text, strategy)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, UploadResponse{
		DocumentID: result.DocumentID,
		Filename:   result.Filename,
		Chunks:     result.Chunks,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	// An omitted use_latest_document means "prefer the latest upload";
	// callers searching the whole corpus must opt out explicitly.
	req := QueryRequest{UseLatestDocument: true}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		s.writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if strings.TrimSpace(req.SessionID) == "" {
		s.writeError(w, http.StatusBadRequest, "session_id is required")
		return
	}

	resp, err := s.pipeline.Query(r.Context(), rag.Request{
		SessionID:         req.SessionID,
		Query:             req.Query,
		DocumentID:        req.DocumentID,
		UseLatestDocument: req.UseLatestDocument,
	})
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	sources := make([]Source, len(resp.Sources))
	for i, src := range resp.Sources {
		sources[i] = Source{
			DocumentID: src.Payload.DocumentID,
			ChunkID:    src.Payload.ChunkID,
			Text:       src.Payload.Text,
			Score:      src.Score,
		}
	}

	out := QueryResponse{Answer: resp.Answer, Sources: sources}
	if resp.DocumentContext != nil {
		out.DocumentContext = &DocumentContext{
			ID:       resp.DocumentContext.ID,
			Filename: resp.DocumentContext.Filename,
			Uploaded: resp.DocumentContext.Uploaded,
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	infos, err := s.pipeline.ListDocuments()
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	entries := make([]DocumentEntry, len(infos))
	for i, info := range infos {
		entries[i] = DocumentEntry{
			ID:         info.ID,
			Filename:   info.Filename,
			Filetype:   info.Filetype,
			UploadedAt: info.UploadedAt,
			Chunks:     info.ChunkCount,
		}
	}
	s.writeJSON(w, http.StatusOK, DocumentsResponse{Documents: entries})
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := s.pipeline.DeleteDocument(r.Context(), r.PathValue("id")); err != nil {
		s.writePipelineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := HealthResponse{Timestamp: time.Now().UTC().Format(time.RFC3339)}
	if err := s.health.Health(ctx); err != nil {
		resp.Status = "unhealthy"
		resp.Index = "disconnected"
		s.writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp.Status = "healthy"
	resp.Index = "connected"
	s.writeJSON(w, http.StatusOK, resp)
}

// writePipelineError maps pipeline errors onto status codes: caller input
// errors are 400, unknown documents are 404, everything else is 500.
func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, docstore.ErrDocumentNotFound):
		s.writeError(w, http.StatusNotFound, "document not found")
	case errors.Is(err, rag.ErrEmptyDocument),
		errors.Is(err, extract.ErrEmptyDocument),
		errors.Is(err, chunker.ErrUnknownStrategy):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, ErrorResponse{Error: msg})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
