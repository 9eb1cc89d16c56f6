// Package rag wires the retrieval-augmented answer pipeline: document
// ingestion into the docstore and vector index, and query orchestration
// from scope resolution through retrieval, generation, and memory.
package rag

import (
	"context"
	"log/slog"

	"docchat/internal/chunker"
	"docchat/internal/docstore"
	"docchat/internal/memory"
	"docchat/internal/vectorstore"
)

// Embedder converts texts to vectors, one per input, order preserved.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// VectorIndex is the similarity-search collaborator. Implementations
// degrade rather than error when the index is unreachable.
type VectorIndex interface {
	Upsert(ctx context.Context, vectors [][]float32, payloads []vectorstore.Payload) error
	Query(ctx context.Context, vector []float32, topK int) ([]vectorstore.Result, error)
	DeleteByDocument(ctx context.Context, documentID string) error
}

// Generator assembles prompts and produces answers. Generate always
// returns an answer; its terminal tier cannot fail.
type Generator interface {
	BuildPrompt(query, contextText string, history []memory.Turn) string
	Generate(ctx context.Context, prompt string) string
}

// HistoryStore reads and appends per-session conversation turns.
type HistoryStore interface {
	History(ctx context.Context, sessionID string) ([]memory.Turn, error)
	Append(ctx context.Context, sessionID, role, message string) error
}

// DocumentStore persists document and chunk records.
type DocumentStore interface {
	PutDocument(doc docstore.Document) error
	GetDocument(id string) (docstore.Document, error)
	LatestDocument() (docstore.Document, bool, error)
	ListDocuments() ([]docstore.Document, error)
	AddChunks(documentID string, texts []string) ([]docstore.Chunk, error)
	ChunksByDocument(documentID string) ([]docstore.Chunk, error)
	AllChunks() ([]docstore.Chunk, error)
	ChunkCount(documentID string) (int, error)
	DeleteDocument(id string) error
}

// Pipeline is stateless per request; all shared mutable state lives in the
// external collaborators.
type Pipeline struct {
	chunker   *chunker.Chunker
	embedder  Embedder
	index     VectorIndex
	docs      DocumentStore
	history   HistoryStore
	generator Generator
	logger    *slog.Logger
}

// NewPipeline creates a pipeline over the given collaborators.
func NewPipeline(
	chunker *chunker.Chunker,
	embedder Embedder,
	index VectorIndex,
	docs DocumentStore,
	history HistoryStore,
	generator Generator,
	logger *slog.Logger,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		chunker:   chunker,
		embedder:  embedder,
		index:     index,
		docs:      docs,
		history:   history,
		generator: generator,
		logger:    logger,
	}
}
