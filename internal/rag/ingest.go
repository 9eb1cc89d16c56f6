package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"docchat/internal/docstore"
	"docchat/internal/vectorstore"
)

// ErrEmptyDocument is returned when an upload contains no usable text.
var ErrEmptyDocument = errors.New("document contains no text")

// IngestResult reports what an upload produced.
type IngestResult struct {
	DocumentID string
	Filename   string
	Chunks     int
}

// Ingest chunks the extracted text, records the document and its chunks in
// the docstore, embeds the chunk texts, and upserts the vectors into the
// index. Chunk records are written before embedding so keyword retrieval
// works even when the index upsert degrades to a no-op.
func (p *Pipeline) Ingest(ctx context.Context, filename, contentType, text, strategy string) (*IngestResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyDocument
	}

	chunks, err := p.chunker.Chunk(strategy, text)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}

	doc := docstore.Document{
		ID:         uuid.New().String(),
		Filename:   filename,
		Filetype:   contentType,
		UploadedAt: time.Now().UTC(),
	}
	if err := p.docs.PutDocument(doc); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}

	records, err := p.docs.AddChunks(doc.ID, chunks)
	if err != nil {
		return nil, fmt.Errorf("store chunks: %w", err)
	}

	vectors, err := p.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embeddings: %w", err)
	}

	payloads := make([]vectorstore.Payload, len(records))
	for i, record := range records {
		payloads[i] = vectorstore.Payload{
			DocumentID: doc.ID,
			ChunkID:    record.ID,
			Text:       record.Text,
		}
	}
	if err := p.index.Upsert(ctx, vectors, payloads); err != nil {
		return nil, fmt.Errorf("index chunks: %w", err)
	}

	p.logger.Info("ingested document",
		"document_id", doc.ID, "filename", filename, "strategy", strategy, "chunks", len(chunks))

	return &IngestResult{DocumentID: doc.ID, Filename: filename, Chunks: len(chunks)}, nil
}

// DocumentInfo is a listing entry: the document record plus how many
// chunks it owns.
type DocumentInfo struct {
	docstore.Document
	ChunkCount int
}

// ListDocuments returns all documents, newest first, with chunk counts.
func (p *Pipeline) ListDocuments() ([]DocumentInfo, error) {
	docs, err := p.docs.ListDocuments()
	if err != nil {
		return nil, err
	}

	infos := make([]DocumentInfo, len(docs))
	for i, doc := range docs {
		count, err := p.docs.ChunkCount(doc.ID)
		if err != nil {
			return nil, err
		}
		infos[i] = DocumentInfo{Document: doc, ChunkCount: count}
	}
	return infos, nil
}

// DeleteDocument removes a document everywhere it lives. The index and the
// docstore share no transaction, so the index purge runs first: if the
// record delete then fails, a retry re-purges an already-clean index,
// which is idempotent.
func (p *Pipeline) DeleteDocument(ctx context.Context, id string) error {
	if _, err := p.docs.GetDocument(id); err != nil {
		return err
	}
	if err := p.index.DeleteByDocument(ctx, id); err != nil {
		return fmt.Errorf("purge index: %w", err)
	}
	return p.docs.DeleteDocument(id)
}
