package rag

import (
	"context"
	"fmt"
	"strings"
	"time"

	"docchat/internal/docstore"
	"docchat/internal/vectorstore"
)

const (
	// retrieveLimit is the number of passages fed into the prompt.
	retrieveLimit = 5

	// overFetchLimit is the candidate pool size for scoped queries, so
	// client-side filtering still leaves enough in-scope results.
	overFetchLimit = 10

	// minScopedResults is how many in-scope hits are enough to answer
	// from the target document alone.
	minScopedResults = 3

	// keywordLimit and keywordScore shape the synthetic results of the
	// degraded keyword path. The score is a fixed placeholder; keyword
	// matches have no ranking signal.
	keywordLimit = 3
	keywordScore = 0.8
)

// Request is one conversational query.
type Request struct {
	SessionID         string
	Query             string
	DocumentID        string
	UseLatestDocument bool
}

// DocumentContext identifies the document a scoped answer focused on.
type DocumentContext struct {
	ID       string
	Filename string
	Uploaded time.Time
}

// Response carries the answer, the passages that grounded it, and the
// focus document when the query was scoped.
type Response struct {
	Answer          string
	Sources         []vectorstore.Result
	DocumentContext *DocumentContext
}

// Query runs one request through the pipeline:
// scope -> embed -> vector retrieve -> keyword fallback -> prompt ->
// generate -> persist memory. Every provider failure along the way
// degrades; only an unknown explicit document id is an error.
func (p *Pipeline) Query(ctx context.Context, req Request) (*Response, error) {
	scope, docCtx, err := p.determineScope(req)
	if err != nil {
		return nil, err
	}

	results := p.retrieve(ctx, req.Query, scope)
	if len(results) == 0 {
		results = p.keywordFallback(req.Query, scope)
	}

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Payload.Text
	}
	contextText := strings.Join(texts, "\n")

	history, err := p.history.History(ctx, req.SessionID)
	if err != nil {
		p.logger.Warn("history unavailable, continuing without it", "session_id", req.SessionID, "error", err)
		history = nil
	}

	query := req.Query
	if docCtx != nil {
		query = fmt.Sprintf("Based on the document '%s' uploaded on %s: %s",
			docCtx.Filename, docCtx.Uploaded.Format(time.RFC3339), req.Query)
	}

	prompt := p.generator.BuildPrompt(query, contextText, history)
	answer := p.generator.Generate(ctx, prompt)

	// User turn first, then the answer, as two separate turns.
	if err := p.history.Append(ctx, req.SessionID, "user", req.Query); err != nil {
		p.logger.Warn("failed to persist user turn", "session_id", req.SessionID, "error", err)
	}
	if err := p.history.Append(ctx, req.SessionID, "assistant", answer); err != nil {
		p.logger.Warn("failed to persist assistant turn", "session_id", req.SessionID, "error", err)
	}

	return &Response{Answer: answer, Sources: results, DocumentContext: docCtx}, nil
}

// determineScope resolves which documents the query focuses on: an
// explicit document id wins, then the latest upload when requested,
// otherwise the search is unrestricted.
func (p *Pipeline) determineScope(req Request) ([]string, *DocumentContext, error) {
	if req.DocumentID != "" {
		doc, err := p.docs.GetDocument(req.DocumentID)
		if err != nil {
			return nil, nil, err
		}
		return []string{doc.ID}, documentContext(doc), nil
	}

	if req.UseLatestDocument {
		doc, ok, err := p.docs.LatestDocument()
		if err != nil {
			p.logger.Warn("latest document lookup failed, searching all", "error", err)
			return nil, nil, nil
		}
		if ok {
			return []string{doc.ID}, documentContext(doc), nil
		}
	}

	return nil, nil, nil
}

func documentContext(doc docstore.Document) *DocumentContext {
	return &DocumentContext{ID: doc.ID, Filename: doc.Filename, Uploaded: doc.UploadedAt}
}

// retrieve embeds the query and searches the index. Scoped queries
// over-fetch and filter client-side: when enough in-scope hits survive
// they answer alone, otherwise in-scope hits rank first and out-of-scope
// hits pad up to the target count, preserving provider order within each
// group regardless of score.
func (p *Pipeline) retrieve(ctx context.Context, query string, scope []string) []vectorstore.Result {
	vectors, err := p.embedder.Embed(ctx, []string{query})
	if err != nil || len(vectors) != 1 {
		p.logger.Warn("query embedding failed", "error", err)
		return nil
	}

	if len(scope) == 0 {
		results, err := p.index.Query(ctx, vectors[0], retrieveLimit)
		if err != nil {
			p.logger.Warn("vector query failed", "error", err)
			return nil
		}
		return results
	}

	candidates, err := p.index.Query(ctx, vectors[0], overFetchLimit)
	if err != nil {
		p.logger.Warn("vector query failed", "error", err)
		return nil
	}

	inScope := make(map[string]bool, len(scope))
	for _, id := range scope {
		inScope[id] = true
	}

	var scoped, unscoped []vectorstore.Result
	for _, r := range candidates {
		if inScope[r.Payload.DocumentID] {
			scoped = append(scoped, r)
		} else {
			unscoped = append(unscoped, r)
		}
	}

	if len(scoped) >= minScopedResults {
		return truncate(scoped, retrieveLimit)
	}
	return truncate(append(scoped, unscoped...), retrieveLimit)
}

// keywordFallback runs only when vector retrieval yields nothing: the
// index is down or empty. It trades ranking quality for availability by
// substring-matching query keywords against stored chunk text.
func (p *Pipeline) keywordFallback(query string, scope []string) []vectorstore.Result {
	keywords := strings.Fields(strings.ToLower(query))
	if len(keywords) == 0 {
		return nil
	}

	var chunks []docstore.Chunk
	var err error
	if len(scope) > 0 {
		for _, docID := range scope {
			docChunks, chunkErr := p.docs.ChunksByDocument(docID)
			if chunkErr != nil {
				err = chunkErr
				break
			}
			chunks = append(chunks, docChunks...)
		}
	} else {
		chunks, err = p.docs.AllChunks()
	}
	if err != nil {
		p.logger.Warn("keyword fallback scan failed", "error", err)
		return nil
	}

	var results []vectorstore.Result
	for _, chunk := range chunks {
		text := strings.ToLower(chunk.Text)
		for _, keyword := range keywords {
			if strings.Contains(text, keyword) {
				results = append(results, vectorstore.Result{
					ID:    vectorstore.PointID(chunk.DocumentID, chunk.ID),
					Score: keywordScore,
					Payload: vectorstore.Payload{
						DocumentID: chunk.DocumentID,
						ChunkID:    chunk.ID,
						Text:       chunk.Text,
					},
				})
				break
			}
		}
		if len(results) == keywordLimit {
			break
		}
	}

	if len(results) > 0 {
		p.logger.Info("keyword fallback served query", "matches", len(results))
	}
	return results
}

func truncate(results []vectorstore.Result, limit int) []vectorstore.Result {
	if len(results) > limit {
		return results[:limit]
	}
	return results
}
