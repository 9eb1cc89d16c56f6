// Package vectorstore maintains the similarity index in Qdrant. The
// connection is established lazily on first use so the process starts even
// when Qdrant is down, and every operation degrades instead of failing:
// upserts and deletes become logged no-ops and queries return empty
// results. Retrieval degradation never crashes the answer pipeline.
package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
)

type connState int

const (
	stateUninitialized connState = iota
	stateConnected
	stateFailed
)

// Config holds connection and collection parameters. ConnectRetries is the
// number of additional attempts after the first; ConnectBackoff is the
// fixed wait between attempts.
type Config struct {
	Host           string
	Port           int
	Collection     string
	Dimension      int
	ConnectRetries uint64
	ConnectBackoff time.Duration
}

// Store wraps the Qdrant client with lazy connection management.
// Construction is cheap and side-effect-free; no network I/O happens until
// the first operation.
type Store struct {
	cfg    Config
	logger *slog.Logger

	// mu is the single-flight gate for connection establishment, so
	// concurrent first use cannot race duplicate connections or
	// collection creation.
	mu      sync.Mutex
	client  *qdrant.Client
	state   connState
	ensured bool
}

// New creates a Store. It performs no I/O.
func New(cfg Config, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{cfg: cfg, logger: logger}
}

// acquire returns a connected client, establishing the connection on first
// use and re-attempting it on later calls after a failure. Returns nil when
// Qdrant is unreachable; callers then degrade.
func (s *Store) acquire(ctx context.Context) *qdrant.Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != stateConnected {
		if !s.connectLocked(ctx) {
			return nil
		}
	}

	if !s.ensured {
		if err := s.ensureCollectionLocked(ctx); err != nil {
			s.logger.Error("ensure collection failed", "collection", s.cfg.Collection, "error", err)
			s.dropLocked()
			return nil
		}
		s.ensured = true
	}

	return s.client
}

// connectLocked dials Qdrant with a bounded number of fixed-backoff
// attempts. Caller holds s.mu.
func (s *Store) connectLocked(ctx context.Context) bool {
	var client *qdrant.Client
	operation := func() error {
		c, err := qdrant.NewClient(&qdrant.Config{
			Host: s.cfg.Host,
			Port: s.cfg.Port,
		})
		if err != nil {
			return err
		}
		if _, err := c.HealthCheck(ctx); err != nil {
			c.Close()
			return err
		}
		client = c
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(s.cfg.ConnectBackoff), s.cfg.ConnectRetries)
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		if s.state != stateFailed {
			s.logger.Error("qdrant unreachable, operations will degrade",
				"host", s.cfg.Host, "port", s.cfg.Port, "error", err)
		}
		s.state = stateFailed
		return false
	}

	s.client = client
	s.state = stateConnected
	s.logger.Info("connected to qdrant", "host", s.cfg.Host, "port", s.cfg.Port)
	return true
}

// ensureCollectionLocked creates the collection if missing. Idempotent;
// the successful check is cached. Caller holds s.mu.
func (s *Store) ensureCollectionLocked(ctx context.Context) error {
	collections, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, name := range collections {
		if name == s.cfg.Collection {
			return nil
		}
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.cfg.Dimension),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	s.logger.Info("created collection", "collection", s.cfg.Collection, "dimension", s.cfg.Dimension)
	return nil
}

func (s *Store) dropLocked() {
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
	s.state = stateFailed
}

// Upsert stores one index entry per vector/payload pair. Point keys derive
// from (document id, chunk id), so re-uploading a chunk overwrites its
// entry. Returns ErrDimensionMismatch for wrong-dimension vectors; index
// unavailability is logged and absorbed, never surfaced.
func (s *Store) Upsert(ctx context.Context, vectors [][]float32, payloads []Payload) error {
	if len(vectors) != len(payloads) {
		return fmt.Errorf("vectorstore: %d vectors for %d payloads", len(vectors), len(payloads))
	}
	for i, v := range vectors {
		if len(v) != s.cfg.Dimension {
			return fmt.Errorf("%w: vector %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(v), s.cfg.Dimension)
		}
	}

	client := s.acquire(ctx)
	if client == nil {
		s.logger.Warn("qdrant not available, skipping upsert", "points", len(vectors))
		return nil
	}

	points := make([]*qdrant.PointStruct, len(vectors))
	for i, v := range vectors {
		p := payloads[i]
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(PointID(p.DocumentID, p.ChunkID)),
			Vectors: qdrant.NewVectors(v...),
			Payload: qdrant.NewValueMap(map[string]any{
				"document_id": p.DocumentID,
				"chunk_id":    int64(p.ChunkID),
				"text":        p.Text,
			}),
		}
	}

	if err := s.upsertWithRetry(ctx, client, points); err != nil {
		s.logger.Error("upsert failed", "points", len(points), "error", err)
		s.markFailed()
	}
	return nil
}

// upsertWithRetry performs the upsert with short exponential backoff.
func (s *Store) upsertWithRetry(ctx context.Context, client *qdrant.Client, points []*qdrant.PointStruct) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = 20 * time.Second

	operation := func() error {
		_, err := client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.cfg.Collection,
			Points:         points,
		})
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}

// Query returns up to topK results ordered by descending similarity. A
// disconnected or failing index yields an empty slice, not an error; only
// a wrong-dimension query vector is rejected.
func (s *Store) Query(ctx context.Context, vector []float32, topK int) ([]Result, error) {
	if len(vector) != s.cfg.Dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), s.cfg.Dimension)
	}

	client := s.acquire(ctx)
	if client == nil {
		s.logger.Warn("qdrant not available, returning empty results")
		return nil, nil
	}

	points, err := client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		s.logger.Error("query failed", "error", err)
		s.markFailed()
		return nil, nil
	}

	results := make([]Result, 0, len(points))
	for _, point := range points {
		payload := point.Payload
		results = append(results, Result{
			ID:    point.Id.GetNum(),
			Score: point.Score,
			Payload: Payload{
				DocumentID: payload["document_id"].GetStringValue(),
				ChunkID:    uint64(payload["chunk_id"].GetIntegerValue()),
				Text:       payload["text"].GetStringValue(),
			},
		})
	}
	return results, nil
}

// DeleteByDocument removes every index entry whose payload references the
// document. Idempotent: deleting an absent document succeeds silently, and
// index unavailability is absorbed.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	client := s.acquire(ctx)
	if client == nil {
		s.logger.Warn("qdrant not available, skipping delete", "document_id", documentID)
		return nil
	}

	_, err := client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.cfg.Collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("document_id", documentID),
			},
		}),
	})
	if err != nil {
		s.logger.Error("delete by document failed", "document_id", documentID, "error", err)
		s.markFailed()
	}
	return nil
}

// Health reports whether the index is reachable right now.
func (s *Store) Health(ctx context.Context) error {
	client := s.acquire(ctx)
	if client == nil {
		return ErrNotConnected
	}
	if _, err := client.HealthCheck(ctx); err != nil {
		s.markFailed()
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// markFailed drops the connection so the next operation reconnects.
func (s *Store) markFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocked()
	s.ensured = false
}

// Close releases the client if one was ever established.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		err := s.client.Close()
		s.client = nil
		s.state = stateUninitialized
		return err
	}
	return nil
}
