// Package embedding converts text into fixed-dimension vectors using a
// tiered provider chain: Cohere, then the HuggingFace inference API, then a
// deterministic local hash fallback that always succeeds. Tiers are tried
// in priority order and the first acceptable result wins.
package embedding

import (
	"context"
	"log/slog"

	"docchat/internal/config"
)

// Tier is one fallback level in the embedding chain. A tier either returns
// one vector per input text or an error, in which case the next tier runs.
type Tier interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Embedder iterates its tiers and short-circuits on the first success.
// The terminal hash tier has no failure path, so Embed never errors on
// non-empty input.
type Embedder struct {
	tiers     []Tier
	dimension int
	logger    *slog.Logger
}

// New builds the tier chain from configuration. Remote tiers are included
// only when their credentials are present; the hash tier is always last.
func New(cfg *config.Config, logger *slog.Logger) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}

	var tiers []Tier
	if cfg.UseCohere && cfg.CohereAPIKey != "" {
		tiers = append(tiers, NewCohereTier(cfg.CohereAPIKey, cfg.ProviderTimeout, logger))
	}
	if cfg.HFAPIKey != "" {
		tiers = append(tiers, NewHuggingFaceTier(cfg.HFAPIKey, cfg.ProviderTimeout, logger))
	}
	tiers = append(tiers, NewHashTier(cfg.VectorDimension))

	return &Embedder{tiers: tiers, dimension: cfg.VectorDimension, logger: logger}
}

// NewWithTiers builds an Embedder over an explicit tier chain. Used by tests
// to inject fakes.
func NewWithTiers(dimension int, logger *slog.Logger, tiers ...Tier) *Embedder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Embedder{tiers: tiers, dimension: dimension, logger: logger}
}

// Dimension returns the vector dimension every accepted tier must produce.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed returns one vector per input text, order preserved. Empty input
// yields empty output. A tier whose response has the wrong vector count or
// dimension is treated the same as a failed tier.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	for _, tier := range e.tiers {
		vectors, err := tier.Embed(ctx, texts)
		if err != nil {
			e.logger.Warn("embedding tier failed", "tier", tier.Name(), "error", err)
			continue
		}
		if !e.acceptable(vectors, len(texts)) {
			e.logger.Warn("embedding tier returned malformed response",
				"tier", tier.Name(), "want", len(texts), "got", len(vectors))
			continue
		}
		return vectors, nil
	}

	// Unreachable in practice: the hash tier accepts every input and
	// produces the configured dimension.
	return e.tiers[len(e.tiers)-1].Embed(ctx, texts)
}

func (e *Embedder) acceptable(vectors [][]float32, want int) bool {
	if len(vectors) != want {
		return false
	}
	for _, v := range vectors {
		if len(v) != e.dimension {
			return false
		}
	}
	return true
}
