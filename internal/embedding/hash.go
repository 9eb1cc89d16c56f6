package embedding

import (
	"context"
	"crypto/sha256"
	"math"
)

// HashTier is the terminal embedding fallback. It derives a vector from a
// SHA-256 content hash: deterministic, always available, no network. The
// vectors carry no semantic similarity beyond identical-text equality; they
// exist so ingestion and retrieval keep functioning with every provider down.
type HashTier struct {
	dimension int
}

// NewHashTier creates the local deterministic tier targeting the given
// vector dimension.
func NewHashTier(dimension int) *HashTier {
	return &HashTier{dimension: dimension}
}

// Name implements Tier.
func (t *HashTier) Name() string { return "hash" }

// Embed implements Tier. It never returns an error.
func (t *HashTier) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = t.embedOne(text)
	}
	return vectors, nil
}

func (t *HashTier) embedOne(text string) []float32 {
	sum := sha256.Sum256([]byte(text))

	// Hash bytes normalized to [-0.5, 0.5].
	base := make([]float32, len(sum))
	for i, b := range sum {
		base[i] = float32(b)/255.0 - 0.5
	}

	// Pad by repetition (or truncate) to the target dimension.
	vec := make([]float32, t.dimension)
	for i := range vec {
		vec[i] = base[i%len(base)]
	}

	// L2-normalize.
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}
