package vectorstore

import (
	"fmt"
	"hash/fnv"
)

// Payload references the chunk behind an index entry.
type Payload struct {
	DocumentID string
	ChunkID    uint64
	Text       string
}

// Result is one ranked hit from a similarity query. Score is
// provider-defined (cosine similarity here) and only meaningful for
// ranking within a single tier.
type Result struct {
	ID      uint64
	Score   float32
	Payload Payload
}

// PointID derives the stable integer key for a chunk's index entry from
// its document and chunk identifiers. Re-upserting the same chunk
// therefore overwrites in place instead of duplicating.
func PointID(documentID string, chunkID uint64) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%d", documentID, chunkID)
	return h.Sum64()
}
