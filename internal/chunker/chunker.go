// Package chunker splits raw document text into passages for embedding
// and retrieval. Two strategies are available per request: sentence
// splitting and a fixed-size sliding window over whitespace tokens.
package chunker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrUnknownStrategy is returned by Chunk for strategy names it does not
// recognize.
var ErrUnknownStrategy = errors.New("unknown chunk strategy")

// Strategy names accepted by Chunk.
const (
	StrategySentence = "sentence"
	StrategySliding  = "sliding"
)

// sentenceBoundary marks terminal punctuation followed by whitespace.
var sentenceBoundary = regexp.MustCompile(`([.!?])\s+`)

// Chunker holds sliding-window parameters. The zero value is not usable;
// construct with New so the overlap invariant is enforced.
type Chunker struct {
	window  int
	overlap int
}

// New creates a Chunker with the given window size and overlap, both in
// whitespace tokens. Overlap must be strictly less than window, otherwise
// the window stride would be non-positive.
func New(window, overlap int) (*Chunker, error) {
	if window <= 0 {
		return nil, fmt.Errorf("chunker: window must be positive, got %d", window)
	}
	if overlap < 0 || overlap >= window {
		return nil, fmt.Errorf("chunker: overlap must be in [0, window), got overlap=%d window=%d", overlap, window)
	}
	return &Chunker{window: window, overlap: overlap}, nil
}

// Chunk dispatches to the named strategy. Unknown strategies are a caller
// input error and are rejected without retry.
func (c *Chunker) Chunk(strategy, text string) ([]string, error) {
	switch strategy {
	case StrategySentence:
		return c.Sentences(text), nil
	case StrategySliding:
		return c.SlidingWindow(text), nil
	default:
		return nil, fmt.Errorf("chunker: %w: %q (use %q or %q)", ErrUnknownStrategy, strategy, StrategySentence, StrategySliding)
	}
}

// Sentences splits text on sentence-terminal punctuation followed by
// whitespace and returns each non-empty trimmed sentence. No overlap and
// no size bound; callers needing bounded chunks should use SlidingWindow.
func (c *Chunker) Sentences(text string) []string {
	// Keep the punctuation with its sentence by marking the boundary
	// after it, then splitting on the marker.
	marked := sentenceBoundary.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")

	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// SlidingWindow splits text into whitespace-delimited tokens and emits
// windows of c.window tokens with c.overlap tokens shared between
// consecutive windows. Inputs shorter than one window produce exactly one
// chunk containing all tokens. Empty input produces no chunks.
func (c *Chunker) SlidingWindow(text string) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	step := c.window - c.overlap
	var chunks []string
	for i := 0; i < len(words); i += step {
		end := min(i+c.window, len(words))
		chunks = append(chunks, strings.Join(words[i:end], " "))
		if i+c.window >= len(words) {
			break
		}
	}
	return chunks
}
