package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
	"unicode/utf8"
)

const (
	defaultCohereBaseURL = "https://api.cohere.ai/v1"

	// maxTextChars is the safe per-text character bound sent to Cohere.
	maxTextChars = 2048

	// rateLimitWait is the pause before retrying a rate-limited model.
	rateLimitWait = 2 * time.Second
)

// cohereEmbedModels are tried in order; newest first.
var cohereEmbedModels = []string{
	"embed-english-v3.0",
	"embed-english-v2.0",
	"embed-english-light-v3.0",
}

// CohereTier embeds text through the Cohere embed API. It walks an ordered
// model list: a rate-limited model is retried once after a short wait, any
// other failure or malformed response moves on to the next model.
type CohereTier struct {
	apiKey  string
	baseURL string
	models  []string
	wait    time.Duration
	client  *http.Client
	logger  *slog.Logger
}

// NewCohereTier creates the premium embedding tier.
func NewCohereTier(apiKey string, timeout time.Duration, logger *slog.Logger) *CohereTier {
	if logger == nil {
		logger = slog.Default()
	}
	return &CohereTier{
		apiKey:  apiKey,
		baseURL: defaultCohereBaseURL,
		models:  cohereEmbedModels,
		wait:    rateLimitWait,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Name implements Tier.
func (t *CohereTier) Name() string { return "cohere" }

type cohereEmbedRequest struct {
	Texts     []string `json:"texts"`
	Model     string   `json:"model"`
	InputType string   `json:"input_type"`
	Truncate  string   `json:"truncate"`
}

type cohereEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed implements Tier.
func (t *CohereTier) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	cleaned := make([]string, len(texts))
	for i, text := range texts {
		if len(text) > maxTextChars {
			// Back up to a rune boundary so the cut never sends
			// invalid UTF-8.
			cut := maxTextChars
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			text = text[:cut]
		}
		cleaned[i] = text
	}

	var lastErr error
	for _, model := range t.models {
		// One extra attempt for the same model after a 429.
		for attempt := 0; attempt < 2; attempt++ {
			vectors, status, err := t.embedOnce(ctx, model, cleaned)
			switch {
			case err == nil && len(vectors) == len(cleaned):
				return vectors, nil
			case status == http.StatusTooManyRequests && attempt == 0:
				t.logger.Warn("cohere rate limited, retrying model", "model", model)
				select {
				case <-time.After(t.wait):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				continue
			case err == nil:
				lastErr = fmt.Errorf("model %s: embedding count %d does not match input %d", model, len(vectors), len(cleaned))
			default:
				lastErr = fmt.Errorf("model %s: %w", model, err)
			}
			break
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no cohere models configured")
	}
	return nil, fmt.Errorf("all cohere models failed: %w", lastErr)
}

func (t *CohereTier) embedOnce(ctx context.Context, model string, texts []string) ([][]float32, int, error) {
	body, err := json.Marshal(cohereEmbedRequest{
		Texts:     texts,
		Model:     model,
		InputType: "search_document",
		Truncate:  "END",
	})
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, resp.StatusCode, fmt.Errorf("cohere embed: status %d: %s", resp.StatusCode, msg)
	}

	var out cohereEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("cohere embed: decode response: %w", err)
	}
	return out.Embeddings, resp.StatusCode, nil
}
