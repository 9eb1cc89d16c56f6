package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultCohereBaseURL = "https://api.cohere.ai/v1"

	cohereTemperature = 0.7
	cohereMaxTokens   = 300

	// rateLimitWait is the pause after a 429 before moving to the next model.
	rateLimitWait = 2 * time.Second
)

// cohereChatModels are tried in order until one produces a usable answer.
var cohereChatModels = []string{
	"command-nightly",
	"command-a-03-2025",
	"command-r7b-12-2024",
	"c4ai-aya-expanse-8b",
	"command-r-08-2024",
}

// CohereChatTier generates answers through the Cohere chat API, walking an
// ordered model list. A rate-limited model triggers a brief wait and the
// next model; any other failure moves on immediately.
type CohereChatTier struct {
	apiKey  string
	baseURL string
	models  []string
	wait    time.Duration
	client  *http.Client
	logger  *slog.Logger
}

// NewCohereChatTier creates the primary generation tier.
func NewCohereChatTier(apiKey string, timeout time.Duration, logger *slog.Logger) *CohereChatTier {
	if logger == nil {
		logger = slog.Default()
	}
	return &CohereChatTier{
		apiKey:  apiKey,
		baseURL: defaultCohereBaseURL,
		models:  cohereChatModels,
		wait:    rateLimitWait,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Name implements Tier.
func (t *CohereChatTier) Name() string { return "cohere" }

type cohereChatRequest struct {
	Message     string  `json:"message"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type cohereChatResponse struct {
	Text string `json:"text"`
}

// Generate implements Tier.
func (t *CohereChatTier) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for _, model := range t.models {
		answer, status, err := t.chatOnce(ctx, model, prompt)
		if err == nil && len(answer) > minAnswerLen {
			return answer, nil
		}

		if status == http.StatusTooManyRequests {
			t.logger.Warn("cohere rate limited, moving to next model", "model", model)
			select {
			case <-time.After(t.wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
			lastErr = fmt.Errorf("model %s: rate limited", model)
			continue
		}
		if err != nil {
			lastErr = fmt.Errorf("model %s: %w", model, err)
			continue
		}
		lastErr = fmt.Errorf("model %s: response too short (%d chars)", model, len(answer))
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no cohere models configured")
	}
	return "", fmt.Errorf("all cohere models failed: %w", lastErr)
}

func (t *CohereChatTier) chatOnce(ctx context.Context, model, prompt string) (string, int, error) {
	body, err := json.Marshal(cohereChatRequest{
		Message:     prompt,
		Model:       model,
		Temperature: cohereTemperature,
		MaxTokens:   cohereMaxTokens,
	})
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", resp.StatusCode, fmt.Errorf("cohere chat: status %d: %s", resp.StatusCode, msg)
	}

	var out cohereChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", resp.StatusCode, fmt.Errorf("cohere chat: decode response: %w", err)
	}
	return trimmed(out.Text), resp.StatusCode, nil
}
