package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultHFBaseURL = "https://api-inference.huggingface.co"

	hfChatModel = "google/flan-t5-large"

	// hfPromptTail limits how much of the prompt is sent to the smaller
	// hosted models; the question and nearest context sit at the end.
	hfPromptTail = 500
)

// HuggingFaceChatTier is the secondary generation tier: one model, one
// attempt. Hosted text-generation models echo the prompt, so the echoed
// prefix is stripped from the response.
type HuggingFaceChatTier struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHuggingFaceChatTier creates the secondary generation tier.
func NewHuggingFaceChatTier(apiKey string, timeout time.Duration, logger *slog.Logger) *HuggingFaceChatTier {
	if logger == nil {
		logger = slog.Default()
	}
	return &HuggingFaceChatTier{
		apiKey:  apiKey,
		baseURL: defaultHFBaseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Name implements Tier.
func (t *HuggingFaceChatTier) Name() string { return "huggingface" }

type hfChatRequest struct {
	Inputs string `json:"inputs"`
}

type hfChatResponse struct {
	GeneratedText string `json:"generated_text"`
}

// Generate implements Tier.
func (t *HuggingFaceChatTier) Generate(ctx context.Context, prompt string) (string, error) {
	sent := prompt
	if len(sent) > hfPromptTail {
		sent = sent[len(sent)-hfPromptTail:]
	}

	body, err := json.Marshal(hfChatRequest{Inputs: sent})
	if err != nil {
		return "", err
	}

	url := t.baseURL + "/models/" + hfChatModel
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("huggingface generate: status %d: %s", resp.StatusCode, msg)
	}

	var out []hfChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("huggingface generate: decode response: %w", err)
	}
	if len(out) == 0 {
		return "", fmt.Errorf("huggingface generate: empty response")
	}

	answer := strings.TrimPrefix(out[0].GeneratedText, sent)
	return trimmed(answer), nil
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
