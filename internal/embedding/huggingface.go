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
)

const (
	defaultHFBaseURL = "https://api-inference.huggingface.co"

	// hfEmbedModel produces 384-dimension sentence embeddings.
	hfEmbedModel = "sentence-transformers/all-MiniLM-L6-v2"
)

// HuggingFaceTier embeds text through the HuggingFace inference API in one
// request. Any failure falls through to the next tier.
type HuggingFaceTier struct {
	apiKey  string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHuggingFaceTier creates the secondary embedding tier.
func NewHuggingFaceTier(apiKey string, timeout time.Duration, logger *slog.Logger) *HuggingFaceTier {
	if logger == nil {
		logger = slog.Default()
	}
	return &HuggingFaceTier{
		apiKey:  apiKey,
		baseURL: defaultHFBaseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Name implements Tier.
func (t *HuggingFaceTier) Name() string { return "huggingface" }

type hfEmbedRequest struct {
	Inputs  []string `json:"inputs"`
	Options struct {
		WaitForModel bool `json:"wait_for_model"`
	} `json:"options"`
}

// Embed implements Tier.
func (t *HuggingFaceTier) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := hfEmbedRequest{Inputs: texts}
	reqBody.Options.WaitForModel = true
	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := t.baseURL + "/models/" + hfEmbedModel
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+t.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("huggingface embed: status %d: %s", resp.StatusCode, msg)
	}

	var vectors [][]float32
	if err := json.NewDecoder(resp.Body).Decode(&vectors); err != nil {
		return nil, fmt.Errorf("huggingface embed: decode response: %w", err)
	}
	return vectors, nil
}
