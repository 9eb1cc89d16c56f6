package generation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchat/internal/memory"
)

type failingTier struct{}

func (failingTier) Name() string { return "failing" }
func (failingTier) Generate(context.Context, string) (string, error) {
	return "", errors.New("provider down")
}

type shortTier struct{}

func (shortTier) Name() string { return "short" }
func (shortTier) Generate(context.Context, string) (string, error) {
	return "ok", nil // below the minimum length threshold
}

func TestBuildPrompt_ContextBudget(t *testing.T) {
	g := NewWithTiers(1500, nil)
	prompt := g.BuildPrompt("Q", strings.Repeat("C", 2000), nil)

	context := contextSegment(prompt)
	assert.LessOrEqual(t, len(context), 1500, "context segment must be clamped to the budget")
	assert.Contains(t, prompt, "Question: Q")
}

func TestBuildPrompt_SectionOrder(t *testing.T) {
	g := NewWithTiers(1500, nil)
	history := []memory.Turn{{Role: "user", Message: "earlier question"}}
	prompt := g.BuildPrompt("what is the plot size?", "the plot measures 5 ropani", history)

	ctxIdx := strings.Index(prompt, "Context:")
	histIdx := strings.Index(prompt, "Chat History:")
	qIdx := strings.Index(prompt, "Question:")
	require.True(t, ctxIdx > 0 && histIdx > ctxIdx && qIdx > histIdx,
		"sections must appear as preamble, context, history, question")
	assert.Contains(t, prompt, "user: earlier question")
}

func TestBuildPrompt_LastThreeTurns(t *testing.T) {
	g := NewWithTiers(1500, nil)
	history := []memory.Turn{
		{Role: "user", Message: "turn one"},
		{Role: "assistant", Message: "turn two"},
		{Role: "user", Message: "turn three"},
		{Role: "assistant", Message: "turn four"},
		{Role: "user", Message: "turn five"},
	}
	prompt := g.BuildPrompt("Q", "C", history)

	assert.NotContains(t, prompt, "turn one")
	assert.NotContains(t, prompt, "turn two")
	assert.Contains(t, prompt, "turn three")
	assert.Contains(t, prompt, "turn four")
	assert.Contains(t, prompt, "turn five")
}

func TestGenerate_FallsThroughToExtractive(t *testing.T) {
	g := NewWithTiers(1500, nil, failingTier{}, shortTier{})
	prompt := g.BuildPrompt("what facilities does the land have?", "this land has irrigation facilities and road access", nil)

	answer := g.Generate(context.Background(), prompt)
	assert.Contains(t, answer, "irrigation facilities", "extractive fallback must quote the prompt's context")
}

func TestGenerate_NoTiersStillAnswers(t *testing.T) {
	g := NewWithTiers(1500, nil)
	answer := g.Generate(context.Background(), g.BuildPrompt("Q", "relevant context text here", nil))
	assert.NotEmpty(t, answer, "generation must never fail outright")
}

func TestExtractiveAnswer_NoContextMarker(t *testing.T) {
	answer := extractiveAnswer("free-form prompt with no section markers")
	assert.NotEmpty(t, answer)
}

func TestCohereChatTier_SkipsShortAndRateLimitedModels(t *testing.T) {
	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req cohereChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		models = append(models, req.Model)

		switch len(models) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
		case 2:
			json.NewEncoder(w).Encode(cohereChatResponse{Text: "no"})
		default:
			json.NewEncoder(w).Encode(cohereChatResponse{Text: "The land spans five ropani with irrigation access."})
		}
	}))
	defer srv.Close()

	tier := NewCohereChatTier("test-key", 5*time.Second, nil)
	tier.baseURL = srv.URL
	tier.wait = time.Millisecond

	answer, err := tier.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "The land spans five ropani with irrigation access.", answer)
	assert.Len(t, models, 3, "rate-limited and too-short models are skipped")
}

func TestHuggingFaceChatTier_StripsEchoedPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req hfChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		json.NewEncoder(w).Encode([]hfChatResponse{
			{GeneratedText: req.Inputs + " The plot has road access on two sides."},
		})
	}))
	defer srv.Close()

	tier := NewHuggingFaceChatTier("test-key", 5*time.Second, nil)
	tier.baseURL = srv.URL

	answer, err := tier.Generate(context.Background(), "Question: does the plot have road access?\nAnswer:")
	require.NoError(t, err)
	assert.Equal(t, "The plot has road access on two sides.", answer)
}
