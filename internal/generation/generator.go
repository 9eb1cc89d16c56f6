// Package generation assembles grounded prompts and produces answers
// through a tiered provider chain: Cohere chat, then the HuggingFace
// inference API, then a local extractive fallback built from the prompt
// itself. The terminal tier is pure string manipulation, so answer
// generation as a whole cannot fail.
package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"docchat/internal/config"
	"docchat/internal/memory"
)

const (
	promptPreamble = "You are a helpful assistant. Use the provided context to answer the question accurately."

	// historyTurns is how many trailing turns are rendered into the prompt.
	historyTurns = 3

	// minAnswerLen guards against empty or garbage provider responses.
	minAnswerLen = 10
)

// Tier is one fallback level in the generation chain.
type Tier interface {
	Name() string
	Generate(ctx context.Context, prompt string) (string, error)
}

// Generator builds prompts and walks the tier chain for answers.
type Generator struct {
	tiers         []Tier
	contextBudget int
	logger        *slog.Logger
}

// New builds the tier chain from configuration. Remote tiers are included
// only when their credentials are present.
func New(cfg *config.Config, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}

	var tiers []Tier
	if cfg.UseCohere && cfg.CohereAPIKey != "" {
		tiers = append(tiers, NewCohereChatTier(cfg.CohereAPIKey, cfg.ProviderTimeout, logger))
	}
	if cfg.HFAPIKey != "" {
		tiers = append(tiers, NewHuggingFaceChatTier(cfg.HFAPIKey, cfg.ProviderTimeout, logger))
	}

	return &Generator{tiers: tiers, contextBudget: cfg.ContextBudget, logger: logger}
}

// NewWithTiers builds a Generator over an explicit tier chain. Used by
// tests to inject fakes.
func NewWithTiers(contextBudget int, logger *slog.Logger, tiers ...Tier) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{tiers: tiers, contextBudget: contextBudget, logger: logger}
}

// BuildPrompt concatenates the instruction preamble, the context block cut
// to the configured character budget, the last few history turns, and the
// question, in that fixed order. The context cut is a hard character cut,
// not word-aware; mid-word truncation is acceptable.
func (g *Generator) BuildPrompt(query, contextText string, history []memory.Turn) string {
	if len(contextText) > g.contextBudget {
		contextText = contextText[:g.contextBudget]
	}

	recent := history
	if len(recent) > historyTurns {
		recent = recent[len(recent)-historyTurns:]
	}
	lines := make([]string, len(recent))
	for i, turn := range recent {
		lines[i] = fmt.Sprintf("%s: %s", turn.Role, turn.Message)
	}

	return fmt.Sprintf("%s\n\nContext: %s\n\nChat History:\n%s\n\nQuestion: %s\nAnswer:",
		promptPreamble, contextText, strings.Join(lines, "\n"), query)
}

// Generate walks the tier chain and returns the first acceptable answer.
// When every remote tier is exhausted it falls back to an extractive
// answer synthesized from the prompt's own context segment.
func (g *Generator) Generate(ctx context.Context, prompt string) string {
	for _, tier := range g.tiers {
		answer, err := tier.Generate(ctx, prompt)
		if err != nil {
			g.logger.Warn("generation tier failed", "tier", tier.Name(), "error", err)
			continue
		}
		answer = strings.TrimSpace(answer)
		if len(answer) <= minAnswerLen {
			g.logger.Warn("generation tier returned too little text", "tier", tier.Name(), "length", len(answer))
			continue
		}
		return answer
	}

	return extractiveAnswer(prompt)
}
