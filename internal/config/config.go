// Package config centralizes environment-derived configuration for docchat.
// Components receive an immutable Config at construction instead of reading
// ambient environment state, so tests can inject fakes per tier.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the service.
type Config struct {
	// HTTP server
	ListenAddr string

	// Qdrant settings
	QdrantHost string
	QdrantPort int
	Collection string

	// Embedding settings. VectorDimension must match the collection: 1024
	// when Cohere is the active tier, 384 for the MiniLM / hash tiers.
	VectorDimension int

	// Provider credentials
	UseCohere    bool
	CohereAPIKey string
	HFAPIKey     string

	// ProviderTimeout bounds each outbound provider call.
	ProviderTimeout time.Duration

	// Session history store
	RedisURL string

	// Document/chunk record store
	DocstorePath string

	// Chunking defaults
	ChunkWindow  int
	ChunkOverlap int

	// Prompt assembly
	ContextBudget int
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	useCohere := getEnvBool("USE_COHERE", false)
	cohereKey := os.Getenv("COHERE_API_KEY")

	// The hash fallback mirrors whichever remote tier is active so one
	// collection never mixes dimensions.
	defaultDim := 384
	if useCohere && cohereKey != "" {
		defaultDim = 1024
	}

	cfg := &Config{
		ListenAddr:      getEnv("LISTEN_ADDR", "0.0.0.0:8080"),
		QdrantHost:      getEnv("QDRANT_HOST", "localhost"),
		QdrantPort:      getEnvInt("QDRANT_PORT", 6334),
		Collection:      getEnv("QDRANT_COLLECTION", "documents"),
		VectorDimension: getEnvInt("VECTOR_DIMENSION", defaultDim),
		UseCohere:       useCohere,
		CohereAPIKey:    cohereKey,
		HFAPIKey:        os.Getenv("HF_API_KEY"),
		ProviderTimeout: getEnvDuration("PROVIDER_TIMEOUT", 25*time.Second),
		RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
		DocstorePath:    getEnv("DOCSTORE_PATH", "docchat.db"),
		ChunkWindow:     getEnvInt("CHUNK_WINDOW", 300),
		ChunkOverlap:    getEnvInt("CHUNK_OVERLAP", 50),
		ContextBudget:   getEnvInt("CONTEXT_BUDGET", 1500),
	}

	return cfg, cfg.Validate()
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.VectorDimension <= 0 {
		return fmt.Errorf("VECTOR_DIMENSION must be positive, got %d", c.VectorDimension)
	}
	if c.ChunkWindow <= 0 {
		return fmt.Errorf("CHUNK_WINDOW must be positive, got %d", c.ChunkWindow)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkWindow {
		return fmt.Errorf("CHUNK_OVERLAP must be in [0, CHUNK_WINDOW), got %d", c.ChunkOverlap)
	}
	if c.ContextBudget <= 0 {
		return fmt.Errorf("CONTEXT_BUDGET must be positive, got %d", c.ContextBudget)
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
