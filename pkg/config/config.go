package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pharmakg/sentinel/internal/util"
)

// RoleConfig holds per-role LLM endpoint settings. The planner, observer and
// narrator roles may share one endpoint or use separate ones.
type RoleConfig struct {
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Config is the single configuration record for the query engine. It is
// loaded once at startup and shared read-only across concurrent queries.
type Config struct {
	// Graph store
	DatabaseURL string

	// LLM provider: "openai" (any OpenAI-compatible endpoint) or "ollama".
	LLMProvider string
	LLMAPIKey   string

	Planner  RoleConfig
	Observer RoleConfig
	Narrator RoleConfig

	// Orchestration limits
	MaxIterations int           // plan/observe cycles per query, 1-10
	LLMTimeout    time.Duration // per LLM call
	ToolTimeout   time.Duration // per tool call
	TruncationCap int           // max list items shaped into the observer prompt

	// Scoring
	UseSourceWeights bool
	SourceWeights    map[string]float64 // overrides merged over defaults

	// Optional embedding model for semantic drug search.
	EmbedModel string
	EmbedDim   int
}

const (
	defaultMaxIterations = 3
	defaultLLMTimeout    = 60 * time.Second
	defaultToolTimeout   = 30 * time.Second
	defaultTruncationCap = 30
)

// Load reads configuration from the environment. Values out of range are
// clamped to their documented bounds rather than rejected.
func Load() Config {
	cfg := Config{
		DatabaseURL: util.GetEnv("DATABASE_URL"),

		LLMProvider: util.GetEnvString("LLM_PROVIDER", "openai"),
		LLMAPIKey:   util.GetEnv("LLM_API_KEY"),

		Planner: RoleConfig{
			BaseURL:     util.GetEnv("LLM_PLANNER_URL"),
			Model:       util.GetEnvString("LLM_PLANNER_MODEL", "gpt-4o-mini"),
			Temperature: util.GetEnvNumeric("LLM_PLANNER_TEMPERATURE", 0.1),
			MaxTokens:   util.GetEnvInt("LLM_PLANNER_MAX_TOKENS", 4096),
		},
		Observer: RoleConfig{
			BaseURL:     util.GetEnv("LLM_OBSERVER_URL"),
			Model:       util.GetEnvString("LLM_OBSERVER_MODEL", "gpt-4o-mini"),
			Temperature: util.GetEnvNumeric("LLM_OBSERVER_TEMPERATURE", 0.1),
			MaxTokens:   util.GetEnvInt("LLM_OBSERVER_MAX_TOKENS", 1024),
		},
		Narrator: RoleConfig{
			BaseURL:     util.GetEnv("LLM_NARRATOR_URL"),
			Model:       util.GetEnvString("LLM_NARRATOR_MODEL", "gpt-4o-mini"),
			Temperature: util.GetEnvNumeric("LLM_NARRATOR_TEMPERATURE", 0.3),
			MaxTokens:   util.GetEnvInt("LLM_NARRATOR_MAX_TOKENS", 8192),
		},

		MaxIterations: util.GetEnvInt("MAX_ITERATIONS", defaultMaxIterations),
		LLMTimeout:    time.Duration(util.GetEnvInt("LLM_TIMEOUT_SECONDS", 60)) * time.Second,
		ToolTimeout:   time.Duration(util.GetEnvInt("TOOL_TIMEOUT_SECONDS", 30)) * time.Second,
		TruncationCap: util.GetEnvInt("TRUNCATION_CAP", defaultTruncationCap),

		UseSourceWeights: util.GetEnvBool("USE_SOURCE_WEIGHTS", false),
		SourceWeights:    parseSourceWeights(util.GetEnv("SOURCE_WEIGHTS")),

		EmbedModel: util.GetEnv("LLM_EMBED_MODEL"),
		EmbedDim:   util.GetEnvInt("LLM_EMBED_DIM", 1536),
	}

	cfg.MaxIterations = clampIterations(cfg.MaxIterations)
	if cfg.TruncationCap <= 0 {
		cfg.TruncationCap = defaultTruncationCap
	}
	if cfg.LLMTimeout <= 0 {
		cfg.LLMTimeout = defaultLLMTimeout
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = defaultToolTimeout
	}

	return cfg
}

func clampIterations(n int) int {
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

// parseSourceWeights parses "dataset=weight,dataset=weight" pairs. Malformed
// entries are skipped.
func parseSourceWeights(raw string) map[string]float64 {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	weights := make(map[string]float64)
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(parts) != 2 {
			continue
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil || w < 0 || w > 1 {
			continue
		}
		weights[strings.ToLower(strings.TrimSpace(parts[0]))] = w
	}
	if len(weights) == 0 {
		return nil
	}
	return weights
}

// Validate reports configuration problems that should prevent startup.
func (c Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	switch c.LLMProvider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q (expected openai or ollama)", c.LLMProvider)
	}
	return nil
}
