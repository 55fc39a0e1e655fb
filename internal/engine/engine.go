package engine

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmakg/sentinel/internal/util"
	"github.com/pharmakg/sentinel/pkg/config"
	"github.com/pharmakg/sentinel/pkg/dispatch"
	"github.com/pharmakg/sentinel/pkg/graph"
	"github.com/pharmakg/sentinel/pkg/llm"
	ollamaprovider "github.com/pharmakg/sentinel/pkg/llm/ollama"
	openaiprovider "github.com/pharmakg/sentinel/pkg/llm/openai"
	"github.com/pharmakg/sentinel/pkg/react"
	"github.com/pharmakg/sentinel/pkg/tools"
)

// Engine bundles the shared read-only components of the query pipeline.
// One Engine serves many concurrent queries; the pool size bounds them.
type Engine struct {
	Orchestrator *react.Orchestrator
	Pool         *pgxpool.Pool
}

// Build assembles the full pipeline from configuration: graph store (with
// startup probe), LLM provider, tool library, dispatcher and orchestrator.
func Build(ctx context.Context, cfg config.Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	store := graph.NewPGStore(pool)
	if err := store.Probe(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		pool.Close()
		return nil, err
	}
	llmClient := llm.NewClient(provider, cfg.LLMTimeout)

	policy := tools.DefaultScoringPolicy(cfg.UseSourceWeights, cfg.SourceWeights)
	library := tools.NewLibrary(store, llmClient, cfg.EmbedModel, policy)
	dispatcher := dispatch.New(library, cfg.TruncationCap, cfg.ToolTimeout)

	orchestrator := react.New(react.Params{
		LLM:           llmClient,
		Planner:       roleFrom(cfg.Planner),
		Observer:      roleFrom(cfg.Observer),
		Narrator:      roleFrom(cfg.Narrator),
		Dispatcher:    dispatcher,
		MaxIterations: cfg.MaxIterations,
	})

	return &Engine{Orchestrator: orchestrator, Pool: pool}, nil
}

// Close releases the connection pool.
func (e *Engine) Close() {
	e.Pool.Close()
}

func buildProvider(cfg config.Config) (llm.Provider, error) {
	switch cfg.LLMProvider {
	case "ollama":
		return ollamaprovider.New(ollamaprovider.Params{
			BaseURL:               cfg.Planner.BaseURL,
			APIKey:                cfg.LLMAPIKey,
			EmbedModel:            cfg.EmbedModel,
			MaxConcurrentRequests: int64(util.GetEnvNumeric("LLM_PARALLEL_REQ", 4)),
		})
	default:
		return openaiprovider.New(openaiprovider.Params{
			BaseURL:    cfg.Planner.BaseURL,
			APIKey:     cfg.LLMAPIKey,
			EmbedModel: cfg.EmbedModel,
		}), nil
	}
}

func roleFrom(rc config.RoleConfig) llm.Role {
	return llm.Role{
		Model:       rc.Model,
		Temperature: rc.Temperature,
		MaxTokens:   rc.MaxTokens,
	}
}
