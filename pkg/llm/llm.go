package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pharmakg/sentinel/pkg/logger"
)

// ErrTimeout indicates an LLM call exceeded its deadline.
// Category string: llm.timeout.
var ErrTimeout = errors.New("llm.timeout")

// ErrMalformed indicates the model failed to produce parseable structured
// output even after a repair retry. Callers map this onto the role-specific
// categories llm.malformed_plan / llm.malformed_verdict.
var ErrMalformed = errors.New("llm.malformed")

// Message is one chat message.
type Message struct {
	Role    string // "system" or "user"
	Content string
}

// CompletionRequest is a single chat completion call. When Format is non-nil
// it carries a JSON schema the provider should enforce natively; providers
// without native enforcement may ignore it, in which case the Client's
// repair path covers the contract.
type CompletionRequest struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Messages    []Message
	Format      any
}

// Provider is a chat-completion backend. One provider may serve all three
// orchestration roles.
type Provider interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Embed(ctx context.Context, model string, input string) ([]float32, error)
}

// Role holds the sampling settings for one orchestration role.
type Role struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Client wraps a Provider with per-call timeouts and the structured-output
// contract: schema-constrained completion, flexible parsing, and one repair
// retry before reporting malformed output.
type Client struct {
	provider Provider
	timeout  time.Duration
}

// NewClient creates a Client. timeout applies to each individual call.
func NewClient(provider Provider, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{provider: provider, timeout: timeout}
}

// Text runs a plain-text completion for the given role.
func (c *Client) Text(ctx context.Context, role Role, msgs []Message) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.provider.Complete(callCtx, CompletionRequest{
		Model:       role.Model,
		Temperature: role.Temperature,
		MaxTokens:   role.MaxTokens,
		Messages:    msgs,
	})
	if err != nil {
		return "", c.mapErr(ctx, err)
	}
	return out, nil
}

const repairInstruction = "Your previous response was not valid JSON for the required schema. " +
	"Respond again with ONLY a valid JSON object matching the schema. No prose, no code fences."

// Structured runs a schema-constrained completion and unmarshals the result
// into out. On parse failure it retries once with a repair instruction; a
// second failure returns ErrMalformed.
func (c *Client) Structured(ctx context.Context, role Role, msgs []Message, out any) error {
	schema := GenerateSchema(out)

	raw, err := c.complete(ctx, role, msgs, schema)
	if err != nil {
		return err
	}
	if parseErr := UnmarshalFlexible(raw, out); parseErr == nil {
		return nil
	}

	logger.Debug("structured output parse failed, retrying with repair instruction", "model", role.Model)

	repairMsgs := append(append([]Message{}, msgs...), Message{Role: "user", Content: repairInstruction})
	raw, err = c.complete(ctx, role, repairMsgs, schema)
	if err != nil {
		return err
	}
	if parseErr := UnmarshalFlexible(raw, out); parseErr != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, parseErr)
	}
	return nil
}

// Embed generates an embedding vector for the input text.
func (c *Client) Embed(ctx context.Context, model string, input string) ([]float32, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	vec, err := c.provider.Embed(callCtx, model, input)
	if err != nil {
		return nil, c.mapErr(ctx, err)
	}
	return vec, nil
}

func (c *Client) complete(ctx context.Context, role Role, msgs []Message, schema any) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.provider.Complete(callCtx, CompletionRequest{
		Model:       role.Model,
		Temperature: role.Temperature,
		MaxTokens:   role.MaxTokens,
		Messages:    msgs,
		Format:      schema,
	})
	if err != nil {
		return "", c.mapErr(ctx, err)
	}
	return out, nil
}

// mapErr distinguishes a per-call timeout from cancellation of the whole
// query. parentCtx is the caller's context, which outlives the call context.
func (c *Client) mapErr(parentCtx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) && parentCtx.Err() == nil {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}
