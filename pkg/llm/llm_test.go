package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

// scriptedProvider returns queued responses in order and counts calls.
type scriptedProvider struct {
	responses []string
	errs      []error
	calls     int
}

func (p *scriptedProvider) Complete(_ context.Context, _ CompletionRequest) (string, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return "", p.errs[i]
	}
	if i < len(p.responses) {
		return p.responses[i], nil
	}
	return "", errors.New("no scripted response")
}

func (p *scriptedProvider) Embed(_ context.Context, _ string, _ string) ([]float32, error) {
	return []float32{0.1, 0.2}, nil
}

type testPlan struct {
	Thought string `json:"thought"`
}

func TestStructured_FirstAttemptParses(t *testing.T) {
	provider := &scriptedProvider{responses: []string{`{"thought":"resolve first"}`}}
	client := NewClient(provider, time.Second)

	var plan testPlan
	err := client.Structured(context.Background(), Role{Model: "m"}, []Message{{Role: "user", Content: "q"}}, &plan)
	if err != nil {
		t.Fatalf("Structured() error = %v", err)
	}
	if plan.Thought != "resolve first" {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if provider.calls != 1 {
		t.Fatalf("expected 1 provider call, got %d", provider.calls)
	}
}

func TestStructured_RepairRetrySucceeds(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		"The plan is to resolve the drug first, then",
		`{"thought":"repaired"}`,
	}}
	client := NewClient(provider, time.Second)

	var plan testPlan
	err := client.Structured(context.Background(), Role{Model: "m"}, []Message{{Role: "user", Content: "q"}}, &plan)
	if err != nil {
		t.Fatalf("Structured() error = %v", err)
	}
	if plan.Thought != "repaired" {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if provider.calls != 2 {
		t.Fatalf("expected exactly 2 provider calls (original + repair), got %d", provider.calls)
	}
}

func TestStructured_SecondFailureIsMalformed(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		"not json at all",
		"still not json",
	}}
	client := NewClient(provider, time.Second)

	var plan testPlan
	err := client.Structured(context.Background(), Role{Model: "m"}, []Message{{Role: "user", Content: "q"}}, &plan)
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if provider.calls != 2 {
		t.Fatalf("expected exactly 2 provider calls, got %d", provider.calls)
	}
}

func TestText_TimeoutSurfacesAsLLMTimeout(t *testing.T) {
	provider := &scriptedProvider{errs: []error{context.DeadlineExceeded}}
	client := NewClient(provider, time.Second)

	_, err := client.Text(context.Background(), Role{Model: "m"}, []Message{{Role: "user", Content: "q"}})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestText_ParentCancellationIsNotTimeout(t *testing.T) {
	provider := &scriptedProvider{errs: []error{context.DeadlineExceeded}}
	client := NewClient(provider, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Text(ctx, Role{Model: "m"}, []Message{{Role: "user", Content: "q"}})
	if errors.Is(err, ErrTimeout) {
		t.Fatalf("cancellation must not be reported as llm timeout: %v", err)
	}
}
