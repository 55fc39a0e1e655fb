package react

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/pharmakg/sentinel/pkg/dispatch"
	"github.com/pharmakg/sentinel/pkg/graph"
	"github.com/pharmakg/sentinel/pkg/graph/graphtest"
	"github.com/pharmakg/sentinel/pkg/llm"
	"github.com/pharmakg/sentinel/pkg/tools"
)

// scriptedProvider replays canned completions; structured and text calls
// share one sequence, matching the single-endpoint deployment mode.
type scriptedProvider struct {
	responses []string
	calls     int
}

func (p *scriptedProvider) Complete(_ context.Context, _ llm.CompletionRequest) (string, error) {
	if p.calls >= len(p.responses) {
		return "", errors.New("script exhausted")
	}
	resp := p.responses[p.calls]
	p.calls++
	return resp, nil
}

func (p *scriptedProvider) Embed(_ context.Context, _ string, _ string) ([]float32, error) {
	return nil, errors.New("not scripted")
}

func newTestOrchestrator(store graph.Store, provider llm.Provider, maxIterations int) *Orchestrator {
	lib := tools.NewLibrary(store, nil, "", tools.DefaultScoringPolicy(false, nil))
	return New(Params{
		LLM:           llm.NewClient(provider, time.Second),
		Planner:       llm.Role{Model: "planner"},
		Observer:      llm.Role{Model: "observer"},
		Narrator:      llm.Role{Model: "narrator"},
		Dispatcher:    dispatch.New(lib, 30, time.Second),
		MaxIterations: maxIterations,
	})
}

const verdictSufficient = `{"status":"sufficient","confidence":0.9,"reasoning":"enough data","gaps":[],"can_answer":true}`
const verdictInsufficient = `{"status":"insufficient","confidence":0.4,"reasoning":"missing mechanism","gaps":[{"category":"mechanism","description":"no targets yet","priority":1,"suggested_tool":"get_drug_targets"}],"can_answer":false}`

func seedAEStore() *graphtest.FakeStore {
	store := &graphtest.FakeStore{
		Drugs: []graph.DrugRow{{DrugKey: 14042, PreferredName: "drug x"}},
	}
	for i := 0; i < 84; i++ {
		store.DrugAEs = append(store.DrugAEs, graph.DrugAdverseEventRow{
			DrugKey: 14042, DrugName: "drug x",
			AEKey: int64(5000 + i), AELabel: fmt.Sprintf("adverse event %02d", i),
			Frequency: graphtest.Ptr(0.003 + float64(i)*0.001),
			ClaimKey:  int64(7000 + i), DatasetKey: graphtest.Ptr("sider"),
		})
	}
	return store
}

func TestRun_SingleDrugAELookup(t *testing.T) {
	store := seedAEStore()
	provider := &scriptedProvider{responses: []string{
		`{"thought":"resolve then fetch AEs","calls":[
			{"tool":"resolve_drugs","args":{"names":["drug x"]},"reason":"resolve name"},
			{"tool":"get_drug_adverse_events","args":{"drug_key":14042},"reason":"list AEs"}],
		  "stop_conditions":{}}`,
		verdictSufficient,
		"Drug x is associated with 84 labelled adverse events.",
	}}
	orch := newTestOrchestrator(store, provider, 3)

	result := orch.Run(context.Background(), "What adverse events does drug x cause?", 0)

	if result.CompletionReason != ReasonSufficient {
		t.Fatalf("completion = %s, want sufficient", result.CompletionReason)
	}
	if len(result.Paths) != 0 {
		t.Fatalf("expected no paths for a plain AE lookup, got %d", len(result.Paths))
	}
	if got := len(result.Evidence.AEs); got != 84 {
		t.Fatalf("expected all 84 AE labels in evidence, got %d", got)
	}
	if result.Evidence.Drugs["drug x"] != 14042 {
		t.Fatalf("expected resolved drug key, got %+v", result.Evidence.Drugs)
	}
	if len(result.Trace) != 1 || len(result.Trace[0].ToolCalls) != 2 {
		t.Fatalf("expected one iteration with two tool calls, got %+v", result.Trace)
	}
	if result.Trace[0].ToolCalls[0].Tool != "resolve_drugs" {
		t.Fatalf("expected resolution first, got %s", result.Trace[0].ToolCalls[0].Tool)
	}
	if result.Summary == "" {
		t.Fatal("expected a narrative summary")
	}
	// plan + verdict + narration, nothing after narrate.
	if provider.calls != 3 {
		t.Fatalf("expected exactly 3 LLM calls, got %d", provider.calls)
	}
}

func TestRun_IterationBudgetExhausted(t *testing.T) {
	store := seedAEStore()
	plan := `{"thought":"keep digging","calls":[{"tool":"get_drug_adverse_events","args":{"drug_key":14042}}],"stop_conditions":{}}`
	provider := &scriptedProvider{responses: []string{
		plan, verdictInsufficient,
		plan, verdictInsufficient,
		plan, verdictInsufficient,
		"Best-effort answer from partial evidence.",
	}}
	orch := newTestOrchestrator(store, provider, 3)

	result := orch.Run(context.Background(), "q", 0)

	if result.CompletionReason != ReasonMaxIterations {
		t.Fatalf("completion = %s, want max_iterations", result.CompletionReason)
	}
	if len(result.Trace) != 3 {
		t.Fatalf("expected exactly 3 plan/observe cycles, got %d", len(result.Trace))
	}
	if provider.calls != 7 {
		t.Fatalf("expected 3 plans + 3 verdicts + 1 narration, got %d calls", provider.calls)
	}
	if len(result.Evidence.AEs) == 0 {
		t.Fatal("accumulated evidence must survive budget exhaustion")
	}
}

func TestRun_MalformedPlanRepaired(t *testing.T) {
	store := seedAEStore()
	provider := &scriptedProvider{responses: []string{
		"I think we should resolve the drug first",
		`{"thought":"repaired","calls":[{"tool":"resolve_drugs","args":{"names":["drug x"]}}],"stop_conditions":{}}`,
		verdictSufficient,
		"Answer.",
	}}
	orch := newTestOrchestrator(store, provider, 3)

	result := orch.Run(context.Background(), "q", 0)

	if result.CompletionReason != ReasonSufficient {
		t.Fatalf("completion = %s, want sufficient", result.CompletionReason)
	}
	if len(result.Trace) != 1 {
		t.Fatalf("expected a single dispatched iteration, got %d", len(result.Trace))
	}
	if provider.calls != 4 {
		t.Fatalf("expected 2 planner calls + 1 verdict + 1 narration, got %d", provider.calls)
	}
}

func TestRun_MalformedPlanTwiceEndsWithError(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		"not a plan",
		"still not a plan",
	}}
	orch := newTestOrchestrator(&graphtest.FakeStore{}, provider, 3)

	result := orch.Run(context.Background(), "q", 0)

	if result.CompletionReason != ReasonError {
		t.Fatalf("completion = %s, want error", result.CompletionReason)
	}
	if result.Error != "llm.malformed_plan" {
		t.Fatalf("error category = %q, want llm.malformed_plan", result.Error)
	}
}

func TestRun_PlannerStopSkipsDispatch(t *testing.T) {
	store := &graphtest.FakeStore{}
	provider := &scriptedProvider{responses: []string{
		`{"thought":"nothing to do","calls":[],"stop_conditions":{"no_relevant_tools":true,"sufficient_information":false}}`,
		"The knowledge graph holds no tools relevant to this question.",
	}}
	orch := newTestOrchestrator(store, provider, 3)

	result := orch.Run(context.Background(), "what is the meaning of life?", 0)

	if result.CompletionReason != ReasonPlannerStop {
		t.Fatalf("completion = %s, want planner_stop", result.CompletionReason)
	}
	if store.QueryCount != 0 {
		t.Fatalf("planner stop must not touch the store, saw %d queries", store.QueryCount)
	}
	if provider.calls != 2 {
		t.Fatalf("expected plan + narration only, got %d calls", provider.calls)
	}
}

func TestRun_UnknownEntityYieldsNoFabricatedKeys(t *testing.T) {
	store := &graphtest.FakeStore{} // drug z does not exist
	provider := &scriptedProvider{responses: []string{
		`{"thought":"resolve","calls":[{"tool":"resolve_drugs","args":{"names":["drug z"]}}],"stop_conditions":{}}`,
		verdictInsufficient,
		"No evidence was found for drug z in the knowledge graph.",
	}}
	orch := newTestOrchestrator(store, provider, 1)

	result := orch.Run(context.Background(), "does drug z target protein w?", 0)

	if result.CompletionReason != ReasonMaxIterations {
		t.Fatalf("completion = %s, want max_iterations", result.CompletionReason)
	}
	if len(result.Evidence.Drugs) != 0 {
		t.Fatalf("no key may be fabricated for an unresolvable name: %+v", result.Evidence.Drugs)
	}
}

func TestRun_SharedTargetAcrossDrugs(t *testing.T) {
	store := &graphtest.FakeStore{
		Drugs: []graph.DrugRow{
			{DrugKey: 1, PreferredName: "drug a"},
			{DrugKey: 2, PreferredName: "drug b"},
			{DrugKey: 3, PreferredName: "drug c"},
		},
		Targets: []graph.DrugTargetRow{
			{DrugKey: 1, DrugName: "drug a", GeneKey: 77, GeneSymbol: "SHARED1", ClaimKey: 10, ClaimType: "DRUG_TARGET"},
			{DrugKey: 1, DrugName: "drug a", GeneKey: 78, GeneSymbol: "ONLYA", ClaimKey: 11, ClaimType: "DRUG_TARGET"},
			{DrugKey: 2, DrugName: "drug b", GeneKey: 77, GeneSymbol: "SHARED1", ClaimKey: 12, ClaimType: "DRUG_TARGET"},
			{DrugKey: 3, DrugName: "drug c", GeneKey: 77, GeneSymbol: "SHARED1", ClaimKey: 13, ClaimType: "DRUG_TARGET"},
		},
	}
	provider := &scriptedProvider{responses: []string{
		`{"thought":"resolve all drugs","calls":[{"tool":"resolve_drugs","args":{"names":["drug a","drug b","drug c"]}}],"stop_conditions":{}}`,
		verdictInsufficient,
		`{"thought":"fetch targets","calls":[
			{"tool":"get_drug_targets","args":{"drug_key":1}},
			{"tool":"get_drug_targets","args":{"drug_key":2}},
			{"tool":"get_drug_targets","args":{"drug_key":3}}],
		  "stop_conditions":{}}`,
		`{"status":"partially_sufficient","confidence":0.6,"reasoning":"no intersection tool","gaps":[{"category":"intersection","description":"no dedicated target-intersection tool","priority":2}],"can_answer":true}`,
		"All three drugs share the target SHARED1.",
	}}
	orch := newTestOrchestrator(store, provider, 3)

	result := orch.Run(context.Background(), "which target do drugs a, b and c share?", 0)

	if result.CompletionReason != ReasonSufficient {
		t.Fatalf("partially_sufficient with can_answer must narrate, got %s", result.CompletionReason)
	}
	if len(result.Trace) != 2 {
		t.Fatalf("expected 2 iterations, got %d", len(result.Trace))
	}
	if result.Evidence.Genes["SHARED1"] != 77 {
		t.Fatalf("shared gene key must be accumulated: %+v", result.Evidence.Genes)
	}
}

func TestRun_MalformedVerdictTreatedAsInsufficient(t *testing.T) {
	store := seedAEStore()
	provider := &scriptedProvider{responses: []string{
		`{"thought":"go","calls":[{"tool":"get_drug_adverse_events","args":{"drug_key":14042}}],"stop_conditions":{}}`,
		"the data looks fine to me",
		"no really, it is fine",
		"Best-effort answer.",
	}}
	orch := newTestOrchestrator(store, provider, 1)

	result := orch.Run(context.Background(), "q", 0)

	if result.CompletionReason != ReasonMaxIterations {
		t.Fatalf("completion = %s, want max_iterations after malformed verdict", result.CompletionReason)
	}
	if provider.calls != 4 {
		t.Fatalf("expected plan + 2 verdict attempts + narration, got %d", provider.calls)
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	provider := &scriptedProvider{}
	orch := newTestOrchestrator(&graphtest.FakeStore{}, provider, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := orch.Run(ctx, "q", 0)

	if result.CompletionReason != ReasonCancelled {
		t.Fatalf("completion = %s, want cancelled", result.CompletionReason)
	}
	if provider.calls != 0 {
		t.Fatalf("cancelled query must not call the LLM, got %d calls", provider.calls)
	}
}

func TestRun_MaxIterationsOverrideClamped(t *testing.T) {
	provider := &scriptedProvider{responses: []string{
		`{"thought":"stop","calls":[],"stop_conditions":{"sufficient_information":true}}`,
		"Answer.",
	}}
	orch := newTestOrchestrator(&graphtest.FakeStore{}, provider, 3)

	result := orch.Run(context.Background(), "q", 99)
	if result.CompletionReason != ReasonPlannerStop {
		t.Fatalf("unexpected completion %s", result.CompletionReason)
	}
}

func TestRun_GapsFoldedIntoNextPlannerPrompt(t *testing.T) {
	store := seedAEStore()

	// Capture the prompts the planner sees.
	capture := &promptCapturingProvider{scripted: scriptedProvider{responses: []string{
		`{"thought":"first","calls":[{"tool":"resolve_drugs","args":{"names":["drug x"]}}],"stop_conditions":{}}`,
		verdictInsufficient,
		`{"thought":"second","calls":[],"stop_conditions":{"sufficient_information":true}}`,
		"Answer.",
	}}}
	orch := newTestOrchestrator(store, capture, 3)

	result := orch.Run(context.Background(), "q", 0)
	if result.CompletionReason != ReasonPlannerStop {
		t.Fatalf("unexpected completion %s", result.CompletionReason)
	}

	secondPlannerPrompt := capture.prompts[2]
	if !contains(secondPlannerPrompt, "get_drug_targets") {
		t.Fatalf("suggested tool from the gap must reach the next planner prompt:\n%s", secondPlannerPrompt)
	}
	if !contains(secondPlannerPrompt, "drug x -> drug_key=14042") {
		t.Fatalf("resolved entities must be carried verbatim:\n%s", secondPlannerPrompt)
	}
}

type promptCapturingProvider struct {
	scripted scriptedProvider
	prompts  []string
}

func (p *promptCapturingProvider) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	var userPrompt string
	for _, m := range req.Messages {
		if m.Role == "user" {
			userPrompt = m.Content
		}
	}
	p.prompts = append(p.prompts, userPrompt)
	return p.scripted.Complete(ctx, req)
}

func (p *promptCapturingProvider) Embed(ctx context.Context, model string, input string) ([]float32, error) {
	return p.scripted.Embed(ctx, model, input)
}

func contains(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}
