package dispatch

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pharmakg/sentinel/pkg/evidence"
	"github.com/pharmakg/sentinel/pkg/graph"
	"github.com/pharmakg/sentinel/pkg/graph/graphtest"
	"github.com/pharmakg/sentinel/pkg/tools"
)

func newTestDispatcher(store graph.Store) *Dispatcher {
	lib := tools.NewLibrary(store, nil, "", tools.DefaultScoringPolicy(false, nil))
	return New(lib, 30, time.Second)
}

func TestDispatch_UnknownToolPerformsZeroQueries(t *testing.T) {
	store := &graphtest.FakeStore{}
	d := newTestDispatcher(store)
	pack := evidence.NewPack("q")

	results := d.Dispatch(context.Background(), []ToolCallRequest{
		{Tool: "drop_all_tables", Args: map[string]any{}},
	}, pack)

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].OK || results[0].ErrorKind != UnknownToolKind {
		t.Fatalf("expected %s, got %+v", UnknownToolKind, results[0])
	}
	if store.QueryCount != 0 {
		t.Fatalf("unknown tool must not reach the store, saw %d queries", store.QueryCount)
	}
}

func TestDispatch_WrongArgTypePerformsZeroQueries(t *testing.T) {
	store := &graphtest.FakeStore{}
	d := newTestDispatcher(store)
	pack := evidence.NewPack("q")

	tests := []ToolCallRequest{
		{Tool: "get_drug_targets", Args: map[string]any{"drug_key": "not-a-number"}},
		{Tool: "get_drug_targets", Args: map[string]any{"drug_key": 1.5}},
		{Tool: "resolve_drugs", Args: map[string]any{"names": "aspirin"}},
		{Tool: "get_gene_diseases", Args: map[string]any{"gene_key": 1.0, "min_score": "high"}},
	}

	for _, call := range tests {
		results := d.Dispatch(context.Background(), []ToolCallRequest{call}, pack)
		if results[0].OK || results[0].ErrorKind != string(tools.ErrInvalidArgs) {
			t.Fatalf("%s: expected invalid_args, got %+v", call.Tool, results[0])
		}
	}
	if store.QueryCount != 0 {
		t.Fatalf("invalid args must not reach the store, saw %d queries", store.QueryCount)
	}
}

func TestDispatch_MissingRequiredArg(t *testing.T) {
	store := &graphtest.FakeStore{}
	d := newTestDispatcher(store)

	results := d.Dispatch(context.Background(), []ToolCallRequest{
		{Tool: "get_drug_targets", Args: map[string]any{}},
	}, evidence.NewPack("q"))

	if results[0].OK || results[0].ErrorKind != string(tools.ErrInvalidArgs) {
		t.Fatalf("expected invalid_args for missing drug_key, got %+v", results[0])
	}
	if store.QueryCount != 0 {
		t.Fatalf("expected zero queries, saw %d", store.QueryCount)
	}
}

func TestDispatch_PlanContinuesAfterFailure(t *testing.T) {
	store := &graphtest.FakeStore{
		Drugs: []graph.DrugRow{{DrugKey: 1, PreferredName: "aspirin"}},
	}
	d := newTestDispatcher(store)
	pack := evidence.NewPack("q")

	results := d.Dispatch(context.Background(), []ToolCallRequest{
		{Tool: "no_such_tool"},
		{Tool: "resolve_drugs", Args: map[string]any{"names": []any{"aspirin"}}},
	}, pack)

	if len(results) != 2 {
		t.Fatalf("expected the plan to continue past the failure, got %d results", len(results))
	}
	if results[0].OK {
		t.Fatalf("first call should have failed")
	}
	if !results[1].OK {
		t.Fatalf("second call should have succeeded: %+v", results[1])
	}
}

func TestDispatch_TruncationContract(t *testing.T) {
	store := &graphtest.FakeStore{}
	for i := 0; i < 84; i++ {
		store.DrugAEs = append(store.DrugAEs, graph.DrugAdverseEventRow{
			DrugKey: 14042, DrugName: "x",
			AEKey: int64(1000 + i), AELabel: fmt.Sprintf("ae %d", i), Frequency: graphtest.Ptr(0.01),
			ClaimKey: int64(2000 + i),
		})
	}
	d := newTestDispatcher(store)
	pack := evidence.NewPack("q")

	results := d.Dispatch(context.Background(), []ToolCallRequest{
		{Tool: "get_drug_adverse_events", Args: map[string]any{"drug_key": float64(14042)}},
	}, pack)

	r := results[0]
	if !r.OK {
		t.Fatalf("call failed: %+v", r)
	}
	shaped, ok := r.Shaped.([]tools.DrugAdverseEvent)
	if !ok {
		t.Fatalf("unexpected shaped type %T", r.Shaped)
	}
	if len(shaped) != 30 {
		t.Fatalf("shaped payload must carry exactly 30 items, got %d", len(shaped))
	}
	if !r.Truncated || r.OriginalCount != 84 {
		t.Fatalf("expected truncated=true with original count 84, got %+v", r)
	}

	// The full payload stays available in-process.
	full, ok := r.Payload.([]tools.DrugAdverseEvent)
	if !ok || len(full) != 84 {
		t.Fatalf("expected full payload retained, got %T len=%d", r.Payload, len(full))
	}

	// Every AE reached the accumulator despite shaping.
	if got := len(pack.Summarize().AEs); got != 84 {
		t.Fatalf("expected all 84 AE labels accumulated, got %d", got)
	}
}

func TestDispatch_ResolutionIdempotence(t *testing.T) {
	store := &graphtest.FakeStore{
		Drugs: []graph.DrugRow{{DrugKey: 14042, PreferredName: "metoprolol"}},
	}
	d := newTestDispatcher(store)
	pack := evidence.NewPack("q")

	call := ToolCallRequest{Tool: "resolve_drugs", Args: map[string]any{"names": []any{"metoprolol"}}}

	first := d.Dispatch(context.Background(), []ToolCallRequest{call}, pack)
	if !first[0].OK {
		t.Fatalf("first resolve failed: %+v", first[0])
	}
	queriesAfterFirst := store.QueryCount
	if queriesAfterFirst == 0 {
		t.Fatal("first resolve should query the store")
	}

	second := d.Dispatch(context.Background(), []ToolCallRequest{call}, pack)
	if !second[0].OK {
		t.Fatalf("second resolve failed: %+v", second[0])
	}
	if store.QueryCount != queriesAfterFirst {
		t.Fatalf("second resolve must reuse the cached key, saw %d extra queries", store.QueryCount-queriesAfterFirst)
	}

	resolved, ok := second[0].Payload.(map[string]*tools.ResolvedEntity)
	if !ok || resolved["metoprolol"] == nil || resolved["metoprolol"].Key != 14042 {
		t.Fatalf("cached resolution must return the first-iteration key, got %+v", second[0].Payload)
	}
}

func TestDispatch_UpstreamErrorIsReportedNotRaised(t *testing.T) {
	store := &graphtest.FakeStore{Err: graph.ErrUnavailable}
	d := newTestDispatcher(store)

	results := d.Dispatch(context.Background(), []ToolCallRequest{
		{Tool: "get_drug_targets", Args: map[string]any{"drug_key": float64(1)}},
	}, evidence.NewPack("q"))

	if results[0].OK || results[0].ErrorKind != string(tools.ErrUpstream) {
		t.Fatalf("expected tool.upstream, got %+v", results[0])
	}
}

func TestDispatch_ClaimEvidenceShapingKeepsEvidenceKeys(t *testing.T) {
	store := &graphtest.FakeStore{
		Claims: map[int64]graph.ClaimRow{
			42: {ClaimKey: 42, ClaimType: "DRUG_TARGET", DatasetKey: graphtest.Ptr("drugcentral")},
		},
		Evidence: map[int64][]graph.EvidenceRow{
			42: {{EvidenceKey: 9000, EvidenceType: "source_record", PayloadJSON: []byte(`{"huge":"blob"}`)}},
		},
	}
	d := newTestDispatcher(store)
	pack := evidence.NewPack("q")

	results := d.Dispatch(context.Background(), []ToolCallRequest{
		{Tool: "get_claim_evidence", Args: map[string]any{"claim_key": float64(42)}},
	}, pack)

	shaped, ok := results[0].Shaped.(*tools.ClaimDetail)
	if !ok {
		t.Fatalf("unexpected shaped type %T", results[0].Shaped)
	}
	if len(shaped.Evidence) != 1 {
		t.Fatalf("expected evidence entry to survive shaping")
	}
	if shaped.Evidence[0].Payload != nil {
		t.Fatalf("evidence payload blob must be dropped from the shaped view")
	}
	if shaped.Evidence[0].EvidenceKey != 9000 {
		t.Fatalf("evidence key must survive shaping")
	}

	full := results[0].Payload.(*tools.ClaimDetail)
	if full.Evidence[0].Payload == nil {
		t.Fatalf("full payload must keep the evidence body")
	}

	summary := pack.Summarize()
	if len(summary.EvidenceIDs) != 1 || summary.EvidenceIDs[0] != 9000 {
		t.Fatalf("evidence id must be accumulated, got %v", summary.EvidenceIDs)
	}
}

func TestDispatch_CancellationStopsBetweenCalls(t *testing.T) {
	store := &graphtest.FakeStore{}
	d := newTestDispatcher(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := d.Dispatch(ctx, []ToolCallRequest{
		{Tool: "get_drug_targets", Args: map[string]any{"drug_key": float64(1)}},
	}, evidence.NewPack("q"))

	if len(results) != 0 {
		t.Fatalf("expected no calls after cancellation, got %d", len(results))
	}
	if store.QueryCount != 0 {
		t.Fatalf("expected zero queries after cancellation")
	}
}

func TestShape_PlainSliceUnderCapUntouched(t *testing.T) {
	payload := []tools.DrugTarget{{GeneSymbol: "A"}, {GeneSymbol: "B"}}
	shaped, truncated, count := Shape(payload, 30)
	if truncated || count != 2 {
		t.Fatalf("expected untouched slice, got truncated=%v count=%d", truncated, count)
	}
	if len(shaped.([]tools.DrugTarget)) != 2 {
		t.Fatalf("unexpected shaped length")
	}
}
