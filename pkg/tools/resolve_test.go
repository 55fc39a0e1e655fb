package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/pharmakg/sentinel/pkg/graph"
	"github.com/pharmakg/sentinel/pkg/graph/graphtest"
)

func newTestLibrary(store graph.Store) *Library {
	return NewLibrary(store, nil, "", DefaultScoringPolicy(false, nil))
}

func TestResolveDrugs_MatchLadder(t *testing.T) {
	store := &graphtest.FakeStore{
		Drugs: []graph.DrugRow{
			{DrugKey: 14042, PreferredName: "Metoprolol", DrugCentralID: graphtest.Ptr("DC1")},
			{DrugKey: 2, PreferredName: "Metformin", ChemblID: graphtest.Ptr("CHEMBL1431")},
			{DrugKey: 3, PreferredName: "Atorvastatin calcium"},
		},
	}
	lib := newTestLibrary(store)

	tests := []struct {
		name       string
		input      string
		wantKey    int64
		wantSource string
		wantConf   float64
	}{
		{"exact preferred name", "metoprolol", 14042, "preferred_name", 1.0},
		{"exact external id", "CHEMBL1431", 2, "external_id", 0.9},
		{"substring", "atorvastatin", 3, "preferred_name_partial", 0.8},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			results, err := lib.ResolveDrugs(context.Background(), []string{tc.input})
			if err != nil {
				t.Fatalf("ResolveDrugs() error = %v", err)
			}
			got := results[tc.input]
			if got == nil {
				t.Fatalf("expected a resolution for %q", tc.input)
			}
			if got.Key != tc.wantKey || got.Source != tc.wantSource || got.Confidence != tc.wantConf {
				t.Fatalf("got %+v, want key=%d source=%s conf=%v", got, tc.wantKey, tc.wantSource, tc.wantConf)
			}
		})
	}
}

func TestResolveDrugs_Unresolved(t *testing.T) {
	lib := newTestLibrary(&graphtest.FakeStore{})

	results, err := lib.ResolveDrugs(context.Background(), []string{"nonexistine"})
	if err != nil {
		t.Fatalf("ResolveDrugs() error = %v", err)
	}
	if results["nonexistine"] != nil {
		t.Fatalf("expected nil for unknown drug, got %+v", results["nonexistine"])
	}
}

func TestResolveDrugs_TieBreakPrefersRicherXrefs(t *testing.T) {
	store := &graphtest.FakeStore{
		Drugs: []graph.DrugRow{
			{DrugKey: 10, PreferredName: "Aspirin"},
			{DrugKey: 20, PreferredName: "Aspirin", DrugCentralID: graphtest.Ptr("DC74"), ChemblID: graphtest.Ptr("CHEMBL25")},
		},
	}
	lib := newTestLibrary(store)

	results, err := lib.ResolveDrugs(context.Background(), []string{"aspirin"})
	if err != nil {
		t.Fatalf("ResolveDrugs() error = %v", err)
	}
	if results["aspirin"].Key != 20 {
		t.Fatalf("expected xref-rich record to win, got key %d", results["aspirin"].Key)
	}
}

func TestResolveDrugs_TieBreakLowerKey(t *testing.T) {
	store := &graphtest.FakeStore{
		Drugs: []graph.DrugRow{
			{DrugKey: 30, PreferredName: "Ibuprofen"},
			{DrugKey: 7, PreferredName: "Ibuprofen"},
		},
	}
	lib := newTestLibrary(store)

	results, err := lib.ResolveDrugs(context.Background(), []string{"ibuprofen"})
	if err != nil {
		t.Fatalf("ResolveDrugs() error = %v", err)
	}
	if results["aspirin"] != nil {
		t.Fatalf("unexpected entry")
	}
	if results["ibuprofen"].Key != 7 {
		t.Fatalf("expected lower surrogate key to win, got %d", results["ibuprofen"].Key)
	}
}

func TestResolveGenes(t *testing.T) {
	store := &graphtest.FakeStore{
		Genes: []graph.GeneRow{
			{GeneKey: 100, Symbol: "ADRB1", HGNCID: graphtest.Ptr("HGNC:285")},
		},
	}
	lib := newTestLibrary(store)

	results, err := lib.ResolveGenes(context.Background(), []string{"adrb1", "HGNC:285", "NOPE1"})
	if err != nil {
		t.Fatalf("ResolveGenes() error = %v", err)
	}
	if results["adrb1"] == nil || results["adrb1"].Key != 100 || results["adrb1"].Confidence != 1.0 {
		t.Fatalf("case-insensitive symbol match failed: %+v", results["adrb1"])
	}
	if results["HGNC:285"] == nil || results["HGNC:285"].Source != "hgnc_id" {
		t.Fatalf("hgnc id match failed: %+v", results["HGNC:285"])
	}
	if results["NOPE1"] != nil {
		t.Fatalf("expected nil for unknown symbol")
	}
}

func TestResolveDiseases_SubstringConfidence(t *testing.T) {
	store := &graphtest.FakeStore{
		Diseases: []graph.DiseaseRow{
			{DiseaseKey: 5, Label: "type 2 diabetes mellitus", OntologyID: graphtest.Ptr("MONDO:0005148")},
		},
	}
	lib := newTestLibrary(store)

	results, err := lib.ResolveDiseases(context.Background(), []string{"diabetes"})
	if err != nil {
		t.Fatalf("ResolveDiseases() error = %v", err)
	}
	got := results["diabetes"]
	if got == nil || got.Confidence != 0.7 || got.Source != "label_partial" {
		t.Fatalf("substring disease match failed: %+v", got)
	}
}

func TestResolveAdverseEvents_CodeMatch(t *testing.T) {
	store := &graphtest.FakeStore{
		AdverseEvents: []graph.AdverseEventRow{
			{AEKey: 900, Label: "Bradycardia", Code: graphtest.Ptr("10006093")},
		},
	}
	lib := newTestLibrary(store)

	results, err := lib.ResolveAdverseEvents(context.Background(), []string{"10006093"})
	if err != nil {
		t.Fatalf("ResolveAdverseEvents() error = %v", err)
	}
	if results["10006093"] == nil || results["10006093"].Source != "code" {
		t.Fatalf("code match failed: %+v", results["10006093"])
	}
}

func TestResolve_EmptyInputIsInvalidArgs(t *testing.T) {
	lib := newTestLibrary(&graphtest.FakeStore{})

	_, err := lib.ResolveDrugs(context.Background(), nil)
	var toolErr *ToolError
	if !errors.As(err, &toolErr) || toolErr.Kind != ErrInvalidArgs {
		t.Fatalf("expected invalid_args, got %v", err)
	}
}

func TestResolve_UpstreamErrorKind(t *testing.T) {
	lib := newTestLibrary(&graphtest.FakeStore{Err: graph.ErrUnavailable})

	_, err := lib.ResolveDrugs(context.Background(), []string{"aspirin"})
	var toolErr *ToolError
	if !errors.As(err, &toolErr) || toolErr.Kind != ErrUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
}
