package tools

import (
	"context"
	"testing"

	"github.com/pharmakg/sentinel/pkg/graph"
	"github.com/pharmakg/sentinel/pkg/graph/graphtest"
)

func seedSubgraphStore() *graphtest.FakeStore {
	store := &graphtest.FakeStore{
		Drugs: []graph.DrugRow{{DrugKey: 1, PreferredName: "drug x"}},
		Targets: []graph.DrugTargetRow{
			{DrugKey: 1, DrugName: "drug x", GeneKey: 10, GeneSymbol: "G1", ClaimKey: 100, ClaimType: "DRUG_TARGET"},
		},
		DrugAEs: []graph.DrugAdverseEventRow{
			{DrugKey: 1, DrugName: "drug x", AEKey: 50, AELabel: "nausea", Frequency: graphtest.Ptr(0.1), ClaimKey: 500},
			{DrugKey: 1, DrugName: "drug x", AEKey: 51, AELabel: "rash", Frequency: graphtest.Ptr(0.05), ClaimKey: 501},
		},
	}
	for i := 0; i < 12; i++ {
		store.Pathways = append(store.Pathways, graph.GenePathwayRow{
			GeneKey: 10, GeneSymbol: "G1",
			PathwayKey: int64(20 + i), PathwayLabel: "pathway", ClaimKey: int64(200 + i),
		})
	}
	return store
}

func TestBuildSubgraph_AppliesPerCategoryCaps(t *testing.T) {
	lib := newTestLibrary(seedSubgraphStore())

	params := DefaultSubgraphParams([]int64{1})
	params.MaxPathwaysPerGene = 5
	params.MaxAEsPerDrug = 1

	sub, err := lib.BuildSubgraph(context.Background(), params)
	if err != nil {
		t.Fatalf("BuildSubgraph() error = %v", err)
	}

	pathwayEdges, aeEdges := 0, 0
	for _, e := range sub.Edges {
		switch e.Kind {
		case "IN_PATHWAY":
			pathwayEdges++
		case "CAUSES":
			aeEdges++
		}
		if e.ClaimKey == 0 {
			t.Fatalf("edge %s->%s carries no claim key", e.Source, e.Target)
		}
	}
	if pathwayEdges != 5 {
		t.Fatalf("expected pathway cap of 5, got %d edges", pathwayEdges)
	}
	if aeEdges != 1 {
		t.Fatalf("expected AE cap of 1, got %d edges", aeEdges)
	}
}

func TestBuildSubgraph_UnknownDrugSkipped(t *testing.T) {
	lib := newTestLibrary(seedSubgraphStore())

	sub, err := lib.BuildSubgraph(context.Background(), DefaultSubgraphParams([]int64{404}))
	if err != nil {
		t.Fatalf("BuildSubgraph() error = %v", err)
	}
	if len(sub.Nodes) != 0 || len(sub.Edges) != 0 {
		t.Fatalf("expected empty subgraph for unknown drug, got %d/%d", len(sub.Nodes), len(sub.Edges))
	}
}

func TestScoreEdges_ComposesCategoryAndDataWeights(t *testing.T) {
	sub := &Subgraph{
		Edges: []Edge{
			{Source: "drug:1", Target: "gene:10", Kind: "TARGETS", Weight: 1.0},
			{Source: "drug:1", Target: "ae:50", Kind: "CAUSES", Weight: 0.1},
			{Source: "a", Target: "b", Kind: "UNKNOWN_KIND", Weight: 0},
		},
	}

	scored := ScoreSubgraphEdges(sub, nil)

	if scored.Edges[0].Weight != 1.0 {
		t.Fatalf("TARGETS weight = %v", scored.Edges[0].Weight)
	}
	frequency := 0.1
	if got := scored.Edges[1].Weight; got != 0.7*frequency {
		t.Fatalf("CAUSES weight should compose with frequency: %v", got)
	}
	if scored.Edges[2].Weight != 0.5 {
		t.Fatalf("unknown edge kind should get the default weight: %v", scored.Edges[2].Weight)
	}
}
