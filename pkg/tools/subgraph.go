package tools

import (
	"context"
	"fmt"
)

// Node is one subgraph node. IDs are "kind:key" strings so nodes of
// different kinds never collide.
type Node struct {
	ID    string         `json:"id"`
	Kind  string         `json:"kind"`
	Label string         `json:"label"`
	Props map[string]any `json:"props,omitempty"`
}

// Edge is one subgraph edge. ClaimKey links the edge back to the claim that
// asserts it.
type Edge struct {
	Source   string         `json:"source"`
	Target   string         `json:"target"`
	Kind     string         `json:"kind"`
	Weight   float64        `json:"weight"`
	ClaimKey int64          `json:"claim_key"`
	Props    map[string]any `json:"props,omitempty"`
}

// Subgraph is a bounded extract of the knowledge graph for visualization.
type Subgraph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// BuildSubgraphParams selects edge categories and caps for build_subgraph.
// Per-category caps keep the result O(drugs x cap).
type BuildSubgraphParams struct {
	DrugKeys           []int64
	IncludeTargets     bool
	IncludePathways    bool
	IncludeDiseases    bool
	IncludeAEs         bool
	MaxPathwaysPerGene int
	MaxDiseasesPerGene int
	MaxAEsPerDrug      int
	MinDiseaseScore    float64
}

// DefaultSubgraphParams returns the default caps for the given drugs with
// every edge category enabled.
func DefaultSubgraphParams(drugKeys []int64) BuildSubgraphParams {
	return BuildSubgraphParams{
		DrugKeys:           drugKeys,
		IncludeTargets:     true,
		IncludePathways:    true,
		IncludeDiseases:    true,
		IncludeAEs:         true,
		MaxPathwaysPerGene: 5,
		MaxDiseasesPerGene: 5,
		MaxAEsPerDrug:      10,
		MinDiseaseScore:    0.3,
	}
}

type subgraphBuilder struct {
	graph     Subgraph
	seenNodes map[string]bool
	seenEdges map[string]bool
}

func (b *subgraphBuilder) addNode(id, kind, label string, props map[string]any) {
	if b.seenNodes[id] {
		return
	}
	b.seenNodes[id] = true
	b.graph.Nodes = append(b.graph.Nodes, Node{ID: id, Kind: kind, Label: label, Props: props})
}

func (b *subgraphBuilder) addEdge(source, target, kind string, weight float64, claimKey int64, props map[string]any) {
	key := source + "|" + target + "|" + kind
	if b.seenEdges[key] {
		return
	}
	b.seenEdges[key] = true
	b.graph.Edges = append(b.graph.Edges, Edge{
		Source: source, Target: target, Kind: kind,
		Weight: weight, ClaimKey: claimKey, Props: props,
	})
}

// BuildSubgraph assembles a bounded subgraph centered on the given drugs.
// Unknown drug keys are skipped.
func (l *Library) BuildSubgraph(ctx context.Context, params BuildSubgraphParams) (*Subgraph, error) {
	if len(params.DrugKeys) == 0 {
		return nil, invalidArgs("drug_keys must be a non-empty list")
	}
	if params.MinDiseaseScore < 0 || params.MinDiseaseScore > 1 {
		return nil, invalidArgs("min_disease_score must be within [0,1], got %v", params.MinDiseaseScore)
	}
	if params.MaxPathwaysPerGene <= 0 {
		params.MaxPathwaysPerGene = 5
	}
	if params.MaxDiseasesPerGene <= 0 {
		params.MaxDiseasesPerGene = 5
	}
	if params.MaxAEsPerDrug <= 0 {
		params.MaxAEsPerDrug = 10
	}

	b := &subgraphBuilder{
		seenNodes: make(map[string]bool),
		seenEdges: make(map[string]bool),
	}

	geneKeys := make([]int64, 0)
	seenGenes := make(map[int64]bool)

	for _, drugKey := range params.DrugKeys {
		drug, err := l.store.DrugByKey(ctx, drugKey)
		if err != nil {
			return nil, upstream(err)
		}
		if drug == nil {
			continue
		}
		drugID := fmt.Sprintf("drug:%d", drugKey)
		b.addNode(drugID, "Drug", drug.PreferredName, nil)

		if params.IncludeTargets {
			targets, err := l.GetDrugTargets(ctx, drugKey)
			if err != nil {
				return nil, err
			}
			for _, t := range targets {
				geneID := fmt.Sprintf("gene:%d", t.GeneKey)
				b.addNode(geneID, "Gene", t.GeneSymbol, nil)
				props := map[string]any{}
				if t.Relation != nil {
					props["relation"] = *t.Relation
				}
				if t.Effect != nil {
					props["effect"] = *t.Effect
				}
				b.addEdge(drugID, geneID, "TARGETS", 1.0, t.ClaimKey, props)
				if !seenGenes[t.GeneKey] {
					seenGenes[t.GeneKey] = true
					geneKeys = append(geneKeys, t.GeneKey)
				}
			}
		}

		if params.IncludeAEs {
			aes, err := l.GetDrugAdverseEvents(ctx, drugKey, nil, params.MaxAEsPerDrug)
			if err != nil {
				return nil, err
			}
			for _, ae := range aes {
				aeID := fmt.Sprintf("ae:%d", ae.AEKey)
				b.addNode(aeID, "AdverseEvent", ae.AELabel, nil)
				weight := 0.01
				props := map[string]any{}
				if ae.Frequency != nil {
					weight = *ae.Frequency
					props["frequency"] = *ae.Frequency
				}
				b.addEdge(drugID, aeID, "CAUSES", weight, ae.ClaimKey, props)
			}
		}
	}

	if params.IncludePathways {
		for _, geneKey := range geneKeys {
			geneID := fmt.Sprintf("gene:%d", geneKey)
			pathways, err := l.GetGenePathways(ctx, geneKey)
			if err != nil {
				return nil, err
			}
			if len(pathways) > params.MaxPathwaysPerGene {
				pathways = pathways[:params.MaxPathwaysPerGene]
			}
			for _, pw := range pathways {
				pwID := fmt.Sprintf("pathway:%d", pw.PathwayKey)
				props := map[string]any{}
				if pw.PathwayID != nil {
					props["pathway_id"] = *pw.PathwayID
				}
				b.addNode(pwID, "Pathway", pw.PathwayLabel, props)
				b.addEdge(geneID, pwID, "IN_PATHWAY", 1.0, pw.ClaimKey, nil)
			}
		}
	}

	if params.IncludeDiseases {
		for _, geneKey := range geneKeys {
			geneID := fmt.Sprintf("gene:%d", geneKey)
			diseases, err := l.GetGeneDiseases(ctx, geneKey, params.MinDiseaseScore)
			if err != nil {
				return nil, err
			}
			if len(diseases) > params.MaxDiseasesPerGene {
				diseases = diseases[:params.MaxDiseasesPerGene]
			}
			for _, dis := range diseases {
				disID := fmt.Sprintf("disease:%d", dis.DiseaseKey)
				props := map[string]any{}
				if dis.OntologyID != nil {
					props["ontology_id"] = *dis.OntologyID
				}
				b.addNode(disID, "Disease", dis.DiseaseLabel, props)
				weight := 0.5
				edgeProps := map[string]any{}
				if dis.Score != nil {
					weight = *dis.Score
					edgeProps["score"] = *dis.Score
				}
				b.addEdge(geneID, disID, "ASSOCIATED_WITH", weight, dis.ClaimKey, edgeProps)
			}
		}
	}

	return &b.graph, nil
}

// ScoreSubgraphEdges re-weights subgraph edges by edge-category trust, composing
// with any data-carried weight (frequency, association score).
func ScoreSubgraphEdges(sub *Subgraph, weights map[string]float64) *Subgraph {
	for i := range sub.Edges {
		base := EdgeWeight(weights, sub.Edges[i].Kind)
		if sub.Edges[i].Weight > 0 {
			sub.Edges[i].Weight = Clamp01(base * sub.Edges[i].Weight)
		} else {
			sub.Edges[i].Weight = base
		}
	}
	return sub
}
