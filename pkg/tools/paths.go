package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// PathStep is one node on a mechanistic path. EdgeKind names the edge
// leading into this node; it is empty on the first step.
type PathStep struct {
	NodeKind  string `json:"node_kind"`
	NodeLabel string `json:"node_label"`
	EdgeKind  string `json:"edge_kind,omitempty"`
	NodeKey   int64  `json:"node_key"`
}

// MechanisticPath is a ranked path through the knowledge graph from a drug
// towards an adverse event or condition.
type MechanisticPath struct {
	Steps         []PathStep `json:"steps"`
	Score         float64    `json:"score"`
	EvidenceCount int        `json:"evidence_count"`
	ClaimKeys     []int64    `json:"claim_keys"`
	Datasets      []string   `json:"datasets,omitempty"`
}

// stepKey is the dedup key: the ordered node sequence.
func (p MechanisticPath) stepKey() string {
	parts := make([]string, 0, len(p.Steps))
	for _, s := range p.Steps {
		parts = append(parts, fmt.Sprintf("%s:%d", s.NodeKind, s.NodeKey))
	}
	return strings.Join(parts, "|")
}

// String renders the path as "Drug:aspirin --[TARGETS]--> Gene:PTGS2".
func (p MechanisticPath) String() string {
	var b strings.Builder
	for i, s := range p.Steps {
		if i > 0 && s.EdgeKind != "" {
			fmt.Fprintf(&b, " --[%s]--> ", s.EdgeKind)
		}
		fmt.Fprintf(&b, "%s:%s", s.NodeKind, s.NodeLabel)
	}
	return b.String()
}

// Hops returns the hop count of the path.
func (p MechanisticPath) Hops() int {
	if len(p.Steps) == 0 {
		return 0
	}
	return len(p.Steps) - 1
}

type pathCandidate struct {
	steps    []PathStep
	strength *float64
	claims   []int64
	datasets []string
}

// FindDrugToAEPaths enumerates candidate mechanistic paths of three shapes:
// direct Drug→AE (when ae_key is given), Drug→Gene→Pathway and
// Drug→Gene→Disease. Paths are deduplicated by node sequence, scored by the
// scoring policy and returned in stable rank order.
func (l *Library) FindDrugToAEPaths(ctx context.Context, drugKey int64, aeKey *int64, maxPaths int) ([]MechanisticPath, error) {
	if maxPaths <= 0 {
		maxPaths = 10
	}

	var candidates []pathCandidate

	if aeKey != nil {
		rows, err := l.store.DrugDirectAEPaths(ctx, drugKey, *aeKey)
		if err != nil {
			return nil, upstream(err)
		}
		for _, r := range rows {
			candidates = append(candidates, pathCandidate{
				steps: []PathStep{
					{NodeKind: "Drug", NodeLabel: r.DrugName, NodeKey: r.DrugKey},
					{NodeKind: "AdverseEvent", NodeLabel: r.AELabel, EdgeKind: "CAUSES", NodeKey: r.AEKey},
				},
				strength: r.Frequency,
				claims:   []int64{r.ClaimKey},
				datasets: datasetList(r.DatasetKey),
			})
		}
	}

	pathwayRows, err := l.store.DrugGenePathwayPaths(ctx, drugKey, maxPaths)
	if err != nil {
		return nil, upstream(err)
	}
	for _, r := range pathwayRows {
		candidates = append(candidates, pathCandidate{
			steps: []PathStep{
				{NodeKind: "Drug", NodeLabel: r.DrugName, NodeKey: r.DrugKey},
				{NodeKind: "Gene", NodeLabel: r.GeneSymbol, EdgeKind: "TARGETS", NodeKey: r.GeneKey},
				{NodeKind: "Pathway", NodeLabel: r.PathwayLabel, EdgeKind: "IN_PATHWAY", NodeKey: r.PathwayKey},
			},
			strength: r.TargetStrength,
			claims:   []int64{r.TargetClaimKey, r.MemberClaimKey},
			datasets: datasetList(r.TargetDataset, r.MemberDataset),
		})
	}

	diseaseRows, err := l.store.DrugGeneDiseasePaths(ctx, drugKey, maxPaths)
	if err != nil {
		return nil, upstream(err)
	}
	for _, r := range diseaseRows {
		candidates = append(candidates, pathCandidate{
			steps: []PathStep{
				{NodeKind: "Drug", NodeLabel: r.DrugName, NodeKey: r.DrugKey},
				{NodeKind: "Gene", NodeLabel: r.GeneSymbol, EdgeKind: "TARGETS", NodeKey: r.GeneKey},
				{NodeKind: "Disease", NodeLabel: r.DiseaseLabel, EdgeKind: "ASSOCIATED_WITH", NodeKey: r.DiseaseKey},
			},
			strength: r.AssocStrength,
			claims:   []int64{r.TargetClaimKey, r.AssocClaimKey},
			datasets: datasetList(r.TargetDataset, r.AssocDataset),
		})
	}

	// Fetch supporting evidence for all claims in one round trip; the
	// multi-source bonus needs distinct evidence counts per path.
	allClaims := make([]int64, 0, len(candidates)*2)
	seenClaims := make(map[int64]bool)
	for _, c := range candidates {
		for _, claimKey := range c.claims {
			if !seenClaims[claimKey] {
				seenClaims[claimKey] = true
				allClaims = append(allClaims, claimKey)
			}
		}
	}
	evidenceByClaim, err := l.store.ClaimEvidenceKeys(ctx, allClaims)
	if err != nil {
		return nil, upstream(err)
	}

	paths := make([]MechanisticPath, 0, len(candidates))
	seenPaths := make(map[string]bool)
	for _, c := range candidates {
		distinctEvidence := make(map[int64]bool)
		for _, claimKey := range c.claims {
			for _, ek := range evidenceByClaim[claimKey] {
				distinctEvidence[ek] = true
			}
		}

		path := MechanisticPath{
			Steps:         c.steps,
			EvidenceCount: len(distinctEvidence),
			ClaimKeys:     c.claims,
			Datasets:      c.datasets,
		}
		if seenPaths[path.stepKey()] {
			continue
		}
		seenPaths[path.stepKey()] = true

		path.Score = Clamp01(l.policy.ScorePath(c.strength, path.Hops(), len(distinctEvidence), c.datasets))
		paths = append(paths, path)
	}

	SortPathsStable(paths)
	if len(paths) > maxPaths {
		paths = paths[:maxPaths]
	}
	return paths, nil
}

// ExplainPaths ranks mechanistic explanations for a drug-AE relationship,
// boosting paths that traverse the caller's patient-condition diseases.
func (l *Library) ExplainPaths(ctx context.Context, drugKey int64, aeKey *int64, conditionKeys []int64, topK int) ([]MechanisticPath, error) {
	if topK <= 0 {
		topK = 5
	}

	paths, err := l.FindDrugToAEPaths(ctx, drugKey, aeKey, topK*2)
	if err != nil {
		return nil, err
	}

	if len(conditionKeys) > 0 {
		conditions := make(map[int64]bool, len(conditionKeys))
		for _, k := range conditionKeys {
			conditions[k] = true
		}
		for i := range paths {
			matched := make(map[int64]bool)
			for _, step := range paths[i].Steps {
				if step.NodeKind == "Disease" && conditions[step.NodeKey] {
					matched[step.NodeKey] = true
				}
			}
			if len(matched) > 0 {
				paths[i].Score = Clamp01(l.policy.BoostForConditions(paths[i].Score, len(matched)))
			}
		}
		SortPathsStable(paths)
	}

	if len(paths) > topK {
		paths = paths[:topK]
	}
	return paths, nil
}

// datasetList builds a sorted distinct dataset list from nullable keys.
func datasetList(keys ...*string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, k := range keys {
		if k == nil || *k == "" || seen[*k] {
			continue
		}
		seen[*k] = true
		out = append(out, *k)
	}
	sort.Strings(out)
	return out
}
