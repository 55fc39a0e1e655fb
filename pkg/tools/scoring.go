package tools

import "sort"

// ScoringPolicy composes claim-level strengths into path-level scores.
// All fields are set once at startup; the zero value is not usable, use
// DefaultScoringPolicy.
type ScoringPolicy struct {
	// NullStrength substitutes for claims whose source provides no native
	// confidence.
	NullStrength float64
	// LengthPenalty is the per-hop multiplicative decay.
	LengthPenalty float64
	// MultiSourceBonus applies when a path's claims cite more than one
	// distinct evidence record.
	MultiSourceBonus float64
	// ContextBoost applies once per distinct patient-condition disease a
	// path traverses.
	ContextBoost float64
	// SourceWeights are per-dataset trust multipliers, applied as the mean
	// over a path's datasets when UseSourceWeights is set and more than one
	// dataset contributes.
	SourceWeights    map[string]float64
	UseSourceWeights bool
}

// DefaultSourceWeights per dataset. Unlisted datasets weigh 0.75.
var DefaultSourceWeights = map[string]float64{
	"drugcentral": 1.00,
	"opentargets": 0.95,
	"chembl":      0.90,
	"reactome":    0.90,
	"gtop":        0.85,
	"clingen":     0.85,
	"sider":       0.80,
	"hpo":         0.70,
	"ctd":         0.70,
	"string":      0.60,
	"faers":       0.50,
	"openfda":     0.50,
}

const defaultSourceWeight = 0.75

// DefaultEdgeWeights are the edge-category weights used by score_edges.
var DefaultEdgeWeights = map[string]float64{
	"TARGETS":         1.0,
	"IN_PATHWAY":      0.9,
	"ASSOCIATED_WITH": 0.8,
	"CAUSES":          0.7,
}

const defaultEdgeWeight = 0.5

// DefaultScoringPolicy returns the standard policy. overrides, if
// non-nil, are merged over the default source weights.
func DefaultScoringPolicy(useSourceWeights bool, overrides map[string]float64) ScoringPolicy {
	weights := make(map[string]float64, len(DefaultSourceWeights))
	for k, v := range DefaultSourceWeights {
		weights[k] = v
	}
	for k, v := range overrides {
		weights[k] = v
	}
	return ScoringPolicy{
		NullStrength:     0.5,
		LengthPenalty:    0.95,
		MultiSourceBonus: 1.2,
		ContextBoost:     1.5,
		SourceWeights:    weights,
		UseSourceWeights: useSourceWeights,
	}
}

// Strength returns the base strength of a path's primary claim, substituting
// NullStrength for absent values.
func (p ScoringPolicy) Strength(strength *float64) float64 {
	if strength == nil {
		return p.NullStrength
	}
	return *strength
}

// ScorePath computes S = sigma * lambda^hops * mu for a path with the given
// primary claim strength, hop count, distinct supporting evidence count and
// contributing datasets. The result is not clamped; Clamp01 applies at the
// serialization boundary.
func (p ScoringPolicy) ScorePath(strength *float64, hops int, distinctEvidence int, datasets []string) float64 {
	score := p.Strength(strength)
	for i := 0; i < hops; i++ {
		score *= p.LengthPenalty
	}
	if distinctEvidence > 1 {
		score *= p.MultiSourceBonus
	}
	if p.UseSourceWeights && len(datasets) > 1 {
		score *= p.meanSourceWeight(datasets)
	}
	return score
}

// BoostForConditions applies the context boost once per distinct matching
// condition disease on the path.
func (p ScoringPolicy) BoostForConditions(score float64, matches int) float64 {
	for i := 0; i < matches; i++ {
		score *= p.ContextBoost
	}
	return score
}

func (p ScoringPolicy) meanSourceWeight(datasets []string) float64 {
	if len(datasets) == 0 {
		return 1.0
	}
	sum := 0.0
	for _, ds := range datasets {
		w, ok := p.SourceWeights[ds]
		if !ok {
			w = defaultSourceWeight
		}
		sum += w
	}
	return sum / float64(len(datasets))
}

// EdgeWeight returns the trust weight for an edge category.
func EdgeWeight(weights map[string]float64, edgeKind string) float64 {
	if weights == nil {
		weights = DefaultEdgeWeights
	}
	if w, ok := weights[edgeKind]; ok {
		return w
	}
	return defaultEdgeWeight
}

// Clamp01 clamps a score into [0,1]. Applied where scores are serialized
// for the LLM or the caller.
func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// SortPathsStable orders paths by score descending with deterministic
// tie-breaks: shorter paths first, then fewer distinct datasets, then the
// node-key sequence.
func SortPathsStable(paths []MechanisticPath) {
	sort.SliceStable(paths, func(i, j int) bool {
		a, b := paths[i], paths[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if len(a.Steps) != len(b.Steps) {
			return len(a.Steps) < len(b.Steps)
		}
		if len(a.Datasets) != len(b.Datasets) {
			return len(a.Datasets) < len(b.Datasets)
		}
		return a.stepKey() < b.stepKey()
	})
}
