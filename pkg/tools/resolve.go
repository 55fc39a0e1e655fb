package tools

import (
	"context"
	"strings"

	"github.com/pharmakg/sentinel/pkg/graph"
)

// ResolvedEntity is an immutable resolution result. Confidence reflects the
// matching attempt that produced it: 1.0 for exact name matches, 0.9 for
// external-id matches, 0.8 for drug name patterns, 0.7 for label patterns.
type ResolvedEntity struct {
	Name       string  `json:"name"`
	Key        int64   `json:"key"`
	Source     string  `json:"source"`
	Confidence float64 `json:"confidence"`
}

const (
	confExact      = 1.0
	confExternalID = 0.9
	confDrugPrefix = 0.8
	confSubstring  = 0.7
)

// candidate is the common shape resolution tie-breaking operates on.
type candidate struct {
	key   int64
	name  string
	xrefs int
}

// pickCandidate breaks ties between equal-confidence matches: richer
// cross-reference set first, then lower surrogate key.
func pickCandidate(cands []candidate) *candidate {
	if len(cands) == 0 {
		return nil
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.xrefs > best.xrefs || (c.xrefs == best.xrefs && c.key < best.key) {
			best = c
		}
	}
	return &best
}

func drugCandidates(rows []graph.DrugRow) []candidate {
	out := make([]candidate, 0, len(rows))
	for _, r := range rows {
		out = append(out, candidate{key: r.DrugKey, name: r.PreferredName, xrefs: r.XrefCount()})
	}
	return out
}

// ResolveDrugs resolves drug names to graph keys. Matching order: exact on
// preferred name or synonym, exact on external-id columns, then substring on
// preferred name. Unresolved names map to nil.
func (l *Library) ResolveDrugs(ctx context.Context, names []string) (map[string]*ResolvedEntity, error) {
	if len(names) == 0 {
		return nil, invalidArgs("names must be a non-empty list")
	}
	results := make(map[string]*ResolvedEntity, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			results[name] = nil
			continue
		}
		lower := strings.ToLower(trimmed)

		rows, err := l.store.DrugsByName(ctx, lower)
		if err != nil {
			return nil, upstream(err)
		}
		if best := pickCandidate(drugCandidates(rows)); best != nil {
			results[name] = &ResolvedEntity{Name: best.name, Key: best.key, Source: "preferred_name", Confidence: confExact}
			continue
		}

		rows, err = l.store.DrugsByExternalID(ctx, trimmed)
		if err != nil {
			return nil, upstream(err)
		}
		if best := pickCandidate(drugCandidates(rows)); best != nil {
			results[name] = &ResolvedEntity{Name: best.name, Key: best.key, Source: "external_id", Confidence: confExternalID}
			continue
		}

		rows, err = l.store.DrugsByNamePattern(ctx, graph.NormalizePattern(trimmed))
		if err != nil {
			return nil, upstream(err)
		}
		if best := pickCandidate(drugCandidates(rows)); best != nil {
			results[name] = &ResolvedEntity{Name: best.name, Key: best.key, Source: "preferred_name_partial", Confidence: confDrugPrefix}
			continue
		}

		results[name] = nil
	}
	return results, nil
}

// ResolveGenes resolves gene symbols to graph keys. Matching order:
// case-insensitive exact on symbol, then exact on the nomenclature id.
func (l *Library) ResolveGenes(ctx context.Context, symbols []string) (map[string]*ResolvedEntity, error) {
	if len(symbols) == 0 {
		return nil, invalidArgs("symbols must be a non-empty list")
	}
	results := make(map[string]*ResolvedEntity, len(symbols))
	for _, symbol := range symbols {
		trimmed := strings.TrimSpace(symbol)
		if trimmed == "" {
			results[symbol] = nil
			continue
		}

		rows, err := l.store.GenesBySymbol(ctx, strings.ToUpper(trimmed))
		if err != nil {
			return nil, upstream(err)
		}
		if best := pickCandidate(geneCandidates(rows)); best != nil {
			results[symbol] = &ResolvedEntity{Name: best.name, Key: best.key, Source: "symbol", Confidence: confExact}
			continue
		}

		rows, err = l.store.GenesByHGNCID(ctx, trimmed)
		if err != nil {
			return nil, upstream(err)
		}
		if best := pickCandidate(geneCandidates(rows)); best != nil {
			results[symbol] = &ResolvedEntity{Name: best.name, Key: best.key, Source: "hgnc_id", Confidence: confExternalID}
			continue
		}

		results[symbol] = nil
	}
	return results, nil
}

func geneCandidates(rows []graph.GeneRow) []candidate {
	out := make([]candidate, 0, len(rows))
	for _, r := range rows {
		out = append(out, candidate{key: r.GeneKey, name: r.Symbol, xrefs: r.XrefCount()})
	}
	return out
}

// ResolveDiseases resolves disease terms. Matching order: exact on label,
// exact on ontology id, then substring on label.
func (l *Library) ResolveDiseases(ctx context.Context, terms []string) (map[string]*ResolvedEntity, error) {
	if len(terms) == 0 {
		return nil, invalidArgs("terms must be a non-empty list")
	}
	results := make(map[string]*ResolvedEntity, len(terms))
	for _, term := range terms {
		trimmed := strings.TrimSpace(term)
		if trimmed == "" {
			results[term] = nil
			continue
		}
		lower := strings.ToLower(trimmed)

		rows, err := l.store.DiseasesByLabel(ctx, lower)
		if err != nil {
			return nil, upstream(err)
		}
		if best := pickCandidate(diseaseCandidates(rows)); best != nil {
			results[term] = &ResolvedEntity{Name: best.name, Key: best.key, Source: "label", Confidence: confExact}
			continue
		}

		rows, err = l.store.DiseasesByOntologyID(ctx, trimmed)
		if err != nil {
			return nil, upstream(err)
		}
		if best := pickCandidate(diseaseCandidates(rows)); best != nil {
			results[term] = &ResolvedEntity{Name: best.name, Key: best.key, Source: "ontology_id", Confidence: confExternalID}
			continue
		}

		rows, err = l.store.DiseasesByLabelPattern(ctx, graph.NormalizePattern(trimmed))
		if err != nil {
			return nil, upstream(err)
		}
		if best := pickCandidate(diseaseCandidates(rows)); best != nil {
			results[term] = &ResolvedEntity{Name: best.name, Key: best.key, Source: "label_partial", Confidence: confSubstring}
			continue
		}

		results[term] = nil
	}
	return results, nil
}

func diseaseCandidates(rows []graph.DiseaseRow) []candidate {
	out := make([]candidate, 0, len(rows))
	for _, r := range rows {
		out = append(out, candidate{key: r.DiseaseKey, name: r.Label, xrefs: r.XrefCount()})
	}
	return out
}

// ResolveAdverseEvents resolves adverse event terms. Matching order: exact
// on label, exact on ontology code, then substring on label.
func (l *Library) ResolveAdverseEvents(ctx context.Context, terms []string) (map[string]*ResolvedEntity, error) {
	if len(terms) == 0 {
		return nil, invalidArgs("terms must be a non-empty list")
	}
	results := make(map[string]*ResolvedEntity, len(terms))
	for _, term := range terms {
		trimmed := strings.TrimSpace(term)
		if trimmed == "" {
			results[term] = nil
			continue
		}
		lower := strings.ToLower(trimmed)

		rows, err := l.store.AdverseEventsByLabel(ctx, lower)
		if err != nil {
			return nil, upstream(err)
		}
		if best := pickCandidate(aeCandidates(rows)); best != nil {
			results[term] = &ResolvedEntity{Name: best.name, Key: best.key, Source: "label", Confidence: confExact}
			continue
		}

		rows, err = l.store.AdverseEventsByCode(ctx, trimmed)
		if err != nil {
			return nil, upstream(err)
		}
		if best := pickCandidate(aeCandidates(rows)); best != nil {
			results[term] = &ResolvedEntity{Name: best.name, Key: best.key, Source: "code", Confidence: confExternalID}
			continue
		}

		rows, err = l.store.AdverseEventsByLabelPattern(ctx, graph.NormalizePattern(trimmed))
		if err != nil {
			return nil, upstream(err)
		}
		if best := pickCandidate(aeCandidates(rows)); best != nil {
			results[term] = &ResolvedEntity{Name: best.name, Key: best.key, Source: "label_partial", Confidence: confSubstring}
			continue
		}

		results[term] = nil
	}
	return results, nil
}

func aeCandidates(rows []graph.AdverseEventRow) []candidate {
	out := make([]candidate, 0, len(rows))
	for _, r := range rows {
		out = append(out, candidate{key: r.AEKey, name: r.Label, xrefs: r.XrefCount()})
	}
	return out
}

// SearchDrugsSemantic finds drug candidates by embedding similarity. It is a
// fallback for when exact and substring resolution fail; candidates carry a
// reduced confidence and are never auto-substituted into later tool calls.
func (l *Library) SearchDrugsSemantic(ctx context.Context, query string, limit int) ([]ResolvedEntity, error) {
	if strings.TrimSpace(query) == "" {
		return nil, invalidArgs("query must be a non-empty string")
	}
	if l.llm == nil || l.embedModel == "" {
		return nil, invalidArgs("semantic search is not configured")
	}
	if limit <= 0 {
		limit = 10
	}

	embedding, err := l.llm.Embed(ctx, l.embedModel, query)
	if err != nil {
		return nil, upstream(err)
	}

	rows, err := l.store.DrugsByEmbedding(ctx, embedding, limit)
	if err != nil {
		return nil, upstream(err)
	}
	out := make([]ResolvedEntity, 0, len(rows))
	for _, r := range rows {
		out = append(out, ResolvedEntity{
			Name:       r.PreferredName,
			Key:        r.DrugKey,
			Source:     "embedding",
			Confidence: 0.6,
		})
	}
	return out, nil
}
