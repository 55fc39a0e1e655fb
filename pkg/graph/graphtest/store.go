// Package graphtest provides an in-memory Store for tests. It counts every
// query so tests can assert that a code path performed zero store access.
package graphtest

import (
	"context"
	"sort"
	"strings"

	"github.com/pharmakg/sentinel/pkg/graph"
)

// FakeStore is a data-driven in-memory implementation of graph.Store.
type FakeStore struct {
	// QueryCount increments on every Store method call.
	QueryCount int
	// Err, when set, is returned by every method.
	Err error

	Drugs           []graph.DrugRow
	Synonyms        map[int64][]string
	Genes           []graph.GeneRow
	Diseases        []graph.DiseaseRow
	AdverseEvents   []graph.AdverseEventRow
	Targets         []graph.DrugTargetRow
	Pathways        []graph.GenePathwayRow
	GeneDiseaseRows []graph.GeneDiseaseRow
	Interactors     []graph.GeneInteractorRow
	DrugAEs         []graph.DrugAdverseEventRow
	LabelClaims     []graph.DrugLabelClaimRow
	FAERSClaims     []graph.FAERSClaimRow
	Claims          map[int64]graph.ClaimRow
	Evidence        map[int64][]graph.EvidenceRow
	PathwayPaths    []graph.DrugGenePathwayRow
	DiseasePaths    []graph.DrugGeneDiseaseRow
	EmbeddingHits   []graph.DrugRow
}

var _ graph.Store = (*FakeStore)(nil)

func (s *FakeStore) tick() error {
	s.QueryCount++
	return s.Err
}

func (s *FakeStore) DrugsByName(_ context.Context, nameLower string) ([]graph.DrugRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	var out []graph.DrugRow
	for _, d := range s.Drugs {
		if strings.ToLower(d.PreferredName) == nameLower {
			out = append(out, d)
			continue
		}
		for _, syn := range s.Synonyms[d.DrugKey] {
			if strings.ToLower(syn) == nameLower {
				out = append(out, d)
				break
			}
		}
	}
	return out, nil
}

func (s *FakeStore) DrugsByExternalID(_ context.Context, id string) ([]graph.DrugRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	var out []graph.DrugRow
	for _, d := range s.Drugs {
		for _, xref := range []*string{d.DrugCentralID, d.ChemblID, d.PubchemCID, d.InchiKey} {
			if xref != nil && *xref == id {
				out = append(out, d)
				break
			}
		}
	}
	return out, nil
}

func (s *FakeStore) DrugsByNamePattern(_ context.Context, pattern string) ([]graph.DrugRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	needle := strings.Trim(pattern, "%")
	var out []graph.DrugRow
	for _, d := range s.Drugs {
		if strings.Contains(strings.ToLower(d.PreferredName), needle) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *FakeStore) DrugByKey(_ context.Context, drugKey int64) (*graph.DrugRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	for _, d := range s.Drugs {
		if d.DrugKey == drugKey {
			row := d
			return &row, nil
		}
	}
	return nil, nil
}

func (s *FakeStore) DrugsByEmbedding(_ context.Context, _ []float32, limit int) ([]graph.DrugRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	out := s.EmbeddingHits
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *FakeStore) GenesBySymbol(_ context.Context, symbolUpper string) ([]graph.GeneRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	var out []graph.GeneRow
	for _, g := range s.Genes {
		if strings.ToUpper(g.Symbol) == symbolUpper {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *FakeStore) GenesByHGNCID(_ context.Context, hgncID string) ([]graph.GeneRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	var out []graph.GeneRow
	for _, g := range s.Genes {
		if g.HGNCID != nil && *g.HGNCID == hgncID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *FakeStore) DiseasesByLabel(_ context.Context, labelLower string) ([]graph.DiseaseRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	var out []graph.DiseaseRow
	for _, d := range s.Diseases {
		if strings.ToLower(d.Label) == labelLower {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *FakeStore) DiseasesByOntologyID(_ context.Context, ontologyID string) ([]graph.DiseaseRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	var out []graph.DiseaseRow
	for _, d := range s.Diseases {
		if d.OntologyID != nil && *d.OntologyID == ontologyID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *FakeStore) DiseasesByLabelPattern(_ context.Context, pattern string) ([]graph.DiseaseRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	needle := strings.Trim(pattern, "%")
	var out []graph.DiseaseRow
	for _, d := range s.Diseases {
		if strings.Contains(strings.ToLower(d.Label), needle) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *FakeStore) AdverseEventsByLabel(_ context.Context, labelLower string) ([]graph.AdverseEventRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	var out []graph.AdverseEventRow
	for _, a := range s.AdverseEvents {
		if strings.ToLower(a.Label) == labelLower {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *FakeStore) AdverseEventsByCode(_ context.Context, code string) ([]graph.AdverseEventRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	var out []graph.AdverseEventRow
	for _, a := range s.AdverseEvents {
		if a.Code != nil && *a.Code == code {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *FakeStore) AdverseEventsByLabelPattern(_ context.Context, pattern string) ([]graph.AdverseEventRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	needle := strings.Trim(pattern, "%")
	var out []graph.AdverseEventRow
	for _, a := range s.AdverseEvents {
		if strings.Contains(strings.ToLower(a.Label), needle) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *FakeStore) DrugTargets(_ context.Context, drugKey int64) ([]graph.DrugTargetRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	var out []graph.DrugTargetRow
	for _, t := range s.Targets {
		if t.DrugKey == drugKey {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *FakeStore) GenePathways(_ context.Context, geneKey int64) ([]graph.GenePathwayRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	var out []graph.GenePathwayRow
	for _, p := range s.Pathways {
		if p.GeneKey == geneKey {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *FakeStore) GeneDiseases(_ context.Context, geneKey int64, minScore float64) ([]graph.GeneDiseaseRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	var out []graph.GeneDiseaseRow
	for _, gd := range s.GeneDiseaseRows {
		if gd.GeneKey != geneKey {
			continue
		}
		if gd.Score != nil && *gd.Score < minScore {
			continue
		}
		out = append(out, gd)
	}
	return out, nil
}

func (s *FakeStore) DiseaseGenes(_ context.Context, diseaseKey int64, sources []string, minScore float64, limit int) ([]graph.GeneDiseaseRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	sourceSet := make(map[string]bool, len(sources))
	for _, src := range sources {
		sourceSet[src] = true
	}
	var out []graph.GeneDiseaseRow
	for _, gd := range s.GeneDiseaseRows {
		if gd.DiseaseKey != diseaseKey {
			continue
		}
		if gd.Score != nil && *gd.Score < minScore {
			continue
		}
		if len(sourceSet) > 0 && (gd.DatasetKey == nil || !sourceSet[*gd.DatasetKey]) {
			continue
		}
		out = append(out, gd)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *FakeStore) GeneInteractors(_ context.Context, geneKey int64, minScore float64, limit int) ([]graph.GeneInteractorRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	var out []graph.GeneInteractorRow
	for _, gi := range s.Interactors {
		if gi.GeneKey != geneKey {
			continue
		}
		if gi.Score != nil && *gi.Score < minScore {
			continue
		}
		out = append(out, gi)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *FakeStore) DrugAdverseEvents(_ context.Context, drugKey int64, minFrequency *float64, limit int) ([]graph.DrugAdverseEventRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	var out []graph.DrugAdverseEventRow
	for _, ae := range s.DrugAEs {
		if ae.DrugKey != drugKey {
			continue
		}
		if minFrequency != nil && ae.Frequency != nil && *ae.Frequency < *minFrequency {
			continue
		}
		out = append(out, ae)
	}
	sort.SliceStable(out, func(i, j int) bool {
		fi, fj := -1.0, -1.0
		if out[i].Frequency != nil {
			fi = *out[i].Frequency
		}
		if out[j].Frequency != nil {
			fj = *out[j].Frequency
		}
		if fi != fj {
			return fi > fj
		}
		return out[i].AEKey < out[j].AEKey
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *FakeStore) DrugLabelClaims(_ context.Context, drugKey int64) ([]graph.DrugLabelClaimRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	var out []graph.DrugLabelClaimRow
	for _, lc := range s.LabelClaims {
		if lc.DrugKey == drugKey {
			out = append(out, lc)
		}
	}
	return out, nil
}

func (s *FakeStore) DrugFAERSClaims(_ context.Context, drugKey int64, limit int) ([]graph.FAERSClaimRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	var out []graph.FAERSClaimRow
	for _, fc := range s.FAERSClaims {
		if fc.DrugKey == drugKey {
			out = append(out, fc)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *FakeStore) ClaimByKey(_ context.Context, claimKey int64) (*graph.ClaimRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	if claim, ok := s.Claims[claimKey]; ok {
		return &claim, nil
	}
	return nil, nil
}

func (s *FakeStore) ClaimEvidence(_ context.Context, claimKey int64) ([]graph.EvidenceRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	return s.Evidence[claimKey], nil
}

func (s *FakeStore) EntityClaims(_ context.Context, entityKind string, entityKey int64, claimTypes []string, limit int) ([]graph.ClaimRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	typeSet := make(map[string]bool, len(claimTypes))
	for _, t := range claimTypes {
		typeSet[t] = true
	}
	keys := make([]int64, 0, len(s.Claims))
	for key := range s.Claims {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	var out []graph.ClaimRow
	for _, key := range keys {
		claim := s.Claims[key]
		if len(typeSet) > 0 && !typeSet[claim.ClaimType] {
			continue
		}
		out = append(out, claim)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *FakeStore) ClaimEvidenceKeys(_ context.Context, claimKeys []int64) (map[int64][]int64, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	out := make(map[int64][]int64)
	for _, claimKey := range claimKeys {
		for _, ev := range s.Evidence[claimKey] {
			out[claimKey] = append(out[claimKey], ev.EvidenceKey)
		}
	}
	return out, nil
}

func (s *FakeStore) DrugDirectAEPaths(_ context.Context, drugKey int64, aeKey int64) ([]graph.DrugAdverseEventRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	var out []graph.DrugAdverseEventRow
	for _, ae := range s.DrugAEs {
		if ae.DrugKey == drugKey && ae.AEKey == aeKey {
			out = append(out, ae)
		}
	}
	return out, nil
}

func (s *FakeStore) DrugGenePathwayPaths(_ context.Context, drugKey int64, limit int) ([]graph.DrugGenePathwayRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	var out []graph.DrugGenePathwayRow
	for _, p := range s.PathwayPaths {
		if p.DrugKey == drugKey {
			out = append(out, p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *FakeStore) DrugGeneDiseasePaths(_ context.Context, drugKey int64, limit int) ([]graph.DrugGeneDiseaseRow, error) {
	if err := s.tick(); err != nil {
		return nil, err
	}
	var out []graph.DrugGeneDiseaseRow
	for _, p := range s.DiseasePaths {
		if p.DrugKey == drugKey {
			out = append(out, p)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Ptr returns a pointer to v; a convenience for seeding nullable columns.
func Ptr[T any](v T) *T {
	return &v
}
