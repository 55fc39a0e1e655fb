package tools

import (
	"context"
)

// DrugTarget is one drug→gene target assertion.
type DrugTarget struct {
	DrugName   string   `json:"drug_name"`
	GeneSymbol string   `json:"gene_symbol"`
	Relation   *string  `json:"relation,omitempty"`
	Effect     *string  `json:"effect,omitempty"`
	ClaimType  string   `json:"claim_type"`
	Dataset    *string  `json:"dataset,omitempty"`
	Strength   *float64 `json:"strength,omitempty"`
	DrugKey    int64    `json:"drug_key"`
	GeneKey    int64    `json:"gene_key"`
	ClaimKey   int64    `json:"claim_key"`
}

// GetDrugTargets returns all gene targets for a drug. A nonexistent key
// yields an empty result, not an error.
func (l *Library) GetDrugTargets(ctx context.Context, drugKey int64) ([]DrugTarget, error) {
	rows, err := l.store.DrugTargets(ctx, drugKey)
	if err != nil {
		return nil, upstream(err)
	}
	out := make([]DrugTarget, 0, len(rows))
	for _, r := range rows {
		out = append(out, DrugTarget{
			DrugName:   r.DrugName,
			GeneSymbol: r.GeneSymbol,
			Relation:   r.Relation,
			Effect:     r.Effect,
			ClaimType:  r.ClaimType,
			Dataset:    r.DatasetKey,
			Strength:   r.StrengthScore,
			DrugKey:    r.DrugKey,
			GeneKey:    r.GeneKey,
			ClaimKey:   r.ClaimKey,
		})
	}
	return out, nil
}

// GenePathway is one gene→pathway membership.
type GenePathway struct {
	GeneSymbol   string  `json:"gene_symbol"`
	PathwayLabel string  `json:"pathway_label"`
	PathwayID    *string `json:"pathway_id,omitempty"`
	Dataset      *string `json:"dataset,omitempty"`
	GeneKey      int64   `json:"gene_key"`
	PathwayKey   int64   `json:"pathway_key"`
	ClaimKey     int64   `json:"claim_key"`
}

// GetGenePathways returns all pathway memberships for a gene.
func (l *Library) GetGenePathways(ctx context.Context, geneKey int64) ([]GenePathway, error) {
	rows, err := l.store.GenePathways(ctx, geneKey)
	if err != nil {
		return nil, upstream(err)
	}
	out := make([]GenePathway, 0, len(rows))
	for _, r := range rows {
		out = append(out, GenePathway{
			GeneSymbol:   r.GeneSymbol,
			PathwayLabel: r.PathwayLabel,
			PathwayID:    r.PathwayID,
			Dataset:      r.DatasetKey,
			GeneKey:      r.GeneKey,
			PathwayKey:   r.PathwayKey,
			ClaimKey:     r.ClaimKey,
		})
	}
	return out, nil
}

// GeneDisease is one gene→disease association.
type GeneDisease struct {
	GeneSymbol   string   `json:"gene_symbol"`
	DiseaseLabel string   `json:"disease_label"`
	OntologyID   *string  `json:"ontology_id,omitempty"`
	Score        *float64 `json:"score,omitempty"`
	Dataset      *string  `json:"dataset,omitempty"`
	GeneKey      int64    `json:"gene_key"`
	DiseaseKey   int64    `json:"disease_key"`
	ClaimKey     int64    `json:"claim_key"`
}

// GetGeneDiseases returns disease associations for a gene, sorted by score
// descending. min_score filters associations with a known score below it.
func (l *Library) GetGeneDiseases(ctx context.Context, geneKey int64, minScore float64) ([]GeneDisease, error) {
	if minScore < 0 || minScore > 1 {
		return nil, invalidArgs("min_score must be within [0,1], got %v", minScore)
	}
	rows, err := l.store.GeneDiseases(ctx, geneKey, minScore)
	if err != nil {
		return nil, upstream(err)
	}
	out := make([]GeneDisease, 0, len(rows))
	for _, r := range rows {
		out = append(out, GeneDisease{
			GeneSymbol:   r.GeneSymbol,
			DiseaseLabel: r.DiseaseLabel,
			OntologyID:   r.OntologyID,
			Score:        r.Score,
			Dataset:      r.DatasetKey,
			GeneKey:      r.GeneKey,
			DiseaseKey:   r.DiseaseKey,
			ClaimKey:     r.ClaimKey,
		})
	}
	return out, nil
}

// GetDiseaseGenes returns genes associated with a disease, optionally
// filtered by source dataset keys.
func (l *Library) GetDiseaseGenes(ctx context.Context, diseaseKey int64, sources []string, minScore float64, limit int) ([]GeneDisease, error) {
	if minScore < 0 || minScore > 1 {
		return nil, invalidArgs("min_score must be within [0,1], got %v", minScore)
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.store.DiseaseGenes(ctx, diseaseKey, sources, minScore, limit)
	if err != nil {
		return nil, upstream(err)
	}
	out := make([]GeneDisease, 0, len(rows))
	for _, r := range rows {
		out = append(out, GeneDisease{
			GeneSymbol:   r.GeneSymbol,
			DiseaseLabel: r.DiseaseLabel,
			OntologyID:   r.OntologyID,
			Score:        r.Score,
			Dataset:      r.DatasetKey,
			GeneKey:      r.GeneKey,
			DiseaseKey:   r.DiseaseKey,
			ClaimKey:     r.ClaimKey,
		})
	}
	return out, nil
}

// GeneInteractor is one gene→gene interaction partner.
type GeneInteractor struct {
	GeneSymbol    string   `json:"gene_symbol"`
	PartnerSymbol string   `json:"partner_symbol"`
	Score         *float64 `json:"score,omitempty"`
	Dataset       *string  `json:"dataset,omitempty"`
	GeneKey       int64    `json:"gene_key"`
	PartnerKey    int64    `json:"partner_key"`
	ClaimKey      int64    `json:"claim_key"`
}

// GetGeneInteractors returns interaction partners for a gene.
func (l *Library) GetGeneInteractors(ctx context.Context, geneKey int64, minScore float64, limit int) ([]GeneInteractor, error) {
	if minScore < 0 || minScore > 1 {
		return nil, invalidArgs("min_score must be within [0,1], got %v", minScore)
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.store.GeneInteractors(ctx, geneKey, minScore, limit)
	if err != nil {
		return nil, upstream(err)
	}
	out := make([]GeneInteractor, 0, len(rows))
	for _, r := range rows {
		out = append(out, GeneInteractor{
			GeneSymbol:    r.GeneSymbol,
			PartnerSymbol: r.PartnerSymbol,
			Score:         r.Score,
			Dataset:       r.DatasetKey,
			GeneKey:       r.GeneKey,
			PartnerKey:    r.PartnerKey,
			ClaimKey:      r.ClaimKey,
		})
	}
	return out, nil
}

// Mechanism bundles a drug's targets with the union of their pathways.
type Mechanism struct {
	Targets  []DrugTarget  `json:"targets"`
	Pathways []GenePathway `json:"pathways"`
}

// ExpandMechanism expands a drug into its targets and their pathways,
// deduplicated by pathway key.
func (l *Library) ExpandMechanism(ctx context.Context, drugKey int64) (*Mechanism, error) {
	targets, err := l.GetDrugTargets(ctx, drugKey)
	if err != nil {
		return nil, err
	}

	seen := make(map[int64]bool)
	var pathways []GenePathway
	for _, t := range targets {
		pws, err := l.GetGenePathways(ctx, t.GeneKey)
		if err != nil {
			return nil, err
		}
		for _, pw := range pws {
			if !seen[pw.PathwayKey] {
				seen[pw.PathwayKey] = true
				pathways = append(pathways, pw)
			}
		}
	}

	return &Mechanism{Targets: targets, Pathways: pathways}, nil
}

// GeneContext holds per-gene pathway memberships and disease associations.
type GeneContext struct {
	Pathways map[int64][]GenePathway `json:"pathways"`
	Diseases map[int64][]GeneDisease `json:"diseases"`
}

// ExpandGeneContext expands context for a set of genes.
func (l *Library) ExpandGeneContext(ctx context.Context, geneKeys []int64, minDiseaseScore float64) (*GeneContext, error) {
	if len(geneKeys) == 0 {
		return nil, invalidArgs("gene_keys must be a non-empty list")
	}
	if minDiseaseScore < 0 || minDiseaseScore > 1 {
		return nil, invalidArgs("min_disease_score must be within [0,1], got %v", minDiseaseScore)
	}

	result := &GeneContext{
		Pathways: make(map[int64][]GenePathway, len(geneKeys)),
		Diseases: make(map[int64][]GeneDisease, len(geneKeys)),
	}
	for _, geneKey := range geneKeys {
		pathways, err := l.GetGenePathways(ctx, geneKey)
		if err != nil {
			return nil, err
		}
		diseases, err := l.GetGeneDiseases(ctx, geneKey, minDiseaseScore)
		if err != nil {
			return nil, err
		}
		result.Pathways[geneKey] = pathways
		result.Diseases[geneKey] = diseases
	}
	return result, nil
}
