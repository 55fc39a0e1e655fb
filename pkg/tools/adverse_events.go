package tools

import (
	"context"
	"encoding/json"
	"sort"
)

// DrugAdverseEvent is one drug→adverse event association from label data.
type DrugAdverseEvent struct {
	AELabel   string   `json:"ae_label"`
	DrugName  string   `json:"drug_name"`
	Frequency *float64 `json:"frequency,omitempty"`
	Relation  *string  `json:"relation,omitempty"`
	Dataset   *string  `json:"dataset,omitempty"`
	AEKey     int64    `json:"ae_key"`
	DrugKey   int64    `json:"drug_key"`
	ClaimKey  int64    `json:"claim_key"`
}

// GetDrugAdverseEvents returns adverse events for a drug sorted by frequency
// descending. minFrequency of nil returns all.
func (l *Library) GetDrugAdverseEvents(ctx context.Context, drugKey int64, minFrequency *float64, limit int) ([]DrugAdverseEvent, error) {
	if minFrequency != nil && (*minFrequency < 0 || *minFrequency > 1) {
		return nil, invalidArgs("min_frequency must be within [0,1], got %v", *minFrequency)
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := l.store.DrugAdverseEvents(ctx, drugKey, minFrequency, limit)
	if err != nil {
		return nil, upstream(err)
	}
	out := make([]DrugAdverseEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, DrugAdverseEvent{
			AELabel:   r.AELabel,
			DrugName:  r.DrugName,
			Frequency: r.Frequency,
			Relation:  r.Relation,
			Dataset:   r.DatasetKey,
			AEKey:     r.AEKey,
			DrugKey:   r.DrugKey,
			ClaimKey:  r.ClaimKey,
		})
	}
	return out, nil
}

// maxLabelSectionBytes bounds each label section's content.
const maxLabelSectionBytes = 10 * 1024

// DrugLabelSection is one section of an FDA drug label.
type DrugLabelSection struct {
	SectionName   string  `json:"section_name"`
	DrugName      string  `json:"drug_name"`
	Content       string  `json:"content"`
	Truncated     bool    `json:"truncated,omitempty"`
	EffectiveDate *string `json:"effective_date,omitempty"`
	BrandName     *string `json:"brand_name,omitempty"`
	DrugKey       int64   `json:"drug_key"`
	ClaimKey      int64   `json:"claim_key"`
}

// GetDrugLabelSections returns label sections for a drug. sections filters by
// section name; nil returns all available sections.
func (l *Library) GetDrugLabelSections(ctx context.Context, drugKey int64, sections []string) ([]DrugLabelSection, error) {
	rows, err := l.store.DrugLabelClaims(ctx, drugKey)
	if err != nil {
		return nil, upstream(err)
	}

	wanted := make(map[string]bool, len(sections))
	for _, s := range sections {
		wanted[s] = true
	}

	var out []DrugLabelSection
	for _, row := range rows {
		var statement struct {
			EffectiveDate *string `json:"effective_date"`
			BrandName     *string `json:"brand_name"`
		}
		if len(row.StatementJSON) > 0 {
			// Statement metadata is best-effort; a malformed statement
			// still yields the section content.
			_ = json.Unmarshal(row.StatementJSON, &statement)
		}

		var payload map[string]string
		if err := json.Unmarshal(row.PayloadJSON, &payload); err != nil {
			continue
		}

		names := make([]string, 0, len(payload))
		for name := range payload {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			if len(wanted) > 0 && !wanted[name] {
				continue
			}
			content := payload[name]
			truncated := false
			if len(content) > maxLabelSectionBytes {
				content = content[:maxLabelSectionBytes]
				truncated = true
			}
			out = append(out, DrugLabelSection{
				SectionName:   name,
				DrugName:      row.DrugName,
				Content:       content,
				Truncated:     truncated,
				EffectiveDate: statement.EffectiveDate,
				BrandName:     statement.BrandName,
				DrugKey:       row.DrugKey,
				ClaimKey:      row.ClaimKey,
			})
		}
	}
	return out, nil
}

// FAERSSignal is a disproportionality signal for one drug-AE pair.
type FAERSSignal struct {
	AELabel  string   `json:"ae_label"`
	DrugName string   `json:"drug_name"`
	PRR      *float64 `json:"prr,omitempty"`
	ROR      *float64 `json:"ror,omitempty"`
	Chi2     *float64 `json:"chi2,omitempty"`
	Count    int      `json:"count"`
	AEKey    int64    `json:"ae_key"`
	DrugKey  int64    `json:"drug_key"`
	ClaimKey int64    `json:"claim_key"`
}

// GetDrugFAERSSignals returns FAERS signals for a drug sorted by PRR
// descending. minPRR of nil disables the PRR filter.
func (l *Library) GetDrugFAERSSignals(ctx context.Context, drugKey int64, topK int, minCount int, minPRR *float64) ([]FAERSSignal, error) {
	if topK <= 0 {
		topK = 200
	}
	if minCount < 0 {
		return nil, invalidArgs("min_count must be >= 0, got %d", minCount)
	}
	rows, err := l.store.DrugFAERSClaims(ctx, drugKey, topK)
	if err != nil {
		return nil, upstream(err)
	}

	out := make([]FAERSSignal, 0, len(rows))
	for _, row := range rows {
		var meta struct {
			PRR   *float64 `json:"prr"`
			ROR   *float64 `json:"ror"`
			Chi2  *float64 `json:"chi2"`
			Count int      `json:"count"`
		}
		if len(row.MetaJSON) > 0 {
			_ = json.Unmarshal(row.MetaJSON, &meta)
		}

		if meta.Count < minCount {
			continue
		}
		if minPRR != nil && (meta.PRR == nil || *meta.PRR < *minPRR) {
			continue
		}

		out = append(out, FAERSSignal{
			AELabel:  row.AELabel,
			DrugName: row.DrugName,
			PRR:      meta.PRR,
			ROR:      meta.ROR,
			Chi2:     meta.Chi2,
			Count:    meta.Count,
			AEKey:    row.AEKey,
			DrugKey:  row.DrugKey,
			ClaimKey: row.ClaimKey,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		pi, pj := 0.0, 0.0
		if out[i].PRR != nil {
			pi = *out[i].PRR
		}
		if out[j].PRR != nil {
			pj = *out[j].PRR
		}
		if pi != pj {
			return pi > pj
		}
		return out[i].AEKey < out[j].AEKey
	})
	return out, nil
}

// DrugInfo is the identity block of a drug profile.
type DrugInfo struct {
	PreferredName string  `json:"preferred_name"`
	DrugCentralID *string `json:"drugcentral_id,omitempty"`
	ChemblID      *string `json:"chembl_id,omitempty"`
	PubchemCID    *string `json:"pubchem_cid,omitempty"`
	InchiKey      *string `json:"inchi_key,omitempty"`
	DrugKey       int64   `json:"drug_key"`
}

// DrugProfile combines basic drug info with targets and top adverse events.
type DrugProfile struct {
	Drug          *DrugInfo          `json:"drug"`
	Targets       []DrugTarget       `json:"targets"`
	AdverseEvents []DrugAdverseEvent `json:"adverse_events"`
}

const profileAELimit = 20

// GetDrugProfile returns the complete profile for a drug: identity, targets
// and the top adverse events by frequency. A nonexistent key yields a
// profile with nil Drug.
func (l *Library) GetDrugProfile(ctx context.Context, drugKey int64) (*DrugProfile, error) {
	row, err := l.store.DrugByKey(ctx, drugKey)
	if err != nil {
		return nil, upstream(err)
	}
	if row == nil {
		return &DrugProfile{}, nil
	}

	targets, err := l.GetDrugTargets(ctx, drugKey)
	if err != nil {
		return nil, err
	}
	aes, err := l.GetDrugAdverseEvents(ctx, drugKey, nil, profileAELimit)
	if err != nil {
		return nil, err
	}

	return &DrugProfile{
		Drug: &DrugInfo{
			PreferredName: row.PreferredName,
			DrugCentralID: row.DrugCentralID,
			ChemblID:      row.ChemblID,
			PubchemCID:    row.PubchemCID,
			InchiKey:      row.InchiKey,
			DrugKey:       row.DrugKey,
		},
		Targets:       targets,
		AdverseEvents: aes,
	}, nil
}
