package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PGStore implements Store on a pgx connection pool. All queries are fixed
// and parameterised; the pool size bounds the number of concurrent queries
// the engine can serve.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps an existing pool. Callers own the pool lifecycle.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// requiredTables lists every relation the query layer depends on. The probe
// refuses startup when any is missing.
var requiredTables = []string{
	"kg.drug",
	"kg.drug_synonym",
	"kg.gene",
	"kg.disease",
	"kg.pathway",
	"kg.adverse_event",
	"kg.claim",
	"kg.evidence",
	"kg.dataset",
	"kg.has_claim",
	"kg.claim_gene",
	"kg.claim_disease",
	"kg.claim_pathway",
	"kg.claim_adverse_event",
	"kg.supported_by",
}

// Probe verifies connectivity and the presence of every required table.
// A missing table returns ErrSchemaMismatch; transport failures return
// ErrUnavailable.
func (s *PGStore) Probe(ctx context.Context) error {
	for _, table := range requiredTables {
		var reg *string
		err := s.pool.QueryRow(ctx, "SELECT to_regclass($1)::text", table).Scan(&reg)
		if err != nil {
			return unavailable(err)
		}
		if reg == nil {
			return fmt.Errorf("%w: missing table %s", ErrSchemaMismatch, table)
		}
	}
	return nil
}

const drugColumns = "d.drug_key, d.preferred_name, d.drugcentral_id, d.chembl_id, d.pubchem_cid, d.inchi_key"

func scanDrugs(rows pgx.Rows) ([]DrugRow, error) {
	defer rows.Close()
	var out []DrugRow
	for rows.Next() {
		var d DrugRow
		if err := rows.Scan(&d.DrugKey, &d.PreferredName, &d.DrugCentralID, &d.ChemblID, &d.PubchemCID, &d.InchiKey); err != nil {
			return nil, unavailable(err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *PGStore) DrugsByName(ctx context.Context, nameLower string) ([]DrugRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+drugColumns+`
		FROM kg.drug d
		WHERE LOWER(d.preferred_name) = $1
		   OR EXISTS (
			SELECT 1 FROM kg.drug_synonym ds
			WHERE ds.drug_key = d.drug_key AND LOWER(ds.synonym) = $1
		   )
		ORDER BY d.drug_key`, nameLower)
	if err != nil {
		return nil, unavailable(err)
	}
	return scanDrugs(rows)
}

func (s *PGStore) DrugsByExternalID(ctx context.Context, id string) ([]DrugRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+drugColumns+`
		FROM kg.drug d
		WHERE d.drugcentral_id = $1
		   OR d.chembl_id = $1
		   OR d.pubchem_cid = $1
		   OR d.inchi_key = $1
		ORDER BY d.drug_key`, id)
	if err != nil {
		return nil, unavailable(err)
	}
	return scanDrugs(rows)
}

func (s *PGStore) DrugsByNamePattern(ctx context.Context, pattern string) ([]DrugRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+drugColumns+`
		FROM kg.drug d
		WHERE LOWER(d.preferred_name) LIKE $1
		ORDER BY LENGTH(d.preferred_name), d.drug_key
		LIMIT 25`, pattern)
	if err != nil {
		return nil, unavailable(err)
	}
	return scanDrugs(rows)
}

func (s *PGStore) DrugByKey(ctx context.Context, drugKey int64) (*DrugRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+drugColumns+`
		FROM kg.drug d
		WHERE d.drug_key = $1`, drugKey)
	if err != nil {
		return nil, unavailable(err)
	}
	drugs, err := scanDrugs(rows)
	if err != nil {
		return nil, err
	}
	if len(drugs) == 0 {
		return nil, nil
	}
	return &drugs[0], nil
}

func (s *PGStore) DrugsByEmbedding(ctx context.Context, embedding []float32, limit int) ([]DrugRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+drugColumns+`
		FROM kg.drug d
		WHERE d.embedding IS NOT NULL
		ORDER BY d.embedding <=> $1
		LIMIT $2`, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, unavailable(err)
	}
	return scanDrugs(rows)
}

func scanGenes(rows pgx.Rows) ([]GeneRow, error) {
	defer rows.Close()
	var out []GeneRow
	for rows.Next() {
		var g GeneRow
		if err := rows.Scan(&g.GeneKey, &g.Symbol, &g.HGNCID, &g.EnsemblID, &g.UniprotID); err != nil {
			return nil, unavailable(err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *PGStore) GenesBySymbol(ctx context.Context, symbolUpper string) ([]GeneRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT g.gene_key, g.symbol, g.hgnc_id, g.ensembl_id, g.uniprot_id
		FROM kg.gene g
		WHERE UPPER(g.symbol) = $1
		ORDER BY g.gene_key`, symbolUpper)
	if err != nil {
		return nil, unavailable(err)
	}
	return scanGenes(rows)
}

func (s *PGStore) GenesByHGNCID(ctx context.Context, hgncID string) ([]GeneRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT g.gene_key, g.symbol, g.hgnc_id, g.ensembl_id, g.uniprot_id
		FROM kg.gene g
		WHERE g.hgnc_id = $1
		ORDER BY g.gene_key`, hgncID)
	if err != nil {
		return nil, unavailable(err)
	}
	return scanGenes(rows)
}

func scanDiseases(rows pgx.Rows) ([]DiseaseRow, error) {
	defer rows.Close()
	var out []DiseaseRow
	for rows.Next() {
		var d DiseaseRow
		if err := rows.Scan(&d.DiseaseKey, &d.OntologyID, &d.Label); err != nil {
			return nil, unavailable(err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *PGStore) DiseasesByLabel(ctx context.Context, labelLower string) ([]DiseaseRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT dis.disease_key, dis.ontology_id, dis.label
		FROM kg.disease dis
		WHERE LOWER(dis.label) = $1
		ORDER BY dis.disease_key`, labelLower)
	if err != nil {
		return nil, unavailable(err)
	}
	return scanDiseases(rows)
}

func (s *PGStore) DiseasesByOntologyID(ctx context.Context, ontologyID string) ([]DiseaseRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT dis.disease_key, dis.ontology_id, dis.label
		FROM kg.disease dis
		WHERE dis.ontology_id = $1
		ORDER BY dis.disease_key`, ontologyID)
	if err != nil {
		return nil, unavailable(err)
	}
	return scanDiseases(rows)
}

func (s *PGStore) DiseasesByLabelPattern(ctx context.Context, pattern string) ([]DiseaseRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT dis.disease_key, dis.ontology_id, dis.label
		FROM kg.disease dis
		WHERE LOWER(dis.label) LIKE $1
		ORDER BY LENGTH(dis.label), dis.disease_key
		LIMIT 25`, pattern)
	if err != nil {
		return nil, unavailable(err)
	}
	return scanDiseases(rows)
}

func scanAdverseEvents(rows pgx.Rows) ([]AdverseEventRow, error) {
	defer rows.Close()
	var out []AdverseEventRow
	for rows.Next() {
		var a AdverseEventRow
		if err := rows.Scan(&a.AEKey, &a.Label, &a.Code); err != nil {
			return nil, unavailable(err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *PGStore) AdverseEventsByLabel(ctx context.Context, labelLower string) ([]AdverseEventRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ae.ae_key, ae.label, ae.code
		FROM kg.adverse_event ae
		WHERE LOWER(ae.label) = $1
		ORDER BY ae.ae_key`, labelLower)
	if err != nil {
		return nil, unavailable(err)
	}
	return scanAdverseEvents(rows)
}

func (s *PGStore) AdverseEventsByCode(ctx context.Context, code string) ([]AdverseEventRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ae.ae_key, ae.label, ae.code
		FROM kg.adverse_event ae
		WHERE ae.code = $1
		ORDER BY ae.ae_key`, code)
	if err != nil {
		return nil, unavailable(err)
	}
	return scanAdverseEvents(rows)
}

func (s *PGStore) AdverseEventsByLabelPattern(ctx context.Context, pattern string) ([]AdverseEventRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT ae.ae_key, ae.label, ae.code
		FROM kg.adverse_event ae
		WHERE LOWER(ae.label) LIKE $1
		ORDER BY LENGTH(ae.label), ae.ae_key
		LIMIT 25`, pattern)
	if err != nil {
		return nil, unavailable(err)
	}
	return scanAdverseEvents(rows)
}

func (s *PGStore) DrugTargets(ctx context.Context, drugKey int64) ([]DrugTargetRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT d.drug_key, d.preferred_name,
		       g.gene_key, g.symbol,
		       cg.relation, cg.effect,
		       c.claim_key, c.claim_type, c.strength_score, ds.dataset_key
		FROM kg.drug d
		JOIN kg.has_claim hc ON hc.entity_kind = 'Drug' AND hc.entity_key = d.drug_key
		JOIN kg.claim c ON c.claim_key = hc.claim_key
		JOIN kg.claim_gene cg ON cg.claim_key = c.claim_key
		JOIN kg.gene g ON g.gene_key = cg.gene_key
		LEFT JOIN kg.dataset ds ON ds.dataset_id = c.dataset_id
		WHERE d.drug_key = $1
		ORDER BY c.strength_score DESC NULLS LAST, g.gene_key`, drugKey)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()
	var out []DrugTargetRow
	for rows.Next() {
		var r DrugTargetRow
		if err := rows.Scan(&r.DrugKey, &r.DrugName, &r.GeneKey, &r.GeneSymbol,
			&r.Relation, &r.Effect, &r.ClaimKey, &r.ClaimType, &r.StrengthScore, &r.DatasetKey); err != nil {
			return nil, unavailable(err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *PGStore) GenePathways(ctx context.Context, geneKey int64) ([]GenePathwayRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT g.gene_key, g.symbol,
		       p.pathway_key, p.label, p.pathway_id,
		       c.claim_key, ds.dataset_key
		FROM kg.gene g
		JOIN kg.has_claim hc ON hc.entity_kind = 'Gene' AND hc.entity_key = g.gene_key
		JOIN kg.claim c ON c.claim_key = hc.claim_key
		JOIN kg.claim_pathway cp ON cp.claim_key = c.claim_key
		JOIN kg.pathway p ON p.pathway_key = cp.pathway_key
		LEFT JOIN kg.dataset ds ON ds.dataset_id = c.dataset_id
		WHERE g.gene_key = $1
		ORDER BY p.pathway_key`, geneKey)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()
	var out []GenePathwayRow
	for rows.Next() {
		var r GenePathwayRow
		if err := rows.Scan(&r.GeneKey, &r.GeneSymbol, &r.PathwayKey, &r.PathwayLabel,
			&r.PathwayID, &r.ClaimKey, &r.DatasetKey); err != nil {
			return nil, unavailable(err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func scanGeneDiseases(rows pgx.Rows) ([]GeneDiseaseRow, error) {
	defer rows.Close()
	var out []GeneDiseaseRow
	for rows.Next() {
		var r GeneDiseaseRow
		if err := rows.Scan(&r.GeneKey, &r.GeneSymbol, &r.DiseaseKey, &r.DiseaseLabel,
			&r.OntologyID, &r.Score, &r.ClaimKey, &r.DatasetKey); err != nil {
			return nil, unavailable(err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *PGStore) GeneDiseases(ctx context.Context, geneKey int64, minScore float64) ([]GeneDiseaseRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT g.gene_key, g.symbol,
		       dis.disease_key, dis.label, dis.ontology_id,
		       c.strength_score, c.claim_key, ds.dataset_key
		FROM kg.gene g
		JOIN kg.has_claim hc ON hc.entity_kind = 'Gene' AND hc.entity_key = g.gene_key
		JOIN kg.claim c ON c.claim_key = hc.claim_key
		JOIN kg.claim_disease cd ON cd.claim_key = c.claim_key
		JOIN kg.disease dis ON dis.disease_key = cd.disease_key
		LEFT JOIN kg.dataset ds ON ds.dataset_id = c.dataset_id
		WHERE g.gene_key = $1
		  AND (c.strength_score IS NULL OR c.strength_score >= $2)
		ORDER BY c.strength_score DESC NULLS LAST, dis.disease_key`, geneKey, minScore)
	if err != nil {
		return nil, unavailable(err)
	}
	return scanGeneDiseases(rows)
}

func (s *PGStore) DiseaseGenes(ctx context.Context, diseaseKey int64, sources []string, minScore float64, limit int) ([]GeneDiseaseRow, error) {
	query := `
		SELECT g.gene_key, g.symbol,
		       dis.disease_key, dis.label, dis.ontology_id,
		       c.strength_score, c.claim_key, ds.dataset_key
		FROM kg.disease dis
		JOIN kg.claim_disease cd ON cd.disease_key = dis.disease_key
		JOIN kg.claim c ON c.claim_key = cd.claim_key
		JOIN kg.has_claim hc ON hc.claim_key = c.claim_key AND hc.entity_kind = 'Gene'
		JOIN kg.gene g ON g.gene_key = hc.entity_key
		LEFT JOIN kg.dataset ds ON ds.dataset_id = c.dataset_id
		WHERE dis.disease_key = $1
		  AND (c.strength_score IS NULL OR c.strength_score >= $2)`
	args := []any{diseaseKey, minScore}
	if len(sources) > 0 {
		query += ` AND ds.dataset_key = ANY($3)
		ORDER BY c.strength_score DESC NULLS LAST, g.gene_key
		LIMIT $4`
		args = append(args, sources, limit)
	} else {
		query += `
		ORDER BY c.strength_score DESC NULLS LAST, g.gene_key
		LIMIT $3`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable(err)
	}
	return scanGeneDiseases(rows)
}

func (s *PGStore) GeneInteractors(ctx context.Context, geneKey int64, minScore float64, limit int) ([]GeneInteractorRow, error) {
	// A gene-gene claim carries two claim_gene edges; the partner is the
	// edge whose gene differs from the queried gene.
	rows, err := s.pool.Query(ctx, `
		SELECT g.gene_key, g.symbol,
		       partner.gene_key, partner.symbol,
		       c.strength_score, c.claim_key, ds.dataset_key
		FROM kg.gene g
		JOIN kg.claim_gene cg ON cg.gene_key = g.gene_key
		JOIN kg.claim c ON c.claim_key = cg.claim_key
		JOIN kg.claim_gene cg2 ON cg2.claim_key = c.claim_key AND cg2.gene_key <> g.gene_key
		JOIN kg.gene partner ON partner.gene_key = cg2.gene_key
		LEFT JOIN kg.dataset ds ON ds.dataset_id = c.dataset_id
		WHERE g.gene_key = $1
		  AND c.claim_type = 'GENE_GENE_STRING'
		  AND (c.strength_score IS NULL OR c.strength_score >= $2)
		ORDER BY c.strength_score DESC NULLS LAST, partner.gene_key
		LIMIT $3`, geneKey, minScore, limit)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()
	var out []GeneInteractorRow
	for rows.Next() {
		var r GeneInteractorRow
		if err := rows.Scan(&r.GeneKey, &r.GeneSymbol, &r.PartnerKey, &r.PartnerSymbol,
			&r.Score, &r.ClaimKey, &r.DatasetKey); err != nil {
			return nil, unavailable(err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func scanDrugAdverseEvents(rows pgx.Rows) ([]DrugAdverseEventRow, error) {
	defer rows.Close()
	var out []DrugAdverseEventRow
	for rows.Next() {
		var r DrugAdverseEventRow
		if err := rows.Scan(&r.DrugKey, &r.DrugName, &r.AEKey, &r.AELabel,
			&r.Frequency, &r.Relation, &r.ClaimKey, &r.DatasetKey); err != nil {
			return nil, unavailable(err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *PGStore) DrugAdverseEvents(ctx context.Context, drugKey int64, minFrequency *float64, limit int) ([]DrugAdverseEventRow, error) {
	query := `
		SELECT d.drug_key, d.preferred_name,
		       ae.ae_key, ae.label,
		       cae.frequency, cae.relation,
		       c.claim_key, ds.dataset_key
		FROM kg.drug d
		JOIN kg.has_claim hc ON hc.entity_kind = 'Drug' AND hc.entity_key = d.drug_key
		JOIN kg.claim c ON c.claim_key = hc.claim_key
		JOIN kg.claim_adverse_event cae ON cae.claim_key = c.claim_key
		JOIN kg.adverse_event ae ON ae.ae_key = cae.ae_key
		LEFT JOIN kg.dataset ds ON ds.dataset_id = c.dataset_id
		WHERE d.drug_key = $1
		  AND c.claim_type = 'DRUG_AE_LABEL'`
	args := []any{drugKey}
	if minFrequency != nil {
		query += ` AND (cae.frequency IS NULL OR cae.frequency >= $2)
		ORDER BY cae.frequency DESC NULLS LAST, ae.ae_key
		LIMIT $3`
		args = append(args, *minFrequency, limit)
	} else {
		query += `
		ORDER BY cae.frequency DESC NULLS LAST, ae.ae_key
		LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable(err)
	}
	return scanDrugAdverseEvents(rows)
}

func (s *PGStore) DrugLabelClaims(ctx context.Context, drugKey int64) ([]DrugLabelClaimRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT d.drug_key, d.preferred_name, c.claim_key, c.statement_json, e.payload_json
		FROM kg.drug d
		JOIN kg.has_claim hc ON hc.entity_kind = 'Drug' AND hc.entity_key = d.drug_key
		JOIN kg.claim c ON c.claim_key = hc.claim_key
		JOIN kg.supported_by sb ON sb.claim_key = c.claim_key
		JOIN kg.evidence e ON e.evidence_key = sb.evidence_key
		WHERE d.drug_key = $1
		  AND c.claim_type = 'DRUG_LABEL'
		  AND e.payload_json IS NOT NULL
		ORDER BY c.claim_key`, drugKey)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()
	var out []DrugLabelClaimRow
	for rows.Next() {
		var r DrugLabelClaimRow
		if err := rows.Scan(&r.DrugKey, &r.DrugName, &r.ClaimKey, &r.StatementJSON, &r.PayloadJSON); err != nil {
			return nil, unavailable(err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *PGStore) DrugFAERSClaims(ctx context.Context, drugKey int64, limit int) ([]FAERSClaimRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT d.drug_key, d.preferred_name,
		       ae.ae_key, ae.label,
		       c.claim_key, c.strength_score, c.statement_json
		FROM kg.drug d
		JOIN kg.has_claim hc ON hc.entity_kind = 'Drug' AND hc.entity_key = d.drug_key
		JOIN kg.claim c ON c.claim_key = hc.claim_key
		JOIN kg.claim_adverse_event cae ON cae.claim_key = c.claim_key
		JOIN kg.adverse_event ae ON ae.ae_key = cae.ae_key
		WHERE d.drug_key = $1
		  AND c.claim_type = 'DRUG_AE_FAERS'
		ORDER BY c.strength_score DESC NULLS LAST, ae.ae_key
		LIMIT $2`, drugKey, limit)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()
	var out []FAERSClaimRow
	for rows.Next() {
		var r FAERSClaimRow
		if err := rows.Scan(&r.DrugKey, &r.DrugName, &r.AEKey, &r.AELabel,
			&r.ClaimKey, &r.StrengthScore, &r.MetaJSON); err != nil {
			return nil, unavailable(err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *PGStore) ClaimByKey(ctx context.Context, claimKey int64) (*ClaimRow, error) {
	var c ClaimRow
	err := s.pool.QueryRow(ctx, `
		SELECT c.claim_key, c.claim_type, c.strength_score, c.polarity,
		       c.statement_json, c.source_record_id, ds.dataset_key
		FROM kg.claim c
		LEFT JOIN kg.dataset ds ON ds.dataset_id = c.dataset_id
		WHERE c.claim_key = $1`, claimKey).
		Scan(&c.ClaimKey, &c.ClaimType, &c.StrengthScore, &c.Polarity,
			&c.StatementJSON, &c.SourceRecord, &c.DatasetKey)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable(err)
	}
	return &c, nil
}

func (s *PGStore) ClaimEvidence(ctx context.Context, claimKey int64) ([]EvidenceRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT e.evidence_key, e.evidence_type, e.source_record_id, e.source_url,
		       e.payload_json, sb.support_strength, ds.dataset_key
		FROM kg.supported_by sb
		JOIN kg.evidence e ON e.evidence_key = sb.evidence_key
		LEFT JOIN kg.dataset ds ON ds.dataset_id = e.dataset_id
		WHERE sb.claim_key = $1
		ORDER BY e.evidence_key`, claimKey)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()
	var out []EvidenceRow
	for rows.Next() {
		var r EvidenceRow
		if err := rows.Scan(&r.EvidenceKey, &r.EvidenceType, &r.SourceRecordID, &r.SourceURL,
			&r.PayloadJSON, &r.SupportStrength, &r.DatasetKey); err != nil {
			return nil, unavailable(err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *PGStore) EntityClaims(ctx context.Context, entityKind string, entityKey int64, claimTypes []string, limit int) ([]ClaimRow, error) {
	query := `
		SELECT c.claim_key, c.claim_type, c.strength_score, c.polarity,
		       c.statement_json, c.source_record_id, ds.dataset_key
		FROM kg.has_claim hc
		JOIN kg.claim c ON c.claim_key = hc.claim_key
		LEFT JOIN kg.dataset ds ON ds.dataset_id = c.dataset_id
		WHERE hc.entity_kind = $1 AND hc.entity_key = $2`
	args := []any{entityKind, entityKey}
	if len(claimTypes) > 0 {
		query += ` AND c.claim_type = ANY($3)
		ORDER BY c.strength_score DESC NULLS LAST, c.claim_key
		LIMIT $4`
		args = append(args, claimTypes, limit)
	} else {
		query += `
		ORDER BY c.strength_score DESC NULLS LAST, c.claim_key
		LIMIT $3`
		args = append(args, limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()
	var out []ClaimRow
	for rows.Next() {
		var c ClaimRow
		if err := rows.Scan(&c.ClaimKey, &c.ClaimType, &c.StrengthScore, &c.Polarity,
			&c.StatementJSON, &c.SourceRecord, &c.DatasetKey); err != nil {
			return nil, unavailable(err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *PGStore) ClaimEvidenceKeys(ctx context.Context, claimKeys []int64) (map[int64][]int64, error) {
	if len(claimKeys) == 0 {
		return map[int64][]int64{}, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT sb.claim_key, sb.evidence_key
		FROM kg.supported_by sb
		WHERE sb.claim_key = ANY($1)
		ORDER BY sb.claim_key, sb.evidence_key`, claimKeys)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()
	out := make(map[int64][]int64)
	for rows.Next() {
		var claimKey, evidenceKey int64
		if err := rows.Scan(&claimKey, &evidenceKey); err != nil {
			return nil, unavailable(err)
		}
		out[claimKey] = append(out[claimKey], evidenceKey)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *PGStore) DrugDirectAEPaths(ctx context.Context, drugKey int64, aeKey int64) ([]DrugAdverseEventRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT d.drug_key, d.preferred_name,
		       ae.ae_key, ae.label,
		       cae.frequency, cae.relation,
		       c.claim_key, ds.dataset_key
		FROM kg.drug d
		JOIN kg.has_claim hc ON hc.entity_kind = 'Drug' AND hc.entity_key = d.drug_key
		JOIN kg.claim c ON c.claim_key = hc.claim_key
		JOIN kg.claim_adverse_event cae ON cae.claim_key = c.claim_key
		JOIN kg.adverse_event ae ON ae.ae_key = cae.ae_key
		LEFT JOIN kg.dataset ds ON ds.dataset_id = c.dataset_id
		WHERE d.drug_key = $1 AND ae.ae_key = $2
		ORDER BY c.claim_key`, drugKey, aeKey)
	if err != nil {
		return nil, unavailable(err)
	}
	return scanDrugAdverseEvents(rows)
}

func (s *PGStore) DrugGenePathwayPaths(ctx context.Context, drugKey int64, limit int) ([]DrugGenePathwayRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT d.drug_key, d.preferred_name,
		       g.gene_key, g.symbol,
		       p.pathway_key, p.label,
		       c1.claim_key, c1.strength_score, ds1.dataset_key,
		       c2.claim_key, ds2.dataset_key
		FROM kg.drug d
		JOIN kg.has_claim hc1 ON hc1.entity_kind = 'Drug' AND hc1.entity_key = d.drug_key
		JOIN kg.claim c1 ON c1.claim_key = hc1.claim_key
		JOIN kg.claim_gene cg ON cg.claim_key = c1.claim_key
		JOIN kg.gene g ON g.gene_key = cg.gene_key
		JOIN kg.has_claim hc2 ON hc2.entity_kind = 'Gene' AND hc2.entity_key = g.gene_key
		JOIN kg.claim c2 ON c2.claim_key = hc2.claim_key
		JOIN kg.claim_pathway cp ON cp.claim_key = c2.claim_key
		JOIN kg.pathway p ON p.pathway_key = cp.pathway_key
		LEFT JOIN kg.dataset ds1 ON ds1.dataset_id = c1.dataset_id
		LEFT JOIN kg.dataset ds2 ON ds2.dataset_id = c2.dataset_id
		WHERE d.drug_key = $1
		ORDER BY c1.strength_score DESC NULLS LAST, g.gene_key, p.pathway_key
		LIMIT $2`, drugKey, limit)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()
	var out []DrugGenePathwayRow
	for rows.Next() {
		var r DrugGenePathwayRow
		if err := rows.Scan(&r.DrugKey, &r.DrugName, &r.GeneKey, &r.GeneSymbol,
			&r.PathwayKey, &r.PathwayLabel,
			&r.TargetClaimKey, &r.TargetStrength, &r.TargetDataset,
			&r.MemberClaimKey, &r.MemberDataset); err != nil {
			return nil, unavailable(err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

func (s *PGStore) DrugGeneDiseasePaths(ctx context.Context, drugKey int64, limit int) ([]DrugGeneDiseaseRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT d.drug_key, d.preferred_name,
		       g.gene_key, g.symbol,
		       dis.disease_key, dis.label,
		       c1.claim_key, c1.strength_score, ds1.dataset_key,
		       c2.claim_key, c2.strength_score, ds2.dataset_key
		FROM kg.drug d
		JOIN kg.has_claim hc1 ON hc1.entity_kind = 'Drug' AND hc1.entity_key = d.drug_key
		JOIN kg.claim c1 ON c1.claim_key = hc1.claim_key
		JOIN kg.claim_gene cg ON cg.claim_key = c1.claim_key
		JOIN kg.gene g ON g.gene_key = cg.gene_key
		JOIN kg.has_claim hc2 ON hc2.entity_kind = 'Gene' AND hc2.entity_key = g.gene_key
		JOIN kg.claim c2 ON c2.claim_key = hc2.claim_key
		JOIN kg.claim_disease cd ON cd.claim_key = c2.claim_key
		JOIN kg.disease dis ON dis.disease_key = cd.disease_key
		LEFT JOIN kg.dataset ds1 ON ds1.dataset_id = c1.dataset_id
		LEFT JOIN kg.dataset ds2 ON ds2.dataset_id = c2.dataset_id
		WHERE d.drug_key = $1
		ORDER BY c2.strength_score DESC NULLS LAST, g.gene_key, dis.disease_key
		LIMIT $2`, drugKey, limit)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()
	var out []DrugGeneDiseaseRow
	for rows.Next() {
		var r DrugGeneDiseaseRow
		if err := rows.Scan(&r.DrugKey, &r.DrugName, &r.GeneKey, &r.GeneSymbol,
			&r.DiseaseKey, &r.DiseaseLabel,
			&r.TargetClaimKey, &r.TargetStrength, &r.TargetDataset,
			&r.AssocClaimKey, &r.AssocStrength, &r.AssocDataset); err != nil {
			return nil, unavailable(err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}

var _ Store = (*PGStore)(nil)

// NormalizePattern builds a LIKE pattern for substring resolution.
func NormalizePattern(term string) string {
	return "%" + strings.ToLower(strings.TrimSpace(term)) + "%"
}
