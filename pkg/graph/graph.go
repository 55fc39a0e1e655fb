package graph

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable indicates the graph store could not be reached or a query
// failed at the transport level. Category string: graph.unavailable.
var ErrUnavailable = errors.New("graph.unavailable")

// ErrSchemaMismatch indicates a required table or column is absent. It is
// detected by the startup probe and is fatal. Category string:
// graph.schema_mismatch.
var ErrSchemaMismatch = errors.New("graph.schema_mismatch")

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// DrugRow is the drug identity record used for resolution and profiles.
type DrugRow struct {
	DrugKey       int64
	PreferredName string
	DrugCentralID *string
	ChemblID      *string
	PubchemCID    *string
	InchiKey      *string
}

// XrefCount returns the number of populated external cross-references.
// Resolution tie-breaks prefer records with richer cross-reference sets.
func (d DrugRow) XrefCount() int {
	n := 0
	for _, p := range []*string{d.DrugCentralID, d.ChemblID, d.PubchemCID, d.InchiKey} {
		if p != nil && *p != "" {
			n++
		}
	}
	return n
}

// GeneRow is the gene identity record.
type GeneRow struct {
	GeneKey   int64
	Symbol    string
	HGNCID    *string
	EnsemblID *string
	UniprotID *string
}

// XrefCount returns the number of populated external cross-references.
func (g GeneRow) XrefCount() int {
	n := 0
	for _, p := range []*string{g.HGNCID, g.EnsemblID, g.UniprotID} {
		if p != nil && *p != "" {
			n++
		}
	}
	return n
}

// DiseaseRow is the disease identity record.
type DiseaseRow struct {
	DiseaseKey int64
	OntologyID *string
	Label      string
}

// XrefCount returns 1 when the ontology id is populated.
func (d DiseaseRow) XrefCount() int {
	if d.OntologyID != nil && *d.OntologyID != "" {
		return 1
	}
	return 0
}

// AdverseEventRow is the adverse event identity record.
type AdverseEventRow struct {
	AEKey int64
	Label string
	Code  *string
}

// XrefCount returns 1 when the ontology code is populated.
func (a AdverseEventRow) XrefCount() int {
	if a.Code != nil && *a.Code != "" {
		return 1
	}
	return 0
}

// DrugTargetRow is one drug→gene target assertion with its backing claim.
type DrugTargetRow struct {
	DrugKey       int64
	DrugName      string
	GeneKey       int64
	GeneSymbol    string
	Relation      *string
	Effect        *string
	ClaimKey      int64
	ClaimType     string
	StrengthScore *float64
	DatasetKey    *string
}

// GenePathwayRow is one gene→pathway membership with its backing claim.
type GenePathwayRow struct {
	GeneKey      int64
	GeneSymbol   string
	PathwayKey   int64
	PathwayLabel string
	PathwayID    *string
	ClaimKey     int64
	DatasetKey   *string
}

// GeneDiseaseRow is one gene→disease association with its backing claim.
type GeneDiseaseRow struct {
	GeneKey      int64
	GeneSymbol   string
	DiseaseKey   int64
	DiseaseLabel string
	OntologyID   *string
	Score        *float64
	ClaimKey     int64
	DatasetKey   *string
}

// GeneInteractorRow is one gene→gene interaction with its backing claim.
type GeneInteractorRow struct {
	GeneKey       int64
	GeneSymbol    string
	PartnerKey    int64
	PartnerSymbol string
	Score         *float64
	ClaimKey      int64
	DatasetKey    *string
}

// DrugAdverseEventRow is one drug→adverse event assertion with its claim.
type DrugAdverseEventRow struct {
	DrugKey    int64
	DrugName   string
	AEKey      int64
	AELabel    string
	Frequency  *float64
	Relation   *string
	ClaimKey   int64
	DatasetKey *string
}

// DrugLabelClaimRow carries a DRUG_LABEL claim with its evidence payload.
type DrugLabelClaimRow struct {
	DrugKey       int64
	DrugName      string
	ClaimKey      int64
	StatementJSON []byte
	PayloadJSON   []byte
}

// FAERSClaimRow carries a DRUG_AE_FAERS claim with its metric payload.
type FAERSClaimRow struct {
	DrugKey       int64
	DrugName      string
	AEKey         int64
	AELabel       string
	ClaimKey      int64
	StrengthScore *float64
	MetaJSON      []byte
}

// ClaimRow is a claim with its dataset reference.
type ClaimRow struct {
	ClaimKey      int64
	ClaimType     string
	StrengthScore *float64
	Polarity      *int
	StatementJSON []byte
	SourceRecord  *string
	DatasetKey    *string
}

// EvidenceRow is a provenance record supporting a claim.
type EvidenceRow struct {
	EvidenceKey     int64
	EvidenceType    string
	SourceRecordID  *string
	SourceURL       *string
	PayloadJSON     []byte
	SupportStrength *float64
	DatasetKey      *string
}

// DrugGenePathwayRow is a two-hop drug→gene→pathway path with both claims.
type DrugGenePathwayRow struct {
	DrugKey        int64
	DrugName       string
	GeneKey        int64
	GeneSymbol     string
	PathwayKey     int64
	PathwayLabel   string
	TargetClaimKey int64
	TargetStrength *float64
	TargetDataset  *string
	MemberClaimKey int64
	MemberDataset  *string
}

// DrugGeneDiseaseRow is a two-hop drug→gene→disease path with both claims.
type DrugGeneDiseaseRow struct {
	DrugKey        int64
	DrugName       string
	GeneKey        int64
	GeneSymbol     string
	DiseaseKey     int64
	DiseaseLabel   string
	TargetClaimKey int64
	TargetStrength *float64
	TargetDataset  *string
	AssocClaimKey  int64
	AssocStrength  *float64
	AssocDataset   *string
}

// Store is the read-only query surface of the graph store. Every method maps
// to a fixed parameterised query; implementations must not expose writes.
type Store interface {
	// Resolution lookups.
	DrugsByName(ctx context.Context, nameLower string) ([]DrugRow, error)
	DrugsByExternalID(ctx context.Context, id string) ([]DrugRow, error)
	DrugsByNamePattern(ctx context.Context, pattern string) ([]DrugRow, error)
	DrugByKey(ctx context.Context, drugKey int64) (*DrugRow, error)
	DrugsByEmbedding(ctx context.Context, embedding []float32, limit int) ([]DrugRow, error)

	GenesBySymbol(ctx context.Context, symbolUpper string) ([]GeneRow, error)
	GenesByHGNCID(ctx context.Context, hgncID string) ([]GeneRow, error)

	DiseasesByLabel(ctx context.Context, labelLower string) ([]DiseaseRow, error)
	DiseasesByOntologyID(ctx context.Context, ontologyID string) ([]DiseaseRow, error)
	DiseasesByLabelPattern(ctx context.Context, pattern string) ([]DiseaseRow, error)

	AdverseEventsByLabel(ctx context.Context, labelLower string) ([]AdverseEventRow, error)
	AdverseEventsByCode(ctx context.Context, code string) ([]AdverseEventRow, error)
	AdverseEventsByLabelPattern(ctx context.Context, pattern string) ([]AdverseEventRow, error)

	// Mechanism traversal.
	DrugTargets(ctx context.Context, drugKey int64) ([]DrugTargetRow, error)
	GenePathways(ctx context.Context, geneKey int64) ([]GenePathwayRow, error)
	GeneDiseases(ctx context.Context, geneKey int64, minScore float64) ([]GeneDiseaseRow, error)
	DiseaseGenes(ctx context.Context, diseaseKey int64, sources []string, minScore float64, limit int) ([]GeneDiseaseRow, error)
	GeneInteractors(ctx context.Context, geneKey int64, minScore float64, limit int) ([]GeneInteractorRow, error)

	// Adverse events.
	DrugAdverseEvents(ctx context.Context, drugKey int64, minFrequency *float64, limit int) ([]DrugAdverseEventRow, error)
	DrugLabelClaims(ctx context.Context, drugKey int64) ([]DrugLabelClaimRow, error)
	DrugFAERSClaims(ctx context.Context, drugKey int64, limit int) ([]FAERSClaimRow, error)

	// Provenance.
	ClaimByKey(ctx context.Context, claimKey int64) (*ClaimRow, error)
	ClaimEvidence(ctx context.Context, claimKey int64) ([]EvidenceRow, error)
	EntityClaims(ctx context.Context, entityKind string, entityKey int64, claimTypes []string, limit int) ([]ClaimRow, error)
	ClaimEvidenceKeys(ctx context.Context, claimKeys []int64) (map[int64][]int64, error)

	// Path shapes.
	DrugDirectAEPaths(ctx context.Context, drugKey int64, aeKey int64) ([]DrugAdverseEventRow, error)
	DrugGenePathwayPaths(ctx context.Context, drugKey int64, limit int) ([]DrugGenePathwayRow, error)
	DrugGeneDiseasePaths(ctx context.Context, drugKey int64, limit int) ([]DrugGeneDiseaseRow, error)
}
