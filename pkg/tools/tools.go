package tools

import (
	"fmt"

	"github.com/pharmakg/sentinel/pkg/graph"
	"github.com/pharmakg/sentinel/pkg/llm"
)

// Name identifies a tool in the closed catalog. The dispatcher rejects any
// name outside this set before touching the graph store.
type Name string

const (
	// Resolution
	ResolveDrugs         Name = "resolve_drugs"
	ResolveGenes         Name = "resolve_genes"
	ResolveDiseases      Name = "resolve_diseases"
	ResolveAdverseEvents Name = "resolve_adverse_events"
	SearchDrugsSemantic  Name = "search_drugs_semantic"

	// Mechanism
	GetDrugTargets     Name = "get_drug_targets"
	GetGenePathways    Name = "get_gene_pathways"
	GetGeneDiseases    Name = "get_gene_diseases"
	GetDiseaseGenes    Name = "get_disease_genes"
	GetGeneInteractors Name = "get_gene_interactors"
	ExpandMechanism    Name = "expand_mechanism"
	ExpandGeneContext  Name = "expand_gene_context"

	// Adverse events
	GetDrugAdverseEvents Name = "get_drug_adverse_events"
	GetDrugLabelSections Name = "get_drug_label_sections"
	GetDrugFAERSSignals  Name = "get_drug_faers_signals"
	GetDrugProfile       Name = "get_drug_profile"

	// Provenance
	GetClaimEvidence Name = "get_claim_evidence"
	GetEntityClaims  Name = "get_entity_claims"

	// Paths
	FindDrugToAEPaths Name = "find_drug_to_ae_paths"
	ExplainPaths      Name = "explain_paths"

	// Subgraph
	BuildSubgraph Name = "build_subgraph"
	ScoreEdges    Name = "score_edges"
)

// ParamKind is the declared type of a tool parameter.
type ParamKind int

const (
	ParamString ParamKind = iota
	ParamInt
	ParamFloat
	ParamBool
	ParamStringList
	ParamIntList
)

// Param declares one tool parameter for dispatcher validation.
type Param struct {
	Name     string
	Kind     ParamKind
	Required bool
}

// Spec declares one tool: its name, a one-line description used in the
// planner's tool catalog text, and its parameters.
type Spec struct {
	Name        Name
	Description string
	Params      []Param
}

var catalog = []Spec{
	{ResolveDrugs, "Resolve drug names to graph keys. Returns null for unresolved names.",
		[]Param{{"names", ParamStringList, true}}},
	{ResolveGenes, "Resolve gene symbols to graph keys.",
		[]Param{{"symbols", ParamStringList, true}}},
	{ResolveDiseases, "Resolve disease terms to graph keys.",
		[]Param{{"terms", ParamStringList, true}}},
	{ResolveAdverseEvents, "Resolve adverse event terms to graph keys.",
		[]Param{{"terms", ParamStringList, true}}},
	{SearchDrugsSemantic, "Find drug candidates by semantic similarity when exact resolution fails.",
		[]Param{{"query", ParamString, true}, {"limit", ParamInt, false}}},

	{GetDrugTargets, "Get gene/protein targets for a drug.",
		[]Param{{"drug_key", ParamInt, true}}},
	{GetGenePathways, "Get pathways containing a gene.",
		[]Param{{"gene_key", ParamInt, true}}},
	{GetGeneDiseases, "Get disease associations for a gene, sorted by score.",
		[]Param{{"gene_key", ParamInt, true}, {"min_score", ParamFloat, false}}},
	{GetDiseaseGenes, "Get genes associated with a disease, optionally filtered by source dataset.",
		[]Param{{"disease_key", ParamInt, true}, {"sources", ParamStringList, false}, {"min_score", ParamFloat, false}, {"limit", ParamInt, false}}},
	{GetGeneInteractors, "Get gene-gene interaction partners.",
		[]Param{{"gene_key", ParamInt, true}, {"min_score", ParamFloat, false}, {"limit", ParamInt, false}}},
	{ExpandMechanism, "Full mechanism expansion for a drug: targets plus their pathways.",
		[]Param{{"drug_key", ParamInt, true}}},
	{ExpandGeneContext, "Per-gene pathways and disease associations for a set of genes.",
		[]Param{{"gene_keys", ParamIntList, true}, {"min_disease_score", ParamFloat, false}}},

	{GetDrugAdverseEvents, "Get known adverse events for a drug, sorted by frequency.",
		[]Param{{"drug_key", ParamInt, true}, {"min_frequency", ParamFloat, false}, {"limit", ParamInt, false}}},
	{GetDrugLabelSections, "Get FDA label sections for a drug (warnings, adverse_reactions, ...).",
		[]Param{{"drug_key", ParamInt, true}, {"sections", ParamStringList, false}}},
	{GetDrugFAERSSignals, "Get FAERS disproportionality signals (PRR, ROR, chi2, count) for a drug.",
		[]Param{{"drug_key", ParamInt, true}, {"top_k", ParamInt, false}, {"min_count", ParamInt, false}, {"min_prr", ParamFloat, false}}},
	{GetDrugProfile, "Complete drug profile: basic info, targets and top adverse events.",
		[]Param{{"drug_key", ParamInt, true}}},

	{GetClaimEvidence, "Get the full evidence trail for a claim.",
		[]Param{{"claim_key", ParamInt, true}}},
	{GetEntityClaims, "Get claims attached to an entity, optionally filtered by claim type.",
		[]Param{{"entity_kind", ParamString, true}, {"entity_key", ParamInt, true}, {"claim_types", ParamStringList, false}, {"limit", ParamInt, false}}},

	{FindDrugToAEPaths, "Find mechanistic paths from a drug towards adverse events.",
		[]Param{{"drug_key", ParamInt, true}, {"ae_key", ParamInt, false}, {"max_paths", ParamInt, false}}},
	{ExplainPaths, "Ranked mechanistic explanations with optional patient-condition boosting.",
		[]Param{{"drug_key", ParamInt, true}, {"ae_key", ParamInt, false}, {"condition_keys", ParamIntList, false}, {"top_k", ParamInt, false}}},

	{BuildSubgraph, "Assemble a bounded subgraph around the given drugs for visualization.",
		[]Param{{"drug_keys", ParamIntList, true}, {"include_targets", ParamBool, false}, {"include_pathways", ParamBool, false}, {"include_diseases", ParamBool, false}, {"include_aes", ParamBool, false}, {"max_pathways_per_gene", ParamInt, false}, {"max_diseases_per_gene", ParamInt, false}, {"max_aes_per_drug", ParamInt, false}, {"min_disease_score", ParamFloat, false}}},
	{ScoreEdges, "Re-weight the edges of the accumulated subgraph by edge-category trust.",
		nil},
}

// Catalog returns the closed tool catalog.
func Catalog() []Spec {
	return catalog
}

// Lookup returns the spec for a tool name, or false when the name is not in
// the catalog.
func Lookup(name Name) (Spec, bool) {
	for _, spec := range catalog {
		if spec.Name == name {
			return spec, true
		}
	}
	return Spec{}, false
}

// ErrorKind is the stable error category of a tool failure.
type ErrorKind string

const (
	ErrInvalidArgs ErrorKind = "tool.invalid_args"
	ErrUpstream    ErrorKind = "tool.upstream"
	ErrTimeout     ErrorKind = "tool.timeout"
)

// ToolError is the only error type a tool may return. Anything else escaping
// a tool is a programming error and propagates.
type ToolError struct {
	Kind    ErrorKind
	Message string
}

func (e *ToolError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func invalidArgs(format string, args ...any) *ToolError {
	return &ToolError{Kind: ErrInvalidArgs, Message: fmt.Sprintf(format, args...)}
}

func upstream(err error) *ToolError {
	return &ToolError{Kind: ErrUpstream, Message: err.Error()}
}

// Library is the tool implementation set. It is constructed once and shared
// read-only across concurrent queries.
type Library struct {
	store      graph.Store
	llm        *llm.Client
	embedModel string
	policy     ScoringPolicy
}

// NewLibrary builds the tool library. llmClient and embedModel may be zero
// when semantic drug search is not configured; the tool then reports an
// invalid_args failure.
func NewLibrary(store graph.Store, llmClient *llm.Client, embedModel string, policy ScoringPolicy) *Library {
	return &Library{
		store:      store,
		llm:        llmClient,
		embedModel: embedModel,
		policy:     policy,
	}
}

// Policy exposes the scoring policy for result assembly.
func (l *Library) Policy() ScoringPolicy {
	return l.policy
}
