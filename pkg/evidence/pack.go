package evidence

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/pharmakg/sentinel/pkg/tools"
)

// EntityKind names a resolved-entity map in the pack.
type EntityKind string

const (
	KindDrug         EntityKind = "drug"
	KindGene         EntityKind = "gene"
	KindDisease      EntityKind = "disease"
	KindAdverseEvent EntityKind = "adverse_event"
)

// ToolLogEntry is the compact record of one tool call kept across all
// iterations of a query.
type ToolLogEntry struct {
	Tool    string         `json:"tool"`
	Args    map[string]any `json:"args"`
	Summary string         `json:"summary"`
	Error   string         `json:"error,omitempty"`
}

type entityMap struct {
	keys  map[string]int64 // normalized display name -> surrogate key
	order []string
}

func newEntityMap() *entityMap {
	return &entityMap{keys: make(map[string]int64)}
}

func (m *entityMap) add(name string, key int64) {
	if _, ok := m.keys[name]; ok {
		return
	}
	m.keys[name] = key
	m.order = append(m.order, name)
}

func (m *entityMap) snapshot() map[string]int64 {
	out := make(map[string]int64, len(m.keys))
	for k, v := range m.keys {
		out[k] = v
	}
	return out
}

// Pack is the per-query evidence accumulator. It is mutated only by the
// dispatcher of its own query and is never shared across queries, so it
// needs no locking.
type Pack struct {
	Query string

	drugs    *entityMap
	genes    *entityMap
	diseases *entityMap
	aes      *entityMap

	nodes     []tools.Node
	edges     []tools.Edge
	seenNodes map[string]bool
	seenEdges map[string]bool

	paths     []tools.MechanisticPath
	seenPaths map[string]bool

	claimIDs     map[int64]bool
	evidenceIDs  map[int64]bool
	datasetIDs   map[string]bool
	claimOrder   []int64
	evidenceSeq  []int64
	datasetOrder []string

	faersSignals  []tools.FAERSSignal
	frequencies   map[string]float64
	labelSections []tools.DrugLabelSection

	toolLog []ToolLogEntry
	errors  []string
}

// NewPack creates the accumulator for one query.
func NewPack(query string) *Pack {
	return &Pack{
		Query:       query,
		drugs:       newEntityMap(),
		genes:       newEntityMap(),
		diseases:    newEntityMap(),
		aes:         newEntityMap(),
		seenNodes:   make(map[string]bool),
		seenEdges:   make(map[string]bool),
		seenPaths:   make(map[string]bool),
		claimIDs:    make(map[int64]bool),
		evidenceIDs: make(map[int64]bool),
		datasetIDs:  make(map[string]bool),
		frequencies: make(map[string]float64),
	}
}

// NormalizeName canonicalizes a display name for the given kind the way the
// resolution tools do: genes are uppercased, everything else lowercased.
func NormalizeName(kind EntityKind, name string) string {
	name = strings.TrimSpace(name)
	if kind == KindGene {
		return strings.ToUpper(name)
	}
	return strings.ToLower(name)
}

func (p *Pack) entityMapFor(kind EntityKind) *entityMap {
	switch kind {
	case KindDrug:
		return p.drugs
	case KindGene:
		return p.genes
	case KindDisease:
		return p.diseases
	case KindAdverseEvent:
		return p.aes
	}
	return nil
}

// AddResolved records a resolved entity. Later resolutions of the same name
// never overwrite the first.
func (p *Pack) AddResolved(kind EntityKind, name string, key int64) {
	if m := p.entityMapFor(kind); m != nil {
		m.add(NormalizeName(kind, name), key)
	}
}

// Resolved returns the key a name resolved to earlier in this query.
func (p *Pack) Resolved(kind EntityKind, name string) (int64, bool) {
	m := p.entityMapFor(kind)
	if m == nil {
		return 0, false
	}
	key, ok := m.keys[NormalizeName(kind, name)]
	return key, ok
}

func (p *Pack) addClaim(claimKey int64) {
	if claimKey == 0 || p.claimIDs[claimKey] {
		return
	}
	p.claimIDs[claimKey] = true
	p.claimOrder = append(p.claimOrder, claimKey)
}

func (p *Pack) addEvidence(evidenceKey int64) {
	if evidenceKey == 0 || p.evidenceIDs[evidenceKey] {
		return
	}
	p.evidenceIDs[evidenceKey] = true
	p.evidenceSeq = append(p.evidenceSeq, evidenceKey)
}

func (p *Pack) addDataset(dataset *string) {
	if dataset == nil || *dataset == "" || p.datasetIDs[*dataset] {
		return
	}
	p.datasetIDs[*dataset] = true
	p.datasetOrder = append(p.datasetOrder, *dataset)
}

func (p *Pack) addNode(n tools.Node) {
	if p.seenNodes[n.ID] {
		return
	}
	p.seenNodes[n.ID] = true
	p.nodes = append(p.nodes, n)
}

func (p *Pack) addEdge(e tools.Edge) {
	key := e.Source + "|" + e.Target + "|" + e.Kind
	if p.seenEdges[key] {
		return
	}
	p.seenEdges[key] = true
	p.edges = append(p.edges, e)
	p.addClaim(e.ClaimKey)
}

// AddPath records a mechanistic path, deduplicated by step sequence, and
// routes its entities and provenance.
func (p *Pack) AddPath(path tools.MechanisticPath) {
	key := pathKey(path)
	if !p.seenPaths[key] {
		p.seenPaths[key] = true
		p.paths = append(p.paths, path)
	}
	for _, claimKey := range path.ClaimKeys {
		p.addClaim(claimKey)
	}
	for _, ds := range path.Datasets {
		d := ds
		p.addDataset(&d)
	}
	for _, step := range path.Steps {
		switch step.NodeKind {
		case "Drug":
			p.AddResolved(KindDrug, step.NodeLabel, step.NodeKey)
		case "Gene":
			p.AddResolved(KindGene, step.NodeLabel, step.NodeKey)
		case "Disease":
			p.AddResolved(KindDisease, step.NodeLabel, step.NodeKey)
		case "AdverseEvent":
			p.AddResolved(KindAdverseEvent, step.NodeLabel, step.NodeKey)
		}
	}
}

func pathKey(path tools.MechanisticPath) string {
	parts := make([]string, 0, len(path.Steps))
	for _, s := range path.Steps {
		parts = append(parts, fmt.Sprintf("%s:%d", s.NodeKind, s.NodeKey))
	}
	return strings.Join(parts, "|")
}

// Accumulate routes a raw tool return into the pack's categories.
func (p *Pack) Accumulate(tool string, result any) {
	switch v := result.(type) {
	case map[string]*tools.ResolvedEntity:
		p.accumulateResolved(tool, v)
	case []tools.DrugTarget:
		for _, t := range v {
			p.AddResolved(KindDrug, t.DrugName, t.DrugKey)
			p.AddResolved(KindGene, t.GeneSymbol, t.GeneKey)
			p.addClaim(t.ClaimKey)
			p.addDataset(t.Dataset)
		}
	case []tools.GenePathway:
		for _, pw := range v {
			p.AddResolved(KindGene, pw.GeneSymbol, pw.GeneKey)
			p.addClaim(pw.ClaimKey)
			p.addDataset(pw.Dataset)
		}
	case []tools.GeneDisease:
		for _, gd := range v {
			p.AddResolved(KindGene, gd.GeneSymbol, gd.GeneKey)
			p.AddResolved(KindDisease, gd.DiseaseLabel, gd.DiseaseKey)
			p.addClaim(gd.ClaimKey)
			p.addDataset(gd.Dataset)
		}
	case []tools.GeneInteractor:
		for _, gi := range v {
			p.AddResolved(KindGene, gi.GeneSymbol, gi.GeneKey)
			p.AddResolved(KindGene, gi.PartnerSymbol, gi.PartnerKey)
			p.addClaim(gi.ClaimKey)
			p.addDataset(gi.Dataset)
		}
	case *tools.Mechanism:
		if v != nil {
			p.Accumulate(tool, v.Targets)
			p.Accumulate(tool, v.Pathways)
		}
	case *tools.GeneContext:
		if v != nil {
			for _, pws := range v.Pathways {
				p.Accumulate(tool, pws)
			}
			for _, diseases := range v.Diseases {
				p.Accumulate(tool, diseases)
			}
		}
	case []tools.DrugAdverseEvent:
		for _, ae := range v {
			p.AddResolved(KindDrug, ae.DrugName, ae.DrugKey)
			p.AddResolved(KindAdverseEvent, ae.AELabel, ae.AEKey)
			p.addClaim(ae.ClaimKey)
			p.addDataset(ae.Dataset)
			if ae.Frequency != nil {
				p.frequencies[NormalizeName(KindAdverseEvent, ae.AELabel)] = *ae.Frequency
			}
		}
	case []tools.DrugLabelSection:
		for _, sec := range v {
			p.addClaim(sec.ClaimKey)
		}
		p.labelSections = append(p.labelSections, v...)
	case []tools.FAERSSignal:
		for _, sig := range v {
			p.AddResolved(KindDrug, sig.DrugName, sig.DrugKey)
			p.AddResolved(KindAdverseEvent, sig.AELabel, sig.AEKey)
			p.addClaim(sig.ClaimKey)
		}
		p.faersSignals = append(p.faersSignals, v...)
	case *tools.DrugProfile:
		if v != nil {
			if v.Drug != nil {
				p.AddResolved(KindDrug, v.Drug.PreferredName, v.Drug.DrugKey)
			}
			p.Accumulate(tool, v.Targets)
			p.Accumulate(tool, v.AdverseEvents)
		}
	case *tools.ClaimDetail:
		if v != nil {
			p.accumulateClaimDetail(*v)
		}
	case []tools.ClaimDetail:
		for _, cd := range v {
			p.accumulateClaimDetail(cd)
		}
	case []tools.MechanisticPath:
		for _, path := range v {
			p.AddPath(path)
		}
	case *tools.Subgraph:
		if v != nil {
			for _, n := range v.Nodes {
				p.addNode(n)
			}
			for _, e := range v.Edges {
				p.addEdge(e)
			}
		}
	}
}

func (p *Pack) accumulateResolved(tool string, resolved map[string]*tools.ResolvedEntity) {
	kind, ok := resolveKindForTool(tool)
	if !ok {
		return
	}
	for name, ent := range resolved {
		if ent == nil {
			continue
		}
		p.AddResolved(kind, name, ent.Key)
	}
}

func resolveKindForTool(tool string) (EntityKind, bool) {
	switch tool {
	case string(tools.ResolveDrugs):
		return KindDrug, true
	case string(tools.ResolveGenes):
		return KindGene, true
	case string(tools.ResolveDiseases):
		return KindDisease, true
	case string(tools.ResolveAdverseEvents):
		return KindAdverseEvent, true
	}
	return "", false
}

func (p *Pack) accumulateClaimDetail(cd tools.ClaimDetail) {
	p.addClaim(cd.ClaimKey)
	p.addDataset(cd.Dataset)
	for _, ev := range cd.Evidence {
		p.addEvidence(ev.EvidenceKey)
		p.addDataset(ev.Dataset)
	}
}

// LogToolCall appends a compact record of one tool execution.
func (p *Pack) LogToolCall(entry ToolLogEntry) {
	p.toolLog = append(p.toolLog, entry)
	if entry.Error != "" {
		p.errors = append(p.errors, entry.Tool+": "+entry.Error)
	}
}

// ToolLog returns the compact tool call log across all iterations.
func (p *Pack) ToolLog() []ToolLogEntry {
	return p.toolLog
}

// Paths returns accumulated mechanistic paths in rank order.
func (p *Pack) Paths() []tools.MechanisticPath {
	out := append([]tools.MechanisticPath{}, p.paths...)
	tools.SortPathsStable(out)
	return out
}

// Subgraph returns the accumulated subgraph fragments, or nil when no
// subgraph data was gathered.
func (p *Pack) Subgraph() *tools.Subgraph {
	if len(p.nodes) == 0 && len(p.edges) == 0 {
		return nil
	}
	return &tools.Subgraph{Nodes: p.nodes, Edges: p.edges}
}

// Summary is the provenance inventory returned with the final response.
type Summary struct {
	Drugs       map[string]int64 `json:"drugs"`
	Genes       map[string]int64 `json:"genes"`
	Diseases    map[string]int64 `json:"diseases"`
	AEs         map[string]int64 `json:"aes"`
	ClaimIDs    []int64          `json:"claim_ids"`
	EvidenceIDs []int64          `json:"evidence_ids"`
	DatasetIDs  []string         `json:"dataset_ids"`
}

// Summarize returns the provenance inventory with deterministic ordering.
func (p *Pack) Summarize() Summary {
	claims := append([]int64{}, p.claimOrder...)
	evidenceIDs := append([]int64{}, p.evidenceSeq...)
	datasets := append([]string{}, p.datasetOrder...)
	sort.Slice(claims, func(i, j int) bool { return claims[i] < claims[j] })
	sort.Slice(evidenceIDs, func(i, j int) bool { return evidenceIDs[i] < evidenceIDs[j] })
	sort.Strings(datasets)
	return Summary{
		Drugs:       p.drugs.snapshot(),
		Genes:       p.genes.snapshot(),
		Diseases:    p.diseases.snapshot(),
		AEs:         p.aes.snapshot(),
		ClaimIDs:    claims,
		EvidenceIDs: evidenceIDs,
		DatasetIDs:  datasets,
	}
}

// FormatResolvedEntities renders the resolved-entity maps for the planner
// prompt. These are carried verbatim across iterations.
func (p *Pack) FormatResolvedEntities() string {
	var lines []string
	appendKind := func(title, argName string, m *entityMap) {
		if len(m.order) == 0 {
			return
		}
		lines = append(lines, title+":")
		for _, name := range m.order {
			lines = append(lines, fmt.Sprintf("  %s -> %s=%d", name, argName, m.keys[name]))
		}
	}
	appendKind("Drugs", "drug_key", p.drugs)
	appendKind("Genes", "gene_key", p.genes)
	appendKind("Diseases", "disease_key", p.diseases)
	appendKind("Adverse Events", "ae_key", p.aes)
	if len(lines) == 0 {
		return "(No entities resolved yet)"
	}
	return strings.Join(lines, "\n")
}

// SummarizeForPrompt produces a bounded-length digest of the accumulated
// evidence for the narrator prompt.
func (p *Pack) SummarizeForPrompt(maxTokens int) string {
	var sections []string

	if resolved := p.FormatResolvedEntities(); resolved != "(No entities resolved yet)" {
		sections = append(sections, "## Resolved Entities\n"+resolved)
	}

	if paths := p.Paths(); len(paths) > 0 {
		var lines []string
		for i, path := range paths {
			if i >= 10 {
				lines = append(lines, fmt.Sprintf("... and %d more paths", len(paths)-10))
				break
			}
			lines = append(lines, fmt.Sprintf("%d. %s (score=%.3f, evidence=%d)", i+1, path.String(), path.Score, path.EvidenceCount))
		}
		sections = append(sections, "## Mechanistic Paths\n"+strings.Join(lines, "\n"))
	}

	if len(p.faersSignals) > 0 {
		var lines []string
		for i, sig := range p.faersSignals {
			if i >= 20 {
				lines = append(lines, fmt.Sprintf("... and %d more signals", len(p.faersSignals)-20))
				break
			}
			prr := "n/a"
			if sig.PRR != nil {
				prr = fmt.Sprintf("%.2f", *sig.PRR)
			}
			lines = append(lines, fmt.Sprintf("- %s: PRR=%s, count=%d", sig.AELabel, prr, sig.Count))
		}
		sections = append(sections, "## FAERS Signals\n"+strings.Join(lines, "\n"))
	}

	if len(p.labelSections) > 0 {
		var lines []string
		for i, sec := range p.labelSections {
			if i >= 5 {
				break
			}
			content := sec.Content
			if len(content) > 1000 {
				content = content[:1000]
			}
			lines = append(lines, fmt.Sprintf("### Label: %s\n%s", sec.SectionName, content))
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	if len(p.toolLog) > 0 {
		var lines []string
		for _, entry := range p.toolLog {
			status := "ok"
			if entry.Error != "" {
				status = "FAIL " + entry.Error
			}
			lines = append(lines, fmt.Sprintf("- %s: %s (%s)", entry.Tool, entry.Summary, status))
		}
		sections = append(sections, "## Tool Calls\n"+strings.Join(lines, "\n"))
	}

	summary := p.Summarize()
	sections = append(sections, fmt.Sprintf(
		"## Evidence Summary\n- Claims: %d\n- Evidence records: %d\n- Data sources: %s",
		len(summary.ClaimIDs), len(summary.EvidenceIDs), formatDatasets(summary.DatasetIDs)))

	if len(p.errors) > 0 {
		sections = append(sections, "## Errors\n- "+strings.Join(p.errors, "\n- "))
	}

	return truncateToTokens(strings.Join(sections, "\n\n"), maxTokens)
}

func formatDatasets(datasets []string) string {
	if len(datasets) == 0 {
		return "none"
	}
	return strings.Join(datasets, ", ")
}

// truncateToTokens bounds text to maxTokens using the o200k_base encoding,
// falling back to a 4-chars-per-token estimate when the encoding is not
// available.
func truncateToTokens(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return text
	}
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		limit := maxTokens * 4
		if len(text) > limit {
			return text[:limit]
		}
		return text
	}
	ids := enc.Encode(text, nil, nil)
	if len(ids) <= maxTokens {
		return text
	}
	return enc.Decode(ids[:maxTokens])
}
