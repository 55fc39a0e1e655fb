package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pharmakg/sentinel/pkg/evidence"
	"github.com/pharmakg/sentinel/pkg/logger"
	"github.com/pharmakg/sentinel/pkg/tools"
)

// UnknownToolKind is the error category for tool names outside the catalog.
const UnknownToolKind = "dispatch.unknown_tool"

// ToolCallRequest is a single validated-on-arrival tool call produced by the
// planner.
type ToolCallRequest struct {
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args"`
	Reason string         `json:"reason,omitempty"`
}

// ToolResult is the outcome of one tool call. Shaped is the truncated view
// delivered to the observer; Payload is the full in-process result retained
// for final-response assembly.
type ToolResult struct {
	Tool          string         `json:"tool"`
	Args          map[string]any `json:"args"`
	OK            bool           `json:"ok"`
	ErrorKind     string         `json:"error_kind,omitempty"`
	Error         string         `json:"error,omitempty"`
	Shaped        any            `json:"result,omitempty"`
	Truncated     bool           `json:"truncated,omitempty"`
	OriginalCount int            `json:"original_count,omitempty"`
	Summary       string         `json:"summary"`
	Payload       any            `json:"-"`
}

// Dispatcher validates and executes tool plans against the library. It is
// stateless and shared across queries; per-query state lives in the
// evidence pack passed to Dispatch.
type Dispatcher struct {
	lib     *tools.Library
	cap     int
	timeout time.Duration
}

// New creates a dispatcher. cap bounds list items in shaped payloads;
// timeout bounds each tool call.
func New(lib *tools.Library, cap int, timeout time.Duration) *Dispatcher {
	if cap <= 0 {
		cap = 30
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Dispatcher{lib: lib, cap: cap, timeout: timeout}
}

// Dispatch executes the calls of one plan sequentially, in plan order, and
// returns one ToolResult per call. A failed call yields a synthetic error
// result and the plan continues; only programming errors abort the plan.
func (d *Dispatcher) Dispatch(ctx context.Context, plan []ToolCallRequest, pack *evidence.Pack) []ToolResult {
	results := make([]ToolResult, 0, len(plan))
	for _, call := range plan {
		// Cancellation is cooperative and checked before each call, never
		// mid-tool.
		if ctx.Err() != nil {
			break
		}
		result := d.dispatchOne(ctx, call, pack)
		pack.LogToolCall(evidence.ToolLogEntry{
			Tool:    result.Tool,
			Args:    result.Args,
			Summary: result.Summary,
			Error:   result.Error,
		})
		results = append(results, result)
	}
	return results
}

func (d *Dispatcher) dispatchOne(ctx context.Context, call ToolCallRequest, pack *evidence.Pack) ToolResult {
	spec, ok := tools.Lookup(tools.Name(call.Tool))
	if !ok {
		logger.Warn("rejected unknown tool", "tool", call.Tool)
		return ToolResult{
			Tool:      call.Tool,
			Args:      call.Args,
			ErrorKind: UnknownToolKind,
			Error:     fmt.Sprintf("unknown tool: %s", call.Tool),
			Summary:   "unknown tool",
		}
	}

	args, validationErr := coerceArgs(spec, call.Args)
	if validationErr != "" {
		return ToolResult{
			Tool:      call.Tool,
			Args:      call.Args,
			ErrorKind: string(tools.ErrInvalidArgs),
			Error:     validationErr,
			Summary:   "invalid arguments",
		}
	}

	logger.Debug("executing tool", "tool", call.Tool, "reason", call.Reason)

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	payload, err := d.execute(callCtx, spec.Name, args, pack)
	cancel()

	if err != nil {
		kind := string(tools.ErrUpstream)
		var toolErr *tools.ToolError
		if errors.As(err, &toolErr) {
			kind = string(toolErr.Kind)
		}
		if callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			kind = string(tools.ErrTimeout)
		}
		logger.Warn("tool failed", "tool", call.Tool, "kind", kind, "err", err)
		return ToolResult{
			Tool:      call.Tool,
			Args:      args,
			ErrorKind: kind,
			Error:     err.Error(),
			Summary:   "failed",
		}
	}

	pack.Accumulate(call.Tool, payload)

	shaped, truncated, originalCount := Shape(payload, d.cap)
	return ToolResult{
		Tool:          call.Tool,
		Args:          args,
		OK:            true,
		Shaped:        shaped,
		Truncated:     truncated,
		OriginalCount: originalCount,
		Summary:       summarize(payload),
		Payload:       payload,
	}
}

// execute invokes the named tool. Resolution tools consult the pack first so
// that a name resolved in an earlier iteration never triggers a second graph
// query.
func (d *Dispatcher) execute(ctx context.Context, name tools.Name, args map[string]any, pack *evidence.Pack) (any, error) {
	switch name {
	case tools.ResolveDrugs:
		return d.resolveWithReuse(ctx, evidence.KindDrug, argStringList(args, "names"), d.lib.ResolveDrugs, pack)
	case tools.ResolveGenes:
		return d.resolveWithReuse(ctx, evidence.KindGene, argStringList(args, "symbols"), d.lib.ResolveGenes, pack)
	case tools.ResolveDiseases:
		return d.resolveWithReuse(ctx, evidence.KindDisease, argStringList(args, "terms"), d.lib.ResolveDiseases, pack)
	case tools.ResolveAdverseEvents:
		return d.resolveWithReuse(ctx, evidence.KindAdverseEvent, argStringList(args, "terms"), d.lib.ResolveAdverseEvents, pack)
	case tools.SearchDrugsSemantic:
		return d.lib.SearchDrugsSemantic(ctx, argString(args, "query"), argIntDefault(args, "limit", 10))

	case tools.GetDrugTargets:
		return d.lib.GetDrugTargets(ctx, argInt(args, "drug_key"))
	case tools.GetGenePathways:
		return d.lib.GetGenePathways(ctx, argInt(args, "gene_key"))
	case tools.GetGeneDiseases:
		return d.lib.GetGeneDiseases(ctx, argInt(args, "gene_key"), argFloatDefault(args, "min_score", 0))
	case tools.GetDiseaseGenes:
		return d.lib.GetDiseaseGenes(ctx, argInt(args, "disease_key"), argStringList(args, "sources"),
			argFloatDefault(args, "min_score", 0), argIntDefault(args, "limit", 100))
	case tools.GetGeneInteractors:
		return d.lib.GetGeneInteractors(ctx, argInt(args, "gene_key"),
			argFloatDefault(args, "min_score", 0), argIntDefault(args, "limit", 50))
	case tools.ExpandMechanism:
		return d.lib.ExpandMechanism(ctx, argInt(args, "drug_key"))
	case tools.ExpandGeneContext:
		return d.lib.ExpandGeneContext(ctx, argIntList(args, "gene_keys"), argFloatDefault(args, "min_disease_score", 0.3))

	case tools.GetDrugAdverseEvents:
		return d.lib.GetDrugAdverseEvents(ctx, argInt(args, "drug_key"),
			argFloatPtr(args, "min_frequency"), argIntDefault(args, "limit", 100))
	case tools.GetDrugLabelSections:
		return d.lib.GetDrugLabelSections(ctx, argInt(args, "drug_key"), argStringList(args, "sections"))
	case tools.GetDrugFAERSSignals:
		return d.lib.GetDrugFAERSSignals(ctx, argInt(args, "drug_key"),
			argIntDefault(args, "top_k", 200), argIntDefault(args, "min_count", 1), argFloatPtr(args, "min_prr"))
	case tools.GetDrugProfile:
		return d.lib.GetDrugProfile(ctx, argInt(args, "drug_key"))

	case tools.GetClaimEvidence:
		return d.lib.GetClaimEvidence(ctx, argInt(args, "claim_key"))
	case tools.GetEntityClaims:
		return d.lib.GetEntityClaims(ctx, argString(args, "entity_kind"), argInt(args, "entity_key"),
			argStringList(args, "claim_types"), argIntDefault(args, "limit", 100))

	case tools.FindDrugToAEPaths:
		return d.lib.FindDrugToAEPaths(ctx, argInt(args, "drug_key"), argIntPtr(args, "ae_key"), argIntDefault(args, "max_paths", 10))
	case tools.ExplainPaths:
		return d.lib.ExplainPaths(ctx, argInt(args, "drug_key"), argIntPtr(args, "ae_key"),
			argIntList(args, "condition_keys"), argIntDefault(args, "top_k", 5))

	case tools.BuildSubgraph:
		params := tools.DefaultSubgraphParams(argIntList(args, "drug_keys"))
		params.IncludeTargets = argBoolDefault(args, "include_targets", true)
		params.IncludePathways = argBoolDefault(args, "include_pathways", true)
		params.IncludeDiseases = argBoolDefault(args, "include_diseases", true)
		params.IncludeAEs = argBoolDefault(args, "include_aes", true)
		params.MaxPathwaysPerGene = argIntDefault(args, "max_pathways_per_gene", params.MaxPathwaysPerGene)
		params.MaxDiseasesPerGene = argIntDefault(args, "max_diseases_per_gene", params.MaxDiseasesPerGene)
		params.MaxAEsPerDrug = argIntDefault(args, "max_aes_per_drug", params.MaxAEsPerDrug)
		params.MinDiseaseScore = argFloatDefault(args, "min_disease_score", params.MinDiseaseScore)
		return d.lib.BuildSubgraph(ctx, params)
	case tools.ScoreEdges:
		sub := pack.Subgraph()
		if sub == nil {
			return &tools.Subgraph{}, nil
		}
		return tools.ScoreSubgraphEdges(sub, nil), nil
	}

	// Lookup already vetted the name; reaching here is a dispatcher bug.
	panic(fmt.Sprintf("tool %s is in the catalog but has no execution branch", name))
}

type resolveFn func(ctx context.Context, names []string) (map[string]*tools.ResolvedEntity, error)

// resolveWithReuse filters out names the pack already resolved in an earlier
// iteration and merges cached entries with fresh resolutions. When every
// name is cached the store is not touched at all.
func (d *Dispatcher) resolveWithReuse(ctx context.Context, kind evidence.EntityKind, names []string, fn resolveFn, pack *evidence.Pack) (any, error) {
	results := make(map[string]*tools.ResolvedEntity, len(names))
	var missing []string
	for _, name := range names {
		if key, ok := pack.Resolved(kind, name); ok {
			results[name] = &tools.ResolvedEntity{
				Name:       evidence.NormalizeName(kind, name),
				Key:        key,
				Source:     "cached",
				Confidence: 1.0,
			}
			continue
		}
		missing = append(missing, name)
	}

	if len(missing) > 0 {
		fresh, err := fn(ctx, missing)
		if err != nil {
			return nil, err
		}
		for name, ent := range fresh {
			results[name] = ent
		}
	}
	return results, nil
}

func summarize(payload any) string {
	switch v := payload.(type) {
	case nil:
		return "no data"
	case map[string]*tools.ResolvedEntity:
		resolved := 0
		for _, ent := range v {
			if ent != nil {
				resolved++
			}
		}
		return fmt.Sprintf("%d/%d resolved", resolved, len(v))
	case []tools.ResolvedEntity:
		return fmt.Sprintf("%d candidates", len(v))
	case []tools.DrugTarget:
		return fmt.Sprintf("%d targets", len(v))
	case []tools.GenePathway:
		return fmt.Sprintf("%d pathways", len(v))
	case []tools.GeneDisease:
		return fmt.Sprintf("%d disease associations", len(v))
	case []tools.GeneInteractor:
		return fmt.Sprintf("%d interactors", len(v))
	case []tools.DrugAdverseEvent:
		return fmt.Sprintf("%d adverse events", len(v))
	case []tools.DrugLabelSection:
		return fmt.Sprintf("%d label sections", len(v))
	case []tools.FAERSSignal:
		return fmt.Sprintf("%d signals", len(v))
	case []tools.MechanisticPath:
		return fmt.Sprintf("%d paths", len(v))
	case []tools.ClaimDetail:
		return fmt.Sprintf("%d claims", len(v))
	case *tools.ClaimDetail:
		if v == nil {
			return "claim not found"
		}
		return fmt.Sprintf("claim with %d evidence records", len(v.Evidence))
	case *tools.Mechanism:
		if v == nil {
			return "no data"
		}
		return fmt.Sprintf("%d targets, %d pathways", len(v.Targets), len(v.Pathways))
	case *tools.DrugProfile:
		if v == nil || v.Drug == nil {
			return "drug not found"
		}
		return fmt.Sprintf("%s: %d targets, %d adverse events", v.Drug.PreferredName, len(v.Targets), len(v.AdverseEvents))
	case *tools.Subgraph:
		if v == nil {
			return "empty subgraph"
		}
		return fmt.Sprintf("%d nodes, %d edges", len(v.Nodes), len(v.Edges))
	case *tools.GeneContext:
		if v == nil {
			return "no data"
		}
		return fmt.Sprintf("context for %d genes", len(v.Pathways))
	}
	return "ok"
}
