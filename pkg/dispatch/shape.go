package dispatch

import (
	"reflect"

	"github.com/pharmakg/sentinel/pkg/tools"
)

// Shape builds the observer's view of a tool payload: list results are cut
// to at most cap items, and large opaque blobs (evidence payload bodies) are
// dropped. The full payload stays available in-process. Returns the shaped
// value, whether anything was truncated, and the original item count for
// list results.
func Shape(payload any, cap int) (any, bool, int) {
	switch v := payload.(type) {
	case nil:
		return nil, false, 0

	case *tools.ClaimDetail:
		if v == nil {
			return nil, false, 0
		}
		shaped, truncated := shapeClaimDetail(*v, cap)
		return &shaped, truncated, len(v.Evidence)

	case []tools.ClaimDetail:
		truncated := false
		originalCount := len(v)
		items := v
		if len(items) > cap {
			items = items[:cap]
			truncated = true
		}
		out := make([]tools.ClaimDetail, 0, len(items))
		for _, cd := range items {
			shaped, cut := shapeClaimDetail(cd, cap)
			truncated = truncated || cut
			out = append(out, shaped)
		}
		return out, truncated, originalCount

	case *tools.Mechanism:
		if v == nil {
			return nil, false, 0
		}
		shaped := tools.Mechanism{Targets: v.Targets, Pathways: v.Pathways}
		truncated := false
		if len(shaped.Targets) > cap {
			shaped.Targets = shaped.Targets[:cap]
			truncated = true
		}
		if len(shaped.Pathways) > cap {
			shaped.Pathways = shaped.Pathways[:cap]
			truncated = true
		}
		return &shaped, truncated, len(v.Targets) + len(v.Pathways)

	case *tools.DrugProfile:
		if v == nil {
			return nil, false, 0
		}
		shaped := tools.DrugProfile{Drug: v.Drug, Targets: v.Targets, AdverseEvents: v.AdverseEvents}
		truncated := false
		if len(shaped.Targets) > cap {
			shaped.Targets = shaped.Targets[:cap]
			truncated = true
		}
		if len(shaped.AdverseEvents) > cap {
			shaped.AdverseEvents = shaped.AdverseEvents[:cap]
			truncated = true
		}
		return &shaped, truncated, len(v.Targets) + len(v.AdverseEvents)

	case *tools.GeneContext:
		if v == nil {
			return nil, false, 0
		}
		shaped := tools.GeneContext{
			Pathways: make(map[int64][]tools.GenePathway, len(v.Pathways)),
			Diseases: make(map[int64][]tools.GeneDisease, len(v.Diseases)),
		}
		truncated := false
		for geneKey, pathways := range v.Pathways {
			if len(pathways) > cap {
				pathways = pathways[:cap]
				truncated = true
			}
			shaped.Pathways[geneKey] = pathways
		}
		for geneKey, diseases := range v.Diseases {
			if len(diseases) > cap {
				diseases = diseases[:cap]
				truncated = true
			}
			shaped.Diseases[geneKey] = diseases
		}
		return &shaped, truncated, 0

	case *tools.Subgraph:
		if v == nil {
			return nil, false, 0
		}
		shaped := tools.Subgraph{Nodes: v.Nodes, Edges: v.Edges}
		truncated := false
		if len(shaped.Nodes) > cap {
			shaped.Nodes = shaped.Nodes[:cap]
			truncated = true
		}
		if len(shaped.Edges) > cap {
			shaped.Edges = shaped.Edges[:cap]
			truncated = true
		}
		return &shaped, truncated, len(v.Nodes) + len(v.Edges)
	}

	// Plain slices and maps: cut slices at cap, pass maps through.
	rv := reflect.ValueOf(payload)
	if rv.Kind() == reflect.Slice {
		originalCount := rv.Len()
		if originalCount > cap {
			return rv.Slice(0, cap).Interface(), true, originalCount
		}
		return payload, false, originalCount
	}

	return payload, false, 0
}

// shapeClaimDetail strips evidence payload bodies and bounds the evidence
// list. Evidence keys always survive shaping so the observer can cite them.
func shapeClaimDetail(cd tools.ClaimDetail, cap int) (tools.ClaimDetail, bool) {
	truncated := false
	evidence := cd.Evidence
	if len(evidence) > cap {
		evidence = evidence[:cap]
		truncated = true
	}
	shapedEvidence := make([]tools.ClaimEvidence, 0, len(evidence))
	for _, ev := range evidence {
		ev.Payload = nil
		shapedEvidence = append(shapedEvidence, ev)
	}
	cd.Evidence = shapedEvidence
	return cd, truncated
}
