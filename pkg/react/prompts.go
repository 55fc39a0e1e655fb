package react

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pharmakg/sentinel/pkg/dispatch"
	"github.com/pharmakg/sentinel/pkg/llm"
	"github.com/pharmakg/sentinel/pkg/tools"
)

// ToolCatalogText renders the closed catalog for the planner's system
// prompt.
func ToolCatalogText() string {
	var b strings.Builder
	b.WriteString("## Available Tools\n")
	for _, spec := range tools.Catalog() {
		params := make([]string, 0, len(spec.Params))
		for _, p := range spec.Params {
			name := p.Name
			if !p.Required {
				name += "?"
			}
			params = append(params, name)
		}
		fmt.Fprintf(&b, "- %s(%s): %s\n", spec.Name, strings.Join(params, ", "), spec.Description)
	}
	return b.String()
}

const plannerSystemPrompt = `You are the planning component of a pharmacovigilance question-answering engine.
You query a curated knowledge graph of drugs, genes, pathways, diseases and adverse events.
You NEVER answer from your own knowledge; you only plan tool calls against the graph.

%s

## Rules

1. Names from the user query MUST be resolved (resolve_drugs, resolve_genes,
   resolve_diseases, resolve_adverse_events) before any other tool can use them.
2. Use resolved integer keys for subsequent calls. Resolved entities from
   earlier iterations are listed in the prompt; do not re-resolve them.
3. At most 4 tool calls per plan.
4. If you already have sufficient information, return no calls and set
   stop_conditions.sufficient_information to true.
5. If no tool can contribute to the query, return no calls and set
   stop_conditions.no_relevant_tools to true.

Return ONLY a JSON object with fields: thought, calls, stop_conditions.`

// PlannerSystem is the planner's system prompt with the tool catalog
// embedded.
func PlannerSystem() string {
	return fmt.Sprintf(plannerSystemPrompt, ToolCatalogText())
}

// PlannerMessages builds the planner input for one iteration.
func PlannerMessages(query string, iteration int, digest string, resolved string, lastResults string, gaps []InformationGap) []llm.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Query: %s\n", query)

	if iteration == 1 {
		b.WriteString("\nThis is iteration 1. Start by resolving the entity names in the query.\n")
	} else {
		fmt.Fprintf(&b, "\n## Iteration %d\n", iteration)
		fmt.Fprintf(&b, "\n## Trace So Far\n%s\n", orDefault(digest, "(none)"))
		fmt.Fprintf(&b, "\n## Resolved Entities\n%s\n", orDefault(resolved, "(No entities resolved yet)"))
		fmt.Fprintf(&b, "\n## Tool Results From Last Iteration\n%s\n", orDefault(lastResults, "(none)"))
		if len(gaps) > 0 {
			b.WriteString("\n## Gaps To Address\n")
			for _, gap := range gaps {
				line := fmt.Sprintf("- [P%d] %s: %s", gap.Priority, gap.Category, gap.Description)
				if gap.SuggestedTool != "" {
					line += fmt.Sprintf(" (consider %s)", gap.SuggestedTool)
				}
				b.WriteString(line + "\n")
			}
		}
		b.WriteString("\nPlan the next tool calls, or stop if the gathered information suffices.\n")
	}

	return []llm.Message{
		{Role: "system", Content: PlannerSystem()},
		{Role: "user", Content: b.String()},
	}
}

const observerSystemPrompt = `You judge whether gathered knowledge-graph results suffice to answer a
pharmacovigilance query. Consider ONLY the tool results provided; do not
assume unseen data.

Return ONLY a JSON object with fields:
- status: "sufficient" | "insufficient" | "partially_sufficient"
- confidence: number in [0,1]
- reasoning: short explanation
- gaps: list of {category, description, priority (1=high..3=low), suggested_tool?}
- can_answer: whether a meaningful answer is possible with current data`

// ObserverMessages builds the observer input after a dispatch round.
func ObserverMessages(query string, iteration int, results string) []llm.Message {
	user := fmt.Sprintf("## Query\n%s\n\n## Iteration\n%d\n\n## Tool Results\n%s\n\nJudge sufficiency.",
		query, iteration, orDefault(results, "(no results)"))
	return []llm.Message{
		{Role: "system", Content: observerSystemPrompt},
		{Role: "user", Content: user},
	}
}

const narratorSystemPrompt = `You are a medical writer summarizing pharmacovigilance findings from a
knowledge graph.

## Constraints
- Use ONLY the evidence provided below. Every statement must be grounded in it.
- Do NOT invent relationships that are not in the data.
- When evidence is missing or was not found, say so explicitly ("no evidence
  was found for ...") instead of speculating.
- This is not medical advice; describe evidence, not recommendations.
- Use professional language and keep the summary compact.`

// NarratorMessages builds the narrator input from the evidence digest.
func NarratorMessages(query string, digest string, evidenceSummary string, bestEffort bool) []llm.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "## Original Query\n%s\n", query)
	fmt.Fprintf(&b, "\n## Trace\n%s\n", orDefault(digest, "(none)"))
	fmt.Fprintf(&b, "\n## Gathered Evidence\n%s\n", orDefault(evidenceSummary, "(No evidence was gathered)"))
	if bestEffort {
		b.WriteString("\nThe iteration budget was exhausted before the evidence was judged sufficient. " +
			"Answer with what is available and state the remaining gaps explicitly.\n")
	}
	b.WriteString("\nWrite the final answer grounded ONLY in the evidence above.")
	return []llm.Message{
		{Role: "system", Content: narratorSystemPrompt},
		{Role: "user", Content: b.String()},
	}
}

// FormatToolResults renders shaped tool results for the observer and the
// next planner prompt. Labels precede keys in the serialized payloads.
func FormatToolResults(results []dispatch.ToolResult) string {
	var lines []string
	for _, r := range results {
		status := "[OK]"
		if !r.OK {
			status = "[FAIL]"
		}
		lines = append(lines, fmt.Sprintf("%s %s(%s)", status, r.Tool, formatArgs(r.Args)))
		if !r.OK {
			lines = append(lines, fmt.Sprintf("  error (%s): %s", r.ErrorKind, r.Error))
			continue
		}
		if r.Truncated {
			lines = append(lines, fmt.Sprintf("  (showing truncated result, %d items total, truncated=true)", r.OriginalCount))
		}
		payload, err := json.Marshal(r.Shaped)
		if err != nil {
			lines = append(lines, "  result: "+r.Summary)
			continue
		}
		lines = append(lines, "  result: "+string(payload))
	}
	return strings.Join(lines, "\n")
}

func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return ""
	}
	b, err := json.Marshal(args)
	if err != nil {
		return ""
	}
	return string(b)
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
