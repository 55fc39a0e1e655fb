package react

import (
	"github.com/pharmakg/sentinel/pkg/dispatch"
	"github.com/pharmakg/sentinel/pkg/evidence"
	"github.com/pharmakg/sentinel/pkg/tools"
)

// PlannedCall is one tool call requested by the planner.
type PlannedCall struct {
	Tool   string         `json:"tool" jsonschema_description:"Tool name from the catalog"`
	Args   map[string]any `json:"args" jsonschema_description:"Tool arguments"`
	Reason string         `json:"reason,omitempty" jsonschema_description:"Why this call is needed"`
}

// StopConditions signals that the planner wants to stop instead of calling
// tools.
type StopConditions struct {
	NoRelevantTools       bool `json:"no_relevant_tools"`
	SufficientInformation bool `json:"sufficient_information"`
}

// ToolPlan is the planner's structured output for one iteration. Single-use.
type ToolPlan struct {
	Thought        string         `json:"thought" jsonschema_description:"Reasoning about what information is needed"`
	Calls          []PlannedCall  `json:"calls" jsonschema_description:"Ordered tool calls to execute, empty if stopping"`
	StopConditions StopConditions `json:"stop_conditions"`
}

// ShouldStop reports whether the plan carries an explicit stop signal.
func (p ToolPlan) ShouldStop() bool {
	return p.StopConditions.NoRelevantTools || p.StopConditions.SufficientInformation
}

// Requests converts the plan into dispatcher requests, preserving order.
func (p ToolPlan) Requests() []dispatch.ToolCallRequest {
	out := make([]dispatch.ToolCallRequest, 0, len(p.Calls))
	for _, call := range p.Calls {
		out = append(out, dispatch.ToolCallRequest{
			Tool:   call.Tool,
			Args:   call.Args,
			Reason: call.Reason,
		})
	}
	return out
}

// Sufficiency status values.
const (
	StatusSufficient          = "sufficient"
	StatusInsufficient        = "insufficient"
	StatusPartiallySufficient = "partially_sufficient"
)

// InformationGap describes one missing piece of information.
type InformationGap struct {
	Category      string `json:"category" jsonschema_description:"Category of missing info (mechanism, pathway, ...)"`
	Description   string `json:"description" jsonschema_description:"What information is missing"`
	Priority      int    `json:"priority" jsonschema_description:"1=high, 2=medium, 3=low"`
	SuggestedTool string `json:"suggested_tool,omitempty" jsonschema_description:"Tool that could fill this gap"`
}

// SufficiencyVerdict is the observer's structured output.
type SufficiencyVerdict struct {
	Status     string           `json:"status" jsonschema:"enum=sufficient,enum=insufficient,enum=partially_sufficient"`
	Confidence float64          `json:"confidence" jsonschema_description:"Confidence in this evaluation, 0-1"`
	Reasoning  string           `json:"reasoning"`
	Gaps       []InformationGap `json:"gaps"`
	CanAnswer  bool             `json:"can_answer" jsonschema_description:"Can the query be meaningfully answered with current data"`
}

// AnswerNow reports whether the orchestrator should proceed to narration.
func (v SufficiencyVerdict) AnswerNow() bool {
	if v.Status == StatusSufficient {
		return true
	}
	return v.Status == StatusPartiallySufficient && v.CanAnswer
}

// ToolCallLog records one tool call for the query trace.
type ToolCallLog struct {
	Tool    string         `json:"tool"`
	Args    map[string]any `json:"args"`
	OK      bool           `json:"ok"`
	Summary string         `json:"summary"`
	Error   string         `json:"error,omitempty"`
}

// IterationLog is the audit record of one plan/dispatch/observe cycle. The
// caller can reconstruct exactly which tools ran with which arguments.
type IterationLog struct {
	Iteration int                 `json:"iteration"`
	Thought   string              `json:"thought,omitempty"`
	ToolCalls []ToolCallLog       `json:"tool_calls"`
	Verdict   *SufficiencyVerdict `json:"verdict,omitempty"`
}

// Completion reasons for a query run.
const (
	ReasonSufficient    = "sufficient"
	ReasonMaxIterations = "max_iterations"
	ReasonPlannerStop   = "planner_stop"
	ReasonCancelled     = "cancelled"
	ReasonError         = "error"
)

// Result is the final response for one query.
type Result struct {
	QueryID          string                  `json:"query_id"`
	Query            string                  `json:"query"`
	Summary          string                  `json:"summary"`
	Subgraph         *tools.Subgraph         `json:"subgraph"`
	Paths            []tools.MechanisticPath `json:"paths"`
	Evidence         evidence.Summary        `json:"evidence"`
	Trace            []IterationLog          `json:"trace"`
	CompletionReason string                  `json:"completion_reason"`
	Error            string                  `json:"error,omitempty"`
}
