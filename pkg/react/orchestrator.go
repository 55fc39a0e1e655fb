package react

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/pharmakg/sentinel/internal/util"
	"github.com/pharmakg/sentinel/pkg/dispatch"
	"github.com/pharmakg/sentinel/pkg/evidence"
	"github.com/pharmakg/sentinel/pkg/llm"
	"github.com/pharmakg/sentinel/pkg/logger"
)

// Params configures an Orchestrator. All fields are shared read-only across
// concurrent queries.
type Params struct {
	LLM           *llm.Client
	Planner       llm.Role
	Observer      llm.Role
	Narrator      llm.Role
	Dispatcher    *dispatch.Dispatcher
	MaxIterations int
	DigestTokens  int
}

// Orchestrator drives the plan → dispatch → observe loop for one query at a
// time per Run call. Multiple Runs may execute concurrently.
type Orchestrator struct {
	llm           *llm.Client
	planner       llm.Role
	observer      llm.Role
	narrator      llm.Role
	dispatcher    *dispatch.Dispatcher
	maxIterations int
	digestTokens  int
}

const defaultDigestTokens = 2048

// New creates an orchestrator. MaxIterations is clamped to [1,10].
func New(params Params) *Orchestrator {
	maxIter := clampIterations(params.MaxIterations)
	digestTokens := params.DigestTokens
	if digestTokens <= 0 {
		digestTokens = defaultDigestTokens
	}
	return &Orchestrator{
		llm:           params.LLM,
		planner:       params.Planner,
		observer:      params.Observer,
		narrator:      params.Narrator,
		dispatcher:    params.Dispatcher,
		maxIterations: maxIter,
		digestTokens:  digestTokens,
	}
}

func clampIterations(n int) int {
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

// run holds the mutable state of one query while it moves through the state
// machine.
type run struct {
	queryID string
	query   string
	maxIter int

	pack   *evidence.Pack
	trace  []IterationLog
	digest []string

	lastResults string
	gaps        []InformationGap
}

// Run executes one query through the full loop and always returns a Result;
// failures are reported via CompletionReason and Error. maxIterations of 0
// uses the configured default; 1 yields single-pass behaviour.
func (o *Orchestrator) Run(ctx context.Context, query string, maxIterations int) *Result {
	maxIter := o.maxIterations
	if maxIterations > 0 {
		maxIter = clampIterations(maxIterations)
	}

	r := &run{
		queryID: util.NewQueryID(),
		query:   query,
		maxIter: maxIter,
		pack:    evidence.NewPack(query),
	}

	logger.Info("query started", "query_id", r.queryID, "max_iterations", maxIter)

	for iteration := 1; iteration <= maxIter; iteration++ {
		if ctx.Err() != nil {
			return o.finish(r, ReasonCancelled, "")
		}

		plan, err := o.plan(ctx, r, iteration)
		if err != nil {
			if ctx.Err() != nil {
				return o.finish(r, ReasonCancelled, "")
			}
			return o.finish(r, ReasonError, categorize(err, "llm.malformed_plan"))
		}

		log := IterationLog{Iteration: iteration, Thought: plan.Thought}

		if plan.ShouldStop() {
			r.trace = append(r.trace, log)
			r.appendDigest(iteration, nil, nil)
			return o.narrate(ctx, r, ReasonPlannerStop, false)
		}

		results := o.dispatcher.Dispatch(ctx, plan.Requests(), r.pack)
		for _, res := range results {
			log.ToolCalls = append(log.ToolCalls, ToolCallLog{
				Tool:    res.Tool,
				Args:    res.Args,
				OK:      res.OK,
				Summary: res.Summary,
				Error:   res.Error,
			})
		}
		r.lastResults = FormatToolResults(results)

		if ctx.Err() != nil {
			r.trace = append(r.trace, log)
			return o.finish(r, ReasonCancelled, "")
		}

		verdict, err := o.observe(ctx, r, iteration)
		if err != nil {
			if ctx.Err() != nil {
				r.trace = append(r.trace, log)
				return o.finish(r, ReasonCancelled, "")
			}
			if errors.Is(err, llm.ErrMalformed) {
				// A verdict that cannot be parsed even after repair is
				// treated as insufficient; the loop continues on budget.
				logger.Warn("observer verdict malformed, treating as insufficient", "query_id", r.queryID, "iteration", iteration)
				verdict = &SufficiencyVerdict{Status: StatusInsufficient, Reasoning: "verdict malformed"}
			} else {
				r.trace = append(r.trace, log)
				return o.finish(r, ReasonError, categorize(err, "llm.malformed_verdict"))
			}
		}

		log.Verdict = verdict
		r.trace = append(r.trace, log)
		r.appendDigest(iteration, results, verdict)

		if verdict.AnswerNow() {
			return o.narrate(ctx, r, ReasonSufficient, false)
		}

		r.gaps = verdict.Gaps
	}

	// Iteration budget exhausted: force best-effort narration over whatever
	// evidence exists.
	return o.narrate(ctx, r, ReasonMaxIterations, true)
}

func (o *Orchestrator) plan(ctx context.Context, r *run, iteration int) (*ToolPlan, error) {
	msgs := PlannerMessages(r.query, iteration, r.digestText(), r.pack.FormatResolvedEntities(), r.lastResults, r.gaps)
	var plan ToolPlan
	if err := o.llm.Structured(ctx, o.planner, msgs, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (o *Orchestrator) observe(ctx context.Context, r *run, iteration int) (*SufficiencyVerdict, error) {
	msgs := ObserverMessages(r.query, iteration, r.lastResults)
	var verdict SufficiencyVerdict
	if err := o.llm.Structured(ctx, o.observer, msgs, &verdict); err != nil {
		return nil, err
	}
	return &verdict, nil
}

// narrate generates the final narrative and assembles the result. The
// orchestrator never re-enters planning after this point.
func (o *Orchestrator) narrate(ctx context.Context, r *run, reason string, bestEffort bool) *Result {
	evidenceDigest := r.pack.SummarizeForPrompt(o.digestTokens)
	msgs := NarratorMessages(r.query, r.digestText(), evidenceDigest, bestEffort)

	summary, err := o.llm.Text(ctx, o.narrator, msgs)
	if err != nil {
		if ctx.Err() != nil {
			return o.finish(r, ReasonCancelled, "")
		}
		logger.Error("narration failed", "query_id", r.queryID, "err", err)
		return o.finish(r, ReasonError, categorize(err, "llm.narrator"))
	}

	result := o.finish(r, reason, "")
	result.Summary = summary
	return result
}

// finish assembles the final Result from the accumulated evidence.
func (o *Orchestrator) finish(r *run, reason string, errCategory string) *Result {
	result := &Result{
		QueryID:          r.queryID,
		Query:            r.query,
		Subgraph:         r.pack.Subgraph(),
		Paths:            r.pack.Paths(),
		Evidence:         r.pack.Summarize(),
		Trace:            r.trace,
		CompletionReason: reason,
		Error:            errCategory,
	}
	logger.Info("query finished", "query_id", r.queryID, "reason", reason, "iterations", len(r.trace))
	return result
}

// appendDigest adds the compact record of one iteration to the rolling
// digest. Full tool payloads are never carried forward.
func (r *run) appendDigest(iteration int, results []dispatch.ToolResult, verdict *SufficiencyVerdict) {
	var parts []string
	parts = append(parts, fmt.Sprintf("Iteration %d:", iteration))

	if len(results) > 0 {
		calls := make([]string, 0, len(results))
		for _, res := range results {
			entry := fmt.Sprintf("%s -> %s", res.Tool, res.Summary)
			if !res.OK {
				entry = fmt.Sprintf("%s -> FAIL (%s)", res.Tool, res.ErrorKind)
			}
			calls = append(calls, entry)
		}
		parts = append(parts, "called "+strings.Join(calls, "; "))
	} else {
		parts = append(parts, "no tool calls")
	}

	if verdict != nil {
		obs := fmt.Sprintf("observation: %s (confidence %.2f)", verdict.Status, verdict.Confidence)
		if len(verdict.Gaps) > 0 {
			categories := make([]string, 0, len(verdict.Gaps))
			for _, gap := range verdict.Gaps {
				categories = append(categories, gap.Category)
			}
			obs += ", gaps: " + strings.Join(categories, ", ")
		}
		parts = append(parts, obs)
	}

	r.digest = append(r.digest, strings.Join(parts, " "))
}

func (r *run) digestText() string {
	return boundTokens(strings.Join(r.digest, "\n"), defaultDigestTokens)
}

// boundTokens trims text to a token budget, keeping the most recent
// iterations when the digest overflows.
func boundTokens(text string, maxTokens int) string {
	if maxTokens <= 0 || text == "" {
		return text
	}
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		limit := maxTokens * 4
		if len(text) > limit {
			return text[len(text)-limit:]
		}
		return text
	}
	ids := enc.Encode(text, nil, nil)
	if len(ids) <= maxTokens {
		return text
	}
	return enc.Decode(ids[len(ids)-maxTokens:])
}

// categorize maps client errors onto the stable category strings used in
// logs and results.
func categorize(err error, malformedCategory string) string {
	switch {
	case errors.Is(err, llm.ErrTimeout):
		return "llm.timeout"
	case errors.Is(err, llm.ErrMalformed):
		return malformedCategory
	default:
		return "error: " + err.Error()
	}
}
