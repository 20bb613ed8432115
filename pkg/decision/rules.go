// Package decision implements the Decision Engine: a fixed, CEL-evaluated
// rule set that turns a Scan's derived facts into up to three
// SecurityDecisions, plus the lifecycle state machine those Decisions move
// through.
package decision

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/threatveil/core/pkg/rulefacts"
)

// Rule is one entry of the fixed priority-ordered rule table (spec.md
// §4.4). Condition is a CEL boolean expression over the declared fact
// variables.
type Rule struct {
	ActionID  string
	Condition string
	Title     string
	Effort    string
	Reduction int
	Priority  int
}

// Rules is the fixed set, already in priority-ascending (= higher
// priority first) order. Never reordered at runtime.
var Rules = []Rule{
	{ActionID: "key-rotation", Condition: "ai_key_leak", Title: "Rotate Exposed Credentials", Effort: "~1h", Reduction: 25, Priority: 1},
	{ActionID: "patch-cves", Condition: "high_severity_software", Title: "Patch Critical Vulnerabilities", Effort: "2-4h", Reduction: 20, Priority: 2},
	{ActionID: "review-agents", Condition: "agent_tool_detected", Title: "Review Agent Access Controls", Effort: "2h", Reduction: 15, Priority: 3},
	{ActionID: "audit-data", Condition: "data_exposure_present", Title: "Audit Data Access Policies", Effort: "1-2h", Reduction: 15, Priority: 4},
	{ActionID: "update-tls", Condition: "tls_issue_present", Title: "Update Certificate Configuration", Effort: "30m", Reduction: 10, Priority: 5},
	{ActionID: "review-network", Condition: "network_issue_nonlow && current_count < 3", Title: "Review Network Exposure", Effort: "1h", Reduction: 10, Priority: 6},
	{ActionID: "audit-ai-tools", Condition: "ai_tool_present && current_count < 3", Title: "Audit AI Tool Usage", Effort: "1h", Reduction: 5, Priority: 7},
}

// CELEngine compiles the fixed rule set once and evaluates it against
// per-scan facts, mirroring the teacher's policy.CELEngine shape
// (index-free here since the rule set is tiny and fixed, not user-defined).
type CELEngine struct {
	env          *cel.Env
	programs     map[string]cel.Program
	matchCounter metric.Int64Counter
}

func NewCELEngine() (*CELEngine, error) {
	env, err := cel.NewEnv(
		cel.Declarations(
			decls.NewVar("ai_key_leak", decls.Bool),
			decls.NewVar("high_severity_software", decls.Bool),
			decls.NewVar("agent_tool_detected", decls.Bool),
			decls.NewVar("data_exposure_present", decls.Bool),
			decls.NewVar("tls_issue_present", decls.Bool),
			decls.NewVar("network_issue_nonlow", decls.Bool),
			decls.NewVar("ai_tool_present", decls.Bool),
			decls.NewVar("current_count", decls.Int),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("decision: create CEL env: %w", err)
	}

	programs := make(map[string]cel.Program, len(Rules))
	for _, r := range Rules {
		ast, issues := env.Compile(r.Condition)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("decision: compile rule %s: %w", r.ActionID, issues.Err())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("decision: build program for rule %s: %w", r.ActionID, err)
		}
		programs[r.ActionID] = prg
	}

	meter := otel.Meter("threatveil/decision")
	matchCounter, err := meter.Int64Counter("decision_rule_matches_total",
		metric.WithDescription("Total number of rule matches across all scans"))
	if err != nil {
		slog.Warn("decision: failed to initialize rule-match metric", "error", err)
	}

	return &CELEngine{env: env, programs: programs, matchCounter: matchCounter}, nil
}

// Evaluate runs the fixed rule set in priority order against facts,
// stopping once 3 matches are collected. current_count (the number of
// rules already matched this pass) is re-evaluated per rule so
// count-gated rules (review-network, audit-ai-tools) see an accurate
// running total.
func (e *CELEngine) Evaluate(ctx context.Context, facts rulefacts.Facts) ([]Rule, error) {
	var matched []Rule
	for _, r := range Rules {
		if len(matched) >= 3 {
			break
		}
		prg := e.programs[r.ActionID]
		vars := map[string]interface{}{
			"ai_key_leak":            facts.AIKeyLeak,
			"high_severity_software": facts.HighSeveritySoftware,
			"agent_tool_detected":    facts.AgentToolDetected,
			"data_exposure_present":  facts.DataExposurePresent,
			"tls_issue_present":      facts.TLSIssuePresent,
			"network_issue_nonlow":   facts.NetworkIssueNonLow,
			"ai_tool_present":        facts.AITooPresent,
			"current_count":          int64(len(matched)),
		}
		out, _, err := prg.Eval(vars)
		if err != nil {
			return nil, fmt.Errorf("decision: evaluate rule %s: %w", r.ActionID, err)
		}
		if match, ok := out.Value().(bool); ok && match {
			matched = append(matched, r)
			if e.matchCounter != nil {
				e.matchCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("action_id", r.ActionID)))
			}
		}
	}
	return matched, nil
}
