package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/threatveil/core/pkg/decision"
	"github.com/threatveil/core/pkg/posture"
	"github.com/threatveil/core/pkg/probe"
	"github.com/threatveil/core/pkg/signal"
	"github.com/threatveil/core/pkg/store"
)

// ErrNotEligible is returned when a Decision isn't yet a verification
// candidate (wrong status, or still inside the CandidateWindow).
var ErrNotEligible = errors.New("verification: decision is not eligible yet")

// Probes bundles the live adapters manual verification re-probes with —
// a deliberately small subset of pkg/orchestrator.Probes, since
// verification never needs DNS/CT-log/threat-intel/vuln-DB.
type Probes struct {
	HTTP       *probe.HTTPProbe
	TLS        *probe.TLSProbe
	CodeSearch *probe.CodeSearchProbe
}

// Engine drives manual (operator-triggered) verification: a live
// re-probe for the four externally-observable actions, falling back to
// comparing the originating Scan against the latest Scan for the
// count-based rules.
type Engine struct {
	Probes          Probes
	Decisions       store.DecisionStore
	Scans           store.ScanStore
	Verifications   store.VerificationStore
	Lifecycle       *decision.Lifecycle
	CandidateWindow time.Duration
	now             func() time.Time
}

func NewEngine(probes Probes, decisions store.DecisionStore, scans store.ScanStore, verifications store.VerificationStore, lifecycle *decision.Lifecycle) *Engine {
	return &Engine{
		Probes:          probes,
		Decisions:       decisions,
		Scans:           scans,
		Verifications:   verifications,
		Lifecycle:       lifecycle,
		CandidateWindow: 24 * time.Hour,
		now:             time.Now,
	}
}

// Verify runs the per-action re-probe rule for decisionID, persists a
// DecisionVerificationRun and its evidence, and on `pass` advances the
// Decision to `verified` via the lifecycle state machine.
func (e *Engine) Verify(ctx context.Context, decisionID string) (posture.DecisionVerificationRun, error) {
	d, err := e.Decisions.GetDecision(ctx, decisionID)
	if err != nil {
		return posture.DecisionVerificationRun{}, fmt.Errorf("verification: load decision: %w", err)
	}
	if d.Status != posture.DecisionResolved {
		return posture.DecisionVerificationRun{}, fmt.Errorf("%w: decision status is %s, not resolved", ErrNotEligible, d.Status)
	}
	if d.ResolvedAt == nil || e.now().Sub(*d.ResolvedAt) < e.CandidateWindow {
		return posture.DecisionVerificationRun{}, fmt.Errorf("%w: resolved less than %s ago", ErrNotEligible, e.CandidateWindow)
	}

	originatingScan, err := e.Scans.GetScan(ctx, d.ScanID)
	if err != nil {
		return posture.DecisionVerificationRun{}, fmt.Errorf("verification: load originating scan: %w", err)
	}

	result, confidence, notes, evidence := e.evaluate(ctx, d, originatingScan)

	run := posture.DecisionVerificationRun{
		ID:         uuid.NewString(),
		DecisionID: d.ID,
		Result:     result,
		Confidence: confidence,
		Notes:      notes,
		CreatedAt:  e.now(),
	}
	if err := e.Verifications.CreateVerificationRun(ctx, run); err != nil {
		return posture.DecisionVerificationRun{}, fmt.Errorf("verification: persist run: %w", err)
	}
	for _, ev := range evidence {
		ev.DecisionID = d.ID
		ev.CreatedAt = e.now()
		if err := e.Verifications.CreateEvidence(ctx, ev); err != nil {
			return run, fmt.Errorf("verification: persist evidence: %w", err)
		}
	}

	if result == posture.VerificationPass {
		d.ConfidenceScore = float64(confidence)
		d.ConfidenceReason = notes
		if _, err := e.Lifecycle.Transition(ctx, d, posture.DecisionVerified); err != nil {
			return run, fmt.Errorf("verification: advance decision: %w", err)
		}
	}

	return run, nil
}

// evaluate dispatches to a live re-probe for the four externally
// re-checkable actions, and to the comparison rule (originating scan vs
// the asset's latest scan) for everything else. Any probe exception maps
// to unknown/0.2, per spec.md §4.8.
func (e *Engine) evaluate(ctx context.Context, d posture.SecurityDecision, originatingScan posture.Scan) (posture.VerificationResult, posture.ConfidenceTier, string, []posture.DecisionEvidence) {
	switch canonicalActionID(d.ActionID) {
	case "key-rotation":
		return e.verifyKeyRotation(ctx, d, originatingScan)
	case "enable-hsts", "enable-csp":
		return e.verifyHeader(ctx, d, originatingScan)
	case "update-tls":
		return e.verifyTLS(ctx, d, originatingScan)
	default:
		latest, err := e.Scans.LatestByDomain(ctx, d.Domain)
		if err != nil {
			return posture.VerificationUnknown, posture.ConfidenceUnverifiable, "no scan available for comparison: " + err.Error(), nil
		}
		result, confidence, notes := evaluateFromSignals(d.ActionID, originatingScan.Signals, latest.Signals)
		return result, confidence, notes, beforeAfterEvidence(originatingScan.Signals, latest.Signals)
	}
}

func (e *Engine) verifyKeyRotation(ctx context.Context, d posture.SecurityDecision, originatingScan posture.Scan) (posture.VerificationResult, posture.ConfidenceTier, string, []posture.DecisionEvidence) {
	if originatingScan.GitHubOrg == "" {
		return posture.VerificationUnknown, posture.ConfidenceUnverifiable, "no code org configured for this asset", nil
	}
	res := e.Probes.CodeSearch.Probe(ctx, originatingScan.GitHubOrg)
	if errMsg, ok := res.Metadata["error"]; ok {
		return posture.VerificationUnknown, posture.ConfidenceUnverifiable, fmt.Sprintf("code search re-probe failed: %v", errMsg), nil
	}
	result, confidence, notes := evaluateFromSignals("key-rotation", originatingScan.Signals, res.Signals)
	return result, confidence, notes, beforeAfterEvidence(originatingScan.Signals, res.Signals)
}

func (e *Engine) verifyHeader(ctx context.Context, d posture.SecurityDecision, originatingScan posture.Scan) (posture.VerificationResult, posture.ConfidenceTier, string, []posture.DecisionEvidence) {
	res := e.Probes.HTTP.Probe(ctx, d.Domain)
	if errMsg, ok := res.Metadata["error"]; ok {
		return posture.VerificationUnknown, posture.ConfidenceUnverifiable, fmt.Sprintf("header re-probe failed: %v", errMsg), nil
	}
	result, confidence, notes := evaluateFromSignals(d.ActionID, originatingScan.Signals, res.Signals)
	return result, confidence, notes, beforeAfterEvidence(originatingScan.Signals, res.Signals)
}

func (e *Engine) verifyTLS(ctx context.Context, d posture.SecurityDecision, originatingScan posture.Scan) (posture.VerificationResult, posture.ConfidenceTier, string, []posture.DecisionEvidence) {
	res := e.Probes.TLS.Probe(ctx, d.Domain)
	if errMsg, ok := res.Metadata["error"]; ok {
		return posture.VerificationUnknown, posture.ConfidenceUnverifiable, fmt.Sprintf("TLS re-probe failed: %v", errMsg), nil
	}
	result, confidence, notes := evaluateFromSignals("update-tls", originatingScan.Signals, res.Signals)
	return result, confidence, notes, beforeAfterEvidence(originatingScan.Signals, res.Signals)
}

func beforeAfterEvidence(before, after []signal.Signal) []posture.DecisionEvidence {
	return []posture.DecisionEvidence{
		{Stage: posture.EvidenceBefore, Payload: map[string]interface{}{"signal_count": len(before)}},
		{Stage: posture.EvidenceAfter, Payload: map[string]interface{}{"signal_count": len(after)}},
	}
}
