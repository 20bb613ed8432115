package decision

import (
	"context"
	"fmt"
	"time"

	"github.com/threatveil/core/pkg/impact"
	"github.com/threatveil/core/pkg/posture"
	"github.com/threatveil/core/pkg/store"
)

// allowedTransitions is the fixed lifecycle state machine (spec.md §4.4):
// the main chain pending -> accepted -> in_progress -> resolved ->
// verified, plus the named shortcuts and step-backs.
var allowedTransitions = map[posture.DecisionStatus]map[posture.DecisionStatus]bool{
	posture.DecisionPending: {
		posture.DecisionAccepted:   true,
		posture.DecisionInProgress: true,
		posture.DecisionResolved:   true,
	},
	posture.DecisionAccepted: {
		posture.DecisionInProgress: true,
	},
	posture.DecisionInProgress: {
		posture.DecisionResolved: true,
		posture.DecisionAccepted: true,
	},
	posture.DecisionResolved: {
		posture.DecisionVerified:   true,
		posture.DecisionInProgress: true,
	},
	posture.DecisionVerified: {
		posture.DecisionResolved: true,
	},
}

// Lifecycle applies the fixed state machine to SecurityDecisions,
// persisting the timestamp invariants and invoking Impact computation on
// entry to `resolved`.
type Lifecycle struct {
	Decisions store.DecisionStore
	Impacts   store.ImpactStore
	Scans     store.ScanStore
	now       func() time.Time
}

func NewLifecycle(decisions store.DecisionStore, impacts store.ImpactStore, scans store.ScanStore) *Lifecycle {
	return &Lifecycle{Decisions: decisions, Impacts: impacts, Scans: scans, now: time.Now}
}

// Transition moves a SecurityDecision to `to`, enforcing the allowed-edge
// table and timestamp/field invariants, then persists it.
func (l *Lifecycle) Transition(ctx context.Context, d posture.SecurityDecision, to posture.DecisionStatus) (posture.SecurityDecision, error) {
	if !allowedTransitions[d.Status][to] {
		return posture.SecurityDecision{}, fmt.Errorf("decision: transition %s -> %s is not allowed", d.Status, to)
	}

	now := l.now()
	reversingOut := (d.Status == posture.DecisionResolved || d.Status == posture.DecisionVerified) &&
		to != posture.DecisionVerified && to != posture.DecisionResolved

	switch to {
	case posture.DecisionAccepted:
		d.AcceptedAt = &now
	case posture.DecisionResolved:
		d.ResolvedAt = &now
	case posture.DecisionVerified:
		d.VerifiedAt = &now
	}

	if reversingOut {
		d.ResolvedAt = nil
		d.VerifiedAt = nil
		d.AfterScore = nil
		d.VerificationScanID = nil
		if err := l.Impacts.DeleteByDecision(ctx, d.ID); err != nil {
			return posture.SecurityDecision{}, fmt.Errorf("decision: clear impact on reversal: %w", err)
		}
	}

	d.Status = to

	switch to {
	case posture.DecisionResolved:
		l.onResolved(ctx, &d)
	case posture.DecisionVerified:
		l.onVerified(ctx, &d)
	}

	if err := l.Decisions.UpdateDecision(ctx, d); err != nil {
		return posture.SecurityDecision{}, fmt.Errorf("decision: persist transition: %w", err)
	}
	return d, nil
}

// onResolved implements spec.md §4.4's "on entering resolved" steps: bind
// after_score from the latest same-domain Scan and invoke Impact — both
// best-effort, never blocking the transition.
func (l *Lifecycle) onResolved(ctx context.Context, d *posture.SecurityDecision) {
	scan, err := l.Scans.LatestByDomain(ctx, d.Domain)
	if err == nil {
		score := scan.RiskScore
		d.AfterScore = &score
	}

	computed, err := impact.Compute(ctx, *d, l.Scans, l.now())
	if err != nil {
		return
	}
	d.ConfidenceScore = float64(computed.Confidence)
	d.ConfidenceReason = computed.Notes
	_ = l.Impacts.Upsert(ctx, computed)
}

// onVerified implements spec.md §4.4's "on entering verified" step: bind
// verification_scan_id to the most recent Scan strictly after resolved_at.
func (l *Lifecycle) onVerified(ctx context.Context, d *posture.SecurityDecision) {
	if d.ResolvedAt == nil {
		return
	}
	scan, err := l.Scans.LatestByDomainAfter(ctx, d.Domain, *d.ResolvedAt)
	if err != nil {
		return
	}
	id := scan.ID
	d.VerificationScanID = &id
}
