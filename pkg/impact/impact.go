// Package impact computes the before/after risk delta and confidence
// tier for a resolved SecurityDecision (spec.md §4.7).
package impact

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/threatveil/core/pkg/posture"
	"github.com/threatveil/core/pkg/rulefacts"
	"github.com/threatveil/core/pkg/store"
)

// Compute produces or updates the one DecisionImpact row for a Decision
// that just entered `resolved`. now is injected for determinism in tests.
func Compute(ctx context.Context, decision posture.SecurityDecision, scans store.ScanStore, now time.Time) (posture.DecisionImpact, error) {
	if decision.ResolvedAt == nil {
		return posture.DecisionImpact{}, errors.New("impact: decision has no resolved_at")
	}

	afterScan, found, err := findAfterScan(ctx, decision, scans)
	if err != nil {
		return posture.DecisionImpact{}, err
	}

	impact := posture.DecisionImpact{
		ID:         uuid.NewString(),
		DecisionID: decision.ID,
		RiskBefore: decision.BeforeScore,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if !found {
		impact.Confidence = posture.ConfidenceUnverifiable
		impact.Notes = "no scan has run against this domain since the decision was resolved"
		return impact, nil
	}

	riskAfter := afterScan.RiskScore
	delta := riskAfter - decision.BeforeScore
	impact.RiskAfter = &riskAfter
	impact.Delta = &delta

	age := now.Sub(afterScan.CreatedAt)
	recent := age <= 7*24*time.Hour

	present, known := rulefacts.TriggerPresent(decision.ActionID, afterScan.Signals)

	switch {
	case !recent:
		impact.Confidence = posture.ConfidenceStale
		impact.Notes = "latest after-scan is more than 7 days old"
	case known && !present:
		impact.Confidence = posture.ConfidenceCertain
		impact.Notes = "triggering signal no longer present in the latest scan"
	default:
		impact.Confidence = posture.ConfidenceLikely
		if !known {
			impact.Notes = "triggering signal presence could not be determined for this action"
		} else {
			impact.Notes = "triggering signal still present in the latest scan"
		}
	}

	return impact, nil
}

// findAfterScan implements spec.md §4.7's two-step lookup: the most
// recent Scan for the same Organization strictly after resolved_at, else
// the most recent Scan for the same domain newer than the Decision's
// created_at.
func findAfterScan(ctx context.Context, decision posture.SecurityDecision, scans store.ScanStore) (posture.Scan, bool, error) {
	scan, err := scans.LatestByOrgAfter(ctx, decision.OrgID, *decision.ResolvedAt)
	if err == nil {
		return scan, true, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return posture.Scan{}, false, err
	}

	scan, err = scans.LatestByDomainAfter(ctx, decision.Domain, decision.CreatedAt)
	if err == nil {
		return scan, true, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return posture.Scan{}, false, err
	}
	return posture.Scan{}, false, nil
}
