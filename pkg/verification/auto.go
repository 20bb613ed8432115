package verification

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/threatveil/core/pkg/decision"
	"github.com/threatveil/core/pkg/posture"
	"github.com/threatveil/core/pkg/store"
)

// AutoVerifier implements pkg/orchestrator.AutoVerifier: the post-scan
// pass (spec.md §4.3 step 9 / §4.8) that advances eligible resolved
// Decisions to verified purely by comparing Signal snapshots — never a
// live re-probe, and with no CandidateWindow.
type AutoVerifier struct {
	Decisions     store.DecisionStore
	Scans         store.ScanStore
	Verifications store.VerificationStore
	Lifecycle     *decision.Lifecycle
	now           func() time.Time
}

func NewAutoVerifier(decisions store.DecisionStore, scans store.ScanStore, verifications store.VerificationStore, lifecycle *decision.Lifecycle) *AutoVerifier {
	return &AutoVerifier{Decisions: decisions, Scans: scans, Verifications: verifications, Lifecycle: lifecycle, now: time.Now}
}

// AutoVerify scans an asset's resolved-but-unverified Decisions and
// advances any whose trigger disappeared by the time of scan. Must never
// fail the enclosing Scan — per-decision errors and panics are swallowed
// without being recorded; only a failure to list the candidates is returned.
func (a *AutoVerifier) AutoVerify(ctx context.Context, assetID string, scan posture.Scan) error {
	candidates, err := a.Decisions.ListResolvedUnverified(ctx, assetID)
	if err != nil {
		return err
	}

	for _, d := range candidates {
		a.tryVerify(ctx, d, scan)
	}
	return nil
}

func (a *AutoVerifier) tryVerify(ctx context.Context, d posture.SecurityDecision, scan posture.Scan) {
	defer func() { recover() }()

	if d.ResolvedAt == nil || d.ResolvedAt.After(scan.CreatedAt) {
		return
	}
	originatingScan, err := a.Scans.GetScan(ctx, d.ScanID)
	if err != nil {
		return
	}

	result, confidence, notes := evaluateFromSignals(d.ActionID, originatingScan.Signals, scan.Signals)
	if result == posture.VerificationPass {
		confidence = posture.ConfidenceCertain
	}

	run := posture.DecisionVerificationRun{
		ID:         uuid.NewString(),
		DecisionID: d.ID,
		Result:     result,
		Confidence: confidence,
		Notes:      notes,
		CreatedAt:  a.now(),
	}
	_ = a.Verifications.CreateVerificationRun(ctx, run)

	if result != posture.VerificationPass {
		return
	}

	d.ConfidenceScore = float64(confidence)
	d.ConfidenceReason = notes
	_, _ = a.Lifecycle.Transition(ctx, d, posture.DecisionVerified)
}
