package decision

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/threatveil/core/pkg/posture"
	"github.com/threatveil/core/pkg/rulefacts"
	"github.com/threatveil/core/pkg/store"
)

// Engine creates and persists SecurityDecisions for a completed Scan.
type Engine struct {
	cel       *CELEngine
	decisions store.DecisionStore
	now       func() time.Time
}

func NewEngine(decisions store.DecisionStore) (*Engine, error) {
	cel, err := NewCELEngine()
	if err != nil {
		return nil, err
	}
	return &Engine{cel: cel, decisions: decisions, now: time.Now}, nil
}

// CreateDecisions is idempotent per scan_id: if Decisions already exist
// for this scan, it returns them unchanged instead of duplicating.
func (e *Engine) CreateDecisions(ctx context.Context, scan posture.Scan, assetID string) ([]posture.SecurityDecision, error) {
	existing, err := e.decisions.ListByScan(ctx, scan.ID)
	if err != nil {
		return nil, fmt.Errorf("decision: list existing decisions: %w", err)
	}
	if len(existing) > 0 {
		return existing, nil
	}

	facts := rulefacts.Derive(scan.Signals)
	matched, err := e.cel.Evaluate(ctx, facts)
	if err != nil {
		return nil, fmt.Errorf("decision: evaluate rules: %w", err)
	}

	created := make([]posture.SecurityDecision, 0, len(matched))
	for _, rule := range matched {
		d := posture.SecurityDecision{
			ID:                 uuid.NewString(),
			ScanID:             scan.ID,
			OrgID:              scan.OrgID,
			AssetID:            assetID,
			Domain:             scan.Domain,
			ActionID:           rule.ActionID,
			Title:              rule.Title,
			RecommendedFix:     rule.Title,
			Effort:             rule.Effort,
			EstimatedReduction: rule.Reduction,
			Priority:           rule.Priority,
			Status:             posture.DecisionPending,
			BeforeScore:        scan.RiskScore,
			CreatedAt:          e.now(),
		}
		if err := e.decisions.CreateDecision(ctx, d); err != nil {
			return nil, fmt.Errorf("decision: persist %s: %w", rule.ActionID, err)
		}
		created = append(created, d)
	}
	return created, nil
}
