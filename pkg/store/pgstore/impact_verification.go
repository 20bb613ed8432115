package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/threatveil/core/pkg/posture"
)

type impactRow struct {
	ID         string        `db:"id"`
	DecisionID string        `db:"decision_id"`
	RiskBefore int           `db:"risk_before"`
	RiskAfter  sql.NullInt64 `db:"risk_after"`
	Delta      sql.NullInt64 `db:"delta"`
	Confidence float64       `db:"confidence"`
	Notes      string        `db:"notes"`
	CreatedAt  time.Time     `db:"created_at"`
	UpdatedAt  time.Time     `db:"updated_at"`
}

func (r impactRow) toPosture() posture.DecisionImpact {
	im := posture.DecisionImpact{
		ID: r.ID, DecisionID: r.DecisionID, RiskBefore: r.RiskBefore,
		Confidence: posture.ConfidenceTier(r.Confidence), Notes: r.Notes,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
	if r.RiskAfter.Valid {
		v := int(r.RiskAfter.Int64)
		im.RiskAfter = &v
	}
	if r.Delta.Valid {
		v := int(r.Delta.Int64)
		im.Delta = &v
	}
	return im
}

func (s *Store) GetByDecision(ctx context.Context, decisionID string) (posture.DecisionImpact, error) {
	var row impactRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, decision_id, risk_before, risk_after, delta, confidence, notes, created_at, updated_at
		FROM decision_impacts WHERE decision_id = $1
	`, decisionID)
	if err != nil {
		return posture.DecisionImpact{}, wrapNotFound(err)
	}
	return row.toPosture(), nil
}

// Upsert matches the one-to-one Decision<->DecisionImpact relationship
// (spec.md §3): a decision re-entering `resolved` replaces its prior
// impact row rather than accumulating history.
func (s *Store) Upsert(ctx context.Context, im posture.DecisionImpact) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decision_impacts (id, decision_id, risk_before, risk_after, delta, confidence, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (decision_id) DO UPDATE SET
			risk_before = EXCLUDED.risk_before, risk_after = EXCLUDED.risk_after, delta = EXCLUDED.delta,
			confidence = EXCLUDED.confidence, notes = EXCLUDED.notes, updated_at = EXCLUDED.updated_at
	`, im.ID, im.DecisionID, im.RiskBefore, im.RiskAfter, im.Delta, im.Confidence, im.Notes, im.CreatedAt, im.UpdatedAt)
	if err != nil {
		return fmt.Errorf("pgstore: upsert decision impact: %w", err)
	}
	return nil
}

func (s *Store) DeleteByDecision(ctx context.Context, decisionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM decision_impacts WHERE decision_id = $1`, decisionID)
	if err != nil {
		return fmt.Errorf("pgstore: delete decision impact: %w", err)
	}
	return nil
}

type verificationRunRow struct {
	ID         string    `db:"id"`
	DecisionID string    `db:"decision_id"`
	Result     string    `db:"result"`
	Confidence float64   `db:"confidence"`
	Notes      string    `db:"notes"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r verificationRunRow) toPosture() posture.DecisionVerificationRun {
	return posture.DecisionVerificationRun{
		ID: r.ID, DecisionID: r.DecisionID, Result: posture.VerificationResult(r.Result),
		Confidence: posture.ConfidenceTier(r.Confidence), Notes: r.Notes, CreatedAt: r.CreatedAt,
	}
}

func (s *Store) CreateVerificationRun(ctx context.Context, run posture.DecisionVerificationRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decision_verification_runs (id, decision_id, result, confidence, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, run.ID, run.DecisionID, run.Result, run.Confidence, run.Notes, run.CreatedAt)
	if err != nil {
		return fmt.Errorf("pgstore: create verification run: %w", err)
	}
	return nil
}

func (s *Store) ListByDecision(ctx context.Context, decisionID string) ([]posture.DecisionVerificationRun, error) {
	var rows []verificationRunRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, decision_id, result, confidence, notes, created_at
		FROM decision_verification_runs WHERE decision_id = $1 ORDER BY created_at
	`, decisionID)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list verification runs: %w", err)
	}
	out := make([]posture.DecisionVerificationRun, len(rows))
	for i, r := range rows {
		out[i] = r.toPosture()
	}
	return out, nil
}

func (s *Store) CreateEvidence(ctx context.Context, ev posture.DecisionEvidence) error {
	payload, err := toJSON(ev.Payload)
	if err != nil {
		return fmt.Errorf("pgstore: marshal evidence payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decision_evidence (id, decision_id, stage, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.ID, ev.DecisionID, ev.Stage, payload, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("pgstore: create decision evidence: %w", err)
	}
	return nil
}
