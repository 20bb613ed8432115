package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/threatveil/core/pkg/posture"
)

type decisionRow struct {
	ID                 string         `db:"id"`
	ScanID             string         `db:"scan_id"`
	OrgID              string         `db:"org_id"`
	AssetID            string         `db:"asset_id"`
	Domain             string         `db:"domain"`
	ActionID           string         `db:"action_id"`
	Title              string         `db:"title"`
	RecommendedFix     string         `db:"recommended_fix"`
	Effort             string         `db:"effort"`
	EstimatedReduction int            `db:"estimated_reduction"`
	Priority           int            `db:"priority"`
	Status             string         `db:"status"`
	BeforeScore        int            `db:"before_score"`
	AfterScore         sql.NullInt64  `db:"after_score"`
	ResolvedAt         sql.NullTime   `db:"resolved_at"`
	AcceptedAt         sql.NullTime   `db:"accepted_at"`
	VerifiedAt         sql.NullTime   `db:"verified_at"`
	VerificationScanID sql.NullString `db:"verification_scan_id"`
	ConfidenceScore    float64        `db:"confidence_score"`
	ConfidenceReason   string         `db:"confidence_reason"`
	BusinessImpact     string         `db:"business_impact"`
	CreatedAt          time.Time      `db:"created_at"`
}

func (r decisionRow) toPosture() posture.SecurityDecision {
	d := posture.SecurityDecision{
		ID: r.ID, ScanID: r.ScanID, OrgID: r.OrgID, AssetID: r.AssetID, Domain: r.Domain, ActionID: r.ActionID,
		Title: r.Title, RecommendedFix: r.RecommendedFix, Effort: r.Effort, EstimatedReduction: r.EstimatedReduction,
		Priority: r.Priority, Status: posture.DecisionStatus(r.Status), BeforeScore: r.BeforeScore,
		ConfidenceScore: r.ConfidenceScore, ConfidenceReason: r.ConfidenceReason, BusinessImpact: r.BusinessImpact,
		CreatedAt: r.CreatedAt,
	}
	if r.AfterScore.Valid {
		v := int(r.AfterScore.Int64)
		d.AfterScore = &v
	}
	if r.ResolvedAt.Valid {
		d.ResolvedAt = &r.ResolvedAt.Time
	}
	if r.AcceptedAt.Valid {
		d.AcceptedAt = &r.AcceptedAt.Time
	}
	if r.VerifiedAt.Valid {
		d.VerifiedAt = &r.VerifiedAt.Time
	}
	if r.VerificationScanID.Valid {
		v := r.VerificationScanID.String
		d.VerificationScanID = &v
	}
	return d
}

const decisionColumns = `id, scan_id, org_id, asset_id, domain, action_id, title, recommended_fix, effort,
	estimated_reduction, priority, status, before_score, after_score, resolved_at, accepted_at, verified_at,
	verification_scan_id, confidence_score, confidence_reason, business_impact, created_at`

func (s *Store) decisionsByQuery(ctx context.Context, query string, args ...interface{}) ([]posture.SecurityDecision, error) {
	var rows []decisionRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	out := make([]posture.SecurityDecision, len(rows))
	for i, r := range rows {
		out[i] = r.toPosture()
	}
	return out, nil
}

func (s *Store) GetDecision(ctx context.Context, id string) (posture.SecurityDecision, error) {
	var row decisionRow
	err := s.db.GetContext(ctx, &row, `SELECT `+decisionColumns+` FROM decisions WHERE id = $1`, id)
	if err != nil {
		return posture.SecurityDecision{}, wrapNotFound(err)
	}
	return row.toPosture(), nil
}

func (s *Store) ListByScan(ctx context.Context, scanID string) ([]posture.SecurityDecision, error) {
	out, err := s.decisionsByQuery(ctx, `SELECT `+decisionColumns+` FROM decisions WHERE scan_id = $1 ORDER BY priority`, scanID)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list decisions by scan: %w", err)
	}
	return out, nil
}

func (s *Store) ListByAsset(ctx context.Context, assetID string) ([]posture.SecurityDecision, error) {
	out, err := s.decisionsByQuery(ctx, `SELECT `+decisionColumns+` FROM decisions WHERE asset_id = $1 ORDER BY created_at DESC`, assetID)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list decisions by asset: %w", err)
	}
	return out, nil
}

func (s *Store) ListResolvedUnverified(ctx context.Context, assetID string) ([]posture.SecurityDecision, error) {
	out, err := s.decisionsByQuery(ctx, `
		SELECT `+decisionColumns+` FROM decisions WHERE asset_id = $1 AND status = $2 AND verified_at IS NULL
	`, assetID, posture.DecisionResolved)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list resolved unverified decisions: %w", err)
	}
	return out, nil
}

func (s *Store) ListByOrgSince(ctx context.Context, orgID string, since time.Time) ([]posture.SecurityDecision, error) {
	out, err := s.decisionsByQuery(ctx, `
		SELECT `+decisionColumns+` FROM decisions WHERE org_id = $1 AND created_at >= $2 ORDER BY created_at
	`, orgID, since)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list decisions since: %w", err)
	}
	return out, nil
}

func (s *Store) CreateDecision(ctx context.Context, d posture.SecurityDecision) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO decisions (id, scan_id, org_id, asset_id, domain, action_id, title, recommended_fix, effort,
			estimated_reduction, priority, status, before_score, after_score, resolved_at, accepted_at, verified_at,
			verification_scan_id, confidence_score, confidence_reason, business_impact, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
	`, d.ID, d.ScanID, d.OrgID, d.AssetID, d.Domain, d.ActionID, d.Title, d.RecommendedFix, d.Effort,
		d.EstimatedReduction, d.Priority, d.Status, d.BeforeScore, d.AfterScore, d.ResolvedAt, d.AcceptedAt,
		d.VerifiedAt, d.VerificationScanID, d.ConfidenceScore, d.ConfidenceReason, d.BusinessImpact, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("pgstore: create decision: %w", err)
	}
	return nil
}

func (s *Store) UpdateDecision(ctx context.Context, d posture.SecurityDecision) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE decisions SET status = $1, after_score = $2, resolved_at = $3, accepted_at = $4, verified_at = $5,
			verification_scan_id = $6, confidence_score = $7, confidence_reason = $8, business_impact = $9
		WHERE id = $10
	`, d.Status, d.AfterScore, d.ResolvedAt, d.AcceptedAt, d.VerifiedAt, d.VerificationScanID,
		d.ConfidenceScore, d.ConfidenceReason, d.BusinessImpact, d.ID)
	if err != nil {
		return fmt.Errorf("pgstore: update decision: %w", err)
	}
	return nil
}
