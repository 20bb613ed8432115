package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/threatveil/core/pkg/posture"
)

type assetRow struct {
	ID            string         `db:"id"`
	OrgID         string         `db:"org_id"`
	Type          string         `db:"type"`
	Identifier    string         `db:"identifier"`
	RiskWeight    float64        `db:"risk_weight"`
	Priority      int            `db:"priority"`
	Frequency     string         `db:"frequency"`
	Status        string         `db:"status"`
	LastScanAt    sql.NullTime   `db:"last_scan_at"`
	NextScanAt    sql.NullTime   `db:"next_scan_at"`
	LastRiskScore sql.NullInt64  `db:"last_risk_score"`
	CreatedAt     sql.NullTime   `db:"created_at"`
}

func (r assetRow) toPosture() posture.Asset {
	a := posture.Asset{
		ID: r.ID, OrgID: r.OrgID, Type: posture.AssetType(r.Type), Identifier: r.Identifier,
		RiskWeight: r.RiskWeight, Priority: r.Priority, Frequency: posture.ScanFrequency(r.Frequency),
		Status: posture.AssetStatus(r.Status), CreatedAt: r.CreatedAt.Time,
	}
	if r.LastScanAt.Valid {
		a.LastScanAt = &r.LastScanAt.Time
	}
	if r.NextScanAt.Valid {
		a.NextScanAt = &r.NextScanAt.Time
	}
	if r.LastRiskScore.Valid {
		v := int(r.LastRiskScore.Int64)
		a.LastRiskScore = &v
	}
	return a
}

const assetColumns = `id, org_id, type, identifier, risk_weight, priority, frequency, status, last_scan_at, next_scan_at, last_risk_score, created_at`

func (s *Store) GetAsset(ctx context.Context, id string) (posture.Asset, error) {
	var row assetRow
	err := s.db.GetContext(ctx, &row, `SELECT `+assetColumns+` FROM assets WHERE id = $1`, id)
	if err != nil {
		return posture.Asset{}, wrapNotFound(err)
	}
	return row.toPosture(), nil
}

func (s *Store) ListByOrg(ctx context.Context, orgID string) ([]posture.Asset, error) {
	var rows []assetRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+assetColumns+` FROM assets WHERE org_id = $1 ORDER BY created_at`, orgID); err != nil {
		return nil, fmt.Errorf("pgstore: list assets by org: %w", err)
	}
	out := make([]posture.Asset, len(rows))
	for i, r := range rows {
		out[i] = r.toPosture()
	}
	return out, nil
}

// ListDue selects status=active, frequency != manual, next_scan_at <=
// asOf assets — the scheduler's due-asset criterion (spec.md §4.9).
func (s *Store) ListDue(ctx context.Context, asOf time.Time) ([]posture.Asset, error) {
	var rows []assetRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+assetColumns+` FROM assets
		WHERE status = $1 AND frequency != $2 AND next_scan_at <= $3
	`, posture.AssetActive, posture.FrequencyManual, asOf)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list due assets: %w", err)
	}
	out := make([]posture.Asset, len(rows))
	for i, r := range rows {
		out[i] = r.toPosture()
	}
	return out, nil
}

func (s *Store) CreateAsset(ctx context.Context, a posture.Asset) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assets (id, org_id, type, identifier, risk_weight, priority, frequency, status, last_scan_at, next_scan_at, last_risk_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, a.ID, a.OrgID, a.Type, a.Identifier, a.RiskWeight, a.Priority, a.Frequency, a.Status, a.LastScanAt, a.NextScanAt, a.LastRiskScore, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("pgstore: create asset: %w", err)
	}
	return nil
}

func (s *Store) UpdateAsset(ctx context.Context, a posture.Asset) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE assets SET risk_weight = $1, priority = $2, frequency = $3, status = $4,
			last_scan_at = $5, next_scan_at = $6, last_risk_score = $7
		WHERE id = $8
	`, a.RiskWeight, a.Priority, a.Frequency, a.Status, a.LastScanAt, a.NextScanAt, a.LastRiskScore, a.ID)
	if err != nil {
		return fmt.Errorf("pgstore: update asset: %w", err)
	}
	return nil
}
