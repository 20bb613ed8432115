package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/threatveil/core/pkg/posture"
)

type scheduleRow struct {
	ID         string         `db:"id"`
	AssetID    string         `db:"asset_id"`
	Frequency  string         `db:"frequency"`
	NextRunAt  time.Time      `db:"next_run_at"`
	LastRunAt  sql.NullTime   `db:"last_run_at"`
	LastScanID sql.NullString `db:"last_scan_id"`
	Status     string         `db:"status"`
	RunCount   int            `db:"run_count"`
	ErrorCount int            `db:"error_count"`
	LastError  string         `db:"last_error"`
}

func (r scheduleRow) toPosture() posture.ScanSchedule {
	sch := posture.ScanSchedule{
		ID: r.ID, AssetID: r.AssetID, Frequency: posture.ScanFrequency(r.Frequency), NextRunAt: r.NextRunAt,
		Status: posture.ScheduleStatus(r.Status), RunCount: r.RunCount, ErrorCount: r.ErrorCount, LastError: r.LastError,
	}
	if r.LastRunAt.Valid {
		sch.LastRunAt = &r.LastRunAt.Time
	}
	if r.LastScanID.Valid {
		v := r.LastScanID.String
		sch.LastScanID = &v
	}
	return sch
}

const scheduleColumns = `id, asset_id, frequency, next_run_at, last_run_at, last_scan_id, status, run_count, error_count, last_error`

func (s *Store) GetSchedule(ctx context.Context, assetID string) (posture.ScanSchedule, error) {
	var row scheduleRow
	err := s.db.GetContext(ctx, &row, `SELECT `+scheduleColumns+` FROM scan_schedules WHERE asset_id = $1`, assetID)
	if err != nil {
		return posture.ScanSchedule{}, wrapNotFound(err)
	}
	return row.toPosture(), nil
}

// UpsertSchedule keeps the one-to-one Asset<->ScanSchedule relationship
// (spec.md §3) by keying the conflict on asset_id.
func (s *Store) UpsertSchedule(ctx context.Context, sched posture.ScanSchedule) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scan_schedules (id, asset_id, frequency, next_run_at, last_run_at, last_scan_id, status, run_count, error_count, last_error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (asset_id) DO UPDATE SET
			frequency = EXCLUDED.frequency, next_run_at = EXCLUDED.next_run_at, last_run_at = EXCLUDED.last_run_at,
			last_scan_id = EXCLUDED.last_scan_id, status = EXCLUDED.status, run_count = EXCLUDED.run_count,
			error_count = EXCLUDED.error_count, last_error = EXCLUDED.last_error
	`, sched.ID, sched.AssetID, sched.Frequency, sched.NextRunAt, sched.LastRunAt, sched.LastScanID,
		sched.Status, sched.RunCount, sched.ErrorCount, sched.LastError)
	if err != nil {
		return fmt.Errorf("pgstore: upsert schedule: %w", err)
	}
	return nil
}

func (s *Store) ListDueSchedules(ctx context.Context, asOf time.Time) ([]posture.ScanSchedule, error) {
	var rows []scheduleRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+scheduleColumns+` FROM scan_schedules WHERE status = $1 AND next_run_at <= $2
	`, posture.ScheduleActive, asOf)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list due schedules: %w", err)
	}
	out := make([]posture.ScanSchedule, len(rows))
	for i, r := range rows {
		out[i] = r.toPosture()
	}
	return out, nil
}
