package pgstore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/threatveil/core/pkg/posture"
)

type orgRow struct {
	ID             string       `db:"id"`
	PrimaryDomain  string       `db:"primary_domain"`
	Plan           string       `db:"plan"`
	ScansThisMonth int          `db:"scans_this_month"`
	ScansLimit     int          `db:"scans_limit"`
	CreatedAt      sql.NullTime `db:"created_at"`
}

func (r orgRow) toPosture() posture.Organization {
	return posture.Organization{
		ID: r.ID, PrimaryDomain: r.PrimaryDomain, Plan: posture.PlanTier(r.Plan),
		ScansThisMonth: r.ScansThisMonth, ScansLimit: r.ScansLimit, CreatedAt: r.CreatedAt.Time,
	}
}

func (s *Store) Get(ctx context.Context, id string) (posture.Organization, error) {
	var row orgRow
	err := s.db.GetContext(ctx, &row, `SELECT id, primary_domain, plan, scans_this_month, scans_limit, created_at FROM organizations WHERE id = $1`, id)
	if err != nil {
		return posture.Organization{}, wrapNotFound(err)
	}
	return row.toPosture(), nil
}

func (s *Store) FindByDomain(ctx context.Context, domain string) (posture.Organization, error) {
	var row orgRow
	err := s.db.GetContext(ctx, &row, `SELECT id, primary_domain, plan, scans_this_month, scans_limit, created_at FROM organizations WHERE primary_domain = $1`, domain)
	if err != nil {
		return posture.Organization{}, wrapNotFound(err)
	}
	return row.toPosture(), nil
}

func (s *Store) Create(ctx context.Context, org posture.Organization) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO organizations (id, primary_domain, plan, scans_this_month, scans_limit, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, org.ID, org.PrimaryDomain, org.Plan, org.ScansThisMonth, org.ScansLimit, org.CreatedAt)
	if err != nil {
		return fmt.Errorf("pgstore: create organization: %w", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, org posture.Organization) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE organizations SET plan = $1, scans_this_month = $2, scans_limit = $3 WHERE id = $4
	`, org.Plan, org.ScansThisMonth, org.ScansLimit, org.ID)
	if err != nil {
		return fmt.Errorf("pgstore: update organization: %w", err)
	}
	return nil
}

func (s *Store) IncrementScanCount(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE organizations SET scans_this_month = scans_this_month + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("pgstore: increment scan count: %w", err)
	}
	return nil
}
