package pgstore

import (
	"context"
	"fmt"
	"time"

	"github.com/threatveil/core/pkg/posture"
	"github.com/threatveil/core/pkg/signal"
)

type scanRow struct {
	ID                  string    `db:"id"`
	OrgID               string    `db:"org_id"`
	Domain              string    `db:"domain"`
	GitHubOrg           string    `db:"github_org"`
	RiskScore           int       `db:"risk_score"`
	CategoryScores      []byte    `db:"category_scores"`
	Signals             []byte    `db:"signals"`
	Summary             string    `db:"summary"`
	BreachLikelihood30d float64   `db:"breach_likelihood_30d"`
	BreachLikelihood90d float64   `db:"breach_likelihood_90d"`
	RawPayload          []byte    `db:"raw_payload"`
	PartialFailures     int       `db:"partial_failures"`
	AIScore             int       `db:"ai_score"`
	CreatedAt           time.Time `db:"created_at"`
}

func (r scanRow) toPosture() (posture.Scan, error) {
	sc := posture.Scan{
		ID: r.ID, OrgID: r.OrgID, Domain: r.Domain, GitHubOrg: r.GitHubOrg, RiskScore: r.RiskScore,
		Summary: r.Summary, BreachLikelihood30d: r.BreachLikelihood30d, BreachLikelihood90d: r.BreachLikelihood90d,
		PartialFailures: r.PartialFailures, AIScore: r.AIScore, CreatedAt: r.CreatedAt,
	}
	var categoryScores map[string]posture.CategoryScore
	if err := fromJSON(r.CategoryScores, &categoryScores); err != nil {
		return posture.Scan{}, err
	}
	sc.CategoryScores = categoryScores

	var signals []signal.Signal
	if err := fromJSON(r.Signals, &signals); err != nil {
		return posture.Scan{}, err
	}
	sc.Signals = signals

	var rawPayload map[string]interface{}
	if err := fromJSON(r.RawPayload, &rawPayload); err != nil {
		return posture.Scan{}, err
	}
	sc.RawPayload = rawPayload
	return sc, nil
}

const scanColumns = `id, org_id, domain, github_org, risk_score, category_scores, signals, summary,
	breach_likelihood_30d, breach_likelihood_90d, raw_payload, partial_failures, ai_score, created_at`

func (s *Store) scanByQuery(ctx context.Context, query string, args ...interface{}) (posture.Scan, error) {
	var row scanRow
	if err := s.db.GetContext(ctx, &row, query, args...); err != nil {
		return posture.Scan{}, wrapNotFound(err)
	}
	return row.toPosture()
}

func (s *Store) GetScan(ctx context.Context, id string) (posture.Scan, error) {
	return s.scanByQuery(ctx, `SELECT `+scanColumns+` FROM scans WHERE id = $1`, id)
}

func (s *Store) LatestByDomain(ctx context.Context, domain string) (posture.Scan, error) {
	return s.scanByQuery(ctx, `SELECT `+scanColumns+` FROM scans WHERE domain = $1 ORDER BY created_at DESC LIMIT 1`, domain)
}

func (s *Store) LatestByDomainAfter(ctx context.Context, domain string, after time.Time) (posture.Scan, error) {
	return s.scanByQuery(ctx, `
		SELECT `+scanColumns+` FROM scans WHERE domain = $1 AND created_at > $2 ORDER BY created_at DESC LIMIT 1
	`, domain, after)
}

func (s *Store) LatestByOrgAfter(ctx context.Context, orgID string, after time.Time) (posture.Scan, error) {
	return s.scanByQuery(ctx, `
		SELECT `+scanColumns+` FROM scans WHERE org_id = $1 AND created_at > $2 ORDER BY created_at DESC LIMIT 1
	`, orgID, after)
}

func (s *Store) ListByOrgSinceScan(ctx context.Context, orgID string, since time.Time) ([]posture.Scan, error) {
	var rows []scanRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+scanColumns+` FROM scans WHERE org_id = $1 AND created_at >= $2 ORDER BY created_at
	`, orgID, since)
	if err != nil {
		return nil, fmt.Errorf("pgstore: list scans since: %w", err)
	}
	out := make([]posture.Scan, 0, len(rows))
	for _, r := range rows {
		sc, err := r.toPosture()
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, nil
}

func (s *Store) CreateScan(ctx context.Context, sc posture.Scan) error {
	categoryScores, err := toJSON(sc.CategoryScores)
	if err != nil {
		return fmt.Errorf("pgstore: marshal category scores: %w", err)
	}
	signals, err := toJSON(sc.Signals)
	if err != nil {
		return fmt.Errorf("pgstore: marshal signals: %w", err)
	}
	rawPayload, err := toJSON(sc.RawPayload)
	if err != nil {
		return fmt.Errorf("pgstore: marshal raw payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scans (id, org_id, domain, github_org, risk_score, category_scores, signals, summary,
			breach_likelihood_30d, breach_likelihood_90d, raw_payload, partial_failures, ai_score, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, sc.ID, sc.OrgID, sc.Domain, sc.GitHubOrg, sc.RiskScore, categoryScores, signals, sc.Summary,
		sc.BreachLikelihood30d, sc.BreachLikelihood90d, rawPayload, sc.PartialFailures, sc.AIScore, sc.CreatedAt)
	if err != nil {
		return fmt.Errorf("pgstore: create scan: %w", err)
	}
	return nil
}
