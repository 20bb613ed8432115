// Package orgagg implements the Org Aggregator (spec.md §2): a
// weighted roll-up of per-asset risk into a single org-level risk
// figure, plus trend windows and the weekly brief payload that the
// Webhook Dispatcher and mailer both consume. Grounded on the teacher's
// internal/history velocity/acceleration window analysis
// (history.Analyze), adapted from cost burn-rate to risk trend, and on
// original_source/backend/services/horizon/horizon_service.py's
// per-company multi-domain aggregation shape.
package orgagg

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/threatveil/core/pkg/posture"
	"github.com/threatveil/core/pkg/store"
)

// AssetRisk is one asset's contribution to the org roll-up.
type AssetRisk struct {
	AssetID      string
	Identifier   string
	RiskScore    int
	RiskWeight   float64
	WeightedRisk float64
}

// Trend holds the velocity/acceleration derivatives of an org's
// aggregate risk score over its recent weekly scan history.
type Trend struct {
	Velocity     float64 // risk points / day
	Acceleration float64 // risk points / day^2
	Alerts       []string
}

// WeeklyBrief is the digest emitted on the weekly_brief.generated
// webhook event and rendered by the mailer.
type WeeklyBrief struct {
	OrgID             string
	GeneratedAt       time.Time
	AggregateRisk     int
	TopRisks          []AssetRisk
	Trend             Trend
	DecisionsCreated  int
	DecisionsResolved int
	DecisionsVerified int
}

// Aggregator computes org-level risk roll-ups from per-asset Scan
// history and recent Decision activity.
type Aggregator struct {
	Assets    store.AssetStore
	Scans     store.ScanStore
	Decisions store.DecisionStore
}

func New(assets store.AssetStore, scans store.ScanStore, decisions store.DecisionStore) *Aggregator {
	return &Aggregator{Assets: assets, Scans: scans, Decisions: decisions}
}

// AggregateRisk computes the weighted roll-up of every active asset
// that has a last risk score (Asset.risk_weight, 0.1-2.0 per
// spec.md §3, times the asset's last_risk_score), normalized back into
// 0-100 by dividing by the sum of weights.
func (a *Aggregator) AggregateRisk(ctx context.Context, orgID string) (int, []AssetRisk, error) {
	assets, err := a.Assets.ListByOrg(ctx, orgID)
	if err != nil {
		return 0, nil, fmt.Errorf("orgagg: list assets: %w", err)
	}

	var risks []AssetRisk
	var weightedSum, weightSum float64
	for _, asset := range assets {
		if asset.Status != posture.AssetActive || asset.LastRiskScore == nil {
			continue
		}
		weight := asset.RiskWeight
		if weight <= 0 {
			weight = 1.0
		}
		weighted := float64(*asset.LastRiskScore) * weight
		risks = append(risks, AssetRisk{
			AssetID: asset.ID, Identifier: asset.Identifier,
			RiskScore: *asset.LastRiskScore, RiskWeight: weight, WeightedRisk: weighted,
		})
		weightedSum += weighted
		weightSum += weight
	}

	if weightSum == 0 {
		return 0, risks, nil
	}

	sort.Slice(risks, func(i, j int) bool { return risks[i].WeightedRisk > risks[j].WeightedRisk })

	return int(weightedSum / weightSum), risks, nil
}

// Trend derives velocity/acceleration of an org's weighted aggregate
// risk over its last three weekly snapshots, the same three-point
// finite-difference scheme as history.Analyze, generalized from
// $/month-per-hour to risk-points-per-day.
func (a *Aggregator) Trend(ctx context.Context, orgID string, asOf time.Time) (Trend, error) {
	since := asOf.Add(-21 * 24 * time.Hour)
	scans, err := a.Scans.ListByOrgSinceScan(ctx, orgID, since)
	if err != nil {
		return Trend{}, fmt.Errorf("orgagg: list scans since: %w", err)
	}
	weekly := weeklyBuckets(scans, asOf)
	return analyzeTrend(weekly), nil
}

// weeklyBuckets reduces a Scan slice to one risk-score sample per
// 7-day bucket (the latest scan in each bucket), ordered oldest-first.
func weeklyBuckets(scans []posture.Scan, asOf time.Time) []sample {
	buckets := map[int]sample{}
	for _, s := range scans {
		age := asOf.Sub(s.CreatedAt)
		if age < 0 {
			continue
		}
		week := int(age / (7 * 24 * time.Hour))
		if existing, ok := buckets[week]; !ok || s.CreatedAt.After(existing.at) {
			buckets[week] = sample{at: s.CreatedAt, risk: float64(s.RiskScore)}
		}
	}

	weeks := make([]int, 0, len(buckets))
	for w := range buckets {
		weeks = append(weeks, w)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(weeks)))

	out := make([]sample, 0, len(weeks))
	for _, w := range weeks {
		out = append(out, buckets[w])
	}
	return out
}

type sample struct {
	at   time.Time
	risk float64
}

// analyzeTrend is the risk-domain analogue of history.Analyze: first
// and second finite differences over the three most recent weekly
// samples.
func analyzeTrend(weekly []sample) Trend {
	if len(weekly) < 2 {
		return Trend{}
	}

	n := len(weekly)
	prev, current := weekly[n-2], weekly[n-1]
	daysDelta := current.at.Sub(prev.at).Hours() / 24
	if daysDelta == 0 {
		return Trend{}
	}
	velocity := (current.risk - prev.risk) / daysDelta

	var acceleration float64
	if n >= 3 {
		prev2 := weekly[n-3]
		daysDelta2 := prev.at.Sub(prev2.at).Hours() / 24
		if daysDelta2 > 0 {
			prevVelocity := (prev.risk - prev2.risk) / daysDelta2
			acceleration = (velocity - prevVelocity) / daysDelta
		}
	}

	var alerts []string
	if velocity > 10 {
		alerts = append(alerts, fmt.Sprintf("risk climbing fast: +%.1f points/day", velocity))
	}
	if acceleration > 5 {
		alerts = append(alerts, fmt.Sprintf("risk trend accelerating: +%.1f points/day^2", acceleration))
	}

	return Trend{Velocity: velocity, Acceleration: acceleration, Alerts: alerts}
}

// WeeklyBrief assembles the full weekly digest: aggregate risk, top
// risk contributors, trend, and decision-activity counts over the
// preceding 7 days.
func (a *Aggregator) WeeklyBrief(ctx context.Context, orgID string, asOf time.Time) (WeeklyBrief, error) {
	aggregate, risks, err := a.AggregateRisk(ctx, orgID)
	if err != nil {
		return WeeklyBrief{}, err
	}
	trend, err := a.Trend(ctx, orgID, asOf)
	if err != nil {
		return WeeklyBrief{}, err
	}

	since := asOf.Add(-7 * 24 * time.Hour)
	decisions, err := a.Decisions.ListByOrgSince(ctx, orgID, since)
	if err != nil {
		return WeeklyBrief{}, fmt.Errorf("orgagg: list decisions since: %w", err)
	}

	var resolved, verified int
	for _, d := range decisions {
		if d.ResolvedAt != nil && d.ResolvedAt.After(since) {
			resolved++
		}
		if d.VerifiedAt != nil && d.VerifiedAt.After(since) {
			verified++
		}
	}

	top := risks
	if len(top) > 5 {
		top = top[:5]
	}

	return WeeklyBrief{
		OrgID: orgID, GeneratedAt: asOf, AggregateRisk: aggregate, TopRisks: top, Trend: trend,
		DecisionsCreated: len(decisions), DecisionsResolved: resolved, DecisionsVerified: verified,
	}, nil
}
