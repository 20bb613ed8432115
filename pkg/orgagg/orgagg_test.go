package orgagg

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatveil/core/pkg/posture"
	"github.com/threatveil/core/pkg/store/memstore"
)

func riskScore(n int) *int { return &n }

func TestAggregateRisk_WeightsByAssetRiskWeight(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()

	require.NoError(t, s.CreateAsset(ctx, posture.Asset{
		ID: "a1", OrgID: "org1", Type: posture.AssetDomain, Identifier: "high.com",
		Status: posture.AssetActive, RiskWeight: 2.0, LastRiskScore: riskScore(80), CreatedAt: time.Now(),
	}))
	require.NoError(t, s.CreateAsset(ctx, posture.Asset{
		ID: "a2", OrgID: "org1", Type: posture.AssetDomain, Identifier: "low.com",
		Status: posture.AssetActive, RiskWeight: 0.5, LastRiskScore: riskScore(20), CreatedAt: time.Now(),
	}))
	require.NoError(t, s.CreateAsset(ctx, posture.Asset{
		ID: "a3", OrgID: "org1", Type: posture.AssetDomain, Identifier: "paused.com",
		Status: posture.AssetPaused, RiskWeight: 1.0, LastRiskScore: riskScore(99), CreatedAt: time.Now(),
	}))

	agg := New(s, s, s)
	aggregate, risks, err := agg.AggregateRisk(ctx, "org1")
	require.NoError(t, err)

	// (80*2.0 + 20*0.5) / (2.0+0.5) = 170/2.5 = 68
	assert.Equal(t, 68, aggregate)
	require.Len(t, risks, 2)
	assert.Equal(t, "high.com", risks[0].Identifier)
}

func TestAggregateRisk_NoActiveAssetsIsZero(t *testing.T) {
	s := memstore.New()
	agg := New(s, s, s)
	aggregate, risks, err := agg.AggregateRisk(context.Background(), "org1")
	require.NoError(t, err)
	assert.Equal(t, 0, aggregate)
	assert.Empty(t, risks)
}

func TestTrend_RisingRiskProducesPositiveVelocityAndAlert(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	asOf := time.Date(2026, 3, 22, 0, 0, 0, 0, time.UTC)

	scans := []posture.Scan{
		{ID: "s1", OrgID: "org1", Domain: "acme.com", RiskScore: 20, CreatedAt: asOf.Add(-20 * 24 * time.Hour)},
		{ID: "s2", OrgID: "org1", Domain: "acme.com", RiskScore: 45, CreatedAt: asOf.Add(-13 * 24 * time.Hour)},
		{ID: "s3", OrgID: "org1", Domain: "acme.com", RiskScore: 90, CreatedAt: asOf.Add(-6 * 24 * time.Hour)},
	}
	for _, sc := range scans {
		require.NoError(t, s.CreateScan(ctx, sc))
	}

	agg := New(s, s, s)
	trend, err := agg.Trend(ctx, "org1", asOf)
	require.NoError(t, err)

	assert.Greater(t, trend.Velocity, 0.0)
	assert.NotEmpty(t, trend.Alerts)
}

func TestWeeklyBrief_CountsDecisionActivitySinceCutoff(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	asOf := time.Date(2026, 3, 22, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateAsset(ctx, posture.Asset{
		ID: "a1", OrgID: "org1", Type: posture.AssetDomain, Identifier: "acme.com",
		Status: posture.AssetActive, RiskWeight: 1.0, LastRiskScore: riskScore(55), CreatedAt: asOf,
	}))

	resolvedAt := asOf.Add(-2 * 24 * time.Hour)
	staleResolvedAt := asOf.Add(-20 * 24 * time.Hour)
	require.NoError(t, s.CreateDecision(ctx, posture.SecurityDecision{
		ID: "d1", OrgID: "org1", Domain: "acme.com", ActionID: "key-rotation",
		Status: posture.DecisionResolved, ResolvedAt: &resolvedAt, CreatedAt: resolvedAt,
	}))
	require.NoError(t, s.CreateDecision(ctx, posture.SecurityDecision{
		ID: "d2", OrgID: "org1", Domain: "acme.com", ActionID: "enable-hsts",
		Status: posture.DecisionResolved, ResolvedAt: &staleResolvedAt, CreatedAt: staleResolvedAt,
	}))

	agg := New(s, s, s)
	brief, err := agg.WeeklyBrief(ctx, "org1", asOf)
	require.NoError(t, err)

	assert.Equal(t, 55, brief.AggregateRisk)
	assert.Equal(t, 1, brief.DecisionsResolved)
}
