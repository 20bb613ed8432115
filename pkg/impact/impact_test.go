package impact

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatveil/core/pkg/posture"
	"github.com/threatveil/core/pkg/signal"
	"github.com/threatveil/core/pkg/store/memstore"
)

func TestCompute_NoAfterScanIsUnverifiable(t *testing.T) {
	s := memstore.New()
	resolvedAt := time.Now().Add(-time.Hour)
	decision := posture.SecurityDecision{
		ID: "d1", OrgID: "org1", Domain: "acme.com", ActionID: "key-rotation",
		BeforeScore: 80, ResolvedAt: &resolvedAt, CreatedAt: resolvedAt.Add(-time.Hour),
	}

	got, err := Compute(context.Background(), decision, s, time.Now())
	require.NoError(t, err)
	assert.Equal(t, posture.ConfidenceUnverifiable, got.Confidence)
	assert.Nil(t, got.RiskAfter)
}

func TestCompute_RecentScanTriggerGoneIsCertain(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	resolvedAt := time.Now().Add(-time.Hour)

	require.NoError(t, s.CreateScan(ctx, posture.Scan{
		ID: "s1", OrgID: "org1", Domain: "acme.com",
		RiskScore: 40, CreatedAt: resolvedAt.Add(time.Minute),
		Signals: []signal.Signal{}, // triggering signal gone
	}))

	decision := posture.SecurityDecision{
		ID: "d1", OrgID: "org1", Domain: "acme.com", ActionID: "key-rotation",
		BeforeScore: 80, ResolvedAt: &resolvedAt, CreatedAt: resolvedAt.Add(-time.Hour),
	}

	got, err := Compute(ctx, decision, s, time.Now())
	require.NoError(t, err)
	assert.Equal(t, posture.ConfidenceCertain, got.Confidence)
	require.NotNil(t, got.RiskAfter)
	assert.Equal(t, 40, *got.RiskAfter)
	assert.Equal(t, -40, *got.Delta)
}

func TestCompute_StaleAfterScan(t *testing.T) {
	s := memstore.New()
	ctx := context.Background()
	resolvedAt := time.Now().Add(-20 * 24 * time.Hour)

	require.NoError(t, s.CreateScan(ctx, posture.Scan{
		ID: "s1", OrgID: "org1", Domain: "acme.com",
		RiskScore: 40, CreatedAt: resolvedAt.Add(time.Minute),
	}))

	decision := posture.SecurityDecision{
		ID: "d1", OrgID: "org1", Domain: "acme.com", ActionID: "key-rotation",
		BeforeScore: 80, ResolvedAt: &resolvedAt, CreatedAt: resolvedAt.Add(-time.Hour),
	}

	got, err := Compute(ctx, decision, s, time.Now())
	require.NoError(t, err)
	assert.Equal(t, posture.ConfidenceStale, got.Confidence)
}
