package verification

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatveil/core/pkg/decision"
	"github.com/threatveil/core/pkg/posture"
	"github.com/threatveil/core/pkg/signal"
	"github.com/threatveil/core/pkg/store/memstore"
)

func TestAutoVerify_AdvancesWhenTriggerGone(t *testing.T) {
	s := memstore.New()
	lc := decision.NewLifecycle(s, s, s)
	av := NewAutoVerifier(s, s, s, lc)
	ctx := context.Background()
	resolvedAt := time.Now().Add(-time.Hour)

	require.NoError(t, s.CreateScan(ctx, posture.Scan{
		ID: "scan-before", OrgID: "org1", Domain: "acme.com", RiskScore: 80,
		Signals: []signal.Signal{
			signal.New(signal.Params{ID: "cve_1", Category: signal.CategorySoftware, Severity: signal.SeverityHigh}),
		},
		CreatedAt: resolvedAt.Add(-time.Hour),
	}))

	d := posture.SecurityDecision{
		ID: "d1", ScanID: "scan-before", OrgID: "org1", AssetID: "asset1", Domain: "acme.com",
		ActionID: "patch-cves", Status: posture.DecisionResolved, ResolvedAt: &resolvedAt,
		BeforeScore: 80, CreatedAt: resolvedAt.Add(-2 * time.Hour),
	}
	require.NoError(t, s.CreateDecision(ctx, d))

	newScan := posture.Scan{
		ID: "scan-after", OrgID: "org1", Domain: "acme.com", RiskScore: 40,
		Signals: []signal.Signal{}, CreatedAt: time.Now(),
	}

	err := av.AutoVerify(ctx, "asset1", newScan)
	require.NoError(t, err)

	got, err := s.GetDecision(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, posture.DecisionVerified, got.Status)
}

func TestAutoVerify_SkipsDecisionResolvedAfterScan(t *testing.T) {
	s := memstore.New()
	lc := decision.NewLifecycle(s, s, s)
	av := NewAutoVerifier(s, s, s, lc)
	ctx := context.Background()

	scanTime := time.Now().Add(-time.Hour)
	resolvedAfterScan := time.Now()

	require.NoError(t, s.CreateScan(ctx, posture.Scan{
		ID: "scan-before", OrgID: "org1", Domain: "acme.com", RiskScore: 80,
		CreatedAt: resolvedAfterScan.Add(-2 * time.Hour),
	}))

	d := posture.SecurityDecision{
		ID: "d1", ScanID: "scan-before", OrgID: "org1", AssetID: "asset1", Domain: "acme.com",
		ActionID: "patch-cves", Status: posture.DecisionResolved, ResolvedAt: &resolvedAfterScan,
		BeforeScore: 80, CreatedAt: resolvedAfterScan.Add(-3 * time.Hour),
	}
	require.NoError(t, s.CreateDecision(ctx, d))

	newScan := posture.Scan{ID: "scan-after", OrgID: "org1", Domain: "acme.com", CreatedAt: scanTime}

	require.NoError(t, av.AutoVerify(ctx, "asset1", newScan))

	got, err := s.GetDecision(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, posture.DecisionResolved, got.Status)
}
