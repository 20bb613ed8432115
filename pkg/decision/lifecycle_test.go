package decision

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatveil/core/pkg/posture"
	"github.com/threatveil/core/pkg/store/memstore"
)

func newLifecycleFixture(t *testing.T) (*Lifecycle, *memstore.Store, posture.SecurityDecision) {
	t.Helper()
	s := memstore.New()
	d := posture.SecurityDecision{
		ID: "d1", ScanID: "scan1", OrgID: "org1", AssetID: "asset1",
		Domain: "acme.com", ActionID: "key-rotation", Title: "Rotate Exposed Credentials",
		Status: posture.DecisionPending, BeforeScore: 80, CreatedAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, s.CreateDecision(context.Background(), d))
	return NewLifecycle(s, s, s), s, d
}

func TestTransition_MainChain(t *testing.T) {
	lc, _, d := newLifecycleFixture(t)
	ctx := context.Background()

	d, err := lc.Transition(ctx, d, posture.DecisionAccepted)
	require.NoError(t, err)
	assert.NotNil(t, d.AcceptedAt)

	d, err = lc.Transition(ctx, d, posture.DecisionInProgress)
	require.NoError(t, err)
	assert.Equal(t, posture.DecisionInProgress, d.Status)

	d, err = lc.Transition(ctx, d, posture.DecisionResolved)
	require.NoError(t, err)
	assert.Equal(t, posture.DecisionResolved, d.Status)
	assert.NotNil(t, d.ResolvedAt)

	d, err = lc.Transition(ctx, d, posture.DecisionVerified)
	require.NoError(t, err)
	assert.Equal(t, posture.DecisionVerified, d.Status)
	assert.NotNil(t, d.VerifiedAt)
}

func TestTransition_Shortcuts(t *testing.T) {
	lc, _, d := newLifecycleFixture(t)
	ctx := context.Background()

	d, err := lc.Transition(ctx, d, posture.DecisionInProgress)
	require.NoError(t, err)
	assert.Equal(t, posture.DecisionInProgress, d.Status)

	lc2, _, d2 := newLifecycleFixture(t)
	d2, err = lc2.Transition(ctx, d2, posture.DecisionResolved)
	require.NoError(t, err)
	assert.Equal(t, posture.DecisionResolved, d2.Status)
}

func TestTransition_Disallowed(t *testing.T) {
	lc, _, d := newLifecycleFixture(t)
	ctx := context.Background()

	_, err := lc.Transition(ctx, d, posture.DecisionVerified)
	assert.Error(t, err)

	_, err = lc.Transition(ctx, d, posture.DecisionAccepted)
	require.NoError(t, err)
}

func TestTransition_ResolvedBindsAfterScoreAndImpact(t *testing.T) {
	lc, s, d := newLifecycleFixture(t)
	ctx := context.Background()

	require.NoError(t, s.CreateScan(ctx, posture.Scan{
		ID: "s2", OrgID: "org1", Domain: "acme.com",
		RiskScore: 50, CreatedAt: time.Now(),
	}))

	d, err := lc.Transition(ctx, d, posture.DecisionResolved)
	require.NoError(t, err)
	require.NotNil(t, d.AfterScore)
	assert.Equal(t, 50, *d.AfterScore)

	impacts, err := s.GetByDecision(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, impacts.DecisionID)
}

func TestTransition_VerifiedBindsVerificationScan(t *testing.T) {
	lc, s, d := newLifecycleFixture(t)
	ctx := context.Background()

	d, err := lc.Transition(ctx, d, posture.DecisionResolved)
	require.NoError(t, err)

	require.NoError(t, s.CreateScan(ctx, posture.Scan{
		ID: "s3", OrgID: "org1", Domain: "acme.com",
		RiskScore: 20, CreatedAt: time.Now().Add(time.Minute),
	}))

	d, err = lc.Transition(ctx, d, posture.DecisionVerified)
	require.NoError(t, err)
	require.NotNil(t, d.VerificationScanID)
	assert.Equal(t, "s3", *d.VerificationScanID)
}

func TestTransition_VerifiedToResolvedKeepsResolvedAt(t *testing.T) {
	lc, s, d := newLifecycleFixture(t)
	ctx := context.Background()

	require.NoError(t, s.CreateScan(ctx, posture.Scan{
		ID: "s5", OrgID: "org1", Domain: "acme.com",
		RiskScore: 50, CreatedAt: time.Now(),
	}))

	d, err := lc.Transition(ctx, d, posture.DecisionResolved)
	require.NoError(t, err)

	require.NoError(t, s.CreateScan(ctx, posture.Scan{
		ID: "s6", OrgID: "org1", Domain: "acme.com",
		RiskScore: 20, CreatedAt: time.Now().Add(time.Minute),
	}))

	d, err = lc.Transition(ctx, d, posture.DecisionVerified)
	require.NoError(t, err)

	d, err = lc.Transition(ctx, d, posture.DecisionResolved)
	require.NoError(t, err)
	assert.Equal(t, posture.DecisionResolved, d.Status)
	assert.NotNil(t, d.ResolvedAt)
}

func TestTransition_ReversalClearsFieldsAndImpact(t *testing.T) {
	lc, s, d := newLifecycleFixture(t)
	ctx := context.Background()

	require.NoError(t, s.CreateScan(ctx, posture.Scan{
		ID: "s4", OrgID: "org1", Domain: "acme.com",
		RiskScore: 50, CreatedAt: time.Now(),
	}))

	d, err := lc.Transition(ctx, d, posture.DecisionResolved)
	require.NoError(t, err)
	require.NotNil(t, d.AfterScore)

	d, err = lc.Transition(ctx, d, posture.DecisionInProgress)
	require.NoError(t, err)
	assert.Nil(t, d.ResolvedAt)
	assert.Nil(t, d.VerifiedAt)
	assert.Nil(t, d.AfterScore)
	assert.Nil(t, d.VerificationScanID)

	_, err = s.GetByDecision(ctx, d.ID)
	assert.Error(t, err)
}
