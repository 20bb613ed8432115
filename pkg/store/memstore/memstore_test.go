package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatveil/core/pkg/posture"
	"github.com/threatveil/core/pkg/store"
)

func TestOrganization_CreateFindByDomain(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Create(ctx, posture.Organization{PrimaryDomain: "acme.com", Plan: posture.PlanFree}))

	org, err := s.FindByDomain(ctx, "acme.com")
	require.NoError(t, err)
	assert.Equal(t, "acme.com", org.PrimaryDomain)

	_, err = s.FindByDomain(ctx, "missing.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLatestByDomainAfter_ExcludesOlderAndEqual(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.CreateScan(ctx, posture.Scan{ID: "s1", Domain: "acme.com", CreatedAt: base}))
	require.NoError(t, s.CreateScan(ctx, posture.Scan{ID: "s2", Domain: "acme.com", CreatedAt: base.Add(time.Hour)}))

	got, err := s.LatestByDomainAfter(ctx, "acme.com", base)
	require.NoError(t, err)
	assert.Equal(t, "s2", got.ID)

	_, err = s.LatestByDomainAfter(ctx, "acme.com", base.Add(time.Hour))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestImpactStore_UpsertThenDelete(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, posture.DecisionImpact{DecisionID: "d1", RiskBefore: 50}))
	got, err := s.GetByDecision(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, 50, got.RiskBefore)

	require.NoError(t, s.DeleteByDecision(ctx, "d1"))
	_, err = s.GetByDecision(ctx, "d1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCacheAdapter_RoundTrips(t *testing.T) {
	s := New()
	adapter := CacheAdapter{Store: s}
	ctx := context.Background()

	require.NoError(t, adapter.Put(ctx, "k", []byte("v"), time.Now().Add(time.Hour)))
	value, expiresAt, found, err := adapter.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), value)
	assert.True(t, expiresAt.After(time.Now()))
}
