package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/threatveil/core/pkg/signal"
)

type memStore struct {
	mu   sync.Mutex
	data map[string]entry
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

func newMemStore() *memStore { return &memStore{data: map[string]entry{}} }

func (m *memStore) Get(ctx context.Context, key string) ([]byte, time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[key]
	if !ok {
		return nil, time.Time{}, false, nil
	}
	return e.value, e.expiresAt, true, nil
}

func (m *memStore) Put(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = entry{value: value, expiresAt: expiresAt}
	return nil
}

func TestKey_DeterministicRegardlessOfMapOrder(t *testing.T) {
	k1, err := Key("cve", map[string]interface{}{"b": 1, "a": 2})
	require.NoError(t, err)
	k2, err := Key("cve", map[string]interface{}{"a": 2, "b": 1})
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.Contains(t, k1, "cve:")
}

func TestGetOrFetch_MissThenHit(t *testing.T) {
	c := New(newMemStore())
	var calls int32

	fetch := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		return map[string]string{"v": "1"}, nil
	}

	var dest map[string]string
	require.NoError(t, c.GetOrFetch(context.Background(), "k", time.Hour, fetch, &dest))
	assert.Equal(t, "1", dest["v"])

	dest = nil
	require.NoError(t, c.GetOrFetch(context.Background(), "k", time.Hour, fetch, &dest))
	assert.Equal(t, "1", dest["v"])
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestGetOrFetch_SingleFlightDeduplicatesConcurrentMisses(t *testing.T) {
	c := New(newMemStore())
	var calls int32

	fetch := func(ctx context.Context) (interface{}, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(20 * time.Millisecond)
		return map[string]string{"v": "1"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var dest map[string]string
			_ = c.GetOrFetch(context.Background(), "shared-key", time.Hour, fetch, &dest)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCachedSignalBundle_ReconstructsSignalsOnHit(t *testing.T) {
	c := New(newMemStore())
	fetch := func(ctx context.Context) (SignalBundle, error) {
		return SignalBundle{
			Metadata: map[string]interface{}{"ok": true},
			Signals: []signal.Signal{
				signal.New(signal.Params{ID: "ct_high_churn", Severity: signal.SeverityMedium, Category: signal.CategoryDataExposure}),
			},
		}, nil
	}

	bundle, err := c.CachedSignalBundle(context.Background(), "ctlog", map[string]interface{}{"domain": "example.com"}, 24*time.Hour, fetch)
	require.NoError(t, err)
	require.Len(t, bundle.Signals, 1)
	assert.Equal(t, "ct_high_churn", bundle.Signals[0].ID)

	bundle2, err := c.CachedSignalBundle(context.Background(), "ctlog", map[string]interface{}{"domain": "example.com"}, 24*time.Hour, fetch)
	require.NoError(t, err)
	assert.Equal(t, bundle.Signals[0].ID, bundle2.Signals[0].ID)
}
