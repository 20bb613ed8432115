package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatveil/core/pkg/cache"
	"github.com/threatveil/core/pkg/store/memstore"
)

func TestCTLogProbe_HighChurnEmitsSignal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(ctFixture(60)))
	}))
	defer srv.Close()

	p := &CTLogProbe{Client: srv.Client(), BaseURL: srv.URL}
	result := p.Probe(context.Background(), "example.com")

	require.Len(t, result.Signals, 1)
	assert.Equal(t, "ct_high_churn", result.Signals[0].ID)
	assert.Equal(t, 60, result.Metadata["entry_count"])
}

func TestCTLogProbe_LowChurnEmitsNoSignal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(ctFixture(3)))
	}))
	defer srv.Close()

	p := &CTLogProbe{Client: srv.Client(), BaseURL: srv.URL}
	result := p.Probe(context.Background(), "example.com")

	assert.Empty(t, result.Signals)
}

func TestCTLogProbe_CacheDedupesRepeatedQueries(t *testing.T) {
	var hits int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&hits, 1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(ctFixture(3)))
	}))
	defer srv.Close()

	p := &CTLogProbe{Client: srv.Client(), BaseURL: srv.URL, Cache: cache.BackedBy(memstore.New())}

	first := p.Probe(context.Background(), "example.com")
	second := p.Probe(context.Background(), "example.com")

	assert.Equal(t, int64(1), atomic.LoadInt64(&hits))
	assert.Equal(t, first.Metadata["entry_count"], second.Metadata["entry_count"])
}

func ctFixture(n int) string {
	out := "["
	for i := 0; i < n; i++ {
		if i > 0 {
			out += ","
		}
		out += `{"id":` + itoa(i) + `,"name_value":"example.com"}`
	}
	return out + "]"
}
