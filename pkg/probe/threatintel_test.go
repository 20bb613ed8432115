package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatveil/core/pkg/signal"
)

func TestThreatIntelProbe_HighPulseCountIsMedium(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pulse_info":{"count":9}}`))
	}))
	defer srv.Close()

	p := &ThreatIntelProbe{Client: srv.Client(), BaseURL: srv.URL}
	result := p.Probe(context.Background(), "example.com")

	require.Len(t, result.Signals, 1)
	assert.Equal(t, signal.SeverityMedium, result.Signals[0].Severity)
	assert.Equal(t, 9, result.Metadata["pulse_count"])
}

func TestThreatIntelProbe_LowPulseCountIsLow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"pulse_info":{"count":1}}`))
	}))
	defer srv.Close()

	p := &ThreatIntelProbe{Client: srv.Client(), BaseURL: srv.URL}
	result := p.Probe(context.Background(), "example.com")

	require.Len(t, result.Signals, 1)
	assert.Equal(t, signal.SeverityLow, result.Signals[0].Severity)
}

func TestThreatIntelProbe_FailureIsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := &ThreatIntelProbe{Client: srv.Client(), BaseURL: srv.URL}
	result := p.Probe(context.Background(), "example.com")

	require.Len(t, result.Signals, 1)
	assert.True(t, signal.IsServiceError(result.Signals[0]))
}
