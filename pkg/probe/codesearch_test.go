package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatveil/core/pkg/signal"
)

func TestCodeSearchProbe_EnvFileMatchIsHighSeverity(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.RawQuery, "filename") {
			w.Write([]byte(`{"total_count":2,"items":[{"path":".env","html_url":"https://github.com/acme/app/blob/main/.env"}]}`))
			return
		}
		w.Write([]byte(`{"total_count":0,"items":[]}`))
	}))
	defer srv.Close()

	p := &CodeSearchProbe{Client: srv.Client(), BaseURL: srv.URL}
	result := p.Probe(context.Background(), "acme")

	var found bool
	for _, s := range result.Signals {
		if s.ID == "codesearch_committed_.env_file" {
			found = true
			assert.Equal(t, signal.SeverityHigh, s.Severity)
			assert.Equal(t, signal.CategoryDataExposure, s.Category)
		}
	}
	assert.True(t, found, "expected a .env exposure signal")
}

func TestCodeSearchProbe_NoCodeOrgSkipsEntirely(t *testing.T) {
	p := NewCodeSearchProbe("")
	result := p.Probe(context.Background(), "")

	assert.Empty(t, result.Signals)
	assert.Equal(t, "no code org configured", result.Metadata["skipped"])
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "agent_framework_usage_detected", slug("Agent Framework Usage Detected"))
}

func TestCodeSearchProbe_FailureIsServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	p := &CodeSearchProbe{Client: srv.Client(), BaseURL: srv.URL}
	result := p.Probe(context.Background(), "acme")

	require.Len(t, result.Signals, 1)
	assert.True(t, signal.IsServiceError(result.Signals[0]))
}
