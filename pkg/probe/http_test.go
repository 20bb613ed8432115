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

func TestHTTPProbe_MissingHeadersProduceSignals(t *testing.T) {
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "nginx/1.2.3")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := &HTTPProbe{Client: srv.Client()}
	host := strings.TrimPrefix(srv.URL, "https://")

	result := p.Probe(context.Background(), host)

	assert.Contains(t, result.TechTokens, "nginx/1.2.3")

	var found bool
	for _, s := range result.Signals {
		if s.ID == "http_header_strict_transport_security_missing" {
			found = true
			assert.Equal(t, signal.SeverityHigh, s.Severity)
		}
	}
	assert.True(t, found, "expected missing-HSTS signal")
}

func TestHTTPProbe_UnreachableEmitsServiceLikeSignal(t *testing.T) {
	p := NewHTTPProbe()
	result := p.Probe(context.Background(), "127.0.0.1:0")

	require.NotEmpty(t, result.Signals)
	assert.Equal(t, "http_https_unreachable", result.Signals[0].ID)
	assert.Equal(t, signal.SeverityHigh, result.Signals[0].Severity)
}

func TestHeaderSlug(t *testing.T) {
	assert.Equal(t, "x_frame_options", headerSlug("x-frame-options"))
}

func TestExtractTechTokens(t *testing.T) {
	h := http.Header{}
	h.Set("Server", "apache")
	h.Set("X-Powered-By", "php")
	assert.ElementsMatch(t, []string{"apache", "php"}, extractTechTokens(h))
}
