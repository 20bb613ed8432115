package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatveil/core/pkg/signal"
)

func TestCVSSSeverity(t *testing.T) {
	assert.Equal(t, signal.SeverityCritical, cvssSeverity(9.8))
	assert.Equal(t, signal.SeverityHigh, cvssSeverity(7.0))
	assert.Equal(t, signal.SeverityMedium, cvssSeverity(4.0))
	assert.Equal(t, signal.SeverityLow, cvssSeverity(2.1))
}

func TestBestCVSSScore_PrefersV31(t *testing.T) {
	v31 := []cvssMetric{{}}
	v31[0].CvssData.BaseScore = 9.1
	v30 := []cvssMetric{{}}
	v30[0].CvssData.BaseScore = 5.0

	assert.Equal(t, 9.1, bestCVSSScore(v31, v30, nil))
	assert.Equal(t, 5.0, bestCVSSScore(nil, v30, nil))
	assert.Equal(t, float64(0), bestCVSSScore(nil, nil, nil))
}

func TestVulnDBProbe_EmitsOneSignalPerUniqueCVE(t *testing.T) {
	body := `{"vulnerabilities":[
		{"cve":{"id":"CVE-2024-0001","metrics":{"cvssMetricV31":[{"cvssData":{"baseScore":9.8}}]}}},
		{"cve":{"id":"CVE-2024-0001","metrics":{"cvssMetricV31":[{"cvssData":{"baseScore":9.8}}]}}},
		{"cve":{"id":"CVE-2024-0002","metrics":{"cvssMetricV30":[{"cvssData":{"baseScore":5.5}}]}}}
	]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(body))
	}))
	defer srv.Close()

	p := &VulnDBProbe{Client: srv.Client(), BaseURL: srv.URL, PaceInterval: time.Millisecond}
	result := p.Probe(context.Background(), []string{"nginx/1.2.3"})

	require.Len(t, result.Signals, 2)
	assert.Equal(t, "cve_CVE-2024-0001", result.Signals[0].ID)
	assert.Equal(t, signal.SeverityCritical, result.Signals[0].Severity)
	assert.Equal(t, "cve_CVE-2024-0002", result.Signals[1].ID)
	assert.Equal(t, signal.SeverityMedium, result.Signals[1].Severity)
}

func TestVulnDBProbe_CapsAtThreeTokens(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"vulnerabilities":[]}`))
	}))
	defer srv.Close()

	p := &VulnDBProbe{Client: srv.Client(), BaseURL: srv.URL, PaceInterval: time.Millisecond}
	p.Probe(context.Background(), []string{"a", "b", "c", "d", "e"})

	assert.Equal(t, 3, hits)
}
