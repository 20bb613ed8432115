package orchestrator

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/threatveil/core/pkg/apierr"
	"github.com/threatveil/core/pkg/posture"
	"github.com/threatveil/core/pkg/probe"
	"github.com/threatveil/core/pkg/store/memstore"
)

func TestValidateDomain(t *testing.T) {
	assert.NoError(t, validateDomain("example.com"))
	assert.Error(t, validateDomain(""))
	assert.Error(t, validateDomain("https://example.com"))
	assert.Error(t, validateDomain("1.2.3.4"))
	assert.Error(t, validateDomain("localhost"))
	assert.Error(t, validateDomain("app.localhost"))
	assert.Error(t, validateDomain("no-tld"))
}

func TestScan_PersistsOneScanAndCreatesOrg(t *testing.T) {
	httpSrv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer httpSrv.Close()
	domain := trimScheme(httpSrv.URL)

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	s := memstore.New()
	probes := Probes{
		DNS:         probe.NewDNSProbe(),
		HTTP:        &probe.HTTPProbe{Client: httpSrv.Client()},
		TLS:         &probe.TLSProbe{DialTimeout: 500 * time.Millisecond},
		CT:          &probe.CTLogProbe{Client: ts.Client(), BaseURL: ts.URL},
		ThreatIntel: &probe.ThreatIntelProbe{Client: ts.Client(), BaseURL: ts.URL},
		VulnDB:      &probe.VulnDBProbe{Client: ts.Client(), BaseURL: ts.URL},
		CodeSearch:  &probe.CodeSearchProbe{Client: ts.Client(), BaseURL: ts.URL},
	}

	o := New(probes, s, s, s)
	scan, err := o.Scan(context.Background(), "test-client", domain, "")
	require.NoError(t, err)

	assert.NotEmpty(t, scan.ID)
	assert.Equal(t, domain, scan.Domain)
	assert.NotEmpty(t, scan.OrgID)

	org, err := s.FindByDomain(context.Background(), domain)
	require.NoError(t, err)
	assert.Equal(t, 1, org.ScansThisMonth)
}

func TestScan_RateLimited(t *testing.T) {
	s := memstore.New()
	o := New(Probes{
		DNS:         probe.NewDNSProbe(),
		HTTP:        probe.NewHTTPProbe(),
		TLS:         probe.NewTLSProbe(),
		CT:          probe.NewCTLogProbe(),
		ThreatIntel: probe.NewThreatIntelProbe(""),
		VulnDB:      probe.NewVulnDBProbe(""),
		CodeSearch:  probe.NewCodeSearchProbe(""),
	}, s, s, s)
	o.RateLimiter = NewRateLimiter(1, time.Minute)

	_, _ = o.Scan(context.Background(), "rl-client", "example.com", "")
	_, err := o.Scan(context.Background(), "rl-client", "example.com", "")
	assert.Error(t, err)
}

func TestScan_UsageLimitExceeded(t *testing.T) {
	s := memstore.New()
	o := New(Probes{
		DNS:         probe.NewDNSProbe(),
		HTTP:        probe.NewHTTPProbe(),
		TLS:         probe.NewTLSProbe(),
		CT:          probe.NewCTLogProbe(),
		ThreatIntel: probe.NewThreatIntelProbe(""),
		VulnDB:      probe.NewVulnDBProbe(""),
		CodeSearch:  probe.NewCodeSearchProbe(""),
	}, s, s, s)

	require.NoError(t, s.Create(context.Background(), posture.Organization{
		PrimaryDomain:  "example.com",
		Plan:           posture.PlanFree,
		ScansThisMonth: 10,
		ScansLimit:     10,
	}))

	_, err := o.Scan(context.Background(), "limit-client", "example.com", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apierr.ErrUsageLimitExceeded))
}

func trimScheme(url string) string {
	for i := 0; i < len(url); i++ {
		if url[i] == '/' && i+1 < len(url) && url[i+1] == '/' {
			return url[i+2:]
		}
	}
	return url
}
