package probe

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/threatveil/core/pkg/signal"
)

// requiredHeaders maps each required security header to its severity when
// absent — HSTS and CSP are high, the rest medium.
var requiredHeaders = []struct {
	name     string
	severity signal.Severity
}{
	{"strict-transport-security", signal.SeverityHigh},
	{"content-security-policy", signal.SeverityHigh},
	{"x-frame-options", signal.SeverityMedium},
	{"x-content-type-options", signal.SeverityMedium},
	{"referrer-policy", signal.SeverityMedium},
	{"permissions-policy", signal.SeverityMedium},
}

// HTTPResult additionally surfaces tech-fingerprint tokens extracted from
// response headers, the Stage-B input for the vulnerability-DB probe.
type HTTPResult struct {
	Result
	TechTokens []string
}

// HTTPProbe fetches https://<domain> (following redirects) and separately
// http://<domain> without following redirects to check HTTPS enforcement.
type HTTPProbe struct {
	Client *http.Client
}

func NewHTTPProbe() *HTTPProbe {
	return &HTTPProbe{Client: newHTTPClient(20 * time.Second)}
}

// Probe implements the HTTP adapter contract (spec.md §4.1).
func (p *HTTPProbe) Probe(ctx context.Context, domain string) HTTPResult {
	var techTokens []string
	result := shield("HTTP", signal.CategoryNetwork, func(ctx context.Context) (Metadata, []signal.Signal, error) {
		httpsResp, err := p.get(ctx, "https://"+domain, true)
		if err != nil {
			return Metadata{"error": err.Error()}, []signal.Signal{signal.New(signal.Params{
				ID:       "http_https_unreachable",
				Type:     "config",
				Title:    "HTTPS Endpoint Unreachable",
				Detail:   "Could not establish an HTTPS connection to " + domain,
				Severity: signal.SeverityHigh,
				Category: signal.CategoryNetwork,
				Source:   "http",
				Raw:      map[string]interface{}{"error": err.Error()},
			}), nil
		}
		defer httpsResp.Body.Close()

		techTokens = extractTechTokens(httpsResp.Header)

		var signals []signal.Signal
		for _, h := range requiredHeaders {
			if httpsResp.Header.Get(h.name) == "" {
				signals = append(signals, signal.New(signal.Params{
					ID:       "http_header_" + headerSlug(h.name) + "_missing",
					Type:     "config",
					Title:    "Missing Security Header: " + h.name,
					Detail:   "Response from " + domain + " does not set the " + h.name + " header",
					Severity: h.severity,
					Category: signal.CategorySoftware,
					Source:   "http",
				}))
			}
		}

		plainResp, err := p.get(ctx, "http://"+domain, false)
		enforced := false
		if err == nil {
			defer plainResp.Body.Close()
			location := plainResp.Header.Get("Location")
			enforced = plainResp.StatusCode >= 300 && plainResp.StatusCode < 400 && strings.HasPrefix(location, "https://")
		}
		if !enforced {
			signals = append(signals, signal.New(signal.Params{
				ID:       "http_no_https_redirect",
				Type:     "config",
				Title:    "HTTPS Not Enforced",
				Detail:   "Plain HTTP request to " + domain + " does not redirect to HTTPS",
				Severity: signal.SeverityHigh,
				Category: signal.CategoryNetwork,
				Source:   "http",
			}))
		}

		metadata := Metadata{
			"status_code": httpsResp.StatusCode,
			"server":      httpsResp.Header.Get("Server"),
			"https_enforced": enforced,
		}
		return metadata, signals, nil
	})(ctx)

	return HTTPResult{Result: result, TechTokens: techTokens}
}

func (p *HTTPProbe) get(ctx context.Context, url string, followRedirects bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	client := p.Client
	if !followRedirects {
		client = &http.Client{
			Timeout: p.Client.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		}
	}
	return client.Do(req)
}

func extractTechTokens(h http.Header) []string {
	var tokens []string
	for _, name := range []string{"Server", "X-Powered-By", "X-Generator"} {
		if v := h.Get(name); v != "" {
			tokens = append(tokens, v)
		}
	}
	return tokens
}

func headerSlug(name string) string {
	return strings.ReplaceAll(name, "-", "_")
}
