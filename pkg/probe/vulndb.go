package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/threatveil/core/pkg/cache"
	"github.com/threatveil/core/pkg/signal"
)

// vulnDBCacheTTL is the 24h freshness window vulnerability-DB lookups are
// cached under (spec.md §2/§4.2).
const vulnDBCacheTTL = 24 * time.Hour

// VulnDBProbe keyword-searches a vulnerability database (default: NVD) for
// up to 3 tech-fingerprint tokens, pacing requests between tokens to
// respect the source's rate limit. When Cache is set, identical token sets
// within vulnDBCacheTTL are de-duplicated and served from the cache instead
// of re-querying NVD.
type VulnDBProbe struct {
	Client       *http.Client
	BaseURL      string
	APIKey       string
	PaceInterval time.Duration
	Cache        *cache.Cache
}

func NewVulnDBProbe(apiKey string) *VulnDBProbe {
	return &VulnDBProbe{
		Client:       newHTTPClient(20 * time.Second),
		BaseURL:      "https://services.nvd.nist.gov/rest/json/cves/2.0",
		APIKey:       apiKey,
		PaceInterval: 600 * time.Millisecond,
	}
}

type nvdResponse struct {
	Vulnerabilities []struct {
		CVE struct {
			ID      string `json:"id"`
			Metrics struct {
				CvssMetricV31 []cvssMetric `json:"cvssMetricV31"`
				CvssMetricV30 []cvssMetric `json:"cvssMetricV30"`
				CvssMetricV2  []cvssMetric `json:"cvssMetricV2"`
			} `json:"metrics"`
		} `json:"cve"`
	} `json:"vulnerabilities"`
}

type cvssMetric struct {
	CvssData struct {
		BaseScore float64 `json:"baseScore"`
	} `json:"cvssData"`
}

// Probe implements the vulnerability-DB adapter contract: best CVSS score
// (v3.1 > v3.0 > v2.0) maps to severity (>=9 critical, >=7 high, >=4
// medium, else low); one Signal per unique CVE id.
func (p *VulnDBProbe) Probe(ctx context.Context, techTokens []string) Result {
	return shield("VulnDB", signal.CategorySoftware, func(ctx context.Context) (Metadata, []signal.Signal, error) {
		if len(techTokens) > 3 {
			techTokens = techTokens[:3]
		}

		if p.Cache != nil {
			cacheKey := strings.Join(techTokens, ",")
			bundle, err := p.Cache.CachedSignalBundle(ctx, "vulndb", cacheKey, vulnDBCacheTTL, func(ctx context.Context) (cache.SignalBundle, error) {
				metadata, signals, err := p.fetch(ctx, techTokens)
				return cache.SignalBundle{Metadata: metadata, Signals: signals}, err
			})
			if err != nil {
				return nil, nil, err
			}
			return bundle.Metadata, bundle.Signals, nil
		}
		return p.fetch(ctx, techTokens)
	})(ctx)
}

func (p *VulnDBProbe) fetch(ctx context.Context, techTokens []string) (Metadata, []signal.Signal, error) {
	seen := map[string]struct{}{}
	var signals []signal.Signal
	rawByToken := Metadata{}

	for i, token := range techTokens {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			case <-time.After(p.PaceInterval):
			}
		}

		parsed, err := p.search(ctx, token)
		if err != nil {
			return nil, nil, err
		}
		rawByToken[token] = len(parsed.Vulnerabilities)

		for _, v := range parsed.Vulnerabilities {
			if _, ok := seen[v.CVE.ID]; ok {
				continue
			}
			seen[v.CVE.ID] = struct{}{}

			score := bestCVSSScore(v.CVE.Metrics.CvssMetricV31, v.CVE.Metrics.CvssMetricV30, v.CVE.Metrics.CvssMetricV2)
			signals = append(signals, signal.New(signal.Params{
				ID:       "cve_" + v.CVE.ID,
				Type:     "cve",
				Title:    v.CVE.ID,
				Detail:   fmt.Sprintf("%s affects detected component %q (CVSS %.1f)", v.CVE.ID, token, score),
				Severity: cvssSeverity(score),
				Category: signal.CategorySoftware,
				Source:   "vulndb",
				URL:      "https://nvd.nist.gov/vuln/detail/" + v.CVE.ID,
				Raw:      map[string]interface{}{"cvss": score, "component": token},
			}))
		}
	}

	return Metadata{"per_token_matches": rawByToken}, signals, nil
}

func (p *VulnDBProbe) search(ctx context.Context, keyword string) (nvdResponse, error) {
	u := fmt.Sprintf("%s?keywordSearch=%s&resultsPerPage=20", p.BaseURL, url.QueryEscape(keyword))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nvdResponse{}, err
	}
	if p.APIKey != "" {
		req.Header.Set("apiKey", p.APIKey)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return nvdResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nvdResponse{}, fmt.Errorf("vuln db query failed: status %d", resp.StatusCode)
	}

	var parsed nvdResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nvdResponse{}, fmt.Errorf("decode vuln db response: %w", err)
	}
	return parsed, nil
}

func bestCVSSScore(tiers ...[]cvssMetric) float64 {
	for _, tier := range tiers {
		if len(tier) > 0 {
			return tier[0].CvssData.BaseScore
		}
	}
	return 0
}

func cvssSeverity(score float64) signal.Severity {
	switch {
	case score >= 9:
		return signal.SeverityCritical
	case score >= 7:
		return signal.SeverityHigh
	case score >= 4:
		return signal.SeverityMedium
	default:
		return signal.SeverityLow
	}
}
