package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/threatveil/core/pkg/cache"
	"github.com/threatveil/core/pkg/signal"
)

// ctCacheTTL is the 24h freshness window certificate-transparency lookups
// are cached under (spec.md §2/§4.2).
const ctCacheTTL = 24 * time.Hour

// CTLogProbe queries a certificate-transparency aggregator (default:
// crt.sh) for recent certificates issued under the domain. When Cache is
// set, lookups for the same domain within ctCacheTTL are de-duplicated and
// served from the cache instead of re-querying crt.sh.
type CTLogProbe struct {
	Client  *http.Client
	BaseURL string
	Cache   *cache.Cache
}

func NewCTLogProbe() *CTLogProbe {
	return &CTLogProbe{Client: newHTTPClient(20 * time.Second), BaseURL: "https://crt.sh"}
}

type ctEntry struct {
	ID        int64  `json:"id"`
	NameValue string `json:"name_value"`
}

// Probe implements the CT-log adapter contract: dedupe entries by id; if
// recent entries exceed 50, emit ct_high_churn (medium).
func (p *CTLogProbe) Probe(ctx context.Context, domain string) Result {
	return shield("CT", signal.CategoryDataExposure, func(ctx context.Context) (Metadata, []signal.Signal, error) {
		if p.Cache != nil {
			bundle, err := p.Cache.CachedSignalBundle(ctx, "ctlog", domain, ctCacheTTL, func(ctx context.Context) (cache.SignalBundle, error) {
				metadata, signals, err := p.fetch(ctx, domain)
				return cache.SignalBundle{Metadata: metadata, Signals: signals}, err
			})
			if err != nil {
				return nil, nil, err
			}
			return bundle.Metadata, bundle.Signals, nil
		}
		return p.fetch(ctx, domain)
	})(ctx)
}

func (p *CTLogProbe) fetch(ctx context.Context, domain string) (Metadata, []signal.Signal, error) {
	url := fmt.Sprintf("%s/?q=%%25.%s&output=json", p.BaseURL, domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("ct log query failed: status %d", resp.StatusCode)
	}

	var entries []ctEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, nil, fmt.Errorf("decode ct log response: %w", err)
	}

	seen := map[int64]struct{}{}
	unique := 0
	for _, e := range entries {
		if _, ok := seen[e.ID]; !ok {
			seen[e.ID] = struct{}{}
			unique++
		}
	}

	metadata := Metadata{"entry_count": unique}

	var signals []signal.Signal
	if unique > 50 {
		signals = append(signals, signal.New(signal.Params{
			ID:       "ct_high_churn",
			Type:     "config",
			Title:    "High Certificate Transparency Churn",
			Detail:   fmt.Sprintf("%d unique certificate entries observed for %s, suggesting frequent reissuance or subdomain sprawl", unique, domain),
			Severity: signal.SeverityMedium,
			Category: signal.CategoryDataExposure,
			Source:   "ct",
			Raw:      map[string]interface{}{"entry_count": unique},
		}))
	}

	return metadata, signals, nil
}
