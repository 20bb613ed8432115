package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/threatveil/core/pkg/signal"
)

// ThreatIntelProbe queries a domain-indicator feed (default: AlienVault
// OTX) for pulses referencing the domain.
type ThreatIntelProbe struct {
	Client  *http.Client
	BaseURL string
	APIKey  string
}

func NewThreatIntelProbe(apiKey string) *ThreatIntelProbe {
	return &ThreatIntelProbe{
		Client:  newHTTPClient(20 * time.Second),
		BaseURL: "https://otx.alienvault.com/api/v1/indicators/domain",
		APIKey:  apiKey,
	}
}

type otxResponse struct {
	PulseInfo struct {
		Count int `json:"count"`
	} `json:"pulse_info"`
}

// Probe implements the threat-intel adapter contract: pulse count > 5 ->
// medium severity, else low.
func (p *ThreatIntelProbe) Probe(ctx context.Context, domain string) Result {
	return shield("ThreatIntel", signal.CategoryInfrastructure, func(ctx context.Context) (Metadata, []signal.Signal, error) {
		url := fmt.Sprintf("%s/%s/general", p.BaseURL, domain)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, nil, err
		}
		if p.APIKey != "" {
			req.Header.Set("X-OTX-API-KEY", p.APIKey)
		}

		resp, err := p.Client.Do(req)
		if err != nil {
			return nil, nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, nil, fmt.Errorf("threat intel query failed: status %d", resp.StatusCode)
		}

		var parsed otxResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return nil, nil, fmt.Errorf("decode threat intel response: %w", err)
		}

		count := parsed.PulseInfo.Count
		severity := signal.SeverityLow
		if count > 5 {
			severity = signal.SeverityMedium
		}

		metadata := Metadata{"pulse_count": count}
		signals := []signal.Signal{signal.New(signal.Params{
			ID:       "threat_intel_pulses",
			Type:     "config",
			Title:    "Threat Intelligence Pulses Referencing Domain",
			Detail:   fmt.Sprintf("%d threat-intel pulse(s) reference %s", count, domain),
			Severity: severity,
			Category: signal.CategoryInfrastructure,
			Source:   "threatintel",
			Raw:      map[string]interface{}{"pulse_count": count},
		})}

		return metadata, signals, nil
	})(ctx)
}
