package probe

import (
	"context"
	"net"
	"strings"

	"github.com/threatveil/core/pkg/signal"
)

// DNSProbe resolves A/AAAA/MX/TXT and the DMARC policy record.
type DNSProbe struct {
	Resolver *net.Resolver
}

func NewDNSProbe() *DNSProbe {
	return &DNSProbe{Resolver: net.DefaultResolver}
}

// Probe implements the DNS adapter contract (spec.md §4.1): resolve A,
// AAAA, MX, TXT, _dmarc.<domain> TXT; emit dns_missing_dmarc (medium) if
// no DMARC TXT; dns_missing_spf (medium) if no v=spf in TXT.
func (p *DNSProbe) Probe(ctx context.Context, domain string) Result {
	return shield("DNS", signal.CategoryInfrastructure, func(ctx context.Context) (Metadata, []signal.Signal, error) {
		aRecords, err := p.Resolver.LookupHost(ctx, domain)
		if err != nil {
			return nil, nil, err
		}

		mxRecords, err := p.Resolver.LookupMX(ctx, domain)
		if err != nil {
			mxRecords = nil
		}

		txtRecords, err := p.Resolver.LookupTXT(ctx, domain)
		if err != nil {
			txtRecords = nil
		}

		dmarcRecords, _ := p.Resolver.LookupTXT(ctx, "_dmarc."+domain)

		metadata := Metadata{
			"a":     aRecords,
			"mx":    mxNames(mxRecords),
			"txt":   txtRecords,
			"dmarc": dmarcRecords,
		}

		var signals []signal.Signal
		if len(dmarcRecords) == 0 {
			signals = append(signals, signal.New(signal.Params{
				ID:       "dns_missing_dmarc",
				Type:     "config",
				Title:    "Missing DMARC Record",
				Detail:   "No DMARC policy record found at _dmarc." + domain,
				Severity: signal.SeverityMedium,
				Category: signal.CategoryInfrastructure,
				Source:   "dns",
			}))
		}

		hasSPF := false
		for _, txt := range txtRecords {
			if strings.Contains(strings.ToLower(txt), "v=spf") {
				hasSPF = true
				break
			}
		}
		if !hasSPF {
			signals = append(signals, signal.New(signal.Params{
				ID:       "dns_missing_spf",
				Type:     "config",
				Title:    "Missing SPF Record",
				Detail:   "No SPF record found in TXT records for " + domain,
				Severity: signal.SeverityMedium,
				Category: signal.CategoryInfrastructure,
				Source:   "dns",
			}))
		}

		return metadata, signals, nil
	})(ctx)
}

func mxNames(records []*net.MX) []string {
	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Host)
	}
	return names
}
