package probe

import (
	"context"
	"crypto/tls"
	"net"
	"time"

	"github.com/threatveil/core/pkg/signal"
)

// TLSProbe opens a TLS connection and inspects the peer certificate's
// expiry, per spec.md §4.1's severity ladder: expired -> critical,
// <=7d -> high, <=30d -> medium, else low.
type TLSProbe struct {
	DialTimeout time.Duration
}

func NewTLSProbe() *TLSProbe {
	return &TLSProbe{DialTimeout: 15 * time.Second}
}

func (p *TLSProbe) Probe(ctx context.Context, domain string) Result {
	return shield("TLS", signal.CategoryNetwork, func(ctx context.Context) (Metadata, []signal.Signal, error) {
		dialer := &net.Dialer{Timeout: p.DialTimeout}
		conn, err := tls.DialWithDialer(dialer, "tcp", domain+":443", &tls.Config{ServerName: domain})
		if err != nil {
			return Metadata{"error": err.Error()}, []signal.Signal{signal.New(signal.Params{
				ID:       "tls_unreachable",
				Type:     "config",
				Title:    "TLS Endpoint Unreachable",
				Detail:   "Could not complete a TLS handshake with " + domain,
				Severity: signal.SeverityHigh,
				Category: signal.CategoryNetwork,
				Source:   "tls",
				Raw:      map[string]interface{}{"error": err.Error()},
			}), nil
		}
		defer conn.Close()

		certs := conn.ConnectionState().PeerCertificates
		if len(certs) == 0 {
			return Metadata{}, []signal.Signal{signal.New(signal.Params{
				ID:       "tls_unreachable",
				Type:     "config",
				Title:    "TLS Endpoint Unreachable",
				Detail:   "No peer certificate presented by " + domain,
				Severity: signal.SeverityHigh,
				Category: signal.CategoryNetwork,
				Source:   "tls",
			}), nil
		}

		leaf := certs[0]
		daysToExpiry := int(time.Until(leaf.NotAfter).Hours() / 24)

		metadata := Metadata{
			"not_after":      leaf.NotAfter,
			"days_to_expiry": daysToExpiry,
			"subject":        leaf.Subject.CommonName,
			"issuer":         leaf.Issuer.CommonName,
		}

		severity := tlsExpirySeverity(daysToExpiry)

		return metadata, []signal.Signal{signal.New(signal.Params{
			ID:       "tls_cert_expiring",
			Type:     "config",
			Title:    "TLS Certificate Nearing Expiry",
			Detail:   "Certificate for " + domain + " expires in " + itoa(daysToExpiry) + " day(s)",
			Severity: severity,
			Category: signal.CategoryNetwork,
			Source:   "tls",
			Raw:      map[string]interface{}{"days_to_expiry": daysToExpiry},
		})}, nil
	})(ctx)
}

func tlsExpirySeverity(daysToExpiry int) signal.Severity {
	switch {
	case daysToExpiry < 0:
		return signal.SeverityCritical
	case daysToExpiry <= 7:
		return signal.SeverityHigh
	case daysToExpiry <= 30:
		return signal.SeverityMedium
	default:
		return signal.SeverityLow
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
