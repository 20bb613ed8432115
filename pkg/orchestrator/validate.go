package orchestrator

import (
	"net"
	"strings"

	"github.com/threatveil/core/pkg/apierr"
)

// validateDomain enforces spec.md §4.3 step 1: a bare hostname, not an IP
// literal, a URL, or localhost.
func validateDomain(domain string) error {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return apierr.InvalidDomain("domain is required")
	}
	if strings.Contains(domain, "://") {
		return apierr.InvalidDomain("must be a bare hostname, not a URL")
	}
	if strings.ContainsAny(domain, "/ \t\n") {
		return apierr.InvalidDomain("must be a bare hostname")
	}
	if net.ParseIP(domain) != nil {
		return apierr.InvalidDomain("IP addresses are not accepted, use a hostname")
	}
	lower := strings.ToLower(domain)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") || strings.HasSuffix(lower, ".local") {
		return apierr.InvalidDomain("localhost and .local domains are not scannable targets")
	}
	if !strings.Contains(domain, ".") {
		return apierr.InvalidDomain("must be a fully qualified domain name")
	}
	return nil
}
