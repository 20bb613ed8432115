// Package verification implements the Verification Engine: an
// action-specific re-probe (manual) or Scan-snapshot comparison (auto)
// that proves a resolved SecurityDecision's fix actually took effect
// (spec.md §4.8).
package verification

import (
	"strings"

	"github.com/threatveil/core/pkg/posture"
	"github.com/threatveil/core/pkg/rulefacts"
	"github.com/threatveil/core/pkg/signal"
)

const (
	hstsMissingSignalID = "http_header_strict_transport_security_missing"
	cspMissingSignalID  = "http_header_content_security_policy_missing"
	tlsUnreachableID    = "tls_unreachable"
	tlsExpiringID       = "tls_cert_expiring"
)

// actionAliases resolves the verification-side action_id spellings that
// diverge slightly from the Decision Engine's fixed rule table (spec.md
// Open Questions: enable-hsts/fix-headers are the same HSTS rule under
// two names in the original system — keep them aliased, not distinct).
var actionAliases = map[string]string{
	"fix-headers": "enable-hsts",
}

func canonicalActionID(actionID string) string {
	if alias, ok := actionAliases[actionID]; ok {
		return alias
	}
	return actionID
}

func hasSignal(signals []signal.Signal, id string) bool {
	for _, s := range signals {
		if s.ID == id {
			return true
		}
	}
	return false
}

func findSignal(signals []signal.Signal, id string) (signal.Signal, bool) {
	for _, s := range signals {
		if s.ID == id {
			return s, true
		}
	}
	return signal.Signal{}, false
}

func countAIKeyLeaks(signals []signal.Signal) int {
	n := 0
	for _, s := range signals {
		if rulefacts.IsAIKeyLeak(s) {
			n++
		}
	}
	return n
}

func countCVEs(signals []signal.Signal) int {
	n := 0
	for _, s := range signals {
		if strings.HasPrefix(s.ID, "cve_") {
			n++
		}
	}
	return n
}

func countAgentTools(signals []signal.Signal) int {
	n := 0
	for _, s := range signals {
		if signal.IsAgentTool(s) {
			n++
		}
	}
	return n
}

func countCategory(signals []signal.Signal, cats ...signal.Category) int {
	n := 0
	for _, s := range signals {
		for _, c := range cats {
			if s.Category == c {
				n++
				break
			}
		}
	}
	return n
}

// evaluateFromSignals runs the per-action_id rule purely off two Signal
// snapshots, with no live re-probe — this is the comparison auto-
// verification always uses, and the one manual verification falls back to
// for the count-based rules (patch-cves, review-agents, audit-data,
// review-network) once it already has the comparison Scan in hand.
func evaluateFromSignals(actionID string, before, after []signal.Signal) (posture.VerificationResult, posture.ConfidenceTier, string) {
	switch canonicalActionID(actionID) {
	case "key-rotation":
		b, a := countAIKeyLeaks(before), countAIKeyLeaks(after)
		if a < b {
			if a == 0 {
				return posture.VerificationPass, posture.ConfidenceCertain, "no AI key leaks remain in the latest scan"
			}
			return posture.VerificationPass, posture.ConfidenceLikely, "AI key leak count decreased but has not reached zero"
		}
		return posture.VerificationFail, posture.ConfidenceLikely, "AI key leak count did not decrease"

	case "enable-hsts":
		if !hasSignal(after, hstsMissingSignalID) {
			return posture.VerificationPass, posture.ConfidenceCertain, "strict-transport-security header is now present"
		}
		return posture.VerificationFail, posture.ConfidenceLikely, "strict-transport-security header is still missing"

	case "enable-csp":
		if !hasSignal(after, cspMissingSignalID) {
			return posture.VerificationPass, posture.ConfidenceCertain, "content-security-policy header is now present"
		}
		return posture.VerificationFail, posture.ConfidenceLikely, "content-security-policy header is still missing"

	case "update-tls":
		if hasSignal(after, tlsUnreachableID) {
			return posture.VerificationUnknown, posture.ConfidenceUnverifiable, "TLS endpoint was unreachable during verification"
		}
		sig, ok := findSignal(after, tlsExpiringID)
		if !ok {
			return posture.VerificationUnknown, posture.ConfidenceUnverifiable, "no TLS certificate signal found in the latest scan"
		}
		days, _ := sig.Evidence.Raw["days_to_expiry"].(int)
		switch {
		case days > 30:
			return posture.VerificationPass, posture.ConfidenceCertain, "certificate has more than 30 days until expiry"
		case days > 0:
			return posture.VerificationPass, posture.ConfidenceLikely, "certificate is valid but expires within 30 days"
		default:
			return posture.VerificationFail, posture.ConfidenceLikely, "certificate is expired or expiring immediately"
		}

	case "patch-cves":
		b, a := countCVEs(before), countCVEs(after)
		if a < b {
			return posture.VerificationPass, tierForRemaining(a), "CVE-tagged signal count decreased"
		}
		return posture.VerificationFail, posture.ConfidenceLikely, "CVE-tagged signal count did not decrease"

	case "review-agents":
		b, a := countAgentTools(before), countAgentTools(after)
		if a < b {
			return posture.VerificationPass, tierForRemaining(a), "agent-keyword tool count decreased"
		}
		return posture.VerificationFail, posture.ConfidenceLikely, "agent-keyword tool count did not decrease"

	case "audit-data":
		b, a := countCategory(before, signal.CategoryData, signal.CategoryDataExposure), countCategory(after, signal.CategoryData, signal.CategoryDataExposure)
		if a < b {
			return posture.VerificationPass, tierForRemaining(a), "data exposure signal count decreased"
		}
		return posture.VerificationFail, posture.ConfidenceLikely, "data exposure signal count did not decrease"

	case "review-network":
		b, a := countCategory(before, signal.CategoryNetwork), countCategory(after, signal.CategoryNetwork)
		if a < b {
			return posture.VerificationPass, tierForRemaining(a), "network signal count decreased"
		}
		return posture.VerificationFail, posture.ConfidenceLikely, "network signal count did not decrease"

	case "audit-ai-tools":
		b, a := countCategory(before, signal.CategoryAI, signal.CategoryAIIntegration), countCategory(after, signal.CategoryAI, signal.CategoryAIIntegration)
		if a < b {
			return posture.VerificationPass, tierForRemaining(a), "AI tool signal count decreased"
		}
		return posture.VerificationFail, posture.ConfidenceLikely, "AI tool signal count did not decrease"

	default:
		return posture.VerificationUnknown, posture.ConfidenceStale, "no verification rule registered for this action_id"
	}
}

func tierForRemaining(remaining int) posture.ConfidenceTier {
	if remaining == 0 {
		return posture.ConfidenceCertain
	}
	return posture.ConfidenceLikely
}
