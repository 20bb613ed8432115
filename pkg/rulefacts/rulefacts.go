// Package rulefacts derives the boolean facts the Decision Engine's rule
// set and the Impact Service's "did the triggering signal disappear"
// check both need from a raw Signal multiset. Kept as its own leaf
// package (rather than folded into pkg/decision or pkg/impact) so neither
// of those packages has to import the other.
package rulefacts

import "github.com/threatveil/core/pkg/signal"

// aiKeyLeakIDs grounds the spec's literal trigger
// wording in the concrete shape pkg/probe/codesearch.go actually emits.
var aiKeyLeakIDs = map[string]bool{
	"codesearch_exposed_openai_api_key_reference": true,
	"codesearch_exposed_gemini_api_key_reference": true,
}

// Facts is the set of booleans every fixed Decision Engine rule and the
// Impact Service's confidence tiering evaluate against.
type Facts struct {
	AIKeyLeak            bool
	HighSeveritySoftware bool
	AgentToolDetected    bool
	DataExposurePresent  bool
	TLSIssuePresent      bool
	NetworkIssueNonLow   bool
	AITooPresent         bool
}

// IsAIKeyLeak reports whether a Signal is one of the codesearch AI-key-leak
// findings, exported so pkg/verification can count leaks the same way
// without duplicating the id list.
func IsAIKeyLeak(s signal.Signal) bool {
	return aiKeyLeakIDs[s.ID]
}

// Derive computes Facts from one scan's merged Signals.
func Derive(signals []signal.Signal) Facts {
	f := Facts{}
	for _, s := range signals {
		if aiKeyLeakIDs[s.ID] {
			f.AIKeyLeak = true
		}
		if s.Category == signal.CategorySoftware && s.Severity == signal.SeverityHigh {
			f.HighSeveritySoftware = true
		}
		if s.Category == signal.CategoryAI || s.Category == signal.CategoryAIIntegration {
			f.AITooPresent = true
		}
		if signal.IsAgentTool(s) {
			f.AgentToolDetected = true
		}
		if s.Category == signal.CategoryData || s.Category == signal.CategoryDataExposure {
			f.DataExposurePresent = true
		}
		if s.Evidence.SourceService == "tls" && (s.Severity == signal.SeverityHigh || s.Severity == signal.SeverityMedium) {
			f.TLSIssuePresent = true
		}
		if s.Category == signal.CategoryNetwork && s.Severity != signal.SeverityLow {
			f.NetworkIssueNonLow = true
		}
	}
	return f
}

// TriggerPresent reports whether the named action_id's triggering
// condition still holds against signals — used by the Impact Service to
// decide whether a fix's triggering signal "observably disappeared".
func TriggerPresent(actionID string, signals []signal.Signal) (present bool, known bool) {
	facts := Derive(signals)
	switch actionID {
	case "key-rotation":
		return facts.AIKeyLeak, true
	case "patch-cves":
		return facts.HighSeveritySoftware, true
	case "review-agents":
		return facts.AgentToolDetected, true
	case "audit-data":
		return facts.DataExposurePresent, true
	case "update-tls":
		return facts.TLSIssuePresent, true
	case "review-network":
		return facts.NetworkIssueNonLow, true
	case "audit-ai-tools":
		return facts.AITooPresent, true
	default:
		return false, false
	}
}
