package orchestrator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/threatveil/core/pkg/scoring"
	"github.com/threatveil/core/pkg/signal"
)

// summaryPrompt builds the context an LLM summarizer is asked to condense
// into prose; never persisted verbatim.
func summaryPrompt(domain string, signals []signal.Signal, likelihoods scoring.Likelihoods) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the security posture scan for %s in plain language.\n", domain)
	fmt.Fprintf(&b, "30-day breach likelihood: %.0f%%, 90-day: %.0f%%.\n", likelihoods.Likelihood30d*100, likelihoods.Likelihood90d*100)
	for _, s := range topSignals(signals, 5) {
		fmt.Fprintf(&b, "- [%s/%s] %s: %s\n", s.Severity, s.Category, s.Title, s.Detail)
	}
	return b.String()
}

// fallbackSummary is the deterministic template used whenever the
// Summarizer errors or is unset, built from the titles of the top three
// critical/high/medium Signals and the likelihood estimates — never blocked on an external
// collaborator.
func fallbackSummary(domain string, signals []signal.Signal, likelihoods scoring.Likelihoods) string {
	top := topSignals(signals, 3)
	if len(top) == 0 {
		return fmt.Sprintf("No notable findings for %s. 30-day breach likelihood %.0f%%.", domain, likelihoods.Likelihood30d*100)
	}

	var details []string
	for _, s := range top {
		details = append(details, s.Title)
	}

	return fmt.Sprintf(
		"Scan of %s found %d issue(s); most notable: %s. Estimated breach likelihood %.0f%% in 30 days, %.0f%% in 90 days.",
		domain, len(signals), strings.Join(details, "; "), likelihoods.Likelihood30d*100, likelihoods.Likelihood90d*100,
	)
}

// topSignals returns up to n signals ordered by severity descending
// (critical first), restricted to high/critical/medium — low-severity
// noise never makes it into a summary.
func topSignals(signals []signal.Signal, n int) []signal.Signal {
	rank := map[signal.Severity]int{
		signal.SeverityCritical: 0,
		signal.SeverityHigh:     1,
		signal.SeverityMedium:   2,
	}

	var notable []signal.Signal
	for _, s := range signals {
		if _, ok := rank[s.Severity]; ok {
			notable = append(notable, s)
		}
	}
	sort.SliceStable(notable, func(i, j int) bool { return rank[notable[i].Severity] < rank[notable[j].Severity] })

	if len(notable) > n {
		notable = notable[:n]
	}
	return notable
}
