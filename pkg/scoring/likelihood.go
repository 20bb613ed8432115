package scoring

import "github.com/threatveil/core/pkg/signal"

// severityWeight is the likelihood contribution per Signal severity.
var severityWeight = map[signal.Severity]float64{
	signal.SeverityLow:      0.05,
	signal.SeverityMedium:   0.10,
	signal.SeverityHigh:     0.20,
	signal.SeverityCritical: 0.20,
}

// Likelihoods holds the two breach-probability outputs. Both are in [0,1]
// and likelihood_90d is always >= likelihood_30d.
type Likelihoods struct {
	Likelihood30d float64
	Likelihood90d float64
}

// EstimateLikelihoods implements the monotone reference construction from
// spec.md §4.6: weight each Signal by severity, sum, clamp to 1.0 for the
// 30-day figure; 90-day is 30-day plus a flat 0.10, clamped to 1.0.
func EstimateLikelihoods(signals []signal.Signal) Likelihoods {
	sum := 0.0
	for _, s := range signals {
		sum += severityWeight[s.Severity]
	}
	if sum > 1.0 {
		sum = 1.0
	}
	d90 := sum + 0.10
	if d90 > 1.0 {
		d90 = 1.0
	}
	return Likelihoods{Likelihood30d: sum, Likelihood90d: d90}
}
