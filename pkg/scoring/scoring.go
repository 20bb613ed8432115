// Package scoring turns a Signal multiset into per-category and aggregate
// risk scores. Pure functions; no I/O; deterministic (spec.md §4.5, §8
// property 7).
package scoring

import (
	"math"

	"github.com/threatveil/core/pkg/posture"
	"github.com/threatveil/core/pkg/signal"
)

// severityPoints maps a Signal's severity to its point contribution.
var severityPoints = map[signal.Severity]int{
	signal.SeverityLow:      5,
	signal.SeverityMedium:   15,
	signal.SeverityHigh:     30,
	signal.SeverityCritical: 50,
}

// Config is the default weights exposed as a configuration struct per
// spec.md §4.5 ("the core must expose these as a configuration struct").
type Config struct {
	Weights map[signal.Category]float64
}

// DefaultConfig returns the spec-mandated default weights.
func DefaultConfig() Config {
	return Config{
		Weights: map[signal.Category]float64{
			signal.CategoryNetwork:       0.40,
			signal.CategorySoftware:      0.35,
			signal.CategoryDataExposure:  0.20,
			signal.CategoryAIIntegration: 0.05,
		},
	}
}

func severityFromScore(score int) signal.Severity {
	switch {
	case score >= 70:
		return signal.SeverityHigh
	case score >= 40:
		return signal.SeverityMedium
	default:
		return signal.SeverityLow
	}
}

// Score computes per-category points (clamped to 100) and the weighted
// aggregate (rounded, clamped to 100). Categories without a configured
// weight still accumulate points for downstream Decision rules, but
// contribute 0 to the aggregate.
func Score(signals []signal.Signal, cfg Config) (aggregate int, categories map[signal.Category]posture.CategoryScore) {
	raw := map[signal.Category]int{}
	for _, s := range signals {
		raw[s.Category] += severityPoints[s.Severity]
	}

	categories = make(map[signal.Category]posture.CategoryScore, len(raw))
	total := 0.0
	for category, points := range raw {
		clamped := points
		if clamped > 100 {
			clamped = 100
		}
		categories[category] = posture.CategoryScore{
			Points:   clamped,
			Severity: severityFromScore(clamped),
		}
		if weight, ok := cfg.Weights[category]; ok {
			total += float64(clamped) * weight
		}
	}

	aggregate = int(math.Round(total))
	if aggregate > 100 {
		aggregate = 100
	}
	if aggregate < 0 {
		aggregate = 0
	}
	return aggregate, categories
}
