package orchestrator

import (
	"github.com/threatveil/core/pkg/probe"
	"github.com/threatveil/core/pkg/signal"
)

// aiLeakPatternTitles are the codesearch pattern titles that represent a
// leaked AI-provider credential (as opposed to a library import or agent
// framework usage, which merely indicate AI adoption).
var aiLeakPatternTitles = []string{
	"Exposed OpenAI API Key Reference",
	"Exposed Gemini API Key Reference",
}

// AIScanResult is the two-source merge the original ai_scan_service.py
// performed: a count of detected AI tools/libraries, a count of leaked AI
// provider keys, and whether any agent-framework keyword matched.
type AIScanResult struct {
	ToolCount int
	LeakCount int
	HasAgent  bool
	Score     int
}

// computeAIScore restores the distilled spec's ai_score formula (spec.md
// §4.3 step 9, supplemented from original_source/services/ai/ai_scoring.py):
// 0 tools -> 0; 1-3 -> 10; >=4 -> 20; +30 per AI key leak capped at +60;
// +10 if any agent-framework keyword matched; clamp 0-100. ToolCount
// counts distinct AI tool names detected (not total hit count), and
// HasAgent is derived by checking each matched tool's own name against
// signal.AgentKeywords via probe.AIToolSignalTitle, not a separately
// invented detection pattern.
func computeAIScore(codeSearchMatches map[string]interface{}) AIScanResult {
	result := AIScanResult{}

	for _, name := range probe.AIToolNames {
		title := probe.AIToolSignalTitle(name)
		v, ok := codeSearchMatches[title]
		if !ok || toInt(v) == 0 {
			continue
		}
		result.ToolCount++
		if signal.MatchesAgentKeyword(name) {
			result.HasAgent = true
		}
	}
	for _, title := range aiLeakPatternTitles {
		if v, ok := codeSearchMatches[title]; ok {
			result.LeakCount += toInt(v)
		}
	}

	score := 0
	switch {
	case result.ToolCount == 0:
		score = 0
	case result.ToolCount <= 3:
		score = 10
	default:
		score = 20
	}

	leakBonus := result.LeakCount * 30
	if leakBonus > 60 {
		leakBonus = 60
	}
	score += leakBonus

	if result.HasAgent {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}

	result.Score = score
	return result
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
