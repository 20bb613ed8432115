package orchestrator

import (
	"testing"

	"github.com/threatveil/core/pkg/probe"
)

func TestComputeAIScore(t *testing.T) {
	title := probe.AIToolSignalTitle

	cases := []struct {
		name    string
		matches map[string]interface{}
		want    int
	}{
		{"no tools", map[string]interface{}{}, 0},
		{"few tools", map[string]interface{}{
			title("openai"):   2,
			title("anthropic"): 1,
		}, 10},
		{"many tools with agent framework", map[string]interface{}{
			title("openai"):    2,
			title("anthropic"): 1,
			title("langchain"): 1,
			title("crewai"):    1,
		}, 30},
		{"one leak", map[string]interface{}{"Exposed OpenAI API Key Reference": 1}, 30},
		{"two leaks capped", map[string]interface{}{
			"Exposed OpenAI API Key Reference": 1,
			"Exposed Gemini API Key Reference": 2,
		}, 60},
		{"agent bonus", map[string]interface{}{title("langchain"): 1}, 20},
		{"every contributor at once", map[string]interface{}{
			title("openai"):                    1,
			title("anthropic"):                 1,
			title("langchain"):                 1,
			title("crewai"):                    1,
			title("autogen"):                   1,
			"Exposed OpenAI API Key Reference": 3,
		}, 90},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := computeAIScore(tc.matches)
			if got.Score != tc.want {
				t.Errorf("computeAIScore(%v) = %d, want %d", tc.matches, got.Score, tc.want)
			}
		})
	}
}

func TestComputeAIScore_AgentDetection(t *testing.T) {
	title := probe.AIToolSignalTitle
	got := computeAIScore(map[string]interface{}{title("langchain"): 1})
	if !got.HasAgent {
		t.Errorf("expected HasAgent true for a langchain hit")
	}
	if got.ToolCount != 1 {
		t.Errorf("expected ToolCount 1, got %d", got.ToolCount)
	}

	got = computeAIScore(map[string]interface{}{title("openai"): 1})
	if got.HasAgent {
		t.Errorf("expected HasAgent false for a plain openai hit")
	}
}
