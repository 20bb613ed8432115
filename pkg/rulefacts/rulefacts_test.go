package rulefacts

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/threatveil/core/pkg/signal"
)

func TestDerive(t *testing.T) {
	signals := []signal.Signal{
		{ID: "codesearch_exposed_openai_api_key_reference", Category: signal.CategoryDataExposure},
		signal.New(signal.Params{Category: signal.CategorySoftware, Severity: signal.SeverityHigh}),
		signal.New(signal.Params{Category: signal.CategoryNetwork, Severity: signal.SeverityMedium}),
	}

	f := Derive(signals)
	assert.True(t, f.AIKeyLeak)
	assert.True(t, f.HighSeveritySoftware)
	assert.True(t, f.NetworkIssueNonLow)
	assert.False(t, f.TLSIssuePresent)
}

func TestDerive_AgentToolDetected(t *testing.T) {
	f := Derive([]signal.Signal{
		signal.New(signal.Params{Category: signal.CategoryAIIntegration, Title: "Agent Framework Usage Detected: langchain"}),
	})
	assert.True(t, f.AgentToolDetected)
	assert.True(t, f.AITooPresent)
}

func TestDerive_PlainAILibraryIsNotAgent(t *testing.T) {
	f := Derive([]signal.Signal{
		signal.New(signal.Params{Category: signal.CategoryAI, Title: "AI Library Import Detected: openai"}),
	})
	assert.False(t, f.AgentToolDetected)
	assert.True(t, f.AITooPresent)
}

func TestTriggerPresent_UnknownActionID(t *testing.T) {
	_, known := TriggerPresent("not-a-real-action", nil)
	assert.False(t, known)
}

func TestTriggerPresent_KeyRotation(t *testing.T) {
	present, known := TriggerPresent("key-rotation", []signal.Signal{
		{ID: "codesearch_exposed_gemini_api_key_reference"},
	})
	assert.True(t, known)
	assert.True(t, present)
}
