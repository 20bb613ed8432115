package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/threatveil/core/pkg/posture"
	"github.com/threatveil/core/pkg/signal"
)

func cveSignal(id string) signal.Signal {
	return signal.New(signal.Params{ID: id, Severity: signal.SeverityHigh, Category: signal.CategorySoftware, Source: "vulndb"})
}

func TestEvaluateFromSignals_KeyRotationPass(t *testing.T) {
	before := []signal.Signal{
		signal.New(signal.Params{ID: "codesearch_exposed_openai_api_key_reference", Category: signal.CategoryDataExposure, Severity: signal.SeverityHigh, Source: "codesearch"}),
	}
	result, confidence, _ := evaluateFromSignals("key-rotation", before, nil)
	assert.Equal(t, posture.VerificationPass, result)
	assert.Equal(t, posture.ConfidenceCertain, confidence)
}

func TestEvaluateFromSignals_HSTSAliasFixHeaders(t *testing.T) {
	before := []signal.Signal{signal.New(signal.Params{ID: hstsMissingSignalID, Category: signal.CategorySoftware, Severity: signal.SeverityHigh})}
	result, _, _ := evaluateFromSignals("fix-headers", before, nil)
	assert.Equal(t, posture.VerificationPass, result)
}

func TestEvaluateFromSignals_PatchCVEsFailsWhenCountUnchanged(t *testing.T) {
	before := []signal.Signal{cveSignal("cve_1"), cveSignal("cve_2")}
	after := []signal.Signal{cveSignal("cve_1"), cveSignal("cve_2")}
	result, _, _ := evaluateFromSignals("patch-cves", before, after)
	assert.Equal(t, posture.VerificationFail, result)
}

func TestEvaluateFromSignals_UpdateTLSUnreachableIsUnknown(t *testing.T) {
	after := []signal.Signal{signal.New(signal.Params{ID: tlsUnreachableID, Category: signal.CategoryNetwork, Severity: signal.SeverityHigh})}
	result, confidence, _ := evaluateFromSignals("update-tls", nil, after)
	assert.Equal(t, posture.VerificationUnknown, result)
	assert.Equal(t, posture.ConfidenceUnverifiable, confidence)
}

func TestEvaluateFromSignals_UnknownActionID(t *testing.T) {
	result, confidence, _ := evaluateFromSignals("not-a-real-rule", nil, nil)
	assert.Equal(t, posture.VerificationUnknown, result)
	assert.Equal(t, posture.ConfidenceStale, confidence)
}
