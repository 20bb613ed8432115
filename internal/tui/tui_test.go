package tui

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/threatveil/core/internal/swarm"
	"github.com/threatveil/core/pkg/posture"
)

func TestView_ScanningShowsSpinnerAndDomain(t *testing.T) {
	m := NewModel(swarm.NewEngine(), "acme.com")

	view := m.View()

	assert.Contains(t, view, "acme.com")
	assert.Contains(t, view, "scanning")
}

func TestView_ResultShowsRiskScoreAndSummary(t *testing.T) {
	m := NewModel(swarm.NewEngine(), "acme.com")
	m.scanning = false
	m.result = &posture.Scan{RiskScore: 82, Summary: "critical exposure on mail infra"}

	view := m.View()

	assert.True(t, strings.Contains(view, "risk score: 82"))
	assert.Contains(t, view, "critical exposure on mail infra")
}

func TestView_ErrorShowsFailureMessage(t *testing.T) {
	m := NewModel(swarm.NewEngine(), "acme.com")
	m.scanning = false
	m.err = assertError{"probe timeout"}

	view := m.View()

	assert.Contains(t, view, "scan failed")
	assert.Contains(t, view, "probe timeout")
}

type assertError struct{ msg string }

func (e assertError) Error() string { return e.msg }
