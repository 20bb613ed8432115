// Package tui renders the live progress dashboard for a
// "threatveil scan" CLI run: a spinner and progress bar driven by the
// worker swarm's stats, followed by a risk summary once the scan
// completes. Grounded on the teacher's internal/ui bubbletea model,
// trimmed from an inventory browser (list/detail/topology views) down
// to a single-pass progress view, since this module has one asset in
// flight per scan rather than a graph of resources to navigate.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/threatveil/core/internal/swarm"
	"github.com/threatveil/core/pkg/posture"
)

type tickMsg time.Time

type scanResultMsg struct {
	scan *posture.Scan
	err  error
}

// Model drives the scan-progress view. It holds no store or probe
// dependencies of its own: the scan itself runs in a goroutine started
// by Run, and reports back through scanResultMsg.
type Model struct {
	spinner  spinner.Model
	progress progress.Model
	engine   *swarm.Engine
	domain   string

	scanning  bool
	quitting  bool
	tickCount int
	width     int

	result *posture.Scan
	err    error
}

func NewModel(engine *swarm.Engine, domain string) Model {
	s := spinner.New()
	s.Spinner = spinner.Points
	s.Style = accent

	return Model{
		spinner:  s,
		progress: progress.New(progress.WithDefaultGradient()),
		engine:   engine,
		domain:   domain,
		scanning: true,
		width:    80,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		tea.Tick(150*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) }),
	)
}
