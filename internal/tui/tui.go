package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.progress.Width = msg.Width - 8
		if m.progress.Width < 10 {
			m.progress.Width = 10
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		updated, cmd := m.progress.Update(msg)
		m.progress = updated.(progress.Model)
		return m, cmd

	case tickMsg:
		m.tickCount++
		if !m.scanning {
			return m, nil
		}

		stats := m.engine.GetStats()
		total := float64(stats.TasksCompleted + int64(stats.ActiveWorkers))
		pct := 0.0
		if total > 0 {
			pct = float64(stats.TasksCompleted) / total
		}
		if pct > 0.95 {
			pct = 0.95 // hold shy of 100% until scanResultMsg actually lands
		}
		cmd := m.progress.SetPercent(pct)
		next := tea.Tick(150*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })

		return m, tea.Batch(cmd, next)

	case scanResultMsg:
		m.scanning = false
		m.result = msg.scan
		m.err = msg.err
		return m, tea.Sequence(m.progress.SetPercent(1.0), tea.Quit)
	}

	return m, nil
}

func (m Model) View() string {
	if m.quitting && m.result == nil && m.err == nil {
		return ""
	}

	header := hudStyle.Width(m.width - 2).Render(fmt.Sprintf(
		"threatveil scan  %s", accent.Render(m.domain),
	))

	if m.result != nil {
		return header + "\n\n" + m.viewResult()
	}
	if m.err != nil {
		return header + "\n\n" + danger.Render("scan failed: "+m.err.Error()) + "\n"
	}

	stats := m.engine.GetStats()
	status := fmt.Sprintf("%s scanning %s  (%d active, %d concurrency, %d completed)",
		m.spinner.View(), m.domain, stats.ActiveWorkers, stats.Concurrency, stats.TasksCompleted)

	return header + "\n\n" + status + "\n" + m.progress.View() + "\n\n" + subtle.Render("[q] cancel")
}

func (m Model) viewResult() string {
	score := 0
	summary := ""
	if m.result != nil {
		score = m.result.RiskScore
		summary = m.result.Summary
	}

	risk := riskStyle(score).Render(fmt.Sprintf("risk score: %d", score))
	out := risk
	if summary != "" {
		out += "\n" + subtle.Render(summary)
	}
	if m.result != nil && m.result.PartialFailures > 0 {
		out += "\n" + warning.Render(fmt.Sprintf("%d probe(s) reported a partial failure", m.result.PartialFailures))
	}
	return out
}
