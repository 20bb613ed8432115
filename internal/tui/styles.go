package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent  = lipgloss.Color("#00FF99")
	colorBorder  = lipgloss.Color("#874BFD")
	colorSub     = lipgloss.Color("#64748B")
	colorDanger  = lipgloss.Color("#FF0055")
	colorWarning = lipgloss.Color("#F59E0B")

	subtle  = lipgloss.NewStyle().Foreground(colorSub)
	accent  = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	danger  = lipgloss.NewStyle().Foreground(colorDanger).Bold(true)
	warning = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)

	hudStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(colorSub).Bold(true).MarginRight(1)
)

func riskStyle(score int) lipgloss.Style {
	switch {
	case score >= 70:
		return danger
	case score >= 40:
		return warning
	default:
		return accent
	}
}
