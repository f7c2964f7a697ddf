package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/recursive-core/arc/pkg/models"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("62")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	activeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	doneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("28")).
			Bold(true)

	failedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	blockedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

func statusStyle(status models.ObjectiveStatus) lipgloss.Style {
	switch status {
	case models.StatusDone:
		return doneStyle
	case models.StatusFailed:
		return failedStyle
	case models.StatusBlocked:
		return blockedStyle
	case models.StatusActive, models.StatusRouting:
		return activeStyle
	default:
		return dimStyle
	}
}

func statusGlyph(status models.ObjectiveStatus) string {
	switch status {
	case models.StatusDone:
		return "✓"
	case models.StatusFailed:
		return "✗"
	case models.StatusBlocked:
		return "!"
	case models.StatusActive, models.StatusRouting:
		return "●"
	default:
		return "·"
	}
}

func levelStyle(level string) lipgloss.Style {
	switch level {
	case "ERROR":
		return failedStyle
	case "WARN":
		return warnStyle
	default:
		return dimStyle
	}
}
