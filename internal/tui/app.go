// Package tui provides the terminal user interface for watching the
// kernel cycle objectives.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/recursive-core/arc/internal/kernel"
	"github.com/recursive-core/arc/pkg/models"
)

// KernelEventMsg wraps a kernel event for the TUI.
type KernelEventMsg struct {
	Event kernel.Event
}

// eventsClosedMsg signals the kernel event channel closed.
type eventsClosedMsg struct{}

// LogEntry is one line in the event log panel.
type LogEntry struct {
	Timestamp time.Time
	Level     string
	Message   string
}

// objectiveRow tracks what the TUI knows about one objective.
type objectiveRow struct {
	id          string
	description string
	capability  string
	phase       models.Phase
	cycle       int
	status      models.ObjectiveStatus
}

// maxLogLines bounds the log panel's memory.
const maxLogLines = 200

// App is the main bubbletea model for the watch view.
type App struct {
	events <-chan kernel.Event

	spinner spinner.Model

	// order preserves first-seen ordering; rows indexes by ID.
	order []string
	rows  map[string]*objectiveRow
	logs  []LogEntry

	width    int
	height   int
	quitting bool
	closed   bool
}

// New creates a watch app over the kernel's event stream.
func New(events <-chan kernel.Event) *App {
	sp := spinner.New()
	sp.Spinner = spinner.MiniDot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &App{
		events:  events,
		spinner: sp,
		rows:    make(map[string]*objectiveRow),
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.waitForEvent())
}

// waitForEvent blocks on the kernel channel as a bubbletea command.
func (a *App) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		event, ok := <-a.events
		if !ok {
			return eventsClosedMsg{}
		}
		return KernelEventMsg{Event: event}
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = true
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

	case KernelEventMsg:
		a.handleEvent(msg.Event)
		return a, a.waitForEvent()

	case eventsClosedMsg:
		a.closed = true
		a.appendLog("INFO", "kernel event stream closed")

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

// handleEvent folds one kernel event into the view state.
func (a *App) handleEvent(event kernel.Event) {
	row := a.rows[event.ObjectiveID]
	if row == nil {
		row = &objectiveRow{id: event.ObjectiveID}
		a.rows[event.ObjectiveID] = row
		a.order = append(a.order, event.ObjectiveID)
	}

	switch event.Type {
	case kernel.EventObjectiveSubmitted:
		row.status = models.StatusQueued
		row.description = event.Message
		a.appendLog("INFO", fmt.Sprintf("submitted %s: %s", shortID(event.ObjectiveID), event.Message))
	case kernel.EventObjectiveRouted:
		row.status = models.StatusActive
		row.capability = event.Capability
		a.appendLog("INFO", fmt.Sprintf("%s routed to %s", shortID(event.ObjectiveID), event.Capability))
	case kernel.EventObjectiveBlocked:
		row.status = models.StatusBlocked
		a.appendLog("WARN", fmt.Sprintf("%s blocked: %s", shortID(event.ObjectiveID), event.Message))
	case kernel.EventPhaseCompleted:
		row.status = models.StatusActive
		row.phase = event.Phase
		row.cycle = event.Cycle
	case kernel.EventPhaseRetrying:
		a.appendLog("WARN", fmt.Sprintf("%s retrying after %s: %s",
			shortID(event.ObjectiveID), event.Phase, event.Message))
	case kernel.EventObjectiveDone:
		row.status = models.StatusDone
		a.appendLog("INFO", fmt.Sprintf("%s done", shortID(event.ObjectiveID)))
	case kernel.EventObjectiveFailed:
		row.status = models.StatusFailed
		detail := event.Message
		if event.Err != nil {
			detail = event.Err.Error()
		}
		a.appendLog("ERROR", fmt.Sprintf("%s failed: %s", shortID(event.ObjectiveID), detail))
	case kernel.EventObjectiveResumed:
		row.status = models.StatusActive
		a.appendLog("INFO", fmt.Sprintf("%s resumed at %s", shortID(event.ObjectiveID), event.Phase))
	}
}

func (a *App) appendLog(level, message string) {
	a.logs = append(a.logs, LogEntry{Timestamp: time.Now(), Level: level, Message: message})
	if len(a.logs) > maxLogLines {
		a.logs = a.logs[len(a.logs)-maxLogLines:]
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return "Goodbye!\n"
	}
	return fmt.Sprintf("%s\n\n%s\n\n%s\n\n%s",
		a.viewHeader(), a.viewObjectives(), a.viewLogs(), a.viewFooter())
}

func (a *App) viewHeader() string {
	title := headerStyle.Render(" arc ")
	if a.closed {
		return title + "  " + dimStyle.Render("stream closed")
	}
	return title + "  " + a.spinner.View() + dimStyle.Render(" watching kernel events")
}

func (a *App) viewObjectives() string {
	if len(a.order) == 0 {
		return dimStyle.Render("  no objectives yet")
	}

	var view string
	for _, id := range a.order {
		row := a.rows[id]
		phase := "-"
		if row.phase != "" {
			phase = fmt.Sprintf("%s cycle %d", row.phase, row.cycle)
		}
		capability := row.capability
		if capability == "" {
			capability = "-"
		}
		view += fmt.Sprintf("  %s %s %-10s %-18s %s\n",
			statusStyle(row.status).Render(statusGlyph(row.status)),
			shortID(row.id), capability, phase, truncateLine(row.description, 48))
	}
	return view
}

func (a *App) viewLogs() string {
	if len(a.logs) == 0 {
		return dimStyle.Render("  no events yet")
	}

	show := a.logs
	if len(show) > 8 {
		show = show[len(show)-8:]
	}
	var view string
	for _, entry := range show {
		view += fmt.Sprintf("  %s %s %s\n",
			dimStyle.Render(entry.Timestamp.Format("15:04:05")),
			levelStyle(entry.Level).Render(fmt.Sprintf("%-5s", entry.Level)),
			entry.Message)
	}
	return view
}

func (a *App) viewFooter() string {
	var done, failed, active int
	for _, row := range a.rows {
		switch row.status {
		case models.StatusDone:
			done++
		case models.StatusFailed:
			failed++
		case models.StatusActive:
			active++
		}
	}
	counts := fmt.Sprintf("%d active  %d done  %d failed", active, done, failed)
	return dimStyle.Render("  " + counts + "   q: quit")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncateLine(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
