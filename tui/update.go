package tui

import (
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/moyu-x/file-ingest/internal/scheduler"
)

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return teaModel{m: m}, tea.Quit
		}
		return teaModel{m: m}, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return teaModel{m: m}, cmd

	case progress.FrameMsg:
		bar, cmd := m.progressBar.Update(msg)
		m.progressBar = bar.(progress.Model)
		return teaModel{m: m}, cmd

	case eventMsg:
		cmd := m.handleEvent(scheduler.Event(msg))
		return teaModel{m: m}, tea.Batch(cmd, waitForEvent(m.events))

	case eventsClosedMsg:
		m.quitting = true
		return teaModel{m: m}, tea.Quit
	}

	return teaModel{m: m}, nil
}

func (m *model) handleEvent(e scheduler.Event) tea.Cmd {
	switch e.Kind {
	case scheduler.EventCycleStart:
		m.state = StateProcessing
		m.total = e.Total
		m.done = 0
		m.lastOutcome = nil
		return m.progressBar.SetPercent(0)

	case scheduler.EventFileDone:
		m.done++
		m.lastOutcome = e.Outcome
		if m.total > 0 {
			return m.progressBar.SetPercent(float64(m.done) / float64(m.total))
		}
		return nil

	case scheduler.EventCycleEnd:
		m.state = StateWaiting
		m.lastStats = e.Stats
		m.cycles++
		return nil
	}

	return nil
}
