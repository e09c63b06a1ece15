package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/moyu-x/file-ingest/internal/ingest"
	"github.com/moyu-x/file-ingest/internal/scheduler"
)

// State 监控界面状态
type State int

const (
	// StateWaiting 等待下一个摄取周期
	StateWaiting State = iota

	// StateProcessing 周期进行中
	StateProcessing
)

type model struct {
	state       State
	events      <-chan scheduler.Event
	total       int
	done        int
	lastOutcome *ingest.Outcome
	lastStats   *ingest.CycleStats
	cycles      int
	progressBar progress.Model
	spinner     spinner.Model
	quitting    bool
}

func initialModel(events <-chan scheduler.Event) model {
	progressBar := progress.New(progress.WithDefaultGradient())
	progressBar.PercentageStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("205")).
		Width(4)

	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		FPS:    time.Second / 10,
	}
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return model{
		state:       StateWaiting,
		events:      events,
		progressBar: progressBar,
		spinner:     s,
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.events))
}
