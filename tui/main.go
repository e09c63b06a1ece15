package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/moyu-x/file-ingest/internal/scheduler"
)

type teaModel struct {
	m *model
}

func (tm teaModel) Init() tea.Cmd {
	return tm.m.Init()
}

func (tm teaModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	return tm.m.Update(msg)
}

func (tm teaModel) View() string {
	return tm.m.View()
}

// Run 启动监控界面，消费调度器的周期事件直到用户退出
func Run(events <-chan scheduler.Event, log zerolog.Logger) error {
	log.Info().Msg("启动监控界面")

	m := initialModel(events)
	p := tea.NewProgram(teaModel{m: &m}, tea.WithAltScreen())

	_, err := p.Run()
	if err != nil {
		log.Error().Err(err).Msg("监控界面运行错误")
	} else {
		log.Info().Msg("监控界面正常退出")
	}

	return err
}
