package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/moyu-x/file-ingest/internal/scheduler"
)

// eventMsg 包装调度器的周期事件
type eventMsg scheduler.Event

// eventsClosedMsg 事件通道已关闭，调度器不再产生事件
type eventsClosedMsg struct{}

// waitForEvent 阻塞等待下一个周期事件
func waitForEvent(ch <-chan scheduler.Event) tea.Cmd {
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(e)
	}
}
