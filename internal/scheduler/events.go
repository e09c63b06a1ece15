package scheduler

import (
	"time"

	"github.com/moyu-x/file-ingest/internal/ingest"
)

// EventKind 周期事件类型
type EventKind int

const (
	// EventCycleStart 周期开始，Total 为本周期待处理文件数
	EventCycleStart EventKind = iota

	// EventFileDone 单个文件处理完成，Outcome 为处理结果
	EventFileDone

	// EventCycleEnd 周期结束，Stats 为本周期统计
	EventCycleEnd
)

// Event 调度周期事件，供 TUI 监控消费
type Event struct {
	Kind    EventKind
	Total   int
	Outcome *ingest.Outcome
	Stats   *ingest.CycleStats
	Time    time.Time
}
