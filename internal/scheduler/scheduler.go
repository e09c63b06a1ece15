package scheduler

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/moyu-x/file-ingest/internal/hasher"
	"github.com/moyu-x/file-ingest/internal/ingest"
	"github.com/moyu-x/file-ingest/internal/pipeline"
)

// 事件通道缓冲区大小
const eventBufferSize = 64

// Scheduler 按固定间隔驱动摄取周期
// 周期内的文件处理是串行的，定时器用 SkipIfStillRunning 抑制重叠执行，
// 保证不会有两个处理流程同时竞争同一个存储连接
type Scheduler struct {
	fs        afero.Fs
	processor *pipeline.Processor
	hasher    *hasher.Hasher
	workers   int
	incoming  string
	interval  time.Duration

	cron    *cron.Cron
	mu      sync.Mutex
	running bool
	jobs    sync.WaitGroup

	events chan Event
	log    zerolog.Logger
}

// New 创建调度器
func New(fs afero.Fs, processor *pipeline.Processor, h *hasher.Hasher, workers int,
	incoming string, intervalMinutes int, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		fs:        fs,
		processor: processor,
		hasher:    h,
		workers:   workers,
		incoming:  incoming,
		interval:  time.Duration(intervalMinutes) * time.Minute,
		log:       log,
	}
}

// Events 创建并返回周期事件通道，TUI 监控使用
// 通道由调度器持有，Stop 在所有周期结束后关闭它
func (s *Scheduler) Events() <-chan Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.events == nil {
		s.events = make(chan Event, eventBufferSize)
	}
	return s.events
}

// Start 注册定时任务并立即同步执行一个周期
// 已在运行时只输出告警，不重复启动
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Warn().Msg("调度器已在运行")
		return
	}

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cronLogger{log: s.log}),
	))
	s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(s.runCycle))
	s.running = true
	s.mu.Unlock()

	s.log.Info().Dur("interval", s.interval).Msg("调度器已启动")

	// 启动后立即执行一次，再交给定时器
	s.log.Info().Msg("执行初始摄取周期")
	s.runCycle()

	// Stop 可能在初始周期进行时被调用，停止后不再启动定时器
	s.mu.Lock()
	if s.running {
		s.cron.Start()
	}
	s.mu.Unlock()
}

// Stop 取消定时任务并等待进行中的周期结束，幂等
// 调用方在 Stop 返回后才能关闭存储连接
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	c := s.cron
	s.mu.Unlock()

	// 先等定时器的任务，再等初始周期，两者都通过 jobs 计数
	<-c.Stop().Done()
	s.jobs.Wait()

	s.mu.Lock()
	if s.events != nil {
		close(s.events)
		s.events = nil
	}
	s.mu.Unlock()

	s.log.Info().Msg("调度器已停止")
}

// Running 返回调度器是否在运行
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunCycle 同步执行一个摄取周期，once 命令使用
func (s *Scheduler) RunCycle() *ingest.CycleStats {
	return s.cycle(context.Background())
}

// runCycle 在运行状态下执行一个周期，并登记到 jobs 供 Stop 等待
// Stop 之后到来的触发直接丢弃
func (s *Scheduler) runCycle() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.jobs.Add(1)
	s.mu.Unlock()
	defer s.jobs.Done()

	s.cycle(context.Background())
}

// cycle 单个摄取周期：列出 incoming 中的文件（不递归）、
// 经哈希池预计算摘要、逐个串行处理、汇总统计
func (s *Scheduler) cycle(ctx context.Context) *ingest.CycleStats {
	stats := &ingest.CycleStats{StartTime: time.Now()}

	s.log.Info().Str("incoming", s.incoming).Msg("开始摄取周期")

	exists, err := afero.DirExists(s.fs, s.incoming)
	if err != nil || !exists {
		s.log.Warn().Str("incoming", s.incoming).Msg("incoming 目录不存在，跳过本周期")
		stats.EndTime = time.Now()
		return stats
	}

	files, err := s.listFiles()
	if err != nil {
		s.log.Error().Err(err).Str("incoming", s.incoming).Msg("读取 incoming 目录失败，提前结束本周期")
		stats.EndTime = time.Now()
		return stats
	}

	if len(files) == 0 {
		s.log.Info().Msg("incoming 目录中没有文件")
		stats.EndTime = time.Now()
		return stats
	}

	stats.Total = len(files)
	s.log.Info().Int("count", len(files)).Msg("找到待处理文件")
	s.emit(Event{Kind: EventCycleStart, Total: len(files)})

	hashes := s.prehash(files)

	for _, path := range files {
		outcome := s.processor.ProcessWithHash(ctx, path, hashes[path])
		stats.Record(outcome)
		s.logOutcome(outcome)
		s.emit(Event{Kind: EventFileDone, Outcome: outcome, Total: len(files)})
	}

	stats.EndTime = time.Now()
	s.log.Info().
		Int("processed", stats.Processed).
		Int("failed", stats.Failed).
		Int("duplicates", stats.Duplicates).
		Dur("duration", stats.EndTime.Sub(stats.StartTime).Round(time.Millisecond)).
		Msg("摄取周期完成")
	s.emit(Event{Kind: EventCycleEnd, Stats: stats})

	return stats
}

// listFiles 非递归列出 incoming 中的普通文件
func (s *Scheduler) listFiles() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.incoming)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		files = append(files, filepath.Join(s.incoming, entry.Name()))
	}
	return files, nil
}

// prehash 经哈希池并发预计算整批文件的摘要
// 计算失败的文件不放入结果，处理器会在状态机内重算并处理错误
func (s *Scheduler) prehash(files []string) map[string]string {
	pool, err := hasher.NewPool(s.hasher, s.workers, s.log)
	if err != nil {
		s.log.Error().Err(err).Msg("创建哈希计算池失败，回退为串行计算")
		return nil
	}

	go func() {
		for _, path := range files {
			pool.Submit(hasher.Task{Path: path})
		}
		pool.Close()
	}()

	hashes := make(map[string]string, len(files))
	for result := range pool.Results() {
		if result.Error != nil {
			s.log.Debug().Err(result.Error).Str("file", result.Path).Msg("预计算哈希失败")
			continue
		}
		hashes[result.Path] = result.Hash
	}
	return hashes
}

func (s *Scheduler) logOutcome(o *ingest.Outcome) {
	switch o.Status {
	case ingest.OutcomeSuccess:
		s.log.Info().Str("file", o.FilePath).Msg("处理成功")
	case ingest.OutcomeDuplicate:
		s.log.Info().Str("file", o.FilePath).Str("message", o.Message).Msg("重复文件")
	default:
		s.log.Warn().Str("file", o.FilePath).Str("status", string(o.Status)).
			Str("message", o.Message).Msg("处理失败")
	}
}

func (s *Scheduler) emit(e Event) {
	s.mu.Lock()
	ch := s.events
	s.mu.Unlock()

	if ch == nil {
		return
	}
	e.Time = time.Now()
	select {
	case ch <- e:
	default:
		// 监控端消费不及时不能阻塞流水线
	}
}

// cronLogger 把 cron 的日志接到 zerolog
type cronLogger struct {
	log zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.log.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.log.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
