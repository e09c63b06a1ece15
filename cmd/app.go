package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/moyu-x/file-ingest/internal/config"
	"github.com/moyu-x/file-ingest/internal/dedup"
	"github.com/moyu-x/file-ingest/internal/extractor"
	"github.com/moyu-x/file-ingest/internal/hasher"
	"github.com/moyu-x/file-ingest/internal/logger"
	"github.com/moyu-x/file-ingest/internal/pipeline"
	"github.com/moyu-x/file-ingest/internal/relocate"
	"github.com/moyu-x/file-ingest/internal/scheduler"
	"github.com/moyu-x/file-ingest/internal/storage"
)

// 启动阶段存储操作的超时
const startupTimeout = 30 * time.Second

// app 进程级组件，启动时构造一次，关闭时按顺序拆除
type app struct {
	cfg   *config.Config
	log   zerolog.Logger
	fs    afero.Fs
	store storage.Store
	sched *scheduler.Scheduler
}

// newApp 加载配置并初始化日志
func newApp() (*app, error) {
	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.LoadFile(cfgFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	return &app{cfg: cfg, log: log, fs: afero.NewOsFs()}, nil
}

// connectStorage 连接存储后端并验证可达性
// 启动时健康检查失败是致命错误，不允许对不可达的存储层开始调度
func (a *app) connectStorage(ctx context.Context) error {
	store, err := storage.New(a.cfg, a.log)
	if err != nil {
		return err
	}

	if err := store.Connect(ctx); err != nil {
		return err
	}

	if !store.HealthCheck(ctx) {
		_ = store.Close(ctx)
		return fmt.Errorf("存储健康检查未通过")
	}

	if err := store.CreateIndexes(ctx); err != nil {
		_ = store.Close(ctx)
		return err
	}

	a.store = store
	return nil
}

// buildPipeline 组装处理器和调度器，并确保目录树存在
func (a *app) buildPipeline() error {
	for _, dir := range a.cfg.Folders.All() {
		if err := a.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建目录失败 %s: %w", dir, err)
		}
		a.log.Info().Str("path", dir).Msg("目录就绪")
	}

	h, err := hasher.New(a.fs, a.cfg.Dedup.Algorithm)
	if err != nil {
		return err
	}

	dispatch := extractor.NewDispatch(a.fs, a.log)
	gate := dedup.NewGate(a.store, a.cfg.Dedup.FailOpen, a.log)
	mover := relocate.NewMover(a.fs, a.log)

	processor := pipeline.New(a.fs, dispatch, h, gate, a.store, mover, a.cfg.Folders, a.log)

	a.sched = scheduler.New(a.fs, processor, h, a.cfg.Performance.Workers,
		a.cfg.Folders.Incoming, a.cfg.Scheduler.IntervalMinutes, a.log)
	return nil
}

// shutdown 有序关闭：先停调度器，再关存储，避免对已关闭的连接写入
func (a *app) shutdown() {
	if a.sched != nil {
		a.sched.Stop()
	}
	if a.store != nil {
		ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
		defer cancel()
		if err := a.store.Close(ctx); err != nil {
			a.log.Error().Err(err).Msg("关闭存储连接失败")
		}
	}
	a.log.Info().Msg("应用已退出")
}
