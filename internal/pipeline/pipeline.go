package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/moyu-x/file-ingest/internal/classify"
	"github.com/moyu-x/file-ingest/internal/config"
	"github.com/moyu-x/file-ingest/internal/dedup"
	"github.com/moyu-x/file-ingest/internal/extractor"
	"github.com/moyu-x/file-ingest/internal/hasher"
	"github.com/moyu-x/file-ingest/internal/ingest"
	"github.com/moyu-x/file-ingest/internal/relocate"
	"github.com/moyu-x/file-ingest/internal/storage"
)

// Processor 单文件处理状态机
// 状态顺序：校验 → 提取 → 去重 → 入库 → 搬运
// 协作者抛出的任何错误都在这里被转换为终态，单个文件的失败不会中断批次
type Processor struct {
	fs       afero.Fs
	dispatch *extractor.Dispatch
	hasher   *hasher.Hasher
	gate     *dedup.Gate
	store    storage.Store
	mover    *relocate.Mover
	folders  config.Folders
	log      zerolog.Logger
	now      func() time.Time
}

// New 创建文件处理器，所有依赖显式传入
func New(fs afero.Fs, dispatch *extractor.Dispatch, h *hasher.Hasher, gate *dedup.Gate,
	store storage.Store, mover *relocate.Mover, folders config.Folders, log zerolog.Logger) *Processor {
	return &Processor{
		fs:       fs,
		dispatch: dispatch,
		hasher:   h,
		gate:     gate,
		store:    store,
		mover:    mover,
		folders:  folders,
		log:      log,
		now:      time.Now,
	}
}

// Process 处理单个文件，内容哈希在状态机内计算
func (p *Processor) Process(ctx context.Context, path string) *ingest.Outcome {
	return p.ProcessWithHash(ctx, path, "")
}

// ProcessWithHash 处理单个文件，precomputedHash 非空时跳过哈希计算
// 调度器在周期开始时经哈希池批量预计算，再逐个串行处理
// 每次调用恰好产生一个终态，文件进入状态机后不再取消
func (p *Processor) ProcessWithHash(ctx context.Context, path string, precomputedHash string) (outcome *ingest.Outcome) {
	outcome = &ingest.Outcome{FilePath: path, Status: ingest.OutcomeUnexpectedError}

	// 状态机内任何未处理的异常都在这里收口为终态
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Any("panic", r).Str("file", path).Msg("处理文件时发生未预期的错误")
			outcome.Status = ingest.OutcomeUnexpectedError
			outcome.Message = fmt.Sprintf("未预期的错误: %v", r)
			p.moveToFailed(ctx, path, outcome.Message)
		}
	}()

	p.log.Info().Str("file", path).Msg("开始处理文件")

	fileType := classify.ByExtension(path)

	// 状态 1：校验
	valid, reason := p.dispatch.Validate(path, fileType)
	if !valid {
		outcome.Status = ingest.OutcomeValidationFailed
		outcome.Message = reason
		p.moveToFailed(ctx, path, reason)
		return outcome
	}

	// 状态 2：提取（含哈希计算）
	metadata, err := p.dispatch.Extract(path, fileType)
	if err != nil {
		outcome.Status = ingest.OutcomeExtractionFailed
		outcome.Message = err.Error()
		p.moveToFailed(ctx, path, outcome.Message)
		return outcome
	}

	hash := precomputedHash
	if hash == "" {
		hash, err = p.hasher.Sum(path)
		if err != nil {
			outcome.Status = ingest.OutcomeExtractionFailed
			outcome.Message = fmt.Sprintf("计算内容哈希失败: %v", err)
			p.moveToFailed(ctx, path, outcome.Message)
			return outcome
		}
	}
	metadata.ContentHash = hash

	// 状态 3：去重
	isDuplicate, existing, err := p.gate.Check(ctx, hash)
	if err != nil {
		outcome.Status = ingest.OutcomeUnexpectedError
		outcome.Message = err.Error()
		p.moveToFailed(ctx, path, outcome.Message)
		return outcome
	}
	if isDuplicate {
		outcome.Status = ingest.OutcomeDuplicate
		outcome.Message = fmt.Sprintf("与 %s 内容重复", existing.FileName)
		p.gate.LogDuplicate(ctx, metadata.FileName, existing.FileName)
		p.quarantineDuplicate(path, fileType)
		return outcome
	}

	// 状态 4：入库，两阶段状态，搬运成功后才标记 validated
	metadata.Status = ingest.StatusProcessing
	storageID, err := p.store.InsertMetadata(ctx, metadata)
	if err != nil {
		outcome.Status = ingest.OutcomeInsertFailed
		outcome.Message = fmt.Sprintf("插入元数据失败: %v", err)
		p.moveToFailed(ctx, path, outcome.Message)
		return outcome
	}
	outcome.StorageID = storageID

	// 状态 5：搬运，先复制到 validated 树，再把原件移入 raw 树
	if err := p.relocateValidated(path, fileType); err != nil {
		outcome.Status = ingest.OutcomeMoveFailed
		outcome.Message = err.Error()
		p.markRecordFailed(ctx, storageID)
		p.moveToFailed(ctx, path, outcome.Message)
		return outcome
	}

	// 状态 6：成功，标记记录为 validated
	if ok, err := p.store.UpdateMetadata(ctx, storageID, map[string]any{"status": string(ingest.StatusValidated)}); err != nil || !ok {
		// 文件已经完成搬运，只有记录状态停留在 processing
		outcome.Status = ingest.OutcomeUnexpectedError
		outcome.Message = "更新记录状态失败，记录停留在 processing"
		p.logProcess(ctx, metadata.FileName, fileType, "failed", outcome.Message)
		p.log.Error().Err(err).Str("id", storageID).Msg("标记记录为 validated 失败")
		return outcome
	}
	metadata.Status = ingest.StatusValidated

	outcome.Status = ingest.OutcomeSuccess
	outcome.Message = "文件处理成功"
	outcome.Metadata = metadata
	p.logProcess(ctx, metadata.FileName, fileType, "success", "")
	p.log.Info().Str("file", path).Msg("文件处理成功")
	return outcome
}

// relocateValidated 复制到 validated 树并把原件移入 raw 树
func (p *Processor) relocateValidated(path string, fileType ingest.FileType) error {
	fileName := filepath.Base(path)
	now := p.now()

	validatedDir := relocate.DestinationFor(p.folders.Validated, fileType, now)
	if _, err := p.mover.Copy(path, filepath.Join(validatedDir, fileName)); err != nil {
		return fmt.Errorf("复制到 validated 目录失败: %w", err)
	}

	rawDir := relocate.DestinationFor(p.folders.Raw, fileType, now)
	if _, err := p.mover.Move(path, filepath.Join(rawDir, fileName)); err != nil {
		return fmt.Errorf("移动到 raw 目录失败: %w", err)
	}

	return nil
}

// quarantineDuplicate 把重复文件移入隔离目录
// 留在 incoming 会导致每个周期重复处理同一个文件
func (p *Processor) quarantineDuplicate(path string, fileType ingest.FileType) {
	dir := relocate.DestinationFor(p.folders.Duplicates, fileType, p.now())
	if _, err := p.mover.Move(path, filepath.Join(dir, filepath.Base(path))); err != nil {
		p.log.Error().Err(err).Str("file", path).Msg("移动重复文件到隔离目录失败")
	}
}

// moveToFailed 把文件移入 failed 树并记录处理日志
// 搬运失败时日志仍然写入，终态必须留下可查的处理记录
func (p *Processor) moveToFailed(ctx context.Context, path string, reason string) {
	fileType := classify.ByExtension(path)
	dir := relocate.DestinationFor(p.folders.Failed, fileType, p.now())

	if _, err := p.mover.Move(path, filepath.Join(dir, filepath.Base(path))); err != nil {
		p.log.Error().Err(err).Str("file", path).Msg("移动文件到 failed 目录失败")
		reason = fmt.Sprintf("%s（移动到 failed 目录失败: %v）", reason, err)
	} else {
		p.log.Warn().Str("file", path).Str("reason", reason).Msg("文件已移入 failed 目录")
	}

	p.logProcess(ctx, filepath.Base(path), fileType, "failed", reason)
}

// logProcess 追加一条处理日志，写失败只记录错误
func (p *Processor) logProcess(ctx context.Context, fileName string, fileType ingest.FileType, status, message string) {
	if message == "" {
		message = fmt.Sprintf("文件处理状态: %s", status)
	}
	entry := &ingest.ProcessLogEntry{
		FileName: fileName,
		FileType: fileType,
		Status:   status,
		Message:  message,
	}
	if _, err := p.store.InsertProcessLog(ctx, entry); err != nil {
		p.log.Error().Err(err).Str("file", fileName).Msg("写入处理日志失败")
	}
}

// markRecordFailed 搬运失败后把记录标记为 failed，记录不会被删除
func (p *Processor) markRecordFailed(ctx context.Context, id string) {
	if _, err := p.store.UpdateMetadata(ctx, id, map[string]any{"status": string(ingest.StatusFailed)}); err != nil {
		p.log.Error().Err(err).Str("id", id).Msg("标记记录为 failed 失败")
	}
}
