package dedup

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/moyu-x/file-ingest/internal/ingest"
	"github.com/moyu-x/file-ingest/internal/storage"
)

// 重复文件在处理日志中的状态标签
const StatusDuplicateRejected = "duplicate_rejected"

// Gate 去重网关，基于存储层的哈希索引判断文件是否重复
type Gate struct {
	store storage.Store

	// failOpen 为 true 时，哈希查询失败按"非重复"放行，
	// 依赖后端唯一索引兜底；默认为 false，查询失败视为处理失败，
	// 不允许静默放入可能的重复文件
	failOpen bool

	log zerolog.Logger
}

// NewGate 创建去重网关
func NewGate(store storage.Store, failOpen bool, log zerolog.Logger) *Gate {
	return &Gate{store: store, failOpen: failOpen, log: log}
}

// Check 查询哈希是否已存在
// 返回 (是否重复, 已有记录, 错误)；记录不存在不是错误
func (g *Gate) Check(ctx context.Context, hash string) (bool, *ingest.Metadata, error) {
	existing, err := g.store.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil, nil
		}
		if g.failOpen {
			g.log.Warn().Err(err).Str("hash", hash).
				Msg("哈希查询失败，按配置放行（fail_open）")
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("哈希查询失败: %w", err)
	}

	g.log.Warn().Str("hash", hash).Str("original", existing.FileName).Msg("检测到重复文件")
	return true, existing, nil
}

// LogDuplicate 向处理日志追加一条重复记录
// 结果已判定为重复，日志写入失败只记录告警，不改变处理结果
func (g *Gate) LogDuplicate(ctx context.Context, fileName, originalName string) {
	entry := &ingest.ProcessLogEntry{
		FileName: fileName,
		Status:   StatusDuplicateRejected,
		Message:  fmt.Sprintf("文件与 %s 内容重复", originalName),
	}

	if _, err := g.store.InsertProcessLog(ctx, entry); err != nil {
		g.log.Error().Err(err).Str("file", fileName).Msg("写入重复文件日志失败")
		return
	}
	g.log.Info().Str("file", fileName).Str("original", originalName).Msg("重复文件已记录")
}
