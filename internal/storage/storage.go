package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/moyu-x/file-ingest/internal/config"
	"github.com/moyu-x/file-ingest/internal/ingest"
)

var (
	// ErrNotFound 记录不存在，查询接口用它表示"未找到"，不属于异常
	ErrNotFound = errors.New("记录不存在")

	// ErrDuplicateHash 内容哈希与已有记录冲突，唯一索引兜底触发
	ErrDuplicateHash = errors.New("内容哈希已存在")

	// ErrConnection 后端不可达
	ErrConnection = errors.New("数据库连接失败")
)

// Store 元数据存储的后端无关契约
// 所有后端必须表现一致：服务端填充 IngestedAt/Timestamp、
// content_hash 稀疏唯一索引、查询缺失返回 ErrNotFound
type Store interface {
	// Connect 建立连接，超时返回包装了 ErrConnection 的错误
	Connect(ctx context.Context) error

	// Close 关闭连接
	Close(ctx context.Context) error

	// HealthCheck 轻量存活探测，只返回布尔值，从不报错
	HealthCheck(ctx context.Context) bool

	// CreateIndexes 幂等地创建索引：content_hash 稀疏唯一索引，
	// file_name/file_type/status/ingested_at 二级索引
	CreateIndexes(ctx context.Context) error

	// InsertMetadata 插入元数据记录，IngestedAt 为零值时由服务端填充
	// 哈希冲突时返回包装了 ErrDuplicateHash 的错误
	InsertMetadata(ctx context.Context, m *ingest.Metadata) (string, error)

	// UpdateMetadata 更新记录字段并刷新 UpdatedAt，返回是否有记录被修改
	UpdateMetadata(ctx context.Context, id string, fields map[string]any) (bool, error)

	// GetMetadata 按 id 查询记录，缺失返回 ErrNotFound
	GetMetadata(ctx context.Context, id string) (*ingest.Metadata, error)

	// FindByHash 按内容哈希查询记录，缺失返回 ErrNotFound
	FindByHash(ctx context.Context, hash string) (*ingest.Metadata, error)

	// InsertProcessLog 追加处理日志，Timestamp 为零值时由服务端填充
	InsertProcessLog(ctx context.Context, e *ingest.ProcessLogEntry) (string, error)
}

// New 根据配置选择后端实现
// 后端在启动时由配置选定，运行期间不做类型判断
func New(cfg *config.Config, log zerolog.Logger) (Store, error) {
	switch cfg.Database.Type {
	case "sqlite":
		return NewRelational(cfg.Database.SQLite.Path, log), nil
	case "mongodb":
		return NewMongo(cfg.Database.MongoDB.URI, cfg.Database.MongoDB.Database, log), nil
	default:
		return nil, fmt.Errorf("不支持的数据库类型: %s", cfg.Database.Type)
	}
}
