package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/moyu-x/file-ingest/internal/ingest"
)

// fileRecord 关系型后端的元数据行
// 信封字段为原生列，类型专有字段打包为 JSON 存入 fields 列，
// 读取时反序列化还原为同样的逻辑记录
// content_hash 可空，空值不参与唯一约束（稀疏索引语义）
type fileRecord struct {
	ID          int64          `gorm:"primaryKey"`
	FileName    string         `gorm:"index;not null"`
	FileType    string         `gorm:"index;not null"`
	SourcePath  string         `gorm:"not null"`
	FileSize    int64          `gorm:"not null"`
	ContentHash *string        `gorm:"uniqueIndex"`
	Status      string         `gorm:"index;not null"`
	Fields      datatypes.JSON `gorm:"column:fields"`
	IngestedAt  time.Time      `gorm:"index;not null"`
	UpdatedAt   time.Time
}

func (fileRecord) TableName() string {
	return "file_metadata"
}

// processLogRecord 关系型后端的处理日志行，只追加不修改
type processLogRecord struct {
	ID        int64  `gorm:"primaryKey"`
	FileName  string `gorm:"not null"`
	FileType  string
	Status    string `gorm:"index"`
	Message   string
	Timestamp time.Time `gorm:"index"`
}

func (processLogRecord) TableName() string {
	return "process_logs"
}

// fieldBag 类型专有字段的序列化形式
type fieldBag struct {
	Tabular *ingest.TabularFields `json:"tabular,omitempty"`
	Image   *ingest.ImageFields   `json:"image,omitempty"`
	Video   *ingest.VideoFields   `json:"video,omitempty"`
}

// Relational 基于 gorm + sqlite 的关系型后端
type Relational struct {
	path string
	db   *gorm.DB
	log  zerolog.Logger
}

// NewRelational 创建关系型后端，Connect 之前不持有连接
func NewRelational(path string, log zerolog.Logger) *Relational {
	return &Relational{path: path, log: log}
}

// Connect 打开数据库连接并限制为单连接
// 本系统只有一个处理线程，单连接即可避免 sqlite 写冲突
func (r *Relational) Connect(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("创建数据库目录失败: %w", err)
	}

	dsn := r.path + "?_journal_mode=WAL"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	r.db = db
	r.log.Info().Str("path", r.path).Msg("已连接 SQLite 数据库")
	return nil
}

// Close 关闭数据库连接
func (r *Relational) Close(ctx context.Context) error {
	if r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	r.log.Info().Msg("关闭 SQLite 数据库连接")
	return sqlDB.Close()
}

// HealthCheck 存活探测，从不报错
func (r *Relational) HealthCheck(ctx context.Context) bool {
	if r.db == nil {
		return false
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return false
	}
	return sqlDB.PingContext(ctx) == nil
}

// CreateIndexes 建表并创建索引，幂等
func (r *Relational) CreateIndexes(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&fileRecord{}, &processLogRecord{}); err != nil {
		return fmt.Errorf("创建数据库表失败: %w", err)
	}
	r.log.Info().Msg("SQLite 表和索引创建完成")
	return nil
}

// InsertMetadata 插入元数据记录
func (r *Relational) InsertMetadata(ctx context.Context, m *ingest.Metadata) (string, error) {
	bag, err := json.Marshal(fieldBag{Tabular: m.Tabular, Image: m.Image, Video: m.Video})
	if err != nil {
		return "", fmt.Errorf("序列化类型专有字段失败: %w", err)
	}

	ingestedAt := m.IngestedAt
	if ingestedAt.IsZero() {
		ingestedAt = time.Now().UTC()
	}

	row := &fileRecord{
		FileName:   m.FileName,
		FileType:   string(m.FileType),
		SourcePath: m.SourcePath,
		FileSize:   m.FileSize,
		Status:     string(m.Status),
		Fields:     datatypes.JSON(bag),
		IngestedAt: ingestedAt,
	}
	if m.ContentHash != "" {
		hash := m.ContentHash
		row.ContentHash = &hash
	}

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%w: %s", ErrDuplicateHash, m.ContentHash)
		}
		return "", fmt.Errorf("插入元数据失败: %w", err)
	}

	r.log.Debug().Int64("id", row.ID).Str("file", m.FileName).Msg("元数据插入成功")
	return strconv.FormatInt(row.ID, 10), nil
}

// UpdateMetadata 更新记录字段并刷新 updated_at
func (r *Relational) UpdateMetadata(ctx context.Context, id string, fields map[string]any) (bool, error) {
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return false, fmt.Errorf("非法的记录 id: %s", id)
	}

	updates := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		updates[k] = v
	}
	updates["updated_at"] = time.Now().UTC()

	result := r.db.WithContext(ctx).Model(&fileRecord{}).Where("id = ?", rowID).Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("更新元数据失败: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// GetMetadata 按 id 查询记录
func (r *Relational) GetMetadata(ctx context.Context, id string) (*ingest.Metadata, error) {
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("非法的记录 id: %s", id)
	}

	var row fileRecord
	if err := r.db.WithContext(ctx).First(&row, rowID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询元数据失败: %w", err)
	}
	return row.toMetadata()
}

// FindByHash 按内容哈希查询记录，去重网关使用
func (r *Relational) FindByHash(ctx context.Context, hash string) (*ingest.Metadata, error) {
	var row fileRecord
	if err := r.db.WithContext(ctx).Where("content_hash = ?", hash).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("按哈希查询失败: %w", err)
	}
	return row.toMetadata()
}

// InsertProcessLog 追加处理日志
func (r *Relational) InsertProcessLog(ctx context.Context, e *ingest.ProcessLogEntry) (string, error) {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	row := &processLogRecord{
		FileName:  e.FileName,
		FileType:  string(e.FileType),
		Status:    e.Status,
		Message:   e.Message,
		Timestamp: ts,
	}

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return "", fmt.Errorf("插入处理日志失败: %w", err)
	}
	return strconv.FormatInt(row.ID, 10), nil
}

func (row *fileRecord) toMetadata() (*ingest.Metadata, error) {
	var bag fieldBag
	if len(row.Fields) > 0 {
		if err := json.Unmarshal(row.Fields, &bag); err != nil {
			return nil, fmt.Errorf("反序列化类型专有字段失败: %w", err)
		}
	}

	m := &ingest.Metadata{
		ID:         strconv.FormatInt(row.ID, 10),
		FileName:   row.FileName,
		FileType:   ingest.FileType(row.FileType),
		SourcePath: row.SourcePath,
		FileSize:   row.FileSize,
		Status:     ingest.RecordStatus(row.Status),
		IngestedAt: row.IngestedAt,
		UpdatedAt:  row.UpdatedAt,
		Tabular:    bag.Tabular,
		Image:      bag.Image,
		Video:      bag.Video,
	}
	if row.ContentHash != nil {
		m.ContentHash = *row.ContentHash
	}
	return m, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}
