package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/moyu-x/file-ingest/internal/ingest"
)

const (
	metadataCollection = "file_metadata"
	logCollection      = "process_logs"
)

// mongoRecord 文档型后端的元数据文档
type mongoRecord struct {
	ID          bson.ObjectID         `bson:"_id,omitempty"`
	FileName    string                `bson:"file_name"`
	FileType    string                `bson:"file_type"`
	SourcePath  string                `bson:"source_path"`
	FileSize    int64                 `bson:"file_size"`
	ContentHash string                `bson:"content_hash,omitempty"`
	Status      string                `bson:"status"`
	IngestedAt  time.Time             `bson:"ingested_at"`
	UpdatedAt   time.Time             `bson:"updated_at,omitempty"`
	Tabular     *ingest.TabularFields `bson:"tabular,omitempty"`
	Image       *ingest.ImageFields   `bson:"image,omitempty"`
	Video       *ingest.VideoFields   `bson:"video,omitempty"`
}

// Mongo 文档型后端
type Mongo struct {
	uri      string
	database string
	client   *mongo.Client
	db       *mongo.Database
	log      zerolog.Logger
}

// NewMongo 创建文档型后端，Connect 之前不持有连接
func NewMongo(uri, database string, log zerolog.Logger) *Mongo {
	return &Mongo{uri: uri, database: database, log: log}
}

// Connect 建立连接并用 ping 验证可达性
func (m *Mongo) Connect(ctx context.Context) error {
	client, err := mongo.Connect(options.Client().
		ApplyURI(m.uri).
		SetServerSelectionTimeout(5 * time.Second).
		SetConnectTimeout(10 * time.Second))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}

	m.client = client
	m.db = client.Database(m.database)
	m.log.Info().Str("database", m.database).Msg("已连接 MongoDB")
	return nil
}

// Close 断开连接
func (m *Mongo) Close(ctx context.Context) error {
	if m.client == nil {
		return nil
	}
	m.log.Info().Msg("断开 MongoDB 连接")
	return m.client.Disconnect(ctx)
}

// HealthCheck 存活探测，从不报错
func (m *Mongo) HealthCheck(ctx context.Context) bool {
	if m.client == nil {
		return false
	}
	return m.client.Ping(ctx, nil) == nil
}

// CreateIndexes 创建索引，幂等
// content_hash 为稀疏唯一索引，允许没有哈希的历史文档
func (m *Mongo) CreateIndexes(ctx context.Context) error {
	metadataIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "content_hash", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{Keys: bson.D{{Key: "file_name", Value: 1}}},
		{Keys: bson.D{{Key: "file_type", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "ingested_at", Value: 1}}},
	}
	if _, err := m.db.Collection(metadataCollection).Indexes().CreateMany(ctx, metadataIndexes); err != nil {
		return fmt.Errorf("创建元数据索引失败: %w", err)
	}

	logIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "timestamp", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	}
	if _, err := m.db.Collection(logCollection).Indexes().CreateMany(ctx, logIndexes); err != nil {
		return fmt.Errorf("创建处理日志索引失败: %w", err)
	}

	m.log.Info().Msg("MongoDB 索引创建完成")
	return nil
}

// InsertMetadata 插入元数据文档
func (m *Mongo) InsertMetadata(ctx context.Context, meta *ingest.Metadata) (string, error) {
	doc := toMongoRecord(meta)
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = time.Now().UTC()
	}

	result, err := m.db.Collection(metadataCollection).InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("%w: %s", ErrDuplicateHash, meta.ContentHash)
		}
		return "", fmt.Errorf("插入元数据失败: %w", err)
	}

	id, ok := result.InsertedID.(bson.ObjectID)
	if !ok {
		return "", fmt.Errorf("插入结果中没有有效的 ObjectID")
	}

	m.log.Debug().Str("id", id.Hex()).Str("file", meta.FileName).Msg("元数据插入成功")
	return id.Hex(), nil
}

// UpdateMetadata 更新文档字段并刷新 updated_at
func (m *Mongo) UpdateMetadata(ctx context.Context, id string, fields map[string]any) (bool, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return false, fmt.Errorf("非法的记录 id: %s", id)
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	for k, v := range fields {
		set[k] = v
	}

	result, err := m.db.Collection(metadataCollection).UpdateByID(ctx, objectID, bson.M{"$set": set})
	if err != nil {
		return false, fmt.Errorf("更新元数据失败: %w", err)
	}
	return result.ModifiedCount > 0, nil
}

// GetMetadata 按 id 查询文档
func (m *Mongo) GetMetadata(ctx context.Context, id string) (*ingest.Metadata, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("非法的记录 id: %s", id)
	}

	var doc mongoRecord
	err = m.db.Collection(metadataCollection).FindOne(ctx, bson.M{"_id": objectID}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询元数据失败: %w", err)
	}
	return doc.toMetadata(), nil
}

// FindByHash 按内容哈希查询文档，去重网关使用
func (m *Mongo) FindByHash(ctx context.Context, hash string) (*ingest.Metadata, error) {
	var doc mongoRecord
	err := m.db.Collection(metadataCollection).FindOne(ctx, bson.M{"content_hash": hash}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("按哈希查询失败: %w", err)
	}
	return doc.toMetadata(), nil
}

// InsertProcessLog 追加处理日志文档
func (m *Mongo) InsertProcessLog(ctx context.Context, e *ingest.ProcessLogEntry) (string, error) {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	doc := bson.M{
		"file_name": e.FileName,
		"status":    e.Status,
		"message":   e.Message,
		"timestamp": ts,
	}
	if e.FileType != "" {
		doc["file_type"] = string(e.FileType)
	}

	result, err := m.db.Collection(logCollection).InsertOne(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("插入处理日志失败: %w", err)
	}

	id, ok := result.InsertedID.(bson.ObjectID)
	if !ok {
		return "", fmt.Errorf("插入结果中没有有效的 ObjectID")
	}
	return id.Hex(), nil
}

func toMongoRecord(m *ingest.Metadata) *mongoRecord {
	return &mongoRecord{
		FileName:    m.FileName,
		FileType:    string(m.FileType),
		SourcePath:  m.SourcePath,
		FileSize:    m.FileSize,
		ContentHash: m.ContentHash,
		Status:      string(m.Status),
		IngestedAt:  m.IngestedAt,
		UpdatedAt:   m.UpdatedAt,
		Tabular:     m.Tabular,
		Image:       m.Image,
		Video:       m.Video,
	}
}

func (doc *mongoRecord) toMetadata() *ingest.Metadata {
	return &ingest.Metadata{
		ID:          doc.ID.Hex(),
		FileName:    doc.FileName,
		FileType:    ingest.FileType(doc.FileType),
		SourcePath:  doc.SourcePath,
		FileSize:    doc.FileSize,
		ContentHash: doc.ContentHash,
		Status:      ingest.RecordStatus(doc.Status),
		IngestedAt:  doc.IngestedAt,
		UpdatedAt:   doc.UpdatedAt,
		Tabular:     doc.Tabular,
		Image:       doc.Image,
		Video:       doc.Video,
	}
}
