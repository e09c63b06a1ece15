package ingest

import "time"

// FileType 文件类型标签
type FileType string

const (
	TypeTabular FileType = "tabular"
	TypeImage   FileType = "image"
	TypeVideo   FileType = "video"
	TypeUnknown FileType = "unknown"
)

// RecordStatus 元数据记录状态
type RecordStatus string

const (
	StatusProcessing RecordStatus = "processing"
	StatusValidated  RecordStatus = "validated"
	StatusFailed     RecordStatus = "failed"
)

// ColumnSchema 表格文件单列的结构信息
type ColumnSchema struct {
	Type        string `json:"type"`
	Nullable    bool   `json:"nullable"`
	UniqueCount int    `json:"unique_count"`
}

// TabularFields 表格文件的专有元数据
type TabularFields struct {
	RowCount    int                     `json:"row_count"`
	ColumnCount int                     `json:"column_count"`
	Columns     []string                `json:"columns"`
	Schema      map[string]ColumnSchema `json:"schema"`
}

// ImageFields 图片文件的专有元数据
type ImageFields struct {
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	Channels   int               `json:"channels"`
	Format     string            `json:"format"`
	Megapixels float64           `json:"size_mp"`
	EXIF       map[string]string `json:"exif,omitempty"`
}

// VideoFields 视频文件的专有元数据
type VideoFields struct {
	DurationSeconds float64 `json:"duration_seconds"`
	DurationText    string  `json:"duration_formatted"`
	FPS             float64 `json:"fps"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	Resolution      string  `json:"resolution"`
	FrameCount      int64   `json:"frame_count"`
	Codec           string  `json:"codec"`
}

// Metadata 一个已校验文件的元数据记录
// Tabular/Image/Video 三个字段中至多一个非空，由 FileType 决定
type Metadata struct {
	ID          string         `json:"id,omitempty"`
	FileName    string         `json:"file_name"`
	FileType    FileType       `json:"file_type"`
	SourcePath  string         `json:"source_path"`
	FileSize    int64          `json:"file_size"`
	ContentHash string         `json:"content_hash"`
	Status      RecordStatus   `json:"status"`
	IngestedAt  time.Time      `json:"ingested_at,omitempty"`
	UpdatedAt   time.Time      `json:"updated_at,omitempty"`
	Tabular     *TabularFields `json:"tabular,omitempty"`
	Image       *ImageFields   `json:"image,omitempty"`
	Video       *VideoFields   `json:"video,omitempty"`
}

// ProcessLogEntry 处理结果的审计日志，只追加不修改
type ProcessLogEntry struct {
	ID        string    `json:"id,omitempty"`
	FileName  string    `json:"file_name"`
	FileType  FileType  `json:"file_type,omitempty"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// OutcomeStatus 单个文件处理的终态
type OutcomeStatus string

const (
	OutcomeSuccess          OutcomeStatus = "success"
	OutcomeValidationFailed OutcomeStatus = "validation_failed"
	OutcomeExtractionFailed OutcomeStatus = "metadata_extraction_failed"
	OutcomeDuplicate        OutcomeStatus = "duplicate"
	OutcomeInsertFailed     OutcomeStatus = "database_insert_failed"
	OutcomeMoveFailed       OutcomeStatus = "file_movement_failed"
	OutcomeUnexpectedError  OutcomeStatus = "unexpected_error"
)

// Outcome 单个文件处理的结果
type Outcome struct {
	FilePath  string
	Status    OutcomeStatus
	Message   string
	Metadata  *Metadata
	StorageID string
}

// Failed 终态是否计入失败统计
func (o *Outcome) Failed() bool {
	switch o.Status {
	case OutcomeSuccess, OutcomeDuplicate:
		return false
	}
	return true
}

// CycleStats 单个调度周期的统计信息，仅用于日志输出
type CycleStats struct {
	Total      int
	Processed  int
	Failed     int
	Duplicates int
	StartTime  time.Time
	EndTime    time.Time
}

// Record 累加单个文件的处理结果
func (s *CycleStats) Record(o *Outcome) {
	switch {
	case o.Status == OutcomeSuccess:
		s.Processed++
	case o.Status == OutcomeDuplicate:
		s.Duplicates++
	default:
		s.Failed++
	}
}
