package extractor

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/moyu-x/file-ingest/internal/ingest"
)

// Extractor 类型专有的文件校验与元数据提取契约
// 具体解析逻辑是外部协作者，调度器只关心统一的返回形状
type Extractor interface {
	// Validate 校验文件结构，返回 (是否有效, 失败原因)
	Validate(path string) (bool, string)

	// Extract 提取类型专有元数据，只填充对应的变体字段
	Extract(path string) (*ingest.Metadata, error)
}

// Dispatch 按文件类型把文件路由到对应的提取器
// 本身不做任何解析，只负责路由和统一的错误包装
type Dispatch struct {
	fs         afero.Fs
	extractors map[ingest.FileType]Extractor
	log        zerolog.Logger
}

// NewDispatch 创建提取器路由，注册全部内置提取器
func NewDispatch(fs afero.Fs, log zerolog.Logger) *Dispatch {
	return &Dispatch{
		fs: fs,
		extractors: map[ingest.FileType]Extractor{
			ingest.TypeTabular: NewCSVExtractor(fs, log),
			ingest.TypeImage:   NewImageExtractor(fs, log),
			ingest.TypeVideo:   NewVideoExtractor(fs, log),
		},
		log: log,
	}
}

// Register 替换指定类型的提取器，测试时注入桩实现
func (d *Dispatch) Register(t ingest.FileType, e Extractor) {
	d.extractors[t] = e
}

// Validate 校验文件，未知类型立即返回无效
func (d *Dispatch) Validate(path string, fileType ingest.FileType) (bool, string) {
	e, ok := d.extractors[fileType]
	if !ok {
		return false, "未知文件类型"
	}
	return e.Validate(path)
}

// Extract 提取元数据并填充信封字段，所有提取器返回统一的记录形状
// 内容哈希由调用方计算后注入
func (d *Dispatch) Extract(path string, fileType ingest.FileType) (*ingest.Metadata, error) {
	e, ok := d.extractors[fileType]
	if !ok {
		return nil, fmt.Errorf("没有 %s 类型的提取器", fileType)
	}

	m, err := e.Extract(path)
	if err != nil {
		return nil, fmt.Errorf("提取 %s 元数据失败: %w", fileType, err)
	}

	info, err := d.fs.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("读取文件信息失败: %w", err)
	}

	m.FileName = filepath.Base(path)
	m.FileType = fileType
	m.SourcePath = path
	m.FileSize = info.Size()

	d.log.Debug().Str("file", m.FileName).Str("type", string(fileType)).Msg("元数据提取完成")
	return m, nil
}
