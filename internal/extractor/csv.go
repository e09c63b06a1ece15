package extractor

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/moyu-x/file-ingest/internal/ingest"
)

// 校验时最多读取的数据行数
const validateSampleRows = 100

// CSVExtractor 表格文件的校验与元数据提取
type CSVExtractor struct {
	fs  afero.Fs
	log zerolog.Logger
}

// NewCSVExtractor 创建表格提取器
func NewCSVExtractor(fs afero.Fs, log zerolog.Logger) *CSVExtractor {
	return &CSVExtractor{fs: fs, log: log}
}

// Validate 校验 CSV 结构：文件存在、可解析、至少一行数据
func (e *CSVExtractor) Validate(path string) (bool, string) {
	exists, err := afero.Exists(e.fs, path)
	if err != nil || !exists {
		return false, "文件不存在"
	}

	file, err := e.fs.Open(path)
	if err != nil {
		return false, fmt.Sprintf("打开文件失败: %v", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err == io.EOF {
		return false, "CSV 文件为空"
	}
	if err != nil {
		return false, fmt.Sprintf("CSV 解析失败: %v", err)
	}
	if len(header) == 0 {
		return false, "CSV 文件没有列"
	}

	// 抽样读取数据行，确认格式一致且至少有一行数据
	rows := 0
	for rows < validateSampleRows {
		_, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return false, fmt.Sprintf("CSV 解析失败: %v", err)
		}
		rows++
	}
	if rows == 0 {
		return false, "CSV 文件没有数据行"
	}

	return true, ""
}

// Extract 提取行列数、列名和各列的结构信息
func (e *CSVExtractor) Extract(path string) (*ingest.Metadata, error) {
	file, err := e.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开文件失败: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("读取表头失败: %w", err)
	}

	columns := make([]*columnProfile, len(header))
	for i := range header {
		columns[i] = newColumnProfile()
	}

	rowCount := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("读取数据行失败: %w", err)
		}
		for i, value := range record {
			if i < len(columns) {
				columns[i].observe(value)
			}
		}
		rowCount++
	}

	schema := make(map[string]ingest.ColumnSchema, len(header))
	for i, name := range header {
		schema[name] = columns[i].schema()
	}

	return &ingest.Metadata{
		Tabular: &ingest.TabularFields{
			RowCount:    rowCount,
			ColumnCount: len(header),
			Columns:     header,
			Schema:      schema,
		},
	}, nil
}

// columnProfile 单列的类型推断状态
type columnProfile struct {
	values   map[string]struct{}
	nullable bool
	allInt   bool
	allFloat bool
	allBool  bool
	seen     bool
}

func newColumnProfile() *columnProfile {
	return &columnProfile{
		values:   make(map[string]struct{}),
		allInt:   true,
		allFloat: true,
		allBool:  true,
	}
}

func (c *columnProfile) observe(value string) {
	c.values[value] = struct{}{}

	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		c.nullable = true
		return
	}
	c.seen = true

	if _, err := strconv.ParseInt(trimmed, 10, 64); err != nil {
		c.allInt = false
	}
	if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
		c.allFloat = false
	}
	if _, err := strconv.ParseBool(trimmed); err != nil {
		c.allBool = false
	}
}

func (c *columnProfile) schema() ingest.ColumnSchema {
	columnType := "string"
	switch {
	case !c.seen:
		columnType = "string"
	case c.allBool:
		columnType = "bool"
	case c.allInt:
		columnType = "int"
	case c.allFloat:
		columnType = "float"
	}

	return ingest.ColumnSchema{
		Type:        columnType,
		Nullable:    c.nullable,
		UniqueCount: len(c.values),
	}
}
