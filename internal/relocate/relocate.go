package relocate

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/moyu-x/file-ingest/internal/ingest"
)

// 文件类型到子目录名的固定映射
var typeSubfolder = map[ingest.FileType]string{
	ingest.TypeTabular: "structured",
	ingest.TypeImage:   "images",
	ingest.TypeVideo:   "videos",
	ingest.TypeUnknown: "unknown",
}

// Mover 负责在 incoming/raw/validated/failed 目录树之间搬运文件
type Mover struct {
	fs  afero.Fs
	log zerolog.Logger
}

// NewMover 创建文件搬运器
func NewMover(fs afero.Fs, log zerolog.Logger) *Mover {
	return &Mover{fs: fs, log: log}
}

// DestinationFor 计算目标目录：先按小时分桶（YYYYMMDD_HH00），再按类型分子目录
// 同一小时内对同一类型的调用结果相同
func DestinationFor(baseDir string, fileType ingest.FileType, now time.Time) string {
	bucket := now.Format("20060102_15") + "00"
	sub, ok := typeSubfolder[fileType]
	if !ok {
		sub = typeSubfolder[ingest.TypeUnknown]
	}
	return filepath.Join(baseDir, bucket, sub)
}

// Copy 复制文件并保留源文件，按需创建中间目录
// 目标已存在时自动重命名，避免覆盖
func (m *Mover) Copy(src, dst string) (string, error) {
	if err := m.fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("创建目标目录失败: %w", err)
	}

	dst, err := m.resolveCollision(dst)
	if err != nil {
		return "", err
	}

	if err := m.copyContents(src, dst); err != nil {
		return "", err
	}

	m.log.Debug().Str("source", src).Str("destination", dst).Msg("文件复制完成")
	return dst, nil
}

// Move 移动文件（破坏性），按需创建中间目录
// 优先使用 rename，跨卷时回退为复制后删除
func (m *Mover) Move(src, dst string) (string, error) {
	if err := m.fs.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return "", fmt.Errorf("创建目标目录失败: %w", err)
	}

	dst, err := m.resolveCollision(dst)
	if err != nil {
		return "", err
	}

	if err := m.fs.Rename(src, dst); err != nil {
		m.log.Debug().Err(err).Str("source", src).Str("destination", dst).
			Msg("直接重命名失败，尝试复制后删除")

		if err := m.copyContents(src, dst); err != nil {
			return "", err
		}
		if err := m.fs.Remove(src); err != nil {
			return "", fmt.Errorf("删除原文件失败: %w", err)
		}
	}

	m.log.Debug().Str("source", src).Str("destination", dst).Msg("文件移动完成")
	return dst, nil
}

// resolveCollision 目标路径已存在时用 uuid 后缀生成新文件名
func (m *Mover) resolveCollision(dst string) (string, error) {
	exists, err := afero.Exists(m.fs, dst)
	if err != nil {
		return "", fmt.Errorf("检查文件是否存在失败: %w", err)
	}
	if !exists {
		return dst, nil
	}

	ext := filepath.Ext(dst)
	base := strings.TrimSuffix(dst, ext)
	newDst := fmt.Sprintf("%s_%s%s", base, uuid.New().String(), ext)

	m.log.Debug().Str("original_path", dst).Str("new_path", newDst).
		Msg("文件名冲突，自动重命名")
	return newDst, nil
}

func (m *Mover) copyContents(src, dst string) error {
	sourceFile, err := m.fs.Open(src)
	if err != nil {
		return fmt.Errorf("打开源文件失败: %w", err)
	}
	defer sourceFile.Close()

	destFile, err := m.fs.Create(dst)
	if err != nil {
		return fmt.Errorf("创建目标文件失败: %w", err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return fmt.Errorf("复制文件内容失败: %w", err)
	}
	return nil
}
