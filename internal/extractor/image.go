package extractor

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/rs/zerolog"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	"github.com/spf13/afero"

	"github.com/moyu-x/file-ingest/internal/classify"
	"github.com/moyu-x/file-ingest/internal/ingest"
)

// ImageExtractor 图片文件的校验与元数据提取
type ImageExtractor struct {
	fs  afero.Fs
	log zerolog.Logger
}

// NewImageExtractor 创建图片提取器
func NewImageExtractor(fs afero.Fs, log zerolog.Logger) *ImageExtractor {
	return &ImageExtractor{fs: fs, log: log}
}

// Validate 校验图片：文件存在、非空、魔数为图片格式
func (e *ImageExtractor) Validate(path string) (bool, string) {
	info, err := e.fs.Stat(path)
	if err != nil {
		return false, "文件不存在"
	}
	if info.Size() == 0 {
		return false, "图片文件为空"
	}
	if !classify.SniffImage(e.fs, path) {
		return false, "文件头不是有效的图片格式"
	}
	return true, ""
}

// Extract 提取宽高、通道数、格式和 EXIF 信息
func (e *ImageExtractor) Extract(path string) (*ingest.Metadata, error) {
	file, err := e.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开文件失败: %w", err)
	}
	defer file.Close()

	cfg, format, err := image.DecodeConfig(file)
	if err != nil {
		return nil, fmt.Errorf("解码图片失败: %w", err)
	}

	fields := &ingest.ImageFields{
		Width:      cfg.Width,
		Height:     cfg.Height,
		Channels:   channelCount(cfg.ColorModel),
		Format:     strings.ToUpper(format),
		Megapixels: float64(cfg.Width*cfg.Height) / 1e6,
	}

	// EXIF 只在 jpeg/tiff 中存在，解析失败不算错误
	if exifData := e.readEXIF(path); len(exifData) > 0 {
		fields.EXIF = exifData
	}

	return &ingest.Metadata{Image: fields}, nil
}

func (e *ImageExtractor) readEXIF(path string) map[string]string {
	file, err := e.fs.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	x, err := exif.Decode(file)
	if err != nil {
		return nil
	}

	w := &exifWalker{fields: make(map[string]string)}
	if err := x.Walk(w); err != nil {
		e.log.Debug().Err(err).Str("file", path).Msg("遍历 EXIF 字段失败")
	}
	return w.fields
}

type exifWalker struct {
	fields map[string]string
}

func (w *exifWalker) Walk(name exif.FieldName, tag *tiff.Tag) error {
	w.fields[string(name)] = tag.String()
	return nil
}

func channelCount(model color.Model) int {
	switch model {
	case color.GrayModel, color.Gray16Model:
		return 1
	case color.YCbCrModel:
		return 3
	case color.CMYKModel:
		return 4
	case color.RGBAModel, color.RGBA64Model, color.NRGBAModel, color.NRGBA64Model:
		return 4
	}
	if _, ok := model.(color.Palette); ok {
		return 3
	}
	return 3
}
