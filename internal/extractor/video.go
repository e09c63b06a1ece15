package extractor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	ffprobe "gopkg.in/vansante/go-ffprobe.v2"

	"github.com/moyu-x/file-ingest/internal/ingest"
)

// ffprobe 探测超时
const probeTimeout = 30 * time.Second

// VideoExtractor 视频文件的校验与元数据提取
// 依赖 PATH 中的 ffprobe 可执行文件，因此只能处理真实文件系统上的路径
type VideoExtractor struct {
	fs  afero.Fs
	log zerolog.Logger
}

// NewVideoExtractor 创建视频提取器
func NewVideoExtractor(fs afero.Fs, log zerolog.Logger) *VideoExtractor {
	return &VideoExtractor{fs: fs, log: log}
}

// Validate 校验视频：文件存在且非空
// 结构性校验由 ffprobe 在提取阶段完成
func (e *VideoExtractor) Validate(path string) (bool, string) {
	info, err := e.fs.Stat(path)
	if err != nil {
		return false, "文件不存在"
	}
	if info.Size() == 0 {
		return false, "视频文件为空"
	}
	return true, ""
}

// Extract 通过 ffprobe 提取时长、帧率、分辨率和编码信息
func (e *VideoExtractor) Extract(path string) (*ingest.Metadata, error) {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	data, err := ffprobe.ProbeURL(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("ffprobe 探测失败: %w", err)
	}

	stream := data.FirstVideoStream()
	if stream == nil {
		return nil, fmt.Errorf("文件中没有视频流")
	}

	duration := data.Format.DurationSeconds
	fps := parseFrameRate(stream.AvgFrameRate)

	frameCount, err := strconv.ParseInt(stream.NbFrames, 10, 64)
	if err != nil && fps > 0 {
		// 容器未记录帧数时按时长估算
		frameCount = int64(duration * fps)
	}

	fields := &ingest.VideoFields{
		DurationSeconds: duration,
		DurationText:    formatDuration(duration),
		FPS:             fps,
		Width:           stream.Width,
		Height:          stream.Height,
		Resolution:      fmt.Sprintf("%dx%d", stream.Width, stream.Height),
		FrameCount:      frameCount,
		Codec:           stream.CodecName,
	}

	return &ingest.Metadata{Video: fields}, nil
}

// parseFrameRate 解析 "30000/1001" 形式的帧率
func parseFrameRate(rate string) float64 {
	parts := strings.SplitN(rate, "/", 2)
	if len(parts) == 2 {
		num, err1 := strconv.ParseFloat(parts[0], 64)
		den, err2 := strconv.ParseFloat(parts[1], 64)
		if err1 == nil && err2 == nil && den != 0 {
			return num / den
		}
		return 0
	}
	v, err := strconv.ParseFloat(rate, 64)
	if err != nil {
		return 0
	}
	return v
}

// formatDuration 格式化为 HH:MM:SS
func formatDuration(seconds float64) string {
	total := int(seconds)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
