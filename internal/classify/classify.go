package classify

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/spf13/afero"

	"github.com/moyu-x/file-ingest/internal/ingest"
)

// 文件类型检测所需的文件头部大小（字节）
const headerSize = 261

// 扩展名到文件类型的映射表
var extensionTable = map[string]ingest.FileType{
	".csv":  ingest.TypeTabular,
	".jpg":  ingest.TypeImage,
	".jpeg": ingest.TypeImage,
	".png":  ingest.TypeImage,
	".bmp":  ingest.TypeImage,
	".gif":  ingest.TypeImage,
	".tiff": ingest.TypeImage,
	".mp4":  ingest.TypeVideo,
	".avi":  ingest.TypeVideo,
	".mov":  ingest.TypeVideo,
	".mkv":  ingest.TypeVideo,
	".flv":  ingest.TypeVideo,
	".wmv":  ingest.TypeVideo,
	".webm": ingest.TypeVideo,
}

// ByExtension 根据扩展名判断文件类型，纯函数，不做任何 I/O
func ByExtension(path string) ingest.FileType {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := extensionTable[ext]; ok {
		return t
	}
	return ingest.TypeUnknown
}

// SniffImage 读取文件头部并检查魔数是否为图片格式
// 用于图片校验，防止扩展名伪装的非图片文件进入提取流程
func SniffImage(fs afero.Fs, path string) bool {
	head, err := readHeader(fs, path)
	if err != nil {
		return false
	}
	return filetype.IsImage(head)
}

// SniffVideo 读取文件头部并检查魔数是否为视频格式
func SniffVideo(fs afero.Fs, path string) bool {
	head, err := readHeader(fs, path)
	if err != nil {
		return false
	}
	return filetype.IsVideo(head)
}

func readHeader(fs afero.Fs, path string) ([]byte, error) {
	file, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	head := make([]byte, headerSize)
	n, err := file.Read(head)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return head[:n], nil
}
