package hasher

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
)

// 默认读取块大小
const chunkSize = 4096

// Hasher 流式计算文件内容摘要，用于重复文件检测
type Hasher struct {
	fs        afero.Fs
	algorithm string
}

// New 创建指定算法的哈希计算器
// algorithm: "sha256"（默认）、"md5" 或 "xxhash"
// xxhash 速度最快但只有 64 位，仅在操作者接受碰撞风险时启用
func New(fs afero.Fs, algorithm string) (*Hasher, error) {
	switch algorithm {
	case "", "sha256", "md5", "xxhash":
	default:
		return nil, fmt.Errorf("不支持的哈希算法: %s", algorithm)
	}
	if algorithm == "" {
		algorithm = "sha256"
	}
	return &Hasher{fs: fs, algorithm: algorithm}, nil
}

// Algorithm 返回当前使用的哈希算法
func (h *Hasher) Algorithm() string {
	return h.algorithm
}

// Sum 分块读取文件并计算内容摘要，返回十六进制字符串
func (h *Hasher) Sum(filePath string) (string, error) {
	file, err := h.fs.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("打开文件失败: %w", err)
	}
	defer file.Close()

	if h.algorithm == "xxhash" {
		x := xxhash.New()
		if err := copyChunks(x, file); err != nil {
			return "", fmt.Errorf("计算哈希失败: %w", err)
		}
		return strconv.FormatUint(x.Sum64(), 16), nil
	}

	var digest hash.Hash
	switch h.algorithm {
	case "md5":
		digest = md5.New()
	default:
		digest = sha256.New()
	}

	if err := copyChunks(digest, file); err != nil {
		return "", fmt.Errorf("计算哈希失败: %w", err)
	}

	return hex.EncodeToString(digest.Sum(nil)), nil
}

func copyChunks(dst io.Writer, src io.Reader) error {
	buf := make([]byte, chunkSize)
	_, err := io.CopyBuffer(dst, src, buf)
	return err
}
