package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd 根命令
var rootCmd = &cobra.Command{
	Use:   "file-ingest",
	Short: "定时摄取文件并提取元数据的流水线",
	Long: `File Ingest 按固定间隔监视 incoming 目录，对每个文件执行：
1. 按类型校验文件结构（表格 / 图片 / 视频）
2. 提取类型专有的元数据
3. 按内容哈希拒绝重复文件
4. 把元数据写入可插拔的存储后端（SQLite 或 MongoDB）
5. 按处理结果把文件搬运到 raw / validated / failed 目录树`,
}

// Execute 执行根命令，main.main() 调用一次
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "配置文件路径（默认搜索 ./config.yaml）")
}
