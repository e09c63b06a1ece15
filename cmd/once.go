package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// onceCmd 同步执行单个摄取周期后退出
var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "同步执行一个摄取周期后退出",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.shutdown()

		ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
		defer cancel()

		if err := a.connectStorage(ctx); err != nil {
			a.log.Error().Err(err).Msg("连接存储后端失败")
			return err
		}

		if err := a.buildPipeline(); err != nil {
			return err
		}

		stats := a.sched.RunCycle()

		fmt.Printf("本周期共 %d 个文件：成功 %d，失败 %d，重复 %d\n",
			stats.Total, stats.Processed, stats.Failed, stats.Duplicates)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(onceCmd)
}
