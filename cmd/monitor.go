package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/moyu-x/file-ingest/tui"
)

// monitorCmd 带 TUI 监控运行流水线
var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "启动摄取流水线并附带终端监控界面",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
		defer cancel()

		if err := a.connectStorage(ctx); err != nil {
			a.log.Error().Err(err).Msg("连接存储后端失败")
			return err
		}

		if err := a.buildPipeline(); err != nil {
			return err
		}

		// 事件通道由调度器持有，Stop 在周期全部结束后关闭它
		events := a.sched.Events()

		// 初始周期是同步的，放到后台执行避免阻塞界面
		go a.sched.Start()

		err = tui.Run(events, a.log)

		a.shutdown()
		return err
	},
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}
