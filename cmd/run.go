package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// runCmd 启动调度器并常驻运行
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "启动摄取流水线并按配置的间隔常驻运行",
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
		a.log.Info().Str("type", a.cfg.Database.Type).Msg("存储后端连接成功")

		if err := a.buildPipeline(); err != nil {
			return err
		}

		a.sched.Start()
		a.log.Info().Msg("流水线已就绪，按 Ctrl+C 退出")

		// 收到中断或终止信号后有序关闭
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		a.log.Info().Msg("收到退出信号，开始关闭")
		a.shutdown()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
