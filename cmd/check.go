package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// checkCmd 探测存储后端可达性
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "检查存储后端的连接和健康状态",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
		defer cancel()

		if err := a.connectStorage(ctx); err != nil {
			return fmt.Errorf("存储后端不可用: %w", err)
		}
		defer a.shutdown()

		fmt.Printf("存储后端 %s 健康\n", a.cfg.Database.Type)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
