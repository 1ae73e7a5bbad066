package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version 由构建时 -ldflags 注入。
var version = "dev"

// newRootCmd 构建 Cobra 命令树。
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "assistcore",
		Short:         "会话连续性对话后端",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "打印版本号",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	})

	return root
}
