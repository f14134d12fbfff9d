package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "gateway",
		Short:         "Object-store mailbox gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径 (默认 config.yaml 或 CONFIG_FILE)")

	root.AddCommand(
		newServeCmd(&configPath),
		newSubmitCmd(&configPath),
		newStatusCmd(&configPath),
		newShowCmd(&configPath),
		newRequestsCmd(&configPath),
		newResponsesCmd(&configPath),
	)
	return root
}
