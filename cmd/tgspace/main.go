// Command tgspace runs the Telegram group content service and its
// maintenance tasks.
//
//	tgspace serve
//	tgspace migrate up
//	tgspace webhook set --url https://example.com/api/telegram/webhook
//	tgspace initdata sign --user-id 42 --chat-id -100555
//
// Configuration comes from the environment, optionally layered over the
// YAML file named by --config or CONFIG_FILE.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "tgspace",
		Short:        "Backend of the group content Mini App",
		Version:      fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CONFIG_FILE"),
		"Path to a YAML configuration file")

	rootCmd.AddCommand(
		buildServeCmd(&configPath),
		buildMigrateCmd(&configPath),
		buildWebhookCmd(&configPath),
		buildInitDataCmd(&configPath),
	)
	return rootCmd
}
