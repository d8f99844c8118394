package main

import (
	"time"

	"github.com/spf13/cobra"
)

func buildServeCmd(configPath *string) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP API and the Telegram webhook endpoint.

Graceful shutdown is handled on SIGINT/SIGTERM signals.`,
		Example: `  # Listen on $PORT (default 3000)
  tgspace serve

  # Listen on a specific address
  tgspace serve --addr 127.0.0.1:8080`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default :$PORT)")
	return cmd
}

func buildMigrateCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  `Apply, inspect or roll back the embedded PostgreSQL migrations.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), *configPath, "up")
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), *configPath, "down")
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), *configPath, "status")
		},
	})
	return cmd
}

func buildWebhookCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "webhook",
		Short: "Telegram webhook commands",
	}

	var (
		url            string
		dropPending    bool
		generateSecret bool
	)
	set := &cobra.Command{
		Use:   "set",
		Short: "Register the webhook URL with Telegram",
		Long: `Register the webhook URL with Telegram.

The secret token is taken from TELEGRAM_WEBHOOK_SECRET and the URL from
--url or TELEGRAM_WEBHOOK_URL. With --generate-secret and no configured
secret a fresh one is registered and printed; store it in
TELEGRAM_WEBHOOK_SECRET before the next deploy.`,
		Example: `  tgspace webhook set --url https://space.example.com/api/telegram/webhook`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWebhookSet(cmd.Context(), cmd.OutOrStdout(), *configPath, url, dropPending, generateSecret)
		},
	}
	set.Flags().StringVar(&url, "url", "", "Public webhook URL")
	set.Flags().BoolVar(&dropPending, "drop-pending", false, "Drop updates queued while no webhook was set")
	set.Flags().BoolVar(&generateSecret, "generate-secret", false, "Generate a secret token when none is configured")

	cmd.AddCommand(set)
	return cmd
}

func buildInitDataCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "initdata",
		Short: "Mini App launch payload helpers",
	}

	opts := signOptions{}
	sign := &cobra.Command{
		Use:   "sign",
		Short: "Print a signed initData payload for local testing",
		Example: `  tgspace initdata sign --user-id 42 --first-name Ann --chat-id -100555 --chat-title Team
  tgspace initdata sign --user-id 42 --start-param -100555_section_17`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInitDataSign(cmd.OutOrStdout(), *configPath, opts)
		},
	}
	f := sign.Flags()
	f.Int64Var(&opts.UserID, "user-id", 0, "Telegram user id")
	f.StringVar(&opts.FirstName, "first-name", "Dev", "User first name")
	f.StringVar(&opts.Username, "username", "", "User username")
	f.Int64Var(&opts.ChatID, "chat-id", 0, "Group chat id (omit to rely on --start-param)")
	f.StringVar(&opts.ChatTitle, "chat-title", "", "Group title")
	f.StringVar(&opts.StartParam, "start-param", "", "Deep link start parameter")
	f.DurationVar(&opts.Age, "age", 0, "How long ago the payload was issued")
	f.StringVar(&opts.BotToken, "bot-token", "", "Bot token (default TELEGRAM_BOT_TOKEN)")
	_ = sign.MarkFlagRequired("user-id")

	cmd.AddCommand(sign)
	return cmd
}

type signOptions struct {
	UserID     int64
	FirstName  string
	Username   string
	ChatID     int64
	ChatTitle  string
	StartParam string
	Age        time.Duration
	BotToken   string
	// Now defaults to time.Now.
	Now func() time.Time
}
