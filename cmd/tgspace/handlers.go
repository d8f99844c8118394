package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"tgspace-backend/pkg/config"
	"tgspace-backend/pkg/database"
	"tgspace-backend/pkg/logging"
	"tgspace-backend/pkg/server"
	"tgspace-backend/pkg/telegram"
	"tgspace-backend/pkg/telegram/initdata"
	"tgspace-backend/pkg/utils"
)

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func runServe(ctx context.Context, configPath, addr string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.IsProduction())
	for _, warning := range cfg.Warnings() {
		logger.Warn(ctx, "config warning", "warning", warning)
	}

	db, err := database.NewDatabase(ctx, database.DatabaseConfig{
		UseLocalDB:    cfg.UseLocalDB,
		LocalDataFile: cfg.LocalDataFile,
		PostgresDSN:   cfg.PostgresDSN,
		Migrate:       !cfg.UseLocalDB,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	app, err := server.New(cfg, db, logger)
	if err != nil {
		return err
	}

	if addr == "" {
		addr = ":" + cfg.Port
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	logger.Info(ctx, "server started", "addr", addr, "environment", cfg.Environment, "local_db", cfg.UseLocalDB)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}
	logger.Info(context.Background(), "shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	logger.Info(shutdownCtx, "server stopped")
	return nil
}

func runMigrate(ctx context.Context, configPath, direction string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.PostgresDSN == "" {
		return errors.New("POSTGRES_DSN is required for migrations")
	}

	pg, err := database.OpenPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer pg.Close()

	switch direction {
	case "up":
		return database.Migrate(ctx, pg.DB())
	case "down":
		return database.MigrateDown(ctx, pg.DB())
	case "status":
		return database.MigrationStatus(ctx, pg.DB())
	default:
		return fmt.Errorf("unknown migration direction %q", direction)
	}
}

func runWebhookSet(ctx context.Context, out io.Writer, configPath, url string, dropPending, generateSecret bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if url == "" {
		url = cfg.WebhookURL
	}
	if url == "" {
		return errors.New("webhook URL is required: pass --url or set TELEGRAM_WEBHOOK_URL")
	}
	secret := cfg.WebhookSecret
	switch {
	case secret == "" && generateSecret:
		if secret, err = utils.GenerateWebhookSecret(); err != nil {
			return err
		}
		fmt.Fprintf(out, "TELEGRAM_WEBHOOK_SECRET=%s\n", secret)
	case secret == "":
		fmt.Fprintln(out, "warning: TELEGRAM_WEBHOOK_SECRET is empty, the endpoint will accept unsigned requests")
	}

	tg, err := telegram.New(telegram.Options{
		Token:   cfg.BotToken,
		APIURL:  cfg.TelegramAPIURL,
		Timeout: cfg.TelegramTimeout,
	})
	if err != nil {
		return err
	}
	if err := tg.SetWebhook(ctx, url, secret, dropPending); err != nil {
		return err
	}
	fmt.Fprintf(out, "webhook set to %s\n", url)
	return nil
}

func runInitDataSign(out io.Writer, configPath string, opts signOptions) error {
	if opts.BotToken == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		opts.BotToken = cfg.BotToken
	}
	if opts.BotToken == "" {
		return errors.New("bot token is required: pass --bot-token or set TELEGRAM_BOT_TOKEN")
	}
	raw, err := signInitData(opts)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, raw)
	return nil
}

// signInitData builds a payload the way Telegram clients do.
func signInitData(opts signOptions) (string, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	user, err := json.Marshal(initdata.WebAppUser{
		ID:        opts.UserID,
		FirstName: opts.FirstName,
		Username:  opts.Username,
	})
	if err != nil {
		return "", err
	}

	pairs := []initdata.Pair{{Key: "user", Value: string(user)}}
	if opts.ChatID != 0 {
		chat, err := json.Marshal(initdata.WebAppChat{ID: opts.ChatID, Type: "supergroup", Title: opts.ChatTitle})
		if err != nil {
			return "", err
		}
		pairs = append(pairs, initdata.Pair{Key: "chat", Value: string(chat)})
	}
	if opts.StartParam != "" {
		pairs = append(pairs, initdata.Pair{Key: "start_param", Value: opts.StartParam})
	}
	authDate := opts.Now().Add(-opts.Age).Unix()
	pairs = append(pairs, initdata.Pair{Key: "auth_date", Value: strconv.FormatInt(authDate, 10)})

	hash := initdata.Sign(pairs, opts.BotToken)
	return initdata.Encode(append(pairs, initdata.Pair{Key: "hash", Value: hash})), nil
}
