// Package server assembles the services and the chi router.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"tgspace-backend/pkg/auth"
	"tgspace-backend/pkg/config"
	"tgspace-backend/pkg/database"
	"tgspace-backend/pkg/handlers"
	"tgspace-backend/pkg/items"
	"tgspace-backend/pkg/logging"
	"tgspace-backend/pkg/metrics"
	customMiddleware "tgspace-backend/pkg/middleware"
	"tgspace-backend/pkg/notify"
	"tgspace-backend/pkg/permissions"
	"tgspace-backend/pkg/search"
	"tgspace-backend/pkg/sections"
	"tgspace-backend/pkg/telegram"
	"tgspace-backend/pkg/telegram/initdata"
	"tgspace-backend/pkg/utils"
)

// App holds the wired components of one process.
type App struct {
	Config   *config.Config
	DB       database.DatabaseInterface
	Logger   logging.Logger
	Metrics  *metrics.Metrics
	Telegram *telegram.Client
	Tokens   *utils.JWTService
	Auth     *auth.Service
	Tree     *sections.Tree
	Items    *items.Service
	Search   *search.Service
	Notifier *notify.Notifier
}

// New wires every service on top of db.
func New(cfg *config.Config, db database.DatabaseInterface, logger logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	tg, err := telegram.New(telegram.Options{
		Token:   cfg.BotToken,
		APIURL:  cfg.TelegramAPIURL,
		Timeout: cfg.TelegramTimeout,
		Logger:  logger.With("component", "telegram"),
	})
	if err != nil {
		return nil, fmt.Errorf("telegram client: %w", err)
	}
	if !tg.Configured() {
		logger.Warn(context.Background(), "TELEGRAM_BOT_TOKEN is not set; membership checks, uploads and notifications are disabled")
	}

	tokens := utils.NewJWTService(cfg.JWTSecret, cfg.SessionTTL)
	tree := sections.NewTree(db)

	return &App{
		Config:   cfg,
		DB:       db,
		Logger:   logger,
		Metrics:  m,
		Telegram: tg,
		Tokens:   tokens,
		Auth: auth.NewService(auth.Options{
			Store:  db,
			Oracle: tg,
			Verifier: initdata.Verifier{
				BotToken:   cfg.BotToken,
				Production: cfg.IsProduction(),
				Logger:     logger,
			},
			Tokens:         tokens,
			MaxAge:         cfg.InitDataMaxAge,
			DevBypassToken: cfg.DevBypassToken,
			Production:     cfg.IsProduction(),
			Logger:         logger.With("component", "auth"),
			Metrics:        m,
		}),
		Tree:     tree,
		Items:    items.NewService(db),
		Search:   search.NewService(db, tree),
		Notifier: notify.New(db, tg, cfg.BotUsername, logger.With("component", "notify"), m),
	}, nil
}

// Router 创建Chi路由器并注册所有路由
func (a *App) Router() http.Handler {
	router := chi.NewRouter()
	a.setupMiddleware(router)
	a.setupRoutes(router)
	return router
}

// setupMiddleware 设置全局中间件
func (a *App) setupMiddleware(router *chi.Mux) {
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(customMiddleware.RequestLogger(a.Logger))
	router.Use(customMiddleware.Metrics(a.Metrics))
	router.Use(customMiddleware.Recovery(a.Config, a.Logger))
	router.Use(customMiddleware.CORS(a.Config))

	// Uploads get their own budget inside the Telegram client.
	router.Use(middleware.Timeout(60 * time.Second))

	// 压缩中间件
	router.Use(middleware.Compress(5, "application/json"))

	if a.Config.IsDevelopment() {
		router.Use(middleware.Heartbeat("/ping"))
	}
}

// setupRoutes 设置所有API路由
func (a *App) setupRoutes(router *chi.Mux) {
	cfg := a.Config
	authHandler := handlers.NewAuthHandler(cfg, a.Auth, a.DB, permissions.NewRefresher(a.Telegram), a.Logger)
	sectionsHandler := handlers.NewSectionsHandler(cfg, a.DB, a.Tree, a.Notifier, a.Logger)
	itemsHandler := handlers.NewItemsHandler(cfg, a.DB, a.Tree, a.Items, a.Telegram, a.Notifier, a.Logger)
	searchHandler := handlers.NewSearchHandler(a.Search, a.Logger)
	webhookHandler := handlers.NewWebhookHandler(cfg, a.DB, a.Telegram, a.Logger.With("component", "webhook"), a.Metrics)
	healthHandler := handlers.NewHealthHandler(a.DB, cfg.Environment, a.Logger)

	// 健康检查端点
	router.Get("/", healthHandler.HealthCheck)
	if a.Metrics != nil {
		router.Handle("/metrics", a.Metrics.Handler())
	}

	router.Route("/api", func(r chi.Router) {
		// 公开路由（不需要认证）
		r.With(customMiddleware.ContentTypeJSON, customMiddleware.MaxBodySize(64<<10)).
			Post("/auth/telegram", authHandler.TelegramLogin)

		// Telegram webhook（校验密钥）
		r.With(customMiddleware.WebhookSecret(cfg.WebhookSecret), customMiddleware.MaxBodySize(1<<20)).
			Post("/telegram/webhook", webhookHandler.HandleTelegramWebhook)

		// 需要认证的路由
		r.Group(func(r chi.Router) {
			r.Use(customMiddleware.AuthMiddleware(a.Tokens, a.Logger))

			r.Group(func(r chi.Router) {
				r.Use(customMiddleware.RequirePermission(customMiddleware.CanRead))
				r.Get("/me", authHandler.Me)
				jsonBody := chi.Chain(customMiddleware.ContentTypeJSON, customMiddleware.MaxBodySize(1<<20))

				r.Route("/sections", func(r chi.Router) {
					r.Get("/", sectionsHandler.ListRoots)
					r.With(jsonBody...).Post("/", sectionsHandler.Create)
					r.Get("/{id}", sectionsHandler.Get)
					r.With(jsonBody...).Patch("/{id}", sectionsHandler.Update)
					r.Delete("/{id}", sectionsHandler.Delete)
					r.Get("/{id}/children", sectionsHandler.Children)
					r.With(jsonBody...).Post("/{id}/move", sectionsHandler.Move)

					r.Get("/{id}/items", itemsHandler.List)
					r.With(jsonBody...).Post("/{id}/items", itemsHandler.Create)
					r.With(jsonBody...).Post("/{id}/items/reorder", itemsHandler.Reorder)
					// multipart, size enforced by the handler
					r.Post("/{id}/items/upload", itemsHandler.Upload)
				})

				r.Route("/items", func(r chi.Router) {
					r.Get("/{id}", itemsHandler.Get)
					r.With(jsonBody...).Patch("/{id}", itemsHandler.Update)
					r.Delete("/{id}", itemsHandler.Delete)
					r.With(jsonBody...).Post("/{id}/move", itemsHandler.Move)
				})

				r.Get("/files/{fileId}", itemsHandler.FileURL)
				r.Get("/search", searchHandler.Search)
				r.Get("/search/quick", searchHandler.Quick)
			})
		})
	})

	// 404处理
	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteNotFoundResponse(w, fmt.Sprintf("Route not found: %s %s", r.Method, r.URL.Path))
	})

	// 405处理
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteErrorResponseWithCode(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
			fmt.Sprintf("Method %s not allowed for %s", r.Method, r.URL.Path), "")
	})
}
