package handler

import (
	"context"
	"net/http"
	"os"
	"sync"

	"tgspace-backend/pkg/config"
	"tgspace-backend/pkg/database"
	"tgspace-backend/pkg/logging"
	"tgspace-backend/pkg/server"
	"tgspace-backend/pkg/utils"
)

var routers = &routerCache{open: openStore, build: buildRouter}

// Handler 是Vercel函数的入口点
// 路由器只在数据库实例变化时重建，失败不缓存，下次请求重试
func Handler(w http.ResponseWriter, r *http.Request) {
	router, err := routers.get(r.Context())
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Configuration error: "+err.Error())
		return
	}
	router.ServeHTTP(w, r)
}

// routerCache keeps the router built for the current shared store.
type routerCache struct {
	mu      sync.Mutex
	db      database.DatabaseInterface
	handler http.Handler

	open  func(ctx context.Context) (*config.Config, database.DatabaseInterface, error)
	build func(cfg *config.Config, db database.DatabaseInterface) (http.Handler, error)
}

func (c *routerCache) get(ctx context.Context) (http.Handler, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	cfg, db, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	if c.handler != nil && c.db == db {
		return c.handler, nil
	}
	h, err := c.build(cfg, db)
	if err != nil {
		return nil, err
	}
	c.handler, c.db = h, db
	return h, nil
}

// openStore 加载配置并获取连接池中的数据库（失效时由连接池重连）
func openStore(ctx context.Context) (*config.Config, database.DatabaseInterface, error) {
	cfg, err := config.GetCached()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	db, err := database.GetDatabase(ctx, database.DatabaseConfig{
		UseLocalDB:    cfg.UseLocalDB,
		LocalDataFile: cfg.LocalDataFile,
		PostgresDSN:   cfg.PostgresDSN,
	})
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func buildRouter(cfg *config.Config, db database.DatabaseInterface) (http.Handler, error) {
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.IsProduction())
	for _, warning := range cfg.Warnings() {
		logger.Warn(context.Background(), "config warning", "warning", warning)
	}
	app, err := server.New(cfg, db, logger)
	if err != nil {
		return nil, err
	}
	return app.Router(), nil
}
