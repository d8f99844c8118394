package database

import (
	"context"
	"errors"
	"fmt"

	"tgspace-backend/pkg/models"
)

// ErrNotFound is returned when a row does not exist or a referenced row is gone.
var ErrNotFound = errors.New("not found")

// DatabaseInterface 定义数据库访问接口
type DatabaseInterface interface {
	// 用户管理
	UpsertUser(ctx context.Context, p models.TelegramProfile) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)

	// Spaces
	// FindOrCreateSpace refreshes the stored title only when title is non-empty and differs.
	FindOrCreateSpace(ctx context.Context, chatID int64, title string) (*models.Space, error)
	GetSpaceByID(ctx context.Context, id int64) (*models.Space, error)
	DeleteSpaceByChatID(ctx context.Context, chatID int64) (bool, error)

	// Sections
	// CreateSection appends s after its last sibling and fills ID, Order and timestamps.
	CreateSection(ctx context.Context, s *models.Section) error
	GetSection(ctx context.Context, id int64) (*models.Section, error)
	GetSectionNode(ctx context.Context, id int64) (*models.SectionNode, error)
	// ListSections returns the children of parentID (roots when nil), ordered.
	ListSections(ctx context.Context, spaceID int64, parentID *int64) ([]models.Section, error)
	UpdateSection(ctx context.Context, id int64, patch models.SectionPatch) (*models.Section, error)
	// MoveSection re-parents id and makes it the last sibling. No cycle checks.
	MoveSection(ctx context.Context, id int64, parentID *int64) (*models.Section, error)
	// DeleteSection removes id with its subtree and items.
	DeleteSection(ctx context.Context, id int64) error

	// Items
	CreateItem(ctx context.Context, it *models.Item) error
	GetItem(ctx context.Context, id int64) (*models.Item, error)
	ListItems(ctx context.Context, sectionID int64) ([]models.Item, error)
	UpdateItem(ctx context.Context, id int64, patch models.ItemPatch) (*models.Item, error)
	MoveItem(ctx context.Context, id, sectionID int64) (*models.Item, error)
	DeleteItem(ctx context.Context, id int64) error
	// ReorderItems sets order = index for each id. Every id must be in sectionID.
	ReorderItems(ctx context.Context, sectionID int64, itemIDs []int64) error

	// Search (case-insensitive substring)
	SearchSections(ctx context.Context, spaceID int64, query string, limit int) ([]models.SectionNode, error)
	SearchItems(ctx context.Context, spaceID int64, query string, limit int) ([]models.Item, error)

	// 健康检查
	HealthCheck(ctx context.Context) error

	// 关闭连接
	Close() error
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	UseLocalDB    bool
	LocalDataFile string
	PostgresDSN   string
	// Migrate applies embedded migrations after connecting to PostgreSQL.
	Migrate bool
}

// NewDatabase 根据配置选择数据库实现
func NewDatabase(ctx context.Context, cfg DatabaseConfig) (DatabaseInterface, error) {
	if cfg.UseLocalDB {
		return NewLocalDatabase(cfg.LocalDataFile)
	}
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("no database configured: set POSTGRES_DSN or USE_LOCAL_DB")
	}

	pg, err := OpenPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if cfg.Migrate {
		if err := Migrate(ctx, pg.DB()); err != nil {
			pg.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return pg, nil
}
