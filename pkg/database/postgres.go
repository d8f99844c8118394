package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

// PostgreSQL error code for foreign_key_violation.
const pqForeignKeyViolation = "23503"

// PostgresDatabase PostgreSQL数据库实现
type PostgresDatabase struct {
	db *sql.DB
}

// NewPostgresDatabase wraps an open handle.
func NewPostgresDatabase(db *sql.DB) *PostgresDatabase {
	return &PostgresDatabase{db: db}
}

// OpenPostgres connects with a pool sized for serverless use.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresDatabase, error) {
	// Sanitize DSN to avoid stray CR/LF from env values
	dsn = strings.TrimSpace(dsn)
	strategies := []string{
		addConnectionParams(dsn, "connect_timeout=10"),
		dsn,
	}

	var lastErr error
	for _, strategy := range strategies {
		db, err := sql.Open("postgres", strategy)
		if err != nil {
			lastErr = err
			continue
		}

		// 设置连接池参数，适合无服务器环境
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)

		if err = db.PingContext(ctx); err != nil {
			db.Close()
			lastErr = err
			continue
		}
		return &PostgresDatabase{db: db}, nil
	}
	return nil, fmt.Errorf("connect postgres: %w", lastErr)
}

// addConnectionParams 添加连接参数到DSN (URL form only)
func addConnectionParams(dsn, params string) string {
	if params == "" || !strings.Contains(dsn, "://") {
		return dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + params
}

// DB exposes the pool for migrations.
func (p *PostgresDatabase) DB() *sql.DB {
	return p.db
}

// HealthCheck 健康检查
func (p *PostgresDatabase) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close 关闭连接
func (p *PostgresDatabase) Close() error {
	return p.db.Close()
}

// mapErr translates driver errors into package errors.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqForeignKeyViolation {
		return fmt.Errorf("%w: %s", ErrNotFound, pqErr.Constraint)
	}
	return fmt.Errorf("db error: %w", err)
}

// expectAffected returns ErrNotFound when an update or delete touched no rows.
func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func int64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// likePattern builds an ILIKE substring pattern with wildcards escaped.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}
