package database

import (
	"context"
	"sync"
	"time"
)

// 进程级共享的数据库实例，Serverless 热启动时复用
var shared = &sharedStore{idleTimeout: 30 * time.Minute, now: time.Now}

type sharedStore struct {
	mu          sync.Mutex
	store       DatabaseInterface
	config      DatabaseConfig
	lastUsed    time.Time
	idleTimeout time.Duration
	now         func() time.Time
}

// GetDatabase returns the process-wide store for cfg, opening a new one when
// the config changed, the cached one sat idle too long or fails its ping.
func GetDatabase(ctx context.Context, cfg DatabaseConfig) (DatabaseInterface, error) {
	return shared.get(ctx, cfg)
}

// ClosePool closes and forgets the cached instance.
func ClosePool() error {
	return shared.close()
}

func (s *sharedStore) get(ctx context.Context, cfg DatabaseConfig) (DatabaseInterface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store != nil && s.reusable(ctx, cfg) {
		s.lastUsed = s.now()
		return s.store, nil
	}
	s.drop()

	store, err := NewDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.store, s.config, s.lastUsed = store, cfg, s.now()
	return store, nil
}

func (s *sharedStore) reusable(ctx context.Context, cfg DatabaseConfig) bool {
	if s.config != cfg {
		return false
	}
	if s.now().Sub(s.lastUsed) > s.idleTimeout {
		return false
	}
	return s.store.HealthCheck(ctx) == nil
}

// drop closes the current store; callers hold mu.
func (s *sharedStore) drop() error {
	if s.store == nil {
		return nil
	}
	err := s.store.Close()
	s.store = nil
	return err
}

func (s *sharedStore) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drop()
}
