package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/shared"
	"github.com/storesync/backend/internal/infrastructure/config"
)

// NewIdempotencyStore creates an idempotency store from application config.
// It tries Redis first and falls back to the in-memory store when Redis
// is unavailable, which can cause duplicate webhook processing in
// multi-instance deployments.
func NewIdempotencyStore(cfg config.RedisConfig, logger *zap.Logger) (shared.IdempotencyStore, error) {
	store, err := NewRedisIdempotencyStore(RedisConfig{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err == nil {
		logger.Info("using Redis idempotency store", zap.String("addr", cfg.Addr()))
		return store, nil
	}

	logger.Warn("Redis unavailable, falling back to in-memory idempotency store",
		zap.Error(fmt.Errorf("redis idempotency store: %w", err)),
	)
	return NewInMemoryIdempotencyStore(), nil
}
