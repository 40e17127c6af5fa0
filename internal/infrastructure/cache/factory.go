package cache

import (
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// NewIdempotencyStore builds the idempotency store for the event bus. It
// prefers Redis so multiple instances share state; when Redis is unreachable
// it falls back to the in-memory store, which is only safe for a single
// instance.
func NewIdempotencyStore(cfg config.RedisConfig, logger *zap.Logger) shared.IdempotencyStore {
	store, err := NewRedisIdempotencyStore(cfg)
	if err == nil {
		logger.Info("using Redis idempotency store")
		return store
	}

	logger.Warn("Redis unavailable, falling back to in-memory idempotency store",
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore()
}
