package cache

import (
	"context"
	"time"

	"uniformes/backend/internal/domain"
)

type RestockCache interface {
	Get(ctx context.Context, key string) ([]domain.RestockSuggestion, bool, error)
	Set(ctx context.Context, key string, value []domain.RestockSuggestion, ttl time.Duration) error
}

type NoopRestockCache struct{}

func (NoopRestockCache) Get(_ context.Context, _ string) ([]domain.RestockSuggestion, bool, error) {
	return nil, false, nil
}

func (NoopRestockCache) Set(_ context.Context, _ string, _ []domain.RestockSuggestion, _ time.Duration) error {
	return nil
}
