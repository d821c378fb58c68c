package cache

import (
	"context"
	"time"
)

// ViewCache holds precomputed read-side payloads (storefront listing,
// dashboard stats) keyed by view name. Values are JSON blobs so one cache
// serves every view shape.
type ViewCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type NoopViewCache struct{}

func (NoopViewCache) Get(_ context.Context, _ string) ([]byte, bool, error) {
	return nil, false, nil
}

func (NoopViewCache) Set(_ context.Context, _ string, _ []byte, _ time.Duration) error {
	return nil
}

func (NoopViewCache) Delete(_ context.Context, _ ...string) error {
	return nil
}
