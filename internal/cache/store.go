// Package cache provides the read-through result cache for the inference
// engine: a small store contract, a Redis implementation for deployments,
// and an in-memory TTL implementation for local runs and tests.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/couchcryptid/storm-dol-service/internal/domain"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is the engine's cache contract. Writes are idempotent: concurrent
// writers for the same key compute the same deterministic result, so
// last-writer-wins needs no locking beyond the store's own.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Ping(ctx context.Context) error
}

// Fingerprint builds the coarse cache key for one request. Coordinates are
// rounded to 0.01 degrees (roughly 1 km) and the window is taken at day
// granularity, so nearby properties asking about the same period share an
// entry. Exact coordinates are deliberately never part of the key.
func Fingerprint(p domain.PropertyContext, w domain.TimeWindow) string {
	return fmt.Sprintf("dol:v1:%.2f:%.2f:%s:%s",
		p.Lat, p.Lon,
		w.Start.UTC().Format("20060102"),
		w.End.UTC().Format("20060102"),
	)
}
