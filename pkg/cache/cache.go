// Package cache stores solved layouts and rendered artifacts between runs.
//
// A [Cache] is a plain byte store with per-entry TTLs. Keys come from a
// [Keyer], which hashes the map content together with every parameter that
// can change the result, so a cache hit is always a result the current
// settings would reproduce.
//
// Backends:
//
//   - [FileCache]: zstd-compressed entries under a local directory (CLI default)
//   - [RedisCache]: a shared Redis instance, for `oreflow serve` fleets
//   - [MongoCache]: a MongoDB collection with a TTL index
//   - [NullCache]: stores nothing
//
// Only optimal solutions are ever written; timeouts and infeasible outcomes
// are recomputed on the next run.
package cache

import (
	"context"
	"time"
)

// Cache is a key/value byte store.
//
// Get reports a miss as (nil, false, nil); errors are reserved for backend
// failures. Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Clearer is implemented by caches that can drop every entry they own.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Default entry lifetimes.
const (
	TTLSolution = 30 * 24 * time.Hour
	TTLArtifact = 7 * 24 * time.Hour
)
