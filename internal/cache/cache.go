// Package cache stores greeks lookups so repeated screening runs do not hit
// the drill-down endpoint for contracts already enriched.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
type Cache interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key. A ttl <= 0 keeps the entry until evicted.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}
