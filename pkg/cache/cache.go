// Package cache stores solved segments, detected corners and rendered
// artifacts so repeated runs over the same image skip the search.
//
// Backends implement [Cache]: [FileCache] for the CLI, [RedisCache] for
// shared deployments and [NullCache] when caching is disabled. Keys are built
// by a [Keyer] so that every input affecting a value is part of its key.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry expiry.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the value for key. A miss is (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the backend.
	Close() error
}

// Default entry lifetimes.
const (
	// TTLSegment applies to solved segments. A segment's result depends only
	// on its inputs, so entries live long.
	TTLSegment = 30 * 24 * time.Hour

	// TTLCorners applies to detected corner lists.
	TTLCorners = 30 * 24 * time.Hour

	// TTLArtifact applies to rendered SVG, JSON and PNG output.
	TTLArtifact = 7 * 24 * time.Hour
)
