package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key does not exist.
var ErrCacheMiss = errors.New("cache: key not found")

// SessionCache is the key-value store backing refresh-token tracking and
// access-token revocation. Writes are idempotent and deletes of absent keys
// are no-ops. Implementations must be safe for concurrent use.
type SessionCache interface {
	Get(ctx context.Context, key string) (string, error)
	SetWithTTL(ctx context.Context, key string, ttl time.Duration, value string) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// RefreshKey is the cache slot holding a user's single live refresh token.
func RefreshKey(userID string) string {
	return "refresh:" + userID
}

// BlacklistKey is the cache slot marking an access token as revoked.
func BlacklistKey(token string) string {
	return "blacklist:" + token
}

// RevokedSentinel is the value stored under blacklist keys.
const RevokedSentinel = "revoked"
