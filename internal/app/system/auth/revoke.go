// internal/app/system/auth/revoke.go
package auth

import (
	"context"
	"time"

	"github.com/dalemusser/campusdesk/internal/app/system/cache"
)

// Revocations remembers token ids that were logged out before they expired.
type Revocations interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

const revokedPrefix = "campusdesk:revoked:"

// CacheRevocations stores revoked ids in a cache until the token would have
// expired anyway.
type CacheRevocations struct {
	Cache cache.Cache
	now   func() time.Time
}

// NewCacheRevocations wraps c.
func NewCacheRevocations(c cache.Cache) *CacheRevocations {
	return &CacheRevocations{Cache: c, now: time.Now}
}

func (r *CacheRevocations) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	if tokenID == "" {
		return nil
	}
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.Cache.Set(ctx, revokedPrefix+tokenID, []byte("1"), ttl)
}

func (r *CacheRevocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	_, ok, err := r.Cache.Get(ctx, revokedPrefix+tokenID)
	return ok, err
}
