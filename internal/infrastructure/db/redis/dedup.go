package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultDedupTTL = time.Hour
	dedupPrefix     = "central:sse:seen:"
)

// DedupStore implements ports.EventDeduper. Claims survive a process
// restart, so a replica that reconnects with the same instance key skips
// events it already handled. Callers scope keys per replica.
type DedupStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewDedupStore wraps client. Keys expire after ttl (one hour when ttl <= 0).
func NewDedupStore(client redis.Cmdable, ttl time.Duration) *DedupStore {
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	return &DedupStore{client: client, ttl: ttl}
}

// FirstDelivery atomically claims key and reports whether this caller was
// the first to see it.
func (d *DedupStore) FirstDelivery(ctx context.Context, key string) (bool, error) {
	ok, err := d.client.SetNX(ctx, dedupPrefix+key, time.Now().UTC().Unix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup claim: %w", err)
	}
	return ok, nil
}
