package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultDedupSize = 10000
	defaultDedupTTL  = time.Hour
)

// Dedup implements ports.EventDeduper in process memory. It is used when no
// Redis is configured; claims are lost on restart.
type Dedup struct {
	mu   sync.Mutex
	seen *expirable.LRU[string, struct{}]
}

// NewDedup keeps up to size keys for ttl each. Zero values select 10000 keys
// and one hour.
func NewDedup(size int, ttl time.Duration) *Dedup {
	if size <= 0 {
		size = defaultDedupSize
	}
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	return &Dedup{seen: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

// FirstDelivery claims key and reports whether it was unseen.
func (d *Dedup) FirstDelivery(_ context.Context, key string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen.Get(key); ok {
		return false, nil
	}
	d.seen.Add(key, struct{}{})
	return true, nil
}
