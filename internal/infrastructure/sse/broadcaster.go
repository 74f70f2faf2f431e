package sse

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/99minutos/shipping-central/internal/core/domain"
)

const defaultListenerBuffer = 32

type listener struct {
	businessID uint
	ch         chan domain.Event
}

// Broadcaster implements ports.EventPublisher for browser relays. A slow
// listener loses events instead of blocking the pipeline.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[uint64]*listener
	next      uint64
	buffer    int
	dropped   atomic.Uint64
	log       zerolog.Logger
}

func NewBroadcaster(buffer int, log zerolog.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = defaultListenerBuffer
	}
	return &Broadcaster{
		listeners: make(map[uint64]*listener),
		buffer:    buffer,
		log:       log,
	}
}

// Subscribe registers a listener. businessID 0 receives every business.
// cancel closes the channel and must be called exactly once.
func (b *Broadcaster) Subscribe(businessID uint) (<-chan domain.Event, func()) {
	l := &listener{businessID: businessID, ch: make(chan domain.Event, b.buffer)}

	b.mu.Lock()
	id := b.next
	b.next++
	b.listeners[id] = l
	b.mu.Unlock()

	var once sync.Once
	return l.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.listeners, id)
			b.mu.Unlock()
			close(l.ch)
		})
	}
}

func (b *Broadcaster) Publish(evt domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, l := range b.listeners {
		if l.businessID != 0 && l.businessID != evt.BusinessID {
			continue
		}
		select {
		case l.ch <- evt:
		default:
			b.dropped.Add(1)
			b.log.Warn().Uint("business_id", l.businessID).Str("kind", evt.Kind.Short()).Msg("relay listener full, event dropped")
		}
	}
}

// Len returns the number of connected listeners.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Dropped returns how many deliveries were skipped because a listener was
// full.
func (b *Broadcaster) Dropped() uint64 {
	return b.dropped.Load()
}
