package sse

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/shipping-central/internal/core/domain"
)

var ErrManagerStopped = errors.New("sse manager stopped")

// Sink receives every accepted event, typically the dispatcher.
type Sink interface {
	Enqueue(evt domain.Event)
}

// Observer receives connection metrics. It may be nil.
type Observer interface {
	StreamStatus(businessID uint, status Status)
	FrameIgnored(reason string)
}

// ManagerConfig captures the settings of a Manager.
type ManagerConfig struct {
	Streamer       Streamer
	Kinds          []domain.EventKind
	ReconnectDelay time.Duration
	Sink           Sink
	Observer       Observer
}

type subscription struct {
	bridge *Bridge
	refs   int
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager implements ports.EventSubscriber. It keeps at most one upstream
// Bridge per (business, kinds) and closes it when the last holder releases.
type Manager struct {
	cfg ManagerConfig
	log zerolog.Logger

	mu      sync.Mutex
	base    context.Context
	stop    context.CancelFunc
	subs    map[string]*subscription
	stopped bool
}

func NewManager(cfg ManagerConfig, log zerolog.Logger) *Manager {
	if len(cfg.Kinds) == 0 {
		cfg.Kinds = domain.AllEventKinds
	}
	base, stop := context.WithCancel(context.Background())
	return &Manager{
		cfg:  cfg,
		log:  log,
		base: base,
		stop: stop,
		subs: make(map[string]*subscription),
	}
}

func (m *Manager) key(businessID uint) string {
	names := make([]string, len(m.cfg.Kinds))
	for i, k := range m.cfg.Kinds {
		names[i] = k.Short()
	}
	sort.Strings(names)
	return fmt.Sprintf("%d|%s", businessID, strings.Join(names, ","))
}

// Acquire keeps the stream of businessID open until release is called. ctx
// only bounds the call itself; the stream runs under the manager.
func (m *Manager) Acquire(ctx context.Context, businessID uint) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil, ErrManagerStopped
	}

	key := m.key(businessID)
	sub, ok := m.subs[key]
	if !ok {
		sub = m.startLocked(businessID)
		m.subs[key] = sub
	}
	sub.refs++

	var once sync.Once
	return func() {
		once.Do(func() { m.release(key, sub) })
	}, nil
}

func (m *Manager) startLocked(businessID uint) *subscription {
	b := NewBridge(businessID, m.cfg.Kinds, m.cfg.Streamer, m.cfg.ReconnectDelay, m.log)
	b.SetHandlers(Handlers{
		OnEvent: func(evt domain.Event) {
			if m.cfg.Sink != nil {
				m.cfg.Sink.Enqueue(evt)
			}
		},
		OnStatus: func(s Status) {
			if m.cfg.Observer != nil {
				m.cfg.Observer.StreamStatus(businessID, s)
			}
		},
		OnDiagnostic: func(reason string, _ error) {
			if m.cfg.Observer != nil {
				m.cfg.Observer.FrameIgnored(reason)
			}
		},
	})

	ctx, cancel := context.WithCancel(m.base)
	sub := &subscription{bridge: b, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(sub.done)
		b.Run(ctx)
	}()
	m.log.Info().Uint("business_id", businessID).Msg("sse subscription opened")
	return sub
}

func (m *Manager) release(key string, sub *subscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sub.refs--
	if sub.refs > 0 {
		return
	}
	sub.cancel()
	if m.subs[key] == sub {
		delete(m.subs, key)
	}
	m.log.Info().Uint("business_id", sub.bridge.BusinessID()).Msg("sse subscription closed")
}

// Statuses reports the connection state of every open subscription.
func (m *Manager) Statuses() map[uint]Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uint]Status, len(m.subs))
	for _, sub := range m.subs {
		out[sub.bridge.BusinessID()] = sub.bridge.Status()
	}
	return out
}

// Len returns the number of open upstream subscriptions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

// Stop closes every subscription and waits for the bridges to exit or ctx
// to expire.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	m.stopped = true
	m.stop()
	pending := make([]*subscription, 0, len(m.subs))
	for k, sub := range m.subs {
		pending = append(pending, sub)
		delete(m.subs, k)
	}
	m.mu.Unlock()

	for _, sub := range pending {
		select {
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
