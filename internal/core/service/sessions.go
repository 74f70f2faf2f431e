package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/99minutos/shipping-central/internal/core/domain"
	"github.com/99minutos/shipping-central/internal/core/ports"
)

// GuideHook is notified when any session's guide becomes available.
type GuideHook func(sessionID string, businessID uint, g domain.Guide)

type registered struct {
	wizard  *GuideWizard
	release func()
}

// WizardRegistry owns the open wizard sessions. Each session holds an
// upstream event subscription for its business until it is closed or
// expires.
type WizardRegistry struct {
	deps       WizardDeps
	subscriber ports.EventSubscriber
	ttl        time.Duration
	log        zerolog.Logger

	mu       sync.RWMutex
	sessions map[string]*registered
	hooks    []GuideHook
}

// NewWizardRegistry returns an empty registry. A nil subscriber disables
// upstream subscriptions; a zero ttl disables expiry.
func NewWizardRegistry(deps WizardDeps, subscriber ports.EventSubscriber, ttl time.Duration, log zerolog.Logger) *WizardRegistry {
	return &WizardRegistry{
		deps:       deps,
		subscriber: subscriber,
		ttl:        ttl,
		log:        log,
		sessions:   make(map[string]*registered),
	}
}

// OnGuideGenerated adds a hook that every future session registers.
func (r *WizardRegistry) OnGuideGenerated(h GuideHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, h)
}

// Open creates and opens a new session. Failing to subscribe to upstream
// events degrades the session to acknowledgement-only completion.
func (r *WizardRegistry) Open(ctx context.Context, businessID uint, opts OpenOptions) (string, *GuideWizard) {
	id := uuid.NewString()
	w := NewGuideWizard(businessID, r.deps)

	r.mu.RLock()
	hooks := append([]GuideHook(nil), r.hooks...)
	r.mu.RUnlock()
	for _, h := range hooks {
		h := h
		w.OnGuideGenerated(func(g domain.Guide) { h(id, businessID, g) })
	}

	release := func() {}
	var subErr error
	if r.subscriber != nil {
		rel, err := r.subscriber.Acquire(ctx, businessID)
		if err != nil {
			subErr = err
			r.log.Warn().Err(err).Uint("business_id", businessID).Msg("event subscription unavailable")
		} else {
			release = rel
		}
	}

	w.Open(ctx, opts)
	if subErr != nil {
		w.degrade(domain.Degradation{Feature: "sse", Reason: subErr.Error()})
	}

	r.mu.Lock()
	r.sessions[id] = &registered{wizard: w, release: release}
	r.mu.Unlock()

	r.log.Info().Str("session_id", id).Uint("business_id", businessID).Msg("wizard session opened")
	return id, w
}

// Get returns an open session.
func (r *WizardRegistry) Get(id string) (*GuideWizard, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s.wizard, nil
}

// Close resets the session and releases its subscription.
func (r *WizardRegistry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}
	s.wizard.Close()
	s.release()
	r.log.Info().Str("session_id", id).Msg("wizard session closed")
	return nil
}

// Len is the number of open sessions.
func (r *WizardRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Process routes an event to the sessions of its business, or to every
// session when the event carries no business.
func (r *WizardRegistry) Process(_ context.Context, evt domain.Event) error {
	r.mu.RLock()
	targets := make([]*GuideWizard, 0, len(r.sessions))
	for _, s := range r.sessions {
		if evt.BusinessID == 0 || s.wizard.BusinessID() == evt.BusinessID {
			targets = append(targets, s.wizard)
		}
	}
	r.mu.RUnlock()

	for _, w := range targets {
		if w.HandleEvent(evt) {
			return nil
		}
	}
	return nil
}

// Sweep closes sessions idle for longer than the ttl and returns how many
// were closed.
func (r *WizardRegistry) Sweep(now time.Time) int {
	if r.ttl <= 0 {
		return 0
	}
	r.mu.RLock()
	var expired []string
	for id, s := range r.sessions {
		if now.Sub(s.wizard.LastActive()) > r.ttl {
			expired = append(expired, id)
		}
	}
	r.mu.RUnlock()

	for _, id := range expired {
		_ = r.Close(id)
	}
	if len(expired) > 0 {
		r.log.Info().Int("sessions", len(expired)).Msg("expired wizard sessions closed")
	}
	return len(expired)
}

// Run sweeps on every interval until ctx is done, then closes every session.
func (r *WizardRegistry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case now := <-t.C:
			r.Sweep(now)
		}
	}
}

func (r *WizardRegistry) closeAll() {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	for _, id := range ids {
		_ = r.Close(id)
	}
}
