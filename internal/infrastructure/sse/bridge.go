package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/99minutos/shipping-central/internal/core/domain"
)

const defaultReconnectDelay = 3 * time.Second

// Status is the connection state of a Bridge.
type Status string

const (
	StatusIdle         Status = "idle"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusStopped      Status = "stopped"
)

// Handlers receive what a Bridge reads. Any of them may be nil.
type Handlers struct {
	OnEvent      func(domain.Event)
	OnStatus     func(Status)
	OnDiagnostic func(reason string, err error)
}

// Streamer opens the upstream event stream of a business.
type Streamer interface {
	Stream(ctx context.Context, businessID uint, kinds []domain.EventKind) (io.ReadCloser, error)
}

// Bridge holds one upstream subscription for a business and a set of event
// kinds. Handlers can be swapped at any time without resubscribing.
// Delivery is at-most-once: nothing missed while disconnected is replayed.
type Bridge struct {
	businessID uint
	kinds      []domain.EventKind
	accept     map[domain.EventKind]bool
	streamer   Streamer
	delay      time.Duration
	handlers   atomic.Pointer[Handlers]
	status     atomic.Value
	log        zerolog.Logger
}

// NewBridge creates a Bridge. An empty kinds list accepts every known kind.
func NewBridge(businessID uint, kinds []domain.EventKind, streamer Streamer, delay time.Duration, log zerolog.Logger) *Bridge {
	if delay <= 0 {
		delay = defaultReconnectDelay
	}
	b := &Bridge{
		businessID: businessID,
		kinds:      kinds,
		streamer:   streamer,
		delay:      delay,
		log:        log.With().Uint("business_id", businessID).Logger(),
	}
	if len(kinds) > 0 {
		b.accept = make(map[domain.EventKind]bool, len(kinds))
		for _, k := range kinds {
			b.accept[k] = true
		}
	}
	b.handlers.Store(&Handlers{})
	b.status.Store(StatusIdle)
	return b
}

// SetHandlers replaces the handlers. The subscription is left untouched.
func (b *Bridge) SetHandlers(h Handlers) {
	b.handlers.Store(&h)
}

func (b *Bridge) Status() Status {
	return b.status.Load().(Status)
}

func (b *Bridge) BusinessID() uint {
	return b.businessID
}

func (b *Bridge) setStatus(s Status) {
	if b.status.Swap(s) == s {
		return
	}
	b.log.Debug().Str("status", string(s)).Msg("sse status")
	if h := b.handlers.Load(); h.OnStatus != nil {
		h.OnStatus(s)
	}
}

// Run keeps the stream open until ctx is cancelled, reconnecting after a
// fixed delay whenever it drops.
func (b *Bridge) Run(ctx context.Context) {
	defer b.setStatus(StatusStopped)
	for {
		if ctx.Err() != nil {
			return
		}
		err := b.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		b.setStatus(StatusDisconnected)
		if err != nil {
			b.log.Warn().Err(err).Dur("retry_in", b.delay).Msg("sse stream dropped")
		}

		t := time.NewTimer(b.delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
	}
}

func (b *Bridge) consume(ctx context.Context) error {
	b.setStatus(StatusConnecting)
	body, err := b.streamer.Stream(ctx, b.businessID, b.kinds)
	if err != nil {
		return fmt.Errorf("sse connect: %w", err)
	}
	defer body.Close()
	b.setStatus(StatusConnected)

	r := NewReader(body)
	for {
		f, err := r.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("sse read: %w", err)
		}
		b.HandleMessage([]byte(f.Data))
	}
}

// HandleMessage decodes one data payload and hands it to OnEvent. Malformed
// payloads and unknown or unsubscribed kinds are dropped; a panicking
// handler never stops the stream.
func (b *Bridge) HandleMessage(raw []byte) {
	h := b.handlers.Load()
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().Interface("panic", r).Msg("sse handler panicked")
			b.diagnose(h, "handler_panic", fmt.Errorf("panic: %v", r))
		}
	}()

	evt, err := domain.DecodeEvent(raw)
	switch {
	case errors.Is(err, domain.ErrUnknownEventKind):
		b.log.Debug().Err(err).Msg("sse event ignored")
		b.diagnose(h, "unknown_kind", err)
		return
	case err != nil:
		b.log.Debug().Err(err).Msg("sse frame ignored")
		b.diagnose(h, "malformed", err)
		return
	}
	if b.accept != nil && !b.accept[evt.Kind] {
		b.diagnose(h, "unsubscribed_kind", nil)
		return
	}

	if evt.BusinessID == 0 {
		evt.BusinessID = b.businessID
	}
	if h.OnEvent != nil {
		h.OnEvent(evt)
	}
}

func (b *Bridge) diagnose(h *Handlers, reason string, err error) {
	if h.OnDiagnostic != nil {
		h.OnDiagnostic(reason, err)
	}
}
