package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/99minutos/shipping-central/internal/core/domain"
	"github.com/99minutos/shipping-central/internal/core/ports"
)

// EventObserver receives pipeline metrics. It may be nil.
type EventObserver interface {
	EventProcessed(kind string)
	EventDuplicate(kind string)
	EventFailed(kind string)
}

// EventPipeline processes every event received from the upstream stream.
type EventPipeline struct {
	instance   string
	dedup      ports.EventDeduper
	journal    ports.EventJournal
	publisher  ports.EventPublisher
	processors []ports.EventProcessor
	observer   EventObserver
	log        zerolog.Logger
}

// PipelineDeps are the collaborators of an EventPipeline. Nil stores are
// skipped.
//
// Wizard sessions and browser relays live in one process, so every replica
// must see every event. Instance scopes dedup keys to this process: a shared
// store then only drops reconnect and replay duplicates of the same replica.
type PipelineDeps struct {
	Instance   string
	Dedup      ports.EventDeduper
	Journal    ports.EventJournal
	Publisher  ports.EventPublisher
	Processors []ports.EventProcessor
	Observer   EventObserver
	Log        zerolog.Logger
}

func NewEventPipeline(deps PipelineDeps) *EventPipeline {
	return &EventPipeline{
		instance:   deps.Instance,
		dedup:      deps.Dedup,
		journal:    deps.Journal,
		publisher:  deps.Publisher,
		processors: deps.Processors,
		observer:   deps.Observer,
		log:        deps.Log,
	}
}

// Process deduplicates, routes, relays and journals a single event.
func (p *EventPipeline) Process(ctx context.Context, evt domain.Event) error {
	kind := evt.Kind.Short()
	log := p.log.With().
		Str("kind", kind).
		Str("correlation_id", evt.CorrelationID).
		Uint("business_id", evt.BusinessID).
		Logger()

	// 1. At-most-once per event and replica.
	if p.dedup != nil {
		first, err := p.dedup.FirstDelivery(ctx, p.dedupKey(evt))
		if err != nil {
			log.Warn().Err(err).Msg("dedup check failed, processing anyway")
		} else if !first {
			log.Debug().Msg("duplicate event skipped")
			if p.observer != nil {
				p.observer.EventDuplicate(kind)
			}
			return nil
		}
	}

	// 2. Route to wizard sessions and panels.
	var errs []error
	for _, proc := range p.processors {
		if err := proc.Process(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}

	// 3. Relay to connected browsers.
	if p.publisher != nil {
		p.publisher.Publish(evt)
	}

	// 4. Journal (non-fatal).
	if p.journal != nil {
		if err := p.journal.Append(ctx, evt); err != nil {
			log.Warn().Err(err).Msg("failed to journal event")
		}
	}

	if err := errors.Join(errs...); err != nil {
		log.Warn().Err(err).Msg("event processing failed")
		if p.observer != nil {
			p.observer.EventFailed(kind)
		}
		return fmt.Errorf("process event: %w", err)
	}

	if p.observer != nil {
		p.observer.EventProcessed(kind)
	}
	log.Debug().Str("tracking", evt.TrackingNumber).Msg("event processed")
	return nil
}

func (p *EventPipeline) dedupKey(evt domain.Event) string {
	if p.instance == "" {
		return EventKey(evt)
	}
	return p.instance + ":" + EventKey(evt)
}

// EventKey identifies an event for deduplication: the upstream event id when
// present, otherwise a digest of its content.
func EventKey(evt domain.Event) string {
	if evt.ID != "" {
		return "id:" + evt.ID
	}
	h := sha256.New()
	h.Write([]byte(evt.Kind))
	h.Write([]byte{0})
	h.Write([]byte(evt.CorrelationID))
	h.Write([]byte{0})
	h.Write([]byte(evt.TrackingNumber))
	h.Write([]byte{0})
	h.Write([]byte(strconv.FormatUint(uint64(evt.ShipmentID), 10)))
	h.Write([]byte{0})
	h.Write(evt.Data)
	return "sha:" + hex.EncodeToString(h.Sum(nil))
}
