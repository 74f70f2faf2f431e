package ports

import (
	"context"
	"time"

	"github.com/99minutos/shipping-central/internal/core/domain"
)

// EventProcessor consumes one normalized SSE event.
type EventProcessor interface {
	Process(ctx context.Context, evt domain.Event) error
}

// EventJournal persists received events for diagnostics.
type EventJournal interface {
	Append(ctx context.Context, evt domain.Event) error
	Recent(ctx context.Context, businessID uint, limit int64) ([]JournalEntry, error)
}

// JournalEntry is a stored event.
type JournalEntry struct {
	ID             string    `json:"id"`
	BusinessID     uint      `json:"business_id"`
	Kind           string    `json:"kind"`
	CorrelationID  string    `json:"correlation_id,omitempty"`
	TrackingNumber string    `json:"tracking_number,omitempty"`
	ShipmentID     uint      `json:"shipment_id,omitempty"`
	Data           string    `json:"data"`
	ReceivedAt     time.Time `json:"received_at"`
}

// EventDeduper reports whether an event key is seen for the first time. An
// error means the answer is unknown.
type EventDeduper interface {
	FirstDelivery(ctx context.Context, key string) (bool, error)
}

// EventPublisher fans events out to in-process listeners (browser relays).
type EventPublisher interface {
	Publish(evt domain.Event)
}

// EventSubscriber keeps an upstream SSE subscription alive for a business
// until release is called.
type EventSubscriber interface {
	Acquire(ctx context.Context, businessID uint) (release func(), err error)
}
