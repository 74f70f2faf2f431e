package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EventKind is the normalized discriminant of a shipment SSE event.
type EventKind string

const (
	EventQuoteReceived   EventKind = "shipment.quote_received"
	EventQuoteFailed     EventKind = "shipment.quote_failed"
	EventGuideGenerated  EventKind = "shipment.guide_generated"
	EventGuideFailed     EventKind = "shipment.guide_failed"
	EventTrackingUpdated EventKind = "shipment.tracking_updated"
	EventTrackingFailed  EventKind = "shipment.tracking_failed"
	EventCancelled       EventKind = "shipment.cancelled"
	EventCancelFailed    EventKind = "shipment.cancel_failed"
)

const eventKindPrefix = "shipment."

// AllEventKinds lists every kind the bridge understands.
var AllEventKinds = []EventKind{
	EventQuoteReceived,
	EventQuoteFailed,
	EventGuideGenerated,
	EventGuideFailed,
	EventTrackingUpdated,
	EventTrackingFailed,
	EventCancelled,
	EventCancelFailed,
}

var (
	ErrMalformedEvent   = errors.New("malformed event")
	ErrUnknownEventKind = errors.New("unknown event kind")
)

// ParseEventKind accepts both the prefixed ("shipment.cancelled") and the bare
// ("cancelled") spelling.
func ParseEventKind(s string) (EventKind, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	if !strings.HasPrefix(s, eventKindPrefix) {
		s = eventKindPrefix + s
	}
	k := EventKind(s)
	for _, known := range AllEventKinds {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// Short returns the kind without the "shipment." prefix.
func (k EventKind) Short() string {
	return strings.TrimPrefix(string(k), eventKindPrefix)
}

// EventMetadata is the optional metadata block of the envelope.
type EventMetadata struct {
	EventType     string `json:"event_type,omitempty"`
	EventID       string `json:"event_id,omitempty"`
	BusinessID    uint   `json:"business_id,omitempty"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

type envelope struct {
	Type     string          `json:"type"`
	Data     json.RawMessage `json:"data"`
	Metadata *EventMetadata  `json:"metadata,omitempty"`
}

// Event is a decoded envelope whose discriminant has been resolved. The
// reference fields are lifted out of Data so routing never has to re-parse it.
type Event struct {
	ID             string
	Kind           EventKind
	BusinessID     uint
	CorrelationID  string
	TrackingNumber string
	ShipmentID     uint
	Data           json.RawMessage
	ReceivedAt     time.Time
}

// DecodeEvent parses one SSE data payload. The kind comes from "type" and
// falls back to "metadata.event_type".
func DecodeEvent(raw []byte) (Event, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return Event{}, ErrMalformedEvent
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	kind, ok := ParseEventKind(env.Type)
	if !ok && env.Metadata != nil {
		kind, ok = ParseEventKind(env.Metadata.EventType)
	}
	if !ok {
		t := env.Type
		if t == "" && env.Metadata != nil {
			t = env.Metadata.EventType
		}
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownEventKind, t)
	}

	evt := Event{
		Kind:       kind,
		Data:       env.Data,
		ReceivedAt: time.Now().UTC(),
	}
	liftRefs(&evt)

	if md := env.Metadata; md != nil {
		evt.ID = md.EventID
		if evt.BusinessID == 0 {
			evt.BusinessID = md.BusinessID
		}
		if evt.CorrelationID == "" {
			evt.CorrelationID = md.CorrelationID
		}
	}
	return evt, nil
}

func liftRefs(evt *Event) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(evt.Data, &fields); err != nil {
		return
	}
	evt.CorrelationID = rawString(fields["correlation_id"])
	evt.TrackingNumber = rawString(fields["tracking_number"])
	if evt.TrackingNumber == "" {
		evt.TrackingNumber = rawString(fields["tracker"])
	}
	evt.ShipmentID = rawUint(fields["shipment_id"])
	evt.BusinessID = rawUint(fields["business_id"])
}

// rawString reads a JSON string or number as text.
func rawString(v json.RawMessage) string {
	if len(v) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(v, &n); err == nil {
		return n.String()
	}
	return ""
}

func rawUint(v json.RawMessage) uint {
	s := rawString(v)
	if s == "" {
		return 0
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return uint(n)
}

// Decode unmarshals the event data into v.
func (e Event) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: empty data", ErrMalformedEvent)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}

// Envelope re-encodes the event in its wire shape for relaying.
func (e Event) Envelope() ([]byte, error) {
	return json.Marshal(envelope{
		Type: string(e.Kind),
		Data: e.Data,
		Metadata: &EventMetadata{
			EventType:     string(e.Kind),
			EventID:       e.ID,
			BusinessID:    e.BusinessID,
			CorrelationID: e.CorrelationID,
		},
	})
}

// --- Payloads ---

// QuoteReceivedPayload carries the rates of a finished quote.
type QuoteReceivedPayload struct {
	CorrelationID string `json:"correlation_id"`
	Rates         []Rate `json:"rates"`
}

// FailurePayload is shared by every *_failed kind.
type FailurePayload struct {
	CorrelationID  string `json:"correlation_id"`
	TrackingNumber string `json:"tracking_number"`
	Error          string `json:"error"`
	Message        string `json:"message"`
}

// Reason prefers the error text over the message.
func (p FailurePayload) Reason() string {
	if p.Error != "" {
		return p.Error
	}
	if p.Message != "" {
		return p.Message
	}
	return "unknown error"
}

// GuideGeneratedPayload accepts both the legacy (tracker/url) and the event
// (tracking_number/label_url) field names.
type GuideGeneratedPayload struct {
	CorrelationID       string `json:"correlation_id"`
	Tracker             string `json:"tracker"`
	TrackingNumber      string `json:"tracking_number"`
	URL                 string `json:"url"`
	LabelURL            string `json:"label_url"`
	MyShipmentReference string `json:"myShipmentReference"`
	ShipmentReference   string `json:"my_shipment_reference"`
}

// Guide converts the payload into a Guide.
func (p GuideGeneratedPayload) Guide(shipmentID uint) Guide {
	return Guide{
		ShipmentID:          shipmentID,
		Tracker:             firstNonEmpty(p.Tracker, p.TrackingNumber),
		URL:                 firstNonEmpty(p.URL, p.LabelURL),
		MyShipmentReference: firstNonEmpty(p.MyShipmentReference, p.ShipmentReference),
	}
}

// TrackingUpdatedPayload carries a refreshed tracking history.
type TrackingUpdatedPayload struct {
	TrackingNumber string         `json:"tracking_number"`
	Status         string         `json:"status"`
	History        []TrackHistory `json:"history"`
}

// CancelledPayload confirms a cancellation.
type CancelledPayload struct {
	TrackingNumber string `json:"tracking_number"`
	Status         string `json:"status"`
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
