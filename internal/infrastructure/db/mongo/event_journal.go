package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/shipping-central/internal/core/domain"
	"github.com/99minutos/shipping-central/internal/core/ports"
)

const (
	collectionEvents = "sse_events"
	defaultRecent    = 50
	maxRecent        = 500
	defaultRetention = 7 * 24 * time.Hour
)

type eventDocument struct {
	ID             string    `bson:"_id"`
	BusinessID     uint      `bson:"business_id"`
	Kind           string    `bson:"kind"`
	CorrelationID  string    `bson:"correlation_id,omitempty"`
	TrackingNumber string    `bson:"tracking_number,omitempty"`
	ShipmentID     uint      `bson:"shipment_id,omitempty"`
	Data           string    `bson:"data"`
	ReceivedAt     time.Time `bson:"received_at"`
}

// EventJournal implements ports.EventJournal using MongoDB.
type EventJournal struct {
	col       *mongo.Collection
	retention time.Duration
}

// NewEventJournal creates an EventJournal. Documents expire after retention
// (seven days when retention <= 0) once EnsureIndexes has run.
func NewEventJournal(db *mongo.Database, retention time.Duration) *EventJournal {
	if retention <= 0 {
		retention = defaultRetention
	}
	return &EventJournal{col: db.Collection(collectionEvents), retention: retention}
}

// Append persists an event. Events without an upstream id get a random one.
func (j *EventJournal) Append(ctx context.Context, evt domain.Event) error {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	doc := eventDocument{
		ID:             evt.ID,
		BusinessID:     evt.BusinessID,
		Kind:           evt.Kind.Short(),
		CorrelationID:  evt.CorrelationID,
		TrackingNumber: evt.TrackingNumber,
		ShipmentID:     evt.ShipmentID,
		Data:           string(evt.Data),
		ReceivedAt:     evt.ReceivedAt.UTC(),
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.ReceivedAt.IsZero() {
		doc.ReceivedAt = time.Now().UTC()
	}

	_, err := j.col.InsertOne(ctx, doc)
	if mongo.IsDuplicateKeyError(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("journal append: %w", err)
	}
	return nil
}

// Recent returns the latest events, newest first. businessID 0 reads every
// business.
func (j *EventJournal) Recent(ctx context.Context, businessID uint, limit int64) ([]ports.JournalEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if limit <= 0 {
		limit = defaultRecent
	}
	if limit > maxRecent {
		limit = maxRecent
	}

	filter := bson.M{}
	if businessID != 0 {
		filter["business_id"] = businessID
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "received_at", Value: -1}}).
		SetLimit(limit)

	cur, err := j.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("journal recent: %w", err)
	}
	defer cur.Close(ctx)

	var docs []eventDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("journal recent: %w", err)
	}

	out := make([]ports.JournalEntry, len(docs))
	for i, d := range docs {
		out[i] = ports.JournalEntry{
			ID:             d.ID,
			BusinessID:     d.BusinessID,
			Kind:           d.Kind,
			CorrelationID:  d.CorrelationID,
			TrackingNumber: d.TrackingNumber,
			ShipmentID:     d.ShipmentID,
			Data:           d.Data,
			ReceivedAt:     d.ReceivedAt,
		}
	}
	return out, nil
}

// EnsureIndexes creates the lookup and retention indexes of the journal.
func (j *EventJournal) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "business_id", Value: 1}, {Key: "received_at", Value: -1}}},
		{Keys: bson.D{{Key: "correlation_id", Value: 1}}},
		{
			Keys:    bson.D{{Key: "received_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(j.retention.Seconds())),
		},
	}

	_, err := j.col.Indexes().CreateMany(ctx, indexes)
	return err
}
