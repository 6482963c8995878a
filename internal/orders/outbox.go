package orders

import (
	"context"
	"time"

	kafkax "github.com/ariefcatur/go-laundry-cart/internal/kafka"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// OutboxMessage is an event stored in the transaction that caused it. Payload
// is the full Envelope.
type OutboxMessage struct {
	ID          string
	AggregateID string
	Topic       string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
}

func newOutboxMessage(producer, traceID, topic, eventType, orderID string, payload any, now time.Time) OutboxMessage {
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    now.UTC(),
		Producer:      producer,
		TraceID:       traceID,
		CorrelationID: orderID,
		Payload:       kafkax.MustMarshal(payload),
	}
	return OutboxMessage{
		ID:          ev.EventID,
		AggregateID: orderID,
		Topic:       topic,
		EventType:   eventType,
		Payload:     kafkax.MustMarshal(ev),
		CreatedAt:   now,
	}
}

type OutboxStore interface {
	Unpublished(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkPublished(ctx context.Context, id string, at time.Time) error
}

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers ...kafkago.Header) error
}

// Relay moves committed outbox rows to Kafka. Delivery is at least once;
// consumers dedup on the envelope event id.
type Relay struct {
	Store     OutboxStore
	Publisher Publisher
	Log       *zap.Logger
	Interval  time.Duration
	Batch     int
}

func (r *Relay) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if _, err := r.RelayOnce(ctx); err != nil {
				r.Log.Warn("outbox relay", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// RelayOnce publishes one batch and returns how many rows were marked.
// A row that fails to publish is left for the next tick.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	batch := r.Batch
	if batch <= 0 {
		batch = 100
	}
	msgs, err := r.Store.Unpublished(ctx, batch)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, m := range msgs {
		err := r.Publisher.Publish(ctx, m.Topic, PartitionKey(m.AggregateID), m.Payload, kafkax.EventHeaders(m.EventType)...)
		if err != nil {
			r.Log.Warn("publish outbox event", zap.String("event_id", m.ID), zap.String("topic", m.Topic), zap.Error(err))
			continue
		}
		if err := r.Store.MarkPublished(ctx, m.ID, time.Now().UTC()); err != nil {
			r.Log.Warn("mark outbox event", zap.String("event_id", m.ID), zap.Error(err))
			continue
		}
		n++
	}
	return n, nil
}
