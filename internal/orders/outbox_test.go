package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memOutbox struct {
	msgs      []OutboxMessage
	published map[string]time.Time
	markErr   error
}

func (m *memOutbox) Unpublished(_ context.Context, limit int) ([]OutboxMessage, error) {
	var out []OutboxMessage
	for _, msg := range m.msgs {
		if _, done := m.published[msg.ID]; !done && len(out) < limit {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memOutbox) MarkPublished(_ context.Context, id string, at time.Time) error {
	if m.markErr != nil {
		return m.markErr
	}
	m.published[id] = at
	return nil
}

type sent struct {
	topic, key, eventType string
}

type recordingPublisher struct {
	sent   []sent
	failOn string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, key, _ []byte, headers ...kafkago.Header) error {
	if string(key) == p.failOn {
		return errors.New("broker unavailable")
	}
	s := sent{topic: topic, key: string(key)}
	for _, h := range headers {
		if h.Key == "x-event-type" {
			s.eventType = string(h.Value)
		}
	}
	p.sent = append(p.sent, s)
	return nil
}

func outboxFixture() (*memOutbox, *recordingPublisher, *Relay) {
	store := &memOutbox{published: map[string]time.Time{}}
	now := time.Now()
	store.msgs = []OutboxMessage{
		newOutboxMessage("cart-api", "", TopicOrderPlaced, EventOrderPlaced, "IX1", OrderPlacedPayload{OrderID: "IX1"}, now),
		newOutboxMessage("cart-api", "", TopicOrderPlaced, EventOrderPlaced, "IX2", OrderPlacedPayload{OrderID: "IX2"}, now),
		newOutboxMessage("cart-api", "", TopicOrderCancelled, EventOrderCancelled, "IX1", OrderCancelledPayload{OrderID: "IX1"}, now),
	}
	pub := &recordingPublisher{}
	return store, pub, &Relay{Store: store, Publisher: pub, Log: zap.NewNop(), Batch: 10}
}

func TestRelayOnce_PublishesAndMarks(t *testing.T) {
	store, pub, relay := outboxFixture()

	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []sent{
		{TopicOrderPlaced, "IX1", EventOrderPlaced},
		{TopicOrderPlaced, "IX2", EventOrderPlaced},
		{TopicOrderCancelled, "IX1", EventOrderCancelled},
	}, pub.sent)

	n, err = relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, store.published, 3)
}

func TestRelayOnce_FailedPublishIsRetried(t *testing.T) {
	store, pub, relay := outboxFixture()
	pub.failOn = "IX2"

	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NotContains(t, store.published, store.msgs[1].ID)

	pub.failOn = ""
	n, err = relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRelayOnce_MarkFailureRepublishesLater(t *testing.T) {
	store, pub, relay := outboxFixture()
	store.markErr = errors.New("db down")

	n, err := relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	store.markErr = nil
	_, err = relay.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, pub.sent, 6, "at least once: unmarked rows are sent again")
}
