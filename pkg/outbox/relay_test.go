package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/storefront-reconciler/pkg/logging"
	"github.com/dmehra2102/storefront-reconciler/pkg/tracing"
)

type fakeStore struct {
	batch  []Event
	sent   []int64
	failed map[int64]string
}

func (s *fakeStore) LockBatch(context.Context, string, int, time.Duration) ([]Event, error) {
	b := s.batch
	s.batch = nil
	return b, nil
}

func (s *fakeStore) MarkSent(_ context.Context, _ string, ids []int64) error {
	s.sent = append(s.sent, ids...)
	return nil
}

func (s *fakeStore) MarkFailed(_ context.Context, id int64, msg string) error {
	if s.failed == nil {
		s.failed = map[int64]string{}
	}
	s.failed[id] = msg
	return nil
}

func (s *fakeStore) ExtendLease(context.Context, string, []int64, time.Duration) error { return nil }

type fakeProducer struct {
	msgs   []kafka.Message
	failOn string
}

func (p *fakeProducer) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		if string(m.Key) == p.failOn {
			return errors.New("broker down")
		}
		p.msgs = append(p.msgs, m)
	}
	return nil
}

func TestRelayTick(t *testing.T) {
	store := &fakeStore{batch: []Event{
		{ID: 1, AggregateID: "o-1", Type: "OrderStatusChanged", Payload: []byte(`{}`), Traceparent: "00-abc-def-01"},
		{ID: 2, AggregateID: "o-2", Type: "OrderStatusChanged", Payload: []byte(`{}`)},
		{ID: 3, AggregateID: "o-3", Type: "OrderStatusChanged", Payload: []byte(`{}`), Headers: map[string]string{"content-type": "application/json"}},
	}}
	producer := &fakeProducer{failOn: "o-2"}
	relay := NewRelay(logging.Discard(), store, NewDispatcher(logging.Discard(), producer, "order.events"), "relay-1")

	n, err := relay.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{1, 3}, store.sent)
	assert.Contains(t, store.failed, int64(2))

	require.Len(t, producer.msgs, 2)
	first := producer.msgs[0]
	assert.Equal(t, "order.events", first.Topic)
	assert.Equal(t, "o-1", string(first.Key))
	assert.Equal(t, "00-abc-def-01", tracing.HeaderValue(first.Headers, "traceparent"))
	assert.Equal(t, "OrderStatusChanged", tracing.HeaderValue(first.Headers, "event_type"))
	assert.Equal(t, "application/json", tracing.HeaderValue(producer.msgs[1].Headers, "content-type"))

	n, err = relay.Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
