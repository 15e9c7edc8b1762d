//go:build integration

package kafka

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	orderkafka "github.com/dmehra2102/storefront-reconciler/internal/order/infrastructure/kafka"
	"github.com/dmehra2102/storefront-reconciler/internal/payment/application"
	"github.com/dmehra2102/storefront-reconciler/internal/payment/domain"
	"github.com/dmehra2102/storefront-reconciler/internal/testenv"
	"github.com/dmehra2102/storefront-reconciler/pkg/logging"
)

type cancellingApplier struct {
	cancel context.CancelFunc
	got    []domain.Envelope
}

func (a *cancellingApplier) HandleEnvelope(_ context.Context, env domain.Envelope) (application.Result, error) {
	a.got = append(a.got, env)
	a.cancel()
	return application.Result{Outcome: application.OutcomeCreated}, nil
}

func TestConsumerAgainstBroker(t *testing.T) {
	brokers := testenv.Kafka(t)
	const topic = "payments.notifications"

	w := orderkafka.NewWriter(brokers)
	defer w.Close()
	writeCtx, cancelWrite := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelWrite()
	require.Eventually(t, func() bool {
		return w.WriteMessages(writeCtx, kafka.Message{
			Topic: topic,
			Key:   []byte("p1"),
			Value: []byte(`{"type":"payment","data":{"id":"p1","status":"approved","external_reference":"order_1"}}`),
		}) == nil
	}, 30*time.Second, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	applier := &cancellingApplier{cancel: cancel}
	consumer := NewConsumer(logging.Discard(), NewReader(brokers, topic, "it-group"), applier, nil)

	require.NoError(t, consumer.Run(ctx))
	require.Len(t, applier.got, 1)
	assert.Equal(t, domain.GatewayID("p1"), applier.got[0].Data.ID)
}
