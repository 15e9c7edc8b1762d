package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/storefront-reconciler/internal/payment/application"
	"github.com/dmehra2102/storefront-reconciler/internal/payment/domain"
	"github.com/dmehra2102/storefront-reconciler/pkg/tracing"
)

type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Deduper is satisfied by *idempotency.Store. MarkDone is only called once
// the offset has been committed.
type Deduper interface {
	Key(topic string, partition int, offset int64) string
	Done(ctx context.Context, key string) (bool, error)
	MarkDone(ctx context.Context, key string) error
}

type Applier interface {
	HandleEnvelope(ctx context.Context, env domain.Envelope) (application.Result, error)
}

// Consumer feeds webhook-shaped messages from a topic into the engine.
type Consumer struct {
	log    *slog.Logger
	reader Reader
	engine Applier
	idem   Deduper
	tracer trace.Tracer
}

func NewReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
}

// NewConsumer builds a consumer. idem may be nil, in which case every
// delivery reaches the engine, which is idempotent on its own.
func NewConsumer(log *slog.Logger, reader Reader, engine Applier, idem Deduper) *Consumer {
	return &Consumer{
		log:    log,
		reader: reader,
		engine: engine,
		idem:   idem,
		tracer: otel.Tracer("payment-consumer"),
	}
}

// Run consumes until ctx is cancelled or a message fails for a reason that a
// retry could fix. In the latter case the offset is left uncommitted and the
// error is returned.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := c.handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) error {
	var key string
	if c.idem != nil {
		key = c.idem.Key(msg.Topic, msg.Partition, msg.Offset)
		done, err := c.idem.Done(ctx, key)
		switch {
		case err != nil:
			c.log.Warn("idempotency check failed, applying anyway", "key", key, "err", err)
		case done:
			c.log.Info("duplicate message skipped", "key", key)
			return c.commit(ctx, msg)
		}
	}

	if err := c.apply(ctx, msg); err != nil {
		return err
	}
	if err := c.commit(ctx, msg); err != nil {
		return err
	}
	if key != "" {
		if err := c.idem.MarkDone(ctx, key); err != nil {
			c.log.Warn("idempotency mark failed", "key", key, "err", err)
		}
	}
	return nil
}

// apply hands one message to the engine. Only failures a redelivery could
// fix are returned.
func (c *Consumer) apply(ctx context.Context, msg kafka.Message) error {
	msgCtx := tracing.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ApplyNotification", trace.WithAttributes(
		attribute.String("messaging.destination", msg.Topic),
		attribute.Int("messaging.kafka.partition", msg.Partition),
		attribute.Int64("messaging.kafka.offset", msg.Offset),
	))
	defer span.End()

	var env domain.Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		c.log.Error("unmarshal notification failed", "offset", msg.Offset, "err", err)
		span.SetStatus(codes.Error, "bad payload")
		return nil
	}

	res, err := c.engine.HandleEnvelope(msgCtx, env)
	switch {
	case err == nil:
		c.log.Info("notification consumed",
			"gateway_id", string(env.Data.ID),
			"outcome", res.Outcome,
			"order_status", res.Order.Status,
		)
	case permanent(err):
		c.log.Warn("notification rejected", "gateway_id", string(env.Data.ID), "err", err)
		span.SetStatus(codes.Error, err.Error())
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("apply notification at offset %d: %w", msg.Offset, err)
	}
	return nil
}

// permanent errors would fail the same way on every redelivery.
func permanent(err error) bool {
	return errors.Is(err, application.ErrValidation) || errors.Is(err, application.ErrOrderNotFound)
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) error {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
	}
	return nil
}
