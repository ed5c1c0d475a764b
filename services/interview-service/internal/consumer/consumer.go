package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/adoptly/adoptly/libs/db"
	"github.com/adoptly/adoptly/libs/kafkax"
	"github.com/adoptly/adoptly/services/interview-service/internal/inbox"
	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrPermanent marks a message that can never be applied. It is logged and its
// offset committed instead of being retried.
var ErrPermanent = errors.New("permanent event error")

// Handler applies msg inside tx.
type Handler func(ctx context.Context, tx pgx.Tx, msg kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer applies each message at most once (inbox) and commits its offset only
// after the transaction that applied it.
type Consumer struct {
	reader     messageReader
	pool       *db.Pool
	inbox      *inbox.Repository
	logger     *slog.Logger
	handler    Handler
	retryDelay time.Duration
}

type Config struct {
	Brokers string
	GroupID string
	Topic   string
}

func New(logger *slog.Logger, pool *db.Pool, inboxRepo *inbox.Repository, cfg Config, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kafkax.SplitBrokers(cfg.Brokers),
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
	return &Consumer{
		reader:     reader,
		pool:       pool,
		inbox:      inboxRepo,
		logger:     logger.With("topic", cfg.Topic),
		handler:    handler,
		retryDelay: time.Second,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka fetch error", "err", err)
			if !sleep(ctx, c.retryDelay) {
				return
			}
			continue
		}

		// Retry transient failures on the same message so offsets never skip it.
		for {
			err := c.process(ctx, msg)
			if err == nil || errors.Is(err, ErrPermanent) {
				break
			}
			c.logger.Error("event apply failed; retrying", "err", err, "offset", msg.Offset)
			if !sleep(ctx, c.retryDelay) {
				return
			}
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit failed", "err", err, "offset", msg.Offset)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	duplicate := false
	err := c.pool.InTx(ctxSpan, func(tx pgx.Tx) error {
		fresh, err := c.inbox.Record(ctxSpan, tx, meta.EventID, meta.EventType)
		if err != nil {
			return err
		}
		if !fresh {
			duplicate = true
			return nil
		}
		return c.handler(ctxSpan, tx, msg)
	})
	switch {
	case err != nil && errors.Is(err, ErrPermanent):
		c.logger.Warn("event rejected", "err", err, "event_id", meta.EventID, "event_type", meta.EventType)
		span.SetStatus(codes.Error, err.Error())
		return err
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply failed")
		return err
	case duplicate:
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
