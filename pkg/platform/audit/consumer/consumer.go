// Package consumer materializes the Kafka audit stream into a queryable
// store.
package consumer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "medverify/pkg/platform/audit"
	auditkafka "medverify/pkg/platform/audit/store/kafka"
)

// Materializer stores decoded events. AppendWithID must ignore replays of an
// event ID it has already stored.
type Materializer interface {
	AppendWithID(ctx context.Context, eventID uuid.UUID, event audit.Event) error
}

// Fetcher is the subset of *kgo.Client the consumer polls.
type Fetcher interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitRecords(ctx context.Context, rs ...*kgo.Record) error
}

type Consumer struct {
	fetcher Fetcher
	store   Materializer
	logger  *slog.Logger
}

type Option func(*Consumer)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(fetcher Fetcher, store Materializer, opts ...Option) *Consumer {
	c := &Consumer{
		fetcher: fetcher,
		store:   store,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Handle materializes one record. Malformed records are logged and skipped
// so they cannot block the partition.
func (c *Consumer) Handle(ctx context.Context, record *kgo.Record) error {
	eventID, event, err := auditkafka.Decode(record.Value)
	if err != nil {
		c.logger.ErrorContext(ctx, "dropping malformed audit record",
			"topic", record.Topic,
			"partition", record.Partition,
			"offset", record.Offset,
			"error", err,
		)
		return nil
	}
	if event.Category == audit.CategoryCompliance && event.DoctorID.IsNil() {
		c.logger.ErrorContext(ctx, "dropping compliance audit event without doctor",
			"event_id", eventID,
			"action", event.Action,
		)
		return nil
	}

	if err := c.store.AppendWithID(ctx, eventID, event); err != nil {
		return fmt.Errorf("store audit event %s: %w", eventID, err)
	}
	c.logger.DebugContext(ctx, "stored audit event",
		"event_id", eventID,
		"action", event.Action,
		"category", event.Category,
	)
	return nil
}

// Run polls until ctx ends or a record cannot be stored. Records are
// committed only after they are stored; an unstored record is redelivered on
// the next start.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		fetches := c.fetcher.PollFetches(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		if fetches.IsClientClosed() {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.WarnContext(ctx, "audit fetch failed",
				"topic", topic,
				"partition", partition,
				"error", err,
			)
		})

		var (
			stored    []*kgo.Record
			handleErr error
		)
		fetches.EachRecord(func(record *kgo.Record) {
			if handleErr != nil {
				return
			}
			if err := c.Handle(ctx, record); err != nil {
				handleErr = err
				return
			}
			stored = append(stored, record)
		})

		if len(stored) > 0 {
			if err := c.fetcher.CommitRecords(ctx, stored...); err != nil {
				c.logger.WarnContext(ctx, "audit offset commit failed", "error", err)
			}
		}
		if handleErr != nil {
			return handleErr
		}
	}
}
