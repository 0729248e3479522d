// Package kafka publishes and consumes JSON events over segmentio/kafka-go.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Symbol-Search-Index/pkg/resilience"
)

// Handler processes one message value. Returning an error leaves the
// message uncommitted.
type Handler func(ctx context.Context, key, value []byte) error

// Consumer reads one topic as a member of a consumer group.
type Consumer struct {
	reader  *kafka.Reader
	handler Handler
	backoff resilience.Backoff
	logger  *slog.Logger
}

// NewConsumer creates a Consumer that starts at the newest offset when the
// group has none committed.
func NewConsumer(cfg config.KafkaConfig, topic string, handler Handler) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       topic,
		GroupID:     cfg.ConsumerGroup,
		MinBytes:    1,
		MaxBytes:    1e6,
		MaxWait:     time.Second,
		StartOffset: kafka.LastOffset,
	})
	return &Consumer{
		reader:  r,
		handler: handler,
		backoff: resilience.Backoff{Initial: 200 * time.Millisecond, Max: 10 * time.Second},
		logger:  slog.Default().With("component", "kafka-consumer", "topic", topic),
	}
}

// Run fetches and dispatches messages until ctx is cancelled. Fetch errors
// back off exponentially.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started")
	defer c.reader.Close()

	failures := 0
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			failures++
			delay := c.backoff.Delay(failures)
			c.logger.Error("failed to fetch message", "error", err, "retry_in", delay)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		failures = 0

		if err := c.handler(ctx, msg.Key, msg.Value); err != nil {
			c.logger.Error("failed to process message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("failed to commit message",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// DecodeJSON unmarshals a message value into T.
func DecodeJSON[T any](value []byte) (T, error) {
	var result T
	if err := json.Unmarshal(value, &result); err != nil {
		return result, fmt.Errorf("decoding kafka message: %w", err)
	}
	return result, nil
}
