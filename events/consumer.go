package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MichaelAJay/go-logger"
	"github.com/MichaelAJay/go-metrics"
	"github.com/MichaelAJay/go-serializer"
	"github.com/segmentio/kafka-go"

	"github.com/MichaelAJay/go-login-security/audit"
)

// DefaultGroupID is the consumer group of the risk analyzer.
const DefaultGroupID = "login-risk-analyzer"

// readErrorBackoff spaces out retries after a broker read failure.
const readErrorBackoff = time.Second

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads LoginAttemptRecorded events and passes them to a handler.
// Messages are committed after handling, including messages that fail to
// decode or that the handler rejects, so one bad event cannot stall the
// partition.
type Consumer struct {
	reader     messageReader
	handler    audit.Handler
	serializer serializer.Serializer
	logger     logger.Logger
	metrics    metrics.Registry
	enabled    bool
}

// NewConsumer creates a consumer group reader. If brokers is empty or
// enabled is false, Run returns as soon as ctx is done.
func NewConsumer(
	brokers []string,
	topic, groupID string,
	enabled bool,
	handler audit.Handler,
	log logger.Logger,
	metrics metrics.Registry,
) *Consumer {
	c := &Consumer{
		handler:    handler,
		serializer: newSerializer(),
		logger:     log,
		metrics:    metrics,
	}

	if !enabled || len(brokers) == 0 {
		c.logger.Info("Kafka consumer disabled")
		return c
	}

	if groupID == "" {
		groupID = DefaultGroupID
	}
	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topicOrDefault(topic),
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: 0,
	})
	c.enabled = true
	c.logger.Info("Kafka consumer initialized",
		logger.Field{Key: "brokers", Value: strings.Join(brokers, ",")},
		logger.Field{Key: "group_id", Value: groupID})
	return c
}

// Run consumes until ctx is cancelled. It returns nil on cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	if !c.enabled {
		<-ctx.Done()
		return nil
	}

	for {
		message, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Error("Error reading message from Kafka",
				logger.Field{Key: "error", Value: err.Error()})
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(readErrorBackoff):
			}
			continue
		}

		c.process(ctx, message)

		if err := c.reader.CommitMessages(ctx, message); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Warn("Failed to commit Kafka message",
				logger.Field{Key: "offset", Value: message.Offset},
				logger.Field{Key: "error", Value: err.Error()})
		}
	}
}

func (c *Consumer) process(ctx context.Context, message kafka.Message) {
	event, err := c.decode(message.Value)
	if err != nil {
		c.metrics.Counter(metrics.Options{Name: "login_events.decode_failed"}).Inc()
		c.logger.Warn("Dropping undecodable login attempt event",
			logger.Field{Key: "partition", Value: message.Partition},
			logger.Field{Key: "offset", Value: message.Offset},
			logger.Field{Key: "error", Value: err.Error()})
		return
	}

	if err := c.handler.HandleLoginAttemptRecorded(ctx, event); err != nil {
		c.metrics.Counter(metrics.Options{Name: "login_events.handler_failed"}).Inc()
		c.logger.Warn("Login attempt event handler failed",
			logger.Field{Key: "event_id", Value: event.EventID},
			logger.Field{Key: "user_id", Value: event.Attempt.UserID},
			logger.Field{Key: "error", Value: err.Error()})
		return
	}

	c.metrics.Counter(metrics.Options{Name: "login_events.consumed"}).Inc()
}

func (c *Consumer) decode(payload []byte) (audit.LoginAttemptRecorded, error) {
	var event audit.LoginAttemptRecorded
	if err := c.serializer.Deserialize(payload, &event); err != nil {
		return event, fmt.Errorf("failed to decode login attempt event: %w", err)
	}
	if event.Attempt.UserID == "" {
		return event, fmt.Errorf("login attempt event %q has no user id", event.EventID)
	}
	return event, nil
}

// Close shuts down the Kafka reader.
func (c *Consumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
