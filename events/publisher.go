// Package events carries LoginAttemptRecorded events over Kafka so that
// risk analysis can run outside the login request.
package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MichaelAJay/go-logger"
	"github.com/MichaelAJay/go-metrics"
	"github.com/MichaelAJay/go-serializer"
	"github.com/segmentio/kafka-go"

	"github.com/MichaelAJay/go-login-security/audit"
)

// DefaultTopic receives every recorded login attempt.
const DefaultTopic = "login-attempts"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends recorded attempts to Kafka. It is an audit.Handler.
// A disabled publisher accepts events and drops them.
type Publisher struct {
	writer     messageWriter
	topic      string
	serializer serializer.Serializer
	logger     logger.Logger
	metrics    metrics.Registry
	enabled    bool
}

// NewPublisher creates a publisher for brokers. If brokers is empty or
// enabled is false, publishing is a no-op.
func NewPublisher(brokers []string, topic string, enabled bool, log logger.Logger, metrics metrics.Registry) *Publisher {
	p := &Publisher{
		topic:      topicOrDefault(topic),
		serializer: newSerializer(),
		logger:     log,
		metrics:    metrics,
	}

	if !enabled || len(brokers) == 0 {
		p.logger.Info("Kafka publisher disabled")
		return p
	}

	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	p.enabled = true
	p.logger.Info("Kafka publisher initialized",
		logger.Field{Key: "brokers", Value: strings.Join(brokers, ",")},
		logger.Field{Key: "topic", Value: p.topic})
	return p
}

// Enabled reports whether events are actually sent.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

// HandleLoginAttemptRecorded publishes event keyed by user ID, so one user's
// attempts stay ordered within a partition.
func (p *Publisher) HandleLoginAttemptRecorded(ctx context.Context, event audit.LoginAttemptRecorded) error {
	if !p.enabled {
		return nil
	}

	payload, err := p.serializer.Serialize(&event)
	if err != nil {
		return fmt.Errorf("failed to serialize login attempt event: %w", err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Topic: p.topic,
		Key:   []byte(event.Attempt.UserID),
		Value: payload,
		Time:  event.RecordedAt,
	})
	if err != nil {
		p.metrics.Counter(metrics.Options{Name: "login_events.publish_failed"}).Inc()
		p.logger.Error("Failed to publish login attempt event",
			logger.Field{Key: "event_id", Value: event.EventID},
			logger.Field{Key: "error", Value: err.Error()})
		return fmt.Errorf("failed to publish login attempt event: %w", err)
	}

	p.metrics.Counter(metrics.Options{Name: "login_events.published"}).Inc()
	return nil
}

// Close shuts down the Kafka writer.
func (p *Publisher) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

func topicOrDefault(topic string) string {
	if topic == "" {
		return DefaultTopic
	}
	return topic
}

func newSerializer() serializer.Serializer {
	s, err := serializer.DefaultRegistry.New(serializer.JSON)
	if err != nil {
		return serializer.NewJSONSerializer()
	}
	return s
}
