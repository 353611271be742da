package events

import (
	"context"
	"fmt"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// ProducerConfig configures the Kafka producer
type ProducerConfig struct {
	// Brokers is a list of Kafka broker addresses
	Brokers []string

	// Topic receives every change event
	Topic string

	// BatchSize is the number of messages to batch before sending
	BatchSize int

	// BatchTimeout is the maximum time to wait before sending a batch
	BatchTimeout time.Duration

	// RequiredAcks: 0 = no acks, 1 = leader only, -1 = all replicas
	RequiredAcks int

	// MaxAttempts is the maximum number of delivery attempts
	MaxAttempts int

	// WriteTimeout is the timeout for write operations
	WriteTimeout time.Duration

	// Compression: none, gzip, snappy, lz4, zstd
	Compression string

	// Async makes Publish return once the message is queued. Delivery
	// failures are then logged and counted by the producer.
	Async bool
}

// DefaultProducerConfig returns a ProducerConfig with sensible defaults
func DefaultProducerConfig() ProducerConfig {
	return ProducerConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "size-chart-events",
		BatchSize:    100,
		BatchTimeout: 100 * time.Millisecond,
		RequiredAcks: 1,
		MaxAttempts:  3,
		WriteTimeout: 10 * time.Second,
		Compression:  "snappy",
		Async:        true,
	}
}

func compressionCodec(name string) kafka.Compression {
	switch name {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return 0
	}
}

// messageWriter is the part of *kafka.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes change events to Kafka, keyed by shop so one shop's
// events stay ordered on one partition.
type Producer struct {
	writer messageWriter
	logger ectologger.Logger
	config ProducerConfig
}

// NewProducer creates a new Kafka producer
func NewProducer(config ProducerConfig, logger ectologger.Logger) (*Producer, error) {
	if len(config.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if config.Topic == "" {
		return nil, fmt.Errorf("an events topic is required")
	}

	p := &Producer{
		logger: logger,
		config: config,
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(config.Brokers...),
		Topic:                  config.Topic,
		Balancer:               &kafka.Hash{},
		BatchSize:              config.BatchSize,
		BatchTimeout:           config.BatchTimeout,
		MaxAttempts:            config.MaxAttempts,
		WriteTimeout:           config.WriteTimeout,
		Compression:            compressionCodec(config.Compression),
		RequiredAcks:           kafka.RequiredAcks(config.RequiredAcks),
		AllowAutoTopicCreation: true,
		Async:                  config.Async,
	}
	if config.Async {
		writer.Completion = p.delivered
	}
	p.writer = writer

	return p, nil
}

// delivered reports the outcome of an async batch.
func (p *Producer) delivered(messages []kafka.Message, err error) {
	for _, msg := range messages {
		eventType := headerValue(msg.Headers, "event_type")
		if err != nil {
			metrics.EventsPublishedTotal.WithLabelValues(eventType, "error").Inc()
			continue
		}
		metrics.EventsPublishedTotal.WithLabelValues(eventType, "ok").Inc()
	}
	if err != nil {
		p.logger.WithError(err).WithFields(map[string]any{
			"topic":    p.config.Topic,
			"messages": len(messages),
		}).Warn("Failed to deliver change events")
	}
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// Publish writes one event to the events topic
func (p *Producer) Publish(ctx context.Context, event Event) error {
	data, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize event: %w", err)
	}

	headers := []kafka.Header{
		{Key: "event_type", Value: []byte(event.Type)},
		{Key: "shop", Value: []byte(event.Shop)},
	}
	if traceParent := tracing.GetTraceParent(ctx); traceParent != "" {
		headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(traceParent)})
	}

	msg := kafka.Message{
		Key:     []byte(event.Shop),
		Value:   data,
		Headers: headers,
		Time:    event.OccurredAt,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.WithContext(ctx).WithFields(map[string]any{
		"event_id":   event.ID,
		"event_type": event.Type,
		"shop":       event.Shop,
	}).Debug("Sent change event")

	return nil
}

func (p *Producer) GetName() string {
	return "kafka-producer"
}

func (p *Producer) DependsOn() []string {
	return nil
}

func (p *Producer) Start(_ context.Context) error {
	p.logger.WithFields(map[string]any{
		"brokers": p.config.Brokers,
		"topic":   p.config.Topic,
	}).Info("Kafka producer ready")
	return nil
}

// Stop flushes pending messages and closes the writer
func (p *Producer) Stop(_ context.Context) error {
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close producer: %w", err)
	}
	p.logger.Info("Kafka producer closed")
	return nil
}
