package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/telekom/fleet-coordinator/pkg/metrics"
)

// KafkaSinkConfig configures a Kafka audit sink.
type KafkaSinkConfig struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string

	// Topic is the Kafka topic to write events to.
	Topic string

	// BatchSize is the max number of messages per batch (default 100).
	BatchSize int

	// BatchTimeout is the max time to wait before flushing a partial
	// batch (default 1s).
	BatchTimeout time.Duration

	// WriteTimeout bounds a single produce call (default 10s).
	WriteTimeout time.Duration
}

// KafkaSink publishes audit events to a Kafka topic. Events are keyed by
// node id so one node's trail stays ordered within a partition.
type KafkaSink struct {
	writer *kafka.Writer
	logger *zap.Logger
	mu     sync.Mutex
	closed bool
}

// NewKafkaSink creates a new KafkaSink.
func NewKafkaSink(cfg KafkaSinkConfig, logger *zap.Logger) (*KafkaSink, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("Kafka topic is required")
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = time.Second
	}
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 10 * time.Second
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.LeastBytes{},
		BatchSize:              batchSize,
		BatchTimeout:           batchTimeout,
		WriteTimeout:           writeTimeout,
		RequiredAcks:           kafka.RequireAll,
		Compression:            kafka.Snappy,
		AllowAutoTopicCreation: false,
	}

	logger.Info("Kafka audit sink created",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic))

	return &KafkaSink{
		writer: writer,
		logger: logger.Named("kafka-audit"),
	}, nil
}

// Write publishes one event.
func (s *KafkaSink) Write(ctx context.Context, event *Event) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return fmt.Errorf("kafka sink is closed")
	}
	s.mu.Unlock()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling audit event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.Node),
		Value: payload,
		Time:  event.Timestamp,
	}
	if err := s.writer.WriteMessages(ctx, msg); err != nil {
		metrics.AuditEventsEmitted.WithLabelValues("kafka", "error").Inc()
		return fmt.Errorf("writing audit event to kafka: %w", err)
	}
	metrics.AuditEventsEmitted.WithLabelValues("kafka", "success").Inc()
	return nil
}

// Close flushes and closes the underlying writer.
func (s *KafkaSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.writer.Close()
}

// Name returns the sink identifier.
func (s *KafkaSink) Name() string {
	return "kafka"
}
