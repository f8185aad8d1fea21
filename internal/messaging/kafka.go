package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Config holds the Kafka connection settings.
type Config struct {
	Brokers        []string
	OrdersTopic    string
	ExecutionTopic string
	FailedTopic    string
	GroupID        string
	WriteTimeout   time.Duration
}

// Publisher sends envelopes to a topic. Satisfied by KafkaProducer; tests
// supply their own.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, event any) error
}

// KafkaProducer writes envelopes, one lazily created writer per topic.
type KafkaProducer struct {
	config Config
	logger *zap.Logger

	mu      sync.RWMutex
	writers map[string]*kafka.Writer
}

// NewKafkaProducer creates a producer.
func NewKafkaProducer(config Config, logger *zap.Logger) *KafkaProducer {
	return &KafkaProducer{
		config:  config,
		logger:  logger,
		writers: make(map[string]*kafka.Writer),
	}
}

func (p *KafkaProducer) getWriter(topic string) *kafka.Writer {
	p.mu.RLock()
	writer, ok := p.writers[topic]
	p.mu.RUnlock()
	if ok {
		return writer
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if writer, ok = p.writers[topic]; ok {
		return writer
	}

	writer = &kafka.Writer{
		Addr:         kafka.TCP(p.config.Brokers...),
		Topic:        topic,
		Balancer:     &kafka.CRC32Balancer{},
		WriteTimeout: p.config.WriteTimeout,
		RequiredAcks: kafka.RequireOne,
		Compression:  kafka.Snappy,
	}
	p.writers[topic] = writer
	return writer
}

// Publish marshals the event and writes it keyed by key.
func (p *KafkaProducer) Publish(ctx context.Context, topic, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", topic, err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}
	if err := p.getWriter(topic).WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing to %s: %w", topic, err)
	}
	p.logger.Debug("published event", zap.String("topic", topic), zap.String("key", key))
	return nil
}

// Close closes every writer.
func (p *KafkaProducer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lastErr error
	for topic, writer := range p.writers {
		if err := writer.Close(); err != nil {
			lastErr = err
			p.logger.Error("failed to close writer", zap.String("topic", topic), zap.Error(err))
		}
	}
	return lastErr
}

// EnvelopeHandler processes one decoded inbound envelope. A returned error
// leaves the offset uncommitted so the message is redelivered.
type EnvelopeHandler func(ctx context.Context, envelope *Envelope) error

// Consumer reads the orders topic and hands each envelope to the handler.
// Offsets are committed only after the handler succeeds.
type Consumer struct {
	reader  *kafka.Reader
	logger  *zap.Logger
	handler EnvelopeHandler
}

// NewConsumer creates a consumer on the orders topic.
func NewConsumer(config Config, logger *zap.Logger, handler EnvelopeHandler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: config.Brokers,
		Topic:   config.OrdersTopic,
		GroupID: config.GroupID,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error(fmt.Sprintf(msg, args...))
		}),
	})
	return &Consumer{reader: reader, logger: logger, handler: handler}
}

// Run consumes until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("fetching message: %w", err)
		}

		c.logger.Info("received message",
			zap.String("key", string(msg.Key)),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)

		var envelope Envelope
		if err := json.Unmarshal(msg.Value, &envelope); err != nil {
			// A malformed message can never succeed; commit and move on.
			c.logger.Error("failed to decode envelope", zap.Error(err), zap.Int64("offset", msg.Offset))
			if err := c.reader.CommitMessages(ctx, msg); err != nil {
				return fmt.Errorf("committing poison message: %w", err)
			}
			continue
		}

		if err := c.handler(ctx, &envelope); err != nil {
			c.logger.Error("handler failed, leaving offset uncommitted",
				zap.Error(err),
				zap.Int64("offset", msg.Offset),
			)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return fmt.Errorf("committing offset: %w", err)
		}
	}
}

// Close closes the underlying reader.
func (c *Consumer) Close() error { return c.reader.Close() }
