package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"

	"github.com/hackgods/clinic-scheduling/internal/logging"
)

var ErrPublisherClosed = errors.New("publisher is closed")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a single topic keyed by provider id, so
// every provider's events stay ordered within one partition.
type KafkaPublisher struct {
	writer messageWriter
	source string

	mu     sync.RWMutex
	closed bool
}

func NewKafkaPublisher(brokers []string, topic, source string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  compress.Snappy,
		MaxAttempts:  3,
		BatchTimeout: 10 * time.Millisecond,
		Logger:       kafka.LoggerFunc(func(string, ...any) {}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...any) {
			log.Error().Msgf(msg, args...)
		}),
	}

	return newKafkaPublisher(writer, source), nil
}

func newKafkaPublisher(w messageWriter, source string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, source: source}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	msg, err := p.message(ctx, ev)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

func (p *KafkaPublisher) message(ctx context.Context, ev Event) (kafka.Message, error) {
	value, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}

	headers := []kafka.Header{
		{Key: HeaderEventID, Value: []byte(ev.ID.String())},
		{Key: HeaderEventType, Value: []byte(ev.Type)},
		{Key: HeaderSource, Value: []byte(p.source)},
	}
	if rid := logging.RequestID(ctx); rid != "" {
		headers = append(headers, kafka.Header{Key: HeaderRequestID, Value: []byte(rid)})
	}

	return kafka.Message{
		Key:     []byte(ev.ProviderID.String()),
		Value:   value,
		Headers: headers,
		Time:    ev.OccurredAt,
	}, nil
}

func (p *KafkaPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}
