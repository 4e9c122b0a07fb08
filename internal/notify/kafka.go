package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/DeafMist/fire-radar/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher emits an AlertEvent per new record, keyed by record id.
type KafkaPublisher struct {
	writer messageWriter
	log    *slog.Logger
	now    func() time.Time
}

// NewKafkaPublisher builds an async publisher. Delivery errors are reported through the
// writer completion callback and logged.
func NewKafkaPublisher(brokers []string, topic string, log *slog.Logger) *KafkaPublisher {
	log = log.With("component", "kafka_publisher", "topic", topic)
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		BatchTimeout: 50 * time.Millisecond,
		Async:        true,
		Completion: func(msgs []kafka.Message, err error) {
			if err != nil {
				log.Error("publish alerts", slog.Int("messages", len(msgs)), slog.Any("err", err))
			}
		},
	}
	return newKafkaPublisher(w, log, time.Now)
}

func newKafkaPublisher(w messageWriter, log *slog.Logger, now func() time.Time) *KafkaPublisher {
	return &KafkaPublisher{writer: w, log: log, now: now}
}

func (p *KafkaPublisher) Notify(ctx context.Context, rec models.NewsRecord) {
	payload, err := json.Marshal(models.AlertEvent{
		Event:     models.EventNewAlert,
		Record:    rec,
		EmittedAt: p.now().UTC(),
	})
	if err != nil {
		p.log.Error("marshal alert event", slog.String("id", rec.ID), slog.Any("err", err))
		return
	}

	msg := kafka.Message{Key: []byte(rec.ID), Value: payload}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.log.Warn("enqueue alert event", slog.String("id", rec.ID), slog.Any("err", err))
	}
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
