package repository

import (
	"context"
	"fmt"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	pkgkafka "TradePulse/pkg/kafka"
	applogger "TradePulse/pkg/logger"
)

// KafkaEventBus publishes bar-close events to a single topic, keyed by
// symbol. With a hash-by-key writer all events of one symbol land on
// one partition, which preserves their CloseTime order for the worker.
type KafkaEventBus struct {
	producer *pkgkafka.Producer
	topic    string
	l        *applogger.Logger
}

func NewKafkaEventBus(producer *pkgkafka.Producer, topic string) *KafkaEventBus {
	return &KafkaEventBus{producer: producer, topic: topic}
}

// SetLogger injects a structured logger.
func (b *KafkaEventBus) SetLogger(l *applogger.Logger) { b.l = l }

var _ domrepo.EventPublisher = (*KafkaEventBus)(nil)

func (b *KafkaEventBus) PublishBarClose(ctx context.Context, ev models.BarCloseEvent) error {
	if ev.Symbol == "" || ev.CloseTime <= 0 {
		return fmt.Errorf("publish bar close: invalid event %+v", ev)
	}
	if err := b.producer.Publish(ctx, b.topic, []byte(ev.Symbol), ev); err != nil {
		if b.l != nil {
			b.l.Error("kafka publish bar close failed",
				applogger.String("symbol", ev.Symbol),
				applogger.String("tf", ev.Timeframe),
				applogger.Int64("close_time", ev.CloseTime),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("publish bar close %s: %w", ev.DedupKey(), err)
	}
	return nil
}

// Close flushes and closes the underlying producer.
func (b *KafkaEventBus) Close() error { return b.producer.Close() }
