package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	pkgkafka "TradePulse/pkg/kafka"
)

// BarCloseHandler consumes bar-close events from the queue and feeds
// them to the decision worker. The consumer serializes messages per
// partition, and events are keyed by symbol, so per-symbol order holds.
type BarCloseHandler struct {
	topic   string
	worker  *DecisionWorker
	metrics domrepo.Metrics
}

func NewBarCloseHandler(topic string, worker *DecisionWorker, metrics domrepo.Metrics) *BarCloseHandler {
	return &BarCloseHandler{topic: topic, worker: worker, metrics: metrics}
}

func (h *BarCloseHandler) Topic() string { return h.topic }

func (h *BarCloseHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.BarCloseEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return err
	}
	// E2E latency from bar close to decision start (approx)
	h.metrics.RecordLatency("decision_e2e_seconds", time.Since(time.UnixMilli(ev.CloseTime)).Seconds())

	err := h.worker.ProcessEvent(ctx, ev)
	if err != nil {
		// a short history is not retryable; more messages won't grow it
		if errors.Is(err, domrepo.ErrInsufficientData) {
			return nil
		}
		h.metrics.RecordError("consumer_process")
		return err
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*BarCloseHandler)(nil)
