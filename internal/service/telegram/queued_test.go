package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
)

type fakeQueue struct {
	published []Payload
	fail      bool
}

func (q *fakeQueue) PublishMessage(_ context.Context, msgType string, payload interface{}) error {
	if q.fail {
		return errors.New("queue down")
	}
	if msgType != MessageType {
		return errors.New("unexpected message type " + msgType)
	}
	p, ok := payload.(Payload)
	if !ok {
		return errors.New("unexpected payload kind")
	}
	q.published = append(q.published, p)
	return nil
}

func TestQueuedNotifierEnqueues(t *testing.T) {
	q := &fakeQueue{}
	n := NewQueued(q, New("", "", nil), nil)

	n.NotifySignal("BTCUSDT", domrepo.TF4h, models.ActionLongEntry, 1700000000000)
	n.NotifyOrder("BTCUSDT", models.SideLong, "MARKET", 1.5, 500, 42)
	n.NotifyAlert("stop order failed")

	if len(q.published) != 3 {
		t.Fatalf("expected 3 queued messages, got %d", len(q.published))
	}
	if !strings.Contains(q.published[0].Text, "LONG_ENTRY") || !strings.Contains(q.published[0].Text, "BTCUSDT") {
		t.Fatalf("signal text: %q", q.published[0].Text)
	}
	if !strings.Contains(q.published[1].Text, "MARKET") {
		t.Fatalf("order text: %q", q.published[1].Text)
	}
	if !strings.Contains(q.published[2].Text, "stop order failed") {
		t.Fatalf("alert text: %q", q.published[2].Text)
	}
}

func TestQueuedNotifierFallsBackOnEnqueueFailure(t *testing.T) {
	// Direct notifier is unconfigured, so the fallback Deliver is a
	// no-op; the point is that a dead queue must not panic or block.
	n := NewQueued(&fakeQueue{fail: true}, New("", "", nil), nil)
	n.NotifyAlert("queue is down")
}

func TestSendJobHandle(t *testing.T) {
	job := NewSendJob(New("", "", nil))
	if job.Name() != "telegram_send" || job.Type() != MessageType {
		t.Fatalf("job identity: %s %s", job.Name(), job.Type())
	}

	// Payload arrives from Redis as a decoded JSON map.
	if err := job.Handle(context.Background(), map[string]interface{}{"text": "hi"}); err != nil {
		t.Fatalf("Handle map payload: %v", err)
	}
	if err := job.Handle(context.Background(), Payload{Text: "hi"}); err != nil {
		t.Fatalf("Handle struct payload: %v", err)
	}
	if err := job.Handle(context.Background(), 42); err == nil {
		t.Fatalf("invalid payload accepted")
	}
}

func TestQueuedNotifierClose(t *testing.T) {
	n := NewQueued(&fakeQueue{}, New("", "", nil), nil)
	if err := n.Close(); err != nil {
		t.Fatalf("Close without hook: %v", err)
	}
	called := false
	n.SetCloseFunc(func(context.Context) error { called = true; return nil })
	if err := n.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !called {
		t.Fatalf("close hook not invoked")
	}
}
