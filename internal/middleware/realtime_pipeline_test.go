package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"TradePulse/internal/domain/models"
)

type captureProc struct {
	mu   sync.Mutex
	evs  []models.BarCloseEvent
	fail bool
}

func (p *captureProc) Process(_ context.Context, ev models.BarCloseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail {
		return errors.New("downstream unavailable")
	}
	p.evs = append(p.evs, ev)
	return nil
}

func (p *captureProc) setFail(v bool) {
	p.mu.Lock()
	p.fail = v
	p.mu.Unlock()
}

func (p *captureProc) events() []models.BarCloseEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.BarCloseEvent(nil), p.evs...)
}

type countMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newCountMetrics() *countMetrics { return &countMetrics{errors: make(map[string]int)} }

func (m *countMetrics) RecordDecision(string, models.Action) {}
func (m *countMetrics) RecordLastPrice(string, float64)      {}
func (m *countMetrics) RecordLatency(string, float64)        {}

func (m *countMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *countMetrics) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func ev(symbol, tf string, closeTime int64) models.BarCloseEvent {
	return models.BarCloseEvent{Symbol: symbol, Timeframe: tf, CloseTime: closeTime}
}

func TestPipelineValidates(t *testing.T) {
	proc := &captureProc{}
	m := newCountMetrics()
	p := NewRealtimePipeline(proc, m)

	bad := []models.BarCloseEvent{
		ev("", "1h", 1000),
		ev("BTCUSDT", "", 1000),
		ev("BTCUSDT", "1h", 0),
	}
	for _, e := range bad {
		if err := p.Process(context.Background(), e); err == nil {
			t.Fatalf("invalid event accepted: %+v", e)
		}
	}
	if got := len(proc.events()); got != 0 {
		t.Fatalf("invalid events forwarded: %d", got)
	}
	if m.count("pipeline_validate") != 3 {
		t.Fatalf("validate errors: %d", m.count("pipeline_validate"))
	}
}

func TestPipelineDropsStaleCloseTimes(t *testing.T) {
	proc := &captureProc{}
	p := NewRealtimePipeline(proc, newCountMetrics())
	ctx := context.Background()

	for _, e := range []models.BarCloseEvent{
		ev("BTCUSDT", "1h", 1000),
		ev("BTCUSDT", "1h", 1000), // reconnect replay
		ev("BTCUSDT", "1h", 900),  // out of order
		ev("BTCUSDT", "1h", 2000),
		ev("BTCUSDT", "4h", 1000), // independent watermark
		ev("ETHUSDT", "1h", 1000), // independent watermark
	} {
		if err := p.Process(ctx, e); err != nil {
			t.Fatalf("Process(%+v): %v", e, err)
		}
	}

	got := proc.events()
	if len(got) != 4 {
		t.Fatalf("expected 4 forwarded events, got %d: %+v", len(got), got)
	}
	if got[0].CloseTime != 1000 || got[1].CloseTime != 2000 {
		t.Fatalf("watermark order broken: %+v", got)
	}
}

func TestPipelineBuffersOnDownstreamFailure(t *testing.T) {
	proc := &captureProc{}
	m := newCountMetrics()
	p := NewRealtimePipeline(proc, m, WithBufferSize(8))
	ctx := context.Background()

	proc.setFail(true)
	if err := p.Process(ctx, ev("BTCUSDT", "1h", 1000)); err == nil {
		t.Fatalf("downstream failure should surface")
	}
	if m.count("pipeline_process") != 1 {
		t.Fatalf("process errors: %d", m.count("pipeline_process"))
	}

	// Recover and flush the buffered event in the background.
	proc.setFail(false)
	p.Start(ctx)
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if evs := proc.events(); len(evs) == 1 {
			if evs[0].CloseTime != 1000 {
				t.Fatalf("flushed wrong event: %+v", evs[0])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("buffered event never flushed")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPipelineBufferFullDrops(t *testing.T) {
	proc := &captureProc{fail: true}
	m := newCountMetrics()
	p := NewRealtimePipeline(proc, m, WithBufferSize(1))
	ctx := context.Background()

	// First failure occupies the single buffer slot, second overflows.
	_ = p.Process(ctx, ev("BTCUSDT", "1h", 1000))
	_ = p.Process(ctx, ev("BTCUSDT", "1h", 2000))

	if m.count("pipeline_buffer_full") != 1 {
		t.Fatalf("overflow not recorded: %d", m.count("pipeline_buffer_full"))
	}
}
