package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
)

// Proc is the downstream the pipeline forwards events to.
type Proc interface {
	Process(ctx context.Context, ev models.BarCloseEvent) error
}

// RealtimePipeline sits between the WebSocket stream and the event
// queue. It validates, drops repeated close times, and buffers events
// when the queue is unavailable so a broker blip does not lose bars.
type RealtimePipeline struct {
	proc    Proc
	metrics domrepo.Metrics
	bufSize int
	bufCh   chan models.BarCloseEvent
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex
	// last forwarded close time per symbol_tf
	lastClose map[string]int64

	bufDepthGauge func(int)
}

type PipelineOption func(*RealtimePipeline)

// WithBufferSize sets the temporary buffer size when downstream is unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewRealtimePipeline creates a new pipeline.
func NewRealtimePipeline(proc Proc, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		proc:      proc,
		metrics:   metrics,
		bufSize:   1000,
		bufCh:     make(chan models.BarCloseEvent, 1000),
		stopCh:    make(chan struct{}),
		lastClose: make(map[string]int64),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufSize != cap(p.bufCh) {
		p.bufCh = make(chan models.BarCloseEvent, p.bufSize)
	}
	p.bufDepthGauge = func(n int) { p.metrics.RecordLatency("pipeline_buffer_depth", float64(n)) }
	return p
}

// Start launches background flushing of buffered events.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case ev := <-p.bufCh:
				if err := p.proc.Process(ctx, ev); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.metrics.RecordError("pipeline_flush")
					time.Sleep(backoff)
					// requeue if space; drop otherwise
					select {
					case p.bufCh <- ev:
					default:
						p.metrics.RecordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *RealtimePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates and forwards an event downstream, buffering on
// errors. Re-delivered close times (stream reconnects replay the last
// bar) are dropped here before they reach the queue.
func (p *RealtimePipeline) Process(ctx context.Context, ev models.BarCloseEvent) error {
	start := time.Now()
	if err := validateEvent(ev); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.accept(ev) {
		p.metrics.RecordError("pipeline_stale_event")
		return nil
	}

	if err := p.proc.Process(ctx, ev); err != nil {
		p.metrics.RecordError("pipeline_process")
		// buffer non-blocking
		select {
		case p.bufCh <- ev:
			if p.bufDepthGauge != nil {
				p.bufDepthGauge(len(p.bufCh))
			}
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

func validateEvent(ev models.BarCloseEvent) error {
	if ev.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if ev.Timeframe == "" {
		return fmt.Errorf("timeframe empty")
	}
	if ev.CloseTime <= 0 {
		return fmt.Errorf("close time invalid")
	}
	return nil
}

// accept drops events whose close time does not advance the
// per-symbol/timeframe watermark.
func (p *RealtimePipeline) accept(ev models.BarCloseEvent) bool {
	key := ev.Symbol + "_" + ev.Timeframe
	p.mu.Lock()
	defer p.mu.Unlock()
	if last, ok := p.lastClose[key]; ok && ev.CloseTime <= last {
		return false
	}
	p.lastClose[key] = ev.CloseTime
	return true
}
