package usecase

import (
	"context"

	"TradePulse/internal/domain/models"
	drepo "TradePulse/internal/domain/repository"
	mid "TradePulse/internal/middleware"
)

// publisherProc adapts an EventPublisher to the pipeline downstream.
type publisherProc struct {
	pub drepo.EventPublisher
}

func (p publisherProc) Process(ctx context.Context, ev models.BarCloseEvent) error {
	return p.pub.PublishBarClose(ctx, ev)
}

// NewPublisherProc wraps pub for use as a pipeline downstream.
func NewPublisherProc(pub drepo.EventPublisher) mid.Proc {
	return publisherProc{pub: pub}
}

// BarCollector reads closed-bar events from the market stream and
// forwards them through the pipeline into the event queue.
type BarCollector struct {
	stream  drepo.MarketStream
	pub     drepo.EventPublisher
	metrics drepo.Metrics
	pipe    *mid.RealtimePipeline
}

// NewBarCollector creates a new BarCollector instance.
func NewBarCollector(stream drepo.MarketStream, pub drepo.EventPublisher, metrics drepo.Metrics, pipe *mid.RealtimePipeline) *BarCollector {
	return &BarCollector{stream: stream, pub: pub, metrics: metrics, pipe: pipe}
}

// IsConnected returns true if the market stream is connected.
func (c *BarCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *BarCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	evCh, errCh := c.stream.Read(ctx)
	go c.consume(ctx, evCh, errCh)
	return nil
}

func (c *BarCollector) consume(ctx context.Context, evCh <-chan models.BarCloseEvent, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-errCh:
			if err != nil {
				c.metrics.RecordError("stream")
			}
			// the read loop is dead once errCh fires; reconnect and
			// swap in fresh channels before listening again
			evCh, errCh = nil, nil
			for {
				if ctx.Err() != nil {
					return
				}
				if rerr := c.stream.Reconnect(ctx); rerr == nil {
					evCh, errCh = c.stream.Read(ctx)
					break
				}
				c.metrics.RecordError("stream_reconnect")
			}
		case ev, ok := <-evCh:
			if !ok {
				evCh = nil
				continue
			}
			if c.pipe != nil {
				_ = c.pipe.Process(ctx, ev)
			} else {
				_ = c.pub.PublishBarClose(ctx, ev)
			}
		}
	}
}

func (c *BarCollector) Stop() error { return c.stream.Close() }

// Shutdown stops pipeline and closes stream.
func (c *BarCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
