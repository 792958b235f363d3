package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	applogger "TradePulse/pkg/logger"

	"github.com/gorilla/websocket"
)

// KlineStream implements a MarketStream over the futures combined
// kline WebSocket. Only closed bars are emitted; in-progress updates
// are dropped.
type KlineStream struct {
	websocketURL   string
	symbols        []string
	timeframes     []domrepo.Timeframe
	reconnectDelay time.Duration
	pingInterval   time.Duration
	l              *applogger.Logger

	conn      *websocket.Conn
	connected bool
}

// NewKlineStream creates a MarketStream over websocketURL (the
// combined-stream base, e.g. wss://fstream.binance.com/stream).
func NewKlineStream(websocketURL string, symbols []string, tfs []domrepo.Timeframe, reconnectDelay, pingInterval time.Duration, l *applogger.Logger) domrepo.MarketStream {
	return &KlineStream{
		websocketURL:   websocketURL,
		symbols:        symbols,
		timeframes:     tfs,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		l:              l,
	}
}

func (c *KlineStream) streamNames() []string {
	names := make([]string, 0, len(c.symbols)*len(c.timeframes))
	for _, s := range c.symbols {
		for _, tf := range c.timeframes {
			names = append(names, strings.ToLower(s)+"@kline_"+string(tf))
		}
	}
	return names
}

// Connect dials the combined stream with all subscriptions in the URL.
func (c *KlineStream) Connect(ctx context.Context) error {
	u := fmt.Sprintf("%s?streams=%s", strings.TrimRight(c.websocketURL, "/"), strings.Join(c.streamNames(), "/"))
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return fmt.Errorf("binance ws connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	if c.l != nil {
		c.l.Info("binance ws connected", applogger.Int("streams", len(c.streamNames())))
	}
	return nil
}

// Subscribe issues a SUBSCRIBE frame. Connect already carries the
// streams in the URL, so this is a re-assertion after reconnects.
func (c *KlineStream) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("binance ws not connected")
	}
	msg := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": c.streamNames(),
		"id":     1,
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("binance ws subscribe: %w", err)
	}
	return nil
}

type wsKline struct {
	OpenTime  int64  `json:"t"`
	CloseTime int64  `json:"T"`
	Symbol    string `json:"s"`
	Interval  string `json:"i"`
	Closed    bool   `json:"x"`
}

type wsKlineEvent struct {
	EventType string  `json:"e"`
	Symbol    string  `json:"s"`
	Kline     wsKline `json:"k"`
}

type wsCombinedFrame struct {
	Stream string       `json:"stream"`
	Data   wsKlineEvent `json:"data"`
}

// Read streams closed-bar events and errors. The error channel
// receiving means the connection is dead and Reconnect is needed.
func (c *KlineStream) Read(ctx context.Context) (<-chan models.BarCloseEvent, <-chan error) {
	events := make(chan models.BarCloseEvent, 256)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PongMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(events)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				if c.conn == nil {
					errs <- fmt.Errorf("binance ws conn nil")
					return
				}
				_, b, err := c.conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("binance ws read: %w", err)
					return
				}
				var frame wsCombinedFrame
				if err := json.Unmarshal(b, &frame); err != nil {
					// subscription acks and other control frames
					continue
				}
				if frame.Data.EventType != "kline" || !frame.Data.Kline.Closed {
					continue
				}
				k := frame.Data.Kline
				ev := models.BarCloseEvent{
					Symbol:    k.Symbol,
					Timeframe: k.Interval,
					CloseTime: k.CloseTime,
					Source:    "ws",
				}
				select {
				case events <- ev:
				default:
					if c.l != nil {
						c.l.Warn("binance ws event dropped on backpressure",
							applogger.String("symbol", k.Symbol),
							applogger.String("tf", k.Interval),
						)
					}
				}
			}
		}
	}()

	return events, errs
}

// Reconnect closes and reconnects.
func (c *KlineStream) Reconnect(ctx context.Context) error {
	_ = c.Close()
	time.Sleep(c.reconnectDelay)
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the WS connection.
func (c *KlineStream) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *KlineStream) IsConnected() bool { return c.connected }
