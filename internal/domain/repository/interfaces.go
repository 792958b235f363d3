package repository

import (
	"context"
	"errors"

	"TradePulse/internal/domain/models"
)

// ErrNotFound is returned when a keyed record does not exist.
var ErrNotFound = errors.New("not found")

// ErrInsufficientData is returned when fewer bars exist than a
// computation's warm-up requires.
var ErrInsufficientData = errors.New("insufficient historical data")

// CandleSource returns closed bars oldest-first, strictly time-ordered.
type CandleSource interface {
	FetchBars(ctx context.Context, symbol string, tf Timeframe, limit int) ([]models.Bar, error)
}

// KlineStore persists historical bars (the "db" candle source).
type KlineStore interface {
	CandleSource
	StoreBars(ctx context.Context, symbol string, tf Timeframe, bars []models.Bar) error
}

// StateStore holds all mutable per-symbol decision state. Every method
// is a single read or write; the decision worker serializes cycles per
// symbol so read-modify-write is safe.
type StateStore interface {
	Position(ctx context.Context, symbol string) (models.PositionState, error)
	SavePosition(ctx context.Context, symbol string, pos models.PositionState) error
	ClearPosition(ctx context.Context, symbol string) error

	FilterMemory(ctx context.Context, symbol string) (models.FilterMemory, error)
	SaveFilterMemory(ctx context.Context, symbol string, mem models.FilterMemory) error

	RegimeState(ctx context.Context, symbol string, tf Timeframe) (models.RegimeState, error)
	SaveRegimeState(ctx context.Context, symbol string, tf Timeframe, st models.RegimeState) error

	LastExitCloseTime(ctx context.Context, symbol string) (int64, error)
	SetLastExitCloseTime(ctx context.Context, symbol string, closeTime int64) error

	// Setting returns ErrNotFound when the key is unset.
	Setting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// ActiveParamOverlay returns the JSON overlay of the active parameter
	// set, or ErrNotFound when only defaults apply.
	ActiveParamOverlay(ctx context.Context) ([]byte, error)
	SetActiveParamOverlay(ctx context.Context, name string, overlay []byte) error

	// MarkEventSeen returns false when the dedup key was already marked.
	MarkEventSeen(ctx context.Context, dedupKey string) (bool, error)
}

// SignalLog is the append-only decision audit trail.
type SignalLog interface {
	AppendSignal(ctx context.Context, rec models.SignalRecord) error
	AppendTrade(ctx context.Context, symbol string, tf Timeframe, rec models.TradeRecord) error
	RecentSignals(ctx context.Context, symbol string, tf Timeframe, limit int) ([]models.SignalRecord, error)
}

// MarketStream is a live feed of bar-close events.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.BarCloseEvent, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// EventPublisher enqueues bar-close events, keyed by symbol so that
// per-symbol ordering is preserved.
type EventPublisher interface {
	PublishBarClose(ctx context.Context, ev models.BarCloseEvent) error
}

// Exchange is the venue API consumed by the live worker.
type Exchange interface {
	CandleSource
	LatestClosedBar(ctx context.Context, symbol string, tf Timeframe) (*models.Bar, error)
	SymbolFilters(ctx context.Context, symbol string) (models.SymbolFilters, error)
	MarkPrice(ctx context.Context, symbol string) (float64, error)
	EquityUSDT(ctx context.Context) (float64, error)
	// OpenPosition returns the signed position amount and entry price.
	OpenPosition(ctx context.Context, symbol string) (amt float64, entryPrice float64, err error)
	SetLeverage(ctx context.Context, symbol string, leverage int) error
	SetMarginType(ctx context.Context, symbol string, marginType string) error
	CreateOrder(ctx context.Context, req models.OrderRequest) (models.OrderResult, error)
}

// Notifier delivers out-of-band alerts about signals and orders.
type Notifier interface {
	NotifySignal(symbol string, tf Timeframe, action models.Action, closeTime int64)
	NotifyOrder(symbol string, side models.Side, orderType string, qty, price float64, orderID int64)
	NotifyAlert(text string)
}

// Metrics records engine observability counters.
type Metrics interface {
	RecordDecision(symbol string, action models.Action)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
