package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/engine/arbiter"
	"TradePulse/internal/repository/memstore"
	applogger "TradePulse/pkg/logger"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

// fakeExchange is a scripted venue: fixed equity and mark price,
// orders recorded in arrival order and confirmed at the mark.
type fakeExchange struct {
	mu       sync.Mutex
	equity   float64
	mark     float64
	posAmt   float64
	posEntry float64
	orders   []models.OrderRequest
	nextID   int64
}

var _ domrepo.Exchange = (*fakeExchange)(nil)

func (f *fakeExchange) FetchBars(context.Context, string, domrepo.Timeframe, int) ([]models.Bar, error) {
	return nil, domrepo.ErrNotFound
}

func (f *fakeExchange) LatestClosedBar(context.Context, string, domrepo.Timeframe) (*models.Bar, error) {
	return nil, domrepo.ErrNotFound
}

func (f *fakeExchange) SymbolFilters(context.Context, string) (models.SymbolFilters, error) {
	return models.SymbolFilters{StepSize: 0.001, TickSize: 0.01, MinNotional: 5}, nil
}

func (f *fakeExchange) MarkPrice(context.Context, string) (float64, error)  { return f.mark, nil }
func (f *fakeExchange) EquityUSDT(context.Context) (float64, error)         { return f.equity, nil }
func (f *fakeExchange) SetLeverage(context.Context, string, int) error      { return nil }
func (f *fakeExchange) SetMarginType(context.Context, string, string) error { return nil }

func (f *fakeExchange) OpenPosition(context.Context, string) (float64, float64, error) {
	return f.posAmt, f.posEntry, nil
}

func (f *fakeExchange) CreateOrder(_ context.Context, req models.OrderRequest) (models.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders = append(f.orders, req)
	f.nextID++
	return models.OrderResult{
		OrderID:     f.nextID,
		Status:      "FILLED",
		AvgPrice:    f.mark,
		ExecutedQty: req.Quantity,
	}, nil
}

func (f *fakeExchange) orderLog() []models.OrderRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.OrderRequest(nil), f.orders...)
}

type fakeNotifier struct {
	mu      sync.Mutex
	signals int
	orders  int
	alerts  []string
}

var _ domrepo.Notifier = (*fakeNotifier)(nil)

func (n *fakeNotifier) NotifySignal(string, domrepo.Timeframe, models.Action, int64) {
	n.mu.Lock()
	n.signals++
	n.mu.Unlock()
}

func (n *fakeNotifier) NotifyOrder(string, models.Side, string, float64, float64, int64) {
	n.mu.Lock()
	n.orders++
	n.mu.Unlock()
}

func (n *fakeNotifier) NotifyAlert(text string) {
	n.mu.Lock()
	n.alerts = append(n.alerts, text)
	n.mu.Unlock()
}

type fakeMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

var _ domrepo.Metrics = (*fakeMetrics)(nil)

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{errors: make(map[string]int)} }

func (m *fakeMetrics) RecordDecision(string, models.Action) {}
func (m *fakeMetrics) RecordLastPrice(string, float64)      {}
func (m *fakeMetrics) RecordLatency(string, float64)        {}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

// trendBars is a steady +2/bar uptrend. With short lookbacks the last
// bar is a fresh breakout above the prior entry channel.
func trendBars(n int) []models.Bar {
	bars := make([]models.Bar, n)
	close := 100.0
	for i := range bars {
		if i > 0 {
			close += 2
		}
		bars[i] = models.Bar{
			OpenTime: int64(i) * 3600_000,
			Open:     close - 2,
			High:     close + 1,
			Low:      close - 1,
			Close:    close,
			Volume:   1,
		}
	}
	return bars
}

// shortLookbackOverlay shrinks the indicator windows so a 200-candle
// fetch warms everything up. ADX saturates in a monotone trend, so the
// rising check is disabled like any sub-daily deployment would.
const shortLookbackOverlay = `{"ema_len":10,"entry_len":5,"exit_len":3,"dmi_len":3,"atr_len":3,"use_adx_rising":false}`

type workerFixture struct {
	worker *DecisionWorker
	store  *memstore.StateStore
	klines *memstore.KlineStore
	siglog *memstore.SignalLog
	ex     *fakeExchange
	notify *fakeNotifier
	admin  *AdminState
}

func newWorkerFixture(t *testing.T, bars []models.Bar) *workerFixture {
	t.Helper()
	ctx := context.Background()

	store := memstore.NewStateStore()
	klines := memstore.NewKlineStore()
	siglog := memstore.NewSignalLog()
	if len(bars) > 0 {
		if err := klines.StoreBars(ctx, "BTCUSDT", domrepo.TF1h, bars); err != nil {
			t.Fatalf("store bars: %v", err)
		}
	}
	if err := store.SetActiveParamOverlay(ctx, "test", []byte(shortLookbackOverlay)); err != nil {
		t.Fatalf("set overlay: %v", err)
	}

	mark := 100.0
	if len(bars) > 0 {
		mark = bars[len(bars)-1].Close
	}
	ex := &fakeExchange{equity: 1000, mark: mark}
	notify := &fakeNotifier{}
	metrics := newFakeMetrics()
	l := testLogger(t)
	admin := NewAdminState(store, true)
	exec := NewExecution(ex, store, siglog, notify, metrics, admin, l)

	w := NewDecisionWorker(klines, store, siglog, exec, admin, notify, metrics, l)
	w.SetArbiter(arbiter.NewController(store, arbiter.NewThresholds(), nil))
	return &workerFixture{worker: w, store: store, klines: klines, siglog: siglog, ex: ex, notify: notify, admin: admin}
}

func barCloseEvent(bars []models.Bar) models.BarCloseEvent {
	last := bars[len(bars)-1]
	return models.BarCloseEvent{
		Symbol:    "BTCUSDT",
		Timeframe: "1h",
		CloseTime: last.OpenTime + 3600_000,
		Source:    "ws",
	}
}

func TestProcessEventEntryFlow(t *testing.T) {
	ctx := context.Background()
	bars := trendBars(220)
	fx := newWorkerFixture(t, bars)
	ev := barCloseEvent(bars)

	if err := fx.worker.ProcessEvent(ctx, ev); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}

	orders := fx.ex.orderLog()
	if len(orders) != 2 {
		t.Fatalf("expected market entry plus stop, got %d orders: %+v", len(orders), orders)
	}
	entry, stop := orders[0], orders[1]
	if entry.Type != "MARKET" || entry.Side != "BUY" || entry.ReduceOnly {
		t.Fatalf("unexpected entry order %+v", entry)
	}
	if stop.Type != "STOP_MARKET" || stop.Side != "SELL" || !stop.ReduceOnly {
		t.Fatalf("unexpected stop order %+v", stop)
	}
	if stop.StopPrice == nil || *stop.StopPrice >= fx.ex.mark {
		t.Fatalf("long stop must sit below the entry price: %+v", stop)
	}
	if stop.Quantity != entry.Quantity {
		t.Fatalf("stop must cover the full entry: %v vs %v", stop.Quantity, entry.Quantity)
	}

	pos, err := fx.store.Position(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if pos.Flat() || pos.Side != models.SideLong || pos.StopPrice == nil {
		t.Fatalf("position not persisted: %+v", pos)
	}

	sigs, err := fx.siglog.RecentSignals(ctx, "BTCUSDT", domrepo.TF1h, 10)
	if err != nil {
		t.Fatalf("recent signals: %v", err)
	}
	if len(sigs) != 1 || sigs[0].Action != models.ActionLongEntry {
		t.Fatalf("expected one LONG_ENTRY signal, got %+v", sigs)
	}
	trades := fx.siglog.Trades()
	if len(trades) != 1 || trades[0].Action != models.TradeEntry {
		t.Fatalf("expected one entry trade row, got %+v", trades)
	}
	if fx.notify.signals != 1 || fx.notify.orders != 1 {
		t.Fatalf("notifier calls: signals=%d orders=%d", fx.notify.signals, fx.notify.orders)
	}

	// The arbiter runs alongside the decision and persists its state.
	st, err := fx.store.RegimeState(ctx, "BTCUSDT", domrepo.TF1h)
	if err != nil {
		t.Fatalf("regime state: %v", err)
	}
	if st.RegimeCurrent == "" || st.ConfirmCount < 1 {
		t.Fatalf("regime state not advanced: %+v", st)
	}
}

func TestProcessEventDuplicateDropped(t *testing.T) {
	ctx := context.Background()
	bars := trendBars(220)
	fx := newWorkerFixture(t, bars)
	ev := barCloseEvent(bars)

	if err := fx.worker.ProcessEvent(ctx, ev); err != nil {
		t.Fatalf("first ProcessEvent: %v", err)
	}
	ordersBefore := len(fx.ex.orderLog())

	if err := fx.worker.ProcessEvent(ctx, ev); err != nil {
		t.Fatalf("duplicate ProcessEvent: %v", err)
	}

	sigs, err := fx.siglog.RecentSignals(ctx, "BTCUSDT", domrepo.TF1h, 10)
	if err != nil {
		t.Fatalf("recent signals: %v", err)
	}
	if len(sigs) != 1 {
		t.Fatalf("duplicate event must not append a second signal, got %d", len(sigs))
	}
	if got := len(fx.ex.orderLog()); got != ordersBefore {
		t.Fatalf("duplicate event must not trade: %d -> %d orders", ordersBefore, got)
	}
}

func TestProcessEventInsufficientData(t *testing.T) {
	ctx := context.Background()
	bars := trendBars(50)
	fx := newWorkerFixture(t, bars)

	err := fx.worker.ProcessEvent(ctx, barCloseEvent(bars))
	if !errors.Is(err, domrepo.ErrInsufficientData) {
		t.Fatalf("got %v, want ErrInsufficientData", err)
	}
	if got := len(fx.ex.orderLog()); got != 0 {
		t.Fatalf("short history must not trade, got %d orders", got)
	}
}

func TestProcessEventEntryCooldown(t *testing.T) {
	ctx := context.Background()
	bars := trendBars(220)
	fx := newWorkerFixture(t, bars)
	ev := barCloseEvent(bars)

	overlay := `{"ema_len":10,"entry_len":5,"exit_len":3,"dmi_len":3,"atr_len":3,"use_adx_rising":false,"cooldown_bars":3}`
	if err := fx.store.SetActiveParamOverlay(ctx, "cooldown", []byte(overlay)); err != nil {
		t.Fatalf("set overlay: %v", err)
	}
	// Exited one bar ago; three cooldown bars remain.
	if err := fx.store.SetLastExitCloseTime(ctx, "BTCUSDT", ev.CloseTime-3600_000); err != nil {
		t.Fatalf("set last exit: %v", err)
	}

	if err := fx.worker.ProcessEvent(ctx, ev); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}
	if got := len(fx.ex.orderLog()); got != 0 {
		t.Fatalf("cooldown must suppress the entry, got %d orders", got)
	}
	// The signal is still recorded for the audit trail.
	sigs, err := fx.siglog.RecentSignals(ctx, "BTCUSDT", domrepo.TF1h, 10)
	if err != nil {
		t.Fatalf("recent signals: %v", err)
	}
	if len(sigs) != 1 || sigs[0].Action != models.ActionLongEntry {
		t.Fatalf("expected the suppressed LONG_ENTRY to be logged, got %+v", sigs)
	}
}

// With cooldown_bars=N the re-entry window is closed while
// closeTime-lastExit < (1+N) bars: the N bars after the exit bar are
// blocked and bar exit+1+N is the first one allowed again.
func TestProcessEventCooldownBoundary(t *testing.T) {
	const barMS = 3600_000
	cases := []struct {
		name      string
		barsAgo   int64
		wantEntry bool
	}{
		{"exit_1_bar_ago", 1, false},
		{"exit_3_bars_ago", 3, false},
		{"exit_4_bars_ago", 4, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			bars := trendBars(220)
			fx := newWorkerFixture(t, bars)
			ev := barCloseEvent(bars)

			overlay := `{"ema_len":10,"entry_len":5,"exit_len":3,"dmi_len":3,"atr_len":3,"use_adx_rising":false,"cooldown_bars":3}`
			if err := fx.store.SetActiveParamOverlay(ctx, "cooldown", []byte(overlay)); err != nil {
				t.Fatalf("set overlay: %v", err)
			}
			if err := fx.store.SetLastExitCloseTime(ctx, "BTCUSDT", ev.CloseTime-tc.barsAgo*barMS); err != nil {
				t.Fatalf("set last exit: %v", err)
			}
			if err := fx.worker.ProcessEvent(ctx, ev); err != nil {
				t.Fatalf("ProcessEvent: %v", err)
			}
			got := len(fx.ex.orderLog()) > 0
			if got != tc.wantEntry {
				t.Fatalf("entry placed = %v, want %v (orders %d)", got, tc.wantEntry, len(fx.ex.orderLog()))
			}
		})
	}
}

func TestProcessEventAdminGateClosed(t *testing.T) {
	ctx := context.Background()
	bars := trendBars(220)
	fx := newWorkerFixture(t, bars)

	if err := fx.admin.SetEmergency(ctx, true, "drill"); err != nil {
		t.Fatalf("SetEmergency: %v", err)
	}
	if err := fx.worker.ProcessEvent(ctx, barCloseEvent(bars)); err != nil {
		t.Fatalf("ProcessEvent: %v", err)
	}
	if got := len(fx.ex.orderLog()); got != 0 {
		t.Fatalf("emergency stop must suppress the entry, got %d orders", got)
	}
}

func TestLossStreak(t *testing.T) {
	cases := []struct {
		pnls []float64
		want int
	}{
		{nil, 0},
		{[]float64{1.2}, 0},
		{[]float64{-0.5}, 1},
		{[]float64{2, -1, -0.1}, 2},
		{[]float64{-1, 3, -1, -2}, 2},
		{[]float64{-1, -2, -3}, 3},
	}
	for _, c := range cases {
		if got := lossStreak(c.pnls); got != c.want {
			t.Fatalf("lossStreak(%v) = %d, want %d", c.pnls, got, c.want)
		}
	}
}
