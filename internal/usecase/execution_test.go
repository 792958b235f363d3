package usecase

import (
	"context"
	"math"
	"testing"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/engine/filter"
	"TradePulse/internal/engine/indicator"
	"TradePulse/internal/engine/strategy"
	"TradePulse/internal/repository/memstore"
)

func testEntryParams() strategy.Params {
	p := strategy.DefaultParams()
	p.EMALen = 10
	p.EntryLen = 5
	p.ExitLen = 3
	p.DMILen = 3
	p.ATRLen = 3
	p.UseADXRising = false
	return p
}

func snapshotForBars(t *testing.T, bars []models.Bar) *models.Snapshot {
	t.Helper()
	snap := indicator.ComputeSnapshot(bars, testEntryParams().Lengths())
	if snap == nil || snap.ATR == nil {
		t.Fatalf("snapshot did not warm up: %+v", snap)
	}
	return snap
}

func allowAllFilter() filter.Result {
	return filter.Result{Allowed: true, Multiplier: 1, State: models.FilterNormal, Reason: filter.ReasonOK}
}

func newExecutionFixture(t *testing.T, ex *fakeExchange, tradeEnabled bool) (*Execution, *memstore.StateStore, *memstore.SignalLog, *fakeNotifier) {
	t.Helper()
	store := memstore.NewStateStore()
	siglog := memstore.NewSignalLog()
	notify := &fakeNotifier{}
	exec := NewExecution(ex, store, siglog, notify, newFakeMetrics(), NewAdminState(store, tradeEnabled), testLogger(t))
	return exec, store, siglog, notify
}

func TestExecuteExitRealizesPnl(t *testing.T) {
	ctx := context.Background()
	ex := &fakeExchange{equity: 1000, mark: 510, posAmt: 1.5, posEntry: 500}
	exec, store, siglog, _ := newExecutionFixture(t, ex, true)

	entry := 500.0
	if err := store.SavePosition(ctx, "BTCUSDT", models.PositionState{
		Side:       models.SideLong,
		Size:       1.5,
		EntryPrice: entry,
	}); err != nil {
		t.Fatalf("save position: %v", err)
	}

	done, pnl, err := exec.ExecuteExit(ctx, "BTCUSDT", domrepo.TF1h, models.SideLong)
	if err != nil {
		t.Fatalf("ExecuteExit: %v", err)
	}
	if !done {
		t.Fatalf("exit should complete")
	}
	if pnl == nil || math.Abs(*pnl-2.0) > 1e-9 {
		t.Fatalf("pnl: got %v want 2%%", pnl)
	}

	orders := ex.orderLog()
	if len(orders) != 1 {
		t.Fatalf("expected one exit order, got %+v", orders)
	}
	if orders[0].Side != "SELL" || orders[0].Type != "MARKET" || !orders[0].ReduceOnly {
		t.Fatalf("unexpected exit order %+v", orders[0])
	}
	if orders[0].Quantity != 1.5 {
		t.Fatalf("exit quantity must come from the venue, got %v", orders[0].Quantity)
	}

	pos, err := store.Position(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if !pos.Flat() {
		t.Fatalf("position should be cleared, got %+v", pos)
	}

	trades := siglog.Trades()
	if len(trades) != 1 || trades[0].Action != models.TradeExit || trades[0].PnlPct == nil {
		t.Fatalf("expected one exit trade row with pnl, got %+v", trades)
	}
}

func TestExecuteExitVenueAlreadyFlat(t *testing.T) {
	ctx := context.Background()
	// Stop already fired on the venue; local state is stale.
	ex := &fakeExchange{equity: 1000, mark: 480, posAmt: 0}
	exec, store, _, _ := newExecutionFixture(t, ex, true)

	if err := store.SavePosition(ctx, "BTCUSDT", models.PositionState{
		Side: models.SideLong, Size: 1, EntryPrice: 500,
	}); err != nil {
		t.Fatalf("save position: %v", err)
	}

	done, pnl, err := exec.ExecuteExit(ctx, "BTCUSDT", domrepo.TF1h, models.SideLong)
	if err != nil {
		t.Fatalf("ExecuteExit: %v", err)
	}
	if !done || pnl != nil {
		t.Fatalf("flat venue should clean up without an order: done=%v pnl=%v", done, pnl)
	}
	if got := len(ex.orderLog()); got != 0 {
		t.Fatalf("no order expected against a flat venue, got %d", got)
	}
	pos, err := store.Position(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if !pos.Flat() {
		t.Fatalf("stale local position should be cleared, got %+v", pos)
	}
}

func TestExecuteEntryKillSwitch(t *testing.T) {
	ctx := context.Background()
	ex := &fakeExchange{equity: 1000, mark: 500}
	exec, _, siglog, _ := newExecutionFixture(t, ex, false)

	bars := trendBars(220)
	snap := snapshotForBars(t, bars)
	sent, err := exec.ExecuteEntry(ctx, "BTCUSDT", domrepo.TF1h, models.SideLong, snap, testEntryParams(), allowAllFilter())
	if err != nil {
		t.Fatalf("ExecuteEntry: %v", err)
	}
	if sent {
		t.Fatalf("kill switch must block the entry")
	}
	if got := len(ex.orderLog()); got != 0 {
		t.Fatalf("no order expected while paused, got %d", got)
	}
	if got := len(siglog.Trades()); got != 0 {
		t.Fatalf("no trade row expected while paused, got %d", got)
	}
}

func TestExecuteEntryShortStopAboveEntry(t *testing.T) {
	ctx := context.Background()
	ex := &fakeExchange{equity: 1000, mark: 500}
	exec, store, _, _ := newExecutionFixture(t, ex, true)

	bars := trendBars(220)
	snap := snapshotForBars(t, bars)
	sent, err := exec.ExecuteEntry(ctx, "BTCUSDT", domrepo.TF1h, models.SideShort, snap, testEntryParams(), allowAllFilter())
	if err != nil {
		t.Fatalf("ExecuteEntry: %v", err)
	}
	if !sent {
		t.Fatalf("entry should be sent")
	}

	orders := ex.orderLog()
	if len(orders) != 2 {
		t.Fatalf("expected entry plus stop, got %+v", orders)
	}
	if orders[0].Side != "SELL" || orders[1].Side != "BUY" {
		t.Fatalf("short entry sells and its stop buys back: %+v", orders)
	}
	if orders[1].StopPrice == nil || *orders[1].StopPrice <= ex.mark {
		t.Fatalf("short stop must sit above the entry price: %+v", orders[1])
	}

	pos, err := store.Position(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if pos.Side != models.SideShort || pos.StopPrice == nil {
		t.Fatalf("short position not persisted: %+v", pos)
	}
}
