package backtest

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"

	"TradePulse/internal/domain/models"
	"TradePulse/internal/domain/repository"
	"TradePulse/internal/engine/strategy"
	"TradePulse/internal/repository/memstore"
)

// vShapeBars: steady uptrend, one crash bar, then a strong recovery.
// With the short test lookbacks this produces a long entry on the
// first evaluated bar, a stop exit on the crash, and a re-entry on
// the recovery.
func vShapeBars() []models.Bar {
	bars := make([]models.Bar, 55)
	close := 100.0
	for i := range bars {
		switch {
		case i == 0:
		case i <= 45:
			close += 2
		case i == 46:
			close -= 30
		default:
			close += 40
		}
		bars[i] = models.Bar{
			OpenTime: int64(i) * 3600_000,
			Open:     close,
			High:     close + 1,
			Low:      close - 1,
			Close:    close,
			Volume:   1,
		}
	}
	return bars
}

func testParams() strategy.Params {
	p := strategy.DefaultParams()
	p.EMALen = 10
	p.EntryLen = 5
	p.ExitLen = 3
	p.DMILen = 3
	p.ATRLen = 3
	p.UseADXRising = false
	return p
}

func testConfig() Config {
	return Config{
		Symbol:         "BTCUSDT",
		Timeframe:      repository.TF1h,
		InitialCapital: 1000,
		Params:         testParams(),
	}
}

func TestSimulateStopExitScenario(t *testing.T) {
	bars := vShapeBars()
	res := Simulate(bars, testConfig())

	if res.StartIdx != 35 {
		t.Fatalf("unexpected start idx %d", res.StartIdx)
	}
	if len(res.Trades) != 3 {
		t.Fatalf("expected entry/exit/re-entry, got %d: %+v", len(res.Trades), res.Trades)
	}

	entry := res.Trades[0]
	if entry.Action != models.TradeEntry || entry.Side != models.SideLong {
		t.Fatalf("unexpected first trade %+v", entry)
	}
	if entry.Time != bars[35].OpenTime || entry.Price != bars[35].Close {
		t.Fatalf("entry should fire on the first evaluated bar: %+v", entry)
	}
	if entry.FilterState != models.FilterStrong || *entry.PositionMult != 1.3 {
		t.Fatalf("strong trend should size 1.3x: %+v", entry)
	}

	exit := res.Trades[1]
	if exit.Action != models.TradeExit || exit.Via != "stop" {
		t.Fatalf("crash bar should exit via stop, not channel: %+v", exit)
	}
	if exit.Time != bars[46].OpenTime {
		t.Fatalf("exit on wrong bar: %+v", exit)
	}
	// Stop = 170 - 2*ATR(3) = 164, gapped through: fill at the close.
	if exit.Price != bars[46].Close {
		t.Fatalf("unexpected exit price %v", exit.Price)
	}
	wantPnl := (160.0 - 170.0) / 170.0 * 100
	if math.Abs(*exit.PnlPct-wantPnl) > 1e-9 {
		t.Fatalf("pnl %v want %v", *exit.PnlPct, wantPnl)
	}
	wantBalance := 1000 * (1 + 1.3*wantPnl/100)
	if math.Abs(*exit.Balance-wantBalance) > 1e-9 {
		t.Fatalf("balance %v want %v", *exit.Balance, wantBalance)
	}

	// Re-entry waits out the implicit one-bar gap after the exit bar.
	reentry := res.Trades[2]
	if reentry.Action != models.TradeEntry || reentry.Time != bars[48].OpenTime {
		t.Fatalf("unexpected re-entry %+v", reentry)
	}

	if res.Summary.Trades != 1 || res.Summary.Losses != 1 || res.Summary.Wins != 0 {
		t.Fatalf("unexpected summary %+v", res.Summary)
	}
	if res.Summary.FinalBalance != math.Round(wantBalance*100)/100 {
		t.Fatalf("final balance %v", res.Summary.FinalBalance)
	}
}

func TestSimulateCooldownDelaysReentry(t *testing.T) {
	bars := vShapeBars()
	cfg := testConfig()
	cfg.Params.CooldownBars = 2
	res := Simulate(bars, cfg)

	if len(res.Trades) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(res.Trades))
	}
	reentry := res.Trades[2]
	if reentry.Action != models.TradeEntry || reentry.Time != bars[50].OpenTime {
		t.Fatalf("cooldown=2 should push re-entry to bar 50: %+v", reentry)
	}
}

func TestSimulateFeesAndSlippage(t *testing.T) {
	bars := vShapeBars()
	cfg := testConfig()
	cfg.SlippageBps = 20
	cfg.FeeBps = 10
	res := Simulate(bars, cfg)

	if len(res.Trades) < 2 {
		t.Fatalf("expected trades, got %+v", res.Trades)
	}
	slip := 1 + 20.0/10000
	fee := 10.0 / 10000

	entry := res.Trades[0]
	wantEntry := bars[35].Close * slip
	if math.Abs(entry.Price-wantEntry) > 1e-9 {
		t.Fatalf("entry price %v want %v", entry.Price, wantEntry)
	}

	exit := res.Trades[1]
	if exit.Via != "stop" {
		t.Fatalf("unexpected exit %+v", exit)
	}
	stop := wantEntry - 2*3.0 // StopMult * ATR(3)
	wantExitPx := math.Min(stop, bars[46].Close) * (1 - fee)
	if math.Abs(exit.Price-wantExitPx) > 1e-9 {
		t.Fatalf("exit price %v want %v", exit.Price, wantExitPx)
	}
	basis := wantEntry * (1 + fee)
	wantPnl := (wantExitPx - basis) / basis * 100
	if math.Abs(*exit.PnlPct-wantPnl) > 1e-9 {
		t.Fatalf("pnl %v want %v", *exit.PnlPct, wantPnl)
	}
}

func TestSimulateDeterministic(t *testing.T) {
	bars := vShapeBars()
	a := Simulate(bars, testConfig())
	b := Simulate(bars, testConfig())
	if !reflect.DeepEqual(a.Summary, b.Summary) {
		t.Fatalf("summaries diverge: %+v vs %+v", a.Summary, b.Summary)
	}
	if len(a.Trades) != len(b.Trades) {
		t.Fatalf("ledgers diverge")
	}
	for i := range a.Trades {
		if a.Trades[i].Time != b.Trades[i].Time || a.Trades[i].Price != b.Trades[i].Price {
			t.Fatalf("trade %d diverges", i)
		}
	}
}

func TestRunRequiresMinBars(t *testing.T) {
	store := memstore.NewKlineStore()
	bars := vShapeBars() // 55 bars, below the 250 floor
	if err := store.StoreBars(context.Background(), "BTCUSDT", repository.TF1h, bars); err != nil {
		t.Fatalf("store: %v", err)
	}
	_, err := Run(context.Background(), store, testConfig())
	if !errors.Is(err, repository.ErrInsufficientData) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
}
