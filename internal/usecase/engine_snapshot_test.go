package usecase

import (
	"context"
	"testing"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/repository/memstore"
)

func TestEngineSnapshotAssemblesSections(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewStateStore()
	klines := memstore.NewKlineStore()
	siglog := memstore.NewSignalLog()
	admin := NewAdminState(store, true)

	bars := trendBars(300)
	if err := klines.StoreBars(ctx, "BTCUSDT", domrepo.TF4h, bars); err != nil {
		t.Fatalf("store bars: %v", err)
	}
	if err := store.SaveRegimeState(ctx, "BTCUSDT", domrepo.TF4h, models.RegimeState{
		RegimeCurrent:  models.RegimeTrend,
		ActiveStrategy: models.StrategyTrend,
		TradingAllowed: true,
		ConfirmCount:   2,
	}); err != nil {
		t.Fatalf("save regime: %v", err)
	}
	stop := 400.0
	if err := store.SavePosition(ctx, "BTCUSDT", models.PositionState{
		Side: models.SideLong, Size: 1.5, EntryPrice: 500, StopPrice: &stop,
	}); err != nil {
		t.Fatalf("save position: %v", err)
	}
	if err := siglog.AppendSignal(ctx, models.SignalRecord{
		Symbol: "BTCUSDT", Timeframe: string(domrepo.TF4h), CloseTime: 42, Action: models.ActionLongEntry,
	}); err != nil {
		t.Fatalf("append signal: %v", err)
	}

	uc := NewEngineSnapshotUseCase(klines, store, siglog, admin)
	snap, err := uc.Get(ctx, "BTCUSDT", domrepo.TF4h)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}

	if snap.Errors != nil {
		t.Fatalf("no section errors expected, got %+v", snap.Errors)
	}
	if snap.Controls.RunState != "RUNNING" {
		t.Fatalf("controls: %+v", snap.Controls)
	}
	if snap.Meta == nil || snap.Meta.Regime != models.RegimeTrend || snap.Meta.ActiveStrategy != models.StrategyTrend {
		t.Fatalf("meta block: %+v", snap.Meta)
	}
	if snap.BotA == nil || snap.BotA.Snapshot == nil {
		t.Fatalf("breakout block missing: %+v", snap.BotA)
	}
	if snap.BotA.LastSignal == nil || snap.BotA.LastSignal.Action != models.ActionLongEntry {
		t.Fatalf("last signal missing: %+v", snap.BotA.LastSignal)
	}
	if snap.BotB == nil {
		t.Fatalf("mean-reversion block missing")
	}
	if snap.Position == nil || snap.Position.Side != models.SideLong {
		t.Fatalf("position block: %+v", snap.Position)
	}
}

func TestEngineSnapshotCarriesSectionErrors(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewStateStore()
	siglog := memstore.NewSignalLog()
	admin := NewAdminState(store, false)

	// Empty kline store: every bar-backed section fails, the snapshot
	// itself still succeeds.
	uc := NewEngineSnapshotUseCase(memstore.NewKlineStore(), store, siglog, admin)
	snap, err := uc.Get(ctx, "BTCUSDT", domrepo.TF4h)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if snap.Controls.RunState != "PAUSED" {
		t.Fatalf("controls: %+v", snap.Controls)
	}
	for _, section := range []string{"meta", "botA", "botB"} {
		if _, ok := snap.Errors[section]; !ok {
			t.Fatalf("expected %s error, got %+v", section, snap.Errors)
		}
	}
	if snap.Position != nil {
		t.Fatalf("flat book should omit the position block")
	}
}
