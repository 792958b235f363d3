package repository

import (
	"context"
	"errors"
	"testing"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/pkg/cache"
)

func newStateStore(t *testing.T) (*CacheStateStore, func()) {
	t.Helper()
	mc := cache.NewMemoryCache()
	return NewCacheStateStore(mc), func() { _ = mc.Close() }
}

func TestCacheStateStorePosition(t *testing.T) {
	ctx := context.Background()
	store, done := newStateStore(t)
	defer done()

	// Missing position reads as flat, not as an error.
	pos, err := store.Position(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if !pos.Flat() {
		t.Fatalf("expected flat, got %+v", pos)
	}

	stop := 480.5
	want := models.PositionState{
		Side:       models.SideLong,
		Size:       1.25,
		EntryPrice: 500,
		StopPrice:  &stop,
		UpdatedAt:  1700000000000,
	}
	if err := store.SavePosition(ctx, "BTCUSDT", want); err != nil {
		t.Fatalf("SavePosition: %v", err)
	}
	got, err := store.Position(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("Position: %v", err)
	}
	if got.Side != want.Side || got.Size != want.Size || got.EntryPrice != want.EntryPrice {
		t.Fatalf("round trip: got %+v want %+v", got, want)
	}
	if got.StopPrice == nil || *got.StopPrice != stop {
		t.Fatalf("stop price lost: %+v", got)
	}

	if err := store.ClearPosition(ctx, "BTCUSDT"); err != nil {
		t.Fatalf("ClearPosition: %v", err)
	}
	got, err = store.Position(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("Position after clear: %v", err)
	}
	if !got.Flat() {
		t.Fatalf("expected flat after clear, got %+v", got)
	}
}

func TestCacheStateStoreFilterMemory(t *testing.T) {
	ctx := context.Background()
	store, done := newStateStore(t)
	defer done()

	mem, err := store.FilterMemory(ctx, "BTCUSDT")
	if err != nil || len(mem.LastExitPnls) != 0 || mem.SkipRemaining != 0 {
		t.Fatalf("fresh memory: %+v err=%v", mem, err)
	}

	want := models.FilterMemory{LastExitPnls: []float64{-1.2, -0.4, -2.0}, SkipRemaining: 2}
	if err := store.SaveFilterMemory(ctx, "BTCUSDT", want); err != nil {
		t.Fatalf("SaveFilterMemory: %v", err)
	}
	got, err := store.FilterMemory(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("FilterMemory: %v", err)
	}
	if got.SkipRemaining != 2 || len(got.LastExitPnls) != 3 || got.LastExitPnls[2] != -2.0 {
		t.Fatalf("round trip: %+v", got)
	}
}

func TestCacheStateStoreRegimePerTimeframe(t *testing.T) {
	ctx := context.Background()
	store, done := newStateStore(t)
	defer done()

	if err := store.SaveRegimeState(ctx, "BTCUSDT", domrepo.TF1h, models.RegimeState{
		RegimeCurrent: models.RegimeTrend, ConfirmCount: 2,
	}); err != nil {
		t.Fatalf("SaveRegimeState: %v", err)
	}

	st, err := store.RegimeState(ctx, "BTCUSDT", domrepo.TF1h)
	if err != nil || st.RegimeCurrent != models.RegimeTrend {
		t.Fatalf("1h state: %+v err=%v", st, err)
	}
	// The 4h slot is independent and still zero.
	st, err = store.RegimeState(ctx, "BTCUSDT", domrepo.TF4h)
	if err != nil || st.RegimeCurrent != "" {
		t.Fatalf("4h state should be empty: %+v err=%v", st, err)
	}
}

func TestCacheStateStoreLastExitAndSettings(t *testing.T) {
	ctx := context.Background()
	store, done := newStateStore(t)
	defer done()

	if _, err := store.LastExitCloseTime(ctx, "BTCUSDT"); !errors.Is(err, domrepo.ErrNotFound) {
		t.Fatalf("unset last exit: %v", err)
	}
	if err := store.SetLastExitCloseTime(ctx, "BTCUSDT", 1700000000000); err != nil {
		t.Fatalf("SetLastExitCloseTime: %v", err)
	}
	ts, err := store.LastExitCloseTime(ctx, "BTCUSDT")
	if err != nil || ts != 1700000000000 {
		t.Fatalf("last exit: %d err=%v", ts, err)
	}

	if _, err := store.Setting(ctx, "trade_enabled"); !errors.Is(err, domrepo.ErrNotFound) {
		t.Fatalf("unset setting: %v", err)
	}
	if err := store.SetSetting(ctx, "trade_enabled", "true"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	v, err := store.Setting(ctx, "trade_enabled")
	if err != nil || v != "true" {
		t.Fatalf("setting: %q err=%v", v, err)
	}
}

func TestCacheStateStoreParamOverlay(t *testing.T) {
	ctx := context.Background()
	store, done := newStateStore(t)
	defer done()

	if _, err := store.ActiveParamOverlay(ctx); !errors.Is(err, domrepo.ErrNotFound) {
		t.Fatalf("unset overlay: %v", err)
	}
	overlay := []byte(`{"adx_min":25}`)
	if err := store.SetActiveParamOverlay(ctx, "aggressive", overlay); err != nil {
		t.Fatalf("SetActiveParamOverlay: %v", err)
	}
	got, err := store.ActiveParamOverlay(ctx)
	if err != nil || string(got) != string(overlay) {
		t.Fatalf("overlay: %s err=%v", got, err)
	}
	name, err := store.ActiveParamSetName(ctx)
	if err != nil || name != "aggressive" {
		t.Fatalf("overlay name: %q err=%v", name, err)
	}
}

func TestCacheStateStoreMarkEventSeen(t *testing.T) {
	ctx := context.Background()
	store, done := newStateStore(t)
	defer done()

	fresh, err := store.MarkEventSeen(ctx, "BTCUSDT_4h_1700000000000")
	if err != nil || !fresh {
		t.Fatalf("first mark: fresh=%v err=%v", fresh, err)
	}
	fresh, err = store.MarkEventSeen(ctx, "BTCUSDT_4h_1700000000000")
	if err != nil || fresh {
		t.Fatalf("second mark must report seen: fresh=%v err=%v", fresh, err)
	}
	fresh, err = store.MarkEventSeen(ctx, "BTCUSDT_4h_1700014400000")
	if err != nil || !fresh {
		t.Fatalf("next bar is a new key: fresh=%v err=%v", fresh, err)
	}
}
