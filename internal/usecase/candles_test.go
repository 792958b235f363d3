package usecase

import (
	"context"
	"testing"
	"time"

	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/repository/memstore"
)

func TestGetCandlesLimit(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewKlineStore()
	bars := trendBars(100)
	if err := store.StoreBars(ctx, "BTCUSDT", domrepo.TF1h, bars); err != nil {
		t.Fatalf("store bars: %v", err)
	}

	uc := NewCandlesUseCase(store)
	res, err := uc.GetCandles(ctx, GetCandlesParams{Symbol: "BTCUSDT", Timeframe: domrepo.TF1h, Limit: 10})
	if err != nil {
		t.Fatalf("GetCandles: %v", err)
	}
	if res.Count != 10 || len(res.Candles) != 10 {
		t.Fatalf("limit: got %d candles", res.Count)
	}
	// Tail of the series, oldest first.
	if res.Candles[0].OpenTime != bars[90].OpenTime || res.Candles[9].OpenTime != bars[99].OpenTime {
		t.Fatalf("unexpected window: %v..%v", res.Candles[0].OpenTime, res.Candles[9].OpenTime)
	}

	if _, err := uc.GetCandles(ctx, GetCandlesParams{Timeframe: domrepo.TF1h}); err == nil {
		t.Fatalf("empty symbol should be rejected")
	}
}

func TestGetCandlesTimeRange(t *testing.T) {
	ctx := context.Background()
	store := memstore.NewKlineStore()
	bars := trendBars(48) // bar i opens at i*3600_000
	if err := store.StoreBars(ctx, "BTCUSDT", domrepo.TF1h, bars); err != nil {
		t.Fatalf("store bars: %v", err)
	}

	uc := NewCandlesUseCase(store)
	from := time.UnixMilli(10 * 3600_000).UTC()
	to := time.UnixMilli(13*3600_000 + 1500_000).UTC() // mid-bar; aligned down to 13h

	res, err := uc.GetCandles(ctx, GetCandlesParams{
		Symbol: "BTCUSDT", Timeframe: domrepo.TF1h, Limit: 100, From: &from, To: &to,
	})
	if err != nil {
		t.Fatalf("GetCandles: %v", err)
	}
	if res.Count != 4 {
		t.Fatalf("expected bars 10..13, got %d: %+v", res.Count, res.Candles)
	}
	if res.Candles[0].OpenTime != 10*3600_000 || res.Candles[3].OpenTime != 13*3600_000 {
		t.Fatalf("range bounds: %v..%v", res.Candles[0].OpenTime, res.Candles[3].OpenTime)
	}

	// Open-ended from.
	res, err = uc.GetCandles(ctx, GetCandlesParams{
		Symbol: "BTCUSDT", Timeframe: domrepo.TF1h, Limit: 100, From: &from,
	})
	if err != nil {
		t.Fatalf("GetCandles: %v", err)
	}
	if res.Count != 38 {
		t.Fatalf("open-ended from: got %d", res.Count)
	}
}
