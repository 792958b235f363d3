package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/pkg/util"
)

// CandlesUseCase provides business logic for retrieving stored bars.
type CandlesUseCase struct {
	store domrepo.KlineStore
}

func NewCandlesUseCase(store domrepo.KlineStore) *CandlesUseCase {
	return &CandlesUseCase{store: store}
}

type GetCandlesParams struct {
	Symbol    string
	Timeframe domrepo.Timeframe
	Limit     int
	// Optional inclusive time range, applied after the limit fetch.
	From *time.Time
	To   *time.Time
}

type GetCandlesResult struct {
	Symbol    string       `json:"symbol"`
	Timeframe string       `json:"tf"`
	Count     int          `json:"count"`
	Candles   []models.Bar `json:"candles"`
}

func (uc *CandlesUseCase) GetCandles(ctx context.Context, p GetCandlesParams) (*GetCandlesResult, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if p.Limit <= 0 {
		p.Limit = 500
	}
	if p.Limit > 5000 {
		p.Limit = 5000
	}

	bars, err := uc.store.FetchBars(ctx, p.Symbol, p.Timeframe, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}
	bars = filterRange(bars, p.Timeframe, p.From, p.To)

	return &GetCandlesResult{
		Symbol:    p.Symbol,
		Timeframe: string(p.Timeframe),
		Count:     len(bars),
		Candles:   bars,
	}, nil
}

// filterRange keeps bars whose open time falls in [from, to], with the
// bounds aligned to timeframe boundaries.
func filterRange(bars []models.Bar, tf domrepo.Timeframe, from, to *time.Time) []models.Bar {
	if from == nil && to == nil {
		return bars
	}
	lo := int64(0)
	hi := int64(math.MaxInt64)
	f, t := time.Time{}, time.Time{}
	if from != nil {
		f = *from
	}
	if to != nil {
		t = *to
	}
	f, t = util.AlignFromTo(f, t, string(tf))
	if from != nil {
		lo = f.UnixMilli()
	}
	if to != nil {
		hi = t.UnixMilli()
	}
	out := bars[:0:0]
	for _, b := range bars {
		if b.OpenTime >= lo && b.OpenTime <= hi {
			out = append(out, b)
		}
	}
	return out
}
