// Package backtest replays the breakout strategy bar by bar over
// historical candles, applying the same evaluation order, adaptive
// filter and post-exit cooldown as the live decision worker.
package backtest

import (
	"context"
	"fmt"
	"math"

	"TradePulse/internal/domain/models"
	"TradePulse/internal/domain/repository"
	"TradePulse/internal/engine/filter"
	"TradePulse/internal/engine/indicator"
	"TradePulse/internal/engine/strategy"
)

// MinBars is the smallest candle set a run accepts.
const MinBars = 250

// warmupPad extends the longest lookback before the first evaluated bar.
const warmupPad = 25

// Config describes one simulation run.
type Config struct {
	Symbol         string
	Timeframe      repository.Timeframe
	Limit          int
	InitialCapital float64
	Params         strategy.Params
	SlippageBps    float64
	FeeBps         float64
}

// Summary is the aggregate outcome of a run.
type Summary struct {
	InitialCapital float64 `json:"initial_capital_usdt"`
	FinalBalance   float64 `json:"final_balance_usdt"`
	GrowthPct      float64 `json:"growth_pct"`
	Symbol         string  `json:"symbol"`
	Timeframe      string  `json:"tf"`
	Bars           int     `json:"bars"`
	BarsUsed       int     `json:"bars_used"`
	Trades         int     `json:"trades_count"`
	Wins           int     `json:"wins"`
	Losses         int     `json:"losses"`
	WinRatePct     float64 `json:"win_rate_pct"`
	TotalPnlPct    float64 `json:"total_pnl_pct"`
	AvgPnlPct      float64 `json:"avg_pnl_per_trade_pct"`
}

// Result is a summary plus the full trade ledger.
type Result struct {
	Summary  Summary              `json:"result"`
	StartIdx int                  `json:"start_idx"`
	Params   strategy.Params      `json:"params"`
	Trades   []models.TradeRecord `json:"trades"`
}

// Run loads candles from src and simulates the strategy over them.
func Run(ctx context.Context, src repository.CandleSource, cfg Config) (*Result, error) {
	bars, err := src.FetchBars(ctx, cfg.Symbol, cfg.Timeframe, cfg.Limit)
	if err != nil {
		return nil, fmt.Errorf("load candles: %w", err)
	}
	if len(bars) < MinBars {
		return nil, fmt.Errorf("%w: %d bars, need %d", repository.ErrInsufficientData, len(bars), MinBars)
	}
	return Simulate(bars, cfg), nil
}

// Simulate replays the strategy over an in-memory candle set. It is
// deterministic: the same bars and config always produce the same
// ledger.
func Simulate(bars []models.Bar, cfg Config) *Result {
	p := cfg.Params
	lengths := p.Lengths()
	startIdx := p.MaxLookback() + warmupPad

	slip := 1 + cfg.SlippageBps/10000
	fee := cfg.FeeBps / 10000

	var (
		posSide      models.Side
		entryPrice   float64
		stopPrice    *float64
		trades       []models.TradeRecord
		balance      = cfg.InitialCapital
		lastPnls     []float64
		skipRemain   int
		entryState   = models.FilterNormal
		entryMult    = 1.0
		lastExitIdx  = -1
		haveLastExit bool
	)

	recordExit := func(t int64, side models.Side, exitPx, pnlPct float64, via string) {
		balance *= 1 + entryMult*pnlPct/100
		lastPnls = append(lastPnls, pnlPct)
		if len(lastPnls) > 3 {
			lastPnls = lastPnls[len(lastPnls)-3:]
		}
		if filter.ConsecutiveLosses(lastPnls) {
			skipRemain = filter.LossStreakSkips
		}
		pnl, bal := pnlPct, balance
		trades = append(trades, models.TradeRecord{
			Time: t, Side: side, Price: exitPx, Action: models.TradeExit,
			Via: via, PnlPct: &pnl, Balance: &bal, FilterState: entryState,
		})
	}

	for i := startIdx; i < len(bars); i++ {
		window := bars[:i+1]
		snap := indicator.ComputeSnapshot(window, lengths)
		if snap == nil {
			continue
		}

		action := strategy.Evaluate(snap, strategy.Position{Side: posSide, StopPrice: stopPrice}, p)

		bar := window[len(window)-1]
		high, low, close := bar.High, bar.Low, bar.Close
		t := bar.OpenTime

		filt := filter.Evaluate(snap.ADX, snap.ATR, snap.ATR30, skipRemain)

		// 1) Stop fill, judged intrabar on the extreme.
		if posSide == models.SideLong && stopPrice != nil && low <= *stopPrice {
			exitPx := math.Min(*stopPrice, close) * (1 - fee)
			basis := entryPrice * (1 + fee)
			recordExit(t, models.SideLong, exitPx, (exitPx-basis)/basis*100, "stop")
			posSide, entryPrice, stopPrice = "", 0, nil
			lastExitIdx, haveLastExit = i, true
			continue
		}
		if posSide == models.SideShort && stopPrice != nil && high >= *stopPrice {
			exitPx := math.Max(*stopPrice, close) * (1 + fee)
			basis := entryPrice * (1 - fee)
			recordExit(t, models.SideShort, exitPx, (basis-exitPx)/basis*100, "stop")
			posSide, entryPrice, stopPrice = "", 0, nil
			lastExitIdx, haveLastExit = i, true
			continue
		}

		// 2) Channel exit.
		if action == models.ActionLongExit && posSide == models.SideLong {
			exitPx := close * (1 - fee)
			basis := entryPrice * slip
			recordExit(t, models.SideLong, exitPx, (exitPx-basis)/basis*100, "channel")
			posSide, entryPrice, stopPrice = "", 0, nil
			lastExitIdx, haveLastExit = i, true
			continue
		}
		if action == models.ActionShortExit && posSide == models.SideShort {
			exitPx := close * (1 + fee)
			basis := entryPrice * (1 - fee)
			recordExit(t, models.SideShort, exitPx, (basis-exitPx)/basis*100, "channel")
			posSide, entryPrice, stopPrice = "", 0, nil
			lastExitIdx, haveLastExit = i, true
			continue
		}

		// Post-exit wait, same rule the live worker applies by time.
		inCooldown := haveLastExit && i <= lastExitIdx+1+p.CooldownBars

		// 3) Entry, flat only.
		if action == models.ActionLongEntry && posSide == "" && !inCooldown {
			if !filt.Allowed {
				if filt.Reason == filter.ReasonLossCooldown && skipRemain > 0 {
					skipRemain--
				}
				continue
			}
			entryState, entryMult = filt.State, filt.Multiplier
			atrVal := 0.0
			if snap.ATR != nil {
				atrVal = *snap.ATR
			}
			entryPrice = close * slip
			sp := entryPrice - p.StopMult*atrVal
			stopPrice = &sp
			posSide = models.SideLong
			mult := filt.Multiplier
			trades = append(trades, models.TradeRecord{
				Time: t, Side: models.SideLong, Price: entryPrice, Action: models.TradeEntry,
				FilterState: filt.State, PositionMult: &mult, Reason: filt.Reason,
			})
		} else if action == models.ActionShortEntry && posSide == "" && !inCooldown {
			if !filt.Allowed {
				if filt.Reason == filter.ReasonLossCooldown && skipRemain > 0 {
					skipRemain--
				}
				continue
			}
			entryState, entryMult = filt.State, filt.Multiplier
			atrVal := 0.0
			if snap.ATR != nil {
				atrVal = *snap.ATR
			}
			entryPrice = close * (1 - fee)
			sp := entryPrice + p.StopMult*atrVal
			stopPrice = &sp
			posSide = models.SideShort
			mult := filt.Multiplier
			trades = append(trades, models.TradeRecord{
				Time: t, Side: models.SideShort, Price: entryPrice, Action: models.TradeEntry,
				FilterState: filt.State, PositionMult: &mult, Reason: filt.Reason,
			})
		}
	}

	return &Result{
		Summary:  summarize(cfg, bars, startIdx, trades, balance),
		StartIdx: startIdx,
		Params:   p,
		Trades:   trades,
	}
}

func summarize(cfg Config, bars []models.Bar, startIdx int, trades []models.TradeRecord, balance float64) Summary {
	var exits, wins int
	var totalPnl float64
	for _, tr := range trades {
		if tr.Action != models.TradeExit || tr.PnlPct == nil {
			continue
		}
		exits++
		totalPnl += *tr.PnlPct
		if *tr.PnlPct > 0 {
			wins++
		}
	}
	s := Summary{
		InitialCapital: cfg.InitialCapital,
		FinalBalance:   round2(balance),
		Symbol:         cfg.Symbol,
		Timeframe:      string(cfg.Timeframe),
		Bars:           len(bars),
		BarsUsed:       len(bars) - startIdx,
		Trades:         exits,
		Wins:           wins,
		Losses:         exits - wins,
		TotalPnlPct:    round2(totalPnl),
	}
	if cfg.InitialCapital != 0 {
		s.GrowthPct = round2((balance - cfg.InitialCapital) / cfg.InitialCapital * 100)
	}
	if exits > 0 {
		s.WinRatePct = round2(float64(wins) / float64(exits) * 100)
		s.AvgPnlPct = round2(totalPnl / float64(exits))
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
