// Package strategy implements the bar-close breakout evaluator.
//
// The check order per bar is fixed and short-circuiting:
//  1. stop fill (bar low/high against the fixed stop price)
//  2. channel exit (close against the prior-N-bar Donchian channel)
//  3. entry (only when flat, with quality filters)
//
// Donchian windows always exclude the bar that just closed: a breakout
// is a move past the prior N bars, never past the evaluation bar's own
// extremes.
package strategy

import "TradePulse/internal/domain/models"

// Position is the evaluator's view of the caller-owned position state.
// Side is empty when flat; StopPrice is nil when no stop is armed.
type Position struct {
	Side      models.Side
	StopPrice *float64
}

// Evaluate returns the single decision for one closed bar. A nil
// required indicator means "no decision": the evaluator returns
// ActionNone rather than an error.
func Evaluate(snap *models.Snapshot, pos Position, p Params) models.Action {
	if snap == nil {
		return models.ActionNone
	}
	if snap.EMA200 == nil || snap.HiEntry == nil || snap.LoExit == nil {
		return models.ActionNone
	}
	if snap.ADX == nil || snap.PlusDI == nil || snap.MinusDI == nil {
		return models.ActionNone
	}
	close := snap.Close
	high, low := snap.High, snap.Low

	// 1) Stop fill, judged intrabar on the extreme.
	if pos.Side == models.SideLong && pos.StopPrice != nil && low <= *pos.StopPrice {
		return models.ActionLongExit
	}
	if pos.Side == models.SideShort && pos.StopPrice != nil && high >= *pos.StopPrice {
		return models.ActionShortExit
	}

	// 2) Channel exit. While in a position no entry check is reached.
	if pos.Side == models.SideLong {
		if snap.LoExit != nil && close < *snap.LoExit {
			return models.ActionLongExit
		}
		return models.ActionNone
	}
	if pos.Side == models.SideShort {
		if snap.HiExit != nil && close > *snap.HiExit {
			return models.ActionShortExit
		}
		return models.ActionNone
	}

	// 3) Entry, flat only.
	if *snap.ADX < p.ADXMin {
		return models.ActionNone
	}
	if snap.ATR == nil || *snap.ATR <= 0 {
		return models.ActionNone
	}
	if p.UseADXRising && snap.ADXPrev != nil && *snap.ADX <= *snap.ADXPrev {
		return models.ActionNone
	}

	margin := p.BreakoutATRMargin * *snap.ATR

	slopeOKLong := !p.UseEMASlope || (snap.EMA200Prev != nil && *snap.EMA200 > *snap.EMA200Prev)
	if close > *snap.HiEntry+margin &&
		close > *snap.EMA200 &&
		*snap.PlusDI > *snap.MinusDI &&
		slopeOKLong {
		return models.ActionLongEntry
	}

	slopeOKShort := !p.UseEMASlope || (snap.EMA200Prev != nil && *snap.EMA200 < *snap.EMA200Prev)
	if snap.LoEntry != nil &&
		close < *snap.LoEntry-margin &&
		close < *snap.EMA200 &&
		*snap.MinusDI > *snap.PlusDI &&
		slopeOKShort {
		return models.ActionShortEntry
	}

	return models.ActionNone
}
