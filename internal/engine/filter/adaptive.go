// Package filter is the adaptive position filter. It never changes an
// entry or exit signal; it only decides whether a signal executes and
// at what size multiplier.
package filter

import "TradePulse/internal/domain/models"

// Filter reasons, logged and persisted with every gated entry.
const (
	ReasonOK           = "ok"
	ReasonADXLow       = "adx_low"
	ReasonATRSideways  = "atr_sideways"
	ReasonLossCooldown = "consecutive_loss_cooldown"
)

// quietATRRatio blocks entries when current ATR falls below this
// fraction of the 30-bar average (market too quiet).
const quietATRRatio = 0.7

// LossStreakSkips is how many entry opportunities are skipped after
// three consecutive losing exits.
const LossStreakSkips = 2

// Result is the filter's verdict for one potential entry.
type Result struct {
	Allowed    bool               `json:"allowed"`
	Multiplier float64            `json:"multiplier"`
	State      models.FilterLevel `json:"state"`
	Reason     string             `json:"reason"`
}

// LevelFor maps ADX to the filter state and position multiplier. Entry
// permission is decided separately (volatility and loss-streak checks).
func LevelFor(adx *float64) (models.FilterLevel, float64) {
	switch {
	case adx == nil || *adx < 18:
		return models.FilterOff, 0.0
	case *adx < 25:
		return models.FilterWeak, 0.5
	case *adx < 35:
		return models.FilterNormal, 1.0
	default:
		return models.FilterStrong, 1.3
	}
}

// Evaluate gates one entry opportunity. Checks in order: ADX regime,
// loss-streak skip counter, volatility contraction.
func Evaluate(adx, atrCurrent, atr30Avg *float64, skipRemaining int) Result {
	state, mult := LevelFor(adx)

	if state == models.FilterOff {
		return Result{Allowed: false, Multiplier: 0, State: state, Reason: ReasonADXLow}
	}
	if skipRemaining > 0 {
		return Result{Allowed: false, Multiplier: mult, State: state, Reason: ReasonLossCooldown}
	}
	if atrCurrent != nil && atr30Avg != nil && *atr30Avg > 0 && *atrCurrent < *atr30Avg*quietATRRatio {
		return Result{Allowed: false, Multiplier: mult, State: state, Reason: ReasonATRSideways}
	}
	return Result{Allowed: true, Multiplier: mult, State: state, Reason: ReasonOK}
}

// ConsecutiveLosses reports whether the last three exits all lost.
func ConsecutiveLosses(lastPnls []float64) bool {
	if len(lastPnls) < 3 {
		return false
	}
	for _, p := range lastPnls[len(lastPnls)-3:] {
		if p >= 0 {
			return false
		}
	}
	return true
}

// RecordExit appends an exit PnL to the bounded ring and arms the
// skip counter when the streak rule trips.
func RecordExit(mem models.FilterMemory, pnlPct float64) models.FilterMemory {
	pnls := append(append([]float64(nil), mem.LastExitPnls...), pnlPct)
	if len(pnls) > 3 {
		pnls = pnls[len(pnls)-3:]
	}
	skip := mem.SkipRemaining
	if ConsecutiveLosses(pnls) {
		skip = LossStreakSkips
	}
	return models.FilterMemory{LastExitPnls: pnls, SkipRemaining: skip}
}

// RecordSkip consumes one suppressed entry opportunity.
func RecordSkip(mem models.FilterMemory) models.FilterMemory {
	skip := mem.SkipRemaining - 1
	if skip < 0 {
		skip = 0
	}
	return models.FilterMemory{LastExitPnls: mem.LastExitPnls, SkipRemaining: skip}
}
