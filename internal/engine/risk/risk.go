// Package risk sizes orders from account equity and stop distance,
// then normalizes the result against exchange symbol filters.
package risk

import (
	"errors"
	"math"

	"TradePulse/internal/domain/models"
)

// ErrUnsizable is returned when no valid quantity exists for the
// inputs: zero stop distance, zero price, or a size below the
// exchange minimum.
var ErrUnsizable = errors.New("no tradable quantity for inputs")

// RoundDownStep floors value to a multiple of step. A non-positive
// step returns the value unchanged.
func RoundDownStep(value, step float64) float64 {
	if step <= 0 {
		return value
	}
	factor := 1.0 / step
	return math.Floor(value*factor) / factor
}

// RoundPrice snaps a price to the nearest tick.
func RoundPrice(value, tick float64) float64 {
	if tick <= 0 {
		return value
	}
	factor := 1.0 / tick
	return math.Round(value*factor) / factor
}

// ComputeQuantity sizes a position so the distance to the ATR stop
// risks equity*lossPct:
//
//	qty = (equity * lossPct) / (atrMult * atr)
//
// floored to the symbol's step size. Returns ErrUnsizable when the
// floored quantity is zero or its notional is under the exchange
// minimum.
func ComputeQuantity(equityUSDT, lossPct, atr, atrMult, markPrice float64, f models.SymbolFilters) (float64, error) {
	if atr <= 0 || markPrice <= 0 {
		return 0, ErrUnsizable
	}
	stopDistance := atrMult * atr
	if stopDistance <= 0 {
		return 0, ErrUnsizable
	}
	qty := RoundDownStep(equityUSDT*lossPct/stopDistance, f.StepSize)
	if qty <= 0 {
		return 0, ErrUnsizable
	}
	if f.MinNotional > 0 && qty*markPrice < f.MinNotional {
		return 0, ErrUnsizable
	}
	return qty, nil
}
