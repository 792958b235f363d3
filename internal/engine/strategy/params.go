package strategy

import (
	"encoding/json"
	"fmt"

	"github.com/creasty/defaults"

	"TradePulse/internal/engine/indicator"
)

// Params is the breakout strategy's complete parameter set. Overrides
// arrive as JSON overlays merged onto the defaults; unknown keys are
// rejected at unmarshal time by the typed struct.
type Params struct {
	EMALen   int `json:"ema_len" default:"200"`
	EntryLen int `json:"entry_len" default:"20"`
	ExitLen  int `json:"exit_len" default:"10"` // shorter exit channel gives back less profit
	DMILen   int `json:"dmi_len" default:"14"`
	ATRLen   int `json:"atr_len" default:"14"`

	ADXMin            float64 `json:"adx_min" default:"20"`
	BreakoutATRMargin float64 `json:"breakout_atr_margin" default:"0.2"`
	UseEMASlope       bool    `json:"use_ema_slope" default:"true"`
	UseADXRising      bool    `json:"use_adx_rising" default:"true"`

	StopMult     float64 `json:"stop_mult" default:"2.0"`
	LossPct      float64 `json:"loss_pct" default:"0.01"`
	ATRMult      float64 `json:"atr_mult" default:"2.0"`
	Leverage     int     `json:"leverage" default:"5"`
	CooldownBars int     `json:"cooldown_bars" default:"0"` // bars to wait after an exit before re-entry
}

// DefaultParams returns the strategy defaults.
func DefaultParams() Params {
	var p Params
	if err := defaults.Set(&p); err != nil {
		panic(fmt.Sprintf("strategy defaults: %v", err))
	}
	return p
}

// Merge applies a JSON overlay onto p and returns the result. The
// receiver is not modified.
func (p Params) Merge(overlay []byte) (Params, error) {
	if len(overlay) == 0 {
		return p, nil
	}
	merged := p
	if err := json.Unmarshal(overlay, &merged); err != nil {
		return p, fmt.Errorf("merge params: %w", err)
	}
	return merged, nil
}

// Lengths returns the indicator lookbacks for this parameter set.
func (p Params) Lengths() indicator.Lengths {
	return indicator.Lengths{
		EMALen:   p.EMALen,
		EntryLen: p.EntryLen,
		ExitLen:  p.ExitLen,
		DMILen:   p.DMILen,
		ATRLen:   p.ATRLen,
	}
}

// MaxLookback is the longest lookback any indicator in this set uses.
func (p Params) MaxLookback() int {
	m := p.EMALen
	for _, v := range []int{p.EntryLen, p.ExitLen, p.DMILen, p.ATRLen} {
		if v > m {
			m = v
		}
	}
	return m
}
