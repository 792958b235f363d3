package meanrev

import "TradePulse/internal/domain/models"

// Default entry thresholds.
const (
	DefaultADXRangeMax    = 16.0
	DefaultRSILongMax     = 30.0
	DefaultRSIShortMin    = 70.0
	DefaultATRPctHotLimit = 3.0
)

// SignalChecks is the per-side entry checklist. Every field must hold for
// a signal to fire.
type SignalChecks struct {
	ADXOK            bool `json:"adx_ok"`
	PriceOutsideBB   bool `json:"price_outside_bb"`
	RSIOK            bool `json:"rsi_ok"`
	ReentryConfirmed bool `json:"reentry_confirmed"`
	CooldownOK       bool `json:"cooldown_ok"`
	RiskOK           bool `json:"risk_ok"`
}

// CheckInput carries the gate context shared by both sides.
type CheckInput struct {
	ADXRangeMax           float64
	RSILongMax            float64
	RSIShortMin           float64
	ATRPctHotLimit        float64
	CooldownRemainingBars int
	TradingAllowed        bool
	ReentryConfirmed      bool
}

// DefaultCheckInput returns the permissive defaults used when no gate
// context applies.
func DefaultCheckInput() CheckInput {
	return CheckInput{
		ADXRangeMax:      DefaultADXRangeMax,
		RSILongMax:       DefaultRSILongMax,
		RSIShortMin:      DefaultRSIShortMin,
		ATRPctHotLimit:   DefaultATRPctHotLimit,
		TradingAllowed:   true,
		ReentryConfirmed: true,
	}
}

// RegimeFromADX classifies the regime from ADX alone. Used standalone when
// the arbitration controller is not driving this strategy.
func RegimeFromADX(adx *float64, adxRangeMax float64) models.Regime {
	if adx == nil {
		return models.RegimeNeutral
	}
	if *adx < adxRangeMax {
		return models.RegimeRange
	}
	if *adx < 25 {
		return models.RegimeNeutral
	}
	return models.RegimeTrend
}

// EvaluateLong runs the long-entry checklist against the indicator set.
func EvaluateLong(ind Indicators, in CheckInput) SignalChecks {
	atrHot := ind.ATRPct != nil && *ind.ATRPct >= in.ATRPctHotLimit
	cooldownOK := in.CooldownRemainingBars <= 0
	return SignalChecks{
		ADXOK:            ind.ADX != nil && *ind.ADX < in.ADXRangeMax,
		PriceOutsideBB:   ind.BBZone == ZoneBelowLower,
		RSIOK:            ind.RSI != nil && *ind.RSI < in.RSILongMax,
		ReentryConfirmed: in.ReentryConfirmed,
		CooldownOK:       cooldownOK,
		RiskOK:           in.TradingAllowed && cooldownOK && !atrHot,
	}
}

// EvaluateShort is the mirror of EvaluateLong.
func EvaluateShort(ind Indicators, in CheckInput) SignalChecks {
	atrHot := ind.ATRPct != nil && *ind.ATRPct >= in.ATRPctHotLimit
	cooldownOK := in.CooldownRemainingBars <= 0
	return SignalChecks{
		ADXOK:            ind.ADX != nil && *ind.ADX < in.ADXRangeMax,
		PriceOutsideBB:   ind.BBZone == ZoneAboveUpper,
		RSIOK:            ind.RSI != nil && *ind.RSI > in.RSIShortMin,
		ReentryConfirmed: in.ReentryConfirmed,
		CooldownOK:       cooldownOK,
		RiskOK:           in.TradingAllowed && cooldownOK && !atrHot,
	}
}

// Ready reports whether every check holds.
func (c SignalChecks) Ready() bool {
	return c.ADXOK && c.PriceOutsideBB && c.RSIOK &&
		c.ReentryConfirmed && c.CooldownOK && c.RiskOK
}

// Score maps the checklist to 0..100 by the share of checks passing.
func (c SignalChecks) Score() int {
	n := 0
	for _, ok := range []bool{c.ADXOK, c.PriceOutsideBB, c.RSIOK, c.ReentryConfirmed, c.CooldownOK, c.RiskOK} {
		if ok {
			n++
		}
	}
	score := n * 100 / 6
	if score > 100 {
		score = 100
	}
	return score
}
