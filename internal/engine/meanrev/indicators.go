package meanrev

import (
	"TradePulse/internal/domain/models"
	"TradePulse/internal/engine/indicator"
)

// Band zones relative to the Bollinger envelope.
type BandZone string

const (
	ZoneInside     BandZone = "inside"
	ZoneAboveUpper BandZone = "above_upper"
	ZoneBelowLower BandZone = "below_lower"
)

// RSI status labels for the dashboard.
type RSIStatus string

const (
	RSINeutral    RSIStatus = "neutral"
	RSIOversold   RSIStatus = "oversold"
	RSIOverbought RSIStatus = "overbought"
)

// Indicators is the mean-reversion strategy's per-bar indicator set:
// BB(20,2), RSI(14), ADX(14), ATR(14).
type Indicators struct {
	Close     float64   `json:"close"`
	BBUpper   *float64  `json:"bb_upper"`
	BBMid     *float64  `json:"bb_mid"`
	BBLower   *float64  `json:"bb_lower"`
	BBZone    BandZone  `json:"bbZone"`
	BBWidth   *float64  `json:"bbWidth"`
	RSI       *float64  `json:"rsi"`
	RSIStatus RSIStatus `json:"rsiStatus"`
	ADX       *float64  `json:"adx"`
	ATR       *float64  `json:"atr"`
	ATRPct    *float64  `json:"atrPct"`
}

// Lengths for the mean-reversion indicator set.
const (
	bbLen  = 20
	bbMult = 2.0
	rsiLen = 14
	mrADX  = 14
	mrATR  = 14
)

// ComputeIndicators builds the mean-reversion view of the last closed bar.
func ComputeIndicators(bars []models.Bar) Indicators {
	if len(bars) == 0 {
		return Indicators{BBZone: ZoneInside, RSIStatus: RSINeutral}
	}
	closes := models.Closes(bars)
	close := bars[len(bars)-1].Close
	ind := Indicators{Close: close, BBZone: ZoneInside, RSIStatus: RSINeutral}

	if u, m, l, ok := indicator.Bollinger(closes, bbLen, bbMult, 0); ok {
		ind.BBUpper, ind.BBMid, ind.BBLower = &u, &m, &l
		if m != 0 {
			w := (u - l) / m * 100
			ind.BBWidth = &w
		}
		if close > u {
			ind.BBZone = ZoneAboveUpper
		} else if close < l {
			ind.BBZone = ZoneBelowLower
		}
	}

	if v, ok := indicator.RSI(closes, rsiLen, 0); ok {
		ind.RSI = &v
		if v <= 30 {
			ind.RSIStatus = RSIOversold
		} else if v >= 70 {
			ind.RSIStatus = RSIOverbought
		}
	}

	if _, _, adx, ok := indicator.DMIADX(bars, mrADX, mrADX, 0); ok {
		ind.ADX = &adx
	}
	if v, ok := indicator.ATR(bars, mrATR, 0); ok {
		ind.ATR = &v
		if close != 0 {
			pct := v / close * 100
			ind.ATRPct = &pct
		}
	}
	return ind
}
