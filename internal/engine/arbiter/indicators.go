package arbiter

import (
	"TradePulse/internal/domain/models"
	"TradePulse/internal/engine/indicator"
)

// Indicator lookbacks are fixed for the arbiter: it classifies regime,
// it does not trade, so its definitions never follow strategy params.
const (
	adxLen      = 14
	emaLen      = 50
	atrLen      = 14
	atrPctMALen = 50
	atrHotMult  = 1.5
)

// Indicators is the arbiter's per-bar indicator set.
type Indicators struct {
	ADX         *float64 `json:"adx"`
	Close       float64  `json:"close"`
	EMANow      *float64 `json:"ema50_now"`
	EMAPrev     *float64 `json:"ema50_prev"`
	EMASlopePct *float64 `json:"ema_slope_pct"`
	ATR         *float64 `json:"atr"`
	ATRPct      *float64 `json:"atr_pct"`
	ATRPctMA    *float64 `json:"atr_pct_ma50"`
	ATRHot      bool     `json:"atr_hot"`
}

// ComputeIndicators builds the arbiter's view of the last closed bar:
// ADX(14), the normalized EMA50 slope in percent of price, and the
// ATR-hot flag (ATR% above 1.5x its 50-bar average).
func ComputeIndicators(bars []models.Bar) Indicators {
	minBars := emaLen
	if v := adxLen + 14; v > minBars {
		minBars = v
	}
	if v := atrLen + 1; v > minBars {
		minBars = v
	}
	if v := atrPctMALen + atrLen; v > minBars {
		minBars = v
	}
	if len(bars) < minBars {
		return Indicators{}
	}

	closes := models.Closes(bars)
	lastClose := closes[len(closes)-1]
	ind := Indicators{Close: lastClose}

	if _, _, adx, ok := indicator.DMIADX(bars, adxLen, adxLen, 0); ok {
		ind.ADX = &adx
	}

	emaSeries := indicator.EMASeries(closes, emaLen)
	if len(emaSeries) >= 1 {
		v := emaSeries[len(emaSeries)-1]
		ind.EMANow = &v
	}
	if len(emaSeries) >= 2 {
		v := emaSeries[len(emaSeries)-2]
		ind.EMAPrev = &v
	}
	if ind.EMANow != nil && ind.EMAPrev != nil && lastClose != 0 {
		slope := (*ind.EMANow - *ind.EMAPrev) / lastClose * 100
		ind.EMASlopePct = &slope
	}

	if atr, ok := indicator.ATR(bars, atrLen, 0); ok {
		ind.ATR = &atr
		if lastClose != 0 {
			pct := atr / lastClose * 100
			ind.ATRPct = &pct
		}
	}

	// ATR% history: the SMA of atr_pct over the last 50 bars.
	var atrPcts []float64
	for i := 0; i < atrPctMALen; i++ {
		if len(bars) < atrLen+1+i {
			break
		}
		a, ok := indicator.ATR(bars, atrLen, i)
		if !ok {
			break
		}
		c := bars[len(bars)-1-i].Close
		if a != 0 && c != 0 {
			atrPcts = append(atrPcts, a/c*100)
		}
	}
	if len(atrPcts) >= atrPctMALen {
		sum := 0.0
		for _, v := range atrPcts {
			sum += v
		}
		ma := sum / float64(len(atrPcts))
		ind.ATRPctMA = &ma
	}

	if ind.ATRPct != nil && ind.ATRPctMA != nil && *ind.ATRPctMA > 0 {
		ind.ATRHot = *ind.ATRPct > *ind.ATRPctMA*atrHotMult
	}
	return ind
}
