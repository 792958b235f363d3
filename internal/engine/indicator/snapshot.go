package indicator

import "TradePulse/internal/domain/models"

// Lengths selects the lookbacks used to build a Snapshot.
type Lengths struct {
	EMALen   int
	EntryLen int
	ExitLen  int
	DMILen   int
	ATRLen   int
}

// avgATRLen is the long ATR window the adaptive filter compares the
// current ATR against.
const avgATRLen = 30

// ComputeSnapshot computes every indicator the breakout strategy needs
// for the most recently closed bar. Donchian windows use offset=1 so a
// breakout is always measured against the prior N bars, never against
// the evaluation bar's own extremes.
func ComputeSnapshot(bars []models.Bar, l Lengths) *models.Snapshot {
	if len(bars) == 0 {
		return nil
	}
	closes := models.Closes(bars)
	last := bars[len(bars)-1]

	snap := &models.Snapshot{
		Close: last.Close,
		High:  last.High,
		Low:   last.Low,
	}

	if v, ok := EMA(closes, l.EMALen); ok {
		snap.EMA200 = ptr(v)
	}
	if series := EMASeries(closes, l.EMALen); len(series) >= 2 {
		snap.EMA200Prev = ptr(series[len(series)-2])
	}

	if v, ok := DonchianHigh(bars, l.EntryLen, 1); ok {
		snap.HiEntry = ptr(v)
	}
	if v, ok := DonchianLow(bars, l.EntryLen, 1); ok {
		snap.LoEntry = ptr(v)
	}
	if v, ok := DonchianHigh(bars, l.ExitLen, 1); ok {
		snap.HiExit = ptr(v)
	}
	if v, ok := DonchianLow(bars, l.ExitLen, 1); ok {
		snap.LoExit = ptr(v)
	}

	if pdi, mdi, adx, ok := DMIADX(bars, l.DMILen, l.DMILen, 0); ok {
		snap.PlusDI = ptr(pdi)
		snap.MinusDI = ptr(mdi)
		snap.ADX = ptr(adx)
	}
	if _, _, adxPrev, ok := DMIADX(bars, l.DMILen, l.DMILen, 1); ok {
		snap.ADXPrev = ptr(adxPrev)
	}

	if v, ok := ATR(bars, l.ATRLen, 0); ok {
		snap.ATR = ptr(v)
	}
	if v, ok := ATR(bars, avgATRLen, 0); ok {
		snap.ATR30 = ptr(v)
	}
	return snap
}

func ptr(v float64) *float64 { return &v }
