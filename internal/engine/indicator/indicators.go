// Package indicator computes Donchian, EMA, ATR, DMI/ADX, RSI and
// Bollinger values over closed bars. Every function is pure: the same
// bar sequence always yields the same value, which is what keeps live
// and backtest decisions identical.
//
// The offset argument selects the evaluation bar: 0 is the most
// recently closed bar, 1 the bar before it, and so on. When the window
// underruns the available history, functions return ok=false instead of
// a partial value.
package indicator

import (
	"math"

	"TradePulse/internal/domain/models"
)

// DonchianHigh is the max high over `length` bars ending at len-1-offset.
func DonchianHigh(bars []models.Bar, length, offset int) (float64, bool) {
	n := len(bars)
	start := n - length - offset
	if start < 0 || start >= n-offset {
		return 0, false
	}
	hi := bars[start].High
	for _, b := range bars[start+1 : n-offset] {
		if b.High > hi {
			hi = b.High
		}
	}
	return hi, true
}

// DonchianLow is the min low over `length` bars ending at len-1-offset.
func DonchianLow(bars []models.Bar, length, offset int) (float64, bool) {
	n := len(bars)
	start := n - length - offset
	if start < 0 || start >= n-offset {
		return 0, false
	}
	lo := bars[start].Low
	for _, b := range bars[start+1 : n-offset] {
		if b.Low < lo {
			lo = b.Low
		}
	}
	return lo, true
}

// EMA returns the exponential moving average of the last element of
// series, seeded with the simple average of the first `length` values
// and smoothed with k = 2/(length+1).
func EMA(series []float64, length int) (float64, bool) {
	if length <= 0 || len(series) < length {
		return 0, false
	}
	k := 2.0 / float64(length+1)
	val := mean(series[:length])
	for _, x := range series[length:] {
		val = x*k + val*(1-k)
	}
	return val, true
}

// EMASeries returns the EMA for every index >= length-1, oldest first.
// Empty when the series is shorter than length.
func EMASeries(series []float64, length int) []float64 {
	if length <= 0 || len(series) < length {
		return nil
	}
	k := 2.0 / float64(length+1)
	out := make([]float64, 0, len(series)-length+1)
	val := mean(series[:length])
	out = append(out, val)
	for _, x := range series[length:] {
		val = x*k + val*(1-k)
		out = append(out, val)
	}
	return out
}

// SMA is the simple average of the last `length` values.
func SMA(series []float64, length int) (float64, bool) {
	if length <= 0 || len(series) < length {
		return 0, false
	}
	return mean(series[len(series)-length:]), true
}

// ATR is Wilder's average true range at bar len-1-offset: the simple
// mean of the true ranges over the window starting one bar earlier, so
// each TR can consult the previous close. The very first bar of a
// series uses its own close as the previous close.
func ATR(bars []models.Bar, length, offset int) (float64, bool) {
	n := len(bars)
	if length <= 0 || n < length+1+offset {
		return 0, false
	}
	start := n - length - 1 - offset
	sum := 0.0
	count := 0
	for i := start; i < n-offset; i++ {
		prevClose := bars[i].Close
		if i > 0 {
			prevClose = bars[i-1].Close
		}
		sum += trueRange(bars[i].High, bars[i].Low, prevClose)
		count++
	}
	return sum / float64(count), true
}

// DMIADX returns Wilder's +DI, -DI and ADX for the bar at len-1-offset.
// +DM, -DM and TR are smoothed with Wilder's RMA; DX is re-smoothed
// over adxSmoothing bars to produce ADX.
func DMIADX(bars []models.Bar, diLength, adxSmoothing, offset int) (plusDI, minusDI, adx float64, ok bool) {
	n := len(bars)
	need := diLength + adxSmoothing + 2 + offset
	start := n - need - offset
	if n < need || start < 0 {
		return 0, 0, 0, false
	}
	window := bars[start : n-offset]

	trList := make([]float64, 0, len(window)-1)
	plusDM := make([]float64, 0, len(window)-1)
	minusDM := make([]float64, 0, len(window)-1)
	for i := 1; i < len(window); i++ {
		h, l := window[i].High, window[i].Low
		pc := window[i-1].Close
		trList = append(trList, trueRange(h, l, pc))
		up := h - window[i-1].High
		down := window[i-1].Low - l
		if up > down && up > 0 {
			plusDM = append(plusDM, up)
		} else {
			plusDM = append(plusDM, 0)
		}
		if down > up && down > 0 {
			minusDM = append(minusDM, down)
		} else {
			minusDM = append(minusDM, 0)
		}
	}

	trSmooth := rma(trList, diLength)
	plusSmooth := rma(plusDM, diLength)
	minusSmooth := rma(minusDM, diLength)
	if len(trSmooth) == 0 {
		return 0, 0, 0, false
	}

	last := len(trSmooth) - 1
	if trSmooth[last] != 0 {
		plusDI = 100 * plusSmooth[last] / trSmooth[last]
		minusDI = 100 * minusSmooth[last] / trSmooth[last]
	}

	dx := make([]float64, len(trSmooth))
	for i := range trSmooth {
		var pd, md float64
		if trSmooth[i] != 0 {
			pd = 100 * plusSmooth[i] / trSmooth[i]
			md = 100 * minusSmooth[i] / trSmooth[i]
		}
		if sum := pd + md; sum != 0 {
			dx[i] = 100 * math.Abs(pd-md) / sum
		}
	}
	adxSeries := rma(dx, adxSmoothing)
	return plusDI, minusDI, adxSeries[len(adxSeries)-1], true
}

// RSI is Wilder's relative strength index for the bar at len-1-offset.
// Returns 100 when the average loss over the window is zero.
func RSI(series []float64, length, offset int) (float64, bool) {
	n := len(series)
	if length <= 0 || n < length+1+offset {
		return 0, false
	}
	start := n - length - 1 - offset
	var gains, losses float64
	for i := start + 1; i < n-offset; i++ {
		ch := series[i] - series[i-1]
		if ch > 0 {
			gains += ch
		} else {
			losses -= ch
		}
	}
	avgGain := gains / float64(length)
	avgLoss := losses / float64(length)
	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// Bollinger returns (upper, mid, lower) for the bar at len-1-offset.
// Mid is SMA(close, length); the bands are mult population standard
// deviations away.
func Bollinger(closes []float64, length int, mult float64, offset int) (upper, mid, lower float64, ok bool) {
	n := len(closes)
	if length <= 0 || n < length+offset {
		return 0, 0, 0, false
	}
	window := closes[n-length-offset : n-offset]
	mid = mean(window)
	variance := 0.0
	for _, x := range window {
		d := x - mid
		variance += d * d
	}
	variance /= float64(len(window))
	std := math.Sqrt(variance)
	return mid + mult*std, mid, mid - mult*std, true
}

// rma is Wilder's smoothing: element 0 seeds with the simple mean of
// the first `length` raw values (or the first value when the series is
// shorter), then applies alpha = 1/length.
func rma(series []float64, length int) []float64 {
	if len(series) == 0 {
		return nil
	}
	alpha := 1.0 / float64(length)
	out := make([]float64, len(series))
	if len(series) >= length {
		out[0] = mean(series[:length])
	} else {
		out[0] = series[0]
	}
	for i := 1; i < len(series); i++ {
		out[i] = alpha*series[i] + (1-alpha)*out[i-1]
	}
	return out
}

func trueRange(high, low, prevClose float64) float64 {
	tr := high - low
	if d := math.Abs(high - prevClose); d > tr {
		tr = d
	}
	if d := math.Abs(low - prevClose); d > tr {
		tr = d
	}
	return tr
}

func mean(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
