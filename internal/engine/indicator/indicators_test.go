package indicator

import (
	"math"
	"testing"

	"TradePulse/internal/domain/models"
)

// rangeBars builds bars with close = start + i*step and a fixed 1-unit
// wick on each side.
func rangeBars(n int, start, step float64) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		c := start + float64(i)*step
		bars[i] = models.Bar{
			OpenTime: int64(i) * 3600_000,
			Open:     c - step,
			High:     c + 1,
			Low:      c - 1,
			Close:    c,
			Volume:   1,
		}
	}
	return bars
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestDonchianShortWindow(t *testing.T) {
	bars := rangeBars(5, 100, 1)
	if _, ok := DonchianHigh(bars, 5, 1); ok {
		t.Fatalf("expected not ok for 5 bars, length 5, offset 1")
	}
	if _, ok := DonchianHigh(bars, 5, 0); !ok {
		t.Fatalf("expected ok for 5 bars, length 5, offset 0")
	}
	if _, ok := DonchianLow(nil, 1, 0); ok {
		t.Fatalf("expected not ok for empty bars")
	}
}

func TestDonchianExcludesEvaluationBar(t *testing.T) {
	bars := rangeBars(5, 100, 1)
	bars[4].High = 500
	bars[4].Low = 1

	hi, ok := DonchianHigh(bars, 4, 1)
	if !ok {
		t.Fatalf("expected ok")
	}
	if hi != bars[3].High {
		t.Fatalf("offset=1 high should ignore last bar: got %v want %v", hi, bars[3].High)
	}

	lo, ok := DonchianLow(bars, 4, 1)
	if !ok {
		t.Fatalf("expected ok")
	}
	if lo != bars[0].Low {
		t.Fatalf("offset=1 low should ignore last bar: got %v want %v", lo, bars[0].Low)
	}

	hi0, _ := DonchianHigh(bars, 4, 0)
	if hi0 != 500 {
		t.Fatalf("offset=0 high should include last bar: got %v", hi0)
	}
}

func TestEMA(t *testing.T) {
	series := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	got, ok := EMA(series, 5)
	if !ok {
		t.Fatalf("expected ok")
	}
	// seed = mean(1..5) = 3, k = 1/3, then 4, 5, 6, 7, 8
	if !almostEqual(got, 8) {
		t.Fatalf("unexpected ema %v", got)
	}
	if _, ok := EMA(series[:4], 5); ok {
		t.Fatalf("expected not ok below seed length")
	}
}

func TestEMASeries(t *testing.T) {
	series := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	got := EMASeries(series, 5)
	if len(got) != 6 {
		t.Fatalf("unexpected length %d", len(got))
	}
	if !almostEqual(got[0], 3) || !almostEqual(got[5], 8) {
		t.Fatalf("unexpected series %v", got)
	}
	if EMASeries(series[:3], 5) != nil {
		t.Fatalf("expected nil below seed length")
	}
}

func TestSMA(t *testing.T) {
	got, ok := SMA([]float64{1, 2, 3, 4, 5, 6}, 3)
	if !ok || !almostEqual(got, 5) {
		t.Fatalf("unexpected sma %v ok=%v", got, ok)
	}
}

func TestATRConstantRange(t *testing.T) {
	bars := rangeBars(10, 100, 0)
	got, ok := ATR(bars, 3, 0)
	if !ok {
		t.Fatalf("expected ok")
	}
	if !almostEqual(got, 2) {
		t.Fatalf("unexpected atr %v", got)
	}
	if _, ok := ATR(bars[:3], 3, 0); ok {
		t.Fatalf("expected not ok with only length bars")
	}
	if _, ok := ATR(bars[:4], 3, 0); !ok {
		t.Fatalf("expected ok with length+1 bars")
	}
}

func TestATRUsesGapToPrevClose(t *testing.T) {
	bars := []models.Bar{
		{High: 101, Low: 99, Close: 100},
		{High: 110, Low: 108, Close: 109},
	}
	got, ok := ATR(bars, 1, 0)
	if !ok {
		t.Fatalf("expected ok")
	}
	// TR0 = 2 (own close as prev), TR1 = |110-100| = 10, mean = 6
	if !almostEqual(got, 6) {
		t.Fatalf("unexpected atr %v", got)
	}
}

func TestRSI(t *testing.T) {
	up := []float64{1, 2, 3, 4, 5, 6}
	got, ok := RSI(up, 3, 0)
	if !ok || got != 100 {
		t.Fatalf("all-gain rsi should be 100: got %v ok=%v", got, ok)
	}

	series := []float64{10, 11, 10.5, 11.5}
	got, ok = RSI(series, 2, 0)
	if !ok {
		t.Fatalf("expected ok")
	}
	// avgGain = 0.5, avgLoss = 0.25, rs = 2
	want := 100 - 100/3.0
	if !almostEqual(got, want) {
		t.Fatalf("unexpected rsi %v want %v", got, want)
	}

	if _, ok := RSI(series[:2], 2, 0); ok {
		t.Fatalf("expected not ok below length+1")
	}
}

func TestBollinger(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5}
	upper, mid, lower, ok := Bollinger(closes, 5, 2, 0)
	if !ok {
		t.Fatalf("expected ok")
	}
	std := math.Sqrt(2) // population variance of 1..5 is 2
	if !almostEqual(mid, 3) || !almostEqual(upper, 3+2*std) || !almostEqual(lower, 3-2*std) {
		t.Fatalf("unexpected bands %v %v %v", upper, mid, lower)
	}
	if _, _, _, ok := Bollinger(closes, 5, 2, 1); ok {
		t.Fatalf("expected not ok when offset pushes past history")
	}
}

func TestDMIADXUptrend(t *testing.T) {
	bars := rangeBars(12, 100, 2)
	pdi, mdi, adx, ok := DMIADX(bars, 3, 3, 0)
	if !ok {
		t.Fatalf("expected ok")
	}
	if pdi <= mdi {
		t.Fatalf("uptrend should have +DI > -DI: %v vs %v", pdi, mdi)
	}
	if mdi != 0 {
		t.Fatalf("steady uptrend should have -DI = 0: %v", mdi)
	}
	if !almostEqual(adx, 100) {
		t.Fatalf("pure trend adx should be 100: %v", adx)
	}
}

func TestDMIADXInsufficient(t *testing.T) {
	bars := rangeBars(7, 100, 2)
	if _, _, _, ok := DMIADX(bars, 3, 3, 0); ok {
		t.Fatalf("expected not ok below di+adx+2 bars")
	}
	if _, _, _, ok := DMIADX(rangeBars(8, 100, 2), 3, 3, 1); ok {
		t.Fatalf("expected not ok when offset exceeds history")
	}
}

func TestComputeSnapshotPurity(t *testing.T) {
	bars := rangeBars(60, 100, 1)
	orig := make([]models.Bar, len(bars))
	copy(orig, bars)

	l := Lengths{EMALen: 10, EntryLen: 5, ExitLen: 3, DMILen: 5, ATRLen: 5}
	first := ComputeSnapshot(bars, l)
	second := ComputeSnapshot(bars, l)
	if first == nil || second == nil {
		t.Fatalf("expected snapshots")
	}
	for i := range bars {
		if bars[i] != orig[i] {
			t.Fatalf("input bars mutated at %d", i)
		}
	}
	if *first.EMA200 != *second.EMA200 || *first.ADX != *second.ADX || *first.ATR != *second.ATR {
		t.Fatalf("snapshot not deterministic")
	}
}

func TestComputeSnapshotShortHistory(t *testing.T) {
	bars := rangeBars(5, 100, 1)
	l := Lengths{EMALen: 200, EntryLen: 20, ExitLen: 10, DMILen: 14, ATRLen: 14}
	snap := ComputeSnapshot(bars, l)
	if snap == nil {
		t.Fatalf("expected snapshot with price fields")
	}
	if snap.Close != bars[4].Close {
		t.Fatalf("unexpected close %v", snap.Close)
	}
	if snap.EMA200 != nil || snap.HiEntry != nil || snap.ADX != nil || snap.ATR != nil {
		t.Fatalf("indicators should be nil on short history")
	}
	if ComputeSnapshot(nil, l) != nil {
		t.Fatalf("expected nil snapshot for empty bars")
	}
}
