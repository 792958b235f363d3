package strategy

import (
	"testing"

	"TradePulse/internal/domain/models"
)

func f(v float64) *float64 { return &v }

// longSetup is a snapshot where every long-entry condition holds:
// close breaks the entry channel by more than the ATR margin, price is
// above a rising EMA, ADX is strong and rising, +DI dominates.
func longSetup() *models.Snapshot {
	return &models.Snapshot{
		Close:      110,
		High:       111,
		Low:        109,
		EMA200:     f(100),
		EMA200Prev: f(99),
		HiEntry:    f(105),
		LoEntry:    f(95),
		HiExit:     f(104),
		LoExit:     f(96),
		PlusDI:     f(30),
		MinusDI:    f(10),
		ADX:        f(28),
		ADXPrev:    f(25),
		ATR:        f(2),
		ATR30:      f(2),
	}
}

func shortSetup() *models.Snapshot {
	return &models.Snapshot{
		Close:      90,
		High:       91,
		Low:        89,
		EMA200:     f(100),
		EMA200Prev: f(101),
		HiEntry:    f(105),
		LoEntry:    f(95),
		HiExit:     f(104),
		LoExit:     f(96),
		PlusDI:     f(10),
		MinusDI:    f(30),
		ADX:        f(28),
		ADXPrev:    f(25),
		ATR:        f(2),
		ATR30:      f(2),
	}
}

func TestEvaluateNilInputs(t *testing.T) {
	p := DefaultParams()
	if got := Evaluate(nil, Position{}, p); got != models.ActionNone {
		t.Fatalf("nil snapshot: got %v", got)
	}
	snap := longSetup()
	snap.EMA200 = nil
	if got := Evaluate(snap, Position{}, p); got != models.ActionNone {
		t.Fatalf("nil ema: got %v", got)
	}
	snap = longSetup()
	snap.ADX = nil
	if got := Evaluate(snap, Position{}, p); got != models.ActionNone {
		t.Fatalf("nil adx: got %v", got)
	}
}

func TestLongEntry(t *testing.T) {
	p := DefaultParams()
	if got := Evaluate(longSetup(), Position{}, p); got != models.ActionLongEntry {
		t.Fatalf("got %v", got)
	}
}

func TestShortEntry(t *testing.T) {
	p := DefaultParams()
	if got := Evaluate(shortSetup(), Position{}, p); got != models.ActionShortEntry {
		t.Fatalf("got %v", got)
	}
}

func TestEntryRejections(t *testing.T) {
	p := DefaultParams()

	snap := longSetup()
	snap.ADX = f(p.ADXMin - 1)
	if got := Evaluate(snap, Position{}, p); got != models.ActionNone {
		t.Fatalf("weak adx: got %v", got)
	}

	snap = longSetup()
	snap.ADX = f(24)
	snap.ADXPrev = f(25)
	if got := Evaluate(snap, Position{}, p); got != models.ActionNone {
		t.Fatalf("falling adx: got %v", got)
	}

	// Breakout inside the ATR margin: 105 < close <= 105 + 0.2*2.
	snap = longSetup()
	snap.Close = 105.3
	if got := Evaluate(snap, Position{}, p); got != models.ActionNone {
		t.Fatalf("margin not cleared: got %v", got)
	}

	snap = longSetup()
	snap.EMA200 = f(120) // price below trend filter
	if got := Evaluate(snap, Position{}, p); got != models.ActionNone {
		t.Fatalf("below ema: got %v", got)
	}

	snap = longSetup()
	snap.EMA200Prev = f(101) // falling slope
	if got := Evaluate(snap, Position{}, p); got != models.ActionNone {
		t.Fatalf("falling slope: got %v", got)
	}

	snap = longSetup()
	snap.PlusDI, snap.MinusDI = f(10), f(30)
	if got := Evaluate(snap, Position{}, p); got != models.ActionNone {
		t.Fatalf("di dominance missing: got %v", got)
	}

	snap = longSetup()
	snap.ATR = f(0)
	if got := Evaluate(snap, Position{}, p); got != models.ActionNone {
		t.Fatalf("zero atr: got %v", got)
	}
}

func TestSlopeAndRisingFiltersOptional(t *testing.T) {
	p := DefaultParams()
	p.UseEMASlope = false
	p.UseADXRising = false

	snap := longSetup()
	snap.EMA200Prev = f(101)
	snap.ADXPrev = f(40)
	if got := Evaluate(snap, Position{}, p); got != models.ActionLongEntry {
		t.Fatalf("filters disabled: got %v", got)
	}
}

func TestStopBeforeChannelExit(t *testing.T) {
	p := DefaultParams()
	// Close would also trip the channel exit, but the intrabar stop
	// must win.
	snap := longSetup()
	snap.Close = 95
	snap.Low = 93
	pos := Position{Side: models.SideLong, StopPrice: f(94)}
	if got := Evaluate(snap, pos, p); got != models.ActionLongExit {
		t.Fatalf("got %v", got)
	}

	snap = shortSetup()
	snap.Close = 105
	snap.High = 107
	pos = Position{Side: models.SideShort, StopPrice: f(106)}
	if got := Evaluate(snap, pos, p); got != models.ActionShortExit {
		t.Fatalf("got %v", got)
	}
}

func TestChannelExit(t *testing.T) {
	p := DefaultParams()
	snap := longSetup()
	snap.Close = 95.5 // below LoExit=96, stop untouched
	snap.Low = 95.2
	pos := Position{Side: models.SideLong, StopPrice: f(90)}
	if got := Evaluate(snap, pos, p); got != models.ActionLongExit {
		t.Fatalf("got %v", got)
	}

	snap = shortSetup()
	snap.Close = 104.5 // above HiExit=104
	snap.High = 104.8
	pos = Position{Side: models.SideShort, StopPrice: f(110)}
	if got := Evaluate(snap, pos, p); got != models.ActionShortExit {
		t.Fatalf("got %v", got)
	}
}

func TestNoEntryWhileInPosition(t *testing.T) {
	p := DefaultParams()
	snap := longSetup() // perfect long setup
	pos := Position{Side: models.SideLong, StopPrice: f(90)}
	if got := Evaluate(snap, pos, p); got != models.ActionNone {
		t.Fatalf("in-position entry: got %v", got)
	}
}

func TestParamsMerge(t *testing.T) {
	p := DefaultParams()
	if p.EMALen != 200 || p.EntryLen != 20 || p.ExitLen != 10 || p.ADXMin != 20 {
		t.Fatalf("unexpected defaults %+v", p)
	}
	merged, err := p.Merge([]byte(`{"adx_min": 25, "entry_len": 30}`))
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.ADXMin != 25 || merged.EntryLen != 30 {
		t.Fatalf("overlay not applied %+v", merged)
	}
	if merged.ExitLen != 10 || merged.UseEMASlope != true {
		t.Fatalf("untouched fields changed %+v", merged)
	}
	if p.ADXMin != 20 {
		t.Fatalf("receiver modified")
	}
	if _, err := p.Merge([]byte(`{`)); err == nil {
		t.Fatalf("expected error on bad overlay")
	}
}

func TestMaxLookback(t *testing.T) {
	p := DefaultParams()
	if p.MaxLookback() != 200 {
		t.Fatalf("unexpected lookback %d", p.MaxLookback())
	}
	p.EntryLen = 300
	if p.MaxLookback() != 300 {
		t.Fatalf("unexpected lookback %d", p.MaxLookback())
	}
}
