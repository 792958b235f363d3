package filter

import (
	"testing"

	"TradePulse/internal/domain/models"
)

func f(v float64) *float64 { return &v }

func TestLevelFor(t *testing.T) {
	cases := []struct {
		adx   *float64
		state models.FilterLevel
		mult  float64
	}{
		{nil, models.FilterOff, 0},
		{f(10), models.FilterOff, 0},
		{f(17.9), models.FilterOff, 0},
		{f(18), models.FilterWeak, 0.5},
		{f(24.9), models.FilterWeak, 0.5},
		{f(25), models.FilterNormal, 1.0},
		{f(34.9), models.FilterNormal, 1.0},
		{f(35), models.FilterStrong, 1.3},
		{f(60), models.FilterStrong, 1.3},
	}
	for _, c := range cases {
		state, mult := LevelFor(c.adx)
		if state != c.state || mult != c.mult {
			t.Fatalf("adx=%v: got %v/%v want %v/%v", c.adx, state, mult, c.state, c.mult)
		}
	}
}

func TestEvaluateOrder(t *testing.T) {
	// OFF beats everything else.
	r := Evaluate(f(10), f(1), f(10), 5)
	if r.Allowed || r.Reason != ReasonADXLow || r.Multiplier != 0 {
		t.Fatalf("unexpected %+v", r)
	}

	// Skip counter beats the volatility check.
	r = Evaluate(f(30), f(1), f(10), 1)
	if r.Allowed || r.Reason != ReasonLossCooldown {
		t.Fatalf("unexpected %+v", r)
	}
	if r.State != models.FilterNormal || r.Multiplier != 1.0 {
		t.Fatalf("state should still reflect adx: %+v", r)
	}

	// Quiet market: ATR under 0.7x the 30-bar average.
	r = Evaluate(f(30), f(6.9), f(10), 0)
	if r.Allowed || r.Reason != ReasonATRSideways {
		t.Fatalf("unexpected %+v", r)
	}
	r = Evaluate(f(30), f(7), f(10), 0)
	if !r.Allowed || r.Reason != ReasonOK {
		t.Fatalf("at exactly 0.7x the entry should pass: %+v", r)
	}

	// Missing ATR inputs skip the volatility check.
	r = Evaluate(f(30), nil, f(10), 0)
	if !r.Allowed {
		t.Fatalf("unexpected %+v", r)
	}
}

func TestConsecutiveLosses(t *testing.T) {
	if ConsecutiveLosses([]float64{-1, -2}) {
		t.Fatalf("two losses should not trip")
	}
	if !ConsecutiveLosses([]float64{-1, -2, -3}) {
		t.Fatalf("three losses should trip")
	}
	if ConsecutiveLosses([]float64{-1, 0, -3}) {
		t.Fatalf("breakeven breaks the streak")
	}
	if ConsecutiveLosses([]float64{2, -1, -2}) {
		t.Fatalf("win in window should not trip")
	}
}

func TestRecordExitArmsSkip(t *testing.T) {
	mem := models.FilterMemory{}
	mem = RecordExit(mem, -1)
	mem = RecordExit(mem, -0.5)
	if mem.SkipRemaining != 0 {
		t.Fatalf("armed too early: %+v", mem)
	}
	mem = RecordExit(mem, -2)
	if mem.SkipRemaining != LossStreakSkips {
		t.Fatalf("expected skip=%d: %+v", LossStreakSkips, mem)
	}
	if len(mem.LastExitPnls) != 3 {
		t.Fatalf("ring should hold 3: %+v", mem)
	}
	mem = RecordExit(mem, 4)
	if len(mem.LastExitPnls) != 3 || mem.LastExitPnls[2] != 4 {
		t.Fatalf("ring should drop oldest: %+v", mem)
	}
}

func TestRecordSkipDecrements(t *testing.T) {
	mem := models.FilterMemory{SkipRemaining: 2}
	mem = RecordSkip(mem)
	if mem.SkipRemaining != 1 {
		t.Fatalf("unexpected %+v", mem)
	}
	mem = RecordSkip(RecordSkip(mem))
	if mem.SkipRemaining != 0 {
		t.Fatalf("should clamp at zero: %+v", mem)
	}
}
