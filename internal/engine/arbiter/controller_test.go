package arbiter

import (
	"context"
	"testing"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/repository/memstore"
)

func f(v float64) *float64 { return &v }

func TestCandidateRegime(t *testing.T) {
	th := NewThresholds().Get("BTCUSDT", domrepo.TF1h)

	cases := []struct {
		name string
		ind  Indicators
		want models.Regime
	}{
		{"nil adx", Indicators{}, models.RegimeNeutral},
		{"trend", Indicators{ADX: f(26), EMASlopePct: f(0.06)}, models.RegimeTrend},
		{"trend negative slope", Indicators{ADX: f(26), EMASlopePct: f(-0.06)}, models.RegimeTrend},
		{"trend but hot", Indicators{ADX: f(26), EMASlopePct: f(0.06), ATRHot: true}, models.RegimeNeutral},
		{"trend adx but flat slope", Indicators{ADX: f(26), EMASlopePct: f(0.01)}, models.RegimeNeutral},
		{"range", Indicators{ADX: f(15), EMASlopePct: f(0.01)}, models.RegimeRange},
		{"range but hot", Indicators{ADX: f(15), EMASlopePct: f(0.01), ATRHot: true}, models.RegimeNeutral},
		{"range adx but steep slope", Indicators{ADX: f(15), EMASlopePct: f(0.04)}, models.RegimeNeutral},
		{"between bands", Indicators{ADX: f(20), EMASlopePct: f(0.01)}, models.RegimeNeutral},
	}
	for _, c := range cases {
		if got := CandidateRegime(c.ind, th); got != c.want {
			t.Fatalf("%s: got %v want %v", c.name, got, c.want)
		}
	}
}

func TestAdvanceConfirmation(t *testing.T) {
	th := NewThresholds().Get("BTCUSDT", domrepo.TF1h) // confirm_N = 2
	barMS := domrepo.TF1h.BarMillis()
	now := int64(1_700_000_000_000)

	st := models.RegimeState{}

	// First TREND observation: candidate recorded, no switch yet.
	st = advance(st, models.RegimeTrend, th, now, barMS)
	if st.RegimeCurrent != models.RegimeNeutral || st.ConfirmCount != 1 {
		t.Fatalf("after first: %+v", st)
	}
	if st.ActiveStrategy != models.StrategyNone {
		t.Fatalf("neutral regime should map to no strategy: %+v", st)
	}

	// Second consecutive TREND: switch, cooldown armed.
	st = advance(st, models.RegimeTrend, th, now+barMS, barMS)
	if st.RegimeCurrent != models.RegimeTrend || st.ConfirmCount != 2 {
		t.Fatalf("after second: %+v", st)
	}
	if st.ActiveStrategy != models.StrategyTrend {
		t.Fatalf("trend regime should select strategy A: %+v", st)
	}
	wantCooldown := now + barMS + barMS*int64(th.CooldownMBars)
	if st.CooldownUntil == nil || *st.CooldownUntil != wantCooldown {
		t.Fatalf("cooldown not armed: %+v", st)
	}
}

func TestAdvanceCandidateFlipResetsCount(t *testing.T) {
	th := NewThresholds().Get("BTCUSDT", domrepo.TF1h)
	barMS := domrepo.TF1h.BarMillis()
	now := int64(1_700_000_000_000)

	st := models.RegimeState{}
	st = advance(st, models.RegimeTrend, th, now, barMS)
	st = advance(st, models.RegimeRange, th, now+barMS, barMS)
	if st.ConfirmCount != 1 || st.CandidateRegime != models.RegimeRange {
		t.Fatalf("flip should reset: %+v", st)
	}
	if st.RegimeCurrent != models.RegimeNeutral {
		t.Fatalf("no switch on unconfirmed flip: %+v", st)
	}
}

func TestAdvance4hSwitchesOnFirstConfirm(t *testing.T) {
	th := NewThresholds().Get("BTCUSDT", domrepo.TF4h) // confirm_N = 1
	barMS := domrepo.TF4h.BarMillis()
	st := advance(models.RegimeState{}, models.RegimeRange, th, 0, barMS)
	if st.RegimeCurrent != models.RegimeRange || st.ActiveStrategy != models.StrategyMeanRev {
		t.Fatalf("4h should switch immediately: %+v", st)
	}
}

func TestGatePriority(t *testing.T) {
	now := int64(1_700_000_000_000)
	cooldown := now + 1

	base := models.RegimeState{
		RegimeCurrent:   models.RegimeTrend,
		ActiveStrategy:  models.StrategyTrend,
		EmergencyMode:   true,
		EmergencyReason: "Bot health error",
		CooldownUntil:   &cooldown,
	}
	acct := models.AccountState{
		DailyPnlPct:        -5,
		ConsecutiveLosses:  4,
		OpenPositionExists: true,
	}

	// Everything is wrong at once; only the top reason is reported,
	// and each gate surfaces as the ones above it clear.
	steps := []struct {
		mutate func()
		want   string
	}{
		{func() {}, BlockEmergency + ": Bot health error"},
		{func() { base.EmergencyMode = false; base.EmergencyReason = "" }, BlockDailyLoss},
		{func() { acct.DailyPnlPct = 0 }, BlockLossStreak},
		{func() { acct.ConsecutiveLosses = 0 }, BlockPositionOpen},
		{func() { acct.OpenPositionExists = false }, BlockATRHot},
	}
	atrHot := true
	for _, s := range steps {
		s.mutate()
		got := gate(base, acct, atrHot, now)
		if got.TradingAllowed || got.BlockedReason != s.want {
			t.Fatalf("want %q, got %+v", s.want, got)
		}
	}

	atrHot = false
	got := gate(base, acct, atrHot, now)
	if got.TradingAllowed || got.BlockedReason != BlockCooldown {
		t.Fatalf("want cooldown, got %+v", got)
	}

	got = gate(base, acct, atrHot, cooldown) // cooldown expired exactly now
	if !got.TradingAllowed || got.BlockedReason != "" {
		t.Fatalf("want allowed, got %+v", got)
	}

	base.ActiveStrategy = models.StrategyNone
	got = gate(base, acct, atrHot, cooldown)
	if got.TradingAllowed || got.BlockedReason != BlockNeutral {
		t.Fatalf("want neutral block, got %+v", got)
	}
}

func TestThresholdOverride(t *testing.T) {
	th := NewThresholds()
	def := th.Get("BTCUSDT", domrepo.TF1h)
	if def.TrendEnter != 25 || def.ConfirmN != 2 {
		t.Fatalf("unexpected 1h defaults %+v", def)
	}
	def4 := th.Get("BTCUSDT", domrepo.TF4h)
	if def4.TrendEnter != 23 || def4.ConfirmN != 1 {
		t.Fatalf("unexpected 4h defaults %+v", def4)
	}

	custom := def
	custom.TrendEnter = 30
	th.SetOverride("btcusdt", domrepo.TF1h, custom)
	if got := th.Get("BTCUSDT", domrepo.TF1h); got.TrendEnter != 30 {
		t.Fatalf("override not applied: %+v", got)
	}
	if got := th.Get("ETHUSDT", domrepo.TF1h); got.TrendEnter != 25 {
		t.Fatalf("override leaked to other symbol: %+v", got)
	}
}

func TestControllerEvaluatePersistsState(t *testing.T) {
	store := memstore.NewStateStore()
	ctrl := NewController(store, NewThresholds(), nil)
	ctrl.now = func() int64 { return 42 }

	bars := trendingBars(120)
	now := bars[len(bars)-1].OpenTime + domrepo.TF4h.BarMillis()

	dec, err := ctrl.Evaluate(context.Background(), "BTCUSDT", domrepo.TF4h, bars, now, models.AccountState{}, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if dec.LastDecisionTime != 42 {
		t.Fatalf("unexpected decision time %d", dec.LastDecisionTime)
	}

	st, err := store.RegimeState(context.Background(), "BTCUSDT", domrepo.TF4h)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if st.RegimeCurrent != dec.RegimeCurrent || st.ActiveStrategy != dec.ActiveStrategy {
		t.Fatalf("persisted state diverges: %+v vs %+v", st, dec)
	}
}

func TestControllerEmergencyFromBotHealth(t *testing.T) {
	store := memstore.NewStateStore()
	ctrl := NewController(store, NewThresholds(), nil)

	bars := trendingBars(120)
	bots := map[models.StrategyID]models.BotHealth{
		models.StrategyTrend: {Enabled: true, Health: "error"},
	}
	dec, err := ctrl.Evaluate(context.Background(), "BTCUSDT", domrepo.TF4h, bars, 0, models.AccountState{}, bots)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !dec.EmergencyMode || dec.TradingAllowed {
		t.Fatalf("expected emergency block: %+v", dec)
	}

	// Recovered bots clear the latch on the next cycle.
	bots[models.StrategyTrend] = models.BotHealth{Enabled: true, Health: "ok"}
	dec, err = ctrl.Evaluate(context.Background(), "BTCUSDT", domrepo.TF4h, bars, 0, models.AccountState{}, bots)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if dec.EmergencyMode {
		t.Fatalf("emergency should clear: %+v", dec)
	}
}

func TestComputeIndicators(t *testing.T) {
	if got := ComputeIndicators(trendingBars(30)); got.ADX != nil || got.EMANow != nil {
		t.Fatalf("short history should yield empty set: %+v", got)
	}

	ind := ComputeIndicators(trendingBars(120))
	if ind.ADX == nil || ind.EMANow == nil || ind.EMAPrev == nil || ind.EMASlopePct == nil {
		t.Fatalf("missing indicators: %+v", ind)
	}
	if ind.ATR == nil || ind.ATRPct == nil || ind.ATRPctMA == nil {
		t.Fatalf("missing atr set: %+v", ind)
	}
	if *ind.EMASlopePct <= 0 {
		t.Fatalf("uptrend slope should be positive: %v", *ind.EMASlopePct)
	}
	if ind.ATRHot {
		t.Fatalf("constant-range uptrend should not be hot")
	}
}

// trendingBars builds a steady uptrend long enough for every arbiter
// indicator to resolve.
func trendingBars(n int) []models.Bar {
	bars := make([]models.Bar, n)
	for i := range bars {
		c := 100 + float64(i)*2
		bars[i] = models.Bar{
			OpenTime: int64(i) * domrepo.TF4h.BarMillis(),
			Open:     c - 2,
			High:     c + 1,
			Low:      c - 1,
			Close:    c,
			Volume:   1,
		}
	}
	return bars
}
