package arbiter

import (
	"strings"
	"sync"

	domrepo "TradePulse/internal/domain/repository"
)

// Profile is the per-timeframe threshold constant set. Read-only at
// decision time; configuration, not derived state.
type Profile struct {
	RangeEnter    float64 `json:"RANGE_ENTER"`
	RangeExit     float64 `json:"RANGE_EXIT"`
	TrendEnter    float64 `json:"TREND_ENTER"`
	TrendExit     float64 `json:"TREND_EXIT"`
	SlopeMin      float64 `json:"slope_min"`
	SlopeMax      float64 `json:"slope_max"`
	ConfirmN      int     `json:"confirm_N"`
	CooldownMBars int     `json:"cooldown_M_bars"`
}

var thresholds1h = Profile{
	RangeEnter:    16,
	RangeExit:     20,
	TrendEnter:    25,
	TrendExit:     21,
	SlopeMin:      0.05,
	SlopeMax:      0.02,
	ConfirmN:      2,
	CooldownMBars: 1,
}

var thresholds4h = Profile{
	RangeEnter:    14,
	RangeExit:     18,
	TrendEnter:    23,
	TrendExit:     19,
	SlopeMin:      0.08,
	SlopeMax:      0.03,
	ConfirmN:      1,
	CooldownMBars: 1,
}

// Thresholds resolves threshold profiles per timeframe with optional
// per-symbol overrides.
type Thresholds struct {
	mu        sync.RWMutex
	overrides map[string]map[domrepo.Timeframe]Profile
}

func NewThresholds() *Thresholds {
	return &Thresholds{overrides: make(map[string]map[domrepo.Timeframe]Profile)}
}

// Get returns the profile for symbol/tf: the override when set,
// otherwise the timeframe default.
func (t *Thresholds) Get(symbol string, tf domrepo.Timeframe) Profile {
	sym := strings.ToUpper(symbol)
	t.mu.RLock()
	if byTF, ok := t.overrides[sym]; ok {
		if p, ok := byTF[tf]; ok {
			t.mu.RUnlock()
			return p
		}
	}
	t.mu.RUnlock()
	if tf == domrepo.TF1h {
		return thresholds1h
	}
	return thresholds4h
}

// SetOverride installs a symbol/tf override.
func (t *Thresholds) SetOverride(symbol string, tf domrepo.Timeframe, p Profile) {
	sym := strings.ToUpper(symbol)
	t.mu.Lock()
	if t.overrides[sym] == nil {
		t.overrides[sym] = make(map[domrepo.Timeframe]Profile)
	}
	t.overrides[sym][tf] = p
	t.mu.Unlock()
}

// Overrides returns a copy of all installed overrides for persistence.
func (t *Thresholds) Overrides() map[string]map[domrepo.Timeframe]Profile {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]map[domrepo.Timeframe]Profile, len(t.overrides))
	for sym, byTF := range t.overrides {
		cp := make(map[domrepo.Timeframe]Profile, len(byTF))
		for tf, p := range byTF {
			cp[tf] = p
		}
		out[sym] = cp
	}
	return out
}
