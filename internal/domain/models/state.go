package models

// PositionState is the single open position for one symbol. A zero Size
// means flat. StopPrice is set once at entry and never trailed.
type PositionState struct {
	Side       Side     `json:"side,omitempty"`
	Size       float64  `json:"size"`
	EntryPrice float64  `json:"entryPrice"`
	StopPrice  *float64 `json:"stopPrice,omitempty"`
	UpdatedAt  int64    `json:"updatedAt"`
}

// Flat reports whether no position is open.
func (p PositionState) Flat() bool { return p.Size == 0 }

// FilterLevel is the adaptive filter market state derived from ADX.
type FilterLevel string

const (
	FilterOff    FilterLevel = "OFF"    // ADX < 18, entries blocked
	FilterWeak   FilterLevel = "WEAK"   // 18 <= ADX < 25, 0.5x
	FilterNormal FilterLevel = "NORMAL" // 25 <= ADX < 35, 1.0x
	FilterStrong FilterLevel = "STRONG" // ADX >= 35, 1.3x
)

// FilterMemory is the adaptive filter's persisted loss-streak state.
// LastExitPnls keeps at most the three most recent exit PnL percentages.
type FilterMemory struct {
	LastExitPnls  []float64 `json:"p"`
	SkipRemaining int       `json:"s"`
}

// Regime is the arbiter's market classification.
type Regime string

const (
	RegimeTrend   Regime = "TREND"
	RegimeRange   Regime = "RANGE"
	RegimeNeutral Regime = "NEUTRAL"
)

// StrategyID identifies which managed strategy may trade.
type StrategyID string

const (
	StrategyTrend   StrategyID = "A" // breakout / trend-following
	StrategyMeanRev StrategyID = "B" // mean-reversion
	StrategyNone    StrategyID = "NONE"
)

// RegimeState is the arbiter's persisted switching state. RegimeCurrent
// changes only after CandidateRegime has repeated ConfirmCount times;
// each switch starts a cooldown until CooldownUntil (epoch ms).
type RegimeState struct {
	RegimeCurrent    Regime     `json:"r"`
	CandidateRegime  Regime     `json:"c"`
	ConfirmCount     int        `json:"n"`
	CooldownUntil    *int64     `json:"u,omitempty"`
	ActiveStrategy   StrategyID `json:"s"`
	TradingAllowed   bool       `json:"t"`
	BlockedReason    string     `json:"b,omitempty"`
	EmergencyMode    bool       `json:"e"`
	EmergencyReason  string     `json:"er,omitempty"`
	LastDecisionTime int64      `json:"lt"`
}

// AccountState is the per-decision account snapshot the risk gate reads.
type AccountState struct {
	OpenPositionExists bool    `json:"open_position_exists"`
	DailyPnlPct        float64 `json:"daily_pnl_pct"`
	ConsecutiveLosses  int     `json:"consecutive_losses"`
}

// BotHealth is a managed strategy's self-reported health state.
type BotHealth struct {
	Enabled      bool   `json:"enabled"`
	PositionOpen bool   `json:"position_open"`
	Health       string `json:"health"` // "ok" | "error"
}
