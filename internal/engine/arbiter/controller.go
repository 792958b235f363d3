// Package arbiter is the regime arbitration controller. It never
// places orders: it classifies the market regime, selects which
// managed strategy may trade, and evaluates a priority-ordered risk
// gate. Regime switches require confirmation hysteresis and start a
// post-switch cooldown.
package arbiter

import (
	"context"
	"fmt"
	"time"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	applogger "TradePulse/pkg/logger"
)

// Risk gate constants. The gate reports only the single
// highest-priority blocking reason.
const (
	DailyLossLimitPct    = -2.0
	ConsecutiveLossLimit = 3
	MaxPositions         = 1
)

// Blocking reasons, in strict priority order (first match wins).
const (
	BlockEmergency    = "Emergency"
	BlockDailyLoss    = "Daily loss limit hit"
	BlockLossStreak   = "Consecutive losses limit"
	BlockPositionOpen = "Position already open"
	BlockATRHot       = "ATR too hot"
	BlockCooldown     = "Cooldown"
	BlockNeutral      = "NEUTRAL regime"
)

// Decision is one arbitration snapshot returned to the caller and the
// admin API.
type Decision struct {
	RegimeCurrent    models.Regime     `json:"regime_current"`
	CandidateRegime  models.Regime     `json:"candidate_regime"`
	ActiveStrategy   models.StrategyID `json:"active_strategy"`
	TradingAllowed   bool              `json:"trading_allowed"`
	BlockedReason    string            `json:"blocked_reason"`
	EmergencyMode    bool              `json:"emergency_mode"`
	EmergencyReason  string            `json:"emergency_reason,omitempty"`
	ConfirmCount     int               `json:"confirm_count"`
	CooldownUntil    *int64            `json:"cooldown_until"`
	Indicators       Indicators        `json:"indicators"`
	Thresholds       Profile           `json:"threshold_profile"`
	LastDecisionTime int64             `json:"last_decision_time"`
}

// Controller evaluates one symbol/timeframe per closed bar and
// persists its switching state through the state store.
type Controller struct {
	store      domrepo.StateStore
	thresholds *Thresholds
	logger     *applogger.Logger
	now        func() int64 // epoch ms, swappable in tests
}

func NewController(store domrepo.StateStore, th *Thresholds, logger *applogger.Logger) *Controller {
	return &Controller{
		store:      store,
		thresholds: th,
		logger:     logger,
		now:        func() int64 { return time.Now().UnixMilli() },
	}
}

// CandidateRegime classifies one bar from the arbiter indicator set.
func CandidateRegime(ind Indicators, th Profile) models.Regime {
	if ind.ADX == nil {
		return models.RegimeNeutral
	}
	absSlope := 0.0
	if ind.EMASlopePct != nil {
		absSlope = *ind.EMASlopePct
		if absSlope < 0 {
			absSlope = -absSlope
		}
	}
	trendOK := *ind.ADX >= th.TrendEnter && absSlope >= th.SlopeMin && !ind.ATRHot
	rangeOK := *ind.ADX <= th.RangeEnter && absSlope <= th.SlopeMax && !ind.ATRHot
	if trendOK {
		return models.RegimeTrend
	}
	if rangeOK {
		return models.RegimeRange
	}
	return models.RegimeNeutral
}

// advance applies the confirmation/hysteresis/cooldown transition for
// one candidate classification. Pure: callers own persistence.
func advance(st models.RegimeState, candidate models.Regime, th Profile, nowCandleTime, barMS int64) models.RegimeState {
	if st.RegimeCurrent == "" {
		st.RegimeCurrent = models.RegimeNeutral
	}
	if candidate == st.CandidateRegime {
		st.ConfirmCount++
	} else {
		st.ConfirmCount = 1
	}
	st.CandidateRegime = candidate

	if st.ConfirmCount >= th.ConfirmN && candidate != st.RegimeCurrent {
		st.RegimeCurrent = candidate
		until := nowCandleTime + barMS*int64(th.CooldownMBars)
		st.CooldownUntil = &until
	}

	switch st.RegimeCurrent {
	case models.RegimeTrend:
		st.ActiveStrategy = models.StrategyTrend
	case models.RegimeRange:
		st.ActiveStrategy = models.StrategyMeanRev
	default:
		st.ActiveStrategy = models.StrategyNone
	}
	return st
}

// gate evaluates the risk gate in strict priority order and fills the
// trading_allowed / blocked_reason fields.
func gate(st models.RegimeState, acct models.AccountState, atrHot bool, nowCandleTime int64) models.RegimeState {
	st.TradingAllowed = true
	st.BlockedReason = ""

	switch {
	case st.EmergencyMode:
		st.TradingAllowed = false
		st.BlockedReason = fmt.Sprintf("%s: %s", BlockEmergency, st.EmergencyReason)
	case acct.DailyPnlPct <= DailyLossLimitPct:
		st.TradingAllowed = false
		st.BlockedReason = BlockDailyLoss
	case acct.ConsecutiveLosses >= ConsecutiveLossLimit:
		st.TradingAllowed = false
		st.BlockedReason = BlockLossStreak
	case acct.OpenPositionExists && MaxPositions == 1:
		st.TradingAllowed = false
		st.BlockedReason = BlockPositionOpen
	case atrHot:
		st.TradingAllowed = false
		st.BlockedReason = BlockATRHot
	case st.CooldownUntil != nil && nowCandleTime < *st.CooldownUntil:
		st.TradingAllowed = false
		st.BlockedReason = BlockCooldown
	case st.ActiveStrategy == models.StrategyNone:
		st.TradingAllowed = false
		st.BlockedReason = BlockNeutral
	}
	return st
}

// Evaluate runs one arbitration cycle on bar close: classify, confirm,
// gate, persist, snapshot.
func (c *Controller) Evaluate(
	ctx context.Context,
	symbol string,
	tf domrepo.Timeframe,
	bars []models.Bar,
	nowCandleTime int64,
	acct models.AccountState,
	bots map[models.StrategyID]models.BotHealth,
) (Decision, error) {
	th := c.thresholds.Get(symbol, tf)
	ind := ComputeIndicators(bars)
	candidate := CandidateRegime(ind, th)

	st, err := c.store.RegimeState(ctx, symbol, tf)
	if err != nil {
		return Decision{}, fmt.Errorf("load regime state: %w", err)
	}

	st = advance(st, candidate, th, nowCandleTime, tf.BarMillis())

	st.EmergencyMode = false
	st.EmergencyReason = ""
	for _, h := range bots {
		if h.Health == "error" {
			st.EmergencyMode = true
			st.EmergencyReason = "Bot health error"
			break
		}
	}

	st = gate(st, acct, ind.ATRHot, nowCandleTime)
	st.LastDecisionTime = c.now()

	if err := c.store.SaveRegimeState(ctx, symbol, tf, st); err != nil {
		return Decision{}, fmt.Errorf("save regime state: %w", err)
	}

	if c.logger != nil {
		c.logger.Info("arbiter decision",
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.String("regime", string(st.RegimeCurrent)),
			applogger.String("candidate", string(candidate)),
			applogger.String("strategy", string(st.ActiveStrategy)),
			applogger.Bool("allowed", st.TradingAllowed),
			applogger.String("blocked", st.BlockedReason),
		)
	}

	return Decision{
		RegimeCurrent:    st.RegimeCurrent,
		CandidateRegime:  candidate,
		ActiveStrategy:   st.ActiveStrategy,
		TradingAllowed:   st.TradingAllowed,
		BlockedReason:    st.BlockedReason,
		EmergencyMode:    st.EmergencyMode,
		EmergencyReason:  st.EmergencyReason,
		ConfirmCount:     st.ConfirmCount,
		CooldownUntil:    st.CooldownUntil,
		Indicators:       ind,
		Thresholds:       th,
		LastDecisionTime: st.LastDecisionTime,
	}, nil
}
