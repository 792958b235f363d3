package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/engine/arbiter"
	"TradePulse/internal/engine/filter"
	"TradePulse/internal/engine/indicator"
	"TradePulse/internal/engine/meanrev"
	"TradePulse/internal/engine/strategy"
)

// EngineSnapshot is the unified dashboard view: operator controls, the
// arbiter's regime block, both strategies' indicator views and the
// open position. Sections that fail carry their error instead of
// failing the whole snapshot.
type EngineSnapshot struct {
	Symbol   string                `json:"symbol"`
	Controls Controls              `json:"controls"`
	Meta     *RegimeMeta           `json:"meta,omitempty"`
	BotA     *BreakoutStatus       `json:"botA,omitempty"`
	BotB     *MeanRevStatus        `json:"botB,omitempty"`
	Position *models.PositionState `json:"position,omitempty"`
	Errors   map[string]string     `json:"errors,omitempty"`
}

// RegimeMeta is the arbiter block of the snapshot.
type RegimeMeta struct {
	Regime          models.Regime      `json:"regime"`
	CandidateRegime models.Regime      `json:"candidate_regime"`
	ActiveStrategy  models.StrategyID  `json:"active_strategy"`
	TradingAllowed  bool               `json:"trading_allowed"`
	BlockedReason   string             `json:"blocked_reason,omitempty"`
	ConfirmCount    int                `json:"confirm_count"`
	CooldownUntil   *int64             `json:"cooldown_until,omitempty"`
	EmergencyMode   bool               `json:"emergency_mode"`
	EmergencyReason string             `json:"emergency_reason,omitempty"`
	Indicators      arbiter.Indicators `json:"indicators"`
}

// BreakoutStatus is the trend strategy block of the snapshot.
type BreakoutStatus struct {
	Snapshot     *models.Snapshot     `json:"indicators"`
	FilterState  models.FilterLevel   `json:"filter_state"`
	FilterReason string               `json:"filter_reason"`
	LastSignal   *models.SignalRecord `json:"last_signal,omitempty"`
}

// MeanRevStatus is the mean-reversion strategy block of the snapshot.
type MeanRevStatus struct {
	Indicators  meanrev.Indicators   `json:"indicators"`
	LongChecks  meanrev.SignalChecks `json:"long_checks"`
	ShortChecks meanrev.SignalChecks `json:"short_checks"`
	LongReady   bool                 `json:"long_ready"`
	ShortReady  bool                 `json:"short_ready"`
	LongScore   int                  `json:"long_score"`
	ShortScore  int                  `json:"short_score"`
}

// EngineSnapshotUseCase assembles the snapshot by fanning out the
// independent sections concurrently under one deadline.
type EngineSnapshotUseCase struct {
	candles domrepo.CandleSource
	store   domrepo.StateStore
	siglog  domrepo.SignalLog
	admin   *AdminState
	timeout time.Duration
}

func NewEngineSnapshotUseCase(
	candles domrepo.CandleSource,
	store domrepo.StateStore,
	siglog domrepo.SignalLog,
	admin *AdminState,
) *EngineSnapshotUseCase {
	return &EngineSnapshotUseCase{
		candles: candles,
		store:   store,
		siglog:  siglog,
		admin:   admin,
		timeout: 10 * time.Second,
	}
}

func (uc *EngineSnapshotUseCase) Get(ctx context.Context, symbol string, tf domrepo.Timeframe) (*EngineSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	res := &EngineSnapshot{Symbol: symbol, Errors: map[string]string{}}

	controls, err := uc.admin.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	res.Controls = controls

	// one shared fetch feeds every indicator section
	bars, barsErr := uc.candles.FetchBars(ctx, symbol, tf, 300)

	type item struct {
		name string
		err  error
	}
	ch := make(chan item, 4)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if barsErr != nil {
			ch <- item{"meta", barsErr}
			return
		}
		st, err := uc.store.RegimeState(ctx, symbol, tf)
		if err != nil {
			ch <- item{"meta", err}
			return
		}
		res.Meta = &RegimeMeta{
			Regime:          st.RegimeCurrent,
			CandidateRegime: st.CandidateRegime,
			ActiveStrategy:  st.ActiveStrategy,
			TradingAllowed:  st.TradingAllowed,
			BlockedReason:   st.BlockedReason,
			ConfirmCount:    st.ConfirmCount,
			CooldownUntil:   st.CooldownUntil,
			EmergencyMode:   st.EmergencyMode,
			EmergencyReason: st.EmergencyReason,
			Indicators:      arbiter.ComputeIndicators(bars),
		}
		ch <- item{"meta", nil}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if barsErr != nil {
			ch <- item{"botA", barsErr}
			return
		}
		snap := indicator.ComputeSnapshot(bars, strategy.DefaultParams().Lengths())
		mem, err := uc.store.FilterMemory(ctx, symbol)
		if err != nil {
			ch <- item{"botA", err}
			return
		}
		var atr30 *float64
		if snap != nil {
			atr30 = snap.ATR30
		}
		filt := filter.Evaluate(snapADX(snap), snapATR(snap), atr30, mem.SkipRemaining)
		status := &BreakoutStatus{Snapshot: snap, FilterState: filt.State, FilterReason: filt.Reason}
		if recent, err := uc.siglog.RecentSignals(ctx, symbol, tf, 1); err == nil && len(recent) > 0 {
			status.LastSignal = &recent[0]
		}
		res.BotA = status
		ch <- item{"botA", nil}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if barsErr != nil {
			ch <- item{"botB", barsErr}
			return
		}
		ind := meanrev.ComputeIndicators(bars)
		in := meanrev.DefaultCheckInput()
		longChecks := meanrev.EvaluateLong(ind, in)
		shortChecks := meanrev.EvaluateShort(ind, in)
		res.BotB = &MeanRevStatus{
			Indicators:  ind,
			LongChecks:  longChecks,
			ShortChecks: shortChecks,
			LongReady:   longChecks.Ready(),
			ShortReady:  shortChecks.Ready(),
			LongScore:   longChecks.Score(),
			ShortScore:  shortChecks.Score(),
		}
		ch <- item{"botB", nil}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		pos, err := uc.store.Position(ctx, symbol)
		if err != nil && !errors.Is(err, domrepo.ErrNotFound) {
			ch <- item{"position", err}
			return
		}
		if !pos.Flat() {
			res.Position = &pos
		}
		ch <- item{"position", nil}
	}()

	go func() { wg.Wait(); close(ch) }()

	for it := range ch {
		if it.err != nil {
			res.Errors[it.name] = it.err.Error()
		}
	}
	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res, nil
}

func snapADX(s *models.Snapshot) *float64 {
	if s == nil {
		return nil
	}
	return s.ADX
}

func snapATR(s *models.Snapshot) *float64 {
	if s == nil {
		return nil
	}
	return s.ATR
}
