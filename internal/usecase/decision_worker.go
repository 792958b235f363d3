package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/engine/arbiter"
	"TradePulse/internal/engine/filter"
	"TradePulse/internal/engine/indicator"
	"TradePulse/internal/engine/strategy"
	applogger "TradePulse/pkg/logger"
)

// DecisionWorker runs one full decision cycle per bar-close event:
// fetch klines, compute the snapshot, evaluate the strategy, gate the
// result through cooldown, operator controls and the adaptive filter,
// persist the signal and hand entries/exits to execution.
type DecisionWorker struct {
	candles domrepo.CandleSource
	store   domrepo.StateStore
	siglog  domrepo.SignalLog
	exec    *Execution
	admin   *AdminState
	notify  domrepo.Notifier
	metrics domrepo.Metrics
	arb     *arbiter.Controller
	l       *applogger.Logger
}

// SetArbiter attaches the regime controller. When set, every processed
// bar close also advances the regime state machine for that symbol/tf.
func (w *DecisionWorker) SetArbiter(arb *arbiter.Controller) { w.arb = arb }

func NewDecisionWorker(
	candles domrepo.CandleSource,
	store domrepo.StateStore,
	siglog domrepo.SignalLog,
	exec *Execution,
	admin *AdminState,
	notify domrepo.Notifier,
	metrics domrepo.Metrics,
	l *applogger.Logger,
) *DecisionWorker {
	return &DecisionWorker{
		candles: candles,
		store:   store,
		siglog:  siglog,
		exec:    exec,
		admin:   admin,
		notify:  notify,
		metrics: metrics,
		l:       l,
	}
}

// activeParams merges the persisted overlay (if any) onto the defaults.
func (w *DecisionWorker) activeParams(ctx context.Context) strategy.Params {
	p := strategy.DefaultParams()
	overlay, err := w.store.ActiveParamOverlay(ctx)
	if err != nil {
		if !errors.Is(err, domrepo.ErrNotFound) {
			w.l.Warn("active param overlay read failed", applogger.Error(err))
		}
		return p
	}
	merged, err := p.Merge(overlay)
	if err != nil {
		w.l.Warn("active param overlay invalid; using defaults", applogger.Error(err))
		return p
	}
	return merged
}

// inCooldown reports whether closeTime is still within the re-entry
// cooldown after the last recorded exit.
func (w *DecisionWorker) inCooldown(ctx context.Context, symbol string, tf domrepo.Timeframe, closeTime int64, cooldownBars int) bool {
	if cooldownBars <= 0 {
		return false
	}
	lastExit, err := w.store.LastExitCloseTime(ctx, symbol)
	if err != nil {
		if !errors.Is(err, domrepo.ErrNotFound) {
			w.l.Warn("last exit read failed", applogger.Error(err))
		}
		return false
	}
	return closeTime-lastExit < int64(1+cooldownBars)*tf.BarMillis()
}

// ProcessEvent handles one bar-close event end to end. Re-delivered
// events (queue redelivery, duplicate webhook) are dropped via the
// dedup key before any work happens.
func (w *DecisionWorker) ProcessEvent(ctx context.Context, ev models.BarCloseEvent) error {
	start := time.Now()
	tf := domrepo.NormalizeTimeframe(ev.Timeframe)

	fresh, err := w.store.MarkEventSeen(ctx, ev.DedupKey())
	if err != nil {
		return fmt.Errorf("dedup %s: %w", ev.DedupKey(), err)
	}
	if !fresh {
		w.l.Debug("duplicate event dropped", applogger.String("key", ev.DedupKey()))
		return nil
	}

	p := w.activeParams(ctx)
	limit := p.MaxLookback()
	if limit < 200 {
		limit = 200
	}
	limit += 10

	bars, err := w.candles.FetchBars(ctx, ev.Symbol, tf, limit)
	if err != nil {
		w.metrics.RecordError("fetch_klines")
		return fmt.Errorf("fetch klines %s %s: %w", ev.Symbol, tf, err)
	}
	if len(bars) < limit-5 {
		w.metrics.RecordError("klines_short")
		w.l.Warn("not enough klines",
			applogger.String("symbol", ev.Symbol),
			applogger.String("tf", string(tf)),
			applogger.Int("got", len(bars)),
			applogger.Int("want", limit),
		)
		return domrepo.ErrInsufficientData
	}

	snap := indicator.ComputeSnapshot(bars, p.Lengths())
	w.metrics.RecordLastPrice(ev.Symbol, snap.Close)

	pos, err := w.store.Position(ctx, ev.Symbol)
	if err != nil {
		return fmt.Errorf("position %s: %w", ev.Symbol, err)
	}
	var evalPos strategy.Position
	if !pos.Flat() {
		evalPos = strategy.Position{Side: pos.Side, StopPrice: pos.StopPrice}
	}

	action := strategy.Evaluate(snap, evalPos, p)

	mem, err := w.store.FilterMemory(ctx, ev.Symbol)
	if err != nil {
		return fmt.Errorf("filter memory %s: %w", ev.Symbol, err)
	}
	filt := filter.Evaluate(snap.ADX, snap.ATR, snap.ATR30, mem.SkipRemaining)

	if w.arb != nil {
		acct := models.AccountState{
			OpenPositionExists: !pos.Flat(),
			ConsecutiveLosses:  lossStreak(mem.LastExitPnls),
		}
		if _, err := w.arb.Evaluate(ctx, ev.Symbol, tf, bars, ev.CloseTime, acct, nil); err != nil {
			w.l.Warn("regime evaluate failed", applogger.Error(err))
		}
	}

	if err := w.appendSignal(ctx, ev, tf, action, snap, p, filt); err != nil {
		w.l.Error("append signal", applogger.Error(err))
	}
	w.metrics.RecordDecision(ev.Symbol, action)
	w.notify.NotifySignal(ev.Symbol, tf, action, ev.CloseTime)

	switch {
	case action.IsEntry() && pos.Flat():
		w.handleEntry(ctx, ev, tf, action, snap, p, filt)
	case action == models.ActionLongExit || action == models.ActionShortExit:
		w.handleExit(ctx, ev, tf, action)
	}

	w.metrics.RecordLatency("decision_cycle", time.Since(start).Seconds())
	w.l.Info("event processed",
		applogger.String("symbol", ev.Symbol),
		applogger.String("tf", string(tf)),
		applogger.String("action", string(action)),
		applogger.String("filter_state", string(filt.State)),
	)
	return nil
}

// lossStreak counts trailing losses in the recorded exit pnls.
func lossStreak(pnls []float64) int {
	n := 0
	for i := len(pnls) - 1; i >= 0; i-- {
		if pnls[i] >= 0 {
			break
		}
		n++
	}
	return n
}

func (w *DecisionWorker) handleEntry(
	ctx context.Context,
	ev models.BarCloseEvent,
	tf domrepo.Timeframe,
	action models.Action,
	snap *models.Snapshot,
	p strategy.Params,
	filt filter.Result,
) {
	if w.inCooldown(ctx, ev.Symbol, tf, ev.CloseTime, p.CooldownBars) {
		w.l.Info("entry in cooldown; skip",
			applogger.String("symbol", ev.Symbol),
			applogger.String("action", string(action)),
		)
		return
	}
	if !w.admin.NewEntryAllowed(ctx) {
		w.l.Info("admin gate closed; skip entry", applogger.String("symbol", ev.Symbol))
		return
	}
	if !filt.Allowed {
		if filt.Reason == filter.ReasonLossCooldown {
			mem, err := w.store.FilterMemory(ctx, ev.Symbol)
			if err == nil {
				if err := w.store.SaveFilterMemory(ctx, ev.Symbol, filter.RecordSkip(mem)); err != nil {
					w.l.Error("save filter memory", applogger.Error(err))
				}
			}
		}
		w.l.Info("adaptive filter skip entry",
			applogger.String("symbol", ev.Symbol),
			applogger.String("action", string(action)),
			applogger.String("filter_state", string(filt.State)),
			applogger.String("reason", filt.Reason),
		)
		return
	}

	side := models.SideLong
	if action == models.ActionShortEntry {
		side = models.SideShort
	}
	if _, err := w.exec.ExecuteEntry(ctx, ev.Symbol, tf, side, snap, p, filt); err != nil {
		w.metrics.RecordError("execute_entry")
		w.l.Error("execute entry failed",
			applogger.String("symbol", ev.Symbol),
			applogger.String("side", string(side)),
			applogger.Error(err),
		)
	}
}

func (w *DecisionWorker) handleExit(ctx context.Context, ev models.BarCloseEvent, tf domrepo.Timeframe, action models.Action) {
	side := models.SideLong
	if action == models.ActionShortExit {
		side = models.SideShort
	}
	done, pnlPct, err := w.exec.ExecuteExit(ctx, ev.Symbol, tf, side)
	if err != nil {
		w.metrics.RecordError("execute_exit")
		w.l.Error("execute exit failed",
			applogger.String("symbol", ev.Symbol),
			applogger.String("side", string(side)),
			applogger.Error(err),
		)
		return
	}
	if !done {
		return
	}
	if err := w.store.SetLastExitCloseTime(ctx, ev.Symbol, ev.CloseTime); err != nil {
		w.l.Error("save last exit time", applogger.Error(err))
	}
	if pnlPct != nil {
		mem, err := w.store.FilterMemory(ctx, ev.Symbol)
		if err != nil {
			w.l.Error("filter memory read", applogger.Error(err))
			return
		}
		if err := w.store.SaveFilterMemory(ctx, ev.Symbol, filter.RecordExit(mem, *pnlPct)); err != nil {
			w.l.Error("save filter memory", applogger.Error(err))
		}
	}
}

func (w *DecisionWorker) appendSignal(
	ctx context.Context,
	ev models.BarCloseEvent,
	tf domrepo.Timeframe,
	action models.Action,
	snap *models.Snapshot,
	p strategy.Params,
	filt filter.Result,
) error {
	paramsSnap := struct {
		strategy.Params
		FilterState  models.FilterLevel `json:"filter_state"`
		FilterReason string             `json:"filter_reason"`
	}{Params: p, FilterState: filt.State, FilterReason: filt.Reason}
	pj, err := json.Marshal(paramsSnap)
	if err != nil {
		return fmt.Errorf("marshal params snapshot: %w", err)
	}
	return w.siglog.AppendSignal(ctx, models.SignalRecord{
		Symbol:    ev.Symbol,
		Timeframe: string(tf),
		CloseTime: ev.CloseTime,
		Action:    action,
		Snapshot:  snap,
		Params:    string(pj),
		CreatedAt: time.Now().UnixMilli(),
	})
}
