package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/engine/filter"
	"TradePulse/internal/engine/risk"
	"TradePulse/internal/engine/strategy"
	applogger "TradePulse/pkg/logger"
)

// Execution turns decisions into venue orders: MARKET entry with a
// STOP_MARKET protective stop, MARKET reduceOnly exit. The kill switch
// is checked here so a paused engine still evaluates and records
// signals without trading.
type Execution struct {
	ex      domrepo.Exchange
	store   domrepo.StateStore
	siglog  domrepo.SignalLog
	notify  domrepo.Notifier
	metrics domrepo.Metrics
	admin   *AdminState
	l       *applogger.Logger
}

func NewExecution(
	ex domrepo.Exchange,
	store domrepo.StateStore,
	siglog domrepo.SignalLog,
	notify domrepo.Notifier,
	metrics domrepo.Metrics,
	admin *AdminState,
	l *applogger.Logger,
) *Execution {
	return &Execution{ex: ex, store: store, siglog: siglog, notify: notify, metrics: metrics, admin: admin, l: l}
}

// ensureMarginAndLeverage is best-effort; the venue rejects a margin
// change while a position is open and we are always flat at entry.
func (e *Execution) ensureMarginAndLeverage(ctx context.Context, symbol string, leverage int) {
	if err := e.ex.SetMarginType(ctx, symbol, "ISOLATED"); err != nil {
		if !strings.Contains(err.Error(), "No need to change") {
			e.l.Warn("set margin type", applogger.String("symbol", symbol), applogger.Error(err))
		}
	}
	if err := e.ex.SetLeverage(ctx, symbol, leverage); err != nil {
		e.l.Warn("set leverage", applogger.String("symbol", symbol), applogger.Error(err))
	}
}

// ExecuteEntry sizes and places a market entry plus its stop. Returns
// true when the entry order was sent.
func (e *Execution) ExecuteEntry(
	ctx context.Context,
	symbol string,
	tf domrepo.Timeframe,
	side models.Side,
	snap *models.Snapshot,
	p strategy.Params,
	filt filter.Result,
) (bool, error) {
	if !e.admin.TradeEnabled(ctx) {
		e.l.Info("trade disabled; skip entry",
			applogger.String("symbol", symbol),
			applogger.String("side", string(side)),
		)
		return false, nil
	}
	if snap == nil || snap.ATR == nil || *snap.ATR <= 0 {
		e.l.Warn("no ATR for entry", applogger.String("symbol", symbol))
		return false, nil
	}
	atr := *snap.ATR

	equity, err := e.ex.EquityUSDT(ctx)
	if err != nil {
		return false, fmt.Errorf("entry %s: %w", symbol, err)
	}
	if equity <= 0 {
		e.l.Warn("zero equity; skip entry", applogger.String("symbol", symbol))
		return false, nil
	}
	mark, err := e.ex.MarkPrice(ctx, symbol)
	if err != nil {
		return false, fmt.Errorf("entry %s: %w", symbol, err)
	}
	filters, err := e.ex.SymbolFilters(ctx, symbol)
	if err != nil {
		return false, fmt.Errorf("entry %s: %w", symbol, err)
	}

	qty, err := risk.ComputeQuantity(equity, p.LossPct, atr, p.ATRMult, mark, filters)
	if err != nil {
		if errors.Is(err, risk.ErrUnsizable) {
			e.l.Warn("entry unsizable",
				applogger.String("symbol", symbol),
				applogger.Float64("equity", equity),
				applogger.Float64("atr", atr),
				applogger.Error(err),
			)
			return false, nil
		}
		return false, fmt.Errorf("entry %s: %w", symbol, err)
	}
	qty = risk.RoundDownStep(qty*filt.Multiplier, filters.StepSize)
	if qty <= 0 {
		e.l.Warn("multiplied qty below step; skip entry", applogger.String("symbol", symbol))
		return false, nil
	}

	e.ensureMarginAndLeverage(ctx, symbol, p.Leverage)

	res, err := e.ex.CreateOrder(ctx, models.OrderRequest{
		Symbol:   symbol,
		Side:     side.OrderSide(),
		Type:     "MARKET",
		Quantity: qty,
	})
	if err != nil {
		e.metrics.RecordError("order_entry")
		return false, fmt.Errorf("entry order %s %s: %w", symbol, side, err)
	}

	avgPrice := res.AvgPrice
	if avgPrice <= 0 {
		avgPrice = mark
	}
	executedQty := res.ExecutedQty
	if executedQty <= 0 {
		executedQty = qty
	}

	stopPrice := avgPrice - p.StopMult*atr
	if side == models.SideShort {
		stopPrice = avgPrice + p.StopMult*atr
	}
	stopPrice = risk.RoundPrice(stopPrice, filters.TickSize)

	pos := models.PositionState{
		Side:       side,
		Size:       executedQty,
		EntryPrice: avgPrice,
		StopPrice:  &stopPrice,
		UpdatedAt:  time.Now().UnixMilli(),
	}
	if err := e.store.SavePosition(ctx, symbol, pos); err != nil {
		return true, fmt.Errorf("save position %s: %w", symbol, err)
	}

	mult := filt.Multiplier
	if err := e.siglog.AppendTrade(ctx, symbol, tf, models.TradeRecord{
		Time:         pos.UpdatedAt,
		Side:         side,
		Price:        avgPrice,
		Action:       models.TradeEntry,
		FilterState:  filt.State,
		PositionMult: &mult,
		Reason:       filt.Reason,
	}); err != nil {
		e.l.Error("append entry trade", applogger.Error(err))
	}

	e.notify.NotifyOrder(symbol, side, "MARKET", executedQty, avgPrice, res.OrderID)
	e.placeStopOrder(ctx, symbol, side, executedQty, stopPrice)

	e.l.Info("entry filled",
		applogger.String("symbol", symbol),
		applogger.String("side", string(side)),
		applogger.Float64("qty", executedQty),
		applogger.Float64("avg", avgPrice),
		applogger.Int64("order_id", res.OrderID),
		applogger.String("filter_state", string(filt.State)),
	)
	return true, nil
}

// placeStopOrder arms the protective stop. Failure leaves the entry in
// place; the operator is alerted to an unprotected position instead of
// unwinding a filled order.
func (e *Execution) placeStopOrder(ctx context.Context, symbol string, side models.Side, qty, stopPrice float64) {
	res, err := e.ex.CreateOrder(ctx, models.OrderRequest{
		Symbol:     symbol,
		Side:       side.CloseOrderSide(),
		Type:       "STOP_MARKET",
		Quantity:   qty,
		StopPrice:  &stopPrice,
		ReduceOnly: true,
	})
	if err != nil {
		e.metrics.RecordError("order_stop")
		e.l.Error("stop order failed",
			applogger.String("symbol", symbol),
			applogger.String("side", string(side)),
			applogger.Float64("stop_price", stopPrice),
			applogger.Error(err),
		)
		e.notify.NotifyAlert(fmt.Sprintf("UNPROTECTED POSITION: %s %s stop order failed: %v", symbol, side, err))
		return
	}
	e.l.Info("stop order placed",
		applogger.String("symbol", symbol),
		applogger.String("side", string(side)),
		applogger.Float64("stop_price", stopPrice),
		applogger.Int64("order_id", res.OrderID),
	)
}

// ExecuteExit closes the live position with a reduceOnly market order.
// The position size comes from the venue, not the local state, so a
// stop that already fired results in a clean local clear instead of an
// oversell. Returns the realized PnL percent when it can be computed.
func (e *Execution) ExecuteExit(ctx context.Context, symbol string, tf domrepo.Timeframe, side models.Side) (bool, *float64, error) {
	if !e.admin.TradeEnabled(ctx) {
		e.l.Info("trade disabled; skip exit",
			applogger.String("symbol", symbol),
			applogger.String("side", string(side)),
		)
		return false, nil, nil
	}

	amt, venueEntry, err := e.ex.OpenPosition(ctx, symbol)
	if err != nil {
		return false, nil, fmt.Errorf("exit %s: %w", symbol, err)
	}
	var posAmt float64
	switch {
	case side == models.SideLong && amt > 0:
		posAmt = amt
	case side == models.SideShort && amt < 0:
		posAmt = -amt
	}
	if posAmt <= 0 {
		e.l.Info("no venue position to exit",
			applogger.String("symbol", symbol),
			applogger.String("side", string(side)),
		)
		if err := e.store.ClearPosition(ctx, symbol); err != nil {
			return true, nil, fmt.Errorf("clear position %s: %w", symbol, err)
		}
		return true, nil, nil
	}

	entryPrice := venueEntry
	if local, err := e.store.Position(ctx, symbol); err == nil && !local.Flat() && local.EntryPrice > 0 {
		entryPrice = local.EntryPrice
	}

	res, err := e.ex.CreateOrder(ctx, models.OrderRequest{
		Symbol:     symbol,
		Side:       side.CloseOrderSide(),
		Type:       "MARKET",
		Quantity:   posAmt,
		ReduceOnly: true,
	})
	if err != nil {
		e.metrics.RecordError("order_exit")
		return false, nil, fmt.Errorf("exit order %s %s: %w", symbol, side, err)
	}
	if err := e.store.ClearPosition(ctx, symbol); err != nil {
		return true, nil, fmt.Errorf("clear position %s: %w", symbol, err)
	}

	var pnlPct *float64
	exitAvg := res.AvgPrice
	if entryPrice > 0 && exitAvg > 0 {
		var v float64
		if side == models.SideLong {
			v = (exitAvg - entryPrice) / entryPrice * 100
		} else {
			v = (entryPrice - exitAvg) / entryPrice * 100
		}
		pnlPct = &v
	}

	if err := e.siglog.AppendTrade(ctx, symbol, tf, models.TradeRecord{
		Time:   time.Now().UnixMilli(),
		Side:   side,
		Price:  exitAvg,
		Action: models.TradeExit,
		Via:    "channel",
		PnlPct: pnlPct,
	}); err != nil {
		e.l.Error("append exit trade", applogger.Error(err))
	}

	e.notify.NotifyOrder(symbol, side, "MARKET", posAmt, exitAvg, res.OrderID)
	e.l.Info("exit filled",
		applogger.String("symbol", symbol),
		applogger.String("side", string(side)),
		applogger.Float64("qty", posAmt),
		applogger.Int64("order_id", res.OrderID),
	)
	return true, pnlPct, nil
}
