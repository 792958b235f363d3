package models

import "strconv"

// TradeAction distinguishes ledger rows.
type TradeAction string

const (
	TradeEntry TradeAction = "entry"
	TradeExit  TradeAction = "exit"
)

// TradeRecord is one row of the backtest ledger (and the live trade
// log). Exit rows carry PnlPct and the running Balance; entry rows
// carry the position multiplier chosen by the adaptive filter.
type TradeRecord struct {
	Time         int64       `json:"time"`
	Side         Side        `json:"side"`
	Price        float64     `json:"price"`
	Action       TradeAction `json:"action"`
	Via          string      `json:"via,omitempty"` // "stop" | "channel"
	PnlPct       *float64    `json:"pnl_pct,omitempty"`
	Balance      *float64    `json:"balance,omitempty"`
	FilterState  FilterLevel `json:"filter_state,omitempty"`
	PositionMult *float64    `json:"position_mult,omitempty"`
	Reason       string      `json:"reason,omitempty"`
}

// SignalRecord is the append-only audit row persisted for every
// evaluated bar, live or replayed.
type SignalRecord struct {
	Symbol    string    `json:"symbol"`
	Timeframe string    `json:"tf"`
	CloseTime int64     `json:"closeTime"`
	Action    Action    `json:"action"`
	Snapshot  *Snapshot `json:"indicatorsSnapshot,omitempty"`
	Params    string    `json:"paramsSnapshot,omitempty"` // JSON of the effective parameter set
	CreatedAt int64     `json:"createdAt"`
}

// BarCloseEvent is the queue message emitted when a bar closes.
// Events for one symbol must be consumed in increasing CloseTime order.
type BarCloseEvent struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"tf"`
	CloseTime int64  `json:"closeTime"` // epoch ms
	Source    string `json:"source,omitempty"`
}

// DedupKey identifies a bar-close event for at-most-once processing.
func (e BarCloseEvent) DedupKey() string {
	return e.Symbol + "_" + e.Timeframe + "_" + strconv.FormatInt(e.CloseTime, 10)
}
