package models

import "encoding/json"

// Requests for the HTTP API. Defined in domain for consistency and reuse.

// EventCandleClosed is the only webhook event the engine consumes.
const EventCandleClosed = "CANDLE_CLOSED"

type WebhookRequest struct {
	Symbol string `json:"symbol" validate:"required"`
	TF     string `json:"tf" validate:"required"`
	Event  string `json:"event" default:"CANDLE_CLOSED"`
	Time   int64  `json:"time" validate:"required,gt=0"`
	Secret string `json:"secret" validate:"required"`
}

type CandlesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	TF     string `query:"tf" json:"tf" default:"4h" validate:"oneof=1m 15m 1h 4h 1d"`
	Limit  int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=5000"`
	From   string `query:"from" json:"from"` // RFC3339 or unix seconds
	To     string `query:"to" json:"to"`
}

type SignalsRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	TF     string `query:"tf" json:"tf" default:"4h" validate:"oneof=1m 15m 1h 4h 1d"`
	Limit  int    `query:"limit" json:"limit" default:"50" validate:"gte=1,lte=500"`
}

type SnapshotRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"required"`
	TF     string `query:"tf" json:"tf" default:"4h" validate:"oneof=1h 4h"`
}

// AdminRequest carries the shared admin-secret auth plus an optional
// audit note for the control log.
type AdminRequest struct {
	Secret string `json:"secret" validate:"required"`
	Reason string `json:"reason"`
}

type UpdateParamsRequest struct {
	Secret string          `json:"secret" validate:"required"`
	Name   string          `json:"name" default:"default"`
	Params json.RawMessage `json:"params"`
}

type ThresholdOverrideRequest struct {
	Secret string `json:"secret" validate:"required"`
	Symbol string `json:"symbol" validate:"required"`
	TF     string `json:"tf" validate:"required,oneof=1h 4h"`

	RangeEnter    float64 `json:"RANGE_ENTER" validate:"gt=0"`
	RangeExit     float64 `json:"RANGE_EXIT" validate:"gt=0"`
	TrendEnter    float64 `json:"TREND_ENTER" validate:"gt=0"`
	TrendExit     float64 `json:"TREND_EXIT" validate:"gt=0"`
	SlopeMin      float64 `json:"slope_min" validate:"gte=0"`
	SlopeMax      float64 `json:"slope_max" validate:"gte=0"`
	ConfirmN      int     `json:"confirm_N" validate:"gte=1"`
	CooldownMBars int     `json:"cooldown_M_bars" validate:"gte=0"`
}

type LogsRequest struct {
	Limit int `query:"limit" json:"limit" default:"20" validate:"gte=1,lte=100"`
}
