package models

// Snapshot holds every indicator value the breakout strategy consults,
// computed for exactly one closed bar. Pointer fields are nil when the
// bar window is too short to compute the value; the evaluator treats
// any nil required input as "no decision".
type Snapshot struct {
	Close float64 `json:"close"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`

	EMA200     *float64 `json:"ema200"`
	EMA200Prev *float64 `json:"ema200_prev"`

	// Donchian channels over the prior N bars (evaluation bar excluded).
	HiEntry *float64 `json:"hiEntry"`
	LoEntry *float64 `json:"loEntry"`
	HiExit  *float64 `json:"hiExit"`
	LoExit  *float64 `json:"loExit"`

	PlusDI  *float64 `json:"plusDI"`
	MinusDI *float64 `json:"minusDI"`
	ADX     *float64 `json:"ADX"`
	ADXPrev *float64 `json:"ADX_prev"`

	ATR   *float64 `json:"ATR"`
	ATR30 *float64 `json:"ATR_30"`
}
