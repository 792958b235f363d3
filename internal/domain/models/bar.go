package models

// Bar is one closed OHLCV candle. OpenTime is epoch milliseconds and is
// unique and strictly increasing per symbol/timeframe.
type Bar struct {
	OpenTime int64   `json:"openTime"`
	Open     float64 `json:"o"`
	High     float64 `json:"h"`
	Low      float64 `json:"l"`
	Close    float64 `json:"c"`
	Volume   float64 `json:"v"`
}

// Closes extracts the close series, oldest first.
func Closes(bars []Bar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}
