package models

// SymbolFilters are the venue precision rules a quantity must satisfy.
type SymbolFilters struct {
	StepSize    float64 `json:"stepSize"`
	TickSize    float64 `json:"tickSize"`
	MinNotional float64 `json:"minNotional"`
}

// OrderRequest describes one order to place on the venue.
type OrderRequest struct {
	Symbol     string
	Side       string // BUY | SELL
	Type       string // MARKET | STOP_MARKET
	Quantity   float64
	StopPrice  *float64
	ReduceOnly bool
}

// OrderResult is the venue's confirmation of a placed order.
type OrderResult struct {
	OrderID     int64   `json:"orderId"`
	Status      string  `json:"status"`
	AvgPrice    float64 `json:"avgPrice,string"`
	ExecutedQty float64 `json:"executedQty,string"`
}
