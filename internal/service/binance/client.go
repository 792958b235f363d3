package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/service/ratelimit"
	xhttp "TradePulse/pkg/http"
	applogger "TradePulse/pkg/logger"
)

// Client is the USDT-M futures REST client. Public endpoints are
// unsigned; account and order endpoints carry an HMAC-SHA256 signature
// over the query string.
type Client struct {
	baseURL      string
	apiKey       string
	apiSecret    string
	recvWindowMS int64

	http    *xhttp.Client
	limiter *ratelimit.Limiter
	l       *applogger.Logger

	now func() time.Time
}

// Option configures the Client.
type Option func(*Client)

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) { c.l = l }
}

// WithRateLimiter injects a token-bucket limiter shared across clients.
func WithRateLimiter(rl *ratelimit.Limiter) Option {
	return func(c *Client) { c.limiter = rl }
}

// WithRecvWindow overrides the signed-request receive window.
func WithRecvWindow(ms int64) Option {
	return func(c *Client) { c.recvWindowMS = ms }
}

// ErrRateLimited is returned when the local limiter rejects a call
// before it reaches the venue.
var ErrRateLimited = fmt.Errorf("binance: local rate limit exceeded")

// New creates a Client. apiKey/apiSecret may be empty for read-only
// use of the public market-data endpoints.
func New(baseURL, apiKey, apiSecret string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL:      trimSlash(baseURL),
		apiKey:       apiKey,
		apiSecret:    apiSecret,
		recvWindowMS: 10000,
		http:         xhttp.NewClient(xhttp.WithTimeout(timeout)),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var _ domrepo.Exchange = (*Client)(nil)

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// kline rows arrive as [openTime, "o", "h", "l", "c", "v", closeTime, ...].
type klineRow []interface{}

func (r klineRow) bar() (models.Bar, error) {
	if len(r) < 6 {
		return models.Bar{}, fmt.Errorf("kline row too short: %d fields", len(r))
	}
	ot, ok := r[0].(float64)
	if !ok {
		return models.Bar{}, fmt.Errorf("kline open_time not numeric")
	}
	b := models.Bar{OpenTime: int64(ot)}
	for i, dst := range []*float64{&b.Open, &b.High, &b.Low, &b.Close, &b.Volume} {
		s, ok := r[i+1].(string)
		if !ok {
			return models.Bar{}, fmt.Errorf("kline field %d not a string", i+1)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return models.Bar{}, fmt.Errorf("kline field %d: %w", i+1, err)
		}
		*dst = v
	}
	return b, nil
}

func (c *Client) allow(key string) error {
	if c.limiter == nil {
		return nil
	}
	// 20 req/s per endpoint class keeps well under venue weight limits.
	if !c.limiter.Allow(key, 20, 20) {
		if c.l != nil {
			c.l.Warn("binance rate limit hit", applogger.String("endpoint", key))
		}
		return ErrRateLimited
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, params map[string][]string, dest interface{}) error {
	if err := c.allow(path); err != nil {
		return err
	}
	return c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: params,
	}, dest)
}

func (c *Client) sign(query url.Values) string {
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(query.Encode()))
	return hex.EncodeToString(mac.Sum(nil))
}

// signedRequest sends an authenticated request. Params are signed
// together with timestamp and recvWindow; POST bodies are
// form-urlencoded per venue convention.
func (c *Client) signedRequest(ctx context.Context, method, path string, params map[string]string, dest interface{}) error {
	if c.apiSecret == "" {
		return fmt.Errorf("binance: api secret not configured")
	}
	if err := c.allow(path); err != nil {
		return err
	}
	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	query.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	query.Set("recvWindow", strconv.FormatInt(c.recvWindowMS, 10))
	query.Set("signature", c.sign(query))

	headers := map[string]string{"X-MBX-APIKEY": c.apiKey}
	opts := &xhttp.RequestOptions{
		Method:  method,
		URL:     c.baseURL + path,
		Headers: headers,
	}
	if method == xhttp.MethodGet {
		opts.QueryParams = query
	} else {
		headers["Content-Type"] = "application/x-www-form-urlencoded"
		opts.Body = query.Encode()
	}
	start := time.Now()
	err := c.http.SendAndParse(ctx, opts, dest)
	if c.l != nil {
		if err != nil {
			c.l.Error("binance signed request failed",
				applogger.String("method", method),
				applogger.String("path", path),
				applogger.Error(err),
			)
		} else {
			c.l.Debug("binance signed request",
				applogger.String("method", method),
				applogger.String("path", path),
				applogger.Duration("took", time.Since(start)),
			)
		}
	}
	return err
}

// FetchBars returns up to limit closed-or-open bars oldest-first. The
// venue caps a single page at 1500 rows.
func (c *Client) FetchBars(ctx context.Context, symbol string, tf domrepo.Timeframe, limit int) ([]models.Bar, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 1500 {
		limit = 1500
	}
	var raw []klineRow
	err := c.getJSON(ctx, "/fapi/v1/klines", map[string][]string{
		"symbol":   {symbol},
		"interval": {string(tf)},
		"limit":    {strconv.Itoa(limit)},
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("fetch klines %s %s: %w", symbol, tf, err)
	}
	bars := make([]models.Bar, 0, len(raw))
	for _, row := range raw {
		b, err := row.bar()
		if err != nil {
			return nil, fmt.Errorf("fetch klines %s %s: %w", symbol, tf, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

// LatestClosedBar returns the most recent closed bar. The venue
// returns oldest-first and the last row may still be open, so with
// limit=2 the closed bar is the first row.
func (c *Client) LatestClosedBar(ctx context.Context, symbol string, tf domrepo.Timeframe) (*models.Bar, error) {
	var raw []klineRow
	err := c.getJSON(ctx, "/fapi/v1/klines", map[string][]string{
		"symbol":   {symbol},
		"interval": {string(tf)},
		"limit":    {"2"},
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("latest closed kline %s %s: %w", symbol, tf, err)
	}
	if len(raw) < 2 {
		return nil, domrepo.ErrInsufficientData
	}
	b, err := raw[0].bar()
	if err != nil {
		return nil, fmt.Errorf("latest closed kline %s %s: %w", symbol, tf, err)
	}
	return &b, nil
}

type exchangeInfoResp struct {
	Symbols []struct {
		Symbol  string `json:"symbol"`
		Filters []struct {
			FilterType string `json:"filterType"`
			StepSize   string `json:"stepSize"`
			TickSize   string `json:"tickSize"`
			Notional   string `json:"notional"`
		} `json:"filters"`
	} `json:"symbols"`
}

// SymbolFilters reads step size, tick size and min notional from
// exchangeInfo. Missing filters fall back to permissive defaults.
func (c *Client) SymbolFilters(ctx context.Context, symbol string) (models.SymbolFilters, error) {
	var resp exchangeInfoResp
	err := c.getJSON(ctx, "/fapi/v1/exchangeInfo", map[string][]string{"symbol": {symbol}}, &resp)
	if err != nil {
		return models.SymbolFilters{}, fmt.Errorf("exchange info %s: %w", symbol, err)
	}
	out := models.SymbolFilters{StepSize: 0.001, TickSize: 0.01}
	for _, s := range resp.Symbols {
		if s.Symbol != symbol {
			continue
		}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "LOT_SIZE":
				if v, err := strconv.ParseFloat(f.StepSize, 64); err == nil && v > 0 {
					out.StepSize = v
				}
			case "PRICE_FILTER":
				if v, err := strconv.ParseFloat(f.TickSize, 64); err == nil && v > 0 {
					out.TickSize = v
				}
			case "MIN_NOTIONAL":
				if v, err := strconv.ParseFloat(f.Notional, 64); err == nil {
					out.MinNotional = v
				}
			}
		}
		return out, nil
	}
	return models.SymbolFilters{}, fmt.Errorf("symbol %s not in exchangeInfo", symbol)
}

// MarkPrice returns the current mark price from premiumIndex.
func (c *Client) MarkPrice(ctx context.Context, symbol string) (float64, error) {
	var resp struct {
		MarkPrice string `json:"markPrice"`
	}
	err := c.getJSON(ctx, "/fapi/v1/premiumIndex", map[string][]string{"symbol": {symbol}}, &resp)
	if err != nil {
		return 0, fmt.Errorf("premium index %s: %w", symbol, err)
	}
	v, err := strconv.ParseFloat(resp.MarkPrice, 64)
	if err != nil {
		return 0, fmt.Errorf("premium index %s: parse mark price: %w", symbol, err)
	}
	return v, nil
}

// EquityUSDT returns the USDT wallet balance of the futures account.
func (c *Client) EquityUSDT(ctx context.Context) (float64, error) {
	var resp struct {
		Assets []struct {
			Asset              string `json:"asset"`
			TotalWalletBalance string `json:"totalWalletBalance"`
		} `json:"assets"`
	}
	if err := c.signedRequest(ctx, xhttp.MethodGet, "/fapi/v2/account", nil, &resp); err != nil {
		return 0, fmt.Errorf("account: %w", err)
	}
	for _, a := range resp.Assets {
		if a.Asset == "USDT" {
			v, err := strconv.ParseFloat(a.TotalWalletBalance, 64)
			if err != nil {
				return 0, fmt.Errorf("account: parse balance: %w", err)
			}
			return v, nil
		}
	}
	return 0, nil
}

// OpenPosition returns the signed position amount and entry price for
// symbol in one-way mode. A flat book returns (0, 0, nil).
func (c *Client) OpenPosition(ctx context.Context, symbol string) (float64, float64, error) {
	var resp []struct {
		Symbol       string `json:"symbol"`
		PositionSide string `json:"positionSide"`
		PositionAmt  string `json:"positionAmt"`
		EntryPrice   string `json:"entryPrice"`
	}
	err := c.signedRequest(ctx, xhttp.MethodGet, "/fapi/v2/positionRisk", map[string]string{"symbol": symbol}, &resp)
	if err != nil {
		return 0, 0, fmt.Errorf("position risk %s: %w", symbol, err)
	}
	for _, p := range resp {
		if p.Symbol != symbol {
			continue
		}
		if p.PositionSide != "" && p.PositionSide != "BOTH" {
			continue
		}
		amt, _ := strconv.ParseFloat(p.PositionAmt, 64)
		if amt == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(p.EntryPrice, 64)
		return amt, entry, nil
	}
	return 0, 0, nil
}

// SetLeverage sets the leverage multiplier for symbol.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	err := c.signedRequest(ctx, xhttp.MethodPost, "/fapi/v1/leverage", map[string]string{
		"symbol":   symbol,
		"leverage": strconv.Itoa(leverage),
	}, nil)
	if err != nil {
		return fmt.Errorf("set leverage %s: %w", symbol, err)
	}
	return nil
}

// SetMarginType switches the margin mode. The venue rejects the call
// when a position is open; callers should invoke it only while flat.
func (c *Client) SetMarginType(ctx context.Context, symbol string, marginType string) error {
	err := c.signedRequest(ctx, xhttp.MethodPost, "/fapi/v1/marginType", map[string]string{
		"symbol":     symbol,
		"marginType": marginType,
	}, nil)
	if err != nil {
		return fmt.Errorf("set margin type %s: %w", symbol, err)
	}
	return nil
}

// CreateOrder places a MARKET or STOP_MARKET order.
func (c *Client) CreateOrder(ctx context.Context, req models.OrderRequest) (models.OrderResult, error) {
	params := map[string]string{
		"symbol": req.Symbol,
		"side":   req.Side,
		"type":   req.Type,
	}
	if req.Quantity > 0 {
		params["quantity"] = strconv.FormatFloat(req.Quantity, 'f', -1, 64)
	}
	if req.StopPrice != nil {
		params["stopPrice"] = strconv.FormatFloat(*req.StopPrice, 'f', -1, 64)
	}
	if req.ReduceOnly {
		params["reduceOnly"] = "true"
	}
	var out models.OrderResult
	if err := c.signedRequest(ctx, xhttp.MethodPost, "/fapi/v1/order", params, &out); err != nil {
		return models.OrderResult{}, fmt.Errorf("create order %s %s %s: %w", req.Symbol, req.Side, req.Type, err)
	}
	if c.l != nil {
		c.l.Info("binance order placed",
			applogger.String("symbol", req.Symbol),
			applogger.String("side", req.Side),
			applogger.String("type", req.Type),
			applogger.Float64("qty", req.Quantity),
			applogger.Int64("order_id", out.OrderID),
		)
	}
	return out, nil
}
