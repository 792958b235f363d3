package api

import (
	"encoding/json"
	"time"

	models "TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	icache "TradePulse/internal/service/cache"
	"TradePulse/internal/service/metrics"
	"TradePulse/internal/service/ratelimit"
	"TradePulse/internal/usecase"
	xhttp "TradePulse/pkg/http"
	xlogger "TradePulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

const signalsCacheTTL = 15 * time.Second

// DashboardEchoHandler serves the read-only market endpoints: stored
// candles, recent signal decisions and a liveness probe.
type DashboardEchoHandler struct {
	logger  *xlogger.Logger
	candles *usecase.CandlesUseCase
	siglog  domrepo.SignalLog
	cache   icache.BytesCache
	rl      *ratelimit.Limiter
}

func NewDashboardEchoHandler(logger *xlogger.Logger, candles *usecase.CandlesUseCase, siglog domrepo.SignalLog) *DashboardEchoHandler {
	metrics.Register()
	return &DashboardEchoHandler{logger: logger, candles: candles, siglog: siglog, rl: ratelimit.New()}
}

// SetCache enables short-lived response caching for signal queries.
func (h *DashboardEchoHandler) SetCache(c icache.BytesCache) { h.cache = c }

func (h *DashboardEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/candles", h.Candles)
	g.GET("/signals", h.Signals)
	e.GET("/health", h.Health)
}

func (h *DashboardEchoHandler) Candles(c echo.Context) error {
	start := time.Now()
	endpoint := "candles"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.CandlesRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":candles", 5, 2) {
		h.logger.Warn("candles rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.TooManyRequestsResponse(c)
	}

	params := usecase.GetCandlesParams{
		Symbol:    req.Symbol,
		Timeframe: domrepo.NormalizeTimeframe(req.TF),
		Limit:     req.Limit,
	}
	if t, ok := xhttp.ParseTime(req.From); ok {
		params.From = &t
	}
	if t, ok := xhttp.ParseTime(req.To); ok {
		params.To = &t
	}

	res, err := h.candles.GetCandles(c.Request().Context(), params)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("candles usecase error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *DashboardEchoHandler) Signals(c echo.Context) error {
	start := time.Now()
	endpoint := "signals"
	defer func() { metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds()) }()

	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.rl.Allow(c.RealIP()+":signals", 5, 2) {
		h.logger.Warn("signals rate_limited", xlogger.String("remote", c.RealIP()))
		return xhttp.TooManyRequestsResponse(c)
	}
	tf := domrepo.NormalizeTimeframe(req.TF)

	cacheKey := "signals:" + req.Symbol + ":" + string(tf)
	if h.cache != nil && req.Limit == 50 {
		if b, ok, err := h.cache.GetBytes(cacheKey); err != nil {
			h.logger.Warn("signals cache_get_error", xlogger.Error(err))
		} else if ok {
			var cached []models.SignalRecord
			if err := json.Unmarshal(b, &cached); err == nil {
				return xhttp.SuccessResponse(c, cached)
			}
		}
	}

	recent, err := h.siglog.RecentSignals(c.Request().Context(), req.Symbol, tf, req.Limit)
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		h.logger.Error("signals query error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if h.cache != nil && req.Limit == 50 {
		if b, err := json.Marshal(recent); err == nil {
			if err := h.cache.SetBytes(cacheKey, b, signalsCacheTTL); err != nil {
				h.logger.Warn("signals cache_set_error", xlogger.Error(err))
			}
		}
	}
	return xhttp.SuccessResponse(c, recent)
}

func (h *DashboardEchoHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}
