package api

import (
	"crypto/subtle"
	"time"

	models "TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	"TradePulse/internal/engine/arbiter"
	"TradePulse/internal/engine/strategy"
	internalrepo "TradePulse/internal/repository"
	"TradePulse/internal/service/metrics"
	"TradePulse/internal/usecase"
	xhttp "TradePulse/pkg/http"
	xlogger "TradePulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AdminEchoHandler exposes the operator controls: kill switch, entry
// gate, emergency stop, parameter sets, threshold overrides and the
// unified engine snapshot.
type AdminEchoHandler struct {
	logger      *xlogger.Logger
	admin       *usecase.AdminState
	snapshot    *usecase.EngineSnapshotUseCase
	store       domrepo.StateStore
	thresholds  *arbiter.Thresholds
	thStore     *internalrepo.ThresholdStore
	adminSecret string
}

func NewAdminEchoHandler(
	logger *xlogger.Logger,
	admin *usecase.AdminState,
	snapshot *usecase.EngineSnapshotUseCase,
	store domrepo.StateStore,
	thresholds *arbiter.Thresholds,
	thStore *internalrepo.ThresholdStore,
	adminSecret string,
) *AdminEchoHandler {
	metrics.Register()
	return &AdminEchoHandler{
		logger:      logger,
		admin:       admin,
		snapshot:    snapshot,
		store:       store,
		thresholds:  thresholds,
		thStore:     thStore,
		adminSecret: adminSecret,
	}
}

func (h *AdminEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/admin")
	g.GET("/state", h.State)
	g.POST("/trade/enable", h.TradeEnable)
	g.POST("/trade/disable", h.TradeDisable)
	g.GET("/trade/status", h.TradeStatus)
	g.POST("/entry/enable", h.EntryEnable)
	g.POST("/entry/disable", h.EntryDisable)
	g.POST("/emergency/on", h.EmergencyOn)
	g.POST("/emergency/off", h.EmergencyOff)
	g.GET("/params/current", h.CurrentParams)
	g.POST("/params/update", h.UpdateParams)
	g.POST("/thresholds", h.SetThresholds)
	g.GET("/logs", h.Logs)
}

func (h *AdminEchoHandler) authorized(secret string) bool {
	return h.adminSecret != "" && subtle.ConstantTimeCompare([]byte(secret), []byte(h.adminSecret)) == 1
}

func (h *AdminEchoHandler) observe(endpoint string, start time.Time, err error) {
	metrics.APILatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
	}
}

func (h *AdminEchoHandler) State(c echo.Context) error {
	start := time.Now()
	req := &models.SnapshotRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.snapshot.Get(c.Request().Context(), req.Symbol, domrepo.NormalizeTimeframe(req.TF))
	h.observe("admin_state", start, err)
	if err != nil {
		h.logger.Error("admin state error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AdminEchoHandler) setSwitch(c echo.Context, endpoint string, apply func(c echo.Context, req *models.AdminRequest) error) error {
	start := time.Now()
	req := &models.AdminRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.authorized(req.Secret) {
		return xhttp.UnauthorizedResponse(c, "invalid admin secret")
	}
	err := apply(c, req)
	h.observe(endpoint, start, err)
	if err != nil {
		h.logger.Error(endpoint+" error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return nil
}

func (h *AdminEchoHandler) TradeEnable(c echo.Context) error {
	return h.setSwitch(c, "trade_enable", func(c echo.Context, req *models.AdminRequest) error {
		if err := h.admin.SetTradeEnabled(c.Request().Context(), true, req.Reason); err != nil {
			return err
		}
		return xhttp.SuccessResponse(c, map[string]bool{"ok": true, "trade_enabled": true})
	})
}

func (h *AdminEchoHandler) TradeDisable(c echo.Context) error {
	return h.setSwitch(c, "trade_disable", func(c echo.Context, req *models.AdminRequest) error {
		if err := h.admin.SetTradeEnabled(c.Request().Context(), false, req.Reason); err != nil {
			return err
		}
		return xhttp.SuccessResponse(c, map[string]bool{"ok": true, "trade_enabled": false})
	})
}

func (h *AdminEchoHandler) TradeStatus(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]bool{
		"trade_enabled": h.admin.TradeEnabled(c.Request().Context()),
	})
}

func (h *AdminEchoHandler) EntryEnable(c echo.Context) error {
	return h.setSwitch(c, "entry_enable", func(c echo.Context, req *models.AdminRequest) error {
		if err := h.admin.SetNewEntry(c.Request().Context(), true, req.Reason); err != nil {
			return err
		}
		return xhttp.SuccessResponse(c, map[string]bool{"ok": true, "new_entry_enabled": true})
	})
}

func (h *AdminEchoHandler) EntryDisable(c echo.Context) error {
	return h.setSwitch(c, "entry_disable", func(c echo.Context, req *models.AdminRequest) error {
		if err := h.admin.SetNewEntry(c.Request().Context(), false, req.Reason); err != nil {
			return err
		}
		return xhttp.SuccessResponse(c, map[string]bool{"ok": true, "new_entry_enabled": false})
	})
}

func (h *AdminEchoHandler) EmergencyOn(c echo.Context) error {
	return h.setSwitch(c, "emergency_on", func(c echo.Context, req *models.AdminRequest) error {
		if err := h.admin.SetEmergency(c.Request().Context(), true, req.Reason); err != nil {
			return err
		}
		return xhttp.SuccessResponse(c, map[string]bool{"ok": true, "emergency_stop": true})
	})
}

func (h *AdminEchoHandler) EmergencyOff(c echo.Context) error {
	return h.setSwitch(c, "emergency_off", func(c echo.Context, req *models.AdminRequest) error {
		if err := h.admin.SetEmergency(c.Request().Context(), false, req.Reason); err != nil {
			return err
		}
		return xhttp.SuccessResponse(c, map[string]bool{"ok": true, "emergency_stop": false})
	})
}

func (h *AdminEchoHandler) CurrentParams(c echo.Context) error {
	ctx := c.Request().Context()
	p := strategy.DefaultParams()
	if overlay, err := h.store.ActiveParamOverlay(ctx); err == nil {
		if merged, err := p.Merge(overlay); err == nil {
			p = merged
		}
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"trade_enabled": h.admin.TradeEnabled(ctx),
		"params":        p,
	})
}

func (h *AdminEchoHandler) UpdateParams(c echo.Context) error {
	start := time.Now()
	req := &models.UpdateParamsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.authorized(req.Secret) {
		return xhttp.UnauthorizedResponse(c, "invalid admin secret")
	}
	if len(req.Params) == 0 {
		return xhttp.SuccessResponse(c, map[string]interface{}{"ok": true, "message": "No changes"})
	}

	// reject overlays the typed param set cannot absorb
	merged, err := strategy.DefaultParams().Merge(req.Params)
	if err != nil {
		h.observe("params_update", start, err)
		return xhttp.BadRequestResponse(c, err.Error())
	}
	if err := h.store.SetActiveParamOverlay(c.Request().Context(), req.Name, req.Params); err != nil {
		h.observe("params_update", start, err)
		h.logger.Error("params update error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	h.observe("params_update", start, nil)
	return xhttp.SuccessResponse(c, map[string]interface{}{"ok": true, "params": merged})
}

func (h *AdminEchoHandler) SetThresholds(c echo.Context) error {
	start := time.Now()
	req := &models.ThresholdOverrideRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if !h.authorized(req.Secret) {
		return xhttp.UnauthorizedResponse(c, "invalid admin secret")
	}
	p := arbiter.Profile{
		RangeEnter:    req.RangeEnter,
		RangeExit:     req.RangeExit,
		TrendEnter:    req.TrendEnter,
		TrendExit:     req.TrendExit,
		SlopeMin:      req.SlopeMin,
		SlopeMax:      req.SlopeMax,
		ConfirmN:      req.ConfirmN,
		CooldownMBars: req.CooldownMBars,
	}
	tf := domrepo.Timeframe(req.TF)
	h.thresholds.SetOverride(req.Symbol, tf, p)
	err := h.thStore.Save(req.Symbol, tf, p)
	h.observe("thresholds", start, err)
	if err != nil {
		h.logger.Error("threshold save error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{"ok": true, "profile": p})
}

func (h *AdminEchoHandler) Logs(c echo.Context) error {
	req := &models.LogsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	return xhttp.SuccessResponse(c, h.logger.RecentLogs(req.Limit))
}
