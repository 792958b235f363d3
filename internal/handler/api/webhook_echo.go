package api

import (
	"crypto/subtle"

	models "TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	xhttp "TradePulse/pkg/http"
	xlogger "TradePulse/pkg/logger"

	"github.com/labstack/echo/v4"
)

// WebhookEchoHandler ingests candle-close webhooks (TradingView style
// payloads) and enqueues them as bar-close events.
type WebhookEchoHandler struct {
	logger *xlogger.Logger
	store  domrepo.StateStore
	pub    domrepo.EventPublisher
	secret string
}

func NewWebhookEchoHandler(logger *xlogger.Logger, store domrepo.StateStore, pub domrepo.EventPublisher, secret string) *WebhookEchoHandler {
	return &WebhookEchoHandler{logger: logger, store: store, pub: pub, secret: secret}
}

func (h *WebhookEchoHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/webhook")
	g.POST("/tv", h.TV)
}

func (h *WebhookEchoHandler) TV(c echo.Context) error {
	req := &models.WebhookRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if subtle.ConstantTimeCompare([]byte(req.Secret), []byte(h.secret)) != 1 {
		h.logger.Warn("webhook invalid secret", xlogger.String("symbol", req.Symbol))
		return xhttp.UnauthorizedResponse(c, "invalid secret")
	}
	if req.Event != models.EventCandleClosed {
		return xhttp.BadRequestResponse(c, "unsupported event: "+req.Event)
	}

	ev := models.BarCloseEvent{
		Symbol:    req.Symbol,
		Timeframe: string(domrepo.NormalizeTimeframe(req.TF)),
		CloseTime: req.Time,
		Source:    "webhook",
	}

	// ingest-level dedup in its own namespace so the worker's own
	// at-most-once key stays untouched for this event
	fresh, err := h.store.MarkEventSeen(c.Request().Context(), "webhook:"+ev.DedupKey())
	if err != nil {
		h.logger.Error("webhook dedup error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	if !fresh {
		return xhttp.SuccessResponse(c, map[string]interface{}{
			"ok": true, "status": "duplicate", "dedup_key": ev.DedupKey(),
		})
	}

	if err := h.pub.PublishBarClose(c.Request().Context(), ev); err != nil {
		h.logger.Error("webhook publish error", xlogger.Error(err))
		return xhttp.AppErrorResponse(c, err)
	}
	return xhttp.SuccessResponse(c, map[string]interface{}{
		"ok": true, "status": "queued", "dedup_key": ev.DedupKey(),
	})
}
