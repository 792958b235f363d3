package telegram

import (
	"context"
	"fmt"
	"time"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	xhttp "TradePulse/pkg/http"
	applogger "TradePulse/pkg/logger"
)

// Notifier sends signal and order alerts to a Telegram chat. An unset
// token or chat ID turns every call into a no-op, so the worker never
// needs to know whether notifications are configured.
type Notifier struct {
	botToken string
	chatID   string
	http     *xhttp.Client
	l        *applogger.Logger
}

const sendTimeout = 10 * time.Second

func New(botToken, chatID string, l *applogger.Logger) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		http:     xhttp.NewClient(xhttp.WithTimeout(sendTimeout)),
		l:        l,
	}
}

var _ domrepo.Notifier = (*Notifier)(nil)

func (n *Notifier) enabled() bool { return n.botToken != "" && n.chatID != "" }

// Deliver sends one message synchronously. No-op when unconfigured;
// the error is returned so queued delivery can retry.
func (n *Notifier) Deliver(text string) error {
	if !n.enabled() {
		return nil
	}
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.botToken)
	body := map[string]string{"chat_id": n.chatID, "text": text}

	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	return n.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    url,
		Body:   body,
	}, nil)
}

// send delivers one message, retrying once on transport failure.
// Delivery is best-effort; callers never block decisions on it.
func (n *Notifier) send(text string) {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if err = n.Deliver(text); err == nil {
			return
		}
	}
	if n.l != nil {
		n.l.Warn("telegram send failed", applogger.Error(err))
	}
}

func formatSignal(symbol string, tf domrepo.Timeframe, action models.Action, closeTime int64) string {
	return fmt.Sprintf("[TradePulse] Signal: %s %s action=%s close_time=%d", symbol, tf, action, closeTime)
}

func formatOrder(symbol string, side models.Side, orderType string, qty, price float64, orderID int64) string {
	return fmt.Sprintf("[TradePulse] Order: %s %s %s qty=%v price=%v orderId=%d", symbol, side, orderType, qty, price, orderID)
}

func (n *Notifier) NotifySignal(symbol string, tf domrepo.Timeframe, action models.Action, closeTime int64) {
	n.send(formatSignal(symbol, tf, action, closeTime))
}

func (n *Notifier) NotifyOrder(symbol string, side models.Side, orderType string, qty, price float64, orderID int64) {
	n.send(formatOrder(symbol, side, orderType, qty, price, orderID))
}

func (n *Notifier) NotifyAlert(text string) {
	n.send("[TradePulse] " + text)
}
