package telegram

import (
	"context"

	"TradePulse/internal/domain/models"
	domrepo "TradePulse/internal/domain/repository"
	applogger "TradePulse/pkg/logger"
	"TradePulse/pkg/queue"
)

// MessageType is the queue message type for outbound Telegram sends.
const MessageType = "telegram_message"

// Payload is one queued Telegram message.
type Payload struct {
	Text string `json:"text"`
}

// QueuedNotifier pushes messages through the Redis job queue so
// delivery retries never sit on the decision path. Enqueue failure
// falls back to direct delivery.
type QueuedNotifier struct {
	q       queue.QueueService
	direct  *Notifier
	l       *applogger.Logger
	closeFn func(ctx context.Context) error
}

func NewQueued(q queue.QueueService, direct *Notifier, l *applogger.Logger) *QueuedNotifier {
	return &QueuedNotifier{q: q, direct: direct, l: l}
}

var _ domrepo.Notifier = (*QueuedNotifier)(nil)

// SetCloseFunc registers the queue shutdown hook invoked by Close.
func (n *QueuedNotifier) SetCloseFunc(fn func(ctx context.Context) error) { n.closeFn = fn }

// Close drains the underlying queue workers.
func (n *QueuedNotifier) Close() error {
	if n.closeFn == nil {
		return nil
	}
	return n.closeFn(context.Background())
}

func (n *QueuedNotifier) enqueue(text string) {
	if err := n.q.PublishMessage(context.Background(), MessageType, Payload{Text: text}); err != nil {
		if n.l != nil {
			n.l.Warn("notify enqueue failed; sending direct", applogger.Error(err))
		}
		if err := n.direct.Deliver(text); err != nil && n.l != nil {
			n.l.Warn("telegram send failed", applogger.Error(err))
		}
	}
}

func (n *QueuedNotifier) NotifySignal(symbol string, tf domrepo.Timeframe, action models.Action, closeTime int64) {
	n.enqueue(formatSignal(symbol, tf, action, closeTime))
}

func (n *QueuedNotifier) NotifyOrder(symbol string, side models.Side, orderType string, qty, price float64, orderID int64) {
	n.enqueue(formatOrder(symbol, side, orderType, qty, price, orderID))
}

func (n *QueuedNotifier) NotifyAlert(text string) {
	n.enqueue("[TradePulse] " + text)
}

// SendJob delivers queued Telegram messages.
type SendJob struct {
	n *Notifier
}

func NewSendJob(n *Notifier) *SendJob { return &SendJob{n: n} }

func (j *SendJob) Name() string { return "telegram_send" }

func (j *SendJob) Type() string { return MessageType }

func (j *SendJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[Payload](payload)
	if err != nil {
		return err
	}
	return j.n.Deliver(p.Text)
}
