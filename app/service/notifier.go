package service

import (
	"context"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/wali-delivery/ms-go-payments/app/bus"
)

// NotificationGateway delivers a lifecycle event to the user-facing channel
// (push, SMS, in-app). Implementations must tolerate redelivery.
type NotificationGateway interface {
	Send(ctx context.Context, userID string, kind bus.EventKind, data map[string]string) error
}

// Notifier consumes the event bus and forwards each event to the gateway.
// Delivery failures are logged and skipped, never retried against the bus.
type Notifier struct {
	logger  *logrus.Entry
	gateway NotificationGateway
}

func NewNotifier(logger *logrus.Entry, gateway NotificationGateway) *Notifier {
	return &Notifier{logger: logger, gateway: gateway}
}

// Run drains the subscription until the channel closes or the context ends.
func (n *Notifier) Run(ctx context.Context, events <-chan bus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			n.deliver(ctx, event)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, event bus.Event) {
	data := map[string]string{
		"transaction_id": event.TransactionID,
		"order_ref":      event.OrderRef,
		"provider":       event.Provider,
		"amount":         strconv.FormatInt(event.Amount, 10),
		"currency":       event.Currency,
	}
	if event.Message != "" {
		data["message"] = event.Message
	}

	if err := n.gateway.Send(ctx, event.UserID, event.Kind, data); err != nil {
		n.logger.WithFields(logrus.Fields{
			"event_kind":     string(event.Kind),
			"transaction_id": event.TransactionID,
			"user_id":        event.UserID,
		}).WithError(err).Error("notification delivery failed")
	}
}

// LogGateway is the default gateway: it writes the notification to the log.
// Real channels are wired in by the deployment that owns them.
type LogGateway struct {
	logger *logrus.Entry
}

func NewLogGateway(logger *logrus.Entry) *LogGateway {
	return &LogGateway{logger: logger}
}

func (g *LogGateway) Send(_ context.Context, userID string, kind bus.EventKind, data map[string]string) error {
	fields := logrus.Fields{
		"user_id":    userID,
		"event_kind": string(kind),
	}
	for k, v := range data {
		fields[k] = v
	}
	g.logger.WithFields(fields).Info("payment notification")
	return nil
}
