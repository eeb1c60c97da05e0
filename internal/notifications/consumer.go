package notifications

import (
	"encoding/json"

	"github.com/go-faster/errors"
	amqp "github.com/streadway/amqp"
	"go.uber.org/zap"
)

// ErrUnknownMessage is returned for messages with an unsupported type.
var ErrUnknownMessage = errors.New("unknown notification type")

// MessageHandler returns the consumer callback that dispatches queued
// order notifications. Delivery to the customer is logged.
func MessageHandler(logger *zap.Logger) func(msg amqp.Delivery) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(msg amqp.Delivery) error {
		var m OrderMessage
		if err := json.Unmarshal(msg.Body, &m); err != nil {
			return errors.Wrap(err, "decode order message")
		}

		var subject string
		switch m.Type {
		case RoutingOrderConfirmation:
			subject = "Your order " + m.Code + " has been placed"
		case RoutingOrderShipped:
			subject = "Your order " + m.Code + " is on its way"
		default:
			return errors.Wrapf(ErrUnknownMessage, "%q", m.Type)
		}

		logger.Info("notification dispatched",
			zap.String("type", m.Type),
			zap.String("order_id", m.OrderID),
			zap.String("email", m.Email),
			zap.String("subject", subject),
			zap.Int("items", len(m.Items)),
		)
		return nil
	}
}
