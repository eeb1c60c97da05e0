package notifications

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"bookstore/internal/models"
)

// Routing keys of the order events.
const (
	RoutingOrderConfirmation = "order.confirmation"
	RoutingOrderShipped      = "order.shipped"
)

// Publisher sends a message body under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, body []byte) error
}

// OrderMessage is the payload of an order notification.
type OrderMessage struct {
	Type       string             `json:"type"`
	OrderID    string             `json:"order_id"`
	Code       string             `json:"code"`
	UserID     string             `json:"user_id"`
	Email      string             `json:"email,omitempty"`
	Status     models.OrderStatus `json:"status"`
	Total      string             `json:"total"`
	Items      []MessageItem      `json:"items"`
	ShippedAt  *time.Time         `json:"shipped_at,omitempty"`
	OccurredAt time.Time          `json:"occurred_at"`
}

// MessageItem is one order line inside an OrderMessage.
type MessageItem struct {
	BookID   string `json:"book_id"`
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

// AMQPNotifier publishes customer notifications as order events.
type AMQPNotifier struct {
	publisher Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewAMQPNotifier creates a notifier publishing through publisher.
func NewAMQPNotifier(publisher Publisher, logger *zap.Logger) *AMQPNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AMQPNotifier{publisher: publisher, logger: logger, now: time.Now}
}

func (n *AMQPNotifier) SendOrderConfirmation(ctx context.Context, order *models.Order) error {
	return n.publish(ctx, RoutingOrderConfirmation, order)
}

func (n *AMQPNotifier) SendShippingNotification(ctx context.Context, order *models.Order) error {
	return n.publish(ctx, RoutingOrderShipped, order)
}

func (n *AMQPNotifier) publish(ctx context.Context, routingKey string, order *models.Order) error {
	body, err := json.Marshal(newOrderMessage(routingKey, order, n.now()))
	if err != nil {
		return errors.Wrap(err, "marshal order message")
	}
	if err := n.publisher.Publish(ctx, routingKey, body); err != nil {
		return errors.Wrapf(err, "publish %s for order %s", routingKey, order.ID)
	}
	n.logger.Info("order notification queued",
		zap.String("routing_key", routingKey),
		zap.String("order_id", order.ID),
	)
	return nil
}

func newOrderMessage(routingKey string, order *models.Order, at time.Time) OrderMessage {
	msg := OrderMessage{
		Type:       routingKey,
		OrderID:    order.ID,
		Code:       order.Code,
		UserID:     order.UserID,
		Status:     order.Status,
		Total:      order.TotalPrice.StringFixed(2),
		Items:      make([]MessageItem, 0, len(order.Items)),
		ShippedAt:  order.ShippedAt,
		OccurredAt: at,
	}
	if order.User != nil {
		msg.Email = order.User.Email
	}
	for _, item := range order.Items {
		msg.Items = append(msg.Items, MessageItem{
			BookID:   item.BookID,
			Title:    item.Title,
			Quantity: item.Quantity,
			Price:    item.Price.StringFixed(2),
		})
	}
	return msg
}

// LogNotifier only logs notifications. It is used when no broker is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SendOrderConfirmation(_ context.Context, order *models.Order) error {
	n.logger.Info("order confirmation", zap.String("order_id", order.ID), zap.String("code", order.Code))
	return nil
}

func (n *LogNotifier) SendShippingNotification(_ context.Context, order *models.Order) error {
	n.logger.Info("shipping notification", zap.String("order_id", order.ID), zap.String("code", order.Code))
	return nil
}
