package scheduler

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"bookstore/internal/models"
	"bookstore/internal/services"
)

// StaleOrderReason is recorded on orders cancelled by the reclaimer.
const StaleOrderReason = "payment timeout"

// OrderLister selects the orders the jobs work on.
type OrderLister interface {
	ListByStatuses(ctx context.Context, statuses []models.OrderStatus, limit int) ([]models.Order, error)
	ListPendingBefore(ctx context.Context, t time.Time, limit int) ([]models.Order, error)
	ListShippedSince(ctx context.Context, t time.Time, limit int) ([]models.Order, error)
	MarkShipmentNotified(ctx context.Context, id string, at time.Time) (bool, error)
	ClearShipmentNotified(ctx context.Context, id string) error
}

// OrderTransitioner applies lifecycle transitions.
type OrderTransitioner interface {
	AdvanceOrder(ctx context.Context, orderID, actor string) (*models.Order, error)
	CancelOrder(ctx context.Context, in services.CancelOrderInput) (*models.Order, error)
}

// Progression moves active orders one state forward per run.
type Progression struct {
	orders      OrderLister
	transitions OrderTransitioner
	batchSize   int
	autoConfirm bool
	logger      *zap.Logger
}

// NewProgression creates the progression job. With autoConfirm unset pending
// orders wait for payment or an administrator.
func NewProgression(orders OrderLister, transitions OrderTransitioner, batchSize int, autoConfirm bool, logger *zap.Logger) *Progression {
	return &Progression{
		orders:      orders,
		transitions: transitions,
		batchSize:   batchSize,
		autoConfirm: autoConfirm,
		logger:      nopIfNil(logger),
	}
}

func (p *Progression) Run(ctx context.Context) error {
	// Pending orders get their own batch: ones that keep failing reservation
	// must not crowd out confirmed and shipped orders.
	batch, err := p.orders.ListByStatuses(ctx, []models.OrderStatus{models.OrderStatusConfirmed, models.OrderStatusShipped}, p.batchSize)
	if err != nil {
		return errors.Wrap(err, "select orders to advance")
	}
	if p.autoConfirm {
		pending, err := p.orders.ListByStatuses(ctx, []models.OrderStatus{models.OrderStatusPending}, p.batchSize)
		if err != nil {
			return errors.Wrap(err, "select pending orders to confirm")
		}
		batch = append(batch, pending...)
	}

	advanced := 0
	for _, order := range batch {
		if ctx.Err() != nil {
			break
		}
		updated, err := p.transitions.AdvanceOrder(ctx, order.ID, services.ActorSystem)
		if err != nil {
			p.logger.Warn("failed to advance order", zap.String("order_id", order.ID), zap.String("status", string(order.Status)), zap.Error(err))
			continue
		}
		if updated.Status != order.Status {
			advanced++
		}
	}
	if advanced > 0 {
		p.logger.Info("orders advanced", zap.Int("count", advanced), zap.Int("selected", len(batch)))
	}
	return nil
}

// StaleReclaimer cancels pending orders that were never paid.
type StaleReclaimer struct {
	orders      OrderLister
	transitions OrderTransitioner
	maxAge      time.Duration
	batchSize   int
	logger      *zap.Logger
	now         func() time.Time
}

// NewStaleReclaimer creates the stale order job.
func NewStaleReclaimer(orders OrderLister, transitions OrderTransitioner, maxAge time.Duration, batchSize int, logger *zap.Logger) *StaleReclaimer {
	return &StaleReclaimer{
		orders:      orders,
		transitions: transitions,
		maxAge:      maxAge,
		batchSize:   batchSize,
		logger:      nopIfNil(logger),
		now:         time.Now,
	}
}

func (s *StaleReclaimer) Run(ctx context.Context) error {
	batch, err := s.orders.ListPendingBefore(ctx, s.now().Add(-s.maxAge), s.batchSize)
	if err != nil {
		return errors.Wrap(err, "select stale orders")
	}

	cancelled := 0
	for _, order := range batch {
		if ctx.Err() != nil {
			break
		}
		_, err := s.transitions.CancelOrder(ctx, services.CancelOrderInput{
			OrderID: order.ID,
			Reason:  StaleOrderReason,
			Actor:   services.ActorSystem,
		})
		if err != nil {
			s.logger.Warn("failed to cancel stale order", zap.String("order_id", order.ID), zap.Error(err))
			continue
		}
		cancelled++
	}
	if cancelled > 0 {
		s.logger.Info("stale orders cancelled", zap.Int("count", cancelled))
	}
	return nil
}

// ShipmentNotifier tells customers about recently shipped orders, once per order.
type ShipmentNotifier struct {
	orders    OrderLister
	notifier  services.Notifier
	window    time.Duration
	batchSize int
	logger    *zap.Logger
	now       func() time.Time
}

// NewShipmentNotifier creates the shipment notification job.
func NewShipmentNotifier(orders OrderLister, notifier services.Notifier, window time.Duration, batchSize int, logger *zap.Logger) *ShipmentNotifier {
	return &ShipmentNotifier{
		orders:    orders,
		notifier:  notifier,
		window:    window,
		batchSize: batchSize,
		logger:    nopIfNil(logger),
		now:       time.Now,
	}
}

func (n *ShipmentNotifier) Run(ctx context.Context) error {
	now := n.now()
	batch, err := n.orders.ListShippedSince(ctx, now.Add(-n.window), n.batchSize)
	if err != nil {
		return errors.Wrap(err, "select shipped orders")
	}

	sent := 0
	for i := range batch {
		order := &batch[i]
		if ctx.Err() != nil {
			break
		}
		claimed, err := n.orders.MarkShipmentNotified(ctx, order.ID, now)
		if err != nil {
			n.logger.Warn("failed to claim shipment notification", zap.String("order_id", order.ID), zap.Error(err))
			continue
		}
		if !claimed {
			continue
		}
		if err := n.notifier.SendShippingNotification(ctx, order); err != nil {
			n.logger.Warn("failed to send shipping notification", zap.String("order_id", order.ID), zap.Error(err))
			if err := n.orders.ClearShipmentNotified(ctx, order.ID); err != nil {
				n.logger.Error("failed to release shipment notification claim", zap.String("order_id", order.ID), zap.Error(err))
			}
			continue
		}
		sent++
	}
	if sent > 0 {
		n.logger.Info("shipping notifications sent", zap.Int("count", sent))
	}
	return nil
}

func nopIfNil(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
