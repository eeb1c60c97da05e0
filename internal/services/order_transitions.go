package services

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"bookstore/internal/models"
)

// ActorSystem marks transitions made by the schedulers.
const ActorSystem = "system"

const paymentConfirmAttempts = 3

var errTransitionLost = errors.New("order status changed before update")

// StatusUpdateInput is an administrative status change.
type StatusUpdateInput struct {
	OrderID string
	Status  models.OrderStatus
	Note    string
	Actor   string
}

// CancelOrderInput cancels an order. A non-empty UserID restricts the
// cancellation to the owner of the order.
type CancelOrderInput struct {
	OrderID string
	UserID  string
	Reason  string
	Actor   string
}

// PaymentConfirmationInput records a completed payment.
type PaymentConfirmationInput struct {
	OrderID       string
	TransactionID string
	Actor         string
}

type transition struct {
	target  models.OrderStatus
	payment models.PaymentStatus
	reason  string
	message string
	actor   string
	txID    string
	// reached reports whether the order already is where the transition leads.
	reached func(*models.Order) bool
}

// UpdateStatus moves an order to the requested status.
func (s *OrderService) UpdateStatus(ctx context.Context, in StatusUpdateInput) (*models.Order, error) {
	if !in.Status.Valid() {
		return nil, errors.Wrapf(ErrInvalidStatus, "unknown status %q", in.Status)
	}
	order, err := s.GetOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status == in.Status {
		return order, nil
	}
	if order.Status.Terminal() {
		return nil, errors.Wrapf(ErrInvalidStatus, "order %s is %s", order.Code, order.Status)
	}
	if !canTransition(order.Status, in.Status) {
		return nil, errors.Wrapf(ErrInvalidStatus, "%s -> %s", order.Status, in.Status)
	}

	message := in.Note
	if message == "" {
		message = fmt.Sprintf("status changed to %s", in.Status)
	}
	return s.applyTransition(ctx, order, transition{
		target:  in.Status,
		payment: paymentStatusFor(in.Status),
		reason:  in.Note,
		message: message,
		actor:   in.Actor,
		reached: statusIs(in.Status),
	})
}

// CancelOrder cancels a pending or confirmed order and returns reserved
// stock when the order was confirmed.
func (s *OrderService) CancelOrder(ctx context.Context, in CancelOrderInput) (*models.Order, error) {
	order, err := s.GetOrder(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}
	if in.UserID != "" && order.UserID != in.UserID {
		return nil, errors.Wrapf(ErrOrderNotFound, "order %s", in.OrderID)
	}
	if order.Status == models.OrderStatusCancelled {
		return order, nil
	}
	if !canCancel(order.Status) {
		return nil, errors.Wrapf(ErrOrderNotCancellable, "order %s is %s", order.Code, order.Status)
	}

	message := "order cancelled"
	if in.Reason != "" {
		message += ": " + in.Reason
	}
	return s.applyTransition(ctx, order, transition{
		target:  models.OrderStatusCancelled,
		payment: models.PaymentStatusRefunded,
		reason:  in.Reason,
		message: message,
		actor:   in.Actor,
		reached: statusIs(models.OrderStatusCancelled),
	})
}

// ConfirmPayment marks the order paid. A pending order is confirmed at the
// same time; later states only record the payment.
func (s *OrderService) ConfirmPayment(ctx context.Context, in PaymentConfirmationInput) (*models.Order, error) {
	var lastErr error
	for range paymentConfirmAttempts {
		order, err := s.GetOrder(ctx, in.OrderID)
		if err != nil {
			return nil, err
		}
		if order.PaymentStatus == models.PaymentStatusCompleted {
			return order, nil
		}
		if order.Status == models.OrderStatusCancelled {
			return nil, errors.Wrapf(ErrInvalidStatus, "order %s is cancelled", order.Code)
		}

		target := order.Status
		if target == models.OrderStatusPending {
			target = models.OrderStatusConfirmed
		}
		updated, err := s.applyTransition(ctx, order, transition{
			target:  target,
			payment: models.PaymentStatusCompleted,
			message: "payment received",
			actor:   in.Actor,
			txID:    in.TransactionID,
			reached: func(o *models.Order) bool { return o.PaymentStatus == models.PaymentStatusCompleted },
		})
		if err == nil {
			return updated, nil
		}
		if !errors.Is(err, ErrStatusConflict) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// AdvanceOrder moves the order one step along pending, confirmed, shipped,
// delivered. Terminal orders are returned unchanged.
func (s *OrderService) AdvanceOrder(ctx context.Context, orderID, actor string) (*models.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.Terminal() {
		return order, nil
	}
	next, ok := nextStatus(order.Status)
	if !ok {
		return order, nil
	}
	return s.applyTransition(ctx, order, transition{
		target:  next,
		payment: paymentStatusFor(next),
		message: fmt.Sprintf("status changed to %s", next),
		actor:   actor,
		reached: statusIs(next),
	})
}

// applyTransition changes the status of order with a compare-and-set on its
// current status, together with the stock side effects, in one transaction.
func (s *OrderService) applyTransition(ctx context.Context, order *models.Order, t transition) (*models.Order, error) {
	from := order.Status
	reserve := from == models.OrderStatusPending && t.target == models.OrderStatusConfirmed
	release := from == models.OrderStatusConfirmed && t.target == models.OrderStatusCancelled
	change := models.StatusChange{
		To:            t.target,
		PaymentStatus: t.payment,
		Reason:        t.reason,
		At:            s.now(),
	}

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if reserve {
			if err := s.inventory.ReserveItems(ctx, order.Items); err != nil {
				return errors.Wrapf(err, "reserve stock for order %s", order.Code)
			}
		}
		if release {
			if err := s.inventory.ReturnItems(ctx, order.Items); err != nil {
				return errors.Wrapf(err, "release stock of order %s", order.Code)
			}
		}

		ok, err := s.orders.TransitionStatus(ctx, order.ID, from, change)
		if err != nil || !ok {
			// undo the stock change for stores without transactions
			if reserve {
				s.inventory.ReleaseItems(ctx, order.Items)
			}
			if release {
				if err := s.inventory.ReserveItems(ctx, order.Items); err != nil {
					s.logger.Error("failed to restore reservation after lost cancellation", zap.String("order_id", order.ID), zap.Error(err))
				}
			}
			if err != nil {
				return errors.Wrapf(err, "update status of order %s", order.Code)
			}
			return errTransitionLost
		}

		note := &models.OrderNote{
			OrderID: order.ID,
			Status:  t.target,
			Message: t.message,
			Actor:   t.actor,
		}
		if err := s.orders.AppendNote(ctx, note); err != nil {
			return errors.Wrapf(err, "append note to order %s", order.Code)
		}
		return nil
	})
	if errors.Is(err, errTransitionLost) {
		current, getErr := s.GetOrder(ctx, order.ID)
		if getErr != nil {
			return nil, getErr
		}
		if t.reached(current) {
			return current, nil
		}
		return nil, errors.Wrapf(ErrStatusConflict, "order %s moved from %s to %s", order.Code, from, current.Status)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("order status updated",
		zap.String("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(t.target)),
		zap.String("actor", t.actor),
	)
	s.syncPayment(ctx, order.ID, t.payment, t.txID)
	return s.GetOrder(ctx, order.ID)
}

func statusIs(status models.OrderStatus) func(*models.Order) bool {
	return func(o *models.Order) bool { return o.Status == status }
}
