package repositories

import (
	"context"
	"time"

	"bookstore/internal/models"
)

// OrderFilter narrows order listings.
type OrderFilter struct {
	UserID string
	Status models.OrderStatus
	Limit  int
	Offset int
}

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]models.Order, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	// Delete removes the order row permanently. It exists for compensation
	// during creation; lifecycle code never deletes orders.
	Delete(ctx context.Context, id string) error
	// TransitionStatus applies change only if the order is still in from.
	// It reports whether the row was updated.
	TransitionStatus(ctx context.Context, id string, from models.OrderStatus, change models.StatusChange) (bool, error)
	AppendNote(ctx context.Context, note *models.OrderNote) error
	// ListByStatuses returns up to limit orders in the given states, oldest first.
	ListByStatuses(ctx context.Context, statuses []models.OrderStatus, limit int) ([]models.Order, error)
	// ListPendingBefore returns up to limit pending orders created before t.
	ListPendingBefore(ctx context.Context, t time.Time, limit int) ([]models.Order, error)
	// ListShippedSince returns up to limit shipped or delivered orders with
	// shippedAt >= t that have not been notified yet.
	ListShippedSince(ctx context.Context, t time.Time, limit int) ([]models.Order, error)
	// MarkShipmentNotified sets the notification timestamp if it is unset and
	// reports whether this call set it.
	MarkShipmentNotified(ctx context.Context, id string, at time.Time) (bool, error)
	// ClearShipmentNotified undoes MarkShipmentNotified after a failed delivery.
	ClearShipmentNotified(ctx context.Context, id string) error
}
