package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"bookstore/internal/models"
)

// MockOrderRepository is an in-memory implementation of OrderRepository.
type MockOrderRepository struct {
	orders map[string]models.Order
	items  map[string][]models.OrderItem
	notes  map[string][]models.OrderNote
	mu     sync.RWMutex
}

// NewMockOrderRepository creates a new instance of MockOrderRepository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[string]models.Order),
		items:  make(map[string][]models.OrderItem),
		notes:  make(map[string][]models.OrderNote),
	}
}

// Create adds a new order.
func (r *MockOrderRepository) Create(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	now := time.Now()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	stored := *order
	stored.Items = nil
	stored.Notes = nil
	r.orders[order.ID] = stored
	return nil
}

func (r *MockOrderRepository) CreateItems(_ context.Context, items []models.OrderItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, item := range items {
		if _, ok := r.orders[item.OrderID]; !ok {
			return errors.Wrapf(ErrNotFound, "order with ID %s", item.OrderID)
		}
		item.ID = uint(len(r.items[item.OrderID]) + 1)
		r.items[item.OrderID] = append(r.items[item.OrderID], item)
	}
	return nil
}

// GetByID returns an order by its ID.
func (r *MockOrderRepository) GetByID(_ context.Context, id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "order with ID %s", id)
	}
	return r.hydrate(order), nil
}

func (r *MockOrderRepository) List(_ context.Context, filter OrderFilter) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orderList := r.sorted(func(o models.Order) bool {
		return (filter.UserID == "" || o.UserID == filter.UserID) &&
			(filter.Status == "" || o.Status == filter.Status)
	})
	// newest first, like the SQL implementation
	for i, j := 0, len(orderList)-1; i < j; i, j = i+1, j-1 {
		orderList[i], orderList[j] = orderList[j], orderList[i]
	}
	if filter.Offset > 0 {
		if filter.Offset >= len(orderList) {
			return []models.Order{}, nil
		}
		orderList = orderList[filter.Offset:]
	}
	return limit(orderList, filter.Limit), nil
}

func (r *MockOrderRepository) CodeExists(_ context.Context, code string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, o := range r.orders {
		if o.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (r *MockOrderRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[id]; !ok {
		return errors.Wrapf(ErrNotFound, "order with ID %s for deletion", id)
	}
	delete(r.orders, id)
	delete(r.items, id)
	delete(r.notes, id)
	return nil
}

// TransitionStatus updates the status only if it still equals from.
func (r *MockOrderRepository) TransitionStatus(_ context.Context, id string, from models.OrderStatus, change models.StatusChange) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return false, errors.Wrapf(ErrNotFound, "order with ID %s for status update", id)
	}
	if order.Status != from {
		return false, nil
	}
	order.Apply(change)
	r.orders[id] = order
	return true, nil
}

func (r *MockOrderRepository) AppendNote(_ context.Context, note *models.OrderNote) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if note.CreatedAt.IsZero() {
		note.CreatedAt = time.Now()
	}
	note.ID = uint(len(r.notes[note.OrderID]) + 1)
	r.notes[note.OrderID] = append(r.notes[note.OrderID], *note)
	return nil
}

func (r *MockOrderRepository) ListByStatuses(_ context.Context, statuses []models.OrderStatus, n int) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	want := make(map[models.OrderStatus]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	return limit(r.sorted(func(o models.Order) bool { return want[o.Status] }), n), nil
}

func (r *MockOrderRepository) ListPendingBefore(_ context.Context, t time.Time, n int) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return limit(r.sorted(func(o models.Order) bool {
		return o.Status == models.OrderStatusPending && o.CreatedAt.Before(t)
	}), n), nil
}

func (r *MockOrderRepository) ListShippedSince(_ context.Context, t time.Time, n int) ([]models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return limit(r.sorted(func(o models.Order) bool {
		shipped := o.Status == models.OrderStatusShipped || o.Status == models.OrderStatusDelivered
		return shipped && o.ShippedAt != nil &&
			!o.ShippedAt.Before(t) && o.ShipmentNotifiedAt == nil
	}), n), nil
}

func (r *MockOrderRepository) MarkShipmentNotified(_ context.Context, id string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return false, errors.Wrapf(ErrNotFound, "order with ID %s", id)
	}
	if order.ShipmentNotifiedAt != nil {
		return false, nil
	}
	order.ShipmentNotifiedAt = &at
	r.orders[id] = order
	return true, nil
}

func (r *MockOrderRepository) ClearShipmentNotified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, ok := r.orders[id]
	if !ok {
		return errors.Wrapf(ErrNotFound, "order with ID %s", id)
	}
	order.ShipmentNotifiedAt = nil
	r.orders[id] = order
	return nil
}

// sorted returns hydrated copies of matching orders, oldest first.
// Callers must hold the lock.
func (r *MockOrderRepository) sorted(match func(models.Order) bool) []models.Order {
	orderList := make([]models.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if match(o) {
			orderList = append(orderList, *r.hydrate(o))
		}
	}
	sort.Slice(orderList, func(i, j int) bool {
		return orderList[i].CreatedAt.Before(orderList[j].CreatedAt)
	})
	return orderList
}

func (r *MockOrderRepository) hydrate(order models.Order) *models.Order {
	order.Items = append([]models.OrderItem(nil), r.items[order.ID]...)
	order.Notes = append([]models.OrderNote(nil), r.notes[order.ID]...)
	return &order
}

func limit(orders []models.Order, n int) []models.Order {
	if n > 0 && len(orders) > n {
		return orders[:n]
	}
	return orders
}
