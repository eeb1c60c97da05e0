package repositories

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"bookstore/internal/models"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

// Create inserts the order row. Items are persisted separately with CreateItems.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if err := conn(ctx, r.db).Omit("Items", "Notes").Create(order).Error; err != nil {
		return errors.Wrap(err, "create order")
	}
	return nil
}

func (r *GORMOrderRepository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	if err := conn(ctx, r.db).Create(&items).Error; err != nil {
		return errors.Wrap(err, "create order items")
	}
	return nil
}

// GetByID retrieves an order with its items and notes.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := conn(ctx, r.db).
		Preload("Items").
		Preload("Notes", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "order with ID %s", id)
		}
		return nil, errors.Wrapf(err, "get order by ID %s", id)
	}
	return &order, nil
}

func (r *GORMOrderRepository) List(ctx context.Context, filter OrderFilter) ([]models.Order, error) {
	q := conn(ctx, r.db).Preload("Items").Order("created_at DESC")
	if filter.UserID != "" {
		q = q.Where("user_id = ?", filter.UserID)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	var orders []models.Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

func (r *GORMOrderRepository) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Unscoped().Model(&models.Order{}).Where("code = ?", code).Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "check order code")
	}
	return count > 0, nil
}

func (r *GORMOrderRepository) Delete(ctx context.Context, id string) error {
	db := conn(ctx, r.db).Unscoped()
	if err := db.Where("order_id = ?", id).Delete(&models.OrderItem{}).Error; err != nil {
		return errors.Wrap(err, "delete order items")
	}
	if err := db.Where("order_id = ?", id).Delete(&models.OrderNote{}).Error; err != nil {
		return errors.Wrap(err, "delete order notes")
	}
	res := db.Delete(&models.Order{}, "id = ?", id)
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete order")
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "order with ID %s for deletion", id)
	}
	return nil
}

// TransitionStatus is a compare-and-set on the status column.
func (r *GORMOrderRepository) TransitionStatus(ctx context.Context, id string, from models.OrderStatus, change models.StatusChange) (bool, error) {
	res := conn(ctx, r.db).Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(change.Columns())
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "transition order %s from %s to %s", id, from, change.To)
	}
	return res.RowsAffected == 1, nil
}

func (r *GORMOrderRepository) AppendNote(ctx context.Context, note *models.OrderNote) error {
	if err := conn(ctx, r.db).Create(note).Error; err != nil {
		return errors.Wrap(err, "append order note")
	}
	return nil
}

func (r *GORMOrderRepository) ListByStatuses(ctx context.Context, statuses []models.OrderStatus, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := conn(ctx, r.db).
		Where("status IN ?", statuses).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, errors.Wrap(err, "list orders by status")
	}
	return orders, nil
}

func (r *GORMOrderRepository) ListPendingBefore(ctx context.Context, t time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := conn(ctx, r.db).
		Where("status = ? AND created_at < ?", models.OrderStatusPending, t).
		Order("created_at ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, errors.Wrap(err, "list stale pending orders")
	}
	return orders, nil
}

func (r *GORMOrderRepository) ListShippedSince(ctx context.Context, t time.Time, limit int) ([]models.Order, error) {
	var orders []models.Order
	err := conn(ctx, r.db).
		Preload("Items").
		Where("status IN ? AND shipped_at >= ? AND shipment_notified_at IS NULL",
			[]models.OrderStatus{models.OrderStatusShipped, models.OrderStatusDelivered}, t).
		Order("shipped_at ASC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, errors.Wrap(err, "list recently shipped orders")
	}
	return orders, nil
}

func (r *GORMOrderRepository) MarkShipmentNotified(ctx context.Context, id string, at time.Time) (bool, error) {
	res := conn(ctx, r.db).Model(&models.Order{}).
		Where("id = ? AND shipment_notified_at IS NULL", id).
		Update("shipment_notified_at", at)
	if res.Error != nil {
		return false, errors.Wrapf(res.Error, "mark order %s notified", id)
	}
	return res.RowsAffected == 1, nil
}

func (r *GORMOrderRepository) ClearShipmentNotified(ctx context.Context, id string) error {
	err := conn(ctx, r.db).Model(&models.Order{}).
		Where("id = ?", id).
		Update("shipment_notified_at", nil).Error
	if err != nil {
		return errors.Wrapf(err, "clear notification mark of order %s", id)
	}
	return nil
}
