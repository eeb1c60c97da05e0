package repositories

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"bookstore/internal/models"
)

// PaymentRepository defines the interface for payment record access.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	UpdateStatus(ctx context.Context, orderID string, status models.PaymentStatus, transactionID string) error
}

// GORMPaymentRepository is a GORM implementation of PaymentRepository.
type GORMPaymentRepository struct {
	db *gorm.DB
}

// NewGORMPaymentRepository creates a new instance of GORMPaymentRepository.
func NewGORMPaymentRepository(db *gorm.DB) *GORMPaymentRepository {
	return &GORMPaymentRepository{db: db}
}

func (r *GORMPaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.New().String()
	}
	if err := conn(ctx, r.db).Create(payment).Error; err != nil {
		return errors.Wrap(err, "create payment")
	}
	return nil
}

func (r *GORMPaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	var p models.Payment
	if err := conn(ctx, r.db).First(&p, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "payment for order %s", orderID)
		}
		return nil, errors.Wrapf(err, "get payment for order %s", orderID)
	}
	return &p, nil
}

// UpdateStatus keeps the previous transaction id when transactionID is empty.
func (r *GORMPaymentRepository) UpdateStatus(ctx context.Context, orderID string, status models.PaymentStatus, transactionID string) error {
	cols := map[string]any{"status": status}
	if transactionID != "" {
		cols["transaction_id"] = transactionID
	}
	res := conn(ctx, r.db).Model(&models.Payment{}).Where("order_id = ?", orderID).Updates(cols)
	if res.Error != nil {
		return errors.Wrapf(res.Error, "update payment for order %s", orderID)
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "payment for order %s", orderID)
	}
	return nil
}
