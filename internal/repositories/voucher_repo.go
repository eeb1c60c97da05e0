package repositories

import (
	"context"

	"bookstore/internal/models"
)

// VoucherRepository defines the interface for voucher and usage data access.
type VoucherRepository interface {
	FindByCode(ctx context.Context, code string) (*models.Voucher, error)
	FindByID(ctx context.Context, id string) (*models.Voucher, error)
	HasUsage(ctx context.Context, voucherID, userID string) (bool, error)
	// RecordUsage increments the voucher usage counter if the usage limit
	// allows it and inserts the usage record. ErrLimitReached is returned
	// when the counter is already at the limit.
	RecordUsage(ctx context.Context, usage *models.VoucherUsage) error
}
