package repositories

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"gorm.io/gorm"

	"bookstore/internal/models"
)

// GORMVoucherRepository is a GORM implementation of VoucherRepository.
type GORMVoucherRepository struct {
	db *gorm.DB
}

// NewGORMVoucherRepository creates a new instance of GORMVoucherRepository.
func NewGORMVoucherRepository(db *gorm.DB) *GORMVoucherRepository {
	return &GORMVoucherRepository{db: db}
}

// FindByCode looks up an active voucher, ignoring the case of code.
func (r *GORMVoucherRepository) FindByCode(ctx context.Context, code string) (*models.Voucher, error) {
	var v models.Voucher
	err := conn(ctx, r.db).
		Where("UPPER(code) = ? AND is_active = ?", strings.ToUpper(strings.TrimSpace(code)), true).
		First(&v).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "voucher %q", code)
		}
		return nil, errors.Wrapf(err, "find voucher by code %q", code)
	}
	return &v, nil
}

func (r *GORMVoucherRepository) FindByID(ctx context.Context, id string) (*models.Voucher, error) {
	var v models.Voucher
	if err := conn(ctx, r.db).First(&v, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "voucher with ID %s", id)
		}
		return nil, errors.Wrapf(err, "find voucher by ID %s", id)
	}
	return &v, nil
}

func (r *GORMVoucherRepository) HasUsage(ctx context.Context, voucherID, userID string) (bool, error) {
	var count int64
	err := conn(ctx, r.db).Model(&models.VoucherUsage{}).
		Where("voucher_id = ? AND user_id = ?", voucherID, userID).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "count voucher usages")
	}
	return count > 0, nil
}

// RecordUsage must run inside a transaction so the counter and the usage
// row are committed together.
func (r *GORMVoucherRepository) RecordUsage(ctx context.Context, usage *models.VoucherUsage) error {
	db := conn(ctx, r.db)

	res := db.Model(&models.Voucher{}).
		Where("id = ? AND (usage_limit = 0 OR used_count < usage_limit)", usage.VoucherID).
		Update("used_count", gorm.Expr("used_count + 1"))
	if res.Error != nil {
		return errors.Wrap(res.Error, "increment voucher usage")
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrLimitReached, "voucher %s", usage.VoucherID)
	}

	if err := db.Create(usage).Error; err != nil {
		return errors.Wrap(err, "create voucher usage")
	}
	return nil
}
