package repositories

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"bookstore/internal/models"
)

// MockVoucherRepository is an in-memory implementation of VoucherRepository.
type MockVoucherRepository struct {
	vouchers map[string]models.Voucher
	usages   []models.VoucherUsage
	mu       sync.RWMutex
}

// NewMockVoucherRepository creates a new instance of MockVoucherRepository.
func NewMockVoucherRepository() *MockVoucherRepository {
	return &MockVoucherRepository{
		vouchers: make(map[string]models.Voucher),
	}
}

// Create adds a voucher.
func (r *MockVoucherRepository) Create(_ context.Context, v *models.Voucher) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v.ID == "" {
		v.ID = uuid.New().String()
	}
	r.vouchers[v.ID] = *v
	return nil
}

func (r *MockVoucherRepository) FindByCode(_ context.Context, code string) (*models.Voucher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	code = strings.TrimSpace(code)
	for _, v := range r.vouchers {
		if strings.EqualFold(v.Code, code) && v.IsActive && !v.DeletedAt.Valid {
			return &v, nil
		}
	}
	return nil, errors.Wrapf(ErrNotFound, "voucher %q", code)
}

func (r *MockVoucherRepository) FindByID(_ context.Context, id string) (*models.Voucher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.vouchers[id]
	if !ok || v.DeletedAt.Valid {
		return nil, errors.Wrapf(ErrNotFound, "voucher with ID %s", id)
	}
	return &v, nil
}

func (r *MockVoucherRepository) HasUsage(_ context.Context, voucherID, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.usages {
		if u.VoucherID == voucherID && u.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

func (r *MockVoucherRepository) RecordUsage(_ context.Context, usage *models.VoucherUsage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.vouchers[usage.VoucherID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "voucher with ID %s", usage.VoucherID)
	}
	if v.UsageLimit > 0 && v.UsedCount >= v.UsageLimit {
		return errors.Wrapf(ErrLimitReached, "voucher %s", usage.VoucherID)
	}
	for _, u := range r.usages {
		if u.VoucherID == usage.VoucherID && u.OrderID == usage.OrderID {
			return errors.Errorf("voucher %s already used by order %s", usage.VoucherID, usage.OrderID)
		}
	}
	v.UsedCount++
	r.vouchers[v.ID] = v

	usage.ID = uint(len(r.usages) + 1)
	if usage.CreatedAt.IsZero() {
		usage.CreatedAt = time.Now()
	}
	r.usages = append(r.usages, *usage)
	return nil
}

// Usages returns a copy of all recorded usages.
func (r *MockVoucherRepository) Usages() []models.VoucherUsage {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]models.VoucherUsage(nil), r.usages...)
}
