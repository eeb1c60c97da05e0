package services

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bookstore/internal/models"
	"bookstore/internal/repositories"
)

var hundred = decimal.NewFromInt(100)

// PromotionContext is what a voucher is checked against.
type PromotionContext struct {
	OrderAmount decimal.Decimal
	UserID      string
	CategoryIDs []string
	BookIDs     []string
}

// PromotionResult is the outcome of a successful voucher application.
type PromotionResult struct {
	Voucher      *models.Voucher
	Discount     decimal.Decimal
	FreeShipping bool
}

// VoucherConsumption identifies one use of a voucher by an order.
type VoucherConsumption struct {
	VoucherID      string
	UserID         string
	OrderID        string
	OrderAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
}

// PromotionService validates vouchers and records their use.
type PromotionService struct {
	voucherRepo repositories.VoucherRepository
	logger      *zap.Logger
	now         func() time.Time
}

// NewPromotionService creates a new PromotionService.
func NewPromotionService(voucherRepo repositories.VoucherRepository, logger *zap.Logger) *PromotionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromotionService{voucherRepo: voucherRepo, logger: logger, now: time.Now}
}

// SetClock replaces the time source used for validity windows.
func (s *PromotionService) SetClock(now func() time.Time) {
	s.now = now
}

// Apply validates code against pc and computes the discount. It does not
// consume the voucher.
func (s *PromotionService) Apply(ctx context.Context, code string, pc PromotionContext) (*PromotionResult, error) {
	v, err := s.voucherRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrVoucherNotFound
		}
		return nil, errors.Wrap(err, "lookup voucher")
	}

	now := s.now()
	if now.Before(v.ValidFrom) || now.After(v.ValidTo) {
		return nil, ErrVoucherExpired
	}
	if v.UsageLimit > 0 && v.UsedCount >= v.UsageLimit {
		return nil, ErrVoucherExhausted
	}
	if !inScope(v.CategoryIDs, pc.CategoryIDs) || !inScope(v.BookIDs, pc.BookIDs) {
		return nil, ErrVoucherNotApplicable
	}
	if v.MinOrderAmount != nil && pc.OrderAmount.LessThan(*v.MinOrderAmount) {
		return nil, ErrMinimumAmountNotMet
	}
	if v.OnePerUser {
		used, err := s.voucherRepo.HasUsage(ctx, v.ID, pc.UserID)
		if err != nil {
			return nil, errors.Wrap(err, "check voucher usage")
		}
		if used {
			return nil, ErrAlreadyUsedByUser
		}
	}

	res := &PromotionResult{Voucher: v, Discount: decimal.Zero}
	if v.Type == models.VoucherTypeFreeShipping {
		res.FreeShipping = true
		return res, nil
	}
	discount, err := computeDiscount(v, pc.OrderAmount)
	if err != nil {
		return nil, err
	}
	res.Discount = discount
	return res, nil
}

// Consume records that the voucher was used by an order. It must run inside
// the transaction that persists the order.
func (s *PromotionService) Consume(ctx context.Context, c VoucherConsumption) error {
	v, err := s.voucherRepo.FindByID(ctx, c.VoucherID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrVoucherNotFound
		}
		return errors.Wrap(err, "lookup voucher")
	}
	if v.OnePerUser {
		used, err := s.voucherRepo.HasUsage(ctx, v.ID, c.UserID)
		if err != nil {
			return errors.Wrap(err, "check voucher usage")
		}
		if used {
			return ErrAlreadyUsedByUser
		}
	}

	err = s.voucherRepo.RecordUsage(ctx, &models.VoucherUsage{
		VoucherID:      c.VoucherID,
		UserID:         c.UserID,
		OrderID:        c.OrderID,
		OrderAmount:    c.OrderAmount,
		DiscountAmount: c.DiscountAmount,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrLimitReached) {
			return ErrVoucherExhausted
		}
		return errors.Wrap(err, "record voucher usage")
	}

	s.logger.Info("voucher consumed",
		zap.String("voucher_id", c.VoucherID),
		zap.String("order_id", c.OrderID),
		zap.String("discount", c.DiscountAmount.StringFixed(2)),
	)
	return nil
}

// computeDiscount returns the discount of a percentage or fixed voucher,
// rounded to cents and clamped to [0, amount].
func computeDiscount(v *models.Voucher, amount decimal.Decimal) (decimal.Decimal, error) {
	var discount decimal.Decimal
	switch v.Type {
	case models.VoucherTypePercentage:
		discount = amount.Mul(v.Value).Div(hundred)
	case models.VoucherTypeFixedAmount:
		discount = v.Value
	default:
		return decimal.Zero, errors.Errorf("unsupported voucher type: %q", v.Type)
	}

	if v.MaxDiscountAmount != nil {
		discount = decimal.Min(discount, *v.MaxDiscountAmount)
	}
	discount = decimal.Min(discount, amount)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	return discount.Round(2), nil
}

// inScope reports whether any of the order's ids is in the voucher scope.
// An empty scope matches everything.
func inScope(scope, ids []string) bool {
	if len(scope) == 0 {
		return true
	}
	for _, id := range ids {
		if slices.Contains(scope, id) {
			return true
		}
	}
	return false
}
