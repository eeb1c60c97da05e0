package services

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"bookstore/internal/models"
	"bookstore/internal/repositories"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxCodeAttempts  = 5
)

// OrderServiceDeps wires the collaborators of OrderService.
type OrderServiceDeps struct {
	Orders     repositories.OrderRepository
	Books      repositories.BookRepository
	Payments   repositories.PaymentRepository
	Inventory  *InventoryService
	Promotions *PromotionService
	Addresses  AddressFinder
	Providers  ShippingProviderFinder
	Carts      CartCleaner
	Users      UserFinder
	Notifier   Notifier
	Transactor repositories.Transactor
	Logger     *zap.Logger
	Clock      func() time.Time
	// CodeGenerator returns a candidate order code for the given time.
	CodeGenerator func(time.Time) string
}

// OrderService handles checkout and the fulfillment lifecycle of orders.
type OrderService struct {
	orders     repositories.OrderRepository
	books      repositories.BookRepository
	payments   repositories.PaymentRepository
	inventory  *InventoryService
	promotions *PromotionService
	addresses  AddressFinder
	providers  ShippingProviderFinder
	carts      CartCleaner
	users      UserFinder
	notifier   Notifier
	tx         repositories.Transactor
	logger     *zap.Logger
	now        func() time.Time
	newCode    func(time.Time) string
}

// NewOrderService creates a new OrderService.
func NewOrderService(deps OrderServiceDeps) (*OrderService, error) {
	switch {
	case deps.Orders == nil:
		return nil, errors.New("order service: order repository is required")
	case deps.Books == nil:
		return nil, errors.New("order service: book repository is required")
	case deps.Inventory == nil:
		return nil, errors.New("order service: inventory service is required")
	case deps.Promotions == nil:
		return nil, errors.New("order service: promotion service is required")
	case deps.Addresses == nil || deps.Providers == nil:
		return nil, errors.New("order service: address and shipping provider lookups are required")
	}

	s := &OrderService{
		orders:     deps.Orders,
		books:      deps.Books,
		payments:   deps.Payments,
		inventory:  deps.Inventory,
		promotions: deps.Promotions,
		addresses:  deps.Addresses,
		providers:  deps.Providers,
		carts:      deps.Carts,
		users:      deps.Users,
		notifier:   deps.Notifier,
		tx:         deps.Transactor,
		logger:     deps.Logger,
		now:        deps.Clock,
		newCode:    deps.CodeGenerator,
	}
	if s.tx == nil {
		s.tx = repositories.NoopTransactor{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newCode == nil {
		s.newCode = generateOrderCode
	}
	return s, nil
}

// GetOrder returns an order with its items and notes.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, errors.Wrapf(ErrOrderNotFound, "order %s", id)
		}
		return nil, errors.Wrapf(err, "get order %s", id)
	}
	return order, nil
}

// ListOrders returns orders matching filter, newest first.
func (s *OrderService) ListOrders(ctx context.Context, filter repositories.OrderFilter) ([]models.Order, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, errors.Wrapf(ErrInvalidStatus, "unknown status %q", filter.Status)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	orders, err := s.orders.List(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// allocateCode returns an order code not used by any order yet.
func (s *OrderService) allocateCode(ctx context.Context) (string, error) {
	for range maxCodeAttempts {
		code := s.newCode(s.now())
		exists, err := s.orders.CodeExists(ctx, code)
		if err != nil {
			return "", errors.Wrap(err, "check order code")
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrOrderCodeExhausted
}

// generateOrderCode returns codes like BK-20250131-9F3A1C.
func generateOrderCode(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:6])
	return "BK-" + now.Format("20060102") + "-" + suffix
}

// syncPayment mirrors the order payment status onto the payment record.
// Failures are logged only.
func (s *OrderService) syncPayment(ctx context.Context, orderID string, status models.PaymentStatus, transactionID string) {
	if s.payments == nil || status == "" {
		return
	}
	if err := s.payments.UpdateStatus(ctx, orderID, status, transactionID); err != nil {
		s.logger.Warn("failed to sync payment record",
			zap.String("order_id", orderID),
			zap.String("payment_status", string(status)),
			zap.Error(err),
		)
	}
}
