package services

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"bookstore/internal/models"
	"bookstore/internal/repositories"
)

// OrderLine is one requested book and quantity.
type OrderLine struct {
	BookID   string
	Quantity int
}

// CreateOrderInput is a checkout request.
type CreateOrderInput struct {
	UserID             string
	Items              []OrderLine
	ShippingAddressID  string
	ShippingProviderID string
	PaymentMethod      models.PaymentMethod
	Note               string
	VoucherCode        string
}

// CreateOrder turns a checkout request into a pending order. Stock is only
// checked here; it is reserved when the order is confirmed.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (*models.Order, error) {
	lines, err := normalizeLines(in)
	if err != nil {
		return nil, err
	}

	address, err := s.addresses.FindOwned(ctx, in.UserID, in.ShippingAddressID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, errors.Wrapf(ErrAddressNotFound, "address %s", in.ShippingAddressID)
		}
		return nil, errors.Wrap(err, "lookup shipping address")
	}

	items := make([]models.OrderItem, 0, len(lines))
	bookIDs := make([]string, 0, len(lines))
	var categoryIDs []string
	original := decimal.Zero
	for _, line := range lines {
		book, err := s.books.GetByID(ctx, line.BookID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, errors.Wrapf(ErrBookNotFound, "book %s", line.BookID)
			}
			return nil, errors.Wrapf(err, "lookup book %s", line.BookID)
		}
		if book.Stock < line.Quantity {
			return nil, errors.Wrapf(ErrInsufficientStock, "%q: %d requested, %d available", book.Title, line.Quantity, book.Stock)
		}

		item := models.OrderItem{
			BookID:   book.ID,
			Title:    book.Title,
			Quantity: line.Quantity,
			Price:    book.Price,
		}
		items = append(items, item)
		bookIDs = append(bookIDs, book.ID)
		if book.CategoryID != "" {
			categoryIDs = append(categoryIDs, book.CategoryID)
		}
		original = original.Add(item.LineTotal())
	}

	var promo *PromotionResult
	if code := strings.TrimSpace(in.VoucherCode); code != "" {
		promo, err = s.promotions.Apply(ctx, code, PromotionContext{
			OrderAmount: original,
			UserID:      in.UserID,
			CategoryIDs: categoryIDs,
			BookIDs:     bookIDs,
		})
		if err != nil {
			return nil, classify(ErrVoucherRejected, err)
		}
	}

	provider, err := s.providers.FindActive(ctx, in.ShippingProviderID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, errors.Wrapf(ErrShippingProviderNotFound, "provider %s", in.ShippingProviderID)
		}
		return nil, errors.Wrap(err, "lookup shipping provider")
	}

	order := &models.Order{
		UserID:             in.UserID,
		OriginalAmount:     original,
		DiscountAmount:     decimal.Zero,
		ShippingAddressID:  address.ID,
		ShippingProviderID: provider.ID,
		ShippingFee:        provider.BaseFee,
		PaymentMethod:      in.PaymentMethod,
		Status:             models.OrderStatusPending,
		PaymentStatus:      models.PaymentStatusPending,
		Note:               in.Note,
		CreatedAt:          s.now(),
	}
	if order.PaymentMethod == "" {
		order.PaymentMethod = models.PaymentMethodCOD
	}
	if promo != nil {
		order.VoucherID = &promo.Voucher.ID
		order.DiscountAmount = promo.Discount
		if promo.FreeShipping {
			order.ShippingFee = decimal.Zero
		}
	}
	order.TotalPrice = order.CalculateTotal()

	order.Code, err = s.allocateCode(ctx)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return s.persistOrder(ctx, order, items, promo)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("code", order.Code),
		zap.String("user_id", order.UserID),
		zap.String("total", order.TotalPrice.StringFixed(2)),
	)

	user := s.lookupUser(ctx, order.UserID)
	s.recordPayment(ctx, order, user)
	s.cleanCart(ctx, order.UserID, items)

	created, err := s.GetOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	created.ShippingAddress = address
	created.User = user.Summary()

	if s.notifier != nil {
		if err := s.notifier.SendOrderConfirmation(ctx, created); err != nil {
			s.logger.Warn("failed to send order confirmation", zap.String("order_id", created.ID), zap.Error(err))
		}
	}
	return created, nil
}

// persistOrder writes the order, its items and the first note, then
// consumes the voucher. A failed consumption deletes the order again.
func (s *OrderService) persistOrder(ctx context.Context, order *models.Order, items []models.OrderItem, promo *PromotionResult) error {
	if err := s.orders.Create(ctx, order); err != nil {
		return errors.Wrap(err, "create order")
	}

	for i := range items {
		items[i].OrderID = order.ID
	}
	if err := s.orders.CreateItems(ctx, items); err != nil {
		s.deleteOrder(ctx, order.ID)
		return errors.Wrap(err, "create order items")
	}

	note := &models.OrderNote{
		OrderID: order.ID,
		Status:  models.OrderStatusPending,
		Message: "order placed",
		Actor:   order.UserID,
	}
	if err := s.orders.AppendNote(ctx, note); err != nil {
		s.deleteOrder(ctx, order.ID)
		return errors.Wrap(err, "append order note")
	}

	if promo == nil {
		return nil
	}
	err := s.promotions.Consume(ctx, VoucherConsumption{
		VoucherID:      promo.Voucher.ID,
		UserID:         order.UserID,
		OrderID:        order.ID,
		OrderAmount:    order.OriginalAmount,
		DiscountAmount: order.DiscountAmount,
	})
	if err != nil {
		s.logger.Warn("voucher consumption failed, removing order",
			zap.String("order_id", order.ID),
			zap.String("voucher_id", promo.Voucher.ID),
			zap.Error(err),
		)
		s.deleteOrder(ctx, order.ID)
		return classify(ErrVoucherConsumptionFailed, err)
	}
	return nil
}

func (s *OrderService) deleteOrder(ctx context.Context, id string) {
	if err := s.orders.Delete(ctx, id); err != nil {
		s.logger.Error("failed to delete order during compensation", zap.String("order_id", id), zap.Error(err))
	}
}

func (s *OrderService) lookupUser(ctx context.Context, id string) *models.User {
	if s.users == nil {
		return nil
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		s.logger.Warn("failed to load order user", zap.String("user_id", id), zap.Error(err))
		return nil
	}
	return user
}

func (s *OrderService) recordPayment(ctx context.Context, order *models.Order, user *models.User) {
	if s.payments == nil {
		return
	}
	payment := &models.Payment{
		OrderID: order.ID,
		Amount:  order.TotalPrice,
		Method:  order.PaymentMethod,
		Status:  models.PaymentStatusPending,
	}
	if user != nil {
		payment.CustomerName = user.Username
		payment.CustomerEmail = user.Email
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		s.logger.Warn("failed to create payment record", zap.String("order_id", order.ID), zap.Error(err))
	}
}

func (s *OrderService) cleanCart(ctx context.Context, userID string, items []models.OrderItem) {
	if s.carts == nil {
		return
	}
	for _, item := range items {
		if err := s.carts.RemoveItem(ctx, userID, item.BookID); err != nil {
			s.logger.Warn("failed to remove purchased book from cart",
				zap.String("user_id", userID),
				zap.String("book_id", item.BookID),
				zap.Error(err),
			)
		}
	}
}

// normalizeLines validates the request and merges lines of the same book.
func normalizeLines(in CreateOrderInput) ([]OrderLine, error) {
	if len(in.Items) == 0 {
		return nil, ErrEmptyOrder
	}
	if strings.TrimSpace(in.ShippingAddressID) == "" || strings.TrimSpace(in.ShippingProviderID) == "" {
		return nil, ErrMissingShippingInfo
	}

	index := make(map[string]int, len(in.Items))
	lines := make([]OrderLine, 0, len(in.Items))
	for _, line := range in.Items {
		if line.Quantity <= 0 {
			return nil, errors.Wrapf(ErrInvalidQuantity, "book %s", line.BookID)
		}
		if i, ok := index[line.BookID]; ok {
			lines[i].Quantity += line.Quantity
			continue
		}
		index[line.BookID] = len(lines)
		lines = append(lines, line)
	}
	return lines, nil
}
