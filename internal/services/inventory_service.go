package services

import (
	"context"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"bookstore/internal/models"
	"bookstore/internal/repositories"
)

// StockDirection tells the ledger which way a quantity moves.
type StockDirection string

const (
	StockReserve StockDirection = "reserve"
	StockRelease StockDirection = "release"
)

// InventoryService is the only writer of book stock.
type InventoryService struct {
	bookRepo repositories.BookRepository
	logger   *zap.Logger
}

// NewInventoryService creates a new InventoryService.
func NewInventoryService(bookRepo repositories.BookRepository, logger *zap.Logger) *InventoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InventoryService{bookRepo: bookRepo, logger: logger}
}

// Adjust reserves or releases quantity units of a book and returns the new
// stock. A reservation that the stock cannot cover changes nothing and
// returns ErrInsufficientStock.
func (s *InventoryService) Adjust(ctx context.Context, bookID string, quantity int, direction StockDirection) (int, error) {
	if quantity <= 0 {
		return 0, ErrInvalidQuantity
	}

	var delta int
	switch direction {
	case StockReserve:
		delta = -quantity
	case StockRelease:
		delta = quantity
	default:
		return 0, errors.Errorf("unknown stock direction %q", direction)
	}

	stock, err := s.bookRepo.AdjustStock(ctx, bookID, delta)
	switch {
	case err == nil:
		return stock, nil
	case errors.Is(err, repositories.ErrInsufficientStock):
		return stock, errors.Wrapf(ErrInsufficientStock, "book %s: %d requested, %d available", bookID, quantity, stock)
	case errors.Is(err, repositories.ErrNotFound):
		return 0, errors.Wrapf(ErrBookNotFound, "book %s", bookID)
	default:
		return 0, errors.Wrapf(err, "%s %d of book %s", direction, quantity, bookID)
	}
}

// ReserveItems reserves every line or none of them. Lines reserved before a
// failing line are released again.
func (s *InventoryService) ReserveItems(ctx context.Context, items []models.OrderItem) error {
	for i, item := range items {
		if _, err := s.Adjust(ctx, item.BookID, item.Quantity, StockReserve); err != nil {
			s.ReleaseItems(ctx, items[:i])
			return err
		}
	}
	return nil
}

// ReleaseItems returns every line to stock, compensating in reverse order.
// Failures are logged and do not stop the remaining releases.
func (s *InventoryService) ReleaseItems(ctx context.Context, items []models.OrderItem) {
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		if _, err := s.Adjust(ctx, item.BookID, item.Quantity, StockRelease); err != nil {
			s.logger.Error("failed to release stock",
				zap.String("book_id", item.BookID),
				zap.Int("quantity", item.Quantity),
				zap.Error(err),
			)
		}
	}
}

// ReturnItems releases every line or none of them. When a release fails the
// lines already returned are reserved again and the error is returned.
func (s *InventoryService) ReturnItems(ctx context.Context, items []models.OrderItem) error {
	for i := len(items) - 1; i >= 0; i-- {
		item := items[i]
		if _, err := s.Adjust(ctx, item.BookID, item.Quantity, StockRelease); err != nil {
			if rerr := s.ReserveItems(ctx, items[i+1:]); rerr != nil {
				s.logger.Error("failed to restore stock after partial release", zap.Error(rerr))
			}
			return err
		}
	}
	return nil
}
