package repositories

import (
	"context"

	"bookstore/internal/models"
)

// BookRepository defines the interface for catalog and stock data access.
type BookRepository interface {
	GetByID(ctx context.Context, id string) (*models.Book, error)
	Create(ctx context.Context, book *models.Book) error
	Update(ctx context.Context, book *models.Book) error
	// AdjustStock adds delta to the stock of the book and returns the new
	// stock. A negative delta is applied only if the stock covers it,
	// otherwise ErrInsufficientStock is returned and nothing changes.
	AdjustStock(ctx context.Context, id string, delta int) (int, error)
}
