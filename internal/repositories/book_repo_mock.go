package repositories

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"bookstore/internal/models"
)

// MockBookRepository is an in-memory implementation of BookRepository.
type MockBookRepository struct {
	books map[string]models.Book
	mu    sync.RWMutex
}

// NewMockBookRepository creates a new instance of MockBookRepository.
func NewMockBookRepository() *MockBookRepository {
	return &MockBookRepository{
		books: make(map[string]models.Book),
	}
}

// GetByID returns a book by its ID.
func (r *MockBookRepository) GetByID(_ context.Context, id string) (*models.Book, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	book, ok := r.books[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "book with ID %s", id)
	}
	return &book, nil
}

// Create adds a new book.
func (r *MockBookRepository) Create(_ context.Context, book *models.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if book.ID == "" {
		book.ID = uuid.New().String()
	}
	r.books[book.ID] = *book
	return nil
}

// Update modifies catalog fields of an existing book, keeping its stock.
func (r *MockBookRepository) Update(_ context.Context, book *models.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.books[book.ID]
	if !ok {
		return errors.Wrapf(ErrNotFound, "book with ID %s for update", book.ID)
	}
	updated := *book
	updated.Stock = existing.Stock
	r.books[book.ID] = updated
	return nil
}

// AdjustStock applies delta under the write lock.
func (r *MockBookRepository) AdjustStock(_ context.Context, id string, delta int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	book, ok := r.books[id]
	if !ok {
		return 0, errors.Wrapf(ErrNotFound, "book with ID %s", id)
	}
	if book.Stock+delta < 0 {
		return book.Stock, errors.Wrapf(ErrInsufficientStock, "book %s has %d, requested %d", id, book.Stock, -delta)
	}
	book.Stock += delta
	r.books[id] = book
	return book.Stock, nil
}
