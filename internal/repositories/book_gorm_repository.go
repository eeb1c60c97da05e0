package repositories

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"bookstore/internal/models"
)

// GORMBookRepository is a GORM implementation of BookRepository.
type GORMBookRepository struct {
	db *gorm.DB
}

// NewGORMBookRepository creates a new instance of GORMBookRepository.
func NewGORMBookRepository(db *gorm.DB) *GORMBookRepository {
	return &GORMBookRepository{
		db: db,
	}
}

// GetByID retrieves a single book by its ID from the database.
func (r *GORMBookRepository) GetByID(ctx context.Context, id string) (*models.Book, error) {
	var book models.Book
	if err := conn(ctx, r.db).First(&book, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "book with ID %s", id)
		}
		return nil, errors.Wrapf(err, "get book by ID %s", id)
	}
	return &book, nil
}

// Create creates a new book in the database.
func (r *GORMBookRepository) Create(ctx context.Context, book *models.Book) error {
	if book.ID == "" {
		book.ID = uuid.New().String()
	}
	if err := conn(ctx, r.db).Create(book).Error; err != nil {
		return errors.Wrap(err, "create book")
	}
	return nil
}

// Update saves catalog fields of an existing book. Stock is left alone so a
// catalog edit can never overwrite a concurrent reservation.
func (r *GORMBookRepository) Update(ctx context.Context, book *models.Book) error {
	res := conn(ctx, r.db).Model(&models.Book{}).Where("id = ?", book.ID).Updates(map[string]any{
		"title":       book.Title,
		"author":      book.Author,
		"category_id": book.CategoryID,
		"price":       book.Price,
	})
	if res.Error != nil {
		return errors.Wrap(res.Error, "update book")
	}
	if res.RowsAffected == 0 {
		return errors.Wrapf(ErrNotFound, "book with ID %s for update", book.ID)
	}
	return nil
}

// AdjustStock applies delta with a single conditional UPDATE so two
// concurrent reservations cannot both pass the non-negativity check.
func (r *GORMBookRepository) AdjustStock(ctx context.Context, id string, delta int) (int, error) {
	db := conn(ctx, r.db)

	q := db.Model(&models.Book{}).Where("id = ?", id)
	if delta < 0 {
		q = q.Where("stock >= ?", -delta)
	}
	res := q.Update("stock", gorm.Expr("stock + ?", delta))
	if res.Error != nil {
		return 0, errors.Wrapf(res.Error, "adjust stock of book %s", id)
	}

	book, err := r.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	if res.RowsAffected == 0 {
		return book.Stock, errors.Wrapf(ErrInsufficientStock, "book %s has %d, requested %d", id, book.Stock, -delta)
	}
	return book.Stock, nil
}
