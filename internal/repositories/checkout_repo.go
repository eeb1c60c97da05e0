package repositories

import (
	"context"

	"github.com/go-faster/errors"
	"gorm.io/gorm"

	"bookstore/internal/models"
)

// GORMAddressRepository resolves shipping addresses.
type GORMAddressRepository struct {
	db *gorm.DB
}

// NewGORMAddressRepository creates a new instance of GORMAddressRepository.
func NewGORMAddressRepository(db *gorm.DB) *GORMAddressRepository {
	return &GORMAddressRepository{db: db}
}

// FindOwned returns the address only if it belongs to userID and is not soft-deleted.
func (r *GORMAddressRepository) FindOwned(ctx context.Context, userID, addressID string) (*models.Address, error) {
	var a models.Address
	if err := conn(ctx, r.db).First(&a, "id = ? AND user_id = ?", addressID, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "address %s of user %s", addressID, userID)
		}
		return nil, errors.Wrapf(err, "find address %s", addressID)
	}
	return &a, nil
}

// GORMShippingProviderRepository resolves shipping providers.
type GORMShippingProviderRepository struct {
	db *gorm.DB
}

// NewGORMShippingProviderRepository creates a new instance of GORMShippingProviderRepository.
func NewGORMShippingProviderRepository(db *gorm.DB) *GORMShippingProviderRepository {
	return &GORMShippingProviderRepository{db: db}
}

// FindActive returns the provider only if it is active and not soft-deleted.
func (r *GORMShippingProviderRepository) FindActive(ctx context.Context, id string) (*models.ShippingProvider, error) {
	var p models.ShippingProvider
	if err := conn(ctx, r.db).First(&p, "id = ? AND is_active = ?", id, true).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(ErrNotFound, "shipping provider %s", id)
		}
		return nil, errors.Wrapf(err, "find shipping provider %s", id)
	}
	return &p, nil
}

// GORMCartRepository mutates shopping carts.
type GORMCartRepository struct {
	db *gorm.DB
}

// NewGORMCartRepository creates a new instance of GORMCartRepository.
func NewGORMCartRepository(db *gorm.DB) *GORMCartRepository {
	return &GORMCartRepository{db: db}
}

// RemoveItem deletes the cart line; removing an absent line is not an error.
func (r *GORMCartRepository) RemoveItem(ctx context.Context, userID, bookID string) error {
	err := conn(ctx, r.db).Where("user_id = ? AND book_id = ?", userID, bookID).Delete(&models.CartItem{}).Error
	if err != nil {
		return errors.Wrapf(err, "remove book %s from cart of user %s", bookID, userID)
	}
	return nil
}
