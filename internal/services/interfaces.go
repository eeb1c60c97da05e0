package services

import (
	"context"

	"bookstore/internal/models"
)

// AddressFinder resolves a shipping address owned by a user.
type AddressFinder interface {
	FindOwned(ctx context.Context, userID, addressID string) (*models.Address, error)
}

// ShippingProviderFinder resolves an active shipping provider.
type ShippingProviderFinder interface {
	FindActive(ctx context.Context, id string) (*models.ShippingProvider, error)
}

// CartCleaner removes purchased lines from a cart.
type CartCleaner interface {
	RemoveItem(ctx context.Context, userID, bookID string) error
}

// UserFinder loads the user an order belongs to.
type UserFinder interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Notifier delivers customer notifications. Failures are advisory.
type Notifier interface {
	SendOrderConfirmation(ctx context.Context, order *models.Order) error
	SendShippingNotification(ctx context.Context, order *models.Order) error
}
