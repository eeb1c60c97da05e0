package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Address is a shipping address owned by a user.
type Address struct {
	ID            string         `json:"id" gorm:"primaryKey;type:varchar(36)"`
	UserID        string         `json:"user_id" gorm:"index;type:varchar(36)"`
	RecipientName string         `json:"recipient_name" gorm:"type:varchar(255)"`
	Phone         string         `json:"phone" gorm:"type:varchar(32)"`
	Line          string         `json:"line" gorm:"type:varchar(500)"`
	City          string         `json:"city" gorm:"type:varchar(100)"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
}

// ShippingProvider is a carrier the customer can pick at checkout.
type ShippingProvider struct {
	ID        string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Name      string          `json:"name" gorm:"type:varchar(100)"`
	BaseFee   decimal.Decimal `json:"base_fee" gorm:"type:decimal(14,2);not null"`
	IsActive  bool            `json:"is_active" gorm:"not null"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	DeletedAt gorm.DeletedAt  `json:"-" gorm:"index"`
}

// CartItem is one line of a user's shopping cart.
type CartItem struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"uniqueIndex:idx_cart_user_book;type:varchar(36)"`
	BookID    string    `json:"book_id" gorm:"uniqueIndex:idx_cart_user_book;type:varchar(36)"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
