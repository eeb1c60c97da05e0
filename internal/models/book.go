package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Book represents a catalog item. Its Stock column is the inventory record
// for the item and is only mutated through conditional updates.
type Book struct {
	ID         string          `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Title      string          `json:"title" gorm:"type:varchar(255)" validate:"required,min=1,max=255"`
	Author     string          `json:"author" gorm:"type:varchar(255)"`
	CategoryID string          `json:"category_id" gorm:"index;type:varchar(36)"`
	Price      decimal.Decimal `json:"price" gorm:"type:decimal(14,2);not null" validate:"required"`
	Stock      int             `json:"stock" gorm:"not null;default:0;check:stock >= 0" validate:"gte=0"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
	DeletedAt  gorm.DeletedAt  `json:"-" gorm:"index"`
}
