package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// VoucherType enumerates the supported discount strategies.
type VoucherType string

const (
	VoucherTypePercentage   VoucherType = "percentage"
	VoucherTypeFixedAmount  VoucherType = "fixed_amount"
	VoucherTypeFreeShipping VoucherType = "free_shipping"
)

// Voucher is an admin-managed promotional code.
type Voucher struct {
	ID                string           `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Code              string           `json:"code" gorm:"uniqueIndex;type:varchar(50)"`
	Type              VoucherType      `json:"type" gorm:"type:varchar(20)"`
	Value             decimal.Decimal  `json:"value" gorm:"type:decimal(14,2);not null"`
	MaxDiscountAmount *decimal.Decimal `json:"max_discount_amount,omitempty" gorm:"type:decimal(14,2)"`
	MinOrderAmount    *decimal.Decimal `json:"min_order_amount,omitempty" gorm:"type:decimal(14,2)"`
	// UsageLimit of zero means unlimited.
	UsageLimit  int            `json:"usage_limit" gorm:"not null;default:0"`
	UsedCount   int            `json:"used_count" gorm:"not null;default:0"`
	OnePerUser  bool           `json:"one_per_user"`
	ValidFrom   time.Time      `json:"valid_from"`
	ValidTo     time.Time      `json:"valid_to"`
	IsActive    bool           `json:"is_active" gorm:"not null"`
	CategoryIDs []string       `json:"category_ids,omitempty" gorm:"serializer:json"`
	BookIDs     []string       `json:"book_ids,omitempty" gorm:"serializer:json"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"-" gorm:"index"`
}

// VoucherUsage is the durable record that a voucher was consumed by an order.
type VoucherUsage struct {
	ID             uint            `json:"id" gorm:"primaryKey"`
	VoucherID      string          `json:"voucher_id" gorm:"uniqueIndex:idx_voucher_usage_order;index:idx_voucher_usage_user;type:varchar(36)"`
	UserID         string          `json:"user_id" gorm:"index:idx_voucher_usage_user;type:varchar(36)"`
	OrderID        string          `json:"order_id" gorm:"uniqueIndex:idx_voucher_usage_order;type:varchar(36)"`
	OrderAmount    decimal.Decimal `json:"order_amount" gorm:"type:decimal(14,2)"`
	DiscountAmount decimal.Decimal `json:"discount_amount" gorm:"type:decimal(14,2)"`
	CreatedAt      time.Time       `json:"created_at"`
}
