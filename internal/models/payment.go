package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payment records the expected or received payment of an order.
type Payment struct {
	ID            string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID       string          `json:"order_id" gorm:"uniqueIndex;type:varchar(36)"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:decimal(14,2);not null"`
	Method        PaymentMethod   `json:"method" gorm:"type:varchar(20)"`
	Status        PaymentStatus   `json:"status" gorm:"type:varchar(20)"`
	TransactionID string          `json:"transaction_id,omitempty" gorm:"type:varchar(100)"`
	CustomerName  string          `json:"customer_name" gorm:"type:varchar(255)"`
	CustomerEmail string          `json:"customer_email" gorm:"type:varchar(255)"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
