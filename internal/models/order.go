package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderStatus is the fulfillment state of an order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is one of the known order states.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no transition can leave s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// PaymentStatus tracks the money side of an order.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// PaymentMethod is how the customer intends to pay.
type PaymentMethod string

const (
	PaymentMethodCOD          PaymentMethod = "cod"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodEWallet      PaymentMethod = "e_wallet"
)

// OrderItem represents a single line within an order. Price is the unit
// price captured at purchase time and is never recomputed.
type OrderItem struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	OrderID   string          `json:"order_id" gorm:"index;type:varchar(36)"`
	BookID    string          `json:"book_id" gorm:"index;type:varchar(36)"`
	Title     string          `json:"title" gorm:"type:varchar(255)"`
	Quantity  int             `json:"quantity" gorm:"not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(14,2);not null"`
	CreatedAt time.Time       `json:"created_at"`
}

// LineTotal returns price * quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderNote is one append-only entry of the order audit log.
type OrderNote struct {
	ID        uint        `json:"id" gorm:"primaryKey"`
	OrderID   string      `json:"order_id" gorm:"index;type:varchar(36)"`
	Status    OrderStatus `json:"status" gorm:"type:varchar(20)"`
	Message   string      `json:"message" gorm:"type:text"`
	Actor     string      `json:"actor" gorm:"type:varchar(100)"`
	CreatedAt time.Time   `json:"created_at"`
}

// Order represents a customer order.
type Order struct {
	ID                 string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Code               string          `json:"code" gorm:"uniqueIndex;type:varchar(32)"`
	UserID             string          `json:"user_id" gorm:"index;type:varchar(36)"`
	Items              []OrderItem     `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	OriginalAmount     decimal.Decimal `json:"original_amount" gorm:"type:decimal(14,2);not null"`
	DiscountAmount     decimal.Decimal `json:"discount_amount" gorm:"type:decimal(14,2);not null"`
	VoucherID          *string         `json:"voucher_id,omitempty" gorm:"type:varchar(36)"`
	ShippingAddressID  string          `json:"shipping_address_id" gorm:"type:varchar(36)"`
	ShippingProviderID string          `json:"shipping_provider_id" gorm:"type:varchar(36)"`
	ShippingFee        decimal.Decimal `json:"shipping_fee" gorm:"type:decimal(14,2);not null"`
	TotalPrice         decimal.Decimal `json:"total_price" gorm:"type:decimal(14,2);not null"`
	PaymentMethod      PaymentMethod   `json:"payment_method" gorm:"type:varchar(20)"`
	Status             OrderStatus     `json:"status" gorm:"index;type:varchar(20)"`
	PaymentStatus      PaymentStatus   `json:"payment_status" gorm:"type:varchar(20)"`
	Note               string          `json:"note" gorm:"type:text"`
	CancelReason       string          `json:"cancel_reason,omitempty" gorm:"type:text"`
	ConfirmedAt        *time.Time      `json:"confirmed_at,omitempty"`
	ShippedAt          *time.Time      `json:"shipped_at,omitempty" gorm:"index"`
	DeliveredAt        *time.Time      `json:"delivered_at,omitempty"`
	CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
	PaidAt             *time.Time      `json:"paid_at,omitempty"`
	ShipmentNotifiedAt *time.Time      `json:"-"`
	Notes              []OrderNote     `json:"notes,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time       `json:"created_at" gorm:"index"`
	UpdatedAt          time.Time       `json:"updated_at"`
	DeletedAt          gorm.DeletedAt  `json:"-" gorm:"index"`

	ShippingAddress *Address     `json:"shipping_address,omitempty" gorm:"-"`
	User            *UserSummary `json:"user,omitempty" gorm:"-"`
}

// CalculateTotal returns original - discount + shipping fee.
func (o *Order) CalculateTotal() decimal.Decimal {
	return o.OriginalAmount.Sub(o.DiscountAmount).Add(o.ShippingFee)
}

// StatusChange describes a single status transition. Repositories apply it
// only when the order is still in the expected source state.
type StatusChange struct {
	To            OrderStatus
	PaymentStatus PaymentStatus
	Reason        string
	At            time.Time
}

// Columns returns the column updates for the change. Milestone timestamps
// keep the time the state was first reached.
func (c StatusChange) Columns() map[string]any {
	cols := map[string]any{
		"status":     c.To,
		"updated_at": c.At,
	}
	if col := milestoneColumn(c.To); col != "" {
		cols[col] = gorm.Expr("COALESCE("+col+", ?)", c.At)
	}
	if c.To == OrderStatusCancelled {
		cols["cancel_reason"] = c.Reason
	}
	if c.PaymentStatus != "" {
		cols["payment_status"] = c.PaymentStatus
		if c.PaymentStatus == PaymentStatusCompleted {
			cols["paid_at"] = gorm.Expr("COALESCE(paid_at, ?)", c.At)
		}
	}
	return cols
}

func milestoneColumn(s OrderStatus) string {
	switch s {
	case OrderStatusConfirmed:
		return "confirmed_at"
	case OrderStatusShipped:
		return "shipped_at"
	case OrderStatusDelivered:
		return "delivered_at"
	case OrderStatusCancelled:
		return "cancelled_at"
	}
	return ""
}

// Apply mutates the in-memory order the same way Columns mutates a row.
func (o *Order) Apply(c StatusChange) {
	at := c.At
	o.Status = c.To
	o.UpdatedAt = at
	setOnce := func(t **time.Time) {
		if *t == nil {
			*t = &at
		}
	}
	switch c.To {
	case OrderStatusConfirmed:
		setOnce(&o.ConfirmedAt)
	case OrderStatusShipped:
		setOnce(&o.ShippedAt)
	case OrderStatusDelivered:
		setOnce(&o.DeliveredAt)
	case OrderStatusCancelled:
		setOnce(&o.CancelledAt)
		o.CancelReason = c.Reason
	}
	if c.PaymentStatus != "" {
		o.PaymentStatus = c.PaymentStatus
		if c.PaymentStatus == PaymentStatusCompleted {
			setOnce(&o.PaidAt)
		}
	}
}
