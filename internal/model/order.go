package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) String() string { return string(s) }

// CanTransitionTo reports whether the status ladder allows moving to next.
// Only pending orders may be cancelled.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusPending:
		return next == OrderStatusConfirmed || next == OrderStatusCancelled
	case OrderStatusConfirmed:
		return next == OrderStatusProcessing
	case OrderStatusProcessing:
		return next == OrderStatusShipped
	case OrderStatusShipped:
		return next == OrderStatusDelivered
	default:
		return false
	}
}

type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
	PaymentStatusFailed PaymentStatus = "failed"
)

type PaymentMethod string

const (
	PaymentMethodCOD          PaymentMethod = "cod"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCard         PaymentMethod = "card"
)

// RequiresRedirect reports whether the method is settled through the
// external payment provider's hosted page.
func (m PaymentMethod) RequiresRedirect() bool {
	return m == PaymentMethodBankTransfer || m == PaymentMethodCard
}

type Order struct {
	ID            int64         `gorm:"primaryKey"`
	OrderNumber   string        `gorm:"size:32;uniqueIndex;not null"`
	UserID        string        `gorm:"size:64;index;not null"`
	Status        OrderStatus   `gorm:"size:32;index;not null"`
	PaymentStatus PaymentStatus `gorm:"size:32;not null"`
	PaymentMethod PaymentMethod `gorm:"size:32;not null"`

	Subtotal    decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	ShippingFee decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	Discount    decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	FinalAmount decimal.Decimal `gorm:"type:decimal(14,2);not null"`

	ShippingName     string `gorm:"size:128;not null"`
	ShippingPhone    string `gorm:"size:32;not null"`
	ShippingEmail    string `gorm:"size:128;not null"`
	ShippingAddress  string `gorm:"size:255;not null"`
	ShippingCity     string `gorm:"size:64;not null"`
	ShippingDistrict string `gorm:"size:64;not null"`

	Lines []OrderLine `gorm:"foreignKey:OrderID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderLine is a price-frozen copy of a cart line. UnitPrice is captured at
// order time and never tracks subsequent catalog changes.
type OrderLine struct {
	ID          int64           `gorm:"primaryKey"`
	OrderID     int64           `gorm:"index;not null"`
	ProductID   int64           `gorm:"not null"`
	VariantID   int64           `gorm:"not null"`
	ProductName string          `gorm:"size:255;not null"`
	Size        string          `gorm:"size:16"`
	Color       string          `gorm:"size:32"`
	Quantity    int             `gorm:"not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	CreatedAt   time.Time
}
