package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID        int64           `gorm:"primaryKey"`
	Name      string          `gorm:"size:255;not null"`
	Brand     string          `gorm:"size:128;index"`
	Category  string          `gorm:"size:128;index"`
	Price     decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProductVariant is the unit at which stock is tracked. StockQuantity is
// mutated only through VariantRepository.ReserveStock/ReleaseStock inside an
// order transaction; it never goes negative.
type ProductVariant struct {
	ID            int64  `gorm:"primaryKey"`
	ProductID     int64  `gorm:"index;not null"`
	Size          string `gorm:"size:16"`
	Color         string `gorm:"size:32"`
	StockQuantity int    `gorm:"not null;default:0"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CartLine is the server-authoritative mirror of a client cart line. The
// composite unique index prevents duplicate lines for the same variant.
type CartLine struct {
	ID        int64  `gorm:"primaryKey"`
	UserID    string `gorm:"size:64;not null;uniqueIndex:idx_cart_user_variant,priority:1"`
	ProductID int64  `gorm:"not null;uniqueIndex:idx_cart_user_variant,priority:2"`
	VariantID int64  `gorm:"not null;uniqueIndex:idx_cart_user_variant,priority:3"`
	Quantity  int    `gorm:"not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Coupon struct {
	ID      int64  `gorm:"primaryKey"`
	Code    string `gorm:"size:32;uniqueIndex;not null"`
	Percent int    `gorm:"not null"`
	Active  bool   `gorm:"not null;default:true"`
}
