package service

import (
	"github.com/shopspring/decimal"

	"velora-storefront/internal/dto"
	"velora-storefront/internal/model"
)

// Pricer turns a list of cart lines into snapshot totals. All totals are
// derived in one pass so lines and aggregates can never disagree.
type Pricer struct {
	shippingFee   decimal.Decimal
	freeThreshold decimal.Decimal
}

func NewPricer(shippingFee, freeThreshold int64) *Pricer {
	return &Pricer{
		shippingFee:   decimal.NewFromInt(shippingFee),
		freeThreshold: decimal.NewFromInt(freeThreshold),
	}
}

func (p *Pricer) Snapshot(lines []dto.CartLine, coupon *model.Coupon) dto.CartSnapshot {
	subtotal := decimal.Zero
	totalItems := 0
	for _, line := range lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		totalItems += line.Quantity
	}

	shipping := decimal.Zero
	if totalItems > 0 && subtotal.LessThan(p.freeThreshold) {
		shipping = p.shippingFee
	}

	discount := decimal.Zero
	if coupon != nil && coupon.Percent > 0 {
		discount = subtotal.Mul(decimal.NewFromInt(int64(coupon.Percent))).
			Div(decimal.NewFromInt(100)).Round(2)
	}

	return dto.CartSnapshot{
		TotalItems:  totalItems,
		Subtotal:    subtotal,
		ShippingFee: shipping,
		Discount:    discount,
		FinalAmount: subtotal.Add(shipping).Sub(discount),
	}
}
