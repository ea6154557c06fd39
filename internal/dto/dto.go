package dto

import "github.com/shopspring/decimal"

type CartLine struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	VariantID int64           `json:"variant_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// CartSnapshot is the derived aggregate over a set of cart lines. It is
// recomputed whole on every mutation, never stored.
type CartSnapshot struct {
	TotalItems  int             `json:"total_items"`
	Subtotal    decimal.Decimal `json:"subtotal"`
	ShippingFee decimal.Decimal `json:"shipping_fee"`
	Discount    decimal.Decimal `json:"discount"`
	FinalAmount decimal.Decimal `json:"final_amount"`
}

type CartResponse struct {
	Lines    []CartLine   `json:"lines"`
	Snapshot CartSnapshot `json:"snapshot"`
}

type AddLineRequest struct {
	ProductID int64 `json:"product_id"`
	VariantID int64 `json:"variant_id,omitempty"`
	Quantity  int   `json:"quantity"`
}

type UpdateLineRequest struct {
	Quantity int `json:"quantity"`
}

type ProductVariant struct {
	ID            int64  `json:"id"`
	ProductID     int64  `json:"product_id"`
	Size          string `json:"size,omitempty"`
	Color         string `json:"color,omitempty"`
	StockQuantity int    `json:"stock_quantity"`
}

type ShippingInfo struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Address  string `json:"address"`
	City     string `json:"city"`
	District string `json:"district"`
}

type PlaceOrderRequest struct {
	Lines         []CartLine   `json:"lines"`
	ShippingInfo  ShippingInfo `json:"shipping_info"`
	PaymentMethod string       `json:"payment_method"`
	CouponCode    string       `json:"coupon_code,omitempty"`
}

type PlaceOrderResponse struct {
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	FinalAmount decimal.Decimal `json:"final_amount"`
}

type OrderLine struct {
	ProductID   int64           `json:"product_id"`
	VariantID   int64           `json:"variant_id"`
	ProductName string          `json:"product_name"`
	Size        string          `json:"size,omitempty"`
	Color       string          `json:"color,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type OrderResponse struct {
	OrderID       int64           `json:"order_id"`
	OrderNumber   string          `json:"order_number"`
	Status        string          `json:"status"`
	PaymentStatus string          `json:"payment_status"`
	PaymentMethod string          `json:"payment_method"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	ShippingFee   decimal.Decimal `json:"shipping_fee"`
	Discount      decimal.Decimal `json:"discount"`
	FinalAmount   decimal.Decimal `json:"final_amount"`
	Lines         []OrderLine     `json:"lines"`
}

type CreatePaymentRequest struct {
	OrderID     int64           `json:"order_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	BankCode    string          `json:"bank_code,omitempty"`
}

type CreatePaymentResponse struct {
	PaymentURL string `json:"payment_url"`
}

type PaymentReturnResponse struct {
	OrderID       int64  `json:"order_id"`
	TxnRef        string `json:"txn_ref"`
	SessionStatus string `json:"session_status"`
	OrderStatus   string `json:"order_status"`
}

// ErrorResponse is the uniform error payload. LineIDs is set for
// insufficient-stock failures so the client can surface offending lines.
type ErrorResponse struct {
	Error   string  `json:"error"`
	Code    string  `json:"code,omitempty"`
	LineIDs []int64 `json:"line_ids,omitempty"`
}
