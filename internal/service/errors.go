package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidQuantity     = errors.New("quantity must be at least 1")
	ErrEmptyCart           = errors.New("cart is empty, nothing to order")
	ErrVariantRequired     = errors.New("product has multiple variants, one must be chosen")
	ErrVariantMismatch     = errors.New("variant does not belong to product")
	ErrOrderNotCancellable = errors.New("only pending orders can be cancelled")
	ErrOrderAlreadyPaid    = errors.New("order is already paid")
	ErrPaymentIntegrity    = errors.New("callback amount does not match payment session")
)

// InsufficientStockError is the authoritative stock failure at order time.
// It names every cart line whose variant could not cover the requested
// quantity; no stock was decremented and no order was created.
type InsufficientStockError struct {
	LineIDs []int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for lines %v", e.LineIDs)
}
