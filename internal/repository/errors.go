package repository

import "errors"

var (
	ErrNotFound = errors.New("record not found")

	// ErrNotEnoughStock is returned by ReserveStock when the guarded
	// decrement matched no row: either the variant is missing or its
	// stock_quantity is below the requested quantity.
	ErrNotEnoughStock = errors.New("not enough stock")
)
