package api

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionExpired maps any 401 from an authenticated call. It is
	// handled once, centrally: the cart resets and the session broadcast
	// fires, rather than every call site reacting on its own.
	ErrSessionExpired = errors.New("session expired")

	// ErrNetworkTimeout is a bounded-timeout expiry on a network call.
	ErrNetworkTimeout = errors.New("network timeout")
)

// InsufficientStockError is the server's authoritative stock refusal at
// order placement. It always wins over the client's cached pre-flight view.
type InsufficientStockError struct {
	LineIDs []int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for lines %v", e.LineIDs)
}

// Error is any other non-2xx response.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Code, e.Message)
}
