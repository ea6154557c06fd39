package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentSessionStatus string

const (
	PaymentSessionInitiated PaymentSessionStatus = "initiated"
	PaymentSessionPending   PaymentSessionStatus = "pending_confirmation"
	PaymentSessionConfirmed PaymentSessionStatus = "confirmed"
	PaymentSessionFailed    PaymentSessionStatus = "failed"
	PaymentSessionExpired   PaymentSessionStatus = "expired"
)

func (s PaymentSessionStatus) String() string { return string(s) }

// IsTerminal reports whether the session accepts no further transitions.
func (s PaymentSessionStatus) IsTerminal() bool {
	return s == PaymentSessionConfirmed || s == PaymentSessionFailed || s == PaymentSessionExpired
}

// PaymentSession tracks one attempt to settle an order through the external
// provider. At most one non-terminal session exists per order; TxnRef is the
// reference the provider echoes back on return.
type PaymentSession struct {
	ID       int64                `gorm:"primaryKey"`
	OrderID  int64                `gorm:"index;not null;uniqueIndex:idx_payment_sessions_live,priority:1"`
	TxnRef   string               `gorm:"size:64;uniqueIndex;not null"`
	Amount   decimal.Decimal      `gorm:"type:decimal(14,2);not null"`
	BankCode string               `gorm:"size:32"`
	Status   PaymentSessionStatus `gorm:"size:32;index;not null"`
	// Active is non-null exactly while the session is live. The unique
	// index over (order_id, active) makes the database reject a second
	// live session for the same order even across concurrent transactions;
	// terminal transitions null it out.
	Active    *bool `gorm:"uniqueIndex:idx_payment_sessions_live,priority:2"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionActive is the marker value stamped on a live session.
func SessionActive() *bool {
	live := true
	return &live
}

// PaymentEvent records a processed provider callback so duplicate deliveries
// are applied at most once. EventID is derived from (txn ref, result code).
type PaymentEvent struct {
	EventID     string `gorm:"primaryKey;size:128;not null"`
	TxnRef      string `gorm:"size:64;index;not null"`
	ResultCode  string `gorm:"size:16;not null"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}
