package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"velora-storefront/internal/model"
)

type PaymentSessionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, session *model.PaymentSession) error
	FindActiveByOrder(ctx context.Context, tx *gorm.DB, orderID int64) (*model.PaymentSession, error)
	FindByTxnRef(ctx context.Context, txnRef string) (*model.PaymentSession, error)
	// Transition moves the session to the given status only while it is
	// still non-terminal; it reports rows changed. RowsAffected == 0 means
	// the session already reached a terminal state.
	Transition(ctx context.Context, tx *gorm.DB, txnRef string, to model.PaymentSessionStatus) (int64, error)
	ListStale(ctx context.Context, olderThan time.Time) ([]model.PaymentSession, error)
}

type paymentSessionRepoImpl struct {
	db *gorm.DB
}

func NewPaymentSessionRepository(db *gorm.DB) PaymentSessionRepository {
	return &paymentSessionRepoImpl{db: db}
}

func (r *paymentSessionRepoImpl) Create(ctx context.Context, tx *gorm.DB, session *model.PaymentSession) error {
	return tx.WithContext(ctx).Create(session).Error
}

func (r *paymentSessionRepoImpl) FindActiveByOrder(ctx context.Context, tx *gorm.DB, orderID int64) (*model.PaymentSession, error) {
	if tx == nil {
		tx = r.db
	}
	var session model.PaymentSession
	err := tx.WithContext(ctx).
		Where("order_id = ? AND status IN ?", orderID, []model.PaymentSessionStatus{
			model.PaymentSessionInitiated,
			model.PaymentSessionPending,
		}).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *paymentSessionRepoImpl) FindByTxnRef(ctx context.Context, txnRef string) (*model.PaymentSession, error) {
	var session model.PaymentSession
	err := r.db.WithContext(ctx).Where("txn_ref = ?", txnRef).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *paymentSessionRepoImpl) Transition(ctx context.Context, tx *gorm.DB, txnRef string, to model.PaymentSessionStatus) (int64, error) {
	result := tx.WithContext(ctx).Model(&model.PaymentSession{}).
		Where("txn_ref = ? AND status IN ?", txnRef, []model.PaymentSessionStatus{
			model.PaymentSessionInitiated,
			model.PaymentSessionPending,
		}).
		Updates(transitionUpdates(to))
	return result.RowsAffected, result.Error
}

// transitionUpdates nulls the live marker on terminal statuses so the
// (order_id, active) unique index frees up the order for a new session.
func transitionUpdates(to model.PaymentSessionStatus) map[string]interface{} {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	if to.IsTerminal() {
		updates["active"] = nil
	}
	return updates
}

func (r *paymentSessionRepoImpl) ListStale(ctx context.Context, olderThan time.Time) ([]model.PaymentSession, error) {
	var sessions []model.PaymentSession
	err := r.db.WithContext(ctx).
		Where("status IN ? AND created_at < ?", []model.PaymentSessionStatus{
			model.PaymentSessionInitiated,
			model.PaymentSessionPending,
		}, olderThan).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

type PaymentEventRepository interface {
	Exists(ctx context.Context, eventID string) (bool, error)
	MarkProcessed(ctx context.Context, tx *gorm.DB, event *model.PaymentEvent) error
}

type paymentEventRepoImpl struct {
	db *gorm.DB
}

func NewPaymentEventRepository(db *gorm.DB) PaymentEventRepository {
	return &paymentEventRepoImpl{db: db}
}

func (r *paymentEventRepoImpl) Exists(ctx context.Context, eventID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.PaymentEvent{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	return count > 0, err
}

func (r *paymentEventRepoImpl) MarkProcessed(ctx context.Context, tx *gorm.DB, event *model.PaymentEvent) error {
	event.ProcessedAt = time.Now()
	return tx.WithContext(ctx).Create(event).Error
}
