package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"velora-storefront/internal/model"
)

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, order *model.Order) error
	FindByID(ctx context.Context, id int64) (*model.Order, error)
	FindByIDForUser(ctx context.Context, userID string, id int64) (*model.Order, error)
	ListByUser(ctx context.Context, userID string) ([]model.Order, error)
	// TransitionStatus updates the order status only when its current status
	// is one of from; it reports the number of rows changed so callers can
	// detect a lost guard without a read-then-write gap.
	TransitionStatus(ctx context.Context, tx *gorm.DB, orderID int64, from []model.OrderStatus, to model.OrderStatus) (int64, error)
	MarkPaid(ctx context.Context, tx *gorm.DB, orderID int64) error
	MarkPaymentFailed(ctx context.Context, tx *gorm.DB, orderID int64) error
}

type orderRepoImpl struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepoImpl{db: db}
}

func (r *orderRepoImpl) Create(ctx context.Context, tx *gorm.DB, order *model.Order) error {
	return tx.WithContext(ctx).Create(order).Error
}

func (r *orderRepoImpl) FindByID(ctx context.Context, id int64) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Preload("Lines").First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepoImpl) FindByIDForUser(ctx context.Context, userID string, id int64) (*model.Order, error) {
	var order model.Order
	err := r.db.WithContext(ctx).Preload("Lines").
		Where("id = ? AND user_id = ?", id, userID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepoImpl) ListByUser(ctx context.Context, userID string) ([]model.Order, error) {
	var orders []model.Order
	err := r.db.WithContext(ctx).Preload("Lines").
		Where("user_id = ?", userID).
		Order("id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepoImpl) TransitionStatus(ctx context.Context, tx *gorm.DB, orderID int64, from []model.OrderStatus, to model.OrderStatus) (int64, error) {
	result := tx.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status IN ?", orderID, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

func (r *orderRepoImpl) MarkPaid(ctx context.Context, tx *gorm.DB, orderID int64) error {
	return tx.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]interface{}{
			"payment_status": model.PaymentStatusPaid,
			"updated_at":     time.Now(),
		}).Error
}

func (r *orderRepoImpl) MarkPaymentFailed(ctx context.Context, tx *gorm.DB, orderID int64) error {
	return tx.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND payment_status = ?", orderID, model.PaymentStatusUnpaid).
		Updates(map[string]interface{}{
			"payment_status": model.PaymentStatusFailed,
			"updated_at":     time.Now(),
		}).Error
}
