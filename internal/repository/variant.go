package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"velora-storefront/internal/model"
)

// VariantRepository is the single entry point for stock mutation. All
// writers (order placement, order cancellation) go through ReserveStock and
// ReleaseStock inside one database transaction; no other code path touches
// stock_quantity.
type VariantRepository interface {
	Get(ctx context.Context, id int64) (*model.ProductVariant, error)
	ListByProduct(ctx context.Context, productID int64) ([]model.ProductVariant, error)
	ReserveStock(ctx context.Context, tx *gorm.DB, variantID int64, qty int) error
	ReleaseStock(ctx context.Context, tx *gorm.DB, variantID int64, qty int) error
}

type variantRepoImpl struct {
	db *gorm.DB
}

func NewVariantRepository(db *gorm.DB) VariantRepository {
	return &variantRepoImpl{db: db}
}

func (r *variantRepoImpl) Get(ctx context.Context, id int64) (*model.ProductVariant, error) {
	var v model.ProductVariant
	err := r.db.WithContext(ctx).First(&v, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (r *variantRepoImpl) ListByProduct(ctx context.Context, productID int64) ([]model.ProductVariant, error) {
	var variants []model.ProductVariant
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("id").
		Find(&variants).Error
	if err != nil {
		return nil, err
	}
	return variants, nil
}

// ReserveStock decrements the variant's stock by qty. The WHERE guard makes
// the check-and-decrement a single atomic statement, so two concurrent
// orders for the last unit cannot both succeed and the counter never goes
// negative.
func (r *variantRepoImpl) ReserveStock(ctx context.Context, tx *gorm.DB, variantID int64, qty int) error {
	result := tx.WithContext(ctx).Model(&model.ProductVariant{}).
		Where("id = ? AND stock_quantity >= ?", variantID, qty).
		Updates(map[string]interface{}{
			"stock_quantity": gorm.Expr("stock_quantity - ?", qty),
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("reserve stock for variant %d: %w", variantID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotEnoughStock
	}
	return nil
}

func (r *variantRepoImpl) ReleaseStock(ctx context.Context, tx *gorm.DB, variantID int64, qty int) error {
	result := tx.WithContext(ctx).Model(&model.ProductVariant{}).
		Where("id = ?", variantID).
		Updates(map[string]interface{}{
			"stock_quantity": gorm.Expr("stock_quantity + ?", qty),
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("release stock for variant %d: %w", variantID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
