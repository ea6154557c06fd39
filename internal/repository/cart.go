package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"velora-storefront/internal/model"
)

type CartRepository interface {
	ListByUser(ctx context.Context, userID string) ([]model.CartLine, error)
	FindLine(ctx context.Context, userID string, lineID int64) (*model.CartLine, error)
	FindByKey(ctx context.Context, userID string, productID, variantID int64) (*model.CartLine, error)
	Upsert(ctx context.Context, line *model.CartLine) error
	UpdateQuantity(ctx context.Context, userID string, lineID int64, qty int) error
	DeleteLine(ctx context.Context, userID string, lineID int64) error
	DeleteAll(ctx context.Context, tx *gorm.DB, userID string) error
}

type cartRepoImpl struct {
	db *gorm.DB
}

func NewCartRepository(db *gorm.DB) CartRepository {
	return &cartRepoImpl{db: db}
}

func (r *cartRepoImpl) ListByUser(ctx context.Context, userID string) ([]model.CartLine, error) {
	var lines []model.CartLine
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id").
		Find(&lines).Error
	if err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *cartRepoImpl) FindLine(ctx context.Context, userID string, lineID int64) (*model.CartLine, error) {
	var line model.CartLine
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", lineID, userID).
		First(&line).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *cartRepoImpl) FindByKey(ctx context.Context, userID string, productID, variantID int64) (*model.CartLine, error) {
	var line model.CartLine
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND product_id = ? AND variant_id = ?", userID, productID, variantID).
		First(&line).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &line, nil
}

// Upsert adds the line, folding quantity into an existing row for the same
// (user, product, variant) instead of violating the uniqueness constraint.
func (r *cartRepoImpl) Upsert(ctx context.Context, line *model.CartLine) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "product_id"}, {Name: "variant_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity":   gorm.Expr("cart_lines.quantity + ?", line.Quantity),
			"updated_at": time.Now(),
		}),
	}).Create(line).Error
}

func (r *cartRepoImpl) UpdateQuantity(ctx context.Context, userID string, lineID int64, qty int) error {
	result := r.db.WithContext(ctx).Model(&model.CartLine{}).
		Where("id = ? AND user_id = ?", lineID, userID).
		Updates(map[string]interface{}{
			"quantity":   qty,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *cartRepoImpl) DeleteLine(ctx context.Context, userID string, lineID int64) error {
	result := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", lineID, userID).
		Delete(&model.CartLine{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *cartRepoImpl) DeleteAll(ctx context.Context, tx *gorm.DB, userID string) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&model.CartLine{}).Error
}
