package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"velora-storefront/internal/dto"
	"velora-storefront/internal/model"
	"velora-storefront/internal/repository"
)

// CartService owns the server-authoritative cart mirror. Quantities are
// clamped to available stock on every write; the returned line is the final
// word and the client is expected to adopt it.
type CartService interface {
	Get(ctx context.Context, userID, couponCode string) (*dto.CartResponse, error)
	AddLine(ctx context.Context, userID string, req *dto.AddLineRequest) (*dto.CartLine, error)
	UpdateQuantity(ctx context.Context, userID string, lineID int64, qty int) (*dto.CartLine, error)
	RemoveLine(ctx context.Context, userID string, lineID int64) error
	Clear(ctx context.Context, userID string) error
}

type cartServiceImpl struct {
	cartRepo    repository.CartRepository
	variantRepo repository.VariantRepository
	productRepo repository.ProductRepository
	couponRepo  repository.CouponRepository
	pricer      *Pricer
}

func NewCartService(
	cartRepo repository.CartRepository,
	variantRepo repository.VariantRepository,
	productRepo repository.ProductRepository,
	couponRepo repository.CouponRepository,
	pricer *Pricer,
) CartService {
	return &cartServiceImpl{
		cartRepo:    cartRepo,
		variantRepo: variantRepo,
		productRepo: productRepo,
		couponRepo:  couponRepo,
		pricer:      pricer,
	}
}

func (s *cartServiceImpl) Get(ctx context.Context, userID, couponCode string) (*dto.CartResponse, error) {
	lines, err := s.cartRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}

	dtoLines, err := s.toDTOLines(ctx, lines)
	if err != nil {
		return nil, err
	}

	var coupon *model.Coupon
	if couponCode != "" {
		coupon, err = s.couponRepo.FindActiveByCode(ctx, couponCode)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("look up coupon: %w", err)
		}
	}

	return &dto.CartResponse{
		Lines:    dtoLines,
		Snapshot: s.pricer.Snapshot(dtoLines, coupon),
	}, nil
}

func (s *cartServiceImpl) AddLine(ctx context.Context, userID string, req *dto.AddLineRequest) (*dto.CartLine, error) {
	if req.Quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	variant, err := s.resolveVariant(ctx, req.ProductID, req.VariantID)
	if err != nil {
		return nil, err
	}
	if variant.StockQuantity == 0 {
		return nil, repository.ErrNotEnoughStock
	}

	qty := req.Quantity
	if qty > variant.StockQuantity {
		qty = variant.StockQuantity
	}

	if err := s.cartRepo.Upsert(ctx, &model.CartLine{
		UserID:    userID,
		ProductID: req.ProductID,
		VariantID: variant.ID,
		Quantity:  qty,
	}); err != nil {
		return nil, fmt.Errorf("upsert cart line: %w", err)
	}

	line, err := s.cartRepo.FindByKey(ctx, userID, req.ProductID, variant.ID)
	if err != nil {
		return nil, fmt.Errorf("reload cart line: %w", err)
	}

	// folding into an existing line may have pushed it past stock
	if line.Quantity > variant.StockQuantity {
		if err := s.cartRepo.UpdateQuantity(ctx, userID, line.ID, variant.StockQuantity); err != nil {
			return nil, fmt.Errorf("clamp cart line: %w", err)
		}
		line.Quantity = variant.StockQuantity
	}

	return s.toDTOLine(ctx, line)
}

func (s *cartServiceImpl) UpdateQuantity(ctx context.Context, userID string, lineID int64, qty int) (*dto.CartLine, error) {
	if qty < 1 {
		return nil, ErrInvalidQuantity
	}

	line, err := s.cartRepo.FindLine(ctx, userID, lineID)
	if err != nil {
		return nil, err
	}

	variant, err := s.variantRepo.Get(ctx, line.VariantID)
	if err != nil {
		return nil, fmt.Errorf("load variant: %w", err)
	}

	if variant.StockQuantity == 0 {
		return nil, repository.ErrNotEnoughStock
	}
	if qty > variant.StockQuantity {
		qty = variant.StockQuantity
	}

	if err := s.cartRepo.UpdateQuantity(ctx, userID, lineID, qty); err != nil {
		return nil, err
	}
	line.Quantity = qty

	return s.toDTOLine(ctx, line)
}

func (s *cartServiceImpl) RemoveLine(ctx context.Context, userID string, lineID int64) error {
	return s.cartRepo.DeleteLine(ctx, userID, lineID)
}

func (s *cartServiceImpl) Clear(ctx context.Context, userID string) error {
	return s.cartRepo.DeleteAll(ctx, nil, userID)
}

// resolveVariant picks the variant for a line. An omitted variant is allowed
// only for single-variant products.
func (s *cartServiceImpl) resolveVariant(ctx context.Context, productID, variantID int64) (*model.ProductVariant, error) {
	if variantID != 0 {
		variant, err := s.variantRepo.Get(ctx, variantID)
		if err != nil {
			return nil, err
		}
		if variant.ProductID != productID {
			return nil, ErrVariantMismatch
		}
		return variant, nil
	}

	variants, err := s.variantRepo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	switch len(variants) {
	case 0:
		return nil, repository.ErrNotFound
	case 1:
		return &variants[0], nil
	default:
		return nil, ErrVariantRequired
	}
}

func (s *cartServiceImpl) toDTOLine(ctx context.Context, line *model.CartLine) (*dto.CartLine, error) {
	product, err := s.productRepo.Get(ctx, line.ProductID)
	if err != nil {
		return nil, fmt.Errorf("load product: %w", err)
	}
	out := toCartDTO(line, product.Price)
	return &out, nil
}

func (s *cartServiceImpl) toDTOLines(ctx context.Context, lines []model.CartLine) ([]dto.CartLine, error) {
	if len(lines) == 0 {
		return []dto.CartLine{}, nil
	}

	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	products, err := s.productRepo.FindMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	prices := make(map[int64]decimal.Decimal, len(products))
	for _, p := range products {
		prices[p.ID] = p.Price
	}

	out := make([]dto.CartLine, 0, len(lines))
	for i := range lines {
		out = append(out, toCartDTO(&lines[i], prices[lines[i].ProductID]))
	}
	return out, nil
}

func toCartDTO(line *model.CartLine, unitPrice decimal.Decimal) dto.CartLine {
	return dto.CartLine{
		ID:        line.ID,
		ProductID: line.ProductID,
		VariantID: line.VariantID,
		Quantity:  line.Quantity,
		UnitPrice: unitPrice,
		LineTotal: unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))),
	}
}
