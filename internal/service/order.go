package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"velora-storefront/internal/dto"
	"velora-storefront/internal/model"
	"velora-storefront/internal/repository"
)

type OrderService interface {
	// PlaceOrder converts the user's server-held cart into a durable order.
	// Stock for every line is checked and decremented inside one database
	// transaction; if any line fails, nothing is decremented and no order
	// exists. Unit prices are frozen into the order lines at this moment.
	PlaceOrder(ctx context.Context, userID string, req *dto.PlaceOrderRequest) (*model.Order, error)
	Cancel(ctx context.Context, userID string, orderID int64) (*model.Order, error)
	Get(ctx context.Context, userID string, orderID int64) (*model.Order, error)
	List(ctx context.Context, userID string) ([]model.Order, error)
}

type orderServiceImpl struct {
	db          *gorm.DB
	cartRepo    repository.CartRepository
	variantRepo repository.VariantRepository
	productRepo repository.ProductRepository
	couponRepo  repository.CouponRepository
	orderRepo   repository.OrderRepository
	pricer      *Pricer
}

func NewOrderService(
	db *gorm.DB,
	cartRepo repository.CartRepository,
	variantRepo repository.VariantRepository,
	productRepo repository.ProductRepository,
	couponRepo repository.CouponRepository,
	orderRepo repository.OrderRepository,
	pricer *Pricer,
) OrderService {
	return &orderServiceImpl{
		db:          db,
		cartRepo:    cartRepo,
		variantRepo: variantRepo,
		productRepo: productRepo,
		couponRepo:  couponRepo,
		orderRepo:   orderRepo,
		pricer:      pricer,
	}
}

func (s *orderServiceImpl) PlaceOrder(ctx context.Context, userID string, req *dto.PlaceOrderRequest) (*model.Order, error) {
	method := model.PaymentMethod(req.PaymentMethod)
	switch method {
	case model.PaymentMethodCOD, model.PaymentMethodBankTransfer, model.PaymentMethodCard:
	default:
		return nil, fmt.Errorf("unknown payment method %q", req.PaymentMethod)
	}

	// the server cart mirror is authoritative; client lines are advisory
	cartLines, err := s.cartRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart lines: %w", err)
	}
	if len(cartLines) == 0 {
		return nil, ErrEmptyCart
	}

	products, variants, err := s.loadCatalog(ctx, cartLines)
	if err != nil {
		return nil, err
	}

	var coupon *model.Coupon
	if req.CouponCode != "" {
		coupon, err = s.couponRepo.FindActiveByCode(ctx, req.CouponCode)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("look up coupon: %w", err)
		}
	}

	order := &model.Order{
		OrderNumber:   newOrderNumber(),
		UserID:        userID,
		Status:        model.OrderStatusPending,
		PaymentStatus: model.PaymentStatusUnpaid,
		PaymentMethod: method,

		ShippingName:     req.ShippingInfo.Name,
		ShippingPhone:    req.ShippingInfo.Phone,
		ShippingEmail:    req.ShippingInfo.Email,
		ShippingAddress:  req.ShippingInfo.Address,
		ShippingCity:     req.ShippingInfo.City,
		ShippingDistrict: req.ShippingInfo.District,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var failed []int64
		for _, line := range cartLines {
			if err := s.variantRepo.ReserveStock(ctx, tx, line.VariantID, line.Quantity); err != nil {
				if errors.Is(err, repository.ErrNotEnoughStock) || errors.Is(err, repository.ErrNotFound) {
					failed = append(failed, line.ID)
					continue
				}
				return err
			}
		}
		if len(failed) > 0 {
			// rolls back every reservation made above
			return &InsufficientStockError{LineIDs: failed}
		}

		dtoLines := make([]dto.CartLine, 0, len(cartLines))
		for _, line := range cartLines {
			product := products[line.ProductID]
			variant := variants[line.VariantID]
			order.Lines = append(order.Lines, model.OrderLine{
				ProductID:   line.ProductID,
				VariantID:   line.VariantID,
				ProductName: product.Name,
				Size:        variant.Size,
				Color:       variant.Color,
				Quantity:    line.Quantity,
				UnitPrice:   product.Price,
			})
			dtoLines = append(dtoLines, toCartDTO(&line, product.Price))
		}

		snapshot := s.pricer.Snapshot(dtoLines, coupon)
		order.Subtotal = snapshot.Subtotal
		order.ShippingFee = snapshot.ShippingFee
		order.Discount = snapshot.Discount
		order.FinalAmount = snapshot.FinalAmount

		if err := s.orderRepo.Create(ctx, tx, order); err != nil {
			return fmt.Errorf("store order: %w", err)
		}

		if err := s.cartRepo.DeleteAll(ctx, tx, userID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID).
		Str("order_number", order.OrderNumber).
		Str("final_amount", order.FinalAmount.String()).
		Msg("order placed")

	return order, nil
}

// Cancel releases the reserved stock of a pending order. The guarded status
// update makes a second cancel of the same order fail instead of releasing
// stock twice.
func (s *orderServiceImpl) Cancel(ctx context.Context, userID string, orderID int64) (*model.Order, error) {
	order, err := s.orderRepo.FindByIDForUser(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := s.orderRepo.TransitionStatus(ctx, tx, orderID,
			[]model.OrderStatus{model.OrderStatusPending}, model.OrderStatusCancelled)
		if err != nil {
			return err
		}
		if rows == 0 {
			return ErrOrderNotCancellable
		}

		for _, line := range order.Lines {
			if err := s.variantRepo.ReleaseStock(ctx, tx, line.VariantID, line.Quantity); err != nil {
				return fmt.Errorf("release stock: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order.Status = model.OrderStatusCancelled

	log.Info().
		Str("user_id", userID).
		Str("order_number", order.OrderNumber).
		Msg("order cancelled, stock released")

	return order, nil
}

func (s *orderServiceImpl) Get(ctx context.Context, userID string, orderID int64) (*model.Order, error) {
	return s.orderRepo.FindByIDForUser(ctx, userID, orderID)
}

func (s *orderServiceImpl) List(ctx context.Context, userID string) ([]model.Order, error) {
	return s.orderRepo.ListByUser(ctx, userID)
}

func (s *orderServiceImpl) loadCatalog(ctx context.Context, lines []model.CartLine) (map[int64]model.Product, map[int64]model.ProductVariant, error) {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	productList, err := s.productRepo.FindMany(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("load products: %w", err)
	}
	products := make(map[int64]model.Product, len(productList))
	for _, p := range productList {
		products[p.ID] = p
	}

	variants := make(map[int64]model.ProductVariant, len(lines))
	for _, line := range lines {
		variant, err := s.variantRepo.Get(ctx, line.VariantID)
		if err != nil {
			return nil, nil, fmt.Errorf("load variant %d: %w", line.VariantID, err)
		}
		variants[variant.ID] = *variant
	}
	return products, variants, nil
}

func newOrderNumber() string {
	ref := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("SO-%s-%s", time.Now().Format("20060102"), ref[:8])
}
