package service

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"velora-storefront/internal/client"
	"velora-storefront/internal/model"
	"velora-storefront/internal/repository"
)

// newTestDB opens a private in-memory database. A single connection keeps
// sqlite from tripping over concurrent writers in the concurrency tests.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, client.Migrate(db))
	return db
}

type testEnv struct {
	db       *gorm.DB
	carts    repository.CartRepository
	variants repository.VariantRepository
	products repository.ProductRepository
	coupons  repository.CouponRepository
	orders   repository.OrderRepository
	sessions repository.PaymentSessionRepository
	events   repository.PaymentEventRepository
	pricer   *Pricer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := newTestDB(t)
	return &testEnv{
		db:       db,
		carts:    repository.NewCartRepository(db),
		variants: repository.NewVariantRepository(db),
		products: repository.NewProductRepository(db),
		coupons:  repository.NewCouponRepository(db),
		orders:   repository.NewOrderRepository(db),
		sessions: repository.NewPaymentSessionRepository(db),
		events:   repository.NewPaymentEventRepository(db),
		pricer:   NewPricer(30000, 500000),
	}
}

func (e *testEnv) cartService() CartService {
	return NewCartService(e.carts, e.variants, e.products, e.coupons, e.pricer)
}

func (e *testEnv) orderService() OrderService {
	return NewOrderService(e.db, e.carts, e.variants, e.products, e.coupons, e.orders, e.pricer)
}

// seedProduct creates a product with one variant holding the given stock
// and returns the variant id.
func (e *testEnv) seedProduct(t *testing.T, name string, price int64, stock int) (int64, int64) {
	t.Helper()

	product := &model.Product{Name: name, Brand: "Velora", Category: "tops", Price: decimal.NewFromInt(price)}
	require.NoError(t, e.db.Create(product).Error)

	variant := &model.ProductVariant{ProductID: product.ID, Size: "M", Color: "black", StockQuantity: stock}
	require.NoError(t, e.db.Create(variant).Error)

	return product.ID, variant.ID
}

func (e *testEnv) seedCartLine(t *testing.T, userID string, productID, variantID int64, qty int) {
	t.Helper()
	require.NoError(t, e.db.Create(&model.CartLine{
		UserID: userID, ProductID: productID, VariantID: variantID, Quantity: qty,
	}).Error)
}

func (e *testEnv) stockOf(t *testing.T, variantID int64) int {
	t.Helper()
	var variant model.ProductVariant
	require.NoError(t, e.db.First(&variant, variantID).Error)
	return variant.StockQuantity
}
