package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"velora-storefront/internal/client"
	"velora-storefront/internal/config"
	"velora-storefront/internal/dto"
	"velora-storefront/internal/model"
)

const testHashSecret = "velora-test-secret"

func testGateway() client.GatewayClient {
	return client.NewGatewayClient(&config.Gateway{
		PayURL:       "https://gateway.example/pay",
		QueryURL:     "https://gateway.example/query",
		MerchantCode: "VELORA01",
		HashSecret:   testHashSecret,
		ReturnURL:    "https://shop.example/payment/payment-return",
		SessionTTL:   15 * time.Minute,
	})
}

func (e *testEnv) paymentService() PaymentService {
	return NewPaymentService(e.db, testGateway(), e.orders, e.sessions, e.events)
}

// signedReturn builds a provider callback for amount in whole currency
// units, signed the way the provider signs its redirects.
func signedReturn(txnRef string, amount int64, resultCode string) url.Values {
	params := url.Values{}
	params.Set("vp_txn_ref", txnRef)
	params.Set("vp_amount", strconv.FormatInt(amount*100, 10))
	params.Set("vp_result_code", resultCode)
	params.Set("vp_transaction_no", "14400996")

	mac := hmac.New(sha512.New, []byte(testHashSecret))
	mac.Write([]byte(params.Encode()))
	params.Set("vp_secure_hash", hex.EncodeToString(mac.Sum(nil)))
	return params
}

// placedOrder seeds catalog and cart and places a bank-transfer order.
func placedOrder(t *testing.T, env *testEnv) *model.Order {
	t.Helper()
	productID, variantID := env.seedProduct(t, "Linen Shirt", 150000, 5)
	env.seedCartLine(t, "u1", productID, variantID, 3)

	order, err := env.orderService().PlaceOrder(context.Background(), "u1", placeRequest("bank_transfer"))
	require.NoError(t, err)
	return order
}

func paymentRequest(order *model.Order) *dto.CreatePaymentRequest {
	return &dto.CreatePaymentRequest{OrderID: order.ID, Amount: order.FinalAmount}
}

func txnRefOf(t *testing.T, payURL string) string {
	t.Helper()
	u, err := url.Parse(payURL)
	require.NoError(t, err)
	ref := u.Query().Get("vp_txn_ref")
	require.NotEmpty(t, ref)
	return ref
}

func TestCreateSessionIsIdempotentPerOrder(t *testing.T) {
	env := newTestEnv(t)
	order := placedOrder(t, env)
	svc := env.paymentService()

	req := paymentRequest(order)
	first, err := svc.CreateSession(context.Background(), "u1", req)
	require.NoError(t, err)
	second, err := svc.CreateSession(context.Background(), "u1", req)
	require.NoError(t, err)

	assert.Equal(t, txnRefOf(t, first), txnRefOf(t, second))

	var count int64
	require.NoError(t, env.db.Model(&model.PaymentSession{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

// Two transactions can both miss the active-session read under repeatable
// read isolation, so uniqueness must come from the database. The unique
// index over (order_id, active) rejects the second live insert; a terminal
// transition nulls the marker and frees the order again.
func TestLiveSessionUniquePerOrder(t *testing.T) {
	env := newTestEnv(t)
	order := placedOrder(t, env)

	first := &model.PaymentSession{
		OrderID: order.ID, TxnRef: "ref-a", Amount: order.FinalAmount,
		Status: model.PaymentSessionInitiated, Active: model.SessionActive(),
	}
	require.NoError(t, env.db.Create(first).Error)

	second := &model.PaymentSession{
		OrderID: order.ID, TxnRef: "ref-b", Amount: order.FinalAmount,
		Status: model.PaymentSessionInitiated, Active: model.SessionActive(),
	}
	assert.Error(t, env.db.Create(second).Error)

	rows, err := env.sessions.Transition(context.Background(), env.db, "ref-a", model.PaymentSessionFailed)
	require.NoError(t, err)
	require.EqualValues(t, 1, rows)

	var reloaded model.PaymentSession
	require.NoError(t, env.db.First(&reloaded, first.ID).Error)
	assert.Nil(t, reloaded.Active)

	require.NoError(t, env.db.Create(second).Error)
}

func TestCreateSessionStampsLiveMarker(t *testing.T) {
	env := newTestEnv(t)
	order := placedOrder(t, env)
	svc := env.paymentService()

	payURL, err := svc.CreateSession(context.Background(), "u1", paymentRequest(order))
	require.NoError(t, err)
	txnRef := txnRefOf(t, payURL)

	var session model.PaymentSession
	require.NoError(t, env.db.Where("txn_ref = ?", txnRef).First(&session).Error)
	assert.NotNil(t, session.Active)

	// the provider declines, the marker is released with the session
	_, err = svc.HandleReturn(context.Background(), signedReturn(txnRef, 480000, "24"))
	require.NoError(t, err)

	require.NoError(t, env.db.Where("txn_ref = ?", txnRef).First(&session).Error)
	assert.Nil(t, session.Active)
}

func TestCreateSessionReopensAfterTerminalSession(t *testing.T) {
	env := newTestEnv(t)
	order := placedOrder(t, env)
	svc := env.paymentService()

	first, err := svc.CreateSession(context.Background(), "u1", paymentRequest(order))
	require.NoError(t, err)
	firstRef := txnRefOf(t, first)

	// the provider declines, the session goes terminal
	_, err = svc.HandleReturn(context.Background(), signedReturn(firstRef, 480000, "24"))
	require.NoError(t, err)

	second, err := svc.CreateSession(context.Background(), "u1", paymentRequest(order))
	require.NoError(t, err)
	assert.NotEqual(t, firstRef, txnRefOf(t, second))
}

func TestCreateSessionRejectsPaidOrder(t *testing.T) {
	env := newTestEnv(t)
	order := placedOrder(t, env)

	require.NoError(t, env.db.Model(&model.Order{}).Where("id = ?", order.ID).
		Update("payment_status", model.PaymentStatusPaid).Error)

	_, err := env.paymentService().CreateSession(context.Background(), "u1", paymentRequest(order))
	assert.ErrorIs(t, err, ErrOrderAlreadyPaid)
}

func TestCreateSessionRejectsAmountDisagreement(t *testing.T) {
	env := newTestEnv(t)
	order := placedOrder(t, env)

	req := paymentRequest(order)
	req.Amount = order.FinalAmount.Add(decimal.NewFromInt(1000))
	_, err := env.paymentService().CreateSession(context.Background(), "u1", req)
	assert.ErrorIs(t, err, ErrPaymentIntegrity)
}

func TestHandleReturnSuccessConfirmsOrder(t *testing.T) {
	env := newTestEnv(t)
	order := placedOrder(t, env)
	svc := env.paymentService()

	payURL, err := svc.CreateSession(context.Background(), "u1", paymentRequest(order))
	require.NoError(t, err)
	txnRef := txnRefOf(t, payURL)

	resp, err := svc.HandleReturn(context.Background(), signedReturn(txnRef, 480000, "00"))
	require.NoError(t, err)
	assert.Equal(t, order.ID, resp.OrderID)
	assert.Equal(t, "confirmed", resp.SessionStatus)
	assert.Equal(t, "confirmed", resp.OrderStatus)

	reloaded, err := env.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, reloaded.PaymentStatus)
	assert.Equal(t, model.OrderStatusConfirmed, reloaded.Status)
}

func TestHandleReturnDuplicateDeliveryIsNoOp(t *testing.T) {
	env := newTestEnv(t)
	order := placedOrder(t, env)
	svc := env.paymentService()

	payURL, err := svc.CreateSession(context.Background(), "u1", paymentRequest(order))
	require.NoError(t, err)
	params := signedReturn(txnRefOf(t, payURL), 480000, "00")

	first, err := svc.HandleReturn(context.Background(), params)
	require.NoError(t, err)
	second, err := svc.HandleReturn(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	var events int64
	require.NoError(t, env.db.Model(&model.PaymentEvent{}).Count(&events).Error)
	assert.EqualValues(t, 1, events)

	reloaded, err := env.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusConfirmed, reloaded.Status)
}

func TestHandleReturnRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)
	order := placedOrder(t, env)
	svc := env.paymentService()

	payURL, err := svc.CreateSession(context.Background(), "u1", paymentRequest(order))
	require.NoError(t, err)

	params := signedReturn(txnRefOf(t, payURL), 480000, "00")
	params.Set("vp_amount", "100")

	_, err = svc.HandleReturn(context.Background(), params)
	assert.ErrorIs(t, err, client.ErrBadSignature)

	reloaded, err := env.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusUnpaid, reloaded.PaymentStatus)
}

func TestHandleReturnAmountMismatchFailsSession(t *testing.T) {
	env := newTestEnv(t)
	order := placedOrder(t, env)
	svc := env.paymentService()

	payURL, err := svc.CreateSession(context.Background(), "u1", paymentRequest(order))
	require.NoError(t, err)
	txnRef := txnRefOf(t, payURL)

	// validly signed, but the settled amount disagrees with the session
	params := signedReturn(txnRef, 480000-1000, "00")

	resp, err := svc.HandleReturn(context.Background(), params)
	assert.ErrorIs(t, err, ErrPaymentIntegrity)
	require.NotNil(t, resp)
	assert.Equal(t, "failed", resp.SessionStatus)

	reloaded, err := env.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusFailed, reloaded.PaymentStatus)
	assert.Equal(t, model.OrderStatusPending, reloaded.Status)

	// the duplicate returns the identical outcome
	dup, dupErr := svc.HandleReturn(context.Background(), params)
	assert.ErrorIs(t, dupErr, ErrPaymentIntegrity)
	assert.Equal(t, resp, dup)
}
