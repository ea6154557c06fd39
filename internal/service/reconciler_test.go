package service

import (
	"context"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"velora-storefront/internal/client"
	"velora-storefront/internal/dto"
	"velora-storefront/internal/model"
)

type countingPayments struct {
	sweeps atomic.Int64
}

func (c *countingPayments) CreateSession(ctx context.Context, userID string, req *dto.CreatePaymentRequest) (string, error) {
	return "", nil
}

func (c *countingPayments) HandleReturn(ctx context.Context, params url.Values) (*dto.PaymentReturnResponse, error) {
	return nil, nil
}

func (c *countingPayments) ExpireStale(ctx context.Context, olderThan time.Time) (int, error) {
	c.sweeps.Add(1)
	return 0, nil
}

func TestReconcilerSweepsUntilStopped(t *testing.T) {
	payments := &countingPayments{}
	r := NewReconciler(payments, 10*time.Millisecond, time.Minute)

	r.Start()
	require.Eventually(t, func() bool {
		return payments.sweeps.Load() >= 2
	}, time.Second, 5*time.Millisecond)
	r.Stop()

	after := payments.sweeps.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, payments.sweeps.Load())
}

// fakeGateway answers transaction queries from a canned settlement map.
type fakeGateway struct {
	settled map[string]bool
	err     error
}

func (f *fakeGateway) BuildPayURL(session *model.PaymentSession, description string) string {
	return "https://gateway.example/pay?vp_txn_ref=" + session.TxnRef
}

func (f *fakeGateway) VerifyReturn(params url.Values) (*client.ReturnParams, error) {
	return nil, client.ErrBadSignature
}

func (f *fakeGateway) QueryTransaction(ctx context.Context, txnRef string) (*client.TxnStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &client.TxnStatus{TxnRef: txnRef, ResultCode: "00", Settled: f.settled[txnRef]}, nil
}

func TestExpireStaleClosesAbandonedSessions(t *testing.T) {
	env := newTestEnv(t)
	order := placedOrder(t, env)

	stale := time.Now().Add(-time.Hour)
	settledSession := &model.PaymentSession{
		OrderID: order.ID, TxnRef: "txn-settled", Amount: order.FinalAmount,
		Status: model.PaymentSessionInitiated, CreatedAt: stale,
	}
	abandonedSession := &model.PaymentSession{
		OrderID: order.ID, TxnRef: "txn-abandoned", Amount: order.FinalAmount,
		Status: model.PaymentSessionInitiated, CreatedAt: stale,
	}
	require.NoError(t, env.db.Create(settledSession).Error)
	require.NoError(t, env.db.Create(abandonedSession).Error)

	gateway := &fakeGateway{settled: map[string]bool{"txn-settled": true}}
	svc := NewPaymentService(env.db, gateway, env.orders, env.sessions, env.events)

	expired, err := svc.ExpireStale(context.Background(), time.Now().Add(-15*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	var settled, abandoned model.PaymentSession
	require.NoError(t, env.db.First(&settled, settledSession.ID).Error)
	require.NoError(t, env.db.First(&abandoned, abandonedSession.ID).Error)
	assert.Equal(t, model.PaymentSessionConfirmed, settled.Status)
	assert.Equal(t, model.PaymentSessionExpired, abandoned.Status)

	// the provider-settled session marks the order paid
	reloaded, err := env.orders.FindByID(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPaid, reloaded.PaymentStatus)
	assert.Equal(t, model.OrderStatusConfirmed, reloaded.Status)
}

func TestExpireStaleLeavesSessionsWhenProviderUnreachable(t *testing.T) {
	env := newTestEnv(t)
	order := placedOrder(t, env)

	session := &model.PaymentSession{
		OrderID: order.ID, TxnRef: "txn-unknown", Amount: order.FinalAmount,
		Status: model.PaymentSessionInitiated, CreatedAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, env.db.Create(session).Error)

	gateway := &fakeGateway{err: context.DeadlineExceeded}
	svc := NewPaymentService(env.db, gateway, env.orders, env.sessions, env.events)

	expired, err := svc.ExpireStale(context.Background(), time.Now().Add(-15*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, expired)

	var reloaded model.PaymentSession
	require.NoError(t, env.db.First(&reloaded, session.ID).Error)
	assert.Equal(t, model.PaymentSessionInitiated, reloaded.Status)
}
