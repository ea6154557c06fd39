package checkout

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"velora-storefront/internal/api"
	"velora-storefront/internal/cart"
	"velora-storefront/internal/dto"
)

type fakeCheckoutAPI struct {
	placeCalls  int
	placeErr    error
	placeResp   *dto.PlaceOrderResponse
	lastRequest dto.PlaceOrderRequest

	// set both to gate placement from the test
	placeStarted chan struct{}
	blockPlace   chan struct{}

	payCalls int
	payErr   error
	payURL   string
	lastPay  dto.CreatePaymentRequest
}

func (f *fakeCheckoutAPI) PlaceOrder(ctx context.Context, req dto.PlaceOrderRequest) (*dto.PlaceOrderResponse, error) {
	f.placeCalls++
	f.lastRequest = req
	if f.placeStarted != nil {
		f.placeStarted <- struct{}{}
	}
	if f.blockPlace != nil {
		<-f.blockPlace
	}
	if f.placeErr != nil {
		return nil, f.placeErr
	}
	if f.placeResp != nil {
		return f.placeResp, nil
	}
	return &dto.PlaceOrderResponse{OrderID: 77, OrderNumber: "SO-20260829-ABCDEF12",
		FinalAmount: decimal.NewFromInt(330000)}, nil
}

func (f *fakeCheckoutAPI) CreatePaymentURL(ctx context.Context, req dto.CreatePaymentRequest) (string, error) {
	f.payCalls++
	f.lastPay = req
	if f.payErr != nil {
		return "", f.payErr
	}
	if f.payURL != "" {
		return f.payURL, nil
	}
	return "https://gateway.example/pay?ref=abc", nil
}

func filledStore(t *testing.T) *cart.Store {
	t.Helper()
	s := cart.NewStore(cart.Rules{
		ShippingFee:   decimal.NewFromInt(30000),
		FreeThreshold: decimal.NewFromInt(500000),
	})
	s.ReplaceAll([]dto.CartLine{
		{ID: 1, ProductID: 10, VariantID: 100, Quantity: 2,
			UnitPrice: decimal.NewFromInt(150000), LineTotal: decimal.NewFromInt(300000)},
	})
	return s
}

func validShipping() dto.ShippingInfo {
	return dto.ShippingInfo{
		Name:     "Nguyen Van A",
		Phone:    "0912345678",
		Email:    "a@example.com",
		Address:  "12 Ly Thuong Kiet",
		City:     "Ha Noi",
		District: "Hoan Kiem",
	}
}

func TestBeginRejectsEmptyCart(t *testing.T) {
	s := cart.NewStore(cart.Rules{ShippingFee: decimal.NewFromInt(30000), FreeThreshold: decimal.NewFromInt(500000)})
	o := NewOrchestrator(s, &fakeCheckoutAPI{})

	assert.ErrorIs(t, o.Begin(), ErrEmptyCart)
}

func TestStepsAdvanceOnlyOnValidInput(t *testing.T) {
	o := NewOrchestrator(filledStore(t), &fakeCheckoutAPI{})
	require.NoError(t, o.Begin())
	assert.Equal(t, StepShipping, o.Step())

	// invalid shipping keeps the machine in place with field errors
	err := o.SubmitShipping(dto.ShippingInfo{Name: "A", Phone: "nope", Email: "bad", City: "Ha Noi"})
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr, "phone")
	assert.Contains(t, verr, "email")
	assert.Contains(t, verr, "address")
	assert.Contains(t, verr, "district")
	assert.NotContains(t, verr, "name")
	assert.Equal(t, StepShipping, o.Step())

	require.NoError(t, o.SubmitShipping(validShipping()))
	assert.Equal(t, StepPayment, o.Step())

	// only the chosen method's fields are validated
	err = o.SelectPayment(PaymentSelection{Method: MethodBankTransfer})
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr, "bank_code")
	assert.Equal(t, StepPayment, o.Step())

	require.NoError(t, o.SelectPayment(PaymentSelection{Method: MethodCOD}))
	assert.Equal(t, StepConfirm, o.Step())
}

func TestCardFieldsValidatedOnlyForCard(t *testing.T) {
	o := NewOrchestrator(filledStore(t), &fakeCheckoutAPI{})
	require.NoError(t, o.Begin())
	require.NoError(t, o.SubmitShipping(validShipping()))

	err := o.SelectPayment(PaymentSelection{Method: MethodCard, CardNumber: "41111", CardExpiry: "13/26", CardCVV: "1"})
	var verr ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr, "card_number")
	assert.Contains(t, verr, "card_expiry")
	assert.Contains(t, verr, "card_cvv")

	require.NoError(t, o.SelectPayment(PaymentSelection{
		Method: MethodCard, CardNumber: "4111 1111 1111 1111", CardExpiry: "12/27", CardCVV: "123",
	}))
	assert.Equal(t, StepConfirm, o.Step())
}

func TestBackStepsOneAtATime(t *testing.T) {
	o := NewOrchestrator(filledStore(t), &fakeCheckoutAPI{})
	require.NoError(t, o.Begin())

	assert.ErrorIs(t, o.Back(), ErrWrongStep)

	require.NoError(t, o.SubmitShipping(validShipping()))
	require.NoError(t, o.SelectPayment(PaymentSelection{Method: MethodCOD}))
	assert.Equal(t, StepConfirm, o.Step())

	require.NoError(t, o.Back())
	assert.Equal(t, StepPayment, o.Step())
	require.NoError(t, o.Back())
	assert.Equal(t, StepShipping, o.Step())
	assert.ErrorIs(t, o.Back(), ErrWrongStep)
}

func TestCommitCODIsTerminal(t *testing.T) {
	fake := &fakeCheckoutAPI{}
	o := NewOrchestrator(filledStore(t), fake)
	require.NoError(t, o.Begin())
	require.NoError(t, o.SubmitShipping(validShipping()))
	require.NoError(t, o.SelectPayment(PaymentSelection{Method: MethodCOD}))

	res, err := o.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(77), res.OrderID)
	assert.Empty(t, res.RedirectURL)
	assert.Equal(t, 0, fake.payCalls)
	assert.Equal(t, "cod", fake.lastRequest.PaymentMethod)
	require.Len(t, fake.lastRequest.Lines, 1)

	// terminal: no back, no second commit
	assert.ErrorIs(t, o.Back(), ErrCommitted)
	_, err = o.Commit(context.Background())
	assert.ErrorIs(t, err, ErrCommitted)
	assert.ErrorIs(t, o.Begin(), ErrCommitted)
	assert.Equal(t, 1, fake.placeCalls)
}

func TestCommitRedirectMethodReturnsGatewayURL(t *testing.T) {
	fake := &fakeCheckoutAPI{payURL: "https://gateway.example/pay?ref=xyz"}
	o := NewOrchestrator(filledStore(t), fake)
	require.NoError(t, o.Begin())
	require.NoError(t, o.SubmitShipping(validShipping()))
	require.NoError(t, o.SelectPayment(PaymentSelection{Method: MethodBankTransfer, BankCode: "NCB"}))

	res, err := o.Commit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "https://gateway.example/pay?ref=xyz", res.RedirectURL)
	assert.Equal(t, int64(77), fake.lastPay.OrderID)
	assert.Equal(t, "NCB", fake.lastPay.BankCode)
	assert.True(t, fake.lastPay.Amount.Equal(decimal.NewFromInt(330000)))
}

// A second Commit issued while the first placement call is on the wire
// must not reach the server; one checkout never places two orders.
func TestCommitWhileInFlightIsRejected(t *testing.T) {
	fake := &fakeCheckoutAPI{
		placeStarted: make(chan struct{}),
		blockPlace:   make(chan struct{}),
	}
	o := NewOrchestrator(filledStore(t), fake)
	require.NoError(t, o.Begin())
	require.NoError(t, o.SubmitShipping(validShipping()))
	require.NoError(t, o.SelectPayment(PaymentSelection{Method: MethodCOD}))

	done := make(chan error, 1)
	go func() {
		_, err := o.Commit(context.Background())
		done <- err
	}()
	<-fake.placeStarted

	_, err := o.Commit(context.Background())
	assert.ErrorIs(t, err, ErrCommitInFlight)
	assert.ErrorIs(t, o.Back(), ErrCommitInFlight)

	close(fake.blockPlace)
	require.NoError(t, <-done)
	assert.Equal(t, 1, fake.placeCalls)
	assert.Equal(t, int64(77), o.OrderID())
}

func TestCommitPlacementTimeoutIsHardError(t *testing.T) {
	fake := &fakeCheckoutAPI{placeErr: api.ErrNetworkTimeout}
	o := NewOrchestrator(filledStore(t), fake)
	require.NoError(t, o.Begin())
	require.NoError(t, o.SubmitShipping(validShipping()))
	require.NoError(t, o.SelectPayment(PaymentSelection{Method: MethodCOD}))

	_, err := o.Commit(context.Background())
	assert.ErrorIs(t, err, api.ErrNetworkTimeout)

	// no order id was assigned, the machine is not terminal and commit
	// may be retried
	assert.Equal(t, int64(0), o.OrderID())
	_, err = o.Commit(context.Background())
	assert.ErrorIs(t, err, api.ErrNetworkTimeout)
	assert.Equal(t, 2, fake.placeCalls)
}

func TestPaymentURLFailureKeepsOrderTerminal(t *testing.T) {
	fake := &fakeCheckoutAPI{payErr: api.ErrNetworkTimeout}
	o := NewOrchestrator(filledStore(t), fake)
	require.NoError(t, o.Begin())
	require.NoError(t, o.SubmitShipping(validShipping()))
	require.NoError(t, o.SelectPayment(PaymentSelection{Method: MethodBankTransfer, BankCode: "NCB"}))

	res, err := o.Commit(context.Background())
	assert.ErrorIs(t, err, api.ErrNetworkTimeout)
	require.NotNil(t, res)
	assert.Equal(t, int64(77), res.OrderID)

	// the placed order survives the failed payment leg
	assert.Equal(t, int64(77), o.OrderID())
	assert.ErrorIs(t, o.Back(), ErrCommitted)
}
