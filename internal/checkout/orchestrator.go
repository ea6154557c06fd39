package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"velora-storefront/internal/cart"
	"velora-storefront/internal/dto"
)

type Step int

const (
	StepShipping Step = iota
	StepPayment
	StepConfirm
)

func (s Step) String() string {
	switch s {
	case StepShipping:
		return "shipping"
	case StepPayment:
		return "payment"
	case StepConfirm:
		return "confirm"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

const (
	MethodCOD          = "cod"
	MethodBankTransfer = "bank_transfer"
	MethodCard         = "card"
)

// PaymentSelection is the user's method choice plus whatever fields that
// method collects. Fields of other methods are ignored.
type PaymentSelection struct {
	Method     string
	BankCode   string
	CardNumber string
	CardExpiry string
	CardCVV    string
}

func (p PaymentSelection) requiresRedirect() bool {
	return p.Method == MethodBankTransfer || p.Method == MethodCard
}

type CommitResult struct {
	OrderID     int64
	OrderNumber string
	FinalAmount decimal.Decimal
	// RedirectURL is the gateway payment page for redirect methods,
	// empty for cod.
	RedirectURL string
}

var (
	ErrEmptyCart      = errors.New("checkout: cart is empty")
	ErrWrongStep      = errors.New("checkout: operation not valid at current step")
	ErrCommitted      = errors.New("checkout: order already placed")
	ErrCommitInFlight = errors.New("checkout: commit already in progress")
	ErrNotStarted     = errors.New("checkout: not started")
)

// API is the slice of the storefront surface checkout commits through.
type API interface {
	PlaceOrder(ctx context.Context, req dto.PlaceOrderRequest) (*dto.PlaceOrderResponse, error)
	CreatePaymentURL(ctx context.Context, req dto.CreatePaymentRequest) (string, error)
}

// Orchestrator walks the shipping, payment and confirmation steps in
// order. Steps advance only on valid input and step back one at a time.
// Once an order exists the machine is terminal: payment failures belong
// to the order, not to checkout.
type Orchestrator struct {
	store *cart.Store
	api   API

	mu       sync.Mutex
	started  bool
	step     Step
	shipping dto.ShippingInfo
	payment  PaymentSelection
	frozen   []dto.CartLine
	snapshot dto.CartSnapshot
	// committing holds off every other transition while a placement call
	// is on the wire; only one order may ever leave this machine
	committing bool
	orderID    int64
}

func NewOrchestrator(store *cart.Store, apiClient API) *Orchestrator {
	return &Orchestrator{store: store, api: apiClient}
}

// Begin enters checkout at the shipping step. The cart is frozen on
// commit, not here; edits during checkout still count.
func (o *Orchestrator) Begin() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.orderID != 0 {
		return ErrCommitted
	}
	if len(o.store.Lines()) == 0 {
		return ErrEmptyCart
	}
	o.started = true
	o.step = StepShipping
	return nil
}

func (o *Orchestrator) Step() Step {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.step
}

// SubmitShipping validates the record and advances to payment. On
// validation failure the machine stays at shipping and the error maps
// field names to messages.
func (o *Orchestrator) SubmitShipping(info dto.ShippingInfo) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.ensureStep(StepShipping); err != nil {
		return err
	}
	if errs := validateShipping(info); errs != nil {
		return errs
	}
	o.shipping = info
	o.step = StepPayment
	return nil
}

// SelectPayment validates only the chosen method's fields and advances to
// confirmation.
func (o *Orchestrator) SelectPayment(sel PaymentSelection) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.ensureStep(StepPayment); err != nil {
		return err
	}
	if errs := validatePayment(sel); errs != nil {
		return errs
	}
	o.payment = sel
	o.step = StepConfirm
	return nil
}

// Back steps to the previous step. Rejected at shipping and after commit.
func (o *Orchestrator) Back() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.started {
		return ErrNotStarted
	}
	if o.orderID != 0 {
		return ErrCommitted
	}
	if o.committing {
		return ErrCommitInFlight
	}
	if o.step == StepShipping {
		return ErrWrongStep
	}
	o.step--
	return nil
}

// Commit freezes the cart and places the order. The order id, once
// assigned, is terminal even if the payment leg fails afterwards. For
// redirect methods the result carries the gateway URL and local checkout
// state is done; reconciliation happens through the payment return flow.
func (o *Orchestrator) Commit(ctx context.Context) (*CommitResult, error) {
	o.mu.Lock()
	if err := o.ensureStep(StepConfirm); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	o.committing = true
	o.frozen = o.store.Lines()
	o.snapshot = o.store.Snapshot()
	req := dto.PlaceOrderRequest{
		Lines:         o.frozen,
		ShippingInfo:  o.shipping,
		PaymentMethod: o.payment.Method,
	}
	o.mu.Unlock()

	// placement is never timeout-forgiving; the caller must know whether
	// an order may exist server-side
	resp, err := o.api.PlaceOrder(ctx, req)
	if err != nil {
		o.mu.Lock()
		o.committing = false
		o.mu.Unlock()
		return nil, err
	}

	o.mu.Lock()
	o.orderID = resp.OrderID
	o.committing = false
	o.mu.Unlock()

	result := &CommitResult{
		OrderID:     resp.OrderID,
		OrderNumber: resp.OrderNumber,
		FinalAmount: resp.FinalAmount,
	}
	if !o.payment.requiresRedirect() {
		return result, nil
	}

	url, err := o.api.CreatePaymentURL(ctx, dto.CreatePaymentRequest{
		OrderID:     resp.OrderID,
		Amount:      resp.FinalAmount,
		Description: "Payment for order " + resp.OrderNumber,
		BankCode:    o.payment.BankCode,
	})
	if err != nil {
		// the order stands; payment can be retried against it
		return result, err
	}
	result.RedirectURL = url
	return result, nil
}

// OrderID reports the committed order, zero before commit.
func (o *Orchestrator) OrderID() int64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.orderID
}

func (o *Orchestrator) ensureStep(want Step) error {
	if !o.started {
		return ErrNotStarted
	}
	if o.orderID != 0 {
		return ErrCommitted
	}
	if o.committing {
		return ErrCommitInFlight
	}
	if o.step != want {
		return ErrWrongStep
	}
	return nil
}
