package client

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"

	"velora-storefront/internal/config"
	"velora-storefront/internal/model"
)

var ErrBadSignature = errors.New("gateway signature mismatch")

// ReturnParams are the provider-signed fields carried on the browser
// redirect back from the hosted payment page. None of them may be trusted
// before VerifyReturn passes.
type ReturnParams struct {
	TxnRef        string
	Amount        decimal.Decimal
	ResultCode    string
	TransactionNo string
}

// Success reports whether the provider settled the payment.
func (p ReturnParams) Success() bool { return p.ResultCode == "00" }

// TxnStatus is the provider's answer to a server-side transaction query.
type TxnStatus struct {
	TxnRef     string `json:"txn_ref"`
	ResultCode string `json:"result_code"`
	Settled    bool   `json:"settled"`
}

type GatewayClient interface {
	BuildPayURL(session *model.PaymentSession, description string) string
	VerifyReturn(params url.Values) (*ReturnParams, error)
	QueryTransaction(ctx context.Context, txnRef string) (*TxnStatus, error)
}

type gatewayClientImpl struct {
	httpClient   *http.Client
	payURL       string
	queryURL     string
	merchantCode string
	hashSecret   string
	returnURL    string
	breaker      *gobreaker.CircuitBreaker[*TxnStatus]
}

func NewGatewayClient(cfg *config.Gateway) GatewayClient {
	return &gatewayClientImpl{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		payURL:       cfg.PayURL,
		queryURL:     cfg.QueryURL,
		merchantCode: cfg.MerchantCode,
		hashSecret:   cfg.HashSecret,
		returnURL:    cfg.ReturnURL,
		breaker: gobreaker.NewCircuitBreaker[*TxnStatus](gobreaker.Settings{
			Name:    "gateway-query",
			Timeout: 30 * time.Second,
		}),
	}
}

// BuildPayURL assembles the signed redirect URL for the hosted payment page.
// The signature covers the sorted, URL-encoded query string.
func (c *gatewayClientImpl) BuildPayURL(session *model.PaymentSession, description string) string {
	params := url.Values{}
	params.Set("vp_merchant", c.merchantCode)
	params.Set("vp_txn_ref", session.TxnRef)
	params.Set("vp_amount", strconv.FormatInt(minorUnits(session.Amount), 10))
	params.Set("vp_order_info", description)
	params.Set("vp_create_date", session.CreatedAt.Format("20060102150405"))
	params.Set("vp_return_url", c.returnURL)
	if session.BankCode != "" {
		params.Set("vp_bank_code", session.BankCode)
	}

	signed := params.Encode()
	params.Set("vp_secure_hash", c.sign(signed))
	return c.payURL + "?" + params.Encode()
}

func (c *gatewayClientImpl) VerifyReturn(params url.Values) (*ReturnParams, error) {
	got := params.Get("vp_secure_hash")
	if got == "" {
		return nil, ErrBadSignature
	}

	unsigned := url.Values{}
	for key, values := range params {
		if key == "vp_secure_hash" {
			continue
		}
		for _, v := range values {
			unsigned.Add(key, v)
		}
	}
	want := c.sign(unsigned.Encode())
	if !hmac.Equal([]byte(got), []byte(want)) {
		return nil, ErrBadSignature
	}

	amount, err := strconv.ParseInt(params.Get("vp_amount"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse return amount: %w", err)
	}

	return &ReturnParams{
		TxnRef:        params.Get("vp_txn_ref"),
		Amount:        decimal.NewFromInt(amount).Div(decimal.NewFromInt(100)),
		ResultCode:    params.Get("vp_result_code"),
		TransactionNo: params.Get("vp_transaction_no"),
	}, nil
}

// QueryTransaction asks the provider for the authoritative state of a
// transaction. Calls run through a circuit breaker so a degraded provider
// does not pile up reconciler requests.
func (c *gatewayClientImpl) QueryTransaction(ctx context.Context, txnRef string) (*TxnStatus, error) {
	return c.breaker.Execute(func() (*TxnStatus, error) {
		payload := map[string]string{
			"vp_merchant": c.merchantCode,
			"vp_txn_ref":  txnRef,
		}
		payload["vp_secure_hash"] = c.sign("vp_merchant=" + c.merchantCode + "&vp_txn_ref=" + txnRef)

		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal query payload: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.queryURL, bytes.NewBuffer(body))
		if err != nil {
			return nil, fmt.Errorf("http new request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("gateway query request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("gateway query status %d", resp.StatusCode)
		}

		var status TxnStatus
		if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
			return nil, fmt.Errorf("decode gateway response: %w", err)
		}
		return &status, nil
	})
}

func (c *gatewayClientImpl) sign(data string) string {
	mac := hmac.New(sha512.New, []byte(c.hashSecret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}
