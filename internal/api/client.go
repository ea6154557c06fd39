package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"velora-storefront/internal/dto"
)

// Client is the storefront's typed REST client. Every call takes a context
// and is cancellable; timeouts and 401s are translated into the shared
// error taxonomy so callers never inspect raw HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		token:   token,
	}
}

func (c *Client) GetCart(ctx context.Context) (*dto.CartResponse, error) {
	var out dto.CartResponse
	if err := c.do(ctx, http.MethodGet, "/cart", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AddLine(ctx context.Context, productID, variantID int64, qty int) (*dto.CartLine, error) {
	var out dto.CartLine
	err := c.do(ctx, http.MethodPost, "/cart", dto.AddLineRequest{
		ProductID: productID,
		VariantID: variantID,
		Quantity:  qty,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateLine(ctx context.Context, lineID int64, qty int) (*dto.CartLine, error) {
	var out dto.CartLine
	err := c.do(ctx, http.MethodPut, "/cart/"+strconv.FormatInt(lineID, 10),
		dto.UpdateLineRequest{Quantity: qty}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RemoveLine(ctx context.Context, lineID int64) error {
	return c.do(ctx, http.MethodDelete, "/cart/"+strconv.FormatInt(lineID, 10), nil, nil)
}

func (c *Client) ClearCart(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/cart", nil, nil)
}

func (c *Client) ProductAttributes(ctx context.Context, productID int64) ([]dto.ProductVariant, error) {
	var out []dto.ProductVariant
	path := fmt.Sprintf("/products/%d/attributes", productID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) PlaceOrder(ctx context.Context, req dto.PlaceOrderRequest) (*dto.PlaceOrderResponse, error) {
	var out dto.PlaceOrderResponse
	if err := c.do(ctx, http.MethodPost, "/orders", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelOrder(ctx context.Context, orderID int64) (*dto.OrderResponse, error) {
	var out dto.OrderResponse
	path := fmt.Sprintf("/orders/%d/cancel", orderID)
	if err := c.do(ctx, http.MethodPut, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePaymentURL(ctx context.Context, req dto.CreatePaymentRequest) (string, error) {
	var out dto.CreatePaymentResponse
	if err := c.do(ctx, http.MethodPost, "/payment/create-payment-url", req, &out); err != nil {
		return "", err
	}
	return out.PaymentURL, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody *bytes.Buffer
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewBuffer(encoded)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return ErrNetworkTimeout
		}
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrSessionExpired
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var payload dto.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&payload)
		if payload.Code == "insufficient_stock" {
			return &InsufficientStockError{LineIDs: payload.LineIDs}
		}
		return &Error{
			StatusCode: resp.StatusCode,
			Code:       payload.Code,
			Message:    payload.Error,
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue) && ue.Timeout()
}
