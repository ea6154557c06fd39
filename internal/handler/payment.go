package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"velora-storefront/internal/dto"
	"velora-storefront/internal/middleware"
	"velora-storefront/internal/service"
)

type PaymentHandler struct {
	paymentService service.PaymentService
}

func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

func (h *PaymentHandler) CreatePaymentURL(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CreatePaymentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	paymentURL, err := h.paymentService.CreateSession(ctx, middleware.UserID(c), &req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, dto.CreatePaymentResponse{PaymentURL: paymentURL})
}

// PaymentReturn is the browser-redirect callback from the provider. It is
// unauthenticated (the signature check stands in for auth) and idempotent:
// redelivering the same callback yields the same response.
func (h *PaymentHandler) PaymentReturn(c echo.Context) error {
	ctx := c.Request().Context()

	result, err := h.paymentService.HandleReturn(ctx, c.QueryParams())
	if err != nil && !errors.Is(err, service.ErrPaymentIntegrity) {
		return respondError(c, err)
	}
	if err != nil {
		// amount mismatch: the session was recorded as failed
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error: err.Error(),
			Code:  "payment_integrity",
		})
	}

	return c.JSON(http.StatusOK, result)
}
