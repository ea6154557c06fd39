package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"velora-storefront/internal/client"
	"velora-storefront/internal/dto"
	"velora-storefront/internal/repository"
	"velora-storefront/internal/service"
)

// respondError translates service errors into the uniform error payload.
func respondError(c echo.Context, err error) error {
	var stockErr *service.InsufficientStockError
	if errors.As(err, &stockErr) {
		return c.JSON(http.StatusConflict, dto.ErrorResponse{
			Error:   stockErr.Error(),
			Code:    "insufficient_stock",
			LineIDs: stockErr.LineIDs,
		})
	}

	switch {
	case errors.Is(err, service.ErrInvalidQuantity):
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: "invalid_quantity"})
	case errors.Is(err, service.ErrEmptyCart):
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: "empty_cart"})
	case errors.Is(err, service.ErrVariantRequired), errors.Is(err, service.ErrVariantMismatch):
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: "invalid_variant"})
	case errors.Is(err, service.ErrOrderNotCancellable):
		return c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error(), Code: "not_cancellable"})
	case errors.Is(err, service.ErrOrderAlreadyPaid):
		return c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error(), Code: "already_paid"})
	case errors.Is(err, service.ErrPaymentIntegrity):
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: "payment_integrity"})
	case errors.Is(err, client.ErrBadSignature):
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: "bad_signature"})
	case errors.Is(err, repository.ErrNotEnoughStock):
		return c.JSON(http.StatusConflict, dto.ErrorResponse{Error: err.Error(), Code: "out_of_stock"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: err.Error(), Code: "not_found"})
	default:
		return c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal error"})
	}
}
