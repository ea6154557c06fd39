package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"velora-storefront/internal/dto"
	"velora-storefront/internal/middleware"
	"velora-storefront/internal/service"
)

type CartHandler struct {
	cartService service.CartService
}

func NewCartHandler(cartService service.CartService) *CartHandler {
	return &CartHandler{cartService: cartService}
}

func (h *CartHandler) GetCart(c echo.Context) error {
	ctx := c.Request().Context()

	cart, err := h.cartService.Get(ctx, middleware.UserID(c), c.QueryParam("coupon"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, cart)
}

func (h *CartHandler) AddLine(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.AddLineRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	line, err := h.cartService.AddLine(ctx, middleware.UserID(c), &req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, line)
}

func (h *CartHandler) UpdateLine(c echo.Context) error {
	ctx := c.Request().Context()

	lineID, err := strconv.ParseInt(c.Param("lineId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid line id")
	}

	var req dto.UpdateLineRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	line, err := h.cartService.UpdateQuantity(ctx, middleware.UserID(c), lineID, req.Quantity)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, line)
}

func (h *CartHandler) RemoveLine(c echo.Context) error {
	ctx := c.Request().Context()

	lineID, err := strconv.ParseInt(c.Param("lineId"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid line id")
	}

	if err := h.cartService.RemoveLine(ctx, middleware.UserID(c), lineID); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *CartHandler) ClearCart(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.cartService.Clear(ctx, middleware.UserID(c)); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
