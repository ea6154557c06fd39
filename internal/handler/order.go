package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"velora-storefront/internal/dto"
	"velora-storefront/internal/middleware"
	"velora-storefront/internal/model"
	"velora-storefront/internal/service"
)

type OrderHandler struct {
	orderService service.OrderService
}

func NewOrderHandler(orderService service.OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

func (h *OrderHandler) PlaceOrder(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.PlaceOrderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid req body")
	}

	order, err := h.orderService.PlaceOrder(ctx, middleware.UserID(c), &req)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, dto.PlaceOrderResponse{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		FinalAmount: order.FinalAmount,
	})
}

func (h *OrderHandler) CancelOrder(c echo.Context) error {
	ctx := c.Request().Context()

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	order, err := h.orderService.Cancel(ctx, middleware.UserID(c), orderID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderDTO(order))
}

func (h *OrderHandler) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()

	orderID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	order, err := h.orderService.Get(ctx, middleware.UserID(c), orderID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, toOrderDTO(order))
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()

	orders, err := h.orderService.List(ctx, middleware.UserID(c))
	if err != nil {
		return respondError(c, err)
	}

	out := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderDTO(&orders[i]))
	}
	return c.JSON(http.StatusOK, out)
}

func toOrderDTO(order *model.Order) dto.OrderResponse {
	lines := make([]dto.OrderLine, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, dto.OrderLine{
			ProductID:   line.ProductID,
			VariantID:   line.VariantID,
			ProductName: line.ProductName,
			Size:        line.Size,
			Color:       line.Color,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		})
	}
	return dto.OrderResponse{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		Status:        order.Status.String(),
		PaymentStatus: string(order.PaymentStatus),
		PaymentMethod: string(order.PaymentMethod),
		Subtotal:      order.Subtotal,
		ShippingFee:   order.ShippingFee,
		Discount:      order.Discount,
		FinalAmount:   order.FinalAmount,
		Lines:         lines,
	}
}
