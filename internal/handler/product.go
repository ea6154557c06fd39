package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"velora-storefront/internal/dto"
	"velora-storefront/internal/repository"
)

type ProductHandler struct {
	variantRepo repository.VariantRepository
}

func NewProductHandler(variantRepo repository.VariantRepository) *ProductHandler {
	return &ProductHandler{variantRepo: variantRepo}
}

// GetAttributes returns the product's variants with live stock counts. The
// client caches these for its pre-flight out-of-stock check.
func (h *ProductHandler) GetAttributes(c echo.Context) error {
	ctx := c.Request().Context()

	productID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	variants, err := h.variantRepo.ListByProduct(ctx, productID)
	if err != nil {
		return respondError(c, err)
	}

	out := make([]dto.ProductVariant, 0, len(variants))
	for _, v := range variants {
		out = append(out, dto.ProductVariant{
			ID:            v.ID,
			ProductID:     v.ProductID,
			Size:          v.Size,
			Color:         v.Color,
			StockQuantity: v.StockQuantity,
		})
	}
	return c.JSON(http.StatusOK, out)
}
