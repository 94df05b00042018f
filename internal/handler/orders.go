package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/billsplit-floor/internal/model"
	"github.com/iliyamo/billsplit-floor/internal/orders"
)

// OrderHandler exposes table orders and their kitchen state.
type OrderHandler struct {
	Orders *orders.Service
}

// NewOrderHandler constructs an OrderHandler and panics on a nil service.
func NewOrderHandler(svc *orders.Service) *OrderHandler {
	if svc == nil {
		panic("nil service passed to NewOrderHandler")
	}
	return &OrderHandler{Orders: svc}
}

// Get handles GET /v1/orders/:table.
func (h *OrderHandler) Get(c echo.Context) error {
	tenant, ok := tenantOf(c)
	if !ok {
		return nil
	}
	return c.JSON(http.StatusOK, h.Orders.Summary(c.Request().Context(), tenant, c.Param("table")))
}

// AddItem handles POST /v1/orders/:table/items.  Posting an item already
// in the cart adds one more unit.
func (h *OrderHandler) AddItem(c echo.Context) error {
	tenant, ok := tenantOf(c)
	if !ok {
		return nil
	}
	var item model.CartItem
	if err := c.Bind(&item); err != nil {
		return badRequest(c, "invalid request body")
	}
	if item.MenuItemID <= 0 || strings.TrimSpace(item.Name) == "" || item.Price < 0 {
		return badRequest(c, "menuItemId and name are required and price must not be negative")
	}
	ctx := c.Request().Context()
	table := c.Param("table")
	h.Orders.AddItem(ctx, tenant, table, item)
	return c.JSON(http.StatusOK, h.Orders.Summary(ctx, tenant, table))
}

// UpdateItem handles PATCH /v1/orders/:table/items/:item with body
// {"delta": n}.  A line reaching zero is removed.
func (h *OrderHandler) UpdateItem(c echo.Context) error {
	tenant, ok := tenantOf(c)
	if !ok {
		return nil
	}
	itemID, err := strconv.Atoi(c.Param("item"))
	if err != nil {
		return badRequest(c, "invalid item id")
	}
	var body struct {
		Delta int `json:"delta"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.Delta == 0 {
		return badRequest(c, "delta must not be zero")
	}
	ctx := c.Request().Context()
	table := c.Param("table")
	h.Orders.UpdateQuantity(ctx, tenant, table, itemID, body.Delta)
	return c.JSON(http.StatusOK, h.Orders.Summary(ctx, tenant, table))
}

// RemoveItem handles DELETE /v1/orders/:table/items/:item.
func (h *OrderHandler) RemoveItem(c echo.Context) error {
	tenant, ok := tenantOf(c)
	if !ok {
		return nil
	}
	itemID, err := strconv.Atoi(c.Param("item"))
	if err != nil {
		return badRequest(c, "invalid item id")
	}
	ctx := c.Request().Context()
	table := c.Param("table")
	h.Orders.RemoveItem(ctx, tenant, table, itemID)
	return c.JSON(http.StatusOK, h.Orders.Summary(ctx, tenant, table))
}

// SendToKitchen handles POST /v1/orders/:table/kitchen.
func (h *OrderHandler) SendToKitchen(c echo.Context) error {
	tenant, ok := tenantOf(c)
	if !ok {
		return nil
	}
	ctx := c.Request().Context()
	table := c.Param("table")
	if len(h.Orders.Cart(ctx, tenant, table)) == 0 {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "cart is empty"})
	}
	h.Orders.SendToKitchen(ctx, tenant, table)
	return c.JSON(http.StatusOK, h.Orders.Summary(ctx, tenant, table))
}

// RemoveFromKitchen handles DELETE /v1/orders/:table/kitchen.
func (h *OrderHandler) RemoveFromKitchen(c echo.Context) error {
	tenant, ok := tenantOf(c)
	if !ok {
		return nil
	}
	ctx := c.Request().Context()
	table := c.Param("table")
	h.Orders.RemoveFromKitchen(ctx, tenant, table)
	return c.JSON(http.StatusOK, h.Orders.Summary(ctx, tenant, table))
}

// Clear handles DELETE /v1/orders/:table.
func (h *OrderHandler) Clear(c echo.Context) error {
	tenant, ok := tenantOf(c)
	if !ok {
		return nil
	}
	h.Orders.ClearTable(c.Request().Context(), tenant, c.Param("table"))
	return c.NoContent(http.StatusNoContent)
}
