package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/billsplit-floor/internal/notification"
)

// NotificationHandler exposes the tenant's notification feed.
type NotificationHandler struct {
	Notifications *notification.Service
}

// NewNotificationHandler constructs a NotificationHandler and panics on a
// nil service.
func NewNotificationHandler(svc *notification.Service) *NotificationHandler {
	if svc == nil {
		panic("nil service passed to NewNotificationHandler")
	}
	return &NotificationHandler{Notifications: svc}
}

// List handles GET /v1/notifications.
func (h *NotificationHandler) List(c echo.Context) error {
	tenant, ok := tenantOf(c)
	if !ok {
		return nil
	}
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, echo.Map{
		"items":  h.Notifications.List(ctx, tenant),
		"unread": h.Notifications.UnreadCount(ctx, tenant),
	})
}

// MarkAsRead handles POST /v1/notifications/:id/read.
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	tenant, ok := tenantOf(c)
	if !ok {
		return nil
	}
	if !h.Notifications.MarkAsRead(c.Request().Context(), tenant, c.Param("id")) {
		return notFound(c, "notification not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkAllAsRead handles POST /v1/notifications/read-all.
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	tenant, ok := tenantOf(c)
	if !ok {
		return nil
	}
	h.Notifications.MarkAllAsRead(c.Request().Context(), tenant)
	return c.NoContent(http.StatusNoContent)
}

// Clear handles DELETE /v1/notifications.
func (h *NotificationHandler) Clear(c echo.Context) error {
	tenant, ok := tenantOf(c)
	if !ok {
		return nil
	}
	h.Notifications.Clear(c.Request().Context(), tenant)
	return c.NoContent(http.StatusNoContent)
}
