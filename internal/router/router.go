package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/billsplit-floor/internal/handler"
	"github.com/iliyamo/billsplit-floor/internal/middleware"
)

// Guards carries the middleware shared by the authenticated groups.
// RateLimit runs after JWTAuth so its key can use the caller's user and
// tenant.  RateLimit and Cache may be nil.
type Guards struct {
	JWTSecret string
	RateLimit echo.MiddlewareFunc
	Cache     *middleware.ResponseCache
}

func (gd Guards) group(e *echo.Echo, prefix string) *echo.Group {
	g := e.Group(prefix, middleware.JWTAuth(gd.JWTSecret))
	if gd.RateLimit != nil {
		g.Use(gd.RateLimit)
	}
	return g
}

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterTables registers the floor plan under /v1/tables.  Reading the
// floor, seating changes and the per-session selection are open to every
// role; reshaping the floor needs an owner or manager.  mirror may be nil
// when no database is configured.  The mirrored layout read is cached per
// tenant and every write to the mirror drops that tenant's entries.
func RegisterTables(e *echo.Echo, h *handler.TableHandler, mirror *handler.MirrorHandler, gd Guards) {
	g := gd.group(e, "/v1/tables")
	editor := middleware.RequireRole(middleware.RoleOwner, middleware.RoleManager)
	invalidate := gd.Cache.InvalidateOnSuccess()

	// ---- reads ----
	g.GET("", h.List)
	g.GET("/zones", h.Zones)
	g.GET("/stats", h.Stats)
	g.GET("/session", h.Session)
	g.GET("/:id", h.Get)

	// ---- session ----
	g.PUT("/zone", h.SetZone)
	g.POST("/:id/select", h.ToggleSelect)
	g.POST("/selection/clear", h.ClearSelection)
	g.POST("/revalidate", h.Revalidate)

	// ---- seating ----
	g.PATCH("/:id", h.Update)

	// ---- floor editing ----
	g.POST("", h.Create, editor)
	g.DELETE("/:id", h.Delete, editor)
	g.POST("/:id/move", h.Move, editor)
	g.POST("/:id/rotate", h.Rotate, editor)
	g.POST("/:id/toggle-size", h.ToggleSize, editor)
	g.POST("/:id/split", h.Split, editor)
	g.POST("/merge", h.Merge, editor)
	g.POST("/edit-mode", h.ToggleEditMode, editor)
	g.POST("/reset", h.Reset, editor)
	g.POST("/sync", h.Sync, editor, invalidate)

	// ---- remote layout mirror ----
	if mirror != nil {
		g.GET("/layout", mirror.Get, gd.Cache.Serve())
		g.POST("/layout", mirror.Push, editor, invalidate)
		g.DELETE("/layout", mirror.Delete, editor, invalidate)
	}
}

// RegisterOrders registers table orders under /v1/orders.
func RegisterOrders(e *echo.Echo, h *handler.OrderHandler, gd Guards) {
	g := gd.group(e, "/v1/orders")
	g.GET("/:table", h.Get)
	g.DELETE("/:table", h.Clear)
	g.POST("/:table/items", h.AddItem)
	g.PATCH("/:table/items/:item", h.UpdateItem)
	g.DELETE("/:table/items/:item", h.RemoveItem)
	g.POST("/:table/kitchen", h.SendToKitchen)
	g.DELETE("/:table/kitchen", h.RemoveFromKitchen)
}

// RegisterNotifications registers the notification feed under
// /v1/notifications.
func RegisterNotifications(e *echo.Echo, h *handler.NotificationHandler, gd Guards) {
	g := gd.group(e, "/v1/notifications")
	g.GET("", h.List)
	g.DELETE("", h.Clear)
	g.POST("/read-all", h.MarkAllAsRead)
	g.POST("/:id/read", h.MarkAsRead)
}
