package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/billsplit-floor/internal/middleware"
)

// tenantOf returns the tenant of an authenticated request, writing a 401
// when the context carries none.
func tenantOf(c echo.Context) (string, bool) {
	tenant := middleware.TenantID(c)
	if tenant == "" {
		_ = c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return "", false
	}
	return tenant, true
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": msg})
}

func notFound(c echo.Context, msg string) error {
	return c.JSON(http.StatusNotFound, map[string]string{"error": msg})
}
