package middleware

// identity.go holds accessors for the identity JWTAuth stores in the Echo
// context.

import "github.com/labstack/echo/v4"

// UserID returns the authenticated subject, or "guest" when the request
// carries none.
func UserID(c echo.Context) string {
	if v, ok := c.Get(CtxUserID).(string); ok && v != "" {
		return v
	}
	return "guest"
}

// TenantID returns the restaurant the request is scoped to.  It is empty
// on routes not guarded by JWTAuth.
func TenantID(c echo.Context) string {
	v, _ := c.Get(CtxTenantID).(string)
	return v
}
