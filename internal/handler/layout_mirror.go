package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/billsplit-floor/internal/model"
	"github.com/iliyamo/billsplit-floor/internal/repository"
)

// LayoutMirror is the remote copy of tenant layouts.
type LayoutMirror interface {
	PushLayout(ctx context.Context, tenant string, tables []model.Table) error
	Layout(ctx context.Context, tenant string) (*repository.LayoutRecord, error)
	Forget(ctx context.Context, tenant string) error
}

// MirrorHandler serves the remote layout endpoint other deployments (and
// SyncWithBackend) push full layouts to.
type MirrorHandler struct {
	Mirror LayoutMirror
}

// NewMirrorHandler constructs a MirrorHandler and panics on a nil mirror.
func NewMirrorHandler(mirror LayoutMirror) *MirrorHandler {
	if mirror == nil {
		panic("nil mirror passed to NewMirrorHandler")
	}
	return &MirrorHandler{Mirror: mirror}
}

// Push handles POST /v1/tables/layout.  The body is the full table array.
func (h *MirrorHandler) Push(c echo.Context) error {
	tenant, ok := tenantOf(c)
	if !ok {
		return nil
	}
	var tables []model.Table
	if err := c.Bind(&tables); err != nil {
		return badRequest(c, "body must be an array of tables")
	}
	if err := h.Mirror.PushLayout(c.Request().Context(), tenant, tables); err != nil {
		c.Logger().Errorf("mirror layout for tenant %s: %v", tenant, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not store layout"})
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "tableCount": len(tables)})
}

// Get handles GET /v1/tables/layout.
func (h *MirrorHandler) Get(c echo.Context) error {
	tenant, ok := tenantOf(c)
	if !ok {
		return nil
	}
	rec, err := h.Mirror.Layout(c.Request().Context(), tenant)
	if err != nil {
		if errors.Is(err, repository.ErrLayoutNotFound) {
			return notFound(c, "no layout mirrored yet")
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
	}
	return c.JSON(http.StatusOK, rec)
}

// Delete handles DELETE /v1/tables/layout.
func (h *MirrorHandler) Delete(c echo.Context) error {
	tenant, ok := tenantOf(c)
	if !ok {
		return nil
	}
	if err := h.Mirror.Forget(c.Request().Context(), tenant); err != nil {
		if errors.Is(err, repository.ErrLayoutNotFound) {
			return notFound(c, "no layout mirrored yet")
		}
		c.Logger().Errorf("delete layout mirror for tenant %s: %v", tenant, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "db error"})
	}
	return c.NoContent(http.StatusNoContent)
}
