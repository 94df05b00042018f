package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/billsplit-floor/internal/layout"
	"github.com/iliyamo/billsplit-floor/internal/model"
)

// TableHandler exposes a tenant's floor plan.  Every request resolves the
// tenant's Manager from the registry; the manager owns all state.
type TableHandler struct {
	Registry *layout.Registry
}

// NewTableHandler constructs a TableHandler and panics on a nil registry.
func NewTableHandler(reg *layout.Registry) *TableHandler {
	if reg == nil {
		panic("nil registry passed to NewTableHandler")
	}
	return &TableHandler{Registry: reg}
}

// manager resolves the tenant's Manager, writing the error response itself
// when it cannot.
func (h *TableHandler) manager(c echo.Context) (*layout.Manager, bool) {
	tenant, ok := tenantOf(c)
	if !ok {
		return nil, false
	}
	m, err := h.Registry.Get(c.Request().Context(), tenant)
	if err != nil {
		c.Logger().Errorf("open floor for tenant %s: %v", tenant, err)
		_ = c.JSON(http.StatusInternalServerError, map[string]string{"error": "floor unavailable"})
		return nil, false
	}
	return m, true
}

// List handles GET /v1/tables.  ?zone=<name> narrows the result to one
// zone and ?zone=active to the session's active zone.
func (h *TableHandler) List(c echo.Context) error {
	m, ok := h.manager(c)
	if !ok {
		return nil
	}
	zone := strings.TrimSpace(c.QueryParam("zone"))
	switch {
	case zone == "":
		return c.JSON(http.StatusOK, m.Tables())
	case zone == "active":
		return c.JSON(http.StatusOK, m.FilteredTables())
	case model.ValidZone(zone):
		return c.JSON(http.StatusOK, m.TablesByZone()[zone])
	default:
		return badRequest(c, "unknown zone")
	}
}

// Zones handles GET /v1/tables/zones and groups the floor by zone.
func (h *TableHandler) Zones(c echo.Context) error {
	m, ok := h.manager(c)
	if !ok {
		return nil
	}
	return c.JSON(http.StatusOK, m.TablesByZone())
}

// Stats handles GET /v1/tables/stats.
func (h *TableHandler) Stats(c echo.Context) error {
	m, ok := h.manager(c)
	if !ok {
		return nil
	}
	return c.JSON(http.StatusOK, m.Stats())
}

// Session handles GET /v1/tables/session.
func (h *TableHandler) Session(c echo.Context) error {
	m, ok := h.manager(c)
	if !ok {
		return nil
	}
	return c.JSON(http.StatusOK, m.Session())
}

// Get handles GET /v1/tables/:id.
func (h *TableHandler) Get(c echo.Context) error {
	m, ok := h.manager(c)
	if !ok {
		return nil
	}
	t, found := m.Table(c.Param("id"))
	if !found {
		return notFound(c, "table not found")
	}
	return c.JSON(http.StatusOK, t)
}

// createTableRequest is the body of POST /v1/tables.  Omitted footprint
// fields default to a small 1x1 table at the grid origin.
type createTableRequest struct {
	Number    int               `json:"number"`
	Zone      string            `json:"zone"`
	Status    model.TableStatus `json:"status"`
	Seats     int               `json:"seats"`
	Occupants int               `json:"occupants"`
	GridCol   int               `json:"gridCol"`
	GridRow   int               `json:"gridRow"`
	ColSpan   int               `json:"colSpan"`
	RowSpan   int               `json:"rowSpan"`
	Rotation  int               `json:"rotation"`
}

// Create handles POST /v1/tables.
func (h *TableHandler) Create(c echo.Context) error {
	m, ok := h.manager(c)
	if !ok {
		return nil
	}
	var body createTableRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.Number <= 0 || body.Seats <= 0 || body.Occupants < 0 {
		return badRequest(c, "number and seats must be greater than zero and occupants must not be negative")
	}
	if !model.ValidZone(body.Zone) {
		return badRequest(c, "unknown zone")
	}
	if !validRotation(body.Rotation) {
		return badRequest(c, "rotation must be 0, 90, 180 or 270")
	}
	t := model.Table{
		Number:    body.Number,
		Zone:      body.Zone,
		Status:    body.Status,
		Seats:     body.Seats,
		Occupants: body.Occupants,
		GridCol:   max(body.GridCol, 1),
		GridRow:   max(body.GridRow, 1),
		ColSpan:   max(body.ColSpan, 1),
		RowSpan:   max(body.RowSpan, 1),
		Rotation:  body.Rotation,
	}
	if t.Status == "" {
		t.Status = model.StatusAvailable
	}
	t.Size = model.SizeSmall
	if t.ColSpan*t.RowSpan > 1 {
		t.Size = model.SizeLarge
	}
	return c.JSON(http.StatusCreated, m.AddTable(c.Request().Context(), t))
}

// Update handles PATCH /v1/tables/:id.  Only the fields present in the
// body are changed.
func (h *TableHandler) Update(c echo.Context) error {
	m, ok := h.manager(c)
	if !ok {
		return nil
	}
	var patch model.TablePatch
	if err := c.Bind(&patch); err != nil {
		return badRequest(c, "invalid request body")
	}
	if msg := validatePatch(patch); msg != "" {
		return badRequest(c, msg)
	}
	t, found := m.UpdateTable(c.Request().Context(), c.Param("id"), patch)
	if !found {
		return notFound(c, "table not found")
	}
	return c.JSON(http.StatusOK, t)
}

func validatePatch(p model.TablePatch) string {
	switch {
	case p.Number != nil && *p.Number <= 0:
		return "number must be greater than zero"
	case p.Seats != nil && *p.Seats <= 0:
		return "seats must be greater than zero"
	case p.Occupants != nil && *p.Occupants < 0:
		return "occupants must not be negative"
	case p.Zone != nil && !model.ValidZone(*p.Zone):
		return "unknown zone"
	case p.Rotation != nil && !validRotation(*p.Rotation):
		return "rotation must be 0, 90, 180 or 270"
	case p.ColSpan != nil && *p.ColSpan < 1, p.RowSpan != nil && *p.RowSpan < 1:
		return "spans must be at least 1"
	case p.GridCol != nil && *p.GridCol < 1, p.GridRow != nil && *p.GridRow < 1:
		return "grid positions start at 1"
	case p.Size != nil && *p.Size != model.SizeSmall && *p.Size != model.SizeLarge:
		return "size must be small or large"
	}
	return ""
}

func validRotation(r int) bool {
	return r == 0 || r == 90 || r == 180 || r == 270
}

// Delete handles DELETE /v1/tables/:id.
func (h *TableHandler) Delete(c echo.Context) error {
	m, ok := h.manager(c)
	if !ok {
		return nil
	}
	if !m.RemoveTable(c.Request().Context(), c.Param("id")) {
		return notFound(c, "table not found")
	}
	return c.NoContent(http.StatusNoContent)
}

// Move handles POST /v1/tables/:id/move.
func (h *TableHandler) Move(c echo.Context) error {
	m, ok := h.manager(c)
	if !ok {
		return nil
	}
	var body struct {
		GridCol *int `json:"gridCol"`
		GridRow *int `json:"gridRow"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.GridCol == nil || body.GridRow == nil || *body.GridCol < 1 || *body.GridRow < 1 {
		return badRequest(c, "gridCol and gridRow are required and start at 1")
	}
	id := c.Param("id")
	if !m.MoveTable(c.Request().Context(), id, *body.GridCol, *body.GridRow) {
		return notFound(c, "table not found")
	}
	return h.respondTable(c, m, id)
}

// Rotate handles POST /v1/tables/:id/rotate.
func (h *TableHandler) Rotate(c echo.Context) error {
	m, ok := h.manager(c)
	if !ok {
		return nil
	}
	id := c.Param("id")
	if !m.RotateTable(c.Request().Context(), id) {
		return notFound(c, "table not found")
	}
	return h.respondTable(c, m, id)
}

// ToggleSize handles POST /v1/tables/:id/toggle-size.
func (h *TableHandler) ToggleSize(c echo.Context) error {
	m, ok := h.manager(c)
	if !ok {
		return nil
	}
	id := c.Param("id")
	if !m.ToggleSize(c.Request().Context(), id) {
		return notFound(c, "table not found")
	}
	return h.respondTable(c, m, id)
}

func (h *TableHandler) respondTable(c echo.Context, m *layout.Manager, id string) error {
	t, found := m.Table(id)
	if !found {
		// removed by another context in between
		return notFound(c, "table not found")
	}
	return c.JSON(http.StatusOK, t)
}

// Split handles POST /v1/tables/:id/split with body {"count": n}.
func (h *TableHandler) Split(c echo.Context) error {
	m, ok := h.manager(c)
	if !ok {
		return nil
	}
	var body struct {
		Count int `json:"count"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.Count < 2 {
		return badRequest(c, "count must be at least 2")
	}
	id := c.Param("id")
	source, found := m.Table(id)
	if !found {
		return notFound(c, "table not found")
	}
	if body.Count > source.Seats {
		return badRequest(c, "count must not exceed the table's seats")
	}
	parts, done := m.SplitTable(c.Request().Context(), id, body.Count)
	if !done {
		// reshaped by another context since the lookup
		return c.JSON(http.StatusConflict, map[string]string{"error": "table changed, retry"})
	}
	return c.JSON(http.StatusCreated, parts)
}

// Merge handles POST /v1/tables/merge.  Without ids in the body the
// current selection is merged and then cleared.
func (h *TableHandler) Merge(c echo.Context) error {
	m, ok := h.manager(c)
	if !ok {
		return nil
	}
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	fromSelection := len(body.IDs) == 0
	if fromSelection {
		body.IDs = m.Session().SelectedIDs
	}
	merged, done := m.MergeTables(c.Request().Context(), body.IDs)
	if !done {
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": "at least two existing tables are required"})
	}
	if fromSelection {
		m.ClearSelection()
	}
	return c.JSON(http.StatusCreated, merged)
}

// ToggleSelect handles POST /v1/tables/:id/select.
func (h *TableHandler) ToggleSelect(c echo.Context) error {
	m, ok := h.manager(c)
	if !ok {
		return nil
	}
	m.ToggleSelect(c.Param("id"))
	return c.JSON(http.StatusOK, m.Session())
}

// ClearSelection handles POST /v1/tables/selection/clear.
func (h *TableHandler) ClearSelection(c echo.Context) error {
	m, ok := h.manager(c)
	if !ok {
		return nil
	}
	m.ClearSelection()
	return c.JSON(http.StatusOK, m.Session())
}

// SetZone handles PUT /v1/tables/zone with body {"zone": name}.
func (h *TableHandler) SetZone(c echo.Context) error {
	m, ok := h.manager(c)
	if !ok {
		return nil
	}
	var body struct {
		Zone string `json:"zone"`
	}
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if !model.ValidZone(body.Zone) {
		return badRequest(c, "unknown zone")
	}
	m.SetActiveZone(body.Zone)
	return c.JSON(http.StatusOK, m.Session())
}

// ToggleEditMode handles POST /v1/tables/edit-mode.  Leaving edit mode
// commits the layout.
func (h *TableHandler) ToggleEditMode(c echo.Context) error {
	m, ok := h.manager(c)
	if !ok {
		return nil
	}
	m.ToggleEditMode(c.Request().Context())
	return c.JSON(http.StatusOK, m.Session())
}

// Reset handles POST /v1/tables/reset.
func (h *TableHandler) Reset(c echo.Context) error {
	m, ok := h.manager(c)
	if !ok {
		return nil
	}
	return c.JSON(http.StatusOK, m.ResetToDefaults(c.Request().Context()))
}

// Sync handles POST /v1/tables/sync.  A failed push answers 502 but the
// floor is left as it was.
func (h *TableHandler) Sync(c echo.Context) error {
	m, ok := h.manager(c)
	if !ok {
		return nil
	}
	synced := m.SyncWithBackend(c.Request().Context())
	status := http.StatusOK
	if !synced {
		status = http.StatusBadGateway
	}
	return c.JSON(status, echo.Map{"synced": synced, "session": m.Session()})
}

// Revalidate handles POST /v1/tables/revalidate.  Clients call it when
// they regain focus; a layout missing from the store is restored.
func (h *TableHandler) Revalidate(c echo.Context) error {
	m, ok := h.manager(c)
	if !ok {
		return nil
	}
	m.Revalidate(c.Request().Context())
	return c.JSON(http.StatusOK, m.Tables())
}
