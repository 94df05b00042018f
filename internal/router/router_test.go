package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"github.com/iliyamo/billsplit-floor/internal/config"
	"github.com/iliyamo/billsplit-floor/internal/handler"
	"github.com/iliyamo/billsplit-floor/internal/layout"
	"github.com/iliyamo/billsplit-floor/internal/middleware"
	"github.com/iliyamo/billsplit-floor/internal/model"
	"github.com/iliyamo/billsplit-floor/internal/notification"
	"github.com/iliyamo/billsplit-floor/internal/orders"
	"github.com/iliyamo/billsplit-floor/internal/repository"
	"github.com/iliyamo/billsplit-floor/internal/service"
	"github.com/iliyamo/billsplit-floor/internal/storage"
	"github.com/iliyamo/billsplit-floor/internal/utils"
)

const secret = "test-secret"

type memLayouts struct {
	mu   sync.Mutex
	rows map[string][]model.Table
}

func (m *memLayouts) Save(_ context.Context, tenant string, tables []model.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[tenant] = tables
	return nil
}

func (m *memLayouts) Get(_ context.Context, tenant string) (*repository.LayoutRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tables, ok := m.rows[tenant]
	if !ok {
		return nil, repository.ErrLayoutNotFound
	}
	return &repository.LayoutRecord{TenantID: tenant, Tables: tables, TableCount: len(tables)}, nil
}

func (m *memLayouts) Delete(_ context.Context, tenant string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[tenant]; !ok {
		return repository.ErrLayoutNotFound
	}
	delete(m.rows, tenant)
	return nil
}

type app struct {
	e             *echo.Echo
	notifications *notification.Service
}

func newApp(t *testing.T) *app {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	store := storage.NewMemoryStore()
	mirror := service.NewLayoutMirror(&memLayouts{rows: map[string][]model.Table{}}, nil, log)
	reg := layout.NewRegistry(store, mirror, "billsplit:", log)
	t.Cleanup(func() { _ = reg.Close() })
	notes := notification.NewService(store, "billsplit:", log)

	rdb := redis.NewClient(&redis.Options{Addr: miniredis.RunT(t).Addr()})
	gd := Guards{
		JWTSecret: secret,
		RateLimit: middleware.NewTokenBucket(config.RateLimitConfig{
			Enabled:        true,
			Capacity:       1000,
			RefillTokens:   1000,
			RefillInterval: time.Second,
			TTL:            time.Minute,
			KeyParts:       []string{"tenant", "user"},
			Prefix:         "rl",
		}, rdb, log),
		Cache: middleware.NewResponseCache(config.CacheConfig{Enabled: true, TTL: time.Minute, Prefix: "cache", MaxBodyBytes: 1 << 20}, rdb, log),
	}

	e := echo.New()
	RegisterRoutes(e)
	RegisterTables(e, handler.NewTableHandler(reg), handler.NewMirrorHandler(mirror), gd)
	RegisterOrders(e, handler.NewOrderHandler(orders.NewService(store, "billsplit:", nil, log)), gd)
	RegisterNotifications(e, handler.NewNotificationHandler(notes), gd)
	return &app{e: e, notifications: notes}
}

func token(t *testing.T, tenant, role string) string {
	t.Helper()
	tok, err := utils.NewAccessToken(secret, "u-1", role, tenant, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok.Token
}

func (a *app) do(t *testing.T, tok, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if tok != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	a := newApp(t)
	rec := a.do(t, "", http.MethodGet, "/healthz", "")
	expectStatus(t, rec, http.StatusOK)
	if body := decode[map[string]string](t, rec); body["status"] != "ok" || body["timestamp"] == "" {
		t.Fatalf("body = %v", body)
	}
}

func TestAuthentication(t *testing.T) {
	a := newApp(t)
	expectStatus(t, a.do(t, "", http.MethodGet, "/v1/tables", ""), http.StatusUnauthorized)
	expectStatus(t, a.do(t, "garbage", http.MethodGet, "/v1/tables", ""), http.StatusUnauthorized)
	expectStatus(t, a.do(t, token(t, "", "owner"), http.MethodGet, "/v1/tables", ""), http.StatusUnauthorized)

	rec := a.do(t, token(t, "acme", "waiter"), http.MethodGet, "/v1/tables", "")
	expectStatus(t, rec, http.StatusOK)
	if got := decode[[]model.Table](t, rec); len(got) != 11 {
		t.Fatalf("got %d tables, want the 11 defaults", len(got))
	}
}

func TestWaiterCannotReshapeFloor(t *testing.T) {
	a := newApp(t)
	waiter := token(t, "acme", "waiter")
	expectStatus(t, a.do(t, waiter, http.MethodPost, "/v1/tables/t1/rotate", ""), http.StatusForbidden)
	expectStatus(t, a.do(t, waiter, http.MethodPost, "/v1/tables/reset", ""), http.StatusForbidden)

	// seating changes stay open to waiters
	rec := a.do(t, waiter, http.MethodPatch, "/v1/tables/t1", `{"status":"occupied","occupants":2}`)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[model.Table](t, rec); got.Status != model.StatusOccupied || got.Occupants != 2 {
		t.Fatalf("patched = %+v", got)
	}
}

func TestCreateValidation(t *testing.T) {
	a := newApp(t)
	owner := token(t, "acme", "owner")

	cases := []string{
		`{"number":20,"zone":"saloon","seats":0}`,
		`{"number":20,"zone":"saloon","seats":4,"occupants":-1}`,
		`{"number":20,"zone":"rooftop","seats":4}`,
		`{"number":20,"zone":"saloon","seats":4,"status":"busy"}`,
		`{"number":20,"zone":"saloon","seats":4,"rotation":45}`,
	}
	for _, body := range cases {
		expectStatus(t, a.do(t, owner, http.MethodPost, "/v1/tables", body), http.StatusBadRequest)
	}

	rec := a.do(t, owner, http.MethodPost, "/v1/tables", `{"number":20,"zone":"outdoor","seats":4,"colSpan":2}`)
	expectStatus(t, rec, http.StatusCreated)
	created := decode[model.Table](t, rec)
	if !strings.HasPrefix(created.ID, "t-") || created.Status != model.StatusAvailable || created.Size != model.SizeLarge {
		t.Fatalf("created = %+v", created)
	}
	if created.GridCol != 1 || created.GridRow != 1 || created.RowSpan != 1 {
		t.Fatalf("footprint defaults not applied: %+v", created)
	}

	rec = a.do(t, owner, http.MethodGet, "/v1/tables?zone=outdoor", "")
	expectStatus(t, rec, http.StatusOK)
	if got := decode[[]model.Table](t, rec); len(got) != 1 || got[0].ID != created.ID {
		t.Fatalf("outdoor = %+v", got)
	}
	expectStatus(t, a.do(t, owner, http.MethodGet, "/v1/tables?zone=rooftop", ""), http.StatusBadRequest)
}

func TestSplitAndMerge(t *testing.T) {
	a := newApp(t)
	owner := token(t, "acme", "owner")

	expectStatus(t, a.do(t, owner, http.MethodPost, "/v1/tables/t1/split", `{"count":1}`), http.StatusBadRequest)
	expectStatus(t, a.do(t, owner, http.MethodPost, "/v1/tables/nope/split", `{"count":2}`), http.StatusNotFound)
	expectStatus(t, a.do(t, owner, http.MethodPost, "/v1/tables/t5/split", `{"count":3}`), http.StatusBadRequest)
	expectStatus(t, a.do(t, owner, http.MethodPost, "/v1/tables/t3/split", `{"count":1099511627776}`), http.StatusBadRequest)

	rec := a.do(t, owner, http.MethodPost, "/v1/tables/t1/split", `{"count":2}`)
	expectStatus(t, rec, http.StatusCreated)
	parts := decode[[]model.Table](t, rec)
	if len(parts) != 2 {
		t.Fatalf("split into %d", len(parts))
	}

	// merge through the selection
	a.do(t, owner, http.MethodPost, "/v1/tables/"+parts[0].ID+"/select", "")
	rec = a.do(t, owner, http.MethodPost, "/v1/tables/"+parts[1].ID+"/select", "")
	if s := decode[layout.Session](t, rec); len(s.SelectedIDs) != 2 {
		t.Fatalf("selection = %v", s.SelectedIDs)
	}
	rec = a.do(t, owner, http.MethodPost, "/v1/tables/merge", `{}`)
	expectStatus(t, rec, http.StatusCreated)
	merged := decode[model.Table](t, rec)
	if merged.Seats != 8 || len(merged.MergedFrom) != 2 {
		t.Fatalf("merged = %+v", merged)
	}
	if s := decode[layout.Session](t, a.do(t, owner, http.MethodGet, "/v1/tables/session", "")); len(s.SelectedIDs) != 0 {
		t.Fatalf("selection not cleared: %v", s.SelectedIDs)
	}

	expectStatus(t, a.do(t, owner, http.MethodPost, "/v1/tables/merge", `{"ids":["t2"]}`), http.StatusUnprocessableEntity)

	stats := decode[model.TableStats](t, a.do(t, owner, http.MethodGet, "/v1/tables/stats", ""))
	if stats.Total != 11 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestEditModeAndZone(t *testing.T) {
	a := newApp(t)
	manager := token(t, "acme", "manager")

	rec := a.do(t, manager, http.MethodPost, "/v1/tables/edit-mode", "")
	expectStatus(t, rec, http.StatusOK)
	if !decode[layout.Session](t, rec).EditMode {
		t.Fatal("edit mode not entered")
	}
	rec = a.do(t, manager, http.MethodPost, "/v1/tables/t1/move", `{"gridCol":5,"gridRow":4}`)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[model.Table](t, rec); got.GridCol != 5 || got.GridRow != 4 {
		t.Fatalf("moved = %+v", got)
	}
	expectStatus(t, a.do(t, manager, http.MethodPost, "/v1/tables/t1/move", `{"gridCol":0}`), http.StatusBadRequest)

	rec = a.do(t, manager, http.MethodPost, "/v1/tables/edit-mode", "")
	if s := decode[layout.Session](t, rec); s.EditMode || s.LastSaved == nil {
		t.Fatalf("leaving edit mode = %+v", s)
	}

	expectStatus(t, a.do(t, manager, http.MethodPut, "/v1/tables/zone", `{"zone":"moon"}`), http.StatusBadRequest)
	expectStatus(t, a.do(t, manager, http.MethodPut, "/v1/tables/zone", `{"zone":"terrace"}`), http.StatusOK)
	rec = a.do(t, manager, http.MethodGet, "/v1/tables?zone=active", "")
	for _, tbl := range decode[[]model.Table](t, rec) {
		if tbl.Zone != "terrace" {
			t.Fatalf("active zone view has %+v", tbl)
		}
	}
}

func TestSyncFillsMirror(t *testing.T) {
	a := newApp(t)
	owner := token(t, "acme", "owner")

	expectStatus(t, a.do(t, owner, http.MethodGet, "/v1/tables/layout", ""), http.StatusNotFound)

	rec := a.do(t, owner, http.MethodPost, "/v1/tables/sync", "")
	expectStatus(t, rec, http.StatusOK)

	rec = a.do(t, owner, http.MethodGet, "/v1/tables/layout", "")
	expectStatus(t, rec, http.StatusOK)
	got := decode[repository.LayoutRecord](t, rec)
	if got.TenantID != "acme" || got.TableCount != 11 || rec.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("mirror = %+v (cache %q)", got, rec.Header().Get("X-Cache"))
	}
	if rec := a.do(t, owner, http.MethodGet, "/v1/tables/layout", ""); rec.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("second read cache = %q", rec.Header().Get("X-Cache"))
	}

	// a push replaces the cached copy
	rec = a.do(t, owner, http.MethodPost, "/v1/tables/layout", `[{"id":"x","number":1,"zone":"saloon","status":"on-dine","seats":2}]`)
	expectStatus(t, rec, http.StatusOK)
	rec = a.do(t, owner, http.MethodGet, "/v1/tables/layout", "")
	got = decode[repository.LayoutRecord](t, rec)
	if got.TableCount != 1 || got.Tables[0].Status != model.StatusOccupied || rec.Header().Get("X-Cache") != "MISS" {
		t.Fatalf("mirror after push = %+v (cache %q)", got, rec.Header().Get("X-Cache"))
	}
}

func TestDeleteMirror(t *testing.T) {
	a := newApp(t)
	owner := token(t, "acme", "owner")
	waiter := token(t, "acme", "waiter")

	expectStatus(t, a.do(t, owner, http.MethodDelete, "/v1/tables/layout", ""), http.StatusNotFound)
	expectStatus(t, a.do(t, owner, http.MethodPost, "/v1/tables/layout", `[]`), http.StatusOK)
	expectStatus(t, a.do(t, owner, http.MethodGet, "/v1/tables/layout", ""), http.StatusOK)
	if rec := a.do(t, owner, http.MethodGet, "/v1/tables/layout", ""); rec.Header().Get("X-Cache") != "HIT" {
		t.Fatalf("cache = %q", rec.Header().Get("X-Cache"))
	}

	expectStatus(t, a.do(t, waiter, http.MethodDelete, "/v1/tables/layout", ""), http.StatusForbidden)
	expectStatus(t, a.do(t, owner, http.MethodDelete, "/v1/tables/layout", ""), http.StatusNoContent)
	// the cached copy went with it
	expectStatus(t, a.do(t, owner, http.MethodGet, "/v1/tables/layout", ""), http.StatusNotFound)
}

func TestTenantsAreIsolated(t *testing.T) {
	a := newApp(t)
	acme := token(t, "acme", "owner")
	globex := token(t, "globex", "owner")

	expectStatus(t, a.do(t, acme, http.MethodDelete, "/v1/tables/t1", ""), http.StatusNoContent)
	expectStatus(t, a.do(t, acme, http.MethodDelete, "/v1/tables/t1", ""), http.StatusNotFound)
	expectStatus(t, a.do(t, globex, http.MethodGet, "/v1/tables/t1", ""), http.StatusOK)
}

func TestOrdersFlow(t *testing.T) {
	a := newApp(t)
	waiter := token(t, "acme", "waiter")

	expectStatus(t, a.do(t, waiter, http.MethodPost, "/v1/orders/t1/kitchen", ""), http.StatusUnprocessableEntity)
	expectStatus(t, a.do(t, waiter, http.MethodPost, "/v1/orders/t1/items", `{"name":"Soup"}`), http.StatusBadRequest)

	a.do(t, waiter, http.MethodPost, "/v1/orders/t1/items", `{"menuItemId":7,"name":"Soup","price":500}`)
	rec := a.do(t, waiter, http.MethodPatch, "/v1/orders/t1/items/7", `{"delta":2}`)
	expectStatus(t, rec, http.StatusOK)
	sum := decode[orders.Summary](t, rec)
	if sum.ItemCount != 3 || sum.Total != 1500 {
		t.Fatalf("summary = %+v", sum)
	}

	rec = a.do(t, waiter, http.MethodPost, "/v1/orders/t1/kitchen", "")
	expectStatus(t, rec, http.StatusOK)
	if sum := decode[orders.Summary](t, rec); !sum.InKitchen || sum.ChangedSinceKitchen {
		t.Fatalf("after send = %+v", sum)
	}

	expectStatus(t, a.do(t, waiter, http.MethodPatch, "/v1/orders/t1/items/abc", `{"delta":1}`), http.StatusBadRequest)
	expectStatus(t, a.do(t, waiter, http.MethodDelete, "/v1/orders/t1", ""), http.StatusNoContent)
	if sum := decode[orders.Summary](t, a.do(t, waiter, http.MethodGet, "/v1/orders/t1", "")); len(sum.Items) != 0 || sum.InKitchen {
		t.Fatalf("after clear = %+v", sum)
	}
}

func TestNotifications(t *testing.T) {
	a := newApp(t)
	tok := token(t, "acme", "waiter")
	n := a.notifications.Add(context.Background(), "acme", model.NotificationInput{
		Type:     model.NotificationOrderReady,
		TitleKey: "notifications.orderReady.title",
	})

	type feed struct {
		Items  []model.Notification `json:"items"`
		Unread int                  `json:"unread"`
	}
	if got := decode[feed](t, a.do(t, tok, http.MethodGet, "/v1/notifications", "")); got.Unread != 1 || len(got.Items) != 1 {
		t.Fatalf("feed = %+v", got)
	}
	expectStatus(t, a.do(t, tok, http.MethodPost, "/v1/notifications/nope/read", ""), http.StatusNotFound)
	expectStatus(t, a.do(t, tok, http.MethodPost, "/v1/notifications/"+n.ID+"/read", ""), http.StatusNoContent)
	if got := decode[feed](t, a.do(t, tok, http.MethodGet, "/v1/notifications", "")); got.Unread != 0 {
		t.Fatalf("unread after mark = %d", got.Unread)
	}
	expectStatus(t, a.do(t, tok, http.MethodDelete, "/v1/notifications", ""), http.StatusNoContent)
	if got := decode[feed](t, a.do(t, tok, http.MethodGet, "/v1/notifications", "")); len(got.Items) != 0 {
		t.Fatalf("feed after clear = %+v", got)
	}
}
