// Package orders keeps the open order of every table and tracks which
// orders were sent to the kitchen.  State lives in the shared store, one
// slot per concern, so every service instance sees the same carts.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/billsplit-floor/internal/model"
	"github.com/iliyamo/billsplit-floor/internal/queue"
	"github.com/iliyamo/billsplit-floor/internal/storage"
)

// Publisher announces orders handed to the kitchen.
type Publisher interface {
	PublishSentToKitchen(ctx context.Context, ev queue.OrderSentToKitchenEvent) error
}

// Service manages carts for all tenants.
type Service struct {
	store     storage.Store
	prefix    string
	publisher Publisher
	log       logrus.FieldLogger

	mu sync.Mutex
}

// NewService returns a Service.  publisher may be nil.
func NewService(store storage.Store, prefix string, publisher Publisher, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{store: store, prefix: prefix, publisher: publisher, log: log.WithField("component", "orders")}
}

// state is the decoded form of the three slots of a tenant.
type state struct {
	carts     map[string][]model.CartItem
	kitchen   []string
	snapshots map[string][]model.CartItem
}

func (s *Service) key(tenant, slot string) string {
	return fmt.Sprintf("%s%s:%s", s.prefix, tenant, slot)
}

// loadSlot decodes a slot into v; missing or corrupt slots leave v at its
// zero value.
func (s *Service) loadSlot(ctx context.Context, key string, v any) {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("reading slot failed")
		return
	}
	if !ok {
		return
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		s.log.WithError(err).WithField("key", key).Debug("ignoring undecodable slot")
	}
}

func (s *Service) saveSlot(ctx context.Context, key string, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("encoding slot failed")
		return
	}
	if err := s.store.Set(ctx, key, string(body)); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("saving slot failed")
	}
}

func (s *Service) load(ctx context.Context, tenant string) *state {
	st := &state{}
	s.loadSlot(ctx, s.key(tenant, "cart"), &st.carts)
	s.loadSlot(ctx, s.key(tenant, "kitchen"), &st.kitchen)
	s.loadSlot(ctx, s.key(tenant, "kitchen-snapshot"), &st.snapshots)
	if st.carts == nil {
		st.carts = map[string][]model.CartItem{}
	}
	if st.kitchen == nil {
		st.kitchen = []string{}
	}
	if st.snapshots == nil {
		st.snapshots = map[string][]model.CartItem{}
	}
	return st
}

func (s *Service) saveCarts(ctx context.Context, tenant string, st *state) {
	s.saveSlot(ctx, s.key(tenant, "cart"), st.carts)
}

func (s *Service) saveKitchen(ctx context.Context, tenant string, st *state) {
	s.saveSlot(ctx, s.key(tenant, "kitchen"), st.kitchen)
}

func (s *Service) saveSnapshots(ctx context.Context, tenant string, st *state) {
	s.saveSlot(ctx, s.key(tenant, "kitchen-snapshot"), st.snapshots)
}

// Cart returns the table's order lines.
func (s *Service) Cart(ctx context.Context, tenant, tableID string) []model.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneItems(s.load(ctx, tenant).carts[tableID])
}

// AddItem adds one unit of item; an existing line for the same menu item
// is incremented instead.
func (s *Service) AddItem(ctx context.Context, tenant, tableID string, item model.CartItem) []model.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.load(ctx, tenant)
	cart := st.carts[tableID]
	found := false
	for i := range cart {
		if cart[i].MenuItemID == item.MenuItemID {
			cart[i].Quantity++
			found = true
			break
		}
	}
	if !found {
		item.Quantity = 1
		cart = append(cart, item)
	}
	st.carts[tableID] = cart
	s.saveCarts(ctx, tenant, st)
	return cloneItems(cart)
}

// UpdateQuantity adds delta to a line, flooring at zero; a line reaching
// zero is removed.  Unknown tables or items are ignored.
func (s *Service) UpdateQuantity(ctx context.Context, tenant, tableID string, menuItemID, delta int) []model.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.load(ctx, tenant)
	cart, ok := st.carts[tableID]
	if !ok {
		return []model.CartItem{}
	}
	idx := indexOfItem(cart, menuItemID)
	if idx < 0 {
		return cloneItems(cart)
	}
	cart[idx].Quantity = max(0, cart[idx].Quantity+delta)
	if cart[idx].Quantity == 0 {
		cart = append(cart[:idx], cart[idx+1:]...)
	}
	st.carts[tableID] = cart
	s.saveCarts(ctx, tenant, st)
	return cloneItems(cart)
}

// RemoveItem drops a line from the table's cart.
func (s *Service) RemoveItem(ctx context.Context, tenant, tableID string, menuItemID int) []model.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.load(ctx, tenant)
	cart, ok := st.carts[tableID]
	if !ok {
		return []model.CartItem{}
	}
	if idx := indexOfItem(cart, menuItemID); idx >= 0 {
		cart = append(cart[:idx], cart[idx+1:]...)
	}
	st.carts[tableID] = cart
	s.saveCarts(ctx, tenant, st)
	return cloneItems(cart)
}

// SendToKitchen marks the table as sent and snapshots its current cart.
// The snapshot is refreshed on every call so later edits can be detected.
func (s *Service) SendToKitchen(ctx context.Context, tenant, tableID string) {
	s.mu.Lock()
	st := s.load(ctx, tenant)
	if !contains(st.kitchen, tableID) {
		st.kitchen = append(st.kitchen, tableID)
		s.saveKitchen(ctx, tenant, st)
	}
	cart := cloneItems(st.carts[tableID])
	st.snapshots[tableID] = cart
	s.saveSnapshots(ctx, tenant, st)
	s.mu.Unlock()

	if s.publisher == nil {
		return
	}
	ev := queue.OrderSentToKitchenEvent{
		TenantID:  tenant,
		TableID:   tableID,
		Items:     cart,
		ItemCount: countItems(cart),
		Total:     totalOf(cart),
		SentAt:    time.Now().UTC().Format(time.RFC3339),
	}
	if err := s.publisher.PublishSentToKitchen(ctx, ev); err != nil {
		s.log.WithError(err).WithField("table", tableID).Warn("kitchen event not published")
	}
}

// RemoveFromKitchen clears the kitchen flag and snapshot of a table.
func (s *Service) RemoveFromKitchen(ctx context.Context, tenant, tableID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.load(ctx, tenant)
	st.kitchen = without(st.kitchen, tableID)
	delete(st.snapshots, tableID)
	s.saveKitchen(ctx, tenant, st)
	s.saveSnapshots(ctx, tenant, st)
}

// ClearTable forgets everything about a table's order.
func (s *Service) ClearTable(ctx context.Context, tenant, tableID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.load(ctx, tenant)
	delete(st.carts, tableID)
	delete(st.snapshots, tableID)
	st.kitchen = without(st.kitchen, tableID)
	s.saveCarts(ctx, tenant, st)
	s.saveKitchen(ctx, tenant, st)
	s.saveSnapshots(ctx, tenant, st)
}

// Summary describes a table's order for display.
type Summary struct {
	TableID             string           `json:"tableId"`
	Items               []model.CartItem `json:"items"`
	Total               int              `json:"total"`
	ItemCount           int              `json:"itemCount"`
	InKitchen           bool             `json:"inKitchen"`
	ChangedSinceKitchen bool             `json:"hasChangesFromKitchen"`
}

// Summary computes totals and kitchen flags for a table.
func (s *Service) Summary(ctx context.Context, tenant, tableID string) Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.load(ctx, tenant)
	cart := st.carts[tableID]
	return Summary{
		TableID:             tableID,
		Items:               cloneItems(cart),
		Total:               totalOf(cart),
		ItemCount:           countItems(cart),
		InKitchen:           contains(st.kitchen, tableID),
		ChangedSinceKitchen: changedSince(cart, st.snapshots[tableID]),
	}
}

// changedSince reports whether cart differs from the last kitchen
// snapshot.  A table never sent counts as changed.
func changedSince(cart, snapshot []model.CartItem) bool {
	if snapshot == nil {
		return true
	}
	if len(cart) != len(snapshot) {
		return true
	}
	for _, item := range cart {
		i := indexOfItem(snapshot, item.MenuItemID)
		if i < 0 || snapshot[i].Quantity != item.Quantity {
			return true
		}
	}
	return false
}

func totalOf(cart []model.CartItem) int {
	sum := 0
	for _, it := range cart {
		sum += it.Price * it.Quantity
	}
	return sum
}

func countItems(cart []model.CartItem) int {
	n := 0
	for _, it := range cart {
		n += it.Quantity
	}
	return n
}

func indexOfItem(cart []model.CartItem, menuItemID int) int {
	for i, it := range cart {
		if it.MenuItemID == menuItemID {
			return i
		}
	}
	return -1
}

func cloneItems(in []model.CartItem) []model.CartItem {
	return append([]model.CartItem{}, in...)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
