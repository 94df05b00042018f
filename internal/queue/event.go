// Package queue defines message payloads exchanged over the message broker
// and the consumer that reacts to them.
package queue

import "github.com/iliyamo/billsplit-floor/internal/model"

// Exchange is the topic exchange every event is published to.
const Exchange = "billsplit.events"

// Routing keys.
const (
	RouteSentToKitchen = "order.sent_to_kitchen"
	RouteLayoutSynced  = "layout.synced"
)

// OrderSentToKitchenEvent is published when a table's order is handed to
// the kitchen.  It carries the snapshot that was sent so consumers need
// not read the shared store.
type OrderSentToKitchenEvent struct {
	TenantID  string           `json:"tenant_id"`
	TableID   string           `json:"table_id"`
	Items     []model.CartItem `json:"items"`
	ItemCount int              `json:"item_count"`
	Total     int              `json:"total"` // cents
	SentAt    string           `json:"sent_at"`
}

// LayoutSyncedEvent is published after a tenant's layout was mirrored to
// the database.
type LayoutSyncedEvent struct {
	TenantID   string `json:"tenant_id"`
	TableCount int    `json:"table_count"`
	SyncedAt   string `json:"synced_at"`
}
