// Package storage provides the durable key/value slots shared by every
// execution context of the floor service, together with the change feed
// that tells one context about writes made by another.
//
// A Store handle represents one context.  Writes made through a handle are
// announced to every other handle watching the same backend; a handle
// never receives its own events, mirroring how browser storage events
// behave across tabs.
package storage

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed store or subscription.
var ErrClosed = errors.New("storage: closed")

// ChangeEvent describes an out-of-band write to the shared store.
//
// Cleared is true when the whole store was wiped; Key is empty in that
// case.  NewValue is nil when the key was removed.  OldValue is nil when
// the key did not exist before the write.
type ChangeEvent struct {
	Key      string  `json:"key,omitempty"`
	Cleared  bool    `json:"cleared,omitempty"`
	NewValue *string `json:"newValue"`
	OldValue *string `json:"oldValue"`
	Origin   string  `json:"origin"`
}

// Affects reports whether the event concerns key.
func (e ChangeEvent) Affects(key string) bool {
	return e.Cleared || e.Key == key
}

// Store is a shared durable key/value store with a change feed.
type Store interface {
	// Get returns the stored value and whether the key exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes value under key and announces the change.
	Set(ctx context.Context, key, value string) error
	// Delete removes key and announces the removal.  Deleting a missing key
	// is not an error.
	Delete(ctx context.Context, key string) error
	// Clear removes every key owned by the store.
	Clear(ctx context.Context) error
	// Watch subscribes to changes made by other handles.
	Watch(ctx context.Context) (Subscription, error)
	// Origin identifies this handle in emitted events.
	Origin() string
}

// Subscription delivers change events and resume signals.  Resumed fires
// when the watcher may have missed events, e.g. after the feed reconnects
// or when the owning context regains the foreground.
type Subscription interface {
	Events() <-chan ChangeEvent
	Resumed() <-chan struct{}
	Close() error
}

func strPtr(s string) *string { return &s }
