package layout

import (
	"context"
	"time"

	"github.com/iliyamo/billsplit-floor/internal/storage"
)

const reconcileTimeout = 5 * time.Second

func (m *Manager) watch() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case ev, ok := <-m.sub.Events():
			if !ok {
				return
			}
			m.applyChange(ev)
		case <-m.sub.Resumed():
			ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
			m.Revalidate(ctx)
			cancel()
		}
	}
}

// applyChange reconciles the collection with a write made by another
// context.  A removed key or a cleared store resets the floor and writes
// it back so every context has data again; a valid non-empty collection
// is adopted as is (its writer already persisted it); anything that does
// not decode falls back to the defaults.
func (m *Manager) applyChange(ev storage.ChangeEvent) {
	if !ev.Affects(m.key) {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if ev.NewValue == nil || *ev.NewValue == "" {
		m.log.WithField("cleared", ev.Cleared).Info("stored layout removed elsewhere; restoring defaults")
		m.tables = DefaultTables()
		ctx, cancel := context.WithTimeout(context.Background(), reconcileTimeout)
		m.persist(ctx)
		cancel()
		return
	}
	tables, err := decodeTables(*ev.NewValue)
	if err != nil {
		m.log.WithError(err).Warn("stored layout is corrupt; falling back to defaults")
		m.tables = DefaultTables()
		return
	}
	if len(tables) > 0 {
		m.tables = tables
	}
}

// Revalidate restores the defaults when the stored layout disappeared
// while no change event could be observed, e.g. while the context was in
// the background or the change feed was disconnected.
func (m *Manager) Revalidate(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok, err := m.store.Get(ctx, m.key)
	if err != nil {
		m.log.WithError(err).Warn("revalidating stored layout failed")
		return
	}
	if !ok {
		m.log.Info("stored layout missing on resume; restoring defaults")
		m.tables = DefaultTables()
		m.persist(ctx)
	}
}
