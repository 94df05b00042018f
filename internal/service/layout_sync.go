package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/billsplit-floor/internal/model"
	"github.com/iliyamo/billsplit-floor/internal/queue"
	"github.com/iliyamo/billsplit-floor/internal/repository"
)

// LayoutStore is the persistence used by the layout mirror.
type LayoutStore interface {
	Save(ctx context.Context, tenantID string, tables []model.Table) error
	Get(ctx context.Context, tenantID string) (*repository.LayoutRecord, error)
	Delete(ctx context.Context, tenantID string) error
}

// SyncedPublisher announces mirrored layouts.
type SyncedPublisher interface {
	PublishLayoutSynced(ctx context.Context, ev queue.LayoutSyncedEvent) error
}

// LayoutMirror is the remote layout endpoint.  It keeps the latest layout
// of every tenant in the database and announces each write.  It satisfies
// layout.Syncer for in-process pushes and backs the HTTP mirror routes.
type LayoutMirror struct {
	store     LayoutStore
	publisher SyncedPublisher
	log       logrus.FieldLogger
}

// NewLayoutMirror returns a mirror over store.  publisher may be nil.
func NewLayoutMirror(store LayoutStore, publisher SyncedPublisher, log logrus.FieldLogger) *LayoutMirror {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &LayoutMirror{store: store, publisher: publisher, log: log.WithField("component", "layout-mirror")}
}

// PushLayout replaces the tenant's mirrored layout.
func (m *LayoutMirror) PushLayout(ctx context.Context, tenant string, tables []model.Table) error {
	if err := m.store.Save(ctx, tenant, tables); err != nil {
		return fmt.Errorf("save layout mirror: %w", err)
	}
	if m.publisher != nil {
		ev := queue.LayoutSyncedEvent{
			TenantID:   tenant,
			TableCount: len(tables),
			SyncedAt:   time.Now().UTC().Format(time.RFC3339),
		}
		if err := m.publisher.PublishLayoutSynced(ctx, ev); err != nil {
			m.log.WithError(err).WithField("tenant", tenant).Warn("layout.synced not published")
		}
	}
	return nil
}

// Layout returns the tenant's mirrored layout.
func (m *LayoutMirror) Layout(ctx context.Context, tenant string) (*repository.LayoutRecord, error) {
	return m.store.Get(ctx, tenant)
}

// Forget drops the tenant's mirrored layout.  It returns
// repository.ErrLayoutNotFound when nothing was mirrored.
func (m *LayoutMirror) Forget(ctx context.Context, tenant string) error {
	if err := m.store.Delete(ctx, tenant); err != nil {
		return fmt.Errorf("delete layout mirror: %w", err)
	}
	m.log.WithField("tenant", tenant).Info("layout mirror removed")
	return nil
}
