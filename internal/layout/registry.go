package layout

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/billsplit-floor/internal/storage"
)

// Registry lazily creates one Manager per tenant over a shared store.
type Registry struct {
	store  storage.Store
	syncer Syncer
	prefix string
	log    logrus.FieldLogger

	mu       sync.Mutex
	managers map[string]*Manager
	closed   bool
}

var errRegistryClosed = errors.New("layout: registry closed")

// NewRegistry returns an empty registry.  prefix is the storage key
// prefix, e.g. "billsplit:".
func NewRegistry(store storage.Store, syncer Syncer, prefix string, log logrus.FieldLogger) *Registry {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Registry{
		store:    store,
		syncer:   syncer,
		prefix:   prefix,
		log:      log,
		managers: map[string]*Manager{},
	}
}

// Get returns the tenant's manager, creating it on first use.  Creation
// talks to the store, so it runs outside the lock; when two requests race
// for the same tenant the loser's manager is closed.
func (r *Registry) Get(ctx context.Context, tenant string) (*Manager, error) {
	if tenant == "" {
		return nil, errors.New("layout: empty tenant")
	}
	r.mu.Lock()
	m, ok := r.managers[tenant]
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, errRegistryClosed
	}
	if ok {
		return m, nil
	}

	fresh, err := New(ctx, Options{
		Tenant: tenant,
		Key:    StorageKey(r.prefix, tenant),
		Store:  r.store,
		Syncer: r.syncer,
		Logger: r.log,
	})
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	m, ok = r.managers[tenant]
	closed = r.closed
	if !ok && !closed {
		r.managers[tenant] = fresh
	}
	r.mu.Unlock()
	switch {
	case closed:
		_ = fresh.Close()
		return nil, errRegistryClosed
	case ok:
		_ = fresh.Close()
		return m, nil
	}
	return fresh, nil
}

// Close stops every manager's reconciliation.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	var errs []error
	for tenant, m := range r.managers {
		if err := m.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(r.managers, tenant)
	}
	return errors.Join(errs...)
}
