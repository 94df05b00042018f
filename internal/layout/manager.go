// Package layout owns a tenant's floor plan: the collection of tables,
// the editing session around it, and its reconciliation with the shared
// durable store.
package layout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/billsplit-floor/internal/model"
	"github.com/iliyamo/billsplit-floor/internal/storage"
)

// Syncer mirrors a tenant's layout to a remote endpoint.
type Syncer interface {
	PushLayout(ctx context.Context, tenant string, tables []model.Table) error
}

// StorageKey returns the slot holding a tenant's table collection.
func StorageKey(prefix, tenant string) string {
	return fmt.Sprintf("%s%s:tables", prefix, tenant)
}

// Options configures a Manager.
type Options struct {
	Tenant string
	Key    string // defaults to StorageKey("billsplit:", Tenant)
	Store  storage.Store
	Syncer Syncer // optional
	Logger logrus.FieldLogger
	Now    func() time.Time
}

// Session is a snapshot of the editing session.
type Session struct {
	ActiveZone  string     `json:"activeZone"`
	EditMode    bool       `json:"editMode"`
	SelectedIDs []string   `json:"selectedIds"`
	IsSaving    bool       `json:"isSaving"`
	LastSaved   *time.Time `json:"lastSaved"`
}

// Manager owns one tenant's tables.  All methods are safe for concurrent
// use; they are serialized so that each operation observes and leaves a
// consistent collection.
type Manager struct {
	tenant string
	key    string
	store  storage.Store
	syncer Syncer
	log    logrus.FieldLogger
	now    func() time.Time

	mu         sync.Mutex
	tables     []model.Table
	activeZone string
	editMode   bool
	selected   []string
	isSaving   bool
	lastSaved  time.Time

	sub       storage.Subscription
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New loads the stored layout (falling back to the defaults) and starts
// watching the store for changes made by other contexts.
func New(ctx context.Context, opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("layout: nil store")
	}
	if opts.Key == "" {
		opts.Key = StorageKey("billsplit:", opts.Tenant)
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := &Manager{
		tenant:     opts.Tenant,
		key:        opts.Key,
		store:      opts.Store,
		syncer:     opts.Syncer,
		log:        opts.Logger.WithFields(logrus.Fields{"tenant": opts.Tenant, "key": opts.Key}),
		now:        opts.Now,
		activeZone: model.DefaultZone,
		done:       make(chan struct{}),
	}
	m.tables = m.load(ctx)

	sub, err := opts.Store.Watch(ctx)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", opts.Key, err)
	}
	m.sub = sub
	m.wg.Add(1)
	go m.watch()
	return m, nil
}

// Close stops reconciliation.  The manager remains usable for reads.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.done)
		err = m.sub.Close()
		m.wg.Wait()
	})
	return err
}

func (m *Manager) load(ctx context.Context) []model.Table {
	raw, ok, err := m.store.Get(ctx, m.key)
	if err != nil {
		m.log.WithError(err).Warn("reading stored layout failed; using defaults")
		return DefaultTables()
	}
	if !ok {
		return DefaultTables()
	}
	tables, err := decodeTables(raw)
	if err != nil || len(tables) == 0 {
		return DefaultTables()
	}
	return tables
}

// errNullLayout marks a slot holding JSON null, which is no collection at
// all (unlike an empty array).
var errNullLayout = errors.New("stored layout is null")

func decodeTables(raw string) ([]model.Table, error) {
	var tables []model.Table
	if err := json.Unmarshal([]byte(raw), &tables); err != nil {
		return nil, err
	}
	if tables == nil {
		return nil, errNullLayout
	}
	return tables, nil
}

// persist writes the whole collection.  Callers hold m.mu, so the write
// reflects the state right after the mutation and writes stay ordered.
func (m *Manager) persist(ctx context.Context) {
	body, err := json.Marshal(m.tables)
	if err != nil {
		m.log.WithError(err).Warn("encoding layout failed")
		return
	}
	if err := m.store.Set(ctx, m.key, string(body)); err != nil {
		m.log.WithError(err).Warn("saving layout failed; keeping in-memory state")
		return
	}
	m.lastSaved = m.now()
}

func (m *Manager) indexOf(id string) int {
	for i := range m.tables {
		if m.tables[i].ID == id {
			return i
		}
	}
	return -1
}

// ---- queries ----

// Tables returns a copy of the whole collection.
func (m *Manager) Tables() []model.Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneTables(m.tables)
}

// Table returns the table with the given id.
func (m *Manager) Table(id string) (model.Table, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := m.indexOf(id); i >= 0 {
		return m.tables[i].Clone(), true
	}
	return model.Table{}, false
}

// FilteredTables returns the tables of the active zone.
func (m *Manager) FilteredTables() []model.Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inZone(m.activeZone)
}

func (m *Manager) inZone(zone string) []model.Table {
	out := []model.Table{}
	for _, t := range m.tables {
		if t.Zone == zone {
			out = append(out, t.Clone())
		}
	}
	return out
}

// TablesByZone groups tables by every known zone; zones without tables
// map to an empty slice.
func (m *Manager) TablesByZone() map[string][]model.Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]model.Table, len(model.Zones))
	for _, z := range model.Zones {
		out[z] = m.inZone(z)
	}
	return out
}

// Stats counts tables in total and per status.
func (m *Manager) Stats() model.TableStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := model.TableStats{Total: len(m.tables)}
	for _, t := range m.tables {
		switch t.Status {
		case model.StatusAvailable:
			s.Available++
		case model.StatusReserved:
			s.Reserved++
		case model.StatusOccupied:
			s.Occupied++
		}
	}
	return s
}

// Session returns a snapshot of the editing session.
func (m *Manager) Session() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Session{
		ActiveZone:  m.activeZone,
		EditMode:    m.editMode,
		SelectedIDs: append([]string{}, m.selected...),
		IsSaving:    m.isSaving,
	}
	if !m.lastSaved.IsZero() {
		ts := m.lastSaved
		s.LastSaved = &ts
	}
	return s
}

// ---- session ----

// SetActiveZone switches the zone shown by FilteredTables.
func (m *Manager) SetActiveZone(zone string) {
	m.mu.Lock()
	m.activeZone = zone
	m.mu.Unlock()
}

// ToggleSelect adds id to the selection, or removes it when present.
func (m *Manager) ToggleSelect(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.selected {
		if s == id {
			m.selected = append(m.selected[:i], m.selected[i+1:]...)
			return
		}
	}
	m.selected = append(m.selected, id)
}

// ClearSelection empties the selection.
func (m *Manager) ClearSelection() {
	m.mu.Lock()
	m.selected = nil
	m.mu.Unlock()
}

// ToggleEditMode flips edit mode and clears the selection.  Leaving edit
// mode commits the layout.  It returns the new edit-mode flag.
func (m *Manager) ToggleEditMode(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.editMode = !m.editMode
	if !m.editMode {
		m.persist(ctx)
	}
	m.selected = nil
	return m.editMode
}

// SaveLayout persists the current collection.
func (m *Manager) SaveLayout(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.persist(ctx)
}

// ResetToDefaults replaces the collection with the seed floor.
func (m *Manager) ResetToDefaults(ctx context.Context) []model.Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables = DefaultTables()
	m.persist(ctx)
	return cloneTables(m.tables)
}

// SyncWithBackend pushes the collection to the remote mirror.  Only an
// accepted push updates lastSaved: a push the mirror rejects counts as a
// failure just like an unreachable one.  Failures are logged and reported
// through the return value only; local state is never reverted.
func (m *Manager) SyncWithBackend(ctx context.Context) bool {
	m.mu.Lock()
	m.isSaving = true
	snapshot := cloneTables(m.tables)
	m.mu.Unlock()

	var err error
	if m.syncer == nil {
		err = errors.New("no remote layout endpoint configured")
	} else {
		err = m.syncer.PushLayout(ctx, m.tenant, snapshot)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.isSaving = false
	if err != nil {
		m.log.WithError(err).Warn("syncing layout with backend failed")
		return false
	}
	m.lastSaved = m.now()
	return true
}

// ---- CRUD ----

// AddTable appends t under a freshly generated id and returns the stored
// table.  Any id on t is ignored.
func (m *Manager) AddTable(ctx context.Context, t model.Table) model.Table {
	m.mu.Lock()
	defer m.mu.Unlock()
	t = t.Clone()
	t.ID = "t-" + uuid.NewString()
	m.tables = append(m.tables, t)
	m.persist(ctx)
	return t.Clone()
}

// UpdateTable merges patch into the table with the given id.
func (m *Manager) UpdateTable(ctx context.Context, id string, patch model.TablePatch) (model.Table, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return model.Table{}, false
	}
	patch.Apply(&m.tables[i])
	m.persist(ctx)
	return m.tables[i].Clone(), true
}

// RemoveTable deletes the table with the given id.
func (m *Manager) RemoveTable(ctx context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return false
	}
	m.tables = append(m.tables[:i], m.tables[i+1:]...)
	m.persist(ctx)
	return true
}

// ---- layout ----

// Layout edits are committed when edit mode is left; outside edit mode
// they are persisted right away.
func (m *Manager) commitLayout(ctx context.Context) {
	if !m.editMode {
		m.persist(ctx)
	}
}

// MoveTable places the table at (col, row).
func (m *Manager) MoveTable(ctx context.Context, id string, col, row int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return false
	}
	m.tables[i].GridCol = col
	m.tables[i].GridRow = row
	m.commitLayout(ctx)
	return true
}

// RotateTable swaps the spans and advances the rotation by 90 degrees.
func (m *Manager) RotateTable(ctx context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return false
	}
	t := &m.tables[i]
	t.ColSpan, t.RowSpan = t.RowSpan, t.ColSpan
	t.Rotation = (t.Rotation + 90) % 360
	m.commitLayout(ctx)
	return true
}

// ToggleSize switches between the 1x1 small and 2x1 large footprints.
func (m *Manager) ToggleSize(ctx context.Context, id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := m.indexOf(id)
	if i < 0 {
		return false
	}
	t := &m.tables[i]
	if t.ColSpan == 1 && t.RowSpan == 1 {
		t.ColSpan, t.RowSpan, t.Size = 2, 1, model.SizeLarge
	} else {
		t.ColSpan, t.RowSpan, t.Size = 1, 1, model.SizeSmall
	}
	m.commitLayout(ctx)
	return true
}
