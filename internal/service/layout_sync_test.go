package service

import (
	"context"
	"errors"
	"testing"

	"github.com/iliyamo/billsplit-floor/internal/model"
	"github.com/iliyamo/billsplit-floor/internal/queue"
	"github.com/iliyamo/billsplit-floor/internal/repository"
)

type memLayouts struct {
	rows map[string][]model.Table
	err  error
}

func (m *memLayouts) Save(_ context.Context, tenant string, tables []model.Table) error {
	if m.err != nil {
		return m.err
	}
	m.rows[tenant] = tables
	return nil
}

func (m *memLayouts) Get(_ context.Context, tenant string) (*repository.LayoutRecord, error) {
	tables, ok := m.rows[tenant]
	if !ok {
		return nil, repository.ErrLayoutNotFound
	}
	return &repository.LayoutRecord{TenantID: tenant, Tables: tables, TableCount: len(tables)}, nil
}

func (m *memLayouts) Delete(_ context.Context, tenant string) error {
	if m.err != nil {
		return m.err
	}
	if _, ok := m.rows[tenant]; !ok {
		return repository.ErrLayoutNotFound
	}
	delete(m.rows, tenant)
	return nil
}

type recordingPublisher struct {
	events []queue.LayoutSyncedEvent
	err    error
}

func (p *recordingPublisher) PublishLayoutSynced(_ context.Context, ev queue.LayoutSyncedEvent) error {
	p.events = append(p.events, ev)
	return p.err
}

func TestLayoutMirrorPush(t *testing.T) {
	ctx := context.Background()
	store := &memLayouts{rows: map[string][]model.Table{}}
	pub := &recordingPublisher{}
	m := NewLayoutMirror(store, pub, nil)

	tables := []model.Table{{ID: "t1", Number: 1}, {ID: "t2", Number: 2}}
	if err := m.PushLayout(ctx, "acme", tables); err != nil {
		t.Fatal(err)
	}
	rec, err := m.Layout(ctx, "acme")
	if err != nil || rec.TableCount != 2 {
		t.Fatalf("Layout = %+v, %v", rec, err)
	}
	if len(pub.events) != 1 || pub.events[0].TenantID != "acme" || pub.events[0].TableCount != 2 {
		t.Fatalf("events = %+v", pub.events)
	}
	if _, err := m.Layout(ctx, "other"); !errors.Is(err, repository.ErrLayoutNotFound) {
		t.Fatalf("Layout(other) err = %v", err)
	}
}

func TestLayoutMirrorPushErrors(t *testing.T) {
	ctx := context.Background()
	down := errors.New("db down")
	m := NewLayoutMirror(&memLayouts{rows: map[string][]model.Table{}, err: down}, nil, nil)
	if err := m.PushLayout(ctx, "acme", nil); !errors.Is(err, down) {
		t.Fatalf("PushLayout err = %v, want db error", err)
	}

	// A broker failure does not fail the push.
	pub := &recordingPublisher{err: errors.New("broker down")}
	m = NewLayoutMirror(&memLayouts{rows: map[string][]model.Table{}}, pub, nil)
	if err := m.PushLayout(ctx, "acme", nil); err != nil {
		t.Fatalf("PushLayout with broker down = %v", err)
	}
}

func TestLayoutMirrorForget(t *testing.T) {
	ctx := context.Background()
	store := &memLayouts{rows: map[string][]model.Table{}}
	m := NewLayoutMirror(store, nil, nil)

	if err := m.Forget(ctx, "acme"); !errors.Is(err, repository.ErrLayoutNotFound) {
		t.Fatalf("Forget on empty mirror = %v", err)
	}
	if err := m.PushLayout(ctx, "acme", []model.Table{{ID: "t1", Seats: 4}}); err != nil {
		t.Fatal(err)
	}
	if err := m.PushLayout(ctx, "globex", nil); err != nil {
		t.Fatal(err)
	}
	if err := m.Forget(ctx, "acme"); err != nil {
		t.Fatalf("Forget = %v", err)
	}
	if _, err := m.Layout(ctx, "acme"); !errors.Is(err, repository.ErrLayoutNotFound) {
		t.Fatalf("Layout after Forget = %v", err)
	}
	if _, err := m.Layout(ctx, "globex"); err != nil {
		t.Fatalf("other tenant lost its mirror: %v", err)
	}
}
