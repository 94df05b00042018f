package storage

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryBackend is an in-process shared store.  Each handle returned by
// Open behaves like a separate execution context over the same data.
type MemoryBackend struct {
	mu       sync.Mutex
	data     map[string]string
	subs     map[*queueSub]string // subscription -> owner origin
	writeErr error
}

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data: map[string]string{},
		subs: map[*queueSub]string{},
	}
}

// Open returns a new handle with its own origin.
func (b *MemoryBackend) Open() *MemoryStore {
	return &MemoryStore{backend: b, origin: uuid.NewString()}
}

// FailWrites makes every subsequent Set, Delete and Clear return err until
// it is called again with nil.  Used to emulate a full or read-only store.
func (b *MemoryBackend) FailWrites(err error) {
	b.mu.Lock()
	b.writeErr = err
	b.mu.Unlock()
}

// broadcast must be called with b.mu held.
func (b *MemoryBackend) broadcast(ev ChangeEvent) {
	for sub, owner := range b.subs {
		if owner == ev.Origin {
			continue
		}
		sub.push(ev)
	}
}

// MemoryStore is one handle on a MemoryBackend.
type MemoryStore struct {
	backend *MemoryBackend
	origin  string

	mu     sync.Mutex
	active []*queueSub
}

// NewMemoryStore is shorthand for a single handle on a fresh backend.
func NewMemoryStore() *MemoryStore { return NewMemoryBackend().Open() }

func (s *MemoryStore) Origin() string { return s.origin }

// Backend exposes the shared backend, e.g. to open sibling handles.
func (s *MemoryStore) Backend() *MemoryBackend { return s.backend }

func (s *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	b := s.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	b := s.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeErr != nil {
		return b.writeErr
	}
	ev := ChangeEvent{Key: key, NewValue: strPtr(value), Origin: s.origin}
	if old, ok := b.data[key]; ok {
		ev.OldValue = strPtr(old)
	}
	b.data[key] = value
	b.broadcast(ev)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	b := s.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeErr != nil {
		return b.writeErr
	}
	old, ok := b.data[key]
	if !ok {
		return nil
	}
	delete(b.data, key)
	b.broadcast(ChangeEvent{Key: key, OldValue: strPtr(old), Origin: s.origin})
	return nil
}

func (s *MemoryStore) Clear(_ context.Context) error {
	b := s.backend
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.writeErr != nil {
		return b.writeErr
	}
	b.data = map[string]string{}
	b.broadcast(ChangeEvent{Cleared: true, Origin: s.origin})
	return nil
}

func (s *MemoryStore) Watch(ctx context.Context) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := s.backend
	var sub *queueSub
	sub = newQueueSub(func() {
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
		s.forget(sub)
	})
	b.mu.Lock()
	b.subs[sub] = s.origin
	b.mu.Unlock()

	s.mu.Lock()
	s.active = append(s.active, sub)
	s.mu.Unlock()
	return sub, nil
}

// Resume signals every subscription of this handle that events may have
// been missed, the way a browser tab regaining visibility would.
func (s *MemoryStore) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.active {
		sub.resume()
	}
}

func (s *MemoryStore) forget(sub *queueSub) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.active {
		if a == sub {
			s.active = append(s.active[:i], s.active[i+1:]...)
			return
		}
	}
}
