package storage

import "sync"

// queueSub is an unbounded subscription: publishers append without
// blocking and a pump goroutine forwards to the consumer channel, so a
// slow watcher can never stall a writer that holds its own locks.
type queueSub struct {
	mu      sync.Mutex
	pending []ChangeEvent
	closed  bool
	wake    chan struct{}
	out     chan ChangeEvent
	resumed chan struct{}
	done    chan struct{}
	onClose func()
	once    sync.Once
}

func newQueueSub(onClose func()) *queueSub {
	s := &queueSub{
		wake:    make(chan struct{}, 1),
		out:     make(chan ChangeEvent),
		resumed: make(chan struct{}, 1),
		done:    make(chan struct{}),
		onClose: onClose,
	}
	go s.pump()
	return s
}

func (s *queueSub) push(ev ChangeEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// resume coalesces: one pending signal is enough for the consumer to
// revalidate.
func (s *queueSub) resume() {
	select {
	case s.resumed <- struct{}{}:
	default:
	}
}

func (s *queueSub) pump() {
	defer close(s.out)
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			s.mu.Lock()
			if len(s.pending) == 0 {
				s.mu.Unlock()
				break
			}
			ev := s.pending[0]
			s.pending = s.pending[1:]
			s.mu.Unlock()
			select {
			case s.out <- ev:
			case <-s.done:
				return
			}
		}
	}
}

func (s *queueSub) Events() <-chan ChangeEvent { return s.out }
func (s *queueSub) Resumed() <-chan struct{}   { return s.resumed }

func (s *queueSub) Close() error {
	s.once.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.pending = nil
		s.mu.Unlock()
		close(s.done)
		if s.onClose != nil {
			s.onClose()
		}
	})
	return nil
}
