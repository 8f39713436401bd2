package events

import (
	"context"
	"sync"
)

const memoryBufferSize = 256

// MemoryTransport broadcasts inside the current process. It is meant for
// single-node development and tests.
//
// A subscriber whose buffer is full holds up Publish until it catches up or
// the publish context ends, so a stalled consumer surfaces as a publish
// error rather than lost messages.
type MemoryTransport struct {
	mu     sync.RWMutex
	subs   map[*memorySub]struct{}
	closed bool
}

type memorySub struct {
	ch       chan []byte
	done     chan struct{}
	inflight sync.WaitGroup
	once     sync.Once
}

// stop releases blocked publishers, waits for them and closes ch. The
// caller must already have removed s from the transport.
func (s *memorySub) stop() {
	s.once.Do(func() {
		close(s.done)
		s.inflight.Wait()
		close(s.ch)
	})
}

func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{subs: make(map[*memorySub]struct{})}
}

func (t *MemoryTransport) Publish(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.RLock()
	if t.closed {
		t.mu.RUnlock()
		return ErrBusClosed
	}
	subs := make([]*memorySub, 0, len(t.subs))
	for s := range t.subs {
		s.inflight.Add(1)
		subs = append(subs, s)
	}
	t.mu.RUnlock()
	defer func() {
		for _, s := range subs {
			s.inflight.Done()
		}
	}()

	for _, s := range subs {
		msg := append([]byte(nil), data...)
		select {
		case s.ch <- msg:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (t *MemoryTransport) Subscribe(ctx context.Context) (<-chan []byte, func(), error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, nil, ErrBusClosed
	}
	s := &memorySub{
		ch:   make(chan []byte, memoryBufferSize),
		done: make(chan struct{}),
	}
	t.subs[s] = struct{}{}

	cancel := func() {
		t.mu.Lock()
		delete(t.subs, s)
		t.mu.Unlock()
		s.stop()
	}
	return s.ch, cancel, nil
}

func (t *MemoryTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	subs := make([]*memorySub, 0, len(t.subs))
	for s := range t.subs {
		delete(t.subs, s)
		subs = append(subs, s)
	}
	t.mu.Unlock()

	for _, s := range subs {
		s.stop()
	}
	return nil
}
