// Package inflight keeps at most one schedule commit per submission running at a time.
package inflight

import (
	"context"
	"errors"
	"sync"
)

var ErrInFlight = errors.New("commit already in flight")

// Release gives the slot back. It is safe to call more than once.
type Release func(ctx context.Context)

type Guard interface {
	Acquire(ctx context.Context, key string) (Release, error)
}

// Memory is a process-local Guard.
type Memory struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewMemory() *Memory {
	return &Memory{held: make(map[string]struct{})}
}

func (m *Memory) Acquire(_ context.Context, key string) (Release, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.held[key]; busy {
		return nil, ErrInFlight
	}
	m.held[key] = struct{}{}

	var once sync.Once
	return func(context.Context) {
		once.Do(func() {
			m.mu.Lock()
			delete(m.held, key)
			m.mu.Unlock()
		})
	}, nil
}
