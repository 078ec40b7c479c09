package limiter

import (
	"context"
	"sync"
	"time"
)

type bucket struct {
	start time.Time
	hits  int
}

// Memory is a process-local fixed-window limiter.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	window  time.Duration
	limit   int
	now     func() time.Time

	stop chan struct{}
	done chan struct{}
}

// MemoryOption customizes a Memory limiter.
type MemoryOption func(*Memory)

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory constructs a limiter allowing limit requests per window per key
// and starts a janitor evicting stale windows. Call Close to stop it.
func NewMemory(window time.Duration, limit int, opts ...MemoryOption) *Memory {
	m := &Memory{
		buckets: make(map[string]*bucket),
		window:  window,
		limit:   limit,
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	go m.janitor()
	return m
}

// Allow records a hit for key.
func (m *Memory) Allow(_ context.Context, key string) (Decision, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[key]
	if !ok || !now.Before(b.start.Add(m.window)) {
		b = &bucket{start: now}
		m.buckets[key] = b
	}
	b.hits++
	return decide(m.limit, b.hits, b.start, m.window, now), nil
}

// Len reports the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

// Sweep drops windows that have already rolled over.
func (m *Memory) Sweep() {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, b := range m.buckets {
		if !now.Before(b.start.Add(m.window)) {
			delete(m.buckets, k)
		}
	}
}

// Close stops the janitor goroutine. Safe to call once.
func (m *Memory) Close() {
	close(m.stop)
	<-m.done
}

func (m *Memory) janitor() {
	defer close(m.done)
	every := m.window
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-t.C:
			m.Sweep()
		}
	}
}
