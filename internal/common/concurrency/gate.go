package concurrency

import (
	"context"
	"sync"
)

// Gate is a semaphore whose capacity can change while slots are held.
// Shrinking never revokes a slot; it only delays new acquisitions until
// enough holders release.
type Gate struct {
	mu      sync.Mutex
	limit   int
	inUse   int
	changed chan struct{}
}

func NewGate(limit int) *Gate {
	if limit < 1 {
		limit = 1
	}
	return &Gate{limit: limit, changed: make(chan struct{})}
}

// Acquire blocks until a slot is free or ctx is done. The returned release
// func is safe to call more than once.
func (g *Gate) Acquire(ctx context.Context) (func(), error) {
	for {
		g.mu.Lock()
		if g.inUse < g.limit {
			g.inUse++
			g.mu.Unlock()

			var once sync.Once
			return func() { once.Do(g.release) }, nil
		}
		wait := g.changed
		g.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Resize sets a new capacity (at least 1) and wakes waiters.
func (g *Gate) Resize(limit int) {
	if limit < 1 {
		limit = 1
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if limit == g.limit {
		return
	}
	g.limit = limit
	g.broadcast()
}

func (g *Gate) Limit() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limit
}

func (g *Gate) InUse() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inUse
}

func (g *Gate) release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inUse--
	g.broadcast()
}

// broadcast must be called with mu held.
func (g *Gate) broadcast() {
	close(g.changed)
	g.changed = make(chan struct{})
}
