// Package locking provides save guards that keep two saves of one session
// from overlapping
package locking

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// LocalGuard holds one weight-1 semaphore per key within this process
type LocalGuard struct {
	mu   sync.Mutex
	sems map[string]*guardEntry
}

type guardEntry struct {
	sem  *semaphore.Weighted
	refs int
}

// NewLocalGuard creates an in-process save guard
func NewLocalGuard() *LocalGuard {
	return &LocalGuard{sems: make(map[string]*guardEntry)}
}

// TryAcquire takes the key's semaphore without waiting
func (g *LocalGuard) TryAcquire(ctx context.Context, key string) (func(), bool, error) {
	g.mu.Lock()
	entry, ok := g.sems[key]
	if !ok {
		entry = &guardEntry{sem: semaphore.NewWeighted(1)}
		g.sems[key] = entry
	}
	if !entry.sem.TryAcquire(1) {
		g.mu.Unlock()
		return nil, false, nil
	}
	entry.refs++
	g.mu.Unlock()

	release := func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		entry.sem.Release(1)
		entry.refs--
		if entry.refs == 0 {
			delete(g.sems, key)
		}
	}
	return sync.OnceFunc(release), true, nil
}

// Held reports whether key is currently guarded
func (g *LocalGuard) Held(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.sems[key]
	return ok
}
