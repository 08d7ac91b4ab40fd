// Package hashlock implements a per-content-hash mutex map: a
// process-wide map from hex SHA-256 hash to an exclusive lock, so that
// concurrent uploads of identical content serialize through the upload
// finalizer's critical section (dedup lookup, media insert,
// canonical-path rename) instead of racing each other.
//
// The map is a refcounted set of *sync.Mutex guarded by one
// bookkeeping mutex: acquire increments a hash's waiter count, release
// decrements it and deletes the slot at zero, so the map only ever
// holds hashes with an upload in flight.
package hashlock

import "sync"

// entry is one hash's lock plus a count of goroutines currently
// holding or waiting on it, so Release can reclaim the map slot the
// instant nobody needs it anymore.
type entry struct {
	mu      sync.Mutex
	waiters int
}

// Map is a process-wide set of per-hash mutexes. The zero value is
// ready to use.
type Map struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New returns a ready Map.
func New() *Map {
	return &Map{entries: make(map[string]*entry)}
}

// Release is returned by Lock; calling it unlocks the hash's mutex and
// reclaims the map slot if no other goroutine is waiting on it.
type Release func()

// Lock blocks until the caller holds the exclusive lock for hash, then
// returns a Release func that must be called exactly once to release
// it. Safe for concurrent use by multiple goroutines across different
// hashes; goroutines sharing a hash serialize against each other.
func (m *Map) Lock(hash string) Release {
	m.mu.Lock()
	if m.entries == nil {
		m.entries = make(map[string]*entry)
	}
	e, ok := m.entries[hash]
	if !ok {
		e = &entry{}
		m.entries[hash] = e
	}
	e.waiters++
	m.mu.Unlock()

	e.mu.Lock()

	released := false
	return func() {
		if released {
			return
		}
		released = true
		e.mu.Unlock()

		m.mu.Lock()
		e.waiters--
		if e.waiters == 0 {
			delete(m.entries, hash)
		}
		m.mu.Unlock()
	}
}

// Len reports how many hashes currently have at least one waiter or
// holder. Exposed for tests and metrics, not for control flow.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
