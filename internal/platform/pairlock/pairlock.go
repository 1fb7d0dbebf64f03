// Package pairlock serializes work per (shop, product) pair without a global lock.
//
// Writers take exclusive locks on every pair they touch, acquired in a stable
// order so that two multi-line tickets can never deadlock. Readers take shared
// locks. Entries are reference counted and dropped once no goroutine holds or
// waits on them.
package pairlock

import (
	"bytes"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Key identifies one (shop, product) pair.
type Key struct {
	ShopID    uuid.UUID
	ProductID uuid.UUID
}

func (k Key) less(o Key) bool {
	if c := bytes.Compare(k.ShopID[:], o.ShopID[:]); c != 0 {
		return c < 0
	}
	return bytes.Compare(k.ProductID[:], o.ProductID[:]) < 0
}

type entry struct {
	mu   sync.RWMutex
	refs int
}

// Locker hands out per-key read/write locks.
type Locker struct {
	mu      sync.Mutex
	entries map[Key]*entry
}

func New() *Locker {
	return &Locker{entries: make(map[Key]*entry)}
}

// Lock acquires exclusive locks on keys and returns the matching unlock func.
func (l *Locker) Lock(keys ...Key) (unlock func()) {
	return l.acquire(keys, false)
}

// RLock acquires shared locks on keys and returns the matching unlock func.
func (l *Locker) RLock(keys ...Key) (unlock func()) {
	return l.acquire(keys, true)
}

// Sorted returns keys deduplicated and in lock order.
func Sorted(keys []Key) []Key {
	out := make([]Key, 0, len(keys))
	seen := make(map[Key]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}

func (l *Locker) acquire(keys []Key, shared bool) func() {
	ordered := Sorted(keys)
	held := make([]*entry, 0, len(ordered))

	l.mu.Lock()
	for _, k := range ordered {
		e, ok := l.entries[k]
		if !ok {
			e = &entry{}
			l.entries[k] = e
		}
		e.refs++
		held = append(held, e)
	}
	l.mu.Unlock()

	for _, e := range held {
		if shared {
			e.mu.RLock()
		} else {
			e.mu.Lock()
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				if shared {
					held[i].mu.RUnlock()
				} else {
					held[i].mu.Unlock()
				}
			}
			l.mu.Lock()
			for i, k := range ordered {
				held[i].refs--
				if held[i].refs == 0 {
					delete(l.entries, k)
				}
			}
			l.mu.Unlock()
		})
	}
}

// Len returns the number of live entries. Used by tests.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
