package engine

import (
    "sort"
    "sync"
)

// keyedLocks hands out one mutex per key so that a check-then-act
// sequence is serialized against every other unit of work on the same
// key.  The engine keeps two instances: one keyed by event date
// (validate, detect conflict, write booking, write index) and one
// keyed by payment token (the confirm callback).  Locks are never
// reclaimed; the key space is bounded by the dates actually booked
// and the tokens actually staged.
type keyedLocks struct {
    mu sync.Mutex
    m  map[string]*sync.Mutex
}

func newKeyedLocks() *keyedLocks {
    return &keyedLocks{m: make(map[string]*sync.Mutex)}
}

func (l *keyedLocks) get(key string) *sync.Mutex {
    l.mu.Lock()
    defer l.mu.Unlock()
    mu, ok := l.m[key]
    if !ok {
        mu = &sync.Mutex{}
        l.m[key] = mu
    }
    return mu
}

// lock acquires the mutexes for the given keys in sorted order, so
// two operations spanning the same pair of keys (an edit moving a
// booking between days) can never deadlock.  The returned function
// releases them in reverse order.
func (l *keyedLocks) lock(keys ...string) func() {
    uniq := make([]string, 0, len(keys))
    seen := make(map[string]struct{}, len(keys))
    for _, k := range keys {
        if _, ok := seen[k]; !ok {
            seen[k] = struct{}{}
            uniq = append(uniq, k)
        }
    }
    sort.Strings(uniq)
    held := make([]*sync.Mutex, 0, len(uniq))
    for _, k := range uniq {
        mu := l.get(k)
        mu.Lock()
        held = append(held, mu)
    }
    return func() {
        for i := len(held) - 1; i >= 0; i-- {
            held[i].Unlock()
        }
    }
}
