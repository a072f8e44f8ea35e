// Package lock serializes read-check-write sequences that span several documents,
// such as checking a technician's schedule before assigning them.
package lock

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Locker takes every key or none. The returned release func is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, keys []string, ttl time.Duration) (func(), error)
}

// normalizeKeys sorts and dedupes so that two callers never wait on each other in opposite order.
func normalizeKeys(keys []string) []string {
	out := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// LocalLocker only serializes callers inside one process.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocal() *LocalLocker {
	return &LocalLocker{slots: make(map[string]chan struct{})}
}

func (l *LocalLocker) slot(key string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

func (l *LocalLocker) Acquire(ctx context.Context, keys []string, _ time.Duration) (func(), error) {
	keys = normalizeKeys(keys)
	held := make([]chan struct{}, 0, len(keys))
	releaseAll := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
		held = held[:0]
	}

	for _, key := range keys {
		ch := l.slot(key)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-ctx.Done():
			releaseAll()
			return nil, ErrNotAcquired
		}
	}

	var once sync.Once
	return func() { once.Do(releaseAll) }, nil
}
