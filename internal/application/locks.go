package application

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// keyedLocks serializes work per session id. Entries are dropped once no
// holder or waiter references them.
type keyedLocks struct {
	mu      sync.Mutex
	entries map[string]*keyedLock
}

type keyedLock struct {
	sem  *semaphore.Weighted
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{entries: make(map[string]*keyedLock)}
}

// acquire blocks until key is free or ctx is done. The returned release
// function must be called exactly once.
func (k *keyedLocks) acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	entry, ok := k.entries[key]
	if !ok {
		entry = &keyedLock{sem: semaphore.NewWeighted(1)}
		k.entries[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	if err := entry.sem.Acquire(ctx, 1); err != nil {
		k.unref(key, entry)
		return nil, err
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.sem.Release(1)
			k.unref(key, entry)
		})
	}, nil
}

func (k *keyedLocks) unref(key string, entry *keyedLock) {
	k.mu.Lock()
	entry.refs--
	if entry.refs == 0 && k.entries[key] == entry {
		delete(k.entries, key)
	}
	k.mu.Unlock()
}

func (k *keyedLocks) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
