package locking

import (
	"context"
	"sync"
)

type entry struct {
	sem chan struct{}
	ref *RefCount
}

// KeyedMutex hands out one exclusive lock per key. Entries exist only
// while someone holds or waits for them.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{entries: make(map[string]*entry)}
}

// Lock blocks until key is free or ctx is done. The returned func releases
// the lock and must be called exactly once.
func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.entries[key]
	if ok {
		e.ref.Inc()
	} else {
		e = &entry{sem: make(chan struct{}, 1), ref: NewRefCount()}
		k.entries[key] = e
	}
	k.mu.Unlock()

	select {
	case e.sem <- struct{}{}:
		return func() {
			<-e.sem
			k.release(key, e)
		}, nil
	case <-ctx.Done():
		k.release(key, e)
		return nil, ctx.Err()
	}
}

func (k *KeyedMutex) release(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if e.ref.Dec() {
		delete(k.entries, key)
	}
}

// Len reports how many keys are currently held or awaited.
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
