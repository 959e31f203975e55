package automation

import "sync"

// keyedMutex serializes work per enrollment id so two concurrent advances of
// the same enrollment cannot interleave. Entries are reference counted and
// removed once idle.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{
		locks: make(map[string]*lockEntry),
	}
}

func (k *keyedMutex) Lock(key string) {
	k.mu.Lock()

	entry, ok := k.locks[key]
	if !ok {
		entry = &lockEntry{}
		k.locks[key] = entry
	}

	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
}

func (k *keyedMutex) Unlock(key string) {
	k.mu.Lock()

	entry := k.locks[key]
	entry.refs--

	if entry.refs == 0 {
		delete(k.locks, key)
	}

	k.mu.Unlock()

	entry.mu.Unlock()
}
