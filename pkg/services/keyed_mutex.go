package services

import "sync"

// keyedMutex serializes writers per workflow identifier so the advancement
// sequence and the external-update path never interleave their
// fetch-mutate-persist cycles on the same record. Writers to different
// identifiers do not contend. Entries are never reclaimed: the map holds
// one mutex per identifier ever locked, a few dozen bytes per workflow for
// the process lifetime.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// Lock acquires the mutex for key and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()

	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}

	k.mu.Unlock()

	lock.Lock()

	return lock.Unlock
}
