package pkg

import (
	"sync"

	"github.com/google/uuid"
)

// KeyedMutex hands out one mutex per entity ID so that concurrent mutations
// of the same order or ticket serialize while unrelated entities proceed.
// Mutexes are never reclaimed; the working set is bounded by live entities.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// Lock acquires the mutex for id and returns its unlock function.
func (k *KeyedMutex) Lock(id uuid.UUID) func() {
	k.mu.Lock()
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
