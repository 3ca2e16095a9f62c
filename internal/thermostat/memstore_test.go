package thermostat

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for manager tests.
type MemoryStore struct {
	mu    sync.Mutex
	state *State
	saves int

	// FailSave, when set, is returned by every Save.
	FailSave error
}

// Load returns the saved state or ErrStateNotFound.
func (m *MemoryStore) Load(context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		return State{}, ErrStateNotFound
	}
	return *m.state, nil
}

// Save records s.
func (m *MemoryStore) Save(_ context.Context, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSave != nil {
		return m.FailSave
	}
	m.state = &s
	m.saves++
	return nil
}

// Saves returns how many times Save succeeded.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
