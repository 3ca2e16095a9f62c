// Package watch provides a single-slot, latest-value broadcast cell.
//
// A Value has one writer and any number of readers. Readers take a snapshot
// with Load; intermediate values may be skipped.
package watch

import "sync"

// Value holds the latest T.
type Value[T comparable] struct {
	mu      sync.RWMutex
	current T
	version uint64
}

// New returns a Value holding initial. The initial value is version 0.
func New[T comparable](initial T) *Value[T] {
	return &Value[T]{current: initial}
}

// Load returns the current value.
func (v *Value[T]) Load() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.current
}

// Version counts the changes published so far.
func (v *Value[T]) Version() uint64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.version
}

// Publish stores next if it differs from the current value. It reports
// whether a change was broadcast.
func (v *Value[T]) Publish(next T) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	if next == v.current {
		return false
	}
	v.current = next
	v.version++
	return true
}
