// Package handles provides a thread-safe table mapping opaque integer handles
// to backend-owned objects.
//
// Runtime backends hand out handles instead of pointers so that callers can
// store, compare and log them freely while the backend keeps sole ownership of
// the objects behind them. Handle 0 is never issued and always means null.
package handles

import (
	"sync"
)

// Table stores objects of type T under monotonically increasing handles.
//
// Thread-safe.
type Table[T any] struct {
	mu      sync.RWMutex
	entries map[uintptr]T
	next    uintptr
}

// NewTable creates an empty table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{
		entries: make(map[uintptr]T),
		next:    1,
	}
}

// Put stores v and returns its handle.
func (t *Table[T]) Put(v T) uintptr {
	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.next
	t.next++
	t.entries[id] = v

	return id
}

// Get returns the object stored under id.
func (t *Table[T]) Get(id uintptr) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	v, ok := t.entries[id]

	return v, ok
}

// Delete removes id and returns the object it referenced.
// Deleting an unknown or null handle reports false and changes nothing.
func (t *Table[T]) Delete(id uintptr) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	v, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}

	return v, ok
}

// Len returns the number of live handles.
// Useful for leak checks in tests.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.entries)
}
