// Package onceref implements a set-once atomic pointer cell for slots
// that are written exactly once and read frequently without locking.
// In this module it holds a session's scripting engine.
package onceref

import "sync/atomic"

// Cell holds a value of type T that may be set at most once. Reads
// never block; a reader takes a snapshot pointer and can keep using it
// even if nothing else changes it (it never will). Set after the
// first call panics: double-set is an invariant violation, not a
// recoverable error.
type Cell[T any] struct {
	p atomic.Pointer[T]
}

// Set installs v as the cell's value. Panics if already set.
func (c *Cell[T]) Set(v T) {
	if !c.p.CompareAndSwap(nil, &v) {
		panic("onceref: cell already set")
	}
}

// Get returns the stored value and true, or the zero value and false
// if the cell has not been set yet.
func (c *Cell[T]) Get() (T, bool) {
	p := c.p.Load()
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

// IsSet reports whether Set has been called.
func (c *Cell[T]) IsSet() bool {
	return c.p.Load() != nil
}
