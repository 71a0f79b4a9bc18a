// Package trigger implements the per-session counter store driven by
// CounterChange events: a concurrent {item_id -> i32} map that applies
// Set/Add/Multiply/Divide with wrapping-integer and finite-float
// semantics, and self-prunes entries that settle back to zero.
package trigger
