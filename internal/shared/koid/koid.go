// Package koid provides kernel object ID allocation.
//
// A koid is a u64 that is globally unique within a kernel instance,
// monotonically increasing, and never reused, even after the object it
// named is destroyed. Peered objects (the two endpoints of a channel)
// take consecutive koids so each can report the other as its related
// koid.
//
// Design principles:
//   - Monotonic: allocation order is observable and stable
//   - Never reused: a koid outlives its object in logs and registries
//   - No ambient state: every allocator is owned by an explicit kernel
//     instance and passed where needed
package koid

import "sync/atomic"

// KOID identifies one kernel object instance.
type KOID uint64

// Invalid is the reserved koid that names no object.
const Invalid KOID = 0

// firstUser is the first allocatable koid; the range below it is
// reserved for fixed kernel entities.
const firstUser = 1024

// Allocator hands out koids. Safe for concurrent use.
type Allocator struct {
	next atomic.Uint64
}

// NewAllocator creates an allocator starting above the reserved range.
func NewAllocator() *Allocator {
	a := &Allocator{}
	a.next.Store(firstUser)
	return a
}

// Allocate returns the next koid.
func (a *Allocator) Allocate() KOID {
	return KOID(a.next.Add(1) - 1)
}

// AllocatePair returns two consecutive koids for a peered object pair.
func (a *Allocator) AllocatePair() (KOID, KOID) {
	first := a.next.Add(2) - 2
	return KOID(first), KOID(first + 1)
}

// IsValid reports whether k names an object.
func (k KOID) IsValid() bool {
	return k != Invalid
}
