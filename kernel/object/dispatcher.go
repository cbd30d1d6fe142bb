// Package object defines the kernel object model: the Dispatcher
// interface shared by every kernel object, the Handle capability that
// references one, and the signal StateTracker used by the wait and port
// subsystems.
//
// Reference counting is explicit because destruction has semantics: an
// object is torn down exactly once, when the last holder (handle or
// internal holder such as an armed port observer) releases it, and
// teardown must wake every remaining waiter with the terminal
// SignalHandleClosed bit.
package object

import (
	"sync/atomic"

	"github.com/helixos/kernel/internal/shared/koid"
)

// Type tags the concrete variant of a kernel object.
type Type int

const (
	TypeNone Type = iota
	TypeChannel
	TypePort
	TypeEvent
	TypeProcess
)

// String returns the lowercase type name, used as a metrics label.
func (t Type) String() string {
	switch t {
	case TypeChannel:
		return "channel"
	case TypePort:
		return "port"
	case TypeEvent:
		return "event"
	case TypeProcess:
		return "process"
	default:
		return "none"
	}
}

// Dispatcher is the kernel-side implementation of one kernel object.
//
// Every privileged operation reaches a Dispatcher through a rights
// check on a Handle; type-specific methods are reached by a checked
// downcast (a Go type assertion on the concrete type), never an
// unchecked cast.
type Dispatcher interface {
	// KOID returns the object's globally unique, never-reused ID.
	KOID() koid.KOID
	// RelatedKOID returns the koid of the object's peer, or
	// koid.Invalid for unpeered objects.
	RelatedKOID() koid.KOID
	// Type returns the object's variant tag.
	Type() Type
	// StateTracker returns the object's signal tracker, or nil if the
	// object is not waitable.
	StateTracker() *StateTracker
	// Retain adds one reference.
	Retain()
	// Release drops one reference, destroying the object when the
	// aggregate count reaches zero.
	Release()
}

// Base carries the identity and reference count shared by all
// dispatcher implementations. Concrete types embed it and pass their
// teardown hook to Init.
type Base struct {
	koid    koid.KOID
	related koid.KOID
	typ     Type
	refs    atomic.Int64
	onZero  func()
}

// Init prepares the base with one outstanding reference.
func (b *Base) Init(k, related koid.KOID, typ Type, onZero func()) {
	b.koid = k
	b.related = related
	b.typ = typ
	b.onZero = onZero
	b.refs.Store(1)
}

// KOID returns the object's koid.
func (b *Base) KOID() koid.KOID { return b.koid }

// RelatedKOID returns the peer's koid, or koid.Invalid.
func (b *Base) RelatedKOID() koid.KOID { return b.related }

// Type returns the object's variant tag.
func (b *Base) Type() Type { return b.typ }

// Retain adds one reference.
func (b *Base) Retain() {
	b.refs.Add(1)
}

// Release drops one reference and runs the teardown hook at zero.
// The hook runs exactly once; the count never resurrects.
func (b *Base) Release() {
	if b.refs.Add(-1) == 0 && b.onZero != nil {
		b.onZero()
	}
}
