package object

import (
	"github.com/helixos/kernel/internal/shared/koid"
	"github.com/helixos/kernel/kernel/rights"
)

// Handle pairs a Dispatcher reference with a rights mask. It is the
// unit stored in a process handle table and the only path from user
// code to an object.
//
// Rights are a property of the handle, not of the object: two handles
// to the same dispatcher may carry different rights.
type Handle struct {
	dispatcher Dispatcher
	rights     rights.Rights
	owner      koid.KOID
}

// NewHandle creates a handle holding one new reference to d.
func NewHandle(d Dispatcher, r rights.Rights) *Handle {
	d.Retain()
	return &Handle{dispatcher: d, rights: r}
}

// Dup creates a second handle to the same object with the given
// rights. The caller has already validated the rights against h's.
func (h *Handle) Dup(r rights.Rights) *Handle {
	return NewHandle(h.dispatcher, r)
}

// Dispatcher returns the referenced object.
func (h *Handle) Dispatcher() Dispatcher { return h.dispatcher }

// Rights returns the handle's rights mask.
func (h *Handle) Rights() rights.Rights { return h.rights }

// HasRights reports whether the handle carries every required right.
func (h *Handle) HasRights(required rights.Rights) bool {
	return h.rights.Has(required)
}

// Owner returns the koid of the process whose table holds the handle,
// or koid.Invalid while in transit inside a message.
func (h *Handle) Owner() koid.KOID { return h.owner }

// SetOwner records the owning process; the handle table maintains it.
func (h *Handle) SetOwner(owner koid.KOID) { h.owner = owner }

// Close releases the handle's object reference. The handle must
// already be out of every table and message.
func (h *Handle) Close() {
	h.dispatcher.Release()
}
