// Package rights defines the capability rights bitmask attached to
// handles.
//
// Rights are a property of a handle, not of the object it references:
// the same object may be referenced concurrently by handles carrying
// different rights, possibly in different processes. Across duplicate,
// replace, and transfer, resulting rights are always a subset of the
// source rights unless the caller passes the SameRights sentinel.
package rights

// Rights is a bitmask limiting which operations a handle may invoke.
type Rights uint32

// None grants nothing.
const None Rights = 0

const (
	// Read allows reading object state, including waiting on signals.
	Read Rights = 1 << iota
	// Write allows mutating object state.
	Write
	// Duplicate allows creating additional handles to the object.
	Duplicate
	// Transfer allows moving the handle to another process via a channel.
	Transfer
	// Execute allows mapping object contents executable.
	Execute
	// Map allows mapping object contents into an address space.
	Map
	// Signal allows asserting and deasserting user signals.
	Signal
	// Enumerate allows enumerating child objects.
	Enumerate

	// SameRights is a sentinel requesting an exact copy of the source
	// rights in duplicate/replace; it is never stored on a handle.
	SameRights Rights = 1 << 31
)

// Default rights granted by object creation.
const (
	DefaultChannel = Read | Write | Transfer | Duplicate
	DefaultPort    = Read | Write | Duplicate
	DefaultEvent   = Read | Write | Signal | Duplicate | Transfer
)

// Has reports whether r contains every bit of required.
func (r Rights) Has(required Rights) bool {
	return r&required == required
}

// SubsetOf reports whether every bit of r is present in other.
func (r Rights) SubsetOf(other Rights) bool {
	return r&^other == 0
}

// IsSame reports whether r is the SameRights sentinel.
func (r Rights) IsSame() bool {
	return r == SameRights
}
