package object

// Signals is the per-object signal bitmask tracked by a StateTracker.
type Signals uint32

const (
	// SignalReadable is asserted while an object has pending data.
	SignalReadable Signals = 1 << 0
	// SignalWritable is asserted while an object accepts writes.
	SignalWritable Signals = 1 << 1
	// SignalPeerClosed is asserted, permanently, once the peer of a
	// peered object is destroyed.
	SignalPeerClosed Signals = 1 << 2
	// SignalSignaled is the generic "event fired" bit, asserted and
	// deasserted by holders of the SIGNAL right.
	SignalSignaled Signals = 1 << 3

	// SignalHandleClosed is the reserved "object gone" bit: it is
	// asserted exactly once, when the object is destroyed, and wakes
	// every remaining waiter so no wait can outlive its object. It can
	// never be asserted by a caller.
	SignalHandleClosed Signals = 1 << 23

	// SignalUser0 through SignalUser3 are free for caller protocols.
	SignalUser0 Signals = 1 << 24
	SignalUser1 Signals = 1 << 25
	SignalUser2 Signals = 1 << 26
	SignalUser3 Signals = 1 << 27
)

// UserSignals is the set of bits assertable through the SIGNAL right.
const UserSignals = SignalSignaled | SignalUser0 | SignalUser1 | SignalUser2 | SignalUser3

// Intersects reports whether s and other share any bit.
func (s Signals) Intersects(other Signals) bool {
	return s&other != 0
}
