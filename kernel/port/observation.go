package port

import (
	"sync/atomic"

	"github.com/helixos/kernel/kernel/object"
)

// observation is one armed (object, key) registration on a port. It is
// an internal holder of the observed object: the reference taken at
// Arm keeps the source alive until the observation retires by firing
// (one-shot), cancellation, object teardown, or port teardown.
type observation struct {
	port      *Port
	key       uint64
	mask      object.Signals
	repeating bool
	source    object.Dispatcher
	tracker   *object.StateTracker
	retired   atomic.Bool
}

// OnStateChange fires a packet when a watched bit asserts. Runs under
// the tracker lock; the port lock nests inside it.
func (o *observation) OnStateChange(current object.Signals) bool {
	if !current.Intersects(o.mask) {
		return true
	}

	pkt := Packet{
		Key:  o.key,
		Type: PacketTypeSignalRep,
		Signal: PacketSignal{
			Trigger:  o.mask,
			Observed: current,
		},
	}
	if !o.repeating {
		pkt.Type = PacketTypeSignalOne
	}
	o.port.queueSignal(o.source.KOID(), pkt)

	if o.repeating {
		return true
	}
	o.port.unregister(o.source.KOID(), o.key)
	o.retireDeferred()
	return false
}

// OnCancel runs when the observed object is destroyed: the observation
// retires without a packet and the pending Cancel/Dequeue semantics
// take over.
func (o *observation) OnCancel(current object.Signals) {
	o.port.unregister(o.source.KOID(), o.key)
	o.retireDeferred()
}

// retire releases the internal holder reference exactly once. Only
// callers holding no tracker or object locks may use it: a last-holder
// release tears the source down, and teardown re-enters those locks.
func (o *observation) retire() {
	if o.retired.CompareAndSwap(false, true) {
		o.source.Release()
	}
}

// retireDeferred retires on a fresh goroutine. The observer callbacks
// run under the source's tracker lock, and when fired from a channel
// write or close, under the pair lock above it; releasing the last
// holder there would re-acquire both during teardown and wedge the
// firing thread.
func (o *observation) retireDeferred() {
	if o.retired.CompareAndSwap(false, true) {
		go o.source.Release()
	}
}
