package sys

import (
	"github.com/helixos/kernel/kernel/object"
	"github.com/helixos/kernel/kernel/process"
	"github.com/helixos/kernel/kernel/rights"
	"github.com/helixos/kernel/kernel/status"
)

// EventCreate creates an event object and returns a handle to it.
func (k *Kernel) EventCreate(p *process.Process) (uint32, status.Status) {
	ev := object.NewEvent(k.koids.Allocate())
	h := object.NewHandle(ev, rights.DefaultEvent)
	ev.Release()

	value, st := p.Table().Add(h)
	if st != status.OK {
		h.Close()
		return process.InvalidHandle, st
	}
	k.trackObject(object.TypeEvent)
	return value, status.OK
}

// ObjectSignal asserts and deasserts user signals on an object. The
// handle must carry the SIGNAL right, and only user-assertable bits may
// be touched.
func (k *Kernel) ObjectSignal(p *process.Process, value uint32, clear, set object.Signals) status.Status {
	d, st := p.Table().GetWithRights(value, rights.Signal)
	if st != status.OK {
		return st
	}
	if (clear|set)&^object.UserSignals != 0 {
		return status.ErrInvalidArgs
	}
	tracker := d.StateTracker()
	if tracker == nil {
		return status.ErrNotSupported
	}
	tracker.UpdateState(clear, set)
	return status.OK
}
