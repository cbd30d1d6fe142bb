package sys

import (
	"time"

	"github.com/helixos/kernel/kernel/object"
	"github.com/helixos/kernel/kernel/port"
	"github.com/helixos/kernel/kernel/process"
	"github.com/helixos/kernel/kernel/rights"
	"github.com/helixos/kernel/kernel/status"
)

// PortCreate creates a port and returns a handle to it.
func (k *Kernel) PortCreate(p *process.Process) (uint32, status.Status) {
	prt := port.New(k.koids.Allocate(), k.cfg.Limits.PortMaxPackets, k.log, k.metrics)
	h := object.NewHandle(prt, rights.DefaultPort)
	prt.Release()

	value, st := p.Table().Add(h)
	if st != status.OK {
		h.Close()
		return process.InvalidHandle, st
	}
	k.trackObject(object.TypePort)
	return value, status.OK
}

// PortQueue enqueues a caller-supplied packet on the port.
func (k *Kernel) PortQueue(p *process.Process, value uint32, pkt port.Packet) status.Status {
	prt, st := k.getPort(p, value, rights.Write)
	if st != status.OK {
		return st
	}
	return prt.QueueUser(pkt)
}

// PortWait blocks until a packet can be dequeued or the deadline
// elapses.
func (k *Kernel) PortWait(t *Thread, value uint32, deadline time.Time) (port.Packet, status.Status) {
	prt, st := k.getPort(t.Process(), value, rights.Read)
	if st != status.OK {
		return port.Packet{}, st
	}
	pkt, st := prt.Dequeue(deadline, t.interruptChan())
	if st == status.ErrInternalRetry {
		// Dequeue has no side effects until a packet is taken; the
		// dispatch layer restarts it.
		t.rearm()
	}
	return pkt, st
}

// ObjectWaitAsync arms a port observer on the object behind
// sourceValue: when its live signals intersect signals, a packet tagged
// key is enqueued on the port. options selects one-shot or repeating.
func (k *Kernel) ObjectWaitAsync(p *process.Process, sourceValue, portValue uint32, key uint64, signals object.Signals, options port.ObserverOptions) status.Status {
	source, st := p.Table().GetWithRights(sourceValue, rights.Read)
	if st != status.OK {
		return st
	}
	prt, st := k.getPort(p, portValue, rights.Write)
	if st != status.OK {
		return st
	}
	return prt.Arm(options, source, key, signals)
}

// PortCancel removes any armed observer and any queued, undequeued
// packets for (source object, key) atomically. NotFound only if
// neither existed.
func (k *Kernel) PortCancel(p *process.Process, portValue, sourceValue uint32, key uint64) status.Status {
	prt, st := k.getPort(p, portValue, rights.Write)
	if st != status.OK {
		return st
	}
	h, st := p.Table().Get(sourceValue)
	if st != status.OK {
		return st
	}
	return prt.Cancel(h.Dispatcher(), key)
}

// getPort resolves a port handle with the required rights.
func (k *Kernel) getPort(p *process.Process, value uint32, required rights.Rights) (*port.Port, status.Status) {
	d, st := p.Table().GetWithRights(value, required)
	if st != status.OK {
		return nil, st
	}
	prt, ok := d.(*port.Port)
	if !ok {
		return nil, status.ErrWrongType
	}
	return prt, status.OK
}
