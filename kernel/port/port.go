// Package port implements scalable asynchronous event multiplexing: a
// FIFO queue of fixed-shape packets fed either directly by callers or
// by observers armed on other objects' signal state.
package port

import (
	"sync"
	"time"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/helixos/kernel/internal/infrastructure/logging"
	"github.com/helixos/kernel/internal/infrastructure/monitoring"
	"github.com/helixos/kernel/internal/shared/koid"
	"github.com/helixos/kernel/kernel/object"
	"github.com/helixos/kernel/kernel/status"
)

// PacketType tags the origin of a port packet.
type PacketType int

const (
	// PacketTypeUser marks a packet queued directly by a caller.
	PacketTypeUser PacketType = iota
	// PacketTypeSignalOne marks a packet fired by a one-shot observer.
	PacketTypeSignalOne
	// PacketTypeSignalRep marks a packet fired by a repeating observer.
	PacketTypeSignalRep
)

// UserPayloadSize is the fixed user area of a packet.
const UserPayloadSize = 32

// PacketSignal carries the signal snapshot of an observer firing.
type PacketSignal struct {
	// Trigger is the mask the observer was armed with.
	Trigger object.Signals
	// Observed is the live state at the moment of firing.
	Observed object.Signals
}

// Packet is the fixed-shape unit queued on a port.
type Packet struct {
	Key    uint64
	Type   PacketType
	User   [UserPayloadSize]byte
	Signal PacketSignal
}

// queued pairs a packet with the koid of the object whose observer
// fired it, so Cancel can scrub precisely.
type queued struct {
	packet Packet
	source koid.KOID
}

// ObserverOptions selects observer behavior when arming.
type ObserverOptions uint32

const (
	// ObserveOnce converts the observer into a packet on first fire.
	ObserveOnce ObserverOptions = iota
	// ObserveRepeating leaves the observer armed after each fire.
	ObserveRepeating
)

type obsKey struct {
	source koid.KOID
	key    uint64
}

// Port is the multiplexing object.
type Port struct {
	object.Base

	mu        sync.Mutex
	packets   *queue.Queue
	observers map[obsKey]*observation
	note      chan struct{}
	closed    bool
	limit     uint32

	log     *logging.Logger
	metrics *monitoring.Metrics
}

// New creates a port bounded to limit caller-queued packets.
func New(k koid.KOID, limit uint32, log *logging.Logger, metrics *monitoring.Metrics) *Port {
	if log == nil {
		log = logging.NewNop()
	}
	p := &Port{
		packets:   queue.New(),
		observers: make(map[obsKey]*observation),
		note:      make(chan struct{}),
		limit:     limit,
		log:       log,
		metrics:   metrics,
	}
	p.Base.Init(k, koid.Invalid, object.TypePort, p.destroy)
	return p
}

// StateTracker returns nil: ports are dequeued, not waited on.
func (p *Port) StateTracker() *object.StateTracker { return nil }

// QueueUser enqueues a caller-supplied packet, failing ErrNoMemory at
// the configured depth.
func (p *Port) QueueUser(pkt Packet) status.Status {
	pkt.Type = PacketTypeUser

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return status.ErrBadState
	}
	if uint32(p.packets.Length()) >= p.limit {
		return status.ErrNoMemory
	}
	p.enqueueLocked(queued{packet: pkt})
	return status.OK
}

// Dequeue blocks until a packet is available, the absolute deadline
// (zero means no deadline) elapses, or the thread is interrupted.
func (p *Port) Dequeue(deadline time.Time, interrupt <-chan struct{}) (Packet, status.Status) {
	for {
		p.mu.Lock()
		if p.packets.Length() > 0 {
			q := p.packets.Remove().(queued)
			if p.metrics != nil {
				p.metrics.PortPacketsQueued.Dec()
			}
			p.mu.Unlock()
			return q.packet, status.OK
		}
		if p.closed {
			p.mu.Unlock()
			return Packet{}, status.ErrCanceled
		}
		note := p.note
		p.mu.Unlock()

		w := waitNote(note, deadline, interrupt)
		if w != status.OK {
			return Packet{}, w
		}
	}
}

// waitNote sleeps until the note is broadcast, the deadline passes, or
// an interrupt arrives.
func waitNote(note <-chan struct{}, deadline time.Time, interrupt <-chan struct{}) status.Status {
	var timeout <-chan time.Time
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d <= 0 {
			return status.ErrTimedOut
		}
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-note:
		return status.OK
	case <-timeout:
		return status.ErrTimedOut
	case <-interrupt:
		return status.ErrInternalRetry
	}
}

// Arm registers an observer on source's state tracker: when the live
// signal state intersects mask, a packet tagged key is enqueued. A
// one-shot observer converts into its packet; a repeating observer
// stays armed. The port holds a reference on source while armed.
func (p *Port) Arm(options ObserverOptions, source object.Dispatcher, key uint64, mask object.Signals) status.Status {
	tracker := source.StateTracker()
	if tracker == nil {
		return status.ErrNotSupported
	}

	o := &observation{
		port:      p,
		key:       key,
		mask:      mask,
		repeating: options == ObserveRepeating,
		source:    source,
		tracker:   tracker,
	}

	// The holder reference must exist before the observation is
	// reachable through the map, or a racing Cancel could retire it
	// first.
	source.Retain()

	p.mu.Lock()
	k := obsKey{source: source.KOID(), key: key}
	_, exists := p.observers[k]
	rejected := p.closed || exists
	if !rejected {
		p.observers[k] = o
	}
	p.mu.Unlock()

	if rejected {
		source.Release()
		return status.ErrBadState
	}

	// May fire, and for a one-shot even retire, immediately.
	tracker.AddObserver(o)
	return status.OK
}

// Cancel atomically removes any still-armed observer and any queued but
// undequeued packets for (source, key). It succeeds if either existed
// and fails ErrNotFound only if neither did.
func (p *Port) Cancel(source object.Dispatcher, key uint64) status.Status {
	foundObserver := false

	p.mu.Lock()
	k := obsKey{source: source.KOID(), key: key}
	o := p.observers[k]
	delete(p.observers, k)
	p.mu.Unlock()

	if o != nil {
		// Detach from the tracker first so no further fire can race
		// with the queue scrub below.
		o.tracker.RemoveObserver(o)
		o.retire()
		foundObserver = true
	}

	foundPacket := p.scrub(source.KOID(), key)
	if !foundObserver && !foundPacket {
		return status.ErrNotFound
	}
	return status.OK
}

// scrub removes queued signal packets for (source, key), returning
// whether any were found.
func (p *Port) scrub(source koid.KOID, key uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	found := false
	n := p.packets.Length()
	for i := 0; i < n; i++ {
		q := p.packets.Remove().(queued)
		if q.source == source && q.packet.Key == key {
			found = true
			if p.metrics != nil {
				p.metrics.PortPacketsQueued.Dec()
			}
			continue
		}
		p.packets.Add(q)
	}
	return found
}

// enqueueLocked appends and broadcasts to sleepers.
func (p *Port) enqueueLocked(q queued) {
	p.packets.Add(q)
	if p.metrics != nil {
		p.metrics.PortPacketsQueued.Inc()
	}
	close(p.note)
	p.note = make(chan struct{})
}

// queueSignal enqueues an observer-fired packet. Signal packets are
// exempt from the caller-queue depth so arming cannot silently lose
// wakeups; the configured bound applies to QueueUser only.
func (p *Port) queueSignal(source koid.KOID, pkt Packet) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.enqueueLocked(queued{packet: pkt, source: source})
	if p.metrics != nil {
		p.metrics.PortPacketsFired.Inc()
	}
}

// unregister drops the observation from the map if still present.
func (p *Port) unregister(source koid.KOID, key uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.observers, obsKey{source: source, key: key})
}

// destroy tears the port down: every armed observer is detached and
// every sleeper woken.
func (p *Port) destroy() {
	p.mu.Lock()
	p.closed = true
	observers := make([]*observation, 0, len(p.observers))
	for k, o := range p.observers {
		observers = append(observers, o)
		delete(p.observers, k)
	}
	for p.packets.Length() > 0 {
		p.packets.Remove()
		if p.metrics != nil {
			p.metrics.PortPacketsQueued.Dec()
		}
	}
	close(p.note)
	p.note = make(chan struct{})
	p.mu.Unlock()

	for _, o := range observers {
		o.tracker.RemoveObserver(o)
		o.retire()
	}
	p.log.Debug("port destroyed", zap.Uint64("koid", uint64(p.KOID())))
}
