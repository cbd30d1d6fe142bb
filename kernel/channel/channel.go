package channel

import (
	"sync"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/helixos/kernel/internal/infrastructure/logging"
	"github.com/helixos/kernel/internal/infrastructure/monitoring"
	"github.com/helixos/kernel/internal/shared/koid"
	"github.com/helixos/kernel/kernel/object"
	"github.com/helixos/kernel/kernel/status"
)

// ReadFlags selects channel read behavior.
type ReadFlags uint32

const (
	// ReadMayDiscard drops a pending message that does not fit the
	// caller's buffers instead of leaving it queued.
	ReadMayDiscard ReadFlags = 1 << iota
	// ReadPeek copies the payload out without consuming the message.
	ReadPeek
	// ReadQuery reports the pending message's sizes without consuming
	// it; MayDiscard and Peek are ignored.
	ReadQuery
)

// pairState is the state shared by both endpoints of one channel; a
// single lock makes peer checks and enqueues atomic across the pair.
type pairState struct {
	mu sync.Mutex
}

// Endpoint is one side of a channel.
type Endpoint struct {
	object.Base

	tracker *object.StateTracker
	shared  *pairState

	// Guarded by shared.mu.
	peer     *Endpoint
	messages *queue.Queue
	waiters  map[uint32]*MessageWaiter
	nextTxid uint32
	closed   bool

	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewPair allocates a peered endpoint pair. Each endpoint reports the
// other's koid as its related koid.
func NewPair(ka, kb koid.KOID, log *logging.Logger, metrics *monitoring.Metrics) (*Endpoint, *Endpoint) {
	if log == nil {
		log = logging.NewNop()
	}
	shared := &pairState{}

	a := newEndpoint(ka, kb, shared, log, metrics)
	b := newEndpoint(kb, ka, shared, log, metrics)
	a.peer = b
	b.peer = a

	log.Debug("channel pair created",
		zap.Uint64("koid", uint64(ka)),
		zap.Uint64("peer", uint64(kb)))
	return a, b
}

func newEndpoint(k, related koid.KOID, shared *pairState, log *logging.Logger, metrics *monitoring.Metrics) *Endpoint {
	e := &Endpoint{
		tracker:  object.NewStateTracker(object.SignalWritable),
		shared:   shared,
		messages: queue.New(),
		waiters:  make(map[uint32]*MessageWaiter),
		nextTxid: 1,
		log:      log,
		metrics:  metrics,
	}
	e.Base.Init(k, related, object.TypeChannel, e.destroy)
	return e
}

// StateTracker returns the endpoint's signal tracker.
func (e *Endpoint) StateTracker() *object.StateTracker { return e.tracker }

// Write enqueues msg onto the peer's inbound queue, or delivers it
// directly to a call waiter when the txid correlates with an
// outstanding call on the peer. FIFO order is preserved per writer.
func (e *Endpoint) Write(msg *MessagePacket) status.Status {
	e.shared.mu.Lock()
	defer e.shared.mu.Unlock()

	peer := e.peer
	if peer == nil {
		return status.ErrPeerClosed
	}

	if msg.Txid != 0 {
		if w, ok := peer.waiters[msg.Txid]; ok {
			delete(peer.waiters, msg.Txid)
			w.deliver(msg)
			if e.metrics != nil {
				e.metrics.MessagesWritten.Inc()
				e.metrics.CallsInFlight.Dec()
			}
			return status.OK
		}
	}

	peer.messages.Add(msg)
	peer.tracker.UpdateState(0, object.SignalReadable)
	if e.metrics != nil {
		e.metrics.MessagesWritten.Inc()
		e.metrics.MessagesQueued.Inc()
	}
	return status.OK
}

// Read dequeues the oldest pending message.
//
// actualBytes and actualHandles always report the pending message's
// real sizes. Undersized caller buffers yield ErrBufferTooSmall, with
// the message retained unless ReadMayDiscard is set. An empty queue
// yields ErrBadState while the peer lives and ErrPeerClosed after it
// is gone.
func (e *Endpoint) Read(maxBytes, maxHandles uint32, flags ReadFlags) (msg *MessagePacket, actualBytes, actualHandles uint32, st status.Status) {
	if flags&ReadPeek != 0 && flags&ReadMayDiscard != 0 {
		return nil, 0, 0, status.ErrInvalidArgs
	}

	e.shared.mu.Lock()
	defer e.shared.mu.Unlock()

	if e.messages.Length() == 0 {
		if e.peer == nil {
			return nil, 0, 0, status.ErrPeerClosed
		}
		return nil, 0, 0, status.ErrBadState
	}

	front := e.messages.Peek().(*MessagePacket)
	actualBytes = front.NumBytes()
	actualHandles = front.NumHandles()

	if flags&ReadQuery != 0 {
		return nil, actualBytes, actualHandles, status.OK
	}

	if actualBytes > maxBytes || actualHandles > maxHandles {
		if flags&ReadMayDiscard != 0 {
			e.dequeueLocked().Discard()
		}
		return nil, actualBytes, actualHandles, status.ErrBufferTooSmall
	}

	if flags&ReadPeek != 0 {
		data := make([]byte, len(front.Data))
		copy(data, front.Data)
		return &MessagePacket{Txid: front.Txid, Data: data}, actualBytes, actualHandles, status.OK
	}

	return e.dequeueLocked(), actualBytes, actualHandles, status.OK
}

// dequeueLocked pops the front message and maintains SignalReadable.
func (e *Endpoint) dequeueLocked() *MessagePacket {
	msg := e.messages.Remove().(*MessagePacket)
	if e.messages.Length() == 0 {
		e.tracker.UpdateState(object.SignalReadable, 0)
	}
	if e.metrics != nil {
		e.metrics.MessagesQueued.Dec()
	}
	return msg
}

// destroy runs when the last reference drops: it detaches from the
// peer, asserts PeerClosed there, fails every outstanding call on both
// sides, and releases any queued messages.
func (e *Endpoint) destroy() {
	e.shared.mu.Lock()

	e.closed = true
	peer := e.peer
	e.peer = nil

	for e.messages.Length() > 0 {
		e.dequeueLocked().Discard()
	}

	// Calls issued from this endpoint can never complete now.
	for txid, w := range e.waiters {
		delete(e.waiters, txid)
		w.fail(status.ErrCanceled)
		if e.metrics != nil {
			e.metrics.CallsInFlight.Dec()
		}
	}

	if peer != nil {
		peer.peer = nil
		// Calls issued from the peer will never get a reply.
		for txid, w := range peer.waiters {
			delete(peer.waiters, txid)
			w.fail(status.ErrPeerClosed)
			if e.metrics != nil {
				e.metrics.CallsInFlight.Dec()
			}
		}
		peer.tracker.UpdateState(object.SignalWritable, object.SignalPeerClosed)
	}
	e.shared.mu.Unlock()

	e.tracker.Cancel()
	e.log.Debug("channel endpoint destroyed", zap.Uint64("koid", uint64(e.KOID())))
}
