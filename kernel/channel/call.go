package channel

import (
	"sync"
	"time"

	"github.com/helixos/kernel/kernel/object"
	"github.com/helixos/kernel/kernel/status"
)

// MessageWaiter is the per-call continuation record of one synchronous
// channel call: its correlation txid and the slot the reply lands in.
//
// When the calling thread is interrupted mid-wait, the waiter stays
// registered on the endpoint and is parked on the thread, so a resume
// entry point can complete the same logical call later without losing
// or duplicating the written request.
type MessageWaiter struct {
	ep     *Endpoint
	txid   uint32
	waiter *object.Waiter

	mu     sync.Mutex
	result status.Status
	reply  *MessagePacket
}

// Txid returns the call's correlation ID.
func (w *MessageWaiter) Txid() uint32 { return w.txid }

// BeginCall allocates a correlation txid for msg, registers the reply
// waiter on e, and writes msg to the peer. On failure nothing is
// registered and msg is untouched, so the caller can return the
// transferred handles to the sender.
func (e *Endpoint) BeginCall(msg *MessagePacket) (*MessageWaiter, status.Status) {
	e.shared.mu.Lock()
	defer e.shared.mu.Unlock()

	peer := e.peer
	if peer == nil {
		return nil, status.ErrPeerClosed
	}

	// Replies route to the waiter registered under the txid on this
	// endpoint; skip zero and txids of still-outstanding calls.
	txid := e.nextTxid
	for {
		if txid == 0 {
			txid++
		}
		if _, busy := e.waiters[txid]; !busy {
			break
		}
		txid++
	}
	e.nextTxid = txid + 1

	w := &MessageWaiter{
		ep:     e,
		txid:   txid,
		waiter: object.NewWaiter(),
	}
	msg.Txid = txid
	e.waiters[txid] = w

	peer.messages.Add(msg)
	peer.tracker.UpdateState(0, object.SignalReadable)
	if e.metrics != nil {
		e.metrics.MessagesWritten.Inc()
		e.metrics.MessagesQueued.Inc()
		e.metrics.CallsInFlight.Inc()
	}
	return w, status.OK
}

// Wait blocks for the correlated reply, peer closure, the deadline, or
// an interrupt.
//
// ErrTimedOut unregisters the call: the request stays delivered, a
// retry is a new call under a new txid, and a late reply falls into
// the ordinary message queue. ErrInternalRetry leaves the call
// registered for the resume path. On OK the outcome recorded by the
// delivery path (OK, ErrPeerClosed, ErrCanceled) is returned.
func (w *MessageWaiter) Wait(deadline time.Time, interrupt <-chan struct{}) status.Status {
	st := w.waiter.Wait(deadline, interrupt)
	switch st {
	case status.OK:
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.result

	case status.ErrInternalRetry:
		return st

	default: // deadline
		w.ep.shared.mu.Lock()
		_, registered := w.ep.waiters[w.txid]
		if registered {
			delete(w.ep.waiters, w.txid)
			if w.ep.metrics != nil {
				w.ep.metrics.CallsInFlight.Dec()
			}
		}
		w.ep.shared.mu.Unlock()
		if !registered {
			// The reply raced the deadline; the call completed.
			w.mu.Lock()
			defer w.mu.Unlock()
			return w.result
		}
		if w.ep.metrics != nil {
			w.ep.metrics.CallTimeouts.Inc()
		}
		return status.ErrTimedOut
	}
}

// Reply returns the delivered reply after a successful Wait.
func (w *MessageWaiter) Reply() *MessagePacket {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reply
}

// deliver hands the correlated reply to the waiter. Called with the
// pair lock held, after the waiter was unregistered.
func (w *MessageWaiter) deliver(msg *MessagePacket) {
	w.mu.Lock()
	w.result = status.OK
	w.reply = msg
	w.mu.Unlock()
	w.waiter.Signal()
}

// fail completes the call without a reply. Called with the pair lock
// held, after the waiter was unregistered.
func (w *MessageWaiter) fail(st status.Status) {
	w.mu.Lock()
	w.result = st
	w.mu.Unlock()
	w.waiter.Signal()
}
