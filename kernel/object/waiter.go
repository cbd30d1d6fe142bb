package object

import (
	"sync"
	"time"

	"github.com/helixos/kernel/kernel/status"
)

// Waiter is the one-shot wakeup primitive a blocked thread sleeps on.
// It is signaled at most once; Wait supports an absolute deadline and
// an interrupt channel.
type Waiter struct {
	ch   chan struct{}
	once sync.Once
}

// NewWaiter creates an unsignaled waiter.
func NewWaiter() *Waiter {
	return &Waiter{ch: make(chan struct{})}
}

// Signal wakes the waiter. Idempotent.
func (w *Waiter) Signal() {
	w.once.Do(func() { close(w.ch) })
}

// Wait blocks until Signal, the absolute deadline (zero means no
// deadline), or an interrupt. A waiter already signaled wins over an
// already-expired deadline.
func (w *Waiter) Wait(deadline time.Time, interrupt <-chan struct{}) status.Status {
	select {
	case <-w.ch:
		return status.OK
	default:
	}

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
	case <-w.ch:
		return status.OK
	case <-timeout:
		return status.ErrTimedOut
	case <-interrupt:
		return status.ErrInternalRetry
	}
}

// WaitStateObserver is the transient Begin/End bracket binding one
// Waiter to one handle's signal state for the duration of a single
// blocking syscall. It is never persisted; End must run on every exit
// path, and is safe even if the object was destroyed mid-wait (the
// returned snapshot then includes SignalHandleClosed).
type WaitStateObserver struct {
	waiter   *Waiter
	tracker  *StateTracker
	watching Signals
}

// Begin registers the observer on t, watching for any bit of watching.
// If a watched bit is already asserted the waiter is signaled at once.
func (o *WaitStateObserver) Begin(w *Waiter, t *StateTracker, watching Signals) {
	o.waiter = w
	o.tracker = t
	o.watching = watching
	t.AddObserver(o)
}

// End unregisters the observer and returns the final signal snapshot.
func (o *WaitStateObserver) End() Signals {
	o.tracker.RemoveObserver(o)
	return o.tracker.Signals()
}

// OnStateChange wakes the waiter when a watched bit asserts. The
// observer stays registered until End so the final snapshot is
// consistent with the registration lifetime.
func (o *WaitStateObserver) OnStateChange(current Signals) bool {
	if current.Intersects(o.watching) {
		o.waiter.Signal()
	}
	return true
}

// OnCancel wakes the waiter unconditionally; current includes
// SignalHandleClosed.
func (o *WaitStateObserver) OnCancel(current Signals) {
	o.waiter.Signal()
}
