package sys

import (
	"time"

	"github.com/helixos/kernel/kernel/object"
	"github.com/helixos/kernel/kernel/rights"
	"github.com/helixos/kernel/kernel/status"
)

// ObjectWaitOne blocks until any of the given signals is asserted on
// the object behind value, the deadline elapses, or the object is
// destroyed. The returned snapshot is the final observed signal state;
// a destroyed object yields ErrCanceled with SignalHandleClosed in the
// snapshot.
func (k *Kernel) ObjectWaitOne(t *Thread, value uint32, signals object.Signals, deadline time.Time) (object.Signals, status.Status) {
	d, st := t.Process().Table().GetWithRights(value, rights.Read)
	if st != status.OK {
		return 0, st
	}
	tracker := d.StateTracker()
	if tracker == nil {
		return 0, status.ErrNotSupported
	}

	w := object.NewWaiter()
	var obs object.WaitStateObserver
	obs.Begin(w, tracker, signals)
	ws := w.Wait(deadline, t.interruptChan())
	// End runs on every exit path so the registration never leaks.
	observed := obs.End()

	if observed.Intersects(object.SignalHandleClosed) {
		k.metrics.WaitsCanceled.Inc()
		return observed, status.ErrCanceled
	}
	switch ws {
	case status.OK:
		return observed, status.OK
	case status.ErrInternalRetry:
		// Waits have no side effects; the dispatch layer restarts them.
		t.rearm()
		return observed, ws
	default:
		return observed, status.ErrTimedOut
	}
}

// WaitItem names one handle and signal mask of a multi-object wait;
// Observed is filled with the final snapshot on return.
type WaitItem struct {
	Handle   uint32
	Signals  object.Signals
	Observed object.Signals
}

// ObjectWaitMany blocks until any item's signals are satisfied, the
// deadline elapses, or any watched object is destroyed. All handles
// are validated before any registration. With no items it degrades to
// a deadline sleep.
func (k *Kernel) ObjectWaitMany(t *Thread, items []WaitItem, deadline time.Time) status.Status {
	table := t.Process().Table()

	trackers := make([]*object.StateTracker, len(items))
	for i := range items {
		d, st := table.GetWithRights(items[i].Handle, rights.Read)
		if st != status.OK {
			return st
		}
		tracker := d.StateTracker()
		if tracker == nil {
			return status.ErrNotSupported
		}
		trackers[i] = tracker
	}

	w := object.NewWaiter()
	observers := make([]object.WaitStateObserver, len(items))
	for i := range items {
		observers[i].Begin(w, trackers[i], items[i].Signals)
	}
	ws := w.Wait(deadline, t.interruptChan())

	canceled := false
	for i := range items {
		items[i].Observed = observers[i].End()
		if items[i].Observed.Intersects(object.SignalHandleClosed) {
			canceled = true
		}
	}
	if canceled {
		k.metrics.WaitsCanceled.Inc()
		return status.ErrCanceled
	}
	switch ws {
	case status.OK:
		return status.OK
	case status.ErrInternalRetry:
		t.rearm()
		return ws
	default:
		return status.ErrTimedOut
	}
}
