package object

import "sync"

// Observer is notified of signal state changes on one StateTracker.
//
// Callbacks run under the tracker's lock; implementations may take
// their own locks (the port lock nests inside the tracker lock) but
// must never call back into the tracker.
type Observer interface {
	// OnStateChange is called with the current signal state whenever it
	// changes, and once at registration with the initial state.
	// Returning false removes the observer from the tracker.
	OnStateChange(current Signals) bool
	// OnCancel is called when the object is being destroyed; the state
	// includes SignalHandleClosed. The observer is removed afterwards.
	OnCancel(current Signals)
}

// StateTracker holds one object's signal bitmask and the observers
// armed on it. Safe for concurrent use from any process holding a
// handle to the object; it is independent of every handle table.
type StateTracker struct {
	mu        sync.Mutex
	signals   Signals
	canceled  bool
	observers []Observer
}

// NewStateTracker creates a tracker with the given initial signals.
func NewStateTracker(initial Signals) *StateTracker {
	return &StateTracker{signals: initial}
}

// Signals returns the current signal state.
func (st *StateTracker) Signals() Signals {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.signals
}

// UpdateState clears then sets signal bits, notifying observers if the
// state changed. After Cancel it is a no-op; the terminal state is
// final.
func (st *StateTracker) UpdateState(clear, set Signals) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.canceled {
		return
	}

	next := (st.signals &^ clear) | set
	if next == st.signals {
		return
	}
	st.signals = next
	st.notifyLocked()
}

// AddObserver registers o and delivers the current state immediately,
// so a condition that already holds wakes the observer without a
// window. If the tracker is already canceled the observer only
// receives OnCancel and is not registered.
func (st *StateTracker) AddObserver(o Observer) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.canceled {
		o.OnCancel(st.signals)
		return
	}
	if !o.OnStateChange(st.signals) {
		return
	}
	st.observers = append(st.observers, o)
}

// RemoveObserver unregisters o. Returns false if o was not registered
// (it may have removed itself or been canceled already).
func (st *StateTracker) RemoveObserver(o Observer) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	for i, existing := range st.observers {
		if existing == o {
			st.observers = append(st.observers[:i], st.observers[i+1:]...)
			return true
		}
	}
	return false
}

// Cancel marks the object gone: asserts SignalHandleClosed, delivers
// OnCancel to every remaining observer, and drops them. All later
// AddObserver calls observe the terminal state immediately, so no wait
// can block past destruction.
func (st *StateTracker) Cancel() {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.canceled {
		return
	}
	st.canceled = true
	st.signals |= SignalHandleClosed

	observers := st.observers
	st.observers = nil
	for _, o := range observers {
		o.OnCancel(st.signals)
	}
}

// notifyLocked delivers the current state to every observer, dropping
// those that ask to be removed.
func (st *StateTracker) notifyLocked() {
	kept := st.observers[:0]
	for _, o := range st.observers {
		if o.OnStateChange(st.signals) {
			kept = append(kept, o)
		}
	}
	st.observers = kept
}
