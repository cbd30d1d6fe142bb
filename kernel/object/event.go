package object

import "github.com/helixos/kernel/internal/shared/koid"

// Event is the simplest waitable object: a bare StateTracker whose
// SignalSignaled and user bits are driven through the SIGNAL right.
type Event struct {
	Base
	tracker *StateTracker
}

// NewEvent creates an event with no signals asserted.
func NewEvent(k koid.KOID) *Event {
	e := &Event{tracker: NewStateTracker(0)}
	e.Base.Init(k, koid.Invalid, TypeEvent, e.destroy)
	return e
}

// StateTracker returns the event's signal tracker.
func (e *Event) StateTracker() *StateTracker { return e.tracker }

func (e *Event) destroy() {
	e.tracker.Cancel()
}
