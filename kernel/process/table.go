// Package process provides the per-process handle table and the
// process context it belongs to.
//
// The table is a bijection from small integer handle values to live
// handles. Values pack a slot index with a generation counter, so a
// value that has been removed never resolves again even if its slot is
// reused. Every mutating sequence (validate, remove, insert) runs under
// one table-wide lock; no blocking operation is ever issued while that
// lock is held.
package process

import (
	"sync"

	"go.uber.org/zap"

	"github.com/helixos/kernel/internal/infrastructure/logging"
	"github.com/helixos/kernel/internal/infrastructure/monitoring"
	"github.com/helixos/kernel/internal/shared/koid"
	"github.com/helixos/kernel/kernel/object"
	"github.com/helixos/kernel/kernel/rights"
	"github.com/helixos/kernel/kernel/status"
)

// InvalidHandle is the reserved handle value that resolves to nothing.
// Closing it is an idempotent no-op success.
const InvalidHandle uint32 = 0

const (
	slotBits = 16
	slotMask = (1 << slotBits) - 1
)

type slot struct {
	handle *object.Handle
	gen    uint32
	live   bool
}

// Table is one process's handle table.
type Table struct {
	mu      sync.Mutex
	slots   []slot
	free    []uint32
	count   uint32
	limit   uint32
	owner   koid.KOID
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewTable creates a table bounded to limit handles.
func NewTable(owner koid.KOID, limit uint32, log *logging.Logger, metrics *monitoring.Metrics) *Table {
	if log == nil {
		log = logging.NewNop()
	}
	return &Table{
		limit:   limit,
		owner:   owner,
		log:     log,
		metrics: metrics,
	}
}

// Count returns the number of live handles.
func (t *Table) Count() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// HasRoom reports whether n more handles fit under the table's limit.
// Advisory: a concurrent Add can still consume the room.
func (t *Table) HasRoom(n uint32) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count+n <= t.limit
}

// Add inserts a handle and returns its value.
func (t *Table) Add(h *object.Handle) (uint32, status.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.addLocked(h)
}

func (t *Table) addLocked(h *object.Handle) (uint32, status.Status) {
	if t.count >= t.limit {
		return InvalidHandle, status.ErrNoMemory
	}

	var index uint32
	if n := len(t.free); n > 0 {
		index = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		if len(t.slots) >= slotMask {
			return InvalidHandle, status.ErrNoMemory
		}
		t.slots = append(t.slots, slot{})
		index = uint32(len(t.slots) - 1)
	}

	s := &t.slots[index]
	s.handle = h
	s.live = true
	h.SetOwner(t.owner)
	t.count++
	if t.metrics != nil {
		t.metrics.HandlesLive.Inc()
	}
	return pack(index, s.gen), status.OK
}

// Remove removes and returns the handle for value, transferring
// ownership to the caller. The invalid sentinel is a no-op success
// returning a nil handle.
func (t *Table) Remove(value uint32) (*object.Handle, status.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(value)
}

func (t *Table) removeLocked(value uint32) (*object.Handle, status.Status) {
	if value == InvalidHandle {
		return nil, status.OK
	}
	s := t.resolveLocked(value)
	if s == nil {
		return nil, status.ErrBadHandle
	}

	h := s.handle
	s.handle = nil
	s.live = false
	s.gen = (s.gen + 1) & slotMask
	index := value&slotMask - 1
	t.free = append(t.free, index)
	t.count--
	h.SetOwner(koid.Invalid)
	if t.metrics != nil {
		t.metrics.HandlesLive.Dec()
	}
	return h, status.OK
}

// Get returns the handle for value, borrowed: the table retains
// ownership.
func (t *Table) Get(value uint32) (*object.Handle, status.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.resolveLocked(value)
	if s == nil {
		return nil, status.ErrBadHandle
	}
	return s.handle, status.OK
}

// GetWithRights resolves value and checks that the handle carries every
// bit of required. BadHandle and AccessDenied are distinguished so a
// caller can tell "no such capability" from "capability without the
// right".
func (t *Table) GetWithRights(value uint32, required rights.Rights) (object.Dispatcher, status.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.resolveLocked(value)
	if s == nil {
		return nil, status.ErrBadHandle
	}
	if !s.handle.HasRights(required) {
		return nil, status.ErrAccessDenied
	}
	return s.handle.Dispatcher(), status.OK
}

// Duplicate creates a second handle to the same object. requested must
// be rights.SameRights or a subset of the source rights; the source
// must carry the DUPLICATE right. The table is unchanged on failure.
func (t *Table) Duplicate(value uint32, requested rights.Rights) (uint32, status.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.resolveLocked(value)
	if s == nil {
		return InvalidHandle, status.ErrBadHandle
	}
	if !s.handle.HasRights(rights.Duplicate) {
		return InvalidHandle, status.ErrAccessDenied
	}
	newRights, st := resolveRights(requested, s.handle.Rights())
	if st != status.OK {
		return InvalidHandle, st
	}

	dup := s.handle.Dup(newRights)
	newValue, st := t.addLocked(dup)
	if st != status.OK {
		dup.Close()
		return InvalidHandle, st
	}
	return newValue, status.OK
}

// Replace atomically exchanges value for a new handle to the same
// object with the requested rights, closing the source value. The same
// rights rule as Duplicate applies; on failure the source survives.
func (t *Table) Replace(value uint32, requested rights.Rights) (uint32, status.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.resolveLocked(value)
	if s == nil {
		return InvalidHandle, status.ErrBadHandle
	}
	newRights, st := resolveRights(requested, s.handle.Rights())
	if st != status.OK {
		return InvalidHandle, st
	}

	old, st := t.removeLocked(value)
	if st != status.OK {
		t.log.Invariant("replace lost a resolved handle", zap.Uint32("value", value))
		return InvalidHandle, status.ErrBadState
	}
	dup := old.Dup(newRights)
	newValue, st := t.addLocked(dup)
	if st != status.OK {
		// The slot just freed guarantees room; treat failure as a bug.
		t.log.Invariant("replace could not reinsert", zap.Uint32("value", value))
		dup.Close()
		t.restoreLocked(old, value)
		return InvalidHandle, st
	}
	old.Close()
	return newValue, status.OK
}

// Close removes value and releases its object reference.
func (t *Table) Close(value uint32) status.Status {
	h, st := t.Remove(value)
	if st != status.OK {
		return st
	}
	if h != nil {
		h.Close()
	}
	return status.OK
}

// TakeForTransfer atomically removes the listed handles for transfer
// into an outgoing message.
//
// Phase one resolves every value without mutating: unresolved values
// fail BadHandle, a missing TRANSFER right fails AccessDenied, and a
// handle referring to dest itself fails NotSupported unless allowDest
// permits the reply-channel pattern. Phase two removes the values; a
// duplicate value discovered mid-batch undoes every prior removal and
// fails InvalidArgs. Ownership moves to the caller only after every
// removal succeeded.
func (t *Table) TakeForTransfer(values []uint32, dest object.Dispatcher, allowDest bool) ([]*object.Handle, status.Status) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, v := range values {
		s := t.resolveLocked(v)
		if s == nil {
			return nil, status.ErrBadHandle
		}
		if !s.handle.HasRights(rights.Transfer) {
			return nil, status.ErrAccessDenied
		}
		if s.handle.Dispatcher() == dest && !allowDest {
			return nil, status.ErrNotSupported
		}
	}

	taken := make([]*object.Handle, 0, len(values))
	for i, v := range values {
		h, st := t.removeLocked(v)
		if st != status.OK {
			// Same value listed twice in this batch; put everything back.
			for j := i - 1; j >= 0; j-- {
				t.restoreLocked(taken[j], values[j])
			}
			return nil, status.ErrInvalidArgs
		}
		taken = append(taken, h)
	}
	return taken, status.OK
}

// Restore returns handles taken by TakeForTransfer to the table after
// a failed enqueue, reusing the original values where the slots are
// still free.
func (t *Table) Restore(handles []*object.Handle, values []uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, h := range handles {
		t.restoreLocked(h, values[i])
	}
}

// restoreLocked reinserts h, preferring the slot its old value named.
func (t *Table) restoreLocked(h *object.Handle, value uint32) {
	index := value&slotMask - 1
	if int(index) < len(t.slots) && !t.slots[index].live {
		for i, f := range t.free {
			if f == index {
				t.free = append(t.free[:i], t.free[i+1:]...)
				s := &t.slots[index]
				s.handle = h
				s.gen = value >> slotBits
				s.live = true
				h.SetOwner(t.owner)
				t.count++
				if t.metrics != nil {
					t.metrics.HandlesLive.Inc()
				}
				return
			}
		}
	}
	if _, st := t.addLocked(h); st != status.OK {
		t.log.Warn("dropping handle during transfer rollback",
			zap.Uint32("value", value),
			zap.String("status", st.String()))
		h.Close()
	}
}

// resolveLocked returns the live slot for value, or nil.
func (t *Table) resolveLocked(value uint32) *slot {
	index := value & slotMask
	if index == 0 {
		return nil
	}
	index--
	if int(index) >= len(t.slots) {
		return nil
	}
	s := &t.slots[index]
	if !s.live || s.gen != value>>slotBits {
		return nil
	}
	return s
}

// resolveRights applies the duplicate/replace rights rule.
func resolveRights(requested, source rights.Rights) (rights.Rights, status.Status) {
	if requested.IsSame() {
		return source, status.OK
	}
	if !requested.SubsetOf(source) {
		return 0, status.ErrInvalidArgs
	}
	return requested, status.OK
}

func pack(index, gen uint32) uint32 {
	return gen<<slotBits | (index + 1)
}
