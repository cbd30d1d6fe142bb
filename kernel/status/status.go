// Package status defines the canonical result enumeration returned by
// every kernel operation.
//
// The kernel never panics or returns Go errors across its boundary for
// user-reachable inputs; each operation yields exactly one Status. The
// values fall into four groups:
//   - Capability errors: BadHandle, AccessDenied, WrongType
//   - Argument errors: InvalidArgs, OutOfRange, NotSupported
//   - Resource errors: NoMemory
//   - Liveness errors: PeerClosed, CallFailed, Canceled, TimedOut, BadState
//
// InternalRetry is kernel-internal: it tells the dispatch layer that a
// blocking call was interrupted and must be resumed, and is never
// surfaced to user code.
package status

// Status is the result of a kernel operation.
type Status int

const (
	// OK indicates success.
	OK Status = iota
	// ErrBadHandle indicates a handle value that does not resolve in the
	// calling process's handle table.
	ErrBadHandle
	// ErrAccessDenied indicates the handle resolved but lacks a required right.
	ErrAccessDenied
	// ErrInvalidArgs indicates a malformed argument detected before any mutation.
	ErrInvalidArgs
	// ErrWrongType indicates the capability exists but refers to an object
	// of a different kind than the operation expects.
	ErrWrongType
	// ErrNotSupported indicates the object cannot perform the operation.
	ErrNotSupported
	// ErrOutOfRange indicates a numeric argument outside its valid range.
	ErrOutOfRange
	// ErrNoMemory indicates allocation failure or a configured resource
	// bound was reached.
	ErrNoMemory
	// ErrTimedOut indicates a blocking operation reached its deadline.
	ErrTimedOut
	// ErrBufferTooSmall indicates caller buffers are smaller than the
	// pending data; actual sizes are reported through out-values.
	ErrBufferTooSmall
	// ErrPeerClosed indicates the remote endpoint of a peered object is gone.
	ErrPeerClosed
	// ErrCallFailed indicates a channel call wrote its request but the
	// reply could not be delivered to the caller.
	ErrCallFailed
	// ErrCanceled indicates the watched object was destroyed while a
	// blocking wait was outstanding.
	ErrCanceled
	// ErrBadState indicates the object cannot satisfy the operation in its
	// current state (for example, reading an empty channel).
	ErrBadState
	// ErrNotFound indicates the named registration or entry does not exist.
	ErrNotFound
	// ErrInternalRetry is kernel-internal: a blocking call was interrupted
	// and its continuation is parked on the calling thread. The dispatch
	// layer consumes it and re-enters via the resume entry point.
	ErrInternalRetry
)

var names = map[Status]string{
	OK:                "OK",
	ErrBadHandle:      "BAD_HANDLE",
	ErrAccessDenied:   "ACCESS_DENIED",
	ErrInvalidArgs:    "INVALID_ARGS",
	ErrWrongType:      "WRONG_TYPE",
	ErrNotSupported:   "NOT_SUPPORTED",
	ErrOutOfRange:     "OUT_OF_RANGE",
	ErrNoMemory:       "NO_MEMORY",
	ErrTimedOut:       "TIMED_OUT",
	ErrBufferTooSmall: "BUFFER_TOO_SMALL",
	ErrPeerClosed:     "PEER_CLOSED",
	ErrCallFailed:     "CALL_FAILED",
	ErrCanceled:       "CANCELED",
	ErrBadState:       "BAD_STATE",
	ErrNotFound:       "NOT_FOUND",
	ErrInternalRetry:  "INTERNAL_RETRY",
}

// String returns the canonical name of the status.
func (s Status) String() string {
	if name, ok := names[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// IsOK reports whether the status indicates success.
func (s Status) IsOK() bool {
	return s == OK
}

// IsCapabilityError reports whether the status is a capability error:
// the caller presented no usable capability for the operation.
func (s Status) IsCapabilityError() bool {
	switch s {
	case ErrBadHandle, ErrAccessDenied, ErrWrongType:
		return true
	}
	return false
}

// IsArgumentError reports whether the status is an argument error,
// detected eagerly before any mutation.
func (s Status) IsArgumentError() bool {
	switch s {
	case ErrInvalidArgs, ErrOutOfRange, ErrNotSupported:
		return true
	}
	return false
}

// IsLivenessError reports whether the status arose from a race with
// concurrent object lifecycle rather than a caller mistake.
func (s Status) IsLivenessError() bool {
	switch s {
	case ErrPeerClosed, ErrCallFailed, ErrCanceled, ErrTimedOut, ErrBadState:
		return true
	}
	return false
}

// UserVisible reports whether the status may cross the syscall boundary.
func (s Status) UserVisible() bool {
	return s != ErrInternalRetry
}
