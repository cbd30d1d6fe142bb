// Package sys is the syscall surface of the kernel core: a library of
// operations taking already-validated, kernel-resident arguments (byte
// buffers, copied handle-value arrays) plus the calling process or
// thread context, and returning one status with out-values.
//
// The dispatch layer above decodes user memory and traps; nothing in
// this package touches user memory or ambient global state. Blocking
// operations accept an absolute deadline (the zero time means no
// deadline) and an interruptible thread context; an interrupted channel
// call parks its continuation on the thread and reports the
// kernel-internal status.ErrInternalRetry, which the dispatch layer
// consumes by re-entering through ChannelCallResume.
package sys
