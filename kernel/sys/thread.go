package sys

import (
	"sync"

	"github.com/helixos/kernel/kernel/channel"
	"github.com/helixos/kernel/kernel/process"
)

// Thread is the per-thread syscall context. It carries the interrupt
// line a blocked operation watches and the continuation record of an
// interrupted channel call awaiting resume.
type Thread struct {
	proc *process.Process

	mu        sync.Mutex
	interrupt chan struct{}
	stopped   bool
	cont      *channel.MessageWaiter
}

// CreateThread creates a thread context in p.
func (k *Kernel) CreateThread(p *process.Process) *Thread {
	return &Thread{
		proc:      p,
		interrupt: make(chan struct{}),
	}
}

// Process returns the thread's process.
func (t *Thread) Process() *process.Process { return t.proc }

// Interrupt wakes the thread out of any blocking operation it is in.
// The interrupted operation reports status.ErrInternalRetry to the
// dispatch layer; a channel call additionally parks its continuation.
func (t *Thread) Interrupt() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.stopped {
		t.stopped = true
		close(t.interrupt)
	}
}

// interruptChan returns the line the current blocking wait selects on.
func (t *Thread) interruptChan() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.interrupt
}

// rearm consumes a delivered interrupt so the next blocking operation
// (typically the resume) can sleep again.
func (t *Thread) rearm() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		t.stopped = false
		t.interrupt = make(chan struct{})
	}
}

// park stores an in-flight call continuation across syscalls.
func (t *Thread) park(w *channel.MessageWaiter) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cont = w
}

// unpark takes the parked continuation, if any.
func (t *Thread) unpark() *channel.MessageWaiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	w := t.cont
	t.cont = nil
	return w
}

// parked reports whether a continuation is pending without taking it.
func (t *Thread) parked() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cont != nil
}
