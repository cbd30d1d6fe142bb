package process

import (
	"github.com/helixos/kernel/internal/infrastructure/logging"
	"github.com/helixos/kernel/internal/infrastructure/monitoring"
	"github.com/helixos/kernel/internal/shared/koid"
)

// Process is the explicit per-process context: its identity and its
// handle table. The kernel core never reaches a table through ambient
// state; callers pass the process they act on behalf of.
type Process struct {
	pid   koid.KOID
	name  string
	table *Table
}

// New creates a process context with an empty handle table.
func New(pid koid.KOID, name string, tableLimit uint32, log *logging.Logger, metrics *monitoring.Metrics) *Process {
	return &Process{
		pid:   pid,
		name:  name,
		table: NewTable(pid, tableLimit, log, metrics),
	}
}

// PID returns the process's koid.
func (p *Process) PID() koid.KOID { return p.pid }

// Name returns the process's debug name.
func (p *Process) Name() string { return p.name }

// Table returns the process's handle table.
func (p *Process) Table() *Table { return p.table }
