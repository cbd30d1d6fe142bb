package sys

import (
	"github.com/helixos/kernel/kernel/process"
	"github.com/helixos/kernel/kernel/rights"
	"github.com/helixos/kernel/kernel/status"
)

// HandleClose closes a handle value. Closing the invalid sentinel is an
// idempotent no-op success; closing an already-closed or never-issued
// value fails BadHandle.
func (k *Kernel) HandleClose(p *process.Process, value uint32) status.Status {
	return p.Table().Close(value)
}

// HandleDuplicate creates a second handle value for the same object.
// requested must be rights.SameRights or a subset of the source's
// rights; the source must carry the DUPLICATE right.
func (k *Kernel) HandleDuplicate(p *process.Process, value uint32, requested rights.Rights) (uint32, status.Status) {
	return p.Table().Duplicate(value, requested)
}

// HandleReplace exchanges value for a new handle with the requested
// rights, closing the source atomically on success.
func (k *Kernel) HandleReplace(p *process.Process, value uint32, requested rights.Rights) (uint32, status.Status) {
	return p.Table().Replace(value, requested)
}
