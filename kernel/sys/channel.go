package sys

import (
	"time"

	"go.uber.org/zap"

	"github.com/helixos/kernel/kernel/channel"
	"github.com/helixos/kernel/kernel/object"
	"github.com/helixos/kernel/kernel/process"
	"github.com/helixos/kernel/kernel/rights"
	"github.com/helixos/kernel/kernel/status"
)

// ChannelCreate allocates a peered channel pair and returns two handle
// values in p's table.
func (k *Kernel) ChannelCreate(p *process.Process) (uint32, uint32, status.Status) {
	ka, kb := k.koids.AllocatePair()
	a, b := channel.NewPair(ka, kb, k.log, k.metrics)
	ha := object.NewHandle(a, rights.DefaultChannel)
	hb := object.NewHandle(b, rights.DefaultChannel)
	a.Release()
	b.Release()

	va, st := p.Table().Add(ha)
	if st != status.OK {
		ha.Close()
		hb.Close()
		return process.InvalidHandle, process.InvalidHandle, st
	}
	vb, st := p.Table().Add(hb)
	if st != status.OK {
		p.Table().Close(va)
		hb.Close()
		return process.InvalidHandle, process.InvalidHandle, st
	}
	k.trackObject(object.TypeChannel)
	k.trackObject(object.TypeChannel)
	return va, vb, status.OK
}

// ChannelWrite writes one message to the endpoint behind value,
// transferring the listed handles atomically. A nonzero txid marks the
// message as the reply to the in-flight call it was read from. A
// failed enqueue returns every handle to the sender under its original
// value.
func (k *Kernel) ChannelWrite(p *process.Process, value uint32, txid uint32, data []byte, handleValues []uint32) status.Status {
	if st := k.checkMessageLimits(data, handleValues); st != status.OK {
		return st
	}

	d, st := p.Table().GetWithRights(value, rights.Write)
	if st != status.OK {
		return st
	}
	ep, ok := d.(*channel.Endpoint)
	if !ok {
		return status.ErrWrongType
	}

	taken, st := p.Table().TakeForTransfer(handleValues, ep, k.cfg.Limits.AllowReplyChannelTransfer)
	if st != status.OK {
		return st
	}

	msg := channel.NewMessage(txid, data, taken)
	if st := ep.Write(msg); st != status.OK {
		p.Table().Restore(msg.TakeHandles(), handleValues)
		return st
	}
	return status.OK
}

// ChannelRead dequeues the oldest pending message into caller buffers.
// The byte payload is produced before handle values are materialized in
// the table, so a partial failure is observable in that order. A
// nonzero txid identifies a call request awaiting a reply with the
// same txid.
func (k *Kernel) ChannelRead(p *process.Process, value uint32, maxBytes, maxHandles uint32, flags channel.ReadFlags) (txid uint32, data []byte, handleValues []uint32, actualBytes, actualHandles uint32, st status.Status) {
	d, st := p.Table().GetWithRights(value, rights.Read)
	if st != status.OK {
		return 0, nil, nil, 0, 0, st
	}
	ep, ok := d.(*channel.Endpoint)
	if !ok {
		return 0, nil, nil, 0, 0, status.ErrWrongType
	}

	// A consuming read materializes the message's handles in the table.
	// Check capacity against the pending message first, so a full table
	// fails the read retryably instead of destroying the transferred
	// capabilities.
	if flags&(channel.ReadPeek|channel.ReadQuery) == 0 {
		if _, _, pending, qst := ep.Read(0, 0, channel.ReadQuery); qst == status.OK && !p.Table().HasRoom(pending) {
			return 0, nil, nil, 0, pending, status.ErrNoMemory
		}
	}

	msg, actualBytes, actualHandles, st := ep.Read(maxBytes, maxHandles, flags)
	if st != status.OK || msg == nil {
		return 0, nil, nil, actualBytes, actualHandles, st
	}

	txid = msg.Txid
	data = msg.Data
	for _, h := range msg.TakeHandles() {
		v, ast := p.Table().Add(h)
		if ast != status.OK {
			k.log.Warn("dropping transferred handle on read",
				zap.Uint64("koid", uint64(h.Dispatcher().KOID())),
				zap.String("status", ast.String()))
			h.Close()
			continue
		}
		handleValues = append(handleValues, v)
	}
	return txid, data, handleValues, actualBytes, actualHandles, status.OK
}

// CallResult carries the out-values of ChannelCall and
// ChannelCallResume. ReadStatus distinguishes the reply-read failure
// behind ErrCallFailed from the call's own failure; ActualBytes and
// ActualHandles always report the reply's real sizes once one arrived.
type CallResult struct {
	Data          []byte
	Handles       []uint32
	ActualBytes   uint32
	ActualHandles uint32
	ReadStatus    status.Status
}

// ChannelCall writes a request and blocks for the correlated reply,
// peer closure, deadline expiry, or interruption. Exactly one reply
// corresponds to one call; concurrent calls on the same endpoint do
// not cross-talk. An interrupted call parks its continuation on the
// thread and reports ErrInternalRetry for ChannelCallResume.
func (k *Kernel) ChannelCall(t *Thread, value uint32, data []byte, handleValues []uint32, deadline time.Time, maxBytes, maxHandles uint32) (CallResult, status.Status) {
	var res CallResult
	if t.parked() {
		return res, status.ErrBadState
	}
	if st := k.checkMessageLimits(data, handleValues); st != status.OK {
		return res, st
	}

	p := t.Process()
	d, st := p.Table().GetWithRights(value, rights.Write|rights.Read)
	if st != status.OK {
		return res, st
	}
	ep, ok := d.(*channel.Endpoint)
	if !ok {
		return res, status.ErrWrongType
	}

	taken, st := p.Table().TakeForTransfer(handleValues, ep, k.cfg.Limits.AllowReplyChannelTransfer)
	if st != status.OK {
		return res, st
	}

	msg := channel.NewMessage(0, data, taken)
	w, st := ep.BeginCall(msg)
	if st != status.OK {
		p.Table().Restore(msg.TakeHandles(), handleValues)
		return res, st
	}
	return k.finishCall(t, w, deadline, maxBytes, maxHandles)
}

// ChannelCallResume completes a call whose thread was interrupted
// mid-wait. The request is not rewritten; the original correlation
// holds.
func (k *Kernel) ChannelCallResume(t *Thread, deadline time.Time, maxBytes, maxHandles uint32) (CallResult, status.Status) {
	w := t.unpark()
	if w == nil {
		return CallResult{}, status.ErrBadState
	}
	return k.finishCall(t, w, deadline, maxBytes, maxHandles)
}

// finishCall is the epilogue shared by the immediate and resumed call
// paths: wait, then read out and classify the reply.
func (k *Kernel) finishCall(t *Thread, w *channel.MessageWaiter, deadline time.Time, maxBytes, maxHandles uint32) (CallResult, status.Status) {
	var res CallResult

	st := w.Wait(deadline, t.interruptChan())
	switch st {
	case status.ErrInternalRetry:
		t.park(w)
		t.rearm()
		return res, st
	case status.OK:
	default:
		// TimedOut, PeerClosed, or Canceled, as-is.
		return res, st
	}

	p := t.Process()
	reply := w.Reply()
	res.ActualBytes = reply.NumBytes()
	res.ActualHandles = reply.NumHandles()

	if res.ActualBytes > maxBytes || res.ActualHandles > maxHandles {
		reply.Discard()
		res.ReadStatus = status.ErrBufferTooSmall
		return res, status.ErrCallFailed
	}

	res.Data = reply.Data
	for _, h := range reply.TakeHandles() {
		v, ast := p.Table().Add(h)
		if ast != status.OK {
			h.Close()
			res.ReadStatus = ast
			return res, status.ErrCallFailed
		}
		res.Handles = append(res.Handles, v)
	}
	res.ReadStatus = status.OK
	return res, status.OK
}

// checkMessageLimits enforces the configured message bounds.
func (k *Kernel) checkMessageLimits(data []byte, handleValues []uint32) status.Status {
	if uint32(len(data)) > k.cfg.Limits.MaxMessageBytes {
		return status.ErrOutOfRange
	}
	if uint32(len(handleValues)) > k.cfg.Limits.MaxMessageHandles {
		return status.ErrOutOfRange
	}
	return status.OK
}
