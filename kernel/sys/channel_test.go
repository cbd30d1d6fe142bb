package sys

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixos/kernel/internal/infrastructure/config"
	"github.com/helixos/kernel/kernel/channel"
	"github.com/helixos/kernel/kernel/object"
	"github.com/helixos/kernel/kernel/rights"
	"github.com/helixos/kernel/kernel/status"
)

func newTestKernel(t *testing.T) (*Kernel, *Thread) {
	t.Helper()
	k := New(nil, nil)
	p := k.CreateProcess(t.Name())
	return k, k.CreateThread(p)
}

func TestChannelRoundtrip(t *testing.T) {
	k, th := newTestKernel(t)
	p := th.Process()

	c0, c1, st := k.ChannelCreate(p)
	require.Equal(t, status.OK, st)

	require.Equal(t, status.OK, k.ChannelWrite(p, c0, 0, []byte("ping"), nil))

	txid, data, handles, nb, nh, st := k.ChannelRead(p, c1, 1024, 8, 0)
	require.Equal(t, status.OK, st)
	assert.Zero(t, txid)
	assert.Equal(t, []byte("ping"), data)
	assert.Empty(t, handles)
	assert.Equal(t, uint32(4), nb)
	assert.Zero(t, nh)
}

func TestChannelFIFOOrder(t *testing.T) {
	k, th := newTestKernel(t)
	p := th.Process()

	c0, c1, st := k.ChannelCreate(p)
	require.Equal(t, status.OK, st)

	const n = 16
	for i := 0; i < n; i++ {
		st := k.ChannelWrite(p, c0, 0, []byte(fmt.Sprintf("msg-%02d", i)), nil)
		require.Equal(t, status.OK, st)
	}
	for i := 0; i < n; i++ {
		_, data, _, _, _, st := k.ChannelRead(p, c1, 64, 0, 0)
		require.Equal(t, status.OK, st)
		assert.Equal(t, fmt.Sprintf("msg-%02d", i), string(data))
	}
}

func TestChannelWriteWrongType(t *testing.T) {
	k, th := newTestKernel(t)
	p := th.Process()

	ev, st := k.EventCreate(p)
	require.Equal(t, status.OK, st)

	assert.Equal(t, status.ErrWrongType, k.ChannelWrite(p, ev, 0, []byte("x"), nil))
}

func TestChannelWriteLimits(t *testing.T) {
	k, th := newTestKernel(t)
	p := th.Process()

	c0, _, st := k.ChannelCreate(p)
	require.Equal(t, status.OK, st)

	big := make([]byte, k.cfg.Limits.MaxMessageBytes+1)
	assert.Equal(t, status.ErrOutOfRange, k.ChannelWrite(p, c0, 0, big, nil))

	many := make([]uint32, k.cfg.Limits.MaxMessageHandles+1)
	assert.Equal(t, status.ErrOutOfRange, k.ChannelWrite(p, c0, 0, nil, many))
}

func TestChannelHandleTransfer(t *testing.T) {
	k, th := newTestKernel(t)
	p := th.Process()

	c0, c1, st := k.ChannelCreate(p)
	require.Equal(t, status.OK, st)
	ev, st := k.EventCreate(p)
	require.Equal(t, status.OK, st)

	require.Equal(t, status.OK, k.ChannelWrite(p, c0, 0, []byte("take"), []uint32{ev}))

	// The sender's value is gone the moment the write succeeds.
	_, st = p.Table().Get(ev)
	assert.Equal(t, status.ErrBadHandle, st)

	_, data, handles, _, nh, st := k.ChannelRead(p, c1, 64, 8, 0)
	require.Equal(t, status.OK, st)
	assert.Equal(t, "take", string(data))
	require.Equal(t, uint32(1), nh)
	require.Len(t, handles, 1)

	h, st := p.Table().Get(handles[0])
	require.Equal(t, status.OK, st)
	assert.Equal(t, object.TypeEvent, h.Dispatcher().Type())
}

func TestChannelReadFullTableRetryable(t *testing.T) {
	cfg := config.Default()
	cfg.Limits.MaxHandlesPerProcess = 4
	k := New(cfg, nil)
	p := k.CreateProcess(t.Name())

	c0, c1, st := k.ChannelCreate(p)
	require.Equal(t, status.OK, st)
	ev, st := k.EventCreate(p)
	require.Equal(t, status.OK, st)
	require.Equal(t, status.OK, k.ChannelWrite(p, c0, 0, []byte("cap"), []uint32{ev}))

	// Fill the table back up so the pending handle has no room.
	filler1, st := k.EventCreate(p)
	require.Equal(t, status.OK, st)
	filler2, st := k.EventCreate(p)
	require.Equal(t, status.OK, st)

	// The read fails without consuming the message or its handle.
	_, _, _, _, nh, st := k.ChannelRead(p, c1, 64, 8, 0)
	assert.Equal(t, status.ErrNoMemory, st)
	assert.Equal(t, uint32(1), nh)
	_, _, _, nb, nh, st := k.ChannelRead(p, c1, 0, 0, channel.ReadQuery)
	require.Equal(t, status.OK, st)
	assert.Equal(t, uint32(3), nb)
	assert.Equal(t, uint32(1), nh)

	// After the caller frees table space the retry succeeds.
	require.Equal(t, status.OK, k.HandleClose(p, filler1))
	_, data, handles, _, _, st := k.ChannelRead(p, c1, 64, 8, 0)
	require.Equal(t, status.OK, st)
	assert.Equal(t, "cap", string(data))
	require.Len(t, handles, 1)
	h, st := p.Table().Get(handles[0])
	require.Equal(t, status.OK, st)
	assert.Equal(t, object.TypeEvent, h.Dispatcher().Type())
	require.Equal(t, status.OK, k.HandleClose(p, filler2))
}

func TestChannelWriteDuplicateHandleInBatch(t *testing.T) {
	k, th := newTestKernel(t)
	p := th.Process()

	c0, _, st := k.ChannelCreate(p)
	require.Equal(t, status.OK, st)
	ev, st := k.EventCreate(p)
	require.Equal(t, status.OK, st)

	st = k.ChannelWrite(p, c0, 0, nil, []uint32{ev, ev})
	assert.Equal(t, status.ErrInvalidArgs, st)

	// The handle survives the failed batch, unmoved.
	_, st = p.Table().Get(ev)
	assert.Equal(t, status.OK, st)
}

func TestChannelWritePeerClosed(t *testing.T) {
	k, th := newTestKernel(t)
	p := th.Process()

	c0, c1, st := k.ChannelCreate(p)
	require.Equal(t, status.OK, st)
	ev, st := k.EventCreate(p)
	require.Equal(t, status.OK, st)

	require.Equal(t, status.OK, k.HandleClose(p, c1))

	st = k.ChannelWrite(p, c0, 0, []byte("x"), []uint32{ev})
	assert.Equal(t, status.ErrPeerClosed, st)

	// The transfer batch is rolled back under the original value.
	_, st = p.Table().Get(ev)
	assert.Equal(t, status.OK, st)
}

// serveOne reads one request off value and replies to it, transformed
// by fn. It waits for readability first so it can run concurrently
// with the caller.
func serveOne(t *testing.T, k *Kernel, th *Thread, value uint32, fn func([]byte) []byte) {
	t.Helper()
	p := th.Process()
	_, st := k.ObjectWaitOne(th, value, object.SignalReadable|object.SignalPeerClosed, time.Now().Add(5*time.Second))
	require.Equal(t, status.OK, st)

	txid, data, _, _, _, st := k.ChannelRead(p, value, 1024, 8, 0)
	require.Equal(t, status.OK, st)
	require.NotZero(t, txid)
	require.Equal(t, status.OK, k.ChannelWrite(p, value, txid, fn(data), nil))
}

func TestChannelCallReply(t *testing.T) {
	k, th := newTestKernel(t)
	p := th.Process()

	c0, c1, st := k.ChannelCreate(p)
	require.Equal(t, status.OK, st)

	server := k.CreateThread(p)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		serveOne(t, k, server, c1, func(req []byte) []byte {
			return append([]byte("re:"), req...)
		})
	}()

	res, st := k.ChannelCall(th, c0, []byte("ping"), nil, time.Now().Add(5*time.Second), 1024, 8)
	wg.Wait()
	require.Equal(t, status.OK, st)
	assert.Equal(t, "re:ping", string(res.Data))
	assert.Equal(t, status.OK, res.ReadStatus)
	assert.Equal(t, uint32(7), res.ActualBytes)
}

func TestChannelCallTimeoutNoDuplicateDelivery(t *testing.T) {
	k, th := newTestKernel(t)
	p := th.Process()

	c0, c1, st := k.ChannelCreate(p)
	require.Equal(t, status.OK, st)

	_, st = k.ChannelCall(th, c0, []byte("slow"), nil, time.Now().Add(10*time.Millisecond), 1024, 8)
	require.Equal(t, status.ErrTimedOut, st)

	// Exactly one copy of the request was delivered.
	txid, data, _, _, _, st := k.ChannelRead(p, c1, 64, 0, 0)
	require.Equal(t, status.OK, st)
	assert.Equal(t, "slow", string(data))
	_, _, _, _, _, st = k.ChannelRead(p, c1, 64, 0, 0)
	assert.Equal(t, status.ErrBadState, st)

	// A reply after the timeout is nobody's reply; it lands in the
	// ordinary queue.
	require.Equal(t, status.OK, k.ChannelWrite(p, c1, txid, []byte("late"), nil))
	_, data, _, _, _, st = k.ChannelRead(p, c0, 64, 0, 0)
	require.Equal(t, status.OK, st)
	assert.Equal(t, "late", string(data))
}

func TestChannelCallReplyBufferTooSmall(t *testing.T) {
	k, th := newTestKernel(t)
	p := th.Process()

	c0, c1, st := k.ChannelCreate(p)
	require.Equal(t, status.OK, st)

	server := k.CreateThread(p)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		serveOne(t, k, server, c1, func([]byte) []byte {
			return []byte("a reply larger than the buffer")
		})
	}()

	res, st := k.ChannelCall(th, c0, []byte("q"), nil, time.Now().Add(5*time.Second), 4, 0)
	wg.Wait()
	require.Equal(t, status.ErrCallFailed, st)
	assert.Equal(t, status.ErrBufferTooSmall, res.ReadStatus)
	assert.Equal(t, uint32(30), res.ActualBytes)
	assert.Zero(t, res.ActualHandles)
}

func TestChannelCallPeerClosed(t *testing.T) {
	k, th := newTestKernel(t)
	p := th.Process()

	c0, c1, st := k.ChannelCreate(p)
	require.Equal(t, status.OK, st)
	require.Equal(t, status.OK, k.HandleClose(p, c1))

	_, st = k.ChannelCall(th, c0, []byte("q"), nil, time.Now().Add(time.Second), 64, 0)
	assert.Equal(t, status.ErrPeerClosed, st)
}

func TestChannelCallInterruptAndResume(t *testing.T) {
	k, th := newTestKernel(t)
	p := th.Process()

	c0, c1, st := k.ChannelCreate(p)
	require.Equal(t, status.OK, st)

	type callRet struct {
		res CallResult
		st  status.Status
	}
	done := make(chan callRet, 1)
	go func() {
		res, st := k.ChannelCall(th, c0, []byte("ping"), nil, time.Now().Add(5*time.Second), 1024, 8)
		done <- callRet{res, st}
	}()

	// Let the call block, then interrupt it.
	time.Sleep(20 * time.Millisecond)
	th.Interrupt()
	ret := <-done
	require.Equal(t, status.ErrInternalRetry, ret.st)

	// The request is delivered exactly once; interruption does not
	// rewrite it.
	txid, data, _, _, _, st := k.ChannelRead(p, c1, 64, 0, 0)
	require.Equal(t, status.OK, st)
	assert.Equal(t, "ping", string(data))
	_, _, _, _, _, st = k.ChannelRead(p, c1, 64, 0, 0)
	assert.Equal(t, status.ErrBadState, st)

	go func() {
		res, st := k.ChannelCallResume(th, time.Now().Add(5*time.Second), 1024, 8)
		done <- callRet{res, st}
	}()
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, status.OK, k.ChannelWrite(p, c1, txid, []byte("pong"), nil))

	ret = <-done
	require.Equal(t, status.OK, ret.st)
	assert.Equal(t, "pong", string(ret.res.Data))
}

func TestChannelCallResumeWithoutPending(t *testing.T) {
	k, th := newTestKernel(t)

	_, st := k.ChannelCallResume(th, time.Now().Add(time.Second), 64, 0)
	assert.Equal(t, status.ErrBadState, st)
}

func TestChannelReadQueryAndPeek(t *testing.T) {
	k, th := newTestKernel(t)
	p := th.Process()

	c0, c1, st := k.ChannelCreate(p)
	require.Equal(t, status.OK, st)
	require.Equal(t, status.OK, k.ChannelWrite(p, c0, 0, []byte("abcdef"), nil))

	_, _, _, nb, nh, st := k.ChannelRead(p, c1, 0, 0, channel.ReadQuery)
	require.Equal(t, status.OK, st)
	assert.Equal(t, uint32(6), nb)
	assert.Zero(t, nh)

	_, data, _, _, _, st := k.ChannelRead(p, c1, 64, 0, channel.ReadPeek)
	require.Equal(t, status.OK, st)
	assert.Equal(t, "abcdef", string(data))

	// Still queued after the peek.
	_, data, _, _, _, st = k.ChannelRead(p, c1, 64, 0, 0)
	require.Equal(t, status.OK, st)
	assert.Equal(t, "abcdef", string(data))
}

func TestChannelReadRightsChecked(t *testing.T) {
	k, th := newTestKernel(t)
	p := th.Process()

	c0, c1, st := k.ChannelCreate(p)
	require.Equal(t, status.OK, st)
	require.Equal(t, status.OK, k.ChannelWrite(p, c0, 0, []byte("x"), nil))

	writeOnly, st := k.HandleReplace(p, c1, rights.Write)
	require.Equal(t, status.OK, st)

	_, _, _, _, _, st = k.ChannelRead(p, writeOnly, 64, 0, 0)
	assert.Equal(t, status.ErrAccessDenied, st)
}
