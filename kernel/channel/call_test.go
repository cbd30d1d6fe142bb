package channel

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixos/kernel/kernel/status"
)

func TestCallReplyRoundTrip(t *testing.T) {
	a, b := newTestPair()

	w, st := a.BeginCall(NewMessage(0, []byte("request"), nil))
	require.Equal(t, status.OK, st)
	require.NotZero(t, w.Txid())

	// Server side: read the request, echo the txid back.
	req, _, _, st := b.Read(1024, 16, 0)
	require.Equal(t, status.OK, st)
	assert.Equal(t, "request", string(req.Data))
	assert.Equal(t, w.Txid(), req.Txid)

	require.Equal(t, status.OK, b.Write(NewMessage(req.Txid, []byte("reply"), nil)))

	st = w.Wait(time.Now().Add(time.Second), nil)
	require.Equal(t, status.OK, st)
	assert.Equal(t, "reply", string(w.Reply().Data))
}

func TestCallTimeout(t *testing.T) {
	a, b := newTestPair()

	w, st := a.BeginCall(NewMessage(0, []byte("request"), nil))
	require.Equal(t, status.OK, st)

	st = w.Wait(time.Now().Add(20*time.Millisecond), nil)
	assert.Equal(t, status.ErrTimedOut, st)

	// The request was delivered exactly once; a retry is a new call,
	// so nothing is duplicated.
	req, _, _, st := b.Read(1024, 16, 0)
	require.Equal(t, status.OK, st)
	assert.Equal(t, "request", string(req.Data))
	_, _, _, st = b.Read(1024, 16, 0)
	assert.Equal(t, status.ErrBadState, st)

	// A reply arriving after the deadline is no longer correlated and
	// falls into the ordinary queue.
	require.Equal(t, status.OK, b.Write(NewMessage(req.Txid, []byte("late"), nil)))
	late, _, _, st := a.Read(1024, 16, 0)
	require.Equal(t, status.OK, st)
	assert.Equal(t, "late", string(late.Data))
}

func TestCallPeerClosed(t *testing.T) {
	t.Run("before the call", func(t *testing.T) {
		a, b := newTestPair()
		b.Release()

		_, st := a.BeginCall(NewMessage(0, []byte("request"), nil))
		assert.Equal(t, status.ErrPeerClosed, st)
	})

	t.Run("while blocked", func(t *testing.T) {
		a, b := newTestPair()

		w, st := a.BeginCall(NewMessage(0, []byte("request"), nil))
		require.Equal(t, status.OK, st)

		done := make(chan status.Status, 1)
		go func() {
			done <- w.Wait(time.Now().Add(time.Second), nil)
		}()

		b.Release()
		assert.Equal(t, status.ErrPeerClosed, <-done)
	})
}

func TestConcurrentCallsNoCrossTalk(t *testing.T) {
	a, b := newTestPair()

	const calls = 16
	waiters := make([]*MessageWaiter, calls)
	for i := 0; i < calls; i++ {
		w, st := a.BeginCall(NewMessage(0, []byte{byte(i)}, nil))
		require.Equal(t, status.OK, st)
		waiters[i] = w
	}

	// Reply in reverse order; each reply must land on its own call.
	reqs := make([]*MessagePacket, calls)
	for i := 0; i < calls; i++ {
		req, _, _, st := b.Read(1024, 16, 0)
		require.Equal(t, status.OK, st)
		reqs[i] = req
	}
	for i := calls - 1; i >= 0; i-- {
		require.Equal(t, status.OK, b.Write(NewMessage(reqs[i].Txid, []byte{reqs[i].Data[0] + 100}, nil)))
	}

	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			st := waiters[i].Wait(time.Now().Add(time.Second), nil)
			assert.Equal(t, status.OK, st)
			assert.Equal(t, byte(i+100), waiters[i].Reply().Data[0])
		}(i)
	}
	wg.Wait()
}

func TestCallInterruptAndResume(t *testing.T) {
	a, b := newTestPair()

	w, st := a.BeginCall(NewMessage(0, []byte("request"), nil))
	require.Equal(t, status.OK, st)

	interrupt := make(chan struct{})
	done := make(chan status.Status, 1)
	go func() {
		done <- w.Wait(time.Now().Add(time.Minute), interrupt)
	}()
	close(interrupt)
	require.Equal(t, status.ErrInternalRetry, <-done)

	// The call survived the interruption: the request is not written
	// again and the reply still correlates on resume.
	req, _, _, st := b.Read(1024, 16, 0)
	require.Equal(t, status.OK, st)
	_, _, _, st = b.Read(1024, 16, 0)
	assert.Equal(t, status.ErrBadState, st)

	require.Equal(t, status.OK, b.Write(NewMessage(req.Txid, []byte("resumed reply"), nil)))

	st = w.Wait(time.Now().Add(time.Second), nil)
	require.Equal(t, status.OK, st)
	assert.Equal(t, "resumed reply", string(w.Reply().Data))
}

func TestCallerCloseCancelsCall(t *testing.T) {
	a, _ := newTestPair()

	w, st := a.BeginCall(NewMessage(0, []byte("request"), nil))
	require.Equal(t, status.OK, st)

	done := make(chan status.Status, 1)
	go func() {
		done <- w.Wait(time.Now().Add(time.Second), nil)
	}()

	a.Release()
	assert.Equal(t, status.ErrCanceled, <-done)
}

func TestTxidsUniqueAcrossOutstandingCalls(t *testing.T) {
	a, _ := newTestPair()

	seen := make(map[uint32]bool)
	for i := 0; i < 64; i++ {
		w, st := a.BeginCall(NewMessage(0, nil, nil))
		require.Equal(t, status.OK, st)
		assert.False(t, seen[w.Txid()])
		seen[w.Txid()] = true
	}
}
