package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{OK, "OK"},
		{ErrBadHandle, "BAD_HANDLE"},
		{ErrAccessDenied, "ACCESS_DENIED"},
		{ErrBufferTooSmall, "BUFFER_TOO_SMALL"},
		{ErrPeerClosed, "PEER_CLOSED"},
		{ErrInternalRetry, "INTERNAL_RETRY"},
		{Status(999), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestStatusTaxonomy(t *testing.T) {
	t.Run("capability errors", func(t *testing.T) {
		for _, s := range []Status{ErrBadHandle, ErrAccessDenied, ErrWrongType} {
			assert.True(t, s.IsCapabilityError(), s.String())
			assert.False(t, s.IsLivenessError(), s.String())
		}
	})

	t.Run("argument errors", func(t *testing.T) {
		for _, s := range []Status{ErrInvalidArgs, ErrOutOfRange, ErrNotSupported} {
			assert.True(t, s.IsArgumentError(), s.String())
			assert.False(t, s.IsCapabilityError(), s.String())
		}
	})

	t.Run("liveness errors", func(t *testing.T) {
		for _, s := range []Status{ErrPeerClosed, ErrCallFailed, ErrCanceled, ErrTimedOut, ErrBadState} {
			assert.True(t, s.IsLivenessError(), s.String())
		}
	})

	t.Run("internal retry never user visible", func(t *testing.T) {
		assert.False(t, ErrInternalRetry.UserVisible())
		assert.True(t, OK.UserVisible())
		assert.True(t, ErrTimedOut.UserVisible())
	})
}
