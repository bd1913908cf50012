package rpcerr

import (
	"context"
	"io"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{Violationf("bad tag %d", 99), "protocol_violation"},
		{errors.Wrap(ErrUnknownMethod, "frob"), "unknown_method"},
		{UnsupportedSkipf("depth"), "unsupported_skip"},
		{SequenceMismatch(1, 2), "sequence_mismatch"},
		{errors.Mark(Transport(io.EOF), ErrTimeout), "timeout"},
		{context.DeadlineExceeded, "timeout"},
		{errors.Wrap(ErrRateLimited, "add"), "rate_limited"},
		{ErrRemote, "remote"},
		{Transport(io.ErrUnexpectedEOF), "transport"},
		{context.Canceled, "canceled"},
		{errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err), "%v", tt.err)
	}
}

func TestTransportKeepsCause(t *testing.T) {
	err := Transport(io.EOF)
	assert.True(t, errors.Is(err, ErrTransport))
	assert.True(t, errors.Is(err, io.EOF))
	assert.Equal(t, err, Transport(err), "already marked")
	assert.NoError(t, Transport(nil))
}

func TestSequenceMismatchMessage(t *testing.T) {
	assert.EqualError(t, SequenceMismatch(3, 4), "reply seq id 4, want 3")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Transport(io.EOF)))
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(Violationf("x")))
	assert.False(t, IsRetryable(ErrRemote))
	assert.False(t, IsRetryable(Transport(context.Canceled)))
}
