// Package rpcerr defines the error kinds shared by the codec, the protocols,
// the dispatcher and the client stub.
//
// Every error produced by this module is marked with exactly one of the
// sentinels below, so callers classify failures with errors.Is while the
// original cause (io.EOF, a net.OpError, ...) stays in the chain.
package rpcerr

import (
	"context"

	"github.com/cockroachdb/errors"
)

var (
	// ErrProtocolViolation reports malformed or inconsistent wire data.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrUnknownMethod reports a call for a method name the processor does not serve.
	ErrUnknownMethod = errors.New("unknown method")
	// ErrTransport reports a failure of the underlying byte stream.
	ErrTransport = errors.New("transport error")
	// ErrUnsupportedSkip reports a wire type the protocol cannot discard.
	ErrUnsupportedSkip = errors.New("unsupported skip")
	// ErrSequenceMismatch reports a reply whose sequence id does not match the call.
	ErrSequenceMismatch = errors.New("sequence id mismatch")
	// ErrRemote reports an exception sent back by the server.
	ErrRemote = errors.New("remote exception")
	// ErrTimeout reports a call that exceeded its deadline.
	ErrTimeout = errors.New("request timed out")
	// ErrRateLimited reports a call rejected by a rate limiter.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// Violationf returns a new protocol violation.
func Violationf(format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), ErrProtocolViolation)
}

// Transport marks err as a transport failure. A nil err stays nil.
func Transport(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrTransport) {
		return err
	}
	return errors.Mark(errors.WrapWithDepth(1, err, "transport"), ErrTransport)
}

// UnsupportedSkipf returns a new unsupported-skip error.
func UnsupportedSkipf(format string, args ...interface{}) error {
	return errors.Mark(errors.NewWithDepthf(1, format, args...), ErrUnsupportedSkip)
}

// SequenceMismatch reports a reply carrying got where want was expected.
func SequenceMismatch(want, got int32) error {
	return errors.Mark(errors.Newf("reply seq id %d, want %d", got, want), ErrSequenceMismatch)
}

// Kind returns a short, stable name for the kind of err, suitable for
// metric labels. A nil err is "ok".
func Kind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrProtocolViolation):
		return "protocol_violation"
	case errors.Is(err, ErrUnknownMethod):
		return "unknown_method"
	case errors.Is(err, ErrUnsupportedSkip):
		return "unsupported_skip"
	case errors.Is(err, ErrSequenceMismatch):
		return "sequence_mismatch"
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrRemote):
		return "remote"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "internal"
	}
}

// IsRetryable reports whether a call that failed with err may be sent again
// on a fresh connection. Only transport failures qualify; everything else
// either reached the server or will fail the same way.
func IsRetryable(err error) bool {
	if err == nil || errors.IsAny(err, context.Canceled, context.DeadlineExceeded) {
		return false
	}
	return errors.Is(err, ErrTransport)
}
