package loqui

import (
	"fmt"

	"github.com/pkg/errors"
)

// Sentinel errors surfaced to callers, per §7 of the spec.
var (
	// ErrNoEncoderAvailable is raised when encode/decode is attempted
	// before the session is ready, or after its encoder has been cleared.
	ErrNoEncoderAvailable = errors.New("loqui: no encoder available")

	// ErrConnectionTerminated fails every pending awaitable result when a
	// session is torn down for a reason other than a ping timeout,
	// whether gracefully or forcibly.
	ErrConnectionTerminated = errors.New("loqui: connection terminated")

	// ErrPingTimeout fails every pending awaitable result when a session
	// closes because the peer stopped answering pings, in place of
	// ErrConnectionTerminated.
	ErrPingTimeout = errors.New("loqui: ping timeout")
)

// closeErrorForReason picks the error drainFailing settles pending calls
// with on shutdown, per §7's ConnectionPingTimeout subkind.
func closeErrorForReason(reason CloseReason) error {
	if reason == ReasonPingTimeout {
		return ErrPingTimeout
	}
	return ErrConnectionTerminated
}

// ProgrammerError marks a role violation or other misuse that the spec
// says must fault synchronously rather than travel over the wire.
type ProgrammerError struct {
	Op     string
	Reason string
}

func (e *ProgrammerError) Error() string {
	return fmt.Sprintf("loqui: programmer error in %s: %s", e.Op, e.Reason)
}

func newProgrammerError(op, reason string) *ProgrammerError {
	return &ProgrammerError{Op: op, Reason: reason}
}

// CloseReason is an integer close code. Wire-stable per §6; unknown codes
// must be tolerated by callers.
type CloseReason int

const (
	ReasonUnspecified      CloseReason = 0
	ReasonPingTimeout      CloseReason = 1
	ReasonUnknownEncoder   CloseReason = 2
	ReasonNoMutualEncoders CloseReason = 3
	// ReasonExplicitClose, ReasonPeerEOF, and ReasonSocketError are
	// ambient additions, not part of the wire-stable set; they exist
	// purely for local diagnostics and tests.
	ReasonExplicitClose CloseReason = 4
	ReasonPeerEOF       CloseReason = 5
	ReasonSocketError   CloseReason = 6
)

func (r CloseReason) String() string {
	switch r {
	case ReasonPingTimeout:
		return "PING_TIMEOUT"
	case ReasonUnknownEncoder:
		return "UNKNOWN_ENCODER"
	case ReasonNoMutualEncoders:
		return "NO_MUTUAL_ENCODERS"
	case ReasonExplicitClose:
		return "EXPLICIT_CLOSE"
	case ReasonPeerEOF:
		return "PEER_EOF"
	case ReasonSocketError:
		return "SOCKET_ERROR"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(r))
	}
}
