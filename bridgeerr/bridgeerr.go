// Package bridgeerr classifies bridge failures into the five kinds of
// spec.md §7, so callers can branch with errors.Is instead of string
// matching, the way the teacher distinguishes context.Canceled from
// other gRPC failures in its server package.
package bridgeerr

import (
	"errors"

	"github.com/mickamy/oophm-bridge/wire"
)

// Kind sentinels. Wrap the underlying cause with fmt.Errorf("...: %w: %w", Kind, cause)
// — or, where there is no separate cause, return the sentinel directly —
// so errors.Is(err, bridgeerr.Protocol) works regardless of how deep the
// wrapping goes.
var (
	// Policy: the allow-list denied a connection attempt.
	Policy = errors.New("bridge: connection denied by policy")

	// IO: a read or write failed, or the socket closed mid-message.
	// Fatal to the session.
	IO = errors.New("bridge: i/o failure")

	// Protocol: an unknown tag, a truncated message, or a message
	// arriving in a state that doesn't expect it (e.g. Return outside
	// call()). Fatal to the session.
	Protocol = errors.New("bridge: protocol violation")

	// Unsupported: an unrecognized InvokeSpecial dispatch id or value
	// tag. Surfaced to the peer as a RemoteException; not fatal.
	Unsupported = errors.New("bridge: unsupported operation")

	// Terminated: the session was already torn down (by Disconnect, a
	// prior fatal error, or an inbound Quit) when the operation was
	// attempted.
	Terminated = errors.New("bridge: session terminated")
)

// RemoteException wraps a well-formed Return with is_exception = true.
// It is a normal, non-fatal outcome of Session.Call — not a Go error in
// the usual sense, but it satisfies the error interface so callers that
// only check for failure still see it.
type RemoteException struct {
	Value wire.Value
}

func (e *RemoteException) Error() string {
	return "bridge: remote exception: " + e.Value.String()
}
