// Package transport defines the narrow contract (spec.md §4.5, §6) that
// both the KLAP and legacy XOR transports implement, plus the dynamic
// JSON value tree callers decode responses into. Device semantics
// (plugs, bulbs, energy meters) are deliberately not modeled here; that
// belongs to a consumer built on top of this package.
package transport

import "context"

// Transport is the contract higher layers consume. Implementations must
// honour: Send is illegal while NeedsHandshake is true; Login is illegal
// when NeedsLogin is false; Close is idempotent (spec.md §4.5).
type Transport interface {
	// NeedsHandshake reports whether Handshake must be called again
	// before Send can succeed.
	NeedsHandshake() bool

	// NeedsLogin reports whether Login must be called before Send.
	NeedsLogin() bool

	// Handshake performs whatever key exchange the transport requires.
	// It is idempotent to call when a handshake is not needed.
	Handshake(ctx context.Context) error

	// Login performs transport-specific authentication distinct from
	// the handshake. The KLAP transport has no login step and returns
	// *ProgrammingError when called; the XOR transport's Login is a no-op.
	Login(ctx context.Context, request string) error

	// Send transmits request (a JSON-encoded string) and returns the
	// decoded JSON response.
	Send(ctx context.Context, request string) (Value, error)

	// Close releases any network resources. Safe to call more than once.
	Close() error
}
