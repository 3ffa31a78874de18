package transport

import "fmt"

// AuthenticationError indicates the device rejected our credentials or
// revoked an established session (spec.md §7).
type AuthenticationError struct {
	Host string
	Err  error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("klap: authentication failed for %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("klap: authentication failed for %s", e.Host)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// ProtocolError indicates a network failure, timeout, malformed response,
// or misuse of the transport outside its protocol contract (spec.md §7).
type ProtocolError struct {
	Host string
	Err  error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("klap: protocol error for %s: %v", e.Host, e.Err)
	}
	return fmt.Sprintf("klap: protocol error for %s", e.Host)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// ProgrammingError indicates the caller used the transport contract
// incorrectly, e.g. calling Login on a transport that never needs one
// (spec.md §7).
type ProgrammingError struct {
	Msg string
}

func (e *ProgrammingError) Error() string {
	return "klap: programming error: " + e.Msg
}
