package klap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/abhishek/klap/internal/transport"
)

// Send encrypts request under the current session, POSTs it with the
// resulting sequence number as a query parameter, and decrypts and
// parses the response as JSON (spec.md §4.3.3). Send calls on the same
// Transport never interleave: the query lock guarantees the device
// always observes sequence numbers in the order Send was invoked
// (spec.md §5).
func (t *Transport) Send(ctx context.Context, request string) (transport.Value, error) {
	if t.NeedsHandshake() {
		return transport.Null, &transport.ProtocolError{Host: t.host, Err: fmt.Errorf("send called before handshake completed")}
	}

	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	start := timeNow()
	value, err := t.sendLocked(ctx, request)
	t.observeRequest(err, timeNow().Sub(start))
	return value, err
}

func (t *Transport) observeRequest(err error, d time.Duration) {
	if t.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	t.metrics.ObserveRequest("klap", outcome, d)
}

func (t *Transport) sendLocked(ctx context.Context, request string) (transport.Value, error) {
	// Re-check under the query lock: a concurrent handshake triggered by
	// another Send may have just completed or invalidated the session.
	t.stateMu.Lock()
	session := t.session
	cookie := t.sessionCookie
	t.stateMu.Unlock()
	if session == nil {
		return transport.Null, &transport.ProtocolError{Host: t.host, Err: fmt.Errorf("no active session")}
	}

	blob, seq, err := session.Encrypt([]byte(request))
	if err != nil {
		return transport.Null, &transport.ProtocolError{Host: t.host, Err: err}
	}

	path := fmt.Sprintf("/app/request?seq=%d", seq)
	status, body, _, err := t.post(ctx, path, &cookie, blob)
	if err != nil {
		t.recordJournal("request", int64(seq), fmt.Sprintf("error: %v", err))
		return transport.Null, &transport.ProtocolError{Host: t.host, Err: err}
	}

	t.recordJournal("request", int64(seq), fmt.Sprintf("status=%d", status))

	if status == http.StatusForbidden {
		t.stateMu.Lock()
		t.handshakeDone = false
		t.stateMu.Unlock()
		return transport.Null, &transport.AuthenticationError{Host: t.host, Err: fmt.Errorf("device returned 403 after a successful handshake; session revoked")}
	}
	if status != http.StatusOK {
		return transport.Null, &transport.ProtocolError{Host: t.host, Err: fmt.Errorf("request returned status %d", status)}
	}

	var plaintext []byte
	if t.verifyResponseSignature {
		plaintext, err = session.DecryptVerified(body, seq)
	} else {
		plaintext, err = session.Decrypt(body)
	}
	if err != nil {
		return transport.Null, &transport.ProtocolError{Host: t.host, Err: fmt.Errorf("decrypt response: %w", err)}
	}

	value, err := transport.ParseJSON(plaintext)
	if err != nil {
		return transport.Null, &transport.ProtocolError{Host: t.host, Err: err}
	}
	return value, nil
}
