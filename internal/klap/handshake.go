package klap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/abhishek/klap/internal/credentials"
	"github.com/abhishek/klap/internal/transport"
)

// Handshake performs handshake1 and handshake2, establishing a fresh
// Session. Concurrent callers collapse onto a single in-flight handshake
// via singleflight, preventing the thundering herd spec.md §9 warns
// against (several Send callers simultaneously observing 403 and all
// retrying the handshake at once).
func (t *Transport) Handshake(ctx context.Context) error {
	_, err, _ := t.handshakeGroup.Do("handshake", func() (interface{}, error) {
		return nil, t.performHandshake(ctx)
	})
	if err != nil {
		t.observeHandshake("failure")
		t.recordJournal("handshake", 0, fmt.Sprintf("handshake failed: %v", err))
		return err
	}
	t.observeHandshake("success")
	return nil
}

func (t *Transport) observeHandshake(outcome string) {
	if t.metrics != nil {
		t.metrics.ObserveHandshake(outcome)
	}
}

func (t *Transport) performHandshake(ctx context.Context) error {
	t.log.Debug("starting handshake")

	localSeed := make([]byte, seedSize)
	if _, err := randRead(localSeed); err != nil {
		return &transport.ProtocolError{Host: t.host, Err: fmt.Errorf("generate local seed: %w", err)}
	}

	remoteSeed, authHash, cookie, err := t.handshake1(ctx, localSeed)
	if err != nil {
		return err
	}

	if err := t.handshake2(ctx, localSeed, remoteSeed, authHash, cookie); err != nil {
		return err
	}

	session, err := NewSession(localSeed, remoteSeed, authHash)
	if err != nil {
		return &transport.ProtocolError{Host: t.host, Err: err}
	}

	t.stateMu.Lock()
	t.sessionCookie = cookie
	t.session = session
	t.handshakeDone = true
	t.sessionExpireAt = timeNow().Add(sessionExpiry)
	t.stateMu.Unlock()

	t.recordJournal("handshake", int64(session.Seq()), "handshake complete")
	t.log.Debug("handshake complete")
	return nil
}

// handshake1 posts the local seed and, per spec.md §4.3.1, tries the
// configured credentials, then the well-known kasa-setup pair, then
// blank credentials (skipped if the configured pair is already blank)
// until one matches the server's challenge hash.
func (t *Transport) handshake1(ctx context.Context, localSeed []byte) (remoteSeed, authHash []byte, cookie string, err error) {
	status, body, resp, err := t.post(ctx, "/app/handshake1", nil, localSeed)
	if err != nil {
		return nil, nil, "", &transport.ProtocolError{Host: t.host, Err: fmt.Errorf("handshake1: %w", err)}
	}
	if status != http.StatusOK {
		return nil, nil, "", &transport.AuthenticationError{Host: t.host, Err: fmt.Errorf("handshake1 returned status %d", status)}
	}
	if len(body) != 48 {
		return nil, nil, "", &transport.ProtocolError{Host: t.host, Err: fmt.Errorf("handshake1 response was %d bytes, want 48", len(body))}
	}

	remoteSeed = body[:16]
	serverHash := body[16:48]
	cookie = extractSessionCookie(resp)

	candidates := t.candidateAuthHashes()
	for _, candidate := range candidates {
		expected := t.variant.H1(localSeed, remoteSeed, candidate)
		if bytes.Equal(expected, serverHash) {
			return remoteSeed, candidate, cookie, nil
		}
	}

	return nil, nil, "", &transport.AuthenticationError{Host: t.host, Err: fmt.Errorf("no credential candidate matched the device's challenge")}
}

// candidateAuthHashes returns the auth hashes to try, in trial-ladder
// order, caching the kasa-setup and blank hashes across handshakes since
// they never change for a given variant.
func (t *Transport) candidateAuthHashes() [][]byte {
	if t.localAuthHash == nil {
		t.localAuthHash = t.variant.AuthHash(t.creds)
	}
	if t.kasaAuthHash == nil {
		t.kasaAuthHash = t.variant.AuthHash(credentials.KasaSetup)
	}

	candidates := [][]byte{t.localAuthHash, t.kasaAuthHash}

	if !t.creds.IsBlank() {
		if t.blankAuthHash == nil {
			t.blankAuthHash = t.variant.AuthHash(credentials.Blank)
		}
		candidates = append(candidates, t.blankAuthHash)
	}
	return candidates
}

func (t *Transport) handshake2(ctx context.Context, localSeed, remoteSeed, authHash []byte, cookie string) error {
	payload := t.variant.H2(localSeed, remoteSeed, authHash)

	status, _, _, err := t.post(ctx, "/app/handshake2", &cookie, payload)
	if err != nil {
		return &transport.ProtocolError{Host: t.host, Err: fmt.Errorf("handshake2: %w", err)}
	}
	if status != http.StatusOK {
		return &transport.AuthenticationError{Host: t.host, Err: fmt.Errorf("handshake2 returned status %d", status)}
	}
	return nil
}

// post performs one HTTP POST, clearing any cookie jar state and
// attaching only the session cookie the caller supplies (spec.md §4.3.1,
// §9: the device misbehaves if unrelated cookies are echoed back, so we
// never let net/http/cookiejar anywhere near this client).
func (t *Transport) post(ctx context.Context, path string, cookie *string, body []byte) (status int, respBody []byte, resp *http.Response, err error) {
	url := fmt.Sprintf("http://%s%s", t.host, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if cookie != nil && *cookie != "" {
		req.Header.Set("Cookie", sessionCookieName+"="+*cookie)
	}

	resp, err = t.httpClient.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	respBody, err = io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, err
	}
	return resp.StatusCode, respBody, resp, nil
}

func (t *Transport) recordJournal(kind string, seq int64, detail string) {
	if t.journal == nil {
		return
	}
	if err := t.journal.Record(t.host, t.variant.Name(), kind, seq, detail); err != nil {
		t.log.Warn("journal write failed", "error", err)
	}
}
