// Package xortransport implements the legacy length-prefixed, auto-keyed
// XOR protocol spoken by older firmware that predates KLAP (spec.md §4.4).
// It shares the transport.Transport abstraction with internal/klap but has
// no handshake or login step: encryption is a fixed, credential-free
// stream cipher, so there is nothing to negotiate.
package xortransport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/abhishek/klap/internal/journal"
	"github.com/abhishek/klap/internal/metrics"
	"github.com/abhishek/klap/internal/transport"
)

// DefaultPort is the TCP port the legacy protocol listens on (spec.md §4.4,
// §6).
const DefaultPort = 9999

// DefaultTimeout bounds every connect/write/read when no WithTimeout
// option is given (spec.md §5).
const DefaultTimeout = 5 * time.Second

// DefaultRetryCount is how many extra attempts a Send makes after the
// first failure, for failures not in the non-retryable errno set
// (spec.md §4.4 step 1: "retry_count + 1" total attempts).
const DefaultRetryCount = 3

// Transport implements transport.Transport for the legacy XOR protocol.
// It owns a single TCP connection, reconnecting lazily on first use or
// after a failure (spec.md §4.4, §5: "XorTransport holds a single query
// mutex serialising all sends").
type Transport struct {
	host       string
	port       int
	timeout    time.Duration
	retryCount int

	dialer     net.Dialer
	log        *slog.Logger
	metrics    *metrics.Metrics
	journal    *journal.Journal

	mu   sync.Mutex // spec.md §5 query lock
	conn net.Conn
}

// Option configures a Transport at construction time.
type Option func(*Transport)

func WithPort(port int) Option {
	return func(t *Transport) { t.port = port }
}

func WithTimeout(d time.Duration) Option {
	return func(t *Transport) { t.timeout = d }
}

func WithRetryCount(n int) Option {
	return func(t *Transport) { t.retryCount = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Transport) { t.metrics = m }
}

func WithJournal(j *journal.Journal) Option {
	return func(t *Transport) { t.journal = j }
}

func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) { t.log = l }
}

// New creates an XOR transport for host.
func New(host string, opts ...Option) *Transport {
	id := uuid.New().String()
	t := &Transport{
		host:       host,
		port:       DefaultPort,
		timeout:    DefaultTimeout,
		retryCount: DefaultRetryCount,
		log:        slog.Default().With("transport_id", id, "host", host, "transport", "xor"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NeedsHandshake is always false: the legacy protocol has no session to
// establish (spec.md §4.4).
func (t *Transport) NeedsHandshake() bool { return false }

// NeedsLogin is always false: the legacy protocol has no login step.
func (t *Transport) NeedsLogin() bool { return false }

// Handshake is a no-op; callers should never need to invoke it since
// NeedsHandshake is always false, but a speculative call is harmless.
func (t *Transport) Handshake(_ context.Context) error { return nil }

// Login is a no-op for the same reason as Handshake.
func (t *Transport) Login(_ context.Context, _ string) error { return nil }

// Close releases the underlying connection, if any. Safe to call more
// than once.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

func (t *Transport) closeLocked() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// noRetryErrno is the set of OS errors that make retrying pointless: the
// device is unreachable or actively refusing connections (spec.md §4.4
// step 5, grounded on original_source/kasa/protocol.py's
// _NO_RETRY_ERRORS).
var noRetryErrno = map[syscall.Errno]bool{
	syscall.ECONNREFUSED: true,
	syscall.EHOSTDOWN:    true,
	syscall.EHOSTUNREACH: true,
}

func isNoRetryError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return noRetryErrno[errno]
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}

func (t *Transport) observeRetry() {
	if t.metrics != nil {
		t.metrics.ObserveRetry()
	}
}

func (t *Transport) observeRequest(outcome string, d time.Duration) {
	if t.metrics == nil {
		return
	}
	t.metrics.ObserveRequest("xor", outcome, d)
}

func (t *Transport) recordJournal(kind, detail string) {
	if t.journal == nil {
		return
	}
	if err := t.journal.Record(t.host, "xor", kind, 0, detail); err != nil {
		t.log.Warn("journal write failed", "error", err)
	}
}

// Send encodes request as a length-prefixed auto-keyed XOR frame, sends
// it over the transport's persistent connection (opening or reopening it
// as needed), and decodes the device's response (spec.md §4.4).
//
// The retry loop runs up to retryCount+1 total attempts. ConnectionRefused
// and the other non-retryable errno values fail immediately; any other
// failure closes the connection and retries.
func (t *Transport) Send(ctx context.Context, request string) (transport.Value, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := time.Now()
	value, err := t.sendLocked(ctx, request)
	t.observeRequest(outcomeOf(err), time.Since(start))
	return value, err
}

func outcomeOf(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

func (t *Transport) sendLocked(ctx context.Context, request string) (transport.Value, error) {
	var lastErr error

	for attempt := 0; attempt <= t.retryCount; attempt++ {
		if attempt > 0 {
			t.observeRetry()
			t.log.Debug("retrying xor request", "attempt", attempt, "last_error", lastErr)
		}

		if err := ctx.Err(); err != nil {
			t.closeLocked()
			return transport.Null, &transport.ProtocolError{Host: t.host, Err: err}
		}

		plaintext, err := t.roundTrip(ctx, request)
		if err == nil {
			t.recordJournal("request", "ok")
			return transport.ParseJSON(plaintext)
		}

		t.closeLocked()
		lastErr = err

		if isNoRetryError(err) {
			t.recordJournal("request", fmt.Sprintf("non-retryable error: %v", err))
			return transport.Null, &transport.ProtocolError{Host: t.host, Err: err}
		}
	}

	t.recordJournal("request", fmt.Sprintf("retries exhausted: %v", lastErr))
	return transport.Null, &transport.ProtocolError{Host: t.host, Err: fmt.Errorf("retries exhausted: %w", lastErr)}
}

func (t *Transport) roundTrip(ctx context.Context, request string) ([]byte, error) {
	conn, err := t.ensureConnected(ctx)
	if err != nil {
		return nil, err
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(t.timeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("xortransport: set deadline: %w", err)
	}

	if err := writeFrame(conn, []byte(request)); err != nil {
		return nil, err
	}
	return readFrame(conn)
}

func (t *Transport) ensureConnected(ctx context.Context) (net.Conn, error) {
	if t.conn != nil {
		return t.conn, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	addr := fmt.Sprintf("%s:%d", t.host, t.port)
	conn, err := t.dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("xortransport: dial %s: %w", addr, err)
	}

	if tcpConn, ok := conn.(*net.TCPConn); ok {
		if err := tcpConn.SetNoDelay(true); err != nil {
			conn.Close()
			return nil, fmt.Errorf("xortransport: set TCP_NODELAY: %w", err)
		}
	}

	t.conn = conn
	return conn, nil
}
