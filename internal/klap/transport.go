package klap

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/abhishek/klap/internal/credentials"
	"github.com/abhishek/klap/internal/journal"
	"github.com/abhishek/klap/internal/metrics"
	"github.com/abhishek/klap/internal/transport"
)

// DefaultTimeout is the per-request timeout applied when no WithTimeout
// option is given (spec.md §4.3, §6: "timeout_seconds (default 5)").
const DefaultTimeout = 5 * time.Second

// sessionExpiry is how long a completed handshake remains valid
// (spec.md §3, §4.3.2: "24 hours after handshake completion").
const sessionExpiry = 24 * time.Hour

// Transport implements transport.Transport for the KLAP protocol
// (spec.md §4.3).
type Transport struct {
	host    string
	variant Variant
	creds   credentials.Credentials
	timeout time.Duration

	verifyResponseSignature bool

	httpClient *http.Client
	traceID    string
	log        *slog.Logger
	metrics    *metrics.Metrics
	journal    *journal.Journal

	handshakeGroup singleflight.Group
	sendMu         sync.Mutex // spec.md §5 query lock: serializes Send

	stateMu         sync.Mutex // guards the fields below
	handshakeDone   bool
	sessionExpireAt time.Time
	sessionCookie   string
	session         *Session

	// Cached candidate auth hashes. Not guarded by stateMu; they are only
	// touched from inside the singleflight handshake.
	localAuthHash  []byte
	kasaAuthHash   []byte
	blankAuthHash  []byte
}

// Option configures a Transport at construction time.
type Option func(*Transport)

func WithCredentials(creds credentials.Credentials) Option {
	return func(t *Transport) { t.creds = creds }
}

func WithVariant(v Variant) Option {
	return func(t *Transport) { t.variant = v }
}

func WithTimeout(d time.Duration) Option {
	return func(t *Transport) { t.timeout = d }
}

func WithHTTPClient(c *http.Client) Option {
	return func(t *Transport) { t.httpClient = c }
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

// WithVerifyResponseSignature enables the optional response-signature
// check spec.md §9 calls out as an open question; it is disabled by
// default to match the shipped behaviour spec.md documents.
func WithVerifyResponseSignature(verify bool) Option {
	return func(t *Transport) { t.verifyResponseSignature = verify }
}

// New creates a KlapTransport for host. The variant defaults to V2; the
// credential trial ladder tries the configured credentials regardless of
// variant, so callers who don't know the variant ahead of time can
// construct two transports and try each.
func New(host string, opts ...Option) *Transport {
	id := uuid.New().String()
	t := &Transport{
		host:       host,
		variant:    V2{},
		creds:      credentials.Blank,
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
		traceID:    id,
		log:        slog.Default().With("transport_id", id, "host", host, "transport", "klap"),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.httpClient.Timeout = t.timeout
	return t
}

// NeedsHandshake reports true iff no handshake has completed or the
// established session has expired (spec.md §4.3).
func (t *Transport) NeedsHandshake() bool {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	return t.needsHandshakeLocked()
}

func (t *Transport) needsHandshakeLocked() bool {
	return !t.handshakeDone || timeNow().After(t.sessionExpireAt)
}

// NeedsLogin always returns false: KLAP has no login step (spec.md §4.3).
func (t *Transport) NeedsLogin() bool { return false }

// Login always fails: KLAP does not perform logins (spec.md §4.3, §7).
func (t *Transport) Login(_ context.Context, _ string) error {
	return &transport.ProgrammingError{Msg: "klap transport never needs login; Login must not be called"}
}

// Close releases the underlying HTTP client's idle connections. Safe to
// call more than once (spec.md §4.3, §4.5).
func (t *Transport) Close() error {
	if t.httpClient != nil {
		t.httpClient.CloseIdleConnections()
	}
	return nil
}
