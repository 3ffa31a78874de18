package klap

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/abhishek/klap/internal/credentials"
	"github.com/abhishek/klap/internal/cryptoutil"
)

// fakeDevice emulates just enough of a KLAP device's HTTP surface to
// drive Transport through a full handshake and request cycle.
type fakeDevice struct {
	mu        sync.Mutex
	variant   Variant
	creds     credentials.Credentials
	localSeed []byte

	remoteSeed []byte
	authHash   []byte
	key        []byte
	ivPrefix   []byte
	sigPrefix  []byte

	cookie     string
	forbidNext bool
}

func newFakeDevice(variant Variant, creds credentials.Credentials) *fakeDevice {
	return &fakeDevice{variant: variant, creds: creds, cookie: "deadbeef0011223344"}
}

func (d *fakeDevice) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/app/handshake1", d.handshake1)
	mux.HandleFunc("/app/handshake2", d.handshake2)
	mux.HandleFunc("/app/request", d.request)
	return mux
}

func (d *fakeDevice) handshake1(w http.ResponseWriter, r *http.Request) {
	body := readAll(r)
	d.mu.Lock()
	d.localSeed = body
	d.remoteSeed = seeds16(0x11)
	d.authHash = d.variant.AuthHash(d.creds)
	keyDigest := cryptoutil.SHA256Parts([]byte("lsk"), d.localSeed, d.remoteSeed, d.authHash)
	ivDigest := cryptoutil.SHA256Parts([]byte("iv"), d.localSeed, d.remoteSeed, d.authHash)
	sigDigest := cryptoutil.SHA256Parts([]byte("ldk"), d.localSeed, d.remoteSeed, d.authHash)
	d.key = keyDigest[:keySize]
	d.ivPrefix = ivDigest[:ivPrefixSize]
	d.sigPrefix = sigDigest[:sigPrefixSize]
	serverHash := d.variant.H1(d.localSeed, d.remoteSeed, d.authHash)
	d.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: "TP_SESSIONID", Value: d.cookie})
	http.SetCookie(w, &http.Cookie{Name: "TIMEOUT", Value: "86400"})
	w.WriteHeader(http.StatusOK)
	w.Write(append(append([]byte{}, d.remoteSeed...), serverHash...))
}

func (d *fakeDevice) handshake2(w http.ResponseWriter, r *http.Request) {
	body := readAll(r)
	d.mu.Lock()
	want := d.variant.H2(d.localSeed, d.remoteSeed, d.authHash)
	d.mu.Unlock()

	cookie, err := r.Cookie("TP_SESSIONID")
	if err != nil || cookie.Value != d.cookie {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if !bytes.Equal(body, want) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (d *fakeDevice) request(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	forbid := d.forbidNext
	d.forbidNext = false
	d.mu.Unlock()
	if forbid {
		w.WriteHeader(http.StatusForbidden)
		return
	}

	seqStr := r.URL.Query().Get("seq")
	seq64, err := strconv.ParseInt(seqStr, 10, 64)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	seq := int32(seq64)

	body := readAll(r)
	if len(body) < 32 {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	ciphertext := body[32:]

	d.mu.Lock()
	key, ivPrefix, sigPrefix := d.key, d.ivPrefix, d.sigPrefix
	d.mu.Unlock()

	plaintext := aesCBCDecryptTest(key, deviceIV(ivPrefix, seq), ciphertext)
	plaintext, err = pkcs7Unpad(plaintext)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	var req struct {
		Method string `json:"method"`
	}
	json.Unmarshal(plaintext, &req)

	respJSON := []byte(fmt.Sprintf(`{"error_code":0,"result":{"echo":%q}}`, req.Method))
	padded := pkcs7Pad(respJSON, aes.BlockSize)
	respCiphertext := aesCBCEncryptTest(key, deviceIV(ivPrefix, seq), padded)
	signature := cryptoutil.SHA256Parts(sigPrefix, seqBytes(seq), respCiphertext)

	w.WriteHeader(http.StatusOK)
	w.Write(append(append([]byte{}, signature...), respCiphertext...))
}

func readAll(r *http.Request) []byte {
	defer r.Body.Close()
	buf := make([]byte, r.ContentLength)
	n := 0
	for n < len(buf) {
		m, err := r.Body.Read(buf[n:])
		n += m
		if err != nil {
			break
		}
	}
	return buf[:n]
}

func deviceIV(ivPrefix []byte, seq int32) []byte {
	return append(append([]byte{}, ivPrefix...), seqBytes(seq)...)
}

func aesCBCDecryptTest(key, iv, ciphertext []byte) []byte {
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return out
}

func aesCBCEncryptTest(key, iv, plaintext []byte) []byte {
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	out := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plaintext)
	return out
}

func newTestTransport(t *testing.T, srv *httptest.Server, variant Variant, creds credentials.Credentials) *Transport {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)

	tr := New(u.Host, WithVariant(variant), WithCredentials(creds), WithTimeout(2*time.Second))
	tr.httpClient = srv.Client()
	return tr
}

func TestHandshakeAndSendBlankCreds(t *testing.T) {
	device := newFakeDevice(V1{}, credentials.Blank)
	srv := httptest.NewServer(device.handler())
	defer srv.Close()

	tr := newTestTransport(t, srv, V1{}, credentials.Blank)
	require.True(t, tr.NeedsHandshake())

	ctx := context.Background()
	require.NoError(t, tr.Handshake(ctx))
	require.False(t, tr.NeedsHandshake())

	val, err := tr.Send(ctx, `{"method":"get_device_info"}`)
	require.NoError(t, err)
	echo, ok := val.Get("result").Get("echo").String()
	require.True(t, ok)
	require.Equal(t, "get_device_info", echo)
}

func TestCredentialFallbackToKasaSetup(t *testing.T) {
	// S2: device only accepts kasa-setup creds; client is configured
	// with something else and must fall back.
	device := newFakeDevice(V1{}, credentials.KasaSetup)
	srv := httptest.NewServer(device.handler())
	defer srv.Close()

	configured := credentials.Credentials{Username: "someone@example.com", Password: "wrong"}
	tr := newTestTransport(t, srv, V1{}, configured)

	require.NoError(t, tr.Handshake(context.Background()))
	require.False(t, tr.NeedsHandshake())
}

func TestHandshakeFailsWhenNoCredentialMatches(t *testing.T) {
	device := newFakeDevice(V1{}, credentials.Credentials{Username: "only-this-device-knows", Password: "x"})
	srv := httptest.NewServer(device.handler())
	defer srv.Close()

	tr := newTestTransport(t, srv, V1{}, credentials.Credentials{Username: "nope", Password: "nope"})
	err := tr.Handshake(context.Background())
	require.Error(t, err)
	require.True(t, tr.NeedsHandshake())
}

func TestSessionExpiry(t *testing.T) {
	// S3: needs_handshake flips from false to true as the session ages
	// past 24h.
	device := newFakeDevice(V2{}, credentials.Blank)
	srv := httptest.NewServer(device.handler())
	defer srv.Close()

	tr := newTestTransport(t, srv, V2{}, credentials.Blank)
	base := time.Now()
	timeNow = func() time.Time { return base }
	defer func() { timeNow = time.Now }()

	require.NoError(t, tr.Handshake(context.Background()))
	require.False(t, tr.NeedsHandshake())

	timeNow = func() time.Time { return base.Add(86399 * time.Second) }
	require.False(t, tr.NeedsHandshake())

	timeNow = func() time.Time { return base.Add(86401 * time.Second) }
	require.True(t, tr.NeedsHandshake())
}

func Test403ForcesRehandshake(t *testing.T) {
	// S4.
	device := newFakeDevice(V2{}, credentials.Blank)
	srv := httptest.NewServer(device.handler())
	defer srv.Close()

	tr := newTestTransport(t, srv, V2{}, credentials.Blank)
	require.NoError(t, tr.Handshake(context.Background()))

	device.mu.Lock()
	device.forbidNext = true
	device.mu.Unlock()

	_, err := tr.Send(context.Background(), `{"method":"set_device_info"}`)
	require.Error(t, err)
	require.True(t, tr.NeedsHandshake())
}

func TestSendBeforeHandshakeFails(t *testing.T) {
	tr := New("127.0.0.1:0")
	_, err := tr.Send(context.Background(), `{"method":"x"}`)
	require.Error(t, err)
}

func TestLoginIsProgrammingError(t *testing.T) {
	tr := New("127.0.0.1:0")
	require.False(t, tr.NeedsLogin())
	err := tr.Login(context.Background(), "x")
	require.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	tr := New("127.0.0.1:0")
	require.NoError(t, tr.Close())
	require.NoError(t, tr.Close())
}
