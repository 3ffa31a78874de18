// Package klap implements the KLAP state machine: the two-stage
// challenge-response handshake and the signed, sequence-numbered AES-CBC
// session it establishes (spec.md §3, §4.2, §4.3).
package klap

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/binary"
	"fmt"

	"github.com/abhishek/klap/internal/cryptoutil"
)

const (
	seedSize      = 16
	ivPrefixSize  = 12
	sigPrefixSize = 28
	keySize       = 16
)

// Session holds the derived AES key, IV prefix, and signature prefix for
// one KLAP handshake, plus the mutable sequence counter those three
// secrets are combined with on every request (spec.md §3). A Session is
// immutable after construction except for the sequence counter, which
// Encrypt advances. It is not safe for concurrent use; callers (here,
// Transport) must serialize access.
type Session struct {
	key       []byte
	ivPrefix  []byte
	sigPrefix []byte
	seq       int32
}

// NewSession derives a session from the two 16-byte handshake seeds and
// the matched auth hash (spec.md §3, §4.2).
func NewSession(localSeed, remoteSeed, authHash []byte) (*Session, error) {
	if len(localSeed) != seedSize {
		return nil, fmt.Errorf("klap: local seed must be %d bytes, got %d", seedSize, len(localSeed))
	}
	if len(remoteSeed) != seedSize {
		return nil, fmt.Errorf("klap: remote seed must be %d bytes, got %d", seedSize, len(remoteSeed))
	}

	keyDigest := cryptoutil.SHA256Parts([]byte("lsk"), localSeed, remoteSeed, authHash)
	ivDigest := cryptoutil.SHA256Parts([]byte("iv"), localSeed, remoteSeed, authHash)
	sigDigest := cryptoutil.SHA256Parts([]byte("ldk"), localSeed, remoteSeed, authHash)

	return &Session{
		key:       keyDigest[:keySize],
		ivPrefix:  ivDigest[:ivPrefixSize],
		sigPrefix: sigDigest[:sigPrefixSize],
		seq:       int32(binary.BigEndian.Uint32(ivDigest[28:32])),
	}, nil
}

// Seq returns the current sequence number, i.e. the value the most recent
// Encrypt call produced (or the initial derived value if Encrypt has not
// been called yet).
func (s *Session) Seq() int32 { return s.seq }

func seqBytes(seq int32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(seq))
	return b
}

func (s *Session) iv(seq int32) []byte {
	iv := make([]byte, 0, 16)
	iv = append(iv, s.ivPrefix...)
	iv = append(iv, seqBytes(seq)...)
	return iv
}

// Encrypt increments the sequence number, AES-128-CBC-encrypts the
// PKCS#7-padded message under the derived key and an IV built from
// ivPrefix||seq, signs signature-prefix||seq||ciphertext with SHA-256,
// and returns signature||ciphertext along with the seq used (spec.md
// §4.2).
func (s *Session) Encrypt(message []byte) (blob []byte, seq int32, err error) {
	s.seq++
	seq = s.seq

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, 0, fmt.Errorf("klap: create AES cipher: %w", err)
	}

	padded := pkcs7Pad(message, aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, s.iv(seq)).CryptBlocks(ciphertext, padded)

	signature := cryptoutil.SHA256Parts(s.sigPrefix, seqBytes(seq), ciphertext)

	blob = make([]byte, 0, len(signature)+len(ciphertext))
	blob = append(blob, signature...)
	blob = append(blob, ciphertext...)
	return blob, seq, nil
}

// Decrypt decrypts blob, which must have been produced for the current
// sequence number (the value the matching Encrypt call returned). The
// leading 32-byte signature is NOT verified; it is only consumed to find
// the ciphertext offset. DecryptVerified performs the check, and
// Transport uses it when built with WithVerifyResponseSignature(true).
func (s *Session) Decrypt(blob []byte) ([]byte, error) {
	return s.decrypt(blob, s.seq)
}

// DecryptVerified behaves like Decrypt but first checks the leading
// signature against sha256(sigPrefix||seq||ciphertext) for the given
// seq, returning an error on mismatch (Transport wraps it in a
// ProtocolError). This
// implements the optional verification flag spec.md §9 calls out as an
// open question.
func (s *Session) DecryptVerified(blob []byte, seq int32) ([]byte, error) {
	if len(blob) < 32 {
		return nil, fmt.Errorf("klap: response too short: %d bytes", len(blob))
	}
	signature, ciphertext := blob[:32], blob[32:]
	expected := cryptoutil.SHA256Parts(s.sigPrefix, seqBytes(seq), ciphertext)
	if !bytes.Equal(signature, expected) {
		return nil, fmt.Errorf("klap: response signature mismatch")
	}
	return s.decrypt(blob, seq)
}

func (s *Session) decrypt(blob []byte, seq int32) ([]byte, error) {
	if len(blob) < 32 {
		return nil, fmt.Errorf("klap: response too short: %d bytes", len(blob))
	}
	ciphertext := blob[32:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("klap: ciphertext length %d is not a multiple of the block size", len(ciphertext))
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("klap: create AES cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, s.iv(seq)).CryptBlocks(plaintext, ciphertext)

	return pkcs7Unpad(plaintext)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padding)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padding)
	}
	return padded
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	n := len(data)
	if n == 0 {
		return nil, fmt.Errorf("klap: cannot unpad empty data")
	}
	padding := int(data[n-1])
	if padding == 0 || padding > n {
		return nil, fmt.Errorf("klap: invalid PKCS#7 padding")
	}
	for i := n - padding; i < n; i++ {
		if data[i] != byte(padding) {
			return nil, fmt.Errorf("klap: invalid PKCS#7 padding")
		}
	}
	return data[:n-padding], nil
}
