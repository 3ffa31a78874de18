// Package cryptoutil wraps the raw hash primitives and credential-derived
// auth hashes the KLAP handshake is built from. Every function here is
// pure: no state, no I/O.
package cryptoutil

import (
	"crypto/md5"  //nolint:gosec // required by the KLAP v1 auth hash construction
	"crypto/sha1" //nolint:gosec // required by the KLAP v2 auth hash construction
	"crypto/sha256"

	"github.com/abhishek/klap/internal/credentials"
)

// MD5 returns the 16-byte MD5 digest of payload.
func MD5(payload []byte) []byte {
	sum := md5.Sum(payload)
	return sum[:]
}

// SHA1 returns the 20-byte SHA-1 digest of payload.
func SHA1(payload []byte) []byte {
	sum := sha1.Sum(payload)
	return sum[:]
}

// SHA256 returns the 32-byte SHA-256 digest of payload.
func SHA256(payload []byte) []byte {
	sum := sha256.Sum256(payload)
	return sum[:]
}

// SHA256Parts hashes the concatenation of parts without an intermediate
// allocation, mirroring the incremental hash.Hash.Write pattern the
// handshake uses for multi-part payloads.
func SHA256Parts(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// coerce treats an unset credential field as the empty string, per
// spec: "missing/null username or password is coerced to empty string".
func coerce(s string) string {
	return s
}

// AuthHashV1 computes the v1 auth hash: md5(md5(username) || md5(password)).
func AuthHashV1(creds credentials.Credentials) []byte {
	userHash := MD5([]byte(coerce(creds.Username)))
	passHash := MD5([]byte(coerce(creds.Password)))
	return MD5(append(append([]byte{}, userHash...), passHash...))
}

// AuthHashV2 computes the v2 auth hash: sha256(sha1(username) || sha1(password)).
func AuthHashV2(creds credentials.Credentials) []byte {
	userHash := SHA1([]byte(coerce(creds.Username)))
	passHash := SHA1([]byte(coerce(creds.Password)))
	return SHA256(append(append([]byte{}, userHash...), passHash...))
}

// OwnerHash returns md5(username), a diagnostic identifier never used in
// any cryptographic derivation.
func OwnerHash(creds credentials.Credentials) []byte {
	return MD5([]byte(coerce(creds.Username)))
}
