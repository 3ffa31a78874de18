package klap

import (
	"github.com/abhishek/klap/internal/credentials"
	"github.com/abhishek/klap/internal/cryptoutil"
)

// Variant captures the three points at which KLAP v1 and v2 diverge
// (spec.md §3, §4.3.1, §4.3.2, §9): how the auth hash is derived from
// credentials, and how the two handshake challenge/response hashes mix
// the seeds and that auth hash.
type Variant interface {
	Name() string
	AuthHash(creds credentials.Credentials) []byte
	// H1 computes the value the device is expected to echo back in
	// handshake1's response.
	H1(localSeed, remoteSeed, authHash []byte) []byte
	// H2 computes the payload handshake2 sends to the device.
	H2(localSeed, remoteSeed, authHash []byte) []byte
}

// V1 is the original KLAP variant.
type V1 struct{}

func (V1) Name() string { return "v1" }

func (V1) AuthHash(creds credentials.Credentials) []byte {
	return cryptoutil.AuthHashV1(creds)
}

// H1 = sha256(local_seed || auth_hash); remote_seed is not mixed in.
func (V1) H1(localSeed, _, authHash []byte) []byte {
	return cryptoutil.SHA256Parts(localSeed, authHash)
}

// H2 = sha256(remote_seed || auth_hash).
func (V1) H2(_, remoteSeed, authHash []byte) []byte {
	return cryptoutil.SHA256Parts(remoteSeed, authHash)
}

// V2 differs from V1 only in hash construction (spec.md §1, §9).
type V2 struct{}

func (V2) Name() string { return "v2" }

func (V2) AuthHash(creds credentials.Credentials) []byte {
	return cryptoutil.AuthHashV2(creds)
}

// H1 = sha256(local_seed || remote_seed || auth_hash).
func (V2) H1(localSeed, remoteSeed, authHash []byte) []byte {
	return cryptoutil.SHA256Parts(localSeed, remoteSeed, authHash)
}

// H2 = sha256(remote_seed || local_seed || auth_hash).
func (V2) H2(localSeed, remoteSeed, authHash []byte) []byte {
	return cryptoutil.SHA256Parts(remoteSeed, localSeed, authHash)
}
