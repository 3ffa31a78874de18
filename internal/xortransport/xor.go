package xortransport

// initializationVector seeds the auto-keyed XOR stream cipher used by the
// legacy protocol (spec.md §3, §4.4): key₀ = 0xAB, keyᵢ₊₁ = the ciphertext
// byte just produced.
const initializationVector byte = 0xAB

// encryptPayload XORs plaintext against a running key that starts at
// initializationVector and advances to each output byte in turn, so
// byte i's key is ciphertext byte i-1 (spec.md §3: "auto-keyed XOR").
func encryptPayload(plaintext []byte) []byte {
	key := initializationVector
	out := make([]byte, len(plaintext))
	for i, b := range plaintext {
		key ^= b
		out[i] = key
	}
	return out
}

// decryptPayload reverses encryptPayload: the running key starts at
// initializationVector and advances to each ciphertext byte just consumed.
func decryptPayload(ciphertext []byte) []byte {
	key := initializationVector
	out := make([]byte, len(ciphertext))
	for i, b := range ciphertext {
		out[i] = key ^ b
		key = b
	}
	return out
}
