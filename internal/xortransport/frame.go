package xortransport

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxFrameSize bounds the length prefix any peer is allowed to declare,
// so a misbehaving or confused device can't make readFrame allocate an
// unbounded buffer.
const maxFrameSize = 16 * 1024 * 1024

// writeFrame emits a 4-byte big-endian length of plaintext followed by
// its auto-keyed XOR encoding (spec.md §3 Frame (XOR transport)).
func writeFrame(w io.Writer, plaintext []byte) error {
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(plaintext)))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("xortransport: write length header: %w", err)
	}
	if _, err := w.Write(encryptPayload(plaintext)); err != nil {
		return fmt.Errorf("xortransport: write payload: %w", err)
	}
	return nil
}

// readFrame reads one length-prefixed frame and returns the decrypted
// plaintext.
func readFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("xortransport: read length header: %w", err)
	}
	length := binary.BigEndian.Uint32(header)
	if length > maxFrameSize {
		return nil, fmt.Errorf("xortransport: frame length %d exceeds maximum %d", length, maxFrameSize)
	}

	ciphertext := make([]byte, length)
	if _, err := io.ReadFull(r, ciphertext); err != nil {
		return nil, fmt.Errorf("xortransport: read payload: %w", err)
	}
	return decryptPayload(ciphertext), nil
}
