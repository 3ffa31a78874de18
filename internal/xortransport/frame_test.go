package xortransport

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteFrameGolden(t *testing.T) {
	// spec.md §8 scenario S6 (golden length prefix): encrypt(t)[:4] must
	// equal len(t.utf8) big-endian, independent of the XOR keystream.
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, []byte(`{"a":1}`)))

	frame := buf.Bytes()
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x07}, frame[:4])
	require.Len(t, frame[4:], 7)
}

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	plaintext := []byte(`{"method":"get_sysinfo"}`)
	require.NoError(t, writeFrame(&buf, plaintext))

	got, err := readFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, plaintext, got)
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})
	_, err := readFrame(&buf)
	require.Error(t, err)
}
