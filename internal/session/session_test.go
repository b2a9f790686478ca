package session

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/alo/lang/value"
)

func TestVarsRoundTrip(t *testing.T) {
	vals := []value.Value{value.Nil, value.True, value.False, value.Value(12345), value.Value(-99)}

	var buf bytes.Buffer
	require.NoError(t, WriteVars(&buf, vals))

	got, err := ReadVars(bytes.NewReader(buf.Bytes()), int32(len(vals)))
	require.NoError(t, err)
	assert.Equal(t, vals, got)
}

func TestVarsLittleEndian(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteVars(&buf, []value.Value{value.Value(1)}))
	// little-endian encoding of int32(1) is 01 00 00 00
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, buf.Bytes())
}

func TestReadVarsRejectsNegativeLength(t *testing.T) {
	_, err := ReadVars(bytes.NewReader(nil), -1)
	require.Error(t, err)
}

func TestReadVarsRejectsTruncatedInput(t *testing.T) {
	_, err := ReadVars(bytes.NewReader([]byte{1, 2}), 1)
	require.Error(t, err)
}

func TestSaveAndTranscriptFilePaths(t *testing.T) {
	assert.Equal(t, "dir/savedgame-3.bin", SaveFile("dir", 3))
	assert.Equal(t, "dir/transcript-3.txt", TranscriptFile("dir", 3))
}

func TestWriteAndAppendTranscript(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, WriteTranscript(dir, 1, "first line\n"))
	require.NoError(t, AppendTranscript(dir, 1, "second line\n"))

	got, err := os.ReadFile(filepath.Join(dir, "transcript-1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "first line\nsecond line\n", string(got))
}

func TestWriteTranscriptTruncates(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, WriteTranscript(dir, 1, "aaaaaaaaaa"))
	require.NoError(t, WriteTranscript(dir, 1, "bb"))

	got, err := os.ReadFile(filepath.Join(dir, "transcript-1.txt"))
	require.NoError(t, err)
	assert.Equal(t, "bb", string(got))
}
