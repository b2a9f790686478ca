// Package session implements the collaborator-facing persistence formats
// described in §6/§10.8: the saved-variables binary file and the
// transcript text file. Neither format is part of the module ABI; this
// package commits to little-endian encoding for the variable vector,
// per the open design note in §9.
package session

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/mna/alo/lang/value"
)

// ReadVars decodes a variable vector of the given length from r: a flat
// sequence of little-endian int32 values (§6).
func ReadVars(r io.Reader, length int32) ([]value.Value, error) {
	if length < 0 {
		return nil, fmt.Errorf("session: negative length %d", length)
	}
	raw := make([]int32, length)
	if err := binary.Read(r, binary.LittleEndian, raw); err != nil {
		return nil, fmt.Errorf("session: reading variables: %w", err)
	}
	vals := make([]value.Value, length)
	for i, v := range raw {
		vals[i] = value.Value(v)
	}
	return vals, nil
}

// WriteVars encodes vals as a flat sequence of little-endian int32 values.
func WriteVars(w io.Writer, vals []value.Value) error {
	raw := make([]int32, len(vals))
	for i, v := range vals {
		raw[i] = int32(v)
	}
	if err := binary.Write(w, binary.LittleEndian, raw); err != nil {
		return fmt.Errorf("session: writing variables: %w", err)
	}
	return nil
}

// SaveFile returns the conventional path for save slot n (§6).
func SaveFile(dir string, n int) string {
	return fmt.Sprintf("%s/savedgame-%d.bin", dir, n)
}

// TranscriptFile returns the conventional path for the transcript of save
// slot n (§6).
func TranscriptFile(dir string, n int) string {
	return fmt.Sprintf("%s/transcript-%d.txt", dir, n)
}

// WriteTranscript truncates (or creates) the transcript file for slot n
// and writes text to it.
func WriteTranscript(dir string, n int, text string) error {
	return os.WriteFile(TranscriptFile(dir, n), []byte(text), 0o644)
}

// AppendTranscript appends text to the transcript file for slot n,
// creating it if necessary. It is used after every command, the way the
// host shell accumulates a full session log alongside the screen output.
func AppendTranscript(dir string, n int, text string) error {
	f, err := os.OpenFile(TranscriptFile(dir, n), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("session: opening transcript: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(text); err != nil {
		return fmt.Errorf("session: appending transcript: %w", err)
	}
	return nil
}
