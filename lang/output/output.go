// Package output implements the buffered output formatter (§4.6,
// component D): built-ins append raw bytes; on flush the buffer is
// whitespace-filtered and, for terminal hosts, line-wrapped.
package output

import "strings"

// DefaultLineWidth is used when no explicit width has been configured
// (80-column terminal, §9 `get_screen_width` fallback).
const DefaultLineWidth = 80

// markers are formatting toggles that occupy a column in the raw text but
// are not counted as visible width by the line wrapper (§4.6): `*` toggles
// bold, `~` is a typographic double quote.
const markers = "*~"

// Buffer accumulates built-in output for one command and formats it on
// flush.
type Buffer struct {
	raw       strings.Builder
	lineWidth int
}

// NewBuffer creates an empty Buffer with the default line width.
func NewBuffer() *Buffer {
	return &Buffer{lineWidth: DefaultLineWidth}
}

// SetLineWidth configures the column width used by line wrapping. A width
// of 0 disables wrapping entirely (useful for non-terminal hosts, e.g.
// capturing raw output for golden-file tests).
func (b *Buffer) SetLineWidth(w int) { b.lineWidth = w }

// WriteByte appends a single raw byte.
func (b *Buffer) WriteByte(c byte) { b.raw.WriteByte(c) }

// WriteString appends a raw string.
func (b *Buffer) WriteString(s string) { b.raw.WriteString(s) }

// Len reports the number of unflushed raw bytes.
func (b *Buffer) Len() int { return b.raw.Len() }

// Flush filters and (if enabled) wraps the accumulated output, clears the
// buffer, and invokes present with the formatted text before returning it.
// present is called even for empty output, matching the `quit`/`pause`
// callback contract's "output has been presented" guarantee (§6). A
// non-empty result always gets the trailing blank line enforced by
// `process_output`: the formatted text followed by exactly two newlines.
func (b *Buffer) Flush(present func(string)) string {
	s := Filter(b.raw.String())
	if b.lineWidth > 0 {
		s = Wrap(s, b.lineWidth)
	}
	if s != "" {
		s += "\n\n"
	}
	b.raw.Reset()
	if present != nil {
		present(s)
	}
	return s
}

// Filter applies the whitespace filter (§4.6): strip leading/trailing
// newlines, collapse runs of more than two newlines to exactly two, and
// allow at most one space, only following a non-space character. Tabs are
// dropped.
func Filter(s string) string {
	var out strings.Builder
	numNewlines, numSpaces := 2, 2
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '\n':
			if numNewlines < 2 {
				out.WriteByte('\n')
				numNewlines++
				numSpaces++
			}
		case '\t':
			// dropped
		case ' ':
			if numSpaces == 0 {
				out.WriteByte(' ')
				numSpaces++
			}
		default:
			out.WriteByte(c)
			numNewlines, numSpaces = 0, 0
		}
	}

	filtered := out.String()
	// trailing run of newlines (numNewlines counts how many of the last
	// emitted bytes are newlines) is stripped, mirroring the in-place
	// `out -= num_newlines` truncation. The C original only performs this
	// truncation once something was emitted (`if (out > buf)`).
	if len(filtered) > 0 {
		cut := numNewlines
		if cut > len(filtered) {
			cut = len(filtered)
		}
		filtered = filtered[:len(filtered)-cut]
	}
	return filtered
}

// Wrap breaks s into lines of at most width visible columns, breaking at
// the last space not exceeding width. Marker bytes (`*`, `~`) occupy no
// visible column (§4.6): they still appear in the output, they just don't
// count toward the wrap width.
func Wrap(s string, width int) string {
	b := []byte(s)
	lastSpace := -1
	visWidth := 0     // visible columns since the last newline (or start)
	visSinceSpace := 0 // visible columns since lastSpace, excluding the space itself

	for i := 0; i < len(b); i++ {
		switch b[i] {
		case '\n':
			lastSpace = -1
			visWidth = 0
			visSinceSpace = 0
		case ' ':
			lastSpace = i
			visSinceSpace = 0
			visWidth++
		default:
			if strings.IndexByte(markers, b[i]) < 0 {
				visWidth++
				visSinceSpace++
			}
			if visWidth > width && lastSpace != -1 {
				b[lastSpace] = '\n'
				visWidth = visSinceSpace
				lastSpace = -1
			}
		}
	}
	return string(b)
}
