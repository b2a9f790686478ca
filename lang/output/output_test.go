package output

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterCollapsesWhitespace(t *testing.T) {
	got := Filter("\n\n\nhello   world\t\tagain\n\n\n\n")
	assert.Equal(t, "hello worldagain", got)
}

func TestFilterEmptyInput(t *testing.T) {
	assert.Equal(t, "", Filter(""))
	assert.Equal(t, "", Filter("\n\n\n"))
}

func TestFilterSpaceOnlyAfterNonSpace(t *testing.T) {
	got := Filter("   leading space is dropped")
	assert.Equal(t, "leading space is dropped", got)
}

func TestFilterAtMostTwoNewlines(t *testing.T) {
	got := Filter("a\n\n\n\n\nb")
	assert.Equal(t, "a\n\nb", got)
}

func TestWrapBreaksAtLastSpace(t *testing.T) {
	got := Wrap("one two three four", 9)
	assert.Equal(t, "one two\nthree\nfour", got)
}

func TestWrapNoBreakNeeded(t *testing.T) {
	got := Wrap("short line", 80)
	assert.Equal(t, "short line", got)
}

func TestWrapMarkersExcludedFromWidth(t *testing.T) {
	// "*bold*" has 4 visible columns (b,o,l,d); the asterisks must not
	// count toward the wrap width.
	got := Wrap("*bold* word after", 4)
	assert.Equal(t, "*bold*\nword\nafter", got)
}

func TestWrapExistingNewlineResetsWidth(t *testing.T) {
	got := Wrap("short\nlonger than the width right here", 10)
	assert.Contains(t, got, "short\n")
}

func TestBufferFlushFiltersAndWraps(t *testing.T) {
	b := NewBuffer()
	b.SetLineWidth(10)
	b.WriteString("one two three four")

	var presented string
	got := b.Flush(func(s string) { presented = s })
	require.Equal(t, got, presented)
	// non-empty output always gets the trailing blank line enforced by
	// the formatter's double-newline rule.
	assert.Equal(t, "one two\nthree four\n\n", got)
	assert.Equal(t, 0, b.Len())
}

func TestBufferFlushZeroWidthDisablesWrap(t *testing.T) {
	b := NewBuffer()
	b.SetLineWidth(0)
	b.WriteString("one two three four five six seven eight nine ten")
	got := b.Flush(nil)
	// strip the trailing blank line before checking that no wrap
	// newlines were introduced into the body itself.
	body := strings.TrimSuffix(got, "\n\n")
	assert.NotContains(t, body, "\n")
}

func TestBufferFlushPresentsEvenEmptyOutput(t *testing.T) {
	b := NewBuffer()
	called := false
	b.Flush(func(s string) {
		called = true
		assert.Equal(t, "", s)
	})
	assert.True(t, called)
}

func TestBufferFlushNonEmptyGetsTrailingBlankLine(t *testing.T) {
	b := NewBuffer()
	b.WriteString("Hello, world!")
	got := b.Flush(nil)
	assert.Equal(t, "Hello, world!\n\n", got)
}
