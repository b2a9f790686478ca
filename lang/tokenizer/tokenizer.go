// Package tokenizer implements normalization and word lookup (§4.5,
// component E): turning a raw input line into a sequence of word indices
// against a module's word table.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/mna/alo/lang/module"
)

// MaxCommandWords bounds the number of tokens accepted from a single
// command line (§4.4).
const MaxCommandWords = 50

// Normalize converts s to canonical form (§4.5): drop non-alphanumeric,
// non-whitespace characters; uppercase ASCII letters; collapse any run of
// whitespace to a single space; trim leading and trailing whitespace.
// Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastWasSpace := true // treat start-of-string as "after a space" to trim leading whitespace
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r - 'a' + 'A')
			lastWasSpace = false
		case (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastWasSpace = false
		case isSpace(r):
			if !lastWasSpace {
				b.WriteByte(' ')
				lastWasSpace = true
			}
		default:
			// drop
		}
	}
	out := b.String()
	return strings.TrimRight(out, " ")
}

func isSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	default:
		return false
	}
}

// UnknownWordError reports that a tokenized line contained a word absent
// from the module's word table (§4.4 step 1).
type UnknownWordError struct {
	Word string
}

func (e *UnknownWordError) Error() string { return fmt.Sprintf("Unknown word: %s", e.Word) }

// TooManyWordsError reports that a line exceeded the word limit in force
// (MaxCommandWords, or the maxWords given to TokenizeWithLimit).
type TooManyWordsError struct {
	Count int
	Limit int
}

func (e *TooManyWordsError) Error() string {
	return fmt.Sprintf("too many words: %d exceeds the limit of %d", e.Count, e.Limit)
}

// Tokenize normalizes line, splits it on single-space boundaries, and
// resolves each token against mod's word table. It returns an
// *UnknownWordError for the first unrecognized token, or a
// *TooManyWordsError if the line has more than MaxCommandWords tokens
// (§4.4 step 1).
func Tokenize(mod *module.Module, line string) ([]int32, error) {
	return TokenizeWithLimit(mod, line, MaxCommandWords)
}

// TokenizeWithLimit behaves like Tokenize but enforces maxWords instead of
// the package default, letting a host override MAX_COMMAND_WORDS (§10.2).
func TokenizeWithLimit(mod *module.Module, line string, maxWords int) ([]int32, error) {
	norm := Normalize(line)
	if norm == "" {
		return nil, nil
	}
	words := strings.Split(norm, " ")
	if len(words) > maxWords {
		return nil, &TooManyWordsError{Count: len(words), Limit: maxWords}
	}

	tokens := make([]int32, len(words))
	for i, w := range words {
		idx, ok := mod.LookupWord(w)
		if !ok {
			return nil, &UnknownWordError{Word: w}
		}
		tokens[i] = idx
	}
	return tokens, nil
}
