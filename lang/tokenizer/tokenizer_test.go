package tokenizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/alo/lang/module"
)

func TestNormalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"look at the ball", "LOOK AT THE BALL"},
		{"  LOOK   AT\tthe\nball  ", "LOOK AT THE BALL"},
		{"what's this?!", "WHATS THIS"},
		{"", ""},
		{"   ", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Normalize(c.in), "Normalize(%q)", c.in)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{"look AT the BALL!", "  multi   space  ", "already CANONICAL"}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		assert.Equal(t, once, twice, "Normalize is not idempotent for %q", in)
	}
}

func sampleModule() *module.Module {
	return &module.Module{Words: []string{"LOOK", "AT", "BALL"}}
}

func TestTokenizeResolvesWords(t *testing.T) {
	mod := sampleModule()
	tokens, err := Tokenize(mod, "look at ball")
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 1, 2}, tokens)
}

func TestTokenizeEmptyLine(t *testing.T) {
	mod := sampleModule()
	tokens, err := Tokenize(mod, "   ")
	require.NoError(t, err)
	assert.Nil(t, tokens)
}

func TestTokenizeUnknownWord(t *testing.T) {
	mod := sampleModule()
	_, err := Tokenize(mod, "look at nowhere")
	require.Error(t, err)
	var unknown *UnknownWordError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "NOWHERE", unknown.Word)
}

func TestTokenizeTooManyWords(t *testing.T) {
	mod := sampleModule()
	_, err := TokenizeWithLimit(mod, "look at ball look at ball", 3)
	require.Error(t, err)
	var tooMany *TooManyWordsError
	require.ErrorAs(t, err, &tooMany)
	assert.Equal(t, 6, tooMany.Count)
}
