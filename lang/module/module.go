// Package module implements the bit-exact chunked binary module format
// (§4.1): the IFF-style container the compiler back-end writes and the
// virtual machine loads. It also owns the static data structures the
// format describes — functions, the word and string tables, the grammar,
// and the command table.
package module

import (
	"fmt"

	"github.com/dolthub/swiss"
)

// Version is the module format's major.minor version this package reads
// and writes. Only the major byte is checked on load (§4.1).
const Version uint16 = 0x0100

// Instruction is a single bytecode instruction: an opcode and its 24-bit
// signed argument.
type Instruction struct {
	Op  Opcode
	Arg int32
}

// Function is a compiled function: its formal arity, its result arity
// (0 or 1), and its instruction stream (without the terminating (0,0)
// instruction, which is a serialization detail, not part of the runtime
// representation).
type Function struct {
	NParam int
	NRet   int
	Code   []Instruction
}

// Command is a single entry of the command table: the grammar symbol it is
// triggered by, its optional guard function (or -1 for "always active"),
// and the body function to invoke.
type Command struct {
	Symbol   SymbolRef
	Guard    int32
	Function int32
}

// Module is the immutable, in-memory form of a compiled program (§3). It
// is produced either by module.Read (from the binary format) or by
// compiler.Context.Finish (from a front end's declarations).
type Module struct {
	NumGlobals    int32
	NumEntities   int32
	NumProperties int32
	InitFunc      int32

	Strings   []string
	Functions []Function
	Words     []string
	Grammar   Grammar
	Commands  []Command

	// words indexes Words by canonical text for O(1) tokenizer lookups. It
	// is rebuilt by buildWordIndex, never serialized: nothing observable
	// depends on its internal layout, only on the word->index mapping it
	// exposes (§4.1 EXPANSION).
	words *swiss.Map[string, int32]
}

// NumVariables returns the length of the flat variable vector this module
// requires (§3).
func (m *Module) NumVariables() int32 {
	return m.NumGlobals + m.NumEntities*m.NumProperties
}

// LookupWord returns the index of word in the module's word table, and
// whether it was found. word must already be in canonical form (§4.5).
func (m *Module) LookupWord(word string) (int32, bool) {
	if m.words == nil {
		m.buildWordIndex()
	}
	idx, ok := m.words.Get(word)
	return idx, ok
}

// buildWordIndex populates the word lookup table from Words. Duplicate
// words resolve to their lowest index, matching linear-scan semantics.
func (m *Module) buildWordIndex() {
	tbl := swiss.NewMap[string, int32](uint32(2*len(m.Words) + 1))
	for i := len(m.Words) - 1; i >= 0; i-- {
		tbl.Put(m.Words[i], int32(i))
	}
	m.words = tbl
}

// LoadError reports a failure to parse the binary module format (§7): a
// single, non-partial failure, never a partially-loaded Module.
type LoadError struct {
	Reason string
}

func (e *LoadError) Error() string { return fmt.Sprintf("module: %s", e.Reason) }

func loadErrorf(format string, args ...interface{}) *LoadError {
	return &LoadError{Reason: fmt.Sprintf(format, args...)}
}
