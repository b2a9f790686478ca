package module

// A SymbolRef is a tagged index pointing either to a word (terminal) or to
// a rule set (non-terminal), using the module format's signed-integer
// encoding (§4.1): positive k>0 denotes non-terminal k-1, negative k<0
// denotes terminal -1-k, and 0 means "none" (only valid inside
// optional-empty rules).
type SymbolRef int32

// NoneRef is the "none" symbol ref, used only inside optional-empty rules.
const NoneRef SymbolRef = 0

// Terminal returns the symbol ref denoting word index i.
func Terminal(i int32) SymbolRef { return SymbolRef(-1 - i) }

// NonTerminal returns the symbol ref denoting rule-set index i.
func NonTerminal(i int32) SymbolRef { return SymbolRef(i + 1) }

// IsNone reports whether ref is the "none" placeholder.
func (ref SymbolRef) IsNone() bool { return ref == NoneRef }

// IsTerminal reports whether ref denotes a word index.
func (ref SymbolRef) IsTerminal() bool { return ref < 0 }

// IsNonTerminal reports whether ref denotes a rule-set index.
func (ref SymbolRef) IsNonTerminal() bool { return ref > 0 }

// TerminalIndex returns the word index denoted by ref. It panics if ref is
// not a terminal.
func (ref SymbolRef) TerminalIndex() int32 {
	if !ref.IsTerminal() {
		panic("module: TerminalIndex of non-terminal symbol ref")
	}
	return -1 - int32(ref)
}

// NonTerminalIndex returns the rule-set index denoted by ref. It panics if
// ref is not a non-terminal.
func (ref SymbolRef) NonTerminalIndex() int32 {
	if !ref.IsNonTerminal() {
		panic("module: NonTerminalIndex of terminal symbol ref")
	}
	return int32(ref) - 1
}

// A Rule is an ordered sequence of symbol refs.
type Rule []SymbolRef

// A RuleSet is the set of production rules associated with one
// non-terminal.
type RuleSet []Rule

// A Grammar is an array of rule sets indexed by non-terminal. Rule set i
// may only reference non-terminals with index < i (§4.3): the grammar is
// guaranteed non-recursive.
type Grammar []RuleSet
