// Package grammar implements the context-free grammar representation and
// backtracking recognizer (§4.3, component F). The grammar's
// non-recursion invariant — rule-set i may only reference rule-sets with
// a lower index — is what keeps the naive top-down matcher below
// terminating.
package grammar

import "github.com/mna/alo/lang/module"

// Derives reports whether ref derives exactly the token sequence tokens
// (§4.3). A terminal ref matches a single-token span equal to its word
// index; a non-terminal matches if any of its rules matches the full
// span.
func Derives(g module.Grammar, ref module.SymbolRef, tokens []int32) bool {
	return matchSymbol(g, ref, tokens, 0, len(tokens))
}

func matchSymbol(g module.Grammar, ref module.SymbolRef, tokens []int32, i, j int) bool {
	switch {
	case ref.IsNone():
		// the "none" placeholder denotes deliberate absence; it matches only
		// the empty span, the shape it takes inside optional-empty rules.
		return i == j
	case ref.IsTerminal():
		return j-i == 1 && tokens[i] == ref.TerminalIndex()
	case ref.IsNonTerminal():
		for _, rule := range g[ref.NonTerminalIndex()] {
			if matchRule(g, rule, tokens, i, j, 0) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// matchRule tries to match rule[pos:] against tokens[i:j], splitting the
// span across the remaining refs by backtracking over every possible
// split point.
func matchRule(g module.Grammar, rule module.Rule, tokens []int32, i, j, pos int) bool {
	if pos == len(rule) {
		return i == j
	}
	for k := i; k <= j; k++ {
		if matchSymbol(g, rule[pos], tokens, i, k) && matchRule(g, rule, tokens, k, j, pos+1) {
			return true
		}
	}
	return false
}

// Nullable computes, for each non-terminal in g, whether it can derive the
// empty token sequence (§4.3). A non-terminal is nullable iff it has a
// rule every one of whose refs is itself nullable (terminals are never
// nullable; an empty rule is vacuously nullable). The non-recursion
// invariant lets this be computed in one forward pass.
func Nullable(g module.Grammar) []bool {
	nullable := make([]bool, len(g))
	for nt, rs := range g {
		for _, rule := range rs {
			if ruleNullable(rule, int32(nt), nullable) {
				nullable[nt] = true
				break
			}
		}
	}
	return nullable
}

func ruleNullable(rule module.Rule, nt int32, nullable []bool) bool {
	for _, ref := range rule {
		switch {
		case ref.IsNone():
			// contributes nothing; does not block nullability
		case ref.IsTerminal():
			return false
		case ref.IsNonTerminal():
			idx := ref.NonTerminalIndex()
			if idx >= nt || !nullable[idx] {
				return false
			}
		}
	}
	return true
}
