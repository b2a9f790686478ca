// Package dispatch implements the command dispatcher (§4.4, component G):
// it wires the tokenizer and grammar engine together to match a raw input
// line against a module's command table, resolve guards, and invoke the
// winning command's body.
package dispatch

import (
	"github.com/mna/alo/lang/grammar"
	"github.com/mna/alo/lang/module"
	"github.com/mna/alo/lang/tokenizer"
	"github.com/mna/alo/lang/value"
)

// Fixed resolution messages (§4.4 step 3).
const (
	MsgNoMatch    = "You can't do that in this game."
	MsgInactive   = "That's not possible right now."
	MsgAmbiguous  = "That command is ambiguous."
)

// Invoker is the subset of the VM the dispatcher needs: evaluating guards
// as 1-result calls and invoking command bodies as 0-result calls (§4.2,
// §4.4).
type Invoker interface {
	Invoke(funcID int32, args []value.Value, nret int) (value.Value, error)
}

// Dispatch tokenizes and matches line against mod's command table using
// the default MAX_COMMAND_WORDS limit, then invokes the resolved command.
// It does not write anything itself: it returns the message the caller
// should write for the tokenizer- and match-level failures (the tokenizer
// error text, or one of the three fixed resolution messages); an empty
// message paired with a nil error means a command body was invoked (whose
// own output belongs to the caller's output buffer).
func Dispatch(inv Invoker, mod *module.Module, line string) (string, error) {
	return DispatchWithLimit(inv, mod, line, tokenizer.MaxCommandWords)
}

// DispatchWithLimit behaves like Dispatch but enforces maxWords instead of
// the package default (§10.2).
func DispatchWithLimit(inv Invoker, mod *module.Module, line string, maxWords int) (string, error) {
	tokens, err := tokenizer.TokenizeWithLimit(mod, line, maxWords)
	if err != nil {
		return err.Error(), nil
	}

	numMatched, numActive := 0, 0
	cmdFunc := int32(-1)

	for _, cmd := range mod.Commands {
		if !grammar.Derives(mod.Grammar, cmd.Symbol, tokens) {
			continue
		}
		numMatched++

		active := cmd.Guard < 0
		if !active {
			result, err := inv.Invoke(cmd.Guard, nil, 1)
			if err != nil {
				return "", err
			}
			active = result.Truthy()
		}
		if active {
			numActive++
			if numActive == 1 {
				cmdFunc = cmd.Function
			}
		}
	}

	switch {
	case numMatched == 0:
		return MsgNoMatch, nil
	case numActive == 0:
		return MsgInactive, nil
	case numActive > 1:
		return MsgAmbiguous, nil
	}

	_, err = inv.Invoke(cmdFunc, nil, 0)
	return "", err
}
