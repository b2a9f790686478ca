package vm

import (
	"fmt"

	"github.com/mna/alo/lang/module"
)

// FatalError reports a condition that must terminate the running command:
// stack underflow/overflow, an out-of-range jump or index, an unknown
// opcode, or a built-in type/arity mismatch (§7). It always carries enough
// context to reproduce the failing instruction.
type FatalError struct {
	Function int32
	Instr    int
	Op       module.Opcode
	Arg      int32
	Depth    int
	Reason   string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal vm error in function %d at instruction %d (%s %d, stack depth %d): %s",
		e.Function, e.Instr, e.Op, e.Arg, e.Depth, e.Reason)
}
