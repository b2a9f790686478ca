package module

import "fmt"

// Opcode is the numeric instruction tag stored in a compiled Function's
// code stream. The numeric values are part of the module ABI: the loader,
// the compiler back-end, and the virtual machine must all agree on them.
type Opcode uint8

// Instruction set (§4.2). Opcode 0 is never emitted as a real instruction:
// a (0, 0) instruction is the function terminator sentinel the FUN chunk's
// instruction stream uses to mark the end of each function (§4.1).
const (
	_   Opcode = iota // 0: terminator sentinel, not a real opcode
	LLI                // push literal
	POP                // discard n
	LDL                // push local at base+i
	STL                // pop -> local at base+i
	LDG                // push globals[g]
	STG                // pop -> globals[g]
	LDI                // pop entity e; push vars[globals + properties*e + off]
	STI                // pop value, pop entity e; store vars[globals + properties*e + off]
	JMP                // pc += arg
	JNP                // pop v; if not truthy(v): pc += arg
	OP1                // unary op
	OP2                // binary op
	OP3                // ternary op (reserved, no kind currently defined)
	CAL                // call: arg = 256*nret + nargs
	RET                // return arg (0 or 1) values
)

// Unary operator kinds for OP1.
const (
	OP1Not int32 = 1
)

// Binary operator kinds for OP2.
const (
	OP2And int32 = 2
	OP2Or  int32 = 3
	OP2Eq  int32 = 4
	OP2Neq int32 = 5
)

var opcodeNames = [...]string{
	LLI: "LLI", POP: "POP", LDL: "LDL", STL: "STL",
	LDG: "LDG", STG: "STG", LDI: "LDI", STI: "STI",
	JMP: "JMP", JNP: "JNP", OP1: "OP1", OP2: "OP2", OP3: "OP3",
	CAL: "CAL", RET: "RET",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		if name := opcodeNames[op]; name != "" {
			return name
		}
	}
	return fmt.Sprintf("illegal opcode (%d)", uint8(op))
}

// Valid reports whether op is a recognized, non-sentinel opcode.
func (op Opcode) Valid() bool {
	return op >= LLI && op <= RET
}
