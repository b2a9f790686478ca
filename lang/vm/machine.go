// Package vm implements the stack virtual machine (§4.2, component C):
// opcode dispatch, the call/return protocol with arity coercion, the
// built-in table, and the output buffer built-ins write through.
package vm

import (
	"fmt"

	"github.com/mna/alo/lang/module"
	"github.com/mna/alo/lang/output"
	"github.com/mna/alo/lang/value"
	"github.com/mna/alo/lang/vars"
)

// MaxStackSize bounds the operand stack (§3).
const MaxStackSize = 1000

// Host is the pair of callbacks the VM suspends to (§6): quit must end the
// command loop (or the process), pause must synchronously return once the
// host has acknowledged. Both are called only after the output buffer has
// been flushed to the host.
type Host interface {
	Quit(code int)
	Pause()
}

// Machine is a loaded module plus its mutable run-time state: the variable
// store, the operand stack, and the output buffer.
type Machine struct {
	mod  *module.Module
	vars *vars.Store
	host Host
	out  *output.Buffer

	// Warnf receives recoverable-warning diagnostics (§7): arity mismatches,
	// missing writef arguments. Defaults to a no-op; the CLI wires it to
	// stderr.
	Warnf func(format string, args ...interface{})

	stack  []value.Value
	frames []int32          // function ids of the active call chain, pushed and popped by callFunction
	curOp  module.Opcode // opcode exec is currently dispatching, for FatalError context
}

// New creates a Machine over mod. Variables are allocated but not
// initialized by init_func; call Reinitialize to run the init function.
func New(mod *module.Module, host Host) *Machine {
	return &Machine{
		mod:   mod,
		vars:  vars.New(mod.NumGlobals, mod.NumEntities, mod.NumProperties),
		host:  host,
		out:   output.NewBuffer(),
		Warnf: func(string, ...interface{}) {},
		stack: make([]value.Value, 0, MaxStackSize),
	}
}

// Vars returns the machine's variable store.
func (m *Machine) Vars() *vars.Store { return m.vars }

// Output returns the machine's output buffer.
func (m *Machine) Output() *output.Buffer { return m.out }

// Module returns the loaded module this machine executes.
func (m *Machine) Module() *module.Module { return m.mod }

// Reinitialize resets every variable to nil and, if the module declares an
// init_func, invokes it with 0 arguments and 0 expected results (§4.2).
func (m *Machine) Reinitialize() error {
	m.vars.Reset()
	if m.mod.InitFunc >= 0 {
		if _, err := m.Invoke(m.mod.InitFunc, nil, 0); err != nil {
			return err
		}
	}
	return nil
}

// Invoke calls funcID (a built-in if negative, else a module function)
// with args, requesting nret results (0 or 1). This is the entry point
// used by the command dispatcher to evaluate guards and command bodies,
// and by Reinitialize for init_func (§4.2, §4.4).
func (m *Machine) Invoke(funcID int32, args []value.Value, nret int) (value.Value, error) {
	if funcID < 0 {
		return m.callBuiltin(int(-funcID-1), args, nret)
	}
	if int(funcID) >= len(m.mod.Functions) {
		return value.Nil, m.fatalf(funcID, -1, 0, "call to undefined function %d", funcID)
	}
	return m.callFunction(funcID, &m.mod.Functions[funcID], args, nret)
}

// callFunction runs fn with the caller's args coerced to fn.NParam slots
// (padding with nil or dropping extras, warning on mismatch), and adjusts
// the actual RET arity to the caller's requested nret (§4.2 call protocol).
func (m *Machine) callFunction(funcID int32, fn *module.Function, args []value.Value, nret int) (value.Value, error) {
	if len(args) != fn.NParam {
		m.Warnf("function %d: called with %d args, expected %d", funcID, len(args), fn.NParam)
	}

	base := len(m.stack)
	for i := 0; i < fn.NParam; i++ {
		if i < len(args) {
			if err := m.push(funcID, -1, int32(fn.NParam), args[i]); err != nil {
				return value.Nil, err
			}
		} else {
			if err := m.push(funcID, -1, int32(fn.NParam), value.Nil); err != nil {
				return value.Nil, err
			}
		}
	}

	m.frames = append(m.frames, funcID)
	gotNRet, result, err := m.exec(funcID, fn, base)
	m.frames = m.frames[:len(m.frames)-1]
	if err != nil {
		return value.Nil, err
	}

	m.stack = m.stack[:base]

	if nret == 1 && gotNRet == 0 {
		m.Warnf("function %d: missing return value, substituting nil", funcID)
		result = value.Nil
	}
	if nret == 0 {
		result = value.Nil
	}
	return result, nil
}

func (m *Machine) push(funcID int32, instr int, arg int32, v value.Value) error {
	if len(m.stack) >= MaxStackSize {
		return m.fatalf(funcID, instr, arg, "stack overflow (limit %d)", MaxStackSize)
	}
	m.stack = append(m.stack, v)
	return nil
}

func (m *Machine) fatalf(funcID int32, instr int, arg int32, format string, args ...interface{}) *FatalError {
	return &FatalError{
		Function: funcID,
		Instr:    instr,
		Op:       m.curOp,
		Arg:      arg,
		Depth:    len(m.stack),
		Reason:   fmt.Sprintf(format, args...),
	}
}
