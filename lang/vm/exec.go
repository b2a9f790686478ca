package vm

import (
	"github.com/mna/alo/lang/module"
	"github.com/mna/alo/lang/value"
)

// exec runs fn's instruction stream starting at pc 0, with locals and
// temporaries addressed relative to base within the shared operand stack
// (§4.2). It returns the arity and value produced by the RET instruction
// that ends execution.
func (m *Machine) exec(funcID int32, fn *module.Function, base int) (nret int, result value.Value, err error) {
	code := fn.Code
	pc := 0

	for {
		if pc < 0 || pc >= len(code) {
			return 0, value.Nil, m.fatalf(funcID, pc, 0, "fell off the end of the instruction stream without RET")
		}
		instr := code[pc]
		here := pc
		pc++
		m.curOp = instr.Op

		switch instr.Op {
		case module.LLI:
			if err := m.push(funcID, here, instr.Arg, value.Value(instr.Arg)); err != nil {
				return 0, value.Nil, err
			}

		case module.POP:
			if err := m.popN(funcID, here, instr.Arg, int(instr.Arg)); err != nil {
				return 0, value.Nil, err
			}

		case module.LDL:
			idx := base + int(instr.Arg)
			v, err := m.stackAt(funcID, here, instr.Arg, idx)
			if err != nil {
				return 0, value.Nil, err
			}
			if err := m.push(funcID, here, instr.Arg, v); err != nil {
				return 0, value.Nil, err
			}

		case module.STL:
			v, err := m.pop(funcID, here, instr.Arg)
			if err != nil {
				return 0, value.Nil, err
			}
			idx := base + int(instr.Arg)
			if idx < base || idx >= len(m.stack) {
				return 0, value.Nil, m.fatalf(funcID, here, instr.Arg, "local index %d out of range", instr.Arg)
			}
			m.stack[idx] = v

		case module.LDG:
			v, err := m.loadGlobal(funcID, here, instr.Arg)
			if err != nil {
				return 0, value.Nil, err
			}
			if err := m.push(funcID, here, instr.Arg, v); err != nil {
				return 0, value.Nil, err
			}

		case module.STG:
			v, err := m.pop(funcID, here, instr.Arg)
			if err != nil {
				return 0, value.Nil, err
			}
			if err := m.storeGlobal(funcID, here, instr.Arg, v); err != nil {
				return 0, value.Nil, err
			}

		case module.LDI:
			e, err := m.pop(funcID, here, instr.Arg)
			if err != nil {
				return 0, value.Nil, err
			}
			v, err := m.loadIndexed(funcID, here, instr.Arg, e)
			if err != nil {
				return 0, value.Nil, err
			}
			if err := m.push(funcID, here, instr.Arg, v); err != nil {
				return 0, value.Nil, err
			}

		case module.STI:
			v, err := m.pop(funcID, here, instr.Arg)
			if err != nil {
				return 0, value.Nil, err
			}
			e, err := m.pop(funcID, here, instr.Arg)
			if err != nil {
				return 0, value.Nil, err
			}
			if err := m.storeIndexed(funcID, here, instr.Arg, e, v); err != nil {
				return 0, value.Nil, err
			}

		case module.JMP:
			pc = here + 1 + int(instr.Arg)

		case module.JNP:
			v, err := m.pop(funcID, here, instr.Arg)
			if err != nil {
				return 0, value.Nil, err
			}
			if !v.Truthy() {
				pc = here + 1 + int(instr.Arg)
			}

		case module.OP1:
			if err := m.op1(funcID, here, instr.Arg); err != nil {
				return 0, value.Nil, err
			}

		case module.OP2:
			if err := m.op2(funcID, here, instr.Arg); err != nil {
				return 0, value.Nil, err
			}

		case module.OP3:
			return 0, value.Nil, m.fatalf(funcID, here, instr.Arg, "OP3 has no defined operator kind")

		case module.CAL:
			if err := m.call(funcID, here, instr.Arg); err != nil {
				return 0, value.Nil, err
			}

		case module.RET:
			return m.ret(funcID, here, instr.Arg)

		default:
			return 0, value.Nil, m.fatalf(funcID, here, int32(instr.Op), "unknown opcode %d", instr.Op)
		}
	}
}

func (m *Machine) pop(funcID int32, instr int, arg int32) (value.Value, error) {
	if len(m.stack) == 0 {
		return value.Nil, m.fatalf(funcID, instr, arg, "stack underflow")
	}
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v, nil
}

func (m *Machine) popN(funcID int32, instr int, arg int32, n int) error {
	if n < 0 || len(m.stack) < n {
		return m.fatalf(funcID, instr, arg, "stack underflow popping %d values", n)
	}
	m.stack = m.stack[:len(m.stack)-n]
	return nil
}

func (m *Machine) stackAt(funcID int32, instr int, arg int32, idx int) (value.Value, error) {
	if idx < 0 || idx >= len(m.stack) {
		return value.Nil, m.fatalf(funcID, instr, arg, "local index %d out of range", arg)
	}
	return m.stack[idx], nil
}

func (m *Machine) loadGlobal(funcID int32, instr int, g int32) (v value.Value, err error) {
	defer m.recoverRange(&err, funcID, instr, g, "global")
	return m.vars.Global(g), nil
}

func (m *Machine) storeGlobal(funcID int32, instr int, g int32, v value.Value) (err error) {
	defer m.recoverRange(&err, funcID, instr, g, "global")
	m.vars.SetGlobal(g, v)
	return nil
}

func (m *Machine) loadIndexed(funcID int32, instr int, off int32, entity value.Value) (v value.Value, err error) {
	defer m.recoverRange(&err, funcID, instr, off, "indexed")
	return m.vars.Indexed(int32(entity), off), nil
}

func (m *Machine) storeIndexed(funcID int32, instr int, off int32, entity, v value.Value) (err error) {
	defer m.recoverRange(&err, funcID, instr, off, "indexed")
	m.vars.SetIndexed(int32(entity), off, v)
	return nil
}

// recoverRange converts the panics vars.Store raises on out-of-range
// addressing into a FatalError, since those bounds are runtime data
// (entity ids, compiled offsets), not compiler invariants.
func (m *Machine) recoverRange(errp *error, funcID int32, instr int, arg int32, kind string) {
	if r := recover(); r != nil {
		*errp = m.fatalf(funcID, instr, arg, "%s addressing error: %v", kind, r)
	}
}

func (m *Machine) op1(funcID int32, instr int, kind int32) error {
	v, err := m.pop(funcID, instr, kind)
	if err != nil {
		return err
	}
	switch kind {
	case module.OP1Not:
		return m.push(funcID, instr, kind, value.Bool(!v.Truthy()))
	default:
		return m.fatalf(funcID, instr, kind, "unknown unary operator %d", kind)
	}
}

func (m *Machine) op2(funcID int32, instr int, kind int32) error {
	y, err := m.pop(funcID, instr, kind)
	if err != nil {
		return err
	}
	x, err := m.pop(funcID, instr, kind)
	if err != nil {
		return err
	}
	switch kind {
	case module.OP2And:
		return m.push(funcID, instr, kind, value.Bool(x.Truthy() && y.Truthy()))
	case module.OP2Or:
		return m.push(funcID, instr, kind, value.Bool(x.Truthy() || y.Truthy()))
	case module.OP2Eq:
		return m.push(funcID, instr, kind, value.Bool(x == y))
	case module.OP2Neq:
		return m.push(funcID, instr, kind, value.Bool(x != y))
	default:
		return m.fatalf(funcID, instr, kind, "unknown binary operator %d", kind)
	}
}

// call implements CAL(n, r): arg encodes 256*r + n. The stack holds
// [.., fnId, a1, .., a_{n-1}]; n >= 1 (§4.2).
func (m *Machine) call(funcID int32, instr int, arg int32) error {
	r := int(arg / 256)
	n := int(arg % 256)
	if n < 1 {
		return m.fatalf(funcID, instr, arg, "CAL argument %d encodes n=%d, want n>=1", arg, n)
	}
	if len(m.stack) < n {
		return m.fatalf(funcID, instr, arg, "stack underflow calling with n=%d", n)
	}

	entry := len(m.stack) - n
	fnVal := m.stack[entry]
	args := append([]value.Value(nil), m.stack[entry+1:]...)
	m.stack = m.stack[:entry]

	result, err := m.Invoke(int32(fnVal), args, r)
	if err != nil {
		return err
	}
	if r == 1 {
		return m.push(funcID, instr, arg, result)
	}
	return nil
}

func (m *Machine) ret(funcID int32, instr int, arg int32) (int, value.Value, error) {
	switch arg {
	case 0:
		return 0, value.Nil, nil
	case 1:
		v, err := m.pop(funcID, instr, arg)
		if err != nil {
			return 0, value.Nil, err
		}
		return 1, v, nil
	default:
		return 0, value.Nil, m.fatalf(funcID, instr, arg, "RET argument must be 0 or 1, got %d", arg)
	}
}
