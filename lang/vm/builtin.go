package vm

import (
	"fmt"
	"strings"

	"github.com/mna/alo/lang/value"
)

// Built-in indices, fixed order (§4.2): built-in id -1-index in the
// bytecode denotes builtins[index].
const (
	builtinWrite = iota
	builtinWriteln
	builtinWritef
	builtinPause
	builtinQuit
	builtinReset
)

var builtinNames = [...]string{
	builtinWrite:   "write",
	builtinWriteln: "writeln",
	builtinWritef:  "writef",
	builtinPause:   "pause",
	builtinQuit:    "quit",
	builtinReset:   "reset",
}

func (m *Machine) callBuiltin(idx int, args []value.Value, nret int) (value.Value, error) {
	if idx < 0 || idx >= len(builtinNames) {
		return value.Nil, m.fatalf(int32(-idx-1), -1, 0, "call to undefined builtin %d", idx)
	}

	var result value.Value = value.Nil
	switch idx {
	case builtinWrite:
		m.write(args)
	case builtinWriteln:
		m.write(args)
		m.out.WriteByte('\n')
	case builtinWritef:
		m.writef(args)
	case builtinPause:
		m.out.Flush(func(s string) { m.host.Pause() })
	case builtinQuit:
		m.out.Flush(func(s string) { m.host.Quit(0) })
	case builtinReset:
		m.vars.Reset()
	}

	if nret == 0 {
		return value.Nil, nil
	}
	return result, nil
}

// resolveString renders v for output (§4.2): nil -> "(nil)", an
// out-of-range string index -> "(err)", otherwise strings[v].
func (m *Machine) resolveString(v value.Value) string {
	if v == value.Nil {
		return "(nil)"
	}
	i := int32(v)
	if i < 0 || int(i) >= len(m.mod.Strings) {
		return "(err)"
	}
	return m.mod.Strings[i]
}

// write appends each argument, space-separated with a leading space,
// resolved to its string form (§4.2, builtin `write`).
func (m *Machine) write(args []value.Value) {
	for _, a := range args {
		m.out.WriteByte(' ')
		m.out.WriteString(m.resolveString(a))
	}
}

// writef implements the format builtin: the first argument is a format
// string; %d/%i substitute integer args, %s substitute string args, %%
// emits a literal percent. Excess or missing arguments warn (§4.2).
func (m *Machine) writef(args []value.Value) {
	if len(args) == 0 {
		m.Warnf("writef: called with no arguments, expected at least a format string")
		return
	}
	format := m.resolveString(args[0])
	rest := args[1:]
	next := 0

	take := func() (value.Value, bool) {
		if next >= len(rest) {
			m.Warnf("writef: missing argument for format verb")
			return value.Nil, false
		}
		v := rest[next]
		next++
		return v, true
	}

	var sb strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			sb.WriteByte(c)
			continue
		}
		if i+1 >= len(format) {
			sb.WriteByte('%')
			break
		}
		i++
		switch format[i] {
		case 'd', 'i':
			if v, ok := take(); ok {
				sb.WriteString(fmt.Sprintf("%d", int32(v)))
			}
		case 's':
			if v, ok := take(); ok {
				sb.WriteString(m.resolveString(v))
			}
		case '%':
			sb.WriteByte('%')
		default:
			sb.WriteByte('%')
			sb.WriteByte(format[i])
		}
	}
	if next < len(rest) {
		m.Warnf("writef: %d excess argument(s) not consumed by format string", len(rest)-next)
	}
	m.out.WriteString(sb.String())
}
