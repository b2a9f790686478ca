package compiler

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/mna/alo/lang/module"
)

// This file implements a human-readable/writable textual form of a
// Module, independent of any front end, mirroring the way the teacher
// codebase supports a pseudo-assembly form of its own bytecode for
// testing (§4.7/§10.6). The format's sections appear in a fixed order:
//
//	module:
//		globals <n>
//		entities <n>
//		properties <n>
//		init <funcIndex>          # -1 for none
//	strings:
//		"literal text"            # one per line, Go-quoted
//	words:
//		WORD                      # one per line, already canonical
//	function: <index> <nparam> <nret>
//	code:
//		OP arg
//	...                          # repeated function:/code: blocks
//	grammar:
//		ruleset:
//			rule: <ref> <ref> ...   # refs are signed ints, module encoding
//	commands:
//		<symbol> <guard> <function>

// Disassemble renders m as text in the format Assemble parses.
func Disassemble(m *module.Module) string {
	var b strings.Builder

	fmt.Fprintf(&b, "module:\n\tglobals %d\n\tentities %d\n\tproperties %d\n\tinit %d\n",
		m.NumGlobals, m.NumEntities, m.NumProperties, m.InitFunc)

	b.WriteString("strings:\n")
	for _, s := range m.Strings {
		fmt.Fprintf(&b, "\t%s\n", strconv.Quote(s))
	}

	b.WriteString("words:\n")
	for _, w := range m.Words {
		fmt.Fprintf(&b, "\t%s\n", w)
	}

	for i, fn := range m.Functions {
		fmt.Fprintf(&b, "function: %d %d %d\n", i, fn.NParam, fn.NRet)
		b.WriteString("code:\n")
		for _, instr := range fn.Code {
			fmt.Fprintf(&b, "\t%s %d\n", instr.Op, instr.Arg)
		}
	}

	b.WriteString("grammar:\n")
	for _, rs := range m.Grammar {
		b.WriteString("\truleset:\n")
		for _, rule := range rs {
			b.WriteString("\t\trule:")
			for _, ref := range rule {
				fmt.Fprintf(&b, " %d", int32(ref))
			}
			b.WriteByte('\n')
		}
	}

	b.WriteString("commands:\n")
	for _, cmd := range m.Commands {
		fmt.Fprintf(&b, "\t%d %d %d\n", int32(cmd.Symbol), cmd.Guard, cmd.Function)
	}

	return b.String()
}

var opcodeByName = func() map[string]module.Opcode {
	m := map[string]module.Opcode{}
	for op := module.LLI; op <= module.RET; op++ {
		m[op.String()] = op
	}
	return m
}()

// asmState holds the scanner and sticky error used while parsing. rawLine
// preserves the untokenized line for the strings: section, whose Go-quoted
// literals may contain spaces that strings.Fields would otherwise split.
type asmState struct {
	sc      *bufio.Scanner
	rawLine string
	err     error
}

func (a *asmState) next() []string {
	if a.err != nil {
		return nil
	}
	for a.sc.Scan() {
		line := strings.TrimSpace(a.sc.Text())
		if line == "" {
			continue
		}
		a.rawLine = line
		return strings.Fields(line)
	}
	if err := a.sc.Err(); err != nil {
		a.err = err
	}
	a.rawLine = ""
	return nil
}

func (a *asmState) fail(format string, args ...interface{}) {
	if a.err == nil {
		a.err = fmt.Errorf("asm: "+format, args...)
	}
}

func (a *asmState) int32(s string) int32 {
	v, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		a.fail("expected integer, got %q: %s", s, err)
		return 0
	}
	return int32(v)
}

// Assemble parses the textual format produced by Disassemble back into a
// Module.
func Assemble(text string) (*module.Module, error) {
	a := &asmState{sc: bufio.NewScanner(strings.NewReader(text))}
	m := &module.Module{InitFunc: -1}

	fields := a.next()
	if len(fields) == 0 || fields[0] != "module:" {
		return nil, fmt.Errorf("asm: expected \"module:\" section")
	}
	fields = a.next()
	for len(fields) >= 2 {
		switch fields[0] {
		case "globals":
			m.NumGlobals = a.int32(fields[1])
		case "entities":
			m.NumEntities = a.int32(fields[1])
		case "properties":
			m.NumProperties = a.int32(fields[1])
		case "init":
			m.InitFunc = a.int32(fields[1])
		default:
			goto afterModule
		}
		fields = a.next()
	}
afterModule:

	if len(fields) == 0 || fields[0] != "strings:" {
		return nil, fmt.Errorf("asm: expected \"strings:\" section")
	}
	fields = a.next()
	for len(fields) > 0 && strings.HasPrefix(a.rawLine, `"`) {
		s, err := strconv.Unquote(a.rawLine)
		if err != nil {
			return nil, fmt.Errorf("asm: bad string literal %q: %w", a.rawLine, err)
		}
		m.Strings = append(m.Strings, s)
		fields = a.next()
	}

	if len(fields) == 0 || fields[0] != "words:" {
		return nil, fmt.Errorf("asm: expected \"words:\" section")
	}
	fields = a.next()
	for len(fields) == 1 && !isSectionHeader(fields[0]) {
		m.Words = append(m.Words, fields[0])
		fields = a.next()
	}

	for len(fields) > 0 && fields[0] == "function:" {
		if len(fields) != 4 {
			return nil, fmt.Errorf("asm: expected \"function: <index> <nparam> <nret>\", got %v", fields)
		}
		idx := a.int32(fields[1])
		fn := module.Function{NParam: int(a.int32(fields[2])), NRet: int(a.int32(fields[3]))}

		fields = a.next()
		if len(fields) == 0 || fields[0] != "code:" {
			return nil, fmt.Errorf("asm: expected \"code:\" section")
		}
		fields = a.next()
		for len(fields) == 2 {
			op, ok := opcodeByName[fields[0]]
			if !ok {
				return nil, fmt.Errorf("asm: unknown opcode %q", fields[0])
			}
			fn.Code = append(fn.Code, module.Instruction{Op: op, Arg: a.int32(fields[1])})
			fields = a.next()
		}

		for int32(len(m.Functions)) <= idx {
			m.Functions = append(m.Functions, module.Function{})
		}
		m.Functions[idx] = fn
	}

	if len(fields) == 0 || fields[0] != "grammar:" {
		return nil, fmt.Errorf("asm: expected \"grammar:\" section")
	}
	fields = a.next()
	for len(fields) == 1 && fields[0] == "ruleset:" {
		var rs module.RuleSet
		fields = a.next()
		for len(fields) >= 1 && fields[0] == "rule:" {
			var rule module.Rule
			for _, f := range fields[1:] {
				rule = append(rule, module.SymbolRef(a.int32(f)))
			}
			rs = append(rs, rule)
			fields = a.next()
		}
		m.Grammar = append(m.Grammar, rs)
	}

	if len(fields) == 0 || fields[0] != "commands:" {
		return nil, fmt.Errorf("asm: expected \"commands:\" section")
	}
	fields = a.next()
	for len(fields) == 3 {
		m.Commands = append(m.Commands, module.Command{
			Symbol:   module.SymbolRef(a.int32(fields[0])),
			Guard:    a.int32(fields[1]),
			Function: a.int32(fields[2]),
		})
		fields = a.next()
	}

	if a.err != nil {
		return nil, a.err
	}
	return m, nil
}

func isSectionHeader(s string) bool {
	return strings.HasSuffix(s, ":")
}
