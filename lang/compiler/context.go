// Package compiler implements the back-end that a source-language front
// end (out of scope here) drives to build a Module: deduplicated symbol
// tables, per-function bytecode emission, grammar rule-set canonicalization,
// and command list assembly (§4.7, component H).
package compiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mna/alo/lang/module"
)

// Built-in function ids, fixed and pre-bound at negative indices (§4.2,
// §4.7). A front end may reference these by name via ResolveFunction.
const (
	BuiltinWrite   int32 = -1
	BuiltinWriteln int32 = -2
	BuiltinWritef  int32 = -3
	BuiltinPause   int32 = -4
	BuiltinQuit    int32 = -5
	BuiltinReset   int32 = -6
)

var builtinsByName = map[string]int32{
	"write":   BuiltinWrite,
	"writeln": BuiltinWriteln,
	"writef":  BuiltinWritef,
	"pause":   BuiltinPause,
	"quit":    BuiltinQuit,
	"reset":   BuiltinReset,
}

// Context bundles every table a compilation needs, threaded through the
// back-end's entry points instead of relying on package-level mutable
// state. This makes the compiler re-entrant and testable in isolation
// (§4.7 EXPANSION, §9 "bundle global mutable compiler state").
type Context struct {
	numEntities int32

	globalNames   map[string]int32
	propertyNames map[string]int32
	numProperties int32

	strings     []string
	stringIndex map[string]int32

	words     []string
	wordIndex map[string]int32

	functions []module.Function
	funcNames map[string]int32

	ruleSets     []module.RuleSet
	ruleSetByKey map[string]int32

	commands []module.Command

	initFunc int32

	cur *funcBuilder

	err error
}

// funcBuilder holds the state for the function currently being emitted:
// its name (for forward references), formal arity, accumulated
// instructions, and the pending-call argument-count stack that lets
// EmitCall count arguments for possibly-nested calls (§4.7).
type funcBuilder struct {
	name      string
	nparam    int
	nret      int
	code      []module.Instruction
	callDepth []int32
}

// NewContext creates an empty compiler context for a module with the
// given number of entities (the other dimensions — globals, properties —
// grow as names are declared).
func NewContext(numEntities int32) *Context {
	return &Context{
		numEntities:   numEntities,
		globalNames:   map[string]int32{},
		propertyNames: map[string]int32{},
		stringIndex:   map[string]int32{},
		wordIndex:     map[string]int32{},
		funcNames:     map[string]int32{},
		ruleSetByKey:  map[string]int32{},
		initFunc:      -1,
	}
}

// Err returns the first error recorded by the context, if any. Later
// errors never replace the first one, so callers can chain several calls
// and check Err once at the end. The Declare/Emit/Add/Bind methods keep
// running after an error has been recorded.
func (c *Context) Err() error { return c.err }

func (c *Context) fail(format string, args ...interface{}) {
	if c.err == nil {
		c.err = fmt.Errorf("compiler: "+format, args...)
	}
}

// DeclareGlobal interns name as a global variable and returns its slot
// index, reusing the existing index if name was already declared.
func (c *Context) DeclareGlobal(name string) int32 {
	if idx, ok := c.globalNames[name]; ok {
		return idx
	}
	idx := int32(len(c.globalNames))
	c.globalNames[name] = idx
	return idx
}

// DeclareProperty interns name as an entity property and returns its
// column index within the entity x property matrix.
func (c *Context) DeclareProperty(name string) int32 {
	if idx, ok := c.propertyNames[name]; ok {
		return idx
	}
	idx := int32(len(c.propertyNames))
	c.propertyNames[name] = idx
	c.numProperties = int32(len(c.propertyNames))
	return idx
}

// InternString deduplicates s into the string table and returns its
// index.
func (c *Context) InternString(s string) int32 {
	if idx, ok := c.stringIndex[s]; ok {
		return idx
	}
	idx := int32(len(c.strings))
	c.strings = append(c.strings, s)
	c.stringIndex[s] = idx
	return idx
}

// InternWord deduplicates a canonical word into the word table and
// returns its index. word must already be normalized (§4.5).
func (c *Context) InternWord(word string) int32 {
	if idx, ok := c.wordIndex[word]; ok {
		return idx
	}
	idx := int32(len(c.words))
	c.words = append(c.words, word)
	c.wordIndex[word] = idx
	return idx
}

// ResolveFunction returns the function id for name: a pre-bound negative
// built-in id, or a forward-declared/defined user function id. An
// undeclared name is a fatal compile error (§4.7): a reference to an
// undeclared function is fatal.
func (c *Context) ResolveFunction(name string) int32 {
	if id, ok := builtinsByName[name]; ok {
		return id
	}
	if idx, ok := c.funcNames[name]; ok {
		return idx
	}
	c.fail("reference to undeclared function %q", name)
	return 0
}

// DeclareFunction forward-declares name with the given arity, returning
// its function id, before BeginFunction defines its body. Declaring the
// same name twice is a no-op returning the existing id.
func (c *Context) DeclareFunction(name string, nparam, nret int) int32 {
	if idx, ok := c.funcNames[name]; ok {
		return idx
	}
	idx := int32(len(c.functions))
	c.functions = append(c.functions, module.Function{NParam: nparam, NRet: nret})
	c.funcNames[name] = idx
	return idx
}

// SetInitFunc records the module's init_func, by name.
func (c *Context) SetInitFunc(name string) {
	c.initFunc = c.ResolveFunction(name)
}

// BeginFunction starts emitting the body of a previously declared
// function (or declares it inline if new).
func (c *Context) BeginFunction(name string, nparam, nret int) {
	if c.cur != nil {
		c.fail("BeginFunction %q called while function %q is still open", name, c.cur.name)
		return
	}
	c.DeclareFunction(name, nparam, nret)
	c.cur = &funcBuilder{name: name, nparam: nparam, nret: nret}
}

// EndFunction closes the function started by BeginFunction and stores its
// accumulated code into the function table.
func (c *Context) EndFunction() {
	if c.cur == nil {
		c.fail("EndFunction called with no open function")
		return
	}
	if len(c.cur.callDepth) != 0 {
		c.fail("function %q: unclosed call (missing EmitCall)", c.cur.name)
	}
	idx := c.funcNames[c.cur.name]
	c.functions[idx].Code = c.cur.code
	c.cur = nil
}

func (c *Context) emit(op module.Opcode, arg int32) int {
	if c.cur == nil {
		c.fail("emit %s outside of a function", op)
		return -1
	}
	c.cur.code = append(c.cur.code, module.Instruction{Op: op, Arg: arg})
	return len(c.cur.code) - 1
}

// EmitLLI emits a literal push.
func (c *Context) EmitLLI(lit int32) { c.emit(module.LLI, lit) }

// EmitExtraLocal allocates one additional local slot beyond the formal
// parameters, the way the front end creates room for a local variable
// (§4.2 call protocol): a plain `LLI nil`.
func (c *Context) EmitExtraLocal() { c.EmitLLI(int32(-1)) }

// EmitPop discards the top n values.
func (c *Context) EmitPop(n int32) { c.emit(module.POP, n) }

// EmitLDL pushes local base+i.
func (c *Context) EmitLDL(i int32) { c.emit(module.LDL, i) }

// EmitSTL pops into local base+i.
func (c *Context) EmitSTL(i int32) { c.emit(module.STL, i) }

// EmitLDG pushes global g.
func (c *Context) EmitLDG(g int32) { c.emit(module.LDG, g) }

// EmitSTG pops into global g.
func (c *Context) EmitSTG(g int32) { c.emit(module.STG, g) }

// EmitLDI pops an entity id and pushes its property at off.
func (c *Context) EmitLDI(off int32) { c.emit(module.LDI, off) }

// EmitSTI pops a value then an entity id and stores the value at off.
func (c *Context) EmitSTI(off int32) { c.emit(module.STI, off) }

// EmitJMP emits an unconditional jump with a placeholder offset and
// returns a patch site for PatchJump.
func (c *Context) EmitJMP() int { return c.emit(module.JMP, -1) }

// EmitJNP emits a pop-and-branch-if-not-truthy jump with a placeholder
// offset and returns a patch site for PatchJump.
func (c *Context) EmitJNP() int { return c.emit(module.JNP, -1) }

// PatchJump back-patches the jump at the instruction index returned by
// EmitJMP/EmitJNP so that it lands on the instruction about to be
// emitted next (§4.7: "back-scan from the end... for the most recent
// unpatched JMP/JNP with argument -1"). Since callers hold the exact
// patch site from EmitJMP/EmitJNP there is no need to scan: this
// directly overwrites instr.Arg, the behavior the back-scan achieves.
func (c *Context) PatchJump(site int) {
	if c.cur == nil || site < 0 || site >= len(c.cur.code) {
		c.fail("PatchJump: invalid site %d", site)
		return
	}
	target := len(c.cur.code)
	c.cur.code[site].Arg = int32(target - site - 1)
}

// EmitOP1 emits a unary operator.
func (c *Context) EmitOP1(kind int32) { c.emit(module.OP1, kind) }

// EmitOP2 emits a binary operator.
func (c *Context) EmitOP2(kind int32) { c.emit(module.OP2, kind) }

// BeginCall opens a new call frame on the pending-call argument-count
// stack: every EmitCallArg between this and the matching EmitCall counts
// toward this call's n (§4.7).
func (c *Context) BeginCall() {
	if c.cur == nil {
		c.fail("BeginCall outside of a function")
		return
	}
	c.cur.callDepth = append(c.cur.callDepth, 0)
}

// EmitCallArg records that one more value (the callee id or an argument)
// has been pushed for the innermost open call.
func (c *Context) EmitCallArg() {
	if c.cur == nil || len(c.cur.callDepth) == 0 {
		c.fail("EmitCallArg outside of an open call")
		return
	}
	n := len(c.cur.callDepth) - 1
	c.cur.callDepth[n]++
}

// EmitCall closes the innermost open call, emitting CAL with the
// accumulated n and the given expected result count (0 or 1).
func (c *Context) EmitCall(nret int) {
	if c.cur == nil || len(c.cur.callDepth) == 0 {
		c.fail("EmitCall with no open call")
		return
	}
	last := len(c.cur.callDepth) - 1
	n := c.cur.callDepth[last]
	c.cur.callDepth = c.cur.callDepth[:last]
	if n < 1 {
		c.fail("EmitCall: call has n=%d, want n>=1 (missing callee push)", n)
		return
	}
	if nret != 0 && nret != 1 {
		c.fail("EmitCall: nret must be 0 or 1, got %d", nret)
		return
	}
	c.emit(module.CAL, int32(nret)*256+n)
}

// EmitRET emits a return of r values (0 or 1).
func (c *Context) EmitRET(r int32) {
	if r != 0 && r != 1 {
		c.fail("EmitRET: r must be 0 or 1, got %d", r)
		return
	}
	c.emit(module.RET, r)
}

// BeginRuleSet starts accumulating the rules for one non-terminal. Rules
// added before Finish are canonicalized (sorted) and deduplicated across
// non-terminals: two non-terminals whose rule sets are equal once sorted
// share a single grammar entry (§4.7).
type RuleSetBuilder struct {
	c     *Context
	rules []module.Rule
}

// BeginRuleSet returns a builder for a new non-terminal's rules.
func (c *Context) BeginRuleSet() *RuleSetBuilder {
	return &RuleSetBuilder{c: c}
}

// AddRule appends rule (a sequence of symbol refs built via
// Context.TerminalRef/NonTerminalRef) to the rule set under construction.
func (b *RuleSetBuilder) AddRule(rule module.Rule) {
	b.rules = append(b.rules, rule)
}

// TerminalRef returns the symbol ref for word index i.
func (c *Context) TerminalRef(wordIndex int32) module.SymbolRef { return module.Terminal(wordIndex) }

// NonTerminalRef returns the symbol ref for non-terminal index i. The
// front end must only reference non-terminals it has already finished
// (the grammar's non-recursion invariant, §4.3).
func (c *Context) NonTerminalRef(ruleSetIndex int32) module.SymbolRef {
	return module.NonTerminal(ruleSetIndex)
}

// Finish canonicalizes the accumulated rule set, deduplicates it against
// previously finished rule sets, and returns its non-terminal index
// (existing or new).
func (b *RuleSetBuilder) Finish() int32 {
	canon := canonicalRuleSet(b.rules)
	key := ruleSetKey(canon)
	if idx, ok := b.c.ruleSetByKey[key]; ok {
		return idx
	}
	idx := int32(len(b.c.ruleSets))
	b.c.ruleSets = append(b.c.ruleSets, canon)
	b.c.ruleSetByKey[key] = idx
	return idx
}

// canonicalRuleSet sorts rules into a stable order so that two
// syntactically different but semantically identical rule sets produce
// the same encoding.
func canonicalRuleSet(rules []module.Rule) module.RuleSet {
	out := make(module.RuleSet, len(rules))
	copy(out, rules)
	sort.Slice(out, func(i, j int) bool { return ruleLess(out[i], out[j]) })
	return out
}

func ruleLess(a, b module.Rule) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func ruleSetKey(rs module.RuleSet) string {
	var sb strings.Builder
	for _, rule := range rs {
		for _, ref := range rule {
			fmt.Fprintf(&sb, "%d,", int32(ref))
		}
		sb.WriteByte(';')
	}
	return sb.String()
}

// AddCommand appends a new command record with guard and function left
// unbound (-1), to be filled in by BindGuard/BindFunction (§4.7: "as
// guard and body functions are finalized, they are bound to the most
// recent command whose field is still -1").
func (c *Context) AddCommand(symbol module.SymbolRef) {
	c.commands = append(c.commands, module.Command{Symbol: symbol, Guard: -1, Function: -1})
}

// BindGuard binds funcID as the guard of the most recently added command
// whose guard is still unbound.
func (c *Context) BindGuard(funcID int32) {
	for i := len(c.commands) - 1; i >= 0; i-- {
		if c.commands[i].Guard == -1 {
			c.commands[i].Guard = funcID
			return
		}
	}
	c.fail("BindGuard: no command with an unbound guard")
}

// BindFunction binds funcID as the body of the most recently added
// command whose function is still unbound.
func (c *Context) BindFunction(funcID int32) {
	for i := len(c.commands) - 1; i >= 0; i-- {
		if c.commands[i].Function == -1 {
			c.commands[i].Function = funcID
			return
		}
	}
	c.fail("BindFunction: no command with an unbound function")
}

// Finish validates the accumulated state and builds the final Module.
func (c *Context) Finish() (*module.Module, error) {
	if c.cur != nil {
		c.fail("Finish called with function %q still open", c.cur.name)
	}
	for i, cmd := range c.commands {
		// a guard of -1 is a legitimate "always active" binding (§4.2); only
		// a function left unbound by AddCommand is an error.
		if cmd.Function == -1 {
			c.fail("command %d: function never bound", i)
		}
	}
	if c.err != nil {
		return nil, c.err
	}

	m := &module.Module{
		NumGlobals:    int32(len(c.globalNames)),
		NumEntities:   c.numEntities,
		NumProperties: c.numProperties,
		InitFunc:      c.initFunc,
		Strings:       c.strings,
		Functions:     c.functions,
		Words:         c.words,
		Grammar:       module.Grammar(c.ruleSets),
		Commands:      c.commands,
	}
	return m, nil
}
