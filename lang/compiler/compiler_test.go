package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/alo/lang/module"
)

func buildSample(t *testing.T) *module.Module {
	t.Helper()
	c := NewContext(2)

	g := c.DeclareGlobal("score")
	require.EqualValues(t, 0, g)
	p := c.DeclareProperty("health")
	require.EqualValues(t, 0, p)

	idHello := c.InternString("Hello!")
	wLook := c.InternWord("LOOK")

	c.DeclareFunction("look_body", 0, 0)
	c.BeginFunction("look_body", 0, 0)
	c.BeginCall()
	c.EmitLLI(BuiltinWrite)
	c.EmitCallArg()
	c.EmitLLI(idHello)
	c.EmitCallArg()
	c.EmitCall(0)
	c.EmitRET(0)
	c.EndFunction()

	rs := c.BeginRuleSet()
	rs.AddRule(module.Rule{c.TerminalRef(wLook)})
	ntLook := rs.Finish()

	c.AddCommand(c.NonTerminalRef(ntLook))
	c.BindFunction(c.ResolveFunction("look_body"))

	m, err := c.Finish()
	require.NoError(t, err)
	return m
}

func TestContextFinishProducesValidModule(t *testing.T) {
	m := buildSample(t)
	assert.EqualValues(t, 1, m.NumGlobals)
	assert.EqualValues(t, 1, m.NumProperties)
	assert.EqualValues(t, 2, m.NumEntities)
	assert.Equal(t, []string{"Hello!"}, m.Strings)
	assert.Equal(t, []string{"LOOK"}, m.Words)
	require.Len(t, m.Commands, 1)
	assert.EqualValues(t, -1, m.Commands[0].Guard)
	assert.EqualValues(t, 0, m.Commands[0].Function)
}

func TestContextDedupesInternedData(t *testing.T) {
	c := NewContext(0)
	a := c.InternString("same")
	b := c.InternString("same")
	assert.Equal(t, a, b)

	w1 := c.InternWord("LOOK")
	w2 := c.InternWord("LOOK")
	assert.Equal(t, w1, w2)
}

func TestContextResolveFunctionBuiltins(t *testing.T) {
	c := NewContext(0)
	assert.Equal(t, BuiltinWrite, c.ResolveFunction("write"))
	assert.Equal(t, BuiltinQuit, c.ResolveFunction("quit"))
}

func TestContextResolveUndeclaredFunctionFails(t *testing.T) {
	c := NewContext(0)
	c.ResolveFunction("nope")
	require.Error(t, c.Err())
}

func TestContextFinishRejectsUnboundCommand(t *testing.T) {
	c := NewContext(0)
	c.AddCommand(module.NoneRef)
	_, err := c.Finish()
	require.Error(t, err)
}

func TestContextFinishAcceptsAlwaysActiveCommand(t *testing.T) {
	c := NewContext(0)
	c.DeclareFunction("body", 0, 0)
	c.BeginFunction("body", 0, 0)
	c.EmitRET(0)
	c.EndFunction()
	c.AddCommand(module.NoneRef)
	c.BindFunction(c.ResolveFunction("body"))
	// no BindGuard call: guard stays -1, which is a legitimate "always
	// active" binding, not an error.
	_, err := c.Finish()
	require.NoError(t, err)
}

func TestRuleSetDedup(t *testing.T) {
	c := NewContext(0)
	w := c.InternWord("LOOK")

	rs1 := c.BeginRuleSet()
	rs1.AddRule(module.Rule{c.TerminalRef(w)})
	idx1 := rs1.Finish()

	rs2 := c.BeginRuleSet()
	rs2.AddRule(module.Rule{c.TerminalRef(w)})
	idx2 := rs2.Finish()

	assert.Equal(t, idx1, idx2, "identical rule sets must dedup to the same non-terminal")
}

func TestJumpPatch(t *testing.T) {
	c := NewContext(0)
	c.DeclareFunction("f", 0, 1)
	c.BeginFunction("f", 0, 1)
	c.EmitLLI(1)
	site := c.EmitJNP()
	c.EmitLLI(10)
	c.EmitRET(1)
	c.PatchJump(site)
	c.EmitLLI(20)
	c.EmitRET(1)
	c.EndFunction()
	m, err := c.Finish()
	require.NoError(t, err)

	code := m.Functions[0].Code
	require.Len(t, code, 6)
	// JNP at index 1 must jump past the "LLI 10; RET 1" pair (2
	// instructions), landing on the "LLI 20" at index 4.
	assert.Equal(t, module.JNP, code[1].Op)
	assert.EqualValues(t, 2, code[1].Arg)
}

func TestDisassembleAssembleRoundTrip(t *testing.T) {
	m := buildSample(t)
	text := Disassemble(m)

	got, err := Assemble(text)
	require.NoError(t, err)

	assert.Equal(t, m.NumGlobals, got.NumGlobals)
	assert.Equal(t, m.NumEntities, got.NumEntities)
	assert.Equal(t, m.NumProperties, got.NumProperties)
	assert.Equal(t, m.InitFunc, got.InitFunc)
	assert.Equal(t, m.Strings, got.Strings)
	assert.Equal(t, m.Words, got.Words)
	assert.Equal(t, m.Functions, got.Functions)
	assert.Equal(t, m.Grammar, got.Grammar)
	assert.Equal(t, m.Commands, got.Commands)
}
