package vm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/alo/lang/module"
	"github.com/mna/alo/lang/value"
)

type fakeHost struct {
	quitCode  int
	quitCalls int
	pauses    int
}

func (h *fakeHost) Quit(code int) { h.quitCode = code; h.quitCalls++ }
func (h *fakeHost) Pause()        { h.pauses++ }

func newMachine(mod *module.Module) *Machine {
	return New(mod, &fakeHost{})
}

// constFn returns a 0-param, 1-result function that just returns a literal.
func constFn(lit int32) module.Function {
	return module.Function{
		NParam: 0,
		NRet:   1,
		Code: []module.Instruction{
			{Op: module.LLI, Arg: lit},
			{Op: module.RET, Arg: 1},
		},
	}
}

func TestInvokeLiteralReturn(t *testing.T) {
	mod := &module.Module{Functions: []module.Function{constFn(42)}}
	m := newMachine(mod)
	v, err := m.Invoke(0, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, value.Value(42), v)
}

func TestCallProtocolArityPad(t *testing.T) {
	// function 0 expects 2 params, returns param 1 (the second one).
	fn := module.Function{
		NParam: 2,
		NRet:   1,
		Code: []module.Instruction{
			{Op: module.LDL, Arg: 1},
			{Op: module.RET, Arg: 1},
		},
	}
	mod := &module.Module{Functions: []module.Function{fn}}
	m := newMachine(mod)

	var warned string
	m.Warnf = func(format string, args ...interface{}) { warned += format }

	// call with only 1 arg; the 2nd param should be padded with nil.
	v, err := m.Invoke(0, []value.Value{value.Value(7)}, 1)
	require.NoError(t, err)
	assert.Equal(t, value.Nil, v)
	assert.NotEmpty(t, warned)
}

func TestCallProtocolMissingReturnSubstitutesNil(t *testing.T) {
	fn := module.Function{NParam: 0, NRet: 0, Code: []module.Instruction{{Op: module.RET, Arg: 0}}}
	mod := &module.Module{Functions: []module.Function{fn}}
	m := newMachine(mod)

	var warned bool
	m.Warnf = func(string, ...interface{}) { warned = true }

	v, err := m.Invoke(0, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, value.Nil, v)
	assert.True(t, warned)
}

func TestNestedCall(t *testing.T) {
	// function 1: returns 10
	// function 0: pushes fnId=1 then calls it with 0 args, 1 result, returns that.
	callee := constFn(10)
	caller := module.Function{
		NParam: 0,
		NRet:   1,
		Code: []module.Instruction{
			{Op: module.LLI, Arg: 1},          // fn id 1
			{Op: module.CAL, Arg: 256*1 + 1},  // nret=1, n=1 (just the fn id, no args)
			{Op: module.RET, Arg: 1},
		},
	}
	mod := &module.Module{Functions: []module.Function{caller, callee}}
	m := newMachine(mod)
	v, err := m.Invoke(0, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, value.Value(10), v)
}

func TestStackUnderflowIsFatal(t *testing.T) {
	fn := module.Function{NParam: 0, NRet: 1, Code: []module.Instruction{{Op: module.RET, Arg: 1}}}
	mod := &module.Module{Functions: []module.Function{fn}}
	m := newMachine(mod)
	_, err := m.Invoke(0, nil, 1)
	require.Error(t, err)
	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, module.RET, fatal.Op)
}

func TestUnknownOpcodeIsFatal(t *testing.T) {
	fn := module.Function{NParam: 0, NRet: 0, Code: []module.Instruction{{Op: module.Opcode(200), Arg: 0}}}
	mod := &module.Module{Functions: []module.Function{fn}}
	m := newMachine(mod)
	_, err := m.Invoke(0, nil, 0)
	require.Error(t, err)
}

func TestGlobalLoadStore(t *testing.T) {
	fn := module.Function{
		NParam: 0,
		NRet:   1,
		Code: []module.Instruction{
			{Op: module.LLI, Arg: 99},
			{Op: module.STG, Arg: 3},
			{Op: module.LDG, Arg: 3},
			{Op: module.RET, Arg: 1},
		},
	}
	mod := &module.Module{NumGlobals: 8, Functions: []module.Function{fn}}
	m := newMachine(mod)
	v, err := m.Invoke(0, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, value.Value(99), v)
}

func TestIndexedOutOfRangeIsFatal(t *testing.T) {
	fn := module.Function{
		NParam: 0,
		NRet:   0,
		Code: []module.Instruction{
			{Op: module.LLI, Arg: 5}, // entity 5, out of range
			{Op: module.LDI, Arg: 0},
			{Op: module.POP, Arg: 1},
			{Op: module.RET, Arg: 0},
		},
	}
	mod := &module.Module{NumGlobals: 8, NumEntities: 2, NumProperties: 1, Functions: []module.Function{fn}}
	m := newMachine(mod)
	_, err := m.Invoke(0, nil, 0)
	require.Error(t, err)
	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
}

func TestOp1Not(t *testing.T) {
	fn := module.Function{
		NParam: 0,
		NRet:   1,
		Code: []module.Instruction{
			{Op: module.LLI, Arg: int32(value.False)},
			{Op: module.OP1, Arg: module.OP1Not},
			{Op: module.RET, Arg: 1},
		},
	}
	mod := &module.Module{Functions: []module.Function{fn}}
	m := newMachine(mod)
	v, err := m.Invoke(0, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, value.True, v)
}

func TestOp2Comparisons(t *testing.T) {
	cases := []struct {
		kind int32
		a, b int32
		want value.Value
	}{
		{module.OP2Eq, 3, 3, value.True},
		{module.OP2Eq, 3, 4, value.False},
		{module.OP2Neq, 3, 4, value.True},
		{module.OP2And, int32(value.True), int32(value.True), value.True},
		{module.OP2Or, int32(value.False), int32(value.True), value.True},
	}
	for _, c := range cases {
		fn := module.Function{
			NParam: 0,
			NRet:   1,
			Code: []module.Instruction{
				{Op: module.LLI, Arg: c.a},
				{Op: module.LLI, Arg: c.b},
				{Op: module.OP2, Arg: c.kind},
				{Op: module.RET, Arg: 1},
			},
		}
		mod := &module.Module{Functions: []module.Function{fn}}
		m := newMachine(mod)
		v, err := m.Invoke(0, nil, 1)
		require.NoError(t, err)
		assert.Equal(t, c.want, v)
	}
}

func TestBuiltinWrite(t *testing.T) {
	mod := &module.Module{Strings: []string{"hello"}}
	m := newMachine(mod)
	_, err := m.Invoke(int32(-builtinWrite-1), []value.Value{value.Value(0)}, 0)
	require.NoError(t, err)
	got := m.Output().Flush(nil)
	assert.Equal(t, "hello\n\n", got)
}

func TestBuiltinWritefSubstitutesArgs(t *testing.T) {
	mod := &module.Module{Strings: []string{"count: %d, name: %s%%", "x"}}
	m := newMachine(mod)
	_, err := m.Invoke(int32(-builtinWritef-1), []value.Value{value.Value(0), value.Value(5), value.Value(1)}, 0)
	require.NoError(t, err)
	got := m.Output().Flush(nil)
	assert.Contains(t, got, "count: 5")
	assert.Contains(t, got, "name: x")
	assert.Contains(t, got, "%")
}

func TestBuiltinWritefFormatsNonIntegerValuesAsRawInt(t *testing.T) {
	// %d/%i must substitute the raw int32 form, not the nil/bool word
	// forms that Value.String returns.
	mod := &module.Module{Strings: []string{"%d %d %d"}}
	m := newMachine(mod)
	_, err := m.Invoke(int32(-builtinWritef-1), []value.Value{
		value.Value(0), value.Nil, value.False, value.True,
	}, 0)
	require.NoError(t, err)
	got := m.Output().Flush(nil)
	assert.Contains(t, got, "-1 0 1")
}

func TestBuiltinQuitCallsHost(t *testing.T) {
	mod := &module.Module{}
	host := &fakeHost{}
	m := New(mod, host)
	_, err := m.Invoke(int32(-builtinQuit-1), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, host.quitCalls)
}

func TestBuiltinPauseCallsHost(t *testing.T) {
	mod := &module.Module{}
	host := &fakeHost{}
	m := New(mod, host)
	_, err := m.Invoke(int32(-builtinPause-1), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, host.pauses)
}

func TestBuiltinResetClearsVars(t *testing.T) {
	mod := &module.Module{NumGlobals: 8}
	m := newMachine(mod)
	m.Vars().SetGlobal(2, value.True)
	_, err := m.Invoke(int32(-builtinReset-1), nil, 0)
	require.NoError(t, err)
	assert.Equal(t, value.Nil, m.Vars().Global(2))
}

func TestReinitializeRunsInitFunc(t *testing.T) {
	fn := module.Function{
		NParam: 0,
		NRet:   0,
		Code: []module.Instruction{
			{Op: module.LLI, Arg: 7},
			{Op: module.STG, Arg: 2},
			{Op: module.RET, Arg: 0},
		},
	}
	mod := &module.Module{NumGlobals: 8, InitFunc: 0, Functions: []module.Function{fn}}
	m := newMachine(mod)
	require.NoError(t, m.Reinitialize())
	assert.Equal(t, value.Value(7), m.Vars().Global(2))
}
