package vars

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mna/alo/lang/value"
)

func TestNewResetsToNil(t *testing.T) {
	s := New(8, 2, 3)
	assert.EqualValues(t, 8+2*3, s.Len())
	for g := int32(0); g < 8; g++ {
		assert.Equal(t, value.Nil, s.Global(g))
	}
	for e := int32(0); e < 2; e++ {
		for p := int32(0); p < 3; p++ {
			assert.Equal(t, value.Nil, s.Indexed(e, p))
		}
	}
}

func TestNewEnforcesReservedGlobals(t *testing.T) {
	s := New(0, 0, 0)
	assert.EqualValues(t, reservedGlobals, s.Len())
}

func TestGlobalAndIndexedRoundTrip(t *testing.T) {
	s := New(8, 2, 3)
	s.SetGlobal(5, value.Value(42))
	assert.Equal(t, value.Value(42), s.Global(5))

	s.SetIndexed(1, 2, value.True)
	assert.Equal(t, value.True, s.Indexed(1, 2))
	// untouched slots remain nil
	assert.Equal(t, value.Nil, s.Indexed(0, 2))
}

func TestGlobalOutOfRangePanics(t *testing.T) {
	s := New(8, 0, 0)
	assert.Panics(t, func() { s.Global(8) })
	assert.Panics(t, func() { s.Global(-1) })
}

func TestIndexedOutOfRangePanics(t *testing.T) {
	s := New(8, 2, 3)
	assert.Panics(t, func() { s.Indexed(2, 0) })
	assert.Panics(t, func() { s.Indexed(0, 3) })
}

func TestTitleAndSubtitle(t *testing.T) {
	s := New(8, 0, 0)
	s.SetTitle(value.Value(10))
	s.SetSubtitle(value.Value(20))
	assert.Equal(t, value.Value(10), s.Title())
	assert.Equal(t, value.Value(20), s.Subtitle())
}

func TestResetClearsEverything(t *testing.T) {
	s := New(8, 1, 1)
	s.SetGlobal(2, value.True)
	s.SetIndexed(0, 0, value.True)
	s.Reset()
	assert.Equal(t, value.Nil, s.Global(2))
	assert.Equal(t, value.Nil, s.Indexed(0, 0))
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	s := New(8, 1, 2)
	s.SetGlobal(3, value.Value(99))
	s.SetIndexed(0, 1, value.True)

	snap := s.Snapshot()

	s2 := New(8, 1, 2)
	require.NoError(t, s2.Restore(snap))
	assert.Equal(t, value.Value(99), s2.Global(3))
	assert.Equal(t, value.True, s2.Indexed(0, 1))
}

func TestRestoreRejectsWrongSize(t *testing.T) {
	s := New(8, 1, 2)
	err := s.Restore(make([]value.Value, 3))
	require.Error(t, err)
}
