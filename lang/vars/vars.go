// Package vars implements the flat variable vector (§3, component B): a
// single Value slice split into a global region and a row-major
// entity x property region.
package vars

import (
	"fmt"

	"github.com/mna/alo/lang/value"
)

// Engine-reserved global slot indices (§3): the first 8 globals are
// reserved for the engine, of which two are named.
const (
	reservedGlobals = 8

	slotTitle    = 0
	slotSubtitle = 1
)

// Store is the VM's flat variable vector: num_globals globals followed by
// num_entities rows of num_properties slots each.
type Store struct {
	numGlobals    int32
	numEntities   int32
	numProperties int32
	vals          []value.Value
}

// New allocates a Store sized for a module with the given region
// dimensions, with every slot initialized to nil (§3).
func New(numGlobals, numEntities, numProperties int32) *Store {
	if numGlobals < reservedGlobals {
		numGlobals = reservedGlobals
	}
	s := &Store{
		numGlobals:    numGlobals,
		numEntities:   numEntities,
		numProperties: numProperties,
	}
	s.vals = make([]value.Value, numGlobals+numEntities*numProperties)
	s.Reset()
	return s
}

// Len returns the total number of slots.
func (s *Store) Len() int32 { return int32(len(s.vals)) }

// Reset sets every slot to nil (§4.2, built-in `reset`).
func (s *Store) Reset() {
	for i := range s.vals {
		s.vals[i] = value.Nil
	}
}

// Global returns the value of global slot g.
func (s *Store) Global(g int32) value.Value {
	s.checkGlobal(g)
	return s.vals[g]
}

// SetGlobal stores v into global slot g.
func (s *Store) SetGlobal(g int32, v value.Value) {
	s.checkGlobal(g)
	s.vals[g] = v
}

// Indexed returns the value at the flat offset
// num_globals + num_properties*entity + off (§4.2, opcode LDI).
func (s *Store) Indexed(entity, off int32) value.Value {
	i := s.flatIndex(entity, off)
	return s.vals[i]
}

// SetIndexed stores v at the flat offset addressed by (entity, off)
// (§4.2, opcode STI).
func (s *Store) SetIndexed(entity, off int32, v value.Value) {
	i := s.flatIndex(entity, off)
	s.vals[i] = v
}

func (s *Store) flatIndex(entity, off int32) int32 {
	if entity < 0 || entity >= s.numEntities {
		panic(fmt.Sprintf("vars: entity index %d out of range [0,%d)", entity, s.numEntities))
	}
	if off < 0 || off >= s.numProperties {
		panic(fmt.Sprintf("vars: property offset %d out of range [0,%d)", off, s.numProperties))
	}
	return s.numGlobals + s.numProperties*entity + off
}

func (s *Store) checkGlobal(g int32) {
	if g < 0 || g >= s.numGlobals {
		panic(fmt.Sprintf("vars: global index %d out of range [0,%d)", g, s.numGlobals))
	}
}

// Title returns the named global slot 0 (§3 EXPANSION).
func (s *Store) Title() value.Value { return s.vals[slotTitle] }

// SetTitle sets the named global slot 0.
func (s *Store) SetTitle(v value.Value) { s.vals[slotTitle] = v }

// Subtitle returns the named global slot 1 (§3 EXPANSION).
func (s *Store) Subtitle() value.Value { return s.vals[slotSubtitle] }

// SetSubtitle sets the named global slot 1.
func (s *Store) SetSubtitle(v value.Value) { s.vals[slotSubtitle] = v }

// Snapshot returns a copy of the full flat vector, suitable for session
// persistence (§6, §10.8).
func (s *Store) Snapshot() []value.Value {
	out := make([]value.Value, len(s.vals))
	copy(out, s.vals)
	return out
}

// Restore overwrites the flat vector from vals, which must have length
// Len().
func (s *Store) Restore(vals []value.Value) error {
	if int32(len(vals)) != s.Len() {
		return fmt.Errorf("vars: restore size mismatch: want %d, got %d", s.Len(), len(vals))
	}
	copy(s.vals, vals)
	return nil
}
