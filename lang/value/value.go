// Package value defines the single runtime value type shared by every other
// package in the module: a signed 32-bit integer with three distinguished
// members (nil, false, true) and a truthiness rule.
package value

import "fmt"

// A Value is a signed 32-bit integer, the only runtime datum the virtual
// machine operates on. String table indices, word indices, entity
// identifiers, and booleans are all just Values.
type Value int32

// Distinguished values (§3).
const (
	Nil   Value = -1
	False Value = 0
	True  Value = 1
)

// Truthy reports whether v is true per the spec's rule: strictly greater
// than zero.
func (v Value) Truthy() bool { return v > 0 }

// Bool converts a boolean into its canonical Value representation.
func Bool(b bool) Value {
	if b {
		return True
	}
	return False
}

func (v Value) String() string {
	switch v {
	case Nil:
		return "nil"
	case False:
		return "false"
	case True:
		return "true"
	default:
		return fmt.Sprintf("%d", int32(v))
	}
}
