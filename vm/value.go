package vm

import (
	"math"
	"strconv"
)

// Value is anything a Garnet program can hold in a variable, constant,
// instance variable or argument list.
//
// Immediate values (nil, booleans, integers, floats and symbols) are plain
// Go values. Everything else lives on the heap and embeds a Header that
// carries identity, class, singleton class, frozen state and instance
// variables.
//
// A Go nil Value never appears inside the runtime. Functions that can
// report "absent" (constant lookups with skipMissing, for example) return a
// Go nil to distinguish it from the Garnet nil.
type Value interface {
	isValue()
}

type nilValue struct{}

// Nil is the Garnet nil.
var Nil Value = nilValue{}

// Bool is a Garnet boolean.
type Bool bool

// The two boolean values.
const (
	True  Bool = true
	False Bool = false
)

// Int is a Garnet integer. Integers are immediates: equal integers are the
// same object.
type Int int64

// Float is a Garnet float.
type Float float64

// Symbol is an interned name. Symbols are immediates.
type Symbol string

func (nilValue) isValue() {}
func (Bool) isValue()     {}
func (Int) isValue()      {}
func (Float) isValue()    {}
func (Symbol) isValue()   {}

// Truthy reports whether v counts as true in a conditional. Only nil and
// false are falsy.
func Truthy(v Value) bool {
	switch v {
	case nil, Nil, False:
		return false
	}
	return true
}

// FromBool converts a Go bool.
func FromBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// IsNil reports whether v is the Garnet nil (or a Go nil).
func IsNil(v Value) bool {
	return v == nil || v == Nil
}

// isImmediate reports whether v has no heap header.
func isImmediate(v Value) bool {
	switch v.(type) {
	case nilValue, Bool, Int, Float, Symbol:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Heap values
// ---------------------------------------------------------------------------

// Header is embedded by every heap value.
type Header struct {
	id     int64
	class  *Module
	meta   *Module
	frozen bool
	ivars  []ivar
	hidden map[string]any
}

type ivar struct {
	name  string
	value Value
}

func (h *Header) hdr() *Header { return h }

// HeapValue is a Value with a Header.
type HeapValue interface {
	Value
	hdr() *Header
}

// Object is a plain instance of a user-defined or core class.
type Object struct {
	Header
}

// String is a mutable byte string.
type String struct {
	Header
	str string
}

// Array is an ordered, growable list of values.
type Array struct {
	Header
	elems []Value
}

// Proc is a callable block. A block captures the self it was created with
// and the method it was created in (for super); instance_eval and
// define_method call it with a different self.
type Proc struct {
	Header
	fn     Func
	self   Value
	home   *Method
	arity  int
	lambda bool
}

func (*Object) isValue() {}
func (*String) isValue() {}
func (*Array) isValue()  {}
func (*Proc) isValue()   {}

// String returns the Go string held by s.
func (s *String) String() string { return s.str }

// Elems returns the backing slice. Callers must not retain it across calls
// that may mutate the array.
func (a *Array) Elems() []Value { return a.elems }

// Len returns the number of elements.
func (a *Array) Len() int { return len(a.elems) }

// At returns the element at i, or Nil when out of range. Negative indices
// count from the end.
func (a *Array) At(i int) Value {
	if i < 0 {
		i += len(a.elems)
	}
	if i < 0 || i >= len(a.elems) {
		return Nil
	}
	return a.elems[i]
}

// Arity returns the declared arity of the block.
func (p *Proc) Arity() int { return p.arity }

// IsLambda reports whether the proc checks its argument count strictly.
func (p *Proc) IsLambda() bool { return p.lambda }

// Frozen reports whether v rejects mutation. Immediates are always frozen.
func Frozen(v Value) bool {
	if h, ok := v.(HeapValue); ok {
		return h.hdr().frozen
	}
	return true
}

// ---------------------------------------------------------------------------
// Formatting helpers for immediates
// ---------------------------------------------------------------------------

func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case math.IsNaN(f):
		return "NaN"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e16 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func inspectSymbol(s Symbol) string {
	name := string(s)
	if isPlainSymbol(name) {
		return ":" + name
	}
	return ":" + strconv.Quote(name)
}

func isPlainSymbol(name string) bool {
	if name == "" {
		return false
	}
	switch name {
	case "+", "-", "*", "/", "%", "==", "!=", "<", ">", "<=", ">=", "<=>", "===",
		"[]", "[]=", "<<", ">>", "!", "=~", "**", "&", "|", "^", "~", "+@", "-@":
		return true
	}
	for i, r := range name {
		switch {
		case r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		case (r == '?' || r == '!' || r == '=') && i == len(name)-1 && i > 0:
		case r == '@' && (i == 0 || i == 1 && name[0] == '@'):
		case r == '$' && i == 0:
		default:
			return false
		}
	}
	return true
}
