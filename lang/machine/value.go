// Package machine implements the register-based bytecode virtual machine:
// the runtime value representation, the heap (arrays, interned strings,
// closures), and the fetch-decode-execute loop that runs a compiler.Proto.
package machine

import "fmt"

// Value is any runtime value a mica program can hold in a register, local,
// upvalue, global, or array slot. The concrete set is closed: Int32,
// Float32, Bool, None, *String, *Array, *Closure, *Native, *Iterator.
type Value interface {
	Type() string
	String() string
	Truth() bool
}

// Int32 is a 32-bit signed integer value.
type Int32 int32

func (Int32) Type() string      { return "int" }
func (v Int32) String() string  { return fmt.Sprintf("%d", int32(v)) }
func (v Int32) Truth() bool     { return v != 0 }

// Float32 is a 32-bit floating-point value.
type Float32 float32

func (Float32) Type() string     { return "float" }
func (v Float32) String() string { return fmt.Sprintf("%g", float32(v)) }
func (v Float32) Truth() bool    { return v != 0 }

// Bool is a boolean value.
type Bool bool

func (Bool) Type() string     { return "bool" }
func (v Bool) String() string { return fmt.Sprintf("%v", bool(v)) }
func (v Bool) Truth() bool    { return bool(v) }

// noneValue is the singleton None sentinel: both the literal `None` and the
// value substituted for an undefined global read or an exhausted iterator.
type noneValue struct{}

func (noneValue) Type() string   { return "none" }
func (noneValue) String() string { return "none" }
func (noneValue) Truth() bool    { return false }

// None is the single instance of the None value; compare against it with
// ==, since it carries no state.
var None Value = noneValue{}

// IsNone reports whether v is the None sentinel.
func IsNone(v Value) bool {
	_, ok := v.(noneValue)
	return ok
}

// asFloat widens an Int32 or Float32 to float32 for mixed-type arithmetic,
// matching the "int op float promotes to float" rule.
func asFloat(v Value) float32 {
	switch v := v.(type) {
	case Int32:
		return float32(v)
	case Float32:
		return float32(v)
	default:
		return 0
	}
}

func bothInt32(a, b Value) (Int32, Int32, bool) {
	ai, aok := a.(Int32)
	bi, bok := b.(Int32)
	return ai, bi, aok && bok
}

// valueEqual implements the `==`/`!=` operators: heap types compare by
// identity (pointer equality), not structural equality, except for interned
// strings, where identity equality already implies content equality.
func valueEqual(a, b Value) bool {
	switch a := a.(type) {
	case Int32:
		b, ok := b.(Int32)
		return ok && a == b
	case Float32:
		b, ok := b.(Float32)
		return ok && a == b
	case Bool:
		b, ok := b.(Bool)
		return ok && a == b
	case noneValue:
		return IsNone(b)
	case *String:
		b, ok := b.(*String)
		return ok && a == b
	case *Array:
		b, ok := b.(*Array)
		return ok && a == b
	case *Closure:
		b, ok := b.(*Closure)
		return ok && a == b
	case *Native:
		b, ok := b.(*Native)
		return ok && a == b
	case *Iterator:
		b, ok := b.(*Iterator)
		return ok && a == b
	default:
		return false
	}
}

// retain bumps the refcount of a's underlying heap object, if it has one.
// Called whenever a value is written into a durable slot: a global, an
// array element, or closed upvalue storage.
func retain(v Value) {
	switch v := v.(type) {
	case *String:
		v.Retain()
	case *Array:
		v.Retain()
	case *Closure:
		v.Retain()
	}
}

// release drops the refcount of v's underlying heap object, if it has one.
func release(v Value) {
	switch v := v.(type) {
	case *String:
		v.Release()
	case *Array:
		v.Release()
	case *Closure:
		v.Release()
	}
}
