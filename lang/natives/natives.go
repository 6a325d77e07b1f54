// Package natives provides the standard set of host functions bridged into
// every mica VM: print, len, assert, type_of, str, parse_int, abs, sqrt and
// floor, ported from the original implementation's register_builtins.
package natives

import (
	"fmt"
	"math"
	"strconv"

	"github.com/mna/mica/lang/machine"
)

// Register installs the full standard set on vm. Each native tolerates
// being called with the wrong argument count or types by falling back to a
// zero value, exactly as the original builtins did.
func Register(vm *machine.VM) error {
	fns := map[string]machine.NativeFunc{
		"print":     print(vm),
		"len":       length,
		"assert":    assert(vm),
		"type_of":   typeOf(vm),
		"str":       str(vm),
		"parse_int": parseInt,
		"abs":       abs,
		"sqrt":      sqrt,
		"floor":     floor,
	}
	for name, fn := range fns {
		if err := vm.RegisterNative(name, fn); err != nil {
			return fmt.Errorf("registering native %q: %w", name, err)
		}
	}
	return nil
}

func print(vm *machine.VM) machine.NativeFunc {
	return func(args []machine.Value) machine.Value {
		for i, a := range args {
			if i > 0 {
				fmt.Fprint(vm.Stdout, " ")
			}
			fmt.Fprint(vm.Stdout, a.String())
		}
		fmt.Fprintln(vm.Stdout)
		return machine.None
	}
}

func length(args []machine.Value) machine.Value {
	if len(args) < 1 {
		return machine.Int32(0)
	}
	if arr, ok := args[0].(*machine.Array); ok {
		return machine.Int32(arr.Len())
	}
	return machine.Int32(0)
}

// assert halts guest execution with a diagnostic when its first argument is
// falsy, matching the original builtin_assert's fprintf-then-exit: a failed
// assertion is not a recoverable guest-level error, so this calls vm.Abort
// instead of returning a value the caller could ignore.
func assert(vm *machine.VM) machine.NativeFunc {
	return func(args []machine.Value) machine.Value {
		if len(args) < 1 {
			fmt.Fprintln(vm.Stderr, "assertion failed")
			vm.Abort()
			return machine.None
		}
		if !args[0].Truth() {
			msg := "assertion failed"
			if len(args) > 1 {
				if s, ok := args[1].(*machine.String); ok {
					msg += ": " + s.Data
				}
			}
			fmt.Fprintln(vm.Stderr, msg)
			vm.Abort()
		}
		return machine.None
	}
}

func typeOf(vm *machine.VM) machine.NativeFunc {
	return func(args []machine.Value) machine.Value {
		if len(args) < 1 {
			return vm.InternString("none")
		}
		switch args[0].(type) {
		case machine.Int32:
			return vm.InternString("i32")
		case machine.Float32:
			return vm.InternString("f32")
		case machine.Bool:
			return vm.InternString("bool")
		case *machine.Array:
			return vm.InternString("array")
		case *machine.String:
			return vm.InternString("string")
		case *machine.Closure, *machine.Native:
			return vm.InternString("function")
		default:
			return vm.InternString("none")
		}
	}
}

// str renders its argument the way the language's own string conversion
// would for a guest-visible value.
func str(vm *machine.VM) machine.NativeFunc {
	return func(args []machine.Value) machine.Value {
		if len(args) < 1 {
			return vm.InternString("")
		}
		switch v := args[0].(type) {
		case machine.Int32, machine.Float32, machine.Bool:
			return vm.InternString(v.String())
		default:
			if machine.IsNone(args[0]) {
				return vm.InternString("None")
			}
			return vm.InternString("<object>")
		}
	}
}

// parseInt parses a string argument as a base-10 int32, returning None for
// anything else, including a malformed string -- the original's stub never
// got around to extracting the string data at all; this finishes the job
// but keeps its fallback-to-None shape.
func parseInt(args []machine.Value) machine.Value {
	if len(args) < 1 {
		return machine.None
	}
	s, ok := args[0].(*machine.String)
	if !ok {
		return machine.None
	}
	n, err := strconv.ParseInt(s.Data, 10, 32)
	if err != nil {
		return machine.None
	}
	return machine.Int32(n)
}

func abs(args []machine.Value) machine.Value {
	if len(args) < 1 {
		return machine.Int32(0)
	}
	switch v := args[0].(type) {
	case machine.Int32:
		if v < 0 {
			return -v
		}
		return v
	case machine.Float32:
		return machine.Float32(math.Abs(float64(v)))
	}
	return machine.Int32(0)
}

func sqrt(args []machine.Value) machine.Value {
	if len(args) < 1 {
		return machine.Float32(0)
	}
	switch v := args[0].(type) {
	case machine.Int32:
		return machine.Float32(math.Sqrt(float64(v)))
	case machine.Float32:
		return machine.Float32(math.Sqrt(float64(v)))
	}
	return machine.Float32(0)
}

func floor(args []machine.Value) machine.Value {
	if len(args) < 1 {
		return machine.Int32(0)
	}
	switch v := args[0].(type) {
	case machine.Float32:
		return machine.Int32(int32(math.Floor(float64(v))))
	case machine.Int32:
		return v
	}
	return machine.Int32(0)
}
