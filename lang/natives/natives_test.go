package natives_test

import (
	"bytes"
	"testing"

	"github.com/mna/mica/lang/machine"
	"github.com/mna/mica/lang/natives"
	"github.com/stretchr/testify/require"
)

func newVM(t *testing.T) (*machine.VM, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	vm := machine.New()
	var out, errOut bytes.Buffer
	vm.Stdout = &out
	vm.Stderr = &errOut
	require.NoError(t, natives.Register(vm))
	return vm, &out, &errOut
}

func TestPrintJoinsArgsWithSpaces(t *testing.T) {
	vm, out, _ := newVM(t)
	ok := vm.CompileAndRun(`print(1, "two", 3.5)`)
	require.True(t, ok)
	require.Equal(t, "1 two 3.5\n", out.String())
}

func TestLenReportsArrayLength(t *testing.T) {
	vm, _, _ := newVM(t)
	ok := vm.CompileAndRun(`let n = len([1, 2, 3, 4])`)
	require.True(t, ok)
	require.Equal(t, machine.Int32(4), vm.GetGlobal("n"))
}

func TestTypeOfCoversEveryTag(t *testing.T) {
	vm, _, _ := newVM(t)
	ok := vm.CompileAndRun(`
let a = type_of(1)
let b = type_of(1.5)
let c = type_of(true)
let d = type_of([1])
let e = type_of(print)
`)
	require.True(t, ok)
	require.Equal(t, "i32", vm.GetGlobal("a").String())
	require.Equal(t, "f32", vm.GetGlobal("b").String())
	require.Equal(t, "bool", vm.GetGlobal("c").String())
	require.Equal(t, "array", vm.GetGlobal("d").String())
	require.Equal(t, "function", vm.GetGlobal("e").String())
}

func TestStrConvertsScalarsToText(t *testing.T) {
	vm, _, _ := newVM(t)
	ok := vm.CompileAndRun(`let s = str(42)`)
	require.True(t, ok)
	require.Equal(t, "42", vm.GetGlobal("s").String())
}

func TestAssertAbortsExecutionOnFailure(t *testing.T) {
	vm, _, errOut := newVM(t)
	ok := vm.CompileAndRun(`
assert(true)
assert(false, "should not reach here")
let unreached = 1
`)
	require.False(t, ok)
	require.Contains(t, errOut.String(), "assertion failed")
	require.True(t, machine.IsNone(vm.GetGlobal("unreached")))
}

func TestSqrtAndAbsAndFloor(t *testing.T) {
	vm, _, _ := newVM(t)
	ok := vm.CompileAndRun(`
let a = sqrt(9.0)
let b = abs(-5)
let c = floor(3.7)
`)
	require.True(t, ok)
	require.Equal(t, machine.Float32(3), vm.GetGlobal("a"))
	require.Equal(t, machine.Int32(5), vm.GetGlobal("b"))
	require.Equal(t, machine.Int32(3), vm.GetGlobal("c"))
}
