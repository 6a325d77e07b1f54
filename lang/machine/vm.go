package machine

import (
	"fmt"
	"io"
	"os"

	"github.com/mna/mica/lang/ast"
	"github.com/mna/mica/lang/compiler"
	"github.com/mna/mica/lang/parser"
)

type globalEntry struct {
	name  *String
	value Value
}

type nativeEntry struct {
	name string
	fn   NativeFunc
}

// VM is one instance of the mica runtime: its register file, call stack,
// open upvalue list, global table, native function registry, and string
// intern table. Interning and globals are per-VM, never process-global, so
// two VMs never share heap state.
type VM struct {
	Registers  [compiler.MaxRegisters]Value
	frames     [compiler.MaxFrames]Frame
	frameCount int
	openUp     *Upvalue

	globals    []globalEntry
	natives    []nativeEntry
	maxNatives int
	intern     internTable

	Stdout io.Writer
	Stderr io.Writer

	// Aborted is set by a native (via Abort) that wants execution to stop
	// immediately, the way the original's builtin_assert calls exit(1)
	// rather than returning control to the guest program.
	Aborted bool
}

// Abort requests that exec stop running at the next opportunity, without
// terminating the host process. Intended for natives like assert that must
// halt guest execution on failure.
func (vm *VM) Abort() { vm.Aborted = true }

// InternString returns the canonical *String for s in this VM's intern
// table, bumping its refcount as intern always does. Exposed so natives
// that manufacture new string values (str, type_of) produce strings that
// compare equal by identity to any other occurrence of the same content.
func (vm *VM) InternString(s string) *String { return vm.intern.intern(s) }

// New creates a VM with empty globals and an empty native registry, ready
// for RegisterNative calls and Compile/Run.
func New() *VM {
	vm := &VM{Stdout: os.Stdout, Stderr: os.Stderr, maxNatives: MaxNatives}
	for i := range vm.Registers {
		vm.Registers[i] = None
	}
	return vm
}

// RegisterNative installs a host function under name, visible to guest code
// anywhere a global of that name would be, as a fallback when no global
// exists. MaxNatives bounds how many may be registered by default, matching
// the original's fixed 64-slot native table; SetMaxNatives lowers or raises
// that bound for a given VM (e.g. from internal/config's MICA_MAX_NATIVES).
const MaxNatives = 64

// SetMaxNatives overrides the number of native slots available on vm. It
// only affects natives registered afterward.
func (vm *VM) SetMaxNatives(n int) { vm.maxNatives = n }

func (vm *VM) RegisterNative(name string, fn NativeFunc) error {
	if len(vm.natives) >= vm.maxNatives {
		return fmt.Errorf("too many native functions")
	}
	vm.natives = append(vm.natives, nativeEntry{name: name, fn: fn})
	return nil
}

func (vm *VM) findNative(name string) *Native {
	for _, n := range vm.natives {
		if n.name == name {
			return &Native{Name: n.name, Fn: n.fn}
		}
	}
	return nil
}

func (vm *VM) findGlobal(name *String) *globalEntry {
	for i := range vm.globals {
		if vm.globals[i].name == name {
			return &vm.globals[i]
		}
	}
	return nil
}

// SetGlobal binds name to val from host code, retaining val as any other
// durable-slot store would.
func (vm *VM) SetGlobal(name string, val Value) {
	interned := vm.intern.intern(name)
	if g := vm.findGlobal(interned); g != nil {
		release(g.value)
		g.value = val
		retain(val)
		return
	}
	retain(val)
	vm.globals = append(vm.globals, globalEntry{name: interned, value: val})
}

// GetGlobal returns name's current value, or None if it is unbound.
func (vm *VM) GetGlobal(name string) Value {
	interned := vm.intern.intern(name)
	if g := vm.findGlobal(interned); g != nil {
		return g.value
	}
	return None
}

// Compile parses and compiles src into a Closure ready to run, but does not
// execute it; call Run to execute, or CompileAndRun to do both.
func (vm *VM) Compile(src string) (*Closure, bool) {
	p := parser.New(src)
	var errBuf stringsBuilder
	p.SetErrorWriter(&errBuf)
	prog, ok := p.Parse()
	if !ok {
		io.WriteString(vm.Stderr, errBuf.String())
		return nil, false
	}
	return vm.compileProgram(prog)
}

func (vm *VM) compileProgram(prog *ast.Program) (*Closure, bool) {
	var errBuf stringsBuilder
	proto, ok := compiler.CompileTo(prog, &errBuf)
	if !ok {
		io.WriteString(vm.Stderr, errBuf.String())
		return nil, false
	}
	return &Closure{Proto: proto, RefCount: 1}, true
}

// CompileAndRun compiles src and, on success, runs it to completion.
func (vm *VM) CompileAndRun(src string) bool {
	closure, ok := vm.Compile(src)
	if !ok {
		return false
	}
	return vm.Run(closure)
}

// Run pushes closure as the sole frame and executes until it returns.
func (vm *VM) Run(closure *Closure) bool {
	vm.frameCount = 1
	vm.frames[0] = Frame{Closure: closure, BaseRegister: 0}
	return vm.exec()
}

// captureUpvalue returns the open upvalue for absolute register index,
// creating one if this is the first closure to capture that slot. The
// open-upvalue list stays sorted by descending Index so two closures
// capturing the same local share one Upvalue.
func (vm *VM) captureUpvalue(index int) *Upvalue {
	var prev *Upvalue
	up := vm.openUp
	for up != nil && up.Index > index {
		prev = up
		up = up.Next
	}
	if up != nil && up.Index == index {
		return up
	}
	created := &Upvalue{Open: true, Index: index}
	created.Next = up
	if prev == nil {
		vm.openUp = created
	} else {
		prev.Next = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above register index from,
// copying its live value out of the register file into its own storage.
func (vm *VM) closeUpvalues(from int) {
	for vm.openUp != nil && vm.openUp.Index >= from {
		up := vm.openUp
		up.Closed = vm.Registers[up.Index]
		retain(up.Closed)
		up.Open = false
		vm.openUp = up.Next
	}
}

// upvalueGet/upvalueSet read and write through an upvalue regardless of
// whether it is still open (live in the register file) or closed (holding
// its own copy).
func (vm *VM) upvalueGet(u *Upvalue) Value {
	if u.Open {
		return vm.Registers[u.Index]
	}
	return u.Closed
}

func (vm *VM) upvalueSet(u *Upvalue, v Value) {
	if u.Open {
		vm.Registers[u.Index] = v
	} else {
		release(u.Closed)
		u.Closed = v
		retain(v)
	}
}

// stringsBuilder is a tiny io.Writer adapter so compile errors can be
// captured without importing strings.Builder's full surface into every
// call site; kept local since its only use is gathering diagnostics for
// the host error channel.
type stringsBuilder struct{ buf []byte }

func (b *stringsBuilder) Write(p []byte) (int, error) {
	b.buf = append(b.buf, p...)
	return len(p), nil
}
func (b *stringsBuilder) String() string { return string(b.buf) }
