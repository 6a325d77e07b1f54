package machine

import "github.com/mna/mica/lang/compiler"

// Upvalue is a single captured variable. While Open, it refers to Index, an
// absolute slot in the VM's shared register file, so writes through it are
// visible to every closure that shares it and to the enclosing frame
// itself. Closing copies the current value out of the register file into
// Closed, after which the upvalue survives its owning frame's return.
type Upvalue struct {
	Open   bool
	Index  int // absolute register index, meaningful only while Open
	Closed Value
	Next   *Upvalue // next in the VM's open-upvalue list, sorted by descending Index
}

// Closure is a callable function value: a compiled Proto plus the upvalues
// it captured at the moment it was created.
type Closure struct {
	Proto    *compiler.Proto
	Upvalues []*Upvalue
	RefCount int
}

func (c *Closure) Type() string { return "closure" }

func (c *Closure) String() string {
	if c.Proto.Name != "" {
		return "<fn " + c.Proto.Name + ">"
	}
	return "<closure>"
}

func (c *Closure) Truth() bool { return true }

// Retain increments c's reference count.
func (c *Closure) Retain() { c.RefCount++ }

// Release decrements c's reference count.
func (c *Closure) Release() {
	if c.RefCount > 0 {
		c.RefCount--
	}
}

// NativeFunc is a host function bridged into mica. It receives its
// argument values and returns a single result; it never errors outright --
// a native that wants to signal failure to the guest program returns None
// and stops execution through VM.Abort or reports it through a side channel.
type NativeFunc func(args []Value) Value

// Native is a host-provided function value, distinct from a guest Closure
// and from an Iterator: the tag separation the original C implementation
// collapsed into a single VAL_NATIVE/void* pair.
type Native struct {
	Name string
	Fn   NativeFunc
}

func (n *Native) Type() string   { return "native" }
func (n *Native) String() string { return "<native " + n.Name + ">" }
func (n *Native) Truth() bool    { return true }
