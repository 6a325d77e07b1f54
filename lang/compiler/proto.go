package compiler

// UpvalueDesc tells a closure, at the moment it is created, where to find
// the value it captures: either the enclosing frame's local register
// (IsLocal) or one of the enclosing closure's own upvalues.
type UpvalueDesc struct {
	IsLocal bool
	Index   uint8
}

// Proto is a compiled function body: its bytecode, constant pool, and the
// upvalue descriptors the VM consults when materializing a Closure from it
// via OpClosure. The constant pool holds one of: int32, float32, bool,
// string, nil (the None literal), or *Proto (a nested function/closure
// literal, turned into a live Closure at OpClosure time).
type Proto struct {
	Code      []byte
	Constants []any
	Arity     int
	Upvalues  []UpvalueDesc
	Name      string
}

// MaxRegisters is the size of the VM's flat register file, shared by every
// frame on the call stack. MaxLocals and
// MaxUpvalues share the same limit: both are addressed by a single byte
// operand in the bytecode.
const (
	MaxRegisters = 256
	MaxLocals    = 256
	MaxUpvalues  = 256
	MaxFrames    = 64
)
