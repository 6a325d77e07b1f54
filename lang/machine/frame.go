package machine

// Frame is one activation record on the VM's call stack. It carries no
// register storage of its own: registers live in the VM's single flat
// register file, and BaseRegister is this frame's offset into it.
type Frame struct {
	Closure       *Closure
	IP            int
	BaseRegister  int
	ReturnRegister int
}
