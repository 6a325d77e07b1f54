package machine

import (
	"fmt"

	"github.com/mna/mica/lang/compiler"
)

func (vm *VM) readByte(f *Frame) byte {
	b := f.Closure.Proto.Code[f.IP]
	f.IP++
	return b
}

func (vm *VM) readShort(f *Frame) int16 {
	hi := vm.readByte(f)
	lo := vm.readByte(f)
	return int16(uint16(hi)<<8 | uint16(lo))
}

// exec runs the fetch-decode-execute loop starting from the current top
// frame until the call stack unwinds to empty (a normal return) or a fatal
// runtime error aborts execution.
func (vm *VM) exec() bool {
	if vm.frameCount == 0 {
		return false
	}
	frame := &vm.frames[vm.frameCount-1]

	for {
		op := compiler.Opcode(vm.readByte(frame))
		base := frame.BaseRegister

		switch op {
		case compiler.OpNop:
			// no-op

		case compiler.OpLoadConst:
			constIdx := vm.readByte(frame)
			dest := vm.readByte(frame)
			vm.Registers[base+int(dest)] = vm.constantValue(frame, constIdx)

		case compiler.OpLoadLocal:
			localIdx := vm.readByte(frame)
			dest := vm.readByte(frame)
			vm.Registers[base+int(dest)] = vm.Registers[base+int(localIdx)]

		case compiler.OpStoreLocal:
			localIdx := vm.readByte(frame)
			src := vm.readByte(frame)
			vm.Registers[base+int(localIdx)] = vm.Registers[base+int(src)]

		case compiler.OpMove:
			src := vm.readByte(frame)
			dest := vm.readByte(frame)
			vm.Registers[base+int(dest)] = vm.Registers[base+int(src)]

		case compiler.OpLoadUpval:
			upIdx := vm.readByte(frame)
			dest := vm.readByte(frame)
			up := frame.Closure.Upvalues[upIdx]
			vm.Registers[base+int(dest)] = vm.upvalueGet(up)

		case compiler.OpStoreUpval:
			upIdx := vm.readByte(frame)
			src := vm.readByte(frame)
			up := frame.Closure.Upvalues[upIdx]
			vm.upvalueSet(up, vm.Registers[base+int(src)])

		case compiler.OpLoadGlobal:
			nameIdx := vm.readByte(frame)
			dest := vm.readByte(frame)
			name := frame.Closure.Proto.Constants[nameIdx].(string)
			interned := vm.intern.intern(name)
			if g := vm.findGlobal(interned); g != nil {
				vm.Registers[base+int(dest)] = g.value
			} else if n := vm.findNative(name); n != nil {
				vm.Registers[base+int(dest)] = n
			} else {
				fmt.Fprintf(vm.Stderr, "undefined variable: %s\n", name)
				vm.Registers[base+int(dest)] = None
			}

		case compiler.OpStoreGlobal:
			nameIdx := vm.readByte(frame)
			src := vm.readByte(frame)
			name := frame.Closure.Proto.Constants[nameIdx].(string)
			interned := vm.intern.intern(name)
			val := vm.Registers[base+int(src)]
			if g := vm.findGlobal(interned); g != nil {
				release(g.value)
				g.value = val
				retain(val)
			} else {
				interned.Retain()
				vm.globals = append(vm.globals, globalEntry{name: interned, value: val})
				retain(val)
			}

		case compiler.OpAdd, compiler.OpSub, compiler.OpMul, compiler.OpDiv:
			a := vm.readByte(frame)
			b := vm.readByte(frame)
			dest := vm.readByte(frame)
			vm.Registers[base+int(dest)] = arith(op, vm.Registers[base+int(a)], vm.Registers[base+int(b)])

		case compiler.OpMod:
			a := vm.readByte(frame)
			b := vm.readByte(frame)
			dest := vm.readByte(frame)
			ai, _ := vm.Registers[base+int(a)].(Int32)
			bi, _ := vm.Registers[base+int(b)].(Int32)
			vm.Registers[base+int(dest)] = ai % bi

		case compiler.OpNeg:
			src := vm.readByte(frame)
			dest := vm.readByte(frame)
			switch v := vm.Registers[base+int(src)].(type) {
			case Int32:
				vm.Registers[base+int(dest)] = -v
			default:
				vm.Registers[base+int(dest)] = -Float32(asFloat(v))
			}

		case compiler.OpEq:
			a := vm.readByte(frame)
			b := vm.readByte(frame)
			dest := vm.readByte(frame)
			vm.Registers[base+int(dest)] = Bool(valueEqual(vm.Registers[base+int(a)], vm.Registers[base+int(b)]))

		case compiler.OpNe:
			a := vm.readByte(frame)
			b := vm.readByte(frame)
			dest := vm.readByte(frame)
			vm.Registers[base+int(dest)] = Bool(!valueEqual(vm.Registers[base+int(a)], vm.Registers[base+int(b)]))

		case compiler.OpLt, compiler.OpLe, compiler.OpGt, compiler.OpGe:
			a := vm.readByte(frame)
			b := vm.readByte(frame)
			dest := vm.readByte(frame)
			vm.Registers[base+int(dest)] = Bool(compare(op, vm.Registers[base+int(a)], vm.Registers[base+int(b)]))

		case compiler.OpJmp:
			offset := vm.readShort(frame)
			frame.IP += int(offset)

		case compiler.OpJmpIf:
			reg := vm.readByte(frame)
			offset := vm.readShort(frame)
			if vm.Registers[base+int(reg)].Truth() {
				frame.IP += int(offset)
			}

		case compiler.OpJmpIfNot:
			reg := vm.readByte(frame)
			offset := vm.readShort(frame)
			if !vm.Registers[base+int(reg)].Truth() {
				frame.IP += int(offset)
			}

		case compiler.OpRet:
			nvals := vm.readByte(frame)
			result := Value(None)
			if nvals > 0 {
				valReg := vm.readByte(frame)
				result = vm.Registers[base+int(valReg)]
			}
			vm.closeUpvalues(base)

			returnReg := frame.ReturnRegister
			vm.frameCount--
			if vm.frameCount == 0 {
				return true
			}
			frame = &vm.frames[vm.frameCount-1]
			vm.Registers[returnReg] = result

		case compiler.OpCall:
			funcReg := vm.readByte(frame)
			nargs := vm.readByte(frame)
			dest := vm.readByte(frame)

			funcVal := vm.Registers[base+int(funcReg)]
			switch fn := funcVal.(type) {
			case *Native:
				args := make([]Value, nargs)
				for i := 0; i < int(nargs); i++ {
					args[i] = vm.Registers[base+int(funcReg)+1+i]
				}
				result := fn.Fn(args)
				if vm.Aborted {
					return false
				}
				vm.Registers[base+int(dest)] = result

			case *Closure:
				if vm.frameCount >= compiler.MaxFrames {
					fmt.Fprintln(vm.Stderr, "stack overflow")
					return false
				}
				newBase := base + int(funcReg) + 1
				for i := newBase; i < newBase+32 && i < compiler.MaxRegisters; i++ {
					if i >= newBase+int(nargs) {
						vm.Registers[i] = None
					}
				}
				vm.frames[vm.frameCount] = Frame{
					Closure:        fn,
					BaseRegister:   newBase,
					ReturnRegister: base + int(dest),
				}
				vm.frameCount++
				frame = &vm.frames[vm.frameCount-1]

			default:
				fmt.Fprintf(vm.Stderr, "not a function (base_reg=%d, func_reg=%d)\n", base, funcReg)
				return false
			}

		case compiler.OpClosure:
			constIdx := vm.readByte(frame)
			dest := vm.readByte(frame)
			upvalCount := vm.readByte(frame)

			proto := frame.Closure.Proto.Constants[constIdx].(*compiler.Proto)
			closure := &Closure{Proto: proto, RefCount: 1}
			if upvalCount > 0 {
				closure.Upvalues = make([]*Upvalue, upvalCount)
				for i := 0; i < int(upvalCount); i++ {
					isLocal := vm.readByte(frame)
					index := vm.readByte(frame)
					if isLocal != 0 {
						closure.Upvalues[i] = vm.captureUpvalue(base + int(index))
					} else {
						closure.Upvalues[i] = frame.Closure.Upvalues[index]
					}
				}
			}
			vm.Registers[base+int(dest)] = closure

		case compiler.OpCloseUpval:
			local := vm.readByte(frame)
			vm.closeUpvalues(base + int(local))

		case compiler.OpArrayNew:
			capacity := vm.readByte(frame)
			dest := vm.readByte(frame)
			vm.Registers[base+int(dest)] = NewArray(int(capacity))

		case compiler.OpArrayGet:
			arrReg := vm.readByte(frame)
			idxReg := vm.readByte(frame)
			dest := vm.readByte(frame)

			arr, ok := vm.Registers[base+int(arrReg)].(*Array)
			if !ok {
				fmt.Fprintln(vm.Stderr, "not an array")
				return false
			}
			idx, ok := vm.Registers[base+int(idxReg)].(Int32)
			if !ok {
				fmt.Fprintln(vm.Stderr, "array index must be an integer")
				return false
			}
			if idx < 0 || int(idx) >= arr.Len() {
				fmt.Fprintf(vm.Stderr, "array index out of bounds: %d\n", idx)
				return false
			}
			vm.Registers[base+int(dest)] = arr.Get(int(idx))

		case compiler.OpArraySet:
			arrReg := vm.readByte(frame)
			idxReg := vm.readByte(frame)
			valReg := vm.readByte(frame)

			arr, ok := vm.Registers[base+int(arrReg)].(*Array)
			if !ok {
				fmt.Fprintln(vm.Stderr, "not an array")
				return false
			}
			idx, ok := vm.Registers[base+int(idxReg)].(Int32)
			if !ok {
				fmt.Fprintln(vm.Stderr, "array index must be an integer")
				return false
			}
			if idx < 0 || int(idx) >= arr.Len() {
				fmt.Fprintf(vm.Stderr, "array index out of bounds: %d\n", idx)
				return false
			}
			arr.Set(int(idx), vm.Registers[base+int(valReg)])

		case compiler.OpArrayLen:
			arrReg := vm.readByte(frame)
			dest := vm.readByte(frame)
			arr, _ := vm.Registers[base+int(arrReg)].(*Array)
			if arr == nil {
				vm.Registers[base+int(dest)] = Int32(0)
			} else {
				vm.Registers[base+int(dest)] = Int32(arr.Len())
			}

		case compiler.OpArrayPush:
			arrReg := vm.readByte(frame)
			valReg := vm.readByte(frame)
			if arr, ok := vm.Registers[base+int(arrReg)].(*Array); ok {
				arr.Push(vm.Registers[base+int(valReg)])
			}

		case compiler.OpIterNew:
			srcReg := vm.readByte(frame)
			dest := vm.readByte(frame)
			vm.Registers[base+int(dest)] = NewIterator(vm.Registers[base+int(srcReg)])

		case compiler.OpIterNext:
			iterReg := vm.readByte(frame)
			dest := vm.readByte(frame)
			it, ok := vm.Registers[base+int(iterReg)].(*Iterator)
			if !ok {
				fmt.Fprintln(vm.Stderr, "not an iterator")
				return false
			}
			vm.Registers[base+int(dest)] = it.Next()

		case compiler.OpIterHasNext:
			iterReg := vm.readByte(frame)
			dest := vm.readByte(frame)
			it, ok := vm.Registers[base+int(iterReg)].(*Iterator)
			if !ok {
				fmt.Fprintln(vm.Stderr, "not an iterator")
				return false
			}
			vm.Registers[base+int(dest)] = Bool(it.HasNext())

		default:
			fmt.Fprintf(vm.Stderr, "unknown opcode: %d\n", op)
			return false
		}
	}
}

// constantValue turns a raw constant-pool entry into a runtime Value:
// literal scalars convert directly, and Go strings are interned through
// this VM's own table so that two occurrences of the same literal (or a
// literal and a field name) compare equal by identity.
func (vm *VM) constantValue(frame *Frame, idx byte) Value {
	switch c := frame.Closure.Proto.Constants[idx].(type) {
	case int32:
		return Int32(c)
	case float32:
		return Float32(c)
	case bool:
		return Bool(c)
	case string:
		return vm.intern.intern(c)
	case nil:
		return None
	default:
		return None
	}
}

func arith(op compiler.Opcode, a, b Value) Value {
	if ai, bi, ok := bothInt32(a, b); ok {
		switch op {
		case compiler.OpAdd:
			return ai + bi
		case compiler.OpSub:
			return ai - bi
		case compiler.OpMul:
			return ai * bi
		case compiler.OpDiv:
			return ai / bi
		}
	}
	fa, fb := asFloat(a), asFloat(b)
	switch op {
	case compiler.OpAdd:
		return Float32(fa + fb)
	case compiler.OpSub:
		return Float32(fa - fb)
	case compiler.OpMul:
		return Float32(fa * fb)
	case compiler.OpDiv:
		return Float32(fa / fb)
	}
	return None
}

func compare(op compiler.Opcode, a, b Value) bool {
	if ai, bi, ok := bothInt32(a, b); ok {
		switch op {
		case compiler.OpLt:
			return ai < bi
		case compiler.OpLe:
			return ai <= bi
		case compiler.OpGt:
			return ai > bi
		case compiler.OpGe:
			return ai >= bi
		}
	}
	fa, fb := asFloat(a), asFloat(b)
	switch op {
	case compiler.OpLt:
		return fa < fb
	case compiler.OpLe:
		return fa <= fb
	case compiler.OpGt:
		return fa > fb
	case compiler.OpGe:
		return fa >= fb
	}
	return false
}
