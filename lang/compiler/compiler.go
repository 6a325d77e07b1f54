package compiler

import (
	"fmt"
	"io"
	"os"

	"github.com/mna/mica/lang/ast"
)

type local struct {
	name     string
	depth    int
	captured bool
	mutable  bool
}

type loopContext struct {
	enclosing *loopContext
	patches   []int // code offsets of the 2-byte operand to backpatch
	baseDepth int    // scopeDepth in effect when the loop was entered
}

// Compiler performs a single pass over an AST, emitting register-based
// bytecode and resolving every identifier to a local register, an upvalue,
// or a global as it goes. Each function or closure literal gets its own
// nested Compiler, chained to its lexical parent via enclosing so upvalue
// resolution can walk outward.
type Compiler struct {
	enclosing *Compiler
	proto     *Proto

	locals        []local
	scopeDepth    int
	registerCount int
	loop          *loopContext

	errw     io.Writer
	hadError bool
}

// Compile compiles a whole program into its top-level Proto, named "<main>".
// Errors are reported to os.Stderr; use CompileTo to redirect them.
func Compile(prog *ast.Program) (*Proto, bool) {
	return CompileTo(prog, os.Stderr)
}

// CompileTo compiles prog, writing diagnostics to errw.
func CompileTo(prog *ast.Program, errw io.Writer) (*Proto, bool) {
	c := newCompiler(nil, "<main>", errw)
	for _, s := range prog.Stmts {
		c.compileStmt(s)
	}
	c.emitOp(OpRet)
	c.emitByte(0)
	return c.proto, !c.hadError
}

func newCompiler(enclosing *Compiler, name string, errw io.Writer) *Compiler {
	return &Compiler{
		enclosing: enclosing,
		proto:     &Proto{Name: name},
		errw:      errw,
	}
}

func (c *Compiler) errorf(ln int, format string, args ...any) {
	c.hadError = true
	fmt.Fprintf(c.errw, "[line %d] error: %s\n", ln, fmt.Sprintf(format, args...))
}

// --- emission ---

func (c *Compiler) emitByte(b byte) { c.proto.Code = append(c.proto.Code, b) }
func (c *Compiler) emitOp(op Opcode) { c.emitByte(byte(op)) }

func (c *Compiler) addConstant(v any) uint8 {
	c.proto.Constants = append(c.proto.Constants, v)
	return uint8(len(c.proto.Constants) - 1)
}

// patchJump backfills the jump at codeOffset with the signed, big-endian
// offset from just after the operand to the current end of code.
func (c *Compiler) patchJump(codeOffset int) {
	offset := int16(len(c.proto.Code) - (codeOffset + 2))
	c.proto.Code[codeOffset] = byte(offset >> 8)
	c.proto.Code[codeOffset+1] = byte(offset)
}

// emitLoop emits an unconditional jump back to loopStart.
func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(OpJmp)
	offset := int16(-(len(c.proto.Code) - loopStart + 2))
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset))
}

// --- registers ---

func (c *Compiler) allocRegister() uint8 {
	r := c.registerCount
	c.registerCount++
	return uint8(r)
}

func (c *Compiler) freeRegister() {
	if c.registerCount > 0 {
		c.registerCount--
	}
}

// --- loops (for break patching) ---

func (c *Compiler) beginLoop() {
	c.loop = &loopContext{enclosing: c.loop, baseDepth: c.scopeDepth}
}

func (c *Compiler) endLoop() {
	if c.loop == nil {
		return
	}
	for _, addr := range c.loop.patches {
		c.patchJump(addr)
	}
	c.loop = c.loop.enclosing
}

// --- scopes ---

func (c *Compiler) beginScope() { c.scopeDepth++ }

func (c *Compiler) endScope() {
	c.scopeDepth--
	for len(c.locals) > 0 && c.locals[len(c.locals)-1].depth > c.scopeDepth {
		last := c.locals[len(c.locals)-1]
		if last.captured {
			c.emitOp(OpCloseUpval)
			c.emitByte(byte(len(c.locals) - 1))
		}
		c.locals = c.locals[:len(c.locals)-1]
	}
}

func (c *Compiler) declareLocal(name string, mutable bool) {
	if len(c.locals) >= MaxLocals {
		c.errorf(0, "too many local variables")
		return
	}
	c.locals = append(c.locals, local{name: name, depth: c.scopeDepth, mutable: mutable})
}

func (c *Compiler) resolveLocal(name string) int {
	for i := len(c.locals) - 1; i >= 0; i-- {
		if c.locals[i].name == name {
			return i
		}
	}
	return -1
}

func (c *Compiler) addUpvalue(index uint8, isLocal bool) int {
	for i, u := range c.proto.Upvalues {
		if u.Index == index && u.IsLocal == isLocal {
			return i
		}
	}
	if len(c.proto.Upvalues) >= MaxUpvalues {
		c.errorf(0, "too many upvalues")
		return -1
	}
	c.proto.Upvalues = append(c.proto.Upvalues, UpvalueDesc{IsLocal: isLocal, Index: index})
	return len(c.proto.Upvalues) - 1
}

func (c *Compiler) resolveUpvalue(name string) int {
	if c.enclosing == nil {
		return -1
	}
	if local := c.enclosing.resolveLocal(name); local != -1 {
		c.enclosing.locals[local].captured = true
		return c.addUpvalue(uint8(local), true)
	}
	if up := c.enclosing.resolveUpvalue(name); up != -1 {
		return c.addUpvalue(uint8(up), false)
	}
	return -1
}

// --- expressions ---

func (c *Compiler) compileExpr(e ast.Expr) uint8 {
	switch e := e.(type) {
	case *ast.IntLit:
		return c.compileConstLit(e.Value, e.Line())
	case *ast.FloatLit:
		return c.compileConstLit(e.Value, e.Line())
	case *ast.BoolLit:
		return c.compileConstLit(e.Value, e.Line())
	case *ast.StringLit:
		return c.compileConstLit(e.Value, e.Line())
	case *ast.NoneLit:
		return c.compileConstLit(nil, e.Line())
	case *ast.Ident:
		return c.compileIdent(e)
	case *ast.BinaryExpr:
		return c.compileBinary(e)
	case *ast.UnaryExpr:
		return c.compileUnary(e)
	case *ast.ArrayLit:
		return c.compileArray(e)
	case *ast.IndexExpr:
		return c.compileIndex(e)
	case *ast.CallExpr:
		return c.compileCall(e)
	case *ast.ClosureLit:
		return c.compileClosureLit(e)
	case *ast.IterChain:
		return c.compileIterChain(e)
	default:
		c.errorf(0, "cannot compile expression of type %T", e)
		return c.allocRegister()
	}
}

func (c *Compiler) compileConstLit(v any, ln int) uint8 {
	reg := c.allocRegister()
	idx := c.addConstant(v)
	c.emitOp(OpLoadConst)
	c.emitByte(idx)
	c.emitByte(reg)
	return reg
}

func (c *Compiler) compileIdent(id *ast.Ident) uint8 {
	reg := c.allocRegister()

	if local := c.resolveLocal(id.Name); local != -1 {
		c.emitOp(OpLoadLocal)
		c.emitByte(byte(local))
		c.emitByte(reg)
		return reg
	}
	if up := c.resolveUpvalue(id.Name); up != -1 {
		c.emitOp(OpLoadUpval)
		c.emitByte(byte(up))
		c.emitByte(reg)
		return reg
	}

	nameIdx := c.addConstant(id.Name)
	c.emitOp(OpLoadGlobal)
	c.emitByte(nameIdx)
	c.emitByte(reg)
	return reg
}

var binaryOps = map[string]Opcode{
	"+": OpAdd, "-": OpSub, "*": OpMul, "/": OpDiv, "%": OpMod,
	"==": OpEq, "!=": OpNe, "<": OpLt, "<=": OpLe, ">": OpGt, ">=": OpGe,
}

func (c *Compiler) compileBinary(b *ast.BinaryExpr) uint8 {
	left := c.compileExpr(b.Left)
	right := c.compileExpr(b.Right)
	dest := c.allocRegister()

	op, ok := binaryOps[b.Op]
	if !ok {
		c.errorf(b.Line(), "unknown binary operator %q", b.Op)
		op = OpNop
	}
	c.emitOp(op)
	c.emitByte(left)
	c.emitByte(right)
	c.emitByte(dest)

	c.freeRegister()
	c.freeRegister()
	return dest
}

func (c *Compiler) compileUnary(u *ast.UnaryExpr) uint8 {
	operand := c.compileExpr(u.Operand)
	dest := c.allocRegister()
	if u.Op == "-" {
		c.emitOp(OpNeg)
		c.emitByte(operand)
		c.emitByte(dest)
	} else {
		c.errorf(u.Line(), "unknown unary operator %q", u.Op)
	}
	c.freeRegister()
	return dest
}

func (c *Compiler) compileArray(a *ast.ArrayLit) uint8 {
	if len(a.Elems) > 255 {
		c.errorf(a.Line(), "array literal too large")
	}
	arrReg := c.allocRegister()
	c.emitOp(OpArrayNew)
	c.emitByte(byte(len(a.Elems)))
	c.emitByte(arrReg)

	for _, el := range a.Elems {
		elemReg := c.compileExpr(el)
		c.emitOp(OpArrayPush)
		c.emitByte(arrReg)
		c.emitByte(elemReg)
		c.freeRegister()
	}
	return arrReg
}

func (c *Compiler) compileIndex(ix *ast.IndexExpr) uint8 {
	arrReg := c.compileExpr(ix.Array)
	idxReg := c.compileExpr(ix.Index)
	dest := c.allocRegister()

	c.emitOp(OpArrayGet)
	c.emitByte(arrReg)
	c.emitByte(idxReg)
	c.emitByte(dest)

	c.freeRegister()
	c.freeRegister()
	return dest
}

func (c *Compiler) compileCall(call *ast.CallExpr) uint8 {
	if len(call.Args) > 255 {
		c.errorf(call.Line(), "too many call arguments")
	}
	funcReg := c.compileExpr(call.Callee)

	argRegs := make([]uint8, len(call.Args))
	for i, a := range call.Args {
		argRegs[i] = c.compileExpr(a)
	}

	// arguments must land in the contiguous block right after the callee so
	// the callee frame can treat func_reg+1.. as its own register 0..
	argStart := funcReg + 1
	for i, r := range argRegs {
		target := argStart + uint8(i)
		if r != target {
			c.emitOp(OpMove)
			c.emitByte(r)
			c.emitByte(target)
		}
	}

	dest := c.allocRegister()
	c.emitOp(OpCall)
	c.emitByte(funcReg)
	c.emitByte(byte(len(call.Args)))
	c.emitByte(dest)
	return dest
}

func (c *Compiler) compileClosureLit(cl *ast.ClosureLit) uint8 {
	return c.compileFunctionLike(cl.Params, cl.Body, "")
}

// compileIterChain only ever reaches bytecode for the bare `.iter()` source
// expression (see spec design note on iterator chains): any chained method
// is flagged as a compile error, and the source expression still compiles
// so the surrounding register discipline stays intact for error recovery.
func (c *Compiler) compileIterChain(ic *ast.IterChain) uint8 {
	if len(ic.Calls) > 0 {
		c.errorf(ic.Line(), "iterator chain method %q is not supported past .iter()", ic.Calls[0].Method)
	}
	return c.compileExpr(ic.Source)
}

// --- statements ---

func (c *Compiler) compileStmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.LetStmt:
		c.compileLet(s)
	case *ast.AssignStmt:
		c.compileAssign(s)
	case *ast.IfStmt:
		c.compileIf(s)
	case *ast.WhileStmt:
		c.compileWhile(s)
	case *ast.ForStmt:
		c.compileFor(s)
	case *ast.LoopStmt:
		c.compileLoop(s)
	case *ast.BreakStmt:
		c.compileBreak(s)
	case *ast.ReturnStmt:
		c.compileReturn(s)
	case *ast.BlockStmt:
		c.beginScope()
		for _, st := range s.Body.Stmts {
			c.compileStmt(st)
		}
		c.endScope()
	case *ast.FnStmt:
		c.compileFnStmt(s)
	case *ast.ExprStmt:
		c.compileExpr(s.X)
		c.freeRegister()
	default:
		c.errorf(0, "cannot compile statement of type %T", s)
	}
}

func (c *Compiler) compileLet(l *ast.LetStmt) {
	if c.scopeDepth == 0 {
		valReg := c.compileExpr(l.Value)
		nameIdx := c.addConstant(l.Name)
		c.emitOp(OpStoreGlobal)
		c.emitByte(nameIdx)
		c.emitByte(valReg)
		c.freeRegister()
		return
	}

	// a local must end up in the register slot matching its index, so the
	// rest of the compiler can address it purely by local index.
	localSlot := len(c.locals)
	c.declareLocal(l.Name, l.Mutable)

	// after compiling the initializer, either it already landed in the
	// local's home register (the allocator never re-targets it, since
	// localSlot is always the next register handed out) or it needs one
	// MOVE to get there; either way the local now lives in register
	// localSlot, so no further STORE_LOCAL is needed (§"Open Questions" 2 —
	// a self-store would be a no-op and is elided rather than emitted).
	valReg := c.compileExpr(l.Value)
	if valReg != uint8(localSlot) {
		c.emitOp(OpMove)
		c.emitByte(valReg)
		c.emitByte(byte(localSlot))
	}

	if c.registerCount <= localSlot {
		c.registerCount = localSlot + 1
	}
	for c.registerCount > len(c.locals) {
		c.freeRegister()
	}
}

func (c *Compiler) compileAssign(a *ast.AssignStmt) {
	if ix, ok := a.Target.(*ast.IndexExpr); ok {
		arrReg := c.compileExpr(ix.Array)
		idxReg := c.compileExpr(ix.Index)
		valReg := c.compileExpr(a.Value)

		c.emitOp(OpArraySet)
		c.emitByte(arrReg)
		c.emitByte(idxReg)
		c.emitByte(valReg)

		c.freeRegister()
		c.freeRegister()
		c.freeRegister()
		return
	}

	id, ok := a.Target.(*ast.Ident)
	if !ok {
		c.errorf(a.Line(), "invalid assignment target")
		return
	}

	valReg := c.compileExpr(a.Value)

	if local := c.resolveLocal(id.Name); local != -1 {
		if !c.locals[local].mutable {
			c.errorf(a.Line(), "cannot assign to immutable variable: %s", id.Name)
		}
		c.emitOp(OpStoreLocal)
		c.emitByte(byte(local))
		c.emitByte(valReg)
	} else if up := c.resolveUpvalue(id.Name); up != -1 {
		c.emitOp(OpStoreUpval)
		c.emitByte(byte(up))
		c.emitByte(valReg)
	} else {
		nameIdx := c.addConstant(id.Name)
		c.emitOp(OpStoreGlobal)
		c.emitByte(nameIdx)
		c.emitByte(valReg)
	}

	c.freeRegister()
}

func (c *Compiler) compileIf(ifs *ast.IfStmt) {
	condReg := c.compileExpr(ifs.Cond)
	c.emitOp(OpJmpIfNot)
	c.emitByte(condReg)
	elseJump := len(c.proto.Code)
	c.emitByte(0)
	c.emitByte(0)
	c.freeRegister()

	c.compileBlock(ifs.Then)

	if ifs.Else != nil {
		c.emitOp(OpJmp)
		endJump := len(c.proto.Code)
		c.emitByte(0)
		c.emitByte(0)

		c.patchJump(elseJump)
		c.compileBlock(ifs.Else)
		c.patchJump(endJump)
	} else {
		c.patchJump(elseJump)
	}
}

func (c *Compiler) compileWhile(w *ast.WhileStmt) {
	c.beginLoop()
	loopStart := len(c.proto.Code)

	condReg := c.compileExpr(w.Cond)
	c.emitOp(OpJmpIfNot)
	c.emitByte(condReg)
	exitJump := len(c.proto.Code)
	c.emitByte(0)
	c.emitByte(0)
	c.freeRegister()

	c.compileBlock(w.Body)

	c.emitLoop(loopStart)
	c.patchJump(exitJump)
	c.endLoop()
}

func (c *Compiler) compileFor(f *ast.ForStmt) {
	c.beginLoop()
	c.beginScope()

	iterableReg := c.compileExpr(f.Iterable)
	iterReg := c.allocRegister()
	c.emitOp(OpIterNew)
	c.emitByte(iterableReg)
	c.emitByte(iterReg)
	c.freeRegister()

	c.declareLocal(".iter", false)
	iterLocal := len(c.locals) - 1
	c.emitOp(OpStoreLocal)
	c.emitByte(byte(iterLocal))
	c.emitByte(iterReg)
	c.freeRegister()

	c.declareLocal(f.Var, false)
	varLocal := len(c.locals) - 1
	// both hidden and loop-variable locals now own their registers, so loop
	// temporaries must be allocated above them.
	c.registerCount = len(c.locals)

	loopStart := len(c.proto.Code)

	loadedIterReg := c.allocRegister()
	c.emitOp(OpLoadLocal)
	c.emitByte(byte(iterLocal))
	c.emitByte(loadedIterReg)

	hasNextReg := c.allocRegister()
	c.emitOp(OpIterHasNext)
	c.emitByte(loadedIterReg)
	c.emitByte(hasNextReg)

	c.emitOp(OpJmpIfNot)
	c.emitByte(hasNextReg)
	exitJump := len(c.proto.Code)
	c.emitByte(0)
	c.emitByte(0)
	c.freeRegister()

	valReg := c.allocRegister()
	c.emitOp(OpIterNext)
	c.emitByte(loadedIterReg)
	c.emitByte(valReg)
	c.freeRegister()

	c.emitOp(OpStoreLocal)
	c.emitByte(byte(varLocal))
	c.emitByte(valReg)
	c.freeRegister()

	c.compileBlock(f.Body)

	c.emitLoop(loopStart)
	c.patchJump(exitJump)

	c.endScope()
	c.endLoop()
}

func (c *Compiler) compileLoop(l *ast.LoopStmt) {
	c.beginLoop()
	loopStart := len(c.proto.Code)
	c.compileBlock(l.Body)
	c.emitLoop(loopStart)
	c.endLoop()
}

// closeUpvalsAbove emits CLOSE_UPVAL for every captured local declared more
// deeply than targetDepth, without popping them from c.locals: used by
// compileBreak to unwind every scope between the break and the loop it
// exits, since a break's jump skips the endScope calls that would otherwise
// do this. Closing is idempotent (§3), so it is harmless that the scope's
// own normal exit path closes the same upvalues again.
func (c *Compiler) closeUpvalsAbove(targetDepth int) {
	for i := len(c.locals) - 1; i >= 0 && c.locals[i].depth > targetDepth; i-- {
		if c.locals[i].captured {
			c.emitOp(OpCloseUpval)
			c.emitByte(byte(i))
		}
	}
}

func (c *Compiler) compileBreak(b *ast.BreakStmt) {
	if c.loop == nil {
		c.errorf(b.Line(), "break outside of loop")
		return
	}
	c.closeUpvalsAbove(c.loop.baseDepth)
	c.emitOp(OpJmp)
	at := len(c.proto.Code)
	c.loop.patches = append(c.loop.patches, at)
	c.emitByte(0)
	c.emitByte(0)
}

func (c *Compiler) compileReturn(r *ast.ReturnStmt) {
	if r.Value != nil {
		if _, isNone := r.Value.(*ast.NoneLit); !isNone {
			valReg := c.compileExpr(r.Value)
			c.emitOp(OpRet)
			c.emitByte(1)
			c.emitByte(valReg)
			c.freeRegister()
			return
		}
	}
	c.emitOp(OpRet)
	c.emitByte(0)
}

func (c *Compiler) compileFnStmt(fn *ast.FnStmt) {
	fnReg := c.allocRegister()
	if c.scopeDepth > 0 {
		c.declareLocal(fn.Name, false)
	}

	proto := c.compileFunction(fn.Params, fn.Body, fn.Name)

	constIdx := c.addConstant(proto)
	c.emitOp(OpClosure)
	c.emitByte(constIdx)
	c.emitByte(fnReg)
	c.emitByte(byte(len(proto.Upvalues)))
	for _, u := range proto.Upvalues {
		if u.IsLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(u.Index)
	}

	if c.scopeDepth == 0 {
		nameIdx := c.addConstant(fn.Name)
		c.emitOp(OpStoreGlobal)
		c.emitByte(nameIdx)
		c.emitByte(fnReg)
		c.freeRegister()
	} else {
		localIdx := len(c.locals) - 1
		c.emitOp(OpStoreLocal)
		c.emitByte(byte(localIdx))
		c.emitByte(fnReg)
		// the function's register is now a live local's home slot.
		c.registerCount = len(c.locals)
	}
}

// compileFunctionLike compiles a closure expression (a `|params| body`
// literal) and emits the OpClosure that turns its Proto into a value in a
// freshly allocated register, returning that register.
func (c *Compiler) compileFunctionLike(params []string, body *ast.Block, name string) uint8 {
	proto := c.compileFunction(params, body, name)

	constIdx := c.addConstant(proto)
	reg := c.allocRegister()
	c.emitOp(OpClosure)
	c.emitByte(constIdx)
	c.emitByte(reg)
	c.emitByte(byte(len(proto.Upvalues)))
	for _, u := range proto.Upvalues {
		if u.IsLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(u.Index)
	}
	return reg
}

// compileFunction compiles params+body as a nested function, returning its
// Proto. It does not emit anything into c's own code stream besides what
// the caller adds via the returned Proto and upvalue descriptors.
//
// Params live in their own scope (so the body's scope, opened again by
// compileBlock, closes any upvalues it captures before the outer one closes
// the parameters themselves).
func (c *Compiler) compileFunction(params []string, body *ast.Block, name string) *Proto {
	if len(params) > 255 {
		c.errorf(0, "too many parameters")
	}
	fc := newCompiler(c, name, c.errw)
	fc.proto.Arity = len(params)

	fc.beginScope()
	for _, p := range params {
		fc.declareLocal(p, false)
	}
	fc.registerCount = len(fc.locals)

	fc.compileBlock(body)
	fc.emitOp(OpRet)
	fc.emitByte(0)

	fc.endScope()
	if fc.hadError {
		c.hadError = true
	}
	return fc.proto
}

func (c *Compiler) compileBlock(b *ast.Block) {
	c.beginScope()
	for _, st := range b.Stmts {
		c.compileStmt(st)
	}
	c.endScope()
}
