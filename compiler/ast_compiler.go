package compiler

// This file implements the ASTCompiler, which translates a parsed
// compilation unit directly into a flat, PC-indexed instruction list.
// Visitor methods signal failure by panicking with a compiler error value;
// Compile recovers at the top level and turns that back into a normal
// Go error, mirroring how the interpreter package propagates control-flow
// and error signals through panic/recover.

import (
	"fmt"
	"nilan/ast"
	"nilan/token"
)

// pendingCall records a Call instruction whose target function had not
// yet been compiled (and so had no known entry address) at the point the
// call site was emitted — e.g. a function calling one defined later in
// source order, or mutual recursion.
type pendingCall struct {
	pc   int
	name string
}

// ASTCompiler walks a compilation unit and emits bytecode into code.
type ASTCompiler struct {
	code Code
	env  *Environment

	funcEntryPlaceholder int // index of the guard Jmp skipping over function bodies
	mainName             string
	pendingCalls         []pendingCall
}

// NewASTCompiler creates a compiler with a fresh compile-time environment.
func NewASTCompiler() *ASTCompiler {
	return &ASTCompiler{
		env:      NewEnvironment(),
		mainName: "main",
	}
}

// Compile translates a full compilation unit into bytecode. Globals are
// initialized first, followed by a guard jump over the function bodies,
// each function's code in source order, and finally a single Call into
// main as the program's last instruction: when main returns, the program
// counter lands one past the end of the code and the VM halts.
func (c *ASTCompiler) Compile(unit ast.CompilationUnit) (code Code, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()

	for _, fn := range unit.Functions {
		params := make([]string, len(fn.Params))
		for i, p := range fn.Params {
			params[i] = p.Name.Lexeme
		}
		if declErr := c.env.DeclareFunc(fn.Name.Lexeme, -1, params); declErr != nil {
			panic(declErr)
		}
	}
	if _, ok := c.env.ResolveFunc(c.mainName); !ok {
		panic(SemanticError{Message: "program has no 'main' function"})
	}

	for _, g := range unit.Globals {
		g.Accept(c)
	}

	c.funcEntryPlaceholder = c.emitPlaceholder(OpJmp)

	for _, fn := range unit.Functions {
		c.env.SetFuncEntry(fn.Name.Lexeme, len(c.code))
		c.compileFunction(fn)
	}

	for _, call := range c.pendingCalls {
		info, ok := c.env.ResolveFunc(call.name)
		if !ok {
			panic(SemanticError{Message: fmt.Sprintf("undefined function '%s'", call.name)})
		}
		c.code[call.pc].A = int32(info.Entry)
	}

	mainInfo, _ := c.env.ResolveFunc(c.mainName)
	c.patchJump(c.funcEntryPlaceholder, len(c.code))
	c.emit(OpCall, int32(mainInfo.Entry), 0)

	return c.code, nil
}

func (c *ASTCompiler) emit(op Opcode, operands ...int32) int {
	instr := Instruction{Op: op}
	if len(operands) > 0 {
		instr.A = operands[0]
	}
	if len(operands) > 1 {
		instr.B = operands[1]
	}
	c.code = append(c.code, instr)
	return len(c.code) - 1
}

// emitPlaceholder emits a jump-family instruction with a zero operand to
// be patched once the true target address is known.
func (c *ASTCompiler) emitPlaceholder(op Opcode) int {
	return c.emit(op, 0)
}

// patchJump rewrites a previously emitted jump instruction's target
// operand to target.
func (c *ASTCompiler) patchJump(pc int, target int) {
	c.code[pc].A = int32(target)
}

// compileFunction compiles one function's parameters and body. Parameters
// occupy the function's implicit base scope (slots 0..n-1); the function's
// top-level block does not get its own EnterScope/LeaveScope pair, since
// the activation frame created by Call already establishes that scope.
func (c *ASTCompiler) compileFunction(fn ast.FunctionDecl) {
	c.env.PushScope()
	for _, p := range fn.Params {
		if _, err := c.env.DeclareLocal(p.Name.Lexeme); err != nil {
			panic(err)
		}
	}
	for _, stmt := range fn.Body.Statements {
		stmt.Accept(c)
	}
	c.env.PopScope()
	// Fall-through return: a function whose body does not end with an
	// explicit return yields 0, matching the tree-walking interpreter.
	c.emit(OpLoadConst, 0)
	c.emit(OpRet)
}

// compileBlock compiles a nested block, wrapping it in EnterScope/
// LeaveScope so its locals are released on exit. Used for if/while bodies
// and bare nested blocks, never for a function's own top-level body.
func (c *ASTCompiler) compileBlock(block ast.BlockStmt) {
	c.env.PushScope()
	enterPC := c.emitPlaceholder(OpEnterScope)
	for _, stmt := range block.Statements {
		stmt.Accept(c)
	}
	n := c.env.PopScope()
	c.code[enterPC].A = int32(n)
	c.emit(OpLeaveScope)
}

// --- Statements ---

func (c *ASTCompiler) VisitExpressionStmt(stmt ast.ExpressionStmt) any {
	stmt.Expression.Accept(c)
	// Deliberately no Pop: expression statements leave their value on the
	// operand stack, matching the VM's accepted leak of unused results.
	return nil
}

func (c *ASTCompiler) VisitVarStmt(stmt ast.VarStmt) any {
	if stmt.Initializer != nil {
		stmt.Initializer.Accept(c)
	} else {
		c.emit(OpLoadConst, 0)
	}
	if len(c.env.scopes) == 0 {
		idx, err := c.env.DeclareGlobal(stmt.Name.Lexeme)
		if err != nil {
			panic(err)
		}
		c.emit(OpStoreGlobal, int32(idx))
		return nil
	}
	slot, err := c.env.DeclareLocal(stmt.Name.Lexeme)
	if err != nil {
		panic(err)
	}
	depth := 0
	c.emit(OpStoreVar, int32(depth), int32(slot))
	return nil
}

func (c *ASTCompiler) VisitBlockStmt(stmt ast.BlockStmt) any {
	c.compileBlock(stmt)
	return nil
}

func (c *ASTCompiler) VisitIfStmt(stmt ast.IfStmt) any {
	stmt.Condition.Accept(c)
	elseJump := c.emitPlaceholder(OpJmpFalse)
	stmt.Then.Accept(c)
	endJump := c.emitPlaceholder(OpJmp)
	c.patchJump(elseJump, len(c.code))
	if stmt.Else != nil {
		stmt.Else.Accept(c)
	}
	c.patchJump(endJump, len(c.code))
	return nil
}

func (c *ASTCompiler) VisitWhileStmt(stmt ast.WhileStmt) any {
	loopStart := len(c.code)
	c.env.PushLoop(loopStart)
	stmt.Condition.Accept(c)
	exitJump := c.emitPlaceholder(OpJmpFalse)
	stmt.Body.Accept(c)
	c.emit(OpJmp, int32(loopStart))
	c.patchJump(exitJump, len(c.code))
	for _, breakPC := range c.env.PopLoop() {
		c.patchJump(breakPC, len(c.code))
	}
	return nil
}

func (c *ASTCompiler) VisitReturnStmt(stmt ast.ReturnStmt) any {
	if stmt.Value != nil {
		stmt.Value.Accept(c)
	} else {
		c.emit(OpLoadConst, 0)
	}
	c.emit(OpRet)
	return nil
}

// unwindToLoop emits one LeaveScope per block scope opened since the
// enclosing loop's header, releasing the VM frames a plain Jmp out of
// those blocks would otherwise strand open.
func (c *ASTCompiler) unwindToLoop(loop *loopCtx) {
	for i := c.env.ScopeDepth(); i > loop.scopeDepth; i-- {
		c.emit(OpLeaveScope)
	}
}

func (c *ASTCompiler) VisitBreakStmt(stmt ast.BreakStmt) any {
	loop, ok := c.env.CurrentLoop()
	if !ok {
		panic(SemanticError{Message: "'break' used outside of a loop"})
	}
	c.unwindToLoop(loop)
	pc := c.emitPlaceholder(OpJmp)
	c.env.RecordBreak(pc)
	return nil
}

func (c *ASTCompiler) VisitContinueStmt(stmt ast.ContinueStmt) any {
	loop, ok := c.env.CurrentLoop()
	if !ok {
		panic(SemanticError{Message: "'continue' used outside of a loop"})
	}
	c.unwindToLoop(loop)
	c.emit(OpJmp, int32(loop.continueTarget))
	return nil
}

func (c *ASTCompiler) VisitFunctionDecl(decl ast.FunctionDecl) any {
	// Function bodies are compiled explicitly by Compile in declaration
	// order; FunctionDecl never appears nested inside a block, so this
	// visitor method is unreachable in well-formed compilation units.
	panic(DeveloperError{Message: "unexpected nested function declaration"})
}

// --- Expressions ---

func (c *ASTCompiler) VisitBinary(b ast.Binary) any {
	b.Left.Accept(c)
	b.Right.Accept(c)
	c.emit(binaryOpcodeFor(b.Operator.TokenType))
	return nil
}

func (c *ASTCompiler) VisitUnary(u ast.Unary) any {
	u.Right.Accept(c)
	switch u.Operator.Lexeme {
	case "-":
		c.emit(OpUniOpNeg)
	case "!":
		c.emit(OpUniOpNot)
	default:
		panic(DeveloperError{Message: fmt.Sprintf("unknown unary operator '%s'", u.Operator.Lexeme)})
	}
	return nil
}

func (c *ASTCompiler) VisitLiteral(l ast.Literal) any {
	v, ok := l.Value.(int64)
	if !ok {
		panic(DeveloperError{Message: "non-integer literal reached the compiler"})
	}
	c.emit(OpLoadConst, int32(v))
	return nil
}

func (c *ASTCompiler) VisitGrouping(g ast.Grouping) any {
	g.Expression.Accept(c)
	return nil
}

func (c *ASTCompiler) VisitVariableExpression(v ast.Variable) any {
	if depth, slot, ok := c.env.ResolveLocal(v.Name.Lexeme); ok {
		c.emit(OpLoadVar, int32(depth), int32(slot))
		return nil
	}
	if idx, ok := c.env.ResolveGlobal(v.Name.Lexeme); ok {
		c.emit(OpLoadGlobal, int32(idx))
		return nil
	}
	panic(SemanticError{Message: fmt.Sprintf("undefined variable '%s'", v.Name.Lexeme)})
}

func (c *ASTCompiler) VisitAssignExpression(a ast.Assign) any {
	a.Value.Accept(c)
	if depth, slot, ok := c.env.ResolveLocal(a.Name.Lexeme); ok {
		c.emit(OpStoreVar, int32(depth), int32(slot))
		c.emit(OpLoadVar, int32(depth), int32(slot))
		return nil
	}
	if idx, ok := c.env.ResolveGlobal(a.Name.Lexeme); ok {
		c.emit(OpStoreGlobal, int32(idx))
		c.emit(OpLoadGlobal, int32(idx))
		return nil
	}
	panic(SemanticError{Message: fmt.Sprintf("undefined variable '%s'", a.Name.Lexeme)})
}

// VisitLogicalExpression compiles `or`/`and` eagerly: both operands are
// always evaluated, matching the tree-walking interpreter's semantics
// rather than a short-circuiting jump sequence.
func (c *ASTCompiler) VisitLogicalExpression(l ast.Logical) any {
	l.Left.Accept(c)
	l.Right.Accept(c)
	switch l.Operator.Lexeme {
	case "or":
		c.emit(OpBinOpOr)
	case "and":
		c.emit(OpBinOpAnd)
	default:
		panic(DeveloperError{Message: fmt.Sprintf("unknown logical operator '%s'", l.Operator.Lexeme)})
	}
	return nil
}

func (c *ASTCompiler) VisitCallExpression(call ast.Call) any {
	switch call.Callee.Lexeme {
	case "print":
		// Each argument prints on its own line, matching the tree-walking
		// interpreter's print semantics exactly.
		for _, arg := range call.Args {
			arg.Accept(c)
			c.emit(OpPrintItem)
			c.emit(OpPrintNewline)
		}
		c.emit(OpLoadConst, 0)
		return nil
	case "getint":
		c.emit(OpGetInt)
		return nil
	}

	info, ok := c.env.ResolveFunc(call.Callee.Lexeme)
	if !ok {
		panic(SemanticError{Message: fmt.Sprintf("undefined function '%s'", call.Callee.Lexeme)})
	}
	if len(call.Args) != len(info.Params) {
		panic(SemanticError{Message: fmt.Sprintf(
			"function '%s' expects %d argument(s), got %d", call.Callee.Lexeme, len(info.Params), len(call.Args))})
	}
	// Arguments are pushed in reverse order so the callee can pop them
	// directly into ascending parameter slots.
	for i := len(call.Args) - 1; i >= 0; i-- {
		call.Args[i].Accept(c)
	}
	pc := c.emit(OpCall, int32(info.Entry), int32(len(call.Args)))
	if info.Entry < 0 {
		c.pendingCalls = append(c.pendingCalls, pendingCall{pc: pc, name: call.Callee.Lexeme})
	}
	return nil
}

func binaryOpcodeFor(t token.TokenType) Opcode {
	switch t {
	case token.ADD:
		return OpBinOpAdd
	case token.SUB:
		return OpBinOpSub
	case token.MULT:
		return OpBinOpMul
	case token.DIV:
		return OpBinOpDiv
	case token.LARGER:
		return OpBinOpGt
	case token.LARGER_EQUAL:
		return OpBinOpGe
	case token.LESS:
		return OpBinOpLt
	case token.LESS_EQUAL:
		return OpBinOpLe
	case token.EQUAL_EQUAL:
		return OpBinOpEq
	case token.NOT_EQUAL:
		return OpBinOpNe
	}
	panic(DeveloperError{Message: fmt.Sprintf("unknown binary operator token '%s'", t)})
}
