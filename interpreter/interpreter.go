package interpreter

import (
	"bufio"
	"fmt"
	"io"
	"nilan/ast"
	"nilan/token"
	"os"
	"strconv"
	"strings"
)

// returnSignal unwinds the Go call stack up to the enclosing function call
// when a `return` statement executes, carrying its value (0 for a bare
// `return;`).
type returnSignal struct {
	value int64
}

// breakSignal unwinds up to the enclosing while loop on `break`.
type breakSignal struct{}

// continueSignal unwinds up to the enclosing while loop on `continue`.
type continueSignal struct{}

// TreeWalkInterpreter executes a parsed compilation unit directly against a
// lexically-scoped environment, without compiling to bytecode.
type TreeWalkInterpreter struct {
	globals   *Environment
	env       *Environment
	functions map[string]ast.FunctionDecl

	In  io.Reader
	Out io.Writer

	inReader *bufio.Reader
}

// Make creates a TreeWalkInterpreter reading getint() input from stdin and
// writing print() output to stdout.
func Make() *TreeWalkInterpreter {
	globals := MakeEnvironment()
	return &TreeWalkInterpreter{
		globals:   globals,
		env:       globals,
		functions: make(map[string]ast.FunctionDecl),
		In:        os.Stdin,
		Out:       os.Stdout,
	}
}

// Interpret executes a compilation unit: global declarations first, in
// source order, then a call into `main`. It recovers from panics raised by
// runtime errors and returns them as the error result instead of crashing.
func (i *TreeWalkInterpreter) Interpret(unit ast.CompilationUnit) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("%v", r)
		}
	}()

	for _, fn := range unit.Functions {
		if _, exists := i.functions[fn.Name.Lexeme]; exists {
			msg := fmt.Sprintf("duplicate function definition: %s", fn.Name.Lexeme)
			panic(CreateRuntimeError(fn.Name.Line, fn.Name.Column, msg))
		}
		i.functions[fn.Name.Lexeme] = fn
	}

	for _, global := range unit.Globals {
		i.executeStmt(global)
	}

	main, ok := i.functions["main"]
	if !ok {
		panic(CreateRuntimeError(0, 0, "no 'main' function defined"))
	}
	i.callFunction(main, nil, token.Token{})
	return nil
}

// executeStmt executes the given AST node statement by invoking its Accept
// method, which calls the appropriate Visit method of the interpreter.
func (i *TreeWalkInterpreter) executeStmt(stmt ast.Stmt) {
	stmt.Accept(i)
}

// VisitBlockStmt executes all statements in the given ast.BlockStmt within a
// new nested environment, scoped as a child of the current environment.
func (i *TreeWalkInterpreter) VisitBlockStmt(blockStmt ast.BlockStmt) any {
	previous := i.env
	i.env = MakeNestedEnvironment(i.env)
	defer func() { i.env = previous }()

	for _, s := range blockStmt.Statements {
		i.executeStmt(s)
	}
	return nil
}

// VisitExpressionStmt evaluates the expression but discards its value.
func (i *TreeWalkInterpreter) VisitExpressionStmt(exprStatement ast.ExpressionStmt) any {
	i.evaluate(exprStatement.Expression)
	return nil
}

// VisitIfStmt evaluates the condition and executes the matching branch.
func (i *TreeWalkInterpreter) VisitIfStmt(stmt ast.IfStmt) any {
	if i.evaluate(stmt.Condition) != 0 {
		i.executeStmt(stmt.Then)
	} else if stmt.Else != nil {
		i.executeStmt(stmt.Else)
	}
	return nil
}

// VisitWhileStmt repeatedly executes Body while Condition is nonzero,
// catching break/continue signals raised from within the loop body.
func (i *TreeWalkInterpreter) VisitWhileStmt(stmt ast.WhileStmt) any {
	for i.evaluate(stmt.Condition) != 0 {
		if stop := i.runLoopBody(stmt.Body); stop {
			break
		}
	}
	return nil
}

// runLoopBody executes one iteration of a loop body, catching break and
// continue signals. Returns true if the loop should stop entirely.
func (i *TreeWalkInterpreter) runLoopBody(body ast.Stmt) (stop bool) {
	defer func() {
		if r := recover(); r != nil {
			switch r.(type) {
			case breakSignal:
				stop = true
			case continueSignal:
				stop = false
			default:
				panic(r)
			}
		}
	}()
	i.executeStmt(body)
	return false
}

// VisitReturnStmt evaluates the optional return value and raises a
// returnSignal panic, caught by callFunction.
func (i *TreeWalkInterpreter) VisitReturnStmt(stmt ast.ReturnStmt) any {
	var value int64
	if stmt.Value != nil {
		value = i.evaluate(stmt.Value)
	}
	panic(returnSignal{value: value})
}

// VisitBreakStmt raises a breakSignal panic, caught by the enclosing loop.
func (i *TreeWalkInterpreter) VisitBreakStmt(stmt ast.BreakStmt) any {
	panic(breakSignal{})
}

// VisitContinueStmt raises a continueSignal panic, caught by the enclosing loop.
func (i *TreeWalkInterpreter) VisitContinueStmt(stmt ast.ContinueStmt) any {
	panic(continueSignal{})
}

// VisitFunctionDecl is a no-op at execution time; function definitions are
// registered up front by Interpret.
func (i *TreeWalkInterpreter) VisitFunctionDecl(decl ast.FunctionDecl) any {
	return nil
}

// VisitVarStmt evaluates the initialiser (defaulting to 0) and binds the
// name in the current environment.
func (i *TreeWalkInterpreter) VisitVarStmt(varStmt ast.VarStmt) any {
	var value int64
	if varStmt.Initializer != nil {
		value = i.evaluate(varStmt.Initializer)
	}
	i.env.set(varStmt.Name.Lexeme, value)
	return nil
}

// VisitAssignExpression evaluates the right-hand side and assigns it to the
// named variable, wherever in the environment chain it is declared.
func (i *TreeWalkInterpreter) VisitAssignExpression(assign ast.Assign) any {
	value := i.evaluate(assign.Value)
	if err := i.env.assign(assign.Name, value); err != nil {
		panic(err)
	}
	return value
}

// VisitLogicalExpression evaluates both operands (no short-circuiting, to
// match the VM's eager Or/And opcodes) and applies nonzero-truthiness logic.
func (i *TreeWalkInterpreter) VisitLogicalExpression(logical ast.Logical) any {
	left := i.evaluate(logical.Left)
	right := i.evaluate(logical.Right)
	switch logical.Operator.TokenType {
	case token.OR:
		if left != 0 || right != 0 {
			return int64(1)
		}
		return int64(0)
	case token.AND:
		if left != 0 && right != 0 {
			return int64(1)
		}
		return int64(0)
	default:
		msg := fmt.Sprintf("operator '%s' not supported", logical.Operator.TokenType)
		panic(CreateRuntimeError(logical.Operator.Line, logical.Operator.Column, msg))
	}
}

// VisitBinary evaluates a binary expression node over i32 operands.
func (i *TreeWalkInterpreter) VisitBinary(binary ast.Binary) any {
	left := i.evaluate(binary.Left)
	right := i.evaluate(binary.Right)
	operator := binary.Operator.TokenType

	boolToInt := func(b bool) int64 {
		if b {
			return 1
		}
		return 0
	}

	switch operator {
	case token.MULT:
		return left * right
	case token.DIV:
		if right == 0 {
			panic(CreateRuntimeError(binary.Operator.Line, binary.Operator.Column, "division by zero"))
		}
		return left / right
	case token.SUB:
		return left - right
	case token.ADD:
		return left + right
	case token.EQUAL_EQUAL:
		return boolToInt(left == right)
	case token.NOT_EQUAL:
		return boolToInt(left != right)
	case token.LARGER:
		return boolToInt(left > right)
	case token.LARGER_EQUAL:
		return boolToInt(left >= right)
	case token.LESS:
		return boolToInt(left < right)
	case token.LESS_EQUAL:
		return boolToInt(left <= right)
	default:
		msg := fmt.Sprintf("operator '%s' not supported", operator)
		panic(CreateRuntimeError(binary.Operator.Line, binary.Operator.Column, msg))
	}
}

// VisitUnary evaluates a unary expression node: `-x` (two's-complement
// negation) or `!x` (bitwise complement, matching the VM's UniOpNot; see
// the design notes on why this is bitwise rather than logical).
func (i *TreeWalkInterpreter) VisitUnary(unary ast.Unary) any {
	right := i.evaluate(unary.Right)
	switch unary.Operator.TokenType {
	case token.SUB:
		return -right
	case token.BANG:
		return ^right
	default:
		msg := fmt.Sprintf("operator '%s' not supported for unary operations", unary.Operator.TokenType)
		panic(CreateRuntimeError(unary.Operator.Line, unary.Operator.Column, msg))
	}
}

// VisitVariableExpression retrieves the value bound to a variable name.
func (i *TreeWalkInterpreter) VisitVariableExpression(expression ast.Variable) any {
	value, err := i.env.get(expression.Name)
	if err != nil {
		panic(err)
	}
	return value
}

// VisitLiteral returns the value of a Literal node.
func (i *TreeWalkInterpreter) VisitLiteral(literal ast.Literal) any {
	return literal.Value.(int64)
}

// VisitGrouping evaluates a Grouping expression by evaluating its inner expression.
func (i *TreeWalkInterpreter) VisitGrouping(grouping ast.Grouping) any {
	return i.evaluate(grouping.Expression)
}

// VisitCallExpression dispatches `print`, `getint`, and user-defined calls.
func (i *TreeWalkInterpreter) VisitCallExpression(call ast.Call) any {
	switch call.Callee.Lexeme {
	case "print":
		for _, arg := range call.Args {
			fmt.Fprintln(i.Out, i.evaluate(arg))
		}
		return int64(0)
	case "getint":
		return i.readInt(call.Callee)
	default:
		fn, ok := i.functions[call.Callee.Lexeme]
		if !ok {
			msg := fmt.Sprintf("undefined function: %s", call.Callee.Lexeme)
			panic(CreateRuntimeError(call.Callee.Line, call.Callee.Column, msg))
		}
		if len(call.Args) != len(fn.Params) {
			msg := fmt.Sprintf("function %s expects %d argument(s), got %d", fn.Name.Lexeme, len(fn.Params), len(call.Args))
			panic(CreateRuntimeError(call.Callee.Line, call.Callee.Column, msg))
		}
		args := make([]int64, len(call.Args))
		for idx, arg := range call.Args {
			args[idx] = i.evaluate(arg)
		}
		return i.callFunction(fn, args, call.Callee)
	}
}

// callFunction runs a function body in a fresh environment rooted at
// globals (the language has no closures), binds arguments to parameters,
// and returns the value carried by its returnSignal, or 0 if it falls off
// the end of the body.
func (i *TreeWalkInterpreter) callFunction(fn ast.FunctionDecl, args []int64, site token.Token) (result int64) {
	previousEnv := i.env
	i.env = MakeNestedEnvironment(i.globals)
	defer func() { i.env = previousEnv }()

	for idx, param := range fn.Params {
		i.env.set(param.Name.Lexeme, args[idx])
	}

	defer func() {
		if r := recover(); r != nil {
			if sig, ok := r.(returnSignal); ok {
				result = sig.value
				return
			}
			panic(r)
		}
	}()

	for _, s := range fn.Body.Statements {
		i.executeStmt(s)
	}
	return 0
}

// readInt blocks on stdin for a line of input and parses it as a decimal
// integer, per the `getint` built-in's contract.
func (i *TreeWalkInterpreter) readInt(site token.Token) int64 {
	if i.inReader == nil {
		i.inReader = bufio.NewReader(i.In)
	}
	line, err := i.inReader.ReadString('\n')
	if err != nil && line == "" {
		panic(CreateRuntimeError(site.Line, site.Column, "malformed getint input: "+err.Error()))
	}
	value, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
	if err != nil {
		panic(CreateRuntimeError(site.Line, site.Column, "malformed getint input: "+err.Error()))
	}
	return value
}

// evaluate evaluates any expression node by invoking its Accept method
// with the Interpreter visitor.
func (i *TreeWalkInterpreter) evaluate(expression ast.Expression) int64 {
	return expression.Accept(i).(int64)
}
