// expressions.go contains all the expression AST nodes. An expression node always evaluates to a value.

package ast

import (
	"nilan/token"
)

// Binary represents a binary operation expression (e.g., "a + b").
// It consists of a left-hand side expression, an operator token (e.g., +, -, *, /),
// and a right-hand side expression.
type Binary struct {
	Left     Expression  // The left-hand expression (e.g., "a" in "a + b")
	Operator token.Token // The operator (e.g., "+")
	Right    Expression  // The right-hand expression (e.g., "b" in "a + b")
}

func (binary Binary) Accept(v ExpressionVisitor) any {
	return v.VisitBinary(binary)
}

// Logical represents a short-circuit-free logical operation ("a or b", "a and b").
// Both operands are always evaluated; the VM's `Or`/`And` opcodes are not
// short-circuiting.
type Logical struct {
	Left     Expression
	Operator token.Token
	Right    Expression
}

func (logical Logical) Accept(v ExpressionVisitor) any {
	return v.VisitLogicalExpression(logical)
}

// Unary represents a unary operation expression (e.g., "!a" or "-b").
// It consists of an operator token and a single right-hand expression.
type Unary struct {
	Operator token.Token // The operator (e.g., "!" or "-")
	Right    Expression  // The expression the operator is applied to (e.g., "a" or "b")
}

func (unary Unary) Accept(v ExpressionVisitor) any {
	return v.VisitUnary(unary)
}

// Literal represents a literal integer value in the source code.
type Literal struct {
	Value any // The literal value, always an int64 for this language
}

func (literal Literal) Accept(v ExpressionVisitor) any {
	return v.VisitLiteral(literal)
}

// Grouping represents a parenthesized expression (e.g., "(a + b)").
// Useful for controlling evaluation precedence.
type Grouping struct {
	Expression Expression // The inner expression inside the parentheses
}

func (grouping Grouping) Accept(v ExpressionVisitor) any {
	return v.VisitGrouping(grouping)
}

// Variable represents a variable expression in the abstract syntax tree (AST).
// It models the retrieval of a value previously bound to a variable name.
type Variable struct {
	Name token.Token // An IDENTIFIER token
}

func (variable Variable) Accept(v ExpressionVisitor) any {
	return v.VisitVariableExpression(variable)
}

// Assign represents an assignment expression in the abstract syntax tree (AST).
// It models the operation of assigning a new value to an existing variable.
type Assign struct {
	Name  token.Token
	Value Expression
}

func (assign Assign) Accept(v ExpressionVisitor) any {
	return v.VisitAssignExpression(assign)
}

// Call represents a function call expression, including the built-in
// `print` and `getint` forms which the compiler and interpreter treat
// specially by callee name.
type Call struct {
	Callee token.Token  // IDENTIFIER token naming the function being called
	Args   []Expression // Arguments in source order
}

func (call Call) Accept(v ExpressionVisitor) any {
	return v.VisitCallExpression(call)
}
