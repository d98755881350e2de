// Recursive descent parser
// https://en.wikipedia.org/wiki/Recursive_descent_parser

//	A Recursive descent parser is a top-down parser because it starts from the top
//
// grammar rule and works its way down in to the nested sub-expressions before reaching
// the leaves of the syntax tree (terminal rules)
package parser

import (
	"fmt"
	"nilan/ast"
	"nilan/token"
)

var comparisonTokenTypes = []token.TokenType{
	token.LARGER,
	token.LARGER_EQUAL,
	token.LESS,
	token.LESS_EQUAL,
}

var equalityTokenTypes = []token.TokenType{
	token.NOT_EQUAL,
	token.EQUAL_EQUAL,
}

var termTokenTypes = []token.TokenType{
	token.SUB,
	token.ADD,
}

var factorExpressionTypes = []token.TokenType{
	token.MULT,
	token.DIV,
}

var unaryExpressionTypes = []token.TokenType{
	token.BANG,
	token.SUB,
}

type Parser struct {
	tokens   []token.Token
	position int
}

// NOTE: The parsers position is always one unit ahead of the
// current token

// Make initializes and returns a new Parser instance over the given tokens.
func Make(tokens []token.Token) *Parser {
	return &Parser{
		tokens:   tokens,
		position: 0,
	}
}

// Print prints the AST as prettified JSON to standard output.
func (parser *Parser) Print(unit ast.CompilationUnit) {
	_, err := PrintUnitJSON(unit)
	if err != nil {
		fmt.Println("error producing AST JSON:", err)
	}
}

// PrintToFile writes the AST for the provided compilation unit to a .json file at the given path.
func (parser *Parser) PrintToFile(unit ast.CompilationUnit, path string) error {
	return WriteUnitJSONToFile(unit, path)
}

// peek returns the token at the parser's current position,
// without advancing the parser's position.
func (parser *Parser) peek() token.Token {
	return parser.tokens[parser.position]
}

// previous retrieves the token at the parser's previous position
// (position - 1).
func (parser *Parser) previous() token.Token {
	return parser.tokens[parser.position-1]
}

// advance increments the parser's position by one unit and
// consumes the current token, returning it.
func (parser *Parser) advance() token.Token {
	if !parser.isFinished() {
		parser.position++
	}
	return parser.previous()
}

// isFinished determines if the parser has finished scanning all the tokens.
func (parser *Parser) isFinished() bool {
	tok := parser.peek()
	return tok.TokenType == token.EOF
}

// checkType determines if the provided tokenType matches the TokenType
// at the parser's current position.
func (parser *Parser) checkType(tokeType token.TokenType) bool {
	if parser.isFinished() {
		return false
	}
	tok := parser.peek()
	return tok.TokenType == tokeType
}

// isMatch determines if the TokenType at the current position matches any
// of the provided tokenTypes. If a match is found the parser advances.
func (parser *Parser) isMatch(tokenTypes []token.TokenType) bool {
	for i := range tokenTypes {
		tokenType := tokenTypes[i]
		if parser.checkType(tokenType) {
			parser.advance()
			return true
		}
	}
	return false
}

// ParseUnit parses the entire token stream into a CompilationUnit: global
// declarations and function definitions, in source order. Errors during
// parsing are collected but parsing continues to find additional errors
// where possible.
func (parser *Parser) ParseUnit() (ast.CompilationUnit, []error) {
	unit := ast.CompilationUnit{}
	errors := []error{}

	for !parser.isFinished() {
		if parser.isMatch([]token.TokenType{token.FUNC}) {
			fn, err := parser.functionDeclaration()
			if err != nil {
				errors = append(errors, err)
				parser.synchronize()
				continue
			}
			unit.Functions = append(unit.Functions, fn)
			continue
		}

		global, err := parser.globalDeclaration()
		if err != nil {
			errors = append(errors, err)
			parser.synchronize()
			continue
		}
		unit.Globals = append(unit.Globals, global)
	}

	return unit, errors
}

// synchronize discards tokens until a likely statement/declaration boundary
// so that parsing can continue after an error and surface further errors.
func (parser *Parser) synchronize() {
	for !parser.isFinished() {
		if parser.previous().TokenType == token.SEMICOLON {
			return
		}
		switch parser.peek().TokenType {
		case token.FUNC, token.VAR, token.VAL:
			return
		}
		parser.advance()
	}
}

// functionDeclaration parses a top-level function definition:
// `fn name(param: type, ...) -> type { body }`. The arrow and return type
// are optional.
func (parser *Parser) functionDeclaration() (ast.FunctionDecl, error) {
	name, err := parser.consume(token.IDENTIFIER, "expected function name")
	if err != nil {
		return ast.FunctionDecl{}, err
	}

	if _, err := parser.consume(token.LPA, "expected '(' after function name"); err != nil {
		return ast.FunctionDecl{}, err
	}

	var params []ast.Param
	if !parser.checkType(token.RPA) {
		for {
			paramName, err := parser.consume(token.IDENTIFIER, "expected parameter name")
			if err != nil {
				return ast.FunctionDecl{}, err
			}
			if _, err := parser.consume(token.COLON, "expected ':' after parameter name"); err != nil {
				return ast.FunctionDecl{}, err
			}
			paramType, err := parser.consume(token.I32, "expected parameter type")
			if err != nil {
				return ast.FunctionDecl{}, err
			}
			params = append(params, ast.Param{Name: paramName, Type: paramType})
			if !parser.isMatch([]token.TokenType{token.COMMA}) {
				break
			}
		}
	}

	if _, err := parser.consume(token.RPA, "expected ')' after parameter list"); err != nil {
		return ast.FunctionDecl{}, err
	}

	var returnType *token.Token
	if parser.isMatch([]token.TokenType{token.ARROW}) {
		rt, err := parser.consume(token.I32, "expected return type after '->'")
		if err != nil {
			return ast.FunctionDecl{}, err
		}
		returnType = &rt
	}

	if _, err := parser.consume(token.LCUR, "expected '{' before function body"); err != nil {
		return ast.FunctionDecl{}, err
	}
	statements, err := parser.block()
	if err != nil {
		return ast.FunctionDecl{}, err
	}

	return ast.FunctionDecl{
		Name:       name,
		Params:     params,
		ReturnType: returnType,
		Body:       ast.BlockStmt{Statements: statements},
	}, nil
}

// globalDeclaration parses a top-level `var`/`val` declaration.
func (parser *Parser) globalDeclaration() (ast.Stmt, error) {
	if parser.isMatch([]token.TokenType{token.VAR, token.VAL}) {
		return parser.variableDeclaration()
	}
	currentToken := parser.peek()
	return nil, CreateSyntaxError(currentToken.Line, currentToken.Column, "expected 'fn', 'var' or 'val' at top level")
}

// variableDeclaration parses a variable or value declaration statement:
// `var name: i32 = expr;` or `val name: i32 = expr;`.
func (parser *Parser) variableDeclaration() (ast.Stmt, error) {
	isConst := parser.previous().TokenType == token.VAL

	name, err := parser.consume(token.IDENTIFIER, "expected variable name")
	if err != nil {
		return nil, err
	}

	if _, err := parser.consume(token.COLON, "expected ':' after variable name"); err != nil {
		return nil, err
	}
	typeTok, err := parser.consume(token.I32, "expected type after ':'")
	if err != nil {
		return nil, err
	}

	var initialiser ast.Expression
	if parser.isMatch([]token.TokenType{token.ASSIGN}) {
		initialiser, err = parser.expression()
		if err != nil {
			return nil, err
		}
	}

	if _, err := parser.consume(token.SEMICOLON, "expected ';' after variable declaration"); err != nil {
		return nil, err
	}

	return ast.VarStmt{
		Name:        name,
		Type:        typeTok,
		IsConst:     isConst,
		Initializer: initialiser,
	}, nil
}

// declaration parses a local declaration or statement inside a function body.
func (parser *Parser) declaration() (ast.Stmt, error) {
	if parser.isMatch([]token.TokenType{token.VAR, token.VAL}) {
		return parser.variableDeclaration()
	}
	return parser.statement()
}

// statement parses a single statement: a block, conditional, loop,
// return/break/continue, or an expression statement.
func (parser *Parser) statement() (ast.Stmt, error) {
	if parser.isMatch([]token.TokenType{token.LCUR}) {
		statements, err := parser.block()
		if err != nil {
			return nil, err
		}
		return ast.BlockStmt{Statements: statements}, nil
	}

	if parser.isMatch([]token.TokenType{token.IF}) {
		return parser.ifStatement()
	}

	if parser.isMatch([]token.TokenType{token.WHILE}) {
		return parser.whileStatement()
	}

	if parser.isMatch([]token.TokenType{token.RETURN}) {
		return parser.returnStatement()
	}

	if parser.isMatch([]token.TokenType{token.BREAK}) {
		keyword := parser.previous()
		if _, err := parser.consume(token.SEMICOLON, "expected ';' after 'break'"); err != nil {
			return nil, err
		}
		return ast.BreakStmt{Keyword: keyword}, nil
	}

	if parser.isMatch([]token.TokenType{token.CONTINUE}) {
		keyword := parser.previous()
		if _, err := parser.consume(token.SEMICOLON, "expected ';' after 'continue'"); err != nil {
			return nil, err
		}
		return ast.ContinueStmt{Keyword: keyword}, nil
	}

	return parser.expressionStatement()
}

// returnStatement parses `return;` or `return expr;`.
func (parser *Parser) returnStatement() (ast.Stmt, error) {
	keyword := parser.previous()
	var value ast.Expression
	if !parser.checkType(token.SEMICOLON) {
		var err error
		value, err = parser.expression()
		if err != nil {
			return nil, err
		}
	}
	if _, err := parser.consume(token.SEMICOLON, "expected ';' after return statement"); err != nil {
		return nil, err
	}
	return ast.ReturnStmt{Keyword: keyword, Value: value}, nil
}

// whileStatement parses a while loop statement from the token stream.
func (parser *Parser) whileStatement() (ast.Stmt, error) {
	if _, err := parser.consume(token.LPA, "expected '(' after 'while'"); err != nil {
		return nil, err
	}
	expr, err := parser.expression()
	if err != nil {
		return nil, err
	}
	if _, err := parser.consume(token.RPA, "expected ')' after while condition"); err != nil {
		return nil, err
	}

	body, err := parser.statement()
	if err != nil {
		return nil, err
	}

	return ast.WhileStmt{
		Condition: expr,
		Body:      body,
	}, nil
}

// ifStatement parses an if-statement from the token stream, optionally
// followed by an else branch.
func (parser *Parser) ifStatement() (ast.Stmt, error) {
	if _, err := parser.consume(token.LPA, "expected '(' after 'if'"); err != nil {
		return nil, err
	}
	conditionExpr, err := parser.expression()
	if err != nil {
		return nil, err
	}
	if _, err := parser.consume(token.RPA, "expected ')' after if condition"); err != nil {
		return nil, err
	}

	thenStmt, err := parser.statement()
	if err != nil {
		return nil, err
	}
	var elseStmt ast.Stmt
	if parser.isMatch([]token.TokenType{token.ELSE}) {
		stmt, err := parser.statement()
		if err != nil {
			return nil, err
		}
		elseStmt = stmt
	}

	return ast.IfStmt{
		Condition: conditionExpr,
		Then:      thenStmt,
		Else:      elseStmt,
	}, nil
}

// expressionStatement parses a statement consisting of a single expression
// followed by a terminating semicolon.
func (parser *Parser) expressionStatement() (ast.Stmt, error) {
	expression, err := parser.expression()
	if err != nil {
		return nil, err
	}
	if _, err := parser.consume(token.SEMICOLON, "expected ';' after expression"); err != nil {
		return nil, err
	}
	return ast.ExpressionStmt{Expression: expression}, nil
}

// block parses a block statement consisting of a list of
// declaration/statement AST nodes.
func (parser *Parser) block() ([]ast.Stmt, error) {
	statements := []ast.Stmt{}

	for !parser.checkType(token.RCUR) && !parser.isFinished() {
		stmt, err := parser.declaration()
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
	}

	if _, err := parser.consume(token.RCUR, "expected '}' after block"); err != nil {
		return nil, err
	}
	return statements, nil
}

// expression is the entry point for parsing expressions. It begins at
// the assignment rule, which encompasses all lower-precedence rules.
func (parser *Parser) expression() (ast.Expression, error) {
	return parser.assignment()
}

// assignment parses an assignment expression from the token stream.
//
// Example:
// Input:  x = 10
// AST:    Assign{Name: x, Value: Literal(10)}
func (parser *Parser) assignment() (ast.Expression, error) {
	expression, err := parser.or()
	if err != nil {
		return nil, err
	}
	if parser.isMatch([]token.TokenType{token.ASSIGN}) {
		equalsToken := parser.previous()
		value, err := parser.assignment()
		if err != nil {
			return nil, err
		}
		switch v := expression.(type) {
		case ast.Variable:
			return ast.Assign{Name: v.Name, Value: value}, nil
		default:
			msg := "Invalid assignment"
			return nil, CreateSyntaxError(equalsToken.Line, equalsToken.Column, msg)
		}
	}

	return expression, nil
}

// or parses a logical OR expression, left-associative.
func (parser *Parser) or() (ast.Expression, error) {
	expr, err := parser.and()
	if err != nil {
		return nil, err
	}

	for parser.isMatch([]token.TokenType{token.OR}) {
		op := parser.previous()
		rightExpr, err := parser.and()
		if err != nil {
			return nil, err
		}
		expr = ast.Logical{Left: expr, Operator: op, Right: rightExpr}
	}

	return expr, nil
}

// and parses a logical AND expression, left-associative.
func (parser *Parser) and() (ast.Expression, error) {
	expr, err := parser.equality()
	if err != nil {
		return nil, err
	}

	for parser.isMatch([]token.TokenType{token.AND}) {
		op := parser.previous()
		rightExpr, err := parser.equality()
		if err != nil {
			return nil, err
		}
		expr = ast.Logical{Left: expr, Operator: op, Right: rightExpr}
	}
	return expr, nil
}

// equality parses equality expressions using operators "==" and "!=".
func (parser *Parser) equality() (ast.Expression, error) {
	exp, err := parser.comparison()
	if err != nil {
		return nil, err
	}
	for parser.isMatch(equalityTokenTypes) {
		operator := parser.previous()
		right, err := parser.comparison()
		if err != nil {
			return nil, err
		}
		exp = ast.Binary{Left: exp, Operator: operator, Right: right}
	}
	return exp, nil
}

// comparison parses comparison expressions using operators "<", "<=", ">", ">=".
func (parser *Parser) comparison() (ast.Expression, error) {
	exp, err := parser.term()
	if err != nil {
		return nil, err
	}
	for parser.isMatch(comparisonTokenTypes) {
		operator := parser.previous()
		right, err := parser.term()
		if err != nil {
			return nil, err
		}
		exp = ast.Binary{Left: exp, Operator: operator, Right: right}
	}
	return exp, nil
}

// term parses addition and subtraction expressions using operators "+" and "-".
func (parser *Parser) term() (ast.Expression, error) {
	exp, err := parser.factor()
	if err != nil {
		return nil, err
	}
	for parser.isMatch(termTokenTypes) {
		operator := parser.previous()
		right, err := parser.factor()
		if err != nil {
			return nil, err
		}
		exp = ast.Binary{Left: exp, Operator: operator, Right: right}
	}
	return exp, nil
}

// factor parses multiplication and division expressions using operators "*" and "/".
func (parser *Parser) factor() (ast.Expression, error) {
	exp, err := parser.unary()
	if err != nil {
		return nil, err
	}
	for parser.isMatch(factorExpressionTypes) {
		operator := parser.previous()
		right, err := parser.unary()
		if err != nil {
			return nil, err
		}
		exp = ast.Binary{Left: exp, Operator: operator, Right: right}
	}
	return exp, nil
}

// unary parses unary prefix expressions using operators "!" or "-".
// Examples: "!x", "-x".
func (parser *Parser) unary() (ast.Expression, error) {
	if parser.isMatch(unaryExpressionTypes) {
		operator := parser.previous()
		right, err := parser.unary()
		if err != nil {
			return nil, err
		}
		return ast.Unary{Operator: operator, Right: right}, nil
	}
	return parser.call()
}

// call parses a primary expression followed by an optional call argument
// list: `name(arg1, arg2, ...)`.
func (parser *Parser) call() (ast.Expression, error) {
	if parser.checkType(token.IDENTIFIER) && parser.peekNextIsLPA() {
		callee := parser.advance()
		parser.advance() // consume '('

		var args []ast.Expression
		if !parser.checkType(token.RPA) {
			for {
				arg, err := parser.expression()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if !parser.isMatch([]token.TokenType{token.COMMA}) {
					break
				}
			}
		}
		if _, err := parser.consume(token.RPA, "expected ')' after call arguments"); err != nil {
			return nil, err
		}
		return ast.Call{Callee: callee, Args: args}, nil
	}
	return parser.primary()
}

// peekNextIsLPA reports whether the token following the current one is '('.
func (parser *Parser) peekNextIsLPA() bool {
	next := parser.position + 1
	if next >= len(parser.tokens) {
		return false
	}
	return parser.tokens[next].TokenType == token.LPA
}

// primary parses the most basic forms of expressions:
//   - Literals: true, false, integer
//   - Variables and calls
//   - Grouping: (expression)
func (parser *Parser) primary() (ast.Expression, error) {
	if parser.isMatch([]token.TokenType{token.FALSE}) {
		return ast.Literal{Value: int64(0)}, nil
	}
	if parser.isMatch([]token.TokenType{token.TRUE}) {
		return ast.Literal{Value: int64(1)}, nil
	}

	if parser.isMatch([]token.TokenType{token.INT}) {
		return ast.Literal{Value: parser.previous().Literal}, nil
	}

	if parser.isMatch([]token.TokenType{token.IDENTIFIER}) {
		return ast.Variable{Name: parser.previous()}, nil
	}

	if parser.isMatch([]token.TokenType{token.LPA}) {
		expr, err := parser.expression()
		if err != nil {
			return nil, err
		}
		if _, err := parser.consume(token.RPA, fmt.Sprintf("expression is missing '%s'", token.RPA)); err != nil {
			return nil, err
		}
		return ast.Grouping{Expression: expr}, nil
	}

	currentToken := parser.peek()
	return nil, CreateSyntaxError(currentToken.Line, currentToken.Column, "Unrecognised expression.")
}

// consume advances past the current token if its type matches tokenType,
// otherwise returns a SyntaxError.
func (parser *Parser) consume(tokenType token.TokenType, errorMessage string) (token.Token, error) {
	if parser.checkType(tokenType) {
		return parser.advance(), nil
	}
	currentToken := parser.peek()
	return token.CreateToken(token.EOF, 0, 0), CreateSyntaxError(currentToken.Line, currentToken.Column, errorMessage)
}
