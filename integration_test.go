package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"nilan/compiler"
	"nilan/interpreter"
	"nilan/lexer"
	"nilan/parser"
	"nilan/vm"
)

// runViaVM lexes, parses, compiles, and executes source through the
// bytecode compiler and stack VM, returning whatever it printed.
func runViaVM(t *testing.T, source, stdin string) (string, error) {
	t.Helper()
	tokens, err := lexer.New(source).Scan()
	if err != nil {
		t.Fatalf("lexing failed: %v", err)
	}
	unit, errs := parser.Make(tokens).ParseUnit()
	if len(errs) > 0 {
		t.Fatalf("parsing failed: %v", errs)
	}
	code, err := compiler.NewASTCompiler().Compile(unit)
	if err != nil {
		return "", err
	}
	var out bytes.Buffer
	machine := vm.New()
	machine.Out = &out
	machine.In = strings.NewReader(stdin)
	err = machine.Run(code)
	return out.String(), err
}

// runViaInterpreter lexes, parses, and tree-walk-interprets source,
// returning whatever it printed.
func runViaInterpreter(t *testing.T, source, stdin string) (string, error) {
	t.Helper()
	tokens, err := lexer.New(source).Scan()
	if err != nil {
		t.Fatalf("lexing failed: %v", err)
	}
	unit, errs := parser.Make(tokens).ParseUnit()
	if len(errs) > 0 {
		t.Fatalf("parsing failed: %v", errs)
	}
	var out bytes.Buffer
	interp := interpreter.Make()
	interp.Out = &out
	interp.In = strings.NewReader(stdin)
	err = interp.Interpret(unit)
	return out.String(), err
}

const globalAddSource = `
var a: i32 = 1 + 2;
fn main() {
	print(a);
}
`

func TestGlobalArithmeticVM(t *testing.T) {
	out, err := runViaVM(t, globalAddSource, "")
	assert.NoError(t, err)
	assert.Equal(t, "3\n", out)
}

func TestGlobalArithmeticInterpreter(t *testing.T) {
	out, err := runViaInterpreter(t, globalAddSource, "")
	assert.NoError(t, err)
	assert.Equal(t, "3\n", out)
}

const factorialSource = `
fn fact(n: i32) -> i32 {
	if (n <= 1) {
		return 1;
	}
	return n * fact(n - 1);
}

fn main() {
	print(fact(5));
}
`

func TestFactorialVM(t *testing.T) {
	out, err := runViaVM(t, factorialSource, "")
	assert.NoError(t, err)
	assert.Equal(t, "120\n", out)
}

func TestFactorialInterpreter(t *testing.T) {
	out, err := runViaInterpreter(t, factorialSource, "")
	assert.NoError(t, err)
	assert.Equal(t, "120\n", out)
}

const fibonacciSource = `
fn fib(n: i32) -> i32 {
	if (n < 2) {
		return n;
	}
	return fib(n - 1) + fib(n - 2);
}

fn main() {
	print(fib(10));
}
`

func TestFibonacciVM(t *testing.T) {
	out, err := runViaVM(t, fibonacciSource, "")
	assert.NoError(t, err)
	assert.Equal(t, "55\n", out)
}

func TestFibonacciInterpreter(t *testing.T) {
	out, err := runViaInterpreter(t, fibonacciSource, "")
	assert.NoError(t, err)
	assert.Equal(t, "55\n", out)
}

const whileSumSource = `
fn main() {
	var sum: i32 = 0;
	var i: i32 = 0;
	while (i < 10) {
		sum = sum + i;
		i = i + 1;
	}
	print(sum);
}
`

func TestWhileSumVM(t *testing.T) {
	out, err := runViaVM(t, whileSumSource, "")
	assert.NoError(t, err)
	assert.Equal(t, "45\n", out)
}

func TestWhileSumInterpreter(t *testing.T) {
	out, err := runViaInterpreter(t, whileSumSource, "")
	assert.NoError(t, err)
	assert.Equal(t, "45\n", out)
}

const breakContinueSource = `
fn main() {
	var sum: i32 = 0;
	var i: i32 = 0;
	while (i < 10) {
		i = i + 1;
		if (i == 5) {
			continue;
		}
		if (i == 8) {
			break;
		}
		sum = sum + i;
	}
	print(sum);
}
`

func TestBreakContinueVM(t *testing.T) {
	// 1+2+3+4 (skip 5) +6+7 = 23, then break at i==8
	out, err := runViaVM(t, breakContinueSource, "")
	assert.NoError(t, err)
	assert.Equal(t, "23\n", out)
}

func TestBreakContinueInterpreter(t *testing.T) {
	out, err := runViaInterpreter(t, breakContinueSource, "")
	assert.NoError(t, err)
	assert.Equal(t, "23\n", out)
}

const getintSource = `
fn main() {
	var x: i32 = getint();
	print(x + 1);
}
`

func TestGetIntVM(t *testing.T) {
	out, err := runViaVM(t, getintSource, "41\n")
	assert.NoError(t, err)
	assert.Equal(t, "42\n", out)
}

func TestGetIntInterpreter(t *testing.T) {
	out, err := runViaInterpreter(t, getintSource, "41\n")
	assert.NoError(t, err)
	assert.Equal(t, "42\n", out)
}

const nestedScopeSource = `
fn main() {
	var a: i32 = 1;
	{
		var b: i32 = 2;
		{
			var c: i32 = 3;
			print(a + b + c);
		}
	}
	print(a);
}
`

func TestNestedScopesVM(t *testing.T) {
	out, err := runViaVM(t, nestedScopeSource, "")
	assert.NoError(t, err)
	assert.Equal(t, "6\n1\n", out)
}

func TestNestedScopesInterpreter(t *testing.T) {
	out, err := runViaInterpreter(t, nestedScopeSource, "")
	assert.NoError(t, err)
	assert.Equal(t, "6\n1\n", out)
}

const mutualRecursionSource = `
fn isEven(n: i32) -> i32 {
	if (n == 0) {
		return 1;
	}
	return isOdd(n - 1);
}

fn isOdd(n: i32) -> i32 {
	if (n == 0) {
		return 0;
	}
	return isEven(n - 1);
}

fn main() {
	print(isEven(10));
}
`

func TestMutualRecursionVM(t *testing.T) {
	out, err := runViaVM(t, mutualRecursionSource, "")
	assert.NoError(t, err)
	assert.Equal(t, "1\n", out)
}

func TestMutualRecursionInterpreter(t *testing.T) {
	out, err := runViaInterpreter(t, mutualRecursionSource, "")
	assert.NoError(t, err)
	assert.Equal(t, "1\n", out)
}

func TestUndefinedFunctionIsCompileError(t *testing.T) {
	source := `
fn main() {
	print(doesNotExist());
}
`
	_, err := runViaVM(t, source, "")
	assert.Error(t, err)
}

func TestClassPathForReplacesExtension(t *testing.T) {
	assert.Equal(t, "prog.class", classPathFor("prog.cil"))
	assert.Equal(t, "dir/prog.class", classPathFor("dir/prog.cil"))
	assert.Equal(t, "noext.class", classPathFor("noext"))
}
