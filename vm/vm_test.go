package vm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"nilan/compiler"
)

func run(t *testing.T, code compiler.Code, stdin string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	machine := New()
	machine.Out = &out
	machine.In = strings.NewReader(stdin)
	err := machine.Run(code)
	return out.String(), err
}

func TestVMArithmeticAndPrint(t *testing.T) {
	// print(2 + 3 * 4);
	code := compiler.Code{
		{Op: compiler.OpLoadConst, A: 2},
		{Op: compiler.OpLoadConst, A: 3},
		{Op: compiler.OpLoadConst, A: 4},
		{Op: compiler.OpBinOpMul},
		{Op: compiler.OpBinOpAdd},
		{Op: compiler.OpPrintItem},
		{Op: compiler.OpPrintNewline},
	}
	out, err := run(t, code, "")
	assert.NoError(t, err)
	assert.Equal(t, "14\n", out)
}

func TestVMDivisionByZero(t *testing.T) {
	code := compiler.Code{
		{Op: compiler.OpLoadConst, A: 1},
		{Op: compiler.OpLoadConst, A: 0},
		{Op: compiler.OpBinOpDiv},
	}
	_, err := run(t, code, "")
	assert.Error(t, err)
	assert.IsType(t, RuntimeError{}, err)
}

func TestVMGlobalsStoreAndLoad(t *testing.T) {
	code := compiler.Code{
		{Op: compiler.OpLoadConst, A: 99},
		{Op: compiler.OpStoreGlobal, A: 0},
		{Op: compiler.OpLoadGlobal, A: 0},
		{Op: compiler.OpPrintItem},
	}
	out, err := run(t, code, "")
	assert.NoError(t, err)
	assert.Equal(t, "99", out)
}

func TestVMUniOpNotIsBitwiseComplement(t *testing.T) {
	code := compiler.Code{
		{Op: compiler.OpLoadConst, A: 0},
		{Op: compiler.OpUniOpNot},
		{Op: compiler.OpPrintItem},
	}
	out, err := run(t, code, "")
	assert.NoError(t, err)
	assert.Equal(t, "-1", out)
}

func TestVMJmpTrueOnlyFiresOnExactlyOne(t *testing.T) {
	// JmpTrue only jumps when the popped value is == 1, not any nonzero value.
	code := compiler.Code{
		{Op: compiler.OpLoadConst, A: 2},
		{Op: compiler.OpJmpTrue, A: 4},
		{Op: compiler.OpLoadConst, A: 111},
		{Op: compiler.OpJmp, A: 5},
		{Op: compiler.OpLoadConst, A: 222},
		{Op: compiler.OpPrintItem},
	}
	out, err := run(t, code, "")
	assert.NoError(t, err)
	assert.Equal(t, "111", out)
}

func TestVMJmpFalseFiresOnAnyNonOne(t *testing.T) {
	code := compiler.Code{
		{Op: compiler.OpLoadConst, A: 2},
		{Op: compiler.OpJmpFalse, A: 4},
		{Op: compiler.OpLoadConst, A: 111},
		{Op: compiler.OpJmp, A: 5},
		{Op: compiler.OpLoadConst, A: 222},
		{Op: compiler.OpPrintItem},
	}
	out, err := run(t, code, "")
	assert.NoError(t, err)
	assert.Equal(t, "222", out)
}

// TestVMCallAndRetFrameDiscipline builds a one-argument function `inc` at
// pc 1: `return n + 1;`, called as `inc(41)`, matching the compiler's
// program layout (globals, guard jump, function bodies, trailing Call).
func TestVMCallAndRetFrameDiscipline(t *testing.T) {
	code := compiler.Code{
		// 0: guard jump over inc's body
		{Op: compiler.OpJmp, A: 6},
		// 1: inc(n): load n (frame depth 0, slot 0), add 1, return
		{Op: compiler.OpLoadVar, A: 0, B: 0},
		{Op: compiler.OpLoadConst, A: 1},
		{Op: compiler.OpBinOpAdd},
		{Op: compiler.OpRet},
		{Op: compiler.OpLoadConst, A: 0}, // unreachable fallthrough padding
		// 6: main: push 41, call inc, print result
		{Op: compiler.OpLoadConst, A: 41},
		{Op: compiler.OpCall, A: 1, B: 1},
		{Op: compiler.OpPrintItem},
	}
	out, err := run(t, code, "")
	assert.NoError(t, err)
	assert.Equal(t, "42", out)
}

func TestVMRetWithNoActiveCallFrameErrors(t *testing.T) {
	code := compiler.Code{{Op: compiler.OpRet}}
	_, err := run(t, code, "")
	assert.Error(t, err)
	assert.IsType(t, RuntimeError{}, err)
}

// TestVMEnterLeaveScopeUnwindsOnEarlyReturn exercises the unwind counter:
// a function opens one nested block (EnterScope) and returns from inside
// it without a matching LeaveScope; Ret must still pop that open frame.
func TestVMEnterLeaveScopeUnwindsOnEarlyReturn(t *testing.T) {
	code := compiler.Code{
		// 0: guard
		{Op: compiler.OpJmp, A: 6},
		// 1: fn(): EnterScope(1); store local 0 = 7; return 7 (no LeaveScope)
		{Op: compiler.OpEnterScope, A: 1},
		{Op: compiler.OpLoadConst, A: 7},
		{Op: compiler.OpStoreVar, A: 0, B: 0},
		{Op: compiler.OpLoadConst, A: 7},
		{Op: compiler.OpRet},
		// 6: main
		{Op: compiler.OpCall, A: 1, B: 0},
		{Op: compiler.OpPrintItem},
		// after the call returns, the VM must be left with exactly the
		// globals frame open: a second, unrelated call must still work.
		{Op: compiler.OpCall, A: 1, B: 0},
		{Op: compiler.OpPrintItem},
	}
	out, err := run(t, code, "")
	assert.NoError(t, err)
	assert.Equal(t, "77", out)
}

func TestVMSequentialBlocksDoNotOverUnwind(t *testing.T) {
	// Two sequential (non-nested) blocks inside one function, each properly
	// closed with LeaveScope, followed by a normal return: the unwind
	// counter must be back at 0 so Ret only pops the call frame itself.
	code := compiler.Code{
		{Op: compiler.OpJmp, A: 11},
		// 1: fn()
		{Op: compiler.OpEnterScope, A: 1},
		{Op: compiler.OpLoadConst, A: 1},
		{Op: compiler.OpStoreVar, A: 0, B: 0},
		{Op: compiler.OpLeaveScope},
		{Op: compiler.OpEnterScope, A: 1},
		{Op: compiler.OpLoadConst, A: 2},
		{Op: compiler.OpStoreVar, A: 0, B: 0},
		{Op: compiler.OpLeaveScope},
		{Op: compiler.OpLoadConst, A: 0},
		{Op: compiler.OpRet},
		// 11: main
		{Op: compiler.OpCall, A: 1, B: 0},
		{Op: compiler.OpPop},
		{Op: compiler.OpCall, A: 1, B: 0},
		{Op: compiler.OpPop},
	}
	_, err := run(t, code, "")
	assert.NoError(t, err)
}

func TestVMGetIntReadsALine(t *testing.T) {
	code := compiler.Code{
		{Op: compiler.OpGetInt},
		{Op: compiler.OpPrintItem},
	}
	out, err := run(t, code, "17\n")
	assert.NoError(t, err)
	assert.Equal(t, "17", out)
}

func TestVMStackUnderflowOnPop(t *testing.T) {
	code := compiler.Code{{Op: compiler.OpPop}}
	_, err := run(t, code, "")
	assert.Error(t, err)
	assert.IsType(t, RuntimeError{}, err)
}
