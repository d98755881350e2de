package compiler

import "fmt"

// Opcode identifies one VM instruction variant. Unlike byte-oriented
// bytecode, addresses referenced by jumps and calls are indices into the
// Code slice itself, not byte offsets; this keeps the compiler's
// back-patching arithmetic simple and matches the VM's program-counter
// semantics directly.
type Opcode int

const (
	OpLoadConst Opcode = iota
	OpLoadTrue
	OpLoadFalse
	OpLoadNull
	OpLoadGlobal
	OpStoreGlobal
	OpJmp
	OpJmpTrue
	OpJmpFalse
	OpPrintItem
	OpPrintNewline
	OpGetInt
	OpPop
	OpUniOpNot
	OpUniOpNeg
	OpStorePC
	OpLoadPC
	OpStoreVar
	OpLoadVar
	OpEnterScope
	OpLeaveScope
	OpMakeClosure
	OpCall
	OpRet
	OpBinOpAdd
	OpBinOpSub
	OpBinOpMul
	OpBinOpDiv
	OpBinOpGt
	OpBinOpGe
	OpBinOpLt
	OpBinOpLe
	OpBinOpEq
	OpBinOpNe
	OpBinOpOr
	OpBinOpAnd
)

// opInfo describes an opcode's wire-format tag, human-readable name, and
// immediate-operand arity (0, 1, or 2 words).
type opInfo struct {
	tag   int
	name  string
	arity int
}

var opcodeTable = map[Opcode]opInfo{
	OpLoadConst:    {1, "LoadConst", 1},
	OpLoadTrue:     {2, "LoadTrue", 0},
	OpLoadFalse:    {3, "LoadFalse", 0},
	OpLoadNull:     {4, "LoadNull", 0},
	OpLoadGlobal:   {5, "LoadGlobal", 1},
	OpStoreGlobal:  {6, "StoreGlobal", 1},
	OpJmp:          {10, "Jmp", 1},
	OpJmpTrue:      {11, "JmpTrue", 1},
	OpJmpFalse:     {12, "JmpFalse", 1},
	OpPrintItem:    {13, "PrintItem", 0},
	OpPrintNewline: {14, "PrintNewline", 0},
	OpGetInt:       {15, "GetInt", 0},
	OpPop:          {16, "Pop", 0},
	OpUniOpNot:     {17, "UniOpNot", 0},
	OpUniOpNeg:     {18, "UniOpNeg", 0},
	OpStorePC:      {19, "StorePC", 0},
	OpLoadPC:       {20, "LoadPC", 0},
	OpStoreVar:     {21, "StoreVar", 2},
	OpLoadVar:      {22, "LoadVar", 2},
	OpEnterScope:   {23, "EnterScope", 1},
	OpLeaveScope:   {24, "LeaveScope", 0},
	OpMakeClosure:  {25, "MakeClosure", 0},
	OpCall:         {26, "Call", 2},
	OpRet:          {27, "Ret", 0},
	OpBinOpAdd:     {100, "BinOpAdd", 0},
	OpBinOpSub:     {101, "BinOpSub", 0},
	OpBinOpMul:     {102, "BinOpMul", 0},
	OpBinOpDiv:     {103, "BinOpDiv", 0},
	OpBinOpGt:      {104, "BinOpGt", 0},
	OpBinOpGe:      {105, "BinOpGe", 0},
	OpBinOpLt:      {106, "BinOpLt", 0},
	OpBinOpLe:      {107, "BinOpLe", 0},
	OpBinOpEq:      {108, "BinOpEq", 0},
	OpBinOpNe:      {109, "BinOpNe", 0},
	OpBinOpOr:      {110, "BinOpOr", 0},
	OpBinOpAnd:     {111, "BinOpAnd", 0},
}

var tagToOpcode = func() map[int]Opcode {
	m := make(map[int]Opcode, len(opcodeTable))
	for op, info := range opcodeTable {
		m[info.tag] = op
	}
	return m
}()

// TagOf returns the wire-format tag for op.
func TagOf(op Opcode) (int, error) {
	info, ok := opcodeTable[op]
	if !ok {
		return 0, DeveloperError{Message: fmt.Sprintf("opcode %d has no tag mapping", op)}
	}
	return info.tag, nil
}

// OpcodeForTag returns the Opcode corresponding to a wire-format tag and
// its expected arity, or an error if the tag is unknown (a serialization
// error per the wire-format contract).
func OpcodeForTag(tag int) (Opcode, int, error) {
	op, ok := tagToOpcode[tag]
	if !ok {
		return 0, 0, SerializationError{Message: fmt.Sprintf("unknown opcode tag: %d", tag)}
	}
	return op, opcodeTable[op].arity, nil
}

// Name returns the human-readable mnemonic for op, used for disassembly.
func (op Opcode) Name() string {
	info, ok := opcodeTable[op]
	if !ok {
		return "UNKNOWN"
	}
	return info.name
}

// Instruction is a single tagged-variant instruction with up to two
// nonnegative immediate operand fields. LoadConst stores its signed i32
// payload in A.
type Instruction struct {
	Op Opcode
	A  int32
	B  int32
}

// Code is an ordered instruction sequence, indexed by program counter.
type Code []Instruction

// String renders a disassembly line for a single instruction, used by
// Disassemble and by the VM's Debug trace.
func (i Instruction) String() string {
	info := opcodeTable[i.Op]
	switch info.arity {
	case 0:
		return info.name
	case 1:
		return fmt.Sprintf("%s %d", info.name, i.A)
	default:
		return fmt.Sprintf("%s %d %d", info.name, i.A, i.B)
	}
}

// Disassemble renders a full instruction list as one mnemonic per line,
// prefixed with its index, for debugging emitted programs.
func Disassemble(code Code) string {
	out := ""
	for pc, instr := range code {
		out += fmt.Sprintf("%4d  %s\n", pc, instr.String())
	}
	return out
}
