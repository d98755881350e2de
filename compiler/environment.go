package compiler

import (
	"fmt"

	"github.com/dolthub/swiss"
)

// FuncInfo records where a user-defined function's code begins and the
// names of its parameters, in declaration order, so call sites can be
// compiled before the callee's body has necessarily been visited.
type FuncInfo struct {
	Entry  int
	Params []string
}

// loopCtx tracks the back-patching state for one enclosing loop: the PC a
// `continue` should jump to, and the placeholder Jmp instructions emitted
// by `break` statements, patched to the loop's exit once it is known.
type loopCtx struct {
	continueTarget int
	breakJumps     []int
	scopeDepth     int // len(scopes) when the loop body started, for break/continue unwinding
}

// Environment is the compiler's compile-time symbol table. It tracks
// global variable slots, the stack of lexical scopes currently open
// (innermost last), the function table, and the stack of enclosing loops
// needed to compile break/continue. Unlike the runtime Environment used by
// the tree-walking interpreter, no values are stored here — only the slot
// addressing needed to emit LoadVar/StoreVar/LoadGlobal/StoreGlobal
// instructions.
type Environment struct {
	globals    *swiss.Map[string, int]
	nextGlobal int

	scopes []map[string]int

	funcs *swiss.Map[string, FuncInfo]
	loops []*loopCtx
}

// NewEnvironment creates an Environment with no globals, no open scopes,
// and no enclosing loops. The global and function tables are backed by a
// SwissTable map since both live for the whole compile and are queried far
// more than they are written.
func NewEnvironment() *Environment {
	return &Environment{
		globals: swiss.NewMap[string, int](16),
		funcs:   swiss.NewMap[string, FuncInfo](16),
	}
}

// DeclareGlobal registers name as a new global variable and returns its
// slot index. Returns a SemanticError if name is already declared.
func (e *Environment) DeclareGlobal(name string) (int, error) {
	if _, ok := e.globals.Get(name); ok {
		return 0, SemanticError{Message: fmt.Sprintf("global '%s' already declared", name)}
	}
	idx := e.nextGlobal
	e.globals.Put(name, idx)
	e.nextGlobal++
	return idx, nil
}

// ResolveGlobal looks up name among declared globals.
func (e *Environment) ResolveGlobal(name string) (int, bool) {
	idx, ok := e.globals.Get(name)
	return idx, ok
}

// PushScope opens a new local scope, nested inside whatever scope is
// currently innermost.
func (e *Environment) PushScope() {
	e.scopes = append(e.scopes, make(map[string]int))
}

// PopScope closes the innermost local scope and returns how many slots it
// held, which the caller records as the operand of the block's EnterScope.
func (e *Environment) PopScope() int {
	top := e.scopes[len(e.scopes)-1]
	e.scopes = e.scopes[:len(e.scopes)-1]
	return len(top)
}

// DeclareLocal registers name as a new local in the innermost open scope
// and returns its slot index within that scope. Returns a SemanticError if
// name is already declared in this exact scope (shadowing an outer scope
// is permitted).
func (e *Environment) DeclareLocal(name string) (int, error) {
	top := e.scopes[len(e.scopes)-1]
	if _, ok := top[name]; ok {
		return 0, SemanticError{Message: fmt.Sprintf("variable '%s' already declared in this scope", name)}
	}
	slot := len(top)
	top[name] = slot
	return slot, nil
}

// ResolveLocal searches the open scopes from innermost to outermost for
// name, returning its (depth, slot) address: depth counts scopes outward
// from the current one (0 = innermost). Returns ok=false if name is not a
// local in any open scope.
func (e *Environment) ResolveLocal(name string) (depth int, slot int, ok bool) {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if s, found := e.scopes[i][name]; found {
			return len(e.scopes) - 1 - i, s, true
		}
	}
	return 0, 0, false
}

// DeclareFunc registers a function's entry point and parameter list.
// Returns a SemanticError if a function with this name already exists.
func (e *Environment) DeclareFunc(name string, entry int, params []string) error {
	if _, ok := e.funcs.Get(name); ok {
		return SemanticError{Message: fmt.Sprintf("function '%s' already declared", name)}
	}
	e.funcs.Put(name, FuncInfo{Entry: entry, Params: params})
	return nil
}

// ResolveFunc looks up a function's declared signature and entry point.
func (e *Environment) ResolveFunc(name string) (FuncInfo, bool) {
	info, ok := e.funcs.Get(name)
	return info, ok
}

// SetFuncEntry patches a previously declared function's entry point, used
// when the function table must be pre-populated before bodies are
// compiled (forward calls) and the real entry is only known afterward.
func (e *Environment) SetFuncEntry(name string, entry int) {
	info, _ := e.funcs.Get(name)
	info.Entry = entry
	e.funcs.Put(name, info)
}

// PushLoop opens a new enclosing loop context, recording where `continue`
// should jump to and how many scopes are open at the loop's header, so
// break/continue deeper inside the body know how many scopes to unwind.
func (e *Environment) PushLoop(continueTarget int) {
	e.loops = append(e.loops, &loopCtx{continueTarget: continueTarget, scopeDepth: len(e.scopes)})
}

// PopLoop closes the innermost loop context and returns the PCs of all
// `break` jumps emitted inside it, so the caller can patch them to the
// loop's exit point.
func (e *Environment) PopLoop() []int {
	top := e.loops[len(e.loops)-1]
	e.loops = e.loops[:len(e.loops)-1]
	return top.breakJumps
}

// ScopeDepth returns how many local scopes are currently open.
func (e *Environment) ScopeDepth() int {
	return len(e.scopes)
}

// CurrentLoop returns the innermost enclosing loop context, or ok=false if
// break/continue appears outside any loop.
func (e *Environment) CurrentLoop() (*loopCtx, bool) {
	if len(e.loops) == 0 {
		return nil, false
	}
	return e.loops[len(e.loops)-1], true
}

// RecordBreak appends a break jump's PC to the innermost loop, to be
// patched once the loop's exit address is known.
func (e *Environment) RecordBreak(pc int) {
	top := e.loops[len(e.loops)-1]
	top.breakJumps = append(top.breakJumps, pc)
}
