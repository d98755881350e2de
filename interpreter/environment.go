package interpreter

import (
	"fmt"
	"nilan/token"
)

// Environment defines the bindings that associate variable names to values
// for one lexical scope, chained to its enclosing scope via parent. The
// source language has no closures, so parent links always terminate at the
// global environment.
type Environment struct {
	parent *Environment
	values map[string]int64
}

// MakeEnvironment creates a new top-level (global) environment.
func MakeEnvironment() *Environment {
	return &Environment{
		values: make(map[string]int64),
	}
}

// MakeNestedEnvironment creates a new environment scoped as a child of parent.
func MakeNestedEnvironment(parent *Environment) *Environment {
	return &Environment{
		parent: parent,
		values: make(map[string]int64),
	}
}

// set declares (or redeclares) a variable in this environment, the
// innermost scope currently active.
func (env *Environment) set(name string, value int64) {
	env.values[name] = value
}

// get retrieves the value bound to name, searching this environment and
// then each enclosing environment in turn.
//
// Returns:
//   - int64: the value of the specified variable
//   - error: a RuntimeError if the variable is not bound anywhere in the chain
func (env *Environment) get(name token.Token) (int64, error) {
	for e := env; e != nil; e = e.parent {
		if value, ok := e.values[name.Lexeme]; ok {
			return value, nil
		}
	}
	msg := fmt.Sprintf("Undefined variable: %s", name.Lexeme)
	return 0, CreateRuntimeError(name.Line, name.Column, msg)
}

// assign updates the value bound to name in whichever environment along the
// chain currently declares it.
//
// Returns:
//   - error: a RuntimeError if the variable is not bound anywhere in the chain
func (env *Environment) assign(name token.Token, value int64) error {
	for e := env; e != nil; e = e.parent {
		if _, ok := e.values[name.Lexeme]; ok {
			e.values[name.Lexeme] = value
			return nil
		}
	}
	msg := fmt.Sprintf("Undefined variable: %s", name.Lexeme)
	return CreateRuntimeError(name.Line, name.Column, msg)
}
