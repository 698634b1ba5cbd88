// Package expr describes how a single matrix entry of a state-space system
// depends on named free parameters. An entry is either a literal constant,
// a single named free variable, or a composite expression in several free
// variables with a numeric evaluator and, when available, a closed-form
// inverse.
//
// Composite definitions are shared by pointer: two matrix cells referring
// to the same *Def receive the same substituted value.
package expr

import (
	"errors"
	"fmt"
)

// Kind tags the three definition variants.
type Kind int

const (
	Literal Kind = iota
	Free
	Composite
)

var ErrNoInverse = errors.New("definition has no closed-form inverse")

// Def is one free-entry definition. Construct with Lit, Var, Fn or FnInv.
type Def struct {
	kind    Kind
	value   float64
	name    string
	vars    []string
	eval    func([]float64) float64
	inverse func(float64) float64
}

// Lit returns a literal constant definition.
func Lit(value float64) *Def {
	return &Def{kind: Literal, value: value}
}

// Var returns a definition that is a single named free variable.
func Var(name string) *Def {
	return &Def{kind: Free, name: name, vars: []string{name}}
}

// Fn returns a composite definition over the named free variables. eval
// receives the variable values in the order given by vars.
func Fn(vars []string, eval func([]float64) float64) *Def {
	return &Def{kind: Composite, vars: vars, eval: eval}
}

// FnInv is Fn with a closed-form inverse recovering the single variable
// value from the substituted value. It panics unless vars has exactly one
// element, since a multivariate expression has no unique inverse.
func FnInv(vars []string, eval func([]float64) float64, inverse func(float64) float64) *Def {
	if len(vars) != 1 {
		panic(fmt.Errorf("closed-form inverse requires exactly one variable, got %d", len(vars)))
	}
	return &Def{kind: Composite, vars: vars, eval: eval, inverse: inverse}
}

// Kind returns the variant tag.
func (d *Def) Kind() Kind { return d.kind }

// Value returns the literal constant. Only meaningful for Literal.
func (d *Def) Value() float64 { return d.value }

// Name returns the variable name. Only meaningful for Free.
func (d *Def) Name() string { return d.name }

// Vars returns the free variables the definition reads, in evaluator
// argument order. Empty for Literal.
func (d *Def) Vars() []string { return d.vars }

// Eval substitutes the given variable values into the definition.
func (d *Def) Eval(args []float64) float64 {
	switch d.kind {
	case Literal:
		return d.value
	case Free:
		return args[0]
	case Composite:
		return d.eval(args)
	}
	panic(fmt.Errorf("unknown definition kind %d", d.kind))
}

// HasInverse reports whether the definition can be inverted in closed
// form. Free variables always can.
func (d *Def) HasInverse() bool {
	return d.kind == Free || d.inverse != nil
}

// Invert recovers the single variable value from a substituted value.
func (d *Def) Invert(value float64) (float64, error) {
	switch {
	case d.kind == Free:
		return value, nil
	case d.inverse != nil:
		return d.inverse(value), nil
	}
	return 0, ErrNoInverse
}
