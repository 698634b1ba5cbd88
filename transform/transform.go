// Package transform provides the scalar monotone transforms used to map
// free parameter values into bounded matrix entries, together with a
// deduplicated registry of such transforms.
//
// Every transform is strictly increasing and maps the whole real line onto
// the open interval (Lower, Upper), so that an unconstrained working value
// always produces a feasible entry.
package transform

import (
	"errors"
	"fmt"
	"math"
)

// Kind enumerates the supported transform families.
type Kind int

const (
	// Identity maps x to x, for unbounded entries.
	Identity Kind = iota
	// Exp maps x to Lower + e^x, for entries bounded below.
	Exp
	// NegExp maps x to Upper - e^{-x}, for entries bounded above.
	NegExp
	// Logistic maps x to Lower + (Upper-Lower)/(1+e^{-x}), for two-sided
	// bounds.
	Logistic
)

var ErrBadBounds = errors.New("lower bound not below upper bound")

// Transform is one scalar monotone map, closed over its bound constants.
// The zero value is not valid; use ForBounds or the exported constructors.
type Transform struct {
	Kind  Kind
	Lower float64
	Upper float64
}

// ForBounds returns the transform whose range is exactly (lb, ub):
// identity when both bounds are infinite, a shifted exponential for a
// one-sided bound and a logistic for a two-sided bound.
func ForBounds(lb, ub float64) (Transform, error) {
	if math.IsNaN(lb) || math.IsNaN(ub) || lb >= ub {
		return Transform{}, fmt.Errorf("%w: [%v, %v]", ErrBadBounds, lb, ub)
	}
	lowerFinite := !math.IsInf(lb, -1)
	upperFinite := !math.IsInf(ub, 1)
	switch {
	case lowerFinite && upperFinite:
		return Transform{Logistic, lb, ub}, nil
	case lowerFinite:
		return Transform{Exp, lb, math.Inf(1)}, nil
	case upperFinite:
		return Transform{NegExp, math.Inf(-1), ub}, nil
	default:
		return Transform{Identity, math.Inf(-1), math.Inf(1)}, nil
	}
}

// MustForBounds is ForBounds for bounds known to be well formed.
func MustForBounds(lb, ub float64) Transform {
	t, err := ForBounds(lb, ub)
	if err != nil {
		panic(err)
	}
	return t
}

// Apply evaluates the transform at x. Infinite arguments are mapped to the
// corresponding end of the range.
func (t Transform) Apply(x float64) float64 {
	switch t.Kind {
	case Identity:
		return x
	case Exp:
		return t.Lower + math.Exp(x)
	case NegExp:
		return t.Upper - math.Exp(-x)
	case Logistic:
		return t.Lower + (t.Upper-t.Lower)/(1+math.Exp(-x))
	}
	panic(fmt.Errorf("unknown transform kind %d", t.Kind))
}

// Invert recovers x from y = Apply(x). The result is infinite when y lies
// on the boundary of the range.
func (t Transform) Invert(y float64) float64 {
	switch t.Kind {
	case Identity:
		return y
	case Exp:
		return math.Log(y - t.Lower)
	case NegExp:
		return -math.Log(t.Upper - y)
	case Logistic:
		return math.Log((y - t.Lower) / (t.Upper - y))
	}
	panic(fmt.Errorf("unknown transform kind %d", t.Kind))
}

// Deriv returns d Apply / dx at x.
func (t Transform) Deriv(x float64) float64 {
	switch t.Kind {
	case Identity:
		return 1
	case Exp:
		return math.Exp(x)
	case NegExp:
		return math.Exp(-x)
	case Logistic:
		e := math.Exp(-x)
		return (t.Upper - t.Lower) * e / ((1 + e) * (1 + e))
	}
	panic(fmt.Errorf("unknown transform kind %d", t.Kind))
}

// Range returns the open interval the transform maps onto.
func (t Transform) Range() (lb, ub float64) {
	return t.Lower, t.Upper
}

// Equal reports extensional equality: same family, same captured bounds.
func (t Transform) Equal(o Transform) bool {
	return t == o
}

func (t Transform) String() string {
	switch t.Kind {
	case Identity:
		return "identity"
	case Exp:
		return fmt.Sprintf("exp+%v", t.Lower)
	case NegExp:
		return fmt.Sprintf("%v-exp", t.Upper)
	case Logistic:
		return fmt.Sprintf("logistic(%v, %v)", t.Lower, t.Upper)
	}
	return fmt.Sprintf("unknown(%d)", t.Kind)
}
