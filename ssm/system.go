// Package ssm holds the named-matrix representation of a linear-Gaussian
// state-space model
//
// y(t) = Z x(t) + d + beta w(t) + eps(t),   eps ~ N(0, H)
//
// x(t) = T x(t-1) + c + gamma w(t) + R eta(t),   eta ~ N(0, Q)
//
// together with optional explicit initial conditions a0 = E[x(0)] and
// P0 = Var[x(0)]. Each coefficient matrix may be time-varying through an
// integer period selector, see Param.
package ssm

import (
	"errors"
	"fmt"

	"github.com/MacroFinanceHub/Mixed-Frequency-State-Space-toolbox-MFSS/matx"
)

const symTol = 1e-10

// Canonical matrix names, in iteration order.
const (
	NameZ     = "Z"
	NameD     = "d"
	NameBeta  = "beta"
	NameH     = "H"
	NameT     = "T"
	NameC     = "c"
	NameGamma = "gamma"
	NameR     = "R"
	NameQ     = "Q"
	NameA0    = "a0"
	NameP0    = "P0"
)

// MatrixNames returns the names of all system matrices in canonical
// order, initial conditions last.
func MatrixNames() []string {
	return []string{NameZ, NameD, NameBeta, NameH, NameT, NameC, NameGamma, NameR, NameQ, NameA0, NameP0}
}

// IsCovariance reports whether the named matrix is symmetric-covariance
// typed, so that only its lower triangle carries independent entries.
func IsCovariance(name string) bool {
	return name == NameH || name == NameQ || name == NameP0
}

var ErrDimensionMismatch = errors.New("dimension mismatch")

// System is the set of named coefficient matrices of one state-space
// model. A0 and P0 are empty when initial conditions are left implicit.
type System struct {
	Z     Param
	D     Param
	Beta  Param
	H     Param
	T     Param
	C     Param
	Gamma Param
	R     Param
	Q     Param
	A0    Param
	P0    Param
}

// New builds a System from the observation block (Z, d, beta, H) and the
// transition block (T, c, gamma, R, Q), validating dimensional
// conformance and covariance symmetry. beta and gamma may be empty when
// the model has no exogenous regressors.
func New(Z, d, beta, H, T, c, gamma, R, Q Param) (*System, error) {
	sys := &System{Z: Z, D: d, Beta: beta, H: H, T: T, C: c, Gamma: gamma, R: R, Q: Q}
	if err := sys.Validate(); err != nil {
		return nil, err
	}
	return sys, nil
}

// Dims returns the observation, state and shock dimensions.
func (s *System) Dims() (p, m, g int) {
	p, m = s.Z.Dims()
	g, _ = s.Q.Dims()
	return p, m, g
}

// Param returns a pointer to the named matrix, or nil for an unknown
// name.
func (s *System) Param(name string) *Param {
	switch name {
	case NameZ:
		return &s.Z
	case NameD:
		return &s.D
	case NameBeta:
		return &s.Beta
	case NameH:
		return &s.H
	case NameT:
		return &s.T
	case NameC:
		return &s.C
	case NameGamma:
		return &s.Gamma
	case NameR:
		return &s.R
	case NameQ:
		return &s.Q
	case NameA0:
		return &s.A0
	case NameP0:
		return &s.P0
	}
	return nil
}

// HasInitial reports whether explicit initial conditions are present.
func (s *System) HasInitial() bool {
	return !s.A0.IsEmpty() || !s.P0.IsEmpty()
}

// Validate checks dimensional conformance between all present matrices,
// covariance symmetry and period-selector consistency.
func (s *System) Validate() error {
	if s.Z.IsEmpty() || s.D.IsEmpty() || s.H.IsEmpty() || s.T.IsEmpty() || s.C.IsEmpty() || s.R.IsEmpty() || s.Q.IsEmpty() {
		return fmt.Errorf("%w: missing required system matrix", ErrDimensionMismatch)
	}
	p, m, g := s.Dims()

	check := func(name string, wantR, wantC int) error {
		prm := s.Param(name)
		if prm.IsEmpty() {
			return nil
		}
		r, c := prm.Dims()
		if r != wantR || c != wantC {
			return fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrDimensionMismatch, name, r, c, wantR, wantC)
		}
		return nil
	}
	for _, dim := range []struct {
		name       string
		rows, cols int
		anyCols    bool
	}{
		{NameZ, p, m, false},
		{NameD, p, 1, false},
		{NameBeta, p, 0, true},
		{NameH, p, p, false},
		{NameT, m, m, false},
		{NameC, m, 1, false},
		{NameGamma, m, 0, true},
		{NameR, m, g, false},
		{NameQ, g, g, false},
		{NameA0, m, 1, false},
		{NameP0, m, m, false},
	} {
		if dim.anyCols {
			prm := s.Param(dim.name)
			if !prm.IsEmpty() {
				if r, _ := prm.Dims(); r != dim.rows {
					return fmt.Errorf("%w: %s has %d rows, want %d", ErrDimensionMismatch, dim.name, r, dim.rows)
				}
			}
			continue
		}
		if err := check(dim.name, dim.rows, dim.cols); err != nil {
			return err
		}
	}

	for _, name := range []string{NameH, NameQ, NameP0} {
		prm := s.Param(name)
		for i, slice := range prm.Slices {
			if !matx.IsSymmetric(slice, symTol) {
				return fmt.Errorf("%w: %s slice %d is not symmetric", ErrDimensionMismatch, name, i+1)
			}
		}
	}

	// All time-varying matrices must agree on the sample length.
	horizon := 0
	for _, name := range MatrixNames() {
		prm := s.Param(name)
		if !prm.IsTimeVarying() {
			continue
		}
		if horizon == 0 {
			horizon = len(prm.Tau)
		} else if len(prm.Tau) != horizon {
			return fmt.Errorf("%w: %s selector has length %d, others have %d", ErrDimensionMismatch, name, len(prm.Tau), horizon)
		}
	}
	return nil
}

// Clone returns a deep copy of the system.
func (s *System) Clone() *System {
	return &System{
		Z: s.Z.Clone(), D: s.D.Clone(), Beta: s.Beta.Clone(), H: s.H.Clone(),
		T: s.T.Clone(), C: s.C.Clone(), Gamma: s.Gamma.Clone(), R: s.R.Clone(), Q: s.Q.Clone(),
		A0: s.A0.Clone(), P0: s.P0.Clone(),
	}
}

// Conforms reports whether o has the same shapes, slice counts and period
// selectors as s for every named matrix, and returns a descriptive error
// naming the first mismatch otherwise.
func (s *System) Conforms(o *System) error {
	for _, name := range MatrixNames() {
		if !s.Param(name).Conforms(*o.Param(name)) {
			return fmt.Errorf("%w: matrix %s", ErrDimensionMismatch, name)
		}
	}
	return nil
}
