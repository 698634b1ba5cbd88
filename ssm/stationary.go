package ssm

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/MacroFinanceHub/Mixed-Frequency-State-Space-toolbox-MFSS/matx"
)

var ErrNotStationary = errors.New("transition matrix has no stationary distribution")

// Stationary derives the analytic initial conditions of the state: the
// unconditional mean a0 solving a = T a + c and the unconditional
// covariance P0 solving the discrete Lyapunov equation
//
// P = T P T' + R Q R'
//
// via vectorization, vec(P) = (I - T (x) T)^{-1} vec(R Q R'). For a
// time-varying system the first slice of each matrix is used. The solve
// fails when T has a unit root.
func (s *System) Stationary() (*mat.VecDense, *mat.Dense, error) {
	_, m, _ := s.Dims()
	T := s.T.Slices[0]
	c := s.C.Slices[0]
	R := s.R.Slices[0]
	Q := s.Q.Slices[0]

	// a0 = (I - T)^{-1} c
	var ImT mat.Dense
	ImT.Sub(matx.Eye(m, m), T)
	var a0 mat.VecDense
	if err := a0.SolveVec(&ImT, c.ColView(0)); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNotStationary, err)
	}

	// RQR' = R Q R'
	var tmp, rqr mat.Dense
	tmp.Mul(R, Q)
	rqr.Mul(&tmp, R.T())

	// vec(P0) = (I - T (x) T)^{-1} vec(R Q R')
	var kron mat.Dense
	kron.Kronecker(T, T)
	var lhs mat.Dense
	lhs.Sub(matx.Eye(m*m, m*m), &kron)
	var vecP mat.VecDense
	if err := vecP.SolveVec(&lhs, matx.Vec(&rqr)); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNotStationary, err)
	}
	P0 := matx.Unvec(&vecP, m, m)
	// Numerical round-off can leave vec-solved covariances slightly
	// asymmetric.
	var sym mat.Dense
	sym.Add(P0, P0.T())
	sym.Scale(0.5, &sym)
	return &a0, &sym, nil
}
