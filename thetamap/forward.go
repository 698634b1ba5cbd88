package thetamap

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/MacroFinanceHub/Mixed-Frequency-State-Space-toolbox-MFSS/matx"
	"github.com/MacroFinanceHub/Mixed-Frequency-State-Space-toolbox-MFSS/ssm"
)

// computePsi substitutes theta into every psi slot.
func (tm *ThetaMap) computePsi(theta []float64) []float64 {
	psi := make([]float64, tm.NPsi())
	for k, idx := range tm.psiIndexes {
		if tm.psiEval[k] == nil {
			psi[k] = theta[idx[0]]
			continue
		}
		args := make([]float64, len(idx))
		for i, t := range idx {
			args[i] = theta[t]
		}
		psi[k] = tm.psiEval[k](args)
	}
	return psi
}

// Theta2System assembles the concrete state-space system for a fully
// defined theta vector: every indexed cell is overwritten with its
// transformed psi value on top of the fixed literals, covariance matrices
// are mirrored to stay exactly symmetric and period selectors are carried
// over unchanged. The map itself is not modified.
func (tm *ThetaMap) Theta2System(theta []float64) (*ssm.System, error) {
	if len(theta) != tm.NTheta() {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrThetaLength, len(theta), tm.NTheta())
	}
	for i, v := range theta {
		if math.IsNaN(v) {
			return nil, fmt.Errorf("%w: theta[%d] (%s)", ErrThetaUndefined, i, tm.names[i])
		}
	}

	psi := tm.computePsi(theta)
	out := tm.fixed.Clone()
	tm.eachIndexedCell(func(ref CellRef, psiSlot, tSlot int) {
		setCell(out, ref, tm.reg.At(tSlot).Apply(psi[psiSlot-1]))
	})

	for _, name := range []string{ssm.NameH, ssm.NameQ} {
		for _, slice := range out.Param(name).Slices {
			matx.MirrorLower(slice)
		}
	}

	switch {
	case !tm.explicitInitial:
		out.A0 = ssm.Param{}
		out.P0 = ssm.Param{}
	case tm.p0Root:
		// The P0 structure addresses a lower triangular root L; the
		// assembled covariance L L' is symmetric positive semi-definite
		// for any theta.
		for _, slice := range out.P0.Slices {
			var cov mat.Dense
			cov.Mul(slice, slice.T())
			slice.Copy(&cov)
		}
	default:
		for _, slice := range out.P0.Slices {
			matx.MirrorLower(slice)
		}
	}

	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
