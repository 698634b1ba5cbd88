package thetamap

import (
	"fmt"
	"math"
	"strings"

	"github.com/MacroFinanceHub/Mixed-Frequency-State-Space-toolbox-MFSS/transform"
)

// boundTransform returns the scalar transform mapping an unconstrained
// working value onto the bounded range of the given theta slot: identity
// when unbounded, shifted exponentials for one-sided bounds and a
// logistic for two-sided bounds.
func (tm *ThetaMap) boundTransform(slot int) transform.Transform {
	return transform.MustForBounds(tm.thetaLB[slot], tm.thetaUB[slot])
}

// RestrictTheta maps a vector of unconstrained working values into the
// bounded theta space.
func (tm *ThetaMap) RestrictTheta(unrestricted []float64) ([]float64, error) {
	if len(unrestricted) != tm.NTheta() {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrThetaLength, len(unrestricted), tm.NTheta())
	}
	theta := make([]float64, len(unrestricted))
	for i, u := range unrestricted {
		theta[i] = tm.boundTransform(i).Apply(u)
	}
	return theta, nil
}

// UnrestrictTheta maps a bounded theta vector back to the unconstrained
// working space. It fails when theta violates its own bounds beyond
// tolerance.
func (tm *ThetaMap) UnrestrictTheta(theta []float64) ([]float64, error) {
	if err := tm.IsFeasible(theta); err != nil {
		return nil, err
	}
	u := make([]float64, len(theta))
	for i, v := range theta {
		u[i] = tm.boundTransform(i).Invert(v)
	}
	return u, nil
}

// ThetaUThetaGrad returns the diagonal of the Jacobian of the
// bounded-from-unconstrained map at the given working values, for
// chain-rule gradient propagation by an external optimizer.
func (tm *ThetaMap) ThetaUThetaGrad(unrestricted []float64) ([]float64, error) {
	if len(unrestricted) != tm.NTheta() {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrThetaLength, len(unrestricted), tm.NTheta())
	}
	grad := make([]float64, len(unrestricted))
	for i, u := range unrestricted {
		grad[i] = tm.boundTransform(i).Deriv(u)
	}
	return grad, nil
}

// IsFeasible checks theta against the per-slot bounds, naming every
// violating slot.
func (tm *ThetaMap) IsFeasible(theta []float64) error {
	if len(theta) != tm.NTheta() {
		return fmt.Errorf("%w: got %d, want %d", ErrThetaLength, len(theta), tm.NTheta())
	}
	var bad []string
	for i, v := range theta {
		if math.IsNaN(v) || v < tm.thetaLB[i]-boundTol || v > tm.thetaUB[i]+boundTol {
			bad = append(bad, tm.names[i])
		}
	}
	if bad != nil {
		return fmt.Errorf("%w: %s", ErrInfeasible, strings.Join(bad, ", "))
	}
	return nil
}

// UpdateThetaBounds returns a copy of the map with the given slot's
// bounds replaced. The slot's working-space transform changes
// immediately; matrix-level bounds and cell transforms change the next
// time bounds are applied at the matrix level (AddRestrictions or
// compression).
func (tm *ThetaMap) UpdateThetaBounds(slot int, lb, ub float64) (*ThetaMap, error) {
	if slot < 0 || slot >= tm.NTheta() {
		return nil, fmt.Errorf("%w: slot %d of %d", ErrThetaLength, slot, tm.NTheta())
	}
	if _, err := transform.ForBounds(lb, ub); err != nil {
		return nil, err
	}
	out := tm.clone()
	out.thetaLB[slot] = lb
	out.thetaUB[slot] = ub
	return out, nil
}

// UpdateThetaBoundsByName is UpdateThetaBounds addressed by slot name.
func (tm *ThetaMap) UpdateThetaBoundsByName(name string, lb, ub float64) (*ThetaMap, error) {
	slot, err := tm.FindTheta(name)
	if err != nil {
		return nil, err
	}
	return tm.UpdateThetaBounds(slot, lb, ub)
}

// deriveBounds refreshes the matrix-level bound systems from the
// registered cell transforms and the current theta bounds. Fixed cells
// are pinned to their literal value; an indexed cell's bounds are the
// image of its transform, narrowed through the theta bounds when the cell
// is fed by a single theta directly.
func (tm *ThetaMap) deriveBounds() {
	tm.lowerBound = constLike(tm.fixed, math.Inf(-1))
	tm.upperBound = constLike(tm.fixed, math.Inf(1))
	tm.eachCell(func(ref CellRef) {
		psiSlot := cellAt(tm.index, ref)
		if psiSlot == 0 {
			v := valueAt(tm.fixed, ref)
			setCell(tm.lowerBound, ref, v)
			setCell(tm.upperBound, ref, v)
			return
		}
		t := tm.reg.At(cellAt(tm.tindex, ref))
		lb, ub := t.Range()
		if k := psiSlot - 1; tm.psiEval[k] == nil {
			ti := tm.psiIndexes[k][0]
			lb = t.Apply(tm.thetaLB[ti])
			ub = t.Apply(tm.thetaUB[ti])
		}
		setCell(tm.lowerBound, ref, lb)
		setCell(tm.upperBound, ref, ub)
	})
}
