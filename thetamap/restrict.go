package thetamap

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/MacroFinanceHub/Mixed-Frequency-State-Space-toolbox-MFSS/matx"
	"github.com/MacroFinanceHub/Mixed-Frequency-State-Space-toolbox-MFSS/ssm"
	"github.com/MacroFinanceHub/Mixed-Frequency-State-Space-toolbox-MFSS/transform"
)

// AddRestrictions returns a copy of the map whose matrix-level bounds are
// tightened to the intersection of the current bounds with the supplied
// ones. lower and upper are systems shaped like the model; NaN entries
// and empty matrices leave the corresponding bound unchanged, and either
// argument may be nil.
//
// Every indexed cell whose bound pair actually changed is re-routed
// through a freshly registered transform for the new pair, with
// covariance diagonals floored to a small positive value. Cells whose
// bounds collapse to a point become fixed at that value. The structure is
// compressed before it is returned; the receiver is never modified.
func (tm *ThetaMap) AddRestrictions(lower, upper *ssm.System) (*ThetaMap, error) {
	for _, sys := range []*ssm.System{lower, upper} {
		if sys == nil {
			continue
		}
		for _, name := range ssm.MatrixNames() {
			prm := sys.Param(name)
			if !prm.IsEmpty() && !tm.fixed.Param(name).Conforms(*prm) {
				return nil, fmt.Errorf("%w: restriction matrix %s", ssm.ErrDimensionMismatch, name)
			}
		}
	}

	out := tm.clone()
	var editErr error
	out.eachCell(func(ref CellRef) {
		if editErr != nil {
			return
		}
		supLB := suppliedBound(lower, ref)
		supUB := suppliedBound(upper, ref)
		if math.IsNaN(supLB) && math.IsNaN(supUB) {
			return
		}

		curLB := valueAt(out.lowerBound, ref)
		curUB := valueAt(out.upperBound, ref)
		newLB, newUB := curLB, curUB
		if !math.IsNaN(supLB) && supLB > newLB {
			newLB = supLB
		}
		if !math.IsNaN(supUB) && supUB < newUB {
			newUB = supUB
		}
		if newLB == curLB && newUB == curUB {
			return
		}

		if cellAt(out.index, ref) == 0 {
			v := valueAt(out.fixed, ref)
			if v < newLB || v > newUB {
				editErr = fmt.Errorf("%w: restriction on %s excludes its fixed value %v", ErrBoundViolation, ref, v)
			}
			return
		}

		if isCovDiagonal(ref) && newLB < covarianceFloor {
			newLB = covarianceFloor
		}
		if newLB == newUB {
			// The bounds pin the cell; it is no longer free.
			setCell(out.fixed, ref, newLB)
			setCell(out.index, ref, 0)
			setCell(out.tindex, ref, 0)
			return
		}
		t, err := transform.ForBounds(newLB, newUB)
		if err != nil {
			editErr = fmt.Errorf("cell %s: %w", ref, err)
			return
		}
		setCell(out.tindex, ref, float64(out.reg.Add(t)))
	})
	if editErr != nil {
		return nil, editErr
	}
	return out.Compress()
}

// UpdateInitial returns a copy of the map that builds explicit initial
// conditions instead of leaving them to the filter. Undefined (NaN)
// entries of a0 and P0 become new free theta slots; defined entries
// become fixed literals with bounds pinned to that value. A nil argument
// stands for a fully undefined vector or matrix.
//
// The covariance is parameterized through its lower triangular root
// factor, so defined P0 entries are taken in root space unless P0 is
// supplied in full, in which case it is fixed as the literal covariance.
func (tm *ThetaMap) UpdateInitial(a0 *mat.VecDense, P0 *mat.Dense) (*ThetaMap, error) {
	_, m := tm.fixed.T.Dims()
	if a0 != nil && a0.Len() != m {
		return nil, fmt.Errorf("%w: a0 has length %d, want %d", ssm.ErrDimensionMismatch, a0.Len(), m)
	}
	if P0 != nil {
		if r, c := P0.Dims(); r != m || c != m {
			return nil, fmt.Errorf("%w: P0 is %dx%d, want %dx%d", ssm.ErrDimensionMismatch, r, c, m, m)
		}
		if !matx.AnyNaN(P0) && !matx.IsSymmetric(P0, symTolerance) {
			return nil, fmt.Errorf("%w: P0 is not symmetric", ssm.ErrDimensionMismatch)
		}
	}

	out := tm.clone()
	out.explicitInitial = true

	// Replace any existing initial-condition structure; orphaned slots
	// are dropped by the compression pass below.
	a0Shape := ssm.NewParam(mat.NewDense(m, 1, nil))
	p0Shape := ssm.NewParam(mat.NewDense(m, m, nil))
	for _, sys := range []*ssm.System{out.fixed, out.index, out.tindex} {
		sys.A0 = a0Shape.Clone()
		sys.P0 = p0Shape.Clone()
	}

	for i := 0; i < m; i++ {
		ref := CellRef{Matrix: ssm.NameA0, Row: i, Col: 0}
		v := math.NaN()
		if a0 != nil {
			v = a0.AtVec(i)
		}
		if math.IsNaN(v) {
			out.newFreeCell(ref, 1)
		} else {
			setCell(out.fixed, ref, v)
		}
	}

	out.p0Root = P0 == nil || matx.AnyNaN(P0)
	if !out.p0Root {
		out.fixed.P0.Slices[0].Copy(P0)
	} else {
		exp := out.reg.Add(transform.MustForBounds(0, math.Inf(1)))
		for i := 0; i < m; i++ {
			for j := 0; j <= i; j++ {
				ref := CellRef{Matrix: ssm.NameP0, Row: i, Col: j}
				v := math.NaN()
				if P0 != nil {
					v = P0.At(i, j)
				}
				switch {
				case !math.IsNaN(v):
					setCell(out.fixed, ref, v)
				case i == j:
					out.newFreeCell(ref, exp)
				default:
					out.newFreeCell(ref, 1)
				}
			}
		}
	}

	return out.Compress()
}

// newFreeCell gives the cell its own fresh theta and psi slot with the
// given transform slot.
func (tm *ThetaMap) newFreeCell(ref CellRef, tSlot int) {
	theta := len(tm.names)
	tm.names = append(tm.names, ref.String())
	tm.thetaLB = append(tm.thetaLB, math.Inf(-1))
	tm.thetaUB = append(tm.thetaUB, math.Inf(1))
	psi := tm.addPsi([]int{theta}, nil, func(v float64) float64 { return v })
	setCell(tm.index, ref, float64(psi))
	setCell(tm.tindex, ref, float64(tSlot))
}

// suppliedBound reads the restriction value for a cell, or NaN when the
// system or matrix is absent.
func suppliedBound(sys *ssm.System, ref CellRef) float64 {
	if sys == nil {
		return math.NaN()
	}
	prm := sys.Param(ref.Matrix)
	if prm.IsEmpty() {
		return math.NaN()
	}
	return prm.Slices[ref.Slice].At(ref.Row, ref.Col)
}
