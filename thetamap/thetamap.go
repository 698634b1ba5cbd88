// Package thetamap implements the bidirectional map between the free
// parameter vector theta of a partially known state-space model and the
// full set of its coefficient matrices.
//
// The map is described by three integer-valued structures shaped like the
// model itself: fixed holds literal known values, index routes each free
// cell to an intermediate substituted value ("psi" slot), and
// transformationIndex selects the registered monotone transform applied on
// the way into the cell. Each psi slot is in turn a function of one or
// more named theta entries, so several cells can share one free value and
// one free value can be a derived combination of several theta entries.
//
// All mutating operations return a new ThetaMap and leave the receiver
// untouched.
package thetamap

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/MacroFinanceHub/Mixed-Frequency-State-Space-toolbox-MFSS/ssm"
	"github.com/MacroFinanceHub/Mixed-Frequency-State-Space-toolbox-MFSS/transform"
)

var (
	ErrThetaLength    = errors.New("theta vector has wrong length")
	ErrThetaUndefined = errors.New("theta vector has undefined entries")
	ErrBoundViolation = errors.New("system value outside recorded bounds")
	ErrInconsistent   = errors.New("entries sharing a free value disagree")
	ErrInvariant      = errors.New("index structure invariant violated")
	ErrInfeasible     = errors.New("theta violates its bounds")
	ErrUnknownTheta   = errors.New("no theta slot with that name")
)

const (
	// psiTol bounds the disagreement tolerated between cells sharing a
	// psi slot when recovering theta from a concrete system.
	psiTol = 1e-7
	// residTol is the residual above which a numeric inverse solve is
	// reported as inaccurate.
	residTol = 1e-4
	// covarianceFloor keeps restricted covariance diagonals strictly
	// positive.
	covarianceFloor = 1e-6
	// boundTol is the slack allowed on bound checks.
	boundTol = 1e-9
	// symTolerance is the asymmetry tolerated in supplied covariances.
	symTolerance = 1e-10
)

// CellRef addresses one scalar entry of one slice of a named system
// matrix. Slice is zero for time-invariant matrices.
type CellRef struct {
	Matrix string
	Slice  int
	Row    int
	Col    int
}

func (r CellRef) String() string {
	if r.Slice > 0 {
		return fmt.Sprintf("%s(%d,%d)[%d]", r.Matrix, r.Row+1, r.Col+1, r.Slice+1)
	}
	return fmt.Sprintf("%s(%d,%d)", r.Matrix, r.Row+1, r.Col+1)
}

// SolverConfig controls the numeric-inverse fallback solver used when a
// theta component has no closed-form inverse.
type SolverConfig struct {
	MaxIterations int
	MaxFuncEvals  int
	// Restarts is the number of randomized starting points tried per
	// component; the best solve is kept.
	Restarts int
	Seed     uint64
}

// DefaultSolverConfig returns the solver configuration used unless
// overridden with WithSolver.
func DefaultSolverConfig() SolverConfig {
	return SolverConfig{MaxIterations: 500, MaxFuncEvals: 5000, Restarts: 1, Seed: 1}
}

// ThetaMap owns the index structures, transform registry and bounds that
// tie a theta vector to a concrete state-space system.
type ThetaMap struct {
	fixed  *ssm.System
	index  *ssm.System
	tindex *ssm.System
	reg    *transform.Registry

	names   []string
	thetaLB []float64
	thetaUB []float64

	// psiIndexes[k] lists the theta slots read by psi slot k+1; psiEval
	// maps those theta values to the psi value (nil means identity of a
	// single theta) and psiInv, when non-nil, is the closed-form inverse.
	psiIndexes [][]int
	psiEval    []func([]float64) float64
	psiInv     []func(float64) float64

	lowerBound *ssm.System
	upperBound *ssm.System

	explicitInitial bool
	// p0Root marks that the P0 index structure addresses a lower
	// triangular root factor L with P0 = L L'.
	p0Root bool

	solver SolverConfig
}

// NTheta returns the number of free theta parameters.
func (tm *ThetaMap) NTheta() int { return len(tm.names) }

// NPsi returns the number of distinct substituted values.
func (tm *ThetaMap) NPsi() int { return len(tm.psiIndexes) }

// Names returns the human-readable theta slot names in slot order.
func (tm *ThetaMap) Names() []string {
	cp := make([]string, len(tm.names))
	copy(cp, tm.names)
	return cp
}

// ThetaBounds returns copies of the per-slot lower and upper bound
// vectors.
func (tm *ThetaMap) ThetaBounds() (lb, ub []float64) {
	lb = make([]float64, len(tm.thetaLB))
	ub = make([]float64, len(tm.thetaUB))
	copy(lb, tm.thetaLB)
	copy(ub, tm.thetaUB)
	return lb, ub
}

// Registry returns a copy of the transform registry for inspection.
func (tm *ThetaMap) Registry() *transform.Registry {
	return tm.reg.Clone()
}

// IndexSystems returns copies of the fixed, index and transformation
// index structures for inspection.
func (tm *ThetaMap) IndexSystems() (fixed, index, transformationIndex *ssm.System) {
	return tm.fixed.Clone(), tm.index.Clone(), tm.tindex.Clone()
}

// MatrixBounds returns copies of the matrix-level bound systems checked
// by System2Theta.
func (tm *ThetaMap) MatrixBounds() (lower, upper *ssm.System) {
	return tm.lowerBound.Clone(), tm.upperBound.Clone()
}

// HasExplicitInitial reports whether the map builds a0 and P0 itself
// rather than leaving them for the filter to derive analytically.
func (tm *ThetaMap) HasExplicitInitial() bool { return tm.explicitInitial }

// WithSolver returns a copy of the map using cfg for numeric-inverse
// solves.
func (tm *ThetaMap) WithSolver(cfg SolverConfig) *ThetaMap {
	out := tm.clone()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultSolverConfig().MaxIterations
	}
	if cfg.MaxFuncEvals <= 0 {
		cfg.MaxFuncEvals = DefaultSolverConfig().MaxFuncEvals
	}
	if cfg.Restarts <= 0 {
		cfg.Restarts = 1
	}
	out.solver = cfg
	return out
}

// clone returns a deep copy of the map.
func (tm *ThetaMap) clone() *ThetaMap {
	out := &ThetaMap{
		fixed:           tm.fixed.Clone(),
		index:           tm.index.Clone(),
		tindex:          tm.tindex.Clone(),
		reg:             tm.reg.Clone(),
		names:           append([]string(nil), tm.names...),
		thetaLB:         append([]float64(nil), tm.thetaLB...),
		thetaUB:         append([]float64(nil), tm.thetaUB...),
		psiIndexes:      make([][]int, len(tm.psiIndexes)),
		psiEval:         append([]func([]float64) float64(nil), tm.psiEval...),
		psiInv:          append([]func(float64) float64(nil), tm.psiInv...),
		lowerBound:      tm.lowerBound.Clone(),
		upperBound:      tm.upperBound.Clone(),
		explicitInitial: tm.explicitInitial,
		p0Root:          tm.p0Root,
		solver:          tm.solver,
	}
	for k, idx := range tm.psiIndexes {
		out.psiIndexes[k] = append([]int(nil), idx...)
	}
	return out
}

// cellAt reads an integer-valued entry of an index structure.
func cellAt(sys *ssm.System, ref CellRef) int {
	return int(math.Round(sys.Param(ref.Matrix).Slices[ref.Slice].At(ref.Row, ref.Col)))
}

func setCell(sys *ssm.System, ref CellRef, v float64) {
	sys.Param(ref.Matrix).Slices[ref.Slice].Set(ref.Row, ref.Col, v)
}

func valueAt(sys *ssm.System, ref CellRef) float64 {
	return sys.Param(ref.Matrix).Slices[ref.Slice].At(ref.Row, ref.Col)
}

// eachCell visits every independent cell of the index structures: all
// cells of general matrices, on/below-diagonal cells of covariance-typed
// ones.
func (tm *ThetaMap) eachCell(fn func(ref CellRef)) {
	for _, name := range ssm.MatrixNames() {
		prm := tm.index.Param(name)
		if prm.IsEmpty() {
			continue
		}
		r, c := prm.Dims()
		for s := range prm.Slices {
			for i := 0; i < r; i++ {
				for j := 0; j < c; j++ {
					if ssm.IsCovariance(name) && j > i {
						continue
					}
					fn(CellRef{Matrix: name, Slice: s, Row: i, Col: j})
				}
			}
		}
	}
}

// eachIndexedCell visits every cell driven by the free-parameter
// machinery, along with its psi slot and transform slot.
func (tm *ThetaMap) eachIndexedCell(fn func(ref CellRef, psiSlot, tSlot int)) {
	tm.eachCell(func(ref CellRef) {
		if psi := cellAt(tm.index, ref); psi != 0 {
			fn(ref, psi, cellAt(tm.tindex, ref))
		}
	})
}

// ThetaMatrices returns the names of the system matrices influenced by
// the given theta slot.
func (tm *ThetaMap) ThetaMatrices(slot int) ([]string, error) {
	if slot < 0 || slot >= tm.NTheta() {
		return nil, fmt.Errorf("%w: slot %d of %d", ErrThetaLength, slot, tm.NTheta())
	}
	feeds := make(map[int]bool)
	for k, idx := range tm.psiIndexes {
		for _, t := range idx {
			if t == slot {
				feeds[k+1] = true
			}
		}
	}
	seen := make(map[string]bool)
	var names []string
	tm.eachIndexedCell(func(ref CellRef, psiSlot, tSlot int) {
		if feeds[psiSlot] && !seen[ref.Matrix] {
			seen[ref.Matrix] = true
			names = append(names, ref.Matrix)
		}
	})
	return names, nil
}

// Describe returns a textual report listing, for every theta slot, its
// name, bounds and the matrices it influences.
func (tm *ThetaMap) Describe() string {
	var b strings.Builder
	for i, name := range tm.names {
		mats, _ := tm.ThetaMatrices(i)
		fmt.Fprintf(&b, "theta[%d] %s in [%v, %v] -> %s\n",
			i, name, tm.thetaLB[i], tm.thetaUB[i], strings.Join(mats, ", "))
	}
	return b.String()
}

// FindTheta returns the slot of the named theta parameter.
func (tm *ThetaMap) FindTheta(name string) (int, error) {
	for i, n := range tm.names {
		if n == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTheta, name)
}
