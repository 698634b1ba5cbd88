package thetamap

import (
	"fmt"
	"math"

	"github.com/MacroFinanceHub/Mixed-Frequency-State-Space-toolbox-MFSS/expr"
	"github.com/MacroFinanceHub/Mixed-Frequency-State-Space-toolbox-MFSS/ssm"
	"github.com/MacroFinanceHub/Mixed-Frequency-State-Space-toolbox-MFSS/transform"
)

// builder accumulates theta and psi slots while walking the free cells of
// a design system.
type builder struct {
	tm          *ThetaMap
	thetaByName map[string]int
	psiByName   map[string]int
	psiByDef    map[*expr.Def]int
}

// NewEstimation builds a ThetaMap from a system whose unknown entries are
// marked with NaN. Every free cell of a general matrix gets its own psi
// slot; for covariance matrices only on/below-diagonal cells are walked
// and the transpose position is mirrored. defs may override the default
// per-cell parameterization with literals, shared named variables or
// composite expressions; it may be nil.
//
// Covariance diagonals default to the positivity-enforcing exponential
// transform, everything else to the identity.
func NewEstimation(sys *ssm.System, defs map[CellRef]*expr.Def) (*ThetaMap, error) {
	if err := sys.Validate(); err != nil {
		return nil, err
	}

	tm := &ThetaMap{
		reg:    transform.NewRegistry(),
		solver: DefaultSolverConfig(),
	}
	tm.fixed = shapeLike(sys)
	tm.index = shapeLike(sys)
	tm.tindex = shapeLike(sys)
	tm.explicitInitial = sys.HasInitial()
	tm.p0Root = !sys.P0.IsEmpty() && paramHasNaN(sys.P0)

	b := &builder{
		tm:          tm,
		thetaByName: make(map[string]int),
		psiByName:   make(map[string]int),
		psiByDef:    make(map[*expr.Def]int),
	}

	var walkErr error
	tm.eachCell(func(ref CellRef) {
		if walkErr != nil {
			return
		}
		v := valueAt(sys, ref)
		def := defs[ref]
		if def == nil {
			if !math.IsNaN(v) {
				setCell(tm.fixed, ref, v)
				return
			}
			def = expr.Var(ref.String())
		}
		walkErr = b.addDef(ref, def)
	})
	if walkErr != nil {
		return nil, walkErr
	}

	tm.thetaLB = unboundedVec(tm.NTheta(), -1)
	tm.thetaUB = unboundedVec(tm.NTheta(), 1)
	tm.deriveBounds()
	if err := tm.Validate(); err != nil {
		return nil, err
	}
	return tm, nil
}

// NewAll builds a ThetaMap in which every entry of every system matrix is
// estimated, preserving shapes, slice counts and period selectors. With
// explicitInitial the initial mean and covariance become free parameters
// too.
func NewAll(sys *ssm.System, explicitInitial bool) (*ThetaMap, error) {
	if err := sys.Validate(); err != nil {
		return nil, err
	}
	free := sys.Clone()
	for _, name := range []string{ssm.NameZ, ssm.NameD, ssm.NameBeta, ssm.NameH, ssm.NameT, ssm.NameC, ssm.NameGamma, ssm.NameR, ssm.NameQ} {
		fillNaN(free.Param(name))
	}
	_, m, _ := sys.Dims()
	if explicitInitial {
		free.A0 = ssm.NewParam(nanDense(m, 1))
		free.P0 = ssm.NewParam(nanDense(m, m))
	} else {
		free.A0 = ssm.Param{}
		free.P0 = ssm.Param{}
	}
	return NewEstimation(free, nil)
}

// Explicit is a caller-supplied index structure for fully custom sharing
// or symbolic schemes, accepted by NewExplicit after validation.
type Explicit struct {
	Fixed               *ssm.System
	Index               *ssm.System
	TransformationIndex *ssm.System
	Transforms          []transform.Transform

	// PsiIndexes[k] lists the theta slots read by psi slot k+1. PsiEval
	// and PsiInverse may be nil or have nil entries; a nil evaluator
	// means the psi value is the single indexed theta itself. A non-nil
	// inverse is only accepted on a slot reading exactly one theta.
	PsiIndexes [][]int
	PsiEval    []func([]float64) float64
	PsiInverse []func(float64) float64

	Names                  []string
	LowerBound, UpperBound []float64

	ExplicitInitial bool
	P0Root          bool
}

// NewExplicit builds a ThetaMap from a caller-supplied fixed / index /
// transformationIndex triple plus registry. It validates dimensional
// conformance and the fixed-or-indexed invariant before accepting the
// structure.
func NewExplicit(ex Explicit) (*ThetaMap, error) {
	if ex.Fixed == nil || ex.Index == nil || ex.TransformationIndex == nil {
		return nil, fmt.Errorf("%w: missing index structure", ErrInvariant)
	}
	if len(ex.Transforms) == 0 {
		return nil, fmt.Errorf("%w: empty transform registry", ErrInvariant)
	}
	if err := ex.Fixed.Conforms(ex.Index); err != nil {
		return nil, fmt.Errorf("fixed and index structures: %w", err)
	}
	if err := ex.Fixed.Conforms(ex.TransformationIndex); err != nil {
		return nil, fmt.Errorf("fixed and transformation index structures: %w", err)
	}

	nTheta := len(ex.Names)
	tm := &ThetaMap{
		fixed:           ex.Fixed.Clone(),
		index:           ex.Index.Clone(),
		tindex:          ex.TransformationIndex.Clone(),
		reg:             transform.NewRegistryFrom(ex.Transforms),
		names:           append([]string(nil), ex.Names...),
		psiIndexes:      make([][]int, len(ex.PsiIndexes)),
		psiEval:         make([]func([]float64) float64, len(ex.PsiIndexes)),
		psiInv:          make([]func(float64) float64, len(ex.PsiIndexes)),
		explicitInitial: ex.ExplicitInitial,
		p0Root:          ex.P0Root,
		solver:          DefaultSolverConfig(),
	}
	for k, idx := range ex.PsiIndexes {
		if len(idx) == 0 {
			return nil, fmt.Errorf("%w: psi slot %d reads no theta", ErrInvariant, k+1)
		}
		for _, t := range idx {
			if t < 0 || t >= nTheta {
				return nil, fmt.Errorf("%w: psi slot %d reads theta %d of %d", ErrInvariant, k+1, t, nTheta)
			}
		}
		tm.psiIndexes[k] = append([]int(nil), idx...)
	}
	copy(tm.psiEval, ex.PsiEval)
	copy(tm.psiInv, ex.PsiInverse)
	for k := range tm.psiIndexes {
		if tm.psiEval[k] == nil && len(tm.psiIndexes[k]) != 1 {
			return nil, fmt.Errorf("%w: psi slot %d has no evaluator but reads %d thetas", ErrInvariant, k+1, len(tm.psiIndexes[k]))
		}
		if tm.psiEval[k] == nil && tm.psiInv[k] == nil {
			tm.psiInv[k] = func(v float64) float64 { return v }
		}
	}

	tm.thetaLB = ex.LowerBound
	tm.thetaUB = ex.UpperBound
	if tm.thetaLB == nil {
		tm.thetaLB = unboundedVec(nTheta, -1)
	}
	if tm.thetaUB == nil {
		tm.thetaUB = unboundedVec(nTheta, 1)
	}
	tm.thetaLB = append([]float64(nil), tm.thetaLB...)
	tm.thetaUB = append([]float64(nil), tm.thetaUB...)

	tm.deriveBounds()
	if err := tm.Validate(); err != nil {
		return nil, err
	}
	return tm, nil
}

// addDef wires one free cell to the theta/psi machinery according to its
// definition.
func (b *builder) addDef(ref CellRef, def *expr.Def) error {
	tm := b.tm
	switch def.Kind() {
	case expr.Literal:
		setCell(tm.fixed, ref, def.Value())
		return nil

	case expr.Free:
		slot, ok := b.psiByName[def.Name()]
		if !ok {
			theta := b.thetaSlot(def.Name())
			slot = tm.addPsi([]int{theta}, nil, func(v float64) float64 { return v })
			b.psiByName[def.Name()] = slot
		}
		b.route(ref, slot)
		return nil

	case expr.Composite:
		slot, ok := b.psiByDef[def]
		if !ok {
			thetas := make([]int, len(def.Vars()))
			for i, name := range def.Vars() {
				thetas[i] = b.thetaSlot(name)
			}
			var inv func(float64) float64
			if def.HasInverse() {
				inv = func(v float64) float64 {
					x, _ := def.Invert(v)
					return x
				}
			}
			slot = tm.addPsi(thetas, def.Eval, inv)
			b.psiByDef[def] = slot
		}
		b.route(ref, slot)
		return nil
	}
	return fmt.Errorf("%w: cell %s has unknown definition kind", ErrInvariant, ref)
}

// route marks the cell as driven by the given psi slot with its default
// transform.
func (b *builder) route(ref CellRef, psiSlot int) {
	tm := b.tm
	setCell(tm.index, ref, float64(psiSlot))
	tSlot := 1
	if isCovDiagonal(ref) {
		tSlot = tm.reg.Add(transform.MustForBounds(0, math.Inf(1)))
	}
	setCell(tm.tindex, ref, float64(tSlot))
}

func (b *builder) thetaSlot(name string) int {
	if slot, ok := b.thetaByName[name]; ok {
		return slot
	}
	slot := len(b.tm.names)
	b.tm.names = append(b.tm.names, name)
	b.thetaByName[name] = slot
	return slot
}

// addPsi appends a psi slot and returns its 1-based index.
func (tm *ThetaMap) addPsi(thetas []int, eval func([]float64) float64, inv func(float64) float64) int {
	tm.psiIndexes = append(tm.psiIndexes, thetas)
	tm.psiEval = append(tm.psiEval, eval)
	tm.psiInv = append(tm.psiInv, inv)
	return len(tm.psiIndexes)
}

// isCovDiagonal reports whether the cell is a variance position: the
// diagonal of a covariance-typed matrix or of the P0 root factor.
func isCovDiagonal(ref CellRef) bool {
	return ssm.IsCovariance(ref.Matrix) && ref.Row == ref.Col
}

func unboundedVec(n, sign int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = math.Inf(sign)
	}
	return v
}
