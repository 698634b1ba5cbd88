package thetamap

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/MacroFinanceHub/Mixed-Frequency-State-Space-toolbox-MFSS/ssm"
	"github.com/MacroFinanceHub/Mixed-Frequency-State-Space-toolbox-MFSS/transform"
)

// System2Theta recovers the free parameter vector from a concrete
// state-space system. The system must conform to the map's index
// structure; every indexed entry must lie within its recorded bounds and
// entries sharing a psi slot must agree after inverse transformation.
//
// Theta slots with a closed-form inverse are recovered directly. The
// rest are grouped into codetermined components and each component is
// solved as a bound-constrained nonlinear least-squares problem;
// components are independent and solved concurrently. A residual above
// tolerance after solving is reported in the returned warnings, not as an
// error.
func (tm *ThetaMap) System2Theta(sys *ssm.System) ([]float64, []string, error) {
	if err := tm.fixed.Conforms(sys); err != nil {
		return nil, nil, err
	}

	obs, err := tm.observed(sys)
	if err != nil {
		return nil, nil, err
	}

	if err := tm.checkBounds(obs); err != nil {
		return nil, nil, err
	}

	psiVals, err := tm.recoverPsi(obs)
	if err != nil {
		return nil, nil, err
	}

	return tm.recoverTheta(psiVals)
}

// observed returns the system in the space the index structure addresses:
// for a root-factor P0 parameterization the observed covariance is
// replaced by its Cholesky factor.
func (tm *ThetaMap) observed(sys *ssm.System) (*ssm.System, error) {
	if !tm.p0Root || sys.P0.IsEmpty() {
		return sys, nil
	}
	obs := sys.Clone()
	for s, slice := range obs.P0.Slices {
		n, _ := slice.Dims()
		sym := mat.NewSymDense(n, nil)
		for i := 0; i < n; i++ {
			for j := 0; j <= i; j++ {
				sym.SetSym(j, i, slice.At(i, j))
			}
		}
		var chol mat.Cholesky
		if !chol.Factorize(sym) {
			return nil, fmt.Errorf("%w: P0 slice %d is not positive definite", ErrBoundViolation, s+1)
		}
		var L mat.TriDense
		chol.LTo(&L)
		slice.Copy(&L)
	}
	return obs, nil
}

// checkBounds verifies every indexed entry against the recorded matrix
// bounds, naming the offending matrices.
func (tm *ThetaMap) checkBounds(obs *ssm.System) error {
	seen := make(map[string]bool)
	var bad []string
	tm.eachIndexedCell(func(ref CellRef, psiSlot, tSlot int) {
		v := valueAt(obs, ref)
		lb := valueAt(tm.lowerBound, ref)
		ub := valueAt(tm.upperBound, ref)
		if math.IsNaN(v) || v < lb-boundTol || v > ub+boundTol {
			if !seen[ref.Matrix] {
				seen[ref.Matrix] = true
				bad = append(bad, ref.Matrix)
			}
		}
	})
	if bad != nil {
		return fmt.Errorf("%w: %s", ErrBoundViolation, strings.Join(bad, ", "))
	}
	return nil
}

// recoverPsi inverts each indexed cell's transform and requires all cells
// sharing a psi slot to agree within tolerance.
func (tm *ThetaMap) recoverPsi(obs *ssm.System) ([]float64, error) {
	psiVals := make([]float64, tm.NPsi())
	firstRef := make([]CellRef, tm.NPsi())
	seen := make([]bool, tm.NPsi())
	var invErr error
	tm.eachIndexedCell(func(ref CellRef, psiSlot, tSlot int) {
		if invErr != nil {
			return
		}
		k := psiSlot - 1
		x := tm.reg.At(tSlot).Invert(valueAt(obs, ref))
		if !seen[k] {
			psiVals[k] = x
			firstRef[k] = ref
			seen[k] = true
			return
		}
		if math.Abs(x-psiVals[k]) > psiTol*math.Max(1, math.Abs(psiVals[k])) {
			invErr = fmt.Errorf("%w: %s and %s recover %v and %v for the same free value",
				ErrInconsistent, firstRef[k], ref, psiVals[k], x)
		}
	})
	if invErr != nil {
		return nil, invErr
	}
	return psiVals, nil
}

// recoverTheta turns recovered psi values into theta: closed-form
// inverses first, then one joint nonlinear solve per codetermined
// component.
func (tm *ThetaMap) recoverTheta(psiVals []float64) ([]float64, []string, error) {
	theta := make([]float64, tm.NTheta())
	done := make([]bool, tm.NTheta())
	for i := range theta {
		theta[i] = math.NaN()
	}
	var warnings []string

	for k, inv := range tm.psiInv {
		if inv == nil {
			continue
		}
		ti := tm.psiIndexes[k][0]
		x := inv(psiVals[k])
		if done[ti] {
			if math.Abs(x-theta[ti]) > psiTol*math.Max(1, math.Abs(theta[ti])) {
				warnings = append(warnings,
					fmt.Sprintf("theta %s recovered twice with values %v and %v; keeping the first", tm.names[ti], theta[ti], x))
			}
			continue
		}
		theta[ti] = x
		done[ti] = true
	}

	comps, compPsis := tm.components(done)
	results := make([][]float64, len(comps))
	residuals := make([]float64, len(comps))

	var wg sync.WaitGroup
	wg.Add(len(comps))
	for ci := range comps {
		go func(ci int) {
			defer wg.Done()
			src := rand.NewSource(tm.solver.Seed + uint64(ci))
			results[ci], residuals[ci] = tm.solveComponent(comps[ci], compPsis[ci], psiVals, theta, src)
		}(ci)
	}
	wg.Wait()

	for ci, comp := range comps {
		for i, ti := range comp {
			theta[ti] = results[ci][i]
			done[ti] = true
		}
		if r := residuals[ci]; r > residTol {
			names := make([]string, len(comp))
			for i, ti := range comp {
				names[i] = tm.names[ti]
			}
			warnings = append(warnings,
				fmt.Sprintf("numeric inverse for %s left residual %g above %g", strings.Join(names, ", "), r, residTol))
		}
	}

	for i, ok := range done {
		if !ok {
			return nil, warnings, fmt.Errorf("%w: theta %s is determined by no psi slot", ErrInvariant, tm.names[i])
		}
	}
	return theta, warnings, nil
}

// components groups the theta slots not recovered in closed form into
// connected components of the codetermination relation: two slots are
// linked when some psi slot's defining expression reads both. It returns
// the member slots of each component and the psi slots entering each
// component's residual.
func (tm *ThetaMap) components(done []bool) (comps [][]int, compPsis [][]int) {
	parent := make([]int, tm.NTheta())
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		parent[find(a)] = find(b)
	}

	for k, idx := range tm.psiIndexes {
		if tm.psiInv[k] != nil {
			continue
		}
		var open []int
		for _, t := range idx {
			if !done[t] {
				open = append(open, t)
			}
		}
		for i := 1; i < len(open); i++ {
			union(open[0], open[i])
		}
	}

	byRoot := make(map[int]int)
	for t := 0; t < tm.NTheta(); t++ {
		if done[t] {
			continue
		}
		root := find(t)
		ci, ok := byRoot[root]
		if !ok {
			ci = len(comps)
			byRoot[root] = ci
			comps = append(comps, nil)
			compPsis = append(compPsis, nil)
		}
		comps[ci] = append(comps[ci], t)
	}
	for ci := range comps {
		sort.Ints(comps[ci])
	}

	member := make(map[int]int)
	for ci, comp := range comps {
		for _, t := range comp {
			member[t] = ci
		}
	}
	for k, idx := range tm.psiIndexes {
		if tm.psiInv[k] != nil {
			continue
		}
		added := -1
		for _, t := range idx {
			if ci, ok := member[t]; ok && ci != added {
				compPsis[ci] = append(compPsis[ci], k)
				added = ci
			}
		}
	}
	return comps, compPsis
}

// solveComponent jointly recovers one component's theta slots by
// minimizing the squared residual between the component's psi-producing
// expressions and the recovered psi targets, subject to the slots' bounds.
// The search runs in the unconstrained working space; the configured
// number of randomized starts is tried and the best solve kept.
func (tm *ThetaMap) solveComponent(comp, psis []int, psiVals, known []float64, src rand.Source) ([]float64, float64) {
	bts := make([]transform.Transform, len(comp))
	for i, ti := range comp {
		bts[i] = transform.MustForBounds(tm.thetaLB[ti], tm.thetaUB[ti])
	}

	full := append([]float64(nil), known...)
	objective := func(u []float64) float64 {
		for i, ti := range comp {
			full[ti] = bts[i].Apply(u[i])
		}
		res := make([]float64, len(psis))
		for i, k := range psis {
			args := make([]float64, len(tm.psiIndexes[k]))
			for a, t := range tm.psiIndexes[k] {
				args[a] = full[t]
			}
			res[i] = tm.psiEval[k](args) - psiVals[k]
		}
		return floats.Dot(res, res)
	}

	problem := optimize.Problem{Func: objective}
	settings := &optimize.Settings{
		MajorIterations: tm.solver.MaxIterations,
		FuncEvaluations: tm.solver.MaxFuncEvals,
	}

	restarts := tm.solver.Restarts
	if restarts < 1 {
		restarts = 1
	}
	bestF := math.Inf(1)
	bestU := make([]float64, len(comp))
	for r := 0; r < restarts; r++ {
		u0 := tm.randomStart(comp, bts, src)
		result, err := optimize.Minimize(problem, u0, settings, &optimize.NelderMead{})
		if result == nil {
			continue
		}
		// Hitting the iteration or evaluation cap still leaves a usable
		// best point; genuine failures are skipped.
		if err != nil && result.X == nil {
			continue
		}
		if result.F < bestF {
			bestF = result.F
			copy(bestU, result.X)
		}
	}

	vals := make([]float64, len(comp))
	for i := range comp {
		vals[i] = bts[i].Apply(bestU[i])
	}
	return vals, math.Sqrt(bestF)
}

// randomStart draws one working-space starting point: uniformly inside
// two-sided bounds, from a unit normal otherwise.
func (tm *ThetaMap) randomStart(comp []int, bts []transform.Transform, src rand.Source) []float64 {
	u0 := make([]float64, len(comp))
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	for i, ti := range comp {
		lb, ub := tm.thetaLB[ti], tm.thetaUB[ti]
		if !math.IsInf(lb, -1) && !math.IsInf(ub, 1) {
			draw := distuv.Uniform{Min: lb, Max: ub, Src: src}.Rand()
			u0[i] = bts[i].Invert(draw)
			continue
		}
		u0[i] = normal.Rand()
	}
	return u0
}
