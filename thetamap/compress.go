package thetamap

import (
	"fmt"
	"math"

	"github.com/MacroFinanceHub/Mixed-Frequency-State-Space-toolbox-MFSS/transform"
)

// Validate checks the structural invariants: conformant index structures,
// each cell either fixed or indexed but never both, index references in
// range, every theta slot read by at least one psi slot, closed-form
// inverses only on single-theta psi slots, and bound vectors of the right
// length with lower not above upper.
func (tm *ThetaMap) Validate() error {
	if err := tm.fixed.Conforms(tm.index); err != nil {
		return fmt.Errorf("fixed and index structures: %w", err)
	}
	if err := tm.fixed.Conforms(tm.tindex); err != nil {
		return fmt.Errorf("fixed and transformation index structures: %w", err)
	}
	if err := tm.fixed.Conforms(tm.lowerBound); err != nil {
		return fmt.Errorf("fixed and lower bound structures: %w", err)
	}
	if err := tm.fixed.Conforms(tm.upperBound); err != nil {
		return fmt.Errorf("fixed and upper bound structures: %w", err)
	}

	if len(tm.thetaLB) != tm.NTheta() || len(tm.thetaUB) != tm.NTheta() {
		return fmt.Errorf("%w: %d theta slots but %d lower and %d upper bounds",
			ErrInvariant, tm.NTheta(), len(tm.thetaLB), len(tm.thetaUB))
	}
	for i := range tm.thetaLB {
		if !(tm.thetaLB[i] <= tm.thetaUB[i]) {
			return fmt.Errorf("%w: theta %s has lower bound %v above upper bound %v",
				ErrInvariant, tm.names[i], tm.thetaLB[i], tm.thetaUB[i])
		}
	}

	if len(tm.psiEval) != tm.NPsi() || len(tm.psiInv) != tm.NPsi() {
		return fmt.Errorf("%w: psi bookkeeping lengths disagree", ErrInvariant)
	}
	read := make([]bool, tm.NTheta())
	for k, idx := range tm.psiIndexes {
		if len(idx) == 0 {
			return fmt.Errorf("%w: psi slot %d reads no theta", ErrInvariant, k+1)
		}
		for _, t := range idx {
			if t < 0 || t >= tm.NTheta() {
				return fmt.Errorf("%w: psi slot %d reads theta %d of %d", ErrInvariant, k+1, t, tm.NTheta())
			}
			read[t] = true
		}
		if tm.psiEval[k] == nil && len(idx) != 1 {
			return fmt.Errorf("%w: psi slot %d has no evaluator but reads %d thetas", ErrInvariant, k+1, len(idx))
		}
		if tm.psiInv[k] != nil && len(idx) != 1 {
			return fmt.Errorf("%w: psi slot %d has a closed-form inverse but reads %d thetas", ErrInvariant, k+1, len(idx))
		}
	}
	// A theta slot no psi slot reads would be unrecoverable: the inverse
	// map has no equation pinning its value down.
	for i, ok := range read {
		if !ok {
			return fmt.Errorf("%w: theta %s is read by no psi slot", ErrInvariant, tm.names[i])
		}
	}

	var cellErr error
	tm.eachCell(func(ref CellRef) {
		if cellErr != nil {
			return
		}
		f := valueAt(tm.fixed, ref)
		idx := cellAt(tm.index, ref)
		tidx := cellAt(tm.tindex, ref)
		switch {
		case f != 0 && idx != 0:
			cellErr = fmt.Errorf("%w: cell %s is both fixed and indexed", ErrInvariant, ref)
		case (idx != 0) != (tidx != 0):
			cellErr = fmt.Errorf("%w: cell %s has index %d but transform %d", ErrInvariant, ref, idx, tidx)
		case idx < 0 || idx > tm.NPsi():
			cellErr = fmt.Errorf("%w: cell %s references psi slot %d of %d", ErrInvariant, ref, idx, tm.NPsi())
		case tidx < 0 || tidx > tm.reg.Len():
			cellErr = fmt.Errorf("%w: cell %s references transform %d of %d", ErrInvariant, ref, tidx, tm.reg.Len())
		}
		if cellErr == nil && idx != 0 {
			lb := valueAt(tm.lowerBound, ref)
			ub := valueAt(tm.upperBound, ref)
			if !(lb <= ub) {
				cellErr = fmt.Errorf("%w: cell %s has lower bound %v above upper bound %v", ErrInvariant, ref, lb, ub)
			}
		}
	})
	return cellErr
}

// Compress returns a structurally minimal copy of the map: psi slots are
// renumbered without gaps and unused ones dropped, theta slots no psi
// reads any more are dropped with all cross-references shifted, bound
// vectors are grown over any new theta slots, unreachable transforms are
// removed and extensionally equal ones merged onto the lowest surviving
// slot. The pass is idempotent and validates the result.
func (tm *ThetaMap) Compress() (*ThetaMap, error) {
	out := tm.clone()

	// Grow bound vectors over theta slots added since the last pass.
	for len(out.thetaLB) < len(out.names) {
		out.thetaLB = append(out.thetaLB, math.Inf(-1))
	}
	for len(out.thetaUB) < len(out.names) {
		out.thetaUB = append(out.thetaUB, math.Inf(1))
	}

	// Renumber psi slots contiguously, dropping unreferenced ones.
	psiUsed := make([]bool, out.NPsi())
	out.eachIndexedCell(func(ref CellRef, psiSlot, tSlot int) {
		psiUsed[psiSlot-1] = true
	})
	psiMap := make([]int, out.NPsi()) // old 1-based -> new 1-based, 0 = dropped
	next := 0
	for k, used := range psiUsed {
		if used {
			next++
			psiMap[k] = next
		}
	}
	if next != out.NPsi() {
		newIdx := make([][]int, 0, next)
		newEval := make([]func([]float64) float64, 0, next)
		newInv := make([]func(float64) float64, 0, next)
		for k := range psiUsed {
			if psiUsed[k] {
				newIdx = append(newIdx, out.psiIndexes[k])
				newEval = append(newEval, out.psiEval[k])
				newInv = append(newInv, out.psiInv[k])
			}
		}
		out.psiIndexes, out.psiEval, out.psiInv = newIdx, newEval, newInv
		out.eachIndexedCell(func(ref CellRef, psiSlot, tSlot int) {
			setCell(out.index, ref, float64(psiMap[psiSlot-1]))
		})
	}

	// Drop theta slots no surviving psi slot reads.
	thetaUsed := make([]bool, out.NTheta())
	for _, idx := range out.psiIndexes {
		for _, t := range idx {
			thetaUsed[t] = true
		}
	}
	thetaMap := make([]int, out.NTheta())
	next = 0
	for t, used := range thetaUsed {
		if used {
			thetaMap[t] = next
			next++
		} else {
			thetaMap[t] = -1
		}
	}
	if next != out.NTheta() {
		names := make([]string, 0, next)
		lb := make([]float64, 0, next)
		ub := make([]float64, 0, next)
		for t, used := range thetaUsed {
			if used {
				names = append(names, out.names[t])
				lb = append(lb, out.thetaLB[t])
				ub = append(ub, out.thetaUB[t])
			}
		}
		out.names, out.thetaLB, out.thetaUB = names, lb, ub
		for _, idx := range out.psiIndexes {
			for i, t := range idx {
				idx[i] = thetaMap[t]
			}
		}
	}

	// Merge duplicate transforms onto the lowest referenced slot and
	// drop unreachable ones. Slot 1 stays the identity default.
	tUsed := make([]bool, out.reg.Len())
	tUsed[0] = true
	out.eachIndexedCell(func(ref CellRef, psiSlot, tSlot int) {
		tUsed[tSlot-1] = true
	})
	all := out.reg.Transforms()
	canonical := make([]int, len(all)) // old 1-based -> canonical old 1-based
	for s := range all {
		if !tUsed[s] {
			continue
		}
		canonical[s] = s + 1
		for prev := 0; prev < s; prev++ {
			if tUsed[prev] && all[prev].Equal(all[s]) {
				canonical[s] = prev + 1
				break
			}
		}
	}
	keep := make([]bool, len(all))
	for s := range all {
		if tUsed[s] && canonical[s] == s+1 {
			keep[s] = true
		}
	}
	keep[0] = true
	tMap := make([]int, len(all)) // old 1-based -> new 1-based
	next = 0
	for s := range all {
		if keep[s] {
			next++
			tMap[s] = next
		}
	}
	changed := false
	for s := range all {
		if tUsed[s] && (canonical[s] != s+1 || tMap[s] != s+1) {
			changed = true
		}
	}
	if changed || next != len(all) {
		kept := all[:0:0]
		for s := range all {
			if keep[s] {
				kept = append(kept, all[s])
			}
		}
		out.reg = transform.NewRegistryFrom(kept)
		out.eachIndexedCell(func(ref CellRef, psiSlot, tSlot int) {
			setCell(out.tindex, ref, float64(tMap[canonical[tSlot-1]-1]))
		})
	}

	out.deriveBounds()
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}
