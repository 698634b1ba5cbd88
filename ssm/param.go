package ssm

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	ErrBadSelector = errors.New("period selector out of range")
	ErrNotConform  = errors.New("parameters do not conform")
)

// Param is one named coefficient matrix of a state-space system. A
// time-invariant Param holds a single slice and a nil selector. A
// time-varying Param holds a stack of equally sized slices together with
// the period selector Tau, where Tau[t] is the 1-based slice in effect
// during period t.
type Param struct {
	Slices []*mat.Dense
	Tau    []int
}

// NewParam returns a time-invariant Param wrapping m.
func NewParam(m *mat.Dense) Param {
	return Param{Slices: []*mat.Dense{m}}
}

// NewTVParam returns a time-varying Param from a stack of slices and a
// period selector.
func NewTVParam(slices []*mat.Dense, tau []int) (Param, error) {
	if len(slices) == 0 {
		return Param{}, errors.New("time-varying parameter needs at least one slice")
	}
	r, c := slices[0].Dims()
	for i, s := range slices[1:] {
		ri, ci := s.Dims()
		if ri != r || ci != c {
			return Param{}, fmt.Errorf("%w: slice %d is %dx%d, slice 0 is %dx%d", ErrNotConform, i+1, ri, ci, r, c)
		}
	}
	for t, sel := range tau {
		if sel < 1 || sel > len(slices) {
			return Param{}, fmt.Errorf("%w: Tau[%d] = %d with %d slices", ErrBadSelector, t, sel, len(slices))
		}
	}
	return Param{Slices: slices, Tau: tau}, nil
}

// IsEmpty reports whether the Param holds no data at all, which marks an
// absent optional matrix.
func (p Param) IsEmpty() bool {
	return len(p.Slices) == 0
}

// IsTimeVarying reports whether the Param switches slices over time.
func (p Param) IsTimeVarying() bool {
	return p.Tau != nil
}

// NumSlices returns the number of distinct slices.
func (p Param) NumSlices() int {
	return len(p.Slices)
}

// Dims returns the row and column count of each slice.
func (p Param) Dims() (r, c int) {
	if p.IsEmpty() {
		return 0, 0
	}
	return p.Slices[0].Dims()
}

// AtPeriod returns the slice in effect during period t.
func (p Param) AtPeriod(t int) *mat.Dense {
	if !p.IsTimeVarying() {
		return p.Slices[0]
	}
	return p.Slices[p.Tau[t]-1]
}

// Clone returns a deep copy of the Param.
func (p Param) Clone() Param {
	if p.IsEmpty() {
		return Param{}
	}
	slices := make([]*mat.Dense, len(p.Slices))
	for i, s := range p.Slices {
		slices[i] = mat.DenseCopyOf(s)
	}
	var tau []int
	if p.Tau != nil {
		tau = make([]int, len(p.Tau))
		copy(tau, p.Tau)
	}
	return Param{Slices: slices, Tau: tau}
}

// ZeroLike returns a Param of the same shape, slice count and selector
// with all entries zero.
func (p Param) ZeroLike() Param {
	return p.ConstLike(0)
}

// ConstLike returns a Param of the same shape, slice count and selector
// with all entries equal to value.
func (p Param) ConstLike(value float64) Param {
	if p.IsEmpty() {
		return Param{}
	}
	r, c := p.Dims()
	slices := make([]*mat.Dense, len(p.Slices))
	for i := range slices {
		data := make([]float64, r*c)
		for k := range data {
			data[k] = value
		}
		slices[i] = mat.NewDense(r, c, data)
	}
	var tau []int
	if p.Tau != nil {
		tau = make([]int, len(p.Tau))
		copy(tau, p.Tau)
	}
	return Param{Slices: slices, Tau: tau}
}

// Conforms reports whether q has the same shape, slice count and period
// selector as p.
func (p Param) Conforms(q Param) bool {
	if p.IsEmpty() != q.IsEmpty() {
		return false
	}
	if p.IsEmpty() {
		return true
	}
	pr, pc := p.Dims()
	qr, qc := q.Dims()
	if pr != qr || pc != qc || len(p.Slices) != len(q.Slices) || len(p.Tau) != len(q.Tau) {
		return false
	}
	for t := range p.Tau {
		if p.Tau[t] != q.Tau[t] {
			return false
		}
	}
	return true
}
