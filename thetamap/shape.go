package thetamap

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/MacroFinanceHub/Mixed-Frequency-State-Space-toolbox-MFSS/ssm"
)

// shapeLike returns a system with the same shapes, slice counts and
// period selectors as sys and all entries zero.
func shapeLike(sys *ssm.System) *ssm.System {
	out := &ssm.System{}
	for _, name := range ssm.MatrixNames() {
		*out.Param(name) = sys.Param(name).ZeroLike()
	}
	return out
}

// constLike returns a system shaped like sys with every entry equal to
// value.
func constLike(sys *ssm.System, value float64) *ssm.System {
	out := &ssm.System{}
	for _, name := range ssm.MatrixNames() {
		*out.Param(name) = sys.Param(name).ConstLike(value)
	}
	return out
}

// fillNaN overwrites every entry of the parameter with NaN, marking it
// free.
func fillNaN(p *ssm.Param) {
	for _, slice := range p.Slices {
		r, c := slice.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				slice.Set(i, j, math.NaN())
			}
		}
	}
}

func nanDense(m, n int) *mat.Dense {
	data := make([]float64, m*n)
	for i := range data {
		data[i] = math.NaN()
	}
	return mat.NewDense(m, n, data)
}

func paramHasNaN(p ssm.Param) bool {
	for _, slice := range p.Slices {
		r, c := slice.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if math.IsNaN(slice.At(i, j)) {
					return true
				}
			}
		}
	}
	return false
}
