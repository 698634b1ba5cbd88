// Package matx collects small matrix helpers used across the toolbox.
package matx

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Ones returns a (m by n) matrix filled with ones
func Ones(m, n int) *mat.Dense {
	return Full(m, n, 1.)
}

// Full returns a (m by n) matrix filled with value
func Full(m, n int, value float64) *mat.Dense {
	data := make([]float64, m*n)
	for index := range data {
		data[index] = value
	}
	return mat.NewDense(m, n, data)
}

// Eye returns the (m by n) identity matrix
func Eye(m, n int) *mat.Dense {
	res := mat.NewDense(m, n, nil)
	for i := 0; i < m && i < n; i++ {
		res.Set(i, i, 1)
	}
	return res
}

// AnyNaN checks if there are any NaN entries in matrix
func AnyNaN(matrix mat.Matrix) bool {
	m, n := matrix.Dims()
	for row := 0; row < m; row++ {
		for col := 0; col < n; col++ {
			if math.IsNaN(matrix.At(row, col)) {
				return true
			}
		}
	}
	return false
}

// AnyInf checks if there are any Inf entries in matrix
func AnyInf(matrix mat.Matrix) bool {
	m, n := matrix.Dims()
	for row := 0; row < m; row++ {
		for col := 0; col < n; col++ {
			if math.IsInf(matrix.At(row, col), 0) {
				return true
			}
		}
	}
	return false
}

// IsSymmetric reports whether matrix is square and symmetric within tol.
// NaN entries are treated as symmetric when mirrored by another NaN, so
// that partially specified covariances can be checked too.
func IsSymmetric(matrix mat.Matrix, tol float64) bool {
	m, n := matrix.Dims()
	if m != n {
		return false
	}
	for row := 0; row < m; row++ {
		for col := 0; col < row; col++ {
			a, b := matrix.At(row, col), matrix.At(col, row)
			if math.IsNaN(a) || math.IsNaN(b) {
				if math.IsNaN(a) != math.IsNaN(b) {
					return false
				}
				continue
			}
			if math.Abs(a-b) > tol {
				return false
			}
		}
	}
	return true
}

// MirrorLower copies the strictly lower triangle of a square matrix onto
// its upper triangle in place.
func MirrorLower(matrix *mat.Dense) {
	m, _ := matrix.Dims()
	for row := 0; row < m; row++ {
		for col := 0; col < row; col++ {
			matrix.Set(col, row, matrix.At(row, col))
		}
	}
}

// Vec stacks the columns of matrix into a single column vector.
func Vec(matrix mat.Matrix) *mat.VecDense {
	m, n := matrix.Dims()
	res := mat.NewVecDense(m*n, nil)
	for col := 0; col < n; col++ {
		for row := 0; row < m; row++ {
			res.SetVec(col*m+row, matrix.At(row, col))
		}
	}
	return res
}

// Unvec reshapes a stacked column vector back into a (m by n) matrix.
func Unvec(v mat.Vector, m, n int) *mat.Dense {
	res := mat.NewDense(m, n, nil)
	for col := 0; col < n; col++ {
		for row := 0; row < m; row++ {
			res.Set(row, col, v.AtVec(col*m+row))
		}
	}
	return res
}
