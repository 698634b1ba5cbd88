package matx

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestIsSymmetricWithNaN(t *testing.T) {
	nan := math.NaN()
	sym := mat.NewDense(2, 2, []float64{1, nan, nan, 2})
	if !IsSymmetric(sym, 1e-12) {
		t.Error("mirrored NaN pair reported asymmetric")
	}
	asym := mat.NewDense(2, 2, []float64{1, nan, 0.5, 2})
	if IsSymmetric(asym, 1e-12) {
		t.Error("NaN mirrored by a number reported symmetric")
	}
	rect := mat.NewDense(2, 3, nil)
	if IsSymmetric(rect, 1e-12) {
		t.Error("rectangular matrix reported symmetric")
	}
}

func TestMirrorLower(t *testing.T) {
	m := mat.NewDense(2, 2, []float64{1, 99, 3, 4})
	MirrorLower(m)
	if m.At(0, 1) != 3 {
		t.Errorf("upper entry = %v, want 3", m.At(0, 1))
	}
}

func TestVecUnvecRoundTrip(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	got := Unvec(Vec(m), 2, 3)
	if !mat.Equal(m, got) {
		t.Errorf("round trip = %v", mat.Formatted(got))
	}
}
