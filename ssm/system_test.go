package ssm

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func scalarParam(v float64) Param {
	return NewParam(mat.NewDense(1, 1, []float64{v}))
}

func ar1(t *testing.T, phi, q float64) *System {
	t.Helper()
	sys, err := New(
		scalarParam(1), scalarParam(0), Param{},
		scalarParam(0),
		scalarParam(phi), scalarParam(0), Param{},
		scalarParam(1), scalarParam(q),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return sys
}

func TestNewValidatesDims(t *testing.T) {
	// Z is 1x2 but T is 1x1.
	_, err := New(
		NewParam(mat.NewDense(1, 2, []float64{1, 0})), scalarParam(0), Param{},
		scalarParam(0),
		scalarParam(0.5), scalarParam(0), Param{},
		scalarParam(1), scalarParam(1),
	)
	if err == nil {
		t.Fatal("mismatched dimensions accepted")
	}
}

func TestNewRejectsAsymmetricCovariance(t *testing.T) {
	H := NewParam(mat.NewDense(2, 2, []float64{1, 0.3, 0.2, 1}))
	_, err := New(
		NewParam(mat.NewDense(2, 1, []float64{1, 1})),
		NewParam(mat.NewDense(2, 1, nil)), Param{},
		H,
		scalarParam(0.5), scalarParam(0), Param{},
		scalarParam(1), scalarParam(1),
	)
	if err == nil {
		t.Fatal("asymmetric H accepted")
	}
}

func TestNaNMirroredCovarianceIsSymmetric(t *testing.T) {
	H := NewParam(mat.NewDense(2, 2, []float64{1, math.NaN(), math.NaN(), 1}))
	_, err := New(
		NewParam(mat.NewDense(2, 1, []float64{1, 1})),
		NewParam(mat.NewDense(2, 1, nil)), Param{},
		H,
		scalarParam(0.5), scalarParam(0), Param{},
		scalarParam(1), scalarParam(1),
	)
	if err != nil {
		t.Fatalf("NaN-mirrored H rejected: %v", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	sys := ar1(t, 0.5, 1)
	cp := sys.Clone()
	cp.T.Slices[0].Set(0, 0, 0.9)
	if got := sys.T.Slices[0].At(0, 0); got != 0.5 {
		t.Errorf("clone mutation leaked into original: T = %v", got)
	}
}

func TestConformsNamesMismatch(t *testing.T) {
	sys := ar1(t, 0.5, 1)
	other := ar1(t, 0.2, 2)
	if err := sys.Conforms(other); err != nil {
		t.Errorf("equal shapes do not conform: %v", err)
	}
	wide, err := New(
		NewParam(mat.NewDense(1, 2, []float64{1, 0})),
		scalarParam(0), Param{},
		scalarParam(0),
		NewParam(mat.NewDense(2, 2, []float64{0.5, 0, 0, 0.5})),
		NewParam(mat.NewDense(2, 1, nil)), Param{},
		NewParam(mat.NewDense(2, 1, []float64{1, 0})), scalarParam(1),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := sys.Conforms(wide); err == nil {
		t.Error("different state dimensions conform")
	}
}

func TestTimeVaryingSelectorValidation(t *testing.T) {
	slices := []*mat.Dense{
		mat.NewDense(1, 1, []float64{1}),
		mat.NewDense(1, 1, []float64{2}),
	}
	if _, err := NewTVParam(slices, []int{1, 2, 3}); err == nil {
		t.Error("selector past the slice stack accepted")
	}
	p, err := NewTVParam(slices, []int{1, 2, 2, 1})
	if err != nil {
		t.Fatalf("NewTVParam: %v", err)
	}
	if got := p.AtPeriod(2).At(0, 0); got != 2 {
		t.Errorf("AtPeriod(2) = %v, want 2", got)
	}
	if got := p.AtPeriod(3).At(0, 0); got != 1 {
		t.Errorf("AtPeriod(3) = %v, want 1", got)
	}
}

func TestHorizonMismatch(t *testing.T) {
	zSlices := []*mat.Dense{mat.NewDense(1, 1, []float64{1}), mat.NewDense(1, 1, []float64{2})}
	dSlices := []*mat.Dense{mat.NewDense(1, 1, nil), mat.NewDense(1, 1, nil)}
	Z, _ := NewTVParam(zSlices, []int{1, 2})
	d, _ := NewTVParam(dSlices, []int{1, 2, 1})
	_, err := New(
		Z, d, Param{},
		scalarParam(0),
		scalarParam(0.5), scalarParam(0), Param{},
		scalarParam(1), scalarParam(1),
	)
	if err == nil {
		t.Error("selectors of different lengths accepted")
	}
}
