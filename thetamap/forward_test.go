package thetamap

import (
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/MacroFinanceHub/Mixed-Frequency-State-Space-toolbox-MFSS/ssm"
)

func TestTheta2SystemAssembly(t *testing.T) {
	tm := ar1Map(t)
	theta := []float64{0.6, math.Log(0.75)}
	sys, err := tm.Theta2System(theta)
	if err != nil {
		t.Fatalf("Theta2System: %v", err)
	}
	if got := sys.T.Slices[0].At(0, 0); math.Abs(got-0.6) > 1e-12 {
		t.Errorf("T = %v, want 0.6", got)
	}
	if got := sys.Q.Slices[0].At(0, 0); math.Abs(got-0.75) > 1e-12 {
		t.Errorf("Q = %v, want 0.75", got)
	}
	// Fixed literals survive untouched.
	if got := sys.Z.Slices[0].At(0, 0); got != 1 {
		t.Errorf("Z = %v, want fixed 1", got)
	}
	if sys.HasInitial() {
		t.Error("implicit initial conditions materialized")
	}
}

func TestTheta2SystemInputErrors(t *testing.T) {
	tm := ar1Map(t)
	if _, err := tm.Theta2System([]float64{1}); !errors.Is(err, ErrThetaLength) {
		t.Errorf("short theta: %v", err)
	}
	if _, err := tm.Theta2System([]float64{1, math.NaN()}); !errors.Is(err, ErrThetaUndefined) {
		t.Errorf("undefined theta: %v", err)
	}
}

func TestCovarianceSymmetryInvariant(t *testing.T) {
	n := math.NaN()
	H := ssm.NewParam(mat.NewDense(2, 2, []float64{n, n, n, n}))
	sys, err := ssm.New(
		ssm.NewParam(mat.NewDense(2, 1, []float64{1, 1})),
		ssm.NewParam(mat.NewDense(2, 1, nil)), ssm.Param{},
		H,
		scalar(0.5), scalar(0), ssm.Param{},
		scalar(1), scalar(n),
	)
	if err != nil {
		t.Fatalf("ssm.New: %v", err)
	}
	tm, err := NewEstimation(sys, nil)
	if err != nil {
		t.Fatalf("NewEstimation: %v", err)
	}
	// Free cells of H: (1,1), (2,1), (2,2) plus Q: 4 theta slots.
	if tm.NTheta() != 4 {
		t.Fatalf("nTheta = %d, want 4", tm.NTheta())
	}
	out, err := tm.Theta2System([]float64{0.3, -0.8, 1.1, 0.2})
	if err != nil {
		t.Fatalf("Theta2System: %v", err)
	}
	Hout := out.H.Slices[0]
	if Hout.At(0, 1) != Hout.At(1, 0) {
		t.Errorf("H not exactly symmetric: %v vs %v", Hout.At(0, 1), Hout.At(1, 0))
	}
	// Diagonals go through the positivity transform.
	if Hout.At(0, 0) <= 0 || Hout.At(1, 1) <= 0 || out.Q.Slices[0].At(0, 0) <= 0 {
		t.Error("free variances not strictly positive")
	}
	if got := Hout.At(1, 0); math.Abs(got-(-0.8)) > 1e-12 {
		t.Errorf("off-diagonal H = %v, want -0.8 via identity", got)
	}
}

func TestTimeVaryingSelectorsCarriedOver(t *testing.T) {
	n := math.NaN()
	zSlices := []*mat.Dense{
		mat.NewDense(1, 1, []float64{n}),
		mat.NewDense(1, 1, []float64{2}),
	}
	Z, err := ssm.NewTVParam(zSlices, []int{1, 2, 2, 1})
	if err != nil {
		t.Fatalf("NewTVParam: %v", err)
	}
	sys, err := ssm.New(
		Z, scalar(0), ssm.Param{},
		scalar(0.1),
		scalar(0.5), scalar(0), ssm.Param{},
		scalar(1), scalar(1),
	)
	if err != nil {
		t.Fatalf("ssm.New: %v", err)
	}
	tm, err := NewEstimation(sys, nil)
	if err != nil {
		t.Fatalf("NewEstimation: %v", err)
	}
	if tm.NTheta() != 1 {
		t.Fatalf("nTheta = %d, want 1", tm.NTheta())
	}
	out, err := tm.Theta2System([]float64{3})
	if err != nil {
		t.Fatalf("Theta2System: %v", err)
	}
	if !out.Z.IsTimeVarying() || len(out.Z.Tau) != 4 {
		t.Fatal("period selector dropped")
	}
	if got := out.Z.AtPeriod(0).At(0, 0); got != 3 {
		t.Errorf("free slice = %v, want 3", got)
	}
	if got := out.Z.AtPeriod(1).At(0, 0); got != 2 {
		t.Errorf("fixed slice = %v, want 2", got)
	}
}

func TestPureFunctionNoSideEffects(t *testing.T) {
	tm := ar1Map(t)
	first, err := tm.Theta2System([]float64{0.2, 0})
	if err != nil {
		t.Fatalf("Theta2System: %v", err)
	}
	first.T.Slices[0].Set(0, 0, 99)
	second, err := tm.Theta2System([]float64{0.2, 0})
	if err != nil {
		t.Fatalf("Theta2System: %v", err)
	}
	if got := second.T.Slices[0].At(0, 0); math.Abs(got-0.2) > 1e-12 {
		t.Errorf("assembled system shares state across calls: T = %v", got)
	}
}
