package expr

import (
	"math"
	"testing"
)

func TestLiteralEval(t *testing.T) {
	d := Lit(3.5)
	if d.Kind() != Literal || d.Value() != 3.5 {
		t.Fatalf("Lit(3.5) = kind %v, value %v", d.Kind(), d.Value())
	}
	if got := d.Eval(nil); got != 3.5 {
		t.Errorf("Eval = %v, want 3.5", got)
	}
	if len(d.Vars()) != 0 {
		t.Errorf("literal reads variables %v", d.Vars())
	}
}

func TestVarPassesThrough(t *testing.T) {
	d := Var("phi")
	if d.Name() != "phi" {
		t.Errorf("Name = %q, want phi", d.Name())
	}
	if got := d.Eval([]float64{0.7}); got != 0.7 {
		t.Errorf("Eval = %v, want 0.7", got)
	}
	if !d.HasInverse() {
		t.Error("free variable should invert")
	}
	v, err := d.Invert(0.7)
	if err != nil || v != 0.7 {
		t.Errorf("Invert = %v, %v", v, err)
	}
}

func TestFnWithoutInverse(t *testing.T) {
	d := Fn([]string{"a", "b"}, func(v []float64) float64 { return v[0] * v[1] })
	if got := d.Eval([]float64{2, 3}); got != 6 {
		t.Errorf("Eval = %v, want 6", got)
	}
	if d.HasInverse() {
		t.Error("multivariate composite reports an inverse")
	}
	if _, err := d.Invert(6); err != ErrNoInverse {
		t.Errorf("Invert err = %v, want ErrNoInverse", err)
	}
}

func TestFnInvRoundTrip(t *testing.T) {
	d := FnInv([]string{"sigma"},
		func(v []float64) float64 { return math.Exp(v[0]) },
		math.Log)
	sub := d.Eval([]float64{-0.3})
	got, err := d.Invert(sub)
	if err != nil {
		t.Fatalf("Invert: %v", err)
	}
	if math.Abs(got-(-0.3)) > 1e-14 {
		t.Errorf("round trip = %v, want -0.3", got)
	}
}

func TestFnInvRejectsMultipleVars(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("FnInv over two variables did not panic")
		}
	}()
	FnInv([]string{"a", "b"}, func(v []float64) float64 { return v[0] + v[1] }, nil)
}

func TestSharingByPointer(t *testing.T) {
	shared := Fn([]string{"a"}, func(v []float64) float64 { return 2 * v[0] })
	other := Fn([]string{"a"}, func(v []float64) float64 { return 2 * v[0] })
	if shared == other {
		t.Fatal("distinct definitions compare equal")
	}
	if shared != shared {
		t.Fatal("definition does not share with itself")
	}
}
