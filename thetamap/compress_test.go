package thetamap

import (
	"math"
	"reflect"
	"testing"

	"github.com/MacroFinanceHub/Mixed-Frequency-State-Space-toolbox-MFSS/ssm"
	"github.com/MacroFinanceHub/Mixed-Frequency-State-Space-toolbox-MFSS/transform"
)

func structuresEqual(a, b *ThetaMap) bool {
	aFixed, aIndex, aT := a.IndexSystems()
	bFixed, bIndex, bT := b.IndexSystems()
	for _, pair := range [][2]*ssm.System{{aFixed, bFixed}, {aIndex, bIndex}, {aT, bT}} {
		if !reflect.DeepEqual(pair[0], pair[1]) {
			return false
		}
	}
	aLB, aUB := a.ThetaBounds()
	bLB, bUB := b.ThetaBounds()
	return reflect.DeepEqual(a.Names(), b.Names()) &&
		reflect.DeepEqual(aLB, bLB) && reflect.DeepEqual(aUB, bUB) &&
		reflect.DeepEqual(a.Registry().Transforms(), b.Registry().Transforms())
}

func TestCompressIsIdempotent(t *testing.T) {
	tm := restrictT(t, ar1Map(t), -1, 1)
	once, err := tm.Compress()
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	twice, err := once.Compress()
	if err != nil {
		t.Fatalf("second Compress: %v", err)
	}
	if !structuresEqual(once, twice) {
		t.Error("compression is not idempotent")
	}
}

func TestCompressMergesDuplicateTransforms(t *testing.T) {
	tm := ar1Map(t)
	reg := tm.Registry().Transforms()
	// Hand a registry with a duplicated logistic and a gap-producing
	// unused transform to the explicit constructor.
	dup := transform.MustForBounds(-1, 1)
	unused := transform.MustForBounds(0, 2)
	reg = append(reg, dup, unused, dup)

	fixed, index, tindex := tm.IndexSystems()
	// Route T through the second copy of the duplicate.
	tindex.T.Slices[0].Set(0, 0, float64(len(reg)))
	built, err := NewExplicit(Explicit{
		Fixed:               fixed,
		Index:               index,
		TransformationIndex: tindex,
		Transforms:          reg,
		PsiIndexes:          [][]int{{0}, {1}},
		Names:               tm.Names(),
	})
	if err != nil {
		t.Fatalf("NewExplicit: %v", err)
	}
	compressed, err := built.Compress()
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	transforms := compressed.Registry().Transforms()
	for i, a := range transforms {
		for j, b := range transforms {
			if i != j && a.Equal(b) {
				t.Fatalf("duplicate transforms survive: slots %d and %d hold %v", i+1, j+1, a)
			}
		}
	}
	// The repointed cell still assembles the same system.
	sys, err := compressed.Theta2System([]float64{0.25, 0})
	if err != nil {
		t.Fatalf("Theta2System: %v", err)
	}
	want := dup.Apply(0.25)
	if got := sys.T.Slices[0].At(0, 0); math.Abs(got-want) > 1e-12 {
		t.Errorf("T = %v, want %v", got, want)
	}
}

func TestValidateCatchesBothFixedAndIndexed(t *testing.T) {
	tm := ar1Map(t)
	fixed, index, tindex := tm.IndexSystems()
	fixed.T.Slices[0].Set(0, 0, 0.5) // T is also indexed
	_, err := NewExplicit(Explicit{
		Fixed:               fixed,
		Index:               index,
		TransformationIndex: tindex,
		Transforms:          tm.Registry().Transforms(),
		PsiIndexes:          [][]int{{0}, {1}},
		Names:               tm.Names(),
	})
	if err == nil {
		t.Error("cell both fixed and indexed accepted")
	}
}

func TestValidateCatchesBoundVectorMismatch(t *testing.T) {
	tm := ar1Map(t)
	fixed, index, tindex := tm.IndexSystems()
	_, err := NewExplicit(Explicit{
		Fixed:               fixed,
		Index:               index,
		TransformationIndex: tindex,
		Transforms:          tm.Registry().Transforms(),
		PsiIndexes:          [][]int{{0}, {1}},
		Names:               tm.Names(),
		LowerBound:          []float64{math.Inf(-1)},
		UpperBound:          []float64{math.Inf(1), math.Inf(1)},
	})
	if err == nil {
		t.Error("bound vectors of the wrong length accepted")
	}
}

func TestValidateCatchesInvertedBounds(t *testing.T) {
	tm := ar1Map(t)
	fixed, index, tindex := tm.IndexSystems()
	_, err := NewExplicit(Explicit{
		Fixed:               fixed,
		Index:               index,
		TransformationIndex: tindex,
		Transforms:          tm.Registry().Transforms(),
		PsiIndexes:          [][]int{{0}, {1}},
		Names:               tm.Names(),
		LowerBound:          []float64{1, math.Inf(-1)},
		UpperBound:          []float64{-1, math.Inf(1)},
	})
	if err == nil {
		t.Error("lower bound above upper bound accepted")
	}
}

func TestCompressDropsUnusedPsiAndTheta(t *testing.T) {
	tm := ar1Map(t)
	_, index, _ := tm.IndexSystems()
	// Detach Q from its psi slot, orphaning psi 2 and theta 2.
	index.Q.Slices[0].Set(0, 0, 0)
	fixed, _, tindex := tm.IndexSystems()
	tindex.Q.Slices[0].Set(0, 0, 0)
	built, err := NewExplicit(Explicit{
		Fixed:               fixed,
		Index:               index,
		TransformationIndex: tindex,
		Transforms:          tm.Registry().Transforms(),
		PsiIndexes:          [][]int{{0}, {1}},
		Names:               tm.Names(),
	})
	if err != nil {
		t.Fatalf("NewExplicit: %v", err)
	}
	compressed, err := built.Compress()
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if compressed.NPsi() != 1 || compressed.NTheta() != 1 {
		t.Errorf("nPsi = %d, nTheta = %d, want 1, 1", compressed.NPsi(), compressed.NTheta())
	}
	if compressed.Names()[0] != "T(1,1)" {
		t.Errorf("surviving slot = %v, want T(1,1)", compressed.Names())
	}
}
