package distlookup

import (
	"testing"

	"github.com/mdcore/mdcore/simd"
)

func TestComputeCellPairMasksWithinCutoff(t *testing.T) {
	targetX := []float64{1, 2, 10, 0.5}
	targetY := []float64{0, 0, 0, 0}
	targetZ := []float64{0, 0, 0, 0}

	mask, any := Compute(0, 0, 0, targetX, targetY, targetZ, 4, 9, CellPairPolicy, -1)
	if !any {
		t.Fatal("expected at least one in-range target")
	}
	want := []bool{true, true, false, true}
	for i, w := range want {
		if mask[i] != w {
			t.Errorf("mask[%d] = %v, want %v", i, mask[i], w)
		}
	}
}

func TestComputePaddedTailStaysFalse(t *testing.T) {
	targetX := []float64{0.1}
	targetY := []float64{0}
	targetZ := []float64{0}

	mask, any := Compute(0, 0, 0, targetX, targetY, targetZ, 1, 100, CellPairPolicy, -1)
	if len(mask) != simd.PadLen(1) {
		t.Fatalf("len(mask) = %d, want %d (padded)", len(mask), simd.PadLen(1))
	}
	if !any || !mask[0] {
		t.Fatal("real site within cutoff should be masked true")
	}
	for i := 1; i < len(mask); i++ {
		if mask[i] {
			t.Errorf("padded tail mask[%d] = true, want false", i)
		}
	}
}

func TestComputeSingleCellPolicySkipsLowerIndices(t *testing.T) {
	// All four targets coincide with the source, so under CellPairPolicy
	// every one would be in range; SingleCellPolicy with sourceSiteIndex=1
	// must only consider indices 2 and 3.
	targetX := []float64{0, 0, 0, 0}
	targetY := []float64{0, 0, 0, 0}
	targetZ := []float64{0, 0, 0, 0}

	mask, any := Compute(0, 0, 0, targetX, targetY, targetZ, 4, 1, SingleCellPolicy, 1)
	if !any {
		t.Fatal("expected in-range targets above the source index")
	}
	if mask[0] || mask[1] {
		t.Errorf("mask[0:2] = %v,%v, want both false under SingleCellPolicy(sourceSiteIndex=1)", mask[0], mask[1])
	}
	if !mask[2] || !mask[3] {
		t.Errorf("mask[2:4] = %v,%v, want both true", mask[2], mask[3])
	}
}

func TestComputeNoneInRange(t *testing.T) {
	targetX := []float64{100, 200}
	targetY := []float64{0, 0}
	targetZ := []float64{0, 0}
	_, any := Compute(0, 0, 0, targetX, targetY, targetZ, 2, 4, CellPairPolicy, -1)
	if any {
		t.Error("expected no target within cutoff")
	}
}

func TestComputeVecPacksIntoSimdMasks(t *testing.T) {
	targetX := make([]float64, simd.Width)
	targetY := make([]float64, simd.Width)
	targetZ := make([]float64, simd.Width)
	targetX[0] = 1
	targetX[2] = 50

	vecs, any := ComputeVec(0, 0, 0, targetX, targetY, targetZ, simd.Width, 9, CellPairPolicy, -1)
	if !any {
		t.Fatal("expected at least one masked lane")
	}
	if len(vecs) != 1 {
		t.Fatalf("len(vecs) = %d, want 1", len(vecs))
	}
	if !vecs[0][0] || vecs[0][2] {
		t.Errorf("vecs[0] = %v, want lane 0 true and lane 2 false", vecs[0])
	}
}
