// Package distlookup implements spec.md §4.3's DistLookup: given a source
// molecule's center-of-mass position and a target cell's site-level
// COM-broadcast array, produce a per-site mask of "within cutoff" plus the
// scalar disjunction used as an early-out predicate.
package distlookup

import (
	"github.com/mdcore/mdcore/simd"
)

// Policy selects the lower bound applied to the target site index, per
// spec.md §4.3.
type Policy int

const (
	// SingleCellPolicy applies when source and target cells are the same
	// cell: only target sites strictly after the source site are tested,
	// guarding against double-counting a pair and against self-pairs.
	SingleCellPolicy Policy = iota
	// CellPairPolicy applies when source and target cells differ: every
	// target site is a candidate.
	CellPairPolicy
)

// Compute builds the padded mask array over the target site-COM axis
// arrays (length simd.PadLen(trueCount)) marking entries within cutoff of
// (srcX, srcY, srcZ), and returns whether any entry is set (the early-out
// predicate of spec.md §4.3). sourceSiteIndex is the source site's
// position within the shared cell's site array; it is ignored under
// CellPairPolicy.
func Compute(
	srcX, srcY, srcZ float64,
	targetComX, targetComY, targetComZ []float64,
	trueCount int,
	cutoff2 float64,
	policy Policy,
	sourceSiteIndex int,
) ([]bool, bool) {
	padded := simd.PadLen(trueCount)
	mask := make([]bool, padded)

	lowerBound := 0
	if policy == SingleCellPolicy {
		lowerBound = sourceSiteIndex + 1
	}

	any := false
	for j := lowerBound; j < trueCount; j++ {
		dx := srcX - targetComX[j]
		dy := srcY - targetComY[j]
		dz := srcZ - targetComZ[j]
		r2 := dx*dx + dy*dy + dz*dz
		if r2 < cutoff2 {
			mask[j] = true
			any = true
		}
	}
	// Tail lanes (trueCount..padded) stay false: padded slots hold zero
	// coordinates per store.SiteArray.resize, so their squared distance to
	// the source would otherwise spuriously pass the cutoff test.
	return mask, any
}

// ComputeVec is Compute expressed over simd.Vec-width batches, for callers
// that want the mask in simd.Mask form to feed directly into kernel
// routines built on simd.Select/simd.SumMasked.
func ComputeVec(
	srcX, srcY, srcZ float64,
	targetComX, targetComY, targetComZ []float64,
	trueCount int,
	cutoff2 float64,
	policy Policy,
	sourceSiteIndex int,
) ([]simd.Mask, bool) {
	boolMask, any := Compute(srcX, srcY, srcZ, targetComX, targetComY, targetComZ, trueCount, cutoff2, policy, sourceSiteIndex)
	nVec := len(boolMask) / simd.Width
	out := make([]simd.Mask, nVec)
	for v := 0; v < nVec; v++ {
		var m simd.Mask
		for lane := 0; lane < simd.Width; lane++ {
			m[lane] = boolMask[v*simd.Width+lane]
		}
		out[v] = m
	}
	return out, any
}
