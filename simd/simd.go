// Package simd provides the abstract "SIMD width W" vocabulary spec.md's
// Design Notes call for: load aligned, store aligned, broadcast, plus the
// masked arithmetic the pair kernel is built from. Go has no portable
// intrinsic vector type, so a lane group is modeled as a fixed-size array
// and the "aligned buffer" invariant is expressed as a length multiple of
// Width, zero-padded at the tail — the same padding idiom the teacher uses
// for its unit buffers in density.MonteCarlo, generalized to a compile-time
// lane count instead of a single flat buffer.
package simd

import "math"

// Width is the number of float64 lanes processed per vector op. 4 matches a
// 256-bit AVX2 register; tail lanes below Width are still computed (at the
// cost of wasted arithmetic on padding) rather than special-cased, which is
// the masking strategy spec.md §4.4 describes.
const Width = 4

// Vec is one SIMD-width group of float64 lanes.
type Vec [Width]float64

// Mask is a per-lane boolean selector. A lane holding false must not let its
// (possibly ill-defined, e.g. divide-by-zero) computed value reach an
// accumulator; see Select and SumMasked.
type Mask [Width]bool

// Zero returns the zero vector.
func Zero() Vec { return Vec{} }

// Broadcast returns a vector with every lane set to x.
func Broadcast(x float64) Vec {
	var v Vec
	for i := range v {
		v[i] = x
	}
	return v
}

// PadLen rounds n up to the next multiple of Width. ParticleStore and
// DistLookup buffers are always allocated at PadLen(n) so that a tail load
// never reads past the slice.
func PadLen(n int) int {
	r := n % Width
	if r == 0 {
		return n
	}
	return n + (Width - r)
}

// Load reads Width contiguous lanes from buf starting at offset. The caller
// must ensure len(buf) >= offset+Width, which PadLen guarantees for any
// offset that is itself a multiple of Width.
func Load(buf []float64, offset int) Vec {
	var v Vec
	copy(v[:], buf[offset:offset+Width])
	return v
}

// Store writes v's lanes into buf starting at offset.
func Store(buf []float64, offset int, v Vec) {
	copy(buf[offset:offset+Width], v[:])
}

// Add returns the lanewise sum of a and b.
func Add(a, b Vec) Vec {
	var v Vec
	for i := range v {
		v[i] = a[i] + b[i]
	}
	return v
}

// Sub returns the lanewise difference a-b.
func Sub(a, b Vec) Vec {
	var v Vec
	for i := range v {
		v[i] = a[i] - b[i]
	}
	return v
}

// Mul returns the lanewise product of a and b.
func Mul(a, b Vec) Vec {
	var v Vec
	for i := range v {
		v[i] = a[i] * b[i]
	}
	return v
}

// Scale returns a scaled by the scalar s in every lane.
func Scale(a Vec, s float64) Vec {
	var v Vec
	for i := range v {
		v[i] = a[i] * s
	}
	return v
}

// ReciprocalMasked computes 1/x lanewise. Per spec.md §4.4's numeric
// semantics, the division always runs unmasked first (so a padded, zero
// input lane produces +Inf rather than panicking or needing a branch) and
// the mask is applied by the caller afterward, before the reciprocal's
// result is used in any further arithmetic.
func ReciprocalMasked(x Vec) Vec {
	var v Vec
	for i := range v {
		v[i] = 1 / x[i]
	}
	return v
}

// SqrtMasked computes sqrt(x) lanewise under the same discard-after rule as
// ReciprocalMasked: NaN lanes from a negative (padding-induced) input are
// safe because the mask discards them before use.
func SqrtMasked(x Vec) Vec {
	var v Vec
	for i := range v {
		v[i] = math.Sqrt(x[i])
	}
	return v
}

// Select zeroes out every lane of v whose mask bit is false. This is the
// point in the pipeline at which an unmasked reciprocal/sqrt's
// possibly-NaN or possibly-Inf output for a padded lane is discarded.
func Select(v Vec, m Mask) Vec {
	var out Vec
	for i := range out {
		if m[i] {
			out[i] = v[i]
		}
	}
	return out
}

// Any reports whether any lane of m is set — the scalar disjunction
// DistLookup returns as its early-out predicate (spec.md §4.3).
func (m Mask) Any() bool {
	for _, b := range m {
		if b {
			return true
		}
	}
	return false
}

// SumMasked sums only the lanes of v selected by m.
func SumMasked(v Vec, m Mask) float64 {
	var s float64
	for i := range v {
		if m[i] {
			s += v[i]
		}
	}
	return s
}

// LessThan builds a mask selecting lanes of a strictly less than the
// matching lane of b.
func LessThan(a, b Vec) Mask {
	var m Mask
	for i := range m {
		m[i] = a[i] < b[i]
	}
	return m
}

// And returns the lanewise logical AND of two masks.
func And(a, b Mask) Mask {
	var m Mask
	for i := range m {
		m[i] = a[i] && b[i]
	}
	return m
}
