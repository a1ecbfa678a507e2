package simd

import "testing"

func TestPadLen(t *testing.T) {
	cases := map[int]int{0: 0, 1: Width, Width: Width, Width + 1: 2 * Width, 2 * Width: 2 * Width}
	for n, want := range cases {
		if got := PadLen(n); got != want {
			t.Errorf("PadLen(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestLoadStoreRoundTrip(t *testing.T) {
	buf := make([]float64, 2*Width)
	v := Vec{1, 2, 3, 4}
	Store(buf, Width, v)
	got := Load(buf, Width)
	if got != v {
		t.Errorf("Load(Store(v)) = %v, want %v", got, v)
	}
}

func TestArithmetic(t *testing.T) {
	a := Vec{1, 2, 3, 4}
	b := Vec{10, 20, 30, 40}
	if got := Add(a, b); got != (Vec{11, 22, 33, 44}) {
		t.Errorf("Add = %v", got)
	}
	if got := Sub(b, a); got != (Vec{9, 18, 27, 36}) {
		t.Errorf("Sub = %v", got)
	}
	if got := Mul(a, b); got != (Vec{10, 40, 90, 160}) {
		t.Errorf("Mul = %v", got)
	}
	if got := Scale(a, 2); got != (Vec{2, 4, 6, 8}) {
		t.Errorf("Scale = %v", got)
	}
}

func TestSelectDiscardsUnmaskedLanes(t *testing.T) {
	v := Vec{1, 2, 3, 4}
	m := Mask{true, false, true, false}
	got := Select(v, m)
	want := Vec{1, 0, 3, 0}
	if got != want {
		t.Errorf("Select(%v,%v) = %v, want %v", v, m, got, want)
	}
}

func TestMaskAny(t *testing.T) {
	if (Mask{false, false, false, false}).Any() {
		t.Error("Any() true for all-false mask")
	}
	if !(Mask{false, true, false, false}).Any() {
		t.Error("Any() false for mask with a set lane")
	}
}

func TestSumMasked(t *testing.T) {
	v := Vec{1, 2, 3, 4}
	m := Mask{true, false, true, true}
	if got := SumMasked(v, m); got != 8 {
		t.Errorf("SumMasked(%v,%v) = %g, want 8", v, m, got)
	}
}

func TestReciprocalAndSqrtMaskedDiscardBadLanes(t *testing.T) {
	// A zero lane (as would appear for a padded, unused site) produces
	// +Inf under ReciprocalMasked; the caller must discard it with Select
	// before it reaches an accumulator, per spec.md's compute-then-mask
	// discipline.
	x := Vec{4, 0, 9, 16}
	recip := ReciprocalMasked(x)
	m := Mask{true, false, true, true}
	got := Select(recip, m)
	want := Vec{0.25, 0, 1.0 / 9, 1.0 / 16}
	for i := range got {
		if got[i] != want[i] {
			t.Errorf("Select(ReciprocalMasked(%v),%v)[%d] = %g, want %g", x, m, i, got[i], want[i])
		}
	}

	sq := SqrtMasked(Vec{4, 9, 16, 25})
	if sq != (Vec{2, 3, 4, 5}) {
		t.Errorf("SqrtMasked = %v", sq)
	}
}

func TestLessThanAnd(t *testing.T) {
	a := Vec{1, 2, 3, 4}
	b := Vec{2, 2, 2, 2}
	lt := LessThan(a, b)
	want := Mask{true, false, false, false}
	if lt != want {
		t.Errorf("LessThan(%v,%v) = %v, want %v", a, b, lt, want)
	}
	both := And(lt, Mask{true, true, true, true})
	if both != want {
		t.Errorf("And = %v, want %v", both, want)
	}
}
