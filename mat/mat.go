// Package mat implements the dense row-major matrix storage the component
// registry uses to back its LJ pair-parameter tables, grounded on the
// teacher's own mat/mat.go.
package mat

// Matrix is a dense row-major matrix of float64 values.
type Matrix struct {
	Vals          []float64
	Width, Height int
}

// NewMatrix wraps vals as a width x height row-major matrix.
func NewMatrix(vals []float64, width, height int) *Matrix {
	if width <= 0 {
		panic("width must be positive.")
	} else if height <= 0 {
		panic("height must be positive.")
	} else if width*height != len(vals) {
		panic("height * width must equal len(vals).")
	}

	return &Matrix{Vals: vals, Width: width, Height: height}
}
