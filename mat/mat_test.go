package mat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMatrixWrapsValsWithDimensions(t *testing.T) {
	m := NewMatrix([]float64{1, 2, 3, 4, 5, 6}, 3, 2)
	assert.Equal(t, 3, m.Width)
	assert.Equal(t, 2, m.Height)
	assert.Equal(t, 5.0, m.Vals[4])
}

func TestNewMatrixPanicsOnBadDimensions(t *testing.T) {
	cases := []struct {
		name          string
		width, height int
		n             int
	}{
		{"zero width", 0, 2, 0},
		{"zero height", 2, 0, 0},
		{"mismatched length", 2, 2, 3},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Panics(t, func() {
				NewMatrix(make([]float64, c.n), c.width, c.height)
			})
		})
	}
}
