// Package cellgrid implements spec.md §4's CellGrid: a uniform cubic cell
// grid over a process subdomain with a one-cell-wide halo layer, and the
// molecule-to-cell assignment that Traversal and HaloExchange both read.
//
// The integer cell-index arithmetic (flatten/unflatten, periodic wrap,
// bounds check) is a direct, materially-rewritten generalization of the
// teacher's geom.Grid/CellBounds (gotetra/geom/grid.go): the teacher indexes
// a cosmological density grid with a single global origin and no halo
// concept, while mdcore needs a per-rank subdomain grid whose outermost
// ring of cells is a read-only halo (spec.md §3 "CellGrid").
package cellgrid

import (
	"math"

	"github.com/mdcore/mdcore/errs"
	"github.com/mdcore/mdcore/molecule"
	"github.com/mdcore/mdcore/vec3"
)

// Cell owns the molecule references resident in one grid cube, per
// spec.md §3 "Cell". Halo is true for the one-cell-wide margin mirroring
// neighbor-rank data.
type Cell struct {
	Coord    [3]int
	Halo     bool
	Residents []molecule.Index
}

// Grid is a uniform cubic cell grid covering a rank's subdomain plus a
// one-cell halo margin on every face, per spec.md §3/§4.
type Grid struct {
	Arena *molecule.Arena

	origin    vec3.V // subdomain (non-halo) origin, lab frame
	width     vec3.V // subdomain (non-halo) width
	cellWidth float64
	dims      [3]int // including the 2 halo cells added per axis
	cells     []Cell

	// molCell tracks which flat cell index currently owns each live arena
	// slot, so Remove-before-move doesn't need a linear scan.
	molCell map[molecule.Index]int
}

// New builds a Grid for a subdomain of the given origin/width and cutoff
// radius. Cell edge length is at least cutoff, per spec.md §3 "CellGrid"
// invariant; New returns GeometryError if the subdomain holds fewer
// than one cell per cutoff along any axis.
func New(arena *molecule.Arena, origin, width vec3.V, cutoff float64) (*Grid, error) {
	if cutoff <= 0 {
		return nil, errs.New(errs.GeometryError, "cutoff must be positive, got %g", cutoff)
	}

	g := &Grid{Arena: arena, origin: origin, width: width, molCell: make(map[molecule.Index]int)}

	var cellsPerDim [3]int
	for d := 0; d < 3; d++ {
		n := int(math.Floor(width[d] / cutoff))
		if n < 1 {
			return nil, errs.New(errs.GeometryError,
				"subdomain width %g on axis %d holds fewer than one cell per cutoff %g", width[d], d, cutoff)
		}
		cellsPerDim[d] = n
	}
	// cellWidth must be uniform across axes and >= cutoff; take the largest
	// per-axis width/cellsPerDim so every axis's cells are >= cutoff wide.
	minCells := cellsPerDim[0]
	for d := 1; d < 3; d++ {
		if cellsPerDim[d] < minCells {
			minCells = cellsPerDim[d]
		}
	}
	g.cellWidth = 0
	for d := 0; d < 3; d++ {
		cw := width[d] / float64(cellsPerDim[d])
		if cw > g.cellWidth {
			g.cellWidth = cw
		}
	}

	for d := 0; d < 3; d++ {
		g.dims[d] = cellsPerDim[d] + 2 // +1 halo cell on each face
	}

	n := g.dims[0] * g.dims[1] * g.dims[2]
	g.cells = make([]Cell, n)
	for z := 0; z < g.dims[2]; z++ {
		for y := 0; y < g.dims[1]; y++ {
			for x := 0; x < g.dims[0]; x++ {
				idx := g.flatten([3]int{x, y, z})
				g.cells[idx].Coord = [3]int{x, y, z}
				g.cells[idx].Halo = x == 0 || y == 0 || z == 0 ||
					x == g.dims[0]-1 || y == g.dims[1]-1 || z == g.dims[2]-1
			}
		}
	}

	return g, nil
}

// Dims returns the cell grid dimensions, including the halo margin.
func (g *Grid) Dims() [3]int { return g.dims }

// CellWidth returns the edge length of a cell.
func (g *Grid) CellWidth() float64 { return g.cellWidth }

// Cells returns the full flat cell slice in flat-index order (x fastest),
// with owned and halo cells interleaved; callers filter on Cell.Halo.
func (g *Grid) Cells() []Cell { return g.cells }

// CellAt returns the cell at flat index i.
func (g *Grid) CellAt(i int) *Cell { return &g.cells[i] }

func (g *Grid) flatten(c [3]int) int {
	return c[0] + c[1]*g.dims[0] + c[2]*g.dims[0]*g.dims[1]
}

// Unflatten returns the cell coordinate for a flat index.
func (g *Grid) Unflatten(i int) [3]int {
	x := i % g.dims[0]
	y := (i / g.dims[0]) % g.dims[1]
	z := i / (g.dims[0] * g.dims[1])
	return [3]int{x, y, z}
}

// CellCoord maps a lab-frame position to the cell coordinate owning it
// (halo cells included: a position one cell outside the subdomain maps to
// the halo ring, not clamped).
func (g *Grid) CellCoord(pos vec3.V) [3]int {
	var c [3]int
	for d := 0; d < 3; d++ {
		rel := pos[d] - g.origin[d]
		ci := int(math.Floor(rel/g.cellWidth)) + 1 // +1 to skip the halo ring
		c[d] = ci
	}
	return c
}

// InBounds reports whether a cell coordinate (including the halo ring)
// lies inside the grid.
func (g *Grid) InBounds(c [3]int) bool {
	for d := 0; d < 3; d++ {
		if c[d] < 0 || c[d] >= g.dims[d] {
			return false
		}
	}
	return true
}

// Insert places molecule idx (whose current position is pos) into the
// cell owning pos. Returns GeometryError if pos falls more than one cell
// outside the subdomain — spec.md §3's "molecules whose displacement
// exceeds one cell per step are a configuration error".
func (g *Grid) Insert(idx molecule.Index, pos vec3.V) error {
	c := g.CellCoord(pos)
	if !g.InBounds(c) {
		return errs.New(errs.GeometryError,
			"molecule displaced beyond the halo margin in one step (cell coord %v out of %v)", c, g.dims)
	}
	flat := g.flatten(c)
	g.cells[flat].Residents = append(g.cells[flat].Residents, idx)
	g.molCell[idx] = flat
	return nil
}

// Remove deletes idx from whichever cell currently holds it.
func (g *Grid) Remove(idx molecule.Index) {
	flat, ok := g.molCell[idx]
	if !ok {
		return
	}
	res := g.cells[flat].Residents
	for i, r := range res {
		if r == idx {
			res[i] = res[len(res)-1]
			g.cells[flat].Residents = res[:len(res)-1]
			break
		}
	}
	delete(g.molCell, idx)
}

// Clear empties every cell's resident list without touching the arena,
// used before a full re-bin pass.
func (g *Grid) Clear() {
	for i := range g.cells {
		g.cells[i].Residents = g.cells[i].Residents[:0]
	}
	for k := range g.molCell {
		delete(g.molCell, k)
	}
}

// Rebin clears the grid and reinserts every currently-live, non-halo
// molecule from the arena at its current position. Halo molecules are
// populated separately by the halo exchange, not by Rebin.
func (g *Grid) Rebin(owned []molecule.Index) error {
	g.Clear()
	for _, idx := range owned {
		m, ok := g.Arena.Get(idx)
		if !ok || m.Halo {
			continue
		}
		if err := g.Insert(idx, m.R); err != nil {
			return err
		}
	}
	return nil
}

// NeighborOffsets enumerates the 26 non-self offsets of a 3x3x3
// neighborhood, the candidate interaction partners named in the GLOSSARY's
// "Cell-linked list" entry.
func NeighborOffsets() [][3]int {
	offs := make([][3]int, 0, 26)
	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 && dz == 0 {
					continue
				}
				offs = append(offs, [3]int{dx, dy, dz})
			}
		}
	}
	return offs
}

// HalfShellOffsets enumerates 13 of the 26 neighbor offsets such that each
// unordered cell pair (c, c+offset) is visited exactly once when iterated
// over every owned cell c — the half-shell traversal spec.md §4.5 assumes.
func HalfShellOffsets() [][3]int {
	var offs [][3]int
	for _, o := range NeighborOffsets() {
		if o[2] > 0 || (o[2] == 0 && o[1] > 0) || (o[2] == 0 && o[1] == 0 && o[0] > 0) {
			offs = append(offs, o)
		}
	}
	return offs
}

// FlatIndex exposes flatten for packages that must convert a coordinate to
// the same flat index Grid uses internally (Traversal's lexicographic
// tie-break in spec.md §4.5).
func (g *Grid) FlatIndex(c [3]int) int { return g.flatten(c) }
