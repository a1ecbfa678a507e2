package cellgrid

import "github.com/mdcore/mdcore/vec3"

// Decomposition is the pluggable scheme binding each process rank to a
// sub-volume of the global domain, per spec.md §4.6 "Construction": a
// halo-region enumerator matches each outgoing region to a neighbor rank
// by "consulting the decomposition's neighbor query."
type Decomposition interface {
	Rank() int
	NumRanks() int

	// SubdomainOrigin/SubdomainWidth describe this rank's owned (non-halo)
	// box in the global lab frame.
	SubdomainOrigin() vec3.V
	SubdomainWidth() vec3.V
	GlobalWidth() vec3.V

	// NeighborQuery resolves which rank owns the subdomain adjacent to
	// this one in the given 3-axis cell offset direction (each component
	// -1, 0, or +1), and reports whether the lookup wrapped around the
	// periodic boundary on each axis — the "sequential shortcut" of
	// spec.md §4.6 applies when a rank is its own neighbor on an axis.
	NeighborQuery(offset [3]int) (rank int, wrapped [3]bool)
}

// Cartesian is the default Decomposition: ranks are arranged on a 3D
// Cartesian process grid (spec.md §5.1's "Cartesian grid topology"), each
// owning an equal-sized box of the global domain.
type Cartesian struct {
	procDims [3]int
	rank     int
	global   vec3.V
}

// NewCartesian builds a Cartesian decomposition of rank `rank` out of
// `procDims[0]*procDims[1]*procDims[2]` total ranks tiling a box-shaped
// global domain with per-axis extent `globalWidth`.
func NewCartesian(rank int, procDims [3]int, globalWidth vec3.V) *Cartesian {
	return &Cartesian{procDims: procDims, rank: rank, global: globalWidth}
}

func (c *Cartesian) Rank() int { return c.rank }

func (c *Cartesian) NumRanks() int { return c.procDims[0] * c.procDims[1] * c.procDims[2] }

// RankCoord returns the Cartesian process coordinate for a rank id,
// x-major ordering (matching the teacher's catalog.Header.Idx convention
// of "x-major ordering is used" for spatial decomposition indices).
func (c *Cartesian) RankCoord(rank int) [3]int {
	px, py := c.procDims[0], c.procDims[1]
	x := rank % px
	y := (rank / px) % py
	z := rank / (px * py)
	return [3]int{x, y, z}
}

// CoordRank is the inverse of RankCoord, wrapping each axis periodically.
func (c *Cartesian) CoordRank(coord [3]int) int {
	wrap := func(v, n int) int {
		v %= n
		if v < 0 {
			v += n
		}
		return v
	}
	x := wrap(coord[0], c.procDims[0])
	y := wrap(coord[1], c.procDims[1])
	z := wrap(coord[2], c.procDims[2])
	return x + y*c.procDims[0] + z*c.procDims[0]*c.procDims[1]
}

func (c *Cartesian) SubdomainWidth() vec3.V {
	return vec3.V{
		c.global[0] / float64(c.procDims[0]),
		c.global[1] / float64(c.procDims[1]),
		c.global[2] / float64(c.procDims[2]),
	}
}

func (c *Cartesian) SubdomainOrigin() vec3.V {
	coord := c.RankCoord(c.rank)
	w := c.SubdomainWidth()
	return vec3.V{
		float64(coord[0]) * w[0],
		float64(coord[1]) * w[1],
		float64(coord[2]) * w[2],
	}
}

func (c *Cartesian) GlobalWidth() vec3.V { return c.global }

func (c *Cartesian) NeighborQuery(offset [3]int) (int, [3]bool) {
	coord := c.RankCoord(c.rank)
	var wrapped [3]bool
	target := [3]int{coord[0] + offset[0], coord[1] + offset[1], coord[2] + offset[2]}
	dims := [3]int{c.procDims[0], c.procDims[1], c.procDims[2]}
	for d := 0; d < 3; d++ {
		if target[d] < 0 || target[d] >= dims[d] {
			wrapped[d] = true
		}
	}
	return c.CoordRank(target), wrapped
}

// FaceAligned reports whether this decomposition splits the global domain
// into more than one rank along axis d; when it does not, a rank spans the
// whole domain on that axis and the "sequential shortcut" of spec.md §4.6
// applies (periodic wrap/halo copy performed locally, no network traffic).
func (c *Cartesian) FaceAligned(axis int) bool { return c.procDims[axis] > 1 }
