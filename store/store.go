// Package store implements spec.md §4.2's ParticleStore: the per-cell SoA
// buffers the pair kernel and DistLookup operate on. Four parallel
// sub-arrays (LJ, charge, dipole, quadrupole) replace the source's
// polymorphic Site objects, per Design Notes §9 "tagged enumeration of
// sites" — dispatch between interaction kinds becomes a choice of which
// sub-array to read, made once per cell in LoadFrom rather than per-site
// at every pair test.
//
// Every vector quantity (COM, site position, force, orientation, torque)
// is stored as three parallel float64 axis arrays rather than an array of
// 3-vectors, so kernel.go can simd.Load a contiguous run of Width x (or y,
// or z) coordinates directly — true structure-of-arrays, per spec.md §1's
// "structure-of-arrays (SoA) layout to enable explicit SIMD vectorization".
//
// The padded-buffer/pooled-slab idiom is grounded on the teacher's
// density.mcarlo type (gotetra/density/density.go), which keeps a pool of
// reusable []geom.Vec scratch buffers (unitBufs) sized to the widest
// request rather than reallocating per call; Slab generalizes that to four
// site-kind buffers reallocated only when a cell's population grows.
package store

import (
	"sync"

	"github.com/mdcore/mdcore/cellgrid"
	"github.com/mdcore/mdcore/component"
	"github.com/mdcore/mdcore/molecule"
	"github.com/mdcore/mdcore/simd"
	"github.com/mdcore/mdcore/vec3"
)

// SiteArray is one site-kind's parallel buffer set. Every slice has the
// same padded length (a multiple of simd.Width); N holds the true,
// unpadded count. Padding entries are left at their zero value so a tail
// SIMD load sees zero coordinates and zero moments — DistLookup's mask
// ensures they never influence a result (spec.md §4.2 invariant).
type SiteArray struct {
	MolIdx []int // index into the cell's resident-molecule list

	ComX, ComY, ComZ []float64 // owning molecule's COM, broadcast per site
	PosX, PosY, PosZ []float64 // absolute (lab-frame) site position

	ForceX, ForceY, ForceZ []float64 // force accumulator, scattered in StoreTo

	GlobalID []int     // LJ only: global site id for Registry.LJParams
	Charge   []float64 // magnitude: Q (charge/quadrupole) or μ (dipole)

	OrientX, OrientY, OrientZ []float64 // lab-frame orientation (dipole/quad)
	TorqueX, TorqueY, TorqueZ []float64 // torque accumulator (dipole/quad)

	N int
}

func (s *SiteArray) resize(n int) {
	padded := simd.PadLen(n)
	alloc := func(buf []float64) []float64 {
		if cap(buf) >= padded {
			buf = buf[:padded]
		} else {
			buf = make([]float64, padded)
		}
		for i := range buf {
			buf[i] = 0
		}
		return buf
	}
	allocI := func(buf []int) []int {
		if cap(buf) >= padded {
			buf = buf[:padded]
		} else {
			buf = make([]int, padded)
		}
		for i := range buf {
			buf[i] = 0
		}
		return buf
	}

	s.MolIdx = allocI(s.MolIdx)
	s.ComX, s.ComY, s.ComZ = alloc(s.ComX), alloc(s.ComY), alloc(s.ComZ)
	s.PosX, s.PosY, s.PosZ = alloc(s.PosX), alloc(s.PosY), alloc(s.PosZ)
	s.ForceX, s.ForceY, s.ForceZ = alloc(s.ForceX), alloc(s.ForceY), alloc(s.ForceZ)
	s.GlobalID = allocI(s.GlobalID)
	s.Charge = alloc(s.Charge)
	s.OrientX, s.OrientY, s.OrientZ = alloc(s.OrientX), alloc(s.OrientY), alloc(s.OrientZ)
	s.TorqueX, s.TorqueY, s.TorqueZ = alloc(s.TorqueX), alloc(s.TorqueY), alloc(s.TorqueZ)
	s.N = n
}

// Pos returns the lab-frame position of site i as a vec3.V (a convenience
// view; hot loops in kernel.go read ComX/Y/Z or PosX/Y/Z directly).
func (s *SiteArray) Pos(i int) vec3.V { return vec3.V{s.PosX[i], s.PosY[i], s.PosZ[i]} }

// COM returns the broadcast molecule COM of site i as a vec3.V.
func (s *SiteArray) COM(i int) vec3.V { return vec3.V{s.ComX[i], s.ComY[i], s.ComZ[i]} }

// Orient returns the lab-frame orientation of site i as a vec3.V.
func (s *SiteArray) Orient(i int) vec3.V { return vec3.V{s.OrientX[i], s.OrientY[i], s.OrientZ[i]} }

// AddForce accumulates a force contribution onto site i.
func (s *SiteArray) AddForce(i int, f vec3.V) {
	s.ForceX[i] += f[0]
	s.ForceY[i] += f[1]
	s.ForceZ[i] += f[2]
}

// AddTorque accumulates a torque contribution onto site i.
func (s *SiteArray) AddTorque(i int, m vec3.V) {
	s.TorqueX[i] += m[0]
	s.TorqueY[i] += m[1]
	s.TorqueZ[i] += m[2]
}

// Slab is the four-array ParticleStore payload for one cell, checked out
// of a Pool for the duration of one preprocess/kernel/postprocess cycle.
type Slab struct {
	LJ, Charge, Dipole, Quad SiteArray

	// molecules lists the arena indices of this cell's resident molecules,
	// in the same order postprocess scatters force/torque contributions
	// back to.
	molecules []molecule.Index
}

// Molecules returns the slab's resident-molecule arena indices.
func (s *Slab) Molecules() []molecule.Index { return s.molecules }

// Resize reallocates (or reuses, if already large enough) the Slab's
// buffers for the given per-kind site counts, per spec.md §4.2 "resize".
func (s *Slab) Resize(nMol, nLJ, nCharge, nDipole, nQuad int) {
	if cap(s.molecules) >= nMol {
		s.molecules = s.molecules[:nMol]
	} else {
		s.molecules = make([]molecule.Index, nMol)
	}
	s.LJ.resize(nLJ)
	s.Charge.resize(nCharge)
	s.Dipole.resize(nDipole)
	s.Quad.resize(nQuad)
}

// Pool hands out reusable Slabs, guarded by a mutex per spec.md §5 "Shared
// resource policy" (only needed when thread-parallel traversal is
// enabled; the mutex is cheap enough to keep unconditionally).
type Pool struct {
	mu   sync.Mutex
	free []*Slab
}

// NewPool returns an empty Slab pool.
func NewPool() *Pool { return &Pool{} }

// Get checks out a Slab, allocating a new one if the pool is empty.
func (p *Pool) Get() *Slab {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := len(p.free); n > 0 {
		s := p.free[n-1]
		p.free = p.free[:n-1]
		return s
	}
	return &Slab{}
}

// Put returns a Slab to the pool for reuse.
func (p *Pool) Put(s *Slab) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.free = append(p.free, s)
}

// LoadFrom populates slab from cell's resident molecules, rotating
// body-frame site offsets and orientations into the lab frame and zeroing
// force/torque accumulators, per spec.md §4.2 "load_from". Global LJ site
// ids are assigned so PairKernel can look up mixing parameters directly.
func LoadFrom(slab *Slab, cell *cellgrid.Cell, arena *molecule.Arena, reg *component.Registry) {
	nLJ, nCharge, nDipole, nQuad := 0, 0, 0, 0
	for _, idx := range cell.Residents {
		m, ok := arena.Get(idx)
		if !ok {
			continue
		}
		t := reg.Template(int(m.ComponentID))
		nLJ += len(t.LJSites)
		nCharge += len(t.Charges)
		nDipole += len(t.Dipoles)
		nQuad += len(t.Quadrupoles)
	}

	slab.Resize(len(cell.Residents), nLJ, nCharge, nDipole, nQuad)
	copy(slab.molecules, cell.Residents)

	var iLJ, iCharge, iDipole, iQuad int
	for molIdx, idx := range cell.Residents {
		m, ok := arena.Get(idx)
		if !ok {
			continue
		}
		t := reg.Template(int(m.ComponentID))
		rot := m.Q.RotationMatrix()

		for li, s := range t.LJSites {
			pos := vec3.Add(m.R, vec3.RotateByMatrix(rot, s.DBody))
			slab.LJ.MolIdx[iLJ] = molIdx
			slab.LJ.ComX[iLJ], slab.LJ.ComY[iLJ], slab.LJ.ComZ[iLJ] = m.R[0], m.R[1], m.R[2]
			slab.LJ.PosX[iLJ], slab.LJ.PosY[iLJ], slab.LJ.PosZ[iLJ] = pos[0], pos[1], pos[2]
			slab.LJ.GlobalID[iLJ] = reg.GlobalLJSiteID(int(m.ComponentID), li)
			iLJ++
		}
		for _, s := range t.Charges {
			pos := vec3.Add(m.R, vec3.RotateByMatrix(rot, s.DBody))
			slab.Charge.MolIdx[iCharge] = molIdx
			slab.Charge.ComX[iCharge], slab.Charge.ComY[iCharge], slab.Charge.ComZ[iCharge] = m.R[0], m.R[1], m.R[2]
			slab.Charge.PosX[iCharge], slab.Charge.PosY[iCharge], slab.Charge.PosZ[iCharge] = pos[0], pos[1], pos[2]
			slab.Charge.Charge[iCharge] = s.Q
			iCharge++
		}
		for _, s := range t.Dipoles {
			pos := vec3.Add(m.R, vec3.RotateByMatrix(rot, s.DBody))
			orient := vec3.RotateByMatrix(rot, s.OrientationBody)
			slab.Dipole.MolIdx[iDipole] = molIdx
			slab.Dipole.ComX[iDipole], slab.Dipole.ComY[iDipole], slab.Dipole.ComZ[iDipole] = m.R[0], m.R[1], m.R[2]
			slab.Dipole.PosX[iDipole], slab.Dipole.PosY[iDipole], slab.Dipole.PosZ[iDipole] = pos[0], pos[1], pos[2]
			slab.Dipole.Charge[iDipole] = s.Mu
			slab.Dipole.OrientX[iDipole], slab.Dipole.OrientY[iDipole], slab.Dipole.OrientZ[iDipole] = orient[0], orient[1], orient[2]
			iDipole++
		}
		for _, s := range t.Quadrupoles {
			pos := vec3.Add(m.R, vec3.RotateByMatrix(rot, s.DBody))
			orient := vec3.RotateByMatrix(rot, s.OrientationBody)
			slab.Quad.MolIdx[iQuad] = molIdx
			slab.Quad.ComX[iQuad], slab.Quad.ComY[iQuad], slab.Quad.ComZ[iQuad] = m.R[0], m.R[1], m.R[2]
			slab.Quad.PosX[iQuad], slab.Quad.PosY[iQuad], slab.Quad.PosZ[iQuad] = pos[0], pos[1], pos[2]
			slab.Quad.Charge[iQuad] = s.Q
			slab.Quad.OrientX[iQuad], slab.Quad.OrientY[iQuad], slab.Quad.OrientZ[iQuad] = orient[0], orient[1], orient[2]
			iQuad++
		}
	}
}

// StoreTo scatters the slab's accumulated per-site force and torque back
// onto each resident molecule, per spec.md §4.2 "store_to". Halo
// molecules still receive the accumulation (their copy is locally
// consistent); only non-halo resident force ever gets consumed by the
// integrator (spec.md §3 "Ownership").
func StoreTo(slab *Slab, arena *molecule.Arena) {
	scatter := func(sa *SiteArray, torque bool) {
		for i := 0; i < sa.N; i++ {
			m, ok := arena.Get(slab.molecules[sa.MolIdx[i]])
			if !ok {
				continue
			}
			m.F[0] += sa.ForceX[i]
			m.F[1] += sa.ForceY[i]
			m.F[2] += sa.ForceZ[i]
			if torque {
				m.M[0] += sa.TorqueX[i]
				m.M[1] += sa.TorqueY[i]
				m.M[2] += sa.TorqueZ[i]
			}
		}
	}
	scatter(&slab.LJ, false)
	scatter(&slab.Charge, false)
	scatter(&slab.Dipole, true)
	scatter(&slab.Quad, true)
}
