package store

import (
	"testing"

	"github.com/mdcore/mdcore/cellgrid"
	"github.com/mdcore/mdcore/component"
	"github.com/mdcore/mdcore/molecule"
	"github.com/mdcore/mdcore/simd"
	"github.com/mdcore/mdcore/vec3"
)

func TestPoolGetPutReusesSlabs(t *testing.T) {
	p := NewPool()
	s1 := p.Get()
	p.Put(s1)
	s2 := p.Get()
	if s1 != s2 {
		t.Error("Pool.Get after Put should return the same Slab instance, got a fresh allocation")
	}
}

func TestPoolGetOnEmptyPoolAllocatesFresh(t *testing.T) {
	p := NewPool()
	s := p.Get()
	if s == nil {
		t.Fatal("Pool.Get on an empty pool returned nil")
	}
}

func TestSlabResizePadsToSimdWidth(t *testing.T) {
	var s Slab
	s.Resize(3, 5, 0, 0, 0)
	if len(s.LJ.PosX) != simd.PadLen(5) {
		t.Errorf("len(LJ.PosX) = %d, want %d (padded)", len(s.LJ.PosX), simd.PadLen(5))
	}
	if s.LJ.N != 5 {
		t.Errorf("LJ.N = %d, want 5", s.LJ.N)
	}
	if len(s.molecules) != 3 {
		t.Errorf("len(molecules) = %d, want 3", len(s.molecules))
	}
}

func TestSlabResizeZeroesPaddingTail(t *testing.T) {
	var s Slab
	s.Resize(1, 3, 0, 0, 0)
	for i := range s.LJ.PosX {
		s.LJ.PosX[i] = 9
	}
	s.Resize(1, 2, 0, 0, 0) // shrink: reuses backing array, must re-zero
	for i, v := range s.LJ.PosX {
		if v != 0 {
			t.Errorf("PosX[%d] = %g after Resize, want 0 (padding must be cleared on reuse)", i, v)
		}
	}
}

func TestSlabResizeReusesCapacityWithoutReallocating(t *testing.T) {
	var s Slab
	s.Resize(1, 4, 0, 0, 0)
	orig := &s.LJ.PosX[0]
	s.Resize(1, 2, 0, 0, 0) // smaller, should reuse backing array
	if &s.LJ.PosX[0] != orig {
		t.Error("Resize to a smaller count reallocated instead of reusing capacity")
	}
}

func testReg(t *testing.T) *component.Registry {
	t.Helper()
	reg, err := component.NewRegistry([]component.Template{{
		LJSites:   []component.LJSite{{DBody: [3]float64{0, 0, 0.5}, Epsilon: 1, Sigma: 1, Mass: 1}},
		TotalMass: 1,
	}}, 5.0)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

// TestLoadFromPopulatesSitePositionsInLabFrame checks that LoadFrom rotates
// a body-frame LJ site offset into the lab frame using the molecule's
// orientation and adds it to the molecule's COM.
func TestLoadFromPopulatesSitePositionsInLabFrame(t *testing.T) {
	reg := testReg(t)
	arena := molecule.NewArena()
	idx := arena.Insert(molecule.Molecule{R: vec3.V{1, 2, 3}, Q: vec3.Identity()})
	cell := &cellgrid.Cell{Residents: []molecule.Index{idx}}

	pool := NewPool()
	slab := pool.Get()
	LoadFrom(slab, cell, arena, reg)

	if slab.LJ.N != 1 {
		t.Fatalf("LJ.N = %d, want 1", slab.LJ.N)
	}
	want := vec3.V{1, 2, 3.5}
	got := slab.LJ.Pos(0)
	if got != want {
		t.Errorf("LJ site 0 lab-frame position = %v, want %v", got, want)
	}
	if slab.LJ.COM(0) != (vec3.V{1, 2, 3}) {
		t.Errorf("LJ site 0 COM = %v, want {1 2 3}", slab.LJ.COM(0))
	}
	if slab.LJ.GlobalID[0] != reg.GlobalLJSiteID(0, 0) {
		t.Errorf("LJ site 0 GlobalID = %d, want %d", slab.LJ.GlobalID[0], reg.GlobalLJSiteID(0, 0))
	}
}

// TestStoreToScattersForceBackOntoOwningMolecule checks the postprocess
// round-trip: a force accumulated on a slab's LJ site array is scattered
// back onto the correct arena molecule by StoreTo.
func TestStoreToScattersForceBackOntoOwningMolecule(t *testing.T) {
	reg := testReg(t)
	arena := molecule.NewArena()
	idx := arena.Insert(molecule.Molecule{R: vec3.V{0, 0, 0}, Q: vec3.Identity()})
	cell := &cellgrid.Cell{Residents: []molecule.Index{idx}}

	pool := NewPool()
	slab := pool.Get()
	LoadFrom(slab, cell, arena, reg)
	slab.LJ.AddForce(0, vec3.V{1, 2, 3})

	StoreTo(slab, arena)

	m, ok := arena.Get(idx)
	if !ok {
		t.Fatal("molecule missing after StoreTo")
	}
	if m.F != (vec3.V{1, 2, 3}) {
		t.Errorf("m.F = %v, want {1 2 3}", m.F)
	}
}

func TestAddTorqueAccumulatesOntoTorqueArrays(t *testing.T) {
	var sa SiteArray
	sa.resize(1)
	sa.AddTorque(0, vec3.V{1, 1, 1})
	sa.AddTorque(0, vec3.V{2, 2, 2})
	if sa.TorqueX[0] != 3 || sa.TorqueY[0] != 3 || sa.TorqueZ[0] != 3 {
		t.Errorf("torque after two AddTorque calls = (%g %g %g), want (3 3 3)", sa.TorqueX[0], sa.TorqueY[0], sa.TorqueZ[0])
	}
}
