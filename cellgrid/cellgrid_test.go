package cellgrid

import (
	"testing"

	"github.com/mdcore/mdcore/molecule"
	"github.com/mdcore/mdcore/vec3"
)

func TestCartesianRankCoordRoundTrip(t *testing.T) {
	c := NewCartesian(0, [3]int{2, 3, 4}, vec3.V{10, 10, 10})
	for rank := 0; rank < 24; rank++ {
		coord := c.RankCoord(rank)
		if got := c.CoordRank(coord); got != rank {
			t.Errorf("CoordRank(RankCoord(%d)) = %d, want %d", rank, got, rank)
		}
	}
}

func TestCartesianSubdomainTilesGlobalDomain(t *testing.T) {
	dims := [3]int{2, 2, 2}
	global := vec3.V{10, 10, 10}
	for rank := 0; rank < 8; rank++ {
		c := NewCartesian(rank, dims, global)
		w := c.SubdomainWidth()
		if w != (vec3.V{5, 5, 5}) {
			t.Fatalf("rank %d: SubdomainWidth() = %v, want {5 5 5}", rank, w)
		}
		origin := c.SubdomainOrigin()
		for d := 0; d < 3; d++ {
			if origin[d] != 0 && origin[d] != 5 {
				t.Errorf("rank %d: SubdomainOrigin()[%d] = %g, want 0 or 5", rank, d, origin[d])
			}
		}
	}
}

func TestCartesianNeighborQueryWrapsPeriodically(t *testing.T) {
	c := NewCartesian(0, [3]int{2, 1, 1}, vec3.V{10, 10, 10})
	rank, wrapped := c.NeighborQuery([3]int{-1, 0, 0})
	if rank != 1 {
		t.Errorf("rank 0's -x neighbor = %d, want 1 (periodic wrap)", rank)
	}
	if !wrapped[0] {
		t.Error("wrapped[0] should be true for a periodic wrap on a 2-rank axis")
	}
}

func TestCartesianFaceAligned(t *testing.T) {
	c := NewCartesian(0, [3]int{2, 1, 1}, vec3.V{10, 10, 10})
	if !c.FaceAligned(0) {
		t.Error("axis 0 has 2 ranks, should be FaceAligned")
	}
	if c.FaceAligned(1) {
		t.Error("axis 1 has 1 rank, should not be FaceAligned")
	}
}

func TestNewGridRejectsTooFewCellsPerCutoff(t *testing.T) {
	arena := molecule.NewArena()
	_, err := New(arena, vec3.V{}, vec3.V{1, 1, 1}, 2.0)
	if err == nil {
		t.Fatal("expected a GeometryError when subdomain width < cutoff")
	}
}

func TestGridInsertRemoveAndCellAssignment(t *testing.T) {
	arena := molecule.NewArena()
	g, err := New(arena, vec3.V{}, vec3.V{10, 10, 10}, 2.0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	idx := arena.Insert(molecule.Molecule{R: vec3.V{1, 1, 1}})
	if err := g.Insert(idx, vec3.V{1, 1, 1}); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	var found bool
	for _, c := range g.Cells() {
		for _, r := range c.Residents {
			if r == idx {
				found = true
				if c.Halo {
					t.Error("a molecule inside the owned subdomain should not land in a halo cell")
				}
			}
		}
	}
	if !found {
		t.Fatal("inserted molecule not found in any cell")
	}

	g.Remove(idx)
	for _, c := range g.Cells() {
		for _, r := range c.Residents {
			if r == idx {
				t.Error("molecule still resident after Remove")
			}
		}
	}
}

func TestGridInsertBeyondHaloMarginErrors(t *testing.T) {
	arena := molecule.NewArena()
	g, err := New(arena, vec3.V{}, vec3.V{10, 10, 10}, 2.0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	idx := arena.Insert(molecule.Molecule{})
	if err := g.Insert(idx, vec3.V{1000, 1000, 1000}); err == nil {
		t.Error("expected a GeometryError for a position far outside the grid")
	}
}

func TestGridRebinRepositionsOwnedMolecules(t *testing.T) {
	arena := molecule.NewArena()
	g, err := New(arena, vec3.V{}, vec3.V{10, 10, 10}, 2.0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	idx := arena.Insert(molecule.Molecule{R: vec3.V{1, 1, 1}})
	if err := g.Insert(idx, vec3.V{1, 1, 1}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	m, _ := arena.Get(idx)
	m.R = vec3.V{9, 9, 9}

	if err := g.Rebin([]molecule.Index{idx}); err != nil {
		t.Fatalf("Rebin: %v", err)
	}

	oldCell := g.CellAt(g.FlatIndex(g.CellCoord(vec3.V{1, 1, 1})))
	for _, r := range oldCell.Residents {
		if r == idx {
			t.Error("Rebin left the molecule in its old cell")
		}
	}
	newCell := g.CellAt(g.FlatIndex(g.CellCoord(vec3.V{9, 9, 9})))
	var found bool
	for _, r := range newCell.Residents {
		if r == idx {
			found = true
		}
	}
	if !found {
		t.Error("Rebin did not reinsert the molecule at its new position")
	}
}

func TestHalfShellOffsetsCoverEachUnorderedPairOnce(t *testing.T) {
	half := HalfShellOffsets()
	if len(half) != 13 {
		t.Fatalf("len(HalfShellOffsets()) = %d, want 13", len(half))
	}
	seen := map[[3]int]bool{}
	for _, o := range half {
		neg := [3]int{-o[0], -o[1], -o[2]}
		if seen[neg] {
			t.Errorf("HalfShellOffsets contains both %v and its negation %v", o, neg)
		}
		seen[o] = true
	}
}

func TestNeighborOffsetsHas26(t *testing.T) {
	if got := len(NeighborOffsets()); got != 26 {
		t.Errorf("len(NeighborOffsets()) = %d, want 26", got)
	}
}
