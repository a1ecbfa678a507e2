package reduce

import (
	"sync"
	"testing"

	"github.com/mdcore/mdcore/kernel"
	"github.com/mdcore/mdcore/molecule"
	"github.com/mdcore/mdcore/transport"
	"github.com/mdcore/mdcore/vec3"
)

func TestAllReduceSumsAcrossRanks(t *testing.T) {
	const n = 3
	fab := transport.NewFabric(n)

	results := make([]Totals, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for rank := 0; rank < n; rank++ {
		go func(rank int) {
			defer wg.Done()
			acc := kernel.Accumulator{ULJ6: 6 * float64(rank+1), NPairs: int64(rank + 1)}
			counts := map[uint16]int64{0: int64(rank + 1)}
			results[rank] = AllReduce(fab, rank, acc, counts, 10)
		}(rank)
	}
	wg.Wait()

	// 6*(1+2+3) = 36, divided by 6 -> 6.
	wantULJ := 6.0
	wantPairs := int64(1 + 2 + 3)
	wantCount := int64(1 + 2 + 3)
	wantDensity := float64(wantCount) / 30.0

	for rank, got := range results {
		if got.ULJ != wantULJ {
			t.Errorf("rank %d: ULJ = %g, want %g", rank, got.ULJ, wantULJ)
		}
		if got.NPairs != wantPairs {
			t.Errorf("rank %d: NPairs = %d, want %d", rank, got.NPairs, wantPairs)
		}
		if got.NPerComp[0] != wantCount {
			t.Errorf("rank %d: NPerComp[0] = %d, want %d", rank, got.NPerComp[0], wantCount)
		}
		if got.Density != wantDensity {
			t.Errorf("rank %d: Density = %g, want %g", rank, got.Density, wantDensity)
		}
	}
}

func mass1(uint16) float64 { return 1 }

func TestRemoveMomentumZeroesResidual(t *testing.T) {
	owned := []*molecule.Molecule{
		{V: vec3.V{1, 0, 0}},
		{V: vec3.V{-3, 2, 0}},
		{V: vec3.V{0, -2, 5}},
	}
	p, totalMass := LocalMomentum(owned, mass1)
	RemoveMomentum(owned, p, totalMass)

	if got := MomentumResidual(owned, mass1); got > 1e-12 {
		t.Errorf("MomentumResidual after RemoveMomentum = %g, want ~0", got)
	}
}

func TestRemoveMomentumSkipsHaloMolecules(t *testing.T) {
	halo := &molecule.Molecule{V: vec3.V{100, 0, 0}, Halo: true}
	owned := []*molecule.Molecule{halo, {V: vec3.V{1, 0, 0}}}
	p, totalMass := LocalMomentum(owned, mass1)
	if p != (vec3.V{1, 0, 0}) || totalMass != 1 {
		t.Errorf("LocalMomentum should exclude halo molecules, got p=%v totalMass=%g", p, totalMass)
	}

	RemoveMomentum(owned, p, totalMass)
	if halo.V != (vec3.V{100, 0, 0}) {
		t.Error("RemoveMomentum must not modify halo molecules")
	}
}

func TestLocalMomentumEmptySet(t *testing.T) {
	p, totalMass := LocalMomentum(nil, mass1)
	if p != (vec3.V{}) || totalMass != 0 {
		t.Errorf("LocalMomentum(nil) = %v, %g, want zero", p, totalMass)
	}
}
