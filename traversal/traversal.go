// Package traversal implements spec.md §4.5's Traversal: the thread- and
// rank-parallel walk over a CellGrid that drives DistLookup and PairKernel
// for every candidate cell pair exactly once.
//
// Intra-rank parallelism follows the teacher corpus's
// edwinsyarief-go-verlet-multithreading main.go pattern of chunking work
// across goroutines synchronized by sync.WaitGroup, generalized from its
// two-phase (integrate, then resolve) barrier to an 8-color barrier: cells
// are partitioned into 8 classes by the parity of each axis coordinate so
// that no two cells processed concurrently within a color ever share a
// half-shell neighbor pair, per spec.md §4.5 "Concurrency".
package traversal

import (
	"sync"

	"github.com/mdcore/mdcore/cellgrid"
	"github.com/mdcore/mdcore/component"
	"github.com/mdcore/mdcore/distlookup"
	"github.com/mdcore/mdcore/kernel"
	"github.com/mdcore/mdcore/molecule"
	"github.com/mdcore/mdcore/store"
)

// Config bundles the fixed-for-a-run parameters a traversal needs.
type Config struct {
	Registry *component.Registry
	Cutoff2  float64
	RF       kernel.ReactionField
	Workers  int // goroutine count for the intra-rank color barrier; <=1 runs serially
}

// Result aggregates the macroscopic accumulator across every worker.
type Result struct {
	Acc kernel.Accumulator
}

// color returns one of 8 classes for a cell coordinate, by axis parity.
func color(c [3]int) int {
	b := func(v int) int {
		if v&1 != 0 {
			return 1
		}
		return 0
	}
	return b(c[0]) | b(c[1])<<1 | b(c[2])<<2
}

// Run walks every owned cell of g (and its halo-paired neighbors) exactly
// once per half-shell offset, computing pair interactions via pool-checked
// Slabs and accumulating macroscopic sums when calculateMacroscopic is
// true, per spec.md §4.5's SingleCellPolicy/CellPairPolicy dispatch.
func Run(g *cellgrid.Grid, arena *molecule.Arena, pool *store.Pool, cfg Config, calculateMacroscopic bool) Result {
	offsets := cellgrid.HalfShellOffsets()
	dims := g.Dims()

	byColor := make([][]int, 8)
	for i := range g.Cells() {
		c := g.CellAt(i)
		if c.Halo {
			continue
		}
		col := color(c.Coord)
		byColor[col] = append(byColor[col], i)
	}

	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}

	var mu sync.Mutex
	var total kernel.Accumulator

	for _, cellIdxs := range byColor {
		if len(cellIdxs) == 0 {
			continue
		}
		chunks := chunk(cellIdxs, workers)
		var wg sync.WaitGroup
		for _, ch := range chunks {
			ch := ch
			wg.Add(1)
			go func() {
				defer wg.Done()
				var local kernel.Accumulator
				for _, flat := range ch {
					processCell(g, arena, pool, cfg, flat, offsets, dims, calculateMacroscopic, &local)
				}
				mu.Lock()
				total.Add(local)
				mu.Unlock()
			}()
		}
		wg.Wait()
	}

	return Result{Acc: total}
}

func chunk(items []int, workers int) [][]int {
	if workers <= 1 {
		return [][]int{items}
	}
	if len(items) <= workers {
		out := make([][]int, len(items))
		for i, it := range items {
			out[i] = []int{it}
		}
		return out
	}
	out := make([][]int, workers)
	for i, it := range items {
		w := i % workers
		out[w] = append(out[w], it)
	}
	return out
}

func processCell(
	g *cellgrid.Grid, arena *molecule.Arena, pool *store.Pool, cfg Config,
	flat int, offsets [][3]int, dims [3]int,
	calculateMacroscopic bool, acc *kernel.Accumulator,
) {
	cell := g.CellAt(flat)
	if len(cell.Residents) == 0 {
		return
	}

	srcSlab := pool.Get()
	defer pool.Put(srcSlab)
	store.LoadFrom(srcSlab, cell, arena, cfg.Registry)

	// Single-cell pass: every pair within this cell, guarded by site index
	// to avoid double-counting, per spec.md §4.3 SingleCellPolicy.
	evaluateSlabPair(srcSlab, srcSlab, cfg, distlookup.SingleCellPolicy, acc, calculateMacroscopic)

	coord := cell.Coord
	for _, off := range offsets {
		nc := [3]int{coord[0] + off[0], coord[1] + off[1], coord[2] + off[2]}
		if !g.InBounds(nc) {
			continue
		}
		nflat := g.FlatIndex(nc)
		ncell := g.CellAt(nflat)
		if len(ncell.Residents) == 0 {
			continue
		}
		// Halo/halo pairs contribute no owned force and are skipped; an
		// owned/halo pair counts exactly once because offsets enumerates
		// only the half-shell and the lexicographic flat-index tie-break
		// below resolves the remaining owned/owned ambiguity when both
		// cells are non-halo but reached from two directions.
		if cell.Halo && ncell.Halo {
			continue
		}
		if !cell.Halo && !ncell.Halo && flat >= nflat {
			continue
		}

		tgtSlab := pool.Get()
		store.LoadFrom(tgtSlab, ncell, arena, cfg.Registry)

		evaluateSlabPair(srcSlab, tgtSlab, cfg, distlookup.CellPairPolicy, acc, calculateMacroscopic)

		store.StoreTo(tgtSlab, arena)
		pool.Put(tgtSlab)
	}

	// Every kernel routine accumulates its reaction directly onto srcSlab
	// (Newton's third law), both in the single-cell pass above and in every
	// cross-cell pass in the loop, so srcSlab is only ever scattered once,
	// after all of its contributions for this cell have landed.
	store.StoreTo(srcSlab, arena)
}

// evaluateSlabPair dispatches DistLookup + the seven PairKernel routines
// across every (source-site-kind, target-site-kind) combination between
// two slabs, per spec.md §4.4's dispatch table.
func evaluateSlabPair(src, tgt *store.Slab, cfg Config, policy distlookup.Policy, acc *kernel.Accumulator, calcMacro bool) {
	reg := cfg.Registry
	cutoff2 := cfg.Cutoff2
	sameSlab := policy == distlookup.SingleCellPolicy

	// LJ x LJ
	for i := 0; i < src.LJ.N; i++ {
		lower := i
		if policy == distlookup.CellPairPolicy {
			lower = -1
		}
		mask, any := distlookup.Compute(src.LJ.PosX[i], src.LJ.PosY[i], src.LJ.PosZ[i],
			tgt.LJ.PosX, tgt.LJ.PosY, tgt.LJ.PosZ, tgt.LJ.N, cutoff2, policy, lower)
		if !any {
			continue
		}
		if sameSlab {
			excludeSameMolecule(mask, src.LJ.MolIdx[i], tgt.LJ.MolIdx)
		}
		kernel.LJ(reg, &src.LJ, i, &tgt.LJ, mask, calcMacro, acc, nil)
	}

	// Charge x Charge
	for i := 0; i < src.Charge.N; i++ {
		lower := i
		if policy == distlookup.CellPairPolicy {
			lower = -1
		}
		mask, any := distlookup.Compute(src.Charge.ComX[i], src.Charge.ComY[i], src.Charge.ComZ[i],
			tgt.Charge.ComX, tgt.Charge.ComY, tgt.Charge.ComZ, tgt.Charge.N, cutoff2, policy, lower)
		if !any {
			continue
		}
		if sameSlab {
			excludeSameMolecule(mask, src.Charge.MolIdx[i], tgt.Charge.MolIdx)
		}
		kernel.ChargeCharge(&src.Charge, i, &tgt.Charge, mask, calcMacro, acc, nil)
	}

	// Charge x Dipole: in the same-cell pass this is evaluated in one
	// direction only (charge source against dipole target) since the pair
	// set is identical either way when src and tgt are the same slab;
	// across distinct cells both directions run, once per slab acting as
	// source, per spec.md §4.5's half-shell traversal.
	for i := 0; i < src.Charge.N; i++ {
		mask, any := distlookup.Compute(src.Charge.ComX[i], src.Charge.ComY[i], src.Charge.ComZ[i],
			tgt.Dipole.ComX, tgt.Dipole.ComY, tgt.Dipole.ComZ, tgt.Dipole.N, cutoff2, distlookup.CellPairPolicy, -1)
		if !any {
			continue
		}
		if sameSlab {
			excludeSameMolecule(mask, src.Charge.MolIdx[i], tgt.Dipole.MolIdx)
		}
		kernel.ChargeDipole(&src.Charge, i, &tgt.Dipole, mask, false, calcMacro, acc, nil)
	}
	if !sameSlab {
		for i := 0; i < src.Dipole.N; i++ {
			mask, any := distlookup.Compute(src.Dipole.ComX[i], src.Dipole.ComY[i], src.Dipole.ComZ[i],
				tgt.Charge.ComX, tgt.Charge.ComY, tgt.Charge.ComZ, tgt.Charge.N, cutoff2, distlookup.CellPairPolicy, -1)
			if !any {
				continue
			}
			kernel.ChargeDipole(&src.Dipole, i, &tgt.Charge, mask, true, calcMacro, acc, nil)
		}
	}

	// Charge x Quadrupole, same convention as Charge x Dipole above.
	for i := 0; i < src.Charge.N; i++ {
		mask, any := distlookup.Compute(src.Charge.ComX[i], src.Charge.ComY[i], src.Charge.ComZ[i],
			tgt.Quad.ComX, tgt.Quad.ComY, tgt.Quad.ComZ, tgt.Quad.N, cutoff2, distlookup.CellPairPolicy, -1)
		if !any {
			continue
		}
		if sameSlab {
			excludeSameMolecule(mask, src.Charge.MolIdx[i], tgt.Quad.MolIdx)
		}
		kernel.ChargeQuadrupole(&src.Charge, i, &tgt.Quad, mask, false, calcMacro, acc, nil)
	}
	if !sameSlab {
		for i := 0; i < src.Quad.N; i++ {
			mask, any := distlookup.Compute(src.Quad.ComX[i], src.Quad.ComY[i], src.Quad.ComZ[i],
				tgt.Charge.ComX, tgt.Charge.ComY, tgt.Charge.ComZ, tgt.Charge.N, cutoff2, distlookup.CellPairPolicy, -1)
			if !any {
				continue
			}
			kernel.ChargeQuadrupole(&src.Quad, i, &tgt.Charge, mask, true, calcMacro, acc, nil)
		}
	}

	// Dipole x Dipole
	for i := 0; i < src.Dipole.N; i++ {
		lower := i
		if policy == distlookup.CellPairPolicy {
			lower = -1
		}
		mask, any := distlookup.Compute(src.Dipole.ComX[i], src.Dipole.ComY[i], src.Dipole.ComZ[i],
			tgt.Dipole.ComX, tgt.Dipole.ComY, tgt.Dipole.ComZ, tgt.Dipole.N, cutoff2, policy, lower)
		if !any {
			continue
		}
		if sameSlab {
			excludeSameMolecule(mask, src.Dipole.MolIdx[i], tgt.Dipole.MolIdx)
		}
		kernel.DipoleDipole(&src.Dipole, i, &tgt.Dipole, mask, cfg.RF, calcMacro, acc, nil)
	}

	// Dipole x Quadrupole, same same-cell-direction convention.
	for i := 0; i < src.Dipole.N; i++ {
		mask, any := distlookup.Compute(src.Dipole.ComX[i], src.Dipole.ComY[i], src.Dipole.ComZ[i],
			tgt.Quad.ComX, tgt.Quad.ComY, tgt.Quad.ComZ, tgt.Quad.N, cutoff2, distlookup.CellPairPolicy, -1)
		if !any {
			continue
		}
		if sameSlab {
			excludeSameMolecule(mask, src.Dipole.MolIdx[i], tgt.Quad.MolIdx)
		}
		kernel.DipoleQuadrupole(&src.Dipole, i, &tgt.Quad, mask, false, calcMacro, acc, nil)
	}
	if !sameSlab {
		for i := 0; i < src.Quad.N; i++ {
			mask, any := distlookup.Compute(src.Quad.ComX[i], src.Quad.ComY[i], src.Quad.ComZ[i],
				tgt.Dipole.ComX, tgt.Dipole.ComY, tgt.Dipole.ComZ, tgt.Dipole.N, cutoff2, distlookup.CellPairPolicy, -1)
			if !any {
				continue
			}
			kernel.DipoleQuadrupole(&src.Quad, i, &tgt.Dipole, mask, true, calcMacro, acc, nil)
		}
	}

	// Quadrupole x Quadrupole
	for i := 0; i < src.Quad.N; i++ {
		lower := i
		if policy == distlookup.CellPairPolicy {
			lower = -1
		}
		mask, any := distlookup.Compute(src.Quad.ComX[i], src.Quad.ComY[i], src.Quad.ComZ[i],
			tgt.Quad.ComX, tgt.Quad.ComY, tgt.Quad.ComZ, tgt.Quad.N, cutoff2, policy, lower)
		if !any {
			continue
		}
		if sameSlab {
			excludeSameMolecule(mask, src.Quad.MolIdx[i], tgt.Quad.MolIdx)
		}
		kernel.QuadrupoleQuadrupole(&src.Quad, i, &tgt.Quad, mask, calcMacro, acc, nil)
	}
}

// excludeSameMolecule clears mask entries whose target site belongs to the
// same molecule as the source site, since a molecule's own sites never
// interact with one another (spec.md §4.2's rigid-body construction
// assumes intramolecular geometry, not intramolecular force).
func excludeSameMolecule(mask []bool, srcMolIdx int, tgtMolIdx []int) {
	for j := range mask {
		if mask[j] && tgtMolIdx[j] == srcMolIdx {
			mask[j] = false
		}
	}
}
