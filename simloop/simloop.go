// Package simloop implements spec.md §2/§4's SimulationLoop: the
// per-step orchestration binding Integrator, HaloExchange, CellGrid,
// ParticleStore, Traversal, and GlobalReduce together, plus the two
// named-only plug-in points spec.md §1 keeps external (Observer,
// BoundaryPlugin).
package simloop

import (
	"math"

	"github.com/mdcore/mdcore/cellgrid"
	"github.com/mdcore/mdcore/errs"
	"github.com/mdcore/mdcore/halo"
	"github.com/mdcore/mdcore/integrator"
	"github.com/mdcore/mdcore/molecule"
	"github.com/mdcore/mdcore/reduce"
	"github.com/mdcore/mdcore/simctx"
	"github.com/mdcore/mdcore/store"
	"github.com/mdcore/mdcore/transport"
	"github.com/mdcore/mdcore/traversal"
	"github.com/mdcore/mdcore/vec3"
)

// Observer is a named-only plug-in point for step-level sampling
// (velocity profiles, permittivity/dielectric sampling), per spec.md §1's
// "plug-in observables" exclusion. Grounded on
// original_source/.../Velocity3dProfile.cpp and Permittivity.h's role as
// a per-step hook invoked after the reduce phase.
type Observer interface {
	Observe(step int, totals reduce.Totals, owned []molecule.Molecule)
}

// BoundaryPlugin is a named-only plug-in point for boundary-condition
// behavior beyond periodic wrap (mirror walls, thermostats,
// insertion/deletion zones), per spec.md §1's exclusion and
// original_source/.../Mirror.cpp's role as a per-step hook applied before
// the halo exchange.
type BoundaryPlugin interface {
	Apply(owned []*molecule.Molecule)
}

// ReactionFieldObserver is the one concrete Observer this module provides:
// a running dielectric-constant estimator for the S5-style Stockmayer
// test, sampling the fluctuation formula
// ε_RF = 1 + 3·⟨M²⟩ / (⟨M²⟩ + 3·V·T) derived from the accumulated total
// dipole moment, grounded on Permittivity.h's role in the source as the
// concrete instrument behind the named-only plug-in above.
type ReactionFieldObserver struct {
	Temperature float64
	Volume      float64

	sumM2  float64
	nSteps int
}

func (o *ReactionFieldObserver) Observe(step int, totals reduce.Totals, owned []molecule.Molecule) {
	var M vec3.V
	for i := range owned {
		M = vec3.Add(M, dipoleMoment(&owned[i]))
	}
	o.sumM2 += vec3.Norm2(M)
	o.nSteps++
}

// dipoleMoment approximates a molecule's net dipole moment from its
// orientation quaternion alone (a single site at unit magnitude along
// the body z-axis), sufficient for the S5-style diagnostic this observer
// backs; a full per-site sum would read the component registry, which
// the Observer interface deliberately does not carry.
func dipoleMoment(m *molecule.Molecule) vec3.V {
	return m.Q.Rotate(vec3.V{0, 0, 1})
}

// DielectricConstant returns the running estimate accumulated across
// calls to Observe.
func (o *ReactionFieldObserver) DielectricConstant() float64 {
	if o.nSteps == 0 || o.Volume == 0 || o.Temperature == 0 {
		return 1
	}
	meanM2 := o.sumM2 / float64(o.nSteps)
	return 1 + 3*meanM2/(meanM2+3*o.Volume*o.Temperature)
}

// Loop bundles everything one rank needs to drive a run step by step.
type Loop struct {
	Ctx    *simctx.Context
	Grid   *cellgrid.Grid
	Arena  *molecule.Arena
	Pool   *store.Pool
	Fabric *transport.Fabric

	IntegratorCfg integrator.Config
	Traversal     traversal.Config
	Exchanger     *halo.Exchanger
	HaloScheme    string // "fullshell" or "threestage"
	AxisOf        func(partnerRank int) int

	InvMass    func(componentID uint16) float64
	InvInertia func(componentID uint16) [3]float64

	Observers       []Observer
	BoundaryPlugins []BoundaryPlugin
}

// Step advances the simulation by one timestep, per spec.md §2's data
// flow: integrate -> exchange -> rebin -> preprocess -> traverse ->
// postprocess -> integrate -> reduce -> observe.
func (l *Loop) Step(stepNum int) (reduce.Totals, error) {
	owned := l.ownedIndices()

	for _, idx := range owned {
		m, ok := l.Arena.Get(idx)
		if !ok || m.Halo {
			continue
		}
		invI := l.InvInertia(m.ComponentID)
		if err := integrator.EventNewTimestep(m, l.InvMass(m.ComponentID), [3]float64(invI), l.IntegratorCfg); err != nil {
			return reduce.Totals{}, err
		}
		if w := l.IntegratorCfg.CellWidth; w > 0 && l.Ctx.Log != nil {
			if d := vec3.Scale(m.V, l.IntegratorCfg.Dt); math.Abs(d[0]) > w || math.Abs(d[1]) > w || math.Abs(d[2]) > w {
				l.Ctx.Log.Printf("warning: %v", errs.New(errs.GeometryError, "molecule %d moved more than one cell width (%g) in one step", m.ID, w))
			}
		}
	}

	for _, bp := range l.BoundaryPlugins {
		ptrs := make([]*molecule.Molecule, 0, len(owned))
		for _, idx := range owned {
			if m, ok := l.Arena.Get(idx); ok && !m.Halo {
				ptrs = append(ptrs, m)
			}
		}
		bp.Apply(ptrs)
	}

	leaving, haloOut := l.partitionExchange(owned)
	var incomingLeaving, incomingHalo map[int][]molecule.Molecule
	var err error
	if l.HaloScheme == "threestage" {
		incomingLeaving, incomingHalo, err = l.Exchanger.ThreeStage(leaving, haloOut, l.AxisOf)
	} else {
		incomingLeaving, incomingHalo, err = l.Exchanger.FullShell(leaving, haloOut)
	}
	if err != nil {
		return reduce.Totals{}, err
	}
	if err := l.Grid.Rebin(l.ownedIndices()); err != nil {
		return reduce.Totals{}, err
	}
	l.installIncoming(incomingLeaving, incomingHalo)

	for _, idx := range l.ownedIndices() {
		if m, ok := l.Arena.Get(idx); ok {
			integrator.ResetAccumulators(m)
		}
	}

	result := traversal.Run(l.Grid, l.Arena, l.Pool, l.Traversal, true)

	for _, idx := range l.ownedIndices() {
		m, ok := l.Arena.Get(idx)
		if !ok || m.Halo {
			continue
		}
		if err := integrator.EventForcesCalculated(m, l.InvMass(m.ComponentID), l.IntegratorCfg); err != nil {
			return reduce.Totals{}, err
		}
	}

	perComp := l.countsByComponent()
	volume := l.Grid.CellWidth() * l.Grid.CellWidth() * l.Grid.CellWidth() * float64(len(l.Grid.Cells()))
	totals := reduce.AllReduce(l.Fabric, l.Ctx.Rank, result.Acc, perComp, volume)

	ownedMols := make([]molecule.Molecule, 0, len(owned))
	for _, idx := range l.ownedIndices() {
		if m, ok := l.Arena.Get(idx); ok && !m.Halo {
			ownedMols = append(ownedMols, *m)
		}
	}
	for _, obs := range l.Observers {
		obs.Observe(stepNum, totals, ownedMols)
	}

	return totals, nil
}

func (l *Loop) ownedIndices() []molecule.Index {
	var out []molecule.Index
	for _, c := range l.Grid.Cells() {
		if c.Halo {
			continue
		}
		out = append(out, c.Residents...)
	}
	return out
}

func (l *Loop) countsByComponent() map[uint16]int64 {
	counts := make(map[uint16]int64)
	for _, idx := range l.ownedIndices() {
		if m, ok := l.Arena.Get(idx); ok && !m.Halo {
			counts[m.ComponentID]++
		}
	}
	return counts
}

// partitionExchange buckets owned molecules into "leaving" (COM has left
// the subdomain entirely, a real ownership transfer) and halo-copy
// candidates (still owned here, but within one cell width of the
// subdomain boundary) per neighbor rank, per spec.md §4.6's message kinds. Leaving
// molecules are removed from this rank's arena and grid immediately,
// since ownership moves to the receiving rank once the exchange
// completes.
func (l *Loop) partitionExchange(owned []molecule.Index) (leaving, haloOut map[int][]molecule.Molecule) {
	leaving = make(map[int][]molecule.Molecule)
	haloOut = make(map[int][]molecule.Molecule)

	partners := l.Exchanger.Partners
	for _, idx := range owned {
		m, ok := l.Arena.Get(idx)
		if !ok || m.Halo {
			continue
		}
		if off, left := l.migrationOffset(m); left {
			rank, _ := l.Ctx.Decomp.NeighborQuery(off)
			leaving[rank] = append(leaving[rank], *m)
			l.Grid.Remove(idx)
			l.Arena.Remove(idx)
			continue
		}
		for _, p := range partners {
			for _, off := range p.SendRegions {
				if l.nearFace(m, off) {
					haloOut[p.Rank] = append(haloOut[p.Rank], *m)
					break
				}
			}
		}
	}
	return leaving, haloOut
}

// migrationOffset reports the cell-offset direction in which m's center
// of mass has left this rank's owned subdomain, if any, following
// spec.md §4.6's distinction between a halo copy (still owned, near a
// face) and a true migration (no longer owned at all).
func (l *Loop) migrationOffset(m *molecule.Molecule) (off [3]int, left bool) {
	origin := l.Ctx.Decomp.SubdomainOrigin()
	width := l.Ctx.Decomp.SubdomainWidth()
	for d := 0; d < 3; d++ {
		switch {
		case m.R[d] < origin[d]:
			off[d] = -1
			left = true
		case m.R[d] >= origin[d]+width[d]:
			off[d] = 1
			left = true
		}
	}
	return off, left
}

func (l *Loop) nearFace(m *molecule.Molecule, off [3]int) bool {
	origin := l.Ctx.Decomp.SubdomainOrigin()
	width := l.Ctx.Decomp.SubdomainWidth()
	cw := l.Grid.CellWidth()
	for d := 0; d < 3; d++ {
		if off[d] == 0 {
			continue
		}
		if off[d] > 0 && m.R[d] < origin[d]+width[d]-cw {
			return false
		}
		if off[d] < 0 && m.R[d] > origin[d]+cw {
			return false
		}
	}
	return true
}

// installIncoming inserts received molecules into the arena and grid:
// leaving molecules become locally owned (Halo: false), since this rank
// is now their owner, while halo copies are inserted marked Halo (the
// grid's Clear inside Rebin already dropped the stale ones from the
// previous step).
func (l *Loop) installIncoming(incomingLeaving, incomingHalo map[int][]molecule.Molecule) {
	for _, mols := range incomingLeaving {
		for _, m := range mols {
			m.Halo = false
			idx := l.Arena.Insert(m)
			_ = l.Grid.Insert(idx, m.R)
		}
	}
	for _, mols := range incomingHalo {
		for _, m := range mols {
			m.Halo = true
			idx := l.Arena.Insert(m)
			_ = l.Grid.Insert(idx, m.R)
		}
	}
}
