// Command mdcore runs a classical molecular-dynamics simulation from a
// token-config file, following spec.md §6's CLI surface: step count,
// output frequency/formats, a checkpoint prefix, and incremental-output
// mode, plus the usual -h/-v. Ranks run as goroutines over a
// transport.Fabric rather than separate OS processes (see DESIGN.md's
// Open Question resolution on inter-rank transport), so one invocation
// of this binary drives the whole run.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/mdcore/mdcore/cellgrid"
	"github.com/mdcore/mdcore/component"
	"github.com/mdcore/mdcore/config"
	"github.com/mdcore/mdcore/errs"
	"github.com/mdcore/mdcore/halo"
	"github.com/mdcore/mdcore/integrator"
	"github.com/mdcore/mdcore/ioformat"
	"github.com/mdcore/mdcore/kernel"
	"github.com/mdcore/mdcore/molecule"
	"github.com/mdcore/mdcore/scenario"
	"github.com/mdcore/mdcore/simctx"
	"github.com/mdcore/mdcore/simloop"
	"github.com/mdcore/mdcore/store"
	"github.com/mdcore/mdcore/transport"
	"github.com/mdcore/mdcore/traversal"
	"github.com/mdcore/mdcore/vec3"
)

const version = "mdcore 0.1"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("mdcore", flag.ContinueOnError)
	steps := fs.Int("t", 0, "number of timesteps to run")
	freq := fs.Int("f", 1, "output frequency, in steps")
	formats := fs.String("o", "res", "comma-separated output formats: ckp,res")
	prefix := fs.String("p", "mdcore", "output file prefix")
	incremental := fs.Bool("i", false, "incremental outputs: never overwrite an existing file")
	showVersion := fs.Bool("v", false, "print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "usage: mdcore [-t steps] [-f freq] [-o ckp,res] [-p prefix] [-i] <config-file>\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if *showVersion {
		fmt.Println(version)
		return 0
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return 1
	}

	if err := mainRun(fs.Arg(0), *steps, *freq, *formats, *prefix, *incremental); err != nil {
		log.Printf("mdcore: %v", err)
		if e, ok := err.(*errs.Error); ok {
			return e.Code.ExitCode()
		}
		return 1
	}
	return 0
}

func mainRun(configPath string, stepsOverride, freq int, formatList, prefix string, incremental bool) error {
	rc, err := config.ReadTokenConfig(configPath)
	if err != nil {
		return err
	}
	steps := rc.Steps
	if stepsOverride > 0 {
		steps = stepsOverride
	}
	outputs := strings.Split(formatList, ",")

	reg, err := buildRegistry(rc.Cutoff)
	if err != nil {
		return err
	}

	var globalMols []molecule.Molecule
	if rc.PhaseSpaceFile != "" {
		globalMols, err = ioformat.ReadPhaseSpaceASCII(rc.PhaseSpaceFile)
		if err != nil {
			return errs.Wrap(errs.ConfigError, err, "reading phase-space file %q", rc.PhaseSpaceFile)
		}
	}

	numRanks := rc.ProcDims[0] * rc.ProcDims[1] * rc.ProcDims[2]
	fab := transport.NewFabric(numRanks)
	globalWidth := vec3.V(rc.GlobalWidth)

	loops := make([]*simloop.Loop, numRanks)
	for rank := 0; rank < numRanks; rank++ {
		decomp := cellgrid.NewCartesian(rank, rc.ProcDims, globalWidth)
		ctx := simctx.New(rank, decomp, reg)

		arena := molecule.NewArena()
		grid, err := cellgrid.New(arena, decomp.SubdomainOrigin(), decomp.SubdomainWidth(), rc.Cutoff)
		if err != nil {
			return errs.Wrap(errs.GeometryError, err, "rank %d: building cell grid", rank)
		}

		owned, err := loadScenario(rc, decomp, reg, globalMols)
		if err != nil {
			return err
		}
		for _, m := range owned {
			idx := arena.Insert(m)
			if err := grid.Insert(idx, m.R); err != nil {
				return errs.Wrap(errs.GeometryError, err, "rank %d: inserting molecule %d", rank, m.ID)
			}
		}

		rf := reactionField(rc)
		partners := halo.EnumerateRegions(decomp, true)
		exch := halo.NewExchanger(fab, rank, partners)
		exch.Watchdog.Timeout = time.Duration(rc.DeadlockTimeoutSeconds) * time.Second

		loops[rank] = &simloop.Loop{
			Ctx:           ctx,
			Grid:          grid,
			Arena:         arena,
			Pool:          store.NewPool(),
			Fabric:        fab,
			IntegratorCfg: integrator.Config{Dt: rc.Timestep, CellWidth: grid.CellWidth()},
			Traversal: traversal.Config{
				Registry: reg,
				Cutoff2:  rc.Cutoff * rc.Cutoff,
				RF:       rf,
				Workers:  1,
			},
			Exchanger:  exch,
			HaloScheme: rc.HaloScheme,
			AxisOf:     func(partnerRank int) int { return axisOf(decomp, partnerRank) },
			InvMass: func(componentID uint16) float64 {
				return 1 / reg.Template(int(componentID)).TotalMass
			},
			InvInertia: func(componentID uint16) [3]float64 {
				inertia := reg.Template(int(componentID)).Inertia
				return [3]float64{1 / inertia[0], 1 / inertia[1], 1 / inertia[2]}
			},
		}
	}

	for step := 0; step < steps; step++ {
		errCh := make(chan error, numRanks)
		for rank := range loops {
			go func(rank int) {
				_, err := loops[rank].Step(step)
				errCh <- err
			}(rank)
		}
		for range loops {
			if err := <-errCh; err != nil {
				return err
			}
		}
		if step%freq == 0 {
			if err := writeOutputs(loops, outputs, prefix, step, incremental); err != nil {
				return err
			}
		}
	}
	return nil
}

func owns(decomp *cellgrid.Cartesian, pos vec3.V) bool {
	origin := decomp.SubdomainOrigin()
	width := decomp.SubdomainWidth()
	for d := 0; d < 3; d++ {
		if pos[d] < origin[d] || pos[d] >= origin[d]+width[d] {
			return false
		}
	}
	return true
}

func axisOf(decomp *cellgrid.Cartesian, partnerRank int) int {
	self := decomp.RankCoord(decomp.Rank())
	other := decomp.RankCoord(partnerRank)
	for d := 0; d < 3; d++ {
		if self[d] != other[d] {
			return d
		}
	}
	return 0
}

func reactionField(rc *config.RunConfig) kernel.ReactionField {
	switch {
	case rc.ReactionFieldEps < 0:
		return kernel.NewConductorReactionField(rc.Cutoff)
	case rc.ReactionFieldEps == 0:
		return kernel.ReactionField{}
	default:
		return kernel.NewReactionField(rc.ReactionFieldEps, rc.Cutoff)
	}
}

// loadScenario returns the molecules owned by decomp's subdomain: filtered
// from a globally-read ASCII phase-space file when one was configured, or
// generated directly on this subdomain by a CubicLattice otherwise.
func loadScenario(rc *config.RunConfig, decomp *cellgrid.Cartesian, reg *component.Registry, globalMols []molecule.Molecule) ([]molecule.Molecule, error) {
	if rc.PhaseSpaceFile != "" {
		var owned []molecule.Molecule
		for _, m := range globalMols {
			if owns(decomp, m.R) {
				owned = append(owned, m)
			}
		}
		return owned, nil
	}

	lattice := &scenario.CubicLattice{
		NumMolecules: 500,
		Density:      0.8,
		Temperature:  1.0,
		Rng:          rand.New(rand.NewSource(int64(decomp.Rank()) + 1)),
	}
	mols, err := lattice.Generate(decomp, reg)
	if err != nil {
		return nil, errs.Wrap(errs.ConfigError, err, "generating CubicLattice scenario")
	}
	return mols, nil
}

func buildRegistry(cutoff float64) (*component.Registry, error) {
	return component.NewRegistry([]component.Template{{
		LJSites:   []component.LJSite{{Epsilon: 1, Sigma: 1, Mass: 1}},
		Inertia:   [3]float64{1, 1, 1},
		TotalMass: 1,
	}}, cutoff)
}

func writeOutputs(loops []*simloop.Loop, outputs []string, prefix string, step int, incremental bool) error {
	for _, kind := range outputs {
		switch strings.TrimSpace(kind) {
		case "ckp":
			if err := writeCheckpoints(loops, prefix, step, incremental); err != nil {
				return err
			}
		case "res":
			// Result-row output is driven by simloop.Observer plug-ins
			// registered by the caller; nothing to do here by default.
		}
	}
	return nil
}

func writeCheckpoints(loops []*simloop.Loop, prefix string, step int, incremental bool) error {
	for rank, l := range loops {
		var mols []molecule.Molecule
		for _, idx := range rankOwnedMolecules(l) {
			if m, ok := l.Arena.Get(idx); ok && !m.Halo {
				mols = append(mols, *m)
			}
		}
		path := fmt.Sprintf("%s.rank%d.restart.inp", prefix, rank)
		if incremental {
			path = fmt.Sprintf("%s.step%d.rank%d.restart.inp", prefix, step, rank)
		}
		hdr := ioformat.CheckpointHeader{Step: int64(step), GlobalWidth: l.Ctx.Decomp.GlobalWidth()}
		if err := ioformat.WriteCheckpoint(path, hdr, mols); err != nil {
			return errs.Wrap(errs.ConfigError, err, "writing checkpoint for rank %d", rank)
		}
	}
	return nil
}

func rankOwnedMolecules(l *simloop.Loop) []molecule.Index {
	var out []molecule.Index
	for _, c := range l.Grid.Cells() {
		if c.Halo {
			continue
		}
		out = append(out, c.Residents...)
	}
	return out
}

