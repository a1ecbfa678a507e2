// Package config implements spec.md §2's config-parsing collaborator: a
// named-interface boundary for scenario setup, plus one concrete
// token-based reader for the run parameters the core itself needs
// (cutoff, timestep, process grid, reaction-field permittivity, halo
// scheme choice). XML scenario files and scenario generators are named
// interfaces only (config.PhaseSpaceSource), per spec.md §1's explicit
// "treat as external collaborators with named interfaces only".
//
// ReadTokenConfig follows io/config.go's gcfg-based
// section-struct/CheckInit idiom directly (that file used the now-dead
// code.google.com/p/gcfg import path; mdcore continues using its
// maintained successor, gopkg.in/gcfg.v1, with the same API).
package config

import (
	"fmt"

	"gopkg.in/gcfg.v1"
)

// Scenario is the external-collaborator boundary spec.md §1 calls out:
// anything that can produce an initial Run configuration from whatever
// source format it wants (XML, a generator, a checkpoint) implements it.
type Scenario interface {
	Load() (*RunConfig, error)
}

// PhaseSpaceSource is a named-only interface for the XML phase-space
// config format spec.md's Non-goals excludes from the core; no concrete
// implementation is provided.
type PhaseSpaceSource interface {
	ReadPhaseSpace(path string) error
}

// RunConfig holds the parameters the core engine itself consumes,
// independent of how they were parsed.
type RunConfig struct {
	Cutoff           float64
	Timestep         float64
	Steps            int
	ProcDims         [3]int
	GlobalWidth      [3]float64
	ReactionFieldEps float64 // 0 disables reaction-field correction; <0 means conductor limit
	HaloScheme       string  // "fullshell" or "threestage"
	DeadlockTimeoutSeconds int
	PhaseSpaceFile         string // empty means generate via a scenario.Generator instead
}

type runSection struct {
	Cutoff                 float64
	Timestep               float64
	Steps                  int
	ProcX, ProcY, ProcZ    int
	WidthX, WidthY, WidthZ float64
	ReactionFieldEps       float64
	HaloScheme             string
	DeadlockTimeoutSeconds int
	PhaseSpaceFile         string
}

type tokenFile struct {
	Run runSection
}

// CheckInit validates required fields, following io/config.go's
// per-section CheckInit convention.
func (r *runSection) CheckInit() error {
	if r.Cutoff <= 0 {
		return fmt.Errorf("config: [run] Cutoff must be positive, got %g", r.Cutoff)
	}
	if r.Timestep <= 0 {
		return fmt.Errorf("config: [run] Timestep must be positive, got %g", r.Timestep)
	}
	if r.Steps <= 0 {
		return fmt.Errorf("config: [run] Steps must be positive, got %d", r.Steps)
	}
	if r.ProcX <= 0 || r.ProcY <= 0 || r.ProcZ <= 0 {
		return fmt.Errorf("config: [run] ProcX/ProcY/ProcZ must all be positive")
	}
	if r.WidthX <= 0 || r.WidthY <= 0 || r.WidthZ <= 0 {
		return fmt.Errorf("config: [run] WidthX/WidthY/WidthZ must all be positive")
	}
	if r.HaloScheme == "" {
		r.HaloScheme = "fullshell"
	}
	if r.HaloScheme != "fullshell" && r.HaloScheme != "threestage" {
		return fmt.Errorf("config: [run] HaloScheme must be 'fullshell' or 'threestage', got %q", r.HaloScheme)
	}
	if r.DeadlockTimeoutSeconds <= 0 {
		r.DeadlockTimeoutSeconds = 60
	}
	return nil
}

// ReadTokenConfig parses a gcfg-format token file (INI-like sections of
// "key = value" pairs) into a RunConfig.
func ReadTokenConfig(path string) (*RunConfig, error) {
	var tf tokenFile
	if err := gcfg.ReadFileInto(&tf, path); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := tf.Run.CheckInit(); err != nil {
		return nil, err
	}
	r := tf.Run
	return &RunConfig{
		Cutoff:                 r.Cutoff,
		Timestep:               r.Timestep,
		Steps:                  r.Steps,
		ProcDims:               [3]int{r.ProcX, r.ProcY, r.ProcZ},
		GlobalWidth:            [3]float64{r.WidthX, r.WidthY, r.WidthZ},
		ReactionFieldEps:       r.ReactionFieldEps,
		HaloScheme:             r.HaloScheme,
		DeadlockTimeoutSeconds: r.DeadlockTimeoutSeconds,
		PhaseSpaceFile:         r.PhaseSpaceFile,
	}, nil
}
