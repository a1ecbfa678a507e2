package main

import (
	"math"
	"testing"

	"github.com/mdcore/mdcore/cellgrid"
	"github.com/mdcore/mdcore/config"
	"github.com/mdcore/mdcore/vec3"
)

func TestOwnsReportsSubdomainMembership(t *testing.T) {
	decomp := cellgrid.NewCartesian(0, [3]int{2, 1, 1}, vec3.V{10, 10, 10})
	if !owns(decomp, vec3.V{1, 1, 1}) {
		t.Error("position inside rank 0's subdomain should be owned")
	}
	if owns(decomp, vec3.V{7, 1, 1}) {
		t.Error("position inside rank 1's subdomain should not be owned by rank 0")
	}
}

func TestAxisOfFindsDifferingCoordinate(t *testing.T) {
	decomp := cellgrid.NewCartesian(0, [3]int{2, 2, 1}, vec3.V{10, 10, 10})
	// rank 2 in a [2,2,1] Cartesian grid differs from rank 0 on the y axis.
	if got := axisOf(decomp, 2); got != 1 {
		t.Errorf("axisOf(rank 2) = %d, want 1", got)
	}
	if got := axisOf(decomp, 1); got != 0 {
		t.Errorf("axisOf(rank 1) = %d, want 0", got)
	}
}

func TestReactionFieldModes(t *testing.T) {
	conductor := reactionField(&config.RunConfig{ReactionFieldEps: -1, Cutoff: 2})
	if want := 1 / (2.0 * 2 * 2); math.Abs(conductor.Coeff-want) > 1e-12 {
		t.Errorf("conductor-limit Coeff = %g, want %g", conductor.Coeff, want)
	}

	disabled := reactionField(&config.RunConfig{ReactionFieldEps: 0, Cutoff: 2})
	if disabled.Coeff != 0 {
		t.Errorf("disabled reaction field Coeff = %g, want 0", disabled.Coeff)
	}

	finite := reactionField(&config.RunConfig{ReactionFieldEps: 78.5, Cutoff: 2})
	if finite.Coeff == 0 {
		t.Error("finite-permittivity reaction field should have a nonzero coefficient")
	}
}

func TestBuildRegistryProducesOneLJComponent(t *testing.T) {
	reg, err := buildRegistry(2.5)
	if err != nil {
		t.Fatalf("buildRegistry: %v", err)
	}
	if reg.NumComponents() != 1 {
		t.Errorf("NumComponents() = %d, want 1", reg.NumComponents())
	}
	if reg.Cutoff() != 2.5 {
		t.Errorf("Cutoff() = %g, want 2.5", reg.Cutoff())
	}
}

func TestRunPrintsVersionAndExitsZero(t *testing.T) {
	if got := run([]string{"-v"}); got != 0 {
		t.Errorf("run([-v]) = %d, want 0", got)
	}
}

func TestRunRequiresExactlyOneConfigArgument(t *testing.T) {
	if got := run(nil); got == 0 {
		t.Error("run with no config argument should return a nonzero exit code")
	}
	if got := run([]string{"a.cfg", "b.cfg"}); got == 0 {
		t.Error("run with two config arguments should return a nonzero exit code")
	}
}

func TestRunReportsErrorForMissingConfigFile(t *testing.T) {
	if got := run([]string{"/nonexistent/mdcore.cfg"}); got == 0 {
		t.Error("run with a missing config file should return a nonzero exit code")
	}
}
