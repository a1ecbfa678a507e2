// Package simctx defines SimulationContext, the per-rank bundle of
// identity, topology, component registry, and logger threaded explicitly
// through every call instead of being read off package-level state —
// spec.md's concurrency model requires every rank (and every worker
// goroutine within a rank) to operate on its own data, which rules out
// the package-level globals the teacher's own main.go leans on for
// one-shot command-line tools.
package simctx

import (
	"fmt"
	"log"
	"os"

	"github.com/mdcore/mdcore/cellgrid"
	"github.com/mdcore/mdcore/component"
)

// Context bundles everything a rank's goroutines need to do their job
// without reaching for package-level state.
type Context struct {
	Rank     int
	Decomp   *cellgrid.Cartesian
	Registry *component.Registry
	Log      *log.Logger
}

// New builds a Context whose logger prefixes every line with the rank
// number, following the teacher's main.go convention of a single
// log.Logger configured once at startup (there rank-less, since gotetra
// is single-process; here a rank prefix is added since mdcore is not).
func New(rank int, decomp *cellgrid.Cartesian, reg *component.Registry) *Context {
	prefix := fmt.Sprintf("[rank %d] ", rank)
	return &Context{
		Rank:     rank,
		Decomp:   decomp,
		Registry: reg,
		Log:      log.New(os.Stderr, prefix, log.LstdFlags),
	}
}
