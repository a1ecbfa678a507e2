// Package molecule defines the mutable Molecule state (spec.md §3) and the
// Arena that owns it. Design Notes §9 replaces the source's pointer-graph
// cell membership with "cells as an array; each cell owns an index list
// into a per-rank molecule arena. On re-binning, move by index, not
// pointer; invalidated indices are detected by a per-slot generation
// counter." Arena is that structure.
package molecule

import "github.com/mdcore/mdcore/vec3"

// ID is a molecule's identity, unique across all ranks in a run (spec.md
// §3 invariant).
type ID uint64

// Molecule is the mutable per-particle state integrated each step.
type Molecule struct {
	ID          ID
	ComponentID uint16

	R vec3.V    // center-of-mass position
	V vec3.V    // velocity
	Q vec3.Quat // unit orientation quaternion
	D vec3.V    // angular momentum
	F vec3.V    // force accumulator
	M vec3.V    // torque accumulator

	// Halo marks a read-only mirror of a molecule owned by a different
	// rank. Halo molecules are never integrated (spec.md §3 "Ownership");
	// store.StoreTo still adds force and torque onto them, but only owned
	// molecules' accumulators are consumed by the integrator.
	Halo bool
}

// Index is a generational handle into an Arena. A Slot alone is not a safe
// reference across a re-bin: Generation must match the slot's current
// generation for the handle to be valid.
type Index struct {
	Slot       int
	Generation uint32
}

// Invalid is the zero-value handle, never returned by Insert.
var Invalid = Index{Slot: -1}

type slot struct {
	mol        Molecule
	generation uint32
	alive      bool
}

// Arena owns every molecule resident on a rank (including halo mirrors),
// addressed by generational Index so that CellGrid's per-cell index lists
// stay valid across re-binning without tracking raw pointers.
type Arena struct {
	slots []slot
	free  []int
}

// NewArena returns an empty arena.
func NewArena() *Arena { return &Arena{} }

// Insert adds m to the arena and returns a handle to it.
func (a *Arena) Insert(m Molecule) Index {
	if n := len(a.free); n > 0 {
		i := a.free[n-1]
		a.free = a.free[:n-1]
		a.slots[i].mol = m
		a.slots[i].alive = true
		return Index{Slot: i, Generation: a.slots[i].generation}
	}
	a.slots = append(a.slots, slot{mol: m, alive: true})
	return Index{Slot: len(a.slots) - 1, Generation: 0}
}

// Get returns a pointer to the molecule at idx and whether idx is still
// valid (matching generation, not freed).
func (a *Arena) Get(idx Index) (*Molecule, bool) {
	if idx.Slot < 0 || idx.Slot >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[idx.Slot]
	if !s.alive || s.generation != idx.Generation {
		return nil, false
	}
	return &s.mol, true
}

// Remove invalidates idx, bumping its slot's generation and returning the
// slot to the free list so a future Insert can reuse it. Any Index
// previously handed out for this slot now fails Get.
func (a *Arena) Remove(idx Index) bool {
	if idx.Slot < 0 || idx.Slot >= len(a.slots) {
		return false
	}
	s := &a.slots[idx.Slot]
	if !s.alive || s.generation != idx.Generation {
		return false
	}
	s.alive = false
	s.generation++
	a.free = append(a.free, idx.Slot)
	return true
}

// Len returns the number of slots ever allocated, including freed ones
// (an upper bound on live molecule count, used to size scratch buffers).
func (a *Arena) Len() int { return len(a.slots) }
