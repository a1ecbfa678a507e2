// Package reduce implements spec.md §4.8's GlobalReduce: cross-rank sums
// of energy, virial, reaction-field, and per-component particle counts,
// plus momentum removal.
//
// The all-ranks collective sum rides on transport.Fabric's Barrier plus a
// fixed rank-0-gather/broadcast shape, since no MPI binding exists in the
// corpus for a true MPI_Allreduce (see transport's package doc for the
// same Open Question resolution this mirrors).
package reduce

import (
	"bytes"
	"encoding/gob"
	"math"

	"github.com/mdcore/mdcore/kernel"
	"github.com/mdcore/mdcore/molecule"
	"github.com/mdcore/mdcore/transport"
	"github.com/mdcore/mdcore/vec3"
)

// Totals holds the macroscopic quantities produced by one reduction, per
// spec.md §4.8.
type Totals struct {
	ULJ       float64 // converted back from the running 6·U_LJ sum
	UPolar    float64
	URF       float64
	Virial    float64
	NPairs    int64
	NPerComp  map[uint16]int64
	Density   float64
}

// payload is the wire form of one rank's contribution to the reduction.
type payload struct {
	Acc      kernel.Accumulator
	NPerComp map[uint16]int64
	Volume   float64
}

// AllReduce gathers every rank's local Accumulator and per-component
// count onto rank 0 over fab, sums them, and broadcasts the combined
// Totals back to every rank. Conversion from 6·U_LJ to U_LJ happens only
// after the cross-rank sum, per spec.md §4.8.
func AllReduce(fab *transport.Fabric, rank int, local kernel.Accumulator, nPerComp map[uint16]int64, localVolume float64) Totals {
	fab.Barrier()

	if rank == 0 {
		combined := payload{Acc: local, NPerComp: cloneCounts(nPerComp), Volume: localVolume}
		for r := 1; r < fab.NumRanks(); r++ {
			msg := fab.Recv(0)
			p := decodePayload(msg.Payload)
			combined.Acc.Add(p.Acc)
			combined.Volume += p.Volume
			for c, n := range p.NPerComp {
				combined.NPerComp[c] += n
			}
		}
		totals := finalize(combined)
		buf := encodeTotals(totals)
		for r := 1; r < fab.NumRanks(); r++ {
			fab.Isend(transport.Message{From: 0, To: r, Tag: 0, Payload: buf})
		}
		fab.Barrier()
		return totals
	}

	fab.Isend(transport.Message{From: rank, To: 0, Tag: 0, Payload: encodePayload(payload{Acc: local, NPerComp: cloneCounts(nPerComp), Volume: localVolume})})
	msg := fab.Recv(rank)
	fab.Barrier()
	return decodeTotals(msg.Payload)
}

func finalize(p payload) Totals {
	nTot := int64(0)
	for _, n := range p.NPerComp {
		nTot += n
	}
	density := 0.0
	if p.Volume > 0 {
		density = float64(nTot) / p.Volume
	}
	return Totals{
		ULJ:      p.Acc.ULJ6 / 6,
		UPolar:   p.Acc.UPolar,
		URF:      p.Acc.RF,
		Virial:   p.Acc.Virial,
		NPairs:   p.Acc.NPairs,
		NPerComp: p.NPerComp,
		Density:  density,
	}
}

func cloneCounts(m map[uint16]int64) map[uint16]int64 {
	out := make(map[uint16]int64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// RemoveMomentum subtracts each molecule's per-particle share of the
// rank-local total linear momentum (the subset of molecules this rank
// owns, not halo mirrors), per spec.md §4.8's invariant
// |Σ m·v| ≤ ε·N·max(|v|) after removal. For a fully global removal, the
// caller should cross-rank-reduce the momentum sum/mass sum first and
// pass the combined values in via totalP/totalMass.
func RemoveMomentum(owned []*molecule.Molecule, totalP vec3.V, totalMass float64) {
	if totalMass == 0 || len(owned) == 0 {
		return
	}
	share := vec3.Scale(totalP, 1/totalMass)
	for _, m := range owned {
		if m == nil || m.Halo {
			continue
		}
		m.V = vec3.Sub(m.V, share)
	}
}

// LocalMomentum computes Σ m·v over owned (non-halo) molecules, for
// feeding into a cross-rank AllReduce before RemoveMomentum.
func LocalMomentum(owned []*molecule.Molecule, mass func(componentID uint16) float64) (vec3.V, float64) {
	var p vec3.V
	var totalMass float64
	for _, m := range owned {
		if m == nil || m.Halo {
			continue
		}
		mass := mass(m.ComponentID)
		p = vec3.Add(p, vec3.Scale(m.V, mass))
		totalMass += mass
	}
	return p, totalMass
}

// MomentumResidual computes |Σ m·v| / (N · max|v|), the left side of
// spec.md §4.8's post-removal invariant normalized for a caller-side
// epsilon comparison.
func MomentumResidual(owned []*molecule.Molecule, mass func(componentID uint16) float64) float64 {
	var p vec3.V
	n := 0
	maxV := 0.0
	for _, m := range owned {
		if m == nil || m.Halo {
			continue
		}
		mm := mass(m.ComponentID)
		p = vec3.Add(p, vec3.Scale(m.V, mm))
		n++
		if v := vec3.Norm(m.V); v > maxV {
			maxV = v
		}
	}
	if n == 0 || maxV == 0 {
		return 0
	}
	return vec3.Norm(p) / (float64(n) * maxV)
}

// Wire encoding uses encoding/gob rather than a hand-packed binary layout
// since these messages cross goroutines, not a real network boundary, and
// carry a variable-size map — the one place this module reaches for gob
// instead of the header+payload binary idiom used elsewhere (halo.go,
// ioformat's checkpoint format) where the record shape is fixed.
func encodePayload(p payload) []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(p)
	return buf.Bytes()
}

func decodePayload(b []byte) payload {
	var p payload
	_ = gob.NewDecoder(bytes.NewReader(b)).Decode(&p)
	return p
}

func encodeTotals(t Totals) []byte {
	var buf bytes.Buffer
	_ = gob.NewEncoder(&buf).Encode(t)
	return buf.Bytes()
}

func decodeTotals(b []byte) Totals {
	var t Totals
	_ = gob.NewDecoder(bytes.NewReader(b)).Decode(&t)
	return t
}

func isFiniteTotals(t Totals) bool {
	return !math.IsNaN(t.ULJ) && !math.IsInf(t.ULJ, 0) &&
		!math.IsNaN(t.UPolar) && !math.IsInf(t.UPolar, 0)
}
