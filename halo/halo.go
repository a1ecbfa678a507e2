// Package halo implements spec.md §4.6's HaloExchange: the transfer of
// leaving molecules and halo copies between neighbor ranks, with a
// one-stage full-shell scheme and a three-stage directional scheme, both
// riding on transport.Fabric's channel-based ranks, plus a deadlock
// watchdog and duplicate suppression by molecule id.
//
// The watchdog's one-second poll cadence and default 60s timeout mirror
// original_source/src/parallel/NonBlockingMPIMultiStepHandler.cpp's wall
// clock deadlock detector; the three-stage axis-by-axis shape (face
// neighbors only, corner halos chained across stages) follows
// NeighbourCommunicationScheme.cpp and KDNode.h's getCommunicationPartners.
package halo

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/mdcore/mdcore/cellgrid"
	"github.com/mdcore/mdcore/errs"
	"github.com/mdcore/mdcore/molecule"
	"github.com/mdcore/mdcore/transport"
	"github.com/mdcore/mdcore/vec3"
)

// Kind distinguishes what a message batch carries, per spec.md §4.6.
type Kind uint8

const (
	LeavingOnly Kind = iota
	HaloCopies
	LeavingAndHaloCopies
)

// CommunicationPartner captures one neighbor relationship, per spec.md
// §4.6's data model.
type CommunicationPartner struct {
	Rank        int
	SendRegions [][3]int // cell offsets of this rank's outgoing halo regions
	RecvRegions [][3]int
	FaceAligned bool // whether this neighbor participates in the 3-stage scheme
	Wrapped     [3]bool
}

// wireMolecule is the fixed-size binary form of a Molecule sent over the
// fabric, grounded on the header+payload idiom of sheet.go/catalog.go.
type wireMolecule struct {
	ID          uint64
	ComponentID uint16
	R, V, D     vec3.V
	Q           vec3.Quat
}

const wireSize = 8 + 2 + 3*3*8 + 4*8

func encodeMolecule(m *molecule.Molecule) []byte {
	buf := make([]byte, wireSize)
	off := 0
	binary.LittleEndian.PutUint64(buf[off:], uint64(m.ID))
	off += 8
	binary.LittleEndian.PutUint16(buf[off:], m.ComponentID)
	off += 2
	putVec := func(v vec3.V) {
		for d := 0; d < 3; d++ {
			binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(v[d]))
			off += 8
		}
	}
	putVec(m.R)
	putVec(m.V)
	putVec(m.D)
	binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(m.Q.W))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(m.Q.X))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(m.Q.Y))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(m.Q.Z))
	off += 8
	return buf
}

func decodeMolecule(buf []byte) molecule.Molecule {
	off := 0
	id := binary.LittleEndian.Uint64(buf[off:])
	off += 8
	comp := binary.LittleEndian.Uint16(buf[off:])
	off += 2
	getVec := func() vec3.V {
		var v vec3.V
		for d := 0; d < 3; d++ {
			v[d] = math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
			off += 8
		}
		return v
	}
	r := getVec()
	v := getVec()
	dAng := getVec()
	q := vec3.Quat{
		W: math.Float64frombits(binary.LittleEndian.Uint64(buf[off:])),
	}
	off += 8
	q.X = math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	q.Y = math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	q.Z = math.Float64frombits(binary.LittleEndian.Uint64(buf[off:]))
	off += 8
	return molecule.Molecule{ID: molecule.ID(id), ComponentID: comp, R: r, V: v, D: dAng, Q: q}
}

// encodeBatch packs two distinct molecule groups (leaving, halo copies)
// into one message so a single Isend per neighbor per phase carries both
// message kinds of spec.md §4.6 ("LEAVING_AND_HALO_COPIES").
func encodeBatch(leaving, haloCopies []molecule.Molecule) []byte {
	buf := make([]byte, 8+(len(leaving)+len(haloCopies))*wireSize)
	binary.LittleEndian.PutUint32(buf[0:], uint32(len(leaving)))
	binary.LittleEndian.PutUint32(buf[4:], uint32(len(haloCopies)))
	off := 8
	for i := range leaving {
		copy(buf[off:], encodeMolecule(&leaving[i]))
		off += wireSize
	}
	for i := range haloCopies {
		copy(buf[off:], encodeMolecule(&haloCopies[i]))
		off += wireSize
	}
	return buf
}

func decodeBatch(buf []byte) (leaving, haloCopies []molecule.Molecule) {
	if len(buf) < 8 {
		fmt.Printf("warning: %v\n", errs.New(errs.TransientPackError, "halo: %d-byte message has no complete header; unpacked as zero molecules", len(buf)))
		return nil, nil
	}
	nLeaving := binary.LittleEndian.Uint32(buf[0:])
	nHalo := binary.LittleEndian.Uint32(buf[4:])
	if need := 8 + (int(nLeaving)+int(nHalo))*wireSize; len(buf) < need {
		fmt.Printf("warning: %v\n", errs.New(errs.TransientPackError, "halo: %d-byte message is shorter than the %d bytes its header announces; unpacked as zero molecules", len(buf), need))
		return nil, nil
	}
	off := 8
	leaving = make([]molecule.Molecule, nLeaving)
	for i := range leaving {
		leaving[i] = decodeMolecule(buf[off : off+wireSize])
		off += wireSize
	}
	haloCopies = make([]molecule.Molecule, nHalo)
	for i := range haloCopies {
		haloCopies[i] = decodeMolecule(buf[off : off+wireSize])
		off += wireSize
	}
	return leaving, haloCopies
}

// Watchdog tracks wall-clock progress during a HaloExchange phase, per
// spec.md §4.6's deadlock detector.
type Watchdog struct {
	Timeout time.Duration // default 60s
	start   time.Time
	lastLog time.Duration
}

// NewWatchdog returns a Watchdog with the spec's default 60s timeout.
func NewWatchdog() *Watchdog {
	return &Watchdog{Timeout: 60 * time.Second}
}

func (w *Watchdog) begin() { w.start = time.Now(); w.lastLog = 0 }

// Poll reports progress; it logs a once-per-second diagnostic after the
// first second of waiting and returns a DeadlockError once Timeout has
// elapsed since the exchange phase began.
func (w *Watchdog) Poll(rank int, pending []CommunicationPartner) error {
	elapsed := time.Since(w.start)
	if elapsed > time.Second && elapsed-w.lastLog >= time.Second {
		w.lastLog = elapsed
		fmt.Printf("rank %d: waiting on halo exchange, %d neighbors outstanding, %s elapsed\n",
			rank, len(pending), elapsed.Truncate(time.Second))
	}
	if elapsed > w.Timeout {
		return errs.New(errs.DeadlockError, "rank %d: halo exchange exceeded %s with %d neighbors outstanding",
			rank, w.Timeout, len(pending))
	}
	return nil
}

// Exchanger drives a HaloExchange over a Fabric for one rank.
type Exchanger struct {
	Fabric   *transport.Fabric
	Rank     int
	Partners []CommunicationPartner
	Watchdog *Watchdog
}

// NewExchanger builds an Exchanger with a fresh default watchdog.
func NewExchanger(fab *transport.Fabric, rank int, partners []CommunicationPartner) *Exchanger {
	return &Exchanger{Fabric: fab, Rank: rank, Partners: partners, Watchdog: NewWatchdog()}
}

// FullShell runs the one-stage scheme of spec.md §4.6: posts all outgoing
// sends up front, then loops probing for arrivals from every partner
// until all have been received or the watchdog times out.
func (e *Exchanger) FullShell(leaving, haloOut map[int][]molecule.Molecule) (receivedLeaving, receivedHalo map[int][]molecule.Molecule, err error) {
	for _, p := range e.Partners {
		e.Fabric.Isend(transport.Message{From: e.Rank, To: p.Rank, Tag: int(LeavingAndHaloCopies), Payload: encodeBatch(leaving[p.Rank], haloOut[p.Rank])})
	}

	receivedLeaving = make(map[int][]molecule.Molecule)
	receivedHalo = make(map[int][]molecule.Molecule)
	pending := make(map[int]bool, len(e.Partners))
	for _, p := range e.Partners {
		pending[p.Rank] = true
	}

	e.Watchdog.begin()
	for len(pending) > 0 {
		if msg, ok := e.Fabric.TryRecv(e.Rank); ok {
			leavingMols, haloMols := decodeBatch(msg.Payload)
			receivedLeaving[msg.From] = append(receivedLeaving[msg.From], leavingMols...)
			receivedHalo[msg.From] = append(receivedHalo[msg.From], haloMols...)
			delete(pending, msg.From)
			continue
		}
		var outstanding []CommunicationPartner
		for _, p := range e.Partners {
			if pending[p.Rank] {
				outstanding = append(outstanding, p)
			}
		}
		if err := e.Watchdog.Poll(e.Rank, outstanding); err != nil {
			return nil, nil, err
		}
	}

	return dedupByID(receivedLeaving), dedupByID(receivedHalo), nil
}

// ThreeStage runs the axis-by-axis directional scheme of spec.md §4.6:
// for each Cartesian axis in turn, exchange only with the face-sharing
// neighbors on that axis, installing the results before starting the
// next axis so corner halos chain automatically.
func (e *Exchanger) ThreeStage(leaving, haloOut map[int][]molecule.Molecule, axisOf func(partnerRank int) int) (receivedLeaving, receivedHalo map[int][]molecule.Molecule, err error) {
	receivedLeaving = make(map[int][]molecule.Molecule)
	receivedHalo = make(map[int][]molecule.Molecule)
	for axis := 0; axis < 3; axis++ {
		var stagePartners []CommunicationPartner
		for _, p := range e.Partners {
			if p.FaceAligned && axisOf(p.Rank) == axis {
				stagePartners = append(stagePartners, p)
			}
		}
		if len(stagePartners) == 0 {
			continue
		}

		for _, p := range stagePartners {
			e.Fabric.Isend(transport.Message{From: e.Rank, To: p.Rank, Tag: int(LeavingAndHaloCopies), Payload: encodeBatch(leaving[p.Rank], haloOut[p.Rank])})
		}

		pending := make(map[int]bool, len(stagePartners))
		for _, p := range stagePartners {
			pending[p.Rank] = true
		}
		e.Watchdog.begin()
		for len(pending) > 0 {
			if msg, ok := e.Fabric.TryRecv(e.Rank); ok {
				leavingMols, haloMols := decodeBatch(msg.Payload)
				receivedLeaving[msg.From] = append(receivedLeaving[msg.From], leavingMols...)
				receivedHalo[msg.From] = append(receivedHalo[msg.From], haloMols...)
				delete(pending, msg.From)
				continue
			}
			var outstanding []CommunicationPartner
			for _, p := range stagePartners {
				if pending[p.Rank] {
					outstanding = append(outstanding, p)
				}
			}
			if err := e.Watchdog.Poll(e.Rank, outstanding); err != nil {
				return nil, nil, err
			}
		}
	}
	return dedupByID(receivedLeaving), dedupByID(receivedHalo), nil
}

// dedupByID removes duplicate molecules (by id) across every neighbor's
// contribution, per spec.md §4.6's duplicate-suppression rule for
// whole-domain-spanning subdomains.
func dedupByID(received map[int][]molecule.Molecule) map[int][]molecule.Molecule {
	seen := make(map[molecule.ID]bool)
	out := make(map[int][]molecule.Molecule, len(received))
	for rank, mols := range received {
		var kept []molecule.Molecule
		for _, m := range mols {
			if seen[m.ID] {
				continue
			}
			seen[m.ID] = true
			kept = append(kept, m)
		}
		out[rank] = kept
	}
	return out
}

// EnumerateRegions builds the outgoing halo-region list for every
// non-self neighbor offset of decomp, per spec.md §4.6's "Construction":
// a halo-region enumerator generates outgoing regions matched to a
// neighbor rank via the decomposition's neighbor query. full selects
// between the 26-offset FullShell enumerator and the half-shell variant.
func EnumerateRegions(decomp *cellgrid.Cartesian, full bool) []CommunicationPartner {
	var offsets [][3]int
	if full {
		offsets = cellgrid.NeighborOffsets()
	} else {
		offsets = cellgrid.HalfShellOffsets()
	}

	byRank := make(map[int]*CommunicationPartner)
	for _, off := range offsets {
		rank, wrapped := decomp.NeighborQuery(off)
		if rank == decomp.Rank() {
			continue // sequential shortcut: handled locally, no network traffic
		}
		p, ok := byRank[rank]
		if !ok {
			p = &CommunicationPartner{Rank: rank, Wrapped: wrapped}
			byRank[rank] = p
		}
		p.SendRegions = append(p.SendRegions, off)
		p.RecvRegions = append(p.RecvRegions, [3]int{-off[0], -off[1], -off[2]})
		axisAligned := (off[0] != 0 && off[1] == 0 && off[2] == 0) ||
			(off[1] != 0 && off[0] == 0 && off[2] == 0) ||
			(off[2] != 0 && off[0] == 0 && off[1] == 0)
		if axisAligned {
			p.FaceAligned = true
		}
	}

	out := make([]CommunicationPartner, 0, len(byRank))
	for _, p := range byRank {
		out = append(out, *p)
	}
	return out
}
