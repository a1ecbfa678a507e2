// Package ioformat implements the two concrete I/O collaborators spec.md
// §1 does not exclude outright: an ASCII phase-space reader (a simple
// token format, not the excluded XML scenario format) and a binary
// checkpoint writer/reader for restarting a run.
//
// The ASCII reader follows render/halo/io.go's column-indexed
// table.ReadTable usage directly. The checkpoint format follows
// sheet.go/catalog.go's "endianness flag, header size, fixed header
// struct, contiguous payload arrays" binary layout, generalized from a
// cosmological-grid header to a run header plus per-molecule records.
package ioformat

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/mdcore/mdcore/molecule"
	"github.com/mdcore/mdcore/vec3"
	"github.com/phil-mansfield/table"
)

// ReadPhaseSpaceASCII reads a whitespace-delimited column file, one
// molecule per row in the column order
// `id ctype x y z vx vy vz q0 q1 q2 q3 Dx Dy Dz` (q0 is the quaternion's
// scalar part), into a slice of Molecules, following render/halo/io.go's
// "declare column indices, call table.ReadTable, repack columns" idiom.
func ReadPhaseSpaceASCII(path string) ([]molecule.Molecule, error) {
	const idCol, compCol, xCol, yCol, zCol, vxCol, vyCol, vzCol = 0, 1, 2, 3, 4, 5, 6, 7
	const q0Col, q1Col, q2Col, q3Col, dxCol, dyCol, dzCol = 8, 9, 10, 11, 12, 13, 14
	colIdxs := []int{idCol, compCol, xCol, yCol, zCol, vxCol, vyCol, vzCol,
		q0Col, q1Col, q2Col, q3Col, dxCol, dyCol, dzCol}

	cols, err := table.ReadTable(path, colIdxs, nil)
	if err != nil {
		return nil, fmt.Errorf("ioformat: reading phase space %q: %w", path, err)
	}
	if len(cols) != len(colIdxs) {
		return nil, fmt.Errorf("ioformat: %q: expected %d columns, got %d", path, len(colIdxs), len(cols))
	}

	n := len(cols[0])
	mols := make([]molecule.Molecule, n)
	for i := 0; i < n; i++ {
		mols[i] = molecule.Molecule{
			ID:          molecule.ID(cols[idCol][i]),
			ComponentID: uint16(cols[compCol][i]),
			R:           vec3.V{cols[xCol][i], cols[yCol][i], cols[zCol][i]},
			V:           vec3.V{cols[vxCol][i], cols[vyCol][i], cols[vzCol][i]},
			Q:           vec3.Quat{W: cols[q0Col][i], X: cols[q1Col][i], Y: cols[q2Col][i], Z: cols[q3Col][i]},
			D:           vec3.V{cols[dxCol][i], cols[dyCol][i], cols[dzCol][i]},
		}
	}
	return mols, nil
}

// CheckpointHeader is the fixed-size record at the start of a checkpoint
// file, mirroring sheet.Header's role: metadata checked for consistency
// before the payload is trusted.
type CheckpointHeader struct {
	Step        int64
	Count       int64
	GlobalWidth vec3.V
	Time        float64
}

const checkpointHeaderSize = 8 + 8 + 3*8 + 8

// WriteCheckpoint writes the endianness flag, header size, header, and
// contiguous molecule records, per sheet.go's binary layout comment
// format:
//   |-- flag(int32) --||-- hdrSize(int32) --||-- Header --||-- records --|
func WriteCheckpoint(path string, hdr CheckpointHeader, mols []molecule.Molecule) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ioformat: creating checkpoint %q: %w", path, err)
	}
	defer f.Close()

	order := binary.LittleEndian
	if err := binary.Write(f, order, int32(-1)); err != nil { // -1 == little endian, per sheet.go's convention
		return err
	}
	if err := binary.Write(f, order, int32(checkpointHeaderSize)); err != nil {
		return err
	}
	hdr.Count = int64(len(mols))
	if err := binary.Write(f, order, hdr); err != nil {
		return err
	}
	for i := range mols {
		if err := writeMoleculeRecord(f, order, &mols[i]); err != nil {
			return err
		}
	}
	return nil
}

// ReadCheckpoint reads a file written by WriteCheckpoint, validating the
// header size the way sheet.go's readHeaderAt does before trusting the
// payload.
func ReadCheckpoint(path string) (CheckpointHeader, []molecule.Molecule, error) {
	var hdr CheckpointHeader
	f, err := os.Open(path)
	if err != nil {
		return hdr, nil, fmt.Errorf("ioformat: opening checkpoint %q: %w", path, err)
	}
	defer f.Close()

	var flag, size int32
	order := binary.ByteOrder(binary.LittleEndian)
	if err := binary.Read(f, order, &flag); err != nil {
		return hdr, nil, err
	}
	if flag == 0 {
		order = binary.BigEndian
	}
	if err := binary.Read(f, order, &size); err != nil {
		return hdr, nil, err
	}
	if size != int32(checkpointHeaderSize) {
		return hdr, nil, fmt.Errorf("ioformat: %q: expected header size %d, found %d", path, checkpointHeaderSize, size)
	}
	if err := binary.Read(f, order, &hdr); err != nil {
		return hdr, nil, err
	}

	mols := make([]molecule.Molecule, hdr.Count)
	for i := range mols {
		m, err := readMoleculeRecord(f, order)
		if err != nil {
			return hdr, nil, err
		}
		mols[i] = m
	}
	return hdr, mols, nil
}

func writeMoleculeRecord(w io.Writer, order binary.ByteOrder, m *molecule.Molecule) error {
	fields := []interface{}{
		m.ID, m.ComponentID,
		m.R, m.V, m.D, m.Q,
	}
	for _, f := range fields {
		if err := binary.Write(w, order, f); err != nil {
			return err
		}
	}
	return nil
}

func readMoleculeRecord(r io.Reader, order binary.ByteOrder) (molecule.Molecule, error) {
	var m molecule.Molecule
	if err := binary.Read(r, order, &m.ID); err != nil {
		return m, err
	}
	if err := binary.Read(r, order, &m.ComponentID); err != nil {
		return m, err
	}
	if err := binary.Read(r, order, &m.R); err != nil {
		return m, err
	}
	if err := binary.Read(r, order, &m.V); err != nil {
		return m, err
	}
	if err := binary.Read(r, order, &m.D); err != nil {
		return m, err
	}
	if err := binary.Read(r, order, &m.Q); err != nil {
		return m, err
	}
	return m, nil
}
