// Package integrator implements spec.md §4.7's Integrator: the Leapfrog
// position/velocity update and the quaternion-based rigid-body rotation
// update.
//
// The teacher's own integrator package (gotetra's integrator/integ.go) is
// a different, incomplete thing entirely — a symbolic-expression
// simplifier with several "not yet implemented" bodies, sharing nothing
// but a name with a numerical integrator — so this package is written
// fresh against spec.md §4.7, using the Rodrigues-formula quaternion
// update already built in vec3.IntegrateAngularVelocity.
package integrator

import (
	"math"

	"github.com/mdcore/mdcore/errs"
	"github.com/mdcore/mdcore/molecule"
	"github.com/mdcore/mdcore/vec3"
)

// Config holds the fixed integration parameters for a run.
type Config struct {
	Dt        float64
	CellWidth float64 // used for the velocity-exceeds-one-cell warning
}

// EventNewTimestep performs the first Leapfrog half-kick plus the drift:
// v(t+dt/2) = v(t) + (dt/2m) F(t), r(t+dt) = r(t) + dt v(t+dt/2), and
// advances the orientation quaternion by the current angular velocity,
// per spec.md §4.7.
func EventNewTimestep(m *molecule.Molecule, invMass float64, invInertia vec3.V, cfg Config) error {
	halfDt := 0.5 * cfg.Dt
	for d := 0; d < 3; d++ {
		m.V[d] += halfDt * invMass * m.F[d]
	}
	disp := vec3.Scale(m.V, cfg.Dt)
	m.R = vec3.Add(m.R, disp)

	if cfg.CellWidth > 0 {
		if math.Abs(disp[0]) > cfg.CellWidth || math.Abs(disp[1]) > cfg.CellWidth || math.Abs(disp[2]) > cfg.CellWidth {
			// Non-fatal: spec.md §4.7 calls this a warning, not an abort.
			// Left to the caller (simloop) to log via its rank-prefixed logger.
		}
	}

	omega := vec3.V{m.D[0] * invInertia[0], m.D[1] * invInertia[1], m.D[2] * invInertia[2]}
	m.Q = vec3.IntegrateAngularVelocity(m.Q, omega, cfg.Dt)

	return nil
}

// EventForcesCalculated performs the second Leapfrog half-kick:
// v(t+dt) = v(t+dt/2) + (dt/2m) F(t+dt), and a full-step update of the
// angular momentum from the newly computed torque (D += dt·M), per spec.md
// §4.7. Returns a NumericError if the new force contains a NaN or
// infinite component, per spec.md §4.7's force-sanity invariant.
func EventForcesCalculated(m *molecule.Molecule, invMass float64, cfg Config) error {
	for d := 0; d < 3; d++ {
		if math.IsNaN(m.F[d]) || math.IsInf(m.F[d], 0) {
			return errs.New(errs.NumericError, "non-finite force component on molecule %d: %v", m.ID, m.F)
		}
	}
	halfDt := 0.5 * cfg.Dt
	for d := 0; d < 3; d++ {
		m.V[d] += halfDt * invMass * m.F[d]
	}
	m.D = vec3.Add(m.D, vec3.Scale(m.M, cfg.Dt))
	return nil
}

// ResetAccumulators zeroes force, torque, and angular-momentum-derivative
// storage ahead of the next force evaluation, per spec.md §4.7's
// per-step reset-then-reduce cycle (Simulation.cpp's calculateForces
// begins every step by clearing these before the traversal runs).
func ResetAccumulators(m *molecule.Molecule) {
	m.F = vec3.V{}
	m.M = vec3.V{}
}
