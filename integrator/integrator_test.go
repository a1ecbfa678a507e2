package integrator

import (
	"math"
	"testing"

	"github.com/mdcore/mdcore/errs"
	"github.com/mdcore/mdcore/molecule"
	"github.com/mdcore/mdcore/vec3"
)

func TestEventNewTimestepLeapfrogDrift(t *testing.T) {
	m := &molecule.Molecule{V: vec3.V{1, 0, 0}, F: vec3.V{2, 0, 0}}
	cfg := Config{Dt: 0.1}
	const invMass = 1.0

	if err := EventNewTimestep(m, invMass, vec3.V{1, 1, 1}, cfg); err != nil {
		t.Fatalf("EventNewTimestep: %v", err)
	}

	wantV := 1.0 + 0.5*cfg.Dt*invMass*2.0
	if math.Abs(m.V[0]-wantV) > 1e-12 {
		t.Errorf("V[0] after half-kick = %g, want %g", m.V[0], wantV)
	}
	wantR := cfg.Dt * wantV
	if math.Abs(m.R[0]-wantR) > 1e-12 {
		t.Errorf("R[0] after drift = %g, want %g", m.R[0], wantR)
	}
}

func TestEventNewTimestepAdvancesOrientationWithAngularVelocity(t *testing.T) {
	m := &molecule.Molecule{Q: vec3.Identity(), D: vec3.V{0, 0, 1}}
	cfg := Config{Dt: 0.1}
	if err := EventNewTimestep(m, 1, vec3.V{1, 1, 1}, cfg); err != nil {
		t.Fatalf("EventNewTimestep: %v", err)
	}
	if m.Q == vec3.Identity() {
		t.Error("non-zero angular velocity should rotate the orientation quaternion")
	}
	if math.Abs(m.Q.Norm()-1) > 1e-9 {
		t.Errorf("Q.Norm() = %g, want 1 (renormalized)", m.Q.Norm())
	}
}

func TestEventForcesCalculatedSecondHalfKick(t *testing.T) {
	m := &molecule.Molecule{V: vec3.V{1, 0, 0}, F: vec3.V{4, 0, 0}, M: vec3.V{1, 0, 0}}
	cfg := Config{Dt: 0.2}
	if err := EventForcesCalculated(m, 1, cfg); err != nil {
		t.Fatalf("EventForcesCalculated: %v", err)
	}
	wantV := 1.0 + 0.5*cfg.Dt*4.0
	if math.Abs(m.V[0]-wantV) > 1e-12 {
		t.Errorf("V[0] = %g, want %g", m.V[0], wantV)
	}
	wantD := cfg.Dt * 1.0
	if math.Abs(m.D[0]-wantD) > 1e-12 {
		t.Errorf("D[0] = %g, want %g", m.D[0], wantD)
	}
}

func TestEventForcesCalculatedRejectsNonFiniteForce(t *testing.T) {
	m := &molecule.Molecule{F: vec3.V{math.NaN(), 0, 0}}
	err := EventForcesCalculated(m, 1, Config{Dt: 0.1})
	if err == nil {
		t.Fatal("expected an error for a NaN force component")
	}
	if e, ok := err.(*errs.Error); !ok || e.Code != errs.NumericError {
		t.Errorf("error = %v, want *errs.Error with Code errs.NumericError", err)
	}

	m2 := &molecule.Molecule{F: vec3.V{math.Inf(1), 0, 0}}
	if err := EventForcesCalculated(m2, 1, Config{Dt: 0.1}); err == nil {
		t.Error("expected an error for an infinite force component")
	}
}

func TestResetAccumulatorsZeroesForceAndTorque(t *testing.T) {
	m := &molecule.Molecule{F: vec3.V{1, 2, 3}, M: vec3.V{4, 5, 6}}
	ResetAccumulators(m)
	if m.F != (vec3.V{}) || m.M != (vec3.V{}) {
		t.Errorf("ResetAccumulators left F=%v M=%v, want both zero", m.F, m.M)
	}
}
