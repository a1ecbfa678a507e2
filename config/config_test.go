package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "run.cfg")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestReadTokenConfigParsesValidFile(t *testing.T) {
	path := writeConfig(t, `
[run]
Cutoff = 2.5
Timestep = 0.001
Steps = 100
ProcX = 2
ProcY = 2
ProcZ = 1
WidthX = 20
WidthY = 20
WidthZ = 10
ReactionFieldEps = 78.5
HaloScheme = threestage
`)
	rc, err := ReadTokenConfig(path)
	if err != nil {
		t.Fatalf("ReadTokenConfig: %v", err)
	}
	if rc.Cutoff != 2.5 || rc.Timestep != 0.001 || rc.Steps != 100 {
		t.Errorf("Cutoff/Timestep/Steps = %g/%g/%d, want 2.5/0.001/100", rc.Cutoff, rc.Timestep, rc.Steps)
	}
	if rc.ProcDims != ([3]int{2, 2, 1}) {
		t.Errorf("ProcDims = %v, want {2 2 1}", rc.ProcDims)
	}
	if rc.GlobalWidth != ([3]float64{20, 20, 10}) {
		t.Errorf("GlobalWidth = %v, want {20 20 10}", rc.GlobalWidth)
	}
	if rc.HaloScheme != "threestage" {
		t.Errorf("HaloScheme = %q, want threestage", rc.HaloScheme)
	}
	if rc.DeadlockTimeoutSeconds != 60 {
		t.Errorf("DeadlockTimeoutSeconds = %d, want default 60", rc.DeadlockTimeoutSeconds)
	}
}

func TestReadTokenConfigRejectsNonPositiveCutoff(t *testing.T) {
	path := writeConfig(t, `
[run]
Cutoff = 0
Timestep = 0.001
Steps = 100
ProcX = 1
ProcY = 1
ProcZ = 1
WidthX = 10
WidthY = 10
WidthZ = 10
`)
	if _, err := ReadTokenConfig(path); err == nil {
		t.Fatal("expected an error for a non-positive Cutoff")
	}
}

func TestReadTokenConfigRejectsMissingProcDims(t *testing.T) {
	path := writeConfig(t, `
[run]
Cutoff = 2.5
Timestep = 0.001
Steps = 100
WidthX = 10
WidthY = 10
WidthZ = 10
`)
	if _, err := ReadTokenConfig(path); err == nil {
		t.Fatal("expected an error for missing ProcX/ProcY/ProcZ (default to 0)")
	}
}

func TestCheckInitDefaultsHaloSchemeAndTimeout(t *testing.T) {
	r := &runSection{
		Cutoff: 1, Timestep: 1, Steps: 1,
		ProcX: 1, ProcY: 1, ProcZ: 1,
		WidthX: 1, WidthY: 1, WidthZ: 1,
	}
	if err := r.CheckInit(); err != nil {
		t.Fatalf("CheckInit: %v", err)
	}
	if r.HaloScheme != "fullshell" {
		t.Errorf("HaloScheme default = %q, want fullshell", r.HaloScheme)
	}
	if r.DeadlockTimeoutSeconds != 60 {
		t.Errorf("DeadlockTimeoutSeconds default = %d, want 60", r.DeadlockTimeoutSeconds)
	}
}

func TestCheckInitRejectsUnknownHaloScheme(t *testing.T) {
	r := &runSection{
		Cutoff: 1, Timestep: 1, Steps: 1,
		ProcX: 1, ProcY: 1, ProcZ: 1,
		WidthX: 1, WidthY: 1, WidthZ: 1,
		HaloScheme: "ringbuffer",
	}
	if err := r.CheckInit(); err == nil {
		t.Fatal("expected an error for an unrecognized HaloScheme")
	}
}
