package errs

import (
	"errors"
	"testing"
)

func TestNewAndError(t *testing.T) {
	e := New(ConfigError, "bad field %q", "cutoff")
	if e.Code != ConfigError {
		t.Errorf("Code = %v, want ConfigError", e.Code)
	}
	want := "ConfigError: bad field \"cutoff\""
	if e.Error() != want {
		t.Errorf("Error() = %q, want %q", e.Error(), want)
	}
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("file not found")
	e := Wrap(GeometryError, cause, "loading domain")
	if !errors.Is(e, cause) {
		t.Error("Wrap should produce an error that errors.Is matches against the cause")
	}
	if e.Unwrap() != cause {
		t.Errorf("Unwrap() = %v, want %v", e.Unwrap(), cause)
	}
}

func TestIs(t *testing.T) {
	e := New(DeadlockError, "halo exchange timed out")
	if !Is(e, DeadlockError) {
		t.Error("Is(e, DeadlockError) = false, want true")
	}
	if Is(e, ConfigError) {
		t.Error("Is(e, ConfigError) = true, want false")
	}
	if Is(errors.New("plain"), ConfigError) {
		t.Error("Is on a non-*Error should be false")
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{ConfigError, 1},
		{GeometryError, 1},
		{DeadlockError, 457},
		{NumericError, 1},
		{TransientPackError, 0},
	}
	for _, c := range cases {
		if got := c.code.ExitCode(); got != c.want {
			t.Errorf("%v.ExitCode() = %d, want %d", c.code, got, c.want)
		}
	}
}

func TestCodeString(t *testing.T) {
	if ConfigError.String() != "ConfigError" {
		t.Errorf("ConfigError.String() = %q", ConfigError.String())
	}
	if Code(999).String() != "UnknownError" {
		t.Errorf("unknown Code.String() = %q, want UnknownError", Code(999).String())
	}
}
