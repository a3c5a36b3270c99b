package activation

import (
	"os"
	"strconv"
	"testing"
)

func TestListenersNoEnvironment(t *testing.T) {
	t.Setenv("LISTEN_PID", "")
	t.Setenv("LISTEN_FDS", "")
	_ = os.Unsetenv("LISTEN_PID")
	_ = os.Unsetenv("LISTEN_FDS")

	listeners, err := Listeners()
	if err != nil {
		t.Fatalf("Listeners() unexpected error: %v", err)
	}
	if listeners != nil {
		t.Errorf("listeners = %v, want nil without activation env", listeners)
	}
}

func TestListenersWrongPID(t *testing.T) {
	t.Setenv("LISTEN_PID", "99999")
	t.Setenv("LISTEN_FDS", "1")

	listeners, err := Listeners()
	if err != nil {
		t.Fatalf("Listeners() unexpected error: %v", err)
	}
	if listeners != nil {
		t.Errorf("listeners = %v, want nil for foreign PID", listeners)
	}
}

func TestListenersInvalidPID(t *testing.T) {
	t.Setenv("LISTEN_PID", "not-a-number")
	t.Setenv("LISTEN_FDS", "1")

	if _, err := Listeners(); err == nil {
		t.Error("expected error for invalid LISTEN_PID, got nil")
	}
}

func TestListenersInvalidFDS(t *testing.T) {
	t.Setenv("LISTEN_PID", strconv.Itoa(os.Getpid()))
	t.Setenv("LISTEN_FDS", "not-a-number")

	if _, err := Listeners(); err == nil {
		t.Error("expected error for invalid LISTEN_FDS, got nil")
	}
}

func TestListenersZeroFDs(t *testing.T) {
	t.Setenv("LISTEN_PID", strconv.Itoa(os.Getpid()))
	t.Setenv("LISTEN_FDS", "0")

	listeners, err := Listeners()
	if err != nil {
		t.Fatalf("Listeners() unexpected error: %v", err)
	}
	if listeners != nil {
		t.Errorf("listeners = %v, want nil for zero fds", listeners)
	}
}
