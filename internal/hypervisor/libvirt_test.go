package hypervisor

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunMapsDeadlineToTimeout(t *testing.T) {
	d := NewLibvirt(50 * time.Millisecond)

	start := time.Now()
	err := d.run(context.Background(), "suspend", "vps-acme-1", "sleep", "5")
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("run blocked for %v past the deadline", elapsed)
	}

	var derr *DriverError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DriverError, got %v", err)
	}
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if derr.Op != "suspend" || derr.ID != "vps-acme-1" {
		t.Fatalf("unexpected error context: %+v", derr)
	}
}

func TestRunWrapsFailureWithOutput(t *testing.T) {
	d := NewLibvirt(5 * time.Second)
	err := d.run(context.Background(), "resume", "vps-acme-1",
		"sh", "-c", "echo 'error: domain not found' >&2; exit 1")

	var derr *DriverError
	if !errors.As(err, &derr) {
		t.Fatalf("expected DriverError, got %v", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Fatal("command failure must not report a timeout")
	}
	if derr.Output != "error: domain not found" {
		t.Fatalf("unexpected captured output: %q", derr.Output)
	}
}
