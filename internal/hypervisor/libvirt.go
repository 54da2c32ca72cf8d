package hypervisor

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout = 60 * time.Second
	osVariant      = "ubuntu20.04"
	network        = "default"
)

// Libvirt drives instances through virt-install and virsh.
type Libvirt struct {
	// Timeout bounds each command. Zero means defaultTimeout.
	Timeout time.Duration
}

// NewLibvirt returns a libvirt driver with the given command timeout.
func NewLibvirt(timeout time.Duration) *Libvirt {
	return &Libvirt{Timeout: timeout}
}

func (d *Libvirt) timeout() time.Duration {
	if d.Timeout > 0 {
		return d.Timeout
	}
	return defaultTimeout
}

// Allocate provisions a new VM named after the VPS identifier.
func (d *Libvirt) Allocate(ctx context.Context, spec Spec) error {
	return d.run(ctx, "allocate", spec.ID,
		"virt-install",
		"--name", spec.ID,
		"--memory", strconv.Itoa(spec.MemoryGB),
		"--vcpus", strconv.Itoa(spec.Cores),
		"--disk", fmt.Sprintf("size=%g", spec.StorageGB),
		"--os-variant", osVariant,
		"--network", network,
	)
}

// Suspend pauses the VM.
func (d *Libvirt) Suspend(ctx context.Context, id string) error {
	return d.run(ctx, "suspend", id, "virsh", "suspend", id)
}

// Resume unpauses the VM.
func (d *Libvirt) Resume(ctx context.Context, id string) error {
	return d.run(ctx, "resume", id, "virsh", "resume", id)
}

func (d *Libvirt) run(ctx context.Context, op, id, name string, args ...string) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout())
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &DriverError{Op: op, ID: id, Err: ErrTimeout}
	}
	return &DriverError{Op: op, ID: id, Output: strings.TrimSpace(string(out)), Err: err}
}
