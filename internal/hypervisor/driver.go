// Package hypervisor abstracts the commands that create, suspend, and
// resume virtual machines on the host. The engine treats every call as a
// fallible remote operation with a bounded deadline.
package hypervisor

import (
	"context"
	"errors"
	"fmt"
)

// Spec describes the instance to allocate.
type Spec struct {
	ID        string
	MemoryGB  int
	Cores     int
	StorageGB float64
}

// Driver executes lifecycle operations against the physical host.
type Driver interface {
	Allocate(ctx context.Context, spec Spec) error
	Suspend(ctx context.Context, id string) error
	Resume(ctx context.Context, id string) error
}

// ErrTimeout marks a hypervisor command that exceeded its deadline.
var ErrTimeout = errors.New("hypervisor command timed out")

// DriverError carries the failing operation and the command diagnostic.
type DriverError struct {
	Op     string
	ID     string
	Output string
	Err    error
}

func (e *DriverError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("hypervisor %s %s: %v: %s", e.Op, e.ID, e.Err, e.Output)
	}
	return fmt.Sprintf("hypervisor %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *DriverError) Unwrap() error { return e.Err }
