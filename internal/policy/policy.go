// Package policy implements authorization and capacity checks as pure
// functions over registry settings snapshots.
package policy

import (
	"errors"
	"fmt"

	"vpsd/internal/models"
)

// Role is an authorization tier. Owners are a superset privilege over admins.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleOwner Role = "owner"
)

var (
	// ErrUnauthorized means the principal lacks the required role.
	ErrUnauthorized = errors.New("permission denied")
	// ErrUnconfigured means storage_per_gb has not been set yet.
	ErrUnconfigured = errors.New("storage ratio not configured")
)

// CapacityError reports which resource ceiling a request would breach.
type CapacityError struct {
	Dimension string
	Requested float64
	Allocated float64
	Cap       float64
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("capacity exceeded: %s cap %g, allocated %g, requested %g",
		e.Dimension, e.Cap, e.Allocated, e.Requested)
}

// Authorize checks set membership for the required role. Admin is satisfied
// by either set; owner requires strict owner membership.
func Authorize(s models.Settings, principal string, role Role) error {
	switch role {
	case RoleOwner:
		if s.IsOwner(principal) {
			return nil
		}
	case RoleAdmin:
		if s.IsAdmin(principal) {
			return nil
		}
	}
	return ErrUnauthorized
}

// ComputeStorage derives a new instance's storage from its memory using the
// currently configured ratio. The result is frozen into the record at
// creation time and never recomputed.
func ComputeStorage(s models.Settings, memoryGB int) (float64, error) {
	if s.StoragePerGB <= 0 {
		return 0, ErrUnconfigured
	}
	return float64(memoryGB) * s.StoragePerGB, nil
}

// Totals aggregates allocated resources across instances.
type Totals struct {
	RAM     float64
	CPU     float64
	Storage float64
}

// TotalsOf sums allocations over a registry snapshot. Suspended instances
// still hold their allocation.
func TotalsOf(list []*models.VPS) Totals {
	var t Totals
	for _, v := range list {
		t.RAM += float64(v.Memory)
		t.CPU += float64(v.Cores)
		t.Storage += v.Storage
	}
	return t
}

// CheckCapacity rejects a request that would push an aggregate past a
// configured cap. Absent caps leave the dimension unconstrained.
func CheckCapacity(s models.Settings, requested, allocated Totals) error {
	caps := s.MaxResources
	if caps == nil {
		return nil
	}
	if caps.RAM != nil && allocated.RAM+requested.RAM > *caps.RAM {
		return &CapacityError{Dimension: "ram", Requested: requested.RAM, Allocated: allocated.RAM, Cap: *caps.RAM}
	}
	if caps.CPU != nil && allocated.CPU+requested.CPU > *caps.CPU {
		return &CapacityError{Dimension: "cpu", Requested: requested.CPU, Allocated: allocated.CPU, Cap: *caps.CPU}
	}
	if caps.Storage != nil && allocated.Storage+requested.Storage > *caps.Storage {
		return &CapacityError{Dimension: "storage", Requested: requested.Storage, Allocated: allocated.Storage, Cap: *caps.Storage}
	}
	return nil
}
