package policy

import (
	"errors"
	"testing"

	"vpsd/internal/models"
)

func testSettings() models.Settings {
	return models.Settings{
		Owners: []string{"owner-1"},
		Admins: []string{"admin-1"},
	}
}

func TestAuthorizeRoles(t *testing.T) {
	s := testSettings()
	cases := []struct {
		name      string
		principal string
		role      Role
		allowed   bool
	}{
		{"admin has admin", "admin-1", RoleAdmin, true},
		{"owner has admin implicitly", "owner-1", RoleAdmin, true},
		{"owner has owner", "owner-1", RoleOwner, true},
		{"admin lacks owner", "admin-1", RoleOwner, false},
		{"stranger lacks admin", "stranger", RoleAdmin, false},
		{"stranger lacks owner", "stranger", RoleOwner, false},
		{"empty principal denied", "", RoleAdmin, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Authorize(s, tc.principal, tc.role)
			if tc.allowed && err != nil {
				t.Fatalf("expected allow, got %v", err)
			}
			if !tc.allowed && !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
		})
	}
}

func TestComputeStorage(t *testing.T) {
	s := testSettings()
	s.StoragePerGB = 2.5
	got, err := ComputeStorage(s, 10)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if got != 25 {
		t.Fatalf("expected storage 25, got %g", got)
	}
}

func TestComputeStorageUnconfigured(t *testing.T) {
	if _, err := ComputeStorage(testSettings(), 10); !errors.Is(err, ErrUnconfigured) {
		t.Fatalf("expected ErrUnconfigured, got %v", err)
	}
}

func TestCheckCapacityRAM(t *testing.T) {
	ram := 100.0
	s := testSettings()
	s.MaxResources = &models.Caps{RAM: &ram}
	allocated := Totals{RAM: 90}

	err := CheckCapacity(s, Totals{RAM: 20}, allocated)
	var capErr *CapacityError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected CapacityError, got %v", err)
	}
	if capErr.Dimension != "ram" {
		t.Fatalf("expected ram dimension, got %s", capErr.Dimension)
	}

	if err := CheckCapacity(s, Totals{RAM: 5}, allocated); err != nil {
		t.Fatalf("expected request within cap to pass, got %v", err)
	}
}

func TestCheckCapacityAbsentCapsUnconstrained(t *testing.T) {
	s := testSettings()
	if err := CheckCapacity(s, Totals{RAM: 1e9, CPU: 1e9, Storage: 1e9}, Totals{}); err != nil {
		t.Fatalf("nil caps must be unconstrained, got %v", err)
	}
	// A caps struct with nil fields is equally unconstrained.
	s.MaxResources = &models.Caps{}
	if err := CheckCapacity(s, Totals{RAM: 1e9}, Totals{}); err != nil {
		t.Fatalf("nil cap field must be unconstrained, got %v", err)
	}
}

func TestTotalsOfCountsSuspendedInstances(t *testing.T) {
	list := []*models.VPS{
		{ID: "vps-acme-1", Memory: 4, Cores: 2, Storage: 10, Status: models.StatusRunning},
		{ID: "vps-acme-2", Memory: 8, Cores: 4, Storage: 20, Status: models.StatusSuspended},
	}
	got := TotalsOf(list)
	if got.RAM != 12 || got.CPU != 6 || got.Storage != 30 {
		t.Fatalf("unexpected totals: %+v", got)
	}
}
