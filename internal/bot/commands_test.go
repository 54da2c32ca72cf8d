package bot

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"

	"vpsd/internal/engine"
	"vpsd/internal/hypervisor"
	"vpsd/internal/models"
	"vpsd/internal/registry"
	"vpsd/internal/utils"
)

type fakeDriver struct {
	mu       sync.Mutex
	suspends []string
}

func (d *fakeDriver) Allocate(ctx context.Context, spec hypervisor.Spec) error { return nil }

func (d *fakeDriver) Suspend(ctx context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.suspends = append(d.suspends, id)
	return nil
}

func (d *fakeDriver) Resume(ctx context.Context, id string) error { return nil }

func setupDispatcher(t *testing.T) (*Dispatcher, *engine.Engine) {
	t.Helper()
	reg := registry.New(afero.NewMemMapFs(), "/data/config.json")
	if err := reg.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := reg.UpdateSettings(func(s *models.Settings) {
		s.Owners = []string{"owner-1"}
		s.Admins = []string{"admin-1"}
		s.StoragePerGB = 2.5
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	log := utils.NewLogger("")
	eng := engine.New(reg, &fakeDriver{}, log)
	return NewDispatcher(eng, log), eng
}

func TestCreateVPSCommand(t *testing.T) {
	d, eng := setupDispatcher(t)
	reply := d.Handle(context.Background(), "admin-1", "create_vps", []string{"10", "2", "acme"})
	if reply != "✅ VPS `vps-acme-1` created for customer `acme`." {
		t.Fatalf("unexpected reply: %q", reply)
	}
	v, err := eng.Get("vps-acme-1")
	if err != nil {
		t.Fatalf("record not created: %v", err)
	}
	if v.Storage != 25 {
		t.Fatalf("expected storage 25, got %g", v.Storage)
	}
}

func TestCreateVPSPermissionDenied(t *testing.T) {
	d, eng := setupDispatcher(t)
	reply := d.Handle(context.Background(), "stranger", "create_vps", []string{"10", "2", "acme"})
	if reply != permissionDenied {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if len(eng.List()) != 0 {
		t.Fatal("denied command mutated the registry")
	}
}

func TestCreateVPSUsageOnBadArgs(t *testing.T) {
	d, _ := setupDispatcher(t)
	for _, args := range [][]string{nil, {"10"}, {"ten", "2", "acme"}} {
		reply := d.Handle(context.Background(), "admin-1", "create_vps", args)
		if !strings.HasPrefix(reply, "Usage:") {
			t.Fatalf("args %v: expected usage reply, got %q", args, reply)
		}
	}
}

func TestSuspendVPSCommand(t *testing.T) {
	d, eng := setupDispatcher(t)
	d.Handle(context.Background(), "admin-1", "create_vps", []string{"4", "2", "acme"})

	reply := d.Handle(context.Background(), "admin-1", "suspend_vps", []string{"vps-acme-1", "abuse", "report", "filed"})
	if reply != "✅ VPS `vps-acme-1` suspended. Reason: abuse report filed" {
		t.Fatalf("unexpected reply: %q", reply)
	}
	v, _ := eng.Get("vps-acme-1")
	if v.Status != models.StatusSuspended {
		t.Fatalf("expected suspended, got %s", v.Status)
	}
}

func TestSuspendUnknownVPS(t *testing.T) {
	d, _ := setupDispatcher(t)
	reply := d.Handle(context.Background(), "admin-1", "suspend_vps", []string{"vps-ghost-1", "whatever"})
	if reply != "❌ VPS not found." {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestSetStorageIsOwnerOnly(t *testing.T) {
	d, _ := setupDispatcher(t)
	if reply := d.Handle(context.Background(), "admin-1", "set_storage", []string{"1", "3.0"}); reply != permissionDenied {
		t.Fatalf("admin must be denied, got %q", reply)
	}
	reply := d.Handle(context.Background(), "owner-1", "set_storage", []string{"1", "3.0"})
	if reply != "✅ Default storage set: 3GB per 1GB RAM." {
		t.Fatalf("unexpected reply: %q", reply)
	}
}

func TestResumeCommand(t *testing.T) {
	d, eng := setupDispatcher(t)
	d.Handle(context.Background(), "admin-1", "create_vps", []string{"4", "2", "acme"})
	d.Handle(context.Background(), "admin-1", "suspend_vps", []string{"vps-acme-1", "maintenance"})

	reply := d.Handle(context.Background(), "admin-1", "resume_vps", []string{"vps-acme-1"})
	if reply != "✅ VPS `vps-acme-1` is running." {
		t.Fatalf("unexpected reply: %q", reply)
	}
	v, _ := eng.Get("vps-acme-1")
	if !v.IsRunning() {
		t.Fatalf("expected running, got %s", v.Status)
	}
}

func TestVPSInfoAndList(t *testing.T) {
	d, _ := setupDispatcher(t)
	if reply := d.Handle(context.Background(), "anyone", "list_vps", nil); reply != "No VPS instances exist." {
		t.Fatalf("unexpected reply: %q", reply)
	}
	d.Handle(context.Background(), "admin-1", "create_vps", []string{"4", "2", "acme"})

	info := d.Handle(context.Background(), "anyone", "vps_info", []string{"vps-acme-1"})
	if !strings.Contains(info, "vps-acme-1") || !strings.Contains(info, "running") {
		t.Fatalf("unexpected info: %q", info)
	}
	listing := d.Handle(context.Background(), "anyone", "list_vps", nil)
	if !strings.Contains(listing, "vps-acme-1") {
		t.Fatalf("unexpected listing: %q", listing)
	}
}

func TestUnknownCommandIsIgnored(t *testing.T) {
	d, _ := setupDispatcher(t)
	if reply := d.Handle(context.Background(), "admin-1", "dance", nil); reply != "" {
		t.Fatalf("expected empty reply for unknown command, got %q", reply)
	}
}
