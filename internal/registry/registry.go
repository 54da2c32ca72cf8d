// Package registry is the durable store of VPS records and policy settings.
// The whole registry is one JSON document rewritten atomically on every
// mutation; an operation only reports success after its write has landed.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/afero"

	"vpsd/internal/models"
)

// ErrNotFound is returned when a VPS identifier is unknown.
var ErrNotFound = errors.New("vps not found")

// Registry owns VPS record lifetime and the policy settings document.
// It stores data only; authorization and capacity policy live elsewhere.
type Registry struct {
	fs   afero.Fs
	path string

	mu       sync.RWMutex
	settings models.Settings

	// idLocks serializes operations per VPS identifier so that a manual
	// suspend racing the abuse monitor is linearized without making
	// unrelated instances contend.
	idLocks sync.Map
}

// New creates a registry backed by the given filesystem and document path.
// Call Load before use.
func New(fs afero.Fs, path string) *Registry {
	return &Registry{fs: fs, path: path}
}

// Load reads the settings document from disk. A missing file yields an
// empty registry with defaults.
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.settings = models.Settings{
		VPS:       make(map[string]*models.VPS),
		Sequences: make(map[string]int),
	}

	if r.path == "" {
		return errors.New("registry path not set")
	}
	if _, err := r.fs.Stat(r.path); errors.Is(err, os.ErrNotExist) {
		_ = r.fs.MkdirAll(filepath.Dir(r.path), 0o755)
		return nil
	}
	data, err := afero.ReadFile(r.fs, r.path)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, &r.settings); err != nil {
		return fmt.Errorf("parse registry document: %w", err)
	}
	if r.settings.VPS == nil {
		r.settings.VPS = make(map[string]*models.VPS)
	}
	if r.settings.Sequences == nil {
		r.settings.Sequences = make(map[string]int)
	}
	return nil
}

// saveLocked writes the document to disk atomically with 0600 permissions.
// Caller MUST hold r.mu (write lock).
func (r *Registry) saveLocked() error {
	data, err := json.MarshalIndent(&r.settings, "", "  ")
	if err != nil {
		return err
	}
	tmp := r.path + ".tmp"
	if err := afero.WriteFile(r.fs, tmp, data, 0o600); err != nil {
		return err
	}
	return r.fs.Rename(tmp, r.path)
}

// Get returns a copy of the record for id, or ErrNotFound.
func (r *Registry) Get(id string) (*models.VPS, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.settings.VPS[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

// List returns copies of all records sorted by identifier.
func (r *Registry) List() []*models.VPS {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.VPS, 0, len(r.settings.VPS))
	for _, v := range r.settings.VPS {
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Put upserts a record and persists the document before returning.
func (r *Registry) Put(v *models.VPS) error {
	if v == nil || v.ID == "" {
		return errors.New("record requires an id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *v
	r.settings.VPS[cp.ID] = &cp
	return r.saveLocked()
}

// NextSequence allocates the next per-customer creation sequence number and
// persists the allocation immediately. A sequence burned by a failed create
// is never reused, which keeps identifiers unique across restarts.
func (r *Registry) NextSequence(customer string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seq := r.settings.Sequences[customer] + 1
	r.settings.Sequences[customer] = seq
	if err := r.saveLocked(); err != nil {
		r.settings.Sequences[customer] = seq - 1
		return 0, err
	}
	return seq, nil
}

// Settings returns a snapshot of the policy settings. VPS records in the
// snapshot are copies; mutating them does not touch the registry.
func (r *Registry) Settings() models.Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s := r.settings
	s.VPS = make(map[string]*models.VPS, len(r.settings.VPS))
	for id, v := range r.settings.VPS {
		cp := *v
		s.VPS[id] = &cp
	}
	s.Sequences = make(map[string]int, len(r.settings.Sequences))
	for c, n := range r.settings.Sequences {
		s.Sequences[c] = n
	}
	s.Owners = append([]string(nil), r.settings.Owners...)
	s.Admins = append([]string(nil), r.settings.Admins...)
	if r.settings.MaxResources != nil {
		caps := *r.settings.MaxResources
		s.MaxResources = &caps
	}
	return s
}

// UpdateSettings applies mutate under the write lock and persists the
// result before returning.
func (r *Registry) UpdateSettings(mutate func(*models.Settings)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mutate(&r.settings)
	return r.saveLocked()
}

// LockID acquires the per-identifier mutex and returns its release func.
// Operations on the same id are linearized; different ids never contend.
func (r *Registry) LockID(id string) func() {
	v, _ := r.idLocks.LoadOrStore(id, &sync.Mutex{})
	mtx := v.(*sync.Mutex)
	mtx.Lock()
	return mtx.Unlock
}
